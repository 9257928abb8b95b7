package api

import (
	"dvh/internal/pg"
	"dvh/internal/validate"
)

type SchemaIssue struct {
	Entity  string `json:"entity"`
	Ident   string `json:"ident,omitempty"`
	Kind    string `json:"kind"` // structural | source | identifier
	Code    string `json:"code"`
	Message string `json:"message"`
	// Blocking issues stop generation; the others only affect loads or the
	// target database.
	Blocking bool `json:"blocking"`
}

// SchemaLint collects every known problem of the loaded model. Callers hold
// the lock.
func (s *Storage) SchemaLint() []SchemaIssue {
	issues := fromReport(s.report, true)
	issues = append(issues, fromReport(validate.Sources(s.gen.Model()), false)...)
	for _, it := range pg.CheckIdentifiers(s.gen.Model()) {
		issues = append(issues, SchemaIssue{
			Entity:  it.Entity,
			Ident:   it.Ident,
			Kind:    "identifier",
			Code:    "identifier",
			Message: it.Message,
		})
	}
	return issues
}

func fromReport(r validate.Report, blocking bool) []SchemaIssue {
	out := make([]SchemaIssue, 0, len(r))
	for _, v := range r {
		out = append(out, SchemaIssue{
			Entity:   v.Entity,
			Kind:     string(v.Kind),
			Code:     v.Code,
			Message:  v.Message,
			Blocking: blocking,
		})
	}
	return out
}
