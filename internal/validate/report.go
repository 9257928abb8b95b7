package validate

import (
	"strings"

	"go.uber.org/multierr"
)

// Report is the list of violations found by one pass.
type Report []Violation

func (r Report) HasErrors() bool { return len(r) > 0 }

// String renders one violation per line.
func (r Report) String() string {
	var b strings.Builder
	for i, v := range r {
		if i > 0 {
			b.WriteByte('\n')
		}
		b.WriteString(v.Error())
	}
	return b.String()
}

// Err combines the violations into one error; nil for an empty report.
// multierr.Errors recovers the individual violations.
func (r Report) Err() error {
	var err error
	for _, v := range r {
		err = multierr.Append(err, v)
	}
	return err
}

// ByEntity groups violations under their entity name.
func (r Report) ByEntity() map[string][]Violation {
	out := map[string][]Violation{}
	for _, v := range r {
		out[v.Entity] = append(out[v.Entity], v)
	}
	return out
}
