package pg

import (
	"fmt"
	"strings"

	"dvh/internal/dsl"
)

// maxIdentLen is NAMEDATALEN-1; longer names are silently truncated.
const maxIdentLen = 63

var reserved = map[string]struct{}{
	"user": {}, "select": {}, "table": {}, "insert": {}, "update": {}, "delete": {},
	"where": {}, "join": {}, "group": {}, "order": {}, "limit": {}, "offset": {},
	"primary": {}, "foreign": {}, "key": {}, "constraint": {}, "default": {},
	"from": {}, "into": {}, "values": {}, "unique": {}, "index": {}, "create": {},
	"drop": {}, "alter": {}, "schema": {}, "grant": {}, "revoke": {}, "all": {},
	"and": {}, "or": {}, "not": {}, "null": {}, "check": {}, "column": {}, "end": {},
}

func isReserved(s string) bool { _, ok := reserved[strings.ToLower(s)]; return ok }

// Issue is an identifier the generated DDL would trip over.
type Issue struct {
	Entity  string `json:"entity"`
	Ident   string `json:"ident"`
	Message string `json:"message"`
}

func (i Issue) String() string {
	return fmt.Sprintf("%s: %q %s", i.Entity, i.Ident, i.Message)
}

// CheckIdentifiers looks at table and column names of every entity after
// setup: reserved words, names over the length limit, and columns declared
// twice in one table.
func CheckIdentifiers(m *dsl.Model) []Issue {
	var out []Issue
	for _, e := range m.All() {
		add := func(ident, msg string) {
			out = append(out, Issue{Entity: e.Name, Ident: ident, Message: msg})
		}
		check := func(ident string) {
			switch {
			case isReserved(ident):
				add(ident, "is a reserved word")
			case len(ident) > maxIdentLen:
				add(ident, fmt.Sprintf("is longer than %d bytes", maxIdentLen))
			}
		}

		check(e.Name)
		seen := map[string]bool{}
		for _, col := range columns(e) {
			if col == "" {
				continue
			}
			check(col)
			lc := strings.ToLower(col)
			if seen[lc] {
				add(col, "is declared twice")
			}
			seen[lc] = true
		}
	}
	return out
}

// columns lists the key and attribute columns of e.
func columns(e *dsl.Entity) []string {
	var cols []string
	if e.SurKey != nil {
		cols = append(cols, e.SurKey.Name())
	}
	for _, list := range [][]dsl.Descriptor{e.NatKeys, e.ForKeys} {
		for _, d := range list {
			cols = append(cols, d.Name())
		}
	}
	for _, d := range []dsl.Descriptor{e.ForKey, e.LfcDts} {
		if d != nil {
			cols = append(cols, d.Name())
		}
	}
	for _, d := range e.Atts {
		cols = append(cols, d.Name())
	}
	return cols
}
