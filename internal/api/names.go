package api

import "strings"

// NormalizeEntityName returns the model's spelling of name. An exact match
// wins; otherwise the name must match exactly one entity case-insensitively.
// Callers hold the lock.
func (s *Storage) NormalizeEntityName(name string) (string, bool) {
	name = strings.TrimSpace(name)
	if name == "" || s.gen == nil {
		return "", false
	}
	entities := s.gen.Model().Entities
	if _, ok := entities[name]; ok {
		return name, true
	}

	var found string
	for n := range entities {
		if strings.EqualFold(n, name) {
			if found != "" { // ambiguous
				return "", false
			}
			found = n
		}
	}
	return found, found != ""
}

// normalizeAll maps every requested name; the first unknown one is returned
// as missing.
func (s *Storage) normalizeAll(names []string) (out []string, missing string) {
	for _, n := range names {
		for _, part := range strings.Split(n, ",") {
			if strings.TrimSpace(part) == "" {
				continue
			}
			fq, ok := s.NormalizeEntityName(part)
			if !ok {
				return nil, part
			}
			out = append(out, fq)
		}
	}
	return out, ""
}
