package resolve

import "dvh/internal/dsl"

// Value is one resolved element: a scalar, a mapping passed through as a
// terminal structured value, or a related entity.
type Value struct {
	Scalar  string
	Mapping dsl.Descriptor
	Entity  *dsl.Entity
}

func (v Value) String() string {
	switch {
	case v.Entity != nil:
		return v.Entity.Name
	case v.Mapping != nil:
		return v.Mapping.String()
	}
	return v.Scalar
}

// Values is the list form every resolution returns.
type Values []Value

func (vs Values) Strings() []string {
	out := make([]string, len(vs))
	for i, v := range vs {
		out[i] = v.String()
	}
	return out
}

func scalars(ss ...string) Values {
	out := make(Values, len(ss))
	for i, s := range ss {
		out[i] = Value{Scalar: s}
	}
	return out
}
