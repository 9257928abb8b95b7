package resolve

import (
	"fmt"
	"strings"

	"dvh/internal/dsl"
)

func isDerived(name string) bool {
	switch name {
	case "primary_key", "primary_key_format", "unique_key":
		return true
	}
	return false
}

// derive computes a key attribute on the fly for an entity whose setup has
// not stored it yet. Join predicates only exist after SetupForDML.
func (r *Resolver) derive(e *dsl.Entity, name string, depth int) (Values, bool, error) {
	switch name {
	case "primary_key":
		return r.primaryKey(e, "name", depth)
	case "primary_key_format":
		return r.primaryKey(e, "format", depth)
	case "unique_key":
		return r.uniqueKey(e, depth)
	}
	return nil, false, nil
}

// primaryKey resolves the key column names (field "name") or their formats
// (field "format").
//
//	Hub:         sur_key, else its single nat key
//	Link:        sur_key, else the foreign keys to its hubs
//	Sat/SatLink: for_key + lfc_dts
func (r *Resolver) primaryKey(e *dsl.Entity, field string, depth int) (Values, bool, error) {
	opt := func(path string) (Values, bool, error) {
		p, _ := ParsePath(path)
		return r.resolveDefault(e, p, false, depth)
	}
	switch e.Kind {
	case dsl.KindHub:
		if e.SurKey != nil {
			return opt("sur_key." + field)
		}
		if len(e.NatKeys) == 0 {
			return nil, false, nil
		}
		v, ok := e.NatKeys[0][field]
		if !ok {
			return nil, false, nil
		}
		return scalars(v), true, nil
	case dsl.KindLink:
		if e.SurKey != nil {
			return opt("sur_key." + field)
		}
		return opt("for_keys." + field)
	case dsl.KindSat, dsl.KindSatLink:
		fk, ok, err := opt("for_key." + field)
		if err != nil || !ok {
			return nil, false, err
		}
		lfc, ok, err := opt("lfc_dts." + field)
		if err != nil || !ok {
			return nil, false, err
		}
		return append(append(Values{}, fk...), lfc...), true, nil
	}
	return nil, false, nil
}

// uniqueKey is the business key kept unique next to a surrogate primary key.
func (r *Resolver) uniqueKey(e *dsl.Entity, depth int) (Values, bool, error) {
	if e.SurKey == nil {
		return nil, false, nil
	}
	switch e.Kind {
	case dsl.KindHub:
		return r.resolveDefault(e, Path{"nat_keys", "name"}, false, depth)
	case dsl.KindLink:
		return r.resolveDefault(e, Path{"for_keys", "name"}, false, depth)
	}
	return nil, false, nil
}

// SetupForDDL attaches the derived DDL attributes (primary_key, unique_key,
// primary_key_format) and fills sur_key, for_keys, for_key and lfc_dts from
// their defaults. Running it again yields the same entity.
func (r *Resolver) SetupForDDL(e *dsl.Entity) error {
	e.Derived = dsl.Derived{}

	switch e.Kind {
	case dsl.KindHub:
		if e.SurKey != nil {
			d, err := r.fill(e, "sur_key", e.SurKey)
			if err != nil {
				return err
			}
			e.SurKey = d
		}
	case dsl.KindLink:
		if e.SurKey != nil {
			d, err := r.fill(e, "sur_key", e.SurKey)
			if err != nil {
				return err
			}
			e.SurKey = d
		}
		fks, err := r.fillList(e, "for_keys", e.ForKeys, len(e.Hubs))
		if err != nil {
			return err
		}
		e.ForKeys = fks
	case dsl.KindSat, dsl.KindSatLink:
		if names, ok, err := r.ResolveDefault(e, "for_key.name", false); err != nil {
			return err
		} else if ok && len(names) == 1 {
			d, err := r.fill(e, "for_key", e.ForKey.Clone())
			if err != nil {
				return err
			}
			e.ForKey = d
		}
		d, err := r.fill(e, "lfc_dts", e.LfcDts.Clone())
		if err != nil {
			return err
		}
		e.LfcDts = d
	}

	pk, _, err := r.primaryKey(e, "name", 0)
	if err != nil {
		return err
	}
	pkf, _, err := r.primaryKey(e, "format", 0)
	if err != nil {
		return err
	}
	uk, _, err := r.uniqueKey(e, 0)
	if err != nil {
		return err
	}
	if pk == nil {
		return dsl.NewDefinitionError(e, "primary_key", "no primary key can be derived", nil)
	}
	e.Derived.PrimaryKey = pk.Strings()
	if pkf != nil {
		e.Derived.PrimaryKeyFormat = pkf.Strings()
	}
	if uk != nil {
		e.Derived.UniqueKey = uk.Strings()
	}
	e.Derived.DDLReady = true
	return nil
}

// fill completes name and format of a single descriptor from defaults.
// A nil descriptor starts empty; it stays nil when nothing resolves.
func (r *Resolver) fill(e *dsl.Entity, attr string, d dsl.Descriptor) (dsl.Descriptor, error) {
	out := d.Clone()
	if out == nil {
		out = dsl.Descriptor{}
	}
	for _, key := range []string{"name", "format"} {
		if out[key] != "" {
			continue
		}
		raw, ok := e.Defaults[attr+"."+key]
		if !ok {
			continue
		}
		vals, err := r.Eval(e, raw)
		if err != nil {
			return nil, dsl.NewDefinitionError(e, attr+"."+key, fmt.Sprintf("default %q failed", raw), err)
		}
		if len(vals) == 1 {
			out[key] = vals[0].String()
		}
	}
	if len(out) == 0 {
		return d, nil
	}
	return out, nil
}

// fillList completes a descriptor list (Link for_keys) element by element.
// An absent list is built with n elements from the defaults.
func (r *Resolver) fillList(e *dsl.Entity, attr string, ds []dsl.Descriptor, n int) ([]dsl.Descriptor, error) {
	names, ok, err := r.ResolveDefault(e, attr+".name", false)
	if err != nil || !ok {
		return ds, err
	}
	formats, _, err := r.ResolveDefault(e, attr+".format", false)
	if err != nil {
		return nil, err
	}
	size := len(ds)
	if ds == nil {
		size = n
	}
	if len(names) != size {
		return ds, nil
	}

	out := make([]dsl.Descriptor, size)
	for i := range out {
		d := dsl.Descriptor{}
		if ds != nil {
			d = ds[i].Clone()
		}
		if d["name"] == "" {
			d["name"] = names[i].String()
		}
		if d["format"] == "" && len(formats) == size {
			d["format"] = formats[i].String()
		}
		out[i] = d
	}
	return out, nil
}

// SetupForDML attaches keys_join and nat_keys_join, and the src inherited
// from the parents when e declares none. It runs SetupForDDL first when
// needed.
func (r *Resolver) SetupForDML(e *dsl.Entity) error {
	if !e.Derived.DDLReady {
		if err := r.SetupForDDL(e); err != nil {
			return err
		}
	}
	if e.Src == "" {
		e.Derived.Src = r.model.SourceOf(e)
	}
	keys, natKeys, err := r.joins(e, 0)
	if err != nil {
		return err
	}
	e.Derived.KeysJoin = keys
	e.Derived.NatKeysJoin = natKeys
	e.Derived.DMLReady = true
	return nil
}

// joins builds the join predicates used by load statements:
//
//	Hub:     nat_keys_join  nat_keys.src = nat_keys.name
//	Link:    keys_join      for_keys.name = hubs.primary_key
//	         nat_keys_join  hubs.nat_keys.src = hubs.nat_keys.name
//	Sat:     keys_join      for_key.name = hub.primary_key
//	         nat_keys_join  hub.nat_keys.src = hub.nat_keys.name
//	SatLink: keys_join      for_key.name = link.primary_key
func (r *Resolver) joins(e *dsl.Entity, depth int) (keys, natKeys string, err error) {
	must := func(path string) ([]string, error) {
		p, _ := ParsePath(path)
		vals, _, err := r.resolveDefault(e, p, true, depth)
		if err != nil {
			return nil, err
		}
		return vals.Strings(), nil
	}
	natKeyPairs := func(path string) (string, error) {
		p, _ := ParsePath(path)
		vals, _, err := r.resolveDefault(e, p, true, depth)
		if err != nil {
			return "", err
		}
		left := make([]string, 0, len(vals))
		right := make([]string, 0, len(vals))
		for _, v := range vals {
			if v.Mapping == nil {
				return "", dsl.NewDefinitionError(e, path, "expected key descriptors", nil)
			}
			src, ok := v.Mapping.Src()
			if !ok {
				return "", dsl.NewDefinitionError(e, path,
					fmt.Sprintf("natural key %q has no 'src'", v.Mapping.Name()), nil)
			}
			left = append(left, src)
			right = append(right, v.Mapping.Name())
		}
		s, err := JoinPairs(left, right)
		if err != nil {
			return "", dsl.NewDefinitionError(e, path, "cannot build join", err)
		}
		return s, nil
	}
	keyPairs := func(from, to string) (string, error) {
		left, err := must(from)
		if err != nil {
			return "", err
		}
		right, err := must(to)
		if err != nil {
			return "", err
		}
		s, err := JoinPairs(left, right)
		if err != nil {
			return "", dsl.NewDefinitionError(e, from, "cannot build join", err)
		}
		return s, nil
	}

	switch e.Kind {
	case dsl.KindHub:
		natKeys, err = natKeyPairs("nat_keys")
		return "", natKeys, err
	case dsl.KindLink:
		if keys, err = keyPairs("for_keys.name", "hubs.primary_key"); err != nil {
			return "", "", err
		}
		natKeys, err = natKeyPairs("hubs.nat_keys")
		return keys, natKeys, err
	case dsl.KindSat:
		if keys, err = keyPairs("for_key.name", "hub.primary_key"); err != nil {
			return "", "", err
		}
		natKeys, err = natKeyPairs("hub.nat_keys")
		return keys, natKeys, err
	case dsl.KindSatLink:
		keys, err = keyPairs("for_key.name", "link.primary_key")
		return keys, "", err
	}
	return "", "", nil
}

// JoinPairs zips two name lists into "l1 = r1 and l2 = r2".
func JoinPairs(left, right []string) (string, error) {
	if len(left) != len(right) {
		return "", fmt.Errorf("%d source names against %d target names", len(left), len(right))
	}
	if len(left) == 0 {
		return "", fmt.Errorf("nothing to join")
	}
	pairs := make([]string, len(left))
	for i := range left {
		pairs[i] = left[i] + " = " + right[i]
	}
	return strings.Join(pairs, " and "), nil
}
