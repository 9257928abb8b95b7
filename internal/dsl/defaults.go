package dsl

// Defaults maps an attribute path ("sur_key.name") to a default expression
// ("<name>_key"). Expressions are parsed by the resolver.
type Defaults map[string]string

var builtinDefaults = map[Kind]Defaults{
	KindHub: {
		"sur_key.name":   "<name>_key",
		"sur_key.format": "NUMBER(9)",
	},
	KindLink: {
		"sur_key.name":    "<name>_key",
		"sur_key.format":  "NUMBER(9)",
		"for_keys.name":   "<hubs.primary_key>",
		"for_keys.format": "<hubs.primary_key_format>",
	},
	KindSat: {
		"for_key.name":   "<hub.primary_key>",
		"for_key.format": "<hub.primary_key_format>",
		"lfc_dts.name":   "effective_date",
		"lfc_dts.format": "DATE",
	},
	KindSatLink: {
		"for_key.name":   "<link.primary_key>",
		"for_key.format": "<link.primary_key_format>",
		"lfc_dts.name":   "effective_date",
		"lfc_dts.format": "DATE",
	},
}

// BuiltinDefaults returns a copy of the variant's built-in table.
func BuiltinDefaults(k Kind) Defaults {
	return builtinDefaults[k].Merge(nil)
}

// Merge returns a new table with over applied on top of d.
func (d Defaults) Merge(over Defaults) Defaults {
	out := make(Defaults, len(d)+len(over))
	for k, v := range d {
		out[k] = v
	}
	for k, v := range over {
		out[k] = v
	}
	return out
}

// optionalFeatures are attributes whose absence is meaningful: defaults of
// their sub-paths apply only when the attribute itself is declared.
var optionalFeatures = map[Kind]map[string]bool{
	KindHub:  {"sur_key": true},
	KindLink: {"sur_key": true},
}

// IsOptionalFeature reports whether attr is an optional structural feature of k.
func IsOptionalFeature(k Kind, attr string) bool {
	return optionalFeatures[k][attr]
}
