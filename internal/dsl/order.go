package dsl

import "sort"

// OrderForCreate sorts entities by (tier, name): hubs before the links and
// satellites that reference them. The input slice is not modified.
func OrderForCreate(entities []*Entity) []*Entity {
	out := make([]*Entity, len(entities))
	copy(out, entities)
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Kind.Tier() != out[j].Kind.Tier() {
			return out[i].Kind.Tier() < out[j].Kind.Tier()
		}
		return out[i].Name < out[j].Name
	})
	return out
}

// OrderForDrop is the exact reverse of OrderForCreate.
func OrderForDrop(entities []*Entity) []*Entity {
	out := OrderForCreate(entities)
	for i, j := 0, len(out)-1; i < j; i, j = i+1, j-1 {
		out[i], out[j] = out[j], out[i]
	}
	return out
}
