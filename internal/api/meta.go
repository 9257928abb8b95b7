package api

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"dvh/internal/dsl"
)

// ===== META HANDLERS =====

type metaEntityListItem struct {
	Entity   string `json:"entity"`
	Kind     string `json:"kind"`
	Template string `json:"template,omitempty"`
}

func MetaListHandler(storage *Storage) gin.HandlerFunc {
	return func(c *gin.Context) {
		storage.mu.RLock()
		defer storage.mu.RUnlock()
		if storage.gen == nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"error": "No model loaded"})
			return
		}
		es := storage.entities()
		out := make([]metaEntityListItem, 0, len(es))
		for _, e := range es {
			out = append(out, metaEntityListItem{Entity: e.Name, Kind: e.Kind.String(), Template: e.Template})
		}
		c.JSON(http.StatusOK, out)
	}
}

// attributes shown per variant, resolved with defaults
var metaAttrs = map[dsl.Kind][]string{
	dsl.KindHub:     {"src", "sur_key", "nat_keys", "primary_key", "unique_key"},
	dsl.KindLink:    {"src", "hubs", "sur_key", "for_keys", "primary_key", "unique_key"},
	dsl.KindSat:     {"src", "hub", "for_key", "lfc_dts", "atts", "primary_key"},
	dsl.KindSatLink: {"src", "link", "for_key", "lfc_dts", "atts", "primary_key"},
}

type metaEntity struct {
	Entity     string              `json:"entity"`
	Kind       string              `json:"kind"`
	Template   string              `json:"template,omitempty"`
	Attributes map[string][]string `json:"attributes"`
	Extra      []string            `json:"extra,omitempty"`
}

func MetaEntityHandler(storage *Storage) gin.HandlerFunc {
	return func(c *gin.Context) {
		storage.mu.RLock()
		defer storage.mu.RUnlock()

		name, ok := storage.NormalizeEntityName(c.Param("entity"))
		if !ok {
			c.JSON(http.StatusNotFound, gin.H{"error": "Entity not found"})
			return
		}
		e := storage.gen.Model().Entities[name]
		r := storage.gen.Resolver()

		attrs := map[string][]string{}
		for _, a := range metaAttrs[e.Kind] {
			vals, ok, err := r.ResolveDefault(e, a, false)
			if err != nil {
				abortWith(c, err)
				return
			}
			if ok {
				attrs[a] = vals.Strings()
			}
		}
		extra := make([]string, 0, len(e.Extra))
		for k := range e.Extra {
			extra = append(extra, k)
		}

		c.JSON(http.StatusOK, metaEntity{
			Entity:     e.Name,
			Kind:       e.Kind.String(),
			Template:   e.Template,
			Attributes: attrs,
			Extra:      sortedCopy(extra),
		})
	}
}

// ResolveHandler evaluates ?path= against one entity, defaults included.
func ResolveHandler(storage *Storage) gin.HandlerFunc {
	return func(c *gin.Context) {
		path := strings.TrimSpace(c.Query("path"))
		if path == "" {
			c.JSON(http.StatusBadRequest, gin.H{"error": "path is required"})
			return
		}

		storage.mu.RLock()
		defer storage.mu.RUnlock()
		name, ok := storage.NormalizeEntityName(c.Param("entity"))
		if !ok {
			c.JSON(http.StatusNotFound, gin.H{"error": "Entity not found"})
			return
		}
		vals, ok, err := storage.gen.Resolver().ResolveDefault(storage.gen.Model().Entities[name], path, false)
		if err != nil {
			abortWith(c, err)
			return
		}
		resp := gin.H{"entity": name, "path": path, "present": ok}
		if ok {
			resp["values"] = vals.Strings()
		}
		c.JSON(http.StatusOK, resp)
	}
}
