// Package templates loads the template dictionary: DDL, DML and drop
// templates keyed by entity variant and optional custom suffix, plus default
// override tables.
package templates

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"dvh/internal/dsl"
)

var ErrTemplateNotFound = errors.New("dvh: template not found")

// Section is the kind of statement a template produces.
type Section string

const (
	SectionDDL  Section = "ddl"
	SectionDML  Section = "dml"
	SectionDrop Section = "drop"
)

// Catalog keys are lower-case "<variant>[_<suffix>]": "hub", "sat_multi".
type Catalog struct {
	DDL      map[string]string
	DML      map[string][]string
	Drop     map[string]string
	Defaults map[dsl.Kind]dsl.Defaults
}

func NewCatalog() *Catalog {
	return &Catalog{
		DDL:      map[string]string{},
		DML:      map[string][]string{},
		Drop:     map[string]string{},
		Defaults: map[dsl.Kind]dsl.Defaults{},
	}
}

// Key is the lookup key of e's templates.
func Key(e *dsl.Entity) string {
	k := e.Kind.Key()
	if t := strings.TrimSpace(e.Template); t != "" {
		k += "_" + strings.ToLower(t)
	}
	return k
}

func (c *Catalog) DDLFor(e *dsl.Entity) (string, error) {
	t, ok := c.DDL[Key(e)]
	if !ok {
		return "", notFound(e, SectionDDL)
	}
	return t, nil
}

func (c *Catalog) DMLFor(e *dsl.Entity) ([]string, error) {
	t, ok := c.DML[Key(e)]
	if !ok {
		return nil, notFound(e, SectionDML)
	}
	return t, nil
}

func (c *Catalog) DropFor(e *dsl.Entity) (string, error) {
	t, ok := c.Drop[Key(e)]
	if !ok {
		return "", notFound(e, SectionDrop)
	}
	return t, nil
}

func notFound(e *dsl.Entity, s Section) error {
	return dsl.NewDefinitionError(e, "",
		fmt.Sprintf("template '%s_%s' definition not found", s, Key(e)), ErrTemplateNotFound)
}

// Len is the number of templates across sections.
func (c *Catalog) Len() int { return len(c.DDL) + len(c.DML) + len(c.Drop) }

// Parse decodes one template document:
//
//	defaults:
//	  hub: {sur_key.format: BIGINT}
//	ddl_hub: |
//	  CREATE TABLE <name> (...)
//	dml_hub:
//	  - INSERT INTO <name> ...
//	drop_hub: DROP TABLE <name>;
//
// Keys are case-insensitive. A DML entry may be a single string.
func Parse(data []byte) (*Catalog, error) {
	var doc map[string]yaml.Node
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, err
	}
	c := NewCatalog()
	for rawKey, node := range doc {
		key := strings.ToLower(strings.TrimSpace(rawKey))
		if key == "defaults" {
			if err := c.decodeDefaults(&node); err != nil {
				return nil, err
			}
			continue
		}
		section, rest, ok := strings.Cut(key, "_")
		if !ok || rest == "" {
			return nil, fmt.Errorf("line %d: template key %q must look like ddl_<variant>[_<suffix>]", node.Line, rawKey)
		}
		if err := checkVariant(rest); err != nil {
			return nil, fmt.Errorf("line %d: %w", node.Line, err)
		}
		switch Section(section) {
		case SectionDDL, SectionDrop:
			if node.Kind != yaml.ScalarNode {
				return nil, fmt.Errorf("line %d: %s must be a string", node.Line, rawKey)
			}
			if Section(section) == SectionDDL {
				c.DDL[rest] = node.Value
			} else {
				c.Drop[rest] = node.Value
			}
		case SectionDML:
			steps, err := decodeSteps(&node)
			if err != nil {
				return nil, fmt.Errorf("line %d: %s: %w", node.Line, rawKey, err)
			}
			c.DML[rest] = steps
		default:
			return nil, fmt.Errorf("line %d: unknown template section %q", node.Line, section)
		}
	}
	return c, nil
}

// checkVariant accepts "hub", "sat_multi", "satlink", "satlink_x".
func checkVariant(rest string) error {
	v, _, _ := strings.Cut(rest, "_")
	if _, ok := dsl.ParseKind(v); ok {
		return nil
	}
	return fmt.Errorf("unknown entity type in template key %q", rest)
}

func decodeSteps(n *yaml.Node) ([]string, error) {
	switch n.Kind {
	case yaml.ScalarNode:
		return []string{n.Value}, nil
	case yaml.SequenceNode:
		var steps []string
		if err := n.Decode(&steps); err != nil {
			return nil, err
		}
		return steps, nil
	}
	return nil, fmt.Errorf("expected a statement or a list of statements")
}

func (c *Catalog) decodeDefaults(n *yaml.Node) error {
	var raw map[string]map[string]string
	if err := n.Decode(&raw); err != nil {
		return fmt.Errorf("line %d: defaults: %w", n.Line, err)
	}
	for k, d := range raw {
		kind, ok := dsl.ParseKind(k)
		if !ok {
			return fmt.Errorf("line %d: defaults for unknown entity type %q", n.Line, k)
		}
		c.Defaults[kind] = c.Defaults[kind].Merge(d)
	}
	return nil
}

// Merge adds other's templates; a key defined twice is an error.
func (c *Catalog) Merge(other *Catalog) error {
	for k, v := range other.DDL {
		if _, dup := c.DDL[k]; dup {
			return fmt.Errorf("duplicate template ddl_%s", k)
		}
		c.DDL[k] = v
	}
	for k, v := range other.DML {
		if _, dup := c.DML[k]; dup {
			return fmt.Errorf("duplicate template dml_%s", k)
		}
		c.DML[k] = v
	}
	for k, v := range other.Drop {
		if _, dup := c.Drop[k]; dup {
			return fmt.Errorf("duplicate template drop_%s", k)
		}
		c.Drop[k] = v
	}
	for k, d := range other.Defaults {
		c.Defaults[k] = c.Defaults[k].Merge(d)
	}
	return nil
}

// Load reads a template file, or every *.yaml/*.yml file of a directory.
func Load(path string) (*Catalog, error) {
	st, err := os.Stat(path)
	if err != nil {
		return nil, err
	}
	if !st.IsDir() {
		return loadFile(path)
	}

	result := NewCatalog()
	err = filepath.WalkDir(path, func(p string, d fs.DirEntry, walkErr error) error {
		if walkErr != nil {
			return walkErr
		}
		ext := strings.ToLower(filepath.Ext(d.Name()))
		if d.IsDir() || (ext != ".yaml" && ext != ".yml") {
			return nil
		}
		c, err := loadFile(p)
		if err != nil {
			return err
		}
		if err := result.Merge(c); err != nil {
			return fmt.Errorf("%w (file: %s)", err, p)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

func loadFile(path string) (*Catalog, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	c, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	return c, nil
}
