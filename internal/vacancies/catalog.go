package vacancies

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// Catalog is the read-only, order-preserving list of vacancies loaded at startup.
type Catalog struct {
	items  []Vacancy
	byName map[string]int
}

// Load reads the catalog at path. JSON is the default; .yaml and .yml files are parsed as YAML.
func Load(path string) (*Catalog, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("%w: read %s: %v", ErrCatalogUnavailable, path, err)
	}
	var format string
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		format = "yaml"
	default:
		format = "json"
	}
	c, err := Parse(data, format)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return c, nil
}

// Parse decodes a catalog document in the given format ("json" or "yaml").
func Parse(data []byte, format string) (*Catalog, error) {
	var raw []sourceVacancy
	switch format {
	case "yaml":
		if err := yaml.Unmarshal(data, &raw); err != nil {
			return nil, fmt.Errorf("%w: decode yaml: %v", ErrCatalogUnavailable, err)
		}
	default:
		if err := json.Unmarshal(data, &raw); err != nil {
			return nil, fmt.Errorf("%w: decode json: %v", ErrCatalogUnavailable, err)
		}
	}
	return newCatalog(raw)
}

// New builds a catalog from already decoded vacancies, applying the same validation as Load.
func New(items []Vacancy) (*Catalog, error) {
	c := &Catalog{byName: make(map[string]int, len(items))}
	for i, v := range items {
		if strings.TrimSpace(v.Name) == "" {
			return nil, fmt.Errorf("%w: vacancy %d has no name", ErrCatalogUnavailable, i)
		}
		if _, dup := c.byName[v.Name]; dup {
			return nil, fmt.Errorf("%w: duplicate vacancy name %q", ErrCatalogUnavailable, v.Name)
		}
		c.byName[v.Name] = len(c.items)
		c.items = append(c.items, Vacancy{
			Name:              v.Name,
			SuitabilityNeeded: v.SuitabilityNeeded,
			Requirements:      append([]string(nil), v.Requirements...),
			PlusDetails:       append([]string(nil), v.PlusDetails...),
			Notes:             v.Notes,
		})
	}
	return c, nil
}

func newCatalog(raw []sourceVacancy) (*Catalog, error) {
	if raw == nil {
		return nil, fmt.Errorf("%w: expected a list of vacancies", ErrCatalogUnavailable)
	}
	items := make([]Vacancy, 0, len(raw))
	for i, r := range raw {
		if r.Name == nil {
			return nil, fmt.Errorf("%w: vacancy %d: missing name", ErrCatalogUnavailable, i)
		}
		if len(r.Description) == 0 {
			return nil, fmt.Errorf("%w: vacancy %q: description[0].requirements missing", ErrCatalogUnavailable, *r.Name)
		}
		if len(r.WouldBePlus) == 0 {
			return nil, fmt.Errorf("%w: vacancy %q: would_be_plus[0].details missing", ErrCatalogUnavailable, *r.Name)
		}
		items = append(items, Vacancy{
			Name:              *r.Name,
			SuitabilityNeeded: r.SuitabilityNeeded,
			Requirements:      r.Description[0].Requirements,
			PlusDetails:       r.WouldBePlus[0].Details,
			Notes:             r.Notes,
		})
	}
	return New(items)
}

// All returns the vacancies in source order.
func (c *Catalog) All() []Vacancy {
	out := make([]Vacancy, len(c.items))
	copy(out, c.items)
	return out
}

// Names returns vacancy names in source order, for the selection control.
func (c *Catalog) Names() []string {
	out := make([]string, 0, len(c.items))
	for _, v := range c.items {
		out = append(out, v.Name)
	}
	return out
}

// Find returns the vacancy whose name matches exactly.
func (c *Catalog) Find(name string) (Vacancy, error) {
	i, ok := c.byName[name]
	if !ok {
		return Vacancy{}, fmt.Errorf("%w: %q", ErrNotFound, name)
	}
	return c.items[i], nil
}

// Len reports the number of vacancies.
func (c *Catalog) Len() int {
	return len(c.items)
}
