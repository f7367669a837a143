// Package catalog holds the immutable category/topic lookup table that
// feeds the dashboard. A Catalog is built once and passed into the state
// machines that read it.
package catalog

import (
	_ "embed"
	"fmt"
	"os"
	"strconv"

	"github.com/astrobio/progression/engine/domain"
	"gopkg.in/yaml.v3"
)

//go:embed catalog.yaml
var defaultYAML []byte

// Catalog is a validated, read-only set of categories in display order.
type Catalog struct {
	order []string
	byKey map[string]Category
}

// New validates categories and builds a Catalog from them.
func New(categories []Category) (*Catalog, error) {
	c := &Catalog{byKey: make(map[string]Category, len(categories))}
	for _, cat := range categories {
		if err := validateCategory(cat); err != nil {
			return nil, err
		}
		if _, dup := c.byKey[cat.Key]; dup {
			return nil, domain.NewValidationError("key", cat.Key, domain.ErrDuplicate)
		}
		c.byKey[cat.Key] = cat.clone()
		c.order = append(c.order, cat.Key)
	}
	return c, nil
}

// Default returns the built-in catalog.
func Default() *Catalog {
	c, err := Parse(defaultYAML)
	if err != nil {
		panic(fmt.Sprintf("catalog: embedded catalog invalid: %v", err))
	}
	return c
}

// Parse builds a Catalog from YAML.
func Parse(data []byte) (*Catalog, error) {
	var f file
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("catalog: parse: %w", err)
	}
	return New(f.Categories)
}

// Load reads a catalog YAML file. An empty path yields the built-in catalog.
func Load(path string) (*Catalog, error) {
	if path == "" {
		return Default(), nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("catalog: read %s: %w", path, err)
	}
	return Parse(data)
}

// Lookup returns the category for key.
func (c *Catalog) Lookup(key string) (Category, bool) {
	cat, ok := c.byKey[key]
	if !ok {
		return Category{}, false
	}
	return cat.clone(), true
}

// Categories returns all categories in display order.
func (c *Catalog) Categories() []Category {
	out := make([]Category, 0, len(c.order))
	for _, k := range c.order {
		out = append(out, c.byKey[k].clone())
	}
	return out
}

// Keys returns the category keys in display order.
func (c *Catalog) Keys() []string {
	out := make([]string, len(c.order))
	copy(out, c.order)
	return out
}

// Len returns the number of categories.
func (c *Catalog) Len() int { return len(c.order) }

func validateCategory(cat Category) error {
	if err := domain.ValidateKey("key", cat.Key); err != nil {
		return err
	}
	if cat.Label == "" {
		return domain.NewValidationError("label", cat.Key, domain.ErrEmptyField)
	}
	if cat.ProgressPct < 0 || cat.ProgressPct > 100 {
		return domain.NewValidationError("progress_pct", strconv.Itoa(cat.ProgressPct), domain.ErrOutOfRange)
	}
	seen := make(map[string]bool, len(cat.Topics))
	for _, t := range cat.Topics {
		if t.Name == "" {
			return domain.NewValidationError("topic.name", cat.Key, domain.ErrEmptyField)
		}
		if seen[t.Name] {
			return domain.NewValidationError("topic.name", t.Name, domain.ErrDuplicate)
		}
		seen[t.Name] = true
		if t.MentionCount < 0 {
			return domain.NewValidationError("topic.mention_count", strconv.Itoa(t.MentionCount), domain.ErrOutOfRange)
		}
		if t.ConsensusPct < 0 || t.ConsensusPct > 100 {
			return domain.NewValidationError("topic.consensus_pct", strconv.FormatFloat(t.ConsensusPct, 'f', -1, 64), domain.ErrOutOfRange)
		}
	}
	return nil
}
