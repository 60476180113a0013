// Package catalog holds the fixed set of compliance indicators a provider
// is certified against. The catalog is immutable reference data: loaded once
// at process start, looked up everywhere, mutated never.
package catalog

import (
	_ "embed"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Indicator is a single compliance requirement, identified by a stable code
// such as "FIN-001".
type Indicator struct {
	ID          string `yaml:"id" json:"id"`
	Title       string `yaml:"title" json:"title"`
	Description string `yaml:"description" json:"description,omitempty"`
	Principle   string `yaml:"-" json:"principle"`
}

// Principle groups related indicators. Principles flagged mandatory-at-intake
// gate the document review stage: their indicators must leave pending before
// a project moves past document review.
type Principle struct {
	ID                string      `yaml:"id" json:"id"`
	Title             string      `yaml:"title" json:"title"`
	Description       string      `yaml:"description" json:"description,omitempty"`
	MandatoryAtIntake bool        `yaml:"mandatory_at_intake" json:"mandatory_at_intake"`
	Indicators        []Indicator `yaml:"indicators" json:"indicators"`
}

// Catalog is the loaded, validated indicator set.
type Catalog struct {
	principles []Principle
	byID       map[string]Indicator
	ordered    []Indicator
}

//go:embed default_catalog.yaml
var defaultCatalog []byte

type catalogFile struct {
	Principles []Principle `yaml:"principles"`
}

// Load reads a catalog from a YAML file. An empty path loads the embedded
// default catalog.
func Load(path string) (*Catalog, error) {
	raw := defaultCatalog
	if path != "" {
		b, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read catalog file: %w", err)
		}
		raw = b
	}
	var file catalogFile
	if err := yaml.Unmarshal(raw, &file); err != nil {
		return nil, fmt.Errorf("parse catalog: %w", err)
	}
	return build(file.Principles)
}

// Default loads the embedded catalog. It panics on a malformed embed, which
// only happens when the checked-in YAML is broken.
func Default() *Catalog {
	c, err := Load("")
	if err != nil {
		panic(fmt.Sprintf("embedded catalog invalid: %v", err))
	}
	return c
}

func build(principles []Principle) (*Catalog, error) {
	if len(principles) == 0 {
		return nil, fmt.Errorf("catalog has no principles")
	}
	c := &Catalog{
		principles: principles,
		byID:       make(map[string]Indicator),
	}
	for pi := range principles {
		p := &principles[pi]
		if p.ID == "" {
			return nil, fmt.Errorf("principle %d missing id", pi)
		}
		if len(p.Indicators) == 0 {
			return nil, fmt.Errorf("principle %q has no indicators", p.ID)
		}
		for ii := range p.Indicators {
			ind := &p.Indicators[ii]
			if ind.ID == "" {
				return nil, fmt.Errorf("principle %q: indicator %d missing id", p.ID, ii)
			}
			if _, dup := c.byID[ind.ID]; dup {
				return nil, fmt.Errorf("duplicate indicator id %q", ind.ID)
			}
			ind.Principle = p.ID
			c.byID[ind.ID] = *ind
			c.ordered = append(c.ordered, *ind)
		}
	}
	return c, nil
}

// Lookup returns the indicator for a code; ok is false for unknown codes.
func (c *Catalog) Lookup(id string) (Indicator, bool) {
	ind, ok := c.byID[id]
	return ind, ok
}

// Indicators returns all indicators in catalog order.
func (c *Catalog) Indicators() []Indicator {
	return append([]Indicator{}, c.ordered...)
}

// Principles returns the principle groups in catalog order.
func (c *Catalog) Principles() []Principle {
	return append([]Principle{}, c.principles...)
}

// MandatoryIndicators returns the indicators of all mandatory-at-intake
// principles, in catalog order.
func (c *Catalog) MandatoryIndicators() []Indicator {
	var out []Indicator
	for _, p := range c.principles {
		if !p.MandatoryAtIntake {
			continue
		}
		for _, ind := range p.Indicators {
			out = append(out, ind)
		}
	}
	return out
}

// Size is the total indicator count.
func (c *Catalog) Size() int { return len(c.ordered) }
