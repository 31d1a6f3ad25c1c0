// Package keywords holds the keyword catalog that classifies command tokens.
//
// Every slice in the catalog is ordered and the order is part of the contract:
// a fixed keyword's position selects its overview field and output line, and a
// selector's position selects the upstream function and the number of entries
// shown. Reordering the catalog file is a breaking change.
package keywords

import (
	_ "embed"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"gopkg.in/yaml.v3"
)

// OverviewKeyword is the literal that requests every fixed field.
const OverviewKeyword = "overview"

// FixedKeywordCount is the number of overview fields a fixed keyword can bind to.
const FixedKeywordCount = 6

const (
	timeSelectorCount  = 2
	rangeSelectorCount = 3
)

// Time selector positions
const (
	TimeCurrent = iota
	TimeYesterday
)

// Range selector positions
const (
	RangeLastWeek = iota
	RangeLastMonth
	RangeLastYear
)

//go:embed keywords.json
var defaultCatalogJSON []byte

// Catalog is the immutable keyword table loaded once at startup.
type Catalog struct {
	Keywords           []string `json:"keywords" yaml:"keywords"`
	ModifiableKeywords []string `json:"modifiableKeywords" yaml:"modifiableKeywords"`
	TimeSelector       []string `json:"timeSelector" yaml:"timeSelector"`
	RangeSelector      []string `json:"rangeSelector" yaml:"rangeSelector"`
}

// Default returns the catalog shipped with the binary.
func Default() *Catalog {
	c, err := Parse(defaultCatalogJSON, ".json")
	if err != nil {
		panic(fmt.Sprintf("keywords: embedded catalog is invalid: %v", err))
	}
	return c
}

// Load reads a catalog file. The format follows the extension: .yaml/.yml is
// YAML, anything else JSON. An empty path returns the default catalog.
func Load(path string) (*Catalog, error) {
	if strings.TrimSpace(path) == "" {
		return Default(), nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read keyword catalog: %w", err)
	}
	c, err := Parse(data, filepath.Ext(path))
	if err != nil {
		return nil, fmt.Errorf("keyword catalog %s: %w", path, err)
	}
	return c, nil
}

// Parse decodes and validates a catalog document.
func Parse(data []byte, ext string) (*Catalog, error) {
	var c Catalog
	switch strings.ToLower(ext) {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(data, &c); err != nil {
			return nil, fmt.Errorf("decode yaml: %w", err)
		}
	default:
		if err := json.Unmarshal(data, &c); err != nil {
			return nil, fmt.Errorf("decode json: %w", err)
		}
	}
	if err := c.Validate(); err != nil {
		return nil, err
	}
	return &c, nil
}

// New builds a catalog from explicit slices. The slices are copied.
func New(fixed, modifiable, timeSel, rangeSel []string) (*Catalog, error) {
	c := &Catalog{
		Keywords:           slices.Clone(fixed),
		ModifiableKeywords: slices.Clone(modifiable),
		TimeSelector:       slices.Clone(timeSel),
		RangeSelector:      slices.Clone(rangeSel),
	}
	if err := c.Validate(); err != nil {
		return nil, err
	}
	return c, nil
}

// Validate checks the catalog's shape.
func (c *Catalog) Validate() error {
	if len(c.Keywords) != FixedKeywordCount {
		return fmt.Errorf("keywords must have %d entries, got %d", FixedKeywordCount, len(c.Keywords))
	}
	if len(c.ModifiableKeywords) == 0 {
		return fmt.Errorf("modifiableKeywords must not be empty")
	}
	if len(c.TimeSelector) != timeSelectorCount {
		return fmt.Errorf("timeSelector must have %d entries, got %d", timeSelectorCount, len(c.TimeSelector))
	}
	if len(c.RangeSelector) != rangeSelectorCount {
		return fmt.Errorf("rangeSelector must have %d entries, got %d", rangeSelectorCount, len(c.RangeSelector))
	}

	seen := make(map[string]string)
	groups := []struct {
		name   string
		tokens []string
	}{
		{"keywords", c.Keywords},
		{"modifiableKeywords", c.ModifiableKeywords},
		{"timeSelector", c.TimeSelector},
		{"rangeSelector", c.RangeSelector},
	}
	for _, g := range groups {
		for _, tok := range g.tokens {
			if tok == "" || strings.ContainsAny(tok, " \t\n:,") {
				return fmt.Errorf("%s: invalid token %q", g.name, tok)
			}
			if tok == OverviewKeyword {
				return fmt.Errorf("%s: %q is reserved", g.name, tok)
			}
			if prev, dup := seen[tok]; dup {
				return fmt.Errorf("token %q appears in both %s and %s", tok, prev, g.name)
			}
			seen[tok] = g.name
		}
	}
	return nil
}

// IsFixed reports whether tok is a fixed keyword.
func (c *Catalog) IsFixed(tok string) bool {
	return slices.Contains(c.Keywords, tok)
}

// IsModifiable reports whether tok is a modifiable keyword.
func (c *Catalog) IsModifiable(tok string) bool {
	return slices.Contains(c.ModifiableKeywords, tok)
}

// TimeIndex returns tok's position in the time selector, or -1.
func (c *Catalog) TimeIndex(tok string) int {
	return slices.Index(c.TimeSelector, tok)
}

// RangeIndex returns tok's position in the range selector, or -1.
func (c *Catalog) RangeIndex(tok string) int {
	return slices.Index(c.RangeSelector, tok)
}
