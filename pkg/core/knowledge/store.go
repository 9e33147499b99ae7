package knowledge

import (
	_ "embed"
	"fmt"
	"os"
	"strings"
	"sync"

	"deal_engine/pkg/models"

	"gopkg.in/yaml.v2"
)

//go:embed industries.yaml
var defaultTablesYAML []byte

var (
	defaultTables    *Tables
	defaultTablesErr error
	defaultOnce      sync.Once
)

// =============================================================================
// READ-ONLY TABLE STORE
// =============================================================================

// Tables is the immutable industry reference data. It is safe for concurrent
// use; every accessor returns a copy.
type Tables struct {
	industries []IndustryDefinition
	index      map[models.IndustryType]int
	fallback   Fallbacks
}

// Default returns the tables compiled into the binary.
func Default() (*Tables, error) {
	defaultOnce.Do(func() {
		defaultTables, defaultTablesErr = Parse(defaultTablesYAML)
	})
	return defaultTables, defaultTablesErr
}

// MustDefault is Default for program start-up and tests.
func MustDefault() *Tables {
	t, err := Default()
	if err != nil {
		panic(fmt.Sprintf("embedded industry tables are invalid: %v", err))
	}
	return t
}

// LoadFile reads a replacement table set from disk.
func LoadFile(path string) (*Tables, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read tables %s: %w", path, err)
	}
	t, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("failed to parse tables %s: %w", path, err)
	}
	return t, nil
}

// Parse builds tables from YAML and checks them for internal consistency.
func Parse(data []byte) (*Tables, error) {
	var doc document
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, err
	}

	t := &Tables{
		industries: make([]IndustryDefinition, 0, len(doc.Industries)),
		index:      make(map[models.IndustryType]int, len(doc.Industries)),
		fallback:   doc.Fallback,
	}

	for _, def := range doc.Industries {
		if def.Type == "" {
			return nil, fmt.Errorf("industry entry %d has no type", len(t.industries))
		}
		if _, dup := t.index[def.Type]; dup {
			return nil, fmt.Errorf("industry '%s' declared twice", def.Type)
		}
		if def.Valuation.MultipleRange.Default <= 0 {
			return nil, fmt.Errorf("industry '%s' has no default multiple", def.Type)
		}
		if def.Exit.Multiple <= 0 {
			return nil, fmt.Errorf("industry '%s' has no exit multiple", def.Type)
		}
		def = def.clone()
		def.Prefix = strings.ToLower(strings.TrimSpace(def.Prefix))
		for i, k := range def.Keywords {
			def.Keywords[i] = strings.ToLower(strings.TrimSpace(k))
		}
		for i, p := range def.FinancialPatterns {
			def.FinancialPatterns[i] = strings.ToLower(strings.TrimSpace(p))
		}

		t.index[def.Type] = len(t.industries)
		t.industries = append(t.industries, def)
	}

	if _, ok := t.index[models.IndustryGeneralBusiness]; !ok {
		return nil, fmt.Errorf("tables must define '%s'", models.IndustryGeneralBusiness)
	}
	if t.fallback.EarningsMultiple <= 0 || t.fallback.RevenueMultiple <= 0 {
		return nil, fmt.Errorf("fallback multiples must be positive")
	}
	if t.fallback.RevenueDiscount < 0 || t.fallback.RevenueDiscount >= 1 {
		return nil, fmt.Errorf("fallback revenue discount must be in [0,1)")
	}
	if t.fallback.ExitYear == 0 {
		t.fallback.ExitYear = 5
	}

	return t, nil
}

// Industries returns every definition in declaration order.
func (t *Tables) Industries() []IndustryDefinition {
	out := make([]IndustryDefinition, len(t.industries))
	for i, d := range t.industries {
		out[i] = d.clone()
	}
	return out
}

// Industry returns the definition for an industry type.
func (t *Tables) Industry(it models.IndustryType) (IndustryDefinition, bool) {
	i, ok := t.index[it]
	if !ok {
		return IndustryDefinition{}, false
	}
	return t.industries[i].clone(), true
}

// Lookup is Industry with general_business as the fallback.
func (t *Tables) Lookup(it models.IndustryType) IndustryDefinition {
	if d, ok := t.Industry(it); ok {
		return d
	}
	d, _ := t.Industry(models.IndustryGeneralBusiness)
	return d
}

// Fallback returns the table-wide defaults.
func (t *Tables) Fallback() Fallbacks {
	return t.fallback
}
