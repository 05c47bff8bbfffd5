// Package features turns dataset records into the fixed numeric rows the
// forest is trained on and queried with.
package features

import (
	"fmt"
	"sort"
	"strings"

	"autovaluate/internal/common"
	"autovaluate/internal/dataset"

	"github.com/rs/zerolog/log"
)

// Column is one encoded feature. Numeric columns carry only Name; indicator
// columns also carry the attribute and category value they stand for.
type Column struct {
	Name      string `json:"name"`
	Attribute string `json:"attribute"`
	Value     string `json:"value,omitempty"`
}

// Indicator reports whether the column is a one-hot indicator.
func (c Column) Indicator() bool { return c.Value != "" }

// Schema is the ordered feature layout fixed at training time.
type Schema struct {
	Columns []Column `json:"columns"`
}

// Names returns the column names in order.
func (s Schema) Names() []string {
	out := make([]string, len(s.Columns))
	for i, c := range s.Columns {
		out[i] = c.Name
	}
	return out
}

func (s Schema) Len() int { return len(s.Columns) }

// Validate checks that column names are unique and indicators are well formed.
func (s Schema) Validate() error {
	if len(s.Columns) == 0 {
		return fmt.Errorf("schema has no columns")
	}
	seen := make(map[string]struct{}, len(s.Columns))
	for i, c := range s.Columns {
		if c.Name == "" {
			return fmt.Errorf("column %d has no name", i)
		}
		if _, dup := seen[c.Name]; dup {
			return fmt.Errorf("duplicate column %q", c.Name)
		}
		seen[c.Name] = struct{}{}
		if c.Indicator() && c.Name != IndicatorName(c.Attribute, c.Value) {
			return fmt.Errorf("indicator column %q does not match %s=%s", c.Name, c.Attribute, c.Value)
		}
	}
	return nil
}

// IndicatorName names the one-hot column for an attribute value.
func IndicatorName(attribute, value string) string {
	return attribute + "_" + value
}

// BuildSchema derives the layout from a training dataset: numeric attributes
// in header order, then one indicator per distinct value of each categorical
// attribute, values sorted. Attributes the dataset lacks are left out.
func BuildSchema(ds *dataset.Dataset) Schema {
	var s Schema

	for _, col := range ds.Columns {
		if isNumeric(col) {
			s.Columns = append(s.Columns, Column{Name: col, Attribute: col})
		}
	}

	for _, attr := range common.CategoricalColumns {
		if !ds.Has(attr) {
			log.Warn().Str("attribute", attr).Msg("Categorical column missing from dataset, dropped from schema")
			continue
		}
		values := make(map[string]struct{})
		for _, rec := range ds.Records {
			v, _ := rec.Category(attr)
			if strings.TrimSpace(v) == "" {
				continue
			}
			values[v] = struct{}{}
		}
		sorted := make([]string, 0, len(values))
		for v := range values {
			sorted = append(sorted, v)
		}
		sort.Strings(sorted)
		for _, v := range sorted {
			s.Columns = append(s.Columns, Column{Name: IndicatorName(attr, v), Attribute: attr, Value: v})
		}
	}

	for _, col := range common.NumericColumns {
		if !ds.Has(col) {
			log.Warn().Str("attribute", col).Msg("Numeric column missing from dataset, dropped from schema")
		}
	}

	return s
}

func isNumeric(col string) bool {
	for _, c := range common.NumericColumns {
		if c == col {
			return true
		}
	}
	return false
}
