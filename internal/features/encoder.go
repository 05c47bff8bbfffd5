package features

import (
	"fmt"

	"autovaluate/internal/dataset"
)

type indicatorKey struct {
	attribute string
	value     string
}

// Encoder maps records onto a schema. It is built once and is safe for
// concurrent use since it is never mutated after construction.
type Encoder struct {
	schema     Schema
	numeric    map[string]int
	indicators map[indicatorKey]int
	attributes []string
}

func NewEncoder(s Schema) (*Encoder, error) {
	if err := s.Validate(); err != nil {
		return nil, fmt.Errorf("invalid schema: %w", err)
	}

	e := &Encoder{
		schema:     s,
		numeric:    make(map[string]int),
		indicators: make(map[indicatorKey]int),
	}
	for i, c := range s.Columns {
		if c.Indicator() {
			if !e.hasAttribute(c.Attribute) {
				e.attributes = append(e.attributes, c.Attribute)
			}
			e.indicators[indicatorKey{c.Attribute, c.Value}] = i
		} else {
			e.numeric[c.Name] = i
		}
	}
	return e, nil
}

func (e *Encoder) hasAttribute(attr string) bool {
	for _, a := range e.attributes {
		if a == attr {
			return true
		}
	}
	return false
}

func (e *Encoder) Schema() Schema { return e.schema }

func (e *Encoder) Width() int { return len(e.schema.Columns) }

// Known reports whether the schema has an indicator for the pair.
func (e *Encoder) Known(attribute, value string) bool {
	_, ok := e.indicators[indicatorKey{attribute, value}]
	return ok
}

// Encode builds one row. Categorical values absent from the schema leave
// every indicator of that attribute at zero.
func (e *Encoder) Encode(r dataset.Record) []float64 {
	row := make([]float64, len(e.schema.Columns))
	for name, idx := range e.numeric {
		v, _ := r.Numeric(name)
		row[idx] = v
	}
	for _, attr := range e.attributes {
		v, _ := r.Category(attr)
		if idx, ok := e.indicators[indicatorKey{attr, v}]; ok {
			row[idx] = 1
		}
	}
	return row
}

// EncodeAll encodes records and returns the matching price targets.
func (e *Encoder) EncodeAll(records []dataset.Record) (X [][]float64, y []float64) {
	X = make([][]float64, len(records))
	y = make([]float64, len(records))
	for i, r := range records {
		X[i] = e.Encode(r)
		y[i] = r.Price
	}
	return X, y
}
