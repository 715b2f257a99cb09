// Package domain defines the feature schema, raw form input, feature vector and
// the static category tables shared by the encoder and the inference service.
package domain

import (
	"fmt"
	"net/url"
)

// FeatureSchema is the ordered list of feature names a model was fit on.
// It is immutable after construction.
type FeatureSchema struct {
	names []string
	index map[string]int
}

// NewFeatureSchema builds a schema from names in model column order.
// Empty and duplicate names are rejected.
func NewFeatureSchema(names []string) (*FeatureSchema, error) {
	if len(names) == 0 {
		return nil, ErrEmptySchema
	}
	s := &FeatureSchema{
		names: make([]string, len(names)),
		index: make(map[string]int, len(names)),
	}
	for i, n := range names {
		if n == "" {
			return nil, fmt.Errorf("%w: empty name at position %d", ErrInvalidSchema, i)
		}
		if prev, ok := s.index[n]; ok {
			return nil, fmt.Errorf("%w: %q at positions %d and %d", ErrInvalidSchema, n, prev, i)
		}
		s.names[i] = n
		s.index[n] = i
	}
	return s, nil
}

// MustFeatureSchema is NewFeatureSchema that panics on error. Intended for tests
// and static tables.
func MustFeatureSchema(names ...string) *FeatureSchema {
	s, err := NewFeatureSchema(names)
	if err != nil {
		panic(err)
	}
	return s
}

// Names returns a copy of the feature names in order.
func (s *FeatureSchema) Names() []string {
	out := make([]string, len(s.names))
	copy(out, s.names)
	return out
}

// Len returns the number of features.
func (s *FeatureSchema) Len() int { return len(s.names) }

// Has reports whether name is part of the schema.
func (s *FeatureSchema) Has(name string) bool {
	_, ok := s.index[name]
	return ok
}

// Index returns the column position of name.
func (s *FeatureSchema) Index(name string) (int, bool) {
	i, ok := s.index[name]
	return i, ok
}

// Equal reports whether both schemas list the same names in the same order.
func (s *FeatureSchema) Equal(names []string) bool {
	if len(names) != len(s.names) {
		return false
	}
	for i, n := range names {
		if s.names[i] != n {
			return false
		}
	}
	return true
}

// RawInput maps form-field names to their raw string values for one request.
// A missing key means the field was not submitted.
type RawInput map[string]string

// FromValues converts url.Values into a RawInput using the first value of each
// key, matching how HTML form fields are read.
func FromValues(v url.Values) RawInput {
	raw := make(RawInput, len(v))
	for k, vals := range v {
		if len(vals) > 0 {
			raw[k] = vals[0]
		}
	}
	return raw
}

// Lookup returns the raw value of field and whether it was submitted.
func (r RawInput) Lookup(field string) (string, bool) {
	v, ok := r[field]
	return v, ok
}

// FeatureVector holds one numeric value per schema feature. Its key set always
// equals the schema it was created from.
type FeatureVector struct {
	schema *FeatureSchema
	values []float64
}

// NewFeatureVector returns a vector with every feature initialised to zero.
func NewFeatureVector(schema *FeatureSchema) *FeatureVector {
	return &FeatureVector{schema: schema, values: make([]float64, schema.Len())}
}

// Schema returns the schema the vector is keyed by.
func (v *FeatureVector) Schema() *FeatureSchema { return v.schema }

// Get returns the value of a feature.
func (v *FeatureVector) Get(name string) (float64, bool) {
	i, ok := v.schema.index[name]
	if !ok {
		return 0, false
	}
	return v.values[i], true
}

// Set assigns a feature value. Names outside the schema are ignored and
// reported as false; the key set never grows.
func (v *FeatureVector) Set(name string, value float64) bool {
	i, ok := v.schema.index[name]
	if !ok {
		return false
	}
	v.values[i] = value
	return true
}

// Values serialises the vector in schema order. The returned slice is a copy.
func (v *FeatureVector) Values() []float64 {
	out := make([]float64, len(v.values))
	copy(out, v.values)
	return out
}

// Map returns the vector as a name to value map.
func (v *FeatureVector) Map() map[string]float64 {
	out := make(map[string]float64, len(v.values))
	for i, n := range v.schema.names {
		out[n] = v.values[i]
	}
	return out
}

// Equal reports whether both vectors share a schema order and hold the same values.
func (v *FeatureVector) Equal(o *FeatureVector) bool {
	if o == nil || !v.schema.Equal(o.schema.names) {
		return false
	}
	for i := range v.values {
		if v.values[i] != o.values[i] {
			return false
		}
	}
	return true
}
