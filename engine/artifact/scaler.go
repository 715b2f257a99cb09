package artifact

import (
	"context"
	"fmt"

	"github.com/WessleyAI/homeprice/engine/domain"
)

// scalerFile is the JSON export of a fitted standard scaler.
type scalerFile struct {
	Kind         string    `json:"kind"`
	Mean         []float64 `json:"mean"`
	Scale        []float64 `json:"scale"`
	FeatureNames []string  `json:"feature_names,omitempty"`
}

// StandardScaler applies (x - mean) / scale per column.
type StandardScaler struct {
	mean  []float64
	scale []float64
}

// NewStandardScaler builds a scaler. Zero scale entries are treated as 1,
// matching how constant columns are fit.
func NewStandardScaler(mean, scale []float64) (*StandardScaler, error) {
	if err := checkLen("scaler scale", len(scale), len(mean)); err != nil {
		return nil, err
	}
	s := &StandardScaler{
		mean:  make([]float64, len(mean)),
		scale: make([]float64, len(scale)),
	}
	copy(s.mean, mean)
	for i, v := range scale {
		if v == 0 {
			v = 1
		}
		s.scale[i] = v
	}
	return s, nil
}

// LoadScaler reads a scaler export and checks it against schema.
func LoadScaler(path string, schema *domain.FeatureSchema) (*StandardScaler, error) {
	var f scalerFile
	if err := readJSON(path, &f); err != nil {
		return nil, fmt.Errorf("artifact: scaler: %w", err)
	}
	if f.Kind != "" && f.Kind != "standard" {
		return nil, fmt.Errorf("artifact: scaler: %w %q", ErrUnknownKind, f.Kind)
	}
	if err := checkLen("scaler mean", len(f.Mean), schema.Len()); err != nil {
		return nil, fmt.Errorf("artifact: scaler: %w", err)
	}
	if len(f.FeatureNames) > 0 && !schema.Equal(f.FeatureNames) {
		return nil, fmt.Errorf("artifact: scaler: %w: feature_names differ from schema order", ErrDimension)
	}
	s, err := NewStandardScaler(f.Mean, f.Scale)
	if err != nil {
		return nil, fmt.Errorf("artifact: scaler: %w", err)
	}
	return s, nil
}

// Dim returns the number of columns the scaler was fit on.
func (s *StandardScaler) Dim() int { return len(s.mean) }

// Transform scales features. The input is not modified.
func (s *StandardScaler) Transform(_ context.Context, features []float64) ([]float64, error) {
	if err := checkLen("features", len(features), len(s.mean)); err != nil {
		return nil, err
	}
	out := make([]float64, len(features))
	for i, x := range features {
		out[i] = (x - s.mean[i]) / s.scale[i]
	}
	return out, nil
}
