package artifact

import (
	"context"
	"fmt"

	"github.com/WessleyAI/homeprice/engine/domain"
)

type modelFile struct {
	Kind         string    `json:"kind"`
	Coefficients []float64 `json:"coefficients"`
	Intercept    float64   `json:"intercept"`
}

// LinearModel is a fitted linear regressor: intercept + coef · x.
type LinearModel struct {
	coef      []float64
	intercept float64
}

// NewLinearModel builds a model from its coefficients.
func NewLinearModel(coef []float64, intercept float64) *LinearModel {
	m := &LinearModel{coef: make([]float64, len(coef)), intercept: intercept}
	copy(m.coef, coef)
	return m
}

// LoadModel reads a model export and checks it against schema.
func LoadModel(path string, schema *domain.FeatureSchema) (*LinearModel, error) {
	var f modelFile
	if err := readJSON(path, &f); err != nil {
		return nil, fmt.Errorf("artifact: model: %w", err)
	}
	if f.Kind != "" && f.Kind != "linear" {
		return nil, fmt.Errorf("artifact: model: %w %q", ErrUnknownKind, f.Kind)
	}
	if err := checkLen("model coefficients", len(f.Coefficients), schema.Len()); err != nil {
		return nil, fmt.Errorf("artifact: model: %w", err)
	}
	return NewLinearModel(f.Coefficients, f.Intercept), nil
}

// Dim returns the number of coefficients.
func (m *LinearModel) Dim() int { return len(m.coef) }

// Predict returns the regression output for one scaled row.
func (m *LinearModel) Predict(_ context.Context, scaled []float64) (float64, error) {
	if err := checkLen("features", len(scaled), len(m.coef)); err != nil {
		return 0, err
	}
	sum := m.intercept
	for i, x := range scaled {
		sum += m.coef[i] * x
	}
	return sum, nil
}
