// Package artifact loads the pre-built model artifacts: the ordered feature
// names, the fitted scaler and the regression model. All three are exported
// from training as JSON and are immutable once loaded.
package artifact

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/WessleyAI/homeprice/engine/domain"
)

// Default artifact file names inside an artifact directory.
const (
	SchemaFile = "feature_names.json"
	ScalerFile = "scaler.json"
	ModelFile  = "model.json"
)

var (
	ErrDimension   = errors.New("dimension mismatch")
	ErrUnknownKind = errors.New("unknown artifact kind")
)

// Scaler normalises a vector given in schema order.
type Scaler interface {
	Transform(ctx context.Context, features []float64) ([]float64, error)
}

// Predictor maps a scaled vector to a price.
type Predictor interface {
	Predict(ctx context.Context, scaled []float64) (float64, error)
}

// Bundle is the loaded set of artifacts.
type Bundle struct {
	Schema *domain.FeatureSchema
	Scaler *StandardScaler
	Model  *LinearModel
}

// Paths locates the three artifact files.
type Paths struct {
	Schema string
	Scaler string
	Model  string
}

// DirPaths returns the default file locations inside dir.
func DirPaths(dir string) Paths {
	return Paths{
		Schema: filepath.Join(dir, SchemaFile),
		Scaler: filepath.Join(dir, ScalerFile),
		Model:  filepath.Join(dir, ModelFile),
	}
}

// Load reads the artifacts from dir using the default file names.
func Load(dir string) (*Bundle, error) {
	return LoadFiles(DirPaths(dir))
}

// LoadFiles reads and cross-checks the three artifacts.
func LoadFiles(p Paths) (*Bundle, error) {
	schema, err := LoadSchema(p.Schema)
	if err != nil {
		return nil, err
	}
	scaler, err := LoadScaler(p.Scaler, schema)
	if err != nil {
		return nil, err
	}
	model, err := LoadModel(p.Model, schema)
	if err != nil {
		return nil, err
	}
	return &Bundle{Schema: schema, Scaler: scaler, Model: model}, nil
}

// LoadSchema reads the ordered feature names.
func LoadSchema(path string) (*domain.FeatureSchema, error) {
	var names []string
	if err := readJSON(path, &names); err != nil {
		return nil, fmt.Errorf("artifact: schema: %w", err)
	}
	schema, err := domain.NewFeatureSchema(names)
	if err != nil {
		return nil, fmt.Errorf("artifact: schema %s: %w", path, err)
	}
	return schema, nil
}

func readJSON(path string, v any) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("decode %s: %w", path, err)
	}
	return nil
}

func checkLen(what string, got, want int) error {
	if got != want {
		return fmt.Errorf("%w: %s has %d entries, schema has %d", ErrDimension, what, got, want)
	}
	return nil
}
