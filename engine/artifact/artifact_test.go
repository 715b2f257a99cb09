package artifact

import (
	"context"
	"encoding/json"
	"errors"
	"math"
	"os"
	"path/filepath"
	"testing"
)

func writeJSON(t *testing.T, path string, v any) {
	t.Helper()
	data, err := json.Marshal(v)
	if err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatal(err)
	}
}

func writeBundle(t *testing.T, names []string, scaler, model map[string]any) string {
	t.Helper()
	dir := t.TempDir()
	writeJSON(t, filepath.Join(dir, SchemaFile), names)
	writeJSON(t, filepath.Join(dir, ScalerFile), scaler)
	writeJSON(t, filepath.Join(dir, ModelFile), model)
	return dir
}

func TestLoad_RoundTrip(t *testing.T) {
	dir := writeBundle(t,
		[]string{"BHK", "Bathroom"},
		map[string]any{"kind": "standard", "mean": []float64{2, 1}, "scale": []float64{1, 0}, "feature_names": []string{"BHK", "Bathroom"}},
		map[string]any{"kind": "linear", "coefficients": []float64{10, 5}, "intercept": 100},
	)

	b, err := Load(dir)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if b.Schema.Len() != 2 || b.Scaler.Dim() != 2 || b.Model.Dim() != 2 {
		t.Fatalf("unexpected dims: %d %d %d", b.Schema.Len(), b.Scaler.Dim(), b.Model.Dim())
	}

	ctx := context.Background()
	scaled, err := b.Scaler.Transform(ctx, []float64{3, 2})
	if err != nil {
		t.Fatal(err)
	}
	// zero scale is treated as 1
	if scaled[0] != 1 || scaled[1] != 1 {
		t.Fatalf("unexpected scaled %v", scaled)
	}
	got, err := b.Model.Predict(ctx, scaled)
	if err != nil {
		t.Fatal(err)
	}
	if got != 115 {
		t.Fatalf("expected 115, got %v", got)
	}
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(t.TempDir())
	if !errors.Is(err, os.ErrNotExist) {
		t.Fatalf("expected not-exist error, got %v", err)
	}
}

func TestLoad_DimensionMismatch(t *testing.T) {
	dir := writeBundle(t,
		[]string{"BHK", "Bathroom"},
		map[string]any{"mean": []float64{2}, "scale": []float64{1}},
		map[string]any{"coefficients": []float64{1, 1}},
	)
	if _, err := Load(dir); !errors.Is(err, ErrDimension) {
		t.Fatalf("expected ErrDimension, got %v", err)
	}
}

func TestLoad_ScalerOrderMismatch(t *testing.T) {
	dir := writeBundle(t,
		[]string{"BHK", "Bathroom"},
		map[string]any{"mean": []float64{0, 0}, "scale": []float64{1, 1}, "feature_names": []string{"Bathroom", "BHK"}},
		map[string]any{"coefficients": []float64{1, 1}},
	)
	if _, err := Load(dir); !errors.Is(err, ErrDimension) {
		t.Fatalf("expected ErrDimension for reordered scaler, got %v", err)
	}
}

func TestLoad_UnknownKind(t *testing.T) {
	dir := writeBundle(t,
		[]string{"BHK"},
		map[string]any{"mean": []float64{0}, "scale": []float64{1}},
		map[string]any{"kind": "xgboost", "coefficients": []float64{1}},
	)
	if _, err := Load(dir); !errors.Is(err, ErrUnknownKind) {
		t.Fatalf("expected ErrUnknownKind, got %v", err)
	}
}

func TestLoad_BadJSON(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, SchemaFile), []byte("{not json"), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := Load(dir); err == nil {
		t.Fatal("expected decode error")
	}
}

func TestStandardScaler_Transform(t *testing.T) {
	s, err := NewStandardScaler([]float64{10, 0}, []float64{2, 4})
	if err != nil {
		t.Fatal(err)
	}
	in := []float64{14, -8}
	out, err := s.Transform(context.Background(), in)
	if err != nil {
		t.Fatal(err)
	}
	if out[0] != 2 || out[1] != -2 {
		t.Fatalf("unexpected output %v", out)
	}
	if in[0] != 14 {
		t.Fatal("input mutated")
	}
	if _, err := s.Transform(context.Background(), []float64{1}); !errors.Is(err, ErrDimension) {
		t.Fatalf("expected ErrDimension, got %v", err)
	}
}

func TestLinearModel_Predict(t *testing.T) {
	m := NewLinearModel([]float64{0.5, -1.25}, 3)
	got, err := m.Predict(context.Background(), []float64{4, 2})
	if err != nil {
		t.Fatal(err)
	}
	if math.Abs(got-2.5) > 1e-12 {
		t.Fatalf("expected 2.5, got %v", got)
	}
	if _, err := m.Predict(context.Background(), nil); !errors.Is(err, ErrDimension) {
		t.Fatalf("expected ErrDimension, got %v", err)
	}
}

func TestLoad_SampleArtifacts(t *testing.T) {
	b, err := Load(filepath.Join("..", "..", "artifacts"))
	if err != nil {
		t.Fatalf("sample artifacts should load: %v", err)
	}
	if !b.Schema.Has("location_mumbai") || !b.Schema.Has("facing") {
		t.Fatalf("unexpected sample schema %v", b.Schema.Names())
	}
	if b.Scaler.Dim() != b.Schema.Len() || b.Model.Dim() != b.Schema.Len() {
		t.Fatal("sample artifact dimensions disagree")
	}
}
