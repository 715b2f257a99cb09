// Package encoder turns raw form input into the fixed-order numeric feature
// vector the price model expects.
//
// Numeric fields pass through with documented defaults, categorical fields map
// through the domain category tables with a code-0 fallback, and the location
// becomes a one-hot flag when the schema knows it. Encoding is pure: the only
// failure is a present numeric field that does not parse.
package encoder

import (
	"errors"
	"math"
	"strconv"
	"strings"

	"github.com/WessleyAI/homeprice/engine/domain"
)

// Fallback records a categorical label that was not recognised.
type Fallback struct {
	Field string `json:"field"`
	Label string `json:"label"`
}

// Report describes the permissive decisions taken while encoding.
type Report struct {
	Fallbacks []Fallback `json:"fallbacks,omitempty"`
	// Location is the normalised feature name tried for the location field.
	Location string `json:"location,omitempty"`
	// LocationDropped is set when a non-empty location had no schema feature.
	LocationDropped bool `json:"location_dropped,omitempty"`
}

// Encode builds the feature vector for raw against schema.
func Encode(raw domain.RawInput, schema *domain.FeatureSchema) (*domain.FeatureVector, error) {
	v, _, err := EncodeDetailed(raw, schema)
	return v, err
}

// EncodeDetailed is Encode plus a report of category and location fallbacks.
// On error the vector is nil and every malformed field is reported.
func EncodeDetailed(raw domain.RawInput, schema *domain.FeatureSchema) (*domain.FeatureVector, Report, error) {
	var report Report
	vec := domain.NewFeatureVector(schema)

	var errs []error
	for _, f := range domain.NumericFields {
		val, err := parseNumeric(raw, f)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		vec.Set(f.Feature, val)
	}
	if len(errs) > 0 {
		return nil, report, errors.Join(errs...)
	}

	for _, m := range domain.CategoryMaps {
		label, submitted := raw.Lookup(m.Field())
		code, ok := m.Code(label)
		if !ok && submitted && label != "" {
			report.Fallbacks = append(report.Fallbacks, Fallback{Field: m.Field(), Label: label})
		}
		vec.Set(m.Feature(), float64(code))
	}

	if loc, ok := raw.Lookup(domain.FieldLocation); ok {
		if name := LocationFeature(loc); name != "" {
			report.Location = name
			if !vec.Set(name, 1) {
				report.LocationDropped = true
			}
		}
	}

	return vec, report, nil
}

// LocationFeature returns the one-hot feature name for a location, or "" when
// the location is blank.
func LocationFeature(location string) string {
	norm := strings.ReplaceAll(strings.ToLower(strings.TrimSpace(location)), " ", "-")
	if norm == "" {
		return ""
	}
	return domain.LocationPrefix + norm
}

// parseNumeric reads one numeric field. Missing and blank values take the
// field default.
func parseNumeric(raw domain.RawInput, f domain.NumericField) (float64, error) {
	s, ok := raw.Lookup(f.Field)
	s = strings.TrimSpace(s)
	if !ok || s == "" {
		return f.Default, nil
	}

	if f.Integer {
		n, err := strconv.Atoi(s)
		if err == nil {
			return float64(n), nil
		}
		if errors.Is(err, strconv.ErrRange) {
			return 0, domain.NewValidationError(f.Field, s, domain.ErrInvalidNumber)
		}
		if fv, ferr := strconv.ParseFloat(s, 64); ferr == nil && !math.IsNaN(fv) && !math.IsInf(fv, 0) {
			return 0, domain.NewValidationError(f.Field, s, domain.ErrNotInteger)
		}
		return 0, domain.NewValidationError(f.Field, s, domain.ErrInvalidNumber)
	}

	fv, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsNaN(fv) || math.IsInf(fv, 0) {
		return 0, domain.NewValidationError(f.Field, s, domain.ErrInvalidNumber)
	}
	return fv, nil
}
