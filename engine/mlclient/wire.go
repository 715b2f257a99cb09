package mlclient

import (
	"errors"
	"fmt"

	"google.golang.org/protobuf/types/known/structpb"
)

// ErrMalformed is returned when a message does not carry the expected fields.
var ErrMalformed = errors.New("malformed message")

// Message field names.
const (
	fieldFeatures   = "features"
	fieldValues     = "values"
	fieldPrediction = "prediction"
)

func numbersStruct(key string, xs []float64) (*structpb.Struct, error) {
	list := make([]any, len(xs))
	for i, x := range xs {
		list[i] = x
	}
	return structpb.NewStruct(map[string]any{key: list})
}

func numbersFrom(s *structpb.Struct, key string) ([]float64, error) {
	v, ok := s.GetFields()[key]
	if !ok {
		return nil, fmt.Errorf("%w: missing %q", ErrMalformed, key)
	}
	list := v.GetListValue()
	if list == nil {
		return nil, fmt.Errorf("%w: %q is not a list", ErrMalformed, key)
	}
	out := make([]float64, len(list.GetValues()))
	for i, item := range list.GetValues() {
		n, ok := item.GetKind().(*structpb.Value_NumberValue)
		if !ok {
			return nil, fmt.Errorf("%w: %s[%d] is not a number", ErrMalformed, key, i)
		}
		out[i] = n.NumberValue
	}
	return out, nil
}

func numberFrom(s *structpb.Struct, key string) (float64, error) {
	v, ok := s.GetFields()[key]
	if !ok {
		return 0, fmt.Errorf("%w: missing %q", ErrMalformed, key)
	}
	n, ok := v.GetKind().(*structpb.Value_NumberValue)
	if !ok {
		return 0, fmt.Errorf("%w: %q is not a number", ErrMalformed, key)
	}
	return n.NumberValue, nil
}
