package scoring

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/okian/readcoach/internal/domain/model"
)

// dimensionAliases lists accepted keys per dimension in untrusted input.
var dimensionAliases = map[string][]string{
	DimAccuracy:     {"accuracy", "content_accuracy"},
	DimCompleteness: {"completeness"},
	DimClarity:      {"clarity"},
	DimLanguage:     {"language", "language_quality", "grammar"},
}

// ParseDimensions validates a decoded generation payload. Every dimension
// must be present and numeric; numeric strings are accepted.
func ParseDimensions(raw map[string]any) (model.Dimensions, error) {
	var d model.Dimensions
	targets := map[string]*float64{
		DimAccuracy:     &d.Accuracy,
		DimCompleteness: &d.Completeness,
		DimClarity:      &d.Clarity,
		DimLanguage:     &d.Language,
	}
	for dim, dst := range targets {
		v, ok := lookup(raw, dimensionAliases[dim])
		if !ok {
			return model.Dimensions{}, fmt.Errorf("%w: missing %s", ErrMalformedAssessment, dim)
		}
		f, err := toFloat(v)
		if err != nil {
			return model.Dimensions{}, fmt.Errorf("%w: %s: %v", ErrMalformedAssessment, dim, err)
		}
		*dst = f
	}
	return d, nil
}

func lookup(raw map[string]any, keys []string) (any, bool) {
	for k, v := range raw {
		for _, want := range keys {
			if strings.EqualFold(strings.TrimSpace(k), want) && v != nil {
				return v, true
			}
		}
	}
	return nil, false
}

func toFloat(v any) (float64, error) {
	switch n := v.(type) {
	case float64:
		return n, nil
	case float32:
		return float64(n), nil
	case int:
		return float64(n), nil
	case int64:
		return float64(n), nil
	case json.Number:
		return n.Float64()
	case string:
		return strconv.ParseFloat(strings.TrimSpace(n), 64)
	default:
		return 0, fmt.Errorf("not a number: %T", v)
	}
}
