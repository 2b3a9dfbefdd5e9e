package alerts

import (
	"strconv"
	"strings"

	"github.com/atomweather/atomweather/pkg/observation"
)

// evalCondition evaluates a rule condition string against an observation.
//
// Supported expressions (field operator value):
//
//	air_temp > 40
//	air_temp <= -5
//	wind_spd_kmh >= 90
//	rel_hum < 10
//
// Returns (fires bool, triggering value float64). Returns (false, 0) when the
// expression cannot be parsed, the field is absent, or its value is not
// numeric.
func evalCondition(cond string, rec observation.Record) (bool, float64) {
	parts := strings.Fields(cond)
	if len(parts) != 3 {
		return false, 0
	}
	field, op, rhs := parts[0], parts[1], parts[2]

	v, ok := numericField(field, rec)
	if !ok {
		return false, 0
	}
	threshold, err := strconv.ParseFloat(rhs, 64)
	if err != nil {
		return false, 0
	}
	return compareFloat(v, op, threshold), v
}

// numericField extracts a field's value as a float64.
func numericField(field string, rec observation.Record) (float64, bool) {
	raw, ok := rec[field]
	if !ok {
		return 0, false
	}
	switch n := raw.(type) {
	case float64:
		return n, true
	case string:
		f, err := strconv.ParseFloat(n, 64)
		return f, err == nil
	default:
		// json.Number and similar stringer types.
		if s, ok := raw.(interface{ String() string }); ok {
			f, err := strconv.ParseFloat(s.String(), 64)
			return f, err == nil
		}
		return 0, false
	}
}

// compareFloat applies a comparison operator to two float64 values.
func compareFloat(v float64, op string, threshold float64) bool {
	switch op {
	case ">":
		return v > threshold
	case ">=":
		return v >= threshold
	case "<":
		return v < threshold
	case "<=":
		return v <= threshold
	case "==":
		return v == threshold
	default:
		return false
	}
}
