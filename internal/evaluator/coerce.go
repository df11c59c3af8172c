package evaluator

import (
	"encoding/json"
	"strconv"
	"strings"
	"time"
)

// stringifyAttribute renders a user attribute value the way the bucketing
// and text comparators expect it: numbers without exponent notation, times
// as Unix-epoch seconds, string slices as JSON.
func stringifyAttribute(value any) string {
	switch v := value.(type) {
	case string:
		return v
	case bool:
		return strconv.FormatBool(v)
	case int:
		return strconv.Itoa(v)
	case int64:
		return strconv.FormatInt(v, 10)
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	case float32:
		return strconv.FormatFloat(float64(v), 'f', -1, 32)
	case time.Time:
		return strconv.FormatFloat(timeToEpochSeconds(v), 'f', -1, 64)
	case []string:
		blob, err := json.Marshal(v)
		if err != nil {
			return ""
		}
		return string(blob)
	default:
		blob, err := json.Marshal(v)
		if err != nil {
			return ""
		}
		return string(blob)
	}
}

// numberAttribute coerces an attribute to float64. String values use a
// strict float parse tolerating a comma as the decimal separator.
func numberAttribute(value any) (float64, bool) {
	switch v := value.(type) {
	case float64:
		return v, true
	case float32:
		return float64(v), true
	case int:
		return float64(v), true
	case int64:
		return float64(v), true
	case string:
		s := strings.ReplaceAll(strings.TrimSpace(v), ",", ".")
		n, err := strconv.ParseFloat(s, 64)
		return n, err == nil
	default:
		return 0, false
	}
}

// epochSecondsAttribute coerces an attribute to Unix-epoch seconds from a
// time value, a number, or a strict-parsed numeric string.
func epochSecondsAttribute(value any) (float64, bool) {
	switch v := value.(type) {
	case time.Time:
		return timeToEpochSeconds(v), true
	case float64:
		return v, true
	case int:
		return float64(v), true
	case int64:
		return float64(v), true
	case string:
		n, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
		return n, err == nil
	default:
		return 0, false
	}
}

// stringSliceAttribute coerces an attribute to a string array: a native
// slice, or a JSON array parsed from a string.
func stringSliceAttribute(value any) ([]string, bool) {
	switch v := value.(type) {
	case []string:
		return v, true
	case []any:
		result := make([]string, 0, len(v))
		for _, item := range v {
			s, ok := item.(string)
			if !ok {
				return nil, false
			}
			result = append(result, s)
		}
		return result, true
	case string:
		var result []string
		if err := json.Unmarshal([]byte(v), &result); err != nil {
			return nil, false
		}
		return result, true
	default:
		return nil, false
	}
}

func timeToEpochSeconds(t time.Time) float64 {
	return float64(t.UnixMilli()) / 1000
}
