package attrs

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"
)

// TimeLayout is the textual form of time.Time scalars.
const TimeLayout = "2006-01-02 15:04:05 -0700"

// Text returns the textual form of a scalar. The second result is false
// when v is not a scalar (mappings, sequences, or unknown types).
func Text(v any) (string, bool) {
	switch s := v.(type) {
	case nil:
		return "", true
	case string:
		return s, true
	case bool:
		return strconv.FormatBool(s), true
	case int:
		return strconv.Itoa(s), true
	case int8:
		return strconv.FormatInt(int64(s), 10), true
	case int16:
		return strconv.FormatInt(int64(s), 10), true
	case int32:
		return strconv.FormatInt(int64(s), 10), true
	case int64:
		return strconv.FormatInt(s, 10), true
	case uint:
		return strconv.FormatUint(uint64(s), 10), true
	case uint8:
		return strconv.FormatUint(uint64(s), 10), true
	case uint16:
		return strconv.FormatUint(uint64(s), 10), true
	case uint32:
		return strconv.FormatUint(uint64(s), 10), true
	case uint64:
		return strconv.FormatUint(s, 10), true
	case float32:
		return FormatFloat(float64(s)), true
	case float64:
		return FormatFloat(s), true
	case json.Number:
		return s.String(), true
	case time.Time:
		return s.Format(TimeLayout), true
	case time.Duration:
		return FormatFloat(s.Seconds()), true
	case fmt.Stringer:
		return s.String(), true
	default:
		return "", false
	}
}

// FormatFloat renders f with the shortest exact digits. Integral values keep
// a ".0" suffix and magnitudes outside [1e-4, 1e16) use exponent form.
func FormatFloat(f float64) string {
	switch {
	case math.IsNaN(f):
		return "NaN"
	case math.IsInf(f, 1):
		return "Infinity"
	case math.IsInf(f, -1):
		return "-Infinity"
	}

	abs := math.Abs(f)
	if f == 0 || (abs >= 1e-4 && abs < 1e16) {
		s := strconv.FormatFloat(f, 'f', -1, 64)
		if !strings.Contains(s, ".") {
			s += ".0"
		}
		return s
	}

	s := strconv.FormatFloat(f, 'e', -1, 64)
	mantissa, exp, _ := strings.Cut(s, "e")
	if !strings.Contains(mantissa, ".") {
		mantissa += ".0"
	}
	return mantissa + "e" + exp
}

// IsScalar reports whether v has a textual form.
func IsScalar(v any) bool {
	_, ok := Text(v)
	return ok
}
