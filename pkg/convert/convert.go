// Package convert provides result type normalization for graphopt.
//
// Graph database drivers return wide (arbitrary-precision) integers and
// driver-specific record wrappers. Before results are cached or returned to
// callers, they are normalized to plain Go values:
//
//   - Wide integers within the safe integer range become int64
//   - Wide integers outside the safe range become decimal strings
//     (never silently truncated)
//   - Driver records are unwrapped via the Record interface
//   - Maps and slices are walked recursively
//
// The safe integer range is ±(2^53 - 1), the largest range of integers
// exactly representable in an IEEE-754 double. Results cross JSON boundaries
// (cache serialization, API responses), so anything wider must be carried as
// a string to survive the trip.
//
// Example:
//
//	normalized := convert.NormalizeValue(map[string]interface{}{
//		"count": big.NewInt(42),                      // -> int64(42)
//		"huge":  new(big.Int).Lsh(big.NewInt(1), 70), // -> "1180591620717411303424"
//	})
package convert

import (
	"strconv"
)

// Safe integer bounds: the contiguous integer range exactly representable
// in a float64. Values outside survive only as decimal strings.
const (
	MaxSafeInteger = int64(1)<<53 - 1
	MinSafeInteger = -MaxSafeInteger
)

// Record is implemented by driver result wrappers that can convert
// themselves to a plain map. Database adapter layers implement this
// explicitly; normalization unwraps records before walking their fields.
type Record interface {
	ToPlainObject() map[string]interface{}
}

// WideInt is implemented by arbitrary-precision integer types.
// *math/big.Int satisfies this interface as-is.
type WideInt interface {
	// IsInt64 reports whether the value fits in an int64.
	IsInt64() bool
	// Int64 returns the value as int64 (undefined when !IsInt64()).
	Int64() int64
	// String returns the full decimal representation.
	String() string
}

// NormalizeValue recursively normalizes a raw driver value.
//
// Rules:
//   - Record          -> ToPlainObject(), then each field normalized
//   - WideInt         -> int64 when within the safe range, else decimal string
//   - map[string]interface{} -> each value normalized (new map)
//   - []interface{}   -> each element normalized (new slice)
//   - integer kinds   -> int64 when safe, else decimal string
//   - everything else -> returned unchanged
//
// The input is never mutated; maps and slices are rebuilt.
func NormalizeValue(v interface{}) interface{} {
	switch val := v.(type) {
	case Record:
		return normalizeMap(val.ToPlainObject())
	case WideInt:
		return normalizeWide(val)
	case map[string]interface{}:
		return normalizeMap(val)
	case []interface{}:
		out := make([]interface{}, len(val))
		for i, elem := range val {
			out[i] = NormalizeValue(elem)
		}
		return out
	case int:
		return int64(val)
	case int8:
		return int64(val)
	case int16:
		return int64(val)
	case int32:
		return int64(val)
	case int64:
		return clampInt64(val)
	case uint:
		return clampUint64(uint64(val))
	case uint8:
		return int64(val)
	case uint16:
		return int64(val)
	case uint32:
		return int64(val)
	case uint64:
		return clampUint64(val)
	default:
		return v
	}
}

// NormalizeRows normalizes a result row set in place-shape (new slices).
func NormalizeRows(rows [][]interface{}) [][]interface{} {
	out := make([][]interface{}, len(rows))
	for i, row := range rows {
		normalized := make([]interface{}, len(row))
		for j, cell := range row {
			normalized[j] = NormalizeValue(cell)
		}
		out[i] = normalized
	}
	return out
}

func normalizeMap(m map[string]interface{}) map[string]interface{} {
	out := make(map[string]interface{}, len(m))
	for k, v := range m {
		out[k] = NormalizeValue(v)
	}
	return out
}

func normalizeWide(w WideInt) interface{} {
	if w.IsInt64() {
		return clampInt64(w.Int64())
	}
	return w.String()
}

// clampInt64 returns v as int64 when inside the safe range,
// otherwise its decimal string.
func clampInt64(v int64) interface{} {
	if v > MaxSafeInteger || v < MinSafeInteger {
		return strconv.FormatInt(v, 10)
	}
	return v
}

func clampUint64(v uint64) interface{} {
	if v > uint64(MaxSafeInteger) {
		return strconv.FormatUint(v, 10)
	}
	return int64(v)
}

// ToInt64 converts common numeric types (and decimal strings) to int64.
// Returns (value, true) on success, (0, false) on failure.
func ToInt64(v interface{}) (int64, bool) {
	switch val := v.(type) {
	case int64:
		return val, true
	case int:
		return int64(val), true
	case int32:
		return int64(val), true
	case float64:
		return int64(val), true
	case float32:
		return int64(val), true
	case string:
		n, err := strconv.ParseInt(val, 10, 64)
		if err != nil {
			return 0, false
		}
		return n, true
	default:
		return 0, false
	}
}

// ToFloat64 converts common numeric types (and decimal strings) to float64.
// Returns (value, true) on success, (0, false) on failure.
func ToFloat64(v interface{}) (float64, bool) {
	switch val := v.(type) {
	case float64:
		return val, true
	case float32:
		return float64(val), true
	case int:
		return float64(val), true
	case int32:
		return float64(val), true
	case int64:
		return float64(val), true
	case string:
		f, err := strconv.ParseFloat(val, 64)
		if err != nil {
			return 0, false
		}
		return f, true
	default:
		return 0, false
	}
}
