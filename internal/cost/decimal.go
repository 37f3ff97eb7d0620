package cost

import (
	"strconv"

	"github.com/shopspring/decimal"
)

// FloatToDecimal converts a float to decimal by formatting it as its
// shortest round-tripping string and parsing that. Constructing the decimal
// directly from the float value would bake in binary representation error
// (0.1 would become 0.1000000000000000055511151231257827).
func FloatToDecimal(f float64) decimal.Decimal {
	return decimal.RequireFromString(strconv.FormatFloat(f, 'f', -1, 64))
}

// ConvertFloats walks a value and replaces every float64 with its decimal
// form, recursing into maps and slices. Applied to every breakdown before
// persistence.
func ConvertFloats(value any) any {
	switch v := value.(type) {
	case float64:
		return FloatToDecimal(v)
	case map[string]any:
		out := make(map[string]any, len(v))
		for key, inner := range v {
			out[key] = ConvertFloats(inner)
		}
		return out
	case []any:
		out := make([]any, len(v))
		for i, inner := range v {
			out[i] = ConvertFloats(inner)
		}
		return out
	default:
		return value
	}
}
