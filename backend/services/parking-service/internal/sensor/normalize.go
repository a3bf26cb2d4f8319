package sensor

import "encoding/json"

// Normalize coerces one raw occupancy value reported by the device into a boolean.
//
// Accepted shapes:
//   - bool
//   - numbers (JSON float64, json.Number, Go integer and float kinds): nonzero is occupied
//   - the exact string "true"; any other string, including "TRUE", " true" and "1", is free
//
// null, objects and arrays read as free.
func Normalize(raw any) bool {
	switch v := raw.(type) {
	case bool:
		return v
	case float64:
		return v != 0
	case float32:
		return v != 0
	case int:
		return v != 0
	case int8:
		return v != 0
	case int16:
		return v != 0
	case int32:
		return v != 0
	case int64:
		return v != 0
	case uint:
		return v != 0
	case uint8:
		return v != 0
	case uint16:
		return v != 0
	case uint32:
		return v != 0
	case uint64:
		return v != 0
	case json.Number:
		f, err := v.Float64()
		return err == nil && f != 0
	case string:
		return v == "true"
	default:
		return false
	}
}
