package binform

import "fmt"

// Value is whatever a field, expression, or formula produces: an
// integer, float, bool, string, []byte, a nested *Instance, or a
// dynamic array (a decoded ArrayField yields an arrayValues; a caller
// may pass a plain []Value to Encode).
type Value interface{}

func toInt64(v Value) (int64, error) {
	switch t := v.(type) {
	case int:
		return int64(t), nil
	case int8:
		return int64(t), nil
	case int16:
		return int64(t), nil
	case int32:
		return int64(t), nil
	case int64:
		return t, nil
	case uint:
		return int64(t), nil
	case uint8:
		return int64(t), nil
	case uint16:
		return int64(t), nil
	case uint32:
		return int64(t), nil
	case uint64:
		return int64(t), nil
	case float32:
		return int64(t), nil
	case float64:
		return int64(t), nil
	case bool:
		if t {
			return 1, nil
		}
		return 0, nil
	default:
		return 0, fmt.Errorf("cannot convert %T to integer", v)
	}
}

func toFloat64(v Value) (float64, error) {
	switch t := v.(type) {
	case int:
		return float64(t), nil
	case int8:
		return float64(t), nil
	case int16:
		return float64(t), nil
	case int32:
		return float64(t), nil
	case int64:
		return float64(t), nil
	case uint:
		return float64(t), nil
	case uint8:
		return float64(t), nil
	case uint16:
		return float64(t), nil
	case uint32:
		return float64(t), nil
	case uint64:
		return float64(t), nil
	case float32:
		return float64(t), nil
	case float64:
		return t, nil
	default:
		return 0, fmt.Errorf("cannot convert %T to a number", v)
	}
}

// toMatchingNumeric converts a float64 arithmetic result back to int64
// when both operands were integral, keeping formulas over integer
// fields producing integer results rather than silently going float.
func toMatchingNumeric(lv, rv Value, f float64) Value {
	if isIntegral(lv) && isIntegral(rv) {
		return int64(f)
	}
	return f
}

func isIntegral(v Value) bool {
	switch v.(type) {
	case int, int8, int16, int32, int64, uint, uint8, uint16, uint32, uint64, bool:
		return true
	default:
		return false
	}
}

func truthy(v Value) bool {
	switch t := v.(type) {
	case bool:
		return t
	case nil:
		return false
	default:
		i, err := toInt64(v)
		if err == nil {
			return i != 0
		}
		if s, ok := v.(string); ok {
			return s != ""
		}
		if b, ok := v.([]byte); ok {
			return len(b) != 0
		}
		return true
	}
}

func valuesEqual(lv, rv Value) bool {
	if lb, ok := lv.([]byte); ok {
		rb, ok := rv.([]byte)
		if !ok {
			return false
		}
		if len(lb) != len(rb) {
			return false
		}
		for i := range lb {
			if lb[i] != rb[i] {
				return false
			}
		}
		return true
	}
	li, lerr := toInt64(lv)
	ri, rerr := toInt64(rv)
	if lerr == nil && rerr == nil {
		return li == ri
	}
	return lv == rv
}
