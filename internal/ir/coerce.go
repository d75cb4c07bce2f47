package ir

import (
	"fmt"
	"math"
)

// Coerce converts a loosely typed decoded value (from YAML, JSON or CUE) into
// the Go type used for kind: bool, Scalar, Vec2 or Enum.
func Coerce(kind Kind, raw any) (any, error) {
	switch kind {
	case KindBool:
		b, ok := raw.(bool)
		if !ok {
			return nil, fmt.Errorf("expected bool, got %T", raw)
		}
		return b, nil

	case KindScalar:
		f, err := toFloat(raw)
		if err != nil {
			return nil, err
		}
		return Scalar(f), nil

	case KindVec2:
		switch v := raw.(type) {
		case Vec2:
			return v, nil
		case map[string]any:
			x, err := toFloat(v["x"])
			if err != nil {
				return nil, fmt.Errorf("vec2.x: %w", err)
			}
			y, err := toFloat(v["y"])
			if err != nil {
				return nil, fmt.Errorf("vec2.y: %w", err)
			}
			return Vec2{X: x, Y: y}, nil
		case []any:
			if len(v) != 2 {
				return nil, fmt.Errorf("vec2 list must have 2 elements, got %d", len(v))
			}
			x, err := toFloat(v[0])
			if err != nil {
				return nil, fmt.Errorf("vec2[0]: %w", err)
			}
			y, err := toFloat(v[1])
			if err != nil {
				return nil, fmt.Errorf("vec2[1]: %w", err)
			}
			return Vec2{X: x, Y: y}, nil
		default:
			return nil, fmt.Errorf("expected vec2 object {x, y}, got %T", raw)
		}

	case KindEnum:
		switch v := raw.(type) {
		case string:
			return Enum(v), nil
		case Enum:
			return v, nil
		default:
			return nil, fmt.Errorf("expected enum string, got %T", raw)
		}

	default:
		return nil, fmt.Errorf("unsupported kind %q", kind)
	}
}

// CoerceOptional is Coerce for optional ledgers: nil becomes (nil, true).
func CoerceOptional(kind Kind, raw any) (value any, none bool, err error) {
	if raw == nil {
		return nil, true, nil
	}
	v, err := Coerce(kind, raw)
	return v, false, err
}

func toFloat(raw any) (float64, error) {
	var f float64
	switch v := raw.(type) {
	case float64:
		f = v
	case float32:
		f = float64(v)
	case int:
		f = float64(v)
	case int64:
		f = float64(v)
	case Scalar:
		f = float64(v)
	case nil:
		return 0, fmt.Errorf("missing number")
	default:
		return 0, fmt.Errorf("expected number, got %T", raw)
	}
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, fmt.Errorf("number must be finite, got %v", f)
	}
	return f, nil
}
