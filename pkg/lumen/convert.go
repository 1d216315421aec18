package lumen

import (
	"code.hybscloud.com/lumen/internal/lumen/diag"
	"code.hybscloud.com/lumen/internal/lumen/value"
)

// ToValue is implemented by a host type that knows how to construct its
// own script-level representation on h, rather than relying on ToScript's
// built-in primitive conversions.
type ToValue interface {
	ToValue(h *value.Heap) (value.Value, error)
}

// FromValue is implemented by a host type that knows how to populate
// itself from a script-level Value, rather than relying on FromScript's
// built-in primitive conversions.
type FromValue interface {
	FromValue(v value.Value) error
}

// ToScript converts a Go value into a lumen Value, covering the primitive
// kinds every embedding needs directly and deferring to ToValue for
// anything richer a host registers (spec.md §6.1's conversion trait).
func ToScript(h *value.Heap, v any) (value.Value, error) {
	switch x := v.(type) {
	case nil:
		return value.Unit, nil
	case value.Value:
		return x, nil
	case bool:
		return value.Bool(x), nil
	case int:
		return value.Int(int64(x)), nil
	case int64:
		return value.Int(x), nil
	case uint8:
		return value.Byte(x), nil
	case rune:
		return value.Char(x), nil
	case float64:
		return value.Float(x), nil
	case string:
		return h.NewString(x)
	case []byte:
		return h.NewBytes(x)
	case ToValue:
		return x.ToValue(h)
	case []any:
		items := make([]value.Value, len(x))
		for i, e := range x {
			item, err := ToScript(h, e)
			if err != nil {
				for _, pushed := range items[:i] {
					value.Drop(pushed)
				}
				return value.Value{}, err
			}
			items[i] = item
		}
		return h.NewVector(items)
	default:
		return value.Value{}, diag.New(diag.KindCoercionFailed, "no lumen conversion for Go type %T", v)
	}
}

// FromScript converts a lumen Value into a Go-native representation,
// covering the primitive tags directly; richer target types implement
// FromValue and are populated by the caller after a type-hash check.
func FromScript(v value.Value) (any, error) {
	switch v.Tag() {
	case value.TagUnit:
		return nil, nil
	case value.TagBool:
		return v.AsBool(), nil
	case value.TagByte:
		return v.AsByte(), nil
	case value.TagChar:
		return v.AsChar(), nil
	case value.TagInt:
		return v.AsInt(), nil
	case value.TagFloat:
		return v.AsFloat(), nil
	case value.TagString:
		guard, payload, err := value.BorrowRef(v)
		if err != nil {
			return nil, err
		}
		defer guard.Release()
		return payload.(*value.StringPayload).S, nil
	case value.TagBytes:
		guard, payload, err := value.BorrowRef(v)
		if err != nil {
			return nil, err
		}
		defer guard.Release()
		b := payload.(*value.BytesPayload).B
		out := make([]byte, len(b))
		copy(out, b)
		return out, nil
	case value.TagVector:
		guard, payload, err := value.BorrowRef(v)
		if err != nil {
			return nil, err
		}
		defer guard.Release()
		items := payload.(*value.VectorPayload).Items
		out := make([]any, len(items))
		for i, item := range items {
			conv, err := FromScript(item)
			if err != nil {
				return nil, err
			}
			out[i] = conv
		}
		return out, nil
	default:
		return nil, diag.New(diag.KindCoercionFailed, "no Go conversion for lumen type %s", v.Tag())
	}
}
