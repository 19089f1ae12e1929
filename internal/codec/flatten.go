package codec

import (
	"fmt"
	"reflect"
	"time"
)

// Flatten converts a nested tree of maps and sequences into a flat
// mapping from slash-joined path to leaf value. Map entries recurse;
// sequence elements are indexed by position (key/0, key/1, ...).
//
// Leaves must be supported scalar values. An unsupported leaf fails with
// ErrUnsupported naming the offending path, unless coerce is set, in
// which case it is rendered with CoerceString. The transform is pure and
// never mutates its input.
func Flatten(data map[string]any, coerce bool) (map[string]any, error) {
	out := make(map[string]any, len(data))
	for key, value := range data {
		if err := flattenInto(out, key, value, coerce); err != nil {
			return nil, err
		}
	}
	return out, nil
}

func flattenInto(out map[string]any, key string, v any, coerce bool) error {
	if isSupported(v) {
		out[key] = v
		return nil
	}

	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Map:
		for _, mk := range rv.MapKeys() {
			child := fmt.Sprintf("%s/%v", key, mk.Interface())
			if err := flattenInto(out, child, rv.MapIndex(mk).Interface(), coerce); err != nil {
				return err
			}
		}
		return nil
	case reflect.Slice, reflect.Array:
		for i := 0; i < rv.Len(); i++ {
			child := fmt.Sprintf("%s/%d", key, i)
			if err := flattenInto(out, child, rv.Index(i).Interface(), coerce); err != nil {
				return err
			}
		}
		return nil
	}

	if coerce {
		out[key] = CoerceString(v)
		return nil
	}
	return fmt.Errorf("%w: %T at %s", ErrUnsupported, v, key)
}

func isSupported(v any) bool {
	switch v.(type) {
	case nil, bool, string, time.Time,
		int, int8, int16, int32, int64,
		uint, uint8, uint16, uint32, uint64,
		float32, float64:
		return true
	}
	return false
}
