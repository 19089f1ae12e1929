// Package codec converts typed scalar values to and from the tagged
// textual form persisted in run databases.
//
// A stored value is a (kind, text) pair. The round-trip law is that
// Decode(Encode(v)) yields a value of the same kind with equal content
// for every supported kind. The kind universe is fixed; unknown kinds
// read from disk are passed through as raw text so that newer writers
// do not break older readers.
package codec

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Kind discriminates the tagged value union.
type Kind string

const (
	KindNull     Kind = "null"
	KindBool     Kind = "bool"
	KindInt      Kind = "int"
	KindFloat    Kind = "float"
	KindString   Kind = "str"
	KindDatetime Kind = "datetime"
)

// Tagged is a typed scalar in its persisted textual form.
type Tagged struct {
	Kind Kind
	Text string
}

// ErrUnsupported is returned when a value cannot be represented as a
// tagged scalar. Callers may opt into string coercion instead via
// CoerceString or the coerce mode of Flatten.
var ErrUnsupported = errors.New("codec: unsupported value type")

// Encode converts a native value to its tagged textual form.
//
// Supported inputs: nil, bool, all integer widths, float32/float64,
// string, and time.Time. Anything else returns ErrUnsupported.
func Encode(v any) (Tagged, error) {
	switch x := v.(type) {
	case nil:
		return Tagged{Kind: KindNull}, nil
	case bool:
		return Tagged{Kind: KindBool, Text: strconv.FormatBool(x)}, nil
	case int:
		return Tagged{Kind: KindInt, Text: strconv.FormatInt(int64(x), 10)}, nil
	case int8:
		return Tagged{Kind: KindInt, Text: strconv.FormatInt(int64(x), 10)}, nil
	case int16:
		return Tagged{Kind: KindInt, Text: strconv.FormatInt(int64(x), 10)}, nil
	case int32:
		return Tagged{Kind: KindInt, Text: strconv.FormatInt(int64(x), 10)}, nil
	case int64:
		return Tagged{Kind: KindInt, Text: strconv.FormatInt(x, 10)}, nil
	case uint:
		return Tagged{Kind: KindInt, Text: strconv.FormatUint(uint64(x), 10)}, nil
	case uint8:
		return Tagged{Kind: KindInt, Text: strconv.FormatUint(uint64(x), 10)}, nil
	case uint16:
		return Tagged{Kind: KindInt, Text: strconv.FormatUint(uint64(x), 10)}, nil
	case uint32:
		return Tagged{Kind: KindInt, Text: strconv.FormatUint(uint64(x), 10)}, nil
	case uint64:
		return Tagged{Kind: KindInt, Text: strconv.FormatUint(x, 10)}, nil
	case float32:
		return Tagged{Kind: KindFloat, Text: strconv.FormatFloat(float64(x), 'g', -1, 64)}, nil
	case float64:
		return Tagged{Kind: KindFloat, Text: strconv.FormatFloat(x, 'g', -1, 64)}, nil
	case string:
		return Tagged{Kind: KindString, Text: x}, nil
	case time.Time:
		return Tagged{Kind: KindDatetime, Text: x.Format(time.RFC3339Nano)}, nil
	default:
		return Tagged{}, fmt.Errorf("%w: %T", ErrUnsupported, v)
	}
}

// CoerceString renders an arbitrary value as a string for the opt-in
// coercion mode. time.Time keeps its wire format so coerced timestamps
// stay parseable.
func CoerceString(v any) string {
	if t, ok := v.(time.Time); ok {
		return t.Format(time.RFC3339Nano)
	}
	return fmt.Sprint(v)
}

// Decode converts a tagged textual value back to its native form.
//
// present reports whether a raw value was stored at all; an absent raw
// value decodes to nil for every kind, not an error. This laxity is
// deliberate: it is the same forward-compatibility posture as the
// unknown-kind passthrough below, where the raw text is returned
// unchanged rather than failing the read.
func Decode(kind Kind, text string, present bool) (any, error) {
	if kind == KindNull || !present {
		return nil, nil
	}
	switch kind {
	case KindBool:
		return strings.EqualFold(text, "true"), nil
	case KindInt:
		n, err := strconv.ParseInt(text, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("codec: decode int %q: %w", text, err)
		}
		return n, nil
	case KindFloat:
		f, err := strconv.ParseFloat(text, 64)
		if err != nil {
			return nil, fmt.Errorf("codec: decode float %q: %w", text, err)
		}
		return f, nil
	case KindString:
		return text, nil
	case KindDatetime:
		t, err := time.Parse(time.RFC3339Nano, text)
		if err != nil {
			return nil, fmt.Errorf("codec: decode datetime %q: %w", text, err)
		}
		return t, nil
	default:
		return text, nil
	}
}

// NormalizePath strips leading and trailing slashes from a config or
// metric path.
func NormalizePath(path string) string {
	return strings.Trim(path, "/")
}
