package payload

import (
	"encoding/json"
	"errors"
	"fmt"
	"slices"
	"sort"
	"time"
)

// MaxDepth is the default bound on container nesting accepted by Copy.
const MaxDepth = 64

var (
	// ErrUnsupportedValue is returned when a payload holds a value that
	// cannot be structurally copied.
	ErrUnsupportedValue = errors.New("payload: unsupported value")

	// ErrTooDeep is returned when a payload nests containers beyond the
	// configured depth.
	ErrTooDeep = errors.New("payload: nesting too deep")
)

// Map is a structured key-value payload.
type Map map[string]any

// List is an ordered sequence of payload values.
type List []any

// Copy returns a deep copy of m bounded by MaxDepth. A nil Map copies to nil.
func (m Map) Copy() (Map, error) {
	return m.CopyDepth(MaxDepth)
}

// CopyDepth is Copy with an explicit nesting bound. A non-positive
// maxDepth means MaxDepth.
func (m Map) CopyDepth(maxDepth int) (Map, error) {
	if m == nil {
		return nil, nil
	}
	if maxDepth <= 0 {
		maxDepth = MaxDepth
	}
	c := copier{max: maxDepth}
	out, err := c.mapValue(m, "$", 1)
	if err != nil {
		return nil, err
	}
	return Map(out), nil
}

// Len returns the number of top-level keys.
func (m Map) Len() int { return len(m) }

// Keys returns the top-level keys in sorted order.
func (m Map) Keys() []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Get returns the value stored under key.
func (m Map) Get(key string) (any, bool) {
	v, ok := m[key]
	return v, ok
}

// String returns the string stored under key. ok is false when the key is
// missing or holds another type.
func (m Map) String(key string) (string, bool) {
	s, ok := m[key].(string)
	return s, ok
}

// Int returns the integer stored under key. Floats with no fractional part
// and json.Number are accepted, since decoders produce them for integers.
func (m Map) Int(key string) (int64, bool) {
	switch v := m[key].(type) {
	case int:
		return int64(v), true
	case int8:
		return int64(v), true
	case int16:
		return int64(v), true
	case int32:
		return int64(v), true
	case int64:
		return v, true
	case uint8:
		return int64(v), true
	case uint16:
		return int64(v), true
	case uint32:
		return int64(v), true
	case float64:
		if v == float64(int64(v)) {
			return int64(v), true
		}
	case json.Number:
		n, err := v.Int64()
		return n, err == nil
	}
	return 0, false
}

// Bool returns the boolean stored under key.
func (m Map) Bool(key string) (bool, bool) {
	b, ok := m[key].(bool)
	return b, ok
}

// Decode unmarshals the payload into out via its JSON representation.
func (m Map) Decode(out any) error {
	data, err := json.Marshal(m)
	if err != nil {
		return fmt.Errorf("payload: encode: %w", err)
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("payload: decode into %T: %w", out, err)
	}
	return nil
}

// From marshals v to JSON and decodes the result as a Map. It is the
// inverse of Decode for struct payloads.
func From(v any) (Map, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("payload: encode %T: %w", v, err)
	}
	var m Map
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("payload: %T is not an object: %w", v, err)
	}
	return m, nil
}

// copier performs a bounded structural copy.
type copier struct {
	max int
}

func (c copier) value(v any, path string, depth int) (any, error) {
	switch t := v.(type) {
	case nil, bool, string, json.Number, time.Time,
		int, int8, int16, int32, int64,
		uint, uint8, uint16, uint32, uint64,
		float32, float64:
		return t, nil
	case []byte:
		if t == nil {
			return t, nil
		}
		return slices.Clone(t), nil
	case []string:
		return slices.Clone(t), nil
	case []int:
		return slices.Clone(t), nil
	case []int64:
		return slices.Clone(t), nil
	case []float64:
		return slices.Clone(t), nil
	case Map:
		out, err := c.mapValue(t, path, depth+1)
		if err != nil || out == nil {
			return Map(nil), err
		}
		return Map(out), nil
	case map[string]any:
		return c.mapValue(t, path, depth+1)
	case List:
		out, err := c.listValue(t, path, depth+1)
		if err != nil || out == nil {
			return List(nil), err
		}
		return List(out), nil
	case []any:
		return c.listValue(t, path, depth+1)
	default:
		return nil, fmt.Errorf("%w: %T at %s", ErrUnsupportedValue, v, path)
	}
}

func (c copier) mapValue(m map[string]any, path string, depth int) (map[string]any, error) {
	if depth > c.max {
		return nil, fmt.Errorf("%w: %s exceeds depth %d", ErrTooDeep, path, c.max)
	}
	if m == nil {
		return nil, nil
	}
	out := make(map[string]any, len(m))
	for k, v := range m {
		cv, err := c.value(v, path+"."+k, depth)
		if err != nil {
			return nil, err
		}
		out[k] = cv
	}
	return out, nil
}

func (c copier) listValue(l []any, path string, depth int) ([]any, error) {
	if depth > c.max {
		return nil, fmt.Errorf("%w: %s exceeds depth %d", ErrTooDeep, path, c.max)
	}
	if l == nil {
		return nil, nil
	}
	out := make([]any, len(l))
	for i, v := range l {
		cv, err := c.value(v, fmt.Sprintf("%s[%d]", path, i), depth)
		if err != nil {
			return nil, err
		}
		out[i] = cv
	}
	return out, nil
}
