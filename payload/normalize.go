package payload

import (
	"fmt"
)

// Normalize converts a generically decoded document (from JSON, YAML, or
// MessagePack) into a Map. Nested map[string]any and map[any]any values
// become Map, []any becomes List. Keys of map[any]any must be strings.
// A nil input yields a nil Map.
func Normalize(v any) (Map, error) {
	switch t := v.(type) {
	case nil:
		return nil, nil
	case Map, map[string]any, map[any]any:
		out, err := normalize(t, "$", 1)
		if err != nil {
			return nil, err
		}
		return out.(Map), nil
	default:
		return nil, fmt.Errorf("%w: top level must be a map, got %T", ErrUnsupportedValue, v)
	}
}

func normalize(v any, path string, depth int) (any, error) {
	if depth > MaxDepth {
		return nil, fmt.Errorf("%w: %s exceeds depth %d", ErrTooDeep, path, MaxDepth)
	}
	switch t := v.(type) {
	case Map:
		return normalizeMap(t, path, depth)
	case map[string]any:
		return normalizeMap(t, path, depth)
	case map[any]any:
		m := make(map[string]any, len(t))
		for k, val := range t {
			ks, ok := k.(string)
			if !ok {
				return nil, fmt.Errorf("%w: non-string key %v (%T) at %s", ErrUnsupportedValue, k, k, path)
			}
			m[ks] = val
		}
		return normalizeMap(m, path, depth)
	case List:
		return normalizeList(t, path, depth)
	case []any:
		return normalizeList(t, path, depth)
	default:
		return v, nil
	}
}

func normalizeMap(m map[string]any, path string, depth int) (any, error) {
	out := make(Map, len(m))
	for k, val := range m {
		nv, err := normalize(val, path+"."+k, depth+1)
		if err != nil {
			return nil, err
		}
		out[k] = nv
	}
	return out, nil
}

func normalizeList(l []any, path string, depth int) (any, error) {
	out := make(List, len(l))
	for i, val := range l {
		nv, err := normalize(val, fmt.Sprintf("%s[%d]", path, i), depth+1)
		if err != nil {
			return nil, err
		}
		out[i] = nv
	}
	return out, nil
}
