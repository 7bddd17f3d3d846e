// Package payload defines the structured key-value data carried by a
// headless task.
//
// A [Map] holds arbitrarily nested scalars, maps, and lists. The executor
// never shares a Map between two task configurations: [Map.Copy] produces a
// structurally independent clone, so mutating nested maps, lists, or byte
// slices through one copy is never visible through another.
//
// Supported values:
//
//	nil, bool, string, json.Number, time.Time
//	int, int8 ... int64, uint, uint8 ... uint64, float32, float64
//	[]byte, []string, []int, []int64, []float64
//	Map, map[string]any, List, []any
//
// Anything else (pointers, structs, channels, funcs) makes Copy fail with
// [ErrUnsupportedValue]. Nesting deeper than [MaxDepth] fails with
// [ErrTooDeep], which also guards against self-referencing maps.
package payload
