package backends

import (
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"

	"github.com/rickchristie/cellfmt"
)

// Option readers. Values decoded from JSON arrive as float64, values from the
// CLI or YAML as int; both are accepted for integer options.

func intOption(opts cellfmt.Options, key string) (int, bool, error) {
	v, ok := opts[key]
	if !ok || v == nil {
		return 0, false, nil
	}
	switch n := v.(type) {
	case int:
		return n, true, nil
	case int64:
		return int(n), true, nil
	case float64:
		if n != math.Trunc(n) {
			return 0, false, fmt.Errorf("%w: %s must be an integer, got %v", cellfmt.ErrInvalidOptions, key, v)
		}
		return int(n), true, nil
	default:
		return 0, false, fmt.Errorf("%w: %s must be an integer, got %T", cellfmt.ErrInvalidOptions, key, v)
	}
}

func boolOption(opts cellfmt.Options, key string) (bool, bool, error) {
	v, ok := opts[key]
	if !ok || v == nil {
		return false, false, nil
	}
	b, ok := v.(bool)
	if !ok {
		return false, false, fmt.Errorf("%w: %s must be a boolean, got %T", cellfmt.ErrInvalidOptions, key, v)
	}
	return b, true, nil
}

func stringOption(opts cellfmt.Options, key string) (string, bool, error) {
	v, ok := opts[key]
	if !ok || v == nil {
		return "", false, nil
	}
	s, ok := v.(string)
	if !ok {
		return "", false, fmt.Errorf("%w: %s must be a string, got %T", cellfmt.ErrInvalidOptions, key, v)
	}
	return s, true, nil
}

func stringsOption(opts cellfmt.Options, key string) ([]string, bool, error) {
	v, ok := opts[key]
	if !ok || v == nil {
		return nil, false, nil
	}
	switch list := v.(type) {
	case []string:
		return list, true, nil
	case []any:
		out := make([]string, 0, len(list))
		for _, item := range list {
			s, ok := item.(string)
			if !ok {
				return nil, false, fmt.Errorf("%w: %s must be a list of strings", cellfmt.ErrInvalidOptions, key)
			}
			out = append(out, s)
		}
		return out, true, nil
	case string:
		return strings.Split(list, ","), true, nil
	default:
		return nil, false, fmt.Errorf("%w: %s must be a list of strings, got %T", cellfmt.ErrInvalidOptions, key, v)
	}
}

func mapOption(opts cellfmt.Options, key string) (map[string]any, bool, error) {
	v, ok := opts[key]
	if !ok || v == nil {
		return nil, false, nil
	}
	m, ok := v.(map[string]any)
	if !ok {
		return nil, false, fmt.Errorf("%w: %s must be a mapping, got %T", cellfmt.ErrInvalidOptions, key, v)
	}
	return m, true, nil
}

func sortedKeys(m map[string]any) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// scalarText renders a scalar the way Python's str() would for CLI values.
func scalarText(v any) string {
	switch t := v.(type) {
	case bool:
		if t {
			return "True"
		}
		return "False"
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	case string:
		return t
	default:
		return fmt.Sprint(t)
	}
}
