package docgen

import (
	"fmt"
	"math"
	"strconv"
	"strings"
)

// Lookup returns the value at a dotted path such as "subjects.0.marks".
func (m DocumentModel) Lookup(path string) (any, bool) {
	if m == nil || path == "" {
		return nil, false
	}
	var current any = map[string]any(m)
	for _, part := range strings.Split(path, ".") {
		switch node := current.(type) {
		case map[string]any:
			value, ok := node[part]
			if !ok {
				return nil, false
			}
			current = value
		case DocumentModel:
			value, ok := node[part]
			if !ok {
				return nil, false
			}
			current = value
		case []any:
			idx, err := strconv.Atoi(part)
			if err != nil || idx < 0 || idx >= len(node) {
				return nil, false
			}
			current = node[idx]
		case []map[string]any:
			idx, err := strconv.Atoi(part)
			if err != nil || idx < 0 || idx >= len(node) {
				return nil, false
			}
			current = node[idx]
		default:
			return nil, false
		}
	}
	return current, true
}

// String returns the display text at path, or "" when absent.
func (m DocumentModel) String(path string) string {
	value, ok := m.Lookup(path)
	if !ok {
		return ""
	}
	return FormatValue(value)
}

// Items returns the list at path as records.
func (m DocumentModel) Items(path string) []DocumentModel {
	value, ok := m.Lookup(path)
	if !ok {
		return nil
	}
	return asRecords(value)
}

// Clone returns a deep copy of the model.
func (m DocumentModel) Clone() DocumentModel {
	if m == nil {
		return nil
	}
	return cloneValue(map[string]any(m)).(map[string]any)
}

func cloneValue(value any) any {
	switch v := value.(type) {
	case DocumentModel:
		return cloneValue(map[string]any(v))
	case map[string]any:
		out := make(map[string]any, len(v))
		for key, item := range v {
			out[key] = cloneValue(item)
		}
		return out
	case []any:
		out := make([]any, len(v))
		for i, item := range v {
			out[i] = cloneValue(item)
		}
		return out
	case []map[string]any:
		out := make([]any, len(v))
		for i, item := range v {
			out[i] = cloneValue(item)
		}
		return out
	default:
		return v
	}
}

func asRecords(value any) []DocumentModel {
	switch v := value.(type) {
	case []any:
		out := make([]DocumentModel, 0, len(v))
		for _, item := range v {
			switch rec := item.(type) {
			case map[string]any:
				out = append(out, DocumentModel(rec))
			case DocumentModel:
				out = append(out, rec)
			default:
				out = append(out, DocumentModel{})
			}
		}
		return out
	case []map[string]any:
		out := make([]DocumentModel, 0, len(v))
		for _, item := range v {
			out = append(out, DocumentModel(item))
		}
		return out
	case []DocumentModel:
		return v
	default:
		return nil
	}
}

// FormatValue renders a scalar model value as display text.
func FormatValue(value any) string {
	switch v := value.(type) {
	case nil:
		return ""
	case string:
		return strings.TrimSpace(v)
	case float64:
		if v == math.Trunc(v) && math.Abs(v) < 1e15 {
			return strconv.FormatInt(int64(v), 10)
		}
		return strconv.FormatFloat(v, 'f', -1, 64)
	case float32:
		return FormatValue(float64(v))
	case int:
		return strconv.Itoa(v)
	case int64:
		return strconv.FormatInt(v, 10)
	case int32:
		return strconv.FormatInt(int64(v), 10)
	case bool:
		return strconv.FormatBool(v)
	case fmt.Stringer:
		return v.String()
	default:
		return fmt.Sprint(v)
	}
}

// asNumber converts a model value to float64.
func asNumber(value any) (float64, bool) {
	switch v := value.(type) {
	case float64:
		return v, true
	case float32:
		return float64(v), true
	case int:
		return float64(v), true
	case int64:
		return float64(v), true
	case int32:
		return float64(v), true
	case string:
		trimmed := strings.TrimSpace(v)
		if trimmed == "" {
			return 0, false
		}
		parsed, err := strconv.ParseFloat(trimmed, 64)
		if err != nil {
			return 0, false
		}
		return parsed, true
	default:
		return 0, false
	}
}

// isBlank reports whether a value counts as missing.
func isBlank(value any) bool {
	switch v := value.(type) {
	case nil:
		return true
	case string:
		return strings.TrimSpace(v) == ""
	case []any:
		return len(v) == 0
	case []map[string]any:
		return len(v) == 0
	case map[string]any:
		return len(v) == 0
	default:
		return false
	}
}
