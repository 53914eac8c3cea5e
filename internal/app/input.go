package app

import (
	"bytes"
	"encoding/json"
	"strings"
	"time"
)

// optional tells an absent JSON field from an explicit null; Set is true for
// both a value and null, Value is nil for null.
type optional[T any] struct {
	Set   bool
	Value *T
}

func (o *optional[T]) UnmarshalJSON(data []byte) error {
	o.Set = true
	if bytes.Equal(bytes.TrimSpace(data), []byte("null")) {
		o.Value = nil
		return nil
	}
	var value T
	if err := json.Unmarshal(data, &value); err != nil {
		return err
	}
	o.Value = &value
	return nil
}

// optionalID normalises an optional reference: null and "" both clear it.
func optionalID(value optional[string]) *string {
	if value.Value == nil {
		return nil
	}
	trimmed := strings.TrimSpace(*value.Value)
	if trimmed == "" {
		return nil
	}
	return &trimmed
}

// parseDate reads an optional date field; problems are recorded under field.
func parseDate(value optional[string], field string, problems map[string]string) *time.Time {
	if value.Value == nil || strings.TrimSpace(*value.Value) == "" {
		return nil
	}
	parsed, err := parseRFC3339(strings.TrimSpace(*value.Value))
	if err != nil {
		problems[field] = field + " must be an RFC 3339 timestamp or YYYY-MM-DD date"
		return nil
	}
	parsed = parsed.UTC()
	return &parsed
}

func trimList(items []string) []string {
	out := make([]string, 0, len(items))
	for _, item := range items {
		if trimmed := strings.TrimSpace(item); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}
