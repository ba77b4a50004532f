// Package mapping converts remote documents into local rows. The remote
// schema has used several names for the same field over time, so every
// read goes through an ordered alias list and the first present, non-empty
// value wins.
package mapping

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"gorm.io/datatypes"
)

// First returns the first alias present with a non-nil, non-empty value
func First(data map[string]any, aliases ...string) (any, bool) {
	for _, key := range aliases {
		v, ok := data[key]
		if !ok || v == nil {
			continue
		}
		if s, isString := v.(string); isString && strings.TrimSpace(s) == "" {
			continue
		}
		return v, true
	}
	return nil, false
}

// String renders the first alias as text. Numbers keep their integer form
// so a room number stored as 204 reads as "204".
func String(data map[string]any, aliases ...string) string {
	v, ok := First(data, aliases...)
	if !ok {
		return ""
	}
	switch t := v.(type) {
	case string:
		return strings.TrimSpace(t)
	case int64:
		return strconv.FormatInt(t, 10)
	case int:
		return strconv.Itoa(t)
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(t)
	case time.Time:
		return t.UTC().Format(time.RFC3339)
	default:
		return fmt.Sprint(t)
	}
}

// Strings reads a list. A single string is treated as a one element list.
func Strings(data map[string]any, aliases ...string) []string {
	v, ok := First(data, aliases...)
	if !ok {
		return []string{}
	}
	switch t := v.(type) {
	case []string:
		return append([]string{}, t...)
	case []any:
		out := make([]string, 0, len(t))
		for _, item := range t {
			if item == nil {
				continue
			}
			if s := strings.TrimSpace(fmt.Sprint(item)); s != "" {
				out = append(out, s)
			}
		}
		return out
	case string:
		return []string{strings.TrimSpace(t)}
	default:
		return []string{}
	}
}

// Bool accepts booleans, "true"/"false" style strings and numbers
func Bool(data map[string]any, aliases ...string) bool {
	v, ok := First(data, aliases...)
	if !ok {
		return false
	}
	switch t := v.(type) {
	case bool:
		return t
	case string:
		b, _ := strconv.ParseBool(strings.ToLower(strings.TrimSpace(t)))
		return b
	case int64:
		return t != 0
	case float64:
		return t != 0
	default:
		return false
	}
}

// Time accepts timestamps, RFC 3339 strings and unix seconds
func Time(data map[string]any, aliases ...string) time.Time {
	v, ok := First(data, aliases...)
	if !ok {
		return time.Time{}
	}
	switch t := v.(type) {
	case time.Time:
		return t.UTC()
	case string:
		for _, layout := range []string{time.RFC3339Nano, "2006-01-02T15:04:05", "2006-01-02 15:04:05", "2006-01-02"} {
			if parsed, err := time.Parse(layout, strings.TrimSpace(t)); err == nil {
				return parsed.UTC()
			}
		}
	case int64:
		return time.Unix(t, 0).UTC()
	case float64:
		return time.Unix(int64(t), 0).UTC()
	}
	return time.Time{}
}

// Raw keeps the complete upstream document for forward compatibility
func Raw(data map[string]any) datatypes.JSON {
	raw, err := json.Marshal(data)
	if err != nil {
		return datatypes.JSON("{}")
	}
	return datatypes.JSON(raw)
}

// RawField reads a top level field back out of a stored raw document
func RawField(raw datatypes.JSON, aliases ...string) string {
	if len(raw) == 0 {
		return ""
	}
	var data map[string]any
	if err := json.Unmarshal(raw, &data); err != nil {
		return ""
	}
	return String(data, aliases...)
}
