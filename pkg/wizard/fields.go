package wizard

import (
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"
	"time"
)

// DateLayout is the wire format of date fields.
const DateLayout = "2006-01-02"

// Fields is the field store: the eventually-submitted payload, keyed by field name.
// Values are strings, numbers, booleans or string sets ([]string).
type Fields map[string]any

// Clone returns a copy that shares no slices with f.
func (f Fields) Clone() Fields {
	out := make(Fields, len(f))
	for k, v := range f {
		switch s := v.(type) {
		case []string:
			v = append([]string(nil), s...)
		case []any:
			v = append([]any(nil), s...)
		}
		out[k] = v
	}
	return out
}

// String returns the trimmed string form of a field. Numbers are formatted, missing fields are "".
func (f Fields) String(name string) string {
	switch v := f[name].(type) {
	case nil:
		return ""
	case string:
		return strings.TrimSpace(v)
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	case []string:
		return strings.Join(v, ",")
	default:
		return strings.TrimSpace(fmt.Sprint(v))
	}
}

// Float returns the numeric value of a field. Numeric strings are parsed. NaN and the
// infinities are not numbers a form can hold, so they report false.
func (f Fields) Float(name string) (float64, bool) {
	n, ok := f.rawFloat(name)
	if !ok || math.IsNaN(n) || math.IsInf(n, 0) {
		return 0, false
	}
	return n, true
}

func (f Fields) rawFloat(name string) (float64, bool) {
	switch v := f[name].(type) {
	case float64:
		return v, true
	case float32:
		return float64(v), true
	case int:
		return float64(v), true
	case int64:
		return float64(v), true
	case string:
		s := strings.TrimSpace(strings.ReplaceAll(v, ",", ""))
		s = strings.TrimPrefix(s, "$")
		if s == "" {
			return 0, false
		}
		n, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return 0, false
		}
		return n, true
	default:
		return 0, false
	}
}

// Bool returns the boolean value of a field. "true", "yes", "y", "on" and "1" count as set.
func (f Fields) Bool(name string) bool {
	switch v := f[name].(type) {
	case bool:
		return v
	case string:
		switch strings.ToLower(strings.TrimSpace(v)) {
		case "true", "yes", "y", "on", "1":
			return true
		}
	}
	return false
}

// Strings returns a set field. A comma separated string is split.
func (f Fields) Strings(name string) []string {
	switch v := f[name].(type) {
	case []string:
		return v
	case []any:
		out := make([]string, 0, len(v))
		for _, item := range v {
			if s, ok := item.(string); ok && strings.TrimSpace(s) != "" {
				out = append(out, strings.TrimSpace(s))
			}
		}
		return out
	case string:
		var out []string
		for _, part := range strings.Split(v, ",") {
			if part = strings.TrimSpace(part); part != "" {
				out = append(out, part)
			}
		}
		return out
	}
	return nil
}

// Date parses a date field in DateLayout.
func (f Fields) Date(name string) (time.Time, bool) {
	s := f.String(name)
	if s == "" {
		return time.Time{}, false
	}
	t, err := time.Parse(DateLayout, s)
	if err != nil {
		return time.Time{}, false
	}
	return t, true
}

// Toggle adds item to a set field, or removes it when already present.
func (f Fields) Toggle(name, item string) {
	current := f.Strings(name)
	next := make([]string, 0, len(current)+1)
	found := false
	for _, s := range current {
		if s == item {
			found = true
			continue
		}
		next = append(next, s)
	}
	if !found {
		next = append(next, item)
	}
	sort.Strings(next)
	f[name] = next
}
