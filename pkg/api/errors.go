package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/tidwall/gjson"
)

// Error is returned for any non-2xx response. The body is kept raw.
type Error struct {
	Method     string
	Path       string
	StatusCode int
	Status     string
	Body       []byte
}

func (e *Error) Error() string {
	msg := strings.TrimSpace(string(e.Body))
	if len(msg) > 200 {
		msg = msg[:200] + "..."
	}
	if msg == "" {
		msg = e.Status
	}
	return fmt.Sprintf("api: %s %s: status %d: %s", e.Method, e.Path, e.StatusCode, msg)
}

// UserMessage returns the backend's own message when the body carries one under a common
// key, or "" so callers fall back to a generic message.
func (e *Error) UserMessage() string {
	if !gjson.ValidBytes(e.Body) {
		return ""
	}
	for _, key := range []string{"detail", "message", "error", "non_field_errors.0"} {
		if r := gjson.GetBytes(e.Body, key); r.Type == gjson.String && strings.TrimSpace(r.Str) != "" {
			return strings.TrimSpace(r.Str)
		}
	}
	return ""
}

// StatusCode returns the HTTP status carried by err, or 0 when err is not an *Error.
func StatusCode(err error) int {
	var apiErr *Error
	if errors.As(err, &apiErr) {
		return apiErr.StatusCode
	}
	return 0
}

// DecodeList accepts either a bare JSON array or an envelope with a "results" array and
// decodes the items into v.
func DecodeList(body []byte, v any) error {
	if !gjson.ValidBytes(body) {
		return errors.New("invalid JSON in list response")
	}
	res := gjson.ParseBytes(body)
	var raw string
	switch {
	case res.IsArray():
		raw = res.Raw
	case res.IsObject() && res.Get("results").IsArray():
		raw = res.Get("results").Raw
	default:
		return errors.New("unexpected list response shape")
	}
	return json.Unmarshal([]byte(raw), v)
}
