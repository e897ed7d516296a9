package toolargs

import (
	"fmt"
	"strconv"
	"strings"
)

// ErrorKey marks Args produced after extraction recovered from an internal failure.
// Its value is for logging only.
const ErrorKey = "_error"

// Args is the result of extraction. Values are string, bool or nil.
type Args map[string]any

// String returns the value of key as a string.
// Missing and nil values are the empty string.
func (a Args) String(key string) string {
	switch v := a[key].(type) {
	case nil:
		return ""
	case string:
		return v
	case bool:
		return strconv.FormatBool(v)
	default:
		return fmt.Sprint(v)
	}
}

// Present reports whether key holds a usable value.
// nil and blank strings are not usable.
func (a Args) Present(key string) bool {
	v, ok := a[key]
	if !ok || v == nil {
		return false
	}
	if s, ok := v.(string); ok {
		return strings.TrimSpace(s) != ""
	}
	return true
}

// Bool interprets key as a boolean. Unparseable values are false.
func (a Args) Bool(key string) bool {
	switch v := a[key].(type) {
	case bool:
		return v
	case string:
		b, _ := parseBool(v)
		return b
	}
	return false
}

// Int interprets key as an integer, returning def when it is absent or malformed.
func (a Args) Int(key string, def int) int {
	s := strings.TrimSpace(a.String(key))
	if s == "" {
		return def
	}
	if n, err := strconv.Atoi(s); err == nil {
		return n
	}
	if f, err := strconv.ParseFloat(s, 64); err == nil {
		return int(f)
	}
	return def
}

// Missing returns the first of keys that is not Present.
func (a Args) Missing(keys ...string) (string, bool) {
	for _, k := range keys {
		if !a.Present(k) {
			return k, true
		}
	}
	return "", false
}

// Err returns the internal failure recorded during extraction, if any.
func (a Args) Err() string {
	return a.String(ErrorKey)
}

func parseBool(s string) (bool, bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "true", "1", "yes", "y", "on":
		return true, true
	case "false", "0", "no", "n", "off", "":
		return false, true
	}
	return false, false
}
