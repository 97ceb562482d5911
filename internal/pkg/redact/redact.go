// Package redact removes credentials and other sensitive values from data
// before it reaches a log sink.
//
// Two mechanisms are applied: values stored under a fixed set of field names
// (password, token, authorization, ...) are replaced wholesale at any depth, and
// free-form strings are scrubbed for JWTs, bearer tokens, DSN credentials and
// inline password assignments. Inputs are never modified; redacted copies are
// returned.
package redact

import (
	"encoding/json"
	"net/http"
	"net/url"
	"reflect"
	"regexp"
	"strings"
	"time"
)

// Marker replaces every redacted value.
const Marker = "[REDACTED]"

// sensitiveKeys is matched against field names lowercased with separators removed,
// so "Access-Token", "access_token" and "accessToken" are all the same key.
var sensitiveKeys = map[string]struct{}{
	"password":      {},
	"passwordhash":  {},
	"token":         {},
	"accesstoken":   {},
	"refreshtoken":  {},
	"authorization": {},
	"cookie":        {},
	"setcookie":     {},
	"secret":        {},
	"jwtsecret":     {},
	"apikey":        {},
}

var (
	jwtRegex      = regexp.MustCompile(`eyJ[a-zA-Z0-9_-]+\.eyJ[a-zA-Z0-9_-]+\.[a-zA-Z0-9_-]+`)
	bearerRegex   = regexp.MustCompile(`(?i)(bearer)\s+[A-Za-z0-9\-._~+/]+=*`)
	dbConnRegex   = regexp.MustCompile(`(?i)(postgres(?:ql)?|mysql|mongodb(?:\+srv)?)://[^@\s/]+@`)
	passwordRegex = regexp.MustCompile(`(?i)(password|passwd|pwd)(\s*[=:]\s*)("?)[^\s"&,;]+`)
)

// IsSensitiveKey reports whether values stored under key must be redacted.
func IsSensitiveKey(key string) bool {
	_, ok := sensitiveKeys[normalizeKey(key)]
	return ok
}

func normalizeKey(key string) string {
	var b strings.Builder
	b.Grow(len(key))
	for _, r := range strings.ToLower(key) {
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') {
			b.WriteRune(r)
		}
	}
	return b.String()
}

// String scrubs credentials embedded in free-form text.
func String(input string) string {
	if input == "" {
		return input
	}
	out := jwtRegex.ReplaceAllString(input, Marker)
	out = bearerRegex.ReplaceAllString(out, "${1} "+Marker)
	out = dbConnRegex.ReplaceAllString(out, "${1}://"+Marker+"@")
	out = passwordRegex.ReplaceAllString(out, "${1}${2}${3}"+Marker)
	return out
}

// Error returns the scrubbed text of err.
func Error(err error) string {
	if err == nil {
		return ""
	}
	return String(err.Error())
}

// Value returns a redacted copy of v. Maps and slices are copied recursively;
// structs are flattened through their JSON representation so that tagged field
// names are checked as well.
func Value(v any) any {
	switch x := v.(type) {
	case nil:
		return nil
	case string:
		return String(x)
	case []byte:
		return bytesValue(x)
	case json.RawMessage:
		return bytesValue(x)
	case error:
		return Error(x)
	case time.Time, time.Duration, bool,
		int, int8, int16, int32, int64,
		uint, uint8, uint16, uint32, uint64,
		float32, float64:
		return x
	case map[string]any:
		out := make(map[string]any, len(x))
		for k, val := range x {
			if IsSensitiveKey(k) {
				out[k] = Marker
				continue
			}
			out[k] = Value(val)
		}
		return out
	case map[string]string:
		out := make(map[string]string, len(x))
		for k, val := range x {
			if IsSensitiveKey(k) {
				out[k] = Marker
				continue
			}
			out[k] = String(val)
		}
		return out
	case http.Header:
		return stringSliceMap(x)
	case url.Values:
		return stringSliceMap(x)
	case map[string][]string:
		return stringSliceMap(x)
	case []any:
		out := make([]any, len(x))
		for i, val := range x {
			out[i] = Value(val)
		}
		return out
	case []string:
		out := make([]string, len(x))
		for i, val := range x {
			out[i] = String(val)
		}
		return out
	}

	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Pointer, reflect.Interface:
		if rv.IsNil() {
			return v
		}
		return Value(rv.Elem().Interface())
	case reflect.Struct, reflect.Map, reflect.Slice, reflect.Array:
		raw, err := json.Marshal(v)
		if err != nil {
			return v
		}
		return bytesValue(raw)
	default:
		return v
	}
}

func stringSliceMap(m map[string][]string) map[string][]string {
	out := make(map[string][]string, len(m))
	for k, vals := range m {
		if IsSensitiveKey(k) {
			out[k] = []string{Marker}
			continue
		}
		cp := make([]string, len(vals))
		for i, val := range vals {
			cp[i] = String(val)
		}
		out[k] = cp
	}
	return out
}

// bytesValue treats b as JSON when possible, otherwise as text.
func bytesValue(b []byte) any {
	var decoded any
	if err := json.Unmarshal(b, &decoded); err != nil {
		return String(string(b))
	}
	return Value(decoded)
}
