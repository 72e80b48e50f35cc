package parsers

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
	"unicode/utf8"
)

// basic safety limits to avoid pathological inputs
const (
	maxContentLen = 128 * 1024 // 128KB
	maxListItems  = 256
	maxErrSnippet = 200
)

// ErrSchema is wrapped by every error caused by a response that does not
// match the expected shape.
var ErrSchema = errors.New("response does not match schema")

func schemaErr(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrSchema, fmt.Sprintf(format, args...))
}

// ExtractJSON returns the JSON object embedded in a model response.
// It accepts a bare object, an object inside a fenced code block, or the
// outermost brace region of surrounding prose.
func ExtractJSON(content string) (json.RawMessage, error) {
	content = strings.TrimSpace(content)
	if content == "" {
		return nil, schemaErr("empty content")
	}
	if len(content) > maxContentLen {
		return nil, schemaErr("content exceeds %d bytes", maxContentLen)
	}
	if !utf8.ValidString(content) {
		return nil, schemaErr("content is not valid utf8")
	}
	if json.Valid([]byte(content)) && strings.HasPrefix(content, "{") {
		return json.RawMessage(content), nil
	}
	start := strings.Index(content, "{")
	end := strings.LastIndex(content, "}")
	if start == -1 || end <= start {
		return nil, schemaErr("no json object in %q", safeSnippet(content))
	}
	region := content[start : end+1]
	if !json.Valid([]byte(region)) {
		return nil, schemaErr("invalid json object in %q", safeSnippet(region))
	}
	return json.RawMessage(region), nil
}

// decodeObject unmarshals raw into a field map.
func decodeObject(raw json.RawMessage) (map[string]json.RawMessage, error) {
	var obj map[string]json.RawMessage
	if err := json.Unmarshal(raw, &obj); err != nil {
		return nil, schemaErr("not a json object: %v", err)
	}
	if obj == nil {
		return nil, schemaErr("null object")
	}
	return obj, nil
}

func present(obj map[string]json.RawMessage, key string) bool {
	v, ok := obj[key]
	return ok && !isNull(v)
}

func isNull(v json.RawMessage) bool {
	return len(bytes.TrimSpace(v)) == 0 || string(bytes.TrimSpace(v)) == "null"
}

// stringField reads an optional string; numbers and booleans are rejected.
func stringField(obj map[string]json.RawMessage, key string) (string, error) {
	v, ok := obj[key]
	if !ok || isNull(v) {
		return "", nil
	}
	var s string
	if err := json.Unmarshal(v, &s); err != nil {
		return "", schemaErr("%s: expected string", key)
	}
	return strings.TrimSpace(s), nil
}

// numberField reads a finite number; numeric strings are tolerated.
func numberField(obj map[string]json.RawMessage, key string) (float64, error) {
	v := obj[key]
	var f float64
	if err := json.Unmarshal(v, &f); err != nil {
		var s string
		if err := json.Unmarshal(v, &s); err != nil {
			return 0, schemaErr("%s: expected number", key)
		}
		parsed, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
		if err != nil {
			return 0, schemaErr("%s: expected number", key)
		}
		f = parsed
	}
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, schemaErr("%s: invalid number", key)
	}
	return f, nil
}

func unitField(obj map[string]json.RawMessage, key string) (float64, error) {
	f, err := numberField(obj, key)
	if err != nil {
		return 0, err
	}
	if f < 0 || f > 1 {
		return 0, schemaErr("%s: %v out of [0,1]", key, f)
	}
	return f, nil
}

// stringList accepts a list of strings or a single string; blanks are dropped.
// A single string is split on newlines, never on commas, so formulas survive.
func stringList(obj map[string]json.RawMessage, key string) ([]string, error) {
	v, ok := obj[key]
	if !ok || isNull(v) {
		return nil, nil
	}
	var list []any
	if err := json.Unmarshal(v, &list); err != nil {
		var s string
		if err := json.Unmarshal(v, &s); err != nil {
			return nil, schemaErr("%s: expected string or list of strings", key)
		}
		return splitLines(s), nil
	}
	out := make([]string, 0, len(list))
	for i, item := range list {
		if i >= maxListItems {
			break
		}
		s, ok := item.(string)
		if !ok {
			return nil, schemaErr("%s[%d]: expected string", key, i)
		}
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	return out, nil
}

func splitLines(s string) []string {
	var out []string
	for _, line := range strings.Split(s, "\n") {
		if line = strings.TrimSpace(line); line != "" {
			out = append(out, line)
		}
	}
	return out
}

func safeSnippet(s string) string {
	s = strings.TrimSpace(s)
	if len(s) <= maxErrSnippet {
		return s
	}
	return s[:maxErrSnippet]
}
