package awsbundle

import (
	"strconv"
	"strings"
)

// Reference names another registration. The container resolves it lazily.
type Reference string

// ID returns the referenced registration id.
func (r Reference) ID() string {
	return string(r)
}

func (r Reference) String() string {
	return "@" + string(r)
}

// Inflate returns a copy of tree where strings starting with a single "@"
// become references. One leading "@" is stripped from every other string that
// starts with "@", so "@@key" yields the literal "@key". The input is not
// modified and the result is never inflated again.
func Inflate(tree map[string]any) map[string]any {
	if tree == nil {
		return nil
	}
	out := make(map[string]any, len(tree))
	for key, value := range tree {
		out[key] = inflateValue(value)
	}
	return out
}

func inflateValue(value any) any {
	switch v := value.(type) {
	case string:
		if !strings.HasPrefix(v, "@") {
			return v
		}
		rest := v[1:]
		if strings.HasPrefix(rest, "@") {
			return rest
		}
		return Reference(rest)
	case map[string]any:
		return Inflate(v)
	case []any:
		out := make([]any, len(v))
		for i, item := range v {
			out[i] = inflateValue(item)
		}
		return out
	case []string:
		out := make([]any, len(v))
		for i, item := range v {
			out[i] = inflateValue(item)
		}
		return out
	default:
		return value
	}
}

// Deflate reverses Inflate so a processed tree can be written back out as
// configuration.
func Deflate(tree map[string]any) map[string]any {
	if tree == nil {
		return nil
	}
	out := make(map[string]any, len(tree))
	for key, value := range tree {
		out[key] = deflateValue(value)
	}
	return out
}

func deflateValue(value any) any {
	switch v := value.(type) {
	case Reference:
		return v.String()
	case string:
		if strings.HasPrefix(v, "@") {
			return "@" + v
		}
		return v
	case map[string]any:
		return Deflate(v)
	case []any:
		out := make([]any, len(v))
		for i, item := range v {
			out[i] = deflateValue(item)
		}
		return out
	default:
		return value
	}
}

// References lists every reference in tree as dot paths to registration ids.
func References(tree map[string]any) map[string]string {
	out := map[string]string{}
	collectReferences(tree, "", out)
	return out
}

func collectReferences(value any, path string, out map[string]string) {
	switch v := value.(type) {
	case Reference:
		out[path] = v.ID()
	case map[string]any:
		for key, item := range v {
			collectReferences(item, joinPath(path, key), out)
		}
	case []any:
		for i, item := range v {
			collectReferences(item, joinPath(path, strconv.Itoa(i)), out)
		}
	}
}
