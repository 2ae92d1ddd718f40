package layering

import (
	"fmt"
	"strings"
)

// Policy controls how a later layer combines with the layers before it.
type Policy int

const (
	// ReplaceKeys replaces, for every top-level key present in a later layer, the
	// whole value held by earlier layers. Nested maps are never merged.
	ReplaceKeys Policy = iota
	// ReplaceRoot lets the last layer replace the entire tree.
	ReplaceRoot
)

func (p Policy) String() string {
	switch p {
	case ReplaceKeys:
		return "replace-keys"
	case ReplaceRoot:
		return "replace-root"
	default:
		return "unknown"
	}
}

// ParsePolicy converts a policy name as produced by String.
func ParsePolicy(value string) (Policy, error) {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "", "replace-keys", "keys":
		return ReplaceKeys, nil
	case "replace-root", "root":
		return ReplaceRoot, nil
	default:
		return ReplaceKeys, fmt.Errorf("layering: unknown merge policy %q", value)
	}
}

// Merge combines trees ordered from weakest (first) to strongest (last) and
// returns a new tree. Inputs are never mutated.
func Merge(policy Policy, trees ...map[string]any) map[string]any {
	merged := map[string]any{}
	if len(trees) == 0 {
		return merged
	}
	if policy == ReplaceRoot {
		last := trees[len(trees)-1]
		if last == nil {
			return merged
		}
		return CloneTree(last)
	}
	for _, tree := range trees {
		for key, value := range tree {
			merged[key] = Clone(value)
		}
	}
	return merged
}

// Provenance reports, for each top-level key of the merged tree, the name of the
// layer that supplied it.
func Provenance(policy Policy, layers ...Layer) map[string]string {
	out := map[string]string{}
	if len(layers) == 0 {
		return out
	}
	if policy == ReplaceRoot {
		last := layers[len(layers)-1]
		for key := range last.Tree {
			out[key] = last.Name
		}
		return out
	}
	for _, layer := range layers {
		for key := range layer.Tree {
			out[key] = layer.Name
		}
	}
	return out
}

// Clone deep copies maps and slices decoded from configuration files. Other
// values are returned as-is.
func Clone(value any) any {
	switch typed := value.(type) {
	case map[string]any:
		return CloneTree(typed)
	case []any:
		if typed == nil {
			return typed
		}
		out := make([]any, len(typed))
		for i, item := range typed {
			out[i] = Clone(item)
		}
		return out
	case []string:
		if typed == nil {
			return typed
		}
		return append([]string(nil), typed...)
	default:
		return value
	}
}

// CloneTree deep copies tree; a nil tree stays nil.
func CloneTree(tree map[string]any) map[string]any {
	if tree == nil {
		return nil
	}
	out := make(map[string]any, len(tree))
	for key, value := range tree {
		out[key] = Clone(value)
	}
	return out
}

// Lookup resolves a dot separated path inside tree.
func Lookup(tree map[string]any, path string) (any, bool) {
	if path == "" {
		return tree, tree != nil
	}
	var current any = tree
	for _, segment := range strings.Split(path, ".") {
		node, ok := current.(map[string]any)
		if !ok {
			return nil, false
		}
		current, ok = node[segment]
		if !ok {
			return nil, false
		}
	}
	return current, true
}
