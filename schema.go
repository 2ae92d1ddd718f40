package awsbundle

import (
	"errors"
	"fmt"
	"math"
	"sort"
	"strings"

	"github.com/goliatone/go-aws-bundle/layering"
	"github.com/goliatone/go-aws-bundle/pkg/sdk"
)

// Kind is the type constraint of a recognized option.
type Kind int

const (
	// KindVariable accepts any value unchanged.
	KindVariable Kind = iota
	// KindScalar accepts strings, numbers, booleans and null.
	KindScalar
	KindBoolean
	KindInteger
	KindFloat
	// KindArray is a map with a fixed set of children.
	KindArray
)

func (k Kind) String() string {
	switch k {
	case KindVariable:
		return "variable"
	case KindScalar:
		return "scalar"
	case KindBoolean:
		return "boolean"
	case KindInteger:
		return "integer"
	case KindFloat:
		return "float"
	case KindArray:
		return "array"
	default:
		return "unknown"
	}
}

// Node is a recognized option. Array nodes with AllowExtraKeys keep keys that
// are not listed in Children without validating them.
type Node struct {
	Name           string
	Kind           Kind
	Info           string
	Children       []*Node
	AllowExtraKeys bool
}

// Child returns the direct child called name.
func (n *Node) Child(name string) (*Node, bool) {
	if n == nil {
		return nil, false
	}
	for _, child := range n.Children {
		if child.Name == name {
			return child, true
		}
	}
	return nil, false
}

func (n *Node) childNames() []string {
	names := make([]string, 0, len(n.Children))
	for _, child := range n.Children {
		names = append(names, child.Name)
	}
	sort.Strings(names)
	return names
}

func (n *Node) clone() *Node {
	if n == nil {
		return nil
	}
	out := *n
	if n.Children != nil {
		out.Children = make([]*Node, len(n.Children))
		for i, child := range n.Children {
			out.Children[i] = child.clone()
		}
	}
	return &out
}

// GlobalOptions returns a fresh copy of the options accepted at the root and
// inside every service block.
func GlobalOptions() []*Node {
	return []*Node{
		{Name: "credentials", Kind: KindVariable, Info: "static credentials map, false for anonymous, or a reference"},
		{Name: "debug", Kind: KindVariable, Info: "true or a map of debug flags"},
		{Name: "stats", Kind: KindVariable},
		{Name: "endpoint", Kind: KindScalar, Info: "base endpoint URL"},
		{Name: "endpoint_discovery", Kind: KindVariable},
		{Name: "http", Kind: KindArray, Info: "HTTP transport options", Children: []*Node{
			{Name: "connect_timeout", Kind: KindFloat, Info: "seconds"},
			{Name: "debug", Kind: KindBoolean},
			{Name: "decode_content", Kind: KindBoolean},
			{Name: "delay", Kind: KindInteger, Info: "milliseconds"},
			{Name: "expect", Kind: KindVariable},
			{Name: "proxy", Kind: KindVariable},
			{Name: "sink", Kind: KindScalar},
			{Name: "synchronous", Kind: KindBoolean},
			{Name: "stream", Kind: KindBoolean},
			{Name: "timeout", Kind: KindFloat, Info: "seconds"},
			{Name: "verify", Kind: KindScalar, Info: "false or a CA bundle path"},
		}},
		{Name: "profile", Kind: KindScalar},
		{Name: "region", Kind: KindScalar},
		{Name: "retries", Kind: KindInteger},
		{Name: "scheme", Kind: KindScalar},
		{Name: "service", Kind: KindScalar},
		{Name: "signature_version", Kind: KindScalar},
		{Name: MetadataKey, Kind: KindVariable, Info: "user agent entries"},
		{Name: "validate", Kind: KindVariable},
		{Name: "version", Kind: KindScalar},
	}
}

// SchemaOption configures NewSchema.
type SchemaOption func(*schemaConfig)

type schemaConfig struct {
	rootName string
	extra    []*Node
}

// WithRootName changes the name used for the root in error paths.
func WithRootName(name string) SchemaOption {
	return func(cfg *schemaConfig) {
		if name != "" {
			cfg.rootName = name
		}
	}
}

// WithExtraOptions adds options to the global and per-service blocks.
func WithExtraOptions(nodes ...*Node) SchemaOption {
	return func(cfg *schemaConfig) {
		cfg.extra = append(cfg.extra, nodes...)
	}
}

// Schema is the option tree built from the global options plus one block per
// manifest namespace.
type Schema struct {
	root       *Node
	namespaces []string
}

// NewSchema builds the option tree for descriptors.
func NewSchema(descriptors []sdk.ServiceDescriptor, opts ...SchemaOption) (*Schema, error) {
	cfg := schemaConfig{rootName: RootName}
	for _, opt := range opts {
		if opt != nil {
			opt(&cfg)
		}
	}

	shared := func() []*Node {
		nodes := GlobalOptions()
		for _, extra := range cfg.extra {
			nodes = append(nodes, extra.clone())
		}
		return nodes
	}

	root := &Node{Name: cfg.rootName, Kind: KindArray, Children: shared()}
	seen := map[string]bool{}
	for _, child := range root.Children {
		if child.Name == "" {
			return nil, fmt.Errorf("%w: option with empty name", ErrInvalidSchema)
		}
		if seen[child.Name] {
			return nil, fmt.Errorf("%w: option %q declared twice", ErrInvalidSchema, child.Name)
		}
		seen[child.Name] = true
	}

	namespaces := make([]string, 0, len(descriptors))
	for _, descriptor := range descriptors {
		namespace := strings.TrimSpace(descriptor.Namespace)
		if namespace == "" {
			return nil, fmt.Errorf("%w: service %q has no namespace", ErrInvalidSchema, descriptor.Name)
		}
		if seen[namespace] {
			return nil, fmt.Errorf("%w: namespace %q collides with another option", ErrInvalidSchema, namespace)
		}
		seen[namespace] = true
		namespaces = append(namespaces, namespace)
		root.Children = append(root.Children, &Node{
			Name:           namespace,
			Kind:           KindArray,
			Info:           fmt.Sprintf("overrides for the %s client", namespace),
			Children:       shared(),
			AllowExtraKeys: true,
		})
	}

	return &Schema{root: root, namespaces: namespaces}, nil
}

// Root returns a copy of the option tree.
func (s *Schema) Root() *Node {
	return s.root.clone()
}

// Namespaces lists the service namespaces in manifest order.
func (s *Schema) Namespaces() []string {
	return append([]string(nil), s.namespaces...)
}

// IsNamespace reports whether key is a service block.
func (s *Schema) IsNamespace(key string) bool {
	for _, namespace := range s.namespaces {
		if namespace == key {
			return true
		}
	}
	return false
}

// Normalize validates a single tree and returns its normalized copy.
func (s *Schema) Normalize(tree map[string]any) (map[string]any, error) {
	value, err := normalizeNode(s.root, tree, s.root.Name)
	if err != nil {
		return nil, err
	}
	out, _ := value.(map[string]any)
	return out, nil
}

// Process validates every layer then merges them with policy. Validation of
// all layers completes before anything is merged.
func (s *Schema) Process(policy layering.Policy, layers ...layering.Layer) (map[string]any, error) {
	normalized, err := s.NormalizeLayers(layers...)
	if err != nil {
		return nil, err
	}
	return layering.Merge(policy, layering.Trees(normalized...)...), nil
}

// NormalizeLayers validates every layer and returns normalized copies.
func (s *Schema) NormalizeLayers(layers ...layering.Layer) ([]layering.Layer, error) {
	out := make([]layering.Layer, len(layers))
	for i, layer := range layers {
		tree, err := s.Normalize(layer.Tree)
		if err != nil {
			var validation *ValidationError
			if errors.As(err, &validation) && validation.Layer == "" {
				validation.Layer = layer.Name
			}
			return nil, err
		}
		out[i] = layering.Layer{Name: layer.Name, Source: layer.Source, Tree: tree}
	}
	return out, nil
}

func normalizeNode(node *Node, value any, path string) (any, error) {
	switch node.Kind {
	case KindVariable:
		return layering.Clone(value), nil
	case KindScalar:
		switch value.(type) {
		case nil, string, bool,
			int, int8, int16, int32, int64,
			uint, uint8, uint16, uint32, uint64,
			float32, float64:
			return value, nil
		}
		return nil, invalidType(path, "scalar", value)
	case KindBoolean:
		switch value.(type) {
		case nil, bool:
			return value, nil
		}
		return nil, invalidType(path, "bool", value)
	case KindInteger:
		if value == nil {
			return nil, nil
		}
		if n, ok := toInt(value); ok {
			return n, nil
		}
		return nil, invalidType(path, "int", value)
	case KindFloat:
		if value == nil {
			return nil, nil
		}
		if f, ok := toFloat(value); ok {
			return f, nil
		}
		return nil, invalidType(path, "float", value)
	case KindArray:
		return normalizeArray(node, value, path)
	default:
		return nil, &ValidationError{Path: path, Reason: fmt.Sprintf("unsupported node kind %s", node.Kind)}
	}
}

func normalizeArray(node *Node, value any, path string) (any, error) {
	if value == nil {
		return map[string]any{}, nil
	}
	tree, ok := value.(map[string]any)
	if !ok {
		return nil, invalidType(path, "array", value)
	}

	keys := make([]string, 0, len(tree))
	for key := range tree {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	out := make(map[string]any, len(tree))
	for _, key := range keys {
		child, known := node.Child(key)
		if !known {
			if node.AllowExtraKeys {
				out[key] = layering.Clone(tree[key])
				continue
			}
			return nil, &ValidationError{
				Path:   joinPath(path, key),
				Reason: fmt.Sprintf("unrecognized option %q under %q; available options are %s", key, path, quoteList(node.childNames())),
			}
		}
		normalized, err := normalizeNode(child, tree[key], joinPath(path, key))
		if err != nil {
			return nil, err
		}
		out[key] = normalized
	}
	return out, nil
}

func invalidType(path, expected string, value any) error {
	return &ValidationError{
		Path:   path,
		Reason: fmt.Sprintf("invalid type, expected %s but got %T", expected, value),
	}
}

// toInt converts whole numbers that fit in an int. Anything that would wrap
// is rejected.
func toInt(value any) (int, bool) {
	switch v := value.(type) {
	case int:
		return v, true
	case int8:
		return int(v), true
	case int16:
		return int(v), true
	case int32:
		return int(v), true
	case int64:
		if v < math.MinInt || v > math.MaxInt {
			return 0, false
		}
		return int(v), true
	case uint:
		if v > math.MaxInt {
			return 0, false
		}
		return int(v), true
	case uint8:
		return int(v), true
	case uint16:
		return int(v), true
	case uint32:
		if uint64(v) > math.MaxInt {
			return 0, false
		}
		return int(v), true
	case uint64:
		if v > math.MaxInt {
			return 0, false
		}
		return int(v), true
	case float32:
		return toInt(float64(v))
	case float64:
		if v != math.Trunc(v) || math.IsInf(v, 0) || v < math.MinInt || v >= math.MaxInt+1 {
			return 0, false
		}
		return int(v), true
	default:
		return 0, false
	}
}

func toFloat(value any) (float64, bool) {
	switch v := value.(type) {
	case float64:
		return v, true
	case float32:
		return float64(v), true
	}
	if n, ok := toInt(value); ok {
		return float64(n), true
	}
	return 0, false
}

func quoteList(names []string) string {
	quoted := make([]string, len(names))
	for i, name := range names {
		quoted[i] = fmt.Sprintf("%q", name)
	}
	return strings.Join(quoted, ", ")
}
