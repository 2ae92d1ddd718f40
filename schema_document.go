package awsbundle

import (
	"sort"
)

// SchemaFormat identifies the representation a schema document encodes.
type SchemaFormat string

const (
	// SchemaFormatDescriptors is the flattened field descriptor list.
	SchemaFormatDescriptors SchemaFormat = "descriptors"
	// SchemaFormatOpenAPI is an OpenAPI 3 document.
	SchemaFormatOpenAPI SchemaFormat = "openapi"
)

// SchemaDocument wraps a generated reference of the option tree. Document
// must be serialisable as JSON and YAML.
type SchemaDocument struct {
	Format   SchemaFormat
	Document any
}

// SchemaGenerator renders a Schema. Implementations must be safe for
// concurrent use.
type SchemaGenerator interface {
	Generate(schema *Schema) (SchemaDocument, error)
}

// FieldDescriptor describes one recognized option path.
type FieldDescriptor struct {
	Path string `json:"path" yaml:"path"`
	Kind string `json:"kind" yaml:"kind"`
	Open bool   `json:"open,omitempty" yaml:"open,omitempty"`
	Info string `json:"info,omitempty" yaml:"info,omitempty"`
}

// Describe flattens the global options. Service blocks are listed once each
// since they share the global sub-schema.
func (s *Schema) Describe() []FieldDescriptor {
	var fields []FieldDescriptor
	for _, child := range sortedChildren(s.root) {
		if s.IsNamespace(child.Name) {
			fields = append(fields, FieldDescriptor{
				Path: joinPath(s.root.Name, child.Name),
				Kind: child.Kind.String(),
				Open: true,
				Info: child.Info,
			})
			continue
		}
		fields = append(fields, describeNode(child, s.root.Name)...)
	}
	return fields
}

func describeNode(node *Node, prefix string) []FieldDescriptor {
	path := joinPath(prefix, node.Name)
	fields := []FieldDescriptor{{
		Path: path,
		Kind: node.Kind.String(),
		Open: node.AllowExtraKeys,
		Info: node.Info,
	}}
	for _, child := range sortedChildren(node) {
		fields = append(fields, describeNode(child, path)...)
	}
	return fields
}

func sortedChildren(node *Node) []*Node {
	children := append([]*Node(nil), node.Children...)
	sort.SliceStable(children, func(i, j int) bool {
		return children[i].Name < children[j].Name
	})
	return children
}

// DescriptorGenerator returns the built-in flattened descriptor generator.
func DescriptorGenerator() SchemaGenerator {
	return descriptorGenerator{}
}

type descriptorGenerator struct{}

func (descriptorGenerator) Generate(schema *Schema) (SchemaDocument, error) {
	fields := []FieldDescriptor{}
	if schema != nil {
		fields = append(fields, schema.Describe()...)
	}
	return SchemaDocument{
		Format:   SchemaFormatDescriptors,
		Document: fields,
	}, nil
}
