package openapi

import (
	"fmt"

	awsbundle "github.com/goliatone/go-aws-bundle"
)

const (
	// ConfigurationComponent holds the root option tree.
	ConfigurationComponent = "AwsConfiguration"
	// ServiceComponent holds the option block shared by every service.
	ServiceComponent = "ServiceOptions"
	// HTTPComponent holds the http option block.
	HTTPComponent = "HttpOptions"
)

type generator struct {
	config generatorConfig
}

// NewGenerator constructs an OpenAPI generator for the bundle option schema.
func NewGenerator(opts ...GeneratorOption) awsbundle.SchemaGenerator {
	cfg := defaultGeneratorConfig()
	for _, opt := range opts {
		if opt != nil {
			opt(&cfg)
		}
	}
	return generator{config: cfg}
}

func (g generator) Generate(schema *awsbundle.Schema) (awsbundle.SchemaDocument, error) {
	if schema == nil {
		return awsbundle.SchemaDocument{}, fmt.Errorf("openapi: schema cannot be nil")
	}
	document, err := newDocumentBuilder(g.config, schema).build()
	if err != nil {
		return awsbundle.SchemaDocument{}, err
	}
	return awsbundle.SchemaDocument{
		Format:   awsbundle.SchemaFormatOpenAPI,
		Document: document,
	}, nil
}

func componentRef(name string) map[string]any {
	return map[string]any{"$ref": "#/components/schemas/" + name}
}

// nodeSchema renders a leaf or a nested block. http blocks are replaced by a
// reference to the shared component.
func nodeSchema(node *awsbundle.Node) map[string]any {
	var schema map[string]any
	switch node.Kind {
	case awsbundle.KindBoolean:
		schema = map[string]any{"type": "boolean", "nullable": true}
	case awsbundle.KindInteger:
		schema = map[string]any{"type": "integer", "nullable": true}
	case awsbundle.KindFloat:
		schema = map[string]any{"type": "number", "nullable": true}
	case awsbundle.KindScalar:
		schema = map[string]any{
			"nullable": true,
			"oneOf": []any{
				map[string]any{"type": "string"},
				map[string]any{"type": "number"},
				map[string]any{"type": "boolean"},
			},
		}
	case awsbundle.KindArray:
		if node.Name == "http" {
			return componentRef(HTTPComponent)
		}
		schema = objectSchema(node.Children, node.AllowExtraKeys)
	default:
		schema = map[string]any{}
	}
	if node.Info != "" {
		schema["description"] = node.Info
	}
	schema["x-kind"] = node.Kind.String()
	return schema
}

func objectSchema(children []*awsbundle.Node, open bool) map[string]any {
	properties := make(map[string]any, len(children))
	for _, child := range children {
		properties[child.Name] = nodeSchema(child)
	}
	return map[string]any{
		"type":                 "object",
		"properties":           properties,
		"additionalProperties": open,
	}
}
