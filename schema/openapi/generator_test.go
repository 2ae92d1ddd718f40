package openapi

import (
	"testing"

	json "github.com/goccy/go-json"

	awsbundle "github.com/goliatone/go-aws-bundle"
	"github.com/goliatone/go-aws-bundle/pkg/sdk"
)

func testSchema(t *testing.T) *awsbundle.Schema {
	t.Helper()
	schema, err := awsbundle.NewSchema([]sdk.ServiceDescriptor{
		{Name: "s3", Namespace: "S3"},
		{Name: "lambda", Namespace: "Lambda"},
	})
	if err != nil {
		t.Fatalf("new schema: %v", err)
	}
	return schema
}

func schemas(t *testing.T, doc awsbundle.SchemaDocument) map[string]any {
	t.Helper()
	document, ok := doc.Document.(map[string]any)
	if !ok {
		t.Fatalf("expected map document, got %T", doc.Document)
	}
	return document["components"].(map[string]any)["schemas"].(map[string]any)
}

func TestNewGeneratorOptions(t *testing.T) {
	custom := NewGenerator(
		WithOpenAPIVersion("3.1.0"),
		WithInfo("Custom", "2.0.0", WithInfoDescription("custom schema")),
		WithOperation("/settings/aws", "POST", "saveAws", WithOperationSummary("Save AWS settings")),
		WithContentType("application/yaml"),
		WithResponse("201", "Created"),
	)

	internal, ok := custom.(generator)
	if !ok {
		t.Fatalf("expected generator implementation, got %T", custom)
	}
	cfg := internal.config
	if cfg.openAPIVersion != "3.1.0" || cfg.info.Title != "Custom" || cfg.info.Version != "2.0.0" {
		t.Fatalf("unexpected info config %+v", cfg)
	}
	if cfg.operation.Method != "post" || cfg.operation.Path != "/settings/aws" || cfg.operation.Summary != "Save AWS settings" {
		t.Fatalf("unexpected operation config %+v", cfg.operation)
	}
	if cfg.contentType != "application/yaml" || cfg.responses["201"] != "Created" || cfg.responses["204"] == "" {
		t.Fatalf("unexpected response config %+v", cfg)
	}
}

func TestGenerateSharesServiceComponents(t *testing.T) {
	doc, err := NewGenerator().Generate(testSchema(t))
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	if doc.Format != awsbundle.SchemaFormatOpenAPI {
		t.Fatalf("unexpected format %q", doc.Format)
	}

	components := schemas(t, doc)
	for _, name := range []string{ConfigurationComponent, ServiceComponent, HTTPComponent} {
		if _, ok := components[name]; !ok {
			t.Fatalf("expected component %s, got %v", name, components)
		}
	}

	root := components[ConfigurationComponent].(map[string]any)
	if root["additionalProperties"] != false {
		t.Fatalf("root must reject unknown options")
	}
	properties := root["properties"].(map[string]any)
	s3 := properties["S3"].(map[string]any)
	ref := s3["allOf"].([]any)[0].(map[string]any)["$ref"]
	if ref != "#/components/schemas/"+ServiceComponent {
		t.Fatalf("expected S3 to reference shared service options, got %v", ref)
	}
	if properties["http"].(map[string]any)["$ref"] != "#/components/schemas/"+HTTPComponent {
		t.Fatalf("expected http to reference shared component")
	}
	if properties["retries"].(map[string]any)["type"] != "integer" {
		t.Fatalf("expected retries integer, got %v", properties["retries"])
	}

	service := components[ServiceComponent].(map[string]any)
	if service["additionalProperties"] != true {
		t.Fatalf("service options must allow extra keys")
	}
	if _, ok := service["properties"].(map[string]any)["region"]; !ok {
		t.Fatalf("service options must carry global options")
	}

	http := components[HTTPComponent].(map[string]any)
	timeout := http["properties"].(map[string]any)["timeout"].(map[string]any)
	if timeout["type"] != "number" || timeout["description"] != "seconds" {
		t.Fatalf("unexpected timeout schema %v", timeout)
	}

	if _, err := json.Marshal(doc.Document); err != nil {
		t.Fatalf("document must serialise: %v", err)
	}
}

func TestGenerateWithoutServices(t *testing.T) {
	schema, err := awsbundle.NewSchema(nil)
	if err != nil {
		t.Fatalf("new schema: %v", err)
	}
	doc, err := NewGenerator().Generate(schema)
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	if _, ok := schemas(t, doc)[ServiceComponent]; ok {
		t.Fatalf("expected no service component without namespaces")
	}
}

func TestGenerateRejectsInvalidConfig(t *testing.T) {
	if _, err := NewGenerator().Generate(nil); err == nil {
		t.Fatalf("expected nil schema error")
	}
	if _, err := NewGenerator(WithOperation("aws", "", "")).Generate(testSchema(t)); err == nil {
		t.Fatalf("expected relative path error")
	}
}

func TestExtensionSchemaDocument(t *testing.T) {
	ext, err := awsbundle.New(awsbundle.WithManifest([]sdk.ServiceDescriptor{{Namespace: "S3"}}))
	if err != nil {
		t.Fatalf("new extension: %v", err)
	}
	doc, err := ext.SchemaDocument(NewGenerator())
	if err != nil {
		t.Fatalf("schema document: %v", err)
	}
	root := schemas(t, doc)[ConfigurationComponent].(map[string]any)
	if services := root["x-services"].([]string); len(services) != 1 || services[0] != "S3" {
		t.Fatalf("unexpected services %v", services)
	}
}
