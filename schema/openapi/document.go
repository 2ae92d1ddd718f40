package openapi

import (
	"fmt"
	"sort"
	"strings"

	awsbundle "github.com/goliatone/go-aws-bundle"
)

type documentBuilder struct {
	config generatorConfig
	schema *awsbundle.Schema
}

func newDocumentBuilder(config generatorConfig, schema *awsbundle.Schema) *documentBuilder {
	return &documentBuilder{config: config, schema: schema}
}

func (b *documentBuilder) build() (map[string]any, error) {
	root := b.schema.Root()
	components := map[string]any{}

	var globals []*awsbundle.Node
	var services []*awsbundle.Node
	for _, child := range root.Children {
		if b.schema.IsNamespace(child.Name) {
			services = append(services, child)
			continue
		}
		globals = append(globals, child)
	}

	if http, ok := root.Child("http"); ok {
		components[HTTPComponent] = objectSchema(http.Children, http.AllowExtraKeys)
	}

	configuration := objectSchema(globals, false)
	if len(services) > 0 {
		// Every service block shares the same sub-schema.
		shared := objectSchema(services[0].Children, true)
		shared["description"] = "Per-service overrides. Keys not listed are passed to the client unvalidated."
		components[ServiceComponent] = shared

		properties := configuration["properties"].(map[string]any)
		for _, service := range services {
			properties[service.Name] = map[string]any{
				"allOf":       []any{componentRef(ServiceComponent)},
				"description": service.Info,
			}
		}
		configuration["x-services"] = b.schema.Namespaces()
	}
	configuration["description"] = fmt.Sprintf("Options accepted under %q.", root.Name)
	components[ConfigurationComponent] = configuration

	document := map[string]any{
		"openapi": b.config.openAPIVersion,
		"info":    b.buildInfo(),
		"paths":   b.buildPaths(),
		"components": map[string]any{
			"schemas": components,
		},
	}
	if err := validateDocument(document); err != nil {
		return nil, err
	}
	return document, nil
}

func (b *documentBuilder) buildInfo() map[string]any {
	info := map[string]any{
		"title":   b.config.info.Title,
		"version": b.config.info.Version,
	}
	if b.config.info.Description != "" {
		info["description"] = b.config.info.Description
	}
	return info
}

func (b *documentBuilder) buildPaths() map[string]any {
	method := strings.ToLower(b.config.operation.Method)
	if method == "" {
		method = "put"
	}
	operationID := b.config.operation.OperationID
	if operationID == "" {
		operationID = fmt.Sprintf("%s:%s", method, b.config.operation.Path)
	}

	statuses := make([]string, 0, len(b.config.responses))
	for status := range b.config.responses {
		statuses = append(statuses, status)
	}
	sort.Strings(statuses)
	responses := make(map[string]any, len(statuses))
	for _, status := range statuses {
		responses[status] = map[string]any{"description": b.config.responses[status]}
	}

	operation := map[string]any{
		"operationId": operationID,
		"requestBody": map[string]any{
			"required": true,
			"content": map[string]any{
				b.config.contentType: map[string]any{
					"schema": componentRef(ConfigurationComponent),
				},
			},
		},
		"responses": responses,
	}
	if summary := strings.TrimSpace(b.config.operation.Summary); summary != "" {
		operation["summary"] = summary
	}
	return map[string]any{
		b.config.operation.Path: map[string]any{method: operation},
	}
}

func validateDocument(document map[string]any) error {
	if openapi, _ := document["openapi"].(string); openapi == "" {
		return fmt.Errorf("openapi: document missing version string")
	}
	info, _ := document["info"].(map[string]any)
	if info == nil {
		return fmt.Errorf("openapi: document missing info section")
	}
	if title, _ := info["title"].(string); title == "" {
		return fmt.Errorf("openapi: info.title must be set")
	}
	if version, _ := info["version"].(string); version == "" {
		return fmt.Errorf("openapi: info.version must be set")
	}
	paths, _ := document["paths"].(map[string]any)
	for pathKey, pathValue := range paths {
		if !strings.HasPrefix(pathKey, "/") {
			return fmt.Errorf("openapi: path %q must start with /", pathKey)
		}
		pathItem, _ := pathValue.(map[string]any)
		for method, operationValue := range pathItem {
			operation, _ := operationValue.(map[string]any)
			responses, _ := operation["responses"].(map[string]any)
			if len(responses) == 0 {
				return fmt.Errorf("openapi: operation %s %s missing responses", method, pathKey)
			}
		}
	}
	return nil
}
