package source

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	json "github.com/goccy/go-json"
	"gopkg.in/yaml.v3"

	"github.com/goliatone/go-aws-bundle/layering"
)

// Format is a configuration file encoding.
type Format string

const (
	FormatYAML Format = "yaml"
	FormatJSON Format = "json"
)

// RootKey is unwrapped when it is the only key of a decoded document, so
// files may nest their options under "aws:".
const RootKey = "aws"

// FormatFromPath picks the format from the file extension.
func FormatFromPath(path string) (Format, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return FormatYAML, nil
	case ".json":
		return FormatJSON, nil
	default:
		return "", fmt.Errorf("source: unsupported file extension %q", filepath.Ext(path))
	}
}

// Decode parses data into a configuration tree. An empty document yields an
// empty tree.
func Decode(data []byte, format Format) (map[string]any, error) {
	tree := map[string]any{}
	if len(bytes.TrimSpace(data)) == 0 {
		return tree, nil
	}

	var err error
	switch format {
	case FormatYAML:
		err = yaml.Unmarshal(data, &tree)
	case FormatJSON:
		err = json.Unmarshal(data, &tree)
	default:
		return nil, fmt.Errorf("source: unsupported format %q", format)
	}
	if err != nil {
		return nil, fmt.Errorf("source: decode %s: %w", format, err)
	}
	if tree == nil {
		return map[string]any{}, nil
	}

	if len(tree) == 1 {
		if nested, ok := tree[RootKey]; ok {
			switch v := nested.(type) {
			case map[string]any:
				return v, nil
			case nil:
				return map[string]any{}, nil
			}
		}
	}
	return tree, nil
}

// Encode renders tree in format.
func Encode(tree map[string]any, format Format) ([]byte, error) {
	switch format {
	case FormatYAML:
		return yaml.Marshal(tree)
	case FormatJSON:
		return json.MarshalIndent(tree, "", "  ")
	default:
		return nil, fmt.Errorf("source: unsupported format %q", format)
	}
}

// ReadFile decodes the file at path into a layer named after the file.
func ReadFile(path string) (layering.Layer, error) {
	format, err := FormatFromPath(path)
	if err != nil {
		return layering.Layer{}, err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return layering.Layer{}, fmt.Errorf("source: read %s: %w", path, err)
	}
	tree, err := Decode(data, format)
	if err != nil {
		return layering.Layer{}, fmt.Errorf("source: %s: %w", path, err)
	}
	name := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	return layering.NewLayer(name, tree, layering.WithSource(path)), nil
}

// ReadFiles reads every path in order.
func ReadFiles(paths ...string) ([]layering.Layer, error) {
	layers := make([]layering.Layer, 0, len(paths))
	for _, path := range paths {
		layer, err := ReadFile(path)
		if err != nil {
			return nil, err
		}
		layers = append(layers, layer)
	}
	return layers, nil
}
