package layering

import "fmt"

// Layer pairs a configuration tree with the name of the file or environment it
// was read from.
type Layer struct {
	Name   string
	Source string
	Tree   map[string]any
}

// LayerOption configures optional metadata for a layer.
type LayerOption func(*Layer)

// WithSource records where the layer was loaded from (a path, a store key).
func WithSource(source string) LayerOption {
	return func(layer *Layer) {
		layer.Source = source
	}
}

// NewLayer constructs a Layer holding a private copy of tree.
func NewLayer(name string, tree map[string]any, opts ...LayerOption) Layer {
	layer := Layer{
		Name: name,
		Tree: CloneTree(tree),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(&layer)
		}
	}
	return layer
}

// Anonymous wraps bare trees into layers named layer[0], layer[1], ...
func Anonymous(trees ...map[string]any) []Layer {
	layers := make([]Layer, len(trees))
	for i, tree := range trees {
		layers[i] = NewLayer(fmt.Sprintf("layer[%d]", i), tree)
	}
	return layers
}

// Trees returns the raw trees of layers in order.
func Trees(layers ...Layer) []map[string]any {
	out := make([]map[string]any, len(layers))
	for i := range layers {
		out[i] = layers[i].Tree
	}
	return out
}
