package sdk

import (
	_ "embed"
	"fmt"
	"sort"
	"strings"
	"sync"

	json "github.com/goccy/go-json"
)

//go:embed manifest.json
var embeddedManifest []byte

// ServiceDescriptor is one manifest entry.
type ServiceDescriptor struct {
	Name      string            `json:"-"`
	Namespace string            `json:"namespace"`
	Versions  map[string]string `json:"versions,omitempty"`
}

// LatestVersion returns the API version tagged latest, if any.
func (d ServiceDescriptor) LatestVersion() string {
	return d.Versions["latest"]
}

var (
	manifestOnce sync.Once
	manifestData []ServiceDescriptor
)

// Manifest returns the embedded service manifest ordered by endpoint prefix.
// The returned slice is a copy.
func Manifest() []ServiceDescriptor {
	manifestOnce.Do(func() {
		descriptors, err := ParseManifest(embeddedManifest)
		if err != nil {
			panic(fmt.Sprintf("sdk: embedded manifest: %v", err))
		}
		manifestData = descriptors
	})
	return append([]ServiceDescriptor(nil), manifestData...)
}

// ParseManifest decodes a manifest document keyed by endpoint prefix.
func ParseManifest(data []byte) ([]ServiceDescriptor, error) {
	var raw map[string]ServiceDescriptor
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("sdk: decode manifest: %w", err)
	}
	descriptors := make([]ServiceDescriptor, 0, len(raw))
	for name, descriptor := range raw {
		if strings.TrimSpace(descriptor.Namespace) == "" {
			return nil, fmt.Errorf("sdk: manifest entry %q has no namespace", name)
		}
		descriptor.Name = name
		descriptors = append(descriptors, descriptor)
	}
	sort.Slice(descriptors, func(i, j int) bool {
		return descriptors[i].Name < descriptors[j].Name
	})
	return descriptors, nil
}

// Namespaces lists the namespaces of descriptors in order.
func Namespaces(descriptors []ServiceDescriptor) []string {
	out := make([]string, 0, len(descriptors))
	for _, descriptor := range descriptors {
		out = append(out, descriptor.Namespace)
	}
	return out
}

// FindNamespace looks up a descriptor by namespace.
func FindNamespace(descriptors []ServiceDescriptor, namespace string) (ServiceDescriptor, bool) {
	for _, descriptor := range descriptors {
		if descriptor.Namespace == namespace {
			return descriptor, true
		}
	}
	return ServiceDescriptor{}, false
}
