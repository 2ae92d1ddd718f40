package sdk

import (
	"fmt"
	"reflect"
	"sort"
	"sync"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/apigatewaymanagementapi"
	"github.com/aws/aws-sdk-go-v2/service/cloudwatch"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/eventbridge"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"github.com/goliatone/go-aws-bundle/internal/typename"
)

// ClientSpec describes how to build the concrete client for a namespace.
type ClientSpec struct {
	Namespace string
	Type      reflect.Type
	New       func(cfg aws.Config, client ClientConfig) any
}

// TypeName is the fully qualified name of the client type.
func (s ClientSpec) TypeName() string {
	return typename.Of(s.Type)
}

// Client builds a ClientSpec whose Type is the static return type of build.
func Client[T any](namespace string, build func(aws.Config, ClientConfig) T) ClientSpec {
	return ClientSpec{
		Namespace: namespace,
		Type:      reflect.TypeFor[T](),
		New: func(cfg aws.Config, client ClientConfig) any {
			return build(cfg, client)
		},
	}
}

// Catalog maps manifest namespaces to concrete client constructors.
type Catalog struct {
	mu    sync.RWMutex
	specs map[string]ClientSpec
}

// NewCatalog constructs a catalog holding specs.
func NewCatalog(specs ...ClientSpec) (*Catalog, error) {
	catalog := &Catalog{specs: make(map[string]ClientSpec, len(specs))}
	for _, spec := range specs {
		if err := catalog.Register(spec); err != nil {
			return nil, err
		}
	}
	return catalog, nil
}

// Register stores spec guarding against duplicates.
func (c *Catalog) Register(spec ClientSpec) error {
	if spec.Namespace == "" {
		return fmt.Errorf("sdk: client namespace must not be empty")
	}
	if spec.New == nil || spec.Type == nil {
		return fmt.Errorf("sdk: client %q has no constructor", spec.Namespace)
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.specs == nil {
		c.specs = make(map[string]ClientSpec)
	}
	if _, exists := c.specs[spec.Namespace]; exists {
		return fmt.Errorf("sdk: client %q already registered", spec.Namespace)
	}
	c.specs[spec.Namespace] = spec
	return nil
}

// Lookup returns the spec registered for namespace.
func (c *Catalog) Lookup(namespace string) (ClientSpec, bool) {
	if c == nil {
		return ClientSpec{}, false
	}
	c.mu.RLock()
	defer c.mu.RUnlock()
	spec, ok := c.specs[namespace]
	return spec, ok
}

// TypeName reports the client type registered for namespace, falling back to
// the generic client.
func (c *Catalog) TypeName(namespace string) (string, bool) {
	if spec, ok := c.Lookup(namespace); ok {
		return spec.TypeName(), true
	}
	return typename.For[*GenericClient](), false
}

// Clone returns a shallow copy of the catalog.
func (c *Catalog) Clone() *Catalog {
	if c == nil {
		return nil
	}
	c.mu.RLock()
	defer c.mu.RUnlock()
	clone := &Catalog{specs: make(map[string]ClientSpec, len(c.specs))}
	for namespace, spec := range c.specs {
		clone.specs[namespace] = spec
	}
	return clone
}

// Names returns the registered namespaces sorted alphabetically.
func (c *Catalog) Names() []string {
	if c == nil {
		return nil
	}
	c.mu.RLock()
	defer c.mu.RUnlock()
	names := make([]string, 0, len(c.specs))
	for name := range c.specs {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// DefaultCatalog returns a fresh catalog with the bundled service clients.
func DefaultCatalog() *Catalog {
	catalog, err := NewCatalog(
		Client("S3", func(cfg aws.Config, client ClientConfig) *s3.Client {
			return s3.NewFromConfig(cfg, func(o *s3.Options) {
				if usePathStyle, ok := client.Extra["use_path_style"].(bool); ok {
					o.UsePathStyle = usePathStyle
				}
			})
		}),
		Client("DynamoDb", func(cfg aws.Config, client ClientConfig) *dynamodb.Client {
			return dynamodb.NewFromConfig(cfg)
		}),
		Client("EventBridge", func(cfg aws.Config, client ClientConfig) *eventbridge.Client {
			return eventbridge.NewFromConfig(cfg)
		}),
		Client("CloudWatch", func(cfg aws.Config, client ClientConfig) *cloudwatch.Client {
			return cloudwatch.NewFromConfig(cfg)
		}),
		Client("ApiGatewayManagementApi", func(cfg aws.Config, client ClientConfig) *apigatewaymanagementapi.Client {
			return apigatewaymanagementapi.NewFromConfig(cfg)
		}),
	)
	if err != nil {
		panic(err)
	}
	return catalog
}
