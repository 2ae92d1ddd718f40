package sdk

import (
	"bytes"
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"net"
	"net/http"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsmiddleware "github.com/aws/aws-sdk-go-v2/aws/middleware"
	awshttp "github.com/aws/aws-sdk-go-v2/aws/transport/http"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/goliatone/go-aws-bundle/internal/hydrate"
)

// CreateClientMethod is the factory method client registrations call.
const CreateClientMethod = "CreateClient"

var (
	// ErrUnsupportedCredentials reports a credentials value the factory cannot use.
	ErrUnsupportedCredentials = errors.New("sdk: unsupported credentials value")
	// ErrUnknownService reports a namespace missing from the manifest.
	ErrUnknownService = errors.New("sdk: unknown service namespace")
)

// FactoryOption configures a Factory.
type FactoryOption func(*Factory)

// WithCatalog replaces the client catalog.
func WithCatalog(catalog *Catalog) FactoryOption {
	return func(f *Factory) {
		if catalog != nil {
			f.catalog = catalog
		}
	}
}

// WithManifest replaces the service manifest.
func WithManifest(descriptors []ServiceDescriptor) FactoryOption {
	return func(f *Factory) {
		if descriptors != nil {
			f.manifest = append([]ServiceDescriptor(nil), descriptors...)
		}
	}
}

// WithLogger sets the logger used for factory events and SDK debug output.
func WithLogger(logger *zap.Logger) FactoryOption {
	return func(f *Factory) {
		if logger != nil {
			f.logger = logger
		}
	}
}

// WithLoadOptions appends options applied after the ones derived from the
// configuration.
func WithLoadOptions(opts ...func(*config.LoadOptions) error) FactoryOption {
	return func(f *Factory) {
		f.loadOptions = append(f.loadOptions, opts...)
	}
}

// WithValidator replaces the struct validator used for ClientConfig.
func WithValidator(validate *validator.Validate) FactoryOption {
	return func(f *Factory) {
		if validate != nil {
			f.validate = validate
		}
	}
}

// Factory builds service clients from the processed bundle configuration.
// Global options apply to every client; the subtree keyed by a namespace
// replaces them key by key for that client.
type Factory struct {
	args        map[string]any
	catalog     *Catalog
	manifest    []ServiceDescriptor
	logger      *zap.Logger
	loadOptions []func(*config.LoadOptions) error
	validate    *validator.Validate
	decoder     *hydrate.Decoder[ClientConfig]
}

// NewFactory constructs a factory over args.
func NewFactory(args map[string]any, opts ...FactoryOption) *Factory {
	f := &Factory{
		args:   args,
		logger: zap.NewNop(),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(f)
		}
	}
	if f.args == nil {
		f.args = map[string]any{}
	}
	if f.catalog == nil {
		f.catalog = DefaultCatalog()
	}
	if f.manifest == nil {
		f.manifest = Manifest()
	}
	if f.validate == nil {
		f.validate = validator.New()
	}
	f.decoder = hydrate.NewDecoder(hydrate.WithPreHook[ClientConfig](stripUntyped))
	return f
}

// Args returns a shallow copy of the configuration the factory was built with.
func (f *Factory) Args() map[string]any {
	out := make(map[string]any, len(f.args))
	for key, value := range f.args {
		out[key] = value
	}
	return out
}

// ServiceArgs returns the effective options for namespace: the global options
// with the namespace subtree applied on top.
func (f *Factory) ServiceArgs(namespace string) (map[string]any, error) {
	if _, ok := FindNamespace(f.manifest, namespace); !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownService, namespace)
	}
	merged := make(map[string]any, len(f.args))
	for key, value := range f.args {
		if _, isService := FindNamespace(f.manifest, key); isService {
			continue
		}
		merged[key] = value
	}
	if overrides, ok := f.args[namespace].(map[string]any); ok {
		for key, value := range overrides {
			merged[key] = value
		}
	}
	return merged, nil
}

// ClientConfig decodes and validates the effective options for namespace.
func (f *Factory) ClientConfig(namespace string) (ClientConfig, error) {
	merged, err := f.ServiceArgs(namespace)
	if err != nil {
		return ClientConfig{}, err
	}
	client, err := f.decoder.Decode(hydrate.Context{Service: namespace, Path: namespace}, merged)
	if err != nil {
		return ClientConfig{}, fmt.Errorf("sdk: %w", err)
	}
	if err := f.validate.Struct(client); err != nil {
		return ClientConfig{}, fmt.Errorf("sdk: invalid options for %s: %w", namespace, err)
	}

	client.Credentials = merged["credentials"]
	client.Debug = merged["debug"]
	client.EndpointDiscovery = merged["endpoint_discovery"]
	client.UserAgent = userAgentKeys(merged["ua_append"])
	for key, value := range merged {
		if _, typed := typedKeys[key]; typed {
			continue
		}
		if client.Extra == nil {
			client.Extra = map[string]any{}
		}
		client.Extra[key] = value
	}
	return client, nil
}

// Config resolves the SDK configuration for namespace.
func (f *Factory) Config(ctx context.Context, namespace string) (aws.Config, ClientConfig, error) {
	client, err := f.ClientConfig(namespace)
	if err != nil {
		return aws.Config{}, ClientConfig{}, err
	}

	var loadOpts []func(*config.LoadOptions) error
	if client.Region != "" {
		loadOpts = append(loadOpts, config.WithRegion(client.Region))
	}
	if client.Profile != "" {
		loadOpts = append(loadOpts, config.WithSharedConfigProfile(client.Profile))
	}
	if client.Retries != nil {
		loadOpts = append(loadOpts, config.WithRetryMaxAttempts(*client.Retries+1))
	}

	provider, err := credentialsProvider(client.Credentials)
	if err != nil {
		return aws.Config{}, ClientConfig{}, fmt.Errorf("sdk: %s: %w", namespace, err)
	}
	if provider != nil {
		loadOpts = append(loadOpts, config.WithCredentialsProvider(provider))
	}

	httpClient, err := buildHTTPClient(client.HTTP)
	if err != nil {
		return aws.Config{}, ClientConfig{}, fmt.Errorf("sdk: %s: %w", namespace, err)
	}
	loadOpts = append(loadOpts, config.WithHTTPClient(httpClient))
	if bundle, ok := client.HTTP.Verify.(string); ok && bundle != "" {
		pem, err := os.ReadFile(bundle)
		if err != nil {
			return aws.Config{}, ClientConfig{}, fmt.Errorf("sdk: %s: read CA bundle: %w", namespace, err)
		}
		loadOpts = append(loadOpts, config.WithCustomCABundle(bytes.NewReader(pem)))
	}

	if mode := clientLogMode(client.Debug, client.HTTP.Debug); mode != 0 {
		loadOpts = append(loadOpts,
			config.WithClientLogMode(mode),
			config.WithLogger(NewLogger(f.logger)),
		)
	}
	if state, ok := endpointDiscovery(client.EndpointDiscovery); ok {
		loadOpts = append(loadOpts, config.WithEndpointDiscovery(state))
	}
	loadOpts = append(loadOpts, f.loadOptions...)

	cfg, err := config.LoadDefaultConfig(ctx, loadOpts...)
	if err != nil {
		return aws.Config{}, ClientConfig{}, fmt.Errorf("sdk: load config for %s: %w", namespace, err)
	}
	if endpoint := client.ResolvedEndpoint(); endpoint != "" {
		cfg.BaseEndpoint = aws.String(endpoint)
	}
	for _, key := range client.UserAgent {
		cfg.APIOptions = append(cfg.APIOptions, awsmiddleware.AddUserAgentKey(key))
	}
	return cfg, client, nil
}

// CreateClient builds the client for namespace. Namespaces without a catalog
// entry yield a *GenericClient.
func (f *Factory) CreateClient(ctx context.Context, namespace string) (any, error) {
	cfg, client, err := f.Config(ctx, namespace)
	if err != nil {
		return nil, err
	}
	if spec, ok := f.catalog.Lookup(namespace); ok {
		f.logger.Debug("aws client created",
			zap.String("namespace", namespace),
			zap.String("type", spec.TypeName()),
			zap.String("region", cfg.Region),
		)
		return spec.New(cfg, client), nil
	}
	f.logger.Debug("aws generic client created",
		zap.String("namespace", namespace),
		zap.String("region", cfg.Region),
	)
	return &GenericClient{Namespace: namespace, Config: cfg, Options: client}, nil
}

// ResolvedEndpoint returns the endpoint with the configured scheme applied when
// it has none.
func (c ClientConfig) ResolvedEndpoint() string {
	endpoint := strings.TrimSpace(c.Endpoint)
	if endpoint == "" || strings.Contains(endpoint, "://") {
		return endpoint
	}
	scheme := c.Scheme
	if scheme == "" {
		scheme = "https"
	}
	return scheme + "://" + endpoint
}

func stripUntyped(_ hydrate.Context, payload map[string]any) (map[string]any, error) {
	for key := range payload {
		if _, typed := typedKeys[key]; !typed {
			delete(payload, key)
		}
	}
	for _, key := range opaqueKeys {
		delete(payload, key)
	}
	return payload, nil
}

func credentialsProvider(value any) (aws.CredentialsProvider, error) {
	switch v := value.(type) {
	case nil:
		return nil, nil
	case aws.CredentialsProvider:
		return v, nil
	case bool:
		if v {
			return nil, nil
		}
		return aws.AnonymousCredentials{}, nil
	case map[string]any:
		key, _ := v["key"].(string)
		secret, _ := v["secret"].(string)
		token, _ := v["token"].(string)
		if key == "" || secret == "" {
			return nil, fmt.Errorf("%w: key and secret are required", ErrUnsupportedCredentials)
		}
		return credentials.NewStaticCredentialsProvider(key, secret, token), nil
	default:
		return nil, fmt.Errorf("%w: %T", ErrUnsupportedCredentials, value)
	}
}

func buildHTTPClient(cfg HTTPConfig) (*awshttp.BuildableClient, error) {
	client := awshttp.NewBuildableClient()
	if cfg.Timeout != nil && *cfg.Timeout > 0 {
		client = client.WithTimeout(seconds(*cfg.Timeout))
	}
	if cfg.ConnectTimeout != nil && *cfg.ConnectTimeout > 0 {
		timeout := seconds(*cfg.ConnectTimeout)
		client = client.WithDialerOptions(func(d *net.Dialer) {
			d.Timeout = timeout
		})
	}

	proxy, err := proxyFunc(cfg.Proxy)
	if err != nil {
		return nil, err
	}
	insecure := false
	if verify, ok := cfg.Verify.(bool); ok && !verify {
		insecure = true
	}
	disableCompression := cfg.DecodeContent != nil && !*cfg.DecodeContent

	client = client.WithTransportOptions(func(tr *http.Transport) {
		if proxy != nil {
			tr.Proxy = proxy
		}
		if insecure {
			if tr.TLSClientConfig == nil {
				tr.TLSClientConfig = &tls.Config{}
			}
			tr.TLSClientConfig.InsecureSkipVerify = true
		}
		if disableCompression {
			tr.DisableCompression = true
		}
	})
	return client, nil
}

func proxyFunc(value any) (func(*http.Request) (*url.URL, error), error) {
	switch v := value.(type) {
	case nil:
		return nil, nil
	case string:
		if v == "" {
			return nil, nil
		}
		u, err := url.Parse(v)
		if err != nil {
			return nil, fmt.Errorf("invalid proxy %q: %w", v, err)
		}
		return http.ProxyURL(u), nil
	case map[string]any:
		byScheme := make(map[string]*url.URL, len(v))
		for scheme, raw := range v {
			str, ok := raw.(string)
			if !ok {
				continue
			}
			u, err := url.Parse(str)
			if err != nil {
				return nil, fmt.Errorf("invalid %s proxy %q: %w", scheme, str, err)
			}
			byScheme[strings.ToLower(scheme)] = u
		}
		return func(req *http.Request) (*url.URL, error) {
			return byScheme[req.URL.Scheme], nil
		}, nil
	default:
		return nil, fmt.Errorf("unsupported proxy value %T", value)
	}
}

func clientLogMode(debug any, httpDebug bool) aws.ClientLogMode {
	var mode aws.ClientLogMode
	switch v := debug.(type) {
	case bool:
		if v {
			mode |= aws.LogRetries | aws.LogRequest | aws.LogResponse
		}
	case map[string]any:
		for key, flag := range v {
			enabled, _ := flag.(bool)
			if !enabled {
				continue
			}
			mode |= aws.LogRetries | aws.LogRequest | aws.LogResponse
			if key == "http" {
				mode |= aws.LogRequestWithBody | aws.LogResponseWithBody
			}
		}
	}
	if httpDebug {
		mode |= aws.LogRequest | aws.LogResponse
	}
	return mode
}

func endpointDiscovery(value any) (aws.EndpointDiscoveryEnableState, bool) {
	switch v := value.(type) {
	case bool:
		if v {
			return aws.EndpointDiscoveryEnabled, true
		}
		return aws.EndpointDiscoveryDisabled, true
	case string:
		if strings.EqualFold(v, "auto") {
			return aws.EndpointDiscoveryAuto, true
		}
	case map[string]any:
		if enabled, ok := v["enabled"].(bool); ok {
			return endpointDiscovery(enabled)
		}
	}
	return aws.EndpointDiscoveryUnset, false
}

func userAgentKeys(value any) []string {
	switch v := value.(type) {
	case string:
		if v == "" {
			return nil
		}
		return []string{v}
	case []string:
		return append([]string(nil), v...)
	case []any:
		out := make([]string, 0, len(v))
		for _, item := range v {
			if s, ok := item.(string); ok && s != "" {
				out = append(out, s)
			}
		}
		return out
	default:
		return nil
	}
}

func seconds(value float64) time.Duration {
	return time.Duration(value * float64(time.Second))
}
