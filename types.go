package awsbundle

import (
	"github.com/goliatone/go-aws-bundle/layering"
	"github.com/goliatone/go-aws-bundle/pkg/activity"
	"github.com/goliatone/go-aws-bundle/pkg/sdk"
	"go.uber.org/zap"
)

// Version is appended to the SDK user agent of every client.
const Version = "0.4.0"

const (
	// DefaultFactoryID is the registration id of the shared SDK factory.
	DefaultFactoryID = "aws_sdk"
	// DefaultServicePrefix prefixes every client registration id.
	DefaultServicePrefix = "aws"
	// MetadataKey is the option the bundle seeds with user agent entries.
	MetadataKey = "ua_append"
	// RootName is the name validation errors use for the option tree root.
	RootName = "aws"
)

// ServiceDescriptor is re-exported for callers that only import the bundle.
type ServiceDescriptor = sdk.ServiceDescriptor

// Option configures an Extension.
type Option func(*bundleConfig)

type bundleConfig struct {
	manifest       []sdk.ServiceDescriptor
	catalog        *sdk.Catalog
	logger         *zap.Logger
	policy         layering.Policy
	rules          []Rule
	evaluator      Evaluator
	programCache   ProgramCache
	functions      *FunctionRegistry
	ruleLogger     RuleLogger
	activityHooks  activity.Hooks
	activityConfig activity.Config
	userAgent      []string
	servicePrefix  string
	factoryID      string
	factoryOptions []sdk.FactoryOption
	schemaOptions  []SchemaOption
}

func applyOptions(opts []Option) bundleConfig {
	cfg := bundleConfig{
		logger:         zap.NewNop(),
		policy:         layering.ReplaceKeys,
		servicePrefix:  DefaultServicePrefix,
		factoryID:      DefaultFactoryID,
		activityConfig: activity.Config{Enabled: true},
	}
	for _, opt := range opts {
		if opt != nil {
			opt(&cfg)
		}
	}
	if cfg.manifest == nil {
		cfg.manifest = sdk.Manifest()
	}
	if cfg.catalog == nil {
		cfg.catalog = sdk.DefaultCatalog()
	}
	if cfg.ruleLogger == nil {
		cfg.ruleLogger = NewZapRuleLogger(cfg.logger)
	}
	return cfg
}

// WithManifest replaces the embedded service manifest.
func WithManifest(descriptors []sdk.ServiceDescriptor) Option {
	return func(cfg *bundleConfig) {
		cfg.manifest = append([]sdk.ServiceDescriptor{}, descriptors...)
	}
}

// WithCatalog replaces the catalog used to find concrete client types.
func WithCatalog(catalog *sdk.Catalog) Option {
	return func(cfg *bundleConfig) {
		if catalog != nil {
			cfg.catalog = catalog.Clone()
		}
	}
}

// WithLogger sets the logger for the extension and the factory it registers.
func WithLogger(logger *zap.Logger) Option {
	return func(cfg *bundleConfig) {
		if logger != nil {
			cfg.logger = logger
		}
	}
}

// WithMergePolicy selects how configuration layers are combined.
func WithMergePolicy(policy layering.Policy) Option {
	return func(cfg *bundleConfig) {
		cfg.policy = policy
	}
}

// WithRules sets the option rules evaluated after validation. No rules run
// unless configured; pass DefaultRules() to opt into the stock checks.
func WithRules(rules ...Rule) Option {
	return func(cfg *bundleConfig) {
		cfg.rules = append([]Rule(nil), rules...)
	}
}

// WithEvaluator configures the rule evaluator. The default is expr.
func WithEvaluator(evaluator Evaluator) Option {
	return func(cfg *bundleConfig) {
		cfg.evaluator = evaluator
	}
}

// WithProgramCache registers a cache for compiled rule programs.
func WithProgramCache(cache ProgramCache) Option {
	return func(cfg *bundleConfig) {
		cfg.programCache = cache
	}
}

// WithFunctionRegistry exposes registry functions to rule expressions.
func WithFunctionRegistry(registry *FunctionRegistry) Option {
	return func(cfg *bundleConfig) {
		if registry != nil {
			cfg.functions = registry.Clone()
		}
	}
}

// WithRuleLogger records every rule evaluation.
func WithRuleLogger(logger RuleLogger) Option {
	return func(cfg *bundleConfig) {
		if logger == nil {
			cfg.ruleLogger = noopRuleLogger{}
			return
		}
		cfg.ruleLogger = logger
	}
}

// WithActivityHooks attaches hooks notified after a successful load.
func WithActivityHooks(hooks ...activity.ActivityHook) Option {
	return func(cfg *bundleConfig) {
		cfg.activityHooks = append(cfg.activityHooks, hooks...).Clone()
	}
}

// WithActivityConfig overrides activity emission defaults.
func WithActivityConfig(config activity.Config) Option {
	return func(cfg *bundleConfig) {
		cfg.activityConfig = config
	}
}

// WithUserAgent appends entries to the default ua_append value.
func WithUserAgent(entries ...string) Option {
	return func(cfg *bundleConfig) {
		cfg.userAgent = append(cfg.userAgent, entries...)
	}
}

// WithServicePrefix changes the prefix of client registration ids.
func WithServicePrefix(prefix string) Option {
	return func(cfg *bundleConfig) {
		if prefix != "" {
			cfg.servicePrefix = prefix
		}
	}
}

// WithFactoryID changes the registration id of the shared factory.
func WithFactoryID(id string) Option {
	return func(cfg *bundleConfig) {
		if id != "" {
			cfg.factoryID = id
		}
	}
}

// WithFactoryOptions forwards options to the factory built at resolution time.
func WithFactoryOptions(opts ...sdk.FactoryOption) Option {
	return func(cfg *bundleConfig) {
		cfg.factoryOptions = append(cfg.factoryOptions, opts...)
	}
}

// WithSchemaOptions forwards options to the schema built from the manifest.
func WithSchemaOptions(opts ...SchemaOption) Option {
	return func(cfg *bundleConfig) {
		cfg.schemaOptions = append(cfg.schemaOptions, opts...)
	}
}
