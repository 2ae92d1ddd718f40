package awsbundle

import (
	"context"
	"fmt"
	"runtime"
	"sort"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/goliatone/go-aws-bundle/internal/typename"
	"github.com/goliatone/go-aws-bundle/layering"
	"github.com/goliatone/go-aws-bundle/pkg/activity"
	"github.com/goliatone/go-aws-bundle/pkg/sdk"
)

// Registration describes one definition written by a load.
type Registration struct {
	ID        string `json:"id"`
	Class     string `json:"class"`
	Alias     string `json:"alias,omitempty"`
	Namespace string `json:"namespace,omitempty"`
	Concrete  bool   `json:"concrete"`
	Lazy      bool   `json:"lazy"`
}

// Report summarises a successful load.
type Report struct {
	LoadID     string            `json:"load_id"`
	Policy     string            `json:"policy"`
	Config     map[string]any    `json:"config"`
	Provenance map[string]string `json:"provenance"`
	Factory    Registration      `json:"factory"`
	Services   []Registration    `json:"services"`
}

// Extension validates layered AWS configuration and registers the shared SDK
// factory plus one lazy client per manifest entry.
type Extension struct {
	cfg       bundleConfig
	schema    *Schema
	rules     []Rule
	evaluator Evaluator
}

// New constructs an Extension. The option schema is built from the manifest
// up front so configuration errors surface before any load.
func New(opts ...Option) (*Extension, error) {
	cfg := applyOptions(opts)
	schema, err := NewSchema(cfg.manifest, cfg.schemaOptions...)
	if err != nil {
		return nil, err
	}

	if _, err := planServices(cfg); err != nil {
		return nil, err
	}

	rules := cfg.rules
	evaluator := cfg.evaluator
	if evaluator == nil && len(rules) > 0 {
		var exprOpts []ExprEvaluatorOption
		if cfg.programCache != nil {
			exprOpts = append(exprOpts, ExprWithProgramCache(cfg.programCache))
		}
		if cfg.functions != nil {
			exprOpts = append(exprOpts, ExprWithFunctionRegistry(cfg.functions))
		}
		evaluator = NewExprEvaluator(exprOpts...)
	}

	return &Extension{
		cfg:       cfg,
		schema:    schema,
		rules:     rules,
		evaluator: evaluator,
	}, nil
}

// Schema returns the option schema.
func (e *Extension) Schema() *Schema {
	return e.schema
}

// Manifest returns the service descriptors the extension registers.
func (e *Extension) Manifest() []sdk.ServiceDescriptor {
	return append([]sdk.ServiceDescriptor(nil), e.cfg.manifest...)
}

// Policy reports the merge policy in use.
func (e *Extension) Policy() layering.Policy {
	return e.cfg.policy
}

// FactoryClassParameter is the container parameter holding the factory type.
func (e *Extension) FactoryClassParameter() string {
	return e.cfg.factoryID + ".class"
}

// ServiceID returns the registration id used for namespace.
func (e *Extension) ServiceID(namespace string) string {
	return e.cfg.servicePrefix + "." + strings.ToLower(namespace)
}

type processed struct {
	layers     []layering.Layer
	merged     map[string]any
	config     map[string]any
	provenance map[string]string
}

// Process validates, merges, checks rules, inflates references and injects
// metadata. The result is the argument the shared factory receives.
func (e *Extension) Process(layers ...layering.Layer) (map[string]any, error) {
	result, err := e.process(layers)
	if err != nil {
		return nil, err
	}
	return result.config, nil
}

func (e *Extension) process(layers []layering.Layer) (processed, error) {
	normalized, err := e.schema.NormalizeLayers(layers...)
	if err != nil {
		return processed{}, err
	}
	merged := layering.Merge(e.cfg.policy, layering.Trees(normalized...)...)

	runner := ruleRunner{
		evaluator: e.evaluator,
		logger:    e.cfg.ruleLogger,
		rootName:  e.schema.root.Name,
		isService: e.schema.IsNamespace,
	}
	if err := runner.run(merged, e.rules, map[string]any{"policy": e.cfg.policy.String()}); err != nil {
		return processed{}, err
	}

	config := Inflate(merged)
	if _, ok := config[MetadataKey]; !ok {
		config[MetadataKey] = e.userAgent()
	}
	return processed{
		layers:     normalized,
		merged:     merged,
		config:     config,
		provenance: layering.Provenance(e.cfg.policy, normalized...),
	}, nil
}

func (e *Extension) userAgent() []any {
	entries := []any{
		"awsbundle/" + Version,
		"Go/" + strings.TrimPrefix(runtime.Version(), "go"),
	}
	for _, entry := range e.cfg.userAgent {
		if entry = strings.TrimSpace(entry); entry != "" {
			entries = append(entries, entry)
		}
	}
	return entries
}

// Load processes bare configuration trees, weakest first, and registers the
// factory and clients into container.
func (e *Extension) Load(ctx context.Context, container Container, layers ...map[string]any) error {
	_, err := e.LoadLayers(ctx, container, layering.Anonymous(layers...)...)
	return err
}

// LoadLayers is Load for named layers and returns a report of what was
// registered. Nothing is written to container unless every layer validates.
// If the container rejects a write midway, earlier writes are rolled back
// when it implements Remover.
func (e *Extension) LoadLayers(ctx context.Context, container Container, layers ...layering.Layer) (*Report, error) {
	if container == nil {
		return nil, fmt.Errorf("awsbundle: container is nil")
	}
	result, err := e.process(layers)
	if err != nil {
		e.cfg.logger.Warn("aws configuration rejected", zap.Error(err))
		return nil, err
	}

	services, err := planServices(e.cfg)
	if err != nil {
		return nil, err
	}

	loadID := uuid.NewString()
	logger := e.cfg.logger.With(zap.String("load_id", loadID))
	factoryID := e.cfg.factoryID
	classParameter := e.FactoryClassParameter()
	factoryClass := typename.For[*sdk.Factory]()
	writes := newContainerWrites(container)

	writes.setParameter(classParameter, factoryClass)
	factory := NewDefinition("%"+classParameter+"%", nil)
	factory.Constructor = e.factoryConstructor()
	if err := writes.setDefinition(factoryID, factory); err != nil {
		return nil, e.abort(writes, fmt.Errorf("awsbundle: register %s: %w", factoryID, err))
	}
	registered, err := container.Definition(factoryID)
	if err != nil {
		return nil, e.abort(writes, fmt.Errorf("awsbundle: fetch %s: %w", factoryID, err))
	}
	if err := registered.ReplaceArgument(0, result.config); err != nil {
		return nil, e.abort(writes, err)
	}

	report := &Report{
		LoadID:     loadID,
		Policy:     e.cfg.policy.String(),
		Config:     result.config,
		Provenance: result.provenance,
		Factory:    Registration{ID: factoryID, Class: factoryClass, Concrete: true},
	}

	for _, service := range services {
		definition := &Definition{
			Class:     service.Class,
			Arguments: []any{service.Namespace},
			Factory:   &FactoryCall{Service: Reference(factoryID), Method: sdk.CreateClientMethod},
			Lazy:      true,
		}
		if err := writes.setDefinition(service.ID, definition); err != nil {
			return nil, e.abort(writes, fmt.Errorf("awsbundle: register %s: %w", service.ID, err))
		}
		if err := writes.setAlias(service.Alias, service.ID); err != nil {
			return nil, e.abort(writes, fmt.Errorf("awsbundle: alias %s: %w", service.ID, err))
		}
		logger.Debug("aws client registered",
			zap.String("id", service.ID),
			zap.String("class", service.Class),
			zap.Bool("concrete", service.Concrete),
		)
		report.Services = append(report.Services, service)
	}

	logger.Info("aws bundle loaded",
		zap.Int("layers", len(layers)),
		zap.Int("services", len(report.Services)),
		zap.String("merge_policy", report.Policy),
	)
	e.emit(ctx, report, result)
	return report, nil
}

// planServices derives the client registrations from the manifest and
// rejects id collisions before anything is written.
func planServices(cfg bundleConfig) ([]Registration, error) {
	if strings.TrimSpace(cfg.factoryID) == "" {
		return nil, fmt.Errorf("%w: factory id must not be empty", ErrInvalidSchema)
	}
	owners := map[string]string{cfg.factoryID: "the shared factory"}
	services := make([]Registration, 0, len(cfg.manifest))
	for _, descriptor := range cfg.manifest {
		namespace := strings.TrimSpace(descriptor.Namespace)
		if namespace == "" {
			return nil, fmt.Errorf("%w: service %q has no namespace", ErrInvalidSchema, descriptor.Name)
		}
		id := cfg.servicePrefix + "." + strings.ToLower(namespace)
		if owner, ok := owners[id]; ok {
			return nil, fmt.Errorf("%w: namespace %q registers as %q, already used by %s", ErrInvalidSchema, namespace, id, owner)
		}
		owners[id] = fmt.Sprintf("namespace %q", namespace)
		class, concrete := cfg.catalog.TypeName(namespace)
		if class == id {
			return nil, fmt.Errorf("%w: namespace %q class equals its id %q", ErrInvalidSchema, namespace, id)
		}
		services = append(services, Registration{
			ID:        id,
			Class:     class,
			Alias:     class,
			Namespace: namespace,
			Concrete:  concrete,
			Lazy:      true,
		})
	}
	return services, nil
}

func (e *Extension) abort(writes *containerWrites, err error) error {
	if !writes.rollback() {
		e.cfg.logger.Warn("aws registrations left in container after failed load",
			zap.Error(err),
			zap.Strings("ids", writes.definitionIDs()),
		)
	}
	return err
}

func (e *Extension) factoryConstructor() func(context.Context, []any) (any, error) {
	opts := []sdk.FactoryOption{
		sdk.WithCatalog(e.cfg.catalog),
		sdk.WithManifest(e.cfg.manifest),
		sdk.WithLogger(e.cfg.logger),
	}
	opts = append(opts, e.cfg.factoryOptions...)
	return func(_ context.Context, args []any) (any, error) {
		if len(args) != 1 {
			return nil, fmt.Errorf("awsbundle: factory expects 1 argument, got %d", len(args))
		}
		config, ok := args[0].(map[string]any)
		if !ok && args[0] != nil {
			return nil, fmt.Errorf("awsbundle: factory argument must be a map, got %T", args[0])
		}
		return sdk.NewFactory(config, opts...), nil
	}
}

// Explain traces an option path through layers, for example "S3.region" or
// "aws.http.timeout".
func (e *Extension) Explain(path string, layers ...layering.Layer) (Trace, error) {
	path = strings.TrimPrefix(strings.TrimSpace(path), e.schema.root.Name+".")
	if path == "" {
		return Trace{}, fmt.Errorf("awsbundle: explain path must not be empty")
	}
	normalized, err := e.schema.NormalizeLayers(layers...)
	if err != nil {
		return Trace{}, err
	}
	merged := layering.Merge(e.cfg.policy, layering.Trees(normalized...)...)
	top := strings.SplitN(path, ".", 2)[0]

	effective := -1
	if e.cfg.policy == layering.ReplaceRoot {
		if len(normalized) > 0 {
			effective = len(normalized) - 1
		}
	} else {
		for i, layer := range normalized {
			if _, ok := layer.Tree[top]; ok {
				effective = i
			}
		}
	}

	trace := Trace{Path: path, Policy: e.cfg.policy.String()}
	trace.Value, trace.Found = layering.Lookup(merged, path)
	for i, layer := range normalized {
		value, found := layering.Lookup(layer.Tree, path)
		trace.Layers = append(trace.Layers, Provenance{
			Layer:     layer.Name,
			Source:    layer.Source,
			Value:     value,
			Found:     found,
			Effective: i == effective && found,
		})
	}
	return trace, nil
}

// SchemaDocument renders the option schema with generator, falling back to
// the descriptor generator.
func (e *Extension) SchemaDocument(generator SchemaGenerator) (SchemaDocument, error) {
	if generator == nil {
		generator = DescriptorGenerator()
	}
	return generator.Generate(e.schema)
}

func (e *Extension) emit(ctx context.Context, report *Report, result processed) {
	emitter := activity.NewEmitter(e.cfg.activityHooks, e.cfg.activityConfig)
	if !emitter.Enabled() {
		return
	}

	layerContexts := make([]activity.LayerContext, 0, len(result.layers))
	for _, layer := range result.layers {
		layerContexts = append(layerContexts, activity.LayerContext{
			Name:   layer.Name,
			Source: layer.Source,
			Keys:   sortedKeys(layer.Tree),
		})
	}
	base := activity.LoadEventInput{LoadID: report.LoadID, Layers: layerContexts}

	var services []string
	for key := range result.merged {
		if e.schema.IsNamespace(key) {
			services = append(services, key)
		}
	}
	sort.Strings(services)

	registered := make(map[string]string, len(report.Services))
	for _, service := range report.Services {
		registered[service.ID] = service.Class
	}

	events := []activity.Event{
		activity.BuildConfigProcessedEvent(activity.ConfigProcessedInput{
			LoadEventInput: base,
			MergePolicy:    report.Policy,
			Keys:           sortedKeys(result.merged),
			Services:       services,
		}),
		activity.BuildServicesRegisteredEvent(activity.ServicesRegisteredInput{
			LoadEventInput: base,
			FactoryID:      report.Factory.ID,
			Services:       registered,
		}),
	}
	for _, event := range events {
		if err := emitter.Emit(ctx, event); err != nil {
			e.cfg.logger.Warn("aws activity hook failed",
				zap.String("verb", event.Verb),
				zap.String("load_id", report.LoadID),
				zap.Error(err),
			)
		}
	}
}

func sortedKeys(tree map[string]any) []string {
	keys := make([]string, 0, len(tree))
	for key := range tree {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	return keys
}
