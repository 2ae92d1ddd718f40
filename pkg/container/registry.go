package container

import (
	"context"
	"errors"
	"fmt"
	"reflect"
	"sort"
	"strings"
	"sync"

	"go.uber.org/zap"

	awsbundle "github.com/goliatone/go-aws-bundle"
	"github.com/goliatone/go-aws-bundle/internal/typename"
)

var (
	ErrServiceNotFound   = errors.New("container: service not found")
	ErrCircularReference = errors.New("container: circular reference")
	ErrInvalidFactory    = errors.New("container: invalid factory")
)

var (
	contextType = reflect.TypeOf((*context.Context)(nil)).Elem()
	errorType   = reflect.TypeOf((*error)(nil)).Elem()
)

// Option configures a Registry.
type Option func(*Registry)

// WithLogger sets the logger used for instantiation events.
func WithLogger(logger *zap.Logger) Option {
	return func(r *Registry) {
		if logger != nil {
			r.logger = logger
		}
	}
}

// Registry is a name-keyed definition registry. Definitions are instantiated
// once on first use and shared afterwards.
type Registry struct {
	mu          sync.RWMutex
	buildMu     sync.Mutex
	definitions map[string]*awsbundle.Definition
	aliases     map[string]string
	parameters  map[string]any
	instances   map[string]any
	logger      *zap.Logger
}

var (
	_ awsbundle.Container = (*Registry)(nil)
	_ awsbundle.Remover   = (*Registry)(nil)
)

// New constructs an empty registry.
func New(opts ...Option) *Registry {
	r := &Registry{
		definitions: make(map[string]*awsbundle.Definition),
		aliases:     make(map[string]string),
		parameters:  make(map[string]any),
		instances:   make(map[string]any),
		logger:      zap.NewNop(),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(r)
		}
	}
	return r
}

// SetDefinition stores definition under id, replacing any earlier definition
// and dropping its instance.
func (r *Registry) SetDefinition(id string, definition *awsbundle.Definition) error {
	if strings.TrimSpace(id) == "" {
		return fmt.Errorf("container: definition id must not be empty")
	}
	if definition == nil {
		return fmt.Errorf("container: definition %q is nil", id)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.aliases, id)
	delete(r.instances, id)
	r.definitions[id] = definition
	return nil
}

// RemoveDefinition drops the definition stored under id and its instance.
// Aliases pointing at id are left dangling.
func (r *Registry) RemoveDefinition(id string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.definitions, id)
	delete(r.instances, id)
}

// RemoveAlias drops alias.
func (r *Registry) RemoveAlias(alias string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.aliases, alias)
}

// RemoveParameter drops the named parameter.
func (r *Registry) RemoveParameter(name string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.parameters, name)
}

// SetAlias points alias at id. The target does not need to exist yet.
func (r *Registry) SetAlias(alias, id string) error {
	if strings.TrimSpace(alias) == "" || strings.TrimSpace(id) == "" {
		return fmt.Errorf("container: alias and id must not be empty")
	}
	if alias == id {
		return fmt.Errorf("%w: alias %q points at itself", ErrCircularReference, alias)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.aliases[alias] = id
	return nil
}

// Definition returns the definition for id, following aliases. The returned
// pointer is the stored definition.
func (r *Registry) Definition(id string) (*awsbundle.Definition, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	resolved, err := r.resolveAliasLocked(id)
	if err != nil {
		return nil, err
	}
	definition, ok := r.definitions[resolved]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrServiceNotFound, id)
	}
	return definition, nil
}

// SetParameter stores a named parameter usable as %name% in classes.
func (r *Registry) SetParameter(name string, value any) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.parameters[name] = value
}

// Parameter returns the named parameter.
func (r *Registry) Parameter(name string) (any, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	value, ok := r.parameters[name]
	return value, ok
}

// Has reports whether id names a definition or an alias of one.
func (r *Registry) Has(id string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	resolved, err := r.resolveAliasLocked(id)
	if err != nil {
		return false
	}
	_, ok := r.definitions[resolved]
	return ok
}

// IDs lists definition ids sorted alphabetically.
func (r *Registry) IDs() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	ids := make([]string, 0, len(r.definitions))
	for id := range r.definitions {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Aliases returns a copy of the alias table.
func (r *Registry) Aliases() map[string]string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make(map[string]string, len(r.aliases))
	for alias, id := range r.aliases {
		out[alias] = id
	}
	return out
}

// Class returns the class of id with %parameter% placeholders expanded.
func (r *Registry) Class(id string) (string, error) {
	definition, err := r.Definition(id)
	if err != nil {
		return "", err
	}
	return r.expandParameters(definition.Class)
}

// Initialized reports whether id has already been instantiated.
func (r *Registry) Initialized(id string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	resolved, err := r.resolveAliasLocked(id)
	if err != nil {
		return false
	}
	_, ok := r.instances[resolved]
	return ok
}

// Get returns the instance for id, building it and its references on first
// use.
func (r *Registry) Get(ctx context.Context, id string) (any, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	r.mu.RLock()
	resolved, err := r.resolveAliasLocked(id)
	if err == nil {
		if instance, ok := r.instances[resolved]; ok {
			r.mu.RUnlock()
			return instance, nil
		}
	}
	r.mu.RUnlock()
	if err != nil {
		return nil, err
	}

	r.buildMu.Lock()
	defer r.buildMu.Unlock()
	return r.get(ctx, id, nil)
}

// Resolve returns the instance aliased by the type name of T.
func Resolve[T any](ctx context.Context, r *Registry) (T, error) {
	var zero T
	alias := typename.For[T]()
	instance, err := r.Get(ctx, alias)
	if err != nil {
		return zero, err
	}
	typed, ok := instance.(T)
	if !ok {
		return zero, fmt.Errorf("container: %s resolved to %T", alias, instance)
	}
	return typed, nil
}

// Boot instantiates every definition that is not lazy.
func (r *Registry) Boot(ctx context.Context) error {
	for _, id := range r.IDs() {
		definition, err := r.Definition(id)
		if err != nil {
			return err
		}
		if definition.Lazy {
			continue
		}
		if _, err := r.Get(ctx, id); err != nil {
			return err
		}
	}
	return nil
}

// get must be called with buildMu held. stack holds the ids being built.
func (r *Registry) get(ctx context.Context, id string, stack []string) (any, error) {
	r.mu.RLock()
	resolved, err := r.resolveAliasLocked(id)
	if err != nil {
		r.mu.RUnlock()
		return nil, err
	}
	if instance, ok := r.instances[resolved]; ok {
		r.mu.RUnlock()
		return instance, nil
	}
	definition, ok := r.definitions[resolved]
	r.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrServiceNotFound, id)
	}

	for _, building := range stack {
		if building == resolved {
			return nil, fmt.Errorf("%w: %s -> %s", ErrCircularReference, strings.Join(stack, " -> "), resolved)
		}
	}
	stack = append(stack, resolved)

	args := make([]any, len(definition.Arguments))
	for i, argument := range definition.Arguments {
		value, err := r.resolveValue(ctx, argument, stack)
		if err != nil {
			return nil, fmt.Errorf("container: %s argument %d: %w", resolved, i, err)
		}
		args[i] = value
	}

	var instance any
	switch {
	case definition.Factory != nil:
		instance, err = r.callFactory(ctx, definition.Factory, args, stack)
	case definition.Constructor != nil:
		instance, err = definition.Constructor(ctx, args)
	default:
		err = fmt.Errorf("%w: %s has neither factory nor constructor", ErrInvalidFactory, resolved)
	}
	if err != nil {
		return nil, fmt.Errorf("container: build %s: %w", resolved, err)
	}

	r.mu.Lock()
	r.instances[resolved] = instance
	r.mu.Unlock()
	r.logger.Debug("service instantiated",
		zap.String("id", resolved),
		zap.String("type", fmt.Sprintf("%T", instance)),
	)
	return instance, nil
}

func (r *Registry) resolveValue(ctx context.Context, value any, stack []string) (any, error) {
	switch v := value.(type) {
	case awsbundle.Reference:
		return r.get(ctx, v.ID(), stack)
	case map[string]any:
		out := make(map[string]any, len(v))
		for key, item := range v {
			resolved, err := r.resolveValue(ctx, item, stack)
			if err != nil {
				return nil, err
			}
			out[key] = resolved
		}
		return out, nil
	case []any:
		out := make([]any, len(v))
		for i, item := range v {
			resolved, err := r.resolveValue(ctx, item, stack)
			if err != nil {
				return nil, err
			}
			out[i] = resolved
		}
		return out, nil
	default:
		return value, nil
	}
}

func (r *Registry) callFactory(ctx context.Context, call *awsbundle.FactoryCall, args []any, stack []string) (any, error) {
	service, err := r.get(ctx, call.Service.ID(), stack)
	if err != nil {
		return nil, err
	}
	method := reflect.ValueOf(service).MethodByName(call.Method)
	if !method.IsValid() {
		return nil, fmt.Errorf("%w: %T has no method %s", ErrInvalidFactory, service, call.Method)
	}

	methodType := method.Type()
	var in []reflect.Value
	if methodType.NumIn() > 0 && methodType.In(0) == contextType {
		in = append(in, reflect.ValueOf(ctx))
	}
	if methodType.IsVariadic() || methodType.NumIn() != len(in)+len(args) {
		return nil, fmt.Errorf("%w: %s takes %d arguments, got %d", ErrInvalidFactory, call, methodType.NumIn()-len(in), len(args))
	}
	for i, arg := range args {
		paramType := methodType.In(len(in))
		if arg == nil {
			in = append(in, reflect.Zero(paramType))
			continue
		}
		value := reflect.ValueOf(arg)
		if !value.Type().AssignableTo(paramType) {
			return nil, fmt.Errorf("%w: %s argument %d is %T, want %s", ErrInvalidFactory, call, i, arg, paramType)
		}
		in = append(in, value)
	}

	out := method.Call(in)
	switch {
	case len(out) == 1:
		return out[0].Interface(), nil
	case len(out) == 2 && methodType.Out(1).Implements(errorType):
		if errValue := out[1].Interface(); errValue != nil {
			return nil, errValue.(error)
		}
		return out[0].Interface(), nil
	default:
		return nil, fmt.Errorf("%w: %s must return a value and optionally an error", ErrInvalidFactory, call)
	}
}

func (r *Registry) resolveAliasLocked(id string) (string, error) {
	seen := map[string]bool{}
	current := id
	for {
		target, ok := r.aliases[current]
		if !ok {
			return current, nil
		}
		if seen[current] {
			return "", fmt.Errorf("%w: alias loop at %q", ErrCircularReference, current)
		}
		seen[current] = true
		current = target
	}
}

func (r *Registry) expandParameters(value string) (string, error) {
	var b strings.Builder
	for {
		start := strings.IndexByte(value, '%')
		if start < 0 {
			b.WriteString(value)
			return b.String(), nil
		}
		end := strings.IndexByte(value[start+1:], '%')
		if end < 0 {
			b.WriteString(value)
			return b.String(), nil
		}
		b.WriteString(value[:start])
		name := value[start+1 : start+1+end]
		if name == "" {
			b.WriteByte('%')
		} else {
			param, ok := r.Parameter(name)
			if !ok {
				return "", fmt.Errorf("container: parameter %q not set", name)
			}
			fmt.Fprint(&b, param)
		}
		value = value[start+2+end:]
	}
}
