package awsbundle

import (
	"fmt"
	"sort"
	"sync"
	"time"
)

const (
	// ScopeGlobal targets the root options only.
	ScopeGlobal = ""
	// ScopeAll targets the root options and every configured service block.
	ScopeAll = "*"
)

// Rule is a boolean expression checked against processed options. Path is
// ScopeGlobal, ScopeAll or a service namespace. A rule for a namespace that
// has no block in the configuration is skipped. Key names the dotted option
// the rule checks and is appended to the path of a failure.
type Rule struct {
	Path    string
	Key     string
	Expr    string
	Message string
}

// DefaultRules returns stricter checks than the schema applies. They are not
// enabled by default and are written for the expr engine.
func DefaultRules() []Rule {
	return []Rule{
		{Path: ScopeAll, Key: "retries", Expr: "(retries ?? 0) >= 0", Message: "retries must not be negative"},
		{Path: ScopeAll, Key: "http.timeout", Expr: "(http?.timeout ?? 0) >= 0", Message: "http.timeout must not be negative"},
		{Path: ScopeAll, Key: "http.connect_timeout", Expr: "(http?.connect_timeout ?? 0) >= 0", Message: "http.connect_timeout must not be negative"},
		{Path: ScopeAll, Key: "http.delay", Expr: "(http?.delay ?? 0) >= 0", Message: "http.delay must not be negative"},
		{Path: ScopeAll, Key: "scheme", Expr: `scheme == nil || scheme in ["http", "https"]`, Message: `scheme must be "http" or "https"`},
	}
}

// RuleContext carries the inputs of a single rule evaluation.
type RuleContext struct {
	// Scope is "global" or the namespace of the service block.
	Scope    string
	Options  map[string]any
	Metadata map[string]any
	Now      *time.Time
}

func (ctx RuleContext) withDefaults() RuleContext {
	if ctx.Now == nil {
		now := time.Now()
		ctx.Now = &now
	}
	if ctx.Options == nil {
		ctx.Options = map[string]any{}
	}
	if ctx.Metadata == nil {
		ctx.Metadata = map[string]any{}
	}
	if ctx.Scope == "" {
		ctx.Scope = "global"
	}
	return ctx
}

func (ctx RuleContext) timestamp() time.Time {
	return *ctx.withDefaults().Now
}

// reservedNames are bound by every engine and shadow options of the same name.
var reservedNames = map[string]bool{"now": true, "scope": true, "metadata": true, "call": true}

// Evaluator executes expressions against a rule context.
type Evaluator interface {
	Evaluate(ctx RuleContext, expr string) (any, error)
	Compile(expr string) (CompiledRule, error)
}

// CompiledRule is a reusable expression program.
type CompiledRule interface {
	Evaluate(ctx RuleContext) (any, error)
}

// ProgramCache stores compiled expression programs keyed by expression.
type ProgramCache interface {
	Get(key string) (any, bool)
	Set(key string, value any)
}

// MemoryProgramCache is a ProgramCache safe for concurrent use.
type MemoryProgramCache struct {
	programs sync.Map
}

// NewProgramCache constructs an empty in-memory cache.
func NewProgramCache() *MemoryProgramCache {
	return &MemoryProgramCache{}
}

func (c *MemoryProgramCache) Get(key string) (any, bool) {
	return c.programs.Load(key)
}

func (c *MemoryProgramCache) Set(key string, value any) {
	c.programs.Store(key, value)
}

type engineNamer interface {
	Engine() string
}

func evaluatorEngineName(e Evaluator) string {
	if e == nil {
		return "unknown"
	}
	if named, ok := e.(engineNamer); ok {
		return named.Engine()
	}
	return "custom"
}

// ruleRunner evaluates rules over a processed configuration.
type ruleRunner struct {
	evaluator Evaluator
	logger    RuleLogger
	rootName  string
	isService func(string) bool
}

func (r ruleRunner) run(cfg map[string]any, rules []Rule, metadata map[string]any) error {
	if len(rules) == 0 {
		return nil
	}
	if r.evaluator == nil {
		return ErrNoEvaluator
	}
	engine := evaluatorEngineName(r.evaluator)
	globals := make(map[string]any, len(cfg))
	var services []string
	for key, value := range cfg {
		if r.isService(key) {
			services = append(services, key)
			continue
		}
		globals[key] = value
	}
	sort.Strings(services)

	for _, rule := range rules {
		for _, target := range r.targets(rule.Path, cfg, services) {
			ctx := RuleContext{Metadata: metadata}
			path := r.rootName
			if target == "" {
				ctx.Options = globals
			} else {
				ctx.Scope = target
				ctx.Options, _ = cfg[target].(map[string]any)
				path = joinPath(r.rootName, target)
			}
			if rule.Key != "" {
				path = joinPath(path, rule.Key)
			}
			ctx = ctx.withDefaults()

			start := time.Now()
			value, err := r.evaluator.Evaluate(ctx, rule.Expr)
			err = wrapRuleError(engine, rule.Expr, ctx.Scope, err)
			passed, isBool := value.(bool)
			if err == nil && !isBool {
				err = wrapRuleError(engine, rule.Expr, ctx.Scope, fmt.Errorf("rule must return bool, got %T", value))
			}
			if ruleErr, ok := err.(*RuleError); ok {
				ruleErr.Path = path
			}
			r.logger.LogEvaluation(RuleLogEvent{
				Engine:   engine,
				Expr:     rule.Expr,
				Scope:    ctx.Scope,
				Passed:   err == nil && passed,
				Duration: time.Since(start),
				Err:      err,
			})
			if err != nil {
				return err
			}
			if !passed {
				reason := rule.Message
				if reason == "" {
					reason = fmt.Sprintf("rule %q failed", rule.Expr)
				}
				return &ValidationError{Path: path, Reason: reason}
			}
		}
	}
	return nil
}

func (r ruleRunner) targets(path string, cfg map[string]any, services []string) []string {
	switch path {
	case ScopeGlobal:
		return []string{""}
	case ScopeAll:
		return append([]string{""}, services...)
	default:
		if _, ok := cfg[path].(map[string]any); ok {
			return []string{path}
		}
		return nil
	}
}
