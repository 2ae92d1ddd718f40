package awsbundle

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrInvalidConfiguration matches every *ValidationError.
	ErrInvalidConfiguration = errors.New("awsbundle: invalid configuration")
	// ErrInvalidSchema reports a manifest that cannot produce an option tree.
	ErrInvalidSchema = errors.New("awsbundle: invalid schema")
	// ErrNoEvaluator is returned when rules exist but no evaluator can run them.
	ErrNoEvaluator = errors.New("awsbundle: evaluator not configured")
)

// ValidationError names the option path that failed and why.
type ValidationError struct {
	Layer  string
	Path   string
	Reason string
}

func (e *ValidationError) Error() string {
	if e == nil {
		return "<nil>"
	}
	var b strings.Builder
	b.WriteString("awsbundle: invalid configuration for path ")
	fmt.Fprintf(&b, "%q", e.Path)
	if e.Layer != "" {
		fmt.Fprintf(&b, " in %s", e.Layer)
	}
	b.WriteString(": ")
	b.WriteString(e.Reason)
	return b.String()
}

// Is lets errors.Is(err, ErrInvalidConfiguration) match.
func (e *ValidationError) Is(target error) bool {
	return target == ErrInvalidConfiguration
}

// RuleError captures evaluator metadata alongside the originating error.
type RuleError struct {
	Engine string
	Expr   string
	Scope  string
	Path   string
	Err    error
}

func (e *RuleError) Error() string {
	if e == nil {
		return "<nil>"
	}
	return fmt.Sprintf("awsbundle: %s evaluator %s scope=%s: %v", e.Engine, describeExpression(e.Expr), e.Scope, e.Err)
}

func (e *RuleError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

func describeExpression(expr string) string {
	if expr == "" {
		return "expr=<empty>"
	}
	return fmt.Sprintf("expr=%q", expr)
}

func wrapRuleError(engine, expr, scope string, err error) error {
	if err == nil {
		return nil
	}

	var ruleErr *RuleError
	if errors.As(err, &ruleErr) {
		if ruleErr.Engine == "" {
			ruleErr.Engine = engine
		}
		if ruleErr.Expr == "" {
			ruleErr.Expr = expr
		}
		if ruleErr.Scope == "" {
			ruleErr.Scope = scope
		}
		return ruleErr
	}

	return &RuleError{
		Engine: engine,
		Expr:   expr,
		Scope:  scope,
		Err:    err,
	}
}

func joinPath(prefix, segment string) string {
	if prefix == "" {
		return segment
	}
	return prefix + "." + segment
}
