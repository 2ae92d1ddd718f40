package awsbundle

import (
	"time"

	"go.uber.org/zap"
)

// RuleLogEvent describes one rule evaluation.
type RuleLogEvent struct {
	Engine   string
	Expr     string
	Scope    string
	Passed   bool
	Duration time.Duration
	Err      error
}

// RuleLogger records rule evaluations.
type RuleLogger interface {
	LogEvaluation(RuleLogEvent)
}

// RuleLoggerFunc adapts a function to RuleLogger.
type RuleLoggerFunc func(RuleLogEvent)

// LogEvaluation implements RuleLogger.
func (f RuleLoggerFunc) LogEvaluation(event RuleLogEvent) {
	if f != nil {
		f(event)
	}
}

type noopRuleLogger struct{}

func (noopRuleLogger) LogEvaluation(RuleLogEvent) {}

type zapRuleLogger struct {
	logger *zap.Logger
}

// NewZapRuleLogger writes passing evaluations at debug and failures at warn.
func NewZapRuleLogger(logger *zap.Logger) RuleLogger {
	if logger == nil {
		return noopRuleLogger{}
	}
	return zapRuleLogger{logger: logger.Named("rules")}
}

func (l zapRuleLogger) LogEvaluation(event RuleLogEvent) {
	fields := []zap.Field{
		zap.String("engine", event.Engine),
		zap.String("expr", event.Expr),
		zap.String("scope", event.Scope),
		zap.Duration("duration", event.Duration),
	}
	switch {
	case event.Err != nil:
		l.logger.Warn("rule evaluation failed", append(fields, zap.Error(event.Err))...)
	case !event.Passed:
		l.logger.Warn("rule rejected configuration", fields...)
	default:
		l.logger.Debug("rule passed", fields...)
	}
}
