package sdk

import (
	"fmt"

	"github.com/aws/smithy-go/logging"
	"go.uber.org/zap"
)

type zapLogger struct {
	logger *zap.Logger
}

// NewLogger adapts logger to the smithy logging interface used by SDK clients.
func NewLogger(logger *zap.Logger) logging.Logger {
	if logger == nil {
		logger = zap.NewNop()
	}
	return zapLogger{logger: logger.Named("aws")}
}

func (l zapLogger) Logf(classification logging.Classification, format string, v ...interface{}) {
	message := fmt.Sprintf(format, v...)
	if classification == logging.Warn {
		l.logger.Warn(message)
		return
	}
	l.logger.Debug(message, zap.String("classification", string(classification)))
}
