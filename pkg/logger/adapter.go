package logger

import (
	"go.uber.org/zap"
)

// LoggerAdapter routes general, queue and error logging to either the
// category files of a MultiLogger or a single zap logger.
type LoggerAdapter struct {
	general     *zap.Logger
	multiLogger *MultiLogger
}

// NewLoggerAdapter creates an adapter. multiLogger may be nil.
func NewLoggerAdapter(general *zap.Logger, multiLogger *MultiLogger) *LoggerAdapter {
	if general == nil {
		general = zap.NewNop()
	}
	return &LoggerAdapter{general: general, multiLogger: multiLogger}
}

// NewNopAdapter discards everything
func NewNopAdapter() *LoggerAdapter {
	return NewLoggerAdapter(zap.NewNop(), nil)
}

// General returns the process logger
func (la *LoggerAdapter) General() *zap.Logger {
	return la.general
}

// Queue returns the queue logger
func (la *LoggerAdapter) Queue() *zap.Logger {
	if la.multiLogger != nil {
		return la.multiLogger.Queue()
	}
	return la.general
}

// Error returns the error logger
func (la *LoggerAdapter) Error() *zap.Logger {
	if la.multiLogger != nil {
		return la.multiLogger.Error()
	}
	return la.general
}

// LogQueueEvent records a job lifecycle event
func (la *LoggerAdapter) LogQueueEvent(event string, fields ...zap.Field) {
	la.Queue().Info(event, fields...)
}

// LogAppError records an error in the error log and the process log
func (la *LoggerAdapter) LogAppError(msg string, fields ...zap.Field) {
	if la.multiLogger != nil {
		la.multiLogger.LogAppError(msg, fields...)
	}
	la.general.Error(msg, fields...)
}

// Sync flushes all loggers
func (la *LoggerAdapter) Sync() error {
	var err error
	if la.multiLogger != nil {
		err = la.multiLogger.Sync()
	}
	if gerr := la.general.Sync(); gerr != nil && err == nil {
		err = gerr
	}
	return err
}

// GetMultiLogger returns the underlying multi-logger (if available)
func (la *LoggerAdapter) GetMultiLogger() *MultiLogger {
	return la.multiLogger
}
