package logger

import (
	"github.com/ThreeDotsLabs/watermill"
	"go.uber.org/zap"
)

type watermillAdapter struct {
	log    *zap.Logger
	fields watermill.LogFields
}

// NewWatermillAdapter routes watermill's internal logging through zap
func NewWatermillAdapter(log *zap.Logger) watermill.LoggerAdapter {
	return &watermillAdapter{log: log.Named("watermill"), fields: watermill.LogFields{}}
}

func (a *watermillAdapter) Error(msg string, err error, fields watermill.LogFields) {
	a.log.Error(msg, append(a.zapFields(fields), zap.Error(err))...)
}

func (a *watermillAdapter) Info(msg string, fields watermill.LogFields) {
	a.log.Info(msg, a.zapFields(fields)...)
}

func (a *watermillAdapter) Debug(msg string, fields watermill.LogFields) {
	a.log.Debug(msg, a.zapFields(fields)...)
}

// Trace is mapped to Debug; zap has no lower level
func (a *watermillAdapter) Trace(msg string, fields watermill.LogFields) {
	a.log.Debug(msg, a.zapFields(fields)...)
}

func (a *watermillAdapter) With(fields watermill.LogFields) watermill.LoggerAdapter {
	return &watermillAdapter{log: a.log, fields: a.fields.Add(fields)}
}

func (a *watermillAdapter) zapFields(fields watermill.LogFields) []zap.Field {
	all := a.fields.Add(fields)
	zapFields := make([]zap.Field, 0, len(all))
	for k, v := range all {
		zapFields = append(zapFields, zap.Any(k, v))
	}
	return zapFields
}
