package database

import (
	"context"
	"time"

	"gorm.io/gorm/logger"
)

// metricsLogger feeds every traced statement into a StatementCounter before handing it
// to the wrapped GORM logger.
type metricsLogger struct {
	inner   logger.Interface
	counter *StatementCounter
}

func (l metricsLogger) LogMode(level logger.LogLevel) logger.Interface {
	return metricsLogger{inner: l.inner.LogMode(level), counter: l.counter}
}

func (l metricsLogger) Info(ctx context.Context, s string, args ...interface{}) {
	l.inner.Info(ctx, s, args...)
}

func (l metricsLogger) Warn(ctx context.Context, s string, args ...interface{}) {
	l.inner.Warn(ctx, s, args...)
}

func (l metricsLogger) Error(ctx context.Context, s string, args ...interface{}) {
	l.inner.Error(ctx, s, args...)
}

func (l metricsLogger) Trace(ctx context.Context, begin time.Time, fc func() (string, int64), err error) {
	sql, rows := fc()
	if l.counter != nil {
		l.counter.Observe(sql, err)
	}
	l.inner.Trace(ctx, begin, func() (string, int64) { return sql, rows }, err)
}
