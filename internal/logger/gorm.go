package logger

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
	gormlogger "gorm.io/gorm/logger"
)

const slowQueryThreshold = 200 * time.Millisecond

// GormLogger routes gorm's query log through logrus.
type GormLogger struct {
	log      *logrus.Logger
	LogLevel gormlogger.LogLevel
}

func NewGormLogger(log *logrus.Logger) *GormLogger {
	return &GormLogger{log: log, LogLevel: gormlogger.Warn}
}

func (l *GormLogger) LogMode(level gormlogger.LogLevel) gormlogger.Interface {
	return &GormLogger{log: l.log, LogLevel: level}
}

func (l *GormLogger) Info(ctx context.Context, msg string, data ...interface{}) {
	if l.LogLevel >= gormlogger.Info {
		l.log.WithContext(ctx).WithField("data", data).Info(msg)
	}
}

func (l *GormLogger) Warn(ctx context.Context, msg string, data ...interface{}) {
	if l.LogLevel >= gormlogger.Warn {
		l.log.WithContext(ctx).WithField("data", data).Warn(msg)
	}
}

func (l *GormLogger) Error(ctx context.Context, msg string, data ...interface{}) {
	if l.LogLevel >= gormlogger.Error {
		l.log.WithContext(ctx).WithField("data", data).Error(msg)
	}
}

func (l *GormLogger) Trace(ctx context.Context, begin time.Time, fc func() (string, int64), err error) {
	if l.LogLevel <= gormlogger.Silent {
		return
	}

	elapsed := time.Since(begin)
	sql, rows := fc()

	operation := "query"
	if i := strings.IndexByte(sql, ' '); i > 0 {
		operation = strings.ToLower(sql[:i])
	}

	entry := l.log.WithContext(ctx).WithFields(logrus.Fields{
		"sql":     sql,
		"latency": elapsed.String(),
		"rows":    rows,
	})

	switch {
	case err != nil && !errors.Is(err, gormlogger.ErrRecordNotFound) && l.LogLevel >= gormlogger.Error:
		entry.WithError(err).Error("sql " + operation + " failed")
	case elapsed > slowQueryThreshold && l.LogLevel >= gormlogger.Warn:
		entry.Warn("slow sql " + operation)
	case l.LogLevel >= gormlogger.Info:
		entry.Debug("sql " + operation)
	}
}
