package logger

import (
	"github.com/hashicorp/go-retryablehttp"
	"github.com/sirupsen/logrus"
)

// Leveled adapts the package logger to retryablehttp.LeveledLogger so that
// transport retries show up in the same structured stream.
type Leveled struct {
	component string
}

var _ retryablehttp.LeveledLogger = Leveled{}

// NewLeveled returns a Leveled logger tagging every entry with component
func NewLeveled(component string) Leveled {
	return Leveled{component: component}
}

func (l Leveled) entry(keysAndValues []interface{}) *logrus.Entry {
	fields := logrus.Fields{"component": l.component}
	for i := 0; i+1 < len(keysAndValues); i += 2 {
		key, ok := keysAndValues[i].(string)
		if !ok {
			continue
		}
		fields[key] = keysAndValues[i+1]
	}
	return log.WithFields(fields)
}

// Error implements retryablehttp.LeveledLogger
func (l Leveled) Error(msg string, keysAndValues ...interface{}) {
	l.entry(keysAndValues).Error(msg)
}

// Info implements retryablehttp.LeveledLogger
func (l Leveled) Info(msg string, keysAndValues ...interface{}) {
	l.entry(keysAndValues).Info(msg)
}

// Debug implements retryablehttp.LeveledLogger
func (l Leveled) Debug(msg string, keysAndValues ...interface{}) {
	l.entry(keysAndValues).Debug(msg)
}

// Warn implements retryablehttp.LeveledLogger
func (l Leveled) Warn(msg string, keysAndValues ...interface{}) {
	l.entry(keysAndValues).Warn(msg)
}
