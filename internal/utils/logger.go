package utils

import (
	"github.com/sirupsen/logrus"
)

// ExtendedLogger is the logging interface used across the samples. It is
// satisfied by pkg/logger.Logger; components take the interface so tests can
// hand in a discard logger.
type ExtendedLogger interface {
	Debug(args ...interface{})
	Debugf(format string, args ...interface{})
	Info(args ...interface{})
	Infof(format string, args ...interface{})
	Warn(args ...interface{})
	Warnf(format string, args ...interface{})
	Error(args ...interface{})
	Errorf(format string, args ...interface{})
	Fatal(args ...interface{})
	Fatalf(format string, args ...interface{})

	WithField(key string, value interface{}) *logrus.Entry
	WithFields(fields logrus.Fields) *logrus.Entry
	WithError(err error) *logrus.Entry

	Close() error
}
