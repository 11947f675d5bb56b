package logger

import (
	"os"

	"go.uber.org/zap"
)

var sugar = zap.NewNop().Sugar()

// Init replaces the no-op logger. Development mode enables debug output and
// console encoding.
func Init(environment string) error {
	var (
		l   *zap.Logger
		err error
	)
	if environment == "development" {
		l, err = zap.NewDevelopment(zap.AddCallerSkip(1))
	} else {
		l, err = zap.NewProduction(zap.AddCallerSkip(1))
	}
	if err != nil {
		return err
	}
	sugar = l.Sugar()
	return nil
}

func Sync() {
	_ = sugar.Sync()
}

func Info(format string, v ...interface{}) {
	sugar.Infof(format, v...)
}

func Error(format string, v ...interface{}) {
	sugar.Errorf(format, v...)
}

func Debug(format string, v ...interface{}) {
	sugar.Debugf(format, v...)
}

func Warn(format string, v ...interface{}) {
	sugar.Warnf(format, v...)
}

// Fatal logs and exits even when Init was never called.
func Fatal(format string, v ...interface{}) {
	sugar.Errorf(format, v...)
	_ = sugar.Sync()
	os.Exit(1)
}

// With returns a child logger carrying key/value pairs, e.g. a connection id.
func With(keysAndValues ...interface{}) *zap.SugaredLogger {
	return sugar.Desugar().WithOptions(zap.AddCallerSkip(-1)).Sugar().With(keysAndValues...)
}
