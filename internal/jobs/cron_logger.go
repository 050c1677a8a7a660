package jobs

import (
	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
)

// cronLogger adapts zap to cron.Logger. Cron passes key/value pairs, which
// map directly onto zap's sugared API.
type cronLogger struct {
	sugar *zap.SugaredLogger
}

func newCronLogger(logger *zap.Logger) cron.Logger {
	return cronLogger{sugar: logger.Sugar()}
}

func (l cronLogger) Info(msg string, keysAndValues ...any) {
	l.sugar.Debugw(msg, keysAndValues...)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...any) {
	l.sugar.Errorw(msg, append(keysAndValues, "error", err)...)
}

// newCron builds a scheduler whose jobs never overlap and never crash the process.
func newCron(logger *zap.Logger) *cron.Cron {
	cl := newCronLogger(logger)
	return cron.New(
		cron.WithLogger(cl),
		cron.WithChain(cron.Recover(cl), cron.SkipIfStillRunning(cl)),
	)
}
