package app

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/bobmcallan/folio/internal/common"
	"github.com/bobmcallan/folio/internal/interfaces"
)

// recordTimeout bounds one scheduled recording run.
const recordTimeout = 10 * time.Minute

// cronParser accepts standard five-field specs and descriptors like @daily.
var cronParser = cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor)

// newRecordScheduler builds a cron scheduler that snapshots every
// portfolio's value on spec. Overlapping runs are skipped.
func newRecordScheduler(spec string, tracker interfaces.HistoryTracker, logger *common.Logger) (*cron.Cron, error) {
	c := cron.New(
		cron.WithParser(cronParser),
		cron.WithChain(cron.Recover(cronLogger{logger}), cron.SkipIfStillRunning(cronLogger{logger})),
	)
	if _, err := c.AddFunc(spec, func() { recordPortfolios(tracker, logger) }); err != nil {
		return nil, fmt.Errorf("invalid record spec %q: %w", spec, err)
	}
	logger.Info().Str("spec", spec).Msg("Scheduler: daily recording scheduled")
	return c, nil
}

func recordPortfolios(tracker interfaces.HistoryTracker, logger *common.Logger) {
	ctx, cancel := context.WithTimeout(context.Background(), recordTimeout)
	defer cancel()

	start := time.Now()
	n, err := tracker.RecordAll(ctx)
	if err != nil {
		logger.Warn().Err(err).Int("recorded", n).Msg("Scheduler: recording incomplete")
		return
	}
	logger.Info().Int("recorded", n).Dur("elapsed", time.Since(start)).Msg("Scheduler: recording complete")
}

// cronLogger adapts the zerolog wrapper to cron.Logger.
type cronLogger struct {
	logger *common.Logger
}

func (l cronLogger) Info(msg string, keysAndValues ...interface{}) {
	l.logger.Debug().Fields(keysAndValues).Msg(msg)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	l.logger.Error().Err(err).Fields(keysAndValues).Msg(msg)
}
