package jobs

import (
	"context"
	"time"

	"freight/internal/core/domain/model/oracle"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
)

const DefaultOracleRefreshSchedule = "@every 1h"

// SurchargeRefresher recomputes the fuel surcharge, bypassing its cache.
type SurchargeRefresher interface {
	Refresh(ctx context.Context) oracle.Surcharge
}

// OracleRefreshJob keeps the cached fuel surcharge warm so request paths
// rarely pay for a provider round trip.
type OracleRefreshJob struct {
	refresher SurchargeRefresher
	schedule  string
	timeout   time.Duration
	cron      *cron.Cron
	logger    *zap.Logger
}

func NewOracleRefreshJob(refresher SurchargeRefresher, schedule string, timeout time.Duration, logger *zap.Logger) *OracleRefreshJob {
	if schedule == "" {
		schedule = DefaultOracleRefreshSchedule
	}
	logger = logger.Named("oracle_refresh_job")
	return &OracleRefreshJob{
		refresher: refresher,
		schedule:  schedule,
		timeout:   timeout,
		cron:      newCron(logger),
		logger:    logger,
	}
}

// Run refreshes once.
func (j *OracleRefreshJob) Run() {
	ctx := context.Background()
	if j.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, j.timeout)
		defer cancel()
	}

	s := j.refresher.Refresh(ctx)
	j.logger.Info("fuel surcharge refreshed",
		zap.Float64("rate", s.Rate),
		zap.String("source", string(s.Source)),
		zap.Strings("providers", s.Providers),
	)
}

func (j *OracleRefreshJob) Start() error {
	if _, err := j.cron.AddJob(j.schedule, j); err != nil {
		return err
	}
	j.cron.Start()
	j.logger.Info("job started", zap.String("schedule", j.schedule))
	return nil
}

// Stop waits for a running refresh to finish.
func (j *OracleRefreshJob) Stop() {
	<-j.cron.Stop().Done()
	j.logger.Info("job stopped")
}
