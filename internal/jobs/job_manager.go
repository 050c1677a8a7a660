package jobs

import (
	"fmt"
	"time"

	"go.uber.org/zap"
)

// Schedules holds the cron specs of every job. Empty values fall back to
// the job defaults.
type Schedules struct {
	OracleRefresh  string
	SessionHealth  string
	RefreshTimeout time.Duration
}

// JobManager coordinates all scheduled jobs in the application.
type JobManager struct {
	oracleRefreshJob *OracleRefreshJob
	sessionHealthJob *SessionHealthJob
}

func NewJobManager(
	refresher SurchargeRefresher,
	reaper SessionReaper,
	schedules Schedules,
	logger *zap.Logger,
) *JobManager {
	return &JobManager{
		oracleRefreshJob: NewOracleRefreshJob(refresher, schedules.OracleRefresh, schedules.RefreshTimeout, logger),
		sessionHealthJob: NewSessionHealthJob(reaper, schedules.SessionHealth, logger),
	}
}

// StartAll starts all scheduled jobs.
// Returns an error if any job fails to start.
func (jm *JobManager) StartAll() error {
	if err := jm.sessionHealthJob.Start(); err != nil {
		return fmt.Errorf("failed to start session health job: %w", err)
	}

	if err := jm.oracleRefreshJob.Start(); err != nil {
		// Stop already started jobs if this one fails
		jm.sessionHealthJob.Stop()
		return fmt.Errorf("failed to start oracle refresh job: %w", err)
	}

	return nil
}

// StopAll stops all scheduled jobs gracefully.
func (jm *JobManager) StopAll() {
	jm.oracleRefreshJob.Stop()
	jm.sessionHealthJob.Stop()
}
