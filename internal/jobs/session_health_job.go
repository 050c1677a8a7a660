package jobs

import (
	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
)

const DefaultSessionHealthSchedule = "@every 30s"

// SessionReaper disconnects sessions that failed a delivery.
type SessionReaper interface {
	ReapUnhealthy() int
	SessionCount() int
}

type SessionHealthJob struct {
	reaper   SessionReaper
	schedule string
	cron     *cron.Cron
	logger   *zap.Logger
}

func NewSessionHealthJob(reaper SessionReaper, schedule string, logger *zap.Logger) *SessionHealthJob {
	if schedule == "" {
		schedule = DefaultSessionHealthSchedule
	}
	logger = logger.Named("session_health_job")
	return &SessionHealthJob{
		reaper:   reaper,
		schedule: schedule,
		cron:     newCron(logger),
		logger:   logger,
	}
}

func (j *SessionHealthJob) Run() {
	if reaped := j.reaper.ReapUnhealthy(); reaped > 0 {
		j.logger.Info("unhealthy sessions reaped",
			zap.Int("reaped", reaped),
			zap.Int("remaining", j.reaper.SessionCount()),
		)
	}
}

func (j *SessionHealthJob) Start() error {
	if _, err := j.cron.AddJob(j.schedule, j); err != nil {
		return err
	}
	j.cron.Start()
	j.logger.Info("job started", zap.String("schedule", j.schedule))
	return nil
}

func (j *SessionHealthJob) Stop() {
	<-j.cron.Stop().Done()
	j.logger.Info("job stopped")
}
