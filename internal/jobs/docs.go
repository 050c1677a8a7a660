// Package jobs provides scheduled background tasks for the freight service.
//
// Jobs run on github.com/robfig/cron/v3 with a zap-backed cron.Logger. Every
// job is wrapped in cron.SkipIfStillRunning, so a slow run delays the next
// one instead of overlapping it, and in cron.Recover.
//
// # Available Jobs
//
// 1. OracleRefreshJob - recomputes the fuel surcharge (default "@every 1h")
// 2. SessionHealthJob - reaps broadcaster sessions marked unhealthy (default "@every 30s")
//
// # Usage
//
//	jobManager := jobs.NewJobManager(oracle, broadcaster, jobs.Schedules{}, logger)
//	if err := jobManager.StartAll(); err != nil {
//		return err
//	}
//	defer jobManager.StopAll()
//
// A failed start stops any job that was already running.
package jobs
