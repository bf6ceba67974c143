package utils

import (
	"context"
	"time"

	"github.com/robfig/cron/v3"

	"presale/logging"
)

// HousekeepingJob is a periodic cleanup that reports how many records it touched.
type HousekeepingJob struct {
	Name string
	Spec string
	Run  func(ctx context.Context) (int64, error)
}

// InitializeHousekeepingScheduler starts the cleanup jobs and returns the
// scheduler so the caller can stop it on shutdown.
func InitializeHousekeepingScheduler(jobs ...HousekeepingJob) (*cron.Cron, error) {
	c := cron.New()
	for _, job := range jobs {
		job := job
		if _, err := c.AddFunc(job.Spec, func() { RunHousekeepingJob(job) }); err != nil {
			return nil, err
		}
		logging.Info().
			Add(logging.Component("housekeeping")).
			Add(logging.Str("job", job.Name)).
			Add(logging.Str("schedule", job.Spec)).
			Msg("job registered")
	}

	c.Start()
	logging.Info().Add(logging.Component("housekeeping")).Msg("scheduler started")
	return c, nil
}

// RunHousekeepingJob runs one job with a bounded context.
func RunHousekeepingJob(job HousekeepingJob) {
	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	start := time.Now()
	n, err := job.Run(ctx)
	if err != nil {
		logging.Error().
			Add(logging.Component("housekeeping")).
			Add(logging.Str("job", job.Name)).
			Add(logging.ErrorField(err)).
			Msg("job failed")
		return
	}
	if n > 0 {
		logging.Info().
			Add(logging.Component("housekeeping")).
			Add(logging.Str("job", job.Name)).
			Add(logging.Count("records", int(n))).
			Add(logging.Duration(time.Since(start))).
			Msg("job finished")
	}
}
