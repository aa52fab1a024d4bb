package scheduler

import (
	"context"
	"time"

	"studio_reminder_service/internal/app"

	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"
)

// ReminderScheduler drives the hourly reminder run in-process. The cadence
// must stay at once per hour for the one-hour windows to tile the timeline;
// running more often within the same hour is harmless (re-runs find no
// pending candidates), running less often leaves gaps.
type ReminderScheduler struct {
	cronEngine *cron.Cron
	runner     app.ReminderRunner
	logger     *logrus.Logger
	cronSpec   string
}

func NewReminderScheduler(runner app.ReminderRunner, logger *logrus.Logger, cronSpec string) *ReminderScheduler {
	return &ReminderScheduler{
		cronEngine: cron.New(cron.WithLocation(time.Local)), // Use server's local time for cron
		runner:     runner,
		logger:     logger,
		cronSpec:   cronSpec,
	}
}

func (s *ReminderScheduler) Start() {
	s.logger.Info("Starting reminder scheduler...")

	_, err := s.cronEngine.AddFunc(s.cronSpec, func() {
		s.logger.Info("Cron job triggered for reminder run.")
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
		defer cancel()

		result, err := s.runner.Run(ctx, time.Now())
		if err != nil {
			s.logger.Errorf("Scheduled reminder run failed: %v", err)
			return
		}
		s.logger.Infof("Scheduled reminder run %s completed: %d candidate(s) processed.", result.RunID, result.Count)
	})
	if err != nil {
		s.logger.Fatalf("Could not add reminder run cron job: %v", err)
	}

	s.cronEngine.Start()
	s.logger.Infof("Reminder scheduler started (spec: %q).", s.cronSpec)
}

func (s *ReminderScheduler) Stop() {
	s.logger.Info("Stopping reminder scheduler...")
	ctx := s.cronEngine.Stop() // Stops the scheduler from adding new jobs, waits for running jobs.
	<-ctx.Done()               // Wait for graceful shutdown
	s.logger.Info("Reminder scheduler gracefully stopped.")
}
