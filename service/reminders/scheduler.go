package reminders

import (
	"context"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
)

// Scheduler runs background jobs on cron schedules.
type Scheduler struct {
	*cron.Cron
	logger *zap.Logger
}

// cronLogger adapts zap to the cron.Logger interface.
type cronLogger struct {
	logger *zap.SugaredLogger
}

func (l cronLogger) Info(msg string, keysAndValues ...interface{}) {
	l.logger.Debugw(msg, keysAndValues...)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	l.logger.Errorw(msg, append(keysAndValues, "error", err)...)
}

func NewScheduler(logger *zap.Logger) *Scheduler {
	named := logger.Named("cron")
	return &Scheduler{
		Cron:   cron.New(cron.WithLogger(cronLogger{named.Sugar()}), cron.WithLocation(time.UTC)),
		logger: named,
	}
}

// ScheduleJob runs job.Run on schedule until ctx is cancelled.
func (s *Scheduler) ScheduleJob(ctx context.Context, schedule string, job *Job) (cron.EntryID, error) {
	return s.Cron.AddFunc(schedule, func() {
		if ctx.Err() != nil {
			return
		}
		if _, err := job.Run(ctx); err != nil {
			s.logger.Error("Reminder job failed", zap.Error(err))
		}
	})
}

// Shutdown stops the scheduler and waits up to 30 seconds for running jobs.
func (s *Scheduler) Shutdown() {
	ctx, cancel := context.WithTimeout(s.Cron.Stop(), 30*time.Second)
	defer cancel()
	<-ctx.Done()
}
