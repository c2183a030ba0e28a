package hotreload

import (
	"context"
	"fmt"
	"time"

	"github.com/platinummonkey/plugweave/pkg/async"
	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"
)

// Scheduler reloads plugins on a cron schedule, catching changes an event
// watcher cannot see (network filesystems, archives replaced in place)
type Scheduler struct {
	cron     *cron.Cron
	reloader *Reloader
	log      logrus.FieldLogger
	schedule string
	timeout  time.Duration
}

// NewScheduler parses schedule (standard cron syntax or a descriptor such as
// "@every 5m") and prepares a scheduler. Runs never overlap.
func NewScheduler(schedule string, reloader *Reloader, log logrus.FieldLogger) (*Scheduler, error) {
	if log == nil {
		log = logrus.New()
	}
	log = log.WithField("component", "scheduler")

	logger := cron.PrintfLogger(log)
	s := &Scheduler{
		cron: cron.New(
			cron.WithLogger(logger),
			cron.WithChain(cron.Recover(logger), cron.SkipIfStillRunning(logger)),
		),
		reloader: reloader,
		log:      log,
		schedule: schedule,
		timeout:  5 * time.Minute,
	}

	if _, err := s.cron.AddFunc(schedule, s.Trigger); err != nil {
		return nil, fmt.Errorf("failed to schedule rescan %q: %w", schedule, err)
	}
	return s, nil
}

// Start begins running scheduled reloads in the background
func (s *Scheduler) Start() {
	s.cron.Start()
	s.log.WithField("schedule", s.schedule).Info("Periodic plugin rescan scheduled")
}

// Stop halts the scheduler; the returned context is done once a running reload finished
func (s *Scheduler) Stop() context.Context {
	return s.cron.Stop()
}

// Trigger runs one scheduled reload immediately and waits for it
func (s *Scheduler) Trigger() {
	done := async.SafeGo(context.Background(), s.log, s.timeout, "scheduled rescan", func(ctx context.Context) error {
		_, _, err := s.reloader.Reload(ctx, TriggerSchedule)
		return err
	})
	<-done
}
