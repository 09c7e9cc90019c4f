// Package jobs runs the periodic store cleanup on a cron schedule.
package jobs

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"

	"github.com/iliyamo/storefront/internal/metrics"
)

const jobTimeout = time.Minute

// TokenPurger deletes refresh tokens that expired or were revoked before
// cutoff.
type TokenPurger interface {
	DeleteExpired(ctx context.Context, cutoff time.Time) (int64, error)
}

// WebhookPurger deletes idempotency records older than cutoff.
type WebhookPurger interface {
	DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error)
}

// Scheduler owns the cron runner and the cleanup jobs.
type Scheduler struct {
	cron      *cron.Cron
	tokens    TokenPurger
	events    WebhookPurger
	retention time.Duration
	log       *logrus.Logger
	now       func() time.Time
}

// NewScheduler builds a scheduler.  Webhook records are kept for
// retention; refresh tokens go as soon as they are dead.
func NewScheduler(tokens TokenPurger, events WebhookPurger, retention time.Duration, log *logrus.Logger) *Scheduler {
	cl := cronLogger{log}
	return &Scheduler{
		cron:      cron.New(cron.WithLogger(cl), cron.WithChain(cron.Recover(cl), cron.SkipIfStillRunning(cl))),
		tokens:    tokens,
		events:    events,
		retention: retention,
		log:       log,
		now:       time.Now,
	}
}

// Start registers both jobs on spec (standard cron syntax or a
// descriptor such as "@every 1h") and starts the runner.
func (s *Scheduler) Start(spec string) error {
	if _, err := s.cron.AddFunc(spec, func() { s.run("purge_refresh_tokens", s.PurgeTokens) }); err != nil {
		return fmt.Errorf("schedule token cleanup %q: %w", spec, err)
	}
	if _, err := s.cron.AddFunc(spec, func() { s.run("purge_webhook_events", s.PurgeWebhookEvents) }); err != nil {
		return fmt.Errorf("schedule webhook cleanup %q: %w", spec, err)
	}
	s.cron.Start()
	return nil
}

// Stop stops scheduling and returns a context done once running jobs
// have finished.
func (s *Scheduler) Stop() context.Context { return s.cron.Stop() }

func (s *Scheduler) PurgeTokens(ctx context.Context) (int64, error) {
	return s.tokens.DeleteExpired(ctx, s.now().UTC())
}

func (s *Scheduler) PurgeWebhookEvents(ctx context.Context) (int64, error) {
	return s.events.DeleteOlderThan(ctx, s.now().UTC().Add(-s.retention))
}

func (s *Scheduler) run(name string, job func(context.Context) (int64, error)) {
	ctx, cancel := context.WithTimeout(context.Background(), jobTimeout)
	defer cancel()

	start := s.now()
	n, err := job(ctx)
	metrics.RecordJobRun(name, err == nil)
	entry := s.log.WithFields(logrus.Fields{"job": name, "took": time.Since(start).String()})
	if err != nil {
		entry.WithError(err).Error("cleanup job failed")
		return
	}
	entry.WithField("deleted", n).Info("cleanup job done")
}

// cronLogger routes the runner's own messages to logrus.
type cronLogger struct{ log *logrus.Logger }

func (l cronLogger) Info(msg string, kv ...interface{}) {
	l.log.WithFields(fields(kv)).Debug("cron: " + msg)
}

func (l cronLogger) Error(err error, msg string, kv ...interface{}) {
	l.log.WithFields(fields(kv)).WithError(err).Error("cron: " + msg)
}

func fields(kv []interface{}) logrus.Fields {
	f := logrus.Fields{}
	for i := 0; i+1 < len(kv); i += 2 {
		f[fmt.Sprint(kv[i])] = kv[i+1]
	}
	return f
}
