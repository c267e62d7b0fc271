// Package housekeeping periodically removes expired signups and tokens.
package housekeeping

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"

	"socialhub/metrics"
)

const runTimeout = time.Minute

// Store is implemented by *user.Store.
type Store interface {
	PurgeExpiredPending(ctx context.Context, now time.Time) (int64, error)
	ClearExpiredTokens(ctx context.Context, now time.Time) (int64, error)
}

type Janitor struct {
	store Store
	cron  *cron.Cron
	log   *logrus.Entry
	now   func() time.Time
}

func New(store Store, log *logrus.Entry) *Janitor {
	return &Janitor{
		store: store,
		cron:  cron.New(),
		log:   log,
		now:   time.Now,
	}
}

// Start schedules the cleanup with a cron spec such as "@every 5m" or
// "*/10 * * * *".
func (j *Janitor) Start(schedule string) error {
	if _, err := j.cron.AddFunc(schedule, j.run); err != nil {
		return fmt.Errorf("invalid cleanup schedule %q: %w", schedule, err)
	}
	j.cron.Start()
	j.log.WithField("schedule", schedule).Info("[Housekeeping] scheduled")
	return nil
}

// Stop stops the scheduler and waits for a running cleanup.
func (j *Janitor) Stop() {
	<-j.cron.Stop().Done()
}

func (j *Janitor) run() {
	ctx, cancel := context.WithTimeout(context.Background(), runTimeout)
	defer cancel()
	if err := j.RunOnce(ctx); err != nil {
		j.log.WithError(err).Error("[Housekeeping] cleanup failed")
	}
}

// RunOnce purges expired pending signups and clears expired OTPs and reset
// tokens.
func (j *Janitor) RunOnce(ctx context.Context) error {
	now := j.now()

	pending, err := j.store.PurgeExpiredPending(ctx, now)
	if err != nil {
		return fmt.Errorf("purge pending users: %w", err)
	}
	metrics.HousekeepingRemoved.WithLabelValues("pending_users").Add(float64(pending))

	tokens, err := j.store.ClearExpiredTokens(ctx, now)
	if err != nil {
		return fmt.Errorf("clear expired tokens: %w", err)
	}
	metrics.HousekeepingRemoved.WithLabelValues("tokens").Add(float64(tokens))

	if pending > 0 || tokens > 0 {
		j.log.WithFields(logrus.Fields{"pending_users": pending, "tokens": tokens}).Info("[Housekeeping] cleanup done")
	}
	return nil
}
