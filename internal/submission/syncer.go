package submission

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/cenkalti/backoff/v5"
)

// Syncer drives Queue.Sync from reachability events and a timer. While orders
// keep failing it retries on an exponential schedule capped at the interval.
type Syncer struct {
	log      *slog.Logger
	queue    *Queue
	restored <-chan struct{}
	interval time.Duration
	backoff  *backoff.ExponentialBackOff
}

func NewSyncer(log *slog.Logger, queue *Queue, restored <-chan struct{}, interval time.Duration) *Syncer {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = time.Second
	b.MaxInterval = interval
	return &Syncer{
		log:      log,
		queue:    queue,
		restored: restored,
		interval: interval,
		backoff:  b,
	}
}

func (s *Syncer) Run(ctx context.Context) error {
	timer := time.NewTimer(s.interval)
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-s.restored:
			if !timer.Stop() {
				select {
				case <-timer.C:
				default:
				}
			}
		case <-timer.C:
		}
		timer.Reset(s.next(s.queue.Sync(ctx)))
	}
}

func (s *Syncer) next(report SyncReport, err error) time.Duration {
	switch {
	case errors.Is(err, ErrSyncInProgress):
		return s.interval
	case err != nil:
		s.log.Error("offline sync failed", "err", err)
	case report.Retained == 0:
		s.backoff.Reset()
		return s.interval
	}
	d := s.backoff.NextBackOff()
	if d == backoff.Stop || d > s.interval {
		d = s.interval
	}
	s.log.Debug("offline sync retry scheduled", "in", d, "retained", report.Retained)
	return d
}
