package main

import (
	"context"
	"fmt"
	"math/rand/v2"
	"time"

	"golang.org/x/sync/errgroup"
)

const (
	maxBackoff   = 10 * time.Second
	jitterWindow = 250 * time.Millisecond
)

// pacer decides how long the loop waits between polls. A full batch polls
// again at once, an empty one waits the interval and errors back off
// exponentially up to maxBackoff.
type pacer struct {
	interval time.Duration
	backoff  time.Duration
	jitter   func(time.Duration) time.Duration
}

func newPacer(interval time.Duration) *pacer {
	return &pacer{interval: interval, backoff: interval, jitter: withJitter}
}

func (p *pacer) next(processed bool, err error) time.Duration {
	if err != nil {
		p.backoff = min(p.backoff*2, maxBackoff)
		return p.jitter(p.backoff)
	}
	p.backoff = p.interval
	if processed {
		return 0
	}
	return p.jitter(p.interval)
}

func withJitter(d time.Duration) time.Duration {
	if d <= 0 {
		return 0
	}
	return d + rand.N(jitterWindow)
}

// checkDependencies pings the database and Pub/Sub in parallel.
func (s *Service) checkDependencies(ctx context.Context) error {
	g, gctx := errgroup.WithContext(ctx)
	for name, ping := range map[string]func(context.Context) error{
		"database": s.db.Ping,
		"pubsub":   s.pubsub.Ping,
	} {
		g.Go(func() error {
			if err := ping(gctx); err != nil {
				s.logg.Error(s.logg.WithField(ctx, "dependency", name), "dependency ping failed", err)
				return fmt.Errorf("%s ping: %w", name, err)
			}
			return nil
		})
	}
	return g.Wait()
}

// Run polls until ctx is canceled. Batch errors are logged and retried; only
// the initial dependency check and cancellation end the loop.
func (s *Service) Run(ctx context.Context) error {
	if err := s.checkDependencies(ctx); err != nil {
		return err
	}
	pace := newPacer(s.pollInterval)
	for {
		if err := ctx.Err(); err != nil {
			s.logg.Info(ctx, "outbox publisher stopping")
			return err
		}
		processed, err := s.processBatch(ctx)
		if err != nil {
			s.logg.Error(ctx, "outbox publisher batch error", err)
		} else if !processed {
			s.reportBacklog(ctx)
		}
		if err := sleep(ctx, pace.next(processed, err)); err != nil {
			s.logg.Info(ctx, "outbox publisher stopping")
			return err
		}
	}
}

func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
