package crawler

import (
	"context"
	"fmt"
	"math/rand/v2"
	"time"

	"github.com/JakeFAU/pagecrawl/internal/policy/ratelimit"
)

// pauseController abstracts how the crawler waits between fetches.
type pauseController interface {
	Pause(ctx context.Context, delay time.Duration)
}

type timerPauseController struct{}

func (p *timerPauseController) Pause(ctx context.Context, delay time.Duration) {
	if delay <= 0 {
		return
	}
	timer := time.NewTimer(delay)
	defer timer.Stop()
	select {
	case <-ctx.Done():
	case <-timer.C:
	}
}

// throttle computes the politeness delay applied before every fetch but the
// first: fixed + uniform[0, random). An optional per-host token bucket caps
// the request rate on top of that.
type throttle struct {
	fixed   time.Duration
	random  time.Duration
	randN   func(n int64) int64
	limiter *ratelimit.Limiter
	pauser  pauseController
}

func newThrottle(cfg Config) *throttle {
	t := &throttle{
		fixed:  time.Duration(cfg.SleepMillis) * time.Millisecond,
		random: time.Duration(cfg.RandomSleepMillis) * time.Millisecond,
		randN:  rand.Int64N,
		pauser: &timerPauseController{},
	}
	if cfg.RateLimitPerSecond > 0 {
		t.limiter = ratelimit.New(ratelimit.Config{DefaultRPS: cfg.RateLimitPerSecond, DefaultBurst: 1})
	}
	return t
}

// delay returns the pause owed before the next fetch. fetched is the number
// of fetches already made in this run.
func (t *throttle) delay(fetched int) time.Duration {
	if fetched == 0 || (t.fixed <= 0 && t.random <= 0) {
		return 0
	}
	d := t.fixed
	if t.random > 0 {
		d += time.Duration(t.randN(int64(t.random)))
	}
	return d
}

// wait blocks for the politeness delay and the rate limit of pageURL's host.
// It returns early only when ctx is done.
func (t *throttle) wait(ctx context.Context, fetched int, pageURL string) (time.Duration, error) {
	d := t.delay(fetched)
	t.pauser.Pause(ctx, d)
	if err := ctx.Err(); err != nil {
		return d, fmt.Errorf("politeness delay: %w", err)
	}
	if t.limiter != nil {
		waited, err := t.limiter.Wait(ctx, pageURL)
		d += waited
		if err != nil {
			return d, err
		}
	}
	return d, nil
}
