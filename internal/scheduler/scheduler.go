// Package scheduler drives the trading cycle either aligned to candle closes
// or at a fixed pause between runs.
package scheduler

import (
	"context"
	"time"

	"quorumtrader/internal/logger"
)

// Scheduler calls task repeatedly until ctx is done. Runs never overlap.
type Scheduler interface {
	Run(ctx context.Context, task func(context.Context))
}

// Aligned wakes Offset after every close of an Interval-sized candle (UTC).
type Aligned struct {
	Interval       time.Duration
	Offset         time.Duration
	RunImmediately bool

	nowFn func() time.Time
}

func NewAligned(interval, offset time.Duration, runImmediately bool) *Aligned {
	if offset < 0 {
		offset = 0
	}
	return &Aligned{Interval: interval, Offset: offset, RunImmediately: runImmediately, nowFn: time.Now}
}

func (s *Aligned) Run(ctx context.Context, task func(context.Context)) {
	if task == nil || s.Interval <= 0 {
		logger.Warnf("aligned scheduler: invalid interval=%s, exit", s.Interval)
		return
	}
	if s.nowFn == nil {
		s.nowFn = time.Now
	}
	startAt := s.nowFn().UTC()
	logger.Infof("aligned scheduler started interval=%s offset=%s run_immediately=%v", s.Interval, s.Offset, s.RunImmediately)
	if s.RunImmediately {
		task(ctx)
	}
	for {
		now := s.nowFn().UTC()
		wakeAt := s.NextWake(now)
		wait := wakeAt.Sub(now)
		logger.Infof("next cycle at %s (in %s) uptime=%s",
			wakeAt.Format(time.RFC3339), wait.Truncate(time.Second), now.Sub(startAt).Truncate(time.Second))
		if !sleep(ctx, wait) {
			logger.Infof("aligned scheduler: ctx done, exit")
			return
		}
		task(ctx)
	}
}

// NextWake returns the first candle close after now, shifted by Offset.
func (s *Aligned) NextWake(now time.Time) time.Time {
	now = now.UTC()
	nextClose := now.Truncate(s.Interval).Add(s.Interval)
	return nextClose.Add(s.Offset)
}

// Fixed runs task, then pauses Pause, forever.
type Fixed struct {
	Pause time.Duration
}

func (s Fixed) Run(ctx context.Context, task func(context.Context)) {
	if task == nil {
		return
	}
	logger.Infof("fixed scheduler started pause=%s", s.Pause)
	for {
		if ctx.Err() != nil {
			return
		}
		task(ctx)
		if !sleep(ctx, s.Pause) {
			return
		}
	}
}

// sleep waits d and reports false if ctx ended first.
func sleep(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return ctx.Err() == nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}
