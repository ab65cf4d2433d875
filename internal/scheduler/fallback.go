package scheduler

import (
	"context"
	"log/slog"
	"time"
)

// fallback fires the trigger on a ticker inside the running process,
// covering the case where the OS job does not reach it.
type fallback struct {
	interval time.Duration
	cancel   context.CancelFunc
	done     chan struct{}
}

// arm starts or restarts the fallback ticker. Caller holds s.mu.
func (s *Scheduler) arm(interval time.Duration) {
	if s.trigger == nil {
		return
	}
	if s.fallback != nil && s.fallback.interval == interval {
		return
	}
	s.disarm()

	ctx, cancel := context.WithCancel(context.Background())
	f := &fallback{interval: interval, cancel: cancel, done: make(chan struct{})}
	s.fallback = f
	trigger := s.trigger

	go func() {
		defer close(f.done)
		t := time.NewTicker(interval)
		defer t.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-t.C:
				go trigger(ctx)
			}
		}
	}()
	s.logger.Debug("scheduler: fallback armed", slog.Duration("interval", interval))
}

// disarm stops the fallback ticker. Caller holds s.mu.
func (s *Scheduler) disarm() {
	if s.fallback == nil {
		return
	}
	s.fallback.cancel()
	<-s.fallback.done
	s.fallback = nil
	s.logger.Debug("scheduler: fallback disarmed")
}

// Armed reports the interval of the running fallback ticker.
func (s *Scheduler) Armed() (time.Duration, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.fallback == nil {
		return 0, false
	}
	return s.fallback.interval, true
}
