// Package monitor re-probes the upstream site variants on an interval so
// the health endpoint can answer from a recent observation instead of
// blocking on a live probe.
package monitor

import (
	"context"
	"log"
	"sync"
	"time"

	"github.com/sourcegraph/conc"
)

// Prober is a health-checkable upstream.
type Prober interface {
	Name() string
	CheckHealth(ctx context.Context) bool
}

// Service runs the background polling loop.
type Service struct {
	probers  []Prober
	interval time.Duration

	mu        sync.RWMutex
	running   bool
	status    map[string]bool
	checkedAt time.Time
	ctx       context.Context
	cancel    context.CancelFunc
	wg        sync.WaitGroup
}

// NewService creates a monitor over the given probers.
func NewService(interval time.Duration, probers ...Prober) *Service {
	if interval <= 0 {
		interval = 5 * time.Minute
	}
	return &Service{
		probers:  probers,
		interval: interval,
		status:   make(map[string]bool),
	}
}

// Start begins the polling loop. Calling Start on a running monitor is a
// no-op.
func (s *Service) Start(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.running {
		return
	}
	s.ctx, s.cancel = context.WithCancel(ctx)
	s.running = true

	s.wg.Add(1)
	go s.loop()

	log.Printf("[monitor] started, probing %d site(s) every %s", len(s.probers), s.interval)
}

// Stop cancels the loop and waits for it to drain, bounded by ctx.
func (s *Service) Stop(ctx context.Context) {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return
	}
	s.cancel()
	s.running = false
	s.mu.Unlock()

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-ctx.Done():
		log.Printf("[monitor] stop timed out waiting for checks to finish")
	}
}

func (s *Service) loop() {
	defer s.wg.Done()

	s.runChecks()
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			s.runChecks()
		case <-s.ctx.Done():
			return
		}
	}
}

// runChecks probes every site concurrently and records the outcome.
func (s *Service) runChecks() {
	ctx, cancel := context.WithTimeout(s.ctx, 30*time.Second)
	defer cancel()

	var wg conc.WaitGroup
	for _, p := range s.probers {
		p := p
		wg.Go(func() {
			ok := p.CheckHealth(ctx)
			s.mu.Lock()
			s.status[p.Name()] = ok
			s.checkedAt = time.Now()
			s.mu.Unlock()
			if !ok {
				log.Printf("[monitor] %s is unhealthy", p.Name())
			}
		})
	}
	wg.Wait()
}

// Status returns the last observed health per site and when it was taken.
// The map is a copy; callers may not mutate monitor state.
func (s *Service) Status() (map[string]bool, time.Time) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make(map[string]bool, len(s.status))
	for name, ok := range s.status {
		out[name] = ok
	}
	return out, s.checkedAt
}
