// Package scheduler decides which tracked package to refresh next. Three
// timers drive it: a refresh pass over every non-archived package, a
// one-at-a-time queue drain, and a retry sweep that gives failed-but-not-
// exhausted packages another chance between refreshes.
package scheduler

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/mitchellmoss/package-tracker/internal/cache/rediscache"
	"github.com/mitchellmoss/package-tracker/internal/integrations/carrier"
	"github.com/mitchellmoss/package-tracker/internal/models"
	"github.com/mitchellmoss/package-tracker/internal/normalize"
	"github.com/pkg/errors"
)

type Registry interface {
	List() []models.TrackedPackage
	Get(trackingNumber string) (models.TrackedPackage, bool)
	Apply(trackingNumber string, snap models.TrackingSnapshot) bool
	RecordFailure(trackingNumber string, fetchErr error) bool
}

type RateLimiter interface {
	Allow(ctx context.Context, key string, limit int64, window time.Duration) (bool, int64, error)
}

// FailureSink receives the consolidated per-cycle failure report and
// first-occurrence credential failures. One call per exhausted cycle, not
// one per attempt.
type FailureSink interface {
	UpdateFailed(trackingNumber string, err error)
}

type Scheduler struct {
	registry Registry
	gateways *carrier.Selector
	rl       RateLimiter
	failures FailureSink

	refreshInterval time.Duration
	drainInterval   time.Duration
	sweepInterval   time.Duration
	retryDelay      time.Duration
	fetchTimeout    time.Duration
	concurrency     int

	rateLimitPerMinute int64

	// mu guards queue and inFlight together: at most one queued entry and
	// at most one in-flight request per identifier. The in-flight value is
	// an ownership token, so a worker's cleanup only ever removes its own
	// claim and never a later one for the same identifier.
	mu        sync.Mutex
	queue     *updateQueue
	inFlight  map[string]uint64
	lastToken uint64

	sem       chan struct{}
	triggerCh chan struct{}

	now func() time.Time

	startedAtUnixNano int64
	lastCycleUnixNano atomic.Int64
	totalScheduled    atomic.Int64
	totalProcessed    atomic.Int64
	totalErrors       atomic.Int64
	inFlightCount     atomic.Int64
	lastErrorMu       sync.Mutex
	lastError         string
}

func New(reg Registry, gateways *carrier.Selector) *Scheduler {
	s := &Scheduler{
		registry:        reg,
		gateways:        gateways,
		refreshInterval: 5 * time.Minute,
		drainInterval:   1 * time.Second,
		sweepInterval:   30 * time.Second,
		retryDelay:      30 * time.Second,
		fetchTimeout:    10 * time.Second,
		concurrency:     3,
		queue:           newUpdateQueue(),
		inFlight:        make(map[string]uint64),
		triggerCh:       make(chan struct{}, 1),
		now:             func() time.Time { return time.Now().UTC() },

		startedAtUnixNano: time.Now().UTC().UnixNano(),
	}
	s.sem = make(chan struct{}, s.concurrency)
	return s
}

func (s *Scheduler) WithSettings(refresh, drain, sweep, retryDelay, fetchTimeout time.Duration, concurrency int) *Scheduler {
	if refresh > 0 {
		s.refreshInterval = refresh
	}
	if drain > 0 {
		s.drainInterval = drain
	}
	if sweep > 0 {
		s.sweepInterval = sweep
	}
	if retryDelay > 0 {
		s.retryDelay = retryDelay
	}
	if fetchTimeout > 0 {
		s.fetchTimeout = fetchTimeout
	}
	if concurrency > 0 {
		s.concurrency = concurrency
		s.sem = make(chan struct{}, concurrency)
	}
	return s
}

func (s *Scheduler) WithRateLimiter(rl RateLimiter, perMinute int64) *Scheduler {
	s.rl = rl
	if perMinute > 0 {
		s.rateLimitPerMinute = perMinute
	}
	return s
}

func (s *Scheduler) WithFailureSink(fs FailureSink) *Scheduler {
	s.failures = fs
	return s
}

func (s *Scheduler) WithClock(now func() time.Time) *Scheduler {
	if now != nil {
		s.now = now
	}
	return s
}

// ScheduleUpdate queues an automatic refresh. Archived and untracked
// packages are silently skipped; identifiers already queued or in flight
// are not queued twice.
func (s *Scheduler) ScheduleUpdate(trackingNumber string) bool {
	p, ok := s.registry.Get(trackingNumber)
	if !ok || p.Archived {
		return false
	}
	return s.enqueue(trackingNumber)
}

// RefreshNow queues an explicit user-requested refresh. Unlike
// ScheduleUpdate it also accepts archived packages; the de-duplication
// invariant still applies.
func (s *Scheduler) RefreshNow(trackingNumber string) bool {
	if _, ok := s.registry.Get(trackingNumber); !ok {
		return false
	}
	return s.enqueue(trackingNumber)
}

func (s *Scheduler) enqueue(trackingNumber string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, busy := s.inFlight[trackingNumber]; busy {
		return false
	}
	if !s.queue.push(trackingNumber) {
		return false
	}
	s.totalScheduled.Add(1)
	return true
}

// Forget drops any queued work for a deleted package. A request already in
// flight is left alone: its completion hits the registry as a no-op.
func (s *Scheduler) Forget(trackingNumber string) {
	s.mu.Lock()
	s.queue.remove(trackingNumber)
	s.mu.Unlock()
}

// Trigger forces an immediate refresh pass (best-effort, non-blocking).
func (s *Scheduler) Trigger() {
	select {
	case s.triggerCh <- struct{}{}:
	default:
	}
}

func (s *Scheduler) Run(ctx context.Context) error {
	refresh := time.NewTicker(s.refreshInterval)
	defer refresh.Stop()
	drain := time.NewTicker(s.drainInterval)
	defer drain.Stop()
	sweep := time.NewTicker(s.sweepInterval)
	defer sweep.Stop()

	// Kick a refresh pass on startup so loaded packages do not wait the
	// full interval.
	s.runRefresh()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-refresh.C:
			s.runRefresh()
		case <-s.triggerCh:
			s.runRefresh()
		case <-sweep.C:
			s.runSweep()
		case <-drain.C:
			s.drainTick(ctx)
		}
	}
}

// runRefresh enqueues every non-archived package.
func (s *Scheduler) runRefresh() {
	s.lastCycleUnixNano.Store(s.now().UnixNano())
	for _, p := range s.registry.List() {
		if p.Archived {
			continue
		}
		s.ScheduleUpdate(p.TrackingNumber)
	}
}

// runSweep re-queues packages with a partial failure count. Exhausted
// packages (RetryCount >= max) are left for an explicit refresh.
func (s *Scheduler) runSweep() {
	for _, p := range s.registry.List() {
		if p.Archived {
			continue
		}
		if p.RetryCount > 0 && p.RetryCount < models.MaxRetries {
			s.ScheduleUpdate(p.TrackingNumber)
		}
	}
}

// drainTick pops at most one eligible identifier and dispatches it to a
// bounded worker so a slow carrier call never blocks the other timers.
func (s *Scheduler) drainTick(ctx context.Context) {
	trackingNumber, token, ok := s.next()
	if !ok {
		return
	}

	select {
	case s.sem <- struct{}{}:
	default:
		// Concurrency cap reached; try again next tick.
		s.requeue(trackingNumber, token)
		return
	}

	go func() {
		defer func() { <-s.sem }()
		s.process(ctx, trackingNumber, token)
	}()
}

// next pops the head of the queue and marks it in flight, or re-queues it
// when the retry delay since its last failed attempt has not yet elapsed.
// The returned token identifies this particular claim.
func (s *Scheduler) next() (string, uint64, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	trackingNumber, ok := s.queue.pop()
	if !ok {
		return "", 0, false
	}

	p, tracked := s.registry.Get(trackingNumber)
	if !tracked {
		// Deleted while queued.
		return "", 0, false
	}
	if p.LastUpdateAttempt != nil && s.now().Sub(*p.LastUpdateAttempt) < s.retryDelay {
		s.queue.push(trackingNumber)
		return "", 0, false
	}

	s.lastToken++
	s.inFlight[trackingNumber] = s.lastToken
	return trackingNumber, s.lastToken, true
}

// requeue moves the claim back to the queue. A stale token (the identifier
// was claimed again in the meantime) is a no-op.
func (s *Scheduler) requeue(trackingNumber string, token uint64) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.inFlight[trackingNumber] != token {
		return
	}
	delete(s.inFlight, trackingNumber)
	s.queue.push(trackingNumber)
}

// release drops the claim, but only if this worker still owns it.
func (s *Scheduler) release(trackingNumber string, token uint64) {
	s.mu.Lock()
	if s.inFlight[trackingNumber] == token {
		delete(s.inFlight, trackingNumber)
	}
	s.mu.Unlock()
}

// process performs one gateway call and folds the outcome into the
// registry. Carrier and normalization errors stop here; nothing propagates
// past the scheduler.
func (s *Scheduler) process(ctx context.Context, trackingNumber string, token uint64) {
	defer s.release(trackingNumber, token)
	s.inFlightCount.Add(1)
	defer s.inFlightCount.Add(-1)

	p, ok := s.registry.Get(trackingNumber)
	if !ok {
		return
	}

	if s.rl != nil && s.rateLimitPerMinute > 0 {
		key := rediscache.CarrierKey(p.Carrier, s.now())
		allowed, n, err := s.rl.Allow(ctx, key, s.rateLimitPerMinute, 70*time.Second)
		if err == nil && !allowed {
			slog.Warn("carrier rate limit exceeded", "carrier", p.Carrier, "count", n)
			s.requeue(trackingNumber, token)
			return
		}
		// Limiter errors are not worth failing the update over.
	}

	gw, err := s.gateways.Gateway(p.Carrier)
	if err != nil {
		s.recordFailure(trackingNumber, err)
		return
	}

	fetchCtx, cancel := context.WithTimeout(ctx, s.fetchTimeout)
	payload, err := gw.Fetch(fetchCtx, trackingNumber)
	cancel()

	if err != nil {
		s.recordFailure(trackingNumber, err)
		return
	}

	snap, err := normalize.Snapshot(p.Carrier, payload)
	if err != nil {
		s.recordFailure(trackingNumber, err)
		return
	}

	s.registry.Apply(trackingNumber, snap)
	s.totalProcessed.Add(1)
}

func (s *Scheduler) recordFailure(trackingNumber string, err error) {
	s.totalErrors.Add(1)
	s.lastErrorMu.Lock()
	s.lastError = err.Error()
	s.lastErrorMu.Unlock()
	slog.Error("update package", "tracking_number", trackingNumber, "error", err.Error())

	exhausted := s.registry.RecordFailure(trackingNumber, err)

	if s.failures == nil {
		return
	}
	var authErr *carrier.AuthError
	if errors.As(err, &authErr) {
		// Credential failures are surfaced immediately: retrying cannot
		// help until the user changes them.
		if p, ok := s.registry.Get(trackingNumber); ok && p.RetryCount == 1 {
			s.failures.UpdateFailed(trackingNumber, err)
			return
		}
	}
	if exhausted {
		s.failures.UpdateFailed(trackingNumber,
			errors.Errorf("update failed %d times, giving up until next refresh: %v", models.MaxRetries, err))
	}
}

type Stats struct {
	StartedAt      time.Time  `json:"startedAt"`
	LastRefreshAt  *time.Time `json:"lastRefreshAt,omitempty"`
	TotalScheduled int64      `json:"totalScheduled"`
	TotalProcessed int64      `json:"totalProcessed"`
	TotalErrors    int64      `json:"totalErrors"`
	Queued         int        `json:"queued"`
	InFlight       int64      `json:"inFlight"`
	LastError      string     `json:"lastError,omitempty"`
}

func (s *Scheduler) Stats() Stats {
	st := Stats{
		StartedAt:      time.Unix(0, s.startedAtUnixNano).UTC(),
		TotalScheduled: s.totalScheduled.Load(),
		TotalProcessed: s.totalProcessed.Load(),
		TotalErrors:    s.totalErrors.Load(),
		InFlight:       s.inFlightCount.Load(),
	}
	if n := s.lastCycleUnixNano.Load(); n > 0 {
		t := time.Unix(0, n).UTC()
		st.LastRefreshAt = &t
	}
	s.mu.Lock()
	st.Queued = s.queue.len()
	s.mu.Unlock()
	s.lastErrorMu.Lock()
	st.LastError = s.lastError
	s.lastErrorMu.Unlock()
	return st
}
