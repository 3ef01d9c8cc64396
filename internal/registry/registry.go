// Package registry owns all tracked-package state. Every mutation goes
// through its methods; callers outside only ever see value copies, so the
// scheduler, webhook path and HTTP handlers cannot race on shared fields.
package registry

import (
	"context"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/mitchellmoss/package-tracker/internal/models"
	"github.com/mitchellmoss/package-tracker/internal/store"
	"github.com/pkg/errors"
)

var (
	ErrDuplicateTracking = errors.New("tracking number already tracked")
	ErrUnknownTracking   = errors.New("tracking number not tracked")
)

// Notifier receives status transitions. Fired only on a real change, never
// on an unchanged re-fetch.
type Notifier interface {
	StatusChanged(trackingNumber, oldStatus, newStatus string)
}

type Registry struct {
	mu       sync.RWMutex
	packages map[string]*models.TrackedPackage

	store    store.Store
	notifier Notifier
	now      func() time.Time
}

func New(st store.Store) *Registry {
	return &Registry{
		packages: make(map[string]*models.TrackedPackage),
		store:    st,
		now:      func() time.Time { return time.Now().UTC() },
	}
}

func (r *Registry) WithNotifier(n Notifier) *Registry {
	r.notifier = n
	return r
}

func (r *Registry) WithClock(now func() time.Time) *Registry {
	if now != nil {
		r.now = now
	}
	return r
}

// Add registers a new tracking number. Adding an already-tracked number is
// an error, not an upsert.
func (r *Registry) Add(trackingNumber, carrierCode, note string) (models.TrackedPackage, error) {
	if err := models.ValidateTrackingNumber(trackingNumber); err != nil {
		return models.TrackedPackage{}, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.packages[trackingNumber]; ok {
		return models.TrackedPackage{}, errors.Wrap(ErrDuplicateTracking, trackingNumber)
	}

	now := r.now()
	p := &models.TrackedPackage{
		TrackingNumber: trackingNumber,
		Carrier:        carrierCode,
		Status:         models.StatusUnknown,
		Note:           note,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	r.packages[trackingNumber] = p
	return *p, nil
}

// Remove deletes the record. Removing an untracked number is a no-op: the
// queue and any in-flight work are keyed by identifier, so stale
// completions simply miss.
func (r *Registry) Remove(trackingNumber string) {
	r.mu.Lock()
	delete(r.packages, trackingNumber)
	r.mu.Unlock()
}

// Apply replaces the snapshot wholesale, resets the retry cycle and reports
// whether the visible status changed. Unknown identifiers (e.g. deleted
// mid-flight) are a silent no-op.
func (r *Registry) Apply(trackingNumber string, snap models.TrackingSnapshot) bool {
	r.mu.Lock()
	p, ok := r.packages[trackingNumber]
	if !ok {
		r.mu.Unlock()
		return false
	}

	oldStatus := p.Status
	p.Status = snap.Status
	p.Substatus = snap.Substatus
	p.Details = &snap
	p.RetryCount = 0
	p.LastUpdateAttempt = nil
	p.LastError = nil
	p.UpdatedAt = r.now()
	changed := oldStatus != snap.Status
	r.mu.Unlock()

	if changed && r.notifier != nil {
		r.notifier.StatusChanged(trackingNumber, oldStatus, snap.Status)
	}
	return changed
}

// RecordFailure bumps the retry counter and stamps the attempt. It reports
// whether the ceiling was reached on this call; the package stays tracked
// either way.
func (r *Registry) RecordFailure(trackingNumber string, fetchErr error) (exhausted bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	p, ok := r.packages[trackingNumber]
	if !ok {
		return false
	}

	p.RetryCount++
	now := r.now()
	p.LastUpdateAttempt = &now
	if fetchErr != nil {
		msg := fetchErr.Error()
		p.LastError = &msg
	}
	p.UpdatedAt = now
	return p.RetryCount >= models.MaxRetries
}

func (r *Registry) SetArchived(trackingNumber string, archived bool) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	p, ok := r.packages[trackingNumber]
	if !ok {
		return errors.Wrap(ErrUnknownTracking, trackingNumber)
	}
	p.Archived = archived
	p.UpdatedAt = r.now()
	return nil
}

func (r *Registry) SetNote(trackingNumber, note string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	p, ok := r.packages[trackingNumber]
	if !ok {
		return errors.Wrap(ErrUnknownTracking, trackingNumber)
	}
	p.Note = note
	p.UpdatedAt = r.now()
	return nil
}

func (r *Registry) Get(trackingNumber string) (models.TrackedPackage, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	p, ok := r.packages[trackingNumber]
	if !ok {
		return models.TrackedPackage{}, false
	}
	return *p, true
}

// List returns value copies ordered by tracking number.
func (r *Registry) List() []models.TrackedPackage {
	r.mu.RLock()
	out := make([]models.TrackedPackage, 0, len(r.packages))
	for _, p := range r.packages {
		out = append(out, *p)
	}
	r.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool { return out[i].TrackingNumber < out[j].TrackingNumber })
	return out
}

// Load replaces in-memory state from the store. A load failure is fatal
// only in the sense that we start empty; the process still comes up.
func (r *Registry) Load(ctx context.Context) error {
	pkgs, err := r.store.LoadAll(ctx)
	if err != nil {
		return errors.Wrap(err, "load packages")
	}

	r.mu.Lock()
	r.packages = make(map[string]*models.TrackedPackage, len(pkgs))
	for i := range pkgs {
		p := pkgs[i]
		if p.TrackingNumber == "" {
			continue
		}
		if p.Status == "" {
			p.Status = models.StatusUnknown
		}
		r.packages[p.TrackingNumber] = &p
	}
	r.mu.Unlock()
	return nil
}

// Save writes the full registry. Errors are reported but callers are
// expected to log-and-continue: the next successful save catches up.
func (r *Registry) Save(ctx context.Context) error {
	if err := r.store.SaveAll(ctx, r.List()); err != nil {
		return errors.Wrap(err, "save packages")
	}
	return nil
}

// SaveBestEffort is the log-and-ignore flavor used after routine mutations.
func (r *Registry) SaveBestEffort(ctx context.Context) {
	if err := r.Save(ctx); err != nil {
		slog.Error("save registry", "error", err.Error())
	}
}
