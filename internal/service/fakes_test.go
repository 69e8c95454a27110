package service

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/onhighmng/melhor-saude-final-57-sub010/internal/models"
	"github.com/onhighmng/melhor-saude-final-57-sub010/internal/notifier"
	"github.com/onhighmng/melhor-saude-final-57-sub010/internal/realtime"
	"github.com/onhighmng/melhor-saude-final-57-sub010/internal/repository"
	"gorm.io/gorm"
)

// --- In-memory store ---
//
// memDB honours the same guards as the SQL repositories: guarded increments,
// guarded transitions and the active-slot unique index. Transactions are
// serialised and rolled back on error.

type allocKey struct {
	subject string
	pool    models.PoolType
}

type slotKey struct {
	provider string
	date     string
	time     string
}

type memDB struct {
	txMu sync.Mutex
	mu   sync.Mutex

	allocs      map[allocKey]models.Allocation
	bookings    map[string]models.Booking
	blackouts   map[slotKey]string
	consumption map[string]models.SessionConsumption
	progress    map[string]models.ProgressEvent
	providers   map[string]models.Provider

	bookingsErr  error
	blackoutsErr error
	nextID       uint
}

func newMemDB() *memDB {
	return &memDB{
		allocs:      map[allocKey]models.Allocation{},
		bookings:    map[string]models.Booking{},
		blackouts:   map[slotKey]string{},
		consumption: map[string]models.SessionConsumption{},
		progress:    map[string]models.ProgressEvent{},
		providers:   map[string]models.Provider{},
	}
}

type memSnapshot struct {
	allocs      map[allocKey]models.Allocation
	bookings    map[string]models.Booking
	blackouts   map[slotKey]string
	consumption map[string]models.SessionConsumption
	progress    map[string]models.ProgressEvent
}

func copyMap[K comparable, V any](m map[K]V) map[K]V {
	out := make(map[K]V, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

func (db *memDB) Transaction(_ context.Context, fn func(tx *gorm.DB) error) error {
	db.txMu.Lock()
	defer db.txMu.Unlock()

	db.mu.Lock()
	snap := memSnapshot{
		allocs:      copyMap(db.allocs),
		bookings:    copyMap(db.bookings),
		blackouts:   copyMap(db.blackouts),
		consumption: copyMap(db.consumption),
		progress:    copyMap(db.progress),
	}
	db.mu.Unlock()

	if err := fn(nil); err != nil {
		db.mu.Lock()
		db.allocs = snap.allocs
		db.bookings = snap.bookings
		db.blackouts = snap.blackouts
		db.consumption = snap.consumption
		db.progress = snap.progress
		db.mu.Unlock()
		return err
	}
	return nil
}

func (db *memDB) seedAllocation(subject string, pool models.PoolType, granted, consumed int) {
	db.mu.Lock()
	defer db.mu.Unlock()
	db.allocs[allocKey{subject, pool}] = models.Allocation{SubjectID: subject, PoolType: pool, Granted: granted, Consumed: consumed}
}

func (db *memDB) allocation(subject string, pool models.PoolType) models.Allocation {
	db.mu.Lock()
	defer db.mu.Unlock()
	return db.allocs[allocKey{subject, pool}]
}

func (db *memDB) seedBooking(b models.Booking) {
	db.mu.Lock()
	defer db.mu.Unlock()
	db.bookings[b.ID] = b
}

func (db *memDB) booking(id string) models.Booking {
	db.mu.Lock()
	defer db.mu.Unlock()
	return db.bookings[id]
}

func (db *memDB) seedProvider(p models.Provider) {
	db.mu.Lock()
	defer db.mu.Unlock()
	db.providers[p.ID] = p
}

func (db *memDB) seedBlackout(provider, date, t string) {
	db.mu.Lock()
	defer db.mu.Unlock()
	db.blackouts[slotKey{provider, date, t}] = ""
}

func (db *memDB) consumptionCount() int {
	db.mu.Lock()
	defer db.mu.Unlock()
	return len(db.consumption)
}

func (db *memDB) progressCount() int {
	db.mu.Lock()
	defer db.mu.Unlock()
	return len(db.progress)
}

// --- AllocationRepository ---

type memAllocRepo struct{ db *memDB }

func (r memAllocRepo) FindBySubject(_ context.Context, subjectID string) ([]models.Allocation, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	var out []models.Allocation
	for k, a := range r.db.allocs {
		if k.subject == subjectID {
			out = append(out, a)
		}
	}
	return out, nil
}

func (r memAllocRepo) IncrementConsumed(_ context.Context, _ *gorm.DB, subjectID string, pool models.PoolType) (bool, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	k := allocKey{subjectID, pool}
	a, ok := r.db.allocs[k]
	if !ok || a.Consumed >= a.Granted {
		return false, nil
	}
	a.Consumed++
	r.db.allocs[k] = a
	return true, nil
}

func (r memAllocRepo) AddGranted(_ context.Context, _ *gorm.DB, subjectID string, pool models.PoolType, sessions int) (*models.Allocation, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	k := allocKey{subjectID, pool}
	a, ok := r.db.allocs[k]
	if !ok {
		r.db.nextID++
		a = models.Allocation{ID: r.db.nextID, SubjectID: subjectID, PoolType: pool}
	}
	a.Granted += sessions
	r.db.allocs[k] = a
	return &a, nil
}

// --- BookingRepository ---

type memBookingRepo struct{ db *memDB }

func (r memBookingRepo) Create(_ context.Context, _ *gorm.DB, b *models.Booking) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	if _, ok := r.db.bookings[b.ID]; ok {
		return gorm.ErrDuplicatedKey
	}
	for _, other := range r.db.bookings {
		if other.Status.Active() && b.Status.Active() &&
			other.ProviderID == b.ProviderID && other.Date == b.Date && other.StartTime == b.StartTime {
			return gorm.ErrDuplicatedKey
		}
	}
	r.db.bookings[b.ID] = *b
	return nil
}

func (r memBookingRepo) FindByID(_ context.Context, id string) (*models.Booking, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	b, ok := r.db.bookings[id]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	return &b, nil
}

func (r memBookingRepo) FindBySubject(_ context.Context, subjectID string, status *models.BookingStatus) ([]models.Booking, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	var out []models.Booking
	for _, b := range r.db.bookings {
		if b.SubjectID == subjectID && (status == nil || b.Status == *status) {
			out = append(out, b)
		}
	}
	return out, nil
}

func (r memBookingRepo) FindClaimedTimes(_ context.Context, providerID, date string) ([]string, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	if r.db.bookingsErr != nil {
		return nil, r.db.bookingsErr
	}
	var out []string
	for _, b := range r.db.bookings {
		if b.ProviderID == providerID && b.Date == date && b.Status.Active() {
			out = append(out, b.StartTime)
		}
	}
	return out, nil
}

func (r memBookingRepo) FindDue(_ context.Context, today string, after *repository.DueCursor, limit int) ([]models.Booking, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	if r.db.bookingsErr != nil {
		return nil, r.db.bookingsErr
	}
	var out []models.Booking
	for _, b := range r.db.bookings {
		if b.Status.Active() && b.Date <= today {
			out = append(out, b)
		}
	}
	sort.Slice(out, func(i, j int) bool { return dueLess(out[i], out[j]) })
	if after != nil {
		key := models.Booking{Date: after.Date, EndTime: after.EndTime, ID: after.ID}
		start := sort.Search(len(out), func(i int) bool { return dueLess(key, out[i]) })
		out = out[start:]
	}
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func dueLess(a, b models.Booking) bool {
	if a.Date != b.Date {
		return a.Date < b.Date
	}
	if a.EndTime != b.EndTime {
		return a.EndTime < b.EndTime
	}
	return a.ID < b.ID
}

func (r memBookingRepo) Transition(_ context.Context, _ *gorm.DB, id string, to models.BookingStatus, at time.Time) (bool, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	b, ok := r.db.bookings[id]
	if !ok || !models.CanTransition(b.Status, to) {
		return false, nil
	}
	b.Status = to
	b.UpdatedAt = at
	switch to {
	case models.StatusCompleted:
		b.CompletedAt = &at
	case models.StatusCancelled:
		b.CancelledAt = &at
	}
	r.db.bookings[id] = b
	return true, nil
}

// --- BlackoutRepository ---

type memBlackoutRepo struct{ db *memDB }

func (r memBlackoutRepo) FindTimes(_ context.Context, providerID, date string) ([]string, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	if r.db.blackoutsErr != nil {
		return nil, r.db.blackoutsErr
	}
	var out []string
	for k := range r.db.blackouts {
		if k.provider == providerID && k.date == date {
			out = append(out, k.time)
		}
	}
	sort.Strings(out)
	return out, nil
}

func (r memBlackoutRepo) Contains(_ context.Context, _ *gorm.DB, providerID, date, slot string) (bool, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	if r.db.blackoutsErr != nil {
		return false, r.db.blackoutsErr
	}
	_, ok := r.db.blackouts[slotKey{providerID, date, slot}]
	return ok, nil
}

func (r memBlackoutRepo) Add(_ context.Context, providerID, date string, times []string, reason string) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	for _, t := range times {
		k := slotKey{providerID, date, t}
		if _, ok := r.db.blackouts[k]; !ok {
			r.db.blackouts[k] = reason
		}
	}
	return nil
}

func (r memBlackoutRepo) Remove(_ context.Context, providerID, date string, times []string) (int64, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	var n int64
	for k := range r.db.blackouts {
		if k.provider != providerID || k.date != date {
			continue
		}
		if len(times) > 0 && !contains(times, k.time) {
			continue
		}
		delete(r.db.blackouts, k)
		n++
	}
	return n, nil
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}

// --- LedgerRepository ---

type memLedgerRepo struct{ db *memDB }

func (r memLedgerRepo) RecordConsumption(_ context.Context, _ *gorm.DB, c *models.SessionConsumption) (bool, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	if _, ok := r.db.consumption[c.BookingID]; ok {
		return false, nil
	}
	r.db.consumption[c.BookingID] = *c
	return true, nil
}

func (r memLedgerRepo) RecordProgress(_ context.Context, _ *gorm.DB, e *models.ProgressEvent) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	if _, ok := r.db.progress[e.BookingID]; !ok {
		r.db.progress[e.BookingID] = *e
	}
	return nil
}

func (r memLedgerRepo) FindConsumptions(_ context.Context, subjectID string) ([]models.SessionConsumption, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	var out []models.SessionConsumption
	for _, c := range r.db.consumption {
		if c.SubjectID == subjectID {
			out = append(out, c)
		}
	}
	return out, nil
}

// --- ProviderRepository ---

type memProviderRepo struct{ db *memDB }

func (r memProviderRepo) FindByID(_ context.Context, id string) (*models.Provider, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	p, ok := r.db.providers[id]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	return &p, nil
}

func (r memProviderRepo) Upsert(_ context.Context, p *models.Provider) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	r.db.providers[p.ID] = *p
	return nil
}

// --- Publisher / Notifier ---

type recordingPublisher struct {
	mu      sync.Mutex
	changes []realtime.Change
}

func (p *recordingPublisher) Publish(_ context.Context, ch realtime.Change) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.changes = append(p.changes, ch)
	return nil
}

func (p *recordingPublisher) kinds() []realtime.ChangeKind {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]realtime.ChangeKind, len(p.changes))
	for i, ch := range p.changes {
		out[i] = ch.Kind
	}
	return out
}

type recordingNotifier struct {
	mu   sync.Mutex
	sent []notifier.Notification
	err  error
}

func (n *recordingNotifier) Notify(_ context.Context, msg notifier.Notification) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.sent = append(n.sent, msg)
	return n.err
}

func (n *recordingNotifier) count() int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return len(n.sent)
}

// countingQuota wraps a QuotaLedger and counts Consume calls.
type countingQuota struct {
	QuotaLedger
	mu       sync.Mutex
	consumes int
}

func (q *countingQuota) Consume(ctx context.Context, tx *gorm.DB, subjectID string, pool models.PoolType) (bool, error) {
	q.mu.Lock()
	q.consumes++
	q.mu.Unlock()
	return q.QuotaLedger.Consume(ctx, tx, subjectID, pool)
}

func (q *countingQuota) calls() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.consumes
}
