// Package memory keeps scheduling state in process.
//
// A transaction works on a private copy of the committed state taken when it
// begins, so both isolation levels behave as snapshot reads. At commit every
// slot, interviewer, week-load and candidate-load record the transaction wrote must still carry
// the version it was read at; otherwise nothing is applied and InTx returns
// scheduling.ErrVersionConflict.
package memory

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"

	"interview-scheduler/internal/outbox"
	"interview-scheduler/internal/scheduling"
)

type weekKey struct {
	interviewerID int64
	weekStart     int64
}

type state struct {
	interviewers map[int64]scheduling.Interviewer
	rules        map[int64][]scheduling.AvailabilityRule
	slots        map[int64]scheduling.TimeSlot
	bookings     map[int64]scheduling.Booking
	weekLoads    map[weekKey]int64
	candidates   map[string]int64
}

func newState() *state {
	return &state{
		interviewers: make(map[int64]scheduling.Interviewer),
		rules:        make(map[int64][]scheduling.AvailabilityRule),
		slots:        make(map[int64]scheduling.TimeSlot),
		bookings:     make(map[int64]scheduling.Booking),
		weekLoads:    make(map[weekKey]int64),
		candidates:   make(map[string]int64),
	}
}

func (s *state) clone() *state {
	c := &state{
		interviewers: make(map[int64]scheduling.Interviewer, len(s.interviewers)),
		rules:        make(map[int64][]scheduling.AvailabilityRule, len(s.rules)),
		slots:        make(map[int64]scheduling.TimeSlot, len(s.slots)),
		bookings:     make(map[int64]scheduling.Booking, len(s.bookings)),
		weekLoads:    make(map[weekKey]int64, len(s.weekLoads)),
		candidates:   make(map[string]int64, len(s.candidates)),
	}
	for k, v := range s.interviewers {
		c.interviewers[k] = v
	}
	for k, v := range s.rules {
		c.rules[k] = append([]scheduling.AvailabilityRule(nil), v...)
	}
	for k, v := range s.slots {
		c.slots[k] = v
	}
	for k, v := range s.bookings {
		c.bookings[k] = v
	}
	for k, v := range s.weekLoads {
		c.weekLoads[k] = v
	}
	for k, v := range s.candidates {
		c.candidates[k] = v
	}
	return c
}

type Store struct {
	mu        sync.Mutex
	committed *state
	events    []outbox.Record
	published int

	outboxMu sync.Mutex

	interviewerSeq atomic.Int64
	ruleSeq        atomic.Int64
	slotSeq        atomic.Int64
	bookingSeq     atomic.Int64
	eventSeq       atomic.Int64
}

var (
	_ scheduling.Store = (*Store)(nil)
	_ outbox.Source    = (*Store)(nil)
)

func New() *Store {
	return &Store{committed: newState()}
}

func (s *Store) InTx(ctx context.Context, _ scheduling.Isolation, fn func(tx scheduling.Tx) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	t := newTx(s, s.committed.clone())
	s.mu.Unlock()

	if err := fn(t); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	return s.commit(t)
}

// Ping reports readiness; the in-process store is always ready.
func (s *Store) Ping(context.Context) error {
	return nil
}

func (s *Store) commit(t *tx) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	cur := s.committed
	for id, base := range t.slotBase {
		if got, ok := cur.slots[id]; !ok || got.Version != base {
			return fmt.Errorf("slot %d: %w", id, scheduling.ErrVersionConflict)
		}
	}
	for id, base := range t.interviewerBase {
		if got, ok := cur.interviewers[id]; !ok || got.Version != base {
			return fmt.Errorf("interviewer %d: %w", id, scheduling.ErrVersionConflict)
		}
	}
	for k, base := range t.weekBase {
		if cur.weekLoads[k] != base {
			return fmt.Errorf("week load of interviewer %d: %w", k.interviewerID, scheduling.ErrVersionConflict)
		}
	}
	for email, base := range t.candidateBase {
		if cur.candidates[email] != base {
			return fmt.Errorf("candidate load: %w", scheduling.ErrVersionConflict)
		}
	}
	for id := range t.newInterviewers {
		email := t.snap.interviewers[id].Email
		for _, other := range cur.interviewers {
			if other.Email == email && other.ID != id {
				return fmt.Errorf("interviewer email taken: %w", scheduling.ErrVersionConflict)
			}
		}
	}
	for id := range t.dirtyBookings {
		slotID := t.snap.bookings[id].SlotID
		for _, other := range cur.bookings {
			if other.SlotID == slotID && other.ID != id {
				return fmt.Errorf("slot %d already referenced: %w", slotID, scheduling.ErrVersionConflict)
			}
		}
	}

	for id := range t.slotBase {
		cur.slots[id] = t.snap.slots[id]
	}
	for id := range t.newSlots {
		cur.slots[id] = t.snap.slots[id]
	}
	for id := range t.interviewerBase {
		cur.interviewers[id] = t.snap.interviewers[id]
	}
	for id := range t.newInterviewers {
		cur.interviewers[id] = t.snap.interviewers[id]
	}
	for k := range t.weekBase {
		cur.weekLoads[k] = t.snap.weekLoads[k]
	}
	for email := range t.candidateBase {
		cur.candidates[email] = t.snap.candidates[email]
	}
	for id := range t.dirtyRules {
		cur.rules[id] = t.snap.rules[id]
	}
	for id := range t.dirtyBookings {
		cur.bookings[id] = t.snap.bookings[id]
	}
	for _, r := range t.events {
		r.ID = s.eventSeq.Add(1)
		s.events = append(s.events, r)
	}
	return nil
}

// Events returns every committed event, published or not, in commit order.
func (s *Store) Events() []outbox.Record {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]outbox.Record(nil), s.events...)
}

// Drain hands the oldest unpublished events to publish and marks them
// published once it succeeds.
func (s *Store) Drain(ctx context.Context, limit int, publish func(context.Context, []outbox.Record) error) (int, error) {
	s.outboxMu.Lock()
	defer s.outboxMu.Unlock()

	s.mu.Lock()
	pending := s.events[s.published:]
	n := min(limit, len(pending))
	batch := append([]outbox.Record(nil), pending[:n]...)
	s.mu.Unlock()

	if len(batch) == 0 {
		return 0, nil
	}
	if err := publish(ctx, batch); err != nil {
		return 0, err
	}

	s.mu.Lock()
	s.published += n
	s.mu.Unlock()
	return n, nil
}
