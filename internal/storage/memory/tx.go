package memory

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"

	"interview-scheduler/internal/cursor"
	"interview-scheduler/internal/outbox"
	"interview-scheduler/internal/scheduling"
	"interview-scheduler/internal/telemetry"
)

type tx struct {
	store *Store
	snap  *state

	// committed version of every existing record this tx wrote, as first read
	slotBase        map[int64]int64
	interviewerBase map[int64]int64
	weekBase        map[weekKey]int64
	candidateBase   map[string]int64

	newSlots        map[int64]struct{}
	newInterviewers map[int64]struct{}
	dirtyRules      map[int64]struct{}
	dirtyBookings   map[int64]struct{}

	events []outbox.Record
}

var _ scheduling.Tx = (*tx)(nil)

func newTx(s *Store, snap *state) *tx {
	return &tx{
		store:           s,
		snap:            snap,
		slotBase:        make(map[int64]int64),
		interviewerBase: make(map[int64]int64),
		weekBase:        make(map[weekKey]int64),
		candidateBase:   make(map[string]int64),
		newSlots:        make(map[int64]struct{}),
		newInterviewers: make(map[int64]struct{}),
		dirtyRules:      make(map[int64]struct{}),
		dirtyBookings:   make(map[int64]struct{}),
	}
}

func keyOf(interviewerID int64, weekStart time.Time) weekKey {
	return weekKey{interviewerID: interviewerID, weekStart: weekStart.Unix()}
}

func (t *tx) GetInterviewer(_ context.Context, id int64) (scheduling.Interviewer, error) {
	iv, ok := t.snap.interviewers[id]
	if !ok {
		return scheduling.Interviewer{}, scheduling.ErrNotFound
	}
	return iv, nil
}

func (t *tx) GetInterviewerByEmail(_ context.Context, email string) (scheduling.Interviewer, error) {
	for _, iv := range t.snap.interviewers {
		if iv.Email == email {
			return iv, nil
		}
	}
	return scheduling.Interviewer{}, scheduling.ErrNotFound
}

func (t *tx) InsertInterviewer(_ context.Context, iv *scheduling.Interviewer) error {
	for _, other := range t.snap.interviewers {
		if other.Email == iv.Email {
			return fmt.Errorf("interviewer email taken: %w", scheduling.ErrVersionConflict)
		}
	}
	iv.ID = t.store.interviewerSeq.Add(1)
	iv.Version = 1
	t.snap.interviewers[iv.ID] = *iv
	t.newInterviewers[iv.ID] = struct{}{}
	return nil
}

func (t *tx) UpdateInterviewer(_ context.Context, iv *scheduling.Interviewer, expectedVersion int64) error {
	cur, ok := t.snap.interviewers[iv.ID]
	if !ok {
		return scheduling.ErrNotFound
	}
	if cur.Version != expectedVersion {
		return scheduling.ErrVersionConflict
	}
	if _, isNew := t.newInterviewers[iv.ID]; !isNew {
		if _, seen := t.interviewerBase[iv.ID]; !seen {
			t.interviewerBase[iv.ID] = cur.Version
		}
	}
	cur.Name = iv.Name
	cur.MaxInterviewsPerWeek = iv.MaxInterviewsPerWeek
	cur.UpdatedAt = iv.UpdatedAt
	cur.Version++
	t.snap.interviewers[iv.ID] = cur
	*iv = cur
	return nil
}

func (t *tx) ListAvailabilityRules(_ context.Context, interviewerID int64) ([]scheduling.AvailabilityRule, error) {
	return append([]scheduling.AvailabilityRule(nil), t.snap.rules[interviewerID]...), nil
}

func (t *tx) ReplaceAvailabilityRules(_ context.Context, interviewerID int64, rules []scheduling.AvailabilityRule) ([]scheduling.AvailabilityRule, error) {
	stored := make([]scheduling.AvailabilityRule, 0, len(rules))
	for _, r := range rules {
		r.ID = t.store.ruleSeq.Add(1)
		r.InterviewerID = interviewerID
		stored = append(stored, r)
	}
	t.snap.rules[interviewerID] = stored
	t.dirtyRules[interviewerID] = struct{}{}
	return append([]scheduling.AvailabilityRule(nil), stored...), nil
}

func (t *tx) GetSlot(_ context.Context, id int64) (scheduling.TimeSlot, error) {
	s, ok := t.snap.slots[id]
	if !ok {
		return scheduling.TimeSlot{}, scheduling.ErrNotFound
	}
	return s, nil
}

func (t *tx) ListSlotsInRange(_ context.Context, interviewerID int64, from, to time.Time) ([]scheduling.TimeSlot, error) {
	var out []scheduling.TimeSlot
	for _, s := range t.snap.slots {
		if s.InterviewerID == interviewerID && !s.Start.Before(from) && s.Start.Before(to) {
			out = append(out, s)
		}
	}
	sortSlots(out)
	return out, nil
}

func (t *tx) InsertSlots(_ context.Context, slots []scheduling.TimeSlot) ([]scheduling.TimeSlot, error) {
	out := make([]scheduling.TimeSlot, 0, len(slots))
	for _, s := range slots {
		s.ID = t.store.slotSeq.Add(1)
		s.Version = 1
		if s.Status == "" {
			s.Status = scheduling.SlotAvailable
		}
		t.snap.slots[s.ID] = s
		t.newSlots[s.ID] = struct{}{}
		out = append(out, s)
	}
	return out, nil
}

func (t *tx) UpdateSlotStatus(_ context.Context, id, expectedVersion int64, status scheduling.SlotStatus) (int64, error) {
	cur, ok := t.snap.slots[id]
	if !ok {
		return 0, scheduling.ErrNotFound
	}
	if cur.Version != expectedVersion {
		return 0, scheduling.ErrVersionConflict
	}
	if _, isNew := t.newSlots[id]; !isNew {
		if _, seen := t.slotBase[id]; !seen {
			t.slotBase[id] = cur.Version
		}
	}
	cur.Status = status
	cur.Version++
	t.snap.slots[id] = cur
	return cur.Version, nil
}

func (t *tx) CountBookedSlots(_ context.Context, interviewerID int64, from, to time.Time) (int, error) {
	n := 0
	for _, s := range t.snap.slots {
		if s.InterviewerID == interviewerID && s.Status == scheduling.SlotBooked &&
			!s.Start.Before(from) && s.Start.Before(to) {
			n++
		}
	}
	return n, nil
}

func (t *tx) ListAvailableSlots(_ context.Context, after *cursor.Position, limit int) ([]scheduling.TimeSlot, error) {
	var out []scheduling.TimeSlot
	for _, s := range t.snap.slots {
		if s.Status != scheduling.SlotAvailable {
			continue
		}
		if after != nil && !after.After(s.Start, s.ID) {
			continue
		}
		out = append(out, s)
	}
	sortSlots(out)
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (t *tx) WeekLoadVersion(_ context.Context, interviewerID int64, weekStart time.Time) (int64, error) {
	return t.snap.weekLoads[keyOf(interviewerID, weekStart)], nil
}

func (t *tx) BumpWeekLoad(_ context.Context, interviewerID int64, weekStart time.Time, expectedVersion int64) error {
	k := keyOf(interviewerID, weekStart)
	cur := t.snap.weekLoads[k]
	if cur != expectedVersion {
		return scheduling.ErrVersionConflict
	}
	if _, seen := t.weekBase[k]; !seen {
		t.weekBase[k] = cur
	}
	t.snap.weekLoads[k] = cur + 1
	return nil
}

func (t *tx) CandidateLoadVersion(_ context.Context, email string) (int64, error) {
	return t.snap.candidates[email], nil
}

func (t *tx) BumpCandidateLoad(_ context.Context, email string, expectedVersion int64) error {
	cur := t.snap.candidates[email]
	if cur != expectedVersion {
		return scheduling.ErrVersionConflict
	}
	if _, seen := t.candidateBase[email]; !seen {
		t.candidateBase[email] = cur
	}
	t.snap.candidates[email] = cur + 1
	return nil
}

func (t *tx) GetBooking(_ context.Context, id int64) (scheduling.Booking, error) {
	b, ok := t.snap.bookings[id]
	if !ok {
		return scheduling.Booking{}, scheduling.ErrNotFound
	}
	return b, nil
}

func (t *tx) FindBookingsByEmail(_ context.Context, email string) ([]scheduling.Booking, error) {
	var out []scheduling.Booking
	for _, b := range t.snap.bookings {
		if b.CandidateEmail == email {
			out = append(out, b)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (t *tx) InsertBooking(_ context.Context, b *scheduling.Booking) error {
	for _, other := range t.snap.bookings {
		if other.SlotID == b.SlotID {
			return fmt.Errorf("slot %d already referenced: %w", b.SlotID, scheduling.ErrVersionConflict)
		}
	}
	b.ID = t.store.bookingSeq.Add(1)
	t.snap.bookings[b.ID] = *b
	t.dirtyBookings[b.ID] = struct{}{}
	return nil
}

func (t *tx) UpdateBooking(_ context.Context, b scheduling.Booking) error {
	if _, ok := t.snap.bookings[b.ID]; !ok {
		return scheduling.ErrNotFound
	}
	for _, other := range t.snap.bookings {
		if other.SlotID == b.SlotID && other.ID != b.ID {
			return fmt.Errorf("slot %d already referenced: %w", b.SlotID, scheduling.ErrVersionConflict)
		}
	}
	t.snap.bookings[b.ID] = b
	t.dirtyBookings[b.ID] = struct{}{}
	return nil
}

func (t *tx) AppendEvent(ctx context.Context, evt scheduling.Event) error {
	traceparent, tracestate := telemetry.TraceContextStrings(ctx)
	t.events = append(t.events, outbox.Record{
		EventID:       uuid.NewString(),
		AggregateType: evt.AggregateType,
		AggregateID:   evt.AggregateID,
		EventType:     evt.Type,
		Payload:       append([]byte(nil), evt.Payload...),
		Traceparent:   traceparent,
		Tracestate:    tracestate,
		CreatedAt:     evt.OccurredAt,
	})
	return nil
}

func sortSlots(slots []scheduling.TimeSlot) {
	sort.Slice(slots, func(i, j int) bool {
		if !slots[i].Start.Equal(slots[j].Start) {
			return slots[i].Start.Before(slots[j].Start)
		}
		return slots[i].ID < slots[j].ID
	})
}
