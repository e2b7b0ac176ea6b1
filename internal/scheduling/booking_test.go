package scheduling_test

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"interview-scheduler/internal/scheduling"
)

func claim(slotID int64, email string) scheduling.ClaimRequest {
	return scheduling.ClaimRequest{SlotID: slotID, CandidateName: "Candidate " + email, CandidateEmail: email}
}

func TestClaim(t *testing.T) {
	f := newFixture(t)
	iv := f.interviewer(t, "iv@example.com", 3)
	slots := f.slots(t, iv.ID, at(20, 10, 0))

	b, err := f.engine().Claim(context.Background(), claim(slots[0].ID, "a@example.com"))
	require.NoError(t, err)

	assert.NotZero(t, b.ID)
	assert.Equal(t, slots[0].ID, b.SlotID)
	assert.Equal(t, at(20, 10, 0), b.SlotStart)
	assert.Equal(t, iv.ID, b.InterviewerID)
	assert.Equal(t, now, b.CreatedAt)
	assert.Equal(t, now, b.UpdatedAt)
	assert.Equal(t, scheduling.SlotBooked, f.slot(t, slots[0].ID).Status)
	assert.Equal(t, []string{scheduling.EventBookingCreated}, f.eventTypes())
}

func TestClaimErrors(t *testing.T) {
	f := newFixture(t)
	iv := f.interviewer(t, "iv@example.com", 5)
	slots := f.slots(t, iv.ID, at(20, 10, 0), at(20, 11, 0))
	engine := f.engine()

	_, err := engine.Claim(context.Background(), claim(slots[0].ID, "a@example.com"))
	require.NoError(t, err)

	tests := []struct {
		name string
		req  scheduling.ClaimRequest
		want error
	}{
		{name: "missing slot", req: claim(999, "b@example.com"), want: scheduling.ErrSlotNotFound},
		{name: "booked slot", req: claim(slots[0].ID, "b@example.com"), want: scheduling.ErrSlotUnavailable},
		{name: "candidate already booked", req: claim(slots[1].ID, "a@example.com"), want: scheduling.ErrDuplicateActiveBooking},
		{name: "duplicate check runs before slot lookup", req: claim(999, "a@example.com"), want: scheduling.ErrDuplicateActiveBooking},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := engine.Claim(context.Background(), tt.req)
			require.ErrorIs(t, err, tt.want)
			require.False(t, scheduling.IsRetryable(err))
		})
	}
	assert.Equal(t, scheduling.SlotAvailable, f.slot(t, slots[1].ID).Status)
}

func TestClaimDuplicateActiveBooking(t *testing.T) {
	f := newFixture(t)
	iv := f.interviewer(t, "iv@example.com", 1)
	slots := f.slots(t, iv.ID, at(20, 10, 0), at(27, 10, 0))
	engine := f.engine()

	_, err := engine.Claim(context.Background(), claim(slots[0].ID, "a@example.com"))
	require.NoError(t, err)

	_, err = engine.Claim(context.Background(), claim(slots[1].ID, "a@example.com"))
	require.ErrorIs(t, err, scheduling.ErrDuplicateActiveBooking)
}

func TestClaimCapacityExceeded(t *testing.T) {
	f := newFixture(t)
	iv := f.interviewer(t, "iv@example.com", 2)
	slots := f.slots(t, iv.ID, at(20, 10, 0), at(21, 10, 0), at(25, 23, 0), at(26, 0, 0))
	engine := f.engine()

	_, err := engine.Claim(context.Background(), claim(slots[0].ID, "a@example.com"))
	require.NoError(t, err)
	_, err = engine.Claim(context.Background(), claim(slots[1].ID, "b@example.com"))
	require.NoError(t, err)

	_, err = engine.Claim(context.Background(), claim(slots[2].ID, "c@example.com"))
	require.ErrorIs(t, err, scheduling.ErrCapacityExceeded)
	assert.Equal(t, scheduling.SlotAvailable, f.slot(t, slots[2].ID).Status)

	// Monday 00:00 belongs to the next week.
	_, err = engine.Claim(context.Background(), claim(slots[3].ID, "c@example.com"))
	require.NoError(t, err)
}

func TestClaimCapacityWeekUsesLocation(t *testing.T) {
	f := newFixture(t)
	ny, err := time.LoadLocation("America/New_York")
	require.NoError(t, err)
	f.opts = append(f.opts, scheduling.WithLocation(ny))

	iv := f.interviewer(t, "iv@example.com", 1)
	// 2026-10-26 02:00 UTC is still Sunday evening in New York.
	slots := f.slots(t, iv.ID, at(20, 15, 0), at(26, 2, 0))
	engine := f.engine()

	_, err = engine.Claim(context.Background(), claim(slots[0].ID, "a@example.com"))
	require.NoError(t, err)
	_, err = engine.Claim(context.Background(), claim(slots[1].ID, "b@example.com"))
	require.ErrorIs(t, err, scheduling.ErrCapacityExceeded)
}

func TestConcurrentClaimsSameSlot(t *testing.T) {
	f := newFixture(t)
	iv := f.interviewer(t, "iv@example.com", 10)
	slots := f.slots(t, iv.ID, at(20, 10, 0))
	engine := f.engine()

	const n = 20
	errs := make([]error, n)
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = engine.Claim(context.Background(), claim(slots[0].ID, fmt.Sprintf("c%d@example.com", i)))
		}(i)
	}
	wg.Wait()

	succeeded := 0
	for _, err := range errs {
		switch {
		case err == nil:
			succeeded++
		case errors.Is(err, scheduling.ErrSlotUnavailable), errors.Is(err, scheduling.ErrConcurrentModification):
		default:
			t.Fatalf("unexpected error: %v", err)
		}
	}
	require.Equal(t, 1, succeeded)
	require.Len(t, f.store.Events(), 1)
}

func TestConcurrentClaimsRespectWeeklyCapacity(t *testing.T) {
	f := newFixture(t)
	iv := f.interviewer(t, "iv@example.com", 1)
	starts := make([]time.Time, 0, 8)
	for h := 9; h < 17; h++ {
		starts = append(starts, at(21, h, 0))
	}
	slots := f.slots(t, iv.ID, starts...)
	engine := f.engine()

	var wg sync.WaitGroup
	for i, s := range slots {
		wg.Add(1)
		go func(i int, slotID int64) {
			defer wg.Done()
			_, err := engine.Claim(context.Background(), claim(slotID, fmt.Sprintf("c%d@example.com", i)))
			if err != nil {
				assert.True(t,
					errors.Is(err, scheduling.ErrCapacityExceeded) || errors.Is(err, scheduling.ErrConcurrentModification),
					"unexpected error: %v", err)
			}
		}(i, s.ID)
	}
	wg.Wait()

	booked := 0
	for _, s := range f.interviewerSlots(t, iv.ID) {
		if s.Status == scheduling.SlotBooked {
			booked++
		}
	}
	require.LessOrEqual(t, booked, 1)
}

func TestTransfer(t *testing.T) {
	f := newFixture(t)
	iv := f.interviewer(t, "iv@example.com", 1)
	other := f.interviewer(t, "other@example.com", 1)
	slots := f.slots(t, iv.ID, at(20, 10, 0), at(21, 10, 0))
	otherSlots := f.slots(t, other.ID, at(22, 10, 0))
	engine := f.engine()

	b, err := engine.Claim(context.Background(), claim(slots[0].ID, "a@example.com"))
	require.NoError(t, err)

	f.clock.Advance(time.Hour)

	// The interviewer's week is full, but the released slot no longer counts.
	moved, err := engine.Transfer(context.Background(), scheduling.TransferRequest{
		BookingID: b.ID, NewSlotID: slots[1].ID, CandidateName: "Renamed", CandidateEmail: "a@example.com",
	})
	require.NoError(t, err)
	assert.Equal(t, b.ID, moved.ID)
	assert.Equal(t, slots[1].ID, moved.SlotID)
	assert.Equal(t, "Renamed", moved.CandidateName)
	assert.Equal(t, b.CreatedAt, moved.CreatedAt)
	assert.Equal(t, now.Add(time.Hour), moved.UpdatedAt)
	assert.Equal(t, scheduling.SlotAvailable, f.slot(t, slots[0].ID).Status)
	assert.Equal(t, scheduling.SlotBooked, f.slot(t, slots[1].ID).Status)

	moved, err = engine.Transfer(context.Background(), scheduling.TransferRequest{
		BookingID: b.ID, NewSlotID: otherSlots[0].ID, CandidateName: "Renamed", CandidateEmail: "a@example.com",
	})
	require.NoError(t, err)
	assert.Equal(t, other.ID, moved.InterviewerID)
	assert.Equal(t, scheduling.SlotAvailable, f.slot(t, slots[1].ID).Status)

	got, err := engine.GetBooking(context.Background(), b.ID)
	require.NoError(t, err)
	assert.Equal(t, otherSlots[0].ID, got.SlotID)
	assert.Equal(t, at(22, 10, 0), got.SlotStart)

	assert.Equal(t, []string{
		scheduling.EventBookingCreated,
		scheduling.EventBookingTransferred,
		scheduling.EventBookingTransferred,
	}, f.eventTypes())
}

func TestTransferFailureLeavesBookingUntouched(t *testing.T) {
	f := newFixture(t)
	iv := f.interviewer(t, "iv@example.com", 5)
	slots := f.slots(t, iv.ID, at(20, 10, 0), at(20, 11, 0))
	engine := f.engine()

	b, err := engine.Claim(context.Background(), claim(slots[0].ID, "a@example.com"))
	require.NoError(t, err)
	_, err = engine.Claim(context.Background(), claim(slots[1].ID, "b@example.com"))
	require.NoError(t, err)

	tests := []struct {
		name string
		req  scheduling.TransferRequest
		want error
	}{
		{
			name: "unknown booking",
			req:  scheduling.TransferRequest{BookingID: 999, NewSlotID: slots[1].ID, CandidateEmail: "a@example.com"},
			want: scheduling.ErrBookingNotFound,
		},
		{
			name: "email mismatch",
			req:  scheduling.TransferRequest{BookingID: b.ID, NewSlotID: slots[1].ID, CandidateEmail: "A@example.com"},
			want: scheduling.ErrCandidateMismatch,
		},
		{
			name: "target booked",
			req:  scheduling.TransferRequest{BookingID: b.ID, NewSlotID: slots[1].ID, CandidateEmail: "a@example.com"},
			want: scheduling.ErrSlotUnavailable,
		},
		{
			name: "target missing",
			req:  scheduling.TransferRequest{BookingID: b.ID, NewSlotID: 999, CandidateEmail: "a@example.com"},
			want: scheduling.ErrSlotNotFound,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := engine.Transfer(context.Background(), tt.req)
			require.ErrorIs(t, err, tt.want)

			assert.Equal(t, scheduling.SlotBooked, f.slot(t, slots[0].ID).Status)
			got, err := engine.GetBooking(context.Background(), b.ID)
			require.NoError(t, err)
			assert.Equal(t, slots[0].ID, got.SlotID)
		})
	}
}

func TestTransferIntoFullWeek(t *testing.T) {
	f := newFixture(t)
	full := f.interviewer(t, "full@example.com", 1)
	other := f.interviewer(t, "other@example.com", 1)
	fullSlots := f.slots(t, full.ID, at(20, 10, 0), at(21, 10, 0))
	otherSlots := f.slots(t, other.ID, at(22, 10, 0))
	engine := f.engine()

	_, err := engine.Claim(context.Background(), claim(fullSlots[0].ID, "b@example.com"))
	require.NoError(t, err)
	b, err := engine.Claim(context.Background(), claim(otherSlots[0].ID, "a@example.com"))
	require.NoError(t, err)

	_, err = engine.Transfer(context.Background(), scheduling.TransferRequest{
		BookingID: b.ID, NewSlotID: fullSlots[1].ID, CandidateName: "A", CandidateEmail: "a@example.com",
	})
	require.ErrorIs(t, err, scheduling.ErrCapacityExceeded)
	require.False(t, scheduling.IsRetryable(err))

	assert.Equal(t, scheduling.SlotBooked, f.slot(t, otherSlots[0].ID).Status)
	assert.Equal(t, scheduling.SlotAvailable, f.slot(t, fullSlots[1].ID).Status)
	got, err := engine.GetBooking(context.Background(), b.ID)
	require.NoError(t, err)
	assert.Equal(t, otherSlots[0].ID, got.SlotID)
	assert.Equal(t, []string{scheduling.EventBookingCreated, scheduling.EventBookingCreated}, f.eventTypes())
}

func TestConcurrentTransferAndClaimSameSlot(t *testing.T) {
	f := newFixture(t)
	iv := f.interviewer(t, "iv@example.com", 1)
	other := f.interviewer(t, "other@example.com", 1)
	target := f.slots(t, iv.ID, at(21, 10, 0))[0]
	source := f.slots(t, other.ID, at(22, 10, 0))[0]

	b, err := f.engine().Claim(context.Background(), claim(source.ID, "a@example.com"))
	require.NoError(t, err)

	engine := scheduling.NewEngine(gated(f.store, 2), f.opts...)
	errs := concurrently(
		func() error {
			_, err := engine.Transfer(context.Background(), scheduling.TransferRequest{
				BookingID: b.ID, NewSlotID: target.ID, CandidateName: "A", CandidateEmail: "a@example.com",
			})
			return err
		},
		func() error {
			_, err := engine.Claim(context.Background(), claim(target.ID, "c@example.com"))
			return err
		},
	)
	winner := requireOneWinner(t, errs)

	assert.Equal(t, scheduling.SlotBooked, f.slot(t, target.ID).Status)
	got, err := f.engine().GetBooking(context.Background(), b.ID)
	require.NoError(t, err)
	if winner == 0 {
		assert.Equal(t, target.ID, got.SlotID)
		assert.Equal(t, scheduling.SlotAvailable, f.slot(t, source.ID).Status)
	} else {
		assert.Equal(t, source.ID, got.SlotID)
		assert.Equal(t, scheduling.SlotBooked, f.slot(t, source.ID).Status)
	}
	assert.Len(t, f.store.Events(), 2)
}

func TestConcurrentClaimsSameCandidate(t *testing.T) {
	f := newFixture(t)
	first := f.interviewer(t, "first@example.com", 1)
	second := f.interviewer(t, "second@example.com", 1)
	a := f.slots(t, first.ID, at(20, 10, 0))[0]
	b := f.slots(t, second.ID, at(21, 10, 0))[0]

	engine := scheduling.NewEngine(gated(f.store, 2), f.opts...)
	errs := concurrently(
		func() error {
			_, err := engine.Claim(context.Background(), claim(a.ID, "a@example.com"))
			return err
		},
		func() error {
			_, err := engine.Claim(context.Background(), claim(b.ID, "a@example.com"))
			return err
		},
	)
	winner := requireOneWinner(t, errs)

	booked := map[int]scheduling.SlotStatus{0: f.slot(t, a.ID).Status, 1: f.slot(t, b.ID).Status}
	assert.Equal(t, scheduling.SlotBooked, booked[winner])
	assert.Equal(t, scheduling.SlotAvailable, booked[1-winner])
	assert.Len(t, f.store.Events(), 1)
}

func TestTransferToOwnSlotIsAllowed(t *testing.T) {
	f := newFixture(t)
	iv := f.interviewer(t, "iv@example.com", 1)
	slots := f.slots(t, iv.ID, at(20, 10, 0))
	engine := f.engine()

	b, err := engine.Claim(context.Background(), claim(slots[0].ID, "a@example.com"))
	require.NoError(t, err)

	moved, err := engine.Transfer(context.Background(), scheduling.TransferRequest{
		BookingID: b.ID, NewSlotID: slots[0].ID, CandidateName: "New name", CandidateEmail: "a@example.com",
	})
	require.NoError(t, err)
	assert.Equal(t, "New name", moved.CandidateName)
	assert.Equal(t, scheduling.SlotBooked, f.slot(t, slots[0].ID).Status)
}

func TestGetBookingNotFound(t *testing.T) {
	f := newFixture(t)
	_, err := f.engine().GetBooking(context.Background(), 1)
	require.ErrorIs(t, err, scheduling.ErrBookingNotFound)
}
