package scheduling_test

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"interview-scheduler/internal/scheduling"
	"interview-scheduler/internal/storage/memory"
	"interview-scheduler/internal/timemath"
)

// Monday.
var now = time.Date(2026, 10, 19, 8, 0, 0, 0, time.UTC)

type fixture struct {
	store *memory.Store
	clock *timemath.FixedClock
	opts  []scheduling.Option
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	clock := timemath.NewFixedClock(now)
	return &fixture{
		store: memory.New(),
		clock: clock,
		opts:  []scheduling.Option{scheduling.WithClock(clock), scheduling.WithLocation(time.UTC)},
	}
}

func (f *fixture) engine() *scheduling.Engine {
	return scheduling.NewEngine(f.store, f.opts...)
}

func (f *fixture) generator() *scheduling.Generator {
	return scheduling.NewGenerator(f.store, f.opts...)
}

func (f *fixture) lister() *scheduling.Lister {
	return scheduling.NewLister(f.store, f.opts...)
}

func (f *fixture) interviewer(t *testing.T, email string, capacity int) scheduling.Interviewer {
	t.Helper()
	iv := scheduling.Interviewer{Name: "Interviewer", Email: email, MaxInterviewsPerWeek: capacity}
	err := f.store.InTx(context.Background(), scheduling.ReadCommitted, func(tx scheduling.Tx) error {
		return tx.InsertInterviewer(context.Background(), &iv)
	})
	require.NoError(t, err)
	return iv
}

func (f *fixture) slots(t *testing.T, interviewerID int64, starts ...time.Time) []scheduling.TimeSlot {
	t.Helper()
	in := make([]scheduling.TimeSlot, 0, len(starts))
	for _, s := range starts {
		in = append(in, scheduling.TimeSlot{InterviewerID: interviewerID, Start: s, Status: scheduling.SlotAvailable})
	}
	var out []scheduling.TimeSlot
	err := f.store.InTx(context.Background(), scheduling.ReadCommitted, func(tx scheduling.Tx) error {
		var err error
		out, err = tx.InsertSlots(context.Background(), in)
		return err
	})
	require.NoError(t, err)
	return out
}

func (f *fixture) slot(t *testing.T, id int64) scheduling.TimeSlot {
	t.Helper()
	var s scheduling.TimeSlot
	err := f.store.InTx(context.Background(), scheduling.ReadCommitted, func(tx scheduling.Tx) error {
		var err error
		s, err = tx.GetSlot(context.Background(), id)
		return err
	})
	require.NoError(t, err)
	return s
}

func (f *fixture) interviewerSlots(t *testing.T, interviewerID int64) []scheduling.TimeSlot {
	t.Helper()
	var out []scheduling.TimeSlot
	err := f.store.InTx(context.Background(), scheduling.ReadCommitted, func(tx scheduling.Tx) error {
		var err error
		out, err = tx.ListSlotsInRange(context.Background(), interviewerID, time.Time{}, now.AddDate(1, 0, 0))
		return err
	})
	require.NoError(t, err)
	return out
}

func (f *fixture) eventTypes() []string {
	var out []string
	for _, e := range f.store.Events() {
		out = append(out, e.EventType)
	}
	return out
}

func at(day, hour, minute int) time.Time {
	return time.Date(2026, 10, day, hour, minute, 0, 0, time.UTC)
}

// gatedStore holds its first n transactions until all of them have started, so
// they all read the same committed state before any of them commits.
type gatedStore struct {
	scheduling.Store
	gate    sync.WaitGroup
	pending atomic.Int32
}

func gated(s scheduling.Store, n int) *gatedStore {
	g := &gatedStore{Store: s}
	g.gate.Add(n)
	g.pending.Store(int32(n))
	return g
}

func (g *gatedStore) InTx(ctx context.Context, iso scheduling.Isolation, fn func(tx scheduling.Tx) error) error {
	return g.Store.InTx(ctx, iso, func(tx scheduling.Tx) error {
		if g.pending.Add(-1) >= 0 {
			g.gate.Done()
			g.gate.Wait()
		}
		return fn(tx)
	})
}

func concurrently(fns ...func() error) []error {
	errs := make([]error, len(fns))
	var wg sync.WaitGroup
	for i, fn := range fns {
		i, fn := i, fn
		wg.Add(1)
		go func() {
			defer wg.Done()
			errs[i] = fn()
		}()
	}
	wg.Wait()
	return errs
}

// requireOneWinner asserts exactly one call succeeded and the others failed
// with a retryable conflict. It returns the index of the winner.
func requireOneWinner(t *testing.T, errs []error) int {
	t.Helper()
	winner := -1
	for i, err := range errs {
		if err == nil {
			require.Equal(t, -1, winner, "more than one call succeeded")
			winner = i
			continue
		}
		require.True(t, errors.Is(err, scheduling.ErrConcurrentModification), "unexpected error: %v", err)
		require.True(t, scheduling.IsRetryable(err))
	}
	require.NotEqual(t, -1, winner, "no call succeeded")
	return winner
}
