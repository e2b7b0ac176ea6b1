package scheduling

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"go.uber.org/zap"

	"interview-scheduler/internal/timemath"
)

// DefaultHorizonWeeks is how far ahead slots are generated when nothing else is configured.
const DefaultHorizonWeeks = 2

type generateOptions struct {
	busy []timemath.Interval
}

type GenerateOption func(*generateOptions)

// ExcludeBusy drops every candidate slot that overlaps one of the intervals.
func ExcludeBusy(busy []timemath.Interval) GenerateOption {
	return func(o *generateOptions) {
		o.busy = append(o.busy, busy...)
	}
}

// Generator expands weekly availability rules into concrete AVAILABLE slots.
type Generator struct {
	store Store
	settings
}

func NewGenerator(store Store, opts ...Option) *Generator {
	s := newSettings(opts)
	s.log = s.log.Named("generator")
	return &Generator{store: store, settings: s}
}

// Generate persists the future slots described by rules for every day in
// [horizonStart, horizonStart + horizonWeeks weeks). Starts already stored for the
// interviewer in that window are skipped, so running it again adds nothing.
// All new slots of one run become visible together.
func (g *Generator) Generate(ctx context.Context, iv Interviewer, rules []AvailabilityRule, horizonStart time.Time, horizonWeeks int, opts ...GenerateOption) ([]TimeSlot, error) {
	if len(rules) == 0 {
		g.log.Info("no availability rules, nothing to generate", zap.Int64("interviewer_id", iv.ID))
		return nil, nil
	}

	var created []TimeSlot
	err := g.store.InTx(ctx, ReadCommitted, func(tx Tx) error {
		var err error
		created, err = g.generate(ctx, tx, iv, rules, horizonStart, horizonWeeks, true, opts...)
		return err
	})
	if err != nil {
		return nil, g.fail("generate slots", err)
	}
	return created, nil
}

// Regenerate runs a generation pass from the interviewer's stored rules, starting now.
func (g *Generator) Regenerate(ctx context.Context, interviewerID int64, horizonWeeks int, opts ...GenerateOption) ([]TimeSlot, error) {
	var created []TimeSlot
	err := g.store.InTx(ctx, ReadCommitted, func(tx Tx) error {
		iv, err := tx.GetInterviewer(ctx, interviewerID)
		if errors.Is(err, ErrNotFound) {
			return fmt.Errorf("%w: id %d", ErrInterviewerNotFound, interviewerID)
		}
		if err != nil {
			return fmt.Errorf("load interviewer: %w", err)
		}

		rules, err := tx.ListAvailabilityRules(ctx, iv.ID)
		if err != nil {
			return fmt.Errorf("load availability rules: %w", err)
		}
		created, err = g.generate(ctx, tx, iv, rules, g.clock.Now(), horizonWeeks, true, opts...)
		return err
	})
	if err != nil {
		return nil, g.fail("regenerate slots", err)
	}
	return created, nil
}

// generate runs one pass inside tx. With lock set it first bumps the interviewer's
// version, so two passes for the same interviewer cannot both commit inserts
// computed from the same view of existing slots. Callers that already wrote the
// interviewer row in tx pass false.
func (g *Generator) generate(ctx context.Context, tx Tx, iv Interviewer, rules []AvailabilityRule, horizonStart time.Time, horizonWeeks int, lock bool, opts ...GenerateOption) ([]TimeSlot, error) {
	if len(rules) == 0 {
		return nil, nil
	}
	if horizonWeeks <= 0 {
		horizonWeeks = DefaultHorizonWeeks
	}

	var o generateOptions
	for _, opt := range opts {
		opt(&o)
	}

	from := timemath.StartOfDay(horizonStart.In(g.loc))
	to := from.AddDate(0, 0, 7*horizonWeeks)

	candidates := g.expand(iv.ID, rules, from, 7*horizonWeeks, o.busy)
	if len(candidates) == 0 {
		return nil, nil
	}

	if lock {
		if err := lockInterviewer(ctx, tx, iv.ID); err != nil {
			return nil, err
		}
	}

	existing, err := tx.ListSlotsInRange(ctx, iv.ID, from, to)
	if err != nil {
		return nil, fmt.Errorf("list existing slots: %w", err)
	}
	taken := make(map[int64]struct{}, len(existing))
	for _, s := range existing {
		taken[s.Start.UnixNano()] = struct{}{}
	}

	fresh := candidates[:0]
	for _, c := range candidates {
		if _, ok := taken[c.Start.UnixNano()]; ok {
			continue
		}
		fresh = append(fresh, c)
	}
	if len(fresh) == 0 {
		g.log.Info("all candidate slots already exist", zap.Int64("interviewer_id", iv.ID))
		return nil, nil
	}

	created, err := tx.InsertSlots(ctx, fresh)
	if err != nil {
		return nil, fmt.Errorf("insert slots: %w", err)
	}

	evt, err := slotsGeneratedEvent(iv.ID, len(created), from, to, g.clock.Now())
	if err != nil {
		return nil, fmt.Errorf("build %s event: %w", EventSlotsGenerated, err)
	}
	if err := tx.AppendEvent(ctx, evt); err != nil {
		return nil, fmt.Errorf("append %s event: %w", EventSlotsGenerated, err)
	}

	g.log.Info("generated slots",
		zap.Int64("interviewer_id", iv.ID),
		zap.Int("count", len(created)),
		zap.Time("from", from),
		zap.Time("to", to),
	)
	return created, nil
}

func lockInterviewer(ctx context.Context, tx Tx, id int64) error {
	cur, err := tx.GetInterviewer(ctx, id)
	if errors.Is(err, ErrNotFound) {
		return fmt.Errorf("%w: id %d", ErrInterviewerNotFound, id)
	}
	if err != nil {
		return fmt.Errorf("load interviewer: %w", err)
	}
	if err := tx.UpdateInterviewer(ctx, &cur, cur.Version); err != nil {
		return fmt.Errorf("lock interviewer %d: %w", id, err)
	}
	return nil
}

func (g *Generator) fail(op string, err error) error {
	if errors.Is(err, ErrVersionConflict) {
		g.log.Warn("optimistic lock failure", zap.String("op", op), zap.Error(err))
		return fmt.Errorf("%s: %w", op, ErrConcurrentModification)
	}
	return fmt.Errorf("%s: %w", op, err)
}

// expand computes every future candidate slot in the window, sorted by start.
func (g *Generator) expand(interviewerID int64, rules []AvailabilityRule, from time.Time, days int, busy []timemath.Interval) []TimeSlot {
	now := g.clock.Now()
	seen := make(map[int64]struct{})

	var out []TimeSlot
	for _, day := range timemath.Days(from, days) {
		for _, r := range rules {
			if r.DayOfWeek != day.Weekday() {
				continue
			}
			if !r.Valid() {
				g.log.Warn("skipping invalid availability rule",
					zap.Int64("interviewer_id", interviewerID),
					zap.Stringer("day", r.DayOfWeek),
					zap.Stringer("start", r.StartTime),
					zap.Stringer("end", r.EndTime),
					zap.Int("slot_minutes", r.SlotDurationMinutes),
				)
				continue
			}

			step := r.SlotDuration()
			for _, start := range timemath.SlotStarts(day, r.StartTime, r.EndTime, step) {
				if !start.After(now) {
					continue
				}
				if timemath.OverlapsAny(timemath.Interval{Start: start, End: start.Add(step)}, busy) {
					continue
				}
				key := start.UnixNano()
				if _, dup := seen[key]; dup {
					continue
				}
				seen[key] = struct{}{}
				out = append(out, TimeSlot{InterviewerID: interviewerID, Start: start, Status: SlotAvailable})
			}
		}
	}

	sort.Slice(out, func(i, j int) bool { return out[i].Start.Before(out[j].Start) })
	return out
}
