package scheduling

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"interview-scheduler/internal/timemath"
)

type ClaimRequest struct {
	SlotID         int64
	CandidateName  string
	CandidateEmail string
}

type TransferRequest struct {
	BookingID      int64
	NewSlotID      int64
	CandidateName  string
	CandidateEmail string
}

// Engine claims, releases and transfers slots. Every write is guarded by the
// version read earlier in the same transaction; a mismatch surfaces as
// ErrConcurrentModification and nothing from the call is applied. The engine
// never retries on its own.
type Engine struct {
	store Store
	settings
}

func NewEngine(store Store, opts ...Option) *Engine {
	s := newSettings(opts)
	s.log = s.log.Named("booking")
	return &Engine{store: store, settings: s}
}

// Claim books an AVAILABLE slot for a candidate who holds no other active booking.
func (e *Engine) Claim(ctx context.Context, req ClaimRequest) (Booking, error) {
	e.log.Info("booking slot", zap.Int64("slot_id", req.SlotID))
	e.log.Debug("booking candidate", zap.String("email", req.CandidateEmail))

	var booked Booking
	err := e.store.InTx(ctx, RepeatableRead, func(tx Tx) error {
		if err := e.checkNoActiveBooking(ctx, tx, req.CandidateEmail); err != nil {
			return err
		}

		slot, err := e.availableSlot(ctx, tx, req.SlotID)
		if err != nil {
			return err
		}
		if err := e.reserve(ctx, tx, slot); err != nil {
			return err
		}

		now := e.clock.Now()
		booked = Booking{
			SlotID:         slot.ID,
			CandidateName:  req.CandidateName,
			CandidateEmail: req.CandidateEmail,
			CreatedAt:      now,
			UpdatedAt:      now,
			SlotStart:      slot.Start,
			InterviewerID:  slot.InterviewerID,
		}
		if err := tx.InsertBooking(ctx, &booked); err != nil {
			return fmt.Errorf("insert booking: %w", err)
		}
		return e.emit(ctx, tx, EventBookingCreated, booked, 0, now)
	})
	if err != nil {
		return Booking{}, e.fail("claim slot", err)
	}

	e.log.Info("slot booked", zap.Int64("booking_id", booked.ID), zap.Int64("slot_id", booked.SlotID))
	return booked, nil
}

// Transfer moves a booking to another slot. The old slot is released and the new
// one claimed in the same transaction, so a failed transfer leaves the original
// booking and both slots untouched.
func (e *Engine) Transfer(ctx context.Context, req TransferRequest) (Booking, error) {
	e.log.Info("transferring booking", zap.Int64("booking_id", req.BookingID), zap.Int64("new_slot_id", req.NewSlotID))

	var moved Booking
	err := e.store.InTx(ctx, RepeatableRead, func(tx Tx) error {
		b, err := tx.GetBooking(ctx, req.BookingID)
		if errors.Is(err, ErrNotFound) {
			return fmt.Errorf("%w: id %d", ErrBookingNotFound, req.BookingID)
		}
		if err != nil {
			return fmt.Errorf("load booking: %w", err)
		}
		if b.CandidateEmail != req.CandidateEmail {
			return ErrCandidateMismatch
		}

		if err := e.release(ctx, tx, b.SlotID); err != nil {
			return err
		}

		slot, err := e.availableSlot(ctx, tx, req.NewSlotID)
		if err != nil {
			return err
		}
		if err := e.reserve(ctx, tx, slot); err != nil {
			return err
		}

		now := e.clock.Now()
		previous := b.SlotID
		b.SlotID = slot.ID
		b.CandidateName = req.CandidateName
		b.UpdatedAt = now
		b.SlotStart = slot.Start
		b.InterviewerID = slot.InterviewerID
		if err := tx.UpdateBooking(ctx, b); err != nil {
			return fmt.Errorf("update booking: %w", err)
		}
		moved = b
		return e.emit(ctx, tx, EventBookingTransferred, b, previous, now)
	})
	if err != nil {
		return Booking{}, e.fail("transfer booking", err)
	}

	e.log.Info("booking transferred", zap.Int64("booking_id", moved.ID), zap.Int64("slot_id", moved.SlotID))
	return moved, nil
}

func (e *Engine) GetBooking(ctx context.Context, id int64) (Booking, error) {
	var b Booking
	err := e.store.InTx(ctx, ReadCommitted, func(tx Tx) error {
		var err error
		b, err = tx.GetBooking(ctx, id)
		if errors.Is(err, ErrNotFound) {
			return fmt.Errorf("%w: id %d", ErrBookingNotFound, id)
		}
		if err != nil {
			return fmt.Errorf("load booking: %w", err)
		}

		slot, err := tx.GetSlot(ctx, b.SlotID)
		if err != nil {
			return fmt.Errorf("load slot %d: %w", b.SlotID, err)
		}
		b.SlotStart = slot.Start
		b.InterviewerID = slot.InterviewerID
		return nil
	})
	if err != nil {
		return Booking{}, err
	}
	return b, nil
}

// checkNoActiveBooking rejects a candidate that still holds a BOOKED slot and
// bumps the candidate's load record, so two claims for the same email conflict
// even when they target slots of different interviewers.
func (e *Engine) checkNoActiveBooking(ctx context.Context, tx Tx, email string) error {
	loadVersion, err := tx.CandidateLoadVersion(ctx, email)
	if err != nil {
		return fmt.Errorf("load candidate version: %w", err)
	}

	existing, err := tx.FindBookingsByEmail(ctx, email)
	if err != nil {
		return fmt.Errorf("find candidate bookings: %w", err)
	}

	for _, b := range existing {
		slot, err := tx.GetSlot(ctx, b.SlotID)
		if errors.Is(err, ErrNotFound) {
			continue
		}
		if err != nil {
			return fmt.Errorf("load slot %d: %w", b.SlotID, err)
		}
		if slot.Status == SlotBooked {
			return fmt.Errorf("%w: booking %d", ErrDuplicateActiveBooking, b.ID)
		}
	}

	if err := tx.BumpCandidateLoad(ctx, email, loadVersion); err != nil {
		return fmt.Errorf("bump candidate load: %w", err)
	}
	return nil
}

func (e *Engine) availableSlot(ctx context.Context, tx Tx, id int64) (TimeSlot, error) {
	slot, err := tx.GetSlot(ctx, id)
	if errors.Is(err, ErrNotFound) {
		return TimeSlot{}, fmt.Errorf("%w: id %d", ErrSlotNotFound, id)
	}
	if err != nil {
		return TimeSlot{}, fmt.Errorf("load slot %d: %w", id, err)
	}
	if slot.Status != SlotAvailable {
		return TimeSlot{}, fmt.Errorf("%w: id %d is %s", ErrSlotUnavailable, id, slot.Status)
	}
	return slot, nil
}

// reserve enforces the weekly limit of the slot's interviewer and flips the slot
// to BOOKED. The week-load bump makes two claims racing for the last free place
// in the same week conflict instead of both passing the count.
func (e *Engine) reserve(ctx context.Context, tx Tx, slot TimeSlot) error {
	iv, err := tx.GetInterviewer(ctx, slot.InterviewerID)
	if err != nil {
		return fmt.Errorf("load interviewer %d: %w", slot.InterviewerID, err)
	}

	weekStart, weekEnd := timemath.WeekBounds(slot.Start.In(e.loc))
	loadVersion, err := tx.WeekLoadVersion(ctx, iv.ID, weekStart)
	if err != nil {
		return fmt.Errorf("load week version: %w", err)
	}
	booked, err := tx.CountBookedSlots(ctx, iv.ID, weekStart, weekEnd)
	if err != nil {
		return fmt.Errorf("count booked slots: %w", err)
	}
	if booked >= iv.MaxInterviewsPerWeek {
		return fmt.Errorf("%w (%d)", ErrCapacityExceeded, iv.MaxInterviewsPerWeek)
	}

	if _, err := tx.UpdateSlotStatus(ctx, slot.ID, slot.Version, SlotBooked); err != nil {
		return fmt.Errorf("book slot %d: %w", slot.ID, err)
	}
	if err := tx.BumpWeekLoad(ctx, iv.ID, weekStart, loadVersion); err != nil {
		return fmt.Errorf("bump week load: %w", err)
	}
	return nil
}

func (e *Engine) release(ctx context.Context, tx Tx, slotID int64) error {
	slot, err := tx.GetSlot(ctx, slotID)
	if errors.Is(err, ErrNotFound) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("load slot %d: %w", slotID, err)
	}
	if slot.Status != SlotBooked {
		return nil
	}
	if _, err := tx.UpdateSlotStatus(ctx, slot.ID, slot.Version, SlotAvailable); err != nil {
		return fmt.Errorf("release slot %d: %w", slot.ID, err)
	}
	return nil
}

func (e *Engine) emit(ctx context.Context, tx Tx, eventType string, b Booking, previousSlotID int64, at time.Time) error {
	evt, err := bookingEvent(eventType, b, previousSlotID, at)
	if err != nil {
		return fmt.Errorf("build %s event: %w", eventType, err)
	}
	if err := tx.AppendEvent(ctx, evt); err != nil {
		return fmt.Errorf("append %s event: %w", eventType, err)
	}
	return nil
}

func (e *Engine) fail(op string, err error) error {
	if errors.Is(err, ErrVersionConflict) {
		e.log.Warn("optimistic lock failure", zap.String("op", op), zap.Error(err))
		return fmt.Errorf("%s: %w", op, ErrConcurrentModification)
	}
	return fmt.Errorf("%s: %w", op, err)
}
