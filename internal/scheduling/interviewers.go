package scheduling

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"
)

// Availability is an interviewer's full weekly schedule as submitted by them.
type Availability struct {
	Name                 string
	Email                string
	MaxInterviewsPerWeek int
	Rules                []AvailabilityRule
}

// Interviewers registers interviewers and their availability.
type Interviewers struct {
	store        Store
	gen          *Generator
	horizonWeeks int
	settings
}

func NewInterviewers(store Store, gen *Generator, horizonWeeks int, opts ...Option) *Interviewers {
	s := newSettings(opts)
	s.log = s.log.Named("interviewers")
	if horizonWeeks <= 0 {
		horizonWeeks = DefaultHorizonWeeks
	}
	return &Interviewers{store: store, gen: gen, horizonWeeks: horizonWeeks, settings: s}
}

// SubmitAvailability creates or updates the interviewer identified by email,
// replaces its rules and generates slots from today on. Either all of it is
// stored or none.
func (s *Interviewers) SubmitAvailability(ctx context.Context, req Availability, opts ...GenerateOption) (Interviewer, []TimeSlot, error) {
	s.log.Info("submitting availability", zap.Int("rules", len(req.Rules)))
	s.log.Debug("availability owner", zap.String("email", req.Email))

	var (
		iv      Interviewer
		created []TimeSlot
	)
	err := s.store.InTx(ctx, RepeatableRead, func(tx Tx) error {
		var err error
		iv, err = s.upsert(ctx, tx, req)
		if err != nil {
			return err
		}

		rules, err := tx.ReplaceAvailabilityRules(ctx, iv.ID, req.Rules)
		if err != nil {
			return fmt.Errorf("replace availability rules: %w", err)
		}

		created, err = s.gen.generate(ctx, tx, iv, rules, s.clock.Now(), s.horizonWeeks, false, opts...)
		return err
	})
	if errors.Is(err, ErrVersionConflict) {
		s.log.Warn("optimistic lock failure", zap.String("op", "submit availability"), zap.Error(err))
		return Interviewer{}, nil, fmt.Errorf("submit availability: %w", ErrConcurrentModification)
	}
	if err != nil {
		return Interviewer{}, nil, fmt.Errorf("submit availability: %w", err)
	}

	s.log.Info("availability saved", zap.Int64("interviewer_id", iv.ID), zap.Int("generated", len(created)))
	return iv, created, nil
}

func (s *Interviewers) upsert(ctx context.Context, tx Tx, req Availability) (Interviewer, error) {
	iv, err := tx.GetInterviewerByEmail(ctx, req.Email)
	switch {
	case errors.Is(err, ErrNotFound):
		now := s.clock.Now()
		iv = Interviewer{
			Name:                 req.Name,
			Email:                req.Email,
			MaxInterviewsPerWeek: req.MaxInterviewsPerWeek,
			CreatedAt:            now,
			UpdatedAt:            now,
		}
		if err := tx.InsertInterviewer(ctx, &iv); err != nil {
			return Interviewer{}, fmt.Errorf("insert interviewer: %w", err)
		}
		return iv, nil
	case err != nil:
		return Interviewer{}, fmt.Errorf("load interviewer: %w", err)
	}

	expected := iv.Version
	iv.Name = req.Name
	iv.MaxInterviewsPerWeek = req.MaxInterviewsPerWeek
	iv.UpdatedAt = s.clock.Now()
	if err := tx.UpdateInterviewer(ctx, &iv, expected); err != nil {
		return Interviewer{}, fmt.Errorf("update interviewer: %w", err)
	}
	return iv, nil
}

// Regenerate extends the interviewer's slots from the stored rules.
func (s *Interviewers) Regenerate(ctx context.Context, interviewerID int64, opts ...GenerateOption) ([]TimeSlot, error) {
	return s.gen.Regenerate(ctx, interviewerID, s.horizonWeeks, opts...)
}

func (s *Interviewers) GetByID(ctx context.Context, id int64) (Interviewer, error) {
	return s.get(ctx, func(tx Tx) (Interviewer, error) { return tx.GetInterviewer(ctx, id) })
}

func (s *Interviewers) GetByEmail(ctx context.Context, email string) (Interviewer, error) {
	return s.get(ctx, func(tx Tx) (Interviewer, error) { return tx.GetInterviewerByEmail(ctx, email) })
}

// Rules returns the stored availability rules of an interviewer.
func (s *Interviewers) Rules(ctx context.Context, interviewerID int64) ([]AvailabilityRule, error) {
	var rules []AvailabilityRule
	err := s.store.InTx(ctx, ReadCommitted, func(tx Tx) error {
		if _, err := tx.GetInterviewer(ctx, interviewerID); err != nil {
			if errors.Is(err, ErrNotFound) {
				return fmt.Errorf("%w: id %d", ErrInterviewerNotFound, interviewerID)
			}
			return err
		}
		var err error
		rules, err = tx.ListAvailabilityRules(ctx, interviewerID)
		return err
	})
	return rules, err
}

func (s *Interviewers) get(ctx context.Context, load func(Tx) (Interviewer, error)) (Interviewer, error) {
	var iv Interviewer
	err := s.store.InTx(ctx, ReadCommitted, func(tx Tx) error {
		var err error
		iv, err = load(tx)
		if errors.Is(err, ErrNotFound) {
			return ErrInterviewerNotFound
		}
		return err
	})
	if err != nil {
		return Interviewer{}, err
	}
	return iv, nil
}
