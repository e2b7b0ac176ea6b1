package postgres

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"interview-scheduler/internal/cursor"
	"interview-scheduler/internal/scheduling"
	"interview-scheduler/internal/telemetry"
	"interview-scheduler/internal/timemath"
)

type pgTx struct {
	tx pgx.Tx
}

var _ scheduling.Tx = (*pgTx)(nil)

const interviewerColumns = `id, name, email, max_interviews_per_week, version, created_at, updated_at`

func scanInterviewer(row pgx.Row) (scheduling.Interviewer, error) {
	var iv scheduling.Interviewer
	err := row.Scan(&iv.ID, &iv.Name, &iv.Email, &iv.MaxInterviewsPerWeek, &iv.Version, &iv.CreatedAt, &iv.UpdatedAt)
	return iv, mapErr(err)
}

func (t *pgTx) GetInterviewer(ctx context.Context, id int64) (scheduling.Interviewer, error) {
	return scanInterviewer(t.tx.QueryRow(ctx,
		`SELECT `+interviewerColumns+` FROM interviewers WHERE id=$1`, id))
}

func (t *pgTx) GetInterviewerByEmail(ctx context.Context, email string) (scheduling.Interviewer, error) {
	return scanInterviewer(t.tx.QueryRow(ctx,
		`SELECT `+interviewerColumns+` FROM interviewers WHERE email=$1`, email))
}

func (t *pgTx) InsertInterviewer(ctx context.Context, iv *scheduling.Interviewer) error {
	q := `INSERT INTO interviewers (name, email, max_interviews_per_week, version, created_at, updated_at)
	      VALUES ($1,$2,$3,1,$4,$5) RETURNING id, version`
	err := t.tx.QueryRow(ctx, q, iv.Name, iv.Email, iv.MaxInterviewsPerWeek, iv.CreatedAt, iv.UpdatedAt).
		Scan(&iv.ID, &iv.Version)
	return mapErr(err)
}

func (t *pgTx) UpdateInterviewer(ctx context.Context, iv *scheduling.Interviewer, expectedVersion int64) error {
	q := `UPDATE interviewers
	      SET name=$2, max_interviews_per_week=$3, updated_at=$4, version=version+1
	      WHERE id=$1 AND version=$5
	      RETURNING ` + interviewerColumns
	updated, err := scanInterviewer(t.tx.QueryRow(ctx, q, iv.ID, iv.Name, iv.MaxInterviewsPerWeek, iv.UpdatedAt, expectedVersion))
	if errors.Is(err, scheduling.ErrNotFound) {
		return scheduling.ErrVersionConflict
	}
	if err != nil {
		return err
	}
	*iv = updated
	return nil
}

func (t *pgTx) ListAvailabilityRules(ctx context.Context, interviewerID int64) ([]scheduling.AvailabilityRule, error) {
	q := `SELECT id, interviewer_id, day_of_week, start_minute, end_minute, slot_duration_minutes
	      FROM availability_rules WHERE interviewer_id=$1 ORDER BY id`
	rows, err := t.tx.Query(ctx, q, interviewerID)
	if err != nil {
		return nil, mapErr(err)
	}
	defer rows.Close()

	var out []scheduling.AvailabilityRule
	for rows.Next() {
		var (
			r          scheduling.AvailabilityRule
			day        int16
			start, end int
		)
		if err := rows.Scan(&r.ID, &r.InterviewerID, &day, &start, &end, &r.SlotDurationMinutes); err != nil {
			return nil, err
		}
		r.DayOfWeek = time.Weekday(day)
		r.StartTime = timemath.ClockTime(start)
		r.EndTime = timemath.ClockTime(end)
		out = append(out, r)
	}
	return out, mapErr(rows.Err())
}

func (t *pgTx) ReplaceAvailabilityRules(ctx context.Context, interviewerID int64, rules []scheduling.AvailabilityRule) ([]scheduling.AvailabilityRule, error) {
	if _, err := t.tx.Exec(ctx, `DELETE FROM availability_rules WHERE interviewer_id=$1`, interviewerID); err != nil {
		return nil, mapErr(err)
	}

	q := `INSERT INTO availability_rules (interviewer_id, day_of_week, start_minute, end_minute, slot_duration_minutes)
	      VALUES ($1,$2,$3,$4,$5) RETURNING id`
	out := make([]scheduling.AvailabilityRule, 0, len(rules))
	for _, r := range rules {
		r.InterviewerID = interviewerID
		err := t.tx.QueryRow(ctx, q, interviewerID, int16(r.DayOfWeek), int(r.StartTime), int(r.EndTime), r.SlotDurationMinutes).
			Scan(&r.ID)
		if err != nil {
			return nil, fmt.Errorf("insert rule for %s: %w", r.DayOfWeek, mapErr(err))
		}
		out = append(out, r)
	}
	return out, nil
}

const slotColumns = `id, interviewer_id, slot_start, status, version`

func scanSlots(rows pgx.Rows) ([]scheduling.TimeSlot, error) {
	defer rows.Close()

	var out []scheduling.TimeSlot
	for rows.Next() {
		var s scheduling.TimeSlot
		if err := rows.Scan(&s.ID, &s.InterviewerID, &s.Start, &s.Status, &s.Version); err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, mapErr(rows.Err())
}

func (t *pgTx) GetSlot(ctx context.Context, id int64) (scheduling.TimeSlot, error) {
	var s scheduling.TimeSlot
	err := t.tx.QueryRow(ctx, `SELECT `+slotColumns+` FROM time_slots WHERE id=$1`, id).
		Scan(&s.ID, &s.InterviewerID, &s.Start, &s.Status, &s.Version)
	return s, mapErr(err)
}

func (t *pgTx) ListSlotsInRange(ctx context.Context, interviewerID int64, from, to time.Time) ([]scheduling.TimeSlot, error) {
	q := `SELECT ` + slotColumns + ` FROM time_slots
	      WHERE interviewer_id=$1 AND slot_start >= $2 AND slot_start < $3
	      ORDER BY slot_start, id`
	rows, err := t.tx.Query(ctx, q, interviewerID, from, to)
	if err != nil {
		return nil, mapErr(err)
	}
	return scanSlots(rows)
}

func (t *pgTx) InsertSlots(ctx context.Context, slots []scheduling.TimeSlot) ([]scheduling.TimeSlot, error) {
	if len(slots) == 0 {
		return nil, nil
	}

	interviewers := make([]int64, 0, len(slots))
	starts := make([]time.Time, 0, len(slots))
	statuses := make([]string, 0, len(slots))
	for _, s := range slots {
		status := s.Status
		if status == "" {
			status = scheduling.SlotAvailable
		}
		interviewers = append(interviewers, s.InterviewerID)
		starts = append(starts, s.Start)
		statuses = append(statuses, string(status))
	}

	q := `INSERT INTO time_slots (interviewer_id, slot_start, status, version)
	      SELECT i, s, st, 1 FROM unnest($1::bigint[], $2::timestamptz[], $3::text[]) AS u(i, s, st)
	      RETURNING ` + slotColumns
	rows, err := t.tx.Query(ctx, q, interviewers, starts, statuses)
	if err != nil {
		return nil, mapErr(err)
	}
	out, err := scanSlots(rows)
	if err != nil {
		return nil, err
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].Start.Equal(out[j].Start) {
			return out[i].Start.Before(out[j].Start)
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

func (t *pgTx) UpdateSlotStatus(ctx context.Context, id, expectedVersion int64, status scheduling.SlotStatus) (int64, error) {
	var version int64
	err := t.tx.QueryRow(ctx,
		`UPDATE time_slots SET status=$2, version=version+1 WHERE id=$1 AND version=$3 RETURNING version`,
		id, string(status), expectedVersion).Scan(&version)
	if errors.Is(err, pgx.ErrNoRows) {
		return 0, scheduling.ErrVersionConflict
	}
	return version, mapErr(err)
}

func (t *pgTx) CountBookedSlots(ctx context.Context, interviewerID int64, from, to time.Time) (int, error) {
	var n int
	err := t.tx.QueryRow(ctx,
		`SELECT count(*) FROM time_slots
		 WHERE interviewer_id=$1 AND status='BOOKED' AND slot_start >= $2 AND slot_start < $3`,
		interviewerID, from, to).Scan(&n)
	return n, mapErr(err)
}

func (t *pgTx) ListAvailableSlots(ctx context.Context, after *cursor.Position, limit int) ([]scheduling.TimeSlot, error) {
	var (
		rows pgx.Rows
		err  error
	)
	if after == nil {
		q := `SELECT ` + slotColumns + ` FROM time_slots
		      WHERE status='AVAILABLE'
		      ORDER BY slot_start, id LIMIT $1`
		rows, err = t.tx.Query(ctx, q, limit)
	} else {
		q := `SELECT ` + slotColumns + ` FROM time_slots
		      WHERE status='AVAILABLE' AND (slot_start, id) > ($1, $2)
		      ORDER BY slot_start, id LIMIT $3`
		rows, err = t.tx.Query(ctx, q, after.Start, after.ID, limit)
	}
	if err != nil {
		return nil, mapErr(err)
	}
	return scanSlots(rows)
}

func (t *pgTx) WeekLoadVersion(ctx context.Context, interviewerID int64, weekStart time.Time) (int64, error) {
	var version int64
	err := t.tx.QueryRow(ctx,
		`SELECT version FROM interviewer_week_load WHERE interviewer_id=$1 AND week_start=$2`,
		interviewerID, weekStart).Scan(&version)
	if errors.Is(err, pgx.ErrNoRows) {
		return 0, nil
	}
	return version, mapErr(err)
}

func (t *pgTx) BumpWeekLoad(ctx context.Context, interviewerID int64, weekStart time.Time, expectedVersion int64) error {
	var (
		tag pgconn.CommandTag
		err error
	)
	if expectedVersion == 0 {
		tag, err = t.tx.Exec(ctx,
			`INSERT INTO interviewer_week_load (interviewer_id, week_start, version) VALUES ($1,$2,1)
			 ON CONFLICT (interviewer_id, week_start) DO NOTHING`,
			interviewerID, weekStart)
	} else {
		tag, err = t.tx.Exec(ctx,
			`UPDATE interviewer_week_load SET version=version+1
			 WHERE interviewer_id=$1 AND week_start=$2 AND version=$3`,
			interviewerID, weekStart, expectedVersion)
	}
	if err != nil {
		return mapErr(err)
	}
	if tag.RowsAffected() == 0 {
		return scheduling.ErrVersionConflict
	}
	return nil
}

func (t *pgTx) CandidateLoadVersion(ctx context.Context, email string) (int64, error) {
	var version int64
	err := t.tx.QueryRow(ctx,
		`SELECT version FROM candidate_load WHERE email=$1`, email).Scan(&version)
	if errors.Is(err, pgx.ErrNoRows) {
		return 0, nil
	}
	return version, mapErr(err)
}

func (t *pgTx) BumpCandidateLoad(ctx context.Context, email string, expectedVersion int64) error {
	var (
		tag pgconn.CommandTag
		err error
	)
	if expectedVersion == 0 {
		tag, err = t.tx.Exec(ctx,
			`INSERT INTO candidate_load (email, version) VALUES ($1,1) ON CONFLICT (email) DO NOTHING`,
			email)
	} else {
		tag, err = t.tx.Exec(ctx,
			`UPDATE candidate_load SET version=version+1 WHERE email=$1 AND version=$2`,
			email, expectedVersion)
	}
	if err != nil {
		return mapErr(err)
	}
	if tag.RowsAffected() == 0 {
		return scheduling.ErrVersionConflict
	}
	return nil
}

const bookingQuery = `SELECT b.id, b.time_slot_id, b.candidate_name, b.candidate_email, b.created_at, b.updated_at,
       s.slot_start, s.interviewer_id
FROM bookings b JOIN time_slots s ON s.id = b.time_slot_id`

func scanBooking(row pgx.Row, b *scheduling.Booking) error {
	return row.Scan(&b.ID, &b.SlotID, &b.CandidateName, &b.CandidateEmail, &b.CreatedAt, &b.UpdatedAt,
		&b.SlotStart, &b.InterviewerID)
}

func (t *pgTx) GetBooking(ctx context.Context, id int64) (scheduling.Booking, error) {
	var b scheduling.Booking
	err := scanBooking(t.tx.QueryRow(ctx, bookingQuery+` WHERE b.id=$1`, id), &b)
	return b, mapErr(err)
}

func (t *pgTx) FindBookingsByEmail(ctx context.Context, email string) ([]scheduling.Booking, error) {
	rows, err := t.tx.Query(ctx, bookingQuery+` WHERE b.candidate_email=$1 ORDER BY b.id`, email)
	if err != nil {
		return nil, mapErr(err)
	}
	defer rows.Close()

	var out []scheduling.Booking
	for rows.Next() {
		var b scheduling.Booking
		if err := scanBooking(rows, &b); err != nil {
			return nil, err
		}
		out = append(out, b)
	}
	return out, mapErr(rows.Err())
}

func (t *pgTx) InsertBooking(ctx context.Context, b *scheduling.Booking) error {
	q := `INSERT INTO bookings (time_slot_id, candidate_name, candidate_email, created_at, updated_at)
	      VALUES ($1,$2,$3,$4,$5) RETURNING id`
	err := t.tx.QueryRow(ctx, q, b.SlotID, b.CandidateName, b.CandidateEmail, b.CreatedAt, b.UpdatedAt).Scan(&b.ID)
	return mapErr(err)
}

func (t *pgTx) UpdateBooking(ctx context.Context, b scheduling.Booking) error {
	tag, err := t.tx.Exec(ctx,
		`UPDATE bookings SET time_slot_id=$2, candidate_name=$3, updated_at=$4 WHERE id=$1`,
		b.ID, b.SlotID, b.CandidateName, b.UpdatedAt)
	if err != nil {
		return mapErr(err)
	}
	if tag.RowsAffected() == 0 {
		return scheduling.ErrNotFound
	}
	return nil
}

func (t *pgTx) AppendEvent(ctx context.Context, evt scheduling.Event) error {
	traceparent, tracestate := telemetry.TraceContextStrings(ctx)
	_, err := t.tx.Exec(ctx, `
		INSERT INTO outbox_events (event_id, aggregate_type, aggregate_id, event_type, payload, traceparent, tracestate, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`, uuid.NewString(), evt.AggregateType, evt.AggregateID, evt.Type, evt.Payload, traceparent, tracestate, evt.OccurredAt)
	return mapErr(err)
}
