package db

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/codr1/Shuttlers/internal/models"
)

const bookingColumns = `b.id, b.venue_id, v.name, b.court_number, b.booking_date, b.start_time, b.end_time,
	b.duration, b.hourly_rate, b.total_cost, b.cost_per_participant, b.status, b.payment_status,
	b.notes, b.created_by, b.cancelled_by, b.cancelled_at, b.cancellation_reason, b.created_at, b.updated_at`

const bookingFrom = ` FROM bookings b JOIN venues v ON v.id = b.venue_id`

func scanBooking(row scanner) (models.Booking, error) {
	var (
		b           models.Booking
		date        string
		cancelledBy sql.NullInt64
		cancelledAt sql.NullTime
		reason      sql.NullString
	)
	err := row.Scan(
		&b.ID, &b.VenueID, &b.VenueName, &b.CourtNumber, &date, &b.StartTime, &b.EndTime,
		&b.Duration, &b.HourlyRate, &b.TotalCost, &b.CostPerParticipant, &b.Status, &b.PaymentStatus,
		&b.Notes, &b.CreatedBy, &cancelledBy, &cancelledAt, &reason, &b.CreatedAt, &b.UpdatedAt,
	)
	if err != nil {
		return models.Booking{}, err
	}
	if b.Date, err = models.ParseDate(date); err != nil {
		return models.Booking{}, err
	}
	if cancelledBy.Valid {
		b.Cancellation = &models.Cancellation{
			CancelledBy: cancelledBy.Int64,
			CancelledAt: cancelledAt.Time,
			Reason:      reason.String,
		}
	}
	return b, nil
}

// InsertBooking stores a booking and its roster. Run it inside a transaction.
// An overlapping live booking on the same court fails with models.ErrConflict.
func (q *Queries) InsertBooking(ctx context.Context, b models.Booking) (int64, error) {
	res, err := q.db.ExecContext(ctx, `
		INSERT INTO bookings (venue_id, court_number, booking_date, start_time, end_time, duration,
			hourly_rate, total_cost, cost_per_participant, status, payment_status, notes,
			created_by, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		b.VenueID, b.CourtNumber, models.DateKey(b.Date), b.StartTime, b.EndTime, b.Duration,
		b.HourlyRate, b.TotalCost, b.CostPerParticipant, b.Status, b.PaymentStatus, b.Notes,
		b.CreatedBy, b.CreatedAt.UTC(), b.UpdatedAt.UTC(),
	)
	if err != nil {
		return 0, MapConstraintError(err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, err
	}
	if err := q.ReplaceBookingParticipants(ctx, id, b.Participants); err != nil {
		return 0, err
	}
	return id, nil
}

// UpdateBookingDetails rewrites slot, roster-derived cost and note columns.
func (q *Queries) UpdateBookingDetails(ctx context.Context, b models.Booking) (int64, error) {
	return rowsAffected(q.db.ExecContext(ctx, `
		UPDATE bookings SET venue_id = ?, court_number = ?, booking_date = ?, start_time = ?, end_time = ?,
			duration = ?, hourly_rate = ?, total_cost = ?, cost_per_participant = ?, notes = ?, updated_at = ?
		WHERE id = ? AND status IN ('pending', 'confirmed')`,
		b.VenueID, b.CourtNumber, models.DateKey(b.Date), b.StartTime, b.EndTime,
		b.Duration, b.HourlyRate, b.TotalCost, b.CostPerParticipant, b.Notes, b.UpdatedAt.UTC(),
		b.ID,
	))
}

func (q *Queries) ReplaceBookingParticipants(ctx context.Context, bookingID int64, participants []int64) error {
	if _, err := q.db.ExecContext(ctx, `DELETE FROM booking_participants WHERE booking_id = ?`, bookingID); err != nil {
		return fmt.Errorf("clear booking participants: %w", err)
	}
	for i, pid := range participants {
		if _, err := q.db.ExecContext(ctx,
			`INSERT INTO booking_participants (booking_id, participant_id, position) VALUES (?, ?, ?)`,
			bookingID, pid, i,
		); err != nil {
			return fmt.Errorf("insert booking participant %d: %w", pid, MapConstraintError(err))
		}
	}
	return nil
}

func (q *Queries) GetBooking(ctx context.Context, id int64) (models.Booking, error) {
	b, err := scanBooking(q.db.QueryRowContext(ctx, `SELECT `+bookingColumns+bookingFrom+` WHERE b.id = ?`, id))
	if err != nil {
		return models.Booking{}, err
	}
	rosters, err := q.bookingRosters(ctx, []int64{id})
	if err != nil {
		return models.Booking{}, err
	}
	b.Participants = rosters[id]
	return b, nil
}

// SlotBooking is the slice of a booking the conflict check needs.
type SlotBooking struct {
	ID        int64
	StartTime models.TimeOfDay
	EndTime   models.TimeOfDay
	Status    models.BookingStatus
}

// ListSlotBookings returns live bookings on one court for one calendar day,
// skipping excludeID when it is non-zero.
func (q *Queries) ListSlotBookings(ctx context.Context, venueID int64, date time.Time, court int, excludeID int64) ([]SlotBooking, error) {
	rows, err := q.db.QueryContext(ctx, `
		SELECT id, start_time, end_time, status FROM bookings
		WHERE venue_id = ? AND booking_date = ? AND court_number = ? AND status <> 'cancelled' AND id <> ?
		ORDER BY start_time`,
		venueID, models.DateKey(date), court, excludeID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []SlotBooking
	for rows.Next() {
		var s SlotBooking
		if err := rows.Scan(&s.ID, &s.StartTime, &s.EndTime, &s.Status); err != nil {
			return nil, fmt.Errorf("scan slot booking: %w", err)
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

type BookingFilter struct {
	ParticipantID int64
	VenueID       int64
	Status        models.BookingStatus
	Dates         DateRange
}

func (f BookingFilter) where() *whereBuilder {
	w := &whereBuilder{}
	if f.ParticipantID != 0 {
		w.add(`EXISTS (SELECT 1 FROM booking_participants bp WHERE bp.booking_id = b.id AND bp.participant_id = ?)`, f.ParticipantID)
	}
	if f.VenueID != 0 {
		w.add(`b.venue_id = ?`, f.VenueID)
	}
	if f.Status != "" {
		w.add(`b.status = ?`, f.Status)
	}
	if !f.Dates.From.IsZero() {
		w.add(`b.booking_date >= ?`, models.DateKey(f.Dates.From))
	}
	if !f.Dates.To.IsZero() {
		w.add(`b.booking_date <= ?`, models.DateKey(f.Dates.To))
	}
	return w
}

// ListBookings returns a page of bookings, latest date first, and the total count.
func (q *Queries) ListBookings(ctx context.Context, f BookingFilter, page Page) ([]models.Booking, int, error) {
	w := f.where()
	var total int
	if err := q.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM bookings b`+w.sql(), w.args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	args := append(append([]any{}, w.args...), page.Limit, page.Offset)
	rows, err := q.db.QueryContext(ctx,
		`SELECT `+bookingColumns+bookingFrom+w.sql()+` ORDER BY b.booking_date DESC, b.start_time DESC, b.id DESC LIMIT ? OFFSET ?`,
		args...,
	)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var (
		bookings []models.Booking
		ids      []int64
	)
	for rows.Next() {
		b, err := scanBooking(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("scan booking: %w", err)
		}
		bookings = append(bookings, b)
		ids = append(ids, b.ID)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, err
	}
	rows.Close()

	rosters, err := q.bookingRosters(ctx, ids)
	if err != nil {
		return nil, 0, err
	}
	for i := range bookings {
		bookings[i].Participants = rosters[bookings[i].ID]
	}
	return bookings, total, nil
}

func (q *Queries) bookingRosters(ctx context.Context, bookingIDs []int64) (map[int64][]int64, error) {
	out := make(map[int64][]int64, len(bookingIDs))
	if len(bookingIDs) == 0 {
		return out, nil
	}
	args := make([]any, len(bookingIDs))
	for i, id := range bookingIDs {
		args[i] = id
	}
	rows, err := q.db.QueryContext(ctx, `
		SELECT booking_id, participant_id FROM booking_participants
		WHERE booking_id IN (`+placeholders(len(bookingIDs))+`)
		ORDER BY booking_id, position`, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	for rows.Next() {
		var bookingID, participantID int64
		if err := rows.Scan(&bookingID, &participantID); err != nil {
			return nil, fmt.Errorf("scan booking participant: %w", err)
		}
		out[bookingID] = append(out[bookingID], participantID)
	}
	return out, rows.Err()
}

func (q *Queries) BookingStats(ctx context.Context, f BookingFilter) (models.BookingStats, error) {
	w := f.where()
	var (
		stats     models.BookingStats
		totalCost sql.NullFloat64
	)
	err := q.db.QueryRowContext(ctx, `
		SELECT COUNT(*), SUM(b.total_cost),
			COALESCE(SUM(CASE WHEN b.status = 'pending' THEN 1 ELSE 0 END), 0),
			COALESCE(SUM(CASE WHEN b.status = 'confirmed' THEN 1 ELSE 0 END), 0),
			COALESCE(SUM(CASE WHEN b.status = 'cancelled' THEN 1 ELSE 0 END), 0),
			COALESCE(SUM(CASE WHEN b.status = 'completed' THEN 1 ELSE 0 END), 0)
		FROM bookings b`+w.sql(), w.args...,
	).Scan(&stats.TotalBookings, &totalCost, &stats.Pending, &stats.Confirmed, &stats.Cancelled, &stats.Completed)
	if err != nil {
		return models.BookingStats{}, err
	}
	stats.TotalCost = totalCost.Float64
	if stats.TotalBookings > 0 {
		stats.AvgCostPerBooking = stats.TotalCost / float64(stats.TotalBookings)
	}
	return stats, nil
}

// TransitionBooking moves a booking to status when it is currently in one of
// from. It reports the number of rows changed.
func (q *Queries) TransitionBooking(ctx context.Context, id int64, from []models.BookingStatus, to models.BookingStatus, now time.Time) (int64, error) {
	args := []any{to, now.UTC(), id}
	for _, s := range from {
		args = append(args, s)
	}
	return rowsAffected(q.db.ExecContext(ctx,
		`UPDATE bookings SET status = ?, updated_at = ? WHERE id = ? AND status IN (`+placeholders(len(from))+`)`,
		args...,
	))
}

func (q *Queries) CancelBooking(ctx context.Context, id, actorID int64, reason string, now time.Time) (int64, error) {
	now = now.UTC()
	return rowsAffected(q.db.ExecContext(ctx, `
		UPDATE bookings SET status = 'cancelled', cancelled_by = ?, cancelled_at = ?, cancellation_reason = ?, updated_at = ?
		WHERE id = ? AND status IN ('pending', 'confirmed')`,
		actorID, now, reason, now, id,
	))
}

func (q *Queries) SetBookingPaymentStatus(ctx context.Context, id int64, status models.PaymentStatus, now time.Time) error {
	_, err := q.db.ExecContext(ctx,
		`UPDATE bookings SET payment_status = ?, updated_at = ? WHERE id = ?`, status, now.UTC(), id,
	)
	return err
}

// MarkOverduePayments flags unsettled live bookings dated before today.
func (q *Queries) MarkOverduePayments(ctx context.Context, today time.Time, now time.Time) (int64, error) {
	return rowsAffected(q.db.ExecContext(ctx, `
		UPDATE bookings SET payment_status = 'overdue', updated_at = ?
		WHERE booking_date < ? AND status <> 'cancelled' AND payment_status IN ('pending', 'partial')`,
		now.UTC(), models.DateKey(today),
	))
}
