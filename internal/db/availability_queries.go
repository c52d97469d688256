package db

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/codr1/Shuttlers/internal/models"
)

const availabilityColumns = `a.id, a.participant_id, p.name, p.email, a.week_start_date, a.week_end_date, a.game_date,
	a.is_available, a.response_date, a.notified, a.notified_at, a.created_at, a.updated_at`

const availabilityFrom = ` FROM availability a JOIN participants p ON p.id = a.participant_id`

func scanAvailability(row scanner) (models.Availability, error) {
	var (
		a          models.Availability
		ref        models.ParticipantRef
		weekStart  string
		weekEnd    string
		available  sql.NullBool
		responded  sql.NullTime
		notifiedAt sql.NullTime
	)
	err := row.Scan(&a.ID, &a.ParticipantID, &ref.Name, &ref.Email, &weekStart, &weekEnd, &a.GameDate,
		&available, &responded, &a.Notified, &notifiedAt, &a.CreatedAt, &a.UpdatedAt)
	if err != nil {
		return models.Availability{}, err
	}
	if a.WeekStart, err = models.ParseDate(weekStart); err != nil {
		return models.Availability{}, err
	}
	if a.WeekEnd, err = models.ParseDate(weekEnd); err != nil {
		return models.Availability{}, err
	}
	ref.ID = a.ParticipantID
	a.Participant = &ref
	a.IsAvailable = boolPtr(available)
	a.ResponseDate = timePtr(responded)
	a.NotifiedAt = timePtr(notifiedAt)
	return a, nil
}

type AvailabilityKey struct {
	ParticipantID int64
	Window        models.WeekWindow
}

// MarkAvailabilityNotified creates an unanswered record for the cycle, or
// refreshes the notification stamp on an existing one. The answer is never
// touched. It reports whether a record was created.
func (q *Queries) MarkAvailabilityNotified(ctx context.Context, key AvailabilityKey, now time.Time) (bool, error) {
	now = now.UTC()
	n, err := rowsAffected(q.db.ExecContext(ctx, `
		INSERT OR IGNORE INTO availability (participant_id, week_start_date, week_end_date, game_date,
			is_available, notified, notified_at, created_at, updated_at)
		VALUES (?, ?, ?, ?, NULL, 1, ?, ?, ?)`,
		key.ParticipantID, models.DateKey(key.Window.WeekStart), models.DateKey(key.Window.WeekEnd),
		key.Window.GameDate.UTC(), now, now, now,
	))
	if err != nil {
		return false, err
	}
	if n > 0 {
		return true, nil
	}
	_, err = q.db.ExecContext(ctx, `
		UPDATE availability SET notified = 1, notified_at = ?, updated_at = ?
		WHERE participant_id = ? AND week_start_date = ?`,
		now, now, key.ParticipantID, models.DateKey(key.Window.WeekStart),
	)
	return false, err
}

// UpsertAvailabilityResponse records the participant's latest answer for the cycle.
func (q *Queries) UpsertAvailabilityResponse(ctx context.Context, key AvailabilityKey, available bool, now time.Time) error {
	now = now.UTC()
	_, err := q.db.ExecContext(ctx, `
		INSERT INTO availability (participant_id, week_start_date, week_end_date, game_date,
			is_available, response_date, notified, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, 0, ?, ?)
		ON CONFLICT (participant_id, week_start_date) DO UPDATE SET
			is_available = excluded.is_available,
			response_date = excluded.response_date,
			updated_at = excluded.updated_at`,
		key.ParticipantID, models.DateKey(key.Window.WeekStart), models.DateKey(key.Window.WeekEnd),
		key.Window.GameDate.UTC(), available, now, now, now,
	)
	return err
}

func (q *Queries) GetAvailability(ctx context.Context, participantID int64, weekStart time.Time) (models.Availability, error) {
	return scanAvailability(q.db.QueryRowContext(ctx,
		`SELECT `+availabilityColumns+availabilityFrom+` WHERE a.participant_id = ? AND a.week_start_date = ?`,
		participantID, models.DateKey(weekStart),
	))
}

// ListAvailabilityForWeek returns every record of one cycle ordered by participant name.
func (q *Queries) ListAvailabilityForWeek(ctx context.Context, weekStart time.Time) ([]models.Availability, error) {
	rows, err := q.db.QueryContext(ctx,
		`SELECT `+availabilityColumns+availabilityFrom+` WHERE a.week_start_date = ? ORDER BY p.name, p.id`,
		models.DateKey(weekStart),
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectAvailability(rows)
}

// ListAvailabilityHistory returns a participant's records, latest cycle first.
func (q *Queries) ListAvailabilityHistory(ctx context.Context, participantID int64, page Page) ([]models.Availability, int, error) {
	var total int
	if err := q.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM availability WHERE participant_id = ?`, participantID).Scan(&total); err != nil {
		return nil, 0, err
	}
	rows, err := q.db.QueryContext(ctx,
		`SELECT `+availabilityColumns+availabilityFrom+` WHERE a.participant_id = ? ORDER BY a.week_start_date DESC LIMIT ? OFFSET ?`,
		participantID, page.Limit, page.Offset,
	)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()
	out, err := collectAvailability(rows)
	return out, total, err
}

func collectAvailability(rows *sql.Rows) ([]models.Availability, error) {
	var out []models.Availability
	for rows.Next() {
		a, err := scanAvailability(rows)
		if err != nil {
			return nil, fmt.Errorf("scan availability: %w", err)
		}
		out = append(out, a)
	}
	return out, rows.Err()
}
