package db

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/codr1/Shuttlers/internal/models"
)

const venueColumns = `id, name, description, street, city, state, zip_code, country,
	longitude, latitude, phone, email, website,
	hourly_rate, currency, peak_hour_rate, peak_start, peak_end,
	is_active, created_by, created_at, updated_at`

func scanVenue(row scanner) (models.Venue, error) {
	var (
		v         models.Venue
		peakRate  sql.NullFloat64
		peakStart sql.NullString
		peakEnd   sql.NullString
	)
	err := row.Scan(
		&v.ID, &v.Name, &v.Description,
		&v.Address.Street, &v.Address.City, &v.Address.State, &v.Address.ZipCode, &v.Address.Country,
		&v.Location.Longitude, &v.Location.Latitude,
		&v.Contact.Phone, &v.Contact.Email, &v.Contact.Website,
		&v.Pricing.HourlyRate, &v.Pricing.Currency, &peakRate, &peakStart, &peakEnd,
		&v.IsActive, &v.CreatedBy, &v.CreatedAt, &v.UpdatedAt,
	)
	if err != nil {
		return models.Venue{}, err
	}
	if peakRate.Valid {
		rate := peakRate.Float64
		v.Pricing.PeakHourRate = &rate
	}
	if peakStart.Valid {
		start := models.TimeOfDay(peakStart.String)
		v.Pricing.PeakStart = &start
	}
	if peakEnd.Valid {
		end := models.TimeOfDay(peakEnd.String)
		v.Pricing.PeakEnd = &end
	}
	return v, nil
}

func peakArgs(p models.Pricing) (sql.NullFloat64, sql.NullString, sql.NullString) {
	var (
		rate  sql.NullFloat64
		start sql.NullString
		end   sql.NullString
	)
	if p.PeakHourRate != nil {
		rate = sql.NullFloat64{Float64: *p.PeakHourRate, Valid: true}
	}
	if p.PeakStart != nil {
		start = sql.NullString{String: string(*p.PeakStart), Valid: true}
	}
	if p.PeakEnd != nil {
		end = sql.NullString{String: string(*p.PeakEnd), Valid: true}
	}
	return rate, start, end
}

// CreateVenue inserts the venue and its courts. Run it inside a transaction.
func (q *Queries) CreateVenue(ctx context.Context, v models.Venue, now time.Time) (int64, error) {
	now = now.UTC()
	peakRate, peakStart, peakEnd := peakArgs(v.Pricing)
	res, err := q.db.ExecContext(ctx, `
		INSERT INTO venues (name, description, street, city, state, zip_code, country,
			longitude, latitude, phone, email, website,
			hourly_rate, currency, peak_hour_rate, peak_start, peak_end,
			is_active, created_by, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, 1, ?, ?, ?)`,
		v.Name, v.Description, v.Address.Street, v.Address.City, v.Address.State, v.Address.ZipCode, v.Address.Country,
		v.Location.Longitude, v.Location.Latitude, v.Contact.Phone, v.Contact.Email, v.Contact.Website,
		v.Pricing.HourlyRate, v.Pricing.Currency, peakRate, peakStart, peakEnd,
		v.CreatedBy, now, now,
	)
	if err != nil {
		return 0, MapConstraintError(err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, err
	}
	if err := q.ReplaceCourts(ctx, id, v.Courts); err != nil {
		return 0, err
	}
	return id, nil
}

// UpdateVenue rewrites the venue's mutable columns. Courts are replaced
// separately with ReplaceCourts.
func (q *Queries) UpdateVenue(ctx context.Context, v models.Venue, now time.Time) (int64, error) {
	peakRate, peakStart, peakEnd := peakArgs(v.Pricing)
	return rowsAffected(q.db.ExecContext(ctx, `
		UPDATE venues SET name = ?, description = ?, street = ?, city = ?, state = ?, zip_code = ?, country = ?,
			longitude = ?, latitude = ?, phone = ?, email = ?, website = ?,
			hourly_rate = ?, currency = ?, peak_hour_rate = ?, peak_start = ?, peak_end = ?,
			updated_at = ?
		WHERE id = ?`,
		v.Name, v.Description, v.Address.Street, v.Address.City, v.Address.State, v.Address.ZipCode, v.Address.Country,
		v.Location.Longitude, v.Location.Latitude, v.Contact.Phone, v.Contact.Email, v.Contact.Website,
		v.Pricing.HourlyRate, v.Pricing.Currency, peakRate, peakStart, peakEnd,
		now.UTC(), v.ID,
	))
}

func (q *Queries) ReplaceCourts(ctx context.Context, venueID int64, courts []models.Court) error {
	if _, err := q.db.ExecContext(ctx, `DELETE FROM courts WHERE venue_id = ?`, venueID); err != nil {
		return fmt.Errorf("clear courts: %w", err)
	}
	for _, c := range courts {
		if _, err := q.db.ExecContext(ctx,
			`INSERT INTO courts (venue_id, number, court_type, surface, is_available) VALUES (?, ?, ?, ?, ?)`,
			venueID, c.Number, c.Type, c.Surface, c.IsAvailable,
		); err != nil {
			return fmt.Errorf("insert court %d: %w", c.Number, MapConstraintError(err))
		}
	}
	return nil
}

func (q *Queries) GetVenue(ctx context.Context, id int64) (models.Venue, error) {
	v, err := scanVenue(q.db.QueryRowContext(ctx, `SELECT `+venueColumns+` FROM venues WHERE id = ?`, id))
	if err != nil {
		return models.Venue{}, err
	}
	courts, err := q.listCourts(ctx, []int64{id})
	if err != nil {
		return models.Venue{}, err
	}
	v.Courts = courts[id]
	return v, nil
}

// ListVenues returns a page of venues by name and the total matching count.
func (q *Queries) ListVenues(ctx context.Context, activeOnly bool, page Page) ([]models.Venue, int, error) {
	where := ""
	if activeOnly {
		where = ` WHERE is_active = 1`
	}
	var total int
	if err := q.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM venues`+where).Scan(&total); err != nil {
		return nil, 0, err
	}

	query := `SELECT ` + venueColumns + ` FROM venues` + where + ` ORDER BY name, id`
	args := []any{}
	if page.Limit > 0 {
		query += ` LIMIT ? OFFSET ?`
		args = append(args, page.Limit, page.Offset)
	}
	rows, err := q.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var (
		venues []models.Venue
		ids    []int64
	)
	for rows.Next() {
		v, err := scanVenue(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("scan venue: %w", err)
		}
		venues = append(venues, v)
		ids = append(ids, v.ID)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, err
	}
	rows.Close()

	courts, err := q.listCourts(ctx, ids)
	if err != nil {
		return nil, 0, err
	}
	for i := range venues {
		venues[i].Courts = courts[venues[i].ID]
	}
	return venues, total, nil
}

func (q *Queries) listCourts(ctx context.Context, venueIDs []int64) (map[int64][]models.Court, error) {
	out := make(map[int64][]models.Court, len(venueIDs))
	if len(venueIDs) == 0 {
		return out, nil
	}
	args := make([]any, len(venueIDs))
	for i, id := range venueIDs {
		args[i] = id
	}
	rows, err := q.db.QueryContext(ctx, `
		SELECT venue_id, number, court_type, surface, is_available FROM courts
		WHERE venue_id IN (`+placeholders(len(venueIDs))+`)
		ORDER BY venue_id, number`, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	for rows.Next() {
		var (
			venueID int64
			c       models.Court
		)
		if err := rows.Scan(&venueID, &c.Number, &c.Type, &c.Surface, &c.IsAvailable); err != nil {
			return nil, fmt.Errorf("scan court: %w", err)
		}
		out[venueID] = append(out[venueID], c)
	}
	return out, rows.Err()
}

func (q *Queries) DeactivateVenue(ctx context.Context, id int64, now time.Time) (int64, error) {
	return rowsAffected(q.db.ExecContext(ctx,
		`UPDATE venues SET is_active = 0, updated_at = ? WHERE id = ?`, now.UTC(), id,
	))
}

func (q *Queries) VenueStats(ctx context.Context) (models.VenueStats, error) {
	var (
		stats   models.VenueStats
		avgRate sql.NullFloat64
	)
	err := q.db.QueryRowContext(ctx, `
		SELECT COUNT(*),
			COALESCE(SUM(CASE WHEN is_active = 1 THEN 1 ELSE 0 END), 0),
			AVG(hourly_rate),
			(SELECT COUNT(*) FROM courts)
		FROM venues`,
	).Scan(&stats.TotalVenues, &stats.ActiveVenues, &avgRate, &stats.TotalCourts)
	if err != nil {
		return models.VenueStats{}, err
	}
	stats.AvgHourlyRate = avgRate.Float64
	return stats, nil
}
