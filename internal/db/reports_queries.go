package db

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/codr1/Shuttlers/internal/models"
)

func (q *Queries) ParticipantStats(ctx context.Context) (models.ParticipantStats, error) {
	var stats models.ParticipantStats
	err := q.db.QueryRowContext(ctx, `
		SELECT COUNT(*),
			COALESCE(SUM(CASE WHEN is_active = 1 THEN 1 ELSE 0 END), 0),
			COALESCE(SUM(CASE WHEN role = 'player' THEN 1 ELSE 0 END), 0),
			COALESCE(SUM(CASE WHEN role = 'admin' THEN 1 ELSE 0 END), 0)
		FROM participants`,
	).Scan(&stats.TotalParticipants, &stats.ActiveParticipants, &stats.Players, &stats.Admins)
	return stats, err
}

// Activity counts bookings and payments created in [from, to) and sums the
// approved payments among them.
func (q *Queries) Activity(ctx context.Context, from, to time.Time) (models.Activity, error) {
	from, to = from.UTC(), to.UTC()
	var (
		a       models.Activity
		revenue sql.NullFloat64
	)
	err := q.db.QueryRowContext(ctx, `
		SELECT
			(SELECT COUNT(*) FROM bookings WHERE created_at >= ? AND created_at < ?),
			(SELECT COUNT(*) FROM payments WHERE created_at >= ? AND created_at < ?),
			(SELECT SUM(amount) FROM payments WHERE status = 'approved' AND created_at >= ? AND created_at < ?)`,
		from, to, from, to, from, to,
	).Scan(&a.Bookings, &a.Payments, &revenue)
	if err != nil {
		return models.Activity{}, err
	}
	a.Revenue = revenue.Float64
	return a, nil
}

// ApprovedRevenue lists approved payments created in [from, to), oldest
// first. Zero bounds are open.
func (q *Queries) ApprovedRevenue(ctx context.Context, from, to time.Time) ([]models.RevenueEntry, error) {
	w := &whereBuilder{}
	w.add(`status = 'approved'`)
	if !from.IsZero() {
		w.add(`created_at >= ?`, from.UTC())
	}
	if !to.IsZero() {
		w.add(`created_at < ?`, to.UTC())
	}
	rows, err := q.db.QueryContext(ctx,
		`SELECT amount, method, created_at FROM payments`+w.sql()+` ORDER BY created_at, id`, w.args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []models.RevenueEntry
	for rows.Next() {
		var e models.RevenueEntry
		if err := rows.Scan(&e.Amount, &e.Method, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan revenue entry: %w", err)
		}
		out = append(out, e)
	}
	return out, rows.Err()
}
