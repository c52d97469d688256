package db

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/codr1/Shuttlers/internal/models"
)

const paymentColumns = `id, booking_id, participant_id, amount, method,
	proof_url, proof_public_id, proof_original_name, proof_mime_type, proof_size,
	transaction_id, notes, status, reviewed_by, reviewed_at, review_notes,
	payment_date, created_at, updated_at`

func scanPayment(row scanner) (models.Payment, error) {
	var (
		p           models.Payment
		reviewedBy  sql.NullInt64
		reviewedAt  sql.NullTime
		reviewNotes sql.NullString
	)
	err := row.Scan(
		&p.ID, &p.BookingID, &p.ParticipantID, &p.Amount, &p.Method,
		&p.Proof.URL, &p.Proof.PublicID, &p.Proof.OriginalName, &p.Proof.MimeType, &p.Proof.Size,
		&p.TransactionID, &p.Notes, &p.Status, &reviewedBy, &reviewedAt, &reviewNotes,
		&p.PaymentDate, &p.CreatedAt, &p.UpdatedAt,
	)
	if err != nil {
		return models.Payment{}, err
	}
	if reviewedBy.Valid {
		p.Review = &models.Review{
			ReviewedBy: reviewedBy.Int64,
			ReviewedAt: reviewedAt.Time,
			Notes:      reviewNotes.String,
		}
	}
	return p, nil
}

// InsertPayment stores a pending payment. A second payment for the same
// booking and participant fails with models.ErrDuplicate.
func (q *Queries) InsertPayment(ctx context.Context, p models.Payment) (int64, error) {
	res, err := q.db.ExecContext(ctx, `
		INSERT INTO payments (booking_id, participant_id, amount, method,
			proof_url, proof_public_id, proof_original_name, proof_mime_type, proof_size,
			transaction_id, notes, status, payment_date, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		p.BookingID, p.ParticipantID, p.Amount, p.Method,
		p.Proof.URL, p.Proof.PublicID, p.Proof.OriginalName, p.Proof.MimeType, p.Proof.Size,
		p.TransactionID, p.Notes, p.Status, p.PaymentDate.UTC(), p.CreatedAt.UTC(), p.UpdatedAt.UTC(),
	)
	if err != nil {
		return 0, MapConstraintError(err)
	}
	return res.LastInsertId()
}

func (q *Queries) GetPayment(ctx context.Context, id int64) (models.Payment, error) {
	return scanPayment(q.db.QueryRowContext(ctx, `SELECT `+paymentColumns+` FROM payments WHERE id = ?`, id))
}

func (q *Queries) GetPaymentForPayer(ctx context.Context, bookingID, participantID int64) (models.Payment, error) {
	return scanPayment(q.db.QueryRowContext(ctx,
		`SELECT `+paymentColumns+` FROM payments WHERE booking_id = ? AND participant_id = ?`,
		bookingID, participantID,
	))
}

func (q *Queries) HasApprovedPayment(ctx context.Context, bookingID, participantID int64) (bool, error) {
	var exists bool
	err := q.db.QueryRowContext(ctx, `
		SELECT EXISTS (SELECT 1 FROM payments WHERE booking_id = ? AND participant_id = ? AND status = 'approved')`,
		bookingID, participantID,
	).Scan(&exists)
	return exists, err
}

// CountApprovedPayers counts booking participants holding an approved payment.
func (q *Queries) CountApprovedPayers(ctx context.Context, bookingID int64) (int, error) {
	var n int
	err := q.db.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM payments p
		JOIN booking_participants bp ON bp.booking_id = p.booking_id AND bp.participant_id = p.participant_id
		WHERE p.booking_id = ? AND p.status = 'approved'`,
		bookingID,
	).Scan(&n)
	return n, err
}

type ReviewPaymentParams struct {
	ID         int64
	Status     models.ReviewStatus
	ReviewerID int64
	Notes      string
	Now        time.Time
}

// ReviewPayment records a decision on a pending payment. It changes no rows
// when the payment has already been reviewed.
func (q *Queries) ReviewPayment(ctx context.Context, arg ReviewPaymentParams) (int64, error) {
	now := arg.Now.UTC()
	return rowsAffected(q.db.ExecContext(ctx, `
		UPDATE payments SET status = ?, reviewed_by = ?, reviewed_at = ?, review_notes = ?, updated_at = ?
		WHERE id = ? AND status = 'pending'`,
		arg.Status, arg.ReviewerID, now, arg.Notes, now, arg.ID,
	))
}

type PaymentFilter struct {
	ParticipantID int64
	BookingID     int64
	Status        models.ReviewStatus
	Created       DateRange
}

func (f PaymentFilter) where() *whereBuilder {
	w := &whereBuilder{}
	if f.ParticipantID != 0 {
		w.add(`participant_id = ?`, f.ParticipantID)
	}
	if f.BookingID != 0 {
		w.add(`booking_id = ?`, f.BookingID)
	}
	if f.Status != "" {
		w.add(`status = ?`, f.Status)
	}
	if !f.Created.From.IsZero() {
		w.add(`created_at >= ?`, f.Created.From.UTC())
	}
	if !f.Created.To.IsZero() {
		w.add(`created_at <= ?`, f.Created.To.UTC())
	}
	return w
}

// ListPayments returns a page of payments, newest first, and the total count.
func (q *Queries) ListPayments(ctx context.Context, f PaymentFilter, page Page) ([]models.Payment, int, error) {
	w := f.where()
	var total int
	if err := q.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM payments`+w.sql(), w.args...).Scan(&total); err != nil {
		return nil, 0, err
	}
	args := append(append([]any{}, w.args...), page.Limit, page.Offset)
	rows, err := q.db.QueryContext(ctx,
		`SELECT `+paymentColumns+` FROM payments`+w.sql()+` ORDER BY created_at DESC, id DESC LIMIT ? OFFSET ?`,
		args...,
	)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()
	var out []models.Payment
	for rows.Next() {
		p, err := scanPayment(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("scan payment: %w", err)
		}
		out = append(out, p)
	}
	return out, total, rows.Err()
}

func (q *Queries) PaymentStats(ctx context.Context, f PaymentFilter) (models.PaymentStats, error) {
	w := f.where()
	var (
		stats       models.PaymentStats
		totalAmount sql.NullFloat64
	)
	err := q.db.QueryRowContext(ctx, `
		SELECT COUNT(*), SUM(amount),
			COALESCE(SUM(CASE WHEN status = 'pending' THEN 1 ELSE 0 END), 0),
			COALESCE(SUM(CASE WHEN status = 'approved' THEN 1 ELSE 0 END), 0),
			COALESCE(SUM(CASE WHEN status = 'rejected' THEN 1 ELSE 0 END), 0),
			COALESCE(SUM(CASE WHEN status = 'pending' THEN amount ELSE 0 END), 0),
			COALESCE(SUM(CASE WHEN status = 'approved' THEN amount ELSE 0 END), 0)
		FROM payments`+w.sql(), w.args...,
	).Scan(&stats.TotalPayments, &totalAmount, &stats.Pending, &stats.Approved, &stats.Rejected,
		&stats.PendingAmount, &stats.ApprovedAmount)
	if err != nil {
		return models.PaymentStats{}, err
	}
	stats.TotalAmount = totalAmount.Float64
	if stats.TotalPayments > 0 {
		stats.AvgAmount = stats.TotalAmount / float64(stats.TotalPayments)
	}
	return stats, nil
}
