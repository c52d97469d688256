package db

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/codr1/Shuttlers/internal/models"
)

const expenseColumns = `e.id, e.expense_date, e.venue_id, v.name, e.amount, e.description, e.category,
	e.image_url, e.added_by, e.is_active, e.created_at, e.updated_at`

const expenseFrom = ` FROM expenses e JOIN venues v ON v.id = e.venue_id`

func scanExpense(row scanner) (models.Expense, error) {
	var (
		e    models.Expense
		date string
	)
	err := row.Scan(
		&e.ID, &date, &e.VenueID, &e.VenueName, &e.Amount, &e.Description, &e.Category,
		&e.ImageURL, &e.AddedBy, &e.IsActive, &e.CreatedAt, &e.UpdatedAt,
	)
	if err != nil {
		return models.Expense{}, err
	}
	if e.Date, err = models.ParseDate(date); err != nil {
		return models.Expense{}, err
	}
	return e, nil
}

func (q *Queries) InsertExpense(ctx context.Context, e models.Expense, now time.Time) (int64, error) {
	now = now.UTC()
	res, err := q.db.ExecContext(ctx, `
		INSERT INTO expenses (expense_date, venue_id, amount, description, category,
			image_url, added_by, is_active, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, 1, ?, ?)`,
		models.DateKey(e.Date), e.VenueID, e.Amount, e.Description, e.Category,
		e.ImageURL, e.AddedBy, now, now,
	)
	if err != nil {
		return 0, MapConstraintError(err)
	}
	return res.LastInsertId()
}

// GetExpense returns the expense whether or not it has been deleted.
func (q *Queries) GetExpense(ctx context.Context, id int64) (models.Expense, error) {
	return scanExpense(q.db.QueryRowContext(ctx, `SELECT `+expenseColumns+expenseFrom+` WHERE e.id = ?`, id))
}

// UpdateExpense rewrites a live expense. Deleted expenses change no rows.
func (q *Queries) UpdateExpense(ctx context.Context, e models.Expense, now time.Time) (int64, error) {
	return rowsAffected(q.db.ExecContext(ctx, `
		UPDATE expenses SET expense_date = ?, venue_id = ?, amount = ?, description = ?, category = ?,
			image_url = ?, updated_at = ?
		WHERE id = ? AND is_active = 1`,
		models.DateKey(e.Date), e.VenueID, e.Amount, e.Description, e.Category,
		e.ImageURL, now.UTC(), e.ID,
	))
}

func (q *Queries) DeactivateExpense(ctx context.Context, id int64, now time.Time) (int64, error) {
	return rowsAffected(q.db.ExecContext(ctx,
		`UPDATE expenses SET is_active = 0, updated_at = ? WHERE id = ? AND is_active = 1`,
		now.UTC(), id,
	))
}

// ExpenseFilter always excludes deleted expenses.
type ExpenseFilter struct {
	VenueID  int64
	Category models.ExpenseCategory
	Dates    DateRange
}

func (f ExpenseFilter) where() *whereBuilder {
	w := &whereBuilder{}
	w.add(`e.is_active = 1`)
	if f.VenueID != 0 {
		w.add(`e.venue_id = ?`, f.VenueID)
	}
	if f.Category != "" {
		w.add(`e.category = ?`, f.Category)
	}
	if !f.Dates.From.IsZero() {
		w.add(`e.expense_date >= ?`, models.DateKey(f.Dates.From))
	}
	if !f.Dates.To.IsZero() {
		w.add(`e.expense_date <= ?`, models.DateKey(f.Dates.To))
	}
	return w
}

// ListExpenses returns a page of live expenses, latest date first, and the total count.
func (q *Queries) ListExpenses(ctx context.Context, f ExpenseFilter, page Page) ([]models.Expense, int, error) {
	w := f.where()
	var total int
	if err := q.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM expenses e`+w.sql(), w.args...).Scan(&total); err != nil {
		return nil, 0, err
	}
	args := append(append([]any{}, w.args...), page.Limit, page.Offset)
	rows, err := q.db.QueryContext(ctx,
		`SELECT `+expenseColumns+expenseFrom+w.sql()+` ORDER BY e.expense_date DESC, e.id DESC LIMIT ? OFFSET ?`,
		args...,
	)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()
	var out []models.Expense
	for rows.Next() {
		e, err := scanExpense(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("scan expense: %w", err)
		}
		out = append(out, e)
	}
	return out, total, rows.Err()
}

// ExpenseTotals sums the live expenses matching f.
func (q *Queries) ExpenseTotals(ctx context.Context, f ExpenseFilter) (models.ExpenseTotals, error) {
	w := f.where()
	var (
		totals models.ExpenseTotals
		sum    sql.NullFloat64
	)
	err := q.db.QueryRowContext(ctx, `SELECT COUNT(*), SUM(e.amount) FROM expenses e`+w.sql(), w.args...).
		Scan(&totals.TotalExpenses, &sum)
	if err != nil {
		return models.ExpenseTotals{}, err
	}
	totals.TotalAmount = sum.Float64
	if totals.TotalExpenses > 0 {
		totals.AvgAmount = totals.TotalAmount / float64(totals.TotalExpenses)
	}
	return totals, nil
}

// ExpensesByCategory returns per-category totals, largest first.
func (q *Queries) ExpensesByCategory(ctx context.Context, f ExpenseFilter) ([]models.CategoryTotal, error) {
	w := f.where()
	rows, err := q.db.QueryContext(ctx, `
		SELECT e.category, SUM(e.amount), COUNT(*) FROM expenses e`+w.sql()+`
		GROUP BY e.category ORDER BY SUM(e.amount) DESC, e.category`, w.args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []models.CategoryTotal
	for rows.Next() {
		var c models.CategoryTotal
		if err := rows.Scan(&c.Category, &c.TotalAmount, &c.Count); err != nil {
			return nil, fmt.Errorf("scan category total: %w", err)
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

// ExpensesByMonth returns per-month totals for the latest months, newest first.
func (q *Queries) ExpensesByMonth(ctx context.Context, f ExpenseFilter, months int) ([]models.MonthTotal, error) {
	w := f.where()
	args := append(append([]any{}, w.args...), months)
	rows, err := q.db.QueryContext(ctx, `
		SELECT substr(e.expense_date, 1, 7) AS month, SUM(e.amount), COUNT(*) FROM expenses e`+w.sql()+`
		GROUP BY month ORDER BY month DESC LIMIT ?`, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []models.MonthTotal
	for rows.Next() {
		var m models.MonthTotal
		if err := rows.Scan(&m.Month, &m.TotalAmount, &m.Count); err != nil {
			return nil, fmt.Errorf("scan month total: %w", err)
		}
		out = append(out, m)
	}
	return out, rows.Err()
}
