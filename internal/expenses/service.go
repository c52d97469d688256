// Package expenses is the club's spending ledger. Expenses are soft deleted
// so monthly totals stay reproducible from the audit trail.
package expenses

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/codr1/Shuttlers/internal/clock"
	"github.com/codr1/Shuttlers/internal/db"
	"github.com/codr1/Shuttlers/internal/models"
)

const (
	maxDescription = 500
	statsMonths    = 12
)

type Service struct {
	db    *db.DB
	clock clock.Clock
	loc   *time.Location
}

func NewService(database *db.DB, clk clock.Clock, loc *time.Location) *Service {
	if clk == nil {
		clk = clock.Real{}
	}
	if loc == nil {
		loc = time.UTC
	}
	return &Service{db: database, clock: clk, loc: loc}
}

type CreateParams struct {
	Date        string                 `json:"date"`
	VenueID     int64                  `json:"venueId"`
	Amount      float64                `json:"amount"`
	Description string                 `json:"description"`
	Category    models.ExpenseCategory `json:"category"`
	ImageURL    string                 `json:"imageUrl"`
	AddedBy     int64                  `json:"-"`
}

// UpdateParams changes only the non-nil fields.
type UpdateParams struct {
	Date        *string                 `json:"date"`
	VenueID     *int64                  `json:"venueId"`
	Amount      *float64                `json:"amount"`
	Description *string                 `json:"description"`
	Category    *models.ExpenseCategory `json:"category"`
	ImageURL    *string                 `json:"imageUrl"`
}

func (s *Service) today() time.Time {
	return models.CalendarDate(s.clock.Now().In(s.loc))
}

func validate(e *models.Expense) error {
	e.Description = strings.TrimSpace(e.Description)
	e.ImageURL = strings.TrimSpace(e.ImageURL)
	if e.VenueID <= 0 {
		return models.Invalid("venueId", "is required")
	}
	if e.Amount < 0 {
		return models.Invalid("amount", "must not be negative")
	}
	if e.Description == "" || len(e.Description) > maxDescription {
		return models.Invalid("description", "must be 1-%d characters", maxDescription)
	}
	if e.Category == "" {
		e.Category = models.ExpenseOther
	}
	if !e.Category.Valid() {
		return models.Invalid("category", "must be court_booking, equipment or other")
	}
	if e.ImageURL != "" {
		if u, err := url.Parse(e.ImageURL); err != nil || u.Host == "" || (u.Scheme != "http" && u.Scheme != "https") {
			return models.Invalid("imageUrl", "must be an http(s) URL")
		}
	}
	return nil
}

func (s *Service) parseDate(raw string) (time.Time, error) {
	if raw == "" {
		return s.today(), nil
	}
	d, err := models.ParseDate(raw)
	if err != nil {
		return time.Time{}, models.Invalid("date", "%s", err.Error())
	}
	return d, nil
}

func ensureVenue(ctx context.Context, q *db.Queries, id int64) error {
	if _, err := q.GetVenue(ctx, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return models.Invalid("venueId", "venue %d does not exist", id)
		}
		return err
	}
	return nil
}

// Create records an expense. The date defaults to today in the club's timezone.
func (s *Service) Create(ctx context.Context, params CreateParams) (models.Expense, error) {
	date, err := s.parseDate(params.Date)
	if err != nil {
		return models.Expense{}, err
	}
	e := models.Expense{
		Date:        date,
		VenueID:     params.VenueID,
		Amount:      params.Amount,
		Description: params.Description,
		Category:    params.Category,
		ImageURL:    params.ImageURL,
		AddedBy:     params.AddedBy,
	}
	if err := validate(&e); err != nil {
		return models.Expense{}, err
	}
	if err := ensureVenue(ctx, s.db.Queries, e.VenueID); err != nil {
		return models.Expense{}, err
	}

	id, err := s.db.Queries.InsertExpense(ctx, e, s.clock.Now())
	if err != nil {
		return models.Expense{}, fmt.Errorf("create expense: %w", err)
	}
	log.Ctx(ctx).Info().
		Int64("expense_id", id).
		Int64("venue_id", e.VenueID).
		Float64("amount", e.Amount).
		Str("category", string(e.Category)).
		Msg("Expense recorded")
	return s.Get(ctx, id)
}

// Get returns a live expense. Deleted expenses are reported as not found.
func (s *Service) Get(ctx context.Context, id int64) (models.Expense, error) {
	e, err := s.db.Queries.GetExpense(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return models.Expense{}, fmt.Errorf("expense %d: %w", id, models.ErrNotFound)
		}
		return models.Expense{}, fmt.Errorf("get expense: %w", err)
	}
	if !e.IsActive {
		return models.Expense{}, fmt.Errorf("expense %d: %w", id, models.ErrNotFound)
	}
	return e, nil
}

func (s *Service) Update(ctx context.Context, id int64, params UpdateParams) (models.Expense, error) {
	err := s.db.RunInTx(ctx, func(tx *db.DB) error {
		e, err := tx.Queries.GetExpense(ctx, id)
		if errors.Is(err, sql.ErrNoRows) || (err == nil && !e.IsActive) {
			return fmt.Errorf("expense %d: %w", id, models.ErrNotFound)
		}
		if err != nil {
			return err
		}
		if params.Date != nil {
			if e.Date, err = s.parseDate(*params.Date); err != nil {
				return err
			}
		}
		if params.VenueID != nil {
			e.VenueID = *params.VenueID
		}
		if params.Amount != nil {
			e.Amount = *params.Amount
		}
		if params.Description != nil {
			e.Description = *params.Description
		}
		if params.Category != nil {
			e.Category = *params.Category
		}
		if params.ImageURL != nil {
			e.ImageURL = *params.ImageURL
		}
		if err := validate(&e); err != nil {
			return err
		}
		if params.VenueID != nil {
			if err := ensureVenue(ctx, tx.Queries, e.VenueID); err != nil {
				return err
			}
		}
		n, err := tx.Queries.UpdateExpense(ctx, e, s.clock.Now())
		if err != nil {
			return err
		}
		if n == 0 {
			return fmt.Errorf("expense %d: %w", id, models.ErrNotFound)
		}
		return nil
	})
	if err != nil {
		if errors.Is(err, models.ErrNotFound) || errors.Is(err, models.ErrValidation) {
			return models.Expense{}, err
		}
		return models.Expense{}, fmt.Errorf("update expense: %w", err)
	}
	log.Ctx(ctx).Info().Int64("expense_id", id).Msg("Expense updated")
	return s.Get(ctx, id)
}

// Delete hides the expense from lists and totals.
func (s *Service) Delete(ctx context.Context, id int64) error {
	n, err := s.db.Queries.DeactivateExpense(ctx, id, s.clock.Now())
	if err != nil {
		return fmt.Errorf("delete expense: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("expense %d: %w", id, models.ErrNotFound)
	}
	log.Ctx(ctx).Info().Int64("expense_id", id).Msg("Expense deleted")
	return nil
}

type ListResult struct {
	Expenses []models.Expense `json:"expenses"`
	Total    int              `json:"total"`
}

func (s *Service) List(ctx context.Context, f db.ExpenseFilter, page db.Page) (ListResult, error) {
	if f.Category != "" && !f.Category.Valid() {
		return ListResult{}, models.Invalid("category", "must be court_booking, equipment or other")
	}
	list, total, err := s.db.Queries.ListExpenses(ctx, f, page.Normalize(20, 100))
	if err != nil {
		return ListResult{}, fmt.Errorf("list expenses: %w", err)
	}
	if list == nil {
		list = []models.Expense{}
	}
	return ListResult{Expenses: list, Total: total}, nil
}

// Stats summarizes live expenses in the date range, by category and by month
// for the latest twelve months that have any.
func (s *Service) Stats(ctx context.Context, dates db.DateRange) (models.ExpenseStats, error) {
	f := db.ExpenseFilter{Dates: dates}
	totals, err := s.db.Queries.ExpenseTotals(ctx, f)
	if err != nil {
		return models.ExpenseStats{}, fmt.Errorf("expense totals: %w", err)
	}
	byCategory, err := s.db.Queries.ExpensesByCategory(ctx, f)
	if err != nil {
		return models.ExpenseStats{}, fmt.Errorf("expenses by category: %w", err)
	}
	byMonth, err := s.db.Queries.ExpensesByMonth(ctx, f, statsMonths)
	if err != nil {
		return models.ExpenseStats{}, fmt.Errorf("expenses by month: %w", err)
	}
	if byCategory == nil {
		byCategory = []models.CategoryTotal{}
	}
	if byMonth == nil {
		byMonth = []models.MonthTotal{}
	}
	return models.ExpenseStats{Summary: totals, ByCategory: byCategory, ByMonth: byMonth}, nil
}
