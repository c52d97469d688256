// Package reports builds the admin dashboard and revenue views on top of
// the booking, payment and expense ledgers. Time buckets follow the club's
// timezone.
package reports

import (
	"context"
	"fmt"
	"sort"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/codr1/Shuttlers/internal/clock"
	"github.com/codr1/Shuttlers/internal/db"
	"github.com/codr1/Shuttlers/internal/models"
)

type Period string

const (
	Daily   Period = "daily"
	Weekly  Period = "weekly"
	Monthly Period = "monthly"
)

func (p Period) Valid() bool {
	switch p {
	case Daily, Weekly, Monthly:
		return true
	}
	return false
}

const (
	dashboardMonths = 6
	dashboardRecent = 5
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

func (s *Service) startOfDay(t time.Time) time.Time {
	t = t.In(s.loc)
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, s.loc)
}

func (s *Service) startOfMonth(t time.Time) time.Time {
	t = t.In(s.loc)
	return time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, s.loc)
}

// Dashboard gathers the headline figures. Monthly revenue covers the current
// month and the five before it, with empty months reported as zero.
func (s *Service) Dashboard(ctx context.Context) (models.Dashboard, error) {
	q := s.db.Queries
	now := s.clock.Now()
	firstMonth := s.startOfMonth(now).AddDate(0, -(dashboardMonths - 1), 0)

	var (
		d        models.Dashboard
		expenses models.ExpenseTotals
		entries  []models.RevenueEntry
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() (err error) {
		d.Participants, err = q.ParticipantStats(gctx)
		return err
	})
	g.Go(func() (err error) {
		d.Venues, err = q.VenueStats(gctx)
		return err
	})
	g.Go(func() (err error) {
		d.Bookings, err = q.BookingStats(gctx, db.BookingFilter{})
		return err
	})
	g.Go(func() (err error) {
		d.Payments, err = q.PaymentStats(gctx, db.PaymentFilter{})
		return err
	})
	g.Go(func() (err error) {
		expenses, err = q.ExpenseTotals(gctx, db.ExpenseFilter{})
		return err
	})
	g.Go(func() (err error) {
		entries, err = q.ApprovedRevenue(gctx, firstMonth, time.Time{})
		return err
	})
	g.Go(func() (err error) {
		d.RecentBookings, _, err = q.ListBookings(gctx, db.BookingFilter{}, db.Page{Limit: dashboardRecent})
		return err
	})
	g.Go(func() (err error) {
		d.PendingPayments, _, err = q.ListPayments(gctx, db.PaymentFilter{Status: models.ReviewPending}, db.Page{Limit: dashboardRecent})
		return err
	})
	if err := g.Wait(); err != nil {
		return models.Dashboard{}, fmt.Errorf("dashboard: %w", err)
	}

	d.TotalRevenue = d.Payments.ApprovedAmount
	d.TotalExpenses = expenses.TotalAmount
	d.NetIncome = d.TotalRevenue - d.TotalExpenses

	months := make([]string, 0, dashboardMonths)
	for i := 0; i < dashboardMonths; i++ {
		months = append(months, bucketKey(Monthly, firstMonth.AddDate(0, i, 0)))
	}
	d.MonthlyRevenue = fillBuckets(months, s.bucket(Monthly, entries))

	if d.RecentBookings == nil {
		d.RecentBookings = []models.Booking{}
	}
	if d.PendingPayments == nil {
		d.PendingPayments = []models.Payment{}
	}
	return d, nil
}

// Overview reports all-time totals plus what was created today and this
// month.
func (s *Service) Overview(ctx context.Context) (models.Overview, error) {
	q := s.db.Queries
	now := s.clock.Now()
	today := s.startOfDay(now)
	month := s.startOfMonth(now)

	var (
		o        models.Overview
		people   models.ParticipantStats
		venues   models.VenueStats
		bookings models.BookingStats
		payments models.PaymentStats
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() (err error) {
		people, err = q.ParticipantStats(gctx)
		return err
	})
	g.Go(func() (err error) {
		venues, err = q.VenueStats(gctx)
		return err
	})
	g.Go(func() (err error) {
		bookings, err = q.BookingStats(gctx, db.BookingFilter{})
		return err
	})
	g.Go(func() (err error) {
		payments, err = q.PaymentStats(gctx, db.PaymentFilter{})
		return err
	})
	g.Go(func() (err error) {
		o.Today, err = q.Activity(gctx, today, today.AddDate(0, 0, 1))
		return err
	})
	g.Go(func() (err error) {
		o.ThisMonth, err = q.Activity(gctx, month, month.AddDate(0, 1, 0))
		return err
	})
	if err := g.Wait(); err != nil {
		return models.Overview{}, fmt.Errorf("overview: %w", err)
	}

	o.Totals = models.OverviewTotals{
		Participants: people.TotalParticipants,
		Players:      people.Players,
		Admins:       people.Admins,
		Venues:       venues.ActiveVenues,
		Bookings:     bookings.TotalBookings,
		Payments:     payments.TotalPayments,
		Revenue:      payments.ApprovedAmount,
	}
	return o, nil
}

// Revenue buckets approved payments by when they were submitted. dates are
// calendar days in the club's timezone; To is inclusive.
func (s *Service) Revenue(ctx context.Context, period Period, dates db.DateRange) (models.RevenueReport, error) {
	if period == "" {
		period = Monthly
	}
	if !period.Valid() {
		return models.RevenueReport{}, models.Invalid("period", "must be daily, weekly or monthly")
	}
	if !dates.From.IsZero() && !dates.To.IsZero() && dates.To.Before(dates.From) {
		return models.RevenueReport{}, models.Invalid("endDate", "must not be before startDate")
	}

	var from, to time.Time
	if !dates.From.IsZero() {
		from = s.localDay(dates.From)
	}
	if !dates.To.IsZero() {
		to = s.localDay(dates.To).AddDate(0, 0, 1)
	}
	entries, err := s.db.Queries.ApprovedRevenue(ctx, from, to)
	if err != nil {
		return models.RevenueReport{}, fmt.Errorf("revenue: %w", err)
	}

	totals := s.bucket(period, entries)
	keys := make([]string, 0, len(totals))
	for k := range totals {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	return models.RevenueReport{
		Period:   string(period),
		Buckets:  fillBuckets(keys, totals),
		ByMethod: byMethod(entries),
	}, nil
}

// localDay reinterprets a calendar date as midnight in the club's timezone.
func (s *Service) localDay(d time.Time) time.Time {
	return time.Date(d.Year(), d.Month(), d.Day(), 0, 0, 0, 0, s.loc)
}

func (s *Service) bucket(period Period, entries []models.RevenueEntry) map[string]models.RevenueBucket {
	out := make(map[string]models.RevenueBucket)
	for _, e := range entries {
		key := bucketKey(period, e.CreatedAt.In(s.loc))
		b := out[key]
		b.Period = key
		b.Revenue += e.Amount
		b.Count++
		out[key] = b
	}
	return out
}

func bucketKey(period Period, t time.Time) string {
	switch period {
	case Daily:
		return t.Format(models.DateLayout)
	case Weekly:
		year, week := t.ISOWeek()
		return fmt.Sprintf("%04d-W%02d", year, week)
	default:
		return t.Format("2006-01")
	}
}

// fillBuckets returns one bucket per key in order, zero for missing keys.
func fillBuckets(keys []string, totals map[string]models.RevenueBucket) []models.RevenueBucket {
	out := make([]models.RevenueBucket, 0, len(keys))
	for _, k := range keys {
		b, ok := totals[k]
		if !ok {
			b = models.RevenueBucket{Period: k}
		}
		out = append(out, b)
	}
	return out
}

func byMethod(entries []models.RevenueEntry) []models.MethodTotal {
	index := make(map[models.PaymentMethod]int)
	out := []models.MethodTotal{}
	for _, e := range entries {
		i, ok := index[e.Method]
		if !ok {
			i = len(out)
			index[e.Method] = i
			out = append(out, models.MethodTotal{Method: e.Method})
		}
		out[i].Total += e.Amount
		out[i].Count++
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Total > out[j].Total })
	return out
}
