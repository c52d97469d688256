package expenses

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/codr1/Shuttlers/internal/clock"
	"github.com/codr1/Shuttlers/internal/db"
	"github.com/codr1/Shuttlers/internal/models"
	"github.com/codr1/Shuttlers/internal/testutil"
)

type fixture struct {
	svc     *Service
	adminID int64
	venueID int64
}

func newFixture(t *testing.T) fixture {
	t.Helper()
	database := testutil.NewTestDB(t)
	// 20:00 UTC on 31 May is already 1 June in Kolkata.
	clk := clock.NewMock(time.Date(2024, 5, 31, 20, 0, 0, 0, time.UTC))
	loc := time.FixedZone("IST", 5*3600+30*60)
	admin := testutil.CreateParticipant(t, database, "Admin", models.RoleAdmin)
	venue := testutil.CreateVenue(t, database, admin.ID, "Court A", 2, 600)
	return fixture{svc: NewService(database, clk, loc), adminID: admin.ID, venueID: venue.ID}
}

func (f fixture) record(t *testing.T, date string, amount float64, category models.ExpenseCategory) models.Expense {
	t.Helper()
	e, err := f.svc.Create(context.Background(), CreateParams{
		Date:        date,
		VenueID:     f.venueID,
		Amount:      amount,
		Description: "court hire",
		Category:    category,
		AddedBy:     f.adminID,
	})
	if err != nil {
		t.Fatalf("create expense: %v", err)
	}
	return e
}

func TestCreateDefaults(t *testing.T) {
	f := newFixture(t)

	e := f.record(t, "", 1200, "")
	if got := models.DateKey(e.Date); got != "2024-06-01" {
		t.Fatalf("expected today in club timezone, got %s", got)
	}
	if e.Category != models.ExpenseOther || !e.IsActive || e.VenueName != "Court A" || e.AddedBy != f.adminID {
		t.Fatalf("unexpected expense: %+v", e)
	}

	long := make([]byte, maxDescription+1)
	for i := range long {
		long[i] = 'x'
	}
	tests := []struct {
		name   string
		params CreateParams
		field  string
	}{
		{"negative amount", CreateParams{VenueID: f.venueID, Amount: -1, Description: "x"}, "amount"},
		{"blank description", CreateParams{VenueID: f.venueID, Description: "  "}, "description"},
		{"long description", CreateParams{VenueID: f.venueID, Description: string(long)}, "description"},
		{"unknown category", CreateParams{VenueID: f.venueID, Description: "x", Category: "snacks"}, "category"},
		{"bad date", CreateParams{VenueID: f.venueID, Description: "x", Date: "1/6/2024"}, "date"},
		{"missing venue", CreateParams{VenueID: 999, Description: "x"}, "venueId"},
		{"bad image url", CreateParams{VenueID: f.venueID, Description: "x", ImageURL: "receipt.png"}, "imageUrl"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.svc.Create(context.Background(), tt.params)
			var verr *models.ValidationError
			if !errors.As(err, &verr) || verr.Field != tt.field {
				t.Fatalf("expected validation error on %s, got %v", tt.field, err)
			}
		})
	}
}

func TestUpdateAndSoftDelete(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	e := f.record(t, "2024-05-10", 500, models.ExpenseEquipment)

	amount := 650.0
	desc := "shuttles, two tubes"
	updated, err := f.svc.Update(ctx, e.ID, UpdateParams{Amount: &amount, Description: &desc})
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	if updated.Amount != 650 || updated.Description != desc || updated.Category != models.ExpenseEquipment {
		t.Fatalf("unexpected update result: %+v", updated)
	}

	negative := -5.0
	if _, err := f.svc.Update(ctx, e.ID, UpdateParams{Amount: &negative}); !errors.Is(err, models.ErrValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}

	if err := f.svc.Delete(ctx, e.ID); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if err := f.svc.Delete(ctx, e.ID); !errors.Is(err, models.ErrNotFound) {
		t.Fatalf("expected second delete to report not found, got %v", err)
	}
	if _, err := f.svc.Get(ctx, e.ID); !errors.Is(err, models.ErrNotFound) {
		t.Fatalf("expected deleted expense to be hidden, got %v", err)
	}
	if _, err := f.svc.Update(ctx, e.ID, UpdateParams{Amount: &amount}); !errors.Is(err, models.ErrNotFound) {
		t.Fatalf("expected update of deleted expense to fail, got %v", err)
	}
	list, err := f.svc.List(ctx, db.ExpenseFilter{}, db.Page{})
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if list.Total != 0 || len(list.Expenses) != 0 {
		t.Fatalf("expected empty list after delete, got %+v", list)
	}
}

func TestListFilters(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.record(t, "2024-04-02", 100, models.ExpenseEquipment)
	f.record(t, "2024-05-02", 200, models.ExpenseCourtBooking)
	latest := f.record(t, "2024-05-20", 300, models.ExpenseCourtBooking)

	list, err := f.svc.List(ctx, db.ExpenseFilter{Category: models.ExpenseCourtBooking}, db.Page{})
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if list.Total != 2 || list.Expenses[0].ID != latest.ID {
		t.Fatalf("expected 2 court bookings latest first, got %+v", list)
	}

	may := db.DateRange{From: time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC), To: time.Date(2024, 5, 10, 0, 0, 0, 0, time.UTC)}
	list, err = f.svc.List(ctx, db.ExpenseFilter{Dates: may}, db.Page{})
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if list.Total != 1 || list.Expenses[0].Amount != 200 {
		t.Fatalf("expected one expense in range, got %+v", list)
	}

	if _, err := f.svc.List(ctx, db.ExpenseFilter{Category: "snacks"}, db.Page{}); !errors.Is(err, models.ErrValidation) {
		t.Fatalf("expected validation error for unknown category, got %v", err)
	}
}

func TestStats(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.record(t, "2024-04-02", 100, models.ExpenseEquipment)
	f.record(t, "2024-05-02", 200, models.ExpenseCourtBooking)
	f.record(t, "2024-05-20", 300, models.ExpenseCourtBooking)
	gone := f.record(t, "2024-05-21", 1000, models.ExpenseOther)
	if err := f.svc.Delete(ctx, gone.ID); err != nil {
		t.Fatalf("delete: %v", err)
	}

	stats, err := f.svc.Stats(ctx, db.DateRange{})
	if err != nil {
		t.Fatalf("stats: %v", err)
	}
	if stats.Summary.TotalExpenses != 3 || stats.Summary.TotalAmount != 600 || stats.Summary.AvgAmount != 200 {
		t.Fatalf("unexpected summary: %+v", stats.Summary)
	}
	if len(stats.ByCategory) != 2 || stats.ByCategory[0].Category != models.ExpenseCourtBooking || stats.ByCategory[0].TotalAmount != 500 {
		t.Fatalf("unexpected category totals: %+v", stats.ByCategory)
	}
	if len(stats.ByMonth) != 2 || stats.ByMonth[0].Month != "2024-05" || stats.ByMonth[0].Count != 2 || stats.ByMonth[1].Month != "2024-04" {
		t.Fatalf("unexpected month totals: %+v", stats.ByMonth)
	}

	empty, err := f.svc.Stats(ctx, db.DateRange{From: time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)})
	if err != nil {
		t.Fatalf("stats: %v", err)
	}
	if empty.Summary.TotalExpenses != 0 || empty.ByCategory == nil || empty.ByMonth == nil {
		t.Fatalf("expected empty but non-nil stats, got %+v", empty)
	}
}
