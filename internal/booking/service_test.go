package booking

import (
	"context"
	"errors"
	"math"
	"testing"
	"time"

	"github.com/codr1/Shuttlers/internal/clock"
	"github.com/codr1/Shuttlers/internal/db"
	"github.com/codr1/Shuttlers/internal/events"
	"github.com/codr1/Shuttlers/internal/models"
	"github.com/codr1/Shuttlers/internal/slotlock"
	"github.com/codr1/Shuttlers/internal/testutil"
)

var ist = time.FixedZone("IST", 5*3600+1800)

type fixture struct {
	svc      *Service
	db       *db.DB
	clock    *clock.Mock
	recorder *events.Recorder
	admin    models.Participant
	players  []models.Participant
	venue    models.Venue
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	database := testutil.NewTestDB(t)
	clk := clock.NewMock(time.Date(2024, 5, 20, 9, 0, 0, 0, ist))
	rec := &events.Recorder{}
	admin := testutil.CreateParticipant(t, database, "Admin", models.RoleAdmin)
	return &fixture{
		svc:      NewService(database, slotlock.NewLocal(), rec, clk, ist),
		db:       database,
		clock:    clk,
		recorder: rec,
		admin:    admin,
		players:  testutil.CreatePlayers(t, database, "Asha", "Bala", "Chitra"),
		venue:    testutil.CreateVenue(t, database, admin.ID, "Court A", 2, 600),
	}
}

func (f *fixture) params(start, end string, participants ...models.Participant) CreateParams {
	ids := make([]int64, len(participants))
	for i, p := range participants {
		ids[i] = p.ID
	}
	return CreateParams{
		VenueID:      f.venue.ID,
		CourtNumber:  1,
		Date:         time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC),
		StartTime:    models.MustTimeOfDay(start),
		EndTime:      models.MustTimeOfDay(end),
		Participants: ids,
		CreatedBy:    f.admin.ID,
	}
}

func TestCreateRejectsOverlappingSlot(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	first, err := f.svc.Create(ctx, f.params("18:00", "19:00", f.players[0]))
	if err != nil {
		t.Fatalf("create first booking: %v", err)
	}
	if _, err := f.svc.Confirm(ctx, first.ID); err != nil {
		t.Fatalf("confirm: %v", err)
	}

	if _, err := f.svc.Create(ctx, f.params("18:30", "19:30", f.players[1])); !errors.Is(err, models.ErrConflict) {
		t.Fatalf("expected ErrConflict for overlapping slot, got %v", err)
	}

	adjacent, err := f.svc.Create(ctx, f.params("19:00", "20:00", f.players[1]))
	if err != nil {
		t.Fatalf("expected adjacent slot to be bookable, got %v", err)
	}
	if adjacent.Status != models.BookingPending {
		t.Fatalf("expected pending status, got %s", adjacent.Status)
	}

	other := f.params("18:30", "19:30", f.players[2])
	other.CourtNumber = 2
	if _, err := f.svc.Create(ctx, other); err != nil {
		t.Fatalf("expected other court to be free, got %v", err)
	}

	if got := f.recorder.Count(events.BookingCreated); got != 3 {
		t.Fatalf("expected 3 booking.created events, got %d", got)
	}
}

func TestCostsFollowRoster(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	b, err := f.svc.Create(ctx, f.params("18:00", "19:30", f.players...))
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if b.Duration != 1.5 || b.HourlyRate != 600 {
		t.Fatalf("expected 1.5h at 600, got %.2fh at %.2f", b.Duration, b.HourlyRate)
	}
	if b.TotalCost != 900 || b.CostPerParticipant != 300 {
		t.Fatalf("expected 900/300, got %.2f/%.2f", b.TotalCost, b.CostPerParticipant)
	}

	roster := []int64{f.players[0].ID, f.players[1].ID}
	updated, err := f.svc.Update(ctx, b.ID, UpdateParams{Participants: &roster})
	if err != nil {
		t.Fatalf("update roster: %v", err)
	}
	if updated.TotalCost != 900 || updated.CostPerParticipant != 450 {
		t.Fatalf("expected 900/450 after removing a player, got %.2f/%.2f", updated.TotalCost, updated.CostPerParticipant)
	}
	if len(updated.Participants) != 2 {
		t.Fatalf("expected 2 participants, got %v", updated.Participants)
	}

	rate := 800.0
	updated, err = f.svc.Update(ctx, b.ID, UpdateParams{HourlyRate: &rate})
	if err != nil {
		t.Fatalf("update rate: %v", err)
	}
	if updated.TotalCost != 1200 || updated.CostPerParticipant != 600 {
		t.Fatalf("expected 1200/600 after rate change, got %.2f/%.2f", updated.TotalCost, updated.CostPerParticipant)
	}
}

// hookLocker runs before once, ahead of the first lock it is asked for.
type hookLocker struct {
	inner  slotlock.Locker
	before func()
	fired  bool
}

func (l *hookLocker) Lock(ctx context.Context, key string) (func(), error) {
	if !l.fired && l.before != nil {
		l.fired = true
		l.before()
	}
	return l.inner.Lock(ctx, key)
}

func TestUpdateRecomputesFromLockedRow(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	locker := &hookLocker{inner: slotlock.NewLocal()}
	svc := NewService(f.db, locker, f.recorder, f.clock, ist)

	b, err := f.svc.Create(ctx, f.params("18:00", "19:30", f.players...))
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	// A roster edit lands after the rate edit has read the booking but before
	// it holds the slot.
	roster := []int64{f.players[0].ID, f.players[1].ID}
	locker.before = func() {
		if _, err := svc.Update(ctx, b.ID, UpdateParams{Participants: &roster}); err != nil {
			t.Errorf("concurrent roster update: %v", err)
		}
	}
	rate := 800.0
	updated, err := svc.Update(ctx, b.ID, UpdateParams{HourlyRate: &rate})
	if err != nil {
		t.Fatalf("update rate: %v", err)
	}
	if len(updated.Participants) != 2 {
		t.Fatalf("expected the roster edit to survive, got %v", updated.Participants)
	}
	if updated.TotalCost != 1200 || updated.CostPerParticipant != 600 {
		t.Fatalf("expected 1200/600, got %.2f/%.2f", updated.TotalCost, updated.CostPerParticipant)
	}
}

func TestUpdateRetriesWhenSlotMoves(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	locker := &hookLocker{inner: slotlock.NewLocal()}
	svc := NewService(f.db, locker, f.recorder, f.clock, ist)

	b, err := f.svc.Create(ctx, f.params("18:00", "19:00", f.players[0], f.players[1]))
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	court := 2
	locker.before = func() {
		if _, err := svc.Update(ctx, b.ID, UpdateParams{CourtNumber: &court}); err != nil {
			t.Errorf("concurrent court move: %v", err)
		}
	}
	rate := 1000.0
	updated, err := svc.Update(ctx, b.ID, UpdateParams{HourlyRate: &rate})
	if err != nil {
		t.Fatalf("update rate: %v", err)
	}
	if updated.CourtNumber != 2 || updated.TotalCost != 1000 || updated.CostPerParticipant != 500 {
		t.Fatalf("expected court 2 at 1000/500, got court %d at %.2f/%.2f", updated.CourtNumber, updated.TotalCost, updated.CostPerParticipant)
	}
}

func TestUpdateRechecksSlot(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	if _, err := f.svc.Create(ctx, f.params("18:00", "19:00", f.players[0])); err != nil {
		t.Fatalf("create: %v", err)
	}
	second, err := f.svc.Create(ctx, f.params("19:00", "20:00", f.players[1]))
	if err != nil {
		t.Fatalf("create second: %v", err)
	}

	start := models.MustTimeOfDay("18:30")
	if _, err := f.svc.Update(ctx, second.ID, UpdateParams{StartTime: &start}); !errors.Is(err, models.ErrConflict) {
		t.Fatalf("expected ErrConflict moving into an occupied slot, got %v", err)
	}

	end := models.MustTimeOfDay("21:00")
	moved, err := f.svc.Update(ctx, second.ID, UpdateParams{EndTime: &end})
	if err != nil {
		t.Fatalf("expected extending within own slot to succeed, got %v", err)
	}
	if moved.Duration != 2 || moved.TotalCost != 1200 {
		t.Fatalf("expected duration 2 and cost 1200, got %.2f and %.2f", moved.Duration, moved.TotalCost)
	}
}

func TestUpdateRejectsTerminalBookings(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	b, err := f.svc.Create(ctx, f.params("18:00", "19:00", f.players[0]))
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if _, err := f.svc.Complete(ctx, b.ID); err != nil {
		t.Fatalf("complete: %v", err)
	}
	notes := "late"
	if _, err := f.svc.Update(ctx, b.ID, UpdateParams{Notes: &notes}); !errors.Is(err, models.ErrInvalidState) {
		t.Fatalf("expected ErrInvalidState, got %v", err)
	}
	if _, err := f.svc.Confirm(ctx, b.ID); !errors.Is(err, models.ErrInvalidState) {
		t.Fatalf("expected ErrInvalidState confirming a completed booking, got %v", err)
	}
}

func TestCancel(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	b, err := f.svc.Create(ctx, f.params("18:00", "19:00", f.players[0]))
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	if _, err := f.svc.Cancel(ctx, b.ID, f.players[1], ""); !errors.Is(err, models.ErrForbidden) {
		t.Fatalf("expected ErrForbidden for outsider, got %v", err)
	}

	cancelled, err := f.svc.Cancel(ctx, b.ID, f.players[0], "rain")
	if err != nil {
		t.Fatalf("cancel: %v", err)
	}
	if cancelled.Status != models.BookingCancelled || cancelled.Cancellation == nil {
		t.Fatalf("expected cancellation record, got %+v", cancelled)
	}
	if cancelled.Cancellation.CancelledBy != f.players[0].ID || cancelled.Cancellation.Reason != "rain" {
		t.Fatalf("unexpected cancellation %+v", cancelled.Cancellation)
	}

	if _, err := f.svc.Cancel(ctx, b.ID, f.admin, ""); !errors.Is(err, models.ErrAlreadyCancelled) {
		t.Fatalf("expected ErrAlreadyCancelled, got %v", err)
	}

	// The freed slot can be booked again.
	if _, err := f.svc.Create(ctx, f.params("18:00", "19:00", f.players[1])); err != nil {
		t.Fatalf("expected cancelled slot to be free, got %v", err)
	}

	done, err := f.svc.Create(ctx, f.params("07:00", "08:00", f.players[1]))
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if _, err := f.svc.Complete(ctx, done.ID); err != nil {
		t.Fatalf("complete: %v", err)
	}
	if _, err := f.svc.Cancel(ctx, done.ID, f.admin, ""); !errors.Is(err, models.ErrInvalidState) {
		t.Fatalf("expected ErrInvalidState cancelling a completed booking, got %v", err)
	}
}

func TestCreateValidation(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	inactive := testutil.CreateParticipant(t, f.db, "Gone", models.RolePlayer)
	if _, err := f.db.Queries.DeactivateParticipant(ctx, inactive.ID, testutil.FixtureTime); err != nil {
		t.Fatalf("deactivate: %v", err)
	}

	tests := []struct {
		name   string
		mutate func(p *CreateParams)
		want   error
	}{
		{"past date", func(p *CreateParams) { p.Date = time.Date(2024, 5, 19, 0, 0, 0, 0, time.UTC) }, models.ErrValidation},
		{"end before start", func(p *CreateParams) { p.EndTime = models.MustTimeOfDay("17:00") }, models.ErrValidation},
		{"duration mismatch", func(p *CreateParams) { p.Duration = 2 }, models.ErrValidation},
		{"unknown court", func(p *CreateParams) { p.CourtNumber = 9 }, models.ErrValidation},
		{"duplicate participant", func(p *CreateParams) { p.Participants = append(p.Participants, p.Participants[0]) }, models.ErrValidation},
		{"no participants", func(p *CreateParams) { p.Participants = nil }, models.ErrValidation},
		{"negative rate", func(p *CreateParams) { r := -1.0; p.HourlyRate = &r }, models.ErrValidation},
		{"unknown venue", func(p *CreateParams) { p.VenueID = 999 }, models.ErrNotFound},
		{"unknown participant", func(p *CreateParams) { p.Participants = []int64{999} }, models.ErrNotFound},
		{"inactive participant", func(p *CreateParams) { p.Participants = []int64{inactive.ID} }, models.ErrNotFound},
		{"admin as participant", func(p *CreateParams) { p.Participants = []int64{f.admin.ID} }, models.ErrNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := f.params("18:00", "19:00", f.players[0])
			tt.mutate(&p)
			if _, err := f.svc.Create(ctx, p); !errors.Is(err, tt.want) {
				t.Fatalf("expected %v, got %v", tt.want, err)
			}
		})
	}

	if _, err := f.db.Queries.DeactivateVenue(ctx, f.venue.ID, testutil.FixtureTime); err != nil {
		t.Fatalf("deactivate venue: %v", err)
	}
	if _, err := f.svc.Create(ctx, f.params("18:00", "19:00", f.players[0])); !errors.Is(err, models.ErrInvalidState) {
		t.Fatalf("expected ErrInvalidState for inactive venue, got %v", err)
	}
}

func TestCheckAvailability(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	b, err := f.svc.Create(ctx, f.params("18:00", "19:00", f.players[0]))
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	q := AvailabilityQuery{
		VenueID:     f.venue.ID,
		Date:        b.Date,
		CourtNumber: 1,
		StartTime:   "18:30",
		EndTime:     "19:30",
	}
	free, err := f.svc.CheckAvailability(ctx, q)
	if err != nil || free {
		t.Fatalf("expected occupied slot, got free=%v err=%v", free, err)
	}
	q.ExcludeID = b.ID
	free, err = f.svc.CheckAvailability(ctx, q)
	if err != nil || !free {
		t.Fatalf("expected slot free when excluding own booking, got free=%v err=%v", free, err)
	}
	q.StartTime = "6pm"
	if _, err := f.svc.CheckAvailability(ctx, q); !errors.Is(err, models.ErrValidation) {
		t.Fatalf("expected ErrValidation for malformed time, got %v", err)
	}
}

func TestStatsAndOverdue(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	a, err := f.svc.Create(ctx, f.params("18:00", "19:00", f.players[0]))
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	b, err := f.svc.Create(ctx, f.params("19:00", "21:00", f.players[0], f.players[1]))
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if _, err := f.svc.Cancel(ctx, b.ID, f.admin, ""); err != nil {
		t.Fatalf("cancel: %v", err)
	}

	stats, err := f.svc.Stats(ctx, db.BookingFilter{ParticipantID: f.players[0].ID})
	if err != nil {
		t.Fatalf("stats: %v", err)
	}
	if stats.TotalBookings != 2 || stats.TotalCost != 1800 || stats.Pending != 1 || stats.Cancelled != 1 {
		t.Fatalf("unexpected stats %+v", stats)
	}
	if stats.AvgCostPerBooking != 900 {
		t.Fatalf("expected average 900, got %.2f", stats.AvgCostPerBooking)
	}

	f.clock.Set(time.Date(2024, 6, 2, 1, 0, 0, 0, ist))
	n, err := f.svc.MarkOverduePayments(ctx)
	if err != nil {
		t.Fatalf("mark overdue: %v", err)
	}
	if n != 1 {
		t.Fatalf("expected 1 overdue booking, got %d", n)
	}
	got, err := f.svc.Get(ctx, a.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.PaymentStatus != models.PaymentStatusOverdue {
		t.Fatalf("expected overdue payment status, got %s", got.PaymentStatus)
	}
}

func TestSlotFree(t *testing.T) {
	existing := []db.SlotBooking{
		{ID: 1, StartTime: "18:00", EndTime: "19:00", Status: models.BookingConfirmed},
		{ID: 2, StartTime: "20:00", EndTime: "21:00", Status: models.BookingCancelled},
	}
	tests := []struct {
		start, end models.TimeOfDay
		want       bool
	}{
		{"17:00", "18:00", true},
		{"19:00", "20:00", true},
		{"18:30", "19:30", false},
		{"17:30", "18:01", false},
		{"17:00", "20:00", false},
		{"18:15", "18:45", false},
		{"20:00", "21:00", true},
	}
	for _, tt := range tests {
		if got := SlotFree(existing, tt.start, tt.end); got != tt.want {
			t.Errorf("SlotFree(%s-%s) = %v, want %v", tt.start, tt.end, got, tt.want)
		}
	}
}

func TestAllocate(t *testing.T) {
	tests := []struct {
		rate, hours  float64
		participants int
		total, each  float64
	}{
		{600, 1.5, 3, 900, 300},
		{600, 1.5, 2, 900, 450},
		{0, 2, 4, 0, 0},
		{500, 1, 0, 500, 0},
		{700, 1, 3, 700, 233.33},
	}
	for _, tt := range tests {
		got := Allocate(tt.rate, tt.hours, tt.participants)
		if got.TotalCost != tt.total || math.Abs(got.CostPerParticipant-tt.each) > 0.01 {
			t.Errorf("Allocate(%v, %v, %d) = %+v, want %v/%v", tt.rate, tt.hours, tt.participants, got, tt.total, tt.each)
		}
	}
}
