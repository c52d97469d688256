package availability

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/codr1/Shuttlers/internal/clock"
	"github.com/codr1/Shuttlers/internal/config"
	"github.com/codr1/Shuttlers/internal/db"
	"github.com/codr1/Shuttlers/internal/events"
	"github.com/codr1/Shuttlers/internal/models"
	"github.com/codr1/Shuttlers/internal/testutil"
)

var ist = time.FixedZone("IST", 5*3600+1800)

func date(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func clubSchedule(t *testing.T) Schedule {
	t.Helper()
	s, err := NewSchedule("0 10 * * 3", time.Friday, time.Wednesday, models.MustTimeOfDay("10:00"), ist)
	if err != nil {
		t.Fatalf("schedule: %v", err)
	}
	return s
}

type fixture struct {
	poller   *Poller
	db       *db.DB
	clock    *clock.Mock
	recorder *events.Recorder
	players  []models.Participant
}

func newFixture(t *testing.T, players int) *fixture {
	t.Helper()
	database := testutil.NewTestDB(t)
	// Wednesday 2024-06-05, the moment the weekly poll fires.
	clk := clock.NewMock(time.Date(2024, 6, 5, 10, 0, 0, 0, ist))
	rec := &events.Recorder{}
	testutil.CreateParticipant(t, database, "Admin", models.RoleAdmin)
	names := make([]string, players)
	for i := range names {
		names[i] = fmt.Sprintf("Player %02d", i+1)
	}
	return &fixture{
		poller:   NewPoller(database, clubSchedule(t), rec, clk, 4),
		db:       database,
		clock:    clk,
		recorder: rec,
		players:  testutil.CreatePlayers(t, database, names...),
	}
}

func TestScheduleWindows(t *testing.T) {
	s := clubSchedule(t)

	tests := []struct {
		name      string
		now       time.Time
		weekStart time.Time
		gameDate  time.Time
	}{
		{"poll day", time.Date(2024, 6, 5, 10, 0, 0, 0, ist), date(2024, 6, 5), date(2024, 6, 7)},
		{"game day", time.Date(2024, 6, 7, 8, 0, 0, 0, ist), date(2024, 6, 5), date(2024, 6, 7)},
		{"after game", time.Date(2024, 6, 8, 12, 0, 0, 0, ist), date(2024, 6, 12), date(2024, 6, 14)},
		{"tuesday before poll", time.Date(2024, 6, 11, 23, 0, 0, 0, ist), date(2024, 6, 12), date(2024, 6, 14)},
		// 20:00 UTC Tuesday is already Wednesday in IST.
		{"utc late evening", time.Date(2024, 6, 4, 20, 0, 0, 0, time.UTC), date(2024, 6, 5), date(2024, 6, 7)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := s.UpcomingWindow(tt.now)
			if !w.WeekStart.Equal(tt.weekStart) {
				t.Errorf("week start: got %s, want %s", models.DateKey(w.WeekStart), models.DateKey(tt.weekStart))
			}
			if !w.WeekEnd.Equal(tt.weekStart.AddDate(0, 0, 6)) {
				t.Errorf("week end: got %s", models.DateKey(w.WeekEnd))
			}
			want := time.Date(tt.gameDate.Year(), tt.gameDate.Month(), tt.gameDate.Day(), 10, 0, 0, 0, ist)
			if !w.GameDate.Equal(want) {
				t.Errorf("game date: got %s, want %s", w.GameDate, want)
			}
		})
	}
}

func TestCurrentWindowStaysOnWeekUntilNextStart(t *testing.T) {
	s := clubSchedule(t)

	// Saturday after the game: the current cycle is still the one that began Wednesday.
	w := s.CurrentWindow(time.Date(2024, 6, 8, 12, 0, 0, 0, ist))
	if !w.WeekStart.Equal(date(2024, 6, 5)) {
		t.Fatalf("current week start: got %s", models.DateKey(w.WeekStart))
	}
	if got := models.DateKey(w.GameDate.In(ist)); got != "2024-06-07" {
		t.Fatalf("current game date: got %s", got)
	}
}

func TestNextTrigger(t *testing.T) {
	s := clubSchedule(t)

	next := s.NextTrigger(time.Date(2024, 6, 5, 10, 0, 0, 0, ist))
	want := time.Date(2024, 6, 12, 10, 0, 0, 0, ist)
	if !next.Equal(want) {
		t.Fatalf("next trigger: got %s, want %s", next, want)
	}
}

func TestScheduleFromConfig(t *testing.T) {
	s, err := ScheduleFromConfig(config.AvailabilityConfig{
		Cron:             "0 9 * * 1",
		GameWeekday:      "saturday",
		WeekStartWeekday: "monday",
		GameTime:         "7:30",
	}, ist)
	if err != nil {
		t.Fatalf("schedule from config: %v", err)
	}
	if s.GameWeekday != time.Saturday || s.WeekStartWeekday != time.Monday || s.GameTime != "07:30" {
		t.Fatalf("unexpected schedule: %+v", s)
	}

	if _, err := ScheduleFromConfig(config.AvailabilityConfig{
		Cron: "not a cron", GameWeekday: "friday", WeekStartWeekday: "wednesday", GameTime: "10:00",
	}, ist); err == nil {
		t.Fatal("expected error for invalid cron")
	}
}

func TestRunIsIdempotentWithinWeek(t *testing.T) {
	f := newFixture(t, 10)
	ctx := context.Background()

	first, err := f.poller.Run(ctx)
	if err != nil {
		t.Fatalf("first run: %v", err)
	}
	if first.Participants != 10 || first.Created != 10 || first.Refreshed != 0 {
		t.Fatalf("first run: %+v", first)
	}
	if got := f.recorder.Count(events.AvailabilityRequested); got != 10 {
		t.Fatalf("expected 10 requests, got %d", got)
	}

	if _, err := f.poller.Respond(ctx, f.players[0].ID, date(2024, 6, 7), true); err != nil {
		t.Fatalf("respond: %v", err)
	}

	f.clock.Advance(2 * time.Hour)
	second, err := f.poller.Run(ctx)
	if err != nil {
		t.Fatalf("second run: %v", err)
	}
	if second.Created != 0 || second.Refreshed != 10 {
		t.Fatalf("second run: %+v", second)
	}

	records, err := f.db.Queries.ListAvailabilityForWeek(ctx, date(2024, 6, 5))
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(records) != 10 {
		t.Fatalf("expected 10 records after re-run, got %d", len(records))
	}
	for _, r := range records {
		if !r.Notified || r.NotifiedAt == nil {
			t.Errorf("participant %d not marked notified", r.ParticipantID)
		}
		if r.ParticipantID == f.players[0].ID {
			if r.IsAvailable == nil || !*r.IsAvailable {
				t.Errorf("re-run overwrote the recorded answer: %+v", r.IsAvailable)
			}
			if !r.NotifiedAt.Equal(f.clock.Now()) {
				t.Errorf("notified stamp not refreshed: %s", r.NotifiedAt)
			}
		} else if r.IsAvailable != nil {
			t.Errorf("participant %d has an answer they never gave", r.ParticipantID)
		}
	}
}

func TestRespondLatestAnswerWins(t *testing.T) {
	f := newFixture(t, 2)
	ctx := context.Background()

	// Responding before any poll creates the record.
	a, err := f.poller.Respond(ctx, f.players[0].ID, date(2024, 6, 7), true)
	if err != nil {
		t.Fatalf("respond: %v", err)
	}
	if a.Notified || a.IsAvailable == nil || !*a.IsAvailable {
		t.Fatalf("unexpected record: %+v", a)
	}
	if models.DateKey(a.WeekStart) != "2024-06-05" || models.DateKey(a.WeekEnd) != "2024-06-11" {
		t.Fatalf("unexpected window: %s..%s", models.DateKey(a.WeekStart), models.DateKey(a.WeekEnd))
	}

	f.clock.Advance(time.Hour)
	a, err = f.poller.Respond(ctx, f.players[0].ID, date(2024, 6, 7), false)
	if err != nil {
		t.Fatalf("respond again: %v", err)
	}
	if *a.IsAvailable {
		t.Fatal("expected latest answer to win")
	}
	if a.ResponseDate == nil || !a.ResponseDate.Equal(f.clock.Now()) {
		t.Fatalf("response date not updated: %v", a.ResponseDate)
	}

	history, err := f.poller.History(ctx, f.players[0].ID, db.Page{})
	if err != nil {
		t.Fatalf("history: %v", err)
	}
	if history.Total != 1 || len(history.Records) != 1 {
		t.Fatalf("expected one record in history, got %+v", history)
	}
}

func TestRespondErrors(t *testing.T) {
	f := newFixture(t, 1)
	ctx := context.Background()

	if _, err := f.poller.Respond(ctx, 9999, date(2024, 6, 7), true); !errors.Is(err, models.ErrNotFound) {
		t.Fatalf("expected ErrNotFound for unknown participant, got %v", err)
	}
	admin := testutil.CreateParticipant(t, f.db, "Second Admin", models.RoleAdmin)
	if _, err := f.poller.Respond(ctx, admin.ID, date(2024, 6, 7), true); !errors.Is(err, models.ErrNotFound) {
		t.Fatalf("expected ErrNotFound for admin, got %v", err)
	}
	if _, err := f.poller.Respond(ctx, f.players[0].ID, time.Time{}, true); !errors.Is(err, models.ErrValidation) {
		t.Fatalf("expected ErrValidation for missing date, got %v", err)
	}
}

func TestCurrentWeekSummary(t *testing.T) {
	f := newFixture(t, 4)
	ctx := context.Background()

	if _, err := f.poller.Respond(ctx, f.players[0].ID, date(2024, 6, 7), true); err != nil {
		t.Fatalf("respond: %v", err)
	}
	if _, err := f.poller.Respond(ctx, f.players[1].ID, date(2024, 6, 7), true); err != nil {
		t.Fatalf("respond: %v", err)
	}
	if _, err := f.poller.Respond(ctx, f.players[2].ID, date(2024, 6, 7), false); err != nil {
		t.Fatalf("respond: %v", err)
	}

	s, err := f.poller.CurrentWeekSummary(ctx)
	if err != nil {
		t.Fatalf("summary: %v", err)
	}
	if s.TotalParticipants != 4 || s.AvailableCount != 2 || s.UnavailableCount != 1 || s.NonRespondedCount != 1 {
		t.Fatalf("unexpected counts: %+v", s)
	}
	if s.RespondedCount != 3 || s.ResponseRate != 75 || s.AwaitingCount != 0 {
		t.Fatalf("responded %d rate %d awaiting %d", s.RespondedCount, s.ResponseRate, s.AwaitingCount)
	}
	if s.NonResponded[0].ID != f.players[3].ID {
		t.Fatalf("expected %s to be non-responded, got %+v", f.players[3].Name, s.NonResponded)
	}
	if s.Available[0].Name != "Player 01" {
		t.Fatalf("expected names on summary entries, got %+v", s.Available)
	}
}

func TestCurrentWeekSummaryAfterPoll(t *testing.T) {
	f := newFixture(t, 3)
	ctx := context.Background()

	if _, err := f.poller.Run(ctx); err != nil {
		t.Fatalf("run: %v", err)
	}
	if _, err := f.poller.Respond(ctx, f.players[0].ID, date(2024, 6, 7), true); err != nil {
		t.Fatalf("respond: %v", err)
	}

	s, err := f.poller.CurrentWeekSummary(ctx)
	if err != nil {
		t.Fatalf("summary: %v", err)
	}
	// Everyone holds a record once the poll has run.
	if s.NonRespondedCount != 0 || len(s.NonResponded) != 0 {
		t.Fatalf("expected no non-responded participants, got %+v", s.NonResponded)
	}
	if s.AwaitingCount != 2 || s.AvailableCount != 1 || s.RespondedCount != 1 || s.ResponseRate != 33 {
		t.Fatalf("unexpected counts: %+v", s)
	}
}

func TestCurrentWeekSummaryEmpty(t *testing.T) {
	f := newFixture(t, 0)

	s, err := f.poller.CurrentWeekSummary(context.Background())
	if err != nil {
		t.Fatalf("summary: %v", err)
	}
	if s.TotalParticipants != 0 || s.ResponseRate != 0 || s.Available == nil {
		t.Fatalf("unexpected empty summary: %+v", s)
	}
}
