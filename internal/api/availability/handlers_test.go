package availability

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/codr1/Shuttlers/internal/api/apiutil"
	"github.com/codr1/Shuttlers/internal/api/authz"
	"github.com/codr1/Shuttlers/internal/availability"
	"github.com/codr1/Shuttlers/internal/clock"
	"github.com/codr1/Shuttlers/internal/events"
	"github.com/codr1/Shuttlers/internal/models"
	"github.com/codr1/Shuttlers/internal/testutil"
)

var ist = time.FixedZone("IST", 5*3600+1800)

type harness struct {
	mux     *http.ServeMux
	admin   *authz.AuthUser
	players []*authz.AuthUser
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	database := testutil.NewTestDB(t)
	schedule, err := availability.NewSchedule("0 10 * * 3", time.Friday, time.Wednesday, models.MustTimeOfDay("10:00"), ist)
	if err != nil {
		t.Fatalf("schedule: %v", err)
	}
	// Wednesday, poll day.
	clk := clock.NewMock(time.Date(2024, 6, 5, 10, 0, 0, 0, ist))
	InitHandlers(availability.NewPoller(database, schedule, &events.Recorder{}, clk, 2))

	mux := http.NewServeMux()
	mux.HandleFunc("POST /api/v1/availability/respond", HandleRespond)
	mux.HandleFunc("GET /api/v1/availability/history", HandleHistory)
	mux.HandleFunc("GET /api/v1/availability/current-week", HandleCurrentWeek)
	mux.HandleFunc("POST /api/v1/availability/poll", HandlePoll)
	mux.HandleFunc("GET /api/v1/availability/status", HandleStatus)

	h := &harness{
		mux:   mux,
		admin: authz.NewAuthUser(testutil.CreateParticipant(t, database, "Admin", models.RoleAdmin)),
	}
	for _, p := range testutil.CreatePlayers(t, database, "P1", "P2", "P3") {
		h.players = append(h.players, authz.NewAuthUser(p))
	}
	return h
}

func (h *harness) do(t *testing.T, user *authz.AuthUser, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encode body: %v", err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if user != nil {
		req = req.WithContext(authz.ContextWithUser(req.Context(), user))
	}
	rec := httptest.NewRecorder()
	h.mux.ServeHTTP(rec, req)
	return rec
}

func errorCode(t *testing.T, rec *httptest.ResponseRecorder) string {
	t.Helper()
	var body apiutil.ErrorBody
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatalf("decode error body: %v", err)
	}
	return body.Error.Code
}

func TestAdminOnlyRoutes(t *testing.T) {
	h := newHarness(t)

	for _, path := range []string{"/api/v1/availability/current-week", "/api/v1/availability/status"} {
		rec := h.do(t, h.players[0], http.MethodGet, path, nil)
		if rec.Code != http.StatusForbidden {
			t.Fatalf("%s: expected 403 for a player, got %d", path, rec.Code)
		}
	}
	rec := h.do(t, h.players[0], http.MethodPost, "/api/v1/availability/poll", nil)
	if rec.Code != http.StatusForbidden {
		t.Fatalf("poll: expected 403 for a player, got %d", rec.Code)
	}
	rec = h.do(t, nil, http.MethodPost, "/api/v1/availability/respond", map[string]any{"gameDate": "2024-06-07", "isAvailable": true})
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("respond: expected 401 without a user, got %d", rec.Code)
	}
}

func TestRespondValidation(t *testing.T) {
	h := newHarness(t)

	rec := h.do(t, h.players[0], http.MethodPost, "/api/v1/availability/respond", map[string]any{"gameDate": "07/06/2024", "isAvailable": true})
	if rec.Code != http.StatusBadRequest || errorCode(t, rec) != "validation" {
		t.Fatalf("expected 400 validation for a bad date, got %d", rec.Code)
	}
	rec = h.do(t, h.players[0], http.MethodPost, "/api/v1/availability/respond", map[string]any{"gameDate": "2024-06-07"})
	if rec.Code != http.StatusBadRequest || errorCode(t, rec) != "validation" {
		t.Fatalf("expected 400 validation without isAvailable, got %d", rec.Code)
	}
}

func TestPollRespondSummary(t *testing.T) {
	h := newHarness(t)

	rec := h.do(t, h.admin, http.MethodPost, "/api/v1/availability/poll", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("poll: status %d body %s", rec.Code, rec.Body.String())
	}
	var run availability.RunResult
	if err := json.NewDecoder(rec.Body).Decode(&run); err != nil {
		t.Fatalf("decode run: %v", err)
	}
	if run.Participants != 3 || run.Created != 3 {
		t.Fatalf("expected 3 records created, got %+v", run)
	}

	rec = h.do(t, h.players[0], http.MethodPost, "/api/v1/availability/respond", map[string]any{"gameDate": "2024-06-07", "isAvailable": true})
	if rec.Code != http.StatusOK {
		t.Fatalf("respond: status %d body %s", rec.Code, rec.Body.String())
	}
	var record models.Availability
	if err := json.NewDecoder(rec.Body).Decode(&record); err != nil {
		t.Fatalf("decode record: %v", err)
	}
	if record.IsAvailable == nil || !*record.IsAvailable || !record.Notified {
		t.Fatalf("expected an answered, notified record, got %+v", record)
	}
	rec = h.do(t, h.players[1], http.MethodPost, "/api/v1/availability/respond", map[string]any{"gameDate": "2024-06-07", "isAvailable": false})
	if rec.Code != http.StatusOK {
		t.Fatalf("respond: status %d body %s", rec.Code, rec.Body.String())
	}

	// A second poll in the same week must keep the answers.
	rec = h.do(t, h.admin, http.MethodPost, "/api/v1/availability/poll", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("second poll: status %d", rec.Code)
	}

	rec = h.do(t, h.admin, http.MethodGet, "/api/v1/availability/current-week", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("summary: status %d body %s", rec.Code, rec.Body.String())
	}
	var summary models.AvailabilitySummary
	if err := json.NewDecoder(rec.Body).Decode(&summary); err != nil {
		t.Fatalf("decode summary: %v", err)
	}
	if summary.AvailableCount != 1 || summary.UnavailableCount != 1 || summary.AwaitingCount != 1 {
		t.Fatalf("unexpected partition: %+v", summary)
	}
	if summary.NonRespondedCount != 0 || summary.TotalParticipants != 3 {
		t.Fatalf("expected every player to hold a record, got %+v", summary)
	}
	if summary.Available[0].ID != h.players[0].ID {
		t.Fatalf("expected P1 available, got %+v", summary.Available)
	}

	rec = h.do(t, h.players[0], http.MethodGet, "/api/v1/availability/history", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("history: status %d", rec.Code)
	}
	var history availability.HistoryResult
	if err := json.NewDecoder(rec.Body).Decode(&history); err != nil {
		t.Fatalf("decode history: %v", err)
	}
	if history.Total != 1 || len(history.Records) != 1 {
		t.Fatalf("expected one record in history, got %+v", history)
	}
}

func TestStatus(t *testing.T) {
	h := newHarness(t)

	rec := h.do(t, h.admin, http.MethodGet, "/api/v1/availability/status", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status: %d", rec.Code)
	}
	var status availability.Status
	if err := json.NewDecoder(rec.Body).Decode(&status); err != nil {
		t.Fatalf("decode status: %v", err)
	}
	if status.Cron != "0 10 * * 3" {
		t.Fatalf("unexpected cron %q", status.Cron)
	}
	if status.NextTrigger.IsZero() {
		t.Fatal("expected a next trigger time")
	}
}
