package bookings

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/codr1/Shuttlers/internal/api/apiutil"
	"github.com/codr1/Shuttlers/internal/api/authz"
	"github.com/codr1/Shuttlers/internal/booking"
	"github.com/codr1/Shuttlers/internal/clock"
	"github.com/codr1/Shuttlers/internal/events"
	"github.com/codr1/Shuttlers/internal/models"
	"github.com/codr1/Shuttlers/internal/slotlock"
	"github.com/codr1/Shuttlers/internal/testutil"
)

type harness struct {
	mux     *http.ServeMux
	admin   *authz.AuthUser
	players []*authz.AuthUser
	venueID int64
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	database := testutil.NewTestDB(t)
	clk := clock.NewMock(time.Date(2024, 5, 20, 9, 0, 0, 0, time.UTC))
	InitHandlers(booking.NewService(database, slotlock.NewLocal(), &events.Recorder{}, clk, time.UTC))

	admin := testutil.CreateParticipant(t, database, "Admin", models.RoleAdmin)
	venue := testutil.CreateVenue(t, database, admin.ID, "Court A", 2, 600)
	h := &harness{
		mux:     http.NewServeMux(),
		admin:   authz.NewAuthUser(admin),
		venueID: venue.ID,
	}
	for _, p := range testutil.CreatePlayers(t, database, "Asha", "Bala", "Chitra") {
		h.players = append(h.players, authz.NewAuthUser(p))
	}

	h.mux.HandleFunc("POST /api/v1/bookings", HandleCreate)
	h.mux.HandleFunc("GET /api/v1/bookings", HandleList)
	h.mux.HandleFunc("GET /api/v1/bookings/availability", HandleAvailability)
	h.mux.HandleFunc("GET /api/v1/bookings/{id}", HandleDetail)
	h.mux.HandleFunc("POST /api/v1/bookings/{id}/cancel", HandleCancel)
	h.mux.HandleFunc("POST /api/v1/bookings/{id}/confirm", HandleConfirm)
	return h
}

func (h *harness) do(t *testing.T, user *authz.AuthUser, method, target string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encode body: %v", err)
		}
	}
	req := httptest.NewRequest(method, target, &buf)
	if user != nil {
		req = req.WithContext(authz.ContextWithUser(req.Context(), user))
	}
	rec := httptest.NewRecorder()
	h.mux.ServeHTTP(rec, req)
	return rec
}

func (h *harness) create(t *testing.T, start, end string, players ...*authz.AuthUser) *httptest.ResponseRecorder {
	t.Helper()
	ids := make([]int64, len(players))
	for i, p := range players {
		ids[i] = p.ID
	}
	return h.do(t, h.admin, http.MethodPost, "/api/v1/bookings", bookingRequest{
		VenueID:      h.venueID,
		CourtNumber:  1,
		BookingDate:  "2024-06-01",
		StartTime:    start,
		EndTime:      end,
		Participants: ids,
	})
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	if err := json.NewDecoder(rec.Body).Decode(&v); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	return v
}

func TestCreateRequiresAdmin(t *testing.T) {
	h := newHarness(t)

	if rec := h.do(t, nil, http.MethodPost, "/api/v1/bookings", bookingRequest{}); rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", rec.Code)
	}
	if rec := h.do(t, h.players[0], http.MethodPost, "/api/v1/bookings", bookingRequest{}); rec.Code != http.StatusForbidden {
		t.Fatalf("expected 403, got %d", rec.Code)
	}
	rec := h.do(t, h.admin, http.MethodPost, "/api/v1/bookings", map[string]any{"bookingDate": "01/06/2024"})
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for bad date, got %d", rec.Code)
	}
	if detail := decode[apiutil.ErrorBody](t, rec).Error; detail.Field != "bookingDate" {
		t.Fatalf("expected bookingDate field error, got %+v", detail)
	}
}

func TestCreateSplitsCostAndRejectsOverlap(t *testing.T) {
	h := newHarness(t)

	rec := h.create(t, "18:00", "19:00", h.players[0], h.players[1])
	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", rec.Code, rec.Body.String())
	}
	first := decode[models.Booking](t, rec)
	if first.TotalCost != 600 || first.CostPerParticipant != 300 || first.Status != models.BookingPending {
		t.Fatalf("unexpected booking: %+v", first)
	}

	rec = h.create(t, "18:30", "19:30", h.players[2])
	if rec.Code != http.StatusConflict {
		t.Fatalf("expected 409 for overlap, got %d", rec.Code)
	}
	if code := decode[apiutil.ErrorBody](t, rec).Error.Code; code != "conflict" {
		t.Fatalf("expected conflict code, got %q", code)
	}

	if rec := h.create(t, "19:00", "20:00", h.players[2]); rec.Code != http.StatusCreated {
		t.Fatalf("expected back-to-back booking to succeed, got %d", rec.Code)
	}

	target := fmt.Sprintf("/api/v1/bookings/availability?venueId=%d&bookingDate=2024-06-01&courtNumber=1&startTime=18:30&endTime=19:00", h.venueID)
	rec = h.do(t, h.players[0], http.MethodGet, target, nil)
	if got := decode[map[string]bool](t, rec); rec.Code != http.StatusOK || got["isAvailable"] {
		t.Fatalf("expected slot to be taken, got %d %v", rec.Code, got)
	}
	rec = h.do(t, h.players[0], http.MethodGet, fmt.Sprintf("%s&excludeBookingId=%d", target, first.ID), nil)
	if got := decode[map[string]bool](t, rec); !got["isAvailable"] {
		t.Fatalf("expected slot free when excluding its own booking, got %v", got)
	}
	rec = h.do(t, h.players[0], http.MethodGet, "/api/v1/bookings/availability?venueId=1&bookingDate=2024-06-01&courtNumber=0", nil)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for court 0, got %d", rec.Code)
	}
}

func TestPlayersSeeOnlyTheirBookings(t *testing.T) {
	h := newHarness(t)

	first := decode[models.Booking](t, h.create(t, "18:00", "19:00", h.players[0], h.players[1]))
	h.create(t, "19:00", "20:00", h.players[2])

	detail := fmt.Sprintf("/api/v1/bookings/%d", first.ID)
	if rec := h.do(t, h.players[2], http.MethodGet, detail, nil); rec.Code != http.StatusForbidden {
		t.Fatalf("expected 403 for a player not on the booking, got %d", rec.Code)
	}
	if rec := h.do(t, h.players[1], http.MethodGet, detail, nil); rec.Code != http.StatusOK {
		t.Fatalf("expected 200 for a rostered player, got %d", rec.Code)
	}

	list := decode[booking.ListResult](t, h.do(t, h.players[0], http.MethodGet, "/api/v1/bookings?participantId=999", nil))
	if list.Total != 1 || list.Bookings[0].ID != first.ID {
		t.Fatalf("expected player to see only their booking, got %+v", list)
	}
	all := decode[booking.ListResult](t, h.do(t, h.admin, http.MethodGet, "/api/v1/bookings", nil))
	if all.Total != 2 {
		t.Fatalf("expected admin to see 2 bookings, got %d", all.Total)
	}
	if rec := h.do(t, h.admin, http.MethodGet, "/api/v1/bookings?status=done", nil); rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for unknown status, got %d", rec.Code)
	}
}

func TestCancelAndTransitions(t *testing.T) {
	h := newHarness(t)

	b := decode[models.Booking](t, h.create(t, "18:00", "19:00", h.players[0], h.players[1]))
	base := fmt.Sprintf("/api/v1/bookings/%d", b.ID)

	if rec := h.do(t, h.players[0], http.MethodPost, base+"/confirm", nil); rec.Code != http.StatusForbidden {
		t.Fatalf("expected players to be refused confirm, got %d", rec.Code)
	}
	if rec := h.do(t, h.players[2], http.MethodPost, base+"/cancel", nil); rec.Code != http.StatusForbidden {
		t.Fatalf("expected 403 for an outsider cancelling, got %d", rec.Code)
	}

	rec := h.do(t, h.players[0], http.MethodPost, base+"/cancel", cancelRequest{Reason: "rain"})
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	cancelled := decode[models.Booking](t, rec)
	if cancelled.Status != models.BookingCancelled || cancelled.Cancellation == nil || cancelled.Cancellation.Reason != "rain" {
		t.Fatalf("unexpected cancelled booking: %+v", cancelled)
	}

	rec = h.do(t, h.players[1], http.MethodPost, base+"/cancel", nil)
	if code := decode[apiutil.ErrorBody](t, rec).Error.Code; rec.Code != http.StatusConflict || code != "already_cancelled" {
		t.Fatalf("expected 409 already_cancelled, got %d %q", rec.Code, code)
	}
	rec = h.do(t, h.admin, http.MethodPost, base+"/confirm", nil)
	if code := decode[apiutil.ErrorBody](t, rec).Error.Code; rec.Code != http.StatusConflict || code != "invalid_state" {
		t.Fatalf("expected 409 invalid_state, got %d %q", rec.Code, code)
	}
	if rec := h.do(t, h.admin, http.MethodPost, "/api/v1/bookings/9999/confirm", nil); rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rec.Code)
	}
}
