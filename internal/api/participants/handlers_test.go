package participants

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"golang.org/x/crypto/bcrypt"

	"github.com/codr1/Shuttlers/internal/api/apiutil"
	"github.com/codr1/Shuttlers/internal/api/authz"
	"github.com/codr1/Shuttlers/internal/clock"
	"github.com/codr1/Shuttlers/internal/models"
	"github.com/codr1/Shuttlers/internal/participants"
	"github.com/codr1/Shuttlers/internal/testutil"
)

type harness struct {
	mux     *http.ServeMux
	admin   *authz.AuthUser
	players []*authz.AuthUser
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	database := testutil.NewTestDB(t)
	clk := clock.NewMock(time.Date(2024, 6, 1, 9, 0, 0, 0, time.UTC))
	InitHandlers(participants.NewService(database, clk, "IN").WithHashCost(bcrypt.MinCost))

	mux := http.NewServeMux()
	mux.HandleFunc("POST /api/v1/participants", HandleCreate)
	mux.HandleFunc("GET /api/v1/participants", HandleList)
	mux.HandleFunc("GET /api/v1/participants/me", HandleMe)
	mux.HandleFunc("PUT /api/v1/participants/{id}", HandleUpdate)
	mux.HandleFunc("DELETE /api/v1/participants/{id}", HandleDeactivate)

	h := &harness{
		mux:   mux,
		admin: authz.NewAuthUser(testutil.CreateParticipant(t, database, "Admin", models.RoleAdmin)),
	}
	for _, p := range testutil.CreatePlayers(t, database, "Asha", "Ravi") {
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

type listResponse struct {
	Participants []models.Participant `json:"participants"`
	Total        int                  `json:"total"`
}

func TestCreateParticipant(t *testing.T) {
	h := newHarness(t)
	body := map[string]any{"name": "Meera", "email": "Meera@Example.com", "phone": "91234 56789"}

	rec := h.do(t, h.players[0], http.MethodPost, "/api/v1/participants", body)
	if rec.Code != http.StatusForbidden {
		t.Fatalf("expected 403 for a player, got %d", rec.Code)
	}

	rec = h.do(t, h.admin, http.MethodPost, "/api/v1/participants", body)
	if rec.Code != http.StatusCreated {
		t.Fatalf("create: status %d body %s", rec.Code, rec.Body.String())
	}
	var created participants.Created
	if err := json.NewDecoder(rec.Body).Decode(&created); err != nil {
		t.Fatalf("decode created: %v", err)
	}
	if created.Token == "" {
		t.Fatal("expected a one-time token")
	}
	p := created.Participant
	if p.Email != "meera@example.com" || p.Phone != "+919123456789" || p.Role != models.RolePlayer {
		t.Fatalf("unexpected participant: %+v", p)
	}

	rec = h.do(t, h.admin, http.MethodPost, "/api/v1/participants", body)
	if rec.Code != http.StatusConflict || errorCode(t, rec) != "duplicate" {
		t.Fatalf("expected 409 duplicate for a reused email, got %d", rec.Code)
	}

	rec = h.do(t, h.admin, http.MethodPost, "/api/v1/participants", map[string]any{"name": "X", "email": "not-an-email"})
	if rec.Code != http.StatusBadRequest || errorCode(t, rec) != "validation" {
		t.Fatalf("expected 400 validation, got %d", rec.Code)
	}
}

func TestMeAndUpdate(t *testing.T) {
	h := newHarness(t)
	asha, ravi := h.players[0], h.players[1]

	rec := h.do(t, asha, http.MethodGet, "/api/v1/participants/me", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("me: status %d", rec.Code)
	}
	var me models.Participant
	if err := json.NewDecoder(rec.Body).Decode(&me); err != nil {
		t.Fatalf("decode me: %v", err)
	}
	if me.ID != asha.ID {
		t.Fatalf("expected participant %d, got %d", asha.ID, me.ID)
	}

	rec = h.do(t, asha, http.MethodPut, fmt.Sprintf("/api/v1/participants/%d", ravi.ID), map[string]any{"name": "Not Ravi"})
	if rec.Code != http.StatusForbidden {
		t.Fatalf("expected 403 editing someone else, got %d", rec.Code)
	}

	rec = h.do(t, asha, http.MethodPut, fmt.Sprintf("/api/v1/participants/%d", asha.ID), map[string]any{"name": " Asha K "})
	if rec.Code != http.StatusOK {
		t.Fatalf("update: status %d body %s", rec.Code, rec.Body.String())
	}
	var updated models.Participant
	if err := json.NewDecoder(rec.Body).Decode(&updated); err != nil {
		t.Fatalf("decode participant: %v", err)
	}
	if updated.Name != "Asha K" {
		t.Fatalf("expected trimmed name, got %q", updated.Name)
	}

	rec = h.do(t, h.admin, http.MethodPut, fmt.Sprintf("/api/v1/participants/%d", ravi.ID), map[string]any{"phone": "12"})
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for a bad phone, got %d", rec.Code)
	}
}

func TestDeactivateAndList(t *testing.T) {
	h := newHarness(t)
	ravi := h.players[1]

	rec := h.do(t, h.players[0], http.MethodGet, "/api/v1/participants", nil)
	if rec.Code != http.StatusForbidden {
		t.Fatalf("expected 403 for a player, got %d", rec.Code)
	}

	rec = h.do(t, h.admin, http.MethodDelete, fmt.Sprintf("/api/v1/participants/%d", ravi.ID), nil)
	if rec.Code != http.StatusNoContent {
		t.Fatalf("deactivate: status %d", rec.Code)
	}
	rec = h.do(t, h.admin, http.MethodDelete, "/api/v1/participants/999", nil)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404 for an unknown participant, got %d", rec.Code)
	}

	rec = h.do(t, h.admin, http.MethodGet, "/api/v1/participants", nil)
	var active listResponse
	if err := json.NewDecoder(rec.Body).Decode(&active); err != nil {
		t.Fatalf("decode list: %v", err)
	}
	for _, p := range active.Participants {
		if p.ID == ravi.ID {
			t.Fatal("deactivated participant listed as active")
		}
	}

	rec = h.do(t, h.admin, http.MethodGet, "/api/v1/participants?active=false", nil)
	var all listResponse
	if err := json.NewDecoder(rec.Body).Decode(&all); err != nil {
		t.Fatalf("decode list: %v", err)
	}
	if all.Total != active.Total+1 {
		t.Fatalf("expected the full roster to include the deactivated player, got %d vs %d", all.Total, active.Total)
	}

	rec = h.do(t, h.admin, http.MethodGet, "/api/v1/participants?active=maybe", nil)
	if rec.Code != http.StatusBadRequest || errorCode(t, rec) != "validation" {
		t.Fatalf("expected 400 for a bad active flag, got %d", rec.Code)
	}
}
