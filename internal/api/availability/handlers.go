// Package availability serves the weekly availability poll.
package availability

import (
	"context"
	"net/http"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/codr1/Shuttlers/internal/api/apiutil"
	"github.com/codr1/Shuttlers/internal/availability"
)

const (
	queryTimeout = 5 * time.Second
	// A manual poll touches every active player.
	pollTimeout = time.Minute
)

var poller *availability.Poller

func InitHandlers(p *availability.Poller) {
	poller = p
}

type respondRequest struct {
	GameDate    string `json:"gameDate"`
	IsAvailable *bool  `json:"isAvailable"`
}

// POST /api/v1/availability/respond
func HandleRespond(w http.ResponseWriter, r *http.Request) {
	user := apiutil.RequireUser(w, r)
	if user == nil {
		return
	}
	var req respondRequest
	if err := apiutil.DecodeJSON(r, &req); err != nil {
		apiutil.WriteError(w, r, err)
		return
	}
	gameDate, err := apiutil.ParseDateField(req.GameDate, "gameDate")
	if err != nil {
		apiutil.WriteError(w, r, err)
		return
	}
	if req.IsAvailable == nil {
		apiutil.WriteError(w, r, apiutil.FieldError{Field: "isAvailable", Reason: "is required"})
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), queryTimeout)
	defer cancel()

	record, err := poller.Respond(ctx, user.ID, gameDate, *req.IsAvailable)
	if err != nil {
		apiutil.WriteError(w, r, err)
		return
	}
	apiutil.Respond(w, r, http.StatusOK, record)
}

// GET /api/v1/availability/history
func HandleHistory(w http.ResponseWriter, r *http.Request) {
	user := apiutil.RequireUser(w, r)
	if user == nil {
		return
	}
	page, err := apiutil.PageFromQuery(r)
	if err != nil {
		apiutil.WriteError(w, r, err)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), queryTimeout)
	defer cancel()

	history, err := poller.History(ctx, user.ID, page)
	if err != nil {
		apiutil.WriteError(w, r, err)
		return
	}
	apiutil.Respond(w, r, http.StatusOK, history)
}

// GET /api/v1/availability/current-week
func HandleCurrentWeek(w http.ResponseWriter, r *http.Request) {
	if apiutil.RequireAdmin(w, r) == nil {
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), queryTimeout)
	defer cancel()

	summary, err := poller.CurrentWeekSummary(ctx)
	if err != nil {
		apiutil.WriteError(w, r, err)
		return
	}
	apiutil.Respond(w, r, http.StatusOK, summary)
}

// POST /api/v1/availability/poll
func HandlePoll(w http.ResponseWriter, r *http.Request) {
	admin := apiutil.RequireAdmin(w, r)
	if admin == nil {
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), pollTimeout)
	defer cancel()

	result, err := poller.Run(ctx)
	if err != nil {
		apiutil.WriteError(w, r, err)
		return
	}
	log.Ctx(r.Context()).Info().
		Int64("admin_id", admin.ID).
		Int("participants", result.Participants).
		Msg("Manual availability poll triggered")
	apiutil.Respond(w, r, http.StatusOK, result)
}

// GET /api/v1/availability/status
func HandleStatus(w http.ResponseWriter, r *http.Request) {
	if apiutil.RequireAdmin(w, r) == nil {
		return
	}
	apiutil.Respond(w, r, http.StatusOK, poller.Status())
}
