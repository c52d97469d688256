// Package participants serves the club roster.
package participants

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/codr1/Shuttlers/internal/api/apiutil"
	"github.com/codr1/Shuttlers/internal/api/authz"
	"github.com/codr1/Shuttlers/internal/participants"
)

const queryTimeout = 5 * time.Second

var service *participants.Service

func InitHandlers(svc *participants.Service) {
	service = svc
}

// POST /api/v1/participants
func HandleCreate(w http.ResponseWriter, r *http.Request) {
	if apiutil.RequireAdmin(w, r) == nil {
		return
	}

	var req participants.CreateParams
	if err := apiutil.DecodeJSON(r, &req); err != nil {
		apiutil.WriteError(w, r, err)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), queryTimeout)
	defer cancel()

	created, err := service.Create(ctx, req)
	if err != nil {
		apiutil.WriteError(w, r, err)
		return
	}
	apiutil.Respond(w, r, http.StatusCreated, created)
}

// GET /api/v1/participants
func HandleList(w http.ResponseWriter, r *http.Request) {
	if apiutil.RequireAdmin(w, r) == nil {
		return
	}

	activeOnly := true
	if raw := r.URL.Query().Get("active"); raw != "" {
		v, err := strconv.ParseBool(raw)
		if err != nil {
			apiutil.WriteError(w, r, apiutil.FieldError{Field: "active", Reason: "must be true or false"})
			return
		}
		activeOnly = v
	}

	ctx, cancel := context.WithTimeout(r.Context(), queryTimeout)
	defer cancel()

	list, err := service.List(ctx, activeOnly)
	if err != nil {
		apiutil.WriteError(w, r, err)
		return
	}
	apiutil.Respond(w, r, http.StatusOK, map[string]any{"participants": list, "total": len(list)})
}

// GET /api/v1/participants/me
func HandleMe(w http.ResponseWriter, r *http.Request) {
	user := apiutil.RequireUser(w, r)
	if user == nil {
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), queryTimeout)
	defer cancel()

	p, err := service.Get(ctx, user.ID)
	if err != nil {
		apiutil.WriteError(w, r, err)
		return
	}
	apiutil.Respond(w, r, http.StatusOK, p)
}

// PUT /api/v1/participants/{id}
func HandleUpdate(w http.ResponseWriter, r *http.Request) {
	user := apiutil.RequireUser(w, r)
	if user == nil {
		return
	}
	id, err := apiutil.PathID(r, "id")
	if err != nil {
		apiutil.WriteError(w, r, err)
		return
	}
	if !authz.CanView(user, id) {
		apiutil.WriteError(w, r, authz.ErrForbidden)
		return
	}

	var req participants.UpdateParams
	if err := apiutil.DecodeJSON(r, &req); err != nil {
		apiutil.WriteError(w, r, err)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), queryTimeout)
	defer cancel()

	p, err := service.Update(ctx, id, req)
	if err != nil {
		apiutil.WriteError(w, r, err)
		return
	}
	apiutil.Respond(w, r, http.StatusOK, p)
}

// DELETE /api/v1/participants/{id}
func HandleDeactivate(w http.ResponseWriter, r *http.Request) {
	admin := apiutil.RequireAdmin(w, r)
	if admin == nil {
		return
	}
	id, err := apiutil.PathID(r, "id")
	if err != nil {
		apiutil.WriteError(w, r, err)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), queryTimeout)
	defer cancel()

	if err := service.Deactivate(ctx, id); err != nil {
		apiutil.WriteError(w, r, err)
		return
	}
	log.Ctx(r.Context()).Info().Int64("participant_id", id).Int64("admin_id", admin.ID).Msg("Participant deactivated via API")
	w.WriteHeader(http.StatusNoContent)
}
