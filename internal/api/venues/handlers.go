// Package venues serves the venue registry.
package venues

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/codr1/Shuttlers/internal/api/apiutil"
	"github.com/codr1/Shuttlers/internal/models"
	"github.com/codr1/Shuttlers/internal/venues"
)

const (
	queryTimeout   = 5 * time.Second
	venueIDPathKey = "id"
)

var service *venues.Service

func InitHandlers(svc *venues.Service) {
	service = svc
}

// POST /api/v1/venues
func HandleCreate(w http.ResponseWriter, r *http.Request) {
	admin := apiutil.RequireAdmin(w, r)
	if admin == nil {
		return
	}

	var req venues.CreateParams
	if err := apiutil.DecodeJSON(r, &req); err != nil {
		apiutil.WriteError(w, r, err)
		return
	}
	req.CreatedBy = admin.ID

	ctx, cancel := context.WithTimeout(r.Context(), queryTimeout)
	defer cancel()

	v, err := service.Create(ctx, req)
	if err != nil {
		apiutil.WriteError(w, r, err)
		return
	}
	apiutil.Respond(w, r, http.StatusCreated, v)
}

// GET /api/v1/venues
func HandleList(w http.ResponseWriter, r *http.Request) {
	if apiutil.RequireUser(w, r) == nil {
		return
	}
	page, err := apiutil.PageFromQuery(r)
	if err != nil {
		apiutil.WriteError(w, r, err)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), queryTimeout)
	defer cancel()

	list, err := service.List(ctx, true, page)
	if err != nil {
		apiutil.WriteError(w, r, err)
		return
	}
	apiutil.Respond(w, r, http.StatusOK, list)
}

// GET /api/v1/venues/nearby?longitude=&latitude=&maxDistance=&limit=
func HandleNearby(w http.ResponseWriter, r *http.Request) {
	if apiutil.RequireUser(w, r) == nil {
		return
	}
	q := r.URL.Query()
	lon, err := apiutil.ParseFloatField(q.Get("longitude"), "longitude")
	if err != nil {
		apiutil.WriteError(w, r, err)
		return
	}
	lat, err := apiutil.ParseFloatField(q.Get("latitude"), "latitude")
	if err != nil {
		apiutil.WriteError(w, r, err)
		return
	}
	radius := float64(venues.DefaultNearbyRadiusMeters)
	if raw := q.Get("maxDistance"); raw != "" {
		if radius, err = apiutil.ParseFloatField(raw, "maxDistance"); err != nil {
			apiutil.WriteError(w, r, err)
			return
		}
	}
	limit := 0
	if raw := q.Get("limit"); raw != "" {
		if limit, err = strconv.Atoi(raw); err != nil || limit < 1 {
			apiutil.WriteError(w, r, apiutil.FieldError{Field: "limit", Reason: "must be a positive integer"})
			return
		}
	}

	ctx, cancel := context.WithTimeout(r.Context(), queryTimeout)
	defer cancel()

	found, err := service.Nearby(ctx, models.GeoPoint{Longitude: lon, Latitude: lat}, radius, limit)
	if err != nil {
		apiutil.WriteError(w, r, err)
		return
	}
	if found == nil {
		found = []venues.NearbyVenue{}
	}
	apiutil.Respond(w, r, http.StatusOK, map[string]any{"venues": found, "total": len(found)})
}

// GET /api/v1/venues/stats
func HandleStats(w http.ResponseWriter, r *http.Request) {
	if apiutil.RequireAdmin(w, r) == nil {
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), queryTimeout)
	defer cancel()

	stats, err := service.Stats(ctx)
	if err != nil {
		apiutil.WriteError(w, r, err)
		return
	}
	apiutil.Respond(w, r, http.StatusOK, stats)
}

// GET /api/v1/venues/{id}
func HandleDetail(w http.ResponseWriter, r *http.Request) {
	if apiutil.RequireUser(w, r) == nil {
		return
	}
	id, err := apiutil.PathID(r, venueIDPathKey)
	if err != nil {
		apiutil.WriteError(w, r, err)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), queryTimeout)
	defer cancel()

	v, err := service.Get(ctx, id)
	if err != nil {
		apiutil.WriteError(w, r, err)
		return
	}
	apiutil.Respond(w, r, http.StatusOK, v)
}

// PUT /api/v1/venues/{id}
func HandleUpdate(w http.ResponseWriter, r *http.Request) {
	if apiutil.RequireAdmin(w, r) == nil {
		return
	}
	id, err := apiutil.PathID(r, venueIDPathKey)
	if err != nil {
		apiutil.WriteError(w, r, err)
		return
	}
	var req venues.UpdateParams
	if err := apiutil.DecodeJSON(r, &req); err != nil {
		apiutil.WriteError(w, r, err)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), queryTimeout)
	defer cancel()

	v, err := service.Update(ctx, id, req)
	if err != nil {
		apiutil.WriteError(w, r, err)
		return
	}
	apiutil.Respond(w, r, http.StatusOK, v)
}

// DELETE /api/v1/venues/{id}
func HandleDeactivate(w http.ResponseWriter, r *http.Request) {
	if apiutil.RequireAdmin(w, r) == nil {
		return
	}
	id, err := apiutil.PathID(r, venueIDPathKey)
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
	w.WriteHeader(http.StatusNoContent)
}

// GET /api/v1/venues/{id}/courts
func HandleCourts(w http.ResponseWriter, r *http.Request) {
	if apiutil.RequireUser(w, r) == nil {
		return
	}
	id, err := apiutil.PathID(r, venueIDPathKey)
	if err != nil {
		apiutil.WriteError(w, r, err)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), queryTimeout)
	defer cancel()

	view, err := service.Courts(ctx, id)
	if err != nil {
		apiutil.WriteError(w, r, err)
		return
	}
	apiutil.Respond(w, r, http.StatusOK, view)
}
