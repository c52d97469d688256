package leagues

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/codr1/Shuttlers/internal/api/apiutil"
)

type matchRequest struct {
	Team1         int64  `json:"team1"`
	Team2         int64  `json:"team2"`
	ScheduledDate string `json:"scheduledDate"`
}

type scheduleRequest struct {
	FirstDate    string `json:"firstDate"`
	IntervalDays int    `json:"intervalDays"`
}

// parseMatchTime accepts an RFC 3339 timestamp or a bare calendar date.
func parseMatchTime(raw, field string) (time.Time, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return time.Time{}, apiutil.FieldError{Field: field, Reason: "is required"}
	}
	if t, err := time.Parse(time.RFC3339, raw); err == nil {
		return t, nil
	}
	return apiutil.ParseDateField(raw, field)
}

// POST /api/v1/leagues/{id}/matches
func HandleScheduleMatch(w http.ResponseWriter, r *http.Request) {
	if apiutil.RequireAdmin(w, r) == nil {
		return
	}
	leagueID, err := apiutil.PathID(r, leagueIDPathKey)
	if err != nil {
		apiutil.WriteError(w, r, err)
		return
	}
	var req matchRequest
	if err := apiutil.DecodeJSON(r, &req); err != nil {
		apiutil.WriteError(w, r, err)
		return
	}
	scheduled, err := parseMatchTime(req.ScheduledDate, "scheduledDate")
	if err != nil {
		apiutil.WriteError(w, r, err)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), leagueQueryTimeout)
	defer cancel()

	match, err := service.ScheduleMatch(ctx, leagueID, req.Team1, req.Team2, scheduled)
	if err != nil {
		apiutil.WriteError(w, r, err)
		return
	}
	apiutil.Respond(w, r, http.StatusCreated, match)
}

// POST /api/v1/leagues/{id}/schedule
func HandleGenerateSchedule(w http.ResponseWriter, r *http.Request) {
	if apiutil.RequireAdmin(w, r) == nil {
		return
	}
	leagueID, err := apiutil.PathID(r, leagueIDPathKey)
	if err != nil {
		apiutil.WriteError(w, r, err)
		return
	}
	var req scheduleRequest
	if r.ContentLength != 0 {
		if err := apiutil.DecodeJSON(r, &req); err != nil {
			apiutil.WriteError(w, r, err)
			return
		}
	}
	if req.IntervalDays < 0 {
		apiutil.WriteError(w, r, apiutil.FieldError{Field: "intervalDays", Reason: "must not be negative"})
		return
	}
	var first time.Time
	if req.FirstDate != "" {
		if first, err = parseMatchTime(req.FirstDate, "firstDate"); err != nil {
			apiutil.WriteError(w, r, err)
			return
		}
	}

	ctx, cancel := context.WithTimeout(r.Context(), leagueQueryTimeout)
	defer cancel()

	league, err := service.GenerateSchedule(ctx, leagueID, first, time.Duration(req.IntervalDays)*24*time.Hour)
	if err != nil {
		apiutil.WriteError(w, r, err)
		return
	}
	apiutil.Respond(w, r, http.StatusCreated, league)
}
