// internal/api/leagues/handlers.go
package leagues

import (
	"context"
	"net/http"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/codr1/Shuttlers/internal/api/apiutil"
	"github.com/codr1/Shuttlers/internal/leagues"
	"github.com/codr1/Shuttlers/internal/models"
)

const (
	leagueQueryTimeout = 5 * time.Second
	leagueIDPathKey    = "id"
	matchIDPathKey     = "matchId"
)

var service *leagues.Service

func InitHandlers(svc *leagues.Service) {
	service = svc
}

type leagueRequest struct {
	Name        string              `json:"name"`
	Description string              `json:"description"`
	StartDate   string              `json:"startDate"`
	EndDate     string              `json:"endDate"`
	Teams       []leagues.TeamInput `json:"teams"`
}

func (req leagueRequest) params(createdBy int64) (leagues.CreateParams, error) {
	start, err := apiutil.ParseDateField(req.StartDate, "startDate")
	if err != nil {
		return leagues.CreateParams{}, err
	}
	end, err := apiutil.ParseDateField(req.EndDate, "endDate")
	if err != nil {
		return leagues.CreateParams{}, err
	}
	return leagues.CreateParams{
		Name:        req.Name,
		Description: req.Description,
		StartDate:   start,
		EndDate:     end,
		Teams:       req.Teams,
		CreatedBy:   createdBy,
	}, nil
}

type resultRequest struct {
	WinnerTeamID int64             `json:"winnerTeamId"`
	Scores       []models.SetScore `json:"scores"`
}

// POST /api/v1/leagues
func HandleCreateLeague(w http.ResponseWriter, r *http.Request) {
	admin := apiutil.RequireAdmin(w, r)
	if admin == nil {
		return
	}
	var req leagueRequest
	if err := apiutil.DecodeJSON(r, &req); err != nil {
		apiutil.WriteError(w, r, err)
		return
	}
	params, err := req.params(admin.ID)
	if err != nil {
		apiutil.WriteError(w, r, err)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), leagueQueryTimeout)
	defer cancel()

	league, err := service.CreateLeague(ctx, params)
	if err != nil {
		apiutil.WriteError(w, r, err)
		return
	}
	apiutil.Respond(w, r, http.StatusCreated, league)
}

// GET /api/v1/leagues
func HandleListLeagues(w http.ResponseWriter, r *http.Request) {
	if apiutil.RequireUser(w, r) == nil {
		return
	}
	page, err := apiutil.PageFromQuery(r)
	if err != nil {
		apiutil.WriteError(w, r, err)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), leagueQueryTimeout)
	defer cancel()

	list, err := service.List(ctx, page)
	if err != nil {
		apiutil.WriteError(w, r, err)
		return
	}
	apiutil.Respond(w, r, http.StatusOK, list)
}

// GET /api/v1/leagues/{id}
func HandleLeagueDetail(w http.ResponseWriter, r *http.Request) {
	if apiutil.RequireUser(w, r) == nil {
		return
	}
	id, err := apiutil.PathID(r, leagueIDPathKey)
	if err != nil {
		apiutil.WriteError(w, r, err)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), leagueQueryTimeout)
	defer cancel()

	league, err := service.Get(ctx, id)
	if err != nil {
		apiutil.WriteError(w, r, err)
		return
	}
	apiutil.Respond(w, r, http.StatusOK, league)
}

// GET /api/v1/leagues/{id}/leaderboard
func HandleLeaderboard(w http.ResponseWriter, r *http.Request) {
	if apiutil.RequireUser(w, r) == nil {
		return
	}
	id, err := apiutil.PathID(r, leagueIDPathKey)
	if err != nil {
		apiutil.WriteError(w, r, err)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), leagueQueryTimeout)
	defer cancel()

	board, err := service.Leaderboard(ctx, id)
	if err != nil {
		apiutil.WriteError(w, r, err)
		return
	}
	apiutil.Respond(w, r, http.StatusOK, map[string]any{"leagueId": id, "leaderboard": board})
}

// PUT /api/v1/leagues/{id}/matches/{matchId}/result
func HandleSubmitResult(w http.ResponseWriter, r *http.Request) {
	if apiutil.RequireAdmin(w, r) == nil {
		return
	}
	leagueID, err := apiutil.PathID(r, leagueIDPathKey)
	if err != nil {
		apiutil.WriteError(w, r, err)
		return
	}
	matchID, err := apiutil.PathID(r, matchIDPathKey)
	if err != nil {
		apiutil.WriteError(w, r, err)
		return
	}
	var req resultRequest
	if err := apiutil.DecodeJSON(r, &req); err != nil {
		apiutil.WriteError(w, r, err)
		return
	}
	if req.WinnerTeamID <= 0 {
		apiutil.WriteError(w, r, apiutil.FieldError{Field: "winnerTeamId", Reason: "is required"})
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), leagueQueryTimeout)
	defer cancel()

	league, err := service.SubmitMatchResult(ctx, leagueID, matchID, req.WinnerTeamID, req.Scores)
	if err != nil {
		apiutil.WriteError(w, r, err)
		return
	}
	log.Ctx(r.Context()).Info().
		Int64("league_id", leagueID).
		Int64("match_id", matchID).
		Msg("Match result recorded")
	apiutil.Respond(w, r, http.StatusOK, league)
}
