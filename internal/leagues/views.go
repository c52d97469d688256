package leagues

import (
	"time"

	"github.com/codr1/Shuttlers/internal/models"
)

type TeamView struct {
	models.Team
	WinPercentage int `json:"winPercentage"`
}

type MatchView struct {
	models.Match
	Status         models.MatchStatus `json:"status"`
	FormattedScore string             `json:"formattedScore"`
}

// LeagueView is a league with its read-time fields filled in.
type LeagueView struct {
	models.League
	Status           models.LeagueStatus `json:"status"`
	Teams            []TeamView          `json:"teams"`
	Matches          []MatchView         `json:"matches"`
	TotalMatches     int                 `json:"totalMatches"`
	CompletedMatches int                 `json:"completedMatches"`
}

func NewLeagueView(l models.League, now time.Time) LeagueView {
	v := LeagueView{
		League:           l,
		Status:           l.StatusAt(now),
		Teams:            make([]TeamView, 0, len(l.Teams)),
		Matches:          make([]MatchView, 0, len(l.Matches)),
		TotalMatches:     l.TotalMatches(),
		CompletedMatches: l.CompletedMatches(),
	}
	for _, t := range l.Teams {
		v.Teams = append(v.Teams, TeamView{Team: t, WinPercentage: t.WinPercentage()})
	}
	for _, m := range l.Matches {
		v.Matches = append(v.Matches, NewMatchView(m, now))
	}
	return v
}

func NewMatchView(m models.Match, now time.Time) MatchView {
	return MatchView{Match: m, Status: m.StatusAt(now), FormattedScore: m.FormattedScore()}
}
