// internal/models/league.go
package models

import (
	"fmt"
	"math"
	"strings"
	"time"
)

type LeagueStatus string

const (
	LeagueUpcoming  LeagueStatus = "upcoming"
	LeagueActive    LeagueStatus = "active"
	LeagueCompleted LeagueStatus = "completed"
)

type MatchStatus string

const (
	MatchScheduled MatchStatus = "scheduled"
	MatchOverdue   MatchStatus = "overdue"
	MatchCompleted MatchStatus = "completed"
)

type Team struct {
	ID            int64  `json:"id"`
	LeagueID      int64  `json:"leagueId"`
	Name          string `json:"name"`
	Player1       int64  `json:"player1"`
	Player2       int64  `json:"player2"`
	Wins          int    `json:"wins"`
	Losses        int    `json:"losses"`
	TotalMatches  int    `json:"totalMatches"`
	CurrentStreak int    `json:"currentStreak"`
}

// WinPercentage is wins over matches played, rounded to a whole percent.
func (t Team) WinPercentage() int {
	if t.TotalMatches == 0 {
		return 0
	}
	return int(math.Round(float64(t.Wins) / float64(t.TotalMatches) * 100))
}

type SetScore struct {
	Set        int `json:"set"`
	Team1Score int `json:"team1Score"`
	Team2Score int `json:"team2Score"`
}

type Match struct {
	ID            int64      `json:"id"`
	LeagueID      int64      `json:"leagueId"`
	Team1         int64      `json:"team1"`
	Team2         int64      `json:"team2"`
	ScheduledDate time.Time  `json:"scheduledDate"`
	IsCompleted   bool       `json:"isCompleted"`
	Winner        *int64     `json:"winner,omitempty"`
	Loser         *int64     `json:"loser,omitempty"`
	Scores        []SetScore `json:"scores"`
	CompletedDate *time.Time `json:"completedDate,omitempty"`
}

// StatusAt derives the match status at now.
func (m Match) StatusAt(now time.Time) MatchStatus {
	switch {
	case m.IsCompleted:
		return MatchCompleted
	case now.After(m.ScheduledDate):
		return MatchOverdue
	default:
		return MatchScheduled
	}
}

// HasTeam reports whether teamID plays in m.
func (m Match) HasTeam(teamID int64) bool {
	return m.Team1 == teamID || m.Team2 == teamID
}

// Opponent returns the other team in the match.
func (m Match) Opponent(teamID int64) int64 {
	if m.Team1 == teamID {
		return m.Team2
	}
	return m.Team1
}

// FormattedScore renders set scores as "21-15, 18-21".
func (m Match) FormattedScore() string {
	if len(m.Scores) == 0 {
		return "Not played"
	}
	sets := make([]string, len(m.Scores))
	for i, s := range m.Scores {
		sets[i] = fmt.Sprintf("%d-%d", s.Team1Score, s.Team2Score)
	}
	return strings.Join(sets, ", ")
}

type League struct {
	ID          int64     `json:"id"`
	Name        string    `json:"name"`
	Description string    `json:"description,omitempty"`
	StartDate   time.Time `json:"startDate"`
	EndDate     time.Time `json:"endDate"`
	IsActive    bool      `json:"isActive"`
	Teams       []Team    `json:"teams"`
	Matches     []Match   `json:"matches"`
	CreatedBy   int64     `json:"createdBy"`
	CreatedAt   time.Time `json:"createdAt"`
	UpdatedAt   time.Time `json:"updatedAt"`
}

// StatusAt derives the league status from its date range.
func (l League) StatusAt(now time.Time) LeagueStatus {
	switch {
	case now.Before(l.StartDate):
		return LeagueUpcoming
	case now.After(l.EndDate):
		return LeagueCompleted
	default:
		return LeagueActive
	}
}

func (l League) TotalMatches() int { return len(l.Matches) }

func (l League) CompletedMatches() int {
	n := 0
	for _, m := range l.Matches {
		if m.IsCompleted {
			n++
		}
	}
	return n
}

// Team returns the league team with id.
func (l League) Team(id int64) (Team, bool) {
	for _, t := range l.Teams {
		if t.ID == id {
			return t, true
		}
	}
	return Team{}, false
}

// Match returns the league match with id.
func (l League) Match(id int64) (Match, bool) {
	for _, m := range l.Matches {
		if m.ID == id {
			return m, true
		}
	}
	return Match{}, false
}

type LeaderboardEntry struct {
	TeamID        int64  `json:"teamId"`
	Name          string `json:"name"`
	Player1       int64  `json:"player1"`
	Player2       int64  `json:"player2"`
	Wins          int    `json:"wins"`
	Losses        int    `json:"losses"`
	TotalMatches  int    `json:"totalMatches"`
	WinPercentage int    `json:"winPercentage"`
	CurrentStreak int    `json:"currentStreak"`
}
