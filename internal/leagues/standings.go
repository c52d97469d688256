package leagues

import (
	"sort"

	"github.com/codr1/Shuttlers/internal/models"
)

// CalculateLeaderboard ranks teams by win percentage, then raw wins, then
// name.
func CalculateLeaderboard(teams []models.Team) []models.LeaderboardEntry {
	entries := make([]models.LeaderboardEntry, 0, len(teams))
	for _, t := range teams {
		entries = append(entries, models.LeaderboardEntry{
			TeamID:        t.ID,
			Name:          t.Name,
			Player1:       t.Player1,
			Player2:       t.Player2,
			Wins:          t.Wins,
			Losses:        t.Losses,
			TotalMatches:  t.TotalMatches,
			WinPercentage: t.WinPercentage(),
			CurrentStreak: t.CurrentStreak,
		})
	}

	sort.SliceStable(entries, func(i, j int) bool {
		if entries[i].WinPercentage != entries[j].WinPercentage {
			return entries[i].WinPercentage > entries[j].WinPercentage
		}
		if entries[i].Wins != entries[j].Wins {
			return entries[i].Wins > entries[j].Wins
		}
		return entries[i].Name < entries[j].Name
	})
	return entries
}
