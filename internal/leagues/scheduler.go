package leagues

import (
	"errors"
	"fmt"
	"time"

	"github.com/codr1/Shuttlers/internal/models"
)

// DefaultRoundInterval separates consecutive rounds when none is given.
const DefaultRoundInterval = 7 * 24 * time.Hour

type ScheduledMatch struct {
	Round         int
	Team1         models.Team
	Team2         models.Team
	ScheduledDate time.Time
}

// GenerateRoundRobinSchedule pairs every team with every other team once.
// Round r is played at firstDate + (r-1)*interval and every round must start
// no later than endDate.
func GenerateRoundRobinSchedule(teams []models.Team, firstDate, endDate time.Time, interval time.Duration) ([]ScheduledMatch, error) {
	if len(teams) < 2 {
		return nil, errors.New("at least two teams are required")
	}
	if interval <= 0 {
		return nil, errors.New("round interval must be positive")
	}

	pairs := buildRoundRobinPairs(teams)
	rounds := 0
	for _, p := range pairs {
		if p.Round > rounds {
			rounds = p.Round
		}
	}
	last := firstDate.Add(time.Duration(rounds-1) * interval)
	if last.After(endDate) {
		return nil, fmt.Errorf("%d rounds starting %s do not fit before the league ends on %s",
			rounds, firstDate.Format(models.DateLayout), endDate.Format(models.DateLayout))
	}

	schedule := make([]ScheduledMatch, 0, len(pairs))
	for _, pairing := range pairs {
		schedule = append(schedule, ScheduledMatch{
			Round:         pairing.Round,
			Team1:         pairing.Team1,
			Team2:         pairing.Team2,
			ScheduledDate: firstDate.Add(time.Duration(pairing.Round-1) * interval),
		})
	}
	return schedule, nil
}

type roundPair struct {
	Round int
	Team1 models.Team
	Team2 models.Team
}

// buildRoundRobinPairs uses the circle method: the first team stays fixed
// while the rest rotate. An odd count gets a bye slot each round.
func buildRoundRobinPairs(teams []models.Team) []roundPair {
	working := make([]*models.Team, 0, len(teams)+1)
	for i := range teams {
		working = append(working, &teams[i])
	}
	if len(working)%2 == 1 {
		working = append(working, nil)
	}

	rounds := len(working) - 1
	pairs := make([]roundPair, 0, rounds*len(working)/2)

	for round := 0; round < rounds; round++ {
		for i := 0; i < len(working)/2; i++ {
			left := working[i]
			right := working[len(working)-1-i]
			if left == nil || right == nil {
				continue
			}
			first, second := *left, *right
			if i == 0 && round%2 == 1 {
				first, second = second, first
			}
			pairs = append(pairs, roundPair{Round: round + 1, Team1: first, Team2: second})
		}
		rotateTeams(working)
	}
	return pairs
}

func rotateTeams(teams []*models.Team) {
	if len(teams) <= 2 {
		return
	}
	last := teams[len(teams)-1]
	copy(teams[2:], teams[1:len(teams)-1])
	teams[1] = last
}
