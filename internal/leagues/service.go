// Package leagues runs doubles leagues: team registration, round-robin
// scheduling, result submission and the leaderboard.
package leagues

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/codr1/Shuttlers/internal/clock"
	"github.com/codr1/Shuttlers/internal/db"
	"github.com/codr1/Shuttlers/internal/events"
	"github.com/codr1/Shuttlers/internal/models"
)

const maxSetScore = 30

type Service struct {
	db     *db.DB
	events events.Publisher
	clock  clock.Clock
}

func NewService(database *db.DB, publisher events.Publisher, clk clock.Clock) *Service {
	if publisher == nil {
		publisher = events.Nop{}
	}
	if clk == nil {
		clk = clock.Real{}
	}
	return &Service{db: database, events: publisher, clock: clk}
}

func (s *Service) logger(ctx context.Context) zerolog.Logger {
	return log.Ctx(ctx).With().Str("component", "leagues").Logger()
}

type TeamInput struct {
	Name    string `json:"name"`
	Player1 int64  `json:"player1"`
	Player2 int64  `json:"player2"`
}

type CreateParams struct {
	Name        string
	Description string
	StartDate   time.Time
	EndDate     time.Time
	Teams       []TeamInput
	CreatedBy   int64
}

func (p *CreateParams) validate() error {
	p.Name = strings.TrimSpace(p.Name)
	if len(p.Name) < 3 || len(p.Name) > 100 {
		return models.Invalid("name", "must be 3-100 characters")
	}
	if len(p.Description) > 500 {
		return models.Invalid("description", "must be at most 500 characters")
	}
	if p.StartDate.IsZero() || p.EndDate.IsZero() {
		return models.Invalid("startDate", "start and end dates are required")
	}
	if !p.StartDate.Before(p.EndDate) {
		return models.Invalid("endDate", "must be after the start date")
	}
	if len(p.Teams) < 2 {
		return models.Invalid("teams", "at least two teams are required")
	}

	seen := make(map[int64]string, len(p.Teams)*2)
	for i := range p.Teams {
		t := &p.Teams[i]
		t.Name = strings.TrimSpace(t.Name)
		if len(t.Name) < 2 || len(t.Name) > 50 {
			return models.Invalid("teams", "team names must be 2-50 characters")
		}
		for _, player := range []int64{t.Player1, t.Player2} {
			if player <= 0 {
				return models.Invalid("teams", "team %q needs two players", t.Name)
			}
			if other, ok := seen[player]; ok {
				return fmt.Errorf("participant %d is on %q and %q: %w", player, other, t.Name, models.ErrDuplicatePlayer)
			}
			seen[player] = t.Name
		}
	}
	return nil
}

// CreateLeague registers a league and its teams. A participant may play on at
// most one team per league.
func (s *Service) CreateLeague(ctx context.Context, params CreateParams) (LeagueView, error) {
	if err := params.validate(); err != nil {
		return LeagueView{}, err
	}

	ids := make([]int64, 0, len(params.Teams)*2)
	for _, t := range params.Teams {
		ids = append(ids, t.Player1, t.Player2)
	}
	players, err := s.db.Queries.GetParticipantsByIDs(ctx, ids)
	if err != nil {
		return LeagueView{}, fmt.Errorf("load players: %w", err)
	}
	active := make(map[int64]bool, len(players))
	for _, p := range players {
		active[p.ID] = p.ActivePlayer()
	}
	for _, id := range ids {
		if !active[id] {
			return LeagueView{}, fmt.Errorf("player %d: %w", id, models.ErrNotFound)
		}
	}

	l := models.League{
		Name:        params.Name,
		Description: params.Description,
		StartDate:   params.StartDate,
		EndDate:     params.EndDate,
		CreatedBy:   params.CreatedBy,
	}
	for _, t := range params.Teams {
		l.Teams = append(l.Teams, models.Team{Name: t.Name, Player1: t.Player1, Player2: t.Player2})
	}

	var id int64
	err = s.db.RunInTx(ctx, func(tx *db.DB) error {
		var err error
		id, err = tx.Queries.InsertLeague(ctx, l, s.clock.Now())
		return err
	})
	if err != nil {
		return LeagueView{}, fmt.Errorf("create league: %w", err)
	}

	logger := s.logger(ctx)
	logger.Info().Int64("league_id", id).Int("teams", len(l.Teams)).Msg("League created")
	return s.Get(ctx, id)
}

func (s *Service) load(ctx context.Context, q *db.Queries, id int64) (models.League, error) {
	l, err := q.GetLeague(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return models.League{}, fmt.Errorf("league %d: %w", id, models.ErrNotFound)
		}
		return models.League{}, fmt.Errorf("get league: %w", err)
	}
	return l, nil
}

func (s *Service) Get(ctx context.Context, id int64) (LeagueView, error) {
	l, err := s.load(ctx, s.db.Queries, id)
	if err != nil {
		return LeagueView{}, err
	}
	return NewLeagueView(l, s.clock.Now()), nil
}

type ListResult struct {
	Leagues []LeagueView `json:"leagues"`
	Total   int          `json:"total"`
}

func (s *Service) List(ctx context.Context, page db.Page) (ListResult, error) {
	leagues, total, err := s.db.Queries.ListLeagues(ctx, page.Normalize(20, 100))
	if err != nil {
		return ListResult{}, fmt.Errorf("list leagues: %w", err)
	}
	now := s.clock.Now()
	out := ListResult{Leagues: make([]LeagueView, 0, len(leagues)), Total: total}
	for _, l := range leagues {
		out.Leagues = append(out.Leagues, NewLeagueView(l, now))
	}
	return out, nil
}

// ScheduleMatch adds a single fixture between two of the league's teams.
func (s *Service) ScheduleMatch(ctx context.Context, leagueID, team1, team2 int64, scheduled time.Time) (MatchView, error) {
	if scheduled.IsZero() {
		return MatchView{}, models.Invalid("scheduledDate", "is required")
	}
	if team1 == team2 {
		return MatchView{}, models.Invalid("team2", "a team cannot play itself")
	}
	l, err := s.load(ctx, s.db.Queries, leagueID)
	if err != nil {
		return MatchView{}, err
	}
	if _, ok := l.Team(team1); !ok {
		return MatchView{}, models.Invalid("team1", "team %d is not in this league", team1)
	}
	if _, ok := l.Team(team2); !ok {
		return MatchView{}, models.Invalid("team2", "team %d is not in this league", team2)
	}

	m := models.Match{LeagueID: leagueID, Team1: team1, Team2: team2, ScheduledDate: scheduled}
	err = s.db.RunInTx(ctx, func(tx *db.DB) error {
		now := s.clock.Now()
		var err error
		if m.ID, err = tx.Queries.InsertMatch(ctx, m, now); err != nil {
			return err
		}
		return tx.Queries.TouchLeague(ctx, leagueID, now)
	})
	if err != nil {
		return MatchView{}, fmt.Errorf("schedule match: %w", err)
	}

	logger := s.logger(ctx)
	logger.Info().Int64("league_id", leagueID).Int64("match_id", m.ID).Time("scheduled", scheduled).Msg("Match scheduled")
	return NewMatchView(m, s.clock.Now()), nil
}

// GenerateSchedule fills an empty league with a full round robin.
func (s *Service) GenerateSchedule(ctx context.Context, leagueID int64, firstDate time.Time, interval time.Duration) (LeagueView, error) {
	if interval == 0 {
		interval = DefaultRoundInterval
	}
	l, err := s.load(ctx, s.db.Queries, leagueID)
	if err != nil {
		return LeagueView{}, err
	}
	if len(l.Matches) > 0 {
		return LeagueView{}, fmt.Errorf("league %d already has %d matches: %w", leagueID, len(l.Matches), models.ErrInvalidState)
	}
	if firstDate.IsZero() {
		firstDate = l.StartDate
	}
	if firstDate.Before(l.StartDate) {
		return LeagueView{}, models.Invalid("firstDate", "must not be before the league starts")
	}

	schedule, err := GenerateRoundRobinSchedule(l.Teams, firstDate, l.EndDate, interval)
	if err != nil {
		return LeagueView{}, models.Invalid("schedule", "%s", err.Error())
	}

	err = s.db.RunInTx(ctx, func(tx *db.DB) error {
		now := s.clock.Now()
		for _, sm := range schedule {
			if _, err := tx.Queries.InsertMatch(ctx, models.Match{
				LeagueID:      leagueID,
				Team1:         sm.Team1.ID,
				Team2:         sm.Team2.ID,
				ScheduledDate: sm.ScheduledDate,
			}, now); err != nil {
				return err
			}
		}
		return tx.Queries.TouchLeague(ctx, leagueID, now)
	})
	if err != nil {
		return LeagueView{}, fmt.Errorf("generate schedule: %w", err)
	}

	logger := s.logger(ctx)
	logger.Info().Int64("league_id", leagueID).Int("matches", len(schedule)).Msg("League schedule generated")
	return s.Get(ctx, leagueID)
}

func validateScores(scores []models.SetScore) error {
	if len(scores) == 0 {
		return models.Invalid("scores", "at least one set score is required")
	}
	seen := make(map[int]bool, len(scores))
	for _, sc := range scores {
		if sc.Set < 1 {
			return models.Invalid("scores", "set numbers start at 1")
		}
		if seen[sc.Set] {
			return models.Invalid("scores", "set %d listed twice", sc.Set)
		}
		seen[sc.Set] = true
		if sc.Team1Score < 0 || sc.Team1Score > maxSetScore || sc.Team2Score < 0 || sc.Team2Score > maxSetScore {
			return models.Invalid("scores", "set %d scores must be between 0 and %d", sc.Set, maxSetScore)
		}
	}
	return nil
}

type MatchCompleted struct {
	LeagueID int64             `json:"leagueId"`
	MatchID  int64             `json:"matchId"`
	WinnerID int64             `json:"winnerTeamId"`
	LoserID  int64             `json:"loserTeamId"`
	Scores   []models.SetScore `json:"scores"`
}

// SubmitMatchResult completes a match and books the win and loss on both
// teams in one transaction. A completed match can never be scored twice.
func (s *Service) SubmitMatchResult(ctx context.Context, leagueID, matchID, winnerID int64, scores []models.SetScore) (LeagueView, error) {
	l, err := s.load(ctx, s.db.Queries, leagueID)
	if err != nil {
		return LeagueView{}, err
	}
	m, ok := l.Match(matchID)
	if !ok {
		return LeagueView{}, fmt.Errorf("match %d in league %d: %w", matchID, leagueID, models.ErrNotFound)
	}
	if m.IsCompleted {
		return LeagueView{}, fmt.Errorf("match %d is already completed: %w", matchID, models.ErrInvalidState)
	}
	now := s.clock.Now()
	if now.Before(m.ScheduledDate) {
		return LeagueView{}, fmt.Errorf("match %d is scheduled for %s: %w", matchID, m.ScheduledDate.Format(time.RFC3339), models.ErrTooEarly)
	}
	if !m.HasTeam(winnerID) {
		return LeagueView{}, fmt.Errorf("team %d did not play match %d: %w", winnerID, matchID, models.ErrInvalidWinner)
	}
	if err := validateScores(scores); err != nil {
		return LeagueView{}, err
	}
	loserID := m.Opponent(winnerID)

	err = s.db.RunInTx(ctx, func(tx *db.DB) error {
		n, err := tx.Queries.CompleteMatch(ctx, db.CompleteMatchParams{
			MatchID:     matchID,
			WinnerID:    winnerID,
			LoserID:     loserID,
			Scores:      scores,
			CompletedAt: now,
		})
		if err != nil {
			return err
		}
		if n == 0 {
			return fmt.Errorf("match %d is already completed: %w", matchID, models.ErrInvalidState)
		}
		if err := tx.Queries.RecordTeamWin(ctx, winnerID); err != nil {
			return fmt.Errorf("record win: %w", err)
		}
		if err := tx.Queries.RecordTeamLoss(ctx, loserID); err != nil {
			return fmt.Errorf("record loss: %w", err)
		}
		return tx.Queries.TouchLeague(ctx, leagueID, now)
	})
	if err != nil {
		return LeagueView{}, fmt.Errorf("submit match result: %w", err)
	}

	logger := s.logger(ctx)
	logger.Info().
		Int64("league_id", leagueID).
		Int64("match_id", matchID).
		Int64("winner_team_id", winnerID).
		Int64("loser_team_id", loserID).
		Msg("Match result recorded")

	events.Emit(ctx, s.events, events.MatchCompleted, MatchCompleted{
		LeagueID: leagueID,
		MatchID:  matchID,
		WinnerID: winnerID,
		LoserID:  loserID,
		Scores:   scores,
	})
	return s.Get(ctx, leagueID)
}

func (s *Service) Leaderboard(ctx context.Context, leagueID int64) ([]models.LeaderboardEntry, error) {
	l, err := s.load(ctx, s.db.Queries, leagueID)
	if err != nil {
		return nil, err
	}
	return CalculateLeaderboard(l.Teams), nil
}
