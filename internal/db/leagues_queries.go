package db

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/codr1/Shuttlers/internal/models"
)

const leagueColumns = `id, name, description, start_date, end_date, is_active, created_by, created_at, updated_at`

func scanLeague(row scanner) (models.League, error) {
	var l models.League
	err := row.Scan(&l.ID, &l.Name, &l.Description, &l.StartDate, &l.EndDate, &l.IsActive, &l.CreatedBy, &l.CreatedAt, &l.UpdatedAt)
	return l, err
}

// InsertLeague stores the league and its teams. Run it inside a transaction.
func (q *Queries) InsertLeague(ctx context.Context, l models.League, now time.Time) (int64, error) {
	now = now.UTC()
	res, err := q.db.ExecContext(ctx, `
		INSERT INTO leagues (name, description, start_date, end_date, is_active, created_by, created_at, updated_at)
		VALUES (?, ?, ?, ?, 1, ?, ?, ?)`,
		l.Name, l.Description, l.StartDate.UTC(), l.EndDate.UTC(), l.CreatedBy, now, now,
	)
	if err != nil {
		return 0, MapConstraintError(err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, err
	}
	for i, t := range l.Teams {
		if _, err := q.db.ExecContext(ctx, `
			INSERT INTO league_teams (league_id, name, player1_id, player2_id, position)
			VALUES (?, ?, ?, ?, ?)`,
			id, t.Name, t.Player1, t.Player2, i,
		); err != nil {
			return 0, fmt.Errorf("insert team %q: %w", t.Name, MapConstraintError(err))
		}
	}
	return id, nil
}

// GetLeague loads the league aggregate: teams, matches and set scores.
func (q *Queries) GetLeague(ctx context.Context, id int64) (models.League, error) {
	l, err := scanLeague(q.db.QueryRowContext(ctx, `SELECT `+leagueColumns+` FROM leagues WHERE id = ?`, id))
	if err != nil {
		return models.League{}, err
	}
	if l.Teams, err = q.listTeams(ctx, id); err != nil {
		return models.League{}, err
	}
	if l.Matches, err = q.listMatches(ctx, id); err != nil {
		return models.League{}, err
	}
	return l, nil
}

// ListLeagues returns leagues without their children, latest start first.
func (q *Queries) ListLeagues(ctx context.Context, page Page) ([]models.League, int, error) {
	var total int
	if err := q.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM leagues`).Scan(&total); err != nil {
		return nil, 0, err
	}
	rows, err := q.db.QueryContext(ctx,
		`SELECT `+leagueColumns+` FROM leagues ORDER BY start_date DESC, id DESC LIMIT ? OFFSET ?`,
		page.Limit, page.Offset,
	)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()
	var out []models.League
	for rows.Next() {
		l, err := scanLeague(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("scan league: %w", err)
		}
		out = append(out, l)
	}
	return out, total, rows.Err()
}

func (q *Queries) listTeams(ctx context.Context, leagueID int64) ([]models.Team, error) {
	rows, err := q.db.QueryContext(ctx, `
		SELECT id, league_id, name, player1_id, player2_id, wins, losses, total_matches, current_streak
		FROM league_teams WHERE league_id = ? ORDER BY position, id`, leagueID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var teams []models.Team
	for rows.Next() {
		var t models.Team
		if err := rows.Scan(&t.ID, &t.LeagueID, &t.Name, &t.Player1, &t.Player2, &t.Wins, &t.Losses, &t.TotalMatches, &t.CurrentStreak); err != nil {
			return nil, fmt.Errorf("scan team: %w", err)
		}
		teams = append(teams, t)
	}
	return teams, rows.Err()
}

func (q *Queries) listMatches(ctx context.Context, leagueID int64) ([]models.Match, error) {
	rows, err := q.db.QueryContext(ctx, `
		SELECT id, league_id, team1_id, team2_id, scheduled_date, is_completed, winner_team_id, loser_team_id, completed_date
		FROM league_matches WHERE league_id = ? ORDER BY scheduled_date, id`, leagueID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var (
		matches []models.Match
		index   = map[int64]int{}
	)
	for rows.Next() {
		var (
			m         models.Match
			winner    sql.NullInt64
			loser     sql.NullInt64
			completed sql.NullTime
		)
		if err := rows.Scan(&m.ID, &m.LeagueID, &m.Team1, &m.Team2, &m.ScheduledDate, &m.IsCompleted, &winner, &loser, &completed); err != nil {
			return nil, fmt.Errorf("scan match: %w", err)
		}
		m.Winner = int64Ptr(winner)
		m.Loser = int64Ptr(loser)
		m.CompletedDate = timePtr(completed)
		index[m.ID] = len(matches)
		matches = append(matches, m)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	rows.Close()

	scoreRows, err := q.db.QueryContext(ctx, `
		SELECT s.match_id, s.set_number, s.team1_score, s.team2_score
		FROM match_scores s JOIN league_matches m ON m.id = s.match_id
		WHERE m.league_id = ? ORDER BY s.match_id, s.set_number`, leagueID)
	if err != nil {
		return nil, err
	}
	defer scoreRows.Close()
	for scoreRows.Next() {
		var (
			matchID int64
			s       models.SetScore
		)
		if err := scoreRows.Scan(&matchID, &s.Set, &s.Team1Score, &s.Team2Score); err != nil {
			return nil, fmt.Errorf("scan score: %w", err)
		}
		if i, ok := index[matchID]; ok {
			matches[i].Scores = append(matches[i].Scores, s)
		}
	}
	return matches, scoreRows.Err()
}

func (q *Queries) InsertMatch(ctx context.Context, m models.Match, now time.Time) (int64, error) {
	res, err := q.db.ExecContext(ctx, `
		INSERT INTO league_matches (league_id, team1_id, team2_id, scheduled_date, is_completed, created_at)
		VALUES (?, ?, ?, ?, 0, ?)`,
		m.LeagueID, m.Team1, m.Team2, m.ScheduledDate.UTC(), now.UTC(),
	)
	if err != nil {
		return 0, MapConstraintError(err)
	}
	return res.LastInsertId()
}

type CompleteMatchParams struct {
	MatchID     int64
	WinnerID    int64
	LoserID     int64
	Scores      []models.SetScore
	CompletedAt time.Time
}

// CompleteMatch marks an open match completed and stores its scores. It
// changes no rows when the match was already completed.
func (q *Queries) CompleteMatch(ctx context.Context, arg CompleteMatchParams) (int64, error) {
	n, err := rowsAffected(q.db.ExecContext(ctx, `
		UPDATE league_matches SET is_completed = 1, winner_team_id = ?, loser_team_id = ?, completed_date = ?
		WHERE id = ? AND is_completed = 0`,
		arg.WinnerID, arg.LoserID, arg.CompletedAt.UTC(), arg.MatchID,
	))
	if err != nil || n == 0 {
		return n, err
	}
	for _, s := range arg.Scores {
		if _, err := q.db.ExecContext(ctx,
			`INSERT INTO match_scores (match_id, set_number, team1_score, team2_score) VALUES (?, ?, ?, ?)`,
			arg.MatchID, s.Set, s.Team1Score, s.Team2Score,
		); err != nil {
			return 0, fmt.Errorf("insert set %d: %w", s.Set, MapConstraintError(err))
		}
	}
	return n, nil
}

func (q *Queries) RecordTeamWin(ctx context.Context, teamID int64) error {
	_, err := q.db.ExecContext(ctx, `
		UPDATE league_teams SET wins = wins + 1, total_matches = total_matches + 1, current_streak = current_streak + 1
		WHERE id = ?`, teamID)
	return err
}

func (q *Queries) RecordTeamLoss(ctx context.Context, teamID int64) error {
	_, err := q.db.ExecContext(ctx, `
		UPDATE league_teams SET losses = losses + 1, total_matches = total_matches + 1, current_streak = 0
		WHERE id = ?`, teamID)
	return err
}

func (q *Queries) TouchLeague(ctx context.Context, id int64, now time.Time) error {
	_, err := q.db.ExecContext(ctx, `UPDATE leagues SET updated_at = ? WHERE id = ?`, now.UTC(), id)
	return err
}
