package db

import (
	"context"
	"fmt"
	"time"

	"github.com/codr1/Shuttlers/internal/models"
)

const participantColumns = `id, name, email, phone, role, is_active, created_at, updated_at`

type scanner interface {
	Scan(dest ...any) error
}

func scanParticipant(row scanner, extra ...any) (models.Participant, error) {
	var p models.Participant
	dest := append([]any{&p.ID, &p.Name, &p.Email, &p.Phone, &p.Role, &p.IsActive, &p.CreatedAt, &p.UpdatedAt}, extra...)
	err := row.Scan(dest...)
	return p, err
}

type CreateParticipantParams struct {
	Name      string
	Email     string
	Phone     string
	Role      models.Role
	TokenHash string
	Now       time.Time
}

func (q *Queries) CreateParticipant(ctx context.Context, arg CreateParticipantParams) (models.Participant, error) {
	now := arg.Now.UTC()
	res, err := q.db.ExecContext(ctx, `
		INSERT INTO participants (name, email, phone, role, is_active, token_hash, created_at, updated_at)
		VALUES (?, ?, ?, ?, 1, ?, ?, ?)`,
		arg.Name, arg.Email, arg.Phone, arg.Role, arg.TokenHash, now, now,
	)
	if err != nil {
		return models.Participant{}, MapConstraintError(err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return models.Participant{}, err
	}
	return q.GetParticipant(ctx, id)
}

func (q *Queries) GetParticipant(ctx context.Context, id int64) (models.Participant, error) {
	row := q.db.QueryRowContext(ctx, `SELECT `+participantColumns+` FROM participants WHERE id = ?`, id)
	return scanParticipant(row)
}

// GetParticipantCredentials returns the participant with its stored token hash.
func (q *Queries) GetParticipantCredentials(ctx context.Context, id int64) (models.Participant, string, error) {
	var hash string
	row := q.db.QueryRowContext(ctx, `SELECT `+participantColumns+`, token_hash FROM participants WHERE id = ?`, id)
	p, err := scanParticipant(row, &hash)
	return p, hash, err
}

// GetParticipantsByIDs returns the participants found among ids, in id order.
func (q *Queries) GetParticipantsByIDs(ctx context.Context, ids []int64) ([]models.Participant, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	args := make([]any, len(ids))
	for i, id := range ids {
		args[i] = id
	}
	rows, err := q.db.QueryContext(ctx,
		`SELECT `+participantColumns+` FROM participants WHERE id IN (`+placeholders(len(ids))+`) ORDER BY id`,
		args...,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectParticipants(rows)
}

func (q *Queries) ListParticipants(ctx context.Context, activeOnly bool) ([]models.Participant, error) {
	query := `SELECT ` + participantColumns + ` FROM participants`
	if activeOnly {
		query += ` WHERE is_active = 1`
	}
	rows, err := q.db.QueryContext(ctx, query+` ORDER BY name, id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectParticipants(rows)
}

// ListActivePlayers returns the roster targeted by bookings, leagues and polls.
func (q *Queries) ListActivePlayers(ctx context.Context) ([]models.Participant, error) {
	rows, err := q.db.QueryContext(ctx,
		`SELECT `+participantColumns+` FROM participants WHERE is_active = 1 AND role = ? ORDER BY name, id`,
		models.RolePlayer,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectParticipants(rows)
}

// UpdateParticipantProfile rewrites the editable identity fields.
func (q *Queries) UpdateParticipantProfile(ctx context.Context, p models.Participant, now time.Time) (int64, error) {
	return rowsAffected(q.db.ExecContext(ctx,
		`UPDATE participants SET name = ?, email = ?, phone = ?, updated_at = ? WHERE id = ?`,
		p.Name, p.Email, p.Phone, now.UTC(), p.ID,
	))
}

func (q *Queries) DeactivateParticipant(ctx context.Context, id int64, now time.Time) (int64, error) {
	return rowsAffected(q.db.ExecContext(ctx,
		`UPDATE participants SET is_active = 0, updated_at = ? WHERE id = ? AND is_active = 1`,
		now.UTC(), id,
	))
}

func collectParticipants(rows interface {
	scanner
	Next() bool
	Err() error
}) ([]models.Participant, error) {
	var out []models.Participant
	for rows.Next() {
		p, err := scanParticipant(rows)
		if err != nil {
			return nil, fmt.Errorf("scan participant: %w", err)
		}
		out = append(out, p)
	}
	return out, rows.Err()
}
