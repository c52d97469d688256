// Package participants manages the club roster and the API tokens its
// members authenticate with.
package participants

import (
	"context"
	"crypto/rand"
	"database/sql"
	"encoding/hex"
	"errors"
	"fmt"
	"net/mail"
	"strconv"
	"strings"

	"github.com/rs/zerolog/log"
	"golang.org/x/crypto/bcrypt"

	"github.com/codr1/Shuttlers/internal/clock"
	"github.com/codr1/Shuttlers/internal/db"
	"github.com/codr1/Shuttlers/internal/models"
	"github.com/codr1/Shuttlers/internal/phone"
)

var ErrInvalidToken = errors.New("invalid api token")

type Service struct {
	db          *db.DB
	clock       clock.Clock
	phoneRegion string
	hashCost    int
}

func NewService(database *db.DB, clk clock.Clock, phoneRegion string) *Service {
	if clk == nil {
		clk = clock.Real{}
	}
	return &Service{db: database, clock: clk, phoneRegion: phoneRegion, hashCost: bcrypt.DefaultCost}
}

// WithHashCost overrides the bcrypt cost. Tests use bcrypt.MinCost.
func (s *Service) WithHashCost(cost int) *Service {
	s.hashCost = cost
	return s
}

type CreateParams struct {
	Name  string      `json:"name"`
	Email string      `json:"email"`
	Phone string      `json:"phone"`
	Role  models.Role `json:"role"`
}

// Created carries the one-time API token alongside the new participant.
type Created struct {
	Participant models.Participant `json:"participant"`
	Token       string             `json:"token"`
}

// UpdateParams changes only the non-nil fields. An empty phone clears it.
type UpdateParams struct {
	Name  *string `json:"name"`
	Email *string `json:"email"`
	Phone *string `json:"phone"`
}

func normalizeName(name string) (string, error) {
	name = strings.TrimSpace(name)
	if name == "" || len(name) > 100 {
		return "", models.Invalid("name", "must be 1-100 characters")
	}
	return name, nil
}

func normalizeEmail(email string) (string, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	if _, err := mail.ParseAddress(email); err != nil {
		return "", models.Invalid("email", "must be a valid email address")
	}
	return email, nil
}

func normalizePhone(raw, region string) (string, error) {
	if strings.TrimSpace(raw) == "" {
		return "", nil
	}
	normalized, err := phone.Normalize(raw, region)
	if err != nil {
		return "", models.Invalid("phone", "must be a valid phone number")
	}
	return normalized, nil
}

func (p *CreateParams) normalize(region string) error {
	var err error
	if p.Name, err = normalizeName(p.Name); err != nil {
		return err
	}
	if p.Email, err = normalizeEmail(p.Email); err != nil {
		return err
	}
	if p.Role == "" {
		p.Role = models.RolePlayer
	}
	if !p.Role.Valid() {
		return models.Invalid("role", "must be admin or player")
	}
	p.Phone, err = normalizePhone(p.Phone, region)
	return err
}

// Create adds a participant and issues its API token. Only the bcrypt hash of
// the secret is stored.
func (s *Service) Create(ctx context.Context, params CreateParams) (Created, error) {
	if err := params.normalize(s.phoneRegion); err != nil {
		return Created{}, err
	}

	secret, err := newSecret()
	if err != nil {
		return Created{}, err
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(secret), s.hashCost)
	if err != nil {
		return Created{}, fmt.Errorf("hash token: %w", err)
	}

	p, err := s.db.Queries.CreateParticipant(ctx, db.CreateParticipantParams{
		Name:      params.Name,
		Email:     params.Email,
		Phone:     params.Phone,
		Role:      params.Role,
		TokenHash: string(hash),
		Now:       s.clock.Now(),
	})
	if err != nil {
		if errors.Is(err, models.ErrDuplicate) {
			return Created{}, fmt.Errorf("email %s already registered: %w", params.Email, models.ErrDuplicate)
		}
		return Created{}, fmt.Errorf("create participant: %w", err)
	}

	log.Ctx(ctx).Info().
		Int64("participant_id", p.ID).
		Str("role", string(p.Role)).
		Msg("Participant created")

	return Created{Participant: p, Token: FormatToken(p.ID, secret)}, nil
}

func (s *Service) Get(ctx context.Context, id int64) (models.Participant, error) {
	p, err := s.db.Queries.GetParticipant(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return models.Participant{}, fmt.Errorf("participant %d: %w", id, models.ErrNotFound)
		}
		return models.Participant{}, fmt.Errorf("get participant: %w", err)
	}
	return p, nil
}

// Update edits a participant's profile. Role and active state are not editable here.
func (s *Service) Update(ctx context.Context, id int64, params UpdateParams) (models.Participant, error) {
	p, err := s.Get(ctx, id)
	if err != nil {
		return models.Participant{}, err
	}
	if params.Name != nil {
		if p.Name, err = normalizeName(*params.Name); err != nil {
			return models.Participant{}, err
		}
	}
	if params.Email != nil {
		if p.Email, err = normalizeEmail(*params.Email); err != nil {
			return models.Participant{}, err
		}
	}
	if params.Phone != nil {
		if p.Phone, err = normalizePhone(*params.Phone, s.phoneRegion); err != nil {
			return models.Participant{}, err
		}
	}

	n, err := s.db.Queries.UpdateParticipantProfile(ctx, p, s.clock.Now())
	if err != nil {
		if errors.Is(err, models.ErrDuplicate) {
			return models.Participant{}, fmt.Errorf("email %s already registered: %w", p.Email, models.ErrDuplicate)
		}
		return models.Participant{}, fmt.Errorf("update participant: %w", err)
	}
	if n == 0 {
		return models.Participant{}, fmt.Errorf("participant %d: %w", id, models.ErrNotFound)
	}

	log.Ctx(ctx).Info().Int64("participant_id", id).Msg("Participant profile updated")
	return s.Get(ctx, id)
}

func (s *Service) List(ctx context.Context, activeOnly bool) ([]models.Participant, error) {
	return s.db.Queries.ListParticipants(ctx, activeOnly)
}

func (s *Service) ListActivePlayers(ctx context.Context) ([]models.Participant, error) {
	return s.db.Queries.ListActivePlayers(ctx)
}

func (s *Service) Deactivate(ctx context.Context, id int64) error {
	n, err := s.db.Queries.DeactivateParticipant(ctx, id, s.clock.Now())
	if err != nil {
		return fmt.Errorf("deactivate participant: %w", err)
	}
	if n == 0 {
		if _, err := s.Get(ctx, id); err != nil {
			return err
		}
	}
	return nil
}

// Authenticate resolves a "<id>.<secret>" token to an active participant.
func (s *Service) Authenticate(ctx context.Context, token string) (models.Participant, error) {
	id, secret, ok := ParseToken(token)
	if !ok {
		return models.Participant{}, ErrInvalidToken
	}
	p, hash, err := s.db.Queries.GetParticipantCredentials(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return models.Participant{}, ErrInvalidToken
		}
		return models.Participant{}, fmt.Errorf("load credentials: %w", err)
	}
	if bcrypt.CompareHashAndPassword([]byte(hash), []byte(secret)) != nil {
		return models.Participant{}, ErrInvalidToken
	}
	if !p.IsActive {
		return models.Participant{}, ErrInvalidToken
	}
	return p, nil
}

func FormatToken(id int64, secret string) string {
	return strconv.FormatInt(id, 10) + "." + secret
}

func ParseToken(token string) (int64, string, bool) {
	rawID, secret, ok := strings.Cut(strings.TrimSpace(token), ".")
	if !ok || secret == "" {
		return 0, "", false
	}
	id, err := strconv.ParseInt(rawID, 10, 64)
	if err != nil || id <= 0 {
		return 0, "", false
	}
	return id, secret, true
}

func newSecret() (string, error) {
	buf := make([]byte, 24)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("generate token: %w", err)
	}
	return hex.EncodeToString(buf), nil
}
