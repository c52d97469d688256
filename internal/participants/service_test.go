package participants

import (
	"context"
	"errors"
	"testing"
	"time"

	"golang.org/x/crypto/bcrypt"

	"github.com/codr1/Shuttlers/internal/clock"
	"github.com/codr1/Shuttlers/internal/models"
	"github.com/codr1/Shuttlers/internal/testutil"
)

func newTestService(t *testing.T) *Service {
	t.Helper()
	database := testutil.NewTestDB(t)
	clk := clock.NewMock(time.Date(2024, 6, 1, 9, 0, 0, 0, time.UTC))
	return NewService(database, clk, "IN").WithHashCost(bcrypt.MinCost)
}

func TestCreateAndAuthenticate(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	created, err := svc.Create(ctx, CreateParams{Name: " Asha ", Email: "Asha@Example.com", Phone: "98765 43210"})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if created.Participant.Role != models.RolePlayer {
		t.Fatalf("expected default role player, got %s", created.Participant.Role)
	}
	if created.Participant.Email != "asha@example.com" || created.Participant.Name != "Asha" {
		t.Fatalf("expected normalized identity, got %+v", created.Participant)
	}
	if created.Participant.Phone != "+919876543210" {
		t.Fatalf("expected E.164 phone, got %q", created.Participant.Phone)
	}

	p, err := svc.Authenticate(ctx, created.Token)
	if err != nil {
		t.Fatalf("authenticate: %v", err)
	}
	if p.ID != created.Participant.ID {
		t.Fatalf("authenticated as %d, want %d", p.ID, created.Participant.ID)
	}

	id, _, _ := ParseToken(created.Token)
	if _, err := svc.Authenticate(ctx, FormatToken(id, "wrong")); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("expected ErrInvalidToken for wrong secret, got %v", err)
	}
	if _, err := svc.Authenticate(ctx, "garbage"); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("expected ErrInvalidToken for malformed token, got %v", err)
	}

	if err := svc.Deactivate(ctx, p.ID); err != nil {
		t.Fatalf("deactivate: %v", err)
	}
	if _, err := svc.Authenticate(ctx, created.Token); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("expected deactivated participant to be rejected, got %v", err)
	}
}

func TestCreateValidation(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	tests := []struct {
		name   string
		params CreateParams
		field  string
	}{
		{"missing name", CreateParams{Email: "a@example.com"}, "name"},
		{"bad email", CreateParams{Name: "A", Email: "nope"}, "email"},
		{"bad role", CreateParams{Name: "A", Email: "a@example.com", Role: "coach"}, "role"},
		{"bad phone", CreateParams{Name: "A", Email: "a@example.com", Phone: "12"}, "phone"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.Create(ctx, tt.params)
			var ve *models.ValidationError
			if !errors.As(err, &ve) || ve.Field != tt.field {
				t.Fatalf("expected validation error on %s, got %v", tt.field, err)
			}
		})
	}
}

func TestCreateDuplicateEmail(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	if _, err := svc.Create(ctx, CreateParams{Name: "A", Email: "a@example.com"}); err != nil {
		t.Fatalf("create: %v", err)
	}
	if _, err := svc.Create(ctx, CreateParams{Name: "B", Email: "A@example.com"}); !errors.Is(err, models.ErrDuplicate) {
		t.Fatalf("expected ErrDuplicate, got %v", err)
	}
}

func TestListActivePlayers(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	for _, p := range []CreateParams{
		{Name: "Admin", Email: "admin@example.com", Role: models.RoleAdmin},
		{Name: "Bala", Email: "bala@example.com"},
		{Name: "Chitra", Email: "chitra@example.com"},
	} {
		if _, err := svc.Create(ctx, p); err != nil {
			t.Fatalf("create %s: %v", p.Name, err)
		}
	}
	players, err := svc.ListActivePlayers(ctx)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(players) != 2 || players[0].Name != "Bala" {
		t.Fatalf("expected two players starting with Bala, got %+v", players)
	}

	if err := svc.Deactivate(ctx, 999); !errors.Is(err, models.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestUpdateProfile(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	created, err := svc.Create(ctx, CreateParams{Name: "Asha", Email: "asha@example.com", Phone: "98765 43210"})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if _, err := svc.Create(ctx, CreateParams{Name: "Bala", Email: "bala@example.com"}); err != nil {
		t.Fatalf("create second: %v", err)
	}
	id := created.Participant.ID
	str := func(s string) *string { return &s }

	p, err := svc.Update(ctx, id, UpdateParams{Name: str(" Asha K "), Phone: str("91234 56789")})
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	if p.Name != "Asha K" || p.Phone != "+919123456789" || p.Email != "asha@example.com" {
		t.Fatalf("unexpected profile: %+v", p)
	}
	if p.Role != models.RolePlayer || !p.IsActive {
		t.Fatalf("update should not touch role or active state: %+v", p)
	}

	cleared, err := svc.Update(ctx, id, UpdateParams{Phone: str("")})
	if err != nil || cleared.Phone != "" {
		t.Fatalf("expected phone cleared, got %q (%v)", cleared.Phone, err)
	}

	tests := []struct {
		name   string
		params UpdateParams
		want   error
	}{
		{"empty name", UpdateParams{Name: str(" ")}, models.ErrValidation},
		{"bad email", UpdateParams{Email: str("nope")}, models.ErrValidation},
		{"bad phone", UpdateParams{Phone: str("call me")}, models.ErrValidation},
		{"taken email", UpdateParams{Email: str("BALA@example.com")}, models.ErrDuplicate},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := svc.Update(ctx, id, tt.params); !errors.Is(err, tt.want) {
				t.Fatalf("expected %v, got %v", tt.want, err)
			}
		})
	}

	if _, err := svc.Update(ctx, 999, UpdateParams{Name: str("X")}); !errors.Is(err, models.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}
