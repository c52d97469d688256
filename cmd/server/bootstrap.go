package main

import (
	"context"
	"fmt"
	"os"

	"github.com/rs/zerolog/log"

	"github.com/codr1/Shuttlers/internal/models"
	"github.com/codr1/Shuttlers/internal/participants"
)

// bootstrapAdmin creates the first admin from BOOTSTRAP_ADMIN_EMAIL when the
// roster has none. The token is printed once and never stored in clear.
func bootstrapAdmin(ctx context.Context, svc *participants.Service) error {
	email := os.Getenv("BOOTSTRAP_ADMIN_EMAIL")
	if email == "" {
		return nil
	}
	roster, err := svc.List(ctx, true)
	if err != nil {
		return err
	}
	for _, p := range roster {
		if p.Role == models.RoleAdmin {
			return nil
		}
	}

	created, err := svc.Create(ctx, participants.CreateParams{
		Name:  getEnv("BOOTSTRAP_ADMIN_NAME", "Club Admin"),
		Email: email,
		Role:  models.RoleAdmin,
	})
	if err != nil {
		return fmt.Errorf("create bootstrap admin: %w", err)
	}
	log.Warn().
		Int64("participant_id", created.Participant.ID).
		Str("email", created.Participant.Email).
		Msg("Bootstrap admin created; store the token printed on stdout")
	fmt.Fprintf(os.Stdout, "admin token: %s\n", created.Token)
	return nil
}
