package testutil

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/codr1/Shuttlers/internal/db"
	"github.com/codr1/Shuttlers/internal/models"
)

// FixtureTime is the creation timestamp stamped on seeded rows.
var FixtureTime = time.Date(2024, 5, 1, 9, 0, 0, 0, time.UTC)

// CreateParticipant inserts a roster entry with a placeholder token hash.
func CreateParticipant(t *testing.T, database *db.DB, name string, role models.Role) models.Participant {
	t.Helper()
	p, err := database.Queries.CreateParticipant(context.Background(), db.CreateParticipantParams{
		Name:      name,
		Email:     strings.ToLower(strings.ReplaceAll(name, " ", ".")) + "@example.com",
		Role:      role,
		TokenHash: "unused",
		Now:       FixtureTime,
	})
	if err != nil {
		t.Fatalf("create participant %s: %v", name, err)
	}
	return p
}

// CreatePlayers inserts one active player per name and returns them in order.
func CreatePlayers(t *testing.T, database *db.DB, names ...string) []models.Participant {
	t.Helper()
	out := make([]models.Participant, 0, len(names))
	for _, name := range names {
		out = append(out, CreateParticipant(t, database, name, models.RolePlayer))
	}
	return out
}

// CreateVenue inserts an active venue with the given number of indoor courts
// at a flat hourly rate.
func CreateVenue(t *testing.T, database *db.DB, createdBy int64, name string, courts int, rate float64) models.Venue {
	t.Helper()
	v := models.Venue{
		Name:      name,
		Address:   models.Address{Street: "1 Main Road", City: "Pune", State: "MH", ZipCode: "411001", Country: "India"},
		Location:  models.GeoPoint{Longitude: 73.8567, Latitude: 18.5204},
		Contact:   models.Contact{Phone: "+912025535678"},
		Pricing:   models.Pricing{HourlyRate: rate, Currency: "INR"},
		CreatedBy: createdBy,
	}
	for i := 1; i <= courts; i++ {
		v.Courts = append(v.Courts, models.Court{Number: i, Type: models.CourtIndoor, Surface: models.SurfaceWooden, IsAvailable: true})
	}
	ctx := context.Background()
	id, err := database.Queries.CreateVenue(ctx, v, FixtureTime)
	if err != nil {
		t.Fatalf("create venue %s: %v", name, err)
	}
	created, err := database.Queries.GetVenue(ctx, id)
	if err != nil {
		t.Fatalf("get venue %s: %v", name, err)
	}
	return created
}
