// Package venues is the registry of playable venues, their courts and pricing.
package venues

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/rs/zerolog/log"

	"github.com/codr1/Shuttlers/internal/clock"
	"github.com/codr1/Shuttlers/internal/db"
	"github.com/codr1/Shuttlers/internal/models"
	"github.com/codr1/Shuttlers/internal/phone"
)

type Service struct {
	db          *db.DB
	clock       clock.Clock
	phoneRegion string
}

func NewService(database *db.DB, clk clock.Clock, phoneRegion string) *Service {
	if clk == nil {
		clk = clock.Real{}
	}
	return &Service{db: database, clock: clk, phoneRegion: phoneRegion}
}

type CourtInput struct {
	Number      int                 `json:"courtNumber"`
	Type        models.CourtType    `json:"courtType"`
	Surface     models.CourtSurface `json:"surface"`
	IsAvailable *bool               `json:"isAvailable"`
}

type PricingInput struct {
	HourlyRate   float64           `json:"hourlyRate"`
	Currency     string            `json:"currency"`
	PeakHourRate *float64          `json:"peakHourRate"`
	PeakStart    *models.TimeOfDay `json:"peakStart"`
	PeakEnd      *models.TimeOfDay `json:"peakEnd"`
}

type CreateParams struct {
	Name        string          `json:"name"`
	Description string          `json:"description"`
	Address     models.Address  `json:"address"`
	Location    models.GeoPoint `json:"location"`
	Contact     models.Contact  `json:"contactInfo"`
	Courts      []CourtInput    `json:"courts"`
	Pricing     PricingInput    `json:"pricing"`
	CreatedBy   int64           `json:"-"`
}

// UpdateParams changes only the non-nil fields. Courts, when set, replace
// the whole court list.
type UpdateParams struct {
	Name        *string          `json:"name"`
	Description *string          `json:"description"`
	Address     *models.Address  `json:"address"`
	Location    *models.GeoPoint `json:"location"`
	Contact     *models.Contact  `json:"contactInfo"`
	Courts      *[]CourtInput    `json:"courts"`
	Pricing     *PricingInput    `json:"pricing"`
}

func buildCourts(inputs []CourtInput) ([]models.Court, error) {
	seen := make(map[int]bool, len(inputs))
	courts := make([]models.Court, 0, len(inputs))
	for _, in := range inputs {
		if in.Number < 1 {
			return nil, models.Invalid("courts", "court number must be at least 1")
		}
		if seen[in.Number] {
			return nil, models.Invalid("courts", "court number %d listed twice", in.Number)
		}
		seen[in.Number] = true
		c := models.Court{Number: in.Number, Type: in.Type, Surface: in.Surface, IsAvailable: true}
		if c.Type == "" {
			c.Type = models.CourtIndoor
		}
		if c.Surface == "" {
			c.Surface = models.SurfaceWooden
		}
		if !c.Type.Valid() {
			return nil, models.Invalid("courts", "court type must be indoor or outdoor")
		}
		if !c.Surface.Valid() {
			return nil, models.Invalid("courts", "surface must be wooden, synthetic, concrete or grass")
		}
		if in.IsAvailable != nil {
			c.IsAvailable = *in.IsAvailable
		}
		courts = append(courts, c)
	}
	return courts, nil
}

func buildPricing(in PricingInput) (models.Pricing, error) {
	p := models.Pricing{
		HourlyRate:   in.HourlyRate,
		Currency:     strings.ToUpper(strings.TrimSpace(in.Currency)),
		PeakHourRate: in.PeakHourRate,
		PeakStart:    in.PeakStart,
		PeakEnd:      in.PeakEnd,
	}
	if p.Currency == "" {
		p.Currency = "INR"
	}
	if p.HourlyRate < 0 {
		return models.Pricing{}, models.Invalid("pricing.hourlyRate", "must not be negative")
	}
	if p.PeakHourRate != nil && *p.PeakHourRate < 0 {
		return models.Pricing{}, models.Invalid("pricing.peakHourRate", "must not be negative")
	}
	if (p.PeakStart == nil) != (p.PeakEnd == nil) {
		return models.Pricing{}, models.Invalid("pricing.peakHours", "start and end must be set together")
	}
	if p.PeakStart != nil && !p.PeakStart.Before(*p.PeakEnd) {
		return models.Pricing{}, models.Invalid("pricing.peakHours", "start must be before end")
	}
	return p, nil
}

func (s *Service) validate(v *models.Venue) error {
	v.Name = strings.TrimSpace(v.Name)
	if v.Name == "" || len(v.Name) > 100 {
		return models.Invalid("name", "must be 1-100 characters")
	}
	if len(v.Description) > 500 {
		return models.Invalid("description", "must be at most 500 characters")
	}
	if v.Address.Street == "" || v.Address.City == "" || v.Address.State == "" || v.Address.ZipCode == "" {
		return models.Invalid("address", "street, city, state and zipCode are required")
	}
	if v.Address.Country == "" {
		v.Address.Country = "India"
	}
	if v.Location.Longitude < -180 || v.Location.Longitude > 180 {
		return models.Invalid("location.longitude", "must be between -180 and 180")
	}
	if v.Location.Latitude < -90 || v.Location.Latitude > 90 {
		return models.Invalid("location.latitude", "must be between -90 and 90")
	}
	normalized, err := phone.Normalize(v.Contact.Phone, s.phoneRegion)
	if err != nil {
		return models.Invalid("contactInfo.phone", "must be a valid phone number")
	}
	v.Contact.Phone = normalized
	if len(v.Courts) == 0 {
		return models.Invalid("courts", "at least one court is required")
	}
	return nil
}

func (s *Service) Create(ctx context.Context, params CreateParams) (models.Venue, error) {
	courts, err := buildCourts(params.Courts)
	if err != nil {
		return models.Venue{}, err
	}
	pricing, err := buildPricing(params.Pricing)
	if err != nil {
		return models.Venue{}, err
	}
	v := models.Venue{
		Name:        params.Name,
		Description: params.Description,
		Address:     params.Address,
		Location:    params.Location,
		Contact:     params.Contact,
		Courts:      courts,
		Pricing:     pricing,
		CreatedBy:   params.CreatedBy,
	}
	if err := s.validate(&v); err != nil {
		return models.Venue{}, err
	}

	var id int64
	err = s.db.RunInTx(ctx, func(tx *db.DB) error {
		var err error
		id, err = tx.Queries.CreateVenue(ctx, v, s.clock.Now())
		return err
	})
	if err != nil {
		return models.Venue{}, fmt.Errorf("create venue: %w", err)
	}

	log.Ctx(ctx).Info().Int64("venue_id", id).Int("courts", len(courts)).Msg("Venue created")
	return s.Get(ctx, id)
}

func (s *Service) Update(ctx context.Context, id int64, params UpdateParams) (models.Venue, error) {
	err := s.db.RunInTx(ctx, func(tx *db.DB) error {
		v, err := tx.Queries.GetVenue(ctx, id)
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return fmt.Errorf("venue %d: %w", id, models.ErrNotFound)
			}
			return err
		}
		if params.Name != nil {
			v.Name = *params.Name
		}
		if params.Description != nil {
			v.Description = *params.Description
		}
		if params.Address != nil {
			v.Address = *params.Address
		}
		if params.Location != nil {
			v.Location = *params.Location
		}
		if params.Contact != nil {
			v.Contact = *params.Contact
		}
		if params.Pricing != nil {
			if v.Pricing, err = buildPricing(*params.Pricing); err != nil {
				return err
			}
		}
		if params.Courts != nil {
			if v.Courts, err = buildCourts(*params.Courts); err != nil {
				return err
			}
		}
		if err := s.validate(&v); err != nil {
			return err
		}
		if _, err := tx.Queries.UpdateVenue(ctx, v, s.clock.Now()); err != nil {
			return err
		}
		if params.Courts != nil {
			return tx.Queries.ReplaceCourts(ctx, id, v.Courts)
		}
		return nil
	})
	if err != nil {
		return models.Venue{}, fmt.Errorf("update venue: %w", err)
	}
	return s.Get(ctx, id)
}

// Deactivate hides the venue from new bookings. Venues are never deleted so
// booking history keeps its references.
func (s *Service) Deactivate(ctx context.Context, id int64) error {
	n, err := s.db.Queries.DeactivateVenue(ctx, id, s.clock.Now())
	if err != nil {
		return fmt.Errorf("deactivate venue: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("venue %d: %w", id, models.ErrNotFound)
	}
	log.Ctx(ctx).Info().Int64("venue_id", id).Msg("Venue deactivated")
	return nil
}

func (s *Service) Get(ctx context.Context, id int64) (models.Venue, error) {
	v, err := s.db.Queries.GetVenue(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return models.Venue{}, fmt.Errorf("venue %d: %w", id, models.ErrNotFound)
		}
		return models.Venue{}, fmt.Errorf("get venue: %w", err)
	}
	return v, nil
}

type ListResult struct {
	Venues []models.Venue `json:"venues"`
	Total  int            `json:"total"`
}

func (s *Service) List(ctx context.Context, activeOnly bool, page db.Page) (ListResult, error) {
	venues, total, err := s.db.Queries.ListVenues(ctx, activeOnly, page.Normalize(20, 100))
	if err != nil {
		return ListResult{}, fmt.Errorf("list venues: %w", err)
	}
	return ListResult{Venues: venues, Total: total}, nil
}

type CourtsView struct {
	VenueID         int64          `json:"venueId"`
	TotalCourts     int            `json:"totalCourts"`
	AvailableCourts int            `json:"availableCourts"`
	Courts          []models.Court `json:"courts"`
}

// Courts lists the venue's courts that are open for booking.
func (s *Service) Courts(ctx context.Context, id int64) (CourtsView, error) {
	v, err := s.Get(ctx, id)
	if err != nil {
		return CourtsView{}, err
	}
	available := v.AvailableCourts()
	return CourtsView{
		VenueID:         v.ID,
		TotalCourts:     len(v.Courts),
		AvailableCourts: len(available),
		Courts:          available,
	}, nil
}

func (s *Service) Stats(ctx context.Context) (models.VenueStats, error) {
	stats, err := s.db.Queries.VenueStats(ctx)
	if err != nil {
		return models.VenueStats{}, fmt.Errorf("venue stats: %w", err)
	}
	return stats, nil
}
