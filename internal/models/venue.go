// internal/models/venue.go
package models

import "time"

type CourtType string

const (
	CourtIndoor  CourtType = "indoor"
	CourtOutdoor CourtType = "outdoor"
)

type CourtSurface string

const (
	SurfaceWooden    CourtSurface = "wooden"
	SurfaceSynthetic CourtSurface = "synthetic"
	SurfaceConcrete  CourtSurface = "concrete"
	SurfaceGrass     CourtSurface = "grass"
)

func (t CourtType) Valid() bool {
	return t == CourtIndoor || t == CourtOutdoor
}

func (s CourtSurface) Valid() bool {
	switch s {
	case SurfaceWooden, SurfaceSynthetic, SurfaceConcrete, SurfaceGrass:
		return true
	}
	return false
}

type Address struct {
	Street  string `json:"street"`
	City    string `json:"city"`
	State   string `json:"state"`
	ZipCode string `json:"zipCode"`
	Country string `json:"country"`
}

type GeoPoint struct {
	Longitude float64 `json:"longitude"`
	Latitude  float64 `json:"latitude"`
}

type Contact struct {
	Phone   string `json:"phone"`
	Email   string `json:"email,omitempty"`
	Website string `json:"website,omitempty"`
}

type Court struct {
	Number      int          `json:"courtNumber"`
	Type        CourtType    `json:"courtType"`
	Surface     CourtSurface `json:"surface"`
	IsAvailable bool         `json:"isAvailable"`
}

// Pricing holds the venue's hourly rate and an optional peak window.
// The peak window is [PeakStart, PeakEnd).
type Pricing struct {
	HourlyRate   float64    `json:"hourlyRate"`
	Currency     string     `json:"currency"`
	PeakHourRate *float64   `json:"peakHourRate,omitempty"`
	PeakStart    *TimeOfDay `json:"peakStart,omitempty"`
	PeakEnd      *TimeOfDay `json:"peakEnd,omitempty"`
}

// RateAt returns the rate that applies to a booking starting at start.
func (p Pricing) RateAt(start TimeOfDay) float64 {
	if p.PeakHourRate == nil || p.PeakStart == nil || p.PeakEnd == nil {
		return p.HourlyRate
	}
	if start >= *p.PeakStart && start < *p.PeakEnd {
		return *p.PeakHourRate
	}
	return p.HourlyRate
}

type Venue struct {
	ID          int64     `json:"id"`
	Name        string    `json:"name"`
	Description string    `json:"description,omitempty"`
	Address     Address   `json:"address"`
	Location    GeoPoint  `json:"location"`
	Contact     Contact   `json:"contactInfo"`
	Courts      []Court   `json:"courts"`
	Pricing     Pricing   `json:"pricing"`
	IsActive    bool      `json:"isActive"`
	CreatedBy   int64     `json:"createdBy"`
	CreatedAt   time.Time `json:"createdAt"`
	UpdatedAt   time.Time `json:"updatedAt"`
}

// Court returns the court with the given number.
func (v Venue) Court(number int) (Court, bool) {
	for _, c := range v.Courts {
		if c.Number == number {
			return c, true
		}
	}
	return Court{}, false
}

// AvailableCourts returns the courts currently open for booking.
func (v Venue) AvailableCourts() []Court {
	courts := make([]Court, 0, len(v.Courts))
	for _, c := range v.Courts {
		if c.IsAvailable {
			courts = append(courts, c)
		}
	}
	return courts
}

type VenueStats struct {
	TotalVenues   int     `json:"totalVenues"`
	ActiveVenues  int     `json:"activeVenues"`
	AvgHourlyRate float64 `json:"avgHourlyRate"`
	TotalCourts   int     `json:"totalCourts"`
}
