package venues

import (
	"context"
	"fmt"
	"math"
	"sort"

	"github.com/codr1/Shuttlers/internal/db"
	"github.com/codr1/Shuttlers/internal/models"
)

const (
	DefaultNearbyRadiusMeters = 10000
	defaultNearbyLimit        = 20
	earthRadiusMeters         = 6371000
)

type NearbyVenue struct {
	models.Venue
	DistanceMeters float64 `json:"distanceMeters"`
}

// Nearby returns active venues within radius meters of point, nearest first.
func (s *Service) Nearby(ctx context.Context, point models.GeoPoint, radius float64, limit int) ([]NearbyVenue, error) {
	if point.Longitude < -180 || point.Longitude > 180 || point.Latitude < -90 || point.Latitude > 90 {
		return nil, models.Invalid("location", "coordinates out of range")
	}
	if radius <= 0 {
		radius = DefaultNearbyRadiusMeters
	}
	if limit <= 0 {
		limit = defaultNearbyLimit
	}

	venues, _, err := s.db.Queries.ListVenues(ctx, true, db.Page{})
	if err != nil {
		return nil, fmt.Errorf("list venues: %w", err)
	}

	var out []NearbyVenue
	for _, v := range venues {
		d := Distance(point, v.Location)
		if d <= radius {
			out = append(out, NearbyVenue{Venue: v, DistanceMeters: math.Round(d)})
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].DistanceMeters < out[j].DistanceMeters })
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// Distance is the great-circle distance between a and b in meters.
func Distance(a, b models.GeoPoint) float64 {
	lat1 := a.Latitude * math.Pi / 180
	lat2 := b.Latitude * math.Pi / 180
	dLat := lat2 - lat1
	dLon := (b.Longitude - a.Longitude) * math.Pi / 180

	h := math.Sin(dLat/2)*math.Sin(dLat/2) + math.Cos(lat1)*math.Cos(lat2)*math.Sin(dLon/2)*math.Sin(dLon/2)
	return 2 * earthRadiusMeters * math.Asin(math.Min(1, math.Sqrt(h)))
}
