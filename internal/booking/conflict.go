package booking

import (
	"context"
	"fmt"
	"time"

	"github.com/codr1/Shuttlers/internal/db"
	"github.com/codr1/Shuttlers/internal/models"
)

// SlotFree reports whether [start, end) clears every candidate. Ranges that
// only touch at an endpoint do not overlap.
func SlotFree(candidates []db.SlotBooking, start, end models.TimeOfDay) bool {
	for _, c := range candidates {
		if c.Status == models.BookingCancelled {
			continue
		}
		if !(start >= c.EndTime || end <= c.StartTime) {
			return false
		}
	}
	return true
}

// IsSlotFree checks the court's live bookings for the calendar day. A non-zero
// excludeID skips that booking so an edit does not collide with itself.
func IsSlotFree(ctx context.Context, q *db.Queries, venueID int64, date time.Time, court int, start, end models.TimeOfDay, excludeID int64) (bool, error) {
	candidates, err := q.ListSlotBookings(ctx, venueID, models.CalendarDate(date), court, excludeID)
	if err != nil {
		return false, fmt.Errorf("list slot bookings: %w", err)
	}
	return SlotFree(candidates, start, end), nil
}
