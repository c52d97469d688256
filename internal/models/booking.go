// internal/models/booking.go
package models

import "time"

type BookingStatus string

const (
	BookingPending   BookingStatus = "pending"
	BookingConfirmed BookingStatus = "confirmed"
	BookingCancelled BookingStatus = "cancelled"
	BookingCompleted BookingStatus = "completed"
)

// Terminal reports whether no further transitions are allowed.
func (s BookingStatus) Terminal() bool {
	return s == BookingCancelled || s == BookingCompleted
}

func (s BookingStatus) Valid() bool {
	switch s {
	case BookingPending, BookingConfirmed, BookingCancelled, BookingCompleted:
		return true
	}
	return false
}

type PaymentStatus string

const (
	PaymentStatusPending PaymentStatus = "pending"
	PaymentStatusPartial PaymentStatus = "partial"
	PaymentStatusPaid    PaymentStatus = "paid"
	PaymentStatusOverdue PaymentStatus = "overdue"
)

type Cancellation struct {
	CancelledBy int64     `json:"cancelledBy"`
	CancelledAt time.Time `json:"cancelledAt"`
	Reason      string    `json:"reason,omitempty"`
}

type Booking struct {
	ID                 int64         `json:"id"`
	VenueID            int64         `json:"venueId"`
	VenueName          string        `json:"venueName,omitempty"`
	CourtNumber        int           `json:"courtNumber"`
	Date               time.Time     `json:"date"`
	StartTime          TimeOfDay     `json:"startTime"`
	EndTime            TimeOfDay     `json:"endTime"`
	Duration           float64       `json:"duration"`
	Participants       []int64       `json:"participants"`
	HourlyRate         float64       `json:"hourlyRate"`
	TotalCost          float64       `json:"totalCost"`
	CostPerParticipant float64       `json:"costPerPlayer"`
	Status             BookingStatus `json:"status"`
	PaymentStatus      PaymentStatus `json:"paymentStatus"`
	Notes              string        `json:"notes,omitempty"`
	CreatedBy          int64         `json:"createdBy"`
	Cancellation       *Cancellation `json:"cancellation,omitempty"`
	CreatedAt          time.Time     `json:"createdAt"`
	UpdatedAt          time.Time     `json:"updatedAt"`
}

// HasParticipant reports whether id is on the booking roster.
func (b Booking) HasParticipant(id int64) bool {
	for _, p := range b.Participants {
		if p == id {
			return true
		}
	}
	return false
}

// TimeRange renders "HH:MM - HH:MM".
func (b Booking) TimeRange() string {
	return string(b.StartTime) + " - " + string(b.EndTime)
}

// DateFormatted renders the booking date for display, e.g. "Sat, 1 Jun 2024".
func (b Booking) DateFormatted() string {
	return b.Date.Format("Mon, 2 Jan 2006")
}

type BookingStats struct {
	TotalBookings     int     `json:"totalBookings"`
	TotalCost         float64 `json:"totalCost"`
	AvgCostPerBooking float64 `json:"avgCostPerBooking"`
	Pending           int     `json:"pendingBookings"`
	Confirmed         int     `json:"confirmedBookings"`
	Cancelled         int     `json:"cancelledBookings"`
	Completed         int     `json:"completedBookings"`
}
