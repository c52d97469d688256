package models

import "time"

type ParticipantStats struct {
	TotalParticipants  int `json:"totalParticipants"`
	ActiveParticipants int `json:"activeParticipants"`
	Players            int `json:"players"`
	Admins             int `json:"admins"`
}

// RevenueEntry is one approved payment as seen by revenue reports.
type RevenueEntry struct {
	Amount    float64
	Method    PaymentMethod
	CreatedAt time.Time
}

// RevenueBucket totals approved payments for one day ("2006-01-02"), ISO
// week ("2006-W01") or month ("2006-01").
type RevenueBucket struct {
	Period  string  `json:"period"`
	Revenue float64 `json:"revenue"`
	Count   int     `json:"count"`
}

type MethodTotal struct {
	Method PaymentMethod `json:"paymentMethod"`
	Total  float64       `json:"total"`
	Count  int           `json:"count"`
}

type Dashboard struct {
	Participants    ParticipantStats `json:"participantStats"`
	Venues          VenueStats       `json:"venueStats"`
	Bookings        BookingStats     `json:"bookingStats"`
	Payments        PaymentStats     `json:"paymentStats"`
	TotalRevenue    float64          `json:"totalRevenue"`
	TotalExpenses   float64          `json:"totalExpenses"`
	NetIncome       float64          `json:"netIncome"`
	MonthlyRevenue  []RevenueBucket  `json:"monthlyRevenue"`
	RecentBookings  []Booking        `json:"recentBookings"`
	PendingPayments []Payment        `json:"pendingPayments"`
}

// Activity counts what was created within a window.
type Activity struct {
	Bookings int     `json:"bookings"`
	Payments int     `json:"payments"`
	Revenue  float64 `json:"revenue"`
}

type OverviewTotals struct {
	Participants int     `json:"totalParticipants"`
	Players      int     `json:"totalPlayers"`
	Admins       int     `json:"totalAdmins"`
	Venues       int     `json:"totalVenues"`
	Bookings     int     `json:"totalBookings"`
	Payments     int     `json:"totalPayments"`
	Revenue      float64 `json:"totalRevenue"`
}

type Overview struct {
	Totals    OverviewTotals `json:"overview"`
	Today     Activity       `json:"today"`
	ThisMonth Activity       `json:"thisMonth"`
}

type RevenueReport struct {
	Period   string          `json:"period"`
	Buckets  []RevenueBucket `json:"revenueData"`
	ByMethod []MethodTotal   `json:"paymentMethodBreakdown"`
}
