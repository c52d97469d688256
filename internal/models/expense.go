package models

import "time"

type ExpenseCategory string

const (
	ExpenseCourtBooking ExpenseCategory = "court_booking"
	ExpenseEquipment    ExpenseCategory = "equipment"
	ExpenseOther        ExpenseCategory = "other"
)

func (c ExpenseCategory) Valid() bool {
	switch c {
	case ExpenseCourtBooking, ExpenseEquipment, ExpenseOther:
		return true
	}
	return false
}

// Expense is money the club spent, usually court hire or shuttles.
type Expense struct {
	ID          int64           `json:"id"`
	Date        time.Time       `json:"date"`
	VenueID     int64           `json:"venueId"`
	VenueName   string          `json:"venueName,omitempty"`
	Amount      float64         `json:"amount"`
	Description string          `json:"description"`
	Category    ExpenseCategory `json:"category"`
	ImageURL    string          `json:"imageUrl,omitempty"`
	AddedBy     int64           `json:"addedBy"`
	IsActive    bool            `json:"isActive"`
	CreatedAt   time.Time       `json:"createdAt"`
	UpdatedAt   time.Time       `json:"updatedAt"`
}

type ExpenseTotals struct {
	TotalAmount   float64 `json:"totalAmount"`
	TotalExpenses int     `json:"totalExpenses"`
	AvgAmount     float64 `json:"avgAmount"`
}

type CategoryTotal struct {
	Category    ExpenseCategory `json:"category"`
	TotalAmount float64         `json:"totalAmount"`
	Count       int             `json:"count"`
}

// MonthTotal is keyed by "YYYY-MM".
type MonthTotal struct {
	Month       string  `json:"month"`
	TotalAmount float64 `json:"totalAmount"`
	Count       int     `json:"count"`
}

type ExpenseStats struct {
	Summary    ExpenseTotals   `json:"summary"`
	ByCategory []CategoryTotal `json:"byCategory"`
	ByMonth    []MonthTotal    `json:"byMonth"`
}
