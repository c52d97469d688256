package models

import "time"

type Role string

const (
	RoleAdmin  Role = "admin"
	RolePlayer Role = "player"
)

func (r Role) Valid() bool {
	return r == RoleAdmin || r == RolePlayer
}

// Participant is a club roster entry. Players book courts, pay, answer the
// weekly poll and form league teams; admins manage venues and review payments.
type Participant struct {
	ID        int64     `json:"id"`
	Name      string    `json:"name"`
	Email     string    `json:"email"`
	Phone     string    `json:"phone,omitempty"`
	Role      Role      `json:"role"`
	IsActive  bool      `json:"isActive"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

func (p Participant) IsAdmin() bool { return p.Role == RoleAdmin }

// ActivePlayer reports whether p can take part in bookings, leagues and polls.
func (p Participant) ActivePlayer() bool {
	return p.IsActive && p.Role == RolePlayer
}

// ParticipantRef is the identity projection embedded in other views.
type ParticipantRef struct {
	ID    int64  `json:"id"`
	Name  string `json:"name"`
	Email string `json:"email,omitempty"`
}
