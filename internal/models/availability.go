package models

import "time"

// Availability is one participant's answer for one weekly cycle, keyed by
// (ParticipantID, WeekStart). IsAvailable is nil until they respond.
type Availability struct {
	ID            int64           `json:"id"`
	ParticipantID int64           `json:"participantId"`
	Participant   *ParticipantRef `json:"participant,omitempty"`
	WeekStart     time.Time       `json:"weekStartDate"`
	WeekEnd       time.Time       `json:"weekEndDate"`
	GameDate      time.Time       `json:"gameDate"`
	IsAvailable   *bool           `json:"isAvailable"`
	ResponseDate  *time.Time      `json:"responseDate,omitempty"`
	Notified      bool            `json:"emailSent"`
	NotifiedAt    *time.Time      `json:"emailSentAt,omitempty"`
	CreatedAt     time.Time       `json:"createdAt"`
	UpdatedAt     time.Time       `json:"updatedAt"`
}

// Responded reports whether the participant has answered this cycle.
func (a Availability) Responded() bool { return a.IsAvailable != nil }

// WeekWindow is one availability cycle.
type WeekWindow struct {
	WeekStart time.Time `json:"weekStart"`
	WeekEnd   time.Time `json:"weekEnd"`
	GameDate  time.Time `json:"gameDate"`
}

type AvailabilitySummary struct {
	Window            WeekWindow       `json:"window"`
	Available         []ParticipantRef `json:"available"`
	Unavailable       []ParticipantRef `json:"unavailable"`
	Awaiting          []ParticipantRef `json:"awaiting"` // notified, not yet answered
	NonResponded      []ParticipantRef `json:"nonResponded"`
	TotalParticipants int              `json:"totalParticipants"`
	RespondedCount    int              `json:"respondedCount"`
	AvailableCount    int              `json:"availableCount"`
	UnavailableCount  int              `json:"unavailableCount"`
	AwaitingCount     int              `json:"awaitingCount"`
	NonRespondedCount int              `json:"nonRespondedCount"`
	ResponseRate      int              `json:"responseRate"`
}
