// Package booking owns the court booking lifecycle: slot conflict checks,
// cost allocation and the pending/confirmed/cancelled/completed transitions.
package booking

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/codr1/Shuttlers/internal/clock"
	"github.com/codr1/Shuttlers/internal/db"
	"github.com/codr1/Shuttlers/internal/events"
	"github.com/codr1/Shuttlers/internal/models"
	"github.com/codr1/Shuttlers/internal/slotlock"
)

const (
	minDurationHours = 0.5
	maxDurationHours = 24
	maxNotesLen      = 500
	maxReasonLen     = 200
)

type Service struct {
	db     *db.DB
	locker slotlock.Locker
	events events.Publisher
	clock  clock.Clock
	loc    *time.Location
}

// NewService wires the booking lifecycle. loc is the club time zone used to
// decide what "today" is.
func NewService(database *db.DB, locker slotlock.Locker, publisher events.Publisher, clk clock.Clock, loc *time.Location) *Service {
	if locker == nil {
		locker = slotlock.NewLocal()
	}
	if publisher == nil {
		publisher = events.Nop{}
	}
	if clk == nil {
		clk = clock.Real{}
	}
	if loc == nil {
		loc = time.UTC
	}
	return &Service{db: database, locker: locker, events: publisher, clock: clk, loc: loc}
}

func (s *Service) logger(ctx context.Context) zerolog.Logger {
	return log.Ctx(ctx).With().Str("component", "booking").Logger()
}

func (s *Service) today() time.Time {
	return models.CalendarDate(s.clock.Now().In(s.loc))
}

type CreateParams struct {
	VenueID      int64
	CourtNumber  int
	Date         time.Time
	StartTime    models.TimeOfDay
	EndTime      models.TimeOfDay
	Duration     float64 // 0 derives it from the time range
	Participants []int64
	HourlyRate   *float64 // nil takes the venue rate at StartTime
	Notes        string
	CreatedBy    int64
}

// UpdateParams changes only the non-nil fields.
type UpdateParams struct {
	VenueID      *int64
	CourtNumber  *int
	Date         *time.Time
	StartTime    *models.TimeOfDay
	EndTime      *models.TimeOfDay
	Duration     *float64
	Participants *[]int64
	HourlyRate   *float64
	Notes        *string
}

func (p UpdateParams) changesSlot() bool {
	return p.VenueID != nil || p.CourtNumber != nil || p.Date != nil || p.StartTime != nil || p.EndTime != nil
}

func (p UpdateParams) changesCost() bool {
	return p.HourlyRate != nil || p.Duration != nil || p.Participants != nil || p.StartTime != nil || p.EndTime != nil || p.VenueID != nil
}

func validateTimes(start, end models.TimeOfDay, duration float64) (models.TimeOfDay, models.TimeOfDay, float64, error) {
	start, err := models.ParseTimeOfDay(string(start))
	if err != nil {
		return "", "", 0, models.Invalid("startTime", "must be HH:MM")
	}
	end, err = models.ParseTimeOfDay(string(end))
	if err != nil {
		return "", "", 0, models.Invalid("endTime", "must be HH:MM")
	}
	if !start.Before(end) {
		return "", "", 0, models.Invalid("endTime", "must be after start time")
	}
	span := start.HoursUntil(end)
	if duration == 0 {
		duration = span
	}
	if duration < minDurationHours || duration > maxDurationHours {
		return "", "", 0, models.Invalid("duration", "must be between 0.5 and 24 hours")
	}
	if math.Abs(duration-span) > 1e-9 {
		return "", "", 0, models.Invalid("duration", "must match the time range (%.2f hours)", span)
	}
	return start, end, duration, nil
}

func validateRoster(ids []int64) error {
	if len(ids) == 0 {
		return models.Invalid("participants", "at least one participant is required")
	}
	seen := make(map[int64]bool, len(ids))
	for _, id := range ids {
		if seen[id] {
			return models.Invalid("participants", "participant %d listed twice", id)
		}
		seen[id] = true
	}
	return nil
}

// loadVenue returns the venue when it can take a booking on court.
func loadVenue(ctx context.Context, q *db.Queries, venueID int64, court int) (models.Venue, error) {
	v, err := q.GetVenue(ctx, venueID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return models.Venue{}, fmt.Errorf("venue %d: %w", venueID, models.ErrNotFound)
		}
		return models.Venue{}, fmt.Errorf("get venue: %w", err)
	}
	if !v.IsActive {
		return models.Venue{}, fmt.Errorf("venue %d is inactive: %w", venueID, models.ErrInvalidState)
	}
	c, ok := v.Court(court)
	if !ok {
		return models.Venue{}, models.Invalid("courtNumber", "court %d does not exist at this venue", court)
	}
	if !c.IsAvailable {
		return models.Venue{}, models.Invalid("courtNumber", "court %d is not available", court)
	}
	return v, nil
}

func ensurePlayers(ctx context.Context, q *db.Queries, ids []int64) error {
	found, err := q.GetParticipantsByIDs(ctx, ids)
	if err != nil {
		return fmt.Errorf("load participants: %w", err)
	}
	byID := make(map[int64]models.Participant, len(found))
	for _, p := range found {
		byID[p.ID] = p
	}
	for _, id := range ids {
		p, ok := byID[id]
		if !ok || !p.ActivePlayer() {
			return fmt.Errorf("participant %d: %w", id, models.ErrNotFound)
		}
	}
	return nil
}

// Create books a court slot as pending. A slot already held by a live booking
// fails with models.ErrConflict.
func (s *Service) Create(ctx context.Context, params CreateParams) (models.Booking, error) {
	start, end, duration, err := validateTimes(params.StartTime, params.EndTime, params.Duration)
	if err != nil {
		return models.Booking{}, err
	}
	if params.Date.IsZero() {
		return models.Booking{}, models.Invalid("date", "is required")
	}
	date := models.CalendarDate(params.Date)
	if date.Before(s.today()) {
		return models.Booking{}, models.Invalid("date", "must not be in the past")
	}
	if params.CourtNumber < 1 {
		return models.Booking{}, models.Invalid("courtNumber", "must be at least 1")
	}
	if err := validateRoster(params.Participants); err != nil {
		return models.Booking{}, err
	}
	if len(params.Notes) > maxNotesLen {
		return models.Booking{}, models.Invalid("notes", "must be at most %d characters", maxNotesLen)
	}
	if params.HourlyRate != nil && *params.HourlyRate < 0 {
		return models.Booking{}, models.Invalid("hourlyRate", "must not be negative")
	}

	venue, err := loadVenue(ctx, s.db.Queries, params.VenueID, params.CourtNumber)
	if err != nil {
		return models.Booking{}, err
	}
	if err := ensurePlayers(ctx, s.db.Queries, params.Participants); err != nil {
		return models.Booking{}, err
	}

	rate := venue.Pricing.RateAt(start)
	if params.HourlyRate != nil {
		rate = *params.HourlyRate
	}
	alloc := Allocate(rate, duration, len(params.Participants))
	now := s.clock.Now()
	b := models.Booking{
		VenueID:            venue.ID,
		CourtNumber:        params.CourtNumber,
		Date:               date,
		StartTime:          start,
		EndTime:            end,
		Duration:           duration,
		Participants:       params.Participants,
		HourlyRate:         rate,
		TotalCost:          alloc.TotalCost,
		CostPerParticipant: alloc.CostPerParticipant,
		Status:             models.BookingPending,
		PaymentStatus:      models.PaymentStatusPending,
		Notes:              params.Notes,
		CreatedBy:          params.CreatedBy,
		CreatedAt:          now,
		UpdatedAt:          now,
	}

	release, err := slotlock.LockAll(ctx, s.locker, slotlock.KeySlot(b.VenueID, b.Date, b.CourtNumber))
	if err != nil {
		return models.Booking{}, fmt.Errorf("lock slot: %w", err)
	}
	defer release()

	err = s.db.RunInTx(ctx, func(tx *db.DB) error {
		free, err := IsSlotFree(ctx, tx.Queries, b.VenueID, b.Date, b.CourtNumber, b.StartTime, b.EndTime, 0)
		if err != nil {
			return err
		}
		if !free {
			return models.ErrConflict
		}
		b.ID, err = tx.Queries.InsertBooking(ctx, b)
		return err
	})
	if err != nil {
		if errors.Is(err, models.ErrConflict) {
			return models.Booking{}, fmt.Errorf("court %d on %s %s: %w", b.CourtNumber, models.DateKey(b.Date), b.TimeRange(), models.ErrConflict)
		}
		return models.Booking{}, fmt.Errorf("create booking: %w", err)
	}

	logger := s.logger(ctx)
	logger.Info().
		Int64("booking_id", b.ID).
		Int64("venue_id", b.VenueID).
		Int("court", b.CourtNumber).
		Str("date", models.DateKey(b.Date)).
		Str("slot", b.TimeRange()).
		Msg("Booking created")

	created, err := s.Get(ctx, b.ID)
	if err != nil {
		return models.Booking{}, err
	}
	events.Emit(ctx, s.events, events.BookingCreated, created)
	return created, nil
}

// errSlotMoved means the booking left the slot that was locked for it.
var errSlotMoved = errors.New("booking moved to another slot")

const maxUpdateAttempts = 3

// Update applies a partial edit to a live booking. Slot changes are re-checked
// against every other booking on the target court, and costs are re-derived
// whenever rate, duration or roster move. The edit is computed from the row as
// read under the slot lock, so concurrent edits never persist stale costs.
func (s *Service) Update(ctx context.Context, id int64, params UpdateParams) (models.Booking, error) {
	for attempt := 1; ; attempt++ {
		updated, err := s.tryUpdate(ctx, id, params)
		if errors.Is(err, errSlotMoved) {
			if attempt < maxUpdateAttempts {
				continue
			}
			return models.Booking{}, fmt.Errorf("booking %d kept moving: %w", id, models.ErrConflict)
		}
		if err != nil {
			return models.Booking{}, err
		}

		logger := s.logger(ctx)
		logger.Info().Int64("booking_id", id).Bool("slot_changed", params.changesSlot()).Msg("Booking updated")
		events.Emit(ctx, s.events, events.BookingUpdated, updated)
		return updated, nil
	}
}

func bookingSlotKey(b models.Booking) string {
	return slotlock.KeySlot(b.VenueID, b.Date, b.CourtNumber)
}

// targetSlotKey is the slot b would occupy after params.
func targetSlotKey(b models.Booking, params UpdateParams) string {
	if params.VenueID != nil {
		b.VenueID = *params.VenueID
	}
	if params.CourtNumber != nil {
		b.CourtNumber = *params.CourtNumber
	}
	if params.Date != nil {
		b.Date = models.CalendarDate(*params.Date)
	}
	return bookingSlotKey(b)
}

func (s *Service) tryUpdate(ctx context.Context, id int64, params UpdateParams) (models.Booking, error) {
	// The unlocked read only picks the lock keys.
	located, err := s.Get(ctx, id)
	if err != nil {
		return models.Booking{}, err
	}
	if located.Status.Terminal() {
		return models.Booking{}, fmt.Errorf("booking %d is %s: %w", id, located.Status, models.ErrInvalidState)
	}
	lockedKey := bookingSlotKey(located)
	keys := []string{lockedKey}
	if params.changesSlot() {
		keys = append(keys, targetSlotKey(located, params))
	}
	release, err := slotlock.LockAll(ctx, s.locker, keys...)
	if err != nil {
		return models.Booking{}, fmt.Errorf("lock slot: %w", err)
	}
	defer release()

	var next models.Booking
	err = s.db.RunInTx(ctx, func(tx *db.DB) error {
		current, err := tx.Queries.GetBooking(ctx, id)
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return fmt.Errorf("booking %d: %w", id, models.ErrNotFound)
			}
			return fmt.Errorf("get booking: %w", err)
		}
		if bookingSlotKey(current) != lockedKey {
			return errSlotMoved
		}
		if current.Status.Terminal() {
			return fmt.Errorf("booking %d is %s: %w", id, current.Status, models.ErrInvalidState)
		}
		if next, err = s.applyUpdate(ctx, tx.Queries, current, params); err != nil {
			return err
		}

		if params.changesSlot() {
			free, err := IsSlotFree(ctx, tx.Queries, next.VenueID, next.Date, next.CourtNumber, next.StartTime, next.EndTime, id)
			if err != nil {
				return err
			}
			if !free {
				return models.ErrConflict
			}
		}
		n, err := tx.Queries.UpdateBookingDetails(ctx, next)
		if err != nil {
			return err
		}
		if n == 0 {
			return fmt.Errorf("booking %d is no longer live: %w", id, models.ErrInvalidState)
		}
		if params.Participants != nil {
			return tx.Queries.ReplaceBookingParticipants(ctx, id, next.Participants)
		}
		return nil
	})
	switch {
	case err == nil:
	case errors.Is(err, models.ErrConflict):
		return models.Booking{}, fmt.Errorf("court %d on %s %s: %w", next.CourtNumber, models.DateKey(next.Date), next.TimeRange(), models.ErrConflict)
	case errors.Is(err, errSlotMoved), errors.Is(err, models.ErrValidation),
		errors.Is(err, models.ErrNotFound), errors.Is(err, models.ErrInvalidState):
		return models.Booking{}, err
	default:
		return models.Booking{}, fmt.Errorf("update booking: %w", err)
	}
	return s.Get(ctx, id)
}

// applyUpdate derives the edited booking and its costs from current.
func (s *Service) applyUpdate(ctx context.Context, q *db.Queries, current models.Booking, params UpdateParams) (models.Booking, error) {
	next := current
	if params.VenueID != nil {
		next.VenueID = *params.VenueID
	}
	if params.CourtNumber != nil {
		next.CourtNumber = *params.CourtNumber
	}
	if params.Date != nil {
		next.Date = models.CalendarDate(*params.Date)
		if next.Date.Before(s.today()) {
			return models.Booking{}, models.Invalid("date", "must not be in the past")
		}
	}
	if params.StartTime != nil {
		next.StartTime = *params.StartTime
	}
	if params.EndTime != nil {
		next.EndTime = *params.EndTime
	}
	duration := next.Duration
	if params.Duration != nil {
		duration = *params.Duration
	} else if params.StartTime != nil || params.EndTime != nil {
		duration = 0
	}
	var err error
	if next.StartTime, next.EndTime, next.Duration, err = validateTimes(next.StartTime, next.EndTime, duration); err != nil {
		return models.Booking{}, err
	}
	if params.Participants != nil {
		if err := validateRoster(*params.Participants); err != nil {
			return models.Booking{}, err
		}
		next.Participants = *params.Participants
	}
	if params.Notes != nil {
		if len(*params.Notes) > maxNotesLen {
			return models.Booking{}, models.Invalid("notes", "must be at most %d characters", maxNotesLen)
		}
		next.Notes = *params.Notes
	}
	if params.HourlyRate != nil {
		if *params.HourlyRate < 0 {
			return models.Booking{}, models.Invalid("hourlyRate", "must not be negative")
		}
		next.HourlyRate = *params.HourlyRate
	}

	if params.VenueID != nil || params.CourtNumber != nil {
		venue, err := loadVenue(ctx, q, next.VenueID, next.CourtNumber)
		if err != nil {
			return models.Booking{}, err
		}
		if params.VenueID != nil && params.HourlyRate == nil && next.VenueID != current.VenueID {
			next.HourlyRate = venue.Pricing.RateAt(next.StartTime)
		}
	}
	if params.Participants != nil {
		if err := ensurePlayers(ctx, q, next.Participants); err != nil {
			return models.Booking{}, err
		}
	}
	if params.changesCost() {
		alloc := Allocate(next.HourlyRate, next.Duration, len(next.Participants))
		next.TotalCost = alloc.TotalCost
		next.CostPerParticipant = alloc.CostPerParticipant
	}
	next.UpdatedAt = s.clock.Now()
	return next, nil
}

// Cancel ends a live booking. Players may only cancel bookings they are on.
func (s *Service) Cancel(ctx context.Context, id int64, actor models.Participant, reason string) (models.Booking, error) {
	if len(reason) > maxReasonLen {
		return models.Booking{}, models.Invalid("reason", "must be at most %d characters", maxReasonLen)
	}
	b, err := s.Get(ctx, id)
	if err != nil {
		return models.Booking{}, err
	}
	if !actor.IsAdmin() && !b.HasParticipant(actor.ID) {
		return models.Booking{}, fmt.Errorf("participant %d is not on booking %d: %w", actor.ID, id, models.ErrForbidden)
	}
	if err := cancellable(b); err != nil {
		return models.Booking{}, err
	}

	n, err := s.db.Queries.CancelBooking(ctx, id, actor.ID, reason, s.clock.Now())
	if err != nil {
		return models.Booking{}, fmt.Errorf("cancel booking: %w", err)
	}
	if n == 0 {
		// Lost a race with another transition.
		if b, err = s.Get(ctx, id); err != nil {
			return models.Booking{}, err
		}
		if err := cancellable(b); err != nil {
			return models.Booking{}, err
		}
		return models.Booking{}, fmt.Errorf("booking %d: %w", id, models.ErrInvalidState)
	}

	logger := s.logger(ctx)
	logger.Info().Int64("booking_id", id).Int64("cancelled_by", actor.ID).Msg("Booking cancelled")

	cancelled, err := s.Get(ctx, id)
	if err != nil {
		return models.Booking{}, err
	}
	events.Emit(ctx, s.events, events.BookingCancelled, cancelled)
	return cancelled, nil
}

func cancellable(b models.Booking) error {
	switch b.Status {
	case models.BookingCancelled:
		return fmt.Errorf("booking %d: %w", b.ID, models.ErrAlreadyCancelled)
	case models.BookingCompleted:
		return fmt.Errorf("booking %d is completed: %w", b.ID, models.ErrInvalidState)
	}
	return nil
}

func (s *Service) Confirm(ctx context.Context, id int64) (models.Booking, error) {
	return s.transition(ctx, id, []models.BookingStatus{models.BookingPending}, models.BookingConfirmed, events.BookingConfirmed)
}

func (s *Service) Complete(ctx context.Context, id int64) (models.Booking, error) {
	return s.transition(ctx, id, []models.BookingStatus{models.BookingPending, models.BookingConfirmed}, models.BookingCompleted, events.BookingCompleted)
}

func (s *Service) transition(ctx context.Context, id int64, from []models.BookingStatus, to models.BookingStatus, event string) (models.Booking, error) {
	n, err := s.db.Queries.TransitionBooking(ctx, id, from, to, s.clock.Now())
	if err != nil {
		return models.Booking{}, fmt.Errorf("transition booking: %w", err)
	}
	b, err := s.Get(ctx, id)
	if err != nil {
		return models.Booking{}, err
	}
	if n == 0 {
		return models.Booking{}, fmt.Errorf("booking %d is %s, cannot become %s: %w", id, b.Status, to, models.ErrInvalidState)
	}

	logger := s.logger(ctx)
	logger.Info().Int64("booking_id", id).Str("status", string(to)).Msg("Booking status changed")
	events.Emit(ctx, s.events, event, b)
	return b, nil
}

type AvailabilityQuery struct {
	VenueID     int64
	Date        time.Time
	CourtNumber int
	StartTime   models.TimeOfDay
	EndTime     models.TimeOfDay
	ExcludeID   int64
}

// CheckAvailability reports whether the slot is free without booking it.
func (s *Service) CheckAvailability(ctx context.Context, q AvailabilityQuery) (bool, error) {
	start, err := models.ParseTimeOfDay(string(q.StartTime))
	if err != nil {
		return false, models.Invalid("startTime", "must be HH:MM")
	}
	end, err := models.ParseTimeOfDay(string(q.EndTime))
	if err != nil {
		return false, models.Invalid("endTime", "must be HH:MM")
	}
	if !start.Before(end) {
		return false, models.Invalid("endTime", "must be after start time")
	}
	if q.Date.IsZero() {
		return false, models.Invalid("date", "is required")
	}
	return IsSlotFree(ctx, s.db.Queries, q.VenueID, q.Date, q.CourtNumber, start, end, q.ExcludeID)
}

func (s *Service) Get(ctx context.Context, id int64) (models.Booking, error) {
	b, err := s.db.Queries.GetBooking(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return models.Booking{}, fmt.Errorf("booking %d: %w", id, models.ErrNotFound)
		}
		return models.Booking{}, fmt.Errorf("get booking: %w", err)
	}
	return b, nil
}

type ListResult struct {
	Bookings []models.Booking `json:"bookings"`
	Total    int              `json:"total"`
}

func (s *Service) List(ctx context.Context, filter db.BookingFilter, page db.Page) (ListResult, error) {
	bookings, total, err := s.db.Queries.ListBookings(ctx, filter, page.Normalize(20, 100))
	if err != nil {
		return ListResult{}, fmt.Errorf("list bookings: %w", err)
	}
	return ListResult{Bookings: bookings, Total: total}, nil
}

func (s *Service) Stats(ctx context.Context, filter db.BookingFilter) (models.BookingStats, error) {
	stats, err := s.db.Queries.BookingStats(ctx, filter)
	if err != nil {
		return models.BookingStats{}, fmt.Errorf("booking stats: %w", err)
	}
	return stats, nil
}

// MarkOverduePayments flags unsettled bookings dated before today in the club
// time zone and returns how many changed.
func (s *Service) MarkOverduePayments(ctx context.Context) (int64, error) {
	n, err := s.db.Queries.MarkOverduePayments(ctx, s.today(), s.clock.Now())
	if err != nil {
		return 0, fmt.Errorf("mark overdue payments: %w", err)
	}
	if n > 0 {
		logger := s.logger(ctx)
		logger.Info().Int64("bookings", n).Msg("Marked booking payments overdue")
	}
	return n, nil
}
