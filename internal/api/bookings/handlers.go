// Package bookings serves court bookings.
package bookings

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/codr1/Shuttlers/internal/api/apiutil"
	"github.com/codr1/Shuttlers/internal/api/authz"
	"github.com/codr1/Shuttlers/internal/booking"
	"github.com/codr1/Shuttlers/internal/db"
	"github.com/codr1/Shuttlers/internal/models"
)

const (
	queryTimeout     = 5 * time.Second
	bookingIDPathKey = "id"
)

var service *booking.Service

func InitHandlers(svc *booking.Service) {
	service = svc
}

type bookingRequest struct {
	VenueID      int64    `json:"venueId"`
	CourtNumber  int      `json:"courtNumber"`
	BookingDate  string   `json:"bookingDate"`
	StartTime    string   `json:"startTime"`
	EndTime      string   `json:"endTime"`
	Duration     float64  `json:"duration"`
	Participants []int64  `json:"participants"`
	HourlyRate   *float64 `json:"hourlyRate"`
	Notes        string   `json:"notes"`
}

type updateRequest struct {
	VenueID      *int64   `json:"venueId"`
	CourtNumber  *int     `json:"courtNumber"`
	BookingDate  *string  `json:"bookingDate"`
	StartTime    *string  `json:"startTime"`
	EndTime      *string  `json:"endTime"`
	Duration     *float64 `json:"duration"`
	Participants *[]int64 `json:"participants"`
	HourlyRate   *float64 `json:"hourlyRate"`
	Notes        *string  `json:"notes"`
}

type cancelRequest struct {
	Reason string `json:"reason"`
}

func (req updateRequest) params() (booking.UpdateParams, error) {
	p := booking.UpdateParams{
		VenueID:      req.VenueID,
		CourtNumber:  req.CourtNumber,
		Duration:     req.Duration,
		Participants: req.Participants,
		HourlyRate:   req.HourlyRate,
		Notes:        req.Notes,
	}
	if req.BookingDate != nil {
		d, err := apiutil.ParseDateField(*req.BookingDate, "bookingDate")
		if err != nil {
			return booking.UpdateParams{}, err
		}
		p.Date = &d
	}
	if req.StartTime != nil {
		t := models.TimeOfDay(*req.StartTime)
		p.StartTime = &t
	}
	if req.EndTime != nil {
		t := models.TimeOfDay(*req.EndTime)
		p.EndTime = &t
	}
	return p, nil
}

// POST /api/v1/bookings
func HandleCreate(w http.ResponseWriter, r *http.Request) {
	admin := apiutil.RequireAdmin(w, r)
	if admin == nil {
		return
	}

	var req bookingRequest
	if err := apiutil.DecodeJSON(r, &req); err != nil {
		apiutil.WriteError(w, r, err)
		return
	}
	date, err := apiutil.ParseDateField(req.BookingDate, "bookingDate")
	if err != nil {
		apiutil.WriteError(w, r, err)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), queryTimeout)
	defer cancel()

	b, err := service.Create(ctx, booking.CreateParams{
		VenueID:      req.VenueID,
		CourtNumber:  req.CourtNumber,
		Date:         date,
		StartTime:    models.TimeOfDay(req.StartTime),
		EndTime:      models.TimeOfDay(req.EndTime),
		Duration:     req.Duration,
		Participants: req.Participants,
		HourlyRate:   req.HourlyRate,
		Notes:        req.Notes,
		CreatedBy:    admin.ID,
	})
	if err != nil {
		apiutil.WriteError(w, r, err)
		return
	}
	apiutil.Respond(w, r, http.StatusCreated, b)
}

// filterFromQuery scopes players to their own bookings.
func filterFromQuery(r *http.Request, user *authz.AuthUser) (db.BookingFilter, error) {
	q := r.URL.Query()
	var f db.BookingFilter
	var err error
	if f.VenueID, err = apiutil.ParseOptionalInt64Field(q.Get("venueId"), "venueId"); err != nil {
		return db.BookingFilter{}, err
	}
	if raw := q.Get("status"); raw != "" {
		f.Status = models.BookingStatus(strings.ToLower(raw))
		if !f.Status.Valid() {
			return db.BookingFilter{}, apiutil.FieldError{Field: "status", Reason: "must be pending, confirmed, cancelled or completed"}
		}
	}
	if f.Dates, err = apiutil.DateRangeFromQuery(r); err != nil {
		return db.BookingFilter{}, err
	}
	if authz.IsAdmin(user) {
		if f.ParticipantID, err = apiutil.ParseOptionalInt64Field(q.Get("participantId"), "participantId"); err != nil {
			return db.BookingFilter{}, err
		}
	} else {
		f.ParticipantID = user.ID
	}
	return f, nil
}

// GET /api/v1/bookings
func HandleList(w http.ResponseWriter, r *http.Request) {
	user := apiutil.RequireUser(w, r)
	if user == nil {
		return
	}
	filter, err := filterFromQuery(r, user)
	if err != nil {
		apiutil.WriteError(w, r, err)
		return
	}
	page, err := apiutil.PageFromQuery(r)
	if err != nil {
		apiutil.WriteError(w, r, err)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), queryTimeout)
	defer cancel()

	list, err := service.List(ctx, filter, page)
	if err != nil {
		apiutil.WriteError(w, r, err)
		return
	}
	apiutil.Respond(w, r, http.StatusOK, list)
}

// GET /api/v1/bookings/stats
func HandleStats(w http.ResponseWriter, r *http.Request) {
	user := apiutil.RequireUser(w, r)
	if user == nil {
		return
	}
	filter, err := filterFromQuery(r, user)
	if err != nil {
		apiutil.WriteError(w, r, err)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), queryTimeout)
	defer cancel()

	stats, err := service.Stats(ctx, filter)
	if err != nil {
		apiutil.WriteError(w, r, err)
		return
	}
	apiutil.Respond(w, r, http.StatusOK, stats)
}

// GET /api/v1/bookings/availability?venueId=&bookingDate=&courtNumber=&startTime=&endTime=
func HandleAvailability(w http.ResponseWriter, r *http.Request) {
	if apiutil.RequireUser(w, r) == nil {
		return
	}
	q := r.URL.Query()
	venueID, err := apiutil.ParsePositiveInt64Field(q.Get("venueId"), "venueId")
	if err != nil {
		apiutil.WriteError(w, r, err)
		return
	}
	date, err := apiutil.ParseDateField(q.Get("bookingDate"), "bookingDate")
	if err != nil {
		apiutil.WriteError(w, r, err)
		return
	}
	court, err := strconv.Atoi(q.Get("courtNumber"))
	if err != nil || court < 1 {
		apiutil.WriteError(w, r, apiutil.FieldError{Field: "courtNumber", Reason: "must be a positive integer"})
		return
	}
	exclude, err := apiutil.ParseOptionalInt64Field(q.Get("excludeBookingId"), "excludeBookingId")
	if err != nil {
		apiutil.WriteError(w, r, err)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), queryTimeout)
	defer cancel()

	free, err := service.CheckAvailability(ctx, booking.AvailabilityQuery{
		VenueID:     venueID,
		Date:        date,
		CourtNumber: court,
		StartTime:   models.TimeOfDay(q.Get("startTime")),
		EndTime:     models.TimeOfDay(q.Get("endTime")),
		ExcludeID:   exclude,
	})
	if err != nil {
		apiutil.WriteError(w, r, err)
		return
	}
	apiutil.Respond(w, r, http.StatusOK, map[string]bool{"isAvailable": free})
}

// loadVisible returns the booking when the caller may see it.
func loadVisible(ctx context.Context, user *authz.AuthUser, id int64) (models.Booking, error) {
	b, err := service.Get(ctx, id)
	if err != nil {
		return models.Booking{}, err
	}
	if !authz.CanView(user, b.Participants...) {
		return models.Booking{}, fmt.Errorf("booking %d: %w", id, models.ErrForbidden)
	}
	return b, nil
}

// GET /api/v1/bookings/{id}
func HandleDetail(w http.ResponseWriter, r *http.Request) {
	user := apiutil.RequireUser(w, r)
	if user == nil {
		return
	}
	id, err := apiutil.PathID(r, bookingIDPathKey)
	if err != nil {
		apiutil.WriteError(w, r, err)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), queryTimeout)
	defer cancel()

	b, err := loadVisible(ctx, user, id)
	if err != nil {
		apiutil.WriteError(w, r, err)
		return
	}
	apiutil.Respond(w, r, http.StatusOK, b)
}

// PUT /api/v1/bookings/{id}
func HandleUpdate(w http.ResponseWriter, r *http.Request) {
	if apiutil.RequireAdmin(w, r) == nil {
		return
	}
	id, err := apiutil.PathID(r, bookingIDPathKey)
	if err != nil {
		apiutil.WriteError(w, r, err)
		return
	}
	var req updateRequest
	if err := apiutil.DecodeJSON(r, &req); err != nil {
		apiutil.WriteError(w, r, err)
		return
	}
	params, err := req.params()
	if err != nil {
		apiutil.WriteError(w, r, err)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), queryTimeout)
	defer cancel()

	b, err := service.Update(ctx, id, params)
	if err != nil {
		apiutil.WriteError(w, r, err)
		return
	}
	apiutil.Respond(w, r, http.StatusOK, b)
}

// POST /api/v1/bookings/{id}/cancel
func HandleCancel(w http.ResponseWriter, r *http.Request) {
	user := apiutil.RequireUser(w, r)
	if user == nil {
		return
	}
	id, err := apiutil.PathID(r, bookingIDPathKey)
	if err != nil {
		apiutil.WriteError(w, r, err)
		return
	}
	var req cancelRequest
	if r.ContentLength != 0 {
		if err := apiutil.DecodeJSON(r, &req); err != nil {
			apiutil.WriteError(w, r, err)
			return
		}
	}

	ctx, cancel := context.WithTimeout(r.Context(), queryTimeout)
	defer cancel()

	b, err := service.Cancel(ctx, id, user.Participant(), req.Reason)
	if err != nil {
		apiutil.WriteError(w, r, err)
		return
	}
	apiutil.Respond(w, r, http.StatusOK, b)
}

// POST /api/v1/bookings/{id}/confirm
func HandleConfirm(w http.ResponseWriter, r *http.Request) {
	transition(w, r, service.Confirm)
}

// POST /api/v1/bookings/{id}/complete
func HandleComplete(w http.ResponseWriter, r *http.Request) {
	transition(w, r, service.Complete)
}

func transition(w http.ResponseWriter, r *http.Request, apply func(context.Context, int64) (models.Booking, error)) {
	if apiutil.RequireAdmin(w, r) == nil {
		return
	}
	id, err := apiutil.PathID(r, bookingIDPathKey)
	if err != nil {
		apiutil.WriteError(w, r, err)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), queryTimeout)
	defer cancel()

	b, err := apply(ctx, id)
	if err != nil {
		apiutil.WriteError(w, r, err)
		return
	}
	apiutil.Respond(w, r, http.StatusOK, b)
}
