// Package expenses serves the admin expense ledger.
package expenses

import (
	"context"
	"net/http"
	"time"

	"github.com/codr1/Shuttlers/internal/api/apiutil"
	"github.com/codr1/Shuttlers/internal/db"
	"github.com/codr1/Shuttlers/internal/expenses"
	"github.com/codr1/Shuttlers/internal/models"
)

const (
	queryTimeout     = 5 * time.Second
	expenseIDPathKey = "id"
)

var service *expenses.Service

func InitHandlers(svc *expenses.Service) {
	service = svc
}

// POST /api/v1/expenses
func HandleCreate(w http.ResponseWriter, r *http.Request) {
	admin := apiutil.RequireAdmin(w, r)
	if admin == nil {
		return
	}
	var req expenses.CreateParams
	if err := apiutil.DecodeJSON(r, &req); err != nil {
		apiutil.WriteError(w, r, err)
		return
	}
	req.AddedBy = admin.ID

	ctx, cancel := context.WithTimeout(r.Context(), queryTimeout)
	defer cancel()

	e, err := service.Create(ctx, req)
	if err != nil {
		apiutil.WriteError(w, r, err)
		return
	}
	apiutil.Respond(w, r, http.StatusCreated, e)
}

// GET /api/v1/expenses?venueId=&category=&startDate=&endDate=&limit=&offset=
func HandleList(w http.ResponseWriter, r *http.Request) {
	if apiutil.RequireAdmin(w, r) == nil {
		return
	}
	page, err := apiutil.PageFromQuery(r)
	if err != nil {
		apiutil.WriteError(w, r, err)
		return
	}
	dates, err := apiutil.DateRangeFromQuery(r)
	if err != nil {
		apiutil.WriteError(w, r, err)
		return
	}
	venueID, err := apiutil.ParseOptionalInt64Field(r.URL.Query().Get("venueId"), "venueId")
	if err != nil {
		apiutil.WriteError(w, r, err)
		return
	}
	filter := db.ExpenseFilter{
		VenueID:  venueID,
		Category: models.ExpenseCategory(r.URL.Query().Get("category")),
		Dates:    dates,
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

// GET /api/v1/expenses/stats?startDate=&endDate=
func HandleStats(w http.ResponseWriter, r *http.Request) {
	if apiutil.RequireAdmin(w, r) == nil {
		return
	}
	dates, err := apiutil.DateRangeFromQuery(r)
	if err != nil {
		apiutil.WriteError(w, r, err)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), queryTimeout)
	defer cancel()

	stats, err := service.Stats(ctx, dates)
	if err != nil {
		apiutil.WriteError(w, r, err)
		return
	}
	apiutil.Respond(w, r, http.StatusOK, stats)
}

// GET /api/v1/expenses/{id}
func HandleDetail(w http.ResponseWriter, r *http.Request) {
	if apiutil.RequireAdmin(w, r) == nil {
		return
	}
	id, err := apiutil.PathID(r, expenseIDPathKey)
	if err != nil {
		apiutil.WriteError(w, r, err)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), queryTimeout)
	defer cancel()

	e, err := service.Get(ctx, id)
	if err != nil {
		apiutil.WriteError(w, r, err)
		return
	}
	apiutil.Respond(w, r, http.StatusOK, e)
}

// PUT /api/v1/expenses/{id}
func HandleUpdate(w http.ResponseWriter, r *http.Request) {
	if apiutil.RequireAdmin(w, r) == nil {
		return
	}
	id, err := apiutil.PathID(r, expenseIDPathKey)
	if err != nil {
		apiutil.WriteError(w, r, err)
		return
	}
	var req expenses.UpdateParams
	if err := apiutil.DecodeJSON(r, &req); err != nil {
		apiutil.WriteError(w, r, err)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), queryTimeout)
	defer cancel()

	e, err := service.Update(ctx, id, req)
	if err != nil {
		apiutil.WriteError(w, r, err)
		return
	}
	apiutil.Respond(w, r, http.StatusOK, e)
}

// DELETE /api/v1/expenses/{id}
func HandleDelete(w http.ResponseWriter, r *http.Request) {
	if apiutil.RequireAdmin(w, r) == nil {
		return
	}
	id, err := apiutil.PathID(r, expenseIDPathKey)
	if err != nil {
		apiutil.WriteError(w, r, err)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), queryTimeout)
	defer cancel()

	if err := service.Delete(ctx, id); err != nil {
		apiutil.WriteError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
