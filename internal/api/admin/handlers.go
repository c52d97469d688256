// Package admin serves the club's reporting views. Every route is admin only.
package admin

import (
	"context"
	"net/http"
	"time"

	"github.com/codr1/Shuttlers/internal/api/apiutil"
	"github.com/codr1/Shuttlers/internal/reports"
	"github.com/codr1/Shuttlers/internal/scheduler"
)

const queryTimeout = 10 * time.Second

// JobLister reports the state of background jobs.
type JobLister interface {
	Status() []scheduler.JobStatus
}

var (
	service *reports.Service
	jobs    JobLister
)

func InitHandlers(svc *reports.Service, jobLister JobLister) {
	service = svc
	jobs = jobLister
}

// GET /api/v1/admin/dashboard
func HandleDashboard(w http.ResponseWriter, r *http.Request) {
	if apiutil.RequireAdmin(w, r) == nil {
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), queryTimeout)
	defer cancel()

	d, err := service.Dashboard(ctx)
	if err != nil {
		apiutil.WriteError(w, r, err)
		return
	}
	apiutil.Respond(w, r, http.StatusOK, d)
}

// GET /api/v1/admin/overview
func HandleOverview(w http.ResponseWriter, r *http.Request) {
	if apiutil.RequireAdmin(w, r) == nil {
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), queryTimeout)
	defer cancel()

	o, err := service.Overview(ctx)
	if err != nil {
		apiutil.WriteError(w, r, err)
		return
	}
	apiutil.Respond(w, r, http.StatusOK, o)
}

// GET /api/v1/admin/revenue?period=daily|weekly|monthly&startDate=&endDate=
func HandleRevenue(w http.ResponseWriter, r *http.Request) {
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

	report, err := service.Revenue(ctx, reports.Period(r.URL.Query().Get("period")), dates)
	if err != nil {
		apiutil.WriteError(w, r, err)
		return
	}
	apiutil.Respond(w, r, http.StatusOK, report)
}

// GET /api/v1/admin/jobs
func HandleJobs(w http.ResponseWriter, r *http.Request) {
	if apiutil.RequireAdmin(w, r) == nil {
		return
	}
	statuses := []scheduler.JobStatus{}
	if jobs != nil {
		statuses = append(statuses, jobs.Status()...)
	}
	apiutil.Respond(w, r, http.StatusOK, map[string]any{"jobs": statuses})
}
