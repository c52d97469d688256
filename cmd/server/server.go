// cmd/server/server.go
package main

import (
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/codr1/Shuttlers/internal/api"
	adminapi "github.com/codr1/Shuttlers/internal/api/admin"
	availabilityapi "github.com/codr1/Shuttlers/internal/api/availability"
	bookingsapi "github.com/codr1/Shuttlers/internal/api/bookings"
	expensesapi "github.com/codr1/Shuttlers/internal/api/expenses"
	leaguesapi "github.com/codr1/Shuttlers/internal/api/leagues"
	participantsapi "github.com/codr1/Shuttlers/internal/api/participants"
	paymentsapi "github.com/codr1/Shuttlers/internal/api/payments"
	venuesapi "github.com/codr1/Shuttlers/internal/api/venues"
	"github.com/codr1/Shuttlers/internal/config"
)

func newServer(cfg *config.Config, app *application) *http.Server {
	router := http.NewServeMux()

	// Setup middleware chain
	handler := api.ChainMiddleware(
		router,
		api.WithRateLimit(app.limiter),
		api.WithAuth(app.participants, app.limiter, !cfg.IsDevelopment()),
		api.WithLogging,
		api.WithRecovery,
		api.WithRequestID,
	)

	participantsapi.InitHandlers(app.participants)
	venuesapi.InitHandlers(app.venues)
	bookingsapi.InitHandlers(app.bookings)
	paymentsapi.InitHandlers(app.payments)
	leaguesapi.InitHandlers(app.leagues)
	availabilityapi.InitHandlers(app.poller)
	expensesapi.InitHandlers(app.expenses)
	adminapi.InitHandlers(app.reports, app.scheduler)

	// Register routes
	registerRoutes(router)
	if cfg.Storage.Driver == "local" {
		router.Handle("GET /uploads/", uploadsHandler(cfg.Storage.LocalDir))
	}

	return &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.App.Port),
		Handler:      handler,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  60 * time.Second,
	}
}

// uploadsHandler serves locally stored payment proofs without directory listings.
func uploadsHandler(dir string) http.Handler {
	files := http.StripPrefix("/uploads/", http.FileServer(http.Dir(dir)))
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if strings.HasSuffix(r.URL.Path, "/") {
			http.NotFound(w, r)
			return
		}
		files.ServeHTTP(w, r)
	})
}

func registerRoutes(mux *http.ServeMux) {
	// Health check
	mux.HandleFunc("GET /health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("OK"))
	})

	// Participant routes
	mux.HandleFunc("POST /api/v1/participants", participantsapi.HandleCreate)
	mux.HandleFunc("GET /api/v1/participants", participantsapi.HandleList)
	mux.HandleFunc("GET /api/v1/participants/me", participantsapi.HandleMe)
	mux.HandleFunc("PUT /api/v1/participants/{id}", participantsapi.HandleUpdate)
	mux.HandleFunc("DELETE /api/v1/participants/{id}", participantsapi.HandleDeactivate)

	// Venue routes
	mux.HandleFunc("POST /api/v1/venues", venuesapi.HandleCreate)
	mux.HandleFunc("GET /api/v1/venues", venuesapi.HandleList)
	mux.HandleFunc("GET /api/v1/venues/nearby", venuesapi.HandleNearby)
	mux.HandleFunc("GET /api/v1/venues/stats", venuesapi.HandleStats)
	mux.HandleFunc("GET /api/v1/venues/{id}", venuesapi.HandleDetail)
	mux.HandleFunc("PUT /api/v1/venues/{id}", venuesapi.HandleUpdate)
	mux.HandleFunc("DELETE /api/v1/venues/{id}", venuesapi.HandleDeactivate)
	mux.HandleFunc("GET /api/v1/venues/{id}/courts", venuesapi.HandleCourts)

	// Booking routes
	mux.HandleFunc("POST /api/v1/bookings", bookingsapi.HandleCreate)
	mux.HandleFunc("GET /api/v1/bookings", bookingsapi.HandleList)
	mux.HandleFunc("GET /api/v1/bookings/stats", bookingsapi.HandleStats)
	mux.HandleFunc("GET /api/v1/bookings/availability", bookingsapi.HandleAvailability)
	mux.HandleFunc("GET /api/v1/bookings/{id}", bookingsapi.HandleDetail)
	mux.HandleFunc("PUT /api/v1/bookings/{id}", bookingsapi.HandleUpdate)
	mux.HandleFunc("POST /api/v1/bookings/{id}/cancel", bookingsapi.HandleCancel)
	mux.HandleFunc("POST /api/v1/bookings/{id}/confirm", bookingsapi.HandleConfirm)
	mux.HandleFunc("POST /api/v1/bookings/{id}/complete", bookingsapi.HandleComplete)
	mux.HandleFunc("GET /api/v1/bookings/{id}/payments", paymentsapi.HandleListForBooking)

	// Payment routes
	mux.HandleFunc("POST /api/v1/payments", paymentsapi.HandleSubmit)
	mux.HandleFunc("GET /api/v1/payments", paymentsapi.HandleList)
	mux.HandleFunc("GET /api/v1/payments/stats", paymentsapi.HandleStats)
	mux.HandleFunc("GET /api/v1/payments/pending", paymentsapi.HandlePending)
	mux.HandleFunc("GET /api/v1/payments/{id}", paymentsapi.HandleDetail)
	mux.HandleFunc("POST /api/v1/payments/{id}/approve", paymentsapi.HandleApprove)
	mux.HandleFunc("POST /api/v1/payments/{id}/reject", paymentsapi.HandleReject)

	// League routes
	mux.HandleFunc("POST /api/v1/leagues", leaguesapi.HandleCreateLeague)
	mux.HandleFunc("GET /api/v1/leagues", leaguesapi.HandleListLeagues)
	mux.HandleFunc("GET /api/v1/leagues/{id}", leaguesapi.HandleLeagueDetail)
	mux.HandleFunc("GET /api/v1/leagues/{id}/leaderboard", leaguesapi.HandleLeaderboard)
	mux.HandleFunc("POST /api/v1/leagues/{id}/matches", leaguesapi.HandleScheduleMatch)
	mux.HandleFunc("POST /api/v1/leagues/{id}/schedule", leaguesapi.HandleGenerateSchedule)
	mux.HandleFunc("PUT /api/v1/leagues/{id}/matches/{matchId}/result", leaguesapi.HandleSubmitResult)

	// Availability routes
	mux.HandleFunc("POST /api/v1/availability/respond", availabilityapi.HandleRespond)
	mux.HandleFunc("GET /api/v1/availability/history", availabilityapi.HandleHistory)
	mux.HandleFunc("GET /api/v1/availability/current-week", availabilityapi.HandleCurrentWeek)
	mux.HandleFunc("POST /api/v1/availability/poll", availabilityapi.HandlePoll)
	mux.HandleFunc("GET /api/v1/availability/status", availabilityapi.HandleStatus)

	// Expense routes
	mux.HandleFunc("POST /api/v1/expenses", expensesapi.HandleCreate)
	mux.HandleFunc("GET /api/v1/expenses", expensesapi.HandleList)
	mux.HandleFunc("GET /api/v1/expenses/stats", expensesapi.HandleStats)
	mux.HandleFunc("GET /api/v1/expenses/{id}", expensesapi.HandleDetail)
	mux.HandleFunc("PUT /api/v1/expenses/{id}", expensesapi.HandleUpdate)
	mux.HandleFunc("DELETE /api/v1/expenses/{id}", expensesapi.HandleDelete)

	// Admin reporting routes
	mux.HandleFunc("GET /api/v1/admin/dashboard", adminapi.HandleDashboard)
	mux.HandleFunc("GET /api/v1/admin/overview", adminapi.HandleOverview)
	mux.HandleFunc("GET /api/v1/admin/revenue", adminapi.HandleRevenue)
	mux.HandleFunc("GET /api/v1/admin/jobs", adminapi.HandleJobs)
}
