// Package availability runs the weekly "are you playing?" cycle: the poll
// that seeds one record per active player, their answers and the summary.
package availability

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"math"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"

	"github.com/codr1/Shuttlers/internal/clock"
	"github.com/codr1/Shuttlers/internal/db"
	"github.com/codr1/Shuttlers/internal/events"
	"github.com/codr1/Shuttlers/internal/models"
)

type Poller struct {
	db          *db.DB
	schedule    Schedule
	events      events.Publisher
	clock       clock.Clock
	concurrency int
}

func NewPoller(database *db.DB, schedule Schedule, publisher events.Publisher, clk clock.Clock, concurrency int) *Poller {
	if publisher == nil {
		publisher = events.Nop{}
	}
	if clk == nil {
		clk = clock.Real{}
	}
	if concurrency < 1 {
		concurrency = 1
	}
	return &Poller{db: database, schedule: schedule, events: publisher, clock: clk, concurrency: concurrency}
}

func (p *Poller) Schedule() Schedule { return p.schedule }

func (p *Poller) logger(ctx context.Context) zerolog.Logger {
	return log.Ctx(ctx).With().Str("component", "availability").Logger()
}

type RunResult struct {
	Window       models.WeekWindow `json:"window"`
	Participants int               `json:"participants"`
	Created      int               `json:"created"`
	Refreshed    int               `json:"refreshed"`
}

// Requested is the payload asking one participant about the upcoming session.
type Requested struct {
	ParticipantID int64     `json:"participantId"`
	Name          string    `json:"name"`
	Email         string    `json:"email"`
	GameDate      time.Time `json:"gameDate"`
	WeekStart     string    `json:"weekStartDate"`
}

// Run seeds or refreshes the upcoming cycle's record for every active player.
// Re-running within the same week only moves the notification stamp.
func (p *Poller) Run(ctx context.Context) (RunResult, error) {
	now := p.clock.Now()
	window := p.schedule.UpcomingWindow(now)
	logger := p.logger(ctx)

	players, err := p.db.Queries.ListActivePlayers(ctx)
	if err != nil {
		return RunResult{}, fmt.Errorf("list active players: %w", err)
	}

	var created, refreshed atomic.Int64
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(p.concurrency)
	for _, player := range players {
		g.Go(func() error {
			isNew, err := p.db.Queries.MarkAvailabilityNotified(gctx, db.AvailabilityKey{
				ParticipantID: player.ID,
				Window:        window,
			}, now)
			if err != nil {
				return fmt.Errorf("participant %d: %w", player.ID, err)
			}
			if isNew {
				created.Add(1)
			} else {
				refreshed.Add(1)
			}
			events.Emit(gctx, p.events, events.AvailabilityRequested, Requested{
				ParticipantID: player.ID,
				Name:          player.Name,
				Email:         player.Email,
				GameDate:      window.GameDate,
				WeekStart:     models.DateKey(window.WeekStart),
			})
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return RunResult{}, fmt.Errorf("availability poll: %w", err)
	}

	result := RunResult{
		Window:       window,
		Participants: len(players),
		Created:      int(created.Load()),
		Refreshed:    int(refreshed.Load()),
	}
	logger.Info().
		Str("week_start", models.DateKey(window.WeekStart)).
		Time("game_date", window.GameDate).
		Int("participants", result.Participants).
		Int("created", result.Created).
		Int("refreshed", result.Refreshed).
		Msg("Availability poll completed")
	return result, nil
}

// Respond records a participant's answer for the cycle containing gameDate,
// a calendar date. The latest answer wins.
func (p *Poller) Respond(ctx context.Context, participantID int64, gameDate time.Time, available bool) (models.Availability, error) {
	if gameDate.IsZero() {
		return models.Availability{}, models.Invalid("gameDate", "is required")
	}
	participant, err := p.db.Queries.GetParticipant(ctx, participantID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return models.Availability{}, fmt.Errorf("participant %d: %w", participantID, models.ErrNotFound)
		}
		return models.Availability{}, fmt.Errorf("get participant: %w", err)
	}
	if !participant.ActivePlayer() {
		return models.Availability{}, fmt.Errorf("participant %d is not an active player: %w", participantID, models.ErrNotFound)
	}

	window := p.schedule.WindowFor(gameDate)
	key := db.AvailabilityKey{ParticipantID: participantID, Window: window}
	if err := p.db.Queries.UpsertAvailabilityResponse(ctx, key, available, p.clock.Now()); err != nil {
		return models.Availability{}, fmt.Errorf("record availability: %w", err)
	}

	logger := p.logger(ctx)
	logger.Info().
		Int64("participant_id", participantID).
		Str("week_start", models.DateKey(window.WeekStart)).
		Bool("available", available).
		Msg("Availability response recorded")

	a, err := p.db.Queries.GetAvailability(ctx, participantID, window.WeekStart)
	if err != nil {
		return models.Availability{}, fmt.Errorf("get availability: %w", err)
	}
	return a, nil
}

// CurrentWeekSummary partitions the current cycle. Answered records split into
// available and unavailable, notified-but-unset records are awaiting, and
// active participants with no record at all for the week are non-responded.
func (p *Poller) CurrentWeekSummary(ctx context.Context) (models.AvailabilitySummary, error) {
	window := p.schedule.CurrentWindow(p.clock.Now())

	records, err := p.db.Queries.ListAvailabilityForWeek(ctx, window.WeekStart)
	if err != nil {
		return models.AvailabilitySummary{}, fmt.Errorf("list availability: %w", err)
	}
	players, err := p.db.Queries.ListActivePlayers(ctx)
	if err != nil {
		return models.AvailabilitySummary{}, fmt.Errorf("list active players: %w", err)
	}

	summary := models.AvailabilitySummary{
		Window:       window,
		Available:    []models.ParticipantRef{},
		Unavailable:  []models.ParticipantRef{},
		Awaiting:     []models.ParticipantRef{},
		NonResponded: []models.ParticipantRef{},
	}
	recorded := make(map[int64]bool, len(records))
	for _, r := range records {
		recorded[r.ParticipantID] = true
		ref := models.ParticipantRef{ID: r.ParticipantID}
		if r.Participant != nil {
			ref = *r.Participant
		}
		switch {
		case !r.Responded():
			summary.Awaiting = append(summary.Awaiting, ref)
		case *r.IsAvailable:
			summary.Available = append(summary.Available, ref)
		default:
			summary.Unavailable = append(summary.Unavailable, ref)
		}
	}
	for _, pl := range players {
		if !recorded[pl.ID] {
			summary.NonResponded = append(summary.NonResponded, models.ParticipantRef{ID: pl.ID, Name: pl.Name, Email: pl.Email})
		}
	}

	summary.TotalParticipants = len(players)
	summary.AvailableCount = len(summary.Available)
	summary.UnavailableCount = len(summary.Unavailable)
	summary.AwaitingCount = len(summary.Awaiting)
	summary.RespondedCount = summary.AvailableCount + summary.UnavailableCount
	summary.NonRespondedCount = len(summary.NonResponded)
	if summary.TotalParticipants > 0 {
		summary.ResponseRate = int(math.Round(float64(summary.RespondedCount) / float64(summary.TotalParticipants) * 100))
	}
	return summary, nil
}

type HistoryResult struct {
	Records []models.Availability `json:"records"`
	Total   int                   `json:"total"`
}

func (p *Poller) History(ctx context.Context, participantID int64, page db.Page) (HistoryResult, error) {
	records, total, err := p.db.Queries.ListAvailabilityHistory(ctx, participantID, page.Normalize(10, 100))
	if err != nil {
		return HistoryResult{}, fmt.Errorf("availability history: %w", err)
	}
	return HistoryResult{Records: records, Total: total}, nil
}

// Status describes the poll cycle for admin views.
type Status struct {
	Cron        string            `json:"cron"`
	NextTrigger time.Time         `json:"nextTrigger"`
	Upcoming    models.WeekWindow `json:"upcoming"`
}

func (p *Poller) Status() Status {
	now := p.clock.Now()
	return Status{
		Cron:        p.schedule.Cron,
		NextTrigger: p.schedule.NextTrigger(now),
		Upcoming:    p.schedule.UpcomingWindow(now),
	}
}
