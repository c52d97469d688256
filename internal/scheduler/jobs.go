package scheduler

import (
	"context"
	"fmt"

	"github.com/go-co-op/gocron/v2"
	"github.com/rs/zerolog/log"

	"github.com/codr1/Shuttlers/internal/availability"
)

const (
	AvailabilityPollJob = "availability_poll"
	OverduePaymentsJob  = "overdue_payments"
)

// Poller runs one weekly availability cycle.
type Poller interface {
	Run(ctx context.Context) (availability.RunResult, error)
}

// OverdueMarker flags unpaid bookings whose date has passed.
type OverdueMarker interface {
	MarkOverduePayments(ctx context.Context) (int64, error)
}

// RegisterAvailabilityJob schedules the weekly poll. A run that overlaps the
// next trigger is rescheduled rather than queued.
func RegisterAvailabilityJob(s *Service, poller Poller, cronExpr string) error {
	if poller == nil {
		return fmt.Errorf("availability job requires a poller")
	}
	return s.Add(Job{
		Name:    AvailabilityPollJob,
		Cron:    cronExpr,
		Overlap: gocron.LimitModeReschedule,
		Task: func(ctx context.Context) error {
			result, err := poller.Run(ctx)
			if err != nil {
				return fmt.Errorf("availability poll: %w", err)
			}
			log.Ctx(ctx).Info().
				Int("participants", result.Participants).
				Int("created", result.Created).
				Int("refreshed", result.Refreshed).
				Msg("Availability poll finished")
			return nil
		},
	})
}

// RegisterOverdueJob schedules the daily sweep that marks past unpaid
// bookings overdue.
func RegisterOverdueJob(s *Service, marker OverdueMarker, cronExpr string) error {
	if marker == nil {
		return fmt.Errorf("overdue job requires a booking service")
	}
	return s.Add(Job{
		Name:    OverduePaymentsJob,
		Cron:    cronExpr,
		Overlap: gocron.LimitModeWait,
		Task: func(ctx context.Context) error {
			n, err := marker.MarkOverduePayments(ctx)
			if err != nil {
				return fmt.Errorf("mark overdue payments: %w", err)
			}
			if n > 0 {
				log.Ctx(ctx).Info().Int64("bookings", n).Msg("Marked bookings overdue")
			}
			return nil
		},
	})
}
