package main

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"

	"github.com/codr1/Shuttlers/internal/availability"
	"github.com/codr1/Shuttlers/internal/booking"
	"github.com/codr1/Shuttlers/internal/clock"
	"github.com/codr1/Shuttlers/internal/config"
	"github.com/codr1/Shuttlers/internal/db"
	"github.com/codr1/Shuttlers/internal/events"
	"github.com/codr1/Shuttlers/internal/expenses"
	"github.com/codr1/Shuttlers/internal/leagues"
	"github.com/codr1/Shuttlers/internal/participants"
	"github.com/codr1/Shuttlers/internal/payments"
	"github.com/codr1/Shuttlers/internal/proofs"
	"github.com/codr1/Shuttlers/internal/ratelimit"
	"github.com/codr1/Shuttlers/internal/reports"
	"github.com/codr1/Shuttlers/internal/scheduler"
	"github.com/codr1/Shuttlers/internal/slotlock"
	"github.com/codr1/Shuttlers/internal/venues"
)

const slotLockTTL = 10 * time.Second

// application owns every long-lived dependency of the server.
type application struct {
	location  *time.Location
	db        *db.DB
	redis     *redis.Client
	amqp      *events.AMQPPublisher
	limiter   *ratelimit.Limiter
	scheduler *scheduler.Service

	participants *participants.Service
	venues       *venues.Service
	bookings     *booking.Service
	payments     *payments.Service
	leagues      *leagues.Service
	poller       *availability.Poller
	expenses     *expenses.Service
	reports      *reports.Service
}

func newApp(ctx context.Context, cfg *config.Config) (_ *application, err error) {
	app := &application{}
	defer func() {
		if err != nil {
			app.Close()
		}
	}()

	if app.location, err = cfg.Location(); err != nil {
		return nil, err
	}
	if app.db, err = db.NewFromConfig(cfg); err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	var locker slotlock.Locker = slotlock.NewLocal()
	if cfg.Redis.Addr != "" {
		app.redis, err = slotlock.NewRedisClient(ctx, slotlock.RedisConfig{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		if err != nil {
			return nil, err
		}
		locker = slotlock.NewRedis(app.redis, slotLockTTL)
		log.Info().Str("addr", cfg.Redis.Addr).Msg("Using Redis slot locks")
	}

	var publisher events.Publisher = events.Nop{}
	if cfg.Events.URL != "" {
		if app.amqp, err = events.NewAMQPPublisher(cfg.Events.URL, cfg.Events.Exchange); err != nil {
			return nil, err
		}
		publisher = app.amqp
	} else {
		log.Warn().Msg("AMQP_URL not set; domain events are discarded")
	}

	store, err := newProofStore(cfg.Storage)
	if err != nil {
		return nil, err
	}

	schedule, err := availability.ScheduleFromConfig(cfg.Availability, app.location)
	if err != nil {
		return nil, err
	}

	clk := clock.Real{}
	app.limiter = ratelimit.New(ratelimit.FromConfig(cfg.RateLimit))
	app.participants = participants.NewService(app.db, clk, cfg.Venues.DefaultPhoneRegion)
	app.venues = venues.NewService(app.db, clk, cfg.Venues.DefaultPhoneRegion)
	app.bookings = booking.NewService(app.db, locker, publisher, clk, app.location)
	app.payments = payments.NewService(app.db, store, payments.PolicyFromConfig(cfg.Payments), locker, publisher, clk)
	app.leagues = leagues.NewService(app.db, publisher, clk)
	app.poller = availability.NewPoller(app.db, schedule, publisher, clk, cfg.Availability.Concurrency)
	app.expenses = expenses.NewService(app.db, clk, app.location)
	app.reports = reports.NewService(app.db, clk, app.location)
	if app.scheduler, err = scheduler.New(app.location); err != nil {
		return nil, err
	}
	return app, nil
}

func newProofStore(cfg config.StorageConfig) (proofs.Store, error) {
	switch cfg.Driver {
	case "cloudinary":
		return proofs.NewCloudinaryStore(cfg.CloudName, cfg.APIKey, cfg.APISecret, cfg.Folder)
	default:
		return proofs.NewLocalStore(cfg.LocalDir, cfg.PublicBaseURL)
	}
}

// Close releases connections in reverse order of acquisition.
func (a *application) Close() {
	if a.scheduler != nil {
		if err := a.scheduler.Stop(); err != nil {
			log.Error().Err(err).Msg("Failed to stop scheduler")
		}
	}
	if a.limiter != nil {
		a.limiter.Close()
	}
	if a.amqp != nil {
		if err := a.amqp.Close(); err != nil {
			log.Error().Err(err).Msg("Failed to close AMQP publisher")
		}
	}
	if a.redis != nil {
		if err := a.redis.Close(); err != nil {
			log.Error().Err(err).Msg("Failed to close Redis client")
		}
	}
	if a.db != nil {
		if err := a.db.Close(); err != nil {
			log.Error().Err(err).Msg("Failed to close database")
		}
	}
}
