package availability

import (
	"fmt"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/codr1/Shuttlers/internal/config"
	"github.com/codr1/Shuttlers/internal/models"
)

// Schedule fixes when the weekly poll fires and which session it asks about.
type Schedule struct {
	Cron             string
	GameWeekday      time.Weekday
	WeekStartWeekday time.Weekday
	GameTime         models.TimeOfDay
	Location         *time.Location

	trigger cron.Schedule
}

func NewSchedule(expr string, game, weekStart time.Weekday, gameTime models.TimeOfDay, loc *time.Location) (Schedule, error) {
	trigger, err := cron.ParseStandard(expr)
	if err != nil {
		return Schedule{}, fmt.Errorf("parse poll cron %q: %w", expr, err)
	}
	if loc == nil {
		loc = time.UTC
	}
	return Schedule{
		Cron:             expr,
		GameWeekday:      game,
		WeekStartWeekday: weekStart,
		GameTime:         gameTime,
		Location:         loc,
		trigger:          trigger,
	}, nil
}

func ScheduleFromConfig(cfg config.AvailabilityConfig, loc *time.Location) (Schedule, error) {
	game, err := config.ParseWeekday(cfg.GameWeekday)
	if err != nil {
		return Schedule{}, err
	}
	weekStart, err := config.ParseWeekday(cfg.WeekStartWeekday)
	if err != nil {
		return Schedule{}, err
	}
	gameTime, err := models.ParseTimeOfDay(cfg.GameTime)
	if err != nil {
		return Schedule{}, err
	}
	return NewSchedule(cfg.Cron, game, weekStart, gameTime, loc)
}

func (s Schedule) today(now time.Time) time.Time {
	return models.CalendarDate(now.In(s.Location))
}

// WindowFor returns the cycle containing the session played on gameDay.
func (s Schedule) WindowFor(gameDay time.Time) models.WeekWindow {
	gameDay = models.CalendarDate(gameDay)
	weekStart := models.WeekdayOnOrBefore(gameDay, s.WeekStartWeekday)
	return models.WeekWindow{
		WeekStart: weekStart,
		WeekEnd:   weekStart.AddDate(0, 0, 6),
		GameDate:  s.GameTime.On(gameDay, s.Location),
	}
}

// UpcomingWindow is the cycle of the next session on or after today.
func (s Schedule) UpcomingWindow(now time.Time) models.WeekWindow {
	return s.WindowFor(models.WeekdayOnOrAfter(s.today(now), s.GameWeekday))
}

// CurrentWindow is the cycle whose week started on or before today.
func (s Schedule) CurrentWindow(now time.Time) models.WeekWindow {
	weekStart := models.WeekdayOnOrBefore(s.today(now), s.WeekStartWeekday)
	return s.WindowFor(models.WeekdayOnOrAfter(weekStart, s.GameWeekday))
}

// NextTrigger reports when the poll fires next after now.
func (s Schedule) NextTrigger(now time.Time) time.Time {
	if s.trigger == nil {
		return time.Time{}
	}
	return s.trigger.Next(now.In(s.Location))
}
