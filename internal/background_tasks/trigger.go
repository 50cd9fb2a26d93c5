package background_tasks

import (
	"time"

	"github.com/robfig/cron/v3"
)

// Trigger decides when a task is due. now comes from the scheduler clock.
type Trigger interface {
	IsReady(now time.Time) bool
	Reset(now time.Time)
}

// PeriodicTrigger fires every Interval, or at the times of a standard cron expression when
// CronExpr is set.
type PeriodicTrigger struct {
	Interval      time.Duration
	CronExpr      string
	lastTriggered time.Time
	schedule      cron.Schedule
}

func (t *PeriodicTrigger) IsReady(now time.Time) bool {
	if t.CronExpr != "" {
		if t.schedule == nil {
			schedule, err := cron.ParseStandard(t.CronExpr)
			if err != nil {
				zlog.Sugar().Errorf("Error parsing CronExpr %q: %v", t.CronExpr, err)
				return false
			}
			t.schedule = schedule
		}
		return !t.schedule.Next(t.lastTriggered).After(now)
	}

	if t.Interval > 0 {
		return !t.lastTriggered.Add(t.Interval).After(now)
	}
	return false
}

func (t *PeriodicTrigger) Reset(now time.Time) {
	t.lastTriggered = now
}

// EventTrigger fires once per Fire call. Fires that arrive before the task ran are merged.
type EventTrigger struct {
	Trigger chan bool
}

func NewEventTrigger() *EventTrigger {
	return &EventTrigger{Trigger: make(chan bool, 1)}
}

// Fire marks the trigger ready without blocking.
func (t *EventTrigger) Fire() {
	select {
	case t.Trigger <- true:
	default:
	}
}

func (t *EventTrigger) IsReady(time.Time) bool {
	select {
	case <-t.Trigger:
		return true
	default:
		return false
	}
}

func (t *EventTrigger) Reset(time.Time) {}
