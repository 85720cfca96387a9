package sendtime

import (
	"fmt"
	"time"
	_ "time/tzdata"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/outreach-cli/internal/model"
)

// Tolerance is how far from a candidate hour IsGoodTimeNow still accepts.
const Tolerance = 30 * time.Minute

// Optimizer computes send slots from a Table.
type Optimizer struct {
	table *Table
	loc   *time.Location
	now   func() time.Time
	log   *zap.Logger
}

// Option configures an Optimizer.
type Option func(*Optimizer)

// WithClock injects the time source.
func WithClock(now func() time.Time) Option {
	return func(o *Optimizer) { o.now = now }
}

// New creates an Optimizer. A nil table uses the embedded schedule.
func New(table *Table, opts ...Option) (*Optimizer, error) {
	if table == nil {
		t, err := DefaultTable()
		if err != nil {
			return nil, err
		}
		table = t
	}
	loc, err := time.LoadLocation(table.Timezone)
	if err != nil {
		return nil, eris.Wrapf(err, "sendtime: load timezone %s", table.Timezone)
	}
	o := &Optimizer{
		table: table,
		loc:   loc,
		now:   time.Now,
		log:   zap.L().With(zap.String("component", "sendtime")),
	}
	for _, opt := range opts {
		opt(o)
	}
	return o, nil
}

// Location returns the schedule's timezone.
func (o *Optimizer) Location() *time.Location { return o.loc }

// OptimalTime returns the slot for step stepIndex of a sequence. Hours and
// weekdays rotate with the step index so successive steps land at different
// times.
func (o *Optimizer) OptimalTime(r *model.EnrichedRecord, ch model.Channel, stepIndex int) model.Schedule {
	p := o.table.Match(sectorOf(r))
	hours, rationale := p.Hours, p.Rationale
	if ch.IsMessaging() {
		hours = o.table.MessagingHours
		rationale = o.table.MessagingRationale
	}
	return model.Schedule{
		Hour:      pick(hours, stepIndex),
		Weekday:   time.Weekday(pick(p.Weekdays, stepIndex)),
		Timezone:  o.table.Timezone,
		Rationale: rationale,
	}
}

// NextSendDate starts from today plus baseDayOffset and moves forward to the
// slot's weekday, skipping a week when that slot has already passed.
func (o *Optimizer) NextSendDate(baseDayOffset int, r *model.EnrichedRecord, ch model.Channel, stepIndex int) time.Time {
	slot := o.OptimalTime(r, ch, stepIndex)
	return o.nextAt(o.now().In(o.loc), baseDayOffset, slot.Weekday, slot.Hour)
}

func (o *Optimizer) nextAt(now time.Time, baseDayOffset int, weekday time.Weekday, hour int) time.Time {
	base := time.Date(now.Year(), now.Month(), now.Day()+baseDayOffset, hour, 0, 0, 0, o.loc)
	for d := 0; d <= 7; d++ {
		c := base.AddDate(0, 0, d)
		if c.Weekday() == weekday && c.After(now) {
			return c
		}
	}
	return base.AddDate(0, 0, 7)
}

// Check is the answer of IsGoodTimeNow.
type Check struct {
	IsGood     bool      `json:"is_good"`
	Suggestion string    `json:"suggestion,omitempty"`
	NextSlot   time.Time `json:"next_slot,omitempty"`
}

// IsGoodTimeNow reports whether now falls on a candidate weekday within
// Tolerance of a candidate hour for the sector's email schedule.
func (o *Optimizer) IsGoodTimeNow(sector string) Check {
	p := o.table.Match(sector)
	now := o.now().In(o.loc)

	if containsWeekday(p.Weekdays, now.Weekday()) {
		for _, h := range p.Hours {
			slot := time.Date(now.Year(), now.Month(), now.Day(), h, 0, 0, 0, o.loc)
			if absDuration(now.Sub(slot)) <= Tolerance {
				return Check{IsGood: true}
			}
		}
	}

	next := o.nextSlot(now, p)
	o.log.Debug("outside send window",
		zap.String("profile", p.Name),
		zap.Time("now", now),
		zap.Time("next_slot", next),
	)
	return Check{
		IsGood:     false,
		Suggestion: fmt.Sprintf("wait until %s %02d:00: %s", next.Weekday(), next.Hour(), p.Rationale),
		NextSlot:   next,
	}
}

// nextSlot returns the earliest candidate slot strictly after now.
func (o *Optimizer) nextSlot(now time.Time, p Profile) time.Time {
	var best time.Time
	for _, wd := range p.Weekdays {
		for _, h := range p.Hours {
			c := o.nextAt(now, 0, time.Weekday(wd), h)
			if best.IsZero() || c.Before(best) {
				best = c
			}
		}
	}
	return best
}

func sectorOf(r *model.EnrichedRecord) string {
	if r == nil {
		return ""
	}
	if s := r.Sector(); s != "" {
		return s
	}
	return r.Description
}

func pick[T any](xs []T, i int) T {
	if i < 0 {
		i = -i
	}
	return xs[i%len(xs)]
}

func containsWeekday(ws []Weekday, d time.Weekday) bool {
	for _, w := range ws {
		if time.Weekday(w) == d {
			return true
		}
	}
	return false
}

func absDuration(d time.Duration) time.Duration {
	if d < 0 {
		return -d
	}
	return d
}
