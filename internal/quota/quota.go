// Package quota caps daily sends per sending account, ramping new
// accounts up through a warm-up schedule.
package quota

import (
	"context"
	"time"

	"github.com/rotisserie/eris"
)

// ErrExhausted is returned by Consume when the day's budget is spent.
var ErrExhausted = eris.New("quota: daily send budget exhausted")

// Phase is one warm-up step: DailyLimit applies for Days days.
type Phase struct {
	Days       int `yaml:"days" mapstructure:"days"`
	DailyLimit int `yaml:"daily_limit" mapstructure:"daily_limit"`
}

// Config is the send budget of one account.
type Config struct {
	// DailyLimit applies once warm-up is over.
	DailyLimit int `yaml:"daily_limit" mapstructure:"daily_limit"`

	// Warmup phases run in order from the account's first send.
	Warmup []Phase `yaml:"warmup" mapstructure:"warmup"`

	// KeyPrefix namespaces the counters.
	KeyPrefix string `yaml:"key_prefix" mapstructure:"key_prefix"`
}

// DefaultConfig ramps 20, 40 then 80 sends a day for a week each, then
// allows 150.
func DefaultConfig() Config {
	return Config{
		DailyLimit: 150,
		Warmup: []Phase{
			{Days: 7, DailyLimit: 20},
			{Days: 7, DailyLimit: 40},
			{Days: 7, DailyLimit: 80},
		},
		KeyPrefix: "outreach:quota",
	}
}

// WarmupLimit returns the budget for the given zero-based day since the
// account's first send.
func (c Config) WarmupLimit(day int) int {
	if day < 0 {
		day = 0
	}
	for _, p := range c.Warmup {
		if day < p.Days {
			return p.DailyLimit
		}
		day -= p.Days
	}
	return c.DailyLimit
}

// Snapshot is an account's budget for the current day.
type Snapshot struct {
	AccountID string    `json:"account_id"`
	Day       int       `json:"day"`
	Limit     int       `json:"limit"`
	Used      int       `json:"used"`
	Remaining int       `json:"remaining"`
	ResetAt   time.Time `json:"reset_at"`
}

// Exhausted reports whether no send is left today.
func (s Snapshot) Exhausted() bool {
	return s.Remaining <= 0
}

// Tracker reads and consumes send budgets.
type Tracker interface {
	Snapshot(ctx context.Context, accountID string) (Snapshot, error)
	Consume(ctx context.Context, accountID string) (Snapshot, error)
}
