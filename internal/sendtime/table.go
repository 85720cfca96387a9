// Package sendtime picks the hour and weekday at which a message is most
// likely to be read, per sector and channel.
package sendtime

import (
	_ "embed"
	"os"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"gopkg.in/yaml.v3"

	"github.com/sells-group/outreach-cli/internal/textnorm"
)

//go:embed schedule.yaml
var defaultSchedule []byte

// Profile is the send window of one sector.
type Profile struct {
	Name      string    `yaml:"name"`
	Keywords  []string  `yaml:"keywords"`
	Hours     []int     `yaml:"hours"`
	Weekdays  []Weekday `yaml:"weekdays"`
	Rationale string    `yaml:"rationale"`
}

// Table is the full schedule: per-sector profiles, a generic fallback and
// the hours used by short-message channels.
type Table struct {
	Timezone           string    `yaml:"timezone"`
	Default            Profile   `yaml:"default"`
	MessagingHours     []int     `yaml:"messaging_hours"`
	MessagingRationale string    `yaml:"messaging_rationale"`
	Sectors            []Profile `yaml:"sectors"`
}

// Weekday is a time.Weekday that unmarshals from its English name.
type Weekday time.Weekday

var weekdayNames = map[string]time.Weekday{
	"sunday": time.Sunday, "monday": time.Monday, "tuesday": time.Tuesday,
	"wednesday": time.Wednesday, "thursday": time.Thursday, "friday": time.Friday,
	"saturday": time.Saturday,
}

// UnmarshalYAML implements yaml.Unmarshaler.
func (w *Weekday) UnmarshalYAML(node *yaml.Node) error {
	d, ok := weekdayNames[strings.ToLower(strings.TrimSpace(node.Value))]
	if !ok {
		return eris.Errorf("sendtime: unknown weekday %q", node.Value)
	}
	*w = Weekday(d)
	return nil
}

// DefaultTable returns the embedded schedule.
func DefaultTable() (*Table, error) {
	return ParseTable(defaultSchedule)
}

// LoadTable reads a schedule override from a YAML file.
func LoadTable(path string) (*Table, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, eris.Wrapf(err, "sendtime: read table %s", path)
	}
	return ParseTable(data)
}

// ParseTable decodes and validates a schedule.
func ParseTable(data []byte) (*Table, error) {
	var t Table
	if err := yaml.Unmarshal(data, &t); err != nil {
		return nil, eris.Wrap(err, "sendtime: parse table")
	}
	if err := t.validate(); err != nil {
		return nil, err
	}
	return &t, nil
}

func (t *Table) validate() error {
	if t.Timezone == "" {
		t.Timezone = "Europe/Paris"
	}
	if err := validProfile(t.Default); err != nil {
		return eris.Wrap(err, "sendtime: default profile")
	}
	if len(t.MessagingHours) == 0 {
		return eris.New("sendtime: messaging_hours must not be empty")
	}
	if err := validHours(t.MessagingHours); err != nil {
		return eris.Wrap(err, "sendtime: messaging_hours")
	}
	for _, p := range t.Sectors {
		if err := validProfile(p); err != nil {
			return eris.Wrapf(err, "sendtime: sector %q", p.Name)
		}
		if len(p.Keywords) == 0 {
			return eris.Errorf("sendtime: sector %q has no keywords", p.Name)
		}
	}
	return nil
}

func validProfile(p Profile) error {
	if len(p.Hours) == 0 || len(p.Weekdays) == 0 {
		return eris.New("hours and weekdays are required")
	}
	return validHours(p.Hours)
}

func validHours(hours []int) error {
	for _, h := range hours {
		if h < 0 || h > 23 {
			return eris.Errorf("hour %d out of range", h)
		}
	}
	return nil
}

// Match returns the first sector profile whose keywords appear in sector,
// or the default profile.
func (t *Table) Match(sector string) Profile {
	folded := textnorm.Fold(sector)
	if strings.TrimSpace(folded) != "" {
		for _, p := range t.Sectors {
			if textnorm.CountMatches(folded, p.Keywords) > 0 {
				return p
			}
		}
	}
	return t.Default
}
