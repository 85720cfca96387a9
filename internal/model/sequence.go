package model

import "time"

// Channel is an outbound message channel.
type Channel string

const (
	ChannelEmail    Channel = "email"
	ChannelSMS      Channel = "sms"
	ChannelWhatsApp Channel = "whatsapp"
	ChannelPhone    Channel = "phone"
)

// IsMessaging reports whether the channel is a short mobile message.
func (c Channel) IsMessaging() bool {
	return c == ChannelSMS || c == ChannelWhatsApp
}

// Framework is a copywriting structure.
type Framework string

const (
	FrameworkPAS  Framework = "PAS"  // Problem-Agitate-Solve
	FrameworkPPP  Framework = "PPP"  // Praise-Picture-Push
	FrameworkBAB  Framework = "BAB"  // Before-After-Bridge
	FrameworkAIDA Framework = "AIDA" // Attention-Interest-Desire-Action
)

// SequenceSource says how a sequence was produced.
type SequenceSource string

const (
	SequenceFromLLM      SequenceSource = "llm"
	SequenceFromFallback SequenceSource = "fallback"
)

// Schedule is a computed send slot.
type Schedule struct {
	Hour      int          `json:"hour"`
	Weekday   time.Weekday `json:"weekday"`
	Timezone  string       `json:"timezone"`
	Rationale string       `json:"rationale"`
}

// SequenceStep is one message of a sequence.
type SequenceStep struct {
	Index     int       `json:"index"`
	Channel   Channel   `json:"channel"`
	DayOffset int       `json:"day_offset"`
	Subject   string    `json:"subject,omitempty"`
	Body      string    `json:"body"`
	Angle     string    `json:"angle"`
	Schedule  Schedule  `json:"schedule"`
	SendAt    time.Time `json:"send_at"`
}

// Sequence is immutable once generated.
type Sequence struct {
	Framework     Framework      `json:"framework"`
	Justification string         `json:"justification"`
	Style         string         `json:"style,omitempty"`
	Steps         []SequenceStep `json:"steps"`
	Source        SequenceSource `json:"source"`
	GeneratedAt   time.Time      `json:"generated_at"`
}
