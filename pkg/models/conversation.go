package models

import "time"

// Mode is the assistant interaction mode.
type Mode string

const (
	ModeConversation Mode = "conversacion"
	ModeAdvisor      Mode = "asesor"
)

// ParseMode maps a user-supplied mode string onto a Mode.
// Unknown values fall back to conversation.
func ParseMode(s string) Mode {
	switch s {
	case string(ModeAdvisor), "advisor":
		return ModeAdvisor
	default:
		return ModeConversation
	}
}

// ConversationTurn is one user/assistant exchange.
type ConversationTurn struct {
	User      string    `json:"user"`
	Assistant string    `json:"assistant"`
	Mode      Mode      `json:"mode"`
	At        time.Time `json:"at"`
}

// Headline is a news item shown to the market analysis stage.
type Headline struct {
	Title     string    `json:"title"`
	Summary   string    `json:"summary,omitempty"`
	Link      string    `json:"link,omitempty"`
	Published time.Time `json:"published,omitempty"`
}
