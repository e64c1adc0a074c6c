// Package model defines the core domain types shared across all Tomoru packages.
// It has zero dependencies on other Tomoru packages.
package model

import "time"

// ChatState is the state of a visit's chat widget.
type ChatState string

const (
	// ChatIdle means a new submission may be accepted.
	ChatIdle ChatState = "idle"
	// ChatPending means exactly one outbound generation call is awaited.
	ChatPending ChatState = "pending"
)

// Outcome is how the last chat exchange resolved.
type Outcome string

const (
	OutcomeNone    Outcome = ""
	OutcomeReply   Outcome = "reply"
	OutcomeEmpty   Outcome = "empty"
	OutcomeFailure Outcome = "failure"
)

// ChatTurn is the single in-memory record of the most recent visitor
// message and assistant reply. There is no history list.
type ChatTurn struct {
	UserText      string  `json:"user_text"`
	AssistantText string  `json:"assistant_text"`
	Pending       bool    `json:"pending"`
	Outcome       Outcome `json:"outcome,omitempty"`
}

// Event kinds recorded in the diagnostic event log.
const (
	EventVisitOpen   = "visit.open"
	EventVisitClose  = "visit.close"
	EventChatReply   = "chat.reply"
	EventChatEmpty   = "chat.empty"
	EventChatFailure = "chat.failure"
)

// Event is a single diagnostic record about a visit.
type Event struct {
	ID        int64     `json:"id"`
	VisitID   string    `json:"visit_id"`
	Kind      string    `json:"kind"`
	Data      string    `json:"data"`
	CreatedAt time.Time `json:"created_at"`
}

// EventKind maps a chat outcome to its event kind.
func EventKind(o Outcome) string {
	switch o {
	case OutcomeReply:
		return EventChatReply
	case OutcomeEmpty:
		return EventChatEmpty
	case OutcomeFailure:
		return EventChatFailure
	default:
		return ""
	}
}

// Truncate shortens a string to maxLen runes, adding "..." if truncated.
func Truncate(s string, maxLen int) string {
	if maxLen <= 3 {
		r := []rune(s)
		if len(r) <= maxLen {
			return s
		}
		return string(r[:maxLen])
	}
	r := []rune(s)
	if len(r) <= maxLen {
		return s
	}
	return string(r[:maxLen-3]) + "..."
}
