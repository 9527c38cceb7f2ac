package session

import (
	"context"
	"errors"
	"strings"

	"labourlaw-rag/internal/models"
)

var ErrNotFound = errors.New("session not found")

const (
	DefaultTitle     = "New Session"
	FeedbackNotGiven = "not given"
)

// Meta is the listing entry for one chat session.
type Meta struct {
	SessionID   string `json:"session_id"`
	Title       string `json:"title"`
	Starred     bool   `json:"starred"`
	CreatedOn   string `json:"created_on"`
	LastUpdated string `json:"last_updated"`
}

// Message is one stored turn.
type Message struct {
	Role            models.Role `json:"role"`
	MessageID       string      `json:"message_id"`
	StateID         string      `json:"state_id,omitempty"`
	StateName       string      `json:"state_name"`
	PerspectiveID   string      `json:"perspective_id,omitempty"`
	PerspectiveName string      `json:"perspective_name"`
	Message         string      `json:"message"`
	Timestamp       string      `json:"timestamp"`
	FeedbackStatus  string      `json:"feedback_status"`
}

type History struct {
	SessionID string    `json:"session_id"`
	Messages  []Message `json:"messages"`
}

// Turns converts the stored messages into pipeline history.
func (h *History) Turns() []models.Message {
	if h == nil {
		return nil
	}
	turns := make([]models.Message, 0, len(h.Messages))
	for _, m := range h.Messages {
		turns = append(turns, models.Message{Role: m.Role, Text: m.Message})
	}
	return turns
}

// Store keeps chat sessions per user. Implementations must be safe for
// concurrent use.
type Store interface {
	ListSessions(ctx context.Context, user string) ([]Meta, error)
	// GetHistory returns an empty history for an unknown session.
	GetHistory(ctx context.Context, user, sessionID string) (*History, error)
	// AppendMessages creates the session on first write.
	AppendMessages(ctx context.Context, user, sessionID, title string, msgs []Message) error
	SetStarred(ctx context.Context, user, sessionID string, starred bool) error
	Rename(ctx context.Context, user, sessionID, title string) error
	// Delete moves the session out of the active listing.
	Delete(ctx context.Context, user, sessionID string) error
}

// UserID keeps the part of an email address before the "@".
func UserID(raw string) string {
	raw = strings.TrimSpace(raw)
	if i := strings.Index(raw, "@"); i >= 0 {
		return raw[:i]
	}
	return raw
}

// Normalize fills the defaults a stored message needs.
func Normalize(msgs []Message) []Message {
	out := make([]Message, len(msgs))
	for i, m := range msgs {
		if m.FeedbackStatus == "" {
			m.FeedbackStatus = FeedbackNotGiven
		}
		out[i] = m
	}
	return out
}
