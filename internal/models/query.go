package models

import "strings"

type Role string

const (
	RoleUser      Role = "user"
	RoleBot       Role = "bot"
	RoleAssistant Role = "assistant"
)

// Message is one prior turn of a conversation.
type Message struct {
	Role Role   `json:"role"`
	Text string `json:"text"`
}

// Query is a single user request. It is not modified after it is received.
type Query struct {
	Text         string
	Jurisdiction string
	Perspective  string
	History      []Message
}

// FormatHistory renders prior turns as "User:" / "Assistant:" lines.
// An empty history yields the empty string.
func FormatHistory(history []Message) string {
	var b strings.Builder
	for _, m := range history {
		text := strings.TrimSpace(m.Text)
		if text == "" {
			continue
		}
		if b.Len() > 0 {
			b.WriteString("\n")
		}
		switch m.Role {
		case RoleUser:
			b.WriteString("User: ")
		default:
			b.WriteString("Assistant: ")
		}
		b.WriteString(text)
	}
	return b.String()
}

type Intent string

const (
	IntentGeneral   Intent = "GENERAL"
	IntentTechnical Intent = "TECHNICAL"
)

// ParseIntent accepts only the two known intents, case-insensitively.
func ParseIntent(s string) (Intent, bool) {
	switch Intent(strings.ToUpper(strings.TrimSpace(s))) {
	case IntentGeneral:
		return IntentGeneral, true
	case IntentTechnical:
		return IntentTechnical, true
	}
	return "", false
}

type Outcome string

const (
	OutcomeAnswered    Outcome = "answered"
	OutcomeDeclined    Outcome = "declined"
	OutcomeNoDocuments Outcome = "no_documents"
)

type State string

const (
	StateStart      State = "START"
	StateRouting    State = "ROUTING"
	StateDeclining  State = "DECLINING"
	StateRetrieving State = "RETRIEVING"
	StateComposing  State = "COMPOSING"
	StateDone       State = "DONE"
)

// Answer is the result of one pipeline run.
type Answer struct {
	Text          string    `json:"text"`
	Intent        Intent    `json:"intent"`
	Outcome       Outcome   `json:"outcome"`
	ExpandedQuery string    `json:"expanded_query,omitempty"`
	Sources       []Passage `json:"sources,omitempty"`
	Path          []State   `json:"path"`
}
