package chat

import "time"

// Role identifies who authored a conversation turn.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// WelcomeMessageID is the id of the greeting every conversation starts with.
const WelcomeMessageID = "welcome"

// Message is one turn in the chat transcript. Optional fields are left empty
// when absent; AnalysisID is a lookup key into the analysis list, not an owner.
type Message struct {
	ID         string    `json:"id"`
	Role       Role      `json:"role"`
	Content    string    `json:"content,omitempty"`
	ImageURL   string    `json:"imageUrl,omitempty"`
	AnalysisID string    `json:"analysisId,omitempty"`
	CreatedAt  time.Time `json:"createdAt"`
}

// TextOnly reports whether the message carries neither an image nor an analysis.
func (m Message) TextOnly() bool {
	return m.ImageURL == "" && m.AnalysisID == ""
}

// WelcomeMessage builds the seeded assistant greeting.
func WelcomeMessage(content string) Message {
	return Message{
		ID:        WelcomeMessageID,
		Role:      RoleAssistant,
		Content:   content,
		CreatedAt: time.Now().UTC(),
	}
}
