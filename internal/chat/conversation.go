// Package chat talks to an OpenAI-compatible chat completion endpoint on
// behalf of portal users.
package chat

import "sync"

// SystemPrompt opens every conversation.
const SystemPrompt = "You are an AI assistant for university students. " +
	"You specialize in helping with academic questions, research, " +
	"study techniques, and university-related problems. " +
	"Provide concise, accurate, and helpful responses. " +
	"If you're unsure about something, acknowledge it rather than providing incorrect information."

// Message roles.
const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// Message is one turn. ImageURL, when set, is sent as an image part next to
// Content.
type Message struct {
	Role     string
	Content  string
	ImageURL string
}

// Conversation is a goroutine-safe message history that always starts with
// the system turn.
type Conversation struct {
	mu       sync.Mutex
	messages []Message
}

// NewConversation starts a history with systemPrompt, or SystemPrompt when empty.
func NewConversation(systemPrompt string) *Conversation {
	if systemPrompt == "" {
		systemPrompt = SystemPrompt
	}
	return &Conversation{
		messages: []Message{{Role: RoleSystem, Content: systemPrompt}},
	}
}

// Append adds turns to the end of the history.
func (c *Conversation) Append(messages ...Message) {
	c.mu.Lock()
	c.messages = append(c.messages, messages...)
	c.mu.Unlock()
}

// Messages returns a copy of the history.
func (c *Conversation) Messages() []Message {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]Message, len(c.messages))
	copy(out, c.messages)
	return out
}

// Len reports the number of turns, the system turn included.
func (c *Conversation) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.messages)
}

// Clear drops everything except the system turn.
func (c *Conversation) Clear() {
	c.mu.Lock()
	c.messages = c.messages[:1:1]
	c.mu.Unlock()
}
