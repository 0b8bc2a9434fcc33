package history

import "strings"

// Role tags a message for the generation API.
type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Message is one role-tagged entry in a generation request.
type Message struct {
	Role    Role   `json:"role"`
	Content string `json:"content"`
}

// Assemble converts ordered turns into the message list a generation client
// sends upstream. For each turn, in order: a system message if the system
// prompt is non-blank, then a user message, then an assistant message.
// Blank or whitespace-only fields produce no message. If pending is
// non-blank it is appended as a final user message, representing an
// in-flight request that has no response yet.
//
// Pure function: same turns and pending text always yield the same output.
func Assemble(turns []Turn, pending string) []Message {
	msgs := make([]Message, 0, len(turns)*2+1)
	for _, t := range turns {
		msgs = appendMessage(msgs, RoleSystem, t.SystemPrompt)
		msgs = appendMessage(msgs, RoleUser, t.UserPrompt)
		msgs = appendMessage(msgs, RoleAssistant, t.Response)
	}
	return appendMessage(msgs, RoleUser, pending)
}

func appendMessage(msgs []Message, role Role, content string) []Message {
	content = strings.TrimSpace(content)
	if content == "" {
		return msgs
	}
	return append(msgs, Message{Role: role, Content: content})
}

// LastUserMessage returns the content of the last user message, or "".
func LastUserMessage(msgs []Message) string {
	return lastWithRole(msgs, RoleUser)
}

// LastAssistantMessage returns the content of the last assistant message, or "".
func LastAssistantMessage(msgs []Message) string {
	return lastWithRole(msgs, RoleAssistant)
}

func lastWithRole(msgs []Message, role Role) string {
	for i := len(msgs) - 1; i >= 0; i-- {
		if msgs[i].Role == role {
			return msgs[i].Content
		}
	}
	return ""
}
