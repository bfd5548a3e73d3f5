package chat

import (
	"strings"

	"chatbot-api/internal/domain"
)

// BuildContext linearizes a message history into the prompt sent upstream,
// one "<role>: <text>" line per message, oldest first. The full history is
// always included; there is no windowing or token budget.
func BuildContext(messages []domain.Message) string {
	lines := make([]string, 0, len(messages))
	for _, msg := range messages {
		lines = append(lines, msg.Role+": "+msg.Text)
	}
	return strings.Join(lines, "\n")
}
