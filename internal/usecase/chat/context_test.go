package chat

import (
	"strings"
	"testing"

	"chatbot-api/internal/domain"
)

func TestBuildContext(t *testing.T) {
	messages := []domain.Message{
		{Role: domain.RoleUser, Text: "hello"},
		{Role: domain.RoleBot, Text: "hi there"},
		{Role: domain.RoleUser, Text: "how are you?"},
	}
	got := BuildContext(messages)
	want := "user: hello\nbot: hi there\nuser: how are you?"
	if got != want {
		t.Fatalf("expected %q, got %q", want, got)
	}
}

func TestBuildContextLineCountAndPrefixes(t *testing.T) {
	messages := []domain.Message{
		{Role: domain.RoleBot, Text: "b1"},
		{Role: domain.RoleUser, Text: "u1"},
		{Role: domain.RoleUser, Text: "u2"},
		{Role: domain.RoleBot, Text: "b2"},
	}
	lines := strings.Split(BuildContext(messages), "\n")
	if len(lines) != len(messages) {
		t.Fatalf("expected %d lines, got %d", len(messages), len(lines))
	}
	for i, line := range lines {
		if !strings.HasPrefix(line, "user: ") && !strings.HasPrefix(line, "bot: ") {
			t.Fatalf("line %d has no role prefix: %q", i, line)
		}
		if !strings.HasSuffix(line, messages[i].Text) {
			t.Fatalf("line %d out of order: %q", i, line)
		}
	}
}

func TestBuildContextEmpty(t *testing.T) {
	if got := BuildContext(nil); got != "" {
		t.Fatalf("expected empty context, got %q", got)
	}
}
