package mailer

import (
	"strings"
	"testing"

	"github.com/mailhaven/core/internal/database/models"
)

func TestBuildContentHeaders(t *testing.T) {
	credential := &models.Credential{
		Email:       "sender@example.com",
		DisplayName: "Sender Name",
	}

	content := buildContent(credential, []string{"a@example.com", "b@example.com"}, "Hello", "Body text", "<id-1@example.com>")

	headers, body, found := strings.Cut(content, "\r\n\r\n")
	if !found {
		t.Fatal("content should separate headers from body with a blank line")
	}

	for _, want := range []string{
		"From: Sender Name <sender@example.com>",
		"To: a@example.com, b@example.com",
		"Subject: Hello",
		"Message-ID: <id-1@example.com>",
		"Content-Type: text/plain; charset=UTF-8",
	} {
		if !strings.Contains(headers, want) {
			t.Errorf("headers missing %q:\n%s", want, headers)
		}
	}
	if !strings.Contains(body, "Body text") {
		t.Errorf("body missing text: %q", body)
	}
}

func TestBuildContentWithoutDisplayName(t *testing.T) {
	credential := &models.Credential{Email: "plain@example.com"}

	content := buildContent(credential, []string{"x@example.com"}, "Subj", "b", "<id-2@example.com>")
	if !strings.Contains(content, "From: plain@example.com\r\n") {
		t.Error("From should be the bare address when no display name is set")
	}
}

func TestGenerateMessageID(t *testing.T) {
	id1 := generateMessageID("user@example.com")
	id2 := generateMessageID("user@example.com")

	if id1 == id2 {
		t.Error("message ids must be unique")
	}
	if !strings.HasPrefix(id1, "<") || !strings.HasSuffix(id1, "@example.com>") {
		t.Errorf("message id should use the sender domain: %q", id1)
	}

	fallback := generateMessageID("not-an-address")
	if !strings.HasSuffix(fallback, "@localhost>") {
		t.Errorf("malformed sender should fall back to localhost: %q", fallback)
	}
}
