package services

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/mailhaven/core/internal/classifier"
	"github.com/mailhaven/core/internal/database/models"
	"github.com/mailhaven/core/internal/mailbox"
)

// stubTransport satisfies Transport without touching the network
type stubTransport struct {
	messageID string
}

func (s stubTransport) Send(credential *models.Credential, password string, to []string, subject, body string) (string, error) {
	return s.messageID, nil
}

// classifierBackend serves a canned chat-completion response carrying the
// given classification payload
func classifierBackend(t *testing.T, categories string) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		resp := map[string]interface{}{
			"choices": []map[string]interface{}{
				{"message": map[string]string{"role": "assistant", "content": categories}},
			},
		}
		json.NewEncoder(w).Encode(resp)
	}))
}

func TestIngestUnconfiguredClassifierFallsBackToDefaults(t *testing.T) {
	db, cleanup := setupServiceTestDB(t)
	defer cleanup()

	_, credential, credentialService := setupUserAndCredential(t, db, "ingest")
	ingestService := NewIngestService(db, credentialService, classifier.NewClient(), "")

	raw := mailbox.RawMessage{
		MessageID: "<fallback-1@test>",
		Subject:   "Welcome",
		FromName:  "Alice",
		FromAddr:  "alice@example.com",
		Date:      time.Now(),
		Body:      "Hello there",
	}

	msg, err := ingestService.Ingest(context.Background(), credential, raw)
	if err != nil {
		t.Fatalf("Ingest failed: %v", err)
	}

	if msg.Categories() != models.DefaultCategories() {
		t.Errorf("unclassified message should carry default categories, got %+v", msg.Categories())
	}
	if msg.Folder != models.FolderInbox {
		t.Errorf("ingested message folder = %q, want inbox", msg.Folder)
	}
	if msg.Read {
		t.Error("ingested message should start unread")
	}
}

func TestIngestUpsertPreservesOrganizationState(t *testing.T) {
	db, cleanup := setupServiceTestDB(t)
	defer cleanup()

	user, credential, credentialService := setupUserAndCredential(t, db, "upsert")
	ingestService := NewIngestService(db, credentialService, classifier.NewClient(), "")
	messageService := NewMessageService(db, credentialService)

	raw := mailbox.RawMessage{
		MessageID: "<upsert-1@test>",
		Subject:   "Original subject",
		FromAddr:  "bob@example.com",
		Date:      time.Now(),
		Body:      "First body",
	}

	first, err := ingestService.Ingest(context.Background(), credential, raw)
	if err != nil {
		t.Fatalf("first Ingest failed: %v", err)
	}

	// Organize the message, then re-ingest the same external id
	if _, err := messageService.ApplyAction(user.ID, credential.ID, first.ID, "star"); err != nil {
		t.Fatalf("star failed: %v", err)
	}
	if _, err := messageService.ApplyAction(user.ID, credential.ID, first.ID, "archive"); err != nil {
		t.Fatalf("archive failed: %v", err)
	}
	if _, err := messageService.ApplyAction(user.ID, credential.ID, first.ID, "read"); err != nil {
		t.Fatalf("read failed: %v", err)
	}

	raw.Subject = "Refreshed subject"
	raw.Body = "Second body"
	second, err := ingestService.Ingest(context.Background(), credential, raw)
	if err != nil {
		t.Fatalf("second Ingest failed: %v", err)
	}

	if second.ID != first.ID {
		t.Fatalf("re-ingestion created a new record: %d != %d", second.ID, first.ID)
	}
	if second.Subject != "Refreshed subject" || second.Body != "Second body" {
		t.Errorf("envelope fields should refresh: %+v", second)
	}
	if second.Folder != models.FolderArchive || !second.Starred || !second.Read {
		t.Errorf("organization state must survive re-ingestion: folder=%q starred=%v read=%v",
			second.Folder, second.Starred, second.Read)
	}
}

func TestIngestSnippetStripsHTML(t *testing.T) {
	db, cleanup := setupServiceTestDB(t)
	defer cleanup()

	_, credential, credentialService := setupUserAndCredential(t, db, "snippet")
	ingestService := NewIngestService(db, credentialService, classifier.NewClient(), "")

	raw := mailbox.RawMessage{
		MessageID: "<html-1@test>",
		Subject:   "Offer",
		FromAddr:  "promo@example.com",
		Date:      time.Now(),
		HTMLBody:  "<div><h1>Big   Sale</h1><p>Save <b>50%</b> today!</p></div>",
	}

	msg, err := ingestService.Ingest(context.Background(), credential, raw)
	if err != nil {
		t.Fatalf("Ingest failed: %v", err)
	}

	if strings.ContainsAny(msg.Snippet, "<>") {
		t.Errorf("snippet should carry no markup: %q", msg.Snippet)
	}
	if !strings.Contains(msg.Snippet, "Big Sale") || !strings.Contains(msg.Snippet, "50%") {
		t.Errorf("snippet should keep the text content: %q", msg.Snippet)
	}
}

func TestIngestSnippetTruncated(t *testing.T) {
	db, cleanup := setupServiceTestDB(t)
	defer cleanup()

	_, credential, credentialService := setupUserAndCredential(t, db, "trunc")
	ingestService := NewIngestService(db, credentialService, classifier.NewClient(), "")

	raw := mailbox.RawMessage{
		MessageID: "<long-1@test>",
		Subject:   "Long",
		FromAddr:  "long@example.com",
		Date:      time.Now(),
		Body:      strings.Repeat("lorem ipsum ", 100),
	}

	msg, err := ingestService.Ingest(context.Background(), credential, raw)
	if err != nil {
		t.Fatalf("Ingest failed: %v", err)
	}
	if len([]rune(msg.Snippet)) > snippetMaxLen {
		t.Errorf("snippet length = %d, want <= %d", len([]rune(msg.Snippet)), snippetMaxLen)
	}
}

func TestIngestConfiguredClassifierTimeoutFallsBackToDefaults(t *testing.T) {
	db, cleanup := setupServiceTestDB(t)
	defer cleanup()

	// The backend never answers; the bounded context must expire first
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// Drain the body so the server can observe the client disconnect
		// and unblock this handler when the bounded context expires
		io.Copy(io.Discard, r.Body)
		<-r.Context().Done()
	}))
	defer server.Close()

	client := classifier.NewClient()
	client.ConfigureWithBaseURL("custom", "test-key", "test-model", server.URL)

	_, credential, credentialService := setupUserAndCredential(t, db, "timeout")
	ingestService := NewIngestService(db, credentialService, client, "")

	raw := mailbox.RawMessage{
		MessageID: "<timeout-1@test>",
		Subject:   "Slow backend",
		FromAddr:  "slow@example.com",
		Date:      time.Now(),
		Body:      "body text",
	}

	ctx, cancel := context.WithTimeout(context.Background(), 300*time.Millisecond)
	defer cancel()

	msg, err := ingestService.Ingest(ctx, credential, raw)
	if err != nil {
		t.Fatalf("Ingest must not fail on a classification timeout: %v", err)
	}
	if msg.ID == 0 {
		t.Fatal("message should be persisted despite the timeout")
	}
	if msg.Categories() != models.DefaultCategories() {
		t.Errorf("timed-out classification should yield default categories, got %+v", msg.Categories())
	}
}

func TestIngestEmptyMessageIDAlwaysInserts(t *testing.T) {
	db, cleanup := setupServiceTestDB(t)
	defer cleanup()

	_, credential, credentialService := setupUserAndCredential(t, db, "noid")
	ingestService := NewIngestService(db, credentialService, classifier.NewClient(), "")

	first, err := ingestService.Ingest(context.Background(), credential, mailbox.RawMessage{
		Subject: "First without id", FromAddr: "a@example.com", Date: time.Now(), Body: "one",
	})
	if err != nil {
		t.Fatalf("first Ingest failed: %v", err)
	}
	second, err := ingestService.Ingest(context.Background(), credential, mailbox.RawMessage{
		Subject: "Second without id", FromAddr: "b@example.com", Date: time.Now(), Body: "two",
	})
	if err != nil {
		t.Fatalf("second Ingest failed: %v", err)
	}

	if first.ID == second.ID {
		t.Error("messages without an external id must not upsert over each other")
	}
	if second.Subject != "Second without id" {
		t.Errorf("second message was overwritten: %+v", second)
	}
}

func TestSendMessageClassifiesOutbound(t *testing.T) {
	db, cleanup := setupServiceTestDB(t)
	defer cleanup()

	server := classifierBackend(t, `{"purpose":"Work","senderType":"Human","contentType":"Text-only","priority":"High","actionRequired":"Follow-up Needed","topicDepartment":"Sales","timeSensitivity":"Time-sensitive"}`)
	defer server.Close()

	client := classifier.NewClient()
	client.ConfigureWithBaseURL("custom", "test-key", "test-model", server.URL)

	user, credential, credentialService := setupUserAndCredential(t, db, "send")
	ingestService := NewIngestService(db, credentialService, client, "")
	ingestService.mailer = stubTransport{messageID: "<sent-1@example.com>"}

	msg, err := ingestService.SendMessage(context.Background(), user.ID, credential.ID, []string{"dest@example.com"}, "Proposal", "Please review the attached proposal")
	if err != nil {
		t.Fatalf("SendMessage failed: %v", err)
	}

	if msg.Folder != models.FolderSent || !msg.Read {
		t.Errorf("sent message state: folder=%q read=%v", msg.Folder, msg.Read)
	}
	got := msg.Categories()
	if got.Purpose != models.PurposeWork || got.Priority != models.PriorityHigh || got.TopicDepartment != "Sales" {
		t.Errorf("outbound message should carry the classified categories, got %+v", got)
	}
}

func TestSendMessageClassifierFailureUsesDefaults(t *testing.T) {
	db, cleanup := setupServiceTestDB(t)
	defer cleanup()

	server := classifierBackend(t, "no json here")
	defer server.Close()

	client := classifier.NewClient()
	client.ConfigureWithBaseURL("custom", "test-key", "test-model", server.URL)

	user, credential, credentialService := setupUserAndCredential(t, db, "sendfail")
	ingestService := NewIngestService(db, credentialService, client, "")
	ingestService.mailer = stubTransport{messageID: "<sent-2@example.com>"}

	msg, err := ingestService.SendMessage(context.Background(), user.ID, credential.ID, []string{"dest@example.com"}, "Hello", "body")
	if err != nil {
		t.Fatalf("SendMessage must not fail on a classification error: %v", err)
	}
	if msg.Categories() != models.DefaultCategories() {
		t.Errorf("failed outbound classification should yield defaults, got %+v", msg.Categories())
	}
}

func TestIngestZeroDateDefaultsToNow(t *testing.T) {
	db, cleanup := setupServiceTestDB(t)
	defer cleanup()

	_, credential, credentialService := setupUserAndCredential(t, db, "nodate")
	ingestService := NewIngestService(db, credentialService, classifier.NewClient(), "")

	raw := mailbox.RawMessage{
		MessageID: "<nodate-1@test>",
		Subject:   "Undated",
		FromAddr:  "x@example.com",
		Body:      "no date header",
	}

	msg, err := ingestService.Ingest(context.Background(), credential, raw)
	if err != nil {
		t.Fatalf("Ingest failed: %v", err)
	}
	if msg.ReceivedAt.IsZero() {
		t.Error("ReceivedAt should default to the ingestion time")
	}
}
