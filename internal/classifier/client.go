package classifier

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/mailhaven/core/internal/database/models"
)

var (
	// ErrNotConfigured indicates the classifier client is not configured
	ErrNotConfigured = errors.New("classifier not configured")
	// ErrClassificationFailed indicates the classification call or its
	// response handling failed; callers fall back to default categories
	ErrClassificationFailed = errors.New("classification failed")
)

// Provider represents a chat-completion provider
type Provider string

const (
	// ProviderOpenAI represents OpenAI API
	ProviderOpenAI Provider = "openai"
	// ProviderAzure represents Azure OpenAI API
	ProviderAzure Provider = "azure"
	// ProviderClaude represents Anthropic Claude API
	ProviderClaude Provider = "claude"
	// ProviderCustom represents a custom API endpoint
	ProviderCustom Provider = "custom"
)

// Client handles communication with the external classification service
type Client struct {
	provider   Provider
	apiKey     string
	model      string
	baseURL    string
	httpClient *http.Client
	configured bool
}

// NewClient creates a new classifier Client instance
func NewClient() *Client {
	return &Client{
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

// Configure configures the client with provider settings
func (c *Client) Configure(provider, apiKey, model string) {
	c.ConfigureWithBaseURL(provider, apiKey, model, "")
}

// ConfigureWithBaseURL configures the client with provider settings and a
// custom base URL
func (c *Client) ConfigureWithBaseURL(provider, apiKey, model, baseURL string) {
	c.provider = Provider(strings.ToLower(provider))
	c.apiKey = apiKey
	c.model = model
	c.configured = apiKey != ""

	if baseURL != "" {
		c.baseURL = strings.TrimSuffix(baseURL, "/")
		return
	}

	switch c.provider {
	case ProviderOpenAI:
		c.baseURL = "https://api.openai.com/v1"
		if c.model == "" {
			c.model = "gpt-4o-mini"
		}
	case ProviderClaude:
		c.baseURL = "https://api.anthropic.com/v1"
		if c.model == "" {
			c.model = "claude-3-haiku-20240307"
		}
	case ProviderAzure:
		// Azure requires a custom endpoint
		if c.model == "" {
			c.model = "gpt-35-turbo"
		}
	default:
		c.provider = ProviderOpenAI
		c.baseURL = "https://api.openai.com/v1"
	}
}

// IsConfigured returns whether the client is configured
func (c *Client) IsConfigured() bool {
	return c.configured && c.apiKey != ""
}

const maxBodyRunes = 4000

// truncateBody caps the body sent to the service, cutting on a rune boundary
// so multi-byte text is never mangled
func truncateBody(body string, limit int) string {
	runes := []rune(body)
	if len(runes) > limit {
		return string(runes[:limit])
	}
	return body
}

// ChatMessage represents a message in a chat conversation
type ChatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// ChatRequest represents a chat completion request
type ChatRequest struct {
	Model       string        `json:"model"`
	Messages    []ChatMessage `json:"messages"`
	MaxTokens   int           `json:"max_tokens,omitempty"`
	Temperature float64       `json:"temperature,omitempty"`
}

// ChatResponse represents a chat completion response
type ChatResponse struct {
	ID      string `json:"id"`
	Choices []struct {
		Message ChatMessage `json:"message"`
	} `json:"choices"`
	Error *struct {
		Message string `json:"message"`
	} `json:"error,omitempty"`
}

// sendChatRequest sends a chat completion request to the service
func (c *Client) sendChatRequest(ctx context.Context, messages []ChatMessage) (string, error) {
	if !c.IsConfigured() {
		return "", ErrNotConfigured
	}

	request := ChatRequest{
		Model:       c.model,
		Messages:    messages,
		MaxTokens:   300,
		Temperature: 0.2,
	}

	body, err := json.Marshal(request)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrClassificationFailed, err)
	}

	url := c.baseURL + "/chat/completions"
	req, err := http.NewRequestWithContext(ctx, "POST", url, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrClassificationFailed, err)
	}

	req.Header.Set("Content-Type", "application/json")

	switch c.provider {
	case ProviderClaude:
		req.Header.Set("x-api-key", c.apiKey)
		req.Header.Set("anthropic-version", "2023-06-01")
	default:
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrClassificationFailed, err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrClassificationFailed, err)
	}

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("%w: status %d: %s", ErrClassificationFailed, resp.StatusCode, string(respBody))
	}

	var chatResp ChatResponse
	if err := json.Unmarshal(respBody, &chatResp); err != nil {
		return "", fmt.Errorf("%w: %v", ErrClassificationFailed, err)
	}

	if chatResp.Error != nil {
		return "", fmt.Errorf("%w: %s", ErrClassificationFailed, chatResp.Error.Message)
	}

	if len(chatResp.Choices) == 0 {
		return "", fmt.Errorf("%w: empty response", ErrClassificationFailed)
	}

	return chatResp.Choices[0].Message.Content, nil
}

// Classify sends the message body to the classification service and returns
// a validated category record. Exactly one attempt is made; any transport
// error, timeout or unparseable payload is reported as ErrClassificationFailed
// and the caller falls back to models.DefaultCategories.
func (c *Client) Classify(ctx context.Context, body string) (models.CategoryRecord, error) {
	body = truncateBody(body, maxBodyRunes)

	messages := []ChatMessage{
		{
			Role:    "user",
			Content: BuildCategoryPrompt(body),
		},
	}

	response, err := c.sendChatRequest(ctx, messages)
	if err != nil {
		return models.DefaultCategories(), err
	}

	record, err := ParseCategoryResponse(response)
	if err != nil {
		return models.DefaultCategories(), err
	}

	return record, nil
}

// ParseCategoryResponse parses the raw service response into a category
// record. Field values outside their enum are coerced to that field's
// default individually; only an unparseable payload fails wholesale.
func ParseCategoryResponse(response string) (models.CategoryRecord, error) {
	payload := extractJSONObject(response)
	if payload == "" {
		return models.DefaultCategories(), fmt.Errorf("%w: no JSON object in response", ErrClassificationFailed)
	}

	var record models.CategoryRecord
	if err := json.Unmarshal([]byte(payload), &record); err != nil {
		return models.DefaultCategories(), fmt.Errorf("%w: %v", ErrClassificationFailed, err)
	}

	return record.Normalize(), nil
}

// extractJSONObject pulls the first {...} object out of a response that may
// be wrapped in markdown fences or stray prose
func extractJSONObject(s string) string {
	start := strings.Index(s, "{")
	end := strings.LastIndex(s, "}")
	if start == -1 || end == -1 || end < start {
		return ""
	}
	return s[start : end+1]
}
