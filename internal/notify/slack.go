package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/mailhaven/core/internal/database/models"
	"golang.org/x/oauth2"
	"gorm.io/gorm"
)

var (
	// ErrNotConfigured indicates Slack OAuth credentials are missing
	ErrNotConfigured = errors.New("slack integration not configured")
	// ErrOAuthFailed indicates the OAuth code exchange failed
	ErrOAuthFailed = errors.New("slack oauth exchange failed")
	// ErrNoInstall indicates the user has no Slack workspace installed
	ErrNoInstall = errors.New("no slack installation for user")
)

const (
	slackAuthURL  = "https://slack.com/oauth/v2/authorize"
	slackTokenURL = "https://slack.com/api/oauth.v2.access"
	slackPostURL  = "https://slack.com/api/chat.postMessage"
)

// SlackNotifier posts new-message notifications to a user's Slack workspace.
// Posting is fire-and-forget: failures are logged and never surfaced to
// ingestion.
type SlackNotifier struct {
	db          *gorm.DB
	oauthConfig *oauth2.Config
	httpClient  *http.Client
	logf        func(userID uint, action, msg string, details map[string]interface{})
}

// NewSlackNotifier creates a new SlackNotifier. clientID may be empty, in
// which case the install flow reports ErrNotConfigured and posting is a
// no-op.
func NewSlackNotifier(db *gorm.DB, clientID, clientSecret, redirectURL string) *SlackNotifier {
	return &SlackNotifier{
		db: db,
		oauthConfig: &oauth2.Config{
			ClientID:     clientID,
			ClientSecret: clientSecret,
			RedirectURL:  redirectURL,
			Scopes:       []string{"chat:write", "chat:write.public"},
			Endpoint: oauth2.Endpoint{
				AuthURL:  slackAuthURL,
				TokenURL: slackTokenURL,
			},
		},
		httpClient: &http.Client{Timeout: 10 * time.Second},
		logf:       func(uint, string, string, map[string]interface{}) {},
	}
}

// SetLogger attaches a log sink for notification failures
func (n *SlackNotifier) SetLogger(logf func(userID uint, action, msg string, details map[string]interface{})) {
	if logf != nil {
		n.logf = logf
	}
}

// IsConfigured returns whether OAuth client credentials are present
func (n *SlackNotifier) IsConfigured() bool {
	return n.oauthConfig.ClientID != "" && n.oauthConfig.ClientSecret != ""
}

// InstallURL builds the workspace authorization URL. The state value is the
// caller's CSRF token and comes back on the callback.
func (n *SlackNotifier) InstallURL(state string) (string, error) {
	if !n.IsConfigured() {
		return "", ErrNotConfigured
	}
	return n.oauthConfig.AuthCodeURL(state), nil
}

// CompleteInstall exchanges the callback code for a workspace token and
// stores it for the user. Re-installing the same workspace replaces the
// stored token. Slack's oauth.v2.access payload carries the workspace
// details as extra JSON fields alongside the token.
func (n *SlackNotifier) CompleteInstall(ctx context.Context, userID uint, code string) (*models.SlackInstall, error) {
	if !n.IsConfigured() {
		return nil, ErrNotConfigured
	}

	token, err := n.oauthConfig.Exchange(ctx, code)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrOAuthFailed, err)
	}
	if token.AccessToken == "" {
		return nil, fmt.Errorf("%w: empty access token", ErrOAuthFailed)
	}

	install := &models.SlackInstall{
		UserID:      userID,
		AccessToken: token.AccessToken,
	}
	if team, ok := token.Extra("team").(map[string]interface{}); ok {
		install.TeamID, _ = team["id"].(string)
		install.TeamName, _ = team["name"].(string)
	}
	if botUserID, ok := token.Extra("bot_user_id").(string); ok {
		install.BotUserID = botUserID
	}
	if scope, ok := token.Extra("scope").(string); ok {
		install.Scope = scope
	}
	if authedUser, ok := token.Extra("authed_user").(map[string]interface{}); ok {
		install.AuthedUserID, _ = authedUser["id"].(string)
	}

	var existing models.SlackInstall
	err = n.db.Where("user_id = ? AND team_id = ?", userID, install.TeamID).First(&existing).Error
	if err == nil {
		install.ID = existing.ID
		install.Channel = existing.Channel
		if err := n.db.Save(install).Error; err != nil {
			return nil, err
		}
		return install, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}

	if err := n.db.Create(install).Error; err != nil {
		return nil, err
	}
	return install, nil
}

// GetInstall returns the user's Slack installation, if any
func (n *SlackNotifier) GetInstall(userID uint) (*models.SlackInstall, error) {
	var install models.SlackInstall
	if err := n.db.Where("user_id = ?", userID).First(&install).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNoInstall
		}
		return nil, err
	}
	return &install, nil
}

// postMessageRequest is the chat.postMessage payload
type postMessageRequest struct {
	Channel string `json:"channel"`
	Text    string `json:"text"`
}

// postMessageResponse is the chat.postMessage response envelope
type postMessageResponse struct {
	OK    bool   `json:"ok"`
	Error string `json:"error"`
}

// postMessage posts one message to a channel using a workspace token
func (n *SlackNotifier) postMessage(install *models.SlackInstall, text string) error {
	channel := install.Channel
	if channel == "" {
		channel = "#general"
	}

	body, err := json.Marshal(postMessageRequest{Channel: channel, Text: text})
	if err != nil {
		return err
	}

	req, err := http.NewRequest("POST", slackPostURL, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json; charset=utf-8")
	req.Header.Set("Authorization", "Bearer "+install.AccessToken)

	resp, err := n.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	var result postMessageResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return err
	}
	if !result.OK {
		return fmt.Errorf("slack api error: %s", result.Error)
	}
	return nil
}

// NotifyNewMessage posts a short summary of a newly ingested message to the
// owning user's workspace. Errors are logged and swallowed.
func (n *SlackNotifier) NotifyNewMessage(msg *models.Message) {
	var credential models.Credential
	if err := n.db.First(&credential, msg.CredentialID).Error; err != nil {
		return
	}

	install, err := n.GetInstall(credential.UserID)
	if err != nil {
		return
	}

	text := fmt.Sprintf("New mail for %s\nFrom: %s <%s>\nSubject: %s\nPriority: %s | Action: %s",
		credential.Email, msg.FromName, msg.FromAddr, msg.Subject, msg.Priority, msg.ActionRequired)

	if err := n.postMessage(install, text); err != nil {
		n.logf(credential.UserID, "post", "Slack notification failed", map[string]interface{}{
			"message_id": msg.ID,
			"error":      err.Error(),
		})
	}
}
