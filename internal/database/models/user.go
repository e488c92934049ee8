package models

import (
	"time"
)

// User represents a user in the system
type User struct {
	ID           uint      `gorm:"primaryKey" json:"id"`
	Username     string    `gorm:"uniqueIndex;size:50;not null" json:"username"`
	PasswordHash string    `gorm:"size:255;not null" json:"-"`
	Nickname     string    `gorm:"size:100" json:"nickname"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`

	// Relations
	Credentials []Credential `gorm:"foreignKey:UserID" json:"credentials,omitempty"`
}

// SlackInstall stores the Slack workspace token a user authorized for
// notifications. Posting is fire-and-forget; a missing install simply means
// no notification is attempted.
type SlackInstall struct {
	ID           uint      `gorm:"primaryKey" json:"id"`
	UserID       uint      `gorm:"index;not null" json:"user_id"`
	TeamID       string    `gorm:"size:50;index;not null" json:"team_id"`
	TeamName     string    `gorm:"size:255" json:"team_name"`
	AccessToken  string    `gorm:"size:500;not null" json:"-"`
	BotUserID    string    `gorm:"size:50" json:"bot_user_id"`
	AuthedUserID string    `gorm:"size:50" json:"authed_user_id"`
	Scope        string    `gorm:"size:255" json:"scope"`
	Channel      string    `gorm:"size:100;default:'#general'" json:"channel"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}
