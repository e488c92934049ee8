package models

import (
	"time"
)

// Folder constants for message organization. Sent is assigned only when an
// outbound message is persisted; transitions never move a message into it.
const (
	FolderInbox   = "inbox"
	FolderSent    = "sent"
	FolderTrash   = "trash"
	FolderArchive = "archive"
)

// Folders lists every folder the counts endpoint reports, in display order.
var Folders = []string{FolderInbox, FolderSent, FolderTrash, FolderArchive}

// IsValidFolder checks if a folder name is one of the four known folders
func IsValidFolder(folder string) bool {
	switch folder {
	case FolderInbox, FolderSent, FolderTrash, FolderArchive:
		return true
	}
	return false
}

// Message represents a stored email message owned by exactly one credential
type Message struct {
	ID           uint      `gorm:"primaryKey" json:"id"`
	CredentialID uint      `gorm:"index;not null" json:"credential_id"`
	MessageID    string    `gorm:"index;size:255" json:"message_id"`
	Subject      string    `gorm:"size:500" json:"subject"`
	FromName     string    `gorm:"size:255" json:"from_name"`
	FromAddr     string    `gorm:"size:255" json:"from_addr"`
	ToAddrs      string    `gorm:"type:text" json:"to"` // JSON array of {name,email}
	Body         string    `gorm:"type:text" json:"body"`
	Snippet      string    `gorm:"size:500" json:"snippet"`
	RawFilePath  string    `gorm:"size:500" json:"raw_file_path"`
	ReceivedAt   time.Time `gorm:"index" json:"received_at"`

	Folder  string `gorm:"size:20;default:'inbox';index" json:"folder"`
	Read    bool   `gorm:"default:false" json:"read"`
	Starred bool   `gorm:"default:false" json:"starred"`

	Purpose         string `gorm:"size:20;default:'Personal'" json:"purpose"`
	SenderType      string `gorm:"size:20;default:'Human'" json:"sender_type"`
	ContentType     string `gorm:"size:20;default:'Text-only'" json:"content_type"`
	Priority        string `gorm:"size:20;default:'Normal'" json:"priority"`
	ActionRequired  string `gorm:"size:30;default:'Informational Only'" json:"action_required"`
	TopicDepartment string `gorm:"size:100;default:''" json:"topic_department"`
	TimeSensitivity string `gorm:"size:20;default:'Evergreen'" json:"time_sensitivity"`

	HasAttachments bool   `gorm:"default:false" json:"has_attachments"`
	Attachments    string `gorm:"type:text" json:"attachments"` // JSON array of filenames

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Categories returns the message's classification fields as a record
func (m *Message) Categories() CategoryRecord {
	return CategoryRecord{
		Purpose:         Purpose(m.Purpose),
		SenderType:      SenderType(m.SenderType),
		ContentType:     ContentType(m.ContentType),
		Priority:        Priority(m.Priority),
		ActionRequired:  ActionRequired(m.ActionRequired),
		TopicDepartment: m.TopicDepartment,
		TimeSensitivity: TimeSensitivity(m.TimeSensitivity),
	}
}

// SetCategories copies a classification record onto the message fields
func (m *Message) SetCategories(r CategoryRecord) {
	m.Purpose = string(r.Purpose)
	m.SenderType = string(r.SenderType)
	m.ContentType = string(r.ContentType)
	m.Priority = string(r.Priority)
	m.ActionRequired = string(r.ActionRequired)
	m.TopicDepartment = r.TopicDepartment
	m.TimeSensitivity = string(r.TimeSensitivity)
}

// Recipient is one entry of a message's To list
type Recipient struct {
	Name  string `json:"name"`
	Email string `json:"email"`
}
