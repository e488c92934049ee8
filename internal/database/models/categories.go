package models

// Purpose classifies why a message was sent
type Purpose string

const (
	PurposePersonal      Purpose = "Personal"
	PurposeWork          Purpose = "Work"
	PurposeTransactional Purpose = "Transactional"
	PurposePromotional   Purpose = "Promotional"
	PurposeNewsletter    Purpose = "Newsletter"
	PurposeNotification  Purpose = "Notification"
	PurposeSpam          Purpose = "Spam"
)

// IsValid checks if the purpose is one of the known values
func (p Purpose) IsValid() bool {
	switch p {
	case PurposePersonal, PurposeWork, PurposeTransactional, PurposePromotional,
		PurposeNewsletter, PurposeNotification, PurposeSpam:
		return true
	}
	return false
}

// SenderType classifies who sent a message
type SenderType string

const (
	SenderHuman     SenderType = "Human"
	SenderAutomated SenderType = "Automated"
	SenderCompany   SenderType = "Company"
)

// IsValid checks if the sender type is one of the known values
func (s SenderType) IsValid() bool {
	switch s {
	case SenderHuman, SenderAutomated, SenderCompany:
		return true
	}
	return false
}

// ContentType classifies the rendering style of a message body
type ContentType string

const (
	ContentTextOnly    ContentType = "Text-only"
	ContentMediaRich   ContentType = "Media-rich"
	ContentInteractive ContentType = "Interactive"
)

// IsValid checks if the content type is one of the known values
func (c ContentType) IsValid() bool {
	switch c {
	case ContentTextOnly, ContentMediaRich, ContentInteractive:
		return true
	}
	return false
}

// Priority classifies how urgent a message is
type Priority string

const (
	PriorityUrgent Priority = "Urgent"
	PriorityHigh   Priority = "High"
	PriorityNormal Priority = "Normal"
	PriorityLow    Priority = "Low"
)

// IsValid checks if the priority is one of the known values
func (p Priority) IsValid() bool {
	switch p {
	case PriorityUrgent, PriorityHigh, PriorityNormal, PriorityLow:
		return true
	}
	return false
}

// ActionRequired classifies what the recipient should do with a message
type ActionRequired string

const (
	ActionImmediate     ActionRequired = "Immediate Action"
	ActionFollowUp      ActionRequired = "Follow-up Needed"
	ActionReadLater     ActionRequired = "Read Later"
	ActionInformational ActionRequired = "Informational Only"
)

// IsValid checks if the action-required value is one of the known values
func (a ActionRequired) IsValid() bool {
	switch a {
	case ActionImmediate, ActionFollowUp, ActionReadLater, ActionInformational:
		return true
	}
	return false
}

// TimeSensitivity classifies whether a message loses value over time
type TimeSensitivity string

const (
	TimeSensitive TimeSensitivity = "Time-sensitive"
	TimeEvergreen TimeSensitivity = "Evergreen"
)

// IsValid checks if the time sensitivity is one of the known values
func (t TimeSensitivity) IsValid() bool {
	switch t {
	case TimeSensitive, TimeEvergreen:
		return true
	}
	return false
}

// CategoryRecord holds the seven classification fields for a message.
// TopicDepartment is free text; every other field is constrained to its enum.
type CategoryRecord struct {
	Purpose         Purpose         `json:"purpose"`
	SenderType      SenderType      `json:"senderType"`
	ContentType     ContentType     `json:"contentType"`
	Priority        Priority        `json:"priority"`
	ActionRequired  ActionRequired  `json:"actionRequired"`
	TopicDepartment string          `json:"topicDepartment"`
	TimeSensitivity TimeSensitivity `json:"timeSensitivity"`
}

// DefaultCategories returns the canonical fallback record used whenever
// classification is unavailable. Defaults match the schema defaults of the
// message model.
func DefaultCategories() CategoryRecord {
	return CategoryRecord{
		Purpose:         PurposePersonal,
		SenderType:      SenderHuman,
		ContentType:     ContentTextOnly,
		Priority:        PriorityNormal,
		ActionRequired:  ActionInformational,
		TopicDepartment: "",
		TimeSensitivity: TimeEvergreen,
	}
}

// Normalize coerces each enum field individually: a value outside its enum
// set is replaced with that field's default while the other fields are kept.
func (r CategoryRecord) Normalize() CategoryRecord {
	defaults := DefaultCategories()
	if !r.Purpose.IsValid() {
		r.Purpose = defaults.Purpose
	}
	if !r.SenderType.IsValid() {
		r.SenderType = defaults.SenderType
	}
	if !r.ContentType.IsValid() {
		r.ContentType = defaults.ContentType
	}
	if !r.Priority.IsValid() {
		r.Priority = defaults.Priority
	}
	if !r.ActionRequired.IsValid() {
		r.ActionRequired = defaults.ActionRequired
	}
	if !r.TimeSensitivity.IsValid() {
		r.TimeSensitivity = defaults.TimeSensitivity
	}
	return r
}

// CategoryField describes one categorical column so that validation and
// aggregation can be driven by data instead of per-field code.
type CategoryField struct {
	Name    string // JSON key used by the classifier and the API
	Column  string // database column name
	Default string
}

// CategoryFields lists the six enumerated category columns, in the order the
// counts endpoint reports them. TopicDepartment is free text and is not
// aggregated by default.
var CategoryFields = []CategoryField{
	{Name: "purpose", Column: "purpose", Default: string(PurposePersonal)},
	{Name: "senderType", Column: "sender_type", Default: string(SenderHuman)},
	{Name: "contentType", Column: "content_type", Default: string(ContentTextOnly)},
	{Name: "priority", Column: "priority", Default: string(PriorityNormal)},
	{Name: "actionRequired", Column: "action_required", Default: string(ActionInformational)},
	{Name: "timeSensitivity", Column: "time_sensitivity", Default: string(TimeEvergreen)},
}
