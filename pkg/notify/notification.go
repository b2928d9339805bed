package notify

import (
	"time"

	"github.com/google/uuid"
)

// Type is the notification type discriminator. Preferences are keyed by it,
// so every value here must be covered by the preference seeding in
// KnownTypes.
type Type string

const (
	TypePostCreated          Type = "post_created"
	TypePostLiked            Type = "post_liked"
	TypePostCommented        Type = "post_commented"
	TypeCommentReplied       Type = "comment_replied"
	TypeCommentLiked         Type = "comment_liked"
	TypeEventCreated         Type = "event_created"
	TypeEventInvitation      Type = "event_invitation"
	TypeEventReminder        Type = "event_reminder"
	TypePtoCreated           Type = "pto_created"
	TypePtoRequestStatus     Type = "pto_request_status"
	TypeProjectAssignment    Type = "project_assignment"
	TypeEmployeeRecognition  Type = "employee_recognition"
	TypePollCreated          Type = "poll_created"
	TypeDepartmentAssignment Type = "department_assignment"
	TypeDepartmentRemoval    Type = "department_removal"
	TypeDepartmentTransfer   Type = "department_transfer"
	TypeDepartmentCreated    Type = "department_created"
	TypeEmployeeBirthday     Type = "employee_birthday"
	TypeNewUserSignup        Type = "new_user_signup"
)

// KnownTypes lists every notification type. Preference initialization seeds
// one default row per entry.
func KnownTypes() []Type {
	return []Type{
		TypePostCreated,
		TypePostLiked,
		TypePostCommented,
		TypeCommentReplied,
		TypeCommentLiked,
		TypeEventCreated,
		TypeEventInvitation,
		TypeEventReminder,
		TypePtoCreated,
		TypePtoRequestStatus,
		TypeProjectAssignment,
		TypeEmployeeRecognition,
		TypePollCreated,
		TypeDepartmentAssignment,
		TypeDepartmentRemoval,
		TypeDepartmentTransfer,
		TypeDepartmentCreated,
		TypeEmployeeBirthday,
		TypeNewUserSignup,
	}
}

// Valid reports whether t is a known notification type.
func (t Type) Valid() bool {
	for _, known := range KnownTypes() {
		if t == known {
			return true
		}
	}
	return false
}

// Channel selects the delivery mechanism for a notification type.
type Channel string

const (
	ChannelInApp Channel = "in_app"
	ChannelEmail Channel = "email"
	ChannelBoth  Channel = "both"
)

// Valid reports whether c is a known channel value.
func (c Channel) Valid() bool {
	return c == ChannelInApp || c == ChannelEmail || c == ChannelBoth
}

// Notification is the persisted record of an event worth surfacing to a
// user. It exists independently of whether any channel delivered it: a
// recipient with delivery disabled still accumulates rows and unread counts.
// Only the Read flag is ever mutated.
type Notification struct {
	ID          uuid.UUID      `json:"id"`
	RecipientID int64          `json:"recipient_id"`
	SenderID    *int64         `json:"sender_id,omitempty"`
	Type        Type           `json:"type"`
	Title       string         `json:"title"`
	Content     string         `json:"content"`
	Data        map[string]any `json:"data,omitempty"`
	Read        bool           `json:"read"`
	CreatedAt   time.Time      `json:"created_at"`
}

// Payload is what template builders produce and the orchestrator consumes:
// a Notification before identity and persistence fields are assigned.
type Payload struct {
	RecipientID int64          `json:"recipient_id"`
	SenderID    *int64         `json:"sender_id,omitempty"`
	Type        Type           `json:"type"`
	Title       string         `json:"title"`
	Content     string         `json:"content"`
	Data        map[string]any `json:"data,omitempty"`
}

// Validate checks the payload before persistence.
func (p Payload) Validate() error {
	if p.RecipientID <= 0 {
		return ErrInvalidRecipient
	}
	if !p.Type.Valid() {
		return ErrInvalidType
	}
	if p.Title == "" {
		return ErrEmptyTitle
	}
	return nil
}
