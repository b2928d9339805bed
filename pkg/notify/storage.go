package notify

import (
	"context"

	"github.com/google/uuid"
)

// Store persists notifications. Implementations must keep ListByRecipient
// ordered newest first.
type Store interface {
	// Create persists a new notification row.
	Create(ctx context.Context, n *Notification) error

	// Get returns a notification by id, or ErrNotificationNotFound.
	Get(ctx context.Context, id uuid.UUID) (*Notification, error)

	// ListByRecipient returns the recipient's notifications, newest first.
	ListByRecipient(ctx context.Context, recipientID int64) ([]Notification, error)

	// MarkRead flips the read flag of one notification, or returns
	// ErrNotificationNotFound.
	MarkRead(ctx context.Context, id uuid.UUID) error

	// MarkAllRead flips the read flag of every unread notification of the
	// recipient.
	MarkAllRead(ctx context.Context, recipientID int64) error

	// CountUnread returns the number of unread notifications of the recipient.
	CountUnread(ctx context.Context, recipientID int64) (int, error)
}

// PreferenceStore persists per-(user, type) delivery preferences. The pair
// is the natural key; upserts are last-writer-wins.
type PreferenceStore interface {
	// ListByUser returns every preference row of the user.
	ListByUser(ctx context.Context, userID int64) ([]Preference, error)

	// Get returns the preference for (userID, t), or nil when no row exists.
	// Absence is meaningful: dispatch treats it as delivery disabled.
	Get(ctx context.Context, userID int64, t Type) (*Preference, error)

	// Upsert atomically inserts or replaces the row keyed by (UserID, Type).
	Upsert(ctx context.Context, p Preference) error

	// InsertMissing bulk-inserts the given rows, skipping pairs that already
	// have one. Returns the number of rows actually inserted.
	InsertMissing(ctx context.Context, prefs []Preference) (int, error)
}
