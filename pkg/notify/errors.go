package notify

import "errors"

var (
	// ErrNotificationNotFound is returned for reads and updates against
	// unknown notification ids.
	ErrNotificationNotFound = errors.New("notification not found")

	// ErrInvalidRecipient is returned when a payload carries no recipient.
	ErrInvalidRecipient = errors.New("invalid notification recipient")

	// ErrInvalidType is returned for unknown notification types.
	ErrInvalidType = errors.New("invalid notification type")

	// ErrInvalidChannel is returned for unknown channel values.
	ErrInvalidChannel = errors.New("invalid notification channel")

	// ErrEmptyTitle is returned when a payload carries no title.
	ErrEmptyTitle = errors.New("notification title cannot be empty")

	// ErrStoreNil is returned when a service is constructed without a store.
	ErrStoreNil = errors.New("store cannot be nil")
)
