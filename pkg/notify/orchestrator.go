package notify

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
)

// Orchestrator persists notifications and fans them out to delivery
// channels. Persistence and delivery are decoupled: the row is always
// written first, then dispatch consults the recipient's preference and
// invokes zero, one, or both channel adapters best-effort.
type Orchestrator struct {
	store       Store
	preferences *Preferences
	realtime    ChannelSender
	email       ChannelSender
	logger      *slog.Logger
}

// OrchestratorOption is a functional option for NewOrchestrator.
type OrchestratorOption func(*Orchestrator)

// WithRealtimeChannel sets the realtime delivery adapter.
func WithRealtimeChannel(sender ChannelSender) OrchestratorOption {
	return func(o *Orchestrator) { o.realtime = sender }
}

// WithEmailChannel sets the email delivery adapter.
func WithEmailChannel(sender ChannelSender) OrchestratorOption {
	return func(o *Orchestrator) { o.email = sender }
}

// WithLogger sets the orchestrator's logger.
func WithLogger(logger *slog.Logger) OrchestratorOption {
	return func(o *Orchestrator) {
		if logger != nil {
			o.logger = logger
		}
	}
}

// NewOrchestrator creates the notification orchestrator. Channels are
// optional; a missing channel behaves like a disabled one.
func NewOrchestrator(store Store, preferences *Preferences, opts ...OrchestratorOption) (*Orchestrator, error) {
	if store == nil {
		return nil, ErrStoreNil
	}
	if preferences == nil {
		return nil, ErrStoreNil
	}

	o := &Orchestrator{
		store:       store,
		preferences: preferences,
		logger:      slog.Default(),
	}
	for _, opt := range opts {
		opt(o)
	}
	return o, nil
}

// Create persists a notification and then dispatches it. Persistence errors
// fail the call; delivery errors never do. A recipient whose preference is
// absent or disabled still gets the stored row and an incremented unread
// count, just no channel delivery.
func (o *Orchestrator) Create(ctx context.Context, payload Payload) (*Notification, error) {
	if err := payload.Validate(); err != nil {
		return nil, err
	}

	n := &Notification{
		ID:          uuid.New(),
		RecipientID: payload.RecipientID,
		SenderID:    payload.SenderID,
		Type:        payload.Type,
		Title:       payload.Title,
		Content:     payload.Content,
		Data:        payload.Data,
		Read:        false,
		CreatedAt:   time.Now(),
	}

	if err := o.store.Create(ctx, n); err != nil {
		return nil, fmt.Errorf("failed to persist notification: %w", err)
	}

	o.dispatch(ctx, *n)

	return n, nil
}

// dispatch resolves the recipient's preference and invokes the applicable
// channel adapters. Adapter failures are logged and isolated from each
// other: a broken email transport must not stop the realtime push.
func (o *Orchestrator) dispatch(ctx context.Context, n Notification) {
	pref, err := o.preferences.GetPreference(ctx, n.RecipientID, n.Type)
	if err != nil {
		o.logger.Error("failed to resolve notification preference",
			slog.Int64("user_id", n.RecipientID),
			slog.String("notification_type", string(n.Type)),
			slog.String("error", err.Error()))
		return
	}

	// An unseeded preference suppresses delivery. Provisioning is expected
	// to seed a row per known type for every user.
	if pref == nil || !pref.Enabled {
		return
	}

	if pref.DeliversInApp() {
		o.deliver(ctx, o.realtime, "realtime", n)
	}
	if pref.DeliversEmail() {
		o.deliver(ctx, o.email, "email", n)
	}
}

func (o *Orchestrator) deliver(ctx context.Context, sender ChannelSender, channel string, n Notification) {
	if sender == nil {
		return
	}
	if err := sender.Send(ctx, n); err != nil {
		o.logger.Error("notification delivery failed",
			slog.String("channel", channel),
			slog.String("notification_id", n.ID.String()),
			slog.String("notification_type", string(n.Type)),
			slog.Int64("user_id", n.RecipientID),
			slog.String("error", err.Error()))
	}
}

// MarkAsRead flips the read flag of one notification.
func (o *Orchestrator) MarkAsRead(ctx context.Context, id uuid.UUID) error {
	return o.store.MarkRead(ctx, id)
}

// MarkAllAsRead flips the read flag of every unread notification of the user.
func (o *Orchestrator) MarkAllAsRead(ctx context.Context, userID int64) error {
	return o.store.MarkAllRead(ctx, userID)
}

// UserNotifications returns the user's notifications, newest first.
func (o *Orchestrator) UserNotifications(ctx context.Context, userID int64) ([]Notification, error) {
	return o.store.ListByRecipient(ctx, userID)
}

// UnreadCount returns the number of unread notifications of the user.
func (o *Orchestrator) UnreadCount(ctx context.Context, userID int64) (int, error) {
	return o.store.CountUnread(ctx, userID)
}
