package notify

import (
	"context"
	"fmt"
)

// Preference controls whether and via which channels notifications of one
// type are delivered to one user. Absence of a row suppresses delivery
// entirely; the notification row itself is still persisted.
type Preference struct {
	UserID  int64   `json:"user_id"`
	Type    Type    `json:"type"`
	Channel Channel `json:"channel"`
	Enabled bool    `json:"enabled"`
}

// DeliversInApp reports whether this preference routes to the realtime
// channel.
func (p Preference) DeliversInApp() bool {
	return p.Enabled && (p.Channel == ChannelInApp || p.Channel == ChannelBoth)
}

// DeliversEmail reports whether this preference routes to the email channel.
func (p Preference) DeliversEmail() bool {
	return p.Enabled && (p.Channel == ChannelEmail || p.Channel == ChannelBoth)
}

// UpdatePreferenceParams is the upsert request for one preference row.
type UpdatePreferenceParams struct {
	UserID  int64   `json:"user_id"`
	Type    Type    `json:"type"`
	Channel Channel `json:"channel"`
	Enabled bool    `json:"enabled"`
}

// Validate checks the upsert request.
func (p UpdatePreferenceParams) Validate() error {
	if p.UserID <= 0 {
		return ErrInvalidRecipient
	}
	if !p.Type.Valid() {
		return ErrInvalidType
	}
	if !p.Channel.Valid() {
		return ErrInvalidChannel
	}
	return nil
}

// Preferences is the preference resolver service over a PreferenceStore.
type Preferences struct {
	store PreferenceStore
}

// NewPreferences creates the preference resolver.
func NewPreferences(store PreferenceStore) (*Preferences, error) {
	if store == nil {
		return nil, ErrStoreNil
	}
	return &Preferences{store: store}, nil
}

// GetUserPreferences returns every preference row of the user.
func (s *Preferences) GetUserPreferences(ctx context.Context, userID int64) ([]Preference, error) {
	return s.store.ListByUser(ctx, userID)
}

// GetPreference returns the preference for (userID, t), or nil when the user
// never had one seeded.
func (s *Preferences) GetPreference(ctx context.Context, userID int64, t Type) (*Preference, error) {
	return s.store.Get(ctx, userID, t)
}

// UpdatePreference upserts one preference row, last-writer-wins.
func (s *Preferences) UpdatePreference(ctx context.Context, params UpdatePreferenceParams) error {
	if err := params.Validate(); err != nil {
		return err
	}
	return s.store.Upsert(ctx, Preference{
		UserID:  params.UserID,
		Type:    params.Type,
		Channel: params.Channel,
		Enabled: params.Enabled,
	})
}

// InitializeUserPreferences seeds the default preference (both channels,
// enabled) for every known type the user does not yet have a row for. The
// routine is idempotent: a second invocation inserts zero rows and never
// overwrites customized preferences.
func (s *Preferences) InitializeUserPreferences(ctx context.Context, userID int64) (int, error) {
	if userID <= 0 {
		return 0, ErrInvalidRecipient
	}

	types := KnownTypes()
	defaults := make([]Preference, 0, len(types))
	for _, t := range types {
		defaults = append(defaults, Preference{
			UserID:  userID,
			Type:    t,
			Channel: ChannelBoth,
			Enabled: true,
		})
	}

	inserted, err := s.store.InsertMissing(ctx, defaults)
	if err != nil {
		return 0, fmt.Errorf("failed to initialize preferences for user %d: %w", userID, err)
	}
	return inserted, nil
}
