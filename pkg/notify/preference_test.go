package notify_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/peoplehub/dispatch/pkg/notify"
)

func TestPreferences_InitializeUserPreferences(t *testing.T) {
	t.Parallel()

	t.Run("seeds one row per known type", func(t *testing.T) {
		t.Parallel()

		prefs, err := notify.NewPreferences(notify.NewMemoryPreferenceStore())
		require.NoError(t, err)
		ctx := context.Background()

		inserted, err := prefs.InitializeUserPreferences(ctx, 7)
		require.NoError(t, err)
		assert.Equal(t, len(notify.KnownTypes()), inserted)

		rows, err := prefs.GetUserPreferences(ctx, 7)
		require.NoError(t, err)
		require.Len(t, rows, len(notify.KnownTypes()))
		for _, row := range rows {
			assert.Equal(t, notify.ChannelBoth, row.Channel)
			assert.True(t, row.Enabled)
		}
	})

	t.Run("second invocation inserts zero rows", func(t *testing.T) {
		t.Parallel()

		prefs, err := notify.NewPreferences(notify.NewMemoryPreferenceStore())
		require.NoError(t, err)
		ctx := context.Background()

		_, err = prefs.InitializeUserPreferences(ctx, 7)
		require.NoError(t, err)

		inserted, err := prefs.InitializeUserPreferences(ctx, 7)
		require.NoError(t, err)
		assert.Zero(t, inserted)

		rows, err := prefs.GetUserPreferences(ctx, 7)
		require.NoError(t, err)
		assert.Len(t, rows, len(notify.KnownTypes()))
	})

	t.Run("never overwrites customized rows", func(t *testing.T) {
		t.Parallel()

		prefs, err := notify.NewPreferences(notify.NewMemoryPreferenceStore())
		require.NoError(t, err)
		ctx := context.Background()

		require.NoError(t, prefs.UpdatePreference(ctx, notify.UpdatePreferenceParams{
			UserID:  7,
			Type:    notify.TypePostLiked,
			Channel: notify.ChannelEmail,
			Enabled: false,
		}))

		_, err = prefs.InitializeUserPreferences(ctx, 7)
		require.NoError(t, err)

		pref, err := prefs.GetPreference(ctx, 7, notify.TypePostLiked)
		require.NoError(t, err)
		require.NotNil(t, pref)
		assert.Equal(t, notify.ChannelEmail, pref.Channel)
		assert.False(t, pref.Enabled)
	})

	t.Run("invalid user id", func(t *testing.T) {
		t.Parallel()

		prefs, err := notify.NewPreferences(notify.NewMemoryPreferenceStore())
		require.NoError(t, err)

		_, err = prefs.InitializeUserPreferences(context.Background(), 0)
		assert.ErrorIs(t, err, notify.ErrInvalidRecipient)
	})
}

func TestPreferences_UpdatePreference(t *testing.T) {
	t.Parallel()

	t.Run("upsert is last-writer-wins", func(t *testing.T) {
		t.Parallel()

		prefs, err := notify.NewPreferences(notify.NewMemoryPreferenceStore())
		require.NoError(t, err)
		ctx := context.Background()

		require.NoError(t, prefs.UpdatePreference(ctx, notify.UpdatePreferenceParams{
			UserID: 7, Type: notify.TypePostLiked, Channel: notify.ChannelEmail, Enabled: true,
		}))
		require.NoError(t, prefs.UpdatePreference(ctx, notify.UpdatePreferenceParams{
			UserID: 7, Type: notify.TypePostLiked, Channel: notify.ChannelInApp, Enabled: true,
		}))

		pref, err := prefs.GetPreference(ctx, 7, notify.TypePostLiked)
		require.NoError(t, err)
		require.NotNil(t, pref)
		assert.Equal(t, notify.ChannelInApp, pref.Channel)
	})

	t.Run("validates input", func(t *testing.T) {
		t.Parallel()

		prefs, err := notify.NewPreferences(notify.NewMemoryPreferenceStore())
		require.NoError(t, err)
		ctx := context.Background()

		err = prefs.UpdatePreference(ctx, notify.UpdatePreferenceParams{
			UserID: 7, Type: "bogus", Channel: notify.ChannelBoth, Enabled: true,
		})
		assert.ErrorIs(t, err, notify.ErrInvalidType)

		err = prefs.UpdatePreference(ctx, notify.UpdatePreferenceParams{
			UserID: 7, Type: notify.TypePostLiked, Channel: "carrier_pigeon", Enabled: true,
		})
		assert.ErrorIs(t, err, notify.ErrInvalidChannel)
	})

	t.Run("absent preference resolves to nil", func(t *testing.T) {
		t.Parallel()

		prefs, err := notify.NewPreferences(notify.NewMemoryPreferenceStore())
		require.NoError(t, err)

		pref, err := prefs.GetPreference(context.Background(), 99, notify.TypePostLiked)
		require.NoError(t, err)
		assert.Nil(t, pref)
	})
}

func TestPreference_ChannelRouting(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name    string
		channel notify.Channel
		enabled bool
		inApp   bool
		email   bool
	}{
		{"both enabled", notify.ChannelBoth, true, true, true},
		{"in_app enabled", notify.ChannelInApp, true, true, false},
		{"email enabled", notify.ChannelEmail, true, false, true},
		{"both disabled", notify.ChannelBoth, false, false, false},
		{"in_app disabled", notify.ChannelInApp, false, false, false},
		{"email disabled", notify.ChannelEmail, false, false, false},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			p := notify.Preference{Channel: tc.channel, Enabled: tc.enabled}
			assert.Equal(t, tc.inApp, p.DeliversInApp())
			assert.Equal(t, tc.email, p.DeliversEmail())
		})
	}
}
