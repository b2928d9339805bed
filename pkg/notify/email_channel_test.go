package notify_test

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/peoplehub/dispatch/pkg/email"
	"github.com/peoplehub/dispatch/pkg/notify"
)

type capturingMailer struct {
	mu   sync.Mutex
	sent []email.SendEmailParams
}

func (m *capturingMailer) SendEmail(_ context.Context, params email.SendEmailParams) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sent = append(m.sent, params)
	return nil
}

type staticResolver map[int64]string

func (r staticResolver) EmailAddress(_ context.Context, userID int64) (string, error) {
	return r[userID], nil
}

func TestEmailChannel_Send(t *testing.T) {
	t.Parallel()

	t.Run("renders subject from title and delivers", func(t *testing.T) {
		t.Parallel()

		mailer := &capturingMailer{}
		channel, err := notify.NewEmailChannel(mailer, staticResolver{1: "jane@example.com"})
		require.NoError(t, err)

		err = channel.Send(context.Background(), notify.Notification{
			RecipientID: 1,
			Type:        notify.TypePostLiked,
			Title:       "Your post was liked",
			Content:     "Jane liked your post",
			Data: map[string]any{
				"post_excerpt": "Great quarter everyone",
				"post_author":  "John Doe",
			},
		})
		require.NoError(t, err)

		require.Len(t, mailer.sent, 1)
		sent := mailer.sent[0]
		assert.Equal(t, "jane@example.com", sent.SendTo)
		assert.Equal(t, "Your post was liked", sent.Subject)
		assert.Equal(t, "notification:post_liked", sent.Tag)
		assert.Contains(t, sent.BodyHTML, "Jane liked your post")
		assert.Contains(t, sent.BodyHTML, "Great quarter everyone")
		assert.Contains(t, sent.BodyHTML, "John Doe")
	})

	t.Run("no email on file is a silent no-op", func(t *testing.T) {
		t.Parallel()

		mailer := &capturingMailer{}
		channel, err := notify.NewEmailChannel(mailer, staticResolver{})
		require.NoError(t, err)

		err = channel.Send(context.Background(), notify.Notification{
			RecipientID: 42,
			Type:        notify.TypePostLiked,
			Title:       "Your post was liked",
		})
		require.NoError(t, err)
		assert.Empty(t, mailer.sent)
	})

	t.Run("poll emails list the options", func(t *testing.T) {
		t.Parallel()

		mailer := &capturingMailer{}
		channel, err := notify.NewEmailChannel(mailer, staticResolver{1: "jane@example.com"})
		require.NoError(t, err)

		err = channel.Send(context.Background(), notify.Notification{
			RecipientID: 1,
			Type:        notify.TypePollCreated,
			Title:       "Team lunch",
			Content:     "A new poll was created",
			Data:        map[string]any{"options": []any{"Pizza", "Sushi"}},
		})
		require.NoError(t, err)

		require.Len(t, mailer.sent, 1)
		assert.Contains(t, mailer.sent[0].Subject, "Team lunch")
		assert.Contains(t, mailer.sent[0].BodyHTML, "New Poll: Team lunch")
		assert.Contains(t, mailer.sent[0].BodyHTML, "Pizza")
		assert.Contains(t, mailer.sent[0].BodyHTML, "Sushi")
	})

	t.Run("event emails include detail rows when present", func(t *testing.T) {
		t.Parallel()

		mailer := &capturingMailer{}
		channel, err := notify.NewEmailChannel(mailer, staticResolver{1: "jane@example.com"})
		require.NoError(t, err)

		err = channel.Send(context.Background(), notify.Notification{
			RecipientID: 1,
			Type:        notify.TypeEventInvitation,
			Title:       "You are invited",
			Content:     "All-hands meeting",
			Data: map[string]any{
				"date":     "2026-09-01 10:00",
				"location": "HQ, floor 3",
			},
		})
		require.NoError(t, err)

		require.Len(t, mailer.sent, 1)
		body := mailer.sent[0].BodyHTML
		assert.Contains(t, body, "Date")
		assert.Contains(t, body, "2026-09-01 10:00")
		assert.Contains(t, body, "Location")
		assert.Contains(t, body, "HQ, floor 3")
		// The description row is omitted when absent from the data.
		assert.NotContains(t, body, "Description")
	})

	t.Run("html in user content is escaped", func(t *testing.T) {
		t.Parallel()

		mailer := &capturingMailer{}
		channel, err := notify.NewEmailChannel(mailer, staticResolver{1: "jane@example.com"})
		require.NoError(t, err)

		err = channel.Send(context.Background(), notify.Notification{
			RecipientID: 1,
			Type:        notify.TypeCommentReplied,
			Title:       "New reply",
			Content:     "Someone replied",
			Data:        map[string]any{"comment_excerpt": "<script>alert(1)</script>"},
		})
		require.NoError(t, err)

		require.Len(t, mailer.sent, 1)
		assert.NotContains(t, mailer.sent[0].BodyHTML, "<script>")
	})
}
