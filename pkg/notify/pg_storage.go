package notify

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PGStore is the Postgres-backed notification store.
type PGStore struct {
	pool *pgxpool.Pool
}

// NewPGStore creates a notification store over an established pool.
func NewPGStore(pool *pgxpool.Pool) (*PGStore, error) {
	if pool == nil {
		return nil, ErrStoreNil
	}
	return &PGStore{pool: pool}, nil
}

func (s *PGStore) Create(ctx context.Context, n *Notification) error {
	data, err := json.Marshal(n.Data)
	if err != nil {
		return fmt.Errorf("failed to marshal notification data: %w", err)
	}

	_, err = s.pool.Exec(ctx, `
		INSERT INTO notifications (id, recipient_id, sender_id, type, title, content, data, read, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		n.ID, n.RecipientID, n.SenderID, n.Type, n.Title, n.Content, data, n.Read, n.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert notification: %w", err)
	}
	return nil
}

func (s *PGStore) Get(ctx context.Context, id uuid.UUID) (*Notification, error) {
	row := s.pool.QueryRow(ctx, `
		SELECT id, recipient_id, sender_id, type, title, content, data, read, created_at
		FROM notifications
		WHERE id = $1`, id)

	n, err := scanNotification(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotificationNotFound
		}
		return nil, fmt.Errorf("failed to get notification: %w", err)
	}
	return n, nil
}

func (s *PGStore) ListByRecipient(ctx context.Context, recipientID int64) ([]Notification, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, recipient_id, sender_id, type, title, content, data, read, created_at
		FROM notifications
		WHERE recipient_id = $1
		ORDER BY created_at DESC`, recipientID)
	if err != nil {
		return nil, fmt.Errorf("failed to list notifications: %w", err)
	}
	defer rows.Close()

	var out []Notification
	for rows.Next() {
		n, err := scanNotification(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan notification: %w", err)
		}
		out = append(out, *n)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate notifications: %w", err)
	}
	return out, nil
}

func (s *PGStore) MarkRead(ctx context.Context, id uuid.UUID) error {
	tag, err := s.pool.Exec(ctx, `UPDATE notifications SET read = TRUE WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to mark notification read: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotificationNotFound
	}
	return nil
}

func (s *PGStore) MarkAllRead(ctx context.Context, recipientID int64) error {
	_, err := s.pool.Exec(ctx,
		`UPDATE notifications SET read = TRUE WHERE recipient_id = $1 AND read = FALSE`, recipientID)
	if err != nil {
		return fmt.Errorf("failed to mark notifications read: %w", err)
	}
	return nil
}

func (s *PGStore) CountUnread(ctx context.Context, recipientID int64) (int, error) {
	var count int
	err := s.pool.QueryRow(ctx,
		`SELECT COUNT(*) FROM notifications WHERE recipient_id = $1 AND read = FALSE`, recipientID,
	).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count unread notifications: %w", err)
	}
	return count, nil
}

func scanNotification(row pgx.Row) (*Notification, error) {
	var (
		n    Notification
		data []byte
	)
	if err := row.Scan(&n.ID, &n.RecipientID, &n.SenderID, &n.Type, &n.Title,
		&n.Content, &data, &n.Read, &n.CreatedAt); err != nil {
		return nil, err
	}
	if len(data) > 0 {
		if err := json.Unmarshal(data, &n.Data); err != nil {
			return nil, fmt.Errorf("failed to unmarshal notification data: %w", err)
		}
	}
	return &n, nil
}

var _ Store = (*PGStore)(nil)

// PGPreferenceStore is the Postgres-backed preference store.
type PGPreferenceStore struct {
	pool *pgxpool.Pool
}

// NewPGPreferenceStore creates a preference store over an established pool.
func NewPGPreferenceStore(pool *pgxpool.Pool) (*PGPreferenceStore, error) {
	if pool == nil {
		return nil, ErrStoreNil
	}
	return &PGPreferenceStore{pool: pool}, nil
}

func (s *PGPreferenceStore) ListByUser(ctx context.Context, userID int64) ([]Preference, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT user_id, type, channel, enabled
		FROM notification_preferences
		WHERE user_id = $1
		ORDER BY type`, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list preferences: %w", err)
	}
	defer rows.Close()

	var out []Preference
	for rows.Next() {
		var p Preference
		if err := rows.Scan(&p.UserID, &p.Type, &p.Channel, &p.Enabled); err != nil {
			return nil, fmt.Errorf("failed to scan preference: %w", err)
		}
		out = append(out, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate preferences: %w", err)
	}
	return out, nil
}

func (s *PGPreferenceStore) Get(ctx context.Context, userID int64, t Type) (*Preference, error) {
	var p Preference
	err := s.pool.QueryRow(ctx, `
		SELECT user_id, type, channel, enabled
		FROM notification_preferences
		WHERE user_id = $1 AND type = $2`, userID, t,
	).Scan(&p.UserID, &p.Type, &p.Channel, &p.Enabled)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get preference: %w", err)
	}
	return &p, nil
}

func (s *PGPreferenceStore) Upsert(ctx context.Context, p Preference) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO notification_preferences (user_id, type, channel, enabled)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (user_id, type)
		DO UPDATE SET channel = EXCLUDED.channel, enabled = EXCLUDED.enabled`,
		p.UserID, p.Type, p.Channel, p.Enabled,
	)
	if err != nil {
		return fmt.Errorf("failed to upsert preference: %w", err)
	}
	return nil
}

func (s *PGPreferenceStore) InsertMissing(ctx context.Context, prefs []Preference) (int, error) {
	inserted := 0
	for _, p := range prefs {
		tag, err := s.pool.Exec(ctx, `
			INSERT INTO notification_preferences (user_id, type, channel, enabled)
			VALUES ($1, $2, $3, $4)
			ON CONFLICT (user_id, type) DO NOTHING`,
			p.UserID, p.Type, p.Channel, p.Enabled,
		)
		if err != nil {
			return inserted, fmt.Errorf("failed to seed preference %s: %w", p.Type, err)
		}
		inserted += int(tag.RowsAffected())
	}
	return inserted, nil
}

var _ PreferenceStore = (*PGPreferenceStore)(nil)
