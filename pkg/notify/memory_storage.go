package notify

import (
	"context"
	"sort"
	"sync"

	"github.com/google/uuid"
)

// MemoryStore is an in-memory Store for tests and local development.
type MemoryStore struct {
	mu   sync.RWMutex
	rows map[uuid.UUID]*Notification
}

// NewMemoryStore creates an empty in-memory notification store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{rows: make(map[uuid.UUID]*Notification)}
}

func (s *MemoryStore) Create(_ context.Context, n *Notification) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	cp := *n
	s.rows[n.ID] = &cp
	return nil
}

func (s *MemoryStore) Get(_ context.Context, id uuid.UUID) (*Notification, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	n, ok := s.rows[id]
	if !ok {
		return nil, ErrNotificationNotFound
	}
	cp := *n
	return &cp, nil
}

func (s *MemoryStore) ListByRecipient(_ context.Context, recipientID int64) ([]Notification, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []Notification
	for _, n := range s.rows {
		if n.RecipientID == recipientID {
			out = append(out, *n)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return out, nil
}

func (s *MemoryStore) MarkRead(_ context.Context, id uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	n, ok := s.rows[id]
	if !ok {
		return ErrNotificationNotFound
	}
	n.Read = true
	return nil
}

func (s *MemoryStore) MarkAllRead(_ context.Context, recipientID int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, n := range s.rows {
		if n.RecipientID == recipientID {
			n.Read = true
		}
	}
	return nil
}

func (s *MemoryStore) CountUnread(_ context.Context, recipientID int64) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	count := 0
	for _, n := range s.rows {
		if n.RecipientID == recipientID && !n.Read {
			count++
		}
	}
	return count, nil
}

var _ Store = (*MemoryStore)(nil)

type prefKey struct {
	userID int64
	typ    Type
}

// MemoryPreferenceStore is an in-memory PreferenceStore for tests and local
// development.
type MemoryPreferenceStore struct {
	mu   sync.RWMutex
	rows map[prefKey]Preference
}

// NewMemoryPreferenceStore creates an empty in-memory preference store.
func NewMemoryPreferenceStore() *MemoryPreferenceStore {
	return &MemoryPreferenceStore{rows: make(map[prefKey]Preference)}
}

func (s *MemoryPreferenceStore) ListByUser(_ context.Context, userID int64) ([]Preference, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []Preference
	for _, p := range s.rows {
		if p.UserID == userID {
			out = append(out, p)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Type < out[j].Type })
	return out, nil
}

func (s *MemoryPreferenceStore) Get(_ context.Context, userID int64, t Type) (*Preference, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	p, ok := s.rows[prefKey{userID, t}]
	if !ok {
		return nil, nil
	}
	return &p, nil
}

func (s *MemoryPreferenceStore) Upsert(_ context.Context, p Preference) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.rows[prefKey{p.UserID, p.Type}] = p
	return nil
}

func (s *MemoryPreferenceStore) InsertMissing(_ context.Context, prefs []Preference) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	inserted := 0
	for _, p := range prefs {
		key := prefKey{p.UserID, p.Type}
		if _, exists := s.rows[key]; exists {
			continue
		}
		s.rows[key] = p
		inserted++
	}
	return inserted, nil
}

var _ PreferenceStore = (*MemoryPreferenceStore)(nil)
