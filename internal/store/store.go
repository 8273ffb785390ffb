package store

import (
	"context"
	"sync"
	"time"

	"campusnotify/internal/common"
)

// Snapshot is the read-only view handed to subscribers after every committed
// mutation. Consumers must route all intent back through Store methods.
type Snapshot struct {
	Notifications []common.Notification
	Preferences   common.Preferences
}

// Listener receives a snapshot after each successful mutation, synchronously
// and in subscription order.
type Listener func(Snapshot)

type subscription struct {
	id int
	fn Listener
}

// Store owns the canonical client-side notification list and preferences.
// Mutations are server-confirmed: the REST call happens first and the local
// patch is applied only on success, so local state never diverges permanently
// from the server on failure. No retries happen at this layer.
type Store struct {
	api *Client

	mu            sync.RWMutex
	notifications []common.Notification
	preferences   common.Preferences

	subMu   sync.Mutex
	subs    []subscription
	nextSub int
}

func New(api *Client) *Store {
	return &Store{
		api:         api,
		preferences: common.DefaultPreferences(),
	}
}

// Subscribe registers a listener and returns its id for Unsubscribe.
func (s *Store) Subscribe(fn Listener) int {
	s.subMu.Lock()
	defer s.subMu.Unlock()
	s.nextSub++
	s.subs = append(s.subs, subscription{id: s.nextSub, fn: fn})
	return s.nextSub
}

func (s *Store) Unsubscribe(id int) {
	s.subMu.Lock()
	defer s.subMu.Unlock()
	for i, sub := range s.subs {
		if sub.id == id {
			s.subs = append(s.subs[:i], s.subs[i+1:]...)
			return
		}
	}
}

func (s *Store) publish() {
	snap := s.snapshot()
	s.subMu.Lock()
	subs := make([]subscription, len(s.subs))
	copy(subs, s.subs)
	s.subMu.Unlock()
	for _, sub := range subs {
		sub.fn(snap)
	}
}

func (s *Store) snapshot() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	list := make([]common.Notification, len(s.notifications))
	copy(list, s.notifications)
	return Snapshot{Notifications: list, Preferences: s.preferences}
}

// Notifications returns a copy of the current list.
func (s *Store) Notifications() []common.Notification {
	return s.snapshot().Notifications
}

func (s *Store) Prefs() common.Preferences {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.preferences
}

// Fetch loads a page of the unfiltered list and replaces the in-memory
// collection. This is the only read that mutates the main collection.
func (s *Store) Fetch(ctx context.Context, page, limit int) (ListResult, error) {
	res, err := s.api.List(ctx, page, limit)
	if err != nil {
		return ListResult{}, err
	}
	s.mu.Lock()
	s.notifications = dedupe(res.Notifications)
	s.mu.Unlock()
	s.publish()
	return res, nil
}

// dedupe keeps the first occurrence of every id. Duplicate arrivals (socket
// push plus REST refresh) must never appear twice.
func dedupe(list []common.Notification) []common.Notification {
	seen := make(map[string]struct{}, len(list))
	out := make([]common.Notification, 0, len(list))
	for _, n := range list {
		if _, ok := seen[n.ID]; ok {
			continue
		}
		seen[n.ID] = struct{}{}
		out = append(out, n)
	}
	return out
}

// Filtered, Search, Stats, Important, ByCategory and UnreadCount fetch and
// return without touching the main collection.

func (s *Store) Filtered(ctx context.Context, opts FilterOptions) ([]common.Notification, error) {
	return s.api.Filtered(ctx, opts)
}

func (s *Store) Search(ctx context.Context, query string) ([]common.Notification, error) {
	return s.api.Search(ctx, query)
}

func (s *Store) Stats(ctx context.Context) (common.Stats, error) {
	return s.api.Stats(ctx)
}

func (s *Store) Important(ctx context.Context) ([]common.Notification, error) {
	return s.api.Important(ctx)
}

func (s *Store) ByCategory(ctx context.Context, category common.Category) ([]common.Notification, error) {
	return s.api.ByCategory(ctx, category)
}

func (s *Store) UnreadCount(ctx context.Context) (int, error) {
	return s.api.UnreadCount(ctx)
}

func (s *Store) MarkRead(ctx context.Context, id string) error {
	if err := s.api.MarkRead(ctx, id); err != nil {
		return err
	}
	now := time.Now()
	s.mu.Lock()
	for i := range s.notifications {
		if s.notifications[i].ID == id && !s.notifications[i].Read {
			s.notifications[i].Read = true
			s.notifications[i].ReadAt = &now
		}
	}
	s.mu.Unlock()
	s.publish()
	return nil
}

func (s *Store) MarkImportant(ctx context.Context, id string, important bool) error {
	if err := s.api.MarkImportant(ctx, id, important); err != nil {
		return err
	}
	s.mu.Lock()
	for i := range s.notifications {
		if s.notifications[i].ID == id {
			s.notifications[i].IsImportant = important
		}
	}
	s.mu.Unlock()
	s.publish()
	return nil
}

func (s *Store) MarkAllRead(ctx context.Context) error {
	if err := s.api.MarkAllRead(ctx); err != nil {
		return err
	}
	now := time.Now()
	s.mu.Lock()
	for i := range s.notifications {
		if !s.notifications[i].Read {
			s.notifications[i].Read = true
			s.notifications[i].ReadAt = &now
		}
	}
	s.mu.Unlock()
	s.publish()
	return nil
}

func (s *Store) Delete(ctx context.Context, id string) error {
	if err := s.api.Delete(ctx, id); err != nil {
		return err
	}
	s.mu.Lock()
	for i := range s.notifications {
		if s.notifications[i].ID == id {
			s.notifications = append(s.notifications[:i], s.notifications[i+1:]...)
			break
		}
	}
	s.mu.Unlock()
	s.publish()
	return nil
}

func (s *Store) FetchPreferences(ctx context.Context) (common.Preferences, error) {
	prefs, err := s.api.Preferences(ctx)
	if err != nil {
		return common.Preferences{}, err
	}
	s.setPreferences(prefs)
	return prefs, nil
}

func (s *Store) UpdatePreferences(ctx context.Context, prefs common.Preferences) error {
	updated, err := s.api.UpdatePreferences(ctx, prefs)
	if err != nil {
		return err
	}
	s.setPreferences(updated)
	return nil
}

func (s *Store) UpdateTypePreference(ctx context.Context, typ common.NotificationType, channel string, enabled bool) error {
	updated, err := s.api.UpdateTypePreference(ctx, typ, channel, enabled)
	if err != nil {
		return err
	}
	s.setPreferences(updated)
	return nil
}

func (s *Store) UpdateFrequency(ctx context.Context, freq common.Frequency) error {
	updated, err := s.api.UpdateFrequency(ctx, freq)
	if err != nil {
		return err
	}
	s.setPreferences(updated)
	return nil
}

func (s *Store) UpdateQuietHours(ctx context.Context, q common.QuietHours) error {
	updated, err := s.api.UpdateQuietHours(ctx, q)
	if err != nil {
		return err
	}
	s.setPreferences(updated)
	return nil
}

func (s *Store) ResetPreferences(ctx context.Context) error {
	updated, err := s.api.ResetPreferences(ctx)
	if err != nil {
		return err
	}
	s.setPreferences(updated)
	return nil
}

func (s *Store) setPreferences(prefs common.Preferences) {
	s.mu.Lock()
	s.preferences = prefs
	s.mu.Unlock()
	s.publish()
}
