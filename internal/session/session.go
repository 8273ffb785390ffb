// Package session holds the process-wide shared notification state: one
// instance per authenticated session, owned by the composition root. It fans
// store state out to observers, bridges socket events and cross-session sync
// markers into refreshes, and synthesizes ephemeral local notifications.
package session

import (
	"context"
	"encoding/json"
	"log"
	"sync"
	"time"

	"campusnotify/internal/common"
	"campusnotify/internal/notify"
	"campusnotify/internal/store"
	"campusnotify/internal/tabsync"
	"campusnotify/internal/transport"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
)

// State is the snapshot handed to observers. Consumers treat it as read-only;
// all intent goes back through Session methods.
type State struct {
	Notifications []common.Notification
	UnreadCount   int
	Preferences   common.Preferences
	Stats         common.Stats
	Loading       bool
	Err           string
}

// Observer receives a state snapshot after every change, in subscription
// order.
type Observer interface {
	Name() string
	Update(State)
}

type observerFunc struct {
	name string
	fn   func(State)
}

func (o observerFunc) Name() string   { return o.name }
func (o observerFunc) Update(s State) { o.fn(s) }

// ObserverFunc adapts a plain function to an Observer.
func ObserverFunc(name string, fn func(State)) Observer {
	return observerFunc{name: name, fn: fn}
}

type socketSub struct {
	event string
	id    int
}

type Session struct {
	orc    *notify.Orchestrator
	socket *transport.Client
	marker *tabsync.Broadcaster

	ctx    context.Context
	cancel context.CancelFunc

	pageSize int

	mu    sync.RWMutex
	state State

	obsMu     sync.Mutex
	observers []Observer

	initMu  sync.Mutex
	initing bool

	refreshCh  chan struct{}
	storeSub   int
	socketSubs []socketSub

	openOnce sync.Once
}

func New(orc *notify.Orchestrator, socket *transport.Client, marker *tabsync.Broadcaster, pageSize int) *Session {
	if pageSize <= 0 {
		pageSize = 50
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Session{
		orc:      orc,
		socket:   socket,
		marker:   marker,
		ctx:      ctx,
		cancel:   cancel,
		pageSize: pageSize,
		state: State{
			Preferences: common.DefaultPreferences(),
			Loading:     true,
		},
		refreshCh: make(chan struct{}, 1),
	}
}

// Subscribe registers an observer; it is invoked synchronously on every state
// change, in subscription order.
func (s *Session) Subscribe(o Observer) {
	s.obsMu.Lock()
	defer s.obsMu.Unlock()
	s.observers = append(s.observers, o)
}

func (s *Session) Unsubscribe(name string) {
	s.obsMu.Lock()
	defer s.obsMu.Unlock()
	for i, o := range s.observers {
		if o.Name() == name {
			s.observers = append(s.observers[:i], s.observers[i+1:]...)
			return
		}
	}
}

// Open wires the external signal sources (store snapshots, socket events,
// sync marker) into the session, connects the socket and runs the initial
// load. Individual wiring failures degrade the session, they never abort it.
func (s *Session) Open() {
	s.openOnce.Do(func() {
		s.storeSub = s.orc.Store.Subscribe(s.applySnapshot)

		trigger := func(json.RawMessage) { s.RequestRefresh() }
		for _, event := range []string{transport.EventNew, transport.EventUpdated} {
			s.socketSubs = append(s.socketSubs, socketSub{event: event, id: s.socket.On(event, trigger)})
		}

		if err := s.marker.Watch(s.ctx, s.RequestRefresh); err != nil {
			log.Printf("session: sync marker watch unavailable: %v", err)
		}
		go s.refreshLoop()

		if err := s.socket.Connect(); err != nil {
			log.Printf("session: socket connect: %v", err)
		}

		s.Init()
	})
}

// Close tears the session down and stops late-arriving responses from being
// applied.
func (s *Session) Close() {
	s.cancel()
	for _, sub := range s.socketSubs {
		s.socket.Off(sub.event, sub.id)
	}
	if s.storeSub != 0 {
		s.orc.Store.Unsubscribe(s.storeSub)
	}
	s.socket.Disconnect()
}

// Init runs the four independent initial fetches concurrently. Each branch
// absorbs its own failure into a safe default so one bad endpoint never
// blocks the rest; loading resolves once all four settle. A call while one is
// already in flight is a no-op.
func (s *Session) Init() {
	s.initMu.Lock()
	if s.initing {
		s.initMu.Unlock()
		return
	}
	s.initing = true
	s.initMu.Unlock()
	defer func() {
		s.initMu.Lock()
		s.initing = false
		s.initMu.Unlock()
	}()

	ctx := s.ctx
	var (
		list   []common.Notification
		unread int
		prefs  = common.DefaultPreferences()
		stats  common.Stats
	)

	g := new(errgroup.Group)
	g.Go(func() error {
		if _, err := s.orc.Fetch(ctx, 1, s.pageSize); err != nil {
			log.Printf("session: initial list fetch: %v", err)
			return nil
		}
		list = s.orc.Notifications()
		return nil
	})
	g.Go(func() error {
		n, err := s.orc.UnreadCount(ctx)
		if err != nil {
			log.Printf("session: initial unread count: %v", err)
			return nil
		}
		unread = n
		return nil
	})
	g.Go(func() error {
		p, err := s.orc.FetchPreferences(ctx)
		if err != nil {
			log.Printf("session: initial preferences: %v", err)
			return nil
		}
		prefs = p
		return nil
	})
	g.Go(func() error {
		st, err := s.orc.Stats(ctx)
		if err != nil {
			log.Printf("session: initial stats: %v", err)
			return nil
		}
		stats = st
		return nil
	})
	_ = g.Wait()

	if ctx.Err() != nil {
		return
	}

	s.mu.Lock()
	s.state.Notifications = list
	s.state.UnreadCount = unread
	s.state.Preferences = prefs
	s.state.Stats = stats
	s.state.Loading = false
	s.state.Err = ""
	s.mu.Unlock()
	s.publish()
}

// RequestRefresh is the in-process refresh trigger (same-session components
// and the external bridges all funnel through it). Bursts coalesce.
func (s *Session) RequestRefresh() {
	select {
	case s.refreshCh <- struct{}{}:
	default:
	}
}

func (s *Session) refreshLoop() {
	for {
		select {
		case <-s.ctx.Done():
			return
		case <-s.refreshCh:
			s.refresh()
		}
	}
}

// refresh re-fetches the list and unread count only; preferences and stats
// are not part of the refresh cycle. Redundant refreshes are harmless, the
// list is replaced wholesale from the server.
func (s *Session) refresh() {
	ctx := s.ctx
	if ctx.Err() != nil {
		return
	}
	if _, err := s.orc.Fetch(ctx, 1, s.pageSize); err != nil {
		log.Printf("session: refresh list: %v", err)
	}
	count, err := s.orc.UnreadCount(ctx)
	if err != nil {
		log.Printf("session: refresh unread count: %v", err)
		return
	}
	if ctx.Err() != nil {
		return
	}
	s.mu.Lock()
	s.state.UnreadCount = count
	s.state.Err = ""
	s.mu.Unlock()
	s.publish()
}

// applySnapshot mirrors committed store state into the session.
func (s *Session) applySnapshot(snap store.Snapshot) {
	if s.ctx.Err() != nil {
		return
	}
	s.mu.Lock()
	s.state.Notifications = snap.Notifications
	s.state.Preferences = snap.Preferences
	s.mu.Unlock()
	s.publish()
}

func (s *Session) MarkAsRead(ctx context.Context, id string) error {
	wasUnread := s.isUnread(id)
	if err := s.orc.MarkRead(ctx, id); err != nil {
		s.fail(err)
		return err
	}
	if wasUnread {
		s.adjustUnread(-1)
	}
	s.socket.Emit(transport.IntentMarkRead, map[string]string{"id": id})
	s.marker.Touch()
	return nil
}

func (s *Session) MarkAsImportant(ctx context.Context, id string, important bool) error {
	if err := s.orc.MarkImportant(ctx, id, important); err != nil {
		s.fail(err)
		return err
	}
	s.socket.Emit(transport.IntentMarkImportant, map[string]interface{}{
		"id":          id,
		"isImportant": important,
	})
	s.marker.Touch()
	return nil
}

func (s *Session) MarkAllAsRead(ctx context.Context) error {
	if err := s.orc.MarkAllRead(ctx); err != nil {
		s.fail(err)
		return err
	}
	s.mu.Lock()
	s.state.UnreadCount = 0
	s.mu.Unlock()
	s.publish()
	s.marker.Touch()
	return nil
}

func (s *Session) DeleteNotification(ctx context.Context, id string) error {
	wasUnread := s.isUnread(id)
	if err := s.orc.Delete(ctx, id); err != nil {
		s.fail(err)
		return err
	}
	if wasUnread {
		s.adjustUnread(-1)
	}
	s.socket.Emit(transport.IntentDelete, map[string]string{"id": id})
	s.marker.Touch()
	return nil
}

// LocalNotification describes an ephemeral, client-only notification.
type LocalNotification struct {
	ID         string
	Message    string
	Type       common.NotificationType
	Category   common.Category
	Priority   common.Priority
	ActionURL  string
	ActionText string
	Data       common.Metadata
}

// ShowLocalNotification synthesizes a non-persisted notification for
// immediate feedback. Suppressed entirely during quiet hours; deduplicated
// against an identical id already present. Returns the id, or "" when
// suppressed. The record never reaches any endpoint.
func (s *Session) ShowLocalNotification(title string, opts LocalNotification) string {
	s.mu.RLock()
	prefs := s.state.Preferences
	s.mu.RUnlock()
	if notify.IsQuietNow(prefs.QuietHours) {
		return ""
	}

	id := opts.ID
	if id == "" {
		id = "local-" + uuid.NewString()
	}
	n := common.Notification{
		ID:         id,
		Type:       opts.Type,
		Title:      title,
		Message:    opts.Message,
		Category:   opts.Category,
		Priority:   opts.Priority,
		ActionURL:  opts.ActionURL,
		ActionText: opts.ActionText,
		CreatedAt:  time.Now(),
		Data:       opts.Data,
	}
	if n.Type == "" {
		n.Type = common.SystemType
	}
	if n.Category == "" {
		n.Category = common.CategorySystem
	}
	if n.Priority == "" {
		n.Priority = common.PriorityMedium
	}

	s.mu.Lock()
	for _, existing := range s.state.Notifications {
		if existing.ID == id {
			s.mu.Unlock()
			return id
		}
	}
	s.state.Notifications = append([]common.Notification{n}, s.state.Notifications...)
	s.state.UnreadCount++
	s.mu.Unlock()
	s.publish()
	return id
}

// State returns a copy of the current state.
func (s *Session) State() State {
	s.mu.RLock()
	defer s.mu.RUnlock()
	st := s.state
	st.Notifications = make([]common.Notification, len(s.state.Notifications))
	copy(st.Notifications, s.state.Notifications)
	return st
}

func (s *Session) publish() {
	st := s.State()
	s.obsMu.Lock()
	obs := make([]Observer, len(s.observers))
	copy(obs, s.observers)
	s.obsMu.Unlock()
	for _, o := range obs {
		o.Update(st)
	}
}

func (s *Session) isUnread(id string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, n := range s.state.Notifications {
		if n.ID == id {
			return !n.Read
		}
	}
	return false
}

func (s *Session) adjustUnread(delta int) {
	s.mu.Lock()
	s.state.UnreadCount += delta
	if s.state.UnreadCount < 0 {
		s.state.UnreadCount = 0
	}
	s.mu.Unlock()
	s.publish()
}

func (s *Session) fail(err error) {
	s.mu.Lock()
	s.state.Err = err.Error()
	s.mu.Unlock()
	s.publish()
}
