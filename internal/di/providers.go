package di

import (
	"time"

	"campusnotify/internal/config"
	"campusnotify/internal/notify"
	"campusnotify/internal/session"
	"campusnotify/internal/store"
	"campusnotify/internal/tabsync"
	"campusnotify/internal/transport"
)

func provideAPIClient(cfg *config.Config) *store.Client {
	return store.NewClient(cfg.API.BaseURL, func() string { return cfg.API.Token })
}

func provideSocket(cfg *config.Config) *transport.Client {
	delay := time.Duration(cfg.Socket.ReconnectDelay) * time.Second
	return transport.NewClient(cfg.Socket.URL, func() string { return cfg.API.Token }, delay)
}

func provideBroadcaster(cfg *config.Config) (*tabsync.Broadcaster, error) {
	return tabsync.New(cfg.Sync.MarkerPath)
}

func provideSession(cfg *config.Config, orc *notify.Orchestrator, socket *transport.Client, marker *tabsync.Broadcaster) *session.Session {
	return session.New(orc, socket, marker, cfg.API.PageSize)
}
