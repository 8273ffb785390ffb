//go:build wireinject
// +build wireinject

package di

import (
	"campusnotify/internal/config"
	"campusnotify/internal/notify"
	"campusnotify/internal/session"
	"campusnotify/internal/store"

	"github.com/google/wire"
)

// InitializeSession builds the single notification session for this process:
// REST client, store, orchestrator, socket, sync marker, session.
func InitializeSession(cfg *config.Config) (*session.Session, error) {
	wire.Build(
		provideAPIClient,
		store.New,
		notify.NewOrchestrator,
		provideSocket,
		provideBroadcaster,
		provideSession,
	)
	return nil, nil
}
