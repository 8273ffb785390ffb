package notify

import (
	"time"

	"campusnotify/internal/common"
	"campusnotify/internal/store"
)

// Orchestrator is a thin façade over the store: it re-exports every store
// operation unchanged (via embedding) and adds the read-only display helpers,
// so presentation code never touches transport details.
type Orchestrator struct {
	*store.Store
}

func NewOrchestrator(s *store.Store) *Orchestrator {
	return &Orchestrator{Store: s}
}

func (o *Orchestrator) IconFor(t common.NotificationType) string {
	return IconFor(t)
}

func (o *Orchestrator) ColorClassFor(p common.Priority) string {
	return ColorClassFor(p)
}

func (o *Orchestrator) RelativeTime(t time.Time) string {
	return RelativeTime(t)
}

func (o *Orchestrator) ShouldDeliver(n common.Notification, prefs common.Preferences) bool {
	return ShouldDeliver(n, prefs)
}

func (o *Orchestrator) IsQuietNow(q common.QuietHours) bool {
	return IsQuietNow(q)
}
