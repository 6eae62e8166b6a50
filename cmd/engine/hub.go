package main

import (
	"leadboard-engine/internal/events"
	"leadboard-engine/internal/httpapi"
	"leadboard-engine/internal/poll"
	"leadboard-engine/internal/repo"
)

// wireEvents forwards lead changes and failed syncs to SSE subscribers.
func wireEvents(r *repo.Repository, s *poll.Syncer, hub *events.Hub) {
	r.OnChange(httpapi.PublishChanges(hub))
	s.OnFailure(func(trigger string, err error) {
		hub.Publish(events.MakeEvent("", events.TypeSyncError, events.Version, map[string]string{
			"trigger": trigger,
			"error":   err.Error(),
		}))
	})
}
