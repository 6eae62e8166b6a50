package httpapi

import (
	"net/http"
	"time"

	"leadboard-engine/internal/events"
)

// Idle proxies drop silent streams; a ping every interval keeps them open.
const ssePingInterval = 25 * time.Second

type EventsHandler struct {
	Hub *events.Hub
}

func (h EventsHandler) ServeSSE(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		WriteError(w, r, http.StatusInternalServerError, "stream_unsupported", "Streaming unsupported")
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	ch := h.Hub.Subscribe()
	defer h.Hub.Unsubscribe(ch)

	// Ping as a proper event envelope
	reqID := RequestIDFrom(r.Context())
	ping := func() {
		_ = events.WriteFrame(w, events.MakeEvent(reqID, events.TypePing, events.Version, nil))
		flusher.Flush()
	}
	ping()

	t := time.NewTicker(ssePingInterval)
	defer t.Stop()

	for {
		select {
		case <-r.Context().Done():
			return
		case <-t.C:
			ping()
		case msg, ok := <-ch:
			if !ok {
				return
			}
			if err := events.WriteFrame(w, msg); err != nil {
				return
			}
			flusher.Flush()
		}
	}
}
