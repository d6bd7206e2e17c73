package events

import (
	"encoding/json"
	"fmt"
	"net/http"
	"sync"

	"github.com/rs/zerolog"

	"github.com/lawran/lawran-downloader/internal/model"
)

// Per-client buffer. A client that falls this far behind starts losing
// events rather than blocking publishers.
const (
	clientBufferSize = 64
)

// envelope is one named event queued for delivery.
type envelope struct {
	name string
	data []byte
}

// Hub fans job events out to every connected UI client over server-sent
// events. It implements Sink; publishing never blocks on a slow client.
type Hub struct {
	log zerolog.Logger

	mu      sync.RWMutex
	clients map[chan envelope]struct{}
}

// NewHub creates a hub with no clients.
func NewHub(log zerolog.Logger) *Hub {
	return &Hub{
		log:     log,
		clients: make(map[chan envelope]struct{}),
	}
}

// ClientCount returns the number of connected clients.
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// publish marshals the payload and queues it for every client. Events for a
// saturated client are dropped; progress is periodic and self-corrects.
func (h *Hub) publish(name string, payload any) {
	data, err := json.Marshal(payload)
	if err != nil {
		h.log.Error().Err(err).Str("event", name).Msg("failed to marshal event")
		return
	}

	h.mu.RLock()
	defer h.mu.RUnlock()
	for ch := range h.clients {
		select {
		case ch <- envelope{name: name, data: data}:
		default:
			h.log.Debug().Str("event", name).Msg("dropping event for slow client")
		}
	}
}

// Progress implements Sink.
func (h *Hub) Progress(ev model.ProgressEvent) {
	h.publish(EventProgress, ev)
}

// Terminal implements Sink.
func (h *Hub) Terminal(line string) {
	h.publish(EventTerminal, TerminalPayload{Line: line})
}

// Complete implements Sink.
func (h *Hub) Complete(filename string) {
	h.publish(EventComplete, CompletePayload{Filename: filename})
}

// Error implements Sink.
func (h *Hub) Error(message, filename string) {
	h.publish(EventError, ErrorPayload{Error: message, Filename: filename})
}

// PlaylistStatus implements Sink.
func (h *Hub) PlaylistStatus(message string, current, total int) {
	h.publish(EventPlaylistStatus, PlaylistStatusPayload{
		Message: message,
		Current: current,
		Total:   total,
	})
}

func (h *Hub) subscribe() chan envelope {
	ch := make(chan envelope, clientBufferSize)
	h.mu.Lock()
	h.clients[ch] = struct{}{}
	h.mu.Unlock()
	return ch
}

func (h *Hub) unsubscribe(ch chan envelope) {
	h.mu.Lock()
	delete(h.clients, ch)
	h.mu.Unlock()
}

// ServeHTTP streams events to one client until it disconnects.
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming unsupported", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	ch := h.subscribe()
	defer h.unsubscribe(ch)
	h.log.Debug().Msg("event client connected")

	for {
		select {
		case <-r.Context().Done():
			h.log.Debug().Msg("event client disconnected")
			return
		case env := <-ch:
			fmt.Fprintf(w, "event: %s\ndata: %s\n\n", env.name, env.data)
			flusher.Flush()
		}
	}
}
