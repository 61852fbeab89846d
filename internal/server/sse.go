package server

import (
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"time"
)

const (
	// sseRingBufferSize is the number of recent events kept in memory for
	// Last-Event-ID reconnection support.
	sseRingBufferSize = 1000

	// sseKeepaliveInterval is how often keepalive comments are sent to
	// prevent connection timeouts.
	sseKeepaliveInterval = 15 * time.Second

	sseClientBuffer = 64
)

// sseEvent is a single event stored in the ring buffer and sent to SSE clients.
type sseEvent struct {
	ID        uint64 // monotonically increasing sequence number
	Topic     string
	Workspace string // "" for events not tied to a workspace
	Data      []byte // JSON-encoded payload
}

// sseHub fans out published events to connected SSE clients.
// It maintains an in-memory ring buffer for Last-Event-ID reconnection.
type sseHub struct {
	mu      sync.RWMutex
	clients map[*sseClient]struct{}
	nextID  atomic.Uint64

	ringMu  sync.RWMutex
	ring    [sseRingBufferSize]sseEvent
	ringPos int // next write position (wraps around)
	ringLen int // number of valid entries (up to sseRingBufferSize)
}

// sseClient is a single connected SSE consumer.
type sseClient struct {
	workspace string         // only events of this workspace, plus global ones
	topics    []string       // topic patterns to match (empty = all)
	ch        chan *sseEvent // buffered channel for event delivery
}

func newSSEHub() *sseHub {
	return &sseHub{clients: make(map[*sseClient]struct{})}
}

// broadcast records an event and sends it to every matching client.
func (h *sseHub) broadcast(topic, workspace string, payload []byte) {
	evt := &sseEvent{
		ID:        h.nextID.Add(1),
		Topic:     topic,
		Workspace: workspace,
		Data:      payload,
	}

	h.ringMu.Lock()
	h.ring[h.ringPos] = *evt
	h.ringPos = (h.ringPos + 1) % sseRingBufferSize
	if h.ringLen < sseRingBufferSize {
		h.ringLen++
	}
	h.ringMu.Unlock()

	h.mu.RLock()
	defer h.mu.RUnlock()
	for c := range h.clients {
		if !c.matches(evt) {
			continue
		}
		select {
		case c.ch <- evt:
		default:
			// Slow client; drop rather than block the publisher.
		}
	}
}

func (h *sseHub) subscribe(workspace string, topics []string) *sseClient {
	c := &sseClient{
		workspace: workspace,
		topics:    topics,
		ch:        make(chan *sseEvent, sseClientBuffer),
	}
	h.mu.Lock()
	h.clients[c] = struct{}{}
	h.mu.Unlock()
	return c
}

func (h *sseHub) unsubscribe(c *sseClient) {
	h.mu.Lock()
	delete(h.clients, c)
	h.mu.Unlock()
}

// clientCount reports connected clients.
func (h *sseHub) clientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// eventsSince returns buffered events with ID > lastID, oldest first.
func (h *sseHub) eventsSince(lastID uint64) []*sseEvent {
	h.ringMu.RLock()
	defer h.ringMu.RUnlock()

	var result []*sseEvent
	start := h.ringPos - h.ringLen
	if start < 0 {
		start += sseRingBufferSize
	}
	for i := range h.ringLen {
		evt := &h.ring[(start+i)%sseRingBufferSize]
		if evt.ID > lastID {
			result = append(result, evt)
		}
	}
	return result
}

func (c *sseClient) matches(evt *sseEvent) bool {
	if evt.Workspace != "" && c.workspace != "" && evt.Workspace != c.workspace {
		return false
	}
	if len(c.topics) == 0 {
		return true
	}
	for _, pattern := range c.topics {
		if matchTopicPattern(pattern, evt.Topic) {
			return true
		}
	}
	return false
}

// matchTopicPattern matches a dot-separated topic against a pattern.
// Supports "*" as a single-segment wildcard and ">" as a multi-segment
// suffix wildcard (NATS-style).
func matchTopicPattern(pattern, topic string) bool {
	if pattern == topic {
		return true
	}

	patParts := strings.Split(pattern, ".")
	topParts := strings.Split(topic, ".")

	for i, pp := range patParts {
		if pp == ">" {
			return i < len(topParts)
		}
		if i >= len(topParts) {
			return false
		}
		if pp != "*" && pp != topParts[i] {
			return false
		}
	}
	return len(patParts) == len(topParts)
}

// handleWorkspaceEvents handles GET /v1/workspaces/{ws}/events. It streams
// graph changes of the workspace plus profile-level events.
func (s *Server) handleWorkspaceEvents(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		writeError(w, http.StatusInternalServerError, "streaming not supported")
		return
	}
	ws := r.PathValue("ws")
	if _, ok := s.workspaces.Lookup(ws); !ok {
		writeErr(w, errWorkspaceNotOpen)
		return
	}

	var topics []string
	if q := r.URL.Query().Get("topics"); q != "" {
		for _, t := range strings.Split(q, ",") {
			if t = strings.TrimSpace(t); t != "" {
				topics = append(topics, t)
			}
		}
	}

	client := s.hub.subscribe(ws, topics)
	defer s.hub.unsubscribe(client)

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	if lastIDStr := r.Header.Get("Last-Event-ID"); lastIDStr != "" {
		if lastID, err := strconv.ParseUint(lastIDStr, 10, 64); err == nil {
			for _, evt := range s.hub.eventsSince(lastID) {
				if client.matches(evt) {
					writeSSEEvent(w, evt)
				}
			}
			flusher.Flush()
		}
	}

	ctx := r.Context()
	keepalive := time.NewTicker(sseKeepaliveInterval)
	defer keepalive.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case evt := <-client.ch:
			writeSSEEvent(w, evt)
			flusher.Flush()
		case <-keepalive.C:
			fmt.Fprintf(w, ":keepalive\n\n")
			flusher.Flush()
		}
	}
}

func writeSSEEvent(w http.ResponseWriter, evt *sseEvent) {
	fmt.Fprintf(w, "id:%d\n", evt.ID)
	fmt.Fprintf(w, "event:%s\n", evt.Topic)
	fmt.Fprintf(w, "data:%s\n\n", evt.Data)
}
