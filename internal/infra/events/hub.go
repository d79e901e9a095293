package events

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

type EventType string

const (
	EventJobUpdate EventType = "job_update"
	EventSceneStep EventType = "scene_step"
	EventHeartbeat EventType = "heartbeat"
)

// Event is the tagged payload broadcast to UI consumers.
type Event struct {
	Type     EventType `json:"type"`
	JobID    int64     `json:"job_id,omitempty"`
	Status   string    `json:"status,omitempty"`
	Progress int       `json:"progress,omitempty"`
	// Scene carries sub-progress detail for scene_step events.
	Scene   string    `json:"scene,omitempty"`
	Message string    `json:"message,omitempty"`
	At      time.Time `json:"at"`
}

// Publisher mirrors events to an external channel (redis pub/sub) so
// consumers outside the process can attach.
type Publisher interface {
	Publish(ctx context.Context, channel string, payload []byte) error
}

// Hub is a thread-safe fanout of live job events. Slow subscribers are
// skipped rather than blocking the pipeline.
type Hub struct {
	mu     sync.RWMutex
	subs   map[int64]chan Event
	nextID int64

	mirror  Publisher
	channel string
	log     *zerolog.Logger
}

func NewHub(mirror Publisher, channel string, logger *zerolog.Logger) *Hub {
	hubLog := logger.With().Str("component", "EventHub").Logger()
	if channel == "" {
		channel = "content_factory:events"
	}
	return &Hub{
		subs:    make(map[int64]chan Event),
		mirror:  mirror,
		channel: channel,
		log:     &hubLog,
	}
}

// Subscribe registers a consumer. The returned cancel func must be called
// to release the subscription.
func (h *Hub) Subscribe(buffer int) (<-chan Event, func()) {
	if buffer <= 0 {
		buffer = 16
	}
	ch := make(chan Event, buffer)
	h.mu.Lock()
	id := h.nextID
	h.nextID++
	h.subs[id] = ch
	h.mu.Unlock()

	return ch, func() {
		h.mu.Lock()
		if c, ok := h.subs[id]; ok {
			delete(h.subs, id)
			close(c)
		}
		h.mu.Unlock()
	}
}

// Publish fans the event out to all subscribers and mirrors it.
func (h *Hub) Publish(ctx context.Context, ev Event) {
	if ev.At.IsZero() {
		ev.At = time.Now()
	}
	h.mu.RLock()
	for _, ch := range h.subs {
		select {
		case ch <- ev:
		default:
			// drop for slow consumers
		}
	}
	h.mu.RUnlock()

	if h.mirror != nil {
		b, err := json.Marshal(ev)
		if err == nil {
			if err := h.mirror.Publish(ctx, h.channel, b); err != nil {
				h.log.Debug().Err(err).Msg("event mirror publish failed")
			}
		}
	}
}

// JobUpdate is a convenience wrapper for the common case.
func (h *Hub) JobUpdate(ctx context.Context, jobID int64, status string, progress int) {
	h.Publish(ctx, Event{Type: EventJobUpdate, JobID: jobID, Status: status, Progress: progress})
}

// RunHeartbeat emits a heartbeat event every interval until ctx ends.
func (h *Hub) RunHeartbeat(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = 30 * time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			h.Publish(ctx, Event{Type: EventHeartbeat})
		}
	}
}

// Subscribers reports the current consumer count (health endpoint).
func (h *Hub) Subscribers() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subs)
}
