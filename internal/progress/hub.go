// Package progress keeps the in-memory, process-local record of running
// transfer operations and pushes updates to each principal's subscribers.
// Nothing here is persisted; records die a fixed grace period after the
// operation completes.
package progress

import (
	"encoding/json"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
)

// Operation statuses, in lifecycle order.
const (
	StatusStarting    = "starting"
	StatusUploading   = "uploading_to_store"
	StatusDownloading = "downloading_from_store"
	StatusCompleted   = "completed"
	StatusFailed      = "failed"
)

type Info struct {
	Progress  int       `json:"progress"`
	Status    string    `json:"status"`
	Filename  string    `json:"filename"`
	Operation string    `json:"operation"`
	Speed     string    `json:"speed"`
	ETA       string    `json:"eta"`
	Timestamp time.Time `json:"timestamp"`
}

type event struct {
	Type        string `json:"type"`
	OperationID string `json:"operation_id"`
	Data        Info   `json:"data"`
}

// Subscriber is one live progress connection. Send failures mark the
// subscriber as disconnected; the hub drops it without affecting other
// subscribers or the operation itself.
type Subscriber interface {
	Send(message []byte) error
}

type Hub struct {
	mu    sync.RWMutex
	ops   map[string]Info
	subs  map[string][]Subscriber
	grace time.Duration
}

// NewHub builds a hub whose terminal records linger for grace before being
// purged.
func NewHub(grace time.Duration) *Hub {
	return &Hub{
		ops:   make(map[string]Info),
		subs:  make(map[string][]Subscriber),
		grace: grace,
	}
}

func (h *Hub) Subscribe(principal string, sub Subscriber) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.subs[principal] = append(h.subs[principal], sub)
}

func (h *Hub) Unsubscribe(principal string, sub Subscriber) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.removeLocked(principal, sub)
}

func (h *Hub) removeLocked(principal string, sub Subscriber) {
	subs := h.subs[principal]
	for i, s := range subs {
		if s == sub {
			h.subs[principal] = append(subs[:i], subs[i+1:]...)
			break
		}
	}
	if len(h.subs[principal]) == 0 {
		delete(h.subs, principal)
	}
}

// Update records the operation's latest state and fans it out to the
// principal's subscribers. A subscriber whose send fails is treated as
// disconnected and silently dropped.
func (h *Hub) Update(operationID, principal string, info Info) {
	info.Timestamp = time.Now()

	h.mu.Lock()
	h.ops[operationID] = info
	subs := append([]Subscriber(nil), h.subs[principal]...)
	h.mu.Unlock()

	if len(subs) == 0 {
		return
	}

	message, err := json.Marshal(event{
		Type:        "progress_update",
		OperationID: operationID,
		Data:        info,
	})
	if err != nil {
		log.Error().Err(err).Str("operation_id", operationID).Msg("Failed to encode progress event")
		return
	}

	var dropped []Subscriber
	for _, sub := range subs {
		if err := sub.Send(message); err != nil {
			dropped = append(dropped, sub)
		}
	}

	if len(dropped) > 0 {
		h.mu.Lock()
		for _, sub := range dropped {
			h.removeLocked(principal, sub)
		}
		h.mu.Unlock()
	}
}

// Complete writes the terminal record and schedules its purge after the
// grace period. Reads after the purge see an empty record, not an error.
func (h *Hub) Complete(operationID, principal string, success bool) {
	status := StatusCompleted
	if !success {
		status = StatusFailed
	}

	h.mu.RLock()
	previous := h.ops[operationID]
	h.mu.RUnlock()

	h.Update(operationID, principal, Info{
		Progress:  100,
		Status:    status,
		Filename:  previous.Filename,
		Operation: previous.Operation,
		Speed:     "0 B/s",
		ETA:       "0s",
	})

	time.AfterFunc(h.grace, func() {
		h.mu.Lock()
		delete(h.ops, operationID)
		h.mu.Unlock()
	})
}

// Get returns the operation's record, or false after the record has been
// purged (or was never created).
func (h *Hub) Get(operationID string) (Info, bool) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	info, ok := h.ops[operationID]
	return info, ok
}
