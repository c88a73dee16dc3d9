// Package stream pushes live event capacity to WebSocket clients.
package stream

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"

	"github.com/matthewbaird/strata/internal/event"
	"github.com/matthewbaird/strata/internal/rsvp"
)

// sendBuffer is the number of pending messages a client may lag behind
// before updates to it are dropped.
const sendBuffer = 16

// Capacity is the live occupancy of one event.
type Capacity struct {
	EventID        string `json:"event_id"`
	Name           string `json:"name,omitempty"`
	MaxCapacity    int    `json:"max_capacity"`
	CurrentRSVPs   int    `json:"current_rsvps"`
	RemainingSpots int    `json:"remaining_spots"`
	Waitlisted     int    `json:"waitlisted"`
}

// Message is the frame written to clients. The first frame on every
// connection is a "snapshot" of all events; later frames are "update"s.
type Message struct {
	Type   string     `json:"type"`
	Events []Capacity `json:"events"`
	At     time.Time  `json:"at"`
}

// Registry supplies current event occupancy.
type Registry interface {
	List() []rsvp.Event
	Get(id string) (rsvp.Event, error)
}

// Hub fans capacity changes out to connected clients.
type Hub struct {
	log    *slog.Logger
	events Registry

	mu      sync.Mutex
	clients map[chan Message]struct{}
}

// NewHub creates a Hub reading occupancy from events.
func NewHub(events Registry, logger *slog.Logger) *Hub {
	if logger == nil {
		logger = slog.Default()
	}
	return &Hub{
		log:     logger.With(slog.String("component", "stream")),
		events:  events,
		clients: make(map[chan Message]struct{}),
	}
}

// Clients returns the number of connected clients.
func (h *Hub) Clients() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.clients)
}

func (h *Hub) snapshot() Message {
	evs := h.events.List()
	out := make([]Capacity, 0, len(evs))
	for _, ev := range evs {
		out = append(out, capacityOf(ev))
	}
	return Message{Type: "snapshot", Events: out, At: time.Now().UTC()}
}

func capacityOf(ev rsvp.Event) Capacity {
	return Capacity{
		EventID:        ev.ID,
		Name:           ev.Name,
		MaxCapacity:    ev.MaxCapacity,
		CurrentRSVPs:   ev.CurrentRSVPs,
		RemainingSpots: ev.Remaining(),
		Waitlisted:     ev.Waitlisted,
	}
}

// ServeHTTP upgrades to WebSocket, sends a snapshot and then streams updates
// until the client goes away.
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		OriginPatterns: []string{"*"},
	})
	if err != nil {
		h.log.Warn("websocket accept", slog.String("error", err.Error()))
		return
	}
	defer conn.CloseNow()

	// Clients never send; CloseRead handles control frames and cancels ctx on close.
	ctx := conn.CloseRead(r.Context())

	send := make(chan Message, sendBuffer)
	h.mu.Lock()
	h.clients[send] = struct{}{}
	h.mu.Unlock()
	defer func() {
		h.mu.Lock()
		delete(h.clients, send)
		h.mu.Unlock()
	}()

	if err := h.write(ctx, conn, h.snapshot()); err != nil {
		return
	}
	for {
		select {
		case msg := <-send:
			if err := h.write(ctx, conn, msg); err != nil {
				return
			}
		case <-ctx.Done():
			conn.Close(websocket.StatusNormalClosure, "")
			return
		}
	}
}

func (h *Hub) write(ctx context.Context, conn *websocket.Conn, msg Message) error {
	wctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := wsjson.Write(wctx, conn, msg); err != nil {
		if websocket.CloseStatus(err) == -1 && ctx.Err() == nil {
			h.log.Debug("websocket write", slog.String("error", err.Error()))
		}
		return err
	}
	return nil
}

// Broadcast queues msg for every client. Clients whose buffer is full miss it.
func (h *Hub) Broadcast(msg Message) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for send := range h.clients {
		select {
		case send <- msg:
		default:
			h.log.Warn("client lagging, dropping update")
		}
	}
}

// HandleEvent turns RSVP events into capacity updates. The frame carries
// the registry's occupancy at dispatch time, not the event's own snapshot.
func (h *Hub) HandleEvent(_ context.Context, evt event.DomainEvent) error {
	if evt.EventType != event.TypeRSVPConfirmed && evt.EventType != event.TypeRSVPWaitlisted {
		return nil
	}
	var p event.RSVPPayload
	if err := json.Unmarshal(evt.Payload, &p); err != nil {
		return fmt.Errorf("decoding %s payload: %w", evt.EventType, err)
	}
	ev, err := h.events.Get(p.EventID)
	if err != nil {
		return fmt.Errorf("capacity of %s: %w", p.EventID, err)
	}
	h.Broadcast(Message{
		Type:   "update",
		Events: []Capacity{capacityOf(ev)},
		At:     time.Now().UTC(),
	})
	return nil
}
