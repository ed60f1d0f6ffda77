package notifications

import (
	"context"
	"sync"

	"github.com/google/uuid"

	"github.com/quangtran/dinehub-backend/pkg/enums"
	"github.com/quangtran/dinehub-backend/pkg/logger"
)

const subscriberBuffer = 32

// RoomStaff is the broadcast room every staff/admin subscriber joins.
const RoomStaff = "role:staff"

// RoomOrder scopes delivery to everyone watching one order.
func RoomOrder(orderID uuid.UUID) string {
	return "order:" + orderID.String()
}

// RoomTable scopes delivery to a physical table's session.
func RoomTable(tableID uuid.UUID) string {
	return "table:" + tableID.String()
}

// RoomUser is the subscriber's private session room.
func RoomUser(userID uuid.UUID) string {
	return "user:" + userID.String()
}

// Envelope is the wire frame pushed to subscribers. Subscribers deduplicate
// by the notification id carried in Data; delivery is at-least-once.
type Envelope struct {
	Event string `json:"event"`
	Data  any    `json:"data"`
}

// Identity carries who a socket belongs to.
type Identity struct {
	UserID uuid.UUID
	Role   enums.UserRole
}

// Hub is the connection registry keyed by subscriber group. Rooms are
// acquired on join and released on disconnect; there is no global map of
// sockets outside it.
type Hub struct {
	mu    sync.RWMutex
	rooms map[string]map[*Subscriber]struct{}
	logg  *logger.Logger
}

// NewHub builds an empty registry.
func NewHub(logg *logger.Logger) *Hub {
	return &Hub{
		rooms: make(map[string]map[*Subscriber]struct{}),
		logg:  logg,
	}
}

// Subscribe registers a new subscriber. Private and role rooms are joined
// automatically; order/table rooms are joined on request.
func (h *Hub) Subscribe(identity Identity) *Subscriber {
	sub := &Subscriber{
		hub:      h,
		identity: identity,
		send:     make(chan Envelope, subscriberBuffer),
		rooms:    make(map[string]struct{}),
	}
	if identity.UserID != uuid.Nil {
		h.join(sub, RoomUser(identity.UserID))
	}
	if identity.Role.IsStaff() {
		h.join(sub, RoomStaff)
	}
	return sub
}

// Publish fans the envelope out to every subscriber in the room. A subscriber
// whose buffer is full is skipped; the event is still durable in the
// notifications table, so a slow socket only misses the push, not the data.
func (h *Hub) Publish(ctx context.Context, room string, envelope Envelope) int {
	h.mu.RLock()
	defer h.mu.RUnlock()

	delivered := 0
	for sub := range h.rooms[room] {
		select {
		case sub.send <- envelope:
			delivered++
		default:
			if h.logg != nil {
				h.logg.Warn(h.logg.WithField(ctx, "room", room), "subscriber buffer full, push dropped")
			}
		}
	}
	return delivered
}

func (h *Hub) join(sub *Subscriber, room string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if sub.closed {
		return
	}
	members, ok := h.rooms[room]
	if !ok {
		members = make(map[*Subscriber]struct{})
		h.rooms[room] = members
	}
	members[sub] = struct{}{}
	sub.rooms[room] = struct{}{}
}

func (h *Hub) remove(sub *Subscriber) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if sub.closed {
		return
	}
	sub.closed = true
	for room := range sub.rooms {
		members := h.rooms[room]
		delete(members, sub)
		if len(members) == 0 {
			delete(h.rooms, room)
		}
	}
	close(sub.send)
}

// Subscriber is one attached socket session. Its room set and closed flag
// are guarded by the hub mutex.
type Subscriber struct {
	hub      *Hub
	identity Identity
	send     chan Envelope
	rooms    map[string]struct{}
	closed   bool
}

// JoinOrder subscribes to one order's events.
func (s *Subscriber) JoinOrder(orderID uuid.UUID) {
	if orderID == uuid.Nil {
		return
	}
	s.hub.join(s, RoomOrder(orderID))
}

// JoinTable subscribes to a table session's events.
func (s *Subscriber) JoinTable(tableID uuid.UUID) {
	if tableID == uuid.Nil {
		return
	}
	s.hub.join(s, RoomTable(tableID))
}

// Events is the delivery channel; it closes when the subscriber detaches.
func (s *Subscriber) Events() <-chan Envelope {
	return s.send
}

// Close leaves every room and releases the subscriber.
func (s *Subscriber) Close() {
	s.hub.remove(s)
}
