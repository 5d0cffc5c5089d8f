package runtime

import (
	"chat-relay/contract"
	"chat-relay/domain"
	"chat-relay/domain/event"
	"context"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/samber/lo"
)

// Connection is the single active channel of one online identity.
type Connection struct {
	ID        uuid.UUID
	UserID    domain.UserID
	Sink      contract.EventSink
	CreatedAt time.Time
}

func NewConnection(userID domain.UserID, sink contract.EventSink) *Connection {
	return &Connection{
		ID:        uuid.New(),
		UserID:    userID,
		Sink:      sink,
		CreatedAt: time.Now().UTC(),
	}
}

// Registry owns the open connections, keyed by identity.
// It never validates anything: it only knows how to reach a connection
// and what to do when a connection cannot be reached anymore.
type Registry struct {
	mu       sync.RWMutex
	log      *slog.Logger
	sessions map[domain.UserID]*Connection
	onLost   func(ctx context.Context, conn *Connection)
}

func NewRegistry(log *slog.Logger) *Registry {
	return &Registry{
		log:      log,
		sessions: make(map[domain.UserID]*Connection),
	}
}

// OnConnectionLost installs the close cascade triggered by a failed send.
func (r *Registry) OnConnectionLost(fn func(ctx context.Context, conn *Connection)) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.onLost = fn
}

// Open registers conn as the active connection of its identity.
// A previous connection of the same identity is replaced and returned.
func (r *Registry) Open(conn *Connection) *Connection {
	r.mu.Lock()
	defer r.mu.Unlock()
	previous := r.sessions[conn.UserID]
	r.sessions[conn.UserID] = conn
	return previous
}

// Remove drops conn only if it is still the active connection of its identity,
// so a superseded connection going away never evicts its replacement.
func (r *Registry) Remove(conn *Connection) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	current, ok := r.sessions[conn.UserID]
	if !ok || current != conn {
		return false
	}
	delete(r.sessions, conn.UserID)
	return true
}

func (r *Registry) Get(userID domain.UserID) (*Connection, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	conn, ok := r.sessions[userID]
	return conn, ok
}

func (r *Registry) IsOnline(userID domain.UserID) bool {
	_, ok := r.Get(userID)
	return ok
}

// Online lists connected identities in lexical order.
func (r *Registry) Online() []domain.UserID {
	r.mu.RLock()
	users := lo.Keys(r.sessions)
	r.mu.RUnlock()
	sort.Slice(users, func(i, j int) bool { return users[i] < users[j] })
	return users
}

func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.sessions)
}

// Deliver is a best-effort single send. An offline identity is skipped silently;
// a connection refusing the event is closed instead of failing the caller.
func (r *Registry) Deliver(ctx context.Context, userID domain.UserID, e event.ServerEvent) bool {
	conn, ok := r.Get(userID)
	if !ok {
		r.log.Debug("Recipient offline, event skipped", "user_id", userID, "type", e.Type())
		return false
	}
	return r.Send(ctx, conn, e)
}

// Send writes to one specific connection, whether or not it is still the active one.
// Replies to the originator of a frame go through here.
func (r *Registry) Send(ctx context.Context, conn *Connection, e event.ServerEvent) bool {
	if err := conn.Sink.Consume(ctx, e); err != nil {
		r.log.Warn("Delivery failed, closing connection",
			"user_id", conn.UserID,
			"connection_id", conn.ID,
			"type", e.Type(),
			"error", err)
		r.lost(ctx, conn)
		return false
	}
	return true
}

// DeliverToRoom resolves recipients through the membership inverted index.
// A failing member never aborts delivery to the others.
func (r *Registry) DeliverToRoom(ctx context.Context, roomID domain.RoomID, e event.ServerEvent,
	members contract.IMembership, except ...domain.UserID) int {
	delivered := 0
	for _, userID := range lo.Without(members.MembersOf(roomID), except...) {
		if r.Deliver(ctx, userID, e) {
			delivered++
		}
	}
	return delivered
}

// Broadcast reaches every registered connection but the excluded identities.
func (r *Registry) Broadcast(ctx context.Context, e event.ServerEvent, except ...domain.UserID) int {
	r.mu.RLock()
	targets := lo.Filter(lo.Values(r.sessions), func(c *Connection, _ int) bool {
		return !lo.Contains(except, c.UserID)
	})
	r.mu.RUnlock()

	delivered := 0
	for _, conn := range targets {
		if r.Send(ctx, conn, e) {
			delivered++
		}
	}
	return delivered
}

func (r *Registry) lost(ctx context.Context, conn *Connection) {
	r.mu.RLock()
	onLost := r.onLost
	r.mu.RUnlock()
	if onLost != nil {
		onLost(context.WithoutCancel(ctx), conn)
		return
	}
	if r.Remove(conn) {
		_ = conn.Sink.Close()
	}
}
