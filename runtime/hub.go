package runtime

import (
	"chat-relay/contract"
	"chat-relay/domain"
	"chat-relay/domain/event"
	"chat-relay/errors"
	"chat-relay/services"
	"context"
	"encoding/json"
	"log/slog"
	"sync/atomic"
	"time"
)

// ReplacePolicy decides the fate of a connection superseded by a new handshake
// of the same identity.
type ReplacePolicy string

const (
	// ReplaceKeep leaves the superseded channel open; it just stops receiving events.
	ReplaceKeep ReplacePolicy = "keep"
	// ReplaceClose closes the superseded channel.
	ReplaceClose ReplacePolicy = "close"
)

type HubConfig struct {
	ReplacePolicy ReplacePolicy
	// Moderator is optional; content is relayed verbatim without one
	Moderator        contract.IModerator
	StoreTimeout     time.Duration
	MaxContentLength int
}

type HubStats struct {
	Connections int
	Rooms       int
	CallRooms   int
}

// Hub routes decoded inbound events to the components owning them
// and runs the connection lifecycle: acknowledgement, presence, close cascade.
type Hub struct {
	log        *slog.Logger
	cfg        HubConfig
	registry   *Registry
	membership *Membership
	callRooms  *CallRooms
	messages   *services.MessageService
	reactions  *services.ReactionService
	presence   *services.PresenceService
	signaling  *services.SignalingService
	typing     *services.TypingService
	serving    atomic.Bool
}

func NewHub(log *slog.Logger, store contract.IMessageStore, directory contract.IUserDirectory, cfg HubConfig) *Hub {
	if cfg.ReplacePolicy == "" {
		cfg.ReplacePolicy = ReplaceKeep
	}
	registry := NewRegistry(log)
	membership := NewMembership()
	callRooms := NewCallRooms()
	h := &Hub{
		log:        log,
		cfg:        cfg,
		registry:   registry,
		membership: membership,
		callRooms:  callRooms,
		messages:   services.NewMessageService(log, registry, membership, store, directory, cfg.Moderator, cfg.StoreTimeout, cfg.MaxContentLength),
		reactions:  services.NewReactionService(log, registry, membership, store, cfg.StoreTimeout),
		presence:   services.NewPresenceService(log, registry),
		signaling:  services.NewSignalingService(log, registry, callRooms),
		typing:     services.NewTypingService(registry, membership),
	}
	registry.OnConnectionLost(func(ctx context.Context, conn *Connection) {
		h.Disconnect(ctx, conn)
	})
	h.serving.Store(true)
	return h
}

// Connect registers sink as the active connection of userID and acknowledges it.
// Online is announced only when the identity was not connected yet.
func (h *Hub) Connect(ctx context.Context, userID domain.UserID, sink contract.EventSink) (*Connection, error) {
	conn := NewConnection(userID, sink)
	previous := h.registry.Open(conn)
	if previous != nil {
		h.log.Info("Connection replaced", "user_id", userID,
			"previous_id", previous.ID, "connection_id", conn.ID, "policy", h.cfg.ReplacePolicy)
		// The new connection starts from empty rooms
		h.membership.Clear(userID)
		h.signaling.Disconnect(ctx, userID)
		if h.cfg.ReplacePolicy == ReplaceClose {
			_ = previous.Sink.Close()
		}
	} else {
		h.presence.Announce(ctx, userID, domain.Online)
	}

	ack := event.ConnectionAck{UserID: userID, ConnectionID: conn.ID.String(), At: conn.CreatedAt}
	if !h.registry.Send(ctx, conn, ack) {
		return nil, errors.Wrap(errors.ErrConnectionLost, "acknowledgement not delivered")
	}
	h.log.Info("Connection opened", "user_id", userID, "connection_id", conn.ID)
	return conn, nil
}

// Disconnect runs the close cascade once per connection: membership,
// call rooms, then offline presence. A superseded connection only has its sink closed.
func (h *Hub) Disconnect(ctx context.Context, conn *Connection) bool {
	defer func() { _ = conn.Sink.Close() }()
	if !h.registry.Remove(conn) {
		return false
	}
	rooms := h.membership.Clear(conn.UserID)
	participantsLeft := h.signaling.Disconnect(ctx, conn.UserID)
	h.presence.Announce(ctx, conn.UserID, domain.Offline)
	h.log.Info("Connection closed",
		"user_id", conn.UserID,
		"connection_id", conn.ID,
		"rooms", len(rooms),
		"call_participants", participantsLeft)
	return true
}

// Handle processes one inbound event of conn. Failures are reported to conn only.
func (h *Hub) Handle(ctx context.Context, conn *Connection, e event.ClientEvent) {
	h.log.Debug("Event received", "user_id", conn.UserID, "type", e.Type())
	if err := h.dispatch(ctx, conn, e); err != nil {
		h.Reject(ctx, conn, err)
	}
}

func (h *Hub) dispatch(ctx context.Context, conn *Connection, e event.ClientEvent) error {
	userID := conn.UserID
	switch e := e.(type) {
	case event.JoinRoom:
		h.membership.Join(userID, e.RoomID)
		h.registry.Send(ctx, conn, event.RoomJoined{RoomID: e.RoomID, UserID: userID})
	case event.LeaveRoom:
		h.membership.Leave(userID, e.RoomID)
		h.registry.Send(ctx, conn, event.RoomLeft{RoomID: e.RoomID, UserID: userID})
	case event.SendMessage:
		_, err := h.messages.Dispatch(ctx, userID, e)
		return err
	case event.AddReaction:
		_, err := h.reactions.Add(ctx, userID, e.MessageID, e.Emoji)
		return err
	case event.RemoveReaction:
		_, err := h.reactions.Remove(ctx, userID, e.MessageID, e.Emoji)
		return err
	case event.CallJoin:
		return h.signaling.Join(ctx, userID, e)
	case event.CallLeave:
		return h.signaling.Leave(ctx, userID, e)
	case event.CallRelay:
		return h.signaling.Relay(ctx, userID, e)
	case event.TypingStart:
		return h.typing.Relay(ctx, userID, e.Target(), true)
	case event.TypingStop:
		return h.typing.Relay(ctx, userID, e.Target(), false)
	case event.Ping:
		h.registry.Send(ctx, conn, event.Pong{At: time.Now().UTC()})
	default:
		return errors.Wrap(errors.ErrMalformedFrame, "unsupported event "+e.Type())
	}
	return nil
}

// Reject reports err to the originating connection as an error event.
// A lost connection is never reported: it is already being closed.
func (h *Hub) Reject(ctx context.Context, conn *Connection, err error) {
	kind := errors.KindOf(err)
	if kind == errors.ConnectionLost {
		return
	}
	if kind == errors.Internal {
		h.log.Error("Event failed", "user_id", conn.UserID, "error", err)
	} else {
		h.log.Debug("Event rejected", "user_id", conn.UserID, "kind", kind, "error", err)
	}
	h.registry.Send(ctx, conn, event.NewError(err))
}

// Notify delivers a server originated notification to one identity, if online.
func (h *Hub) Notify(ctx context.Context, userID domain.UserID, kind string, payload json.RawMessage) bool {
	return h.registry.Deliver(ctx, userID, event.Notification{Kind: kind, Payload: payload})
}

func (h *Hub) Online() []domain.UserID {
	return h.registry.Online()
}

func (h *Hub) IsOnline(userID domain.UserID) bool {
	return h.registry.IsOnline(userID)
}

func (h *Hub) Serving() bool {
	return h.serving.Load()
}

func (h *Hub) Stats() HubStats {
	return HubStats{
		Connections: h.registry.Count(),
		Rooms:       h.membership.RoomCount(),
		CallRooms:   h.callRooms.Count(),
	}
}

// Shutdown stops serving and closes every connection through the regular cascade.
func (h *Hub) Shutdown(ctx context.Context) {
	if !h.serving.CompareAndSwap(true, false) {
		return
	}
	for _, userID := range h.registry.Online() {
		if conn, ok := h.registry.Get(userID); ok {
			h.Disconnect(ctx, conn)
		}
	}
	h.log.Info("Hub stopped")
}
