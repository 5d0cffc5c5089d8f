package runtime

import (
	"chat-relay/domain"
	"chat-relay/domain/event"
	"context"
	"log/slog"
	"testing"

	"github.com/mama165/sdk-go/logs"
	"github.com/stretchr/testify/require"
)

func newTestRegistry() *Registry {
	return NewRegistry(logs.GetLoggerFromLevel(slog.LevelDebug))
}

func TestRegistry_Open_Replaces_Previous_Connection(t *testing.T) {
	req := require.New(t)
	registry := newTestRegistry()
	first := NewConnection("u1", &recordingSink{})
	second := NewConnection("u1", &recordingSink{})

	// Given u1 is connected
	req.Nil(registry.Open(first))

	// When u1 connects again
	previous := registry.Open(second)

	// Then the newest connection wins
	req.Equal(first, previous)
	current, ok := registry.Get("u1")
	req.True(ok)
	req.Equal(second, current)
	req.Equal(1, registry.Count())
}

func TestRegistry_Remove_Ignores_Superseded_Connection(t *testing.T) {
	req := require.New(t)
	registry := newTestRegistry()
	first := NewConnection("u1", &recordingSink{})
	second := NewConnection("u1", &recordingSink{})
	registry.Open(first)
	registry.Open(second)

	// When the superseded connection goes away
	removed := registry.Remove(first)

	// Then its replacement stays online
	req.False(removed)
	req.True(registry.IsOnline("u1"))

	req.True(registry.Remove(second))
	req.False(registry.IsOnline("u1"))
	req.False(registry.Remove(second))
}

func TestRegistry_Deliver_Skips_Offline_Identity(t *testing.T) {
	req := require.New(t)
	registry := newTestRegistry()

	req.False(registry.Deliver(context.Background(), "ghost", event.Pong{}))
}

func TestRegistry_Deliver_Failure_Triggers_Lost_Hook(t *testing.T) {
	req := require.New(t)
	registry := newTestRegistry()
	sink := &recordingSink{}
	conn := NewConnection("u1", sink)
	registry.Open(conn)

	var lost []*Connection
	registry.OnConnectionLost(func(_ context.Context, c *Connection) {
		lost = append(lost, c)
		registry.Remove(c)
	})

	// Given a half open connection
	sink.Break()

	// When an event is delivered
	ok := registry.Deliver(context.Background(), "u1", event.Pong{})

	// Then the caller is not failed but the connection is reaped
	req.False(ok)
	req.Equal([]*Connection{conn}, lost)
	req.False(registry.IsOnline("u1"))
}

func TestRegistry_Deliver_Failure_Without_Hook_Removes_And_Closes(t *testing.T) {
	req := require.New(t)
	registry := newTestRegistry()
	sink := &recordingSink{}
	registry.Open(NewConnection("u1", sink))
	sink.Break()

	registry.Deliver(context.Background(), "u1", event.Pong{})

	req.False(registry.IsOnline("u1"))
	req.True(sink.IsClosed())
}

func TestRegistry_DeliverToRoom_Continues_Past_Failing_Member(t *testing.T) {
	req := require.New(t)
	ctx := context.Background()
	registry := newTestRegistry()
	membership := NewMembership()
	sinks := map[domain.UserID]*recordingSink{"u1": {}, "u2": {}, "u3": {}}
	for userID, sink := range sinks {
		registry.Open(NewConnection(userID, sink))
		membership.Join(userID, "general")
	}
	// u4 is a member but not connected
	membership.Join("u4", "general")

	// Given u2 cannot be written to
	sinks["u2"].Break()

	// When u1 broadcasts into the room
	delivered := registry.DeliverToRoom(ctx, "general", event.Typing{UserID: "u1", RoomID: "general"}, membership, "u1")

	// Then u3 still received it
	req.Equal(1, delivered)
	req.Len(sinks["u3"].Events(), 1)
	req.Empty(sinks["u1"].Events())
	req.False(registry.IsOnline("u2"))
}

func TestRegistry_Broadcast_Excludes_Identities(t *testing.T) {
	req := require.New(t)
	registry := newTestRegistry()
	u1, u2, u3 := &recordingSink{}, &recordingSink{}, &recordingSink{}
	registry.Open(NewConnection("u1", u1))
	registry.Open(NewConnection("u2", u2))
	registry.Open(NewConnection("u3", u3))

	delivered := registry.Broadcast(context.Background(), event.PresenceChanged{UserID: "u1", Status: domain.Online}, "u1")

	req.Equal(2, delivered)
	req.Empty(u1.Events())
	req.Len(u2.Events(), 1)
	req.Len(u3.Events(), 1)
	req.Equal([]domain.UserID{"u1", "u2", "u3"}, registry.Online())
}
