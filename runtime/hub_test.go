package runtime

import (
	"chat-relay/domain"
	"chat-relay/domain/event"
	"chat-relay/errors"
	"chat-relay/mocks"
	"context"
	"encoding/json"
	"log/slog"
	"testing"
	"time"

	"github.com/mama165/sdk-go/logs"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
)

type hubFixture struct {
	hub   *Hub
	store *mocks.MockIMessageStore
	sinks map[domain.UserID]*recordingSink
	conns map[domain.UserID]*Connection
}

func newHubFixture(t *testing.T, policy ReplacePolicy) *hubFixture {
	ctrl := gomock.NewController(t)
	store := mocks.NewMockIMessageStore(ctrl)
	hub := NewHub(logs.GetLoggerFromLevel(slog.LevelDebug), store, nil, HubConfig{ReplacePolicy: policy})
	return &hubFixture{
		hub:   hub,
		store: store,
		sinks: make(map[domain.UserID]*recordingSink),
		conns: make(map[domain.UserID]*Connection),
	}
}

// connect opens every identity and forgets the handshake traffic.
func (f *hubFixture) connect(t *testing.T, userIDs ...domain.UserID) {
	for _, userID := range userIDs {
		sink := &recordingSink{}
		conn, err := f.hub.Connect(context.Background(), userID, sink)
		require.NoError(t, err)
		f.sinks[userID] = sink
		f.conns[userID] = conn
	}
	f.reset()
}

func (f *hubFixture) handle(userID domain.UserID, e event.ClientEvent) {
	f.hub.Handle(context.Background(), f.conns[userID], e)
}

func (f *hubFixture) reset() {
	for _, sink := range f.sinks {
		sink.Reset()
	}
}

func TestHub_Connect_Acknowledges_And_Announces(t *testing.T) {
	req := require.New(t)
	f := newHubFixture(t, ReplaceKeep)
	f.connect(t, "u1")

	// When u2 connects
	sink := &recordingSink{}
	conn, err := f.hub.Connect(context.Background(), "u2", sink)

	// Then u2 is acknowledged and u1 learns u2 is online
	req.NoError(err)
	events := sink.Events()
	req.Len(events, 1)
	ack := events[0].(event.ConnectionAck)
	req.Equal(domain.UserID("u2"), ack.UserID)
	req.Equal(conn.ID.String(), ack.ConnectionID)
	req.Equal([]event.ServerEvent{event.PresenceChanged{UserID: "u2", Status: domain.Online}}, f.sinks["u1"].Events())
	req.True(f.hub.IsOnline("u2"))
	req.Equal([]domain.UserID{"u1", "u2"}, f.hub.Online())
}

func TestHub_Connect_Failed_Ack_Closes_Immediately(t *testing.T) {
	req := require.New(t)
	f := newHubFixture(t, ReplaceKeep)

	// Given a channel that is already unusable
	sink := &recordingSink{}
	sink.Break()

	// When it connects
	_, err := f.hub.Connect(context.Background(), "u1", sink)

	// Then the handshake is a lost connection
	req.ErrorIs(err, errors.ErrConnectionLost)
	req.False(f.hub.IsOnline("u1"))
	req.True(sink.IsClosed())
}

func TestHub_Room_Message_Is_Not_Echoed(t *testing.T) {
	req := require.New(t)
	f := newHubFixture(t, ReplaceKeep)
	createdAt := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	f.connect(t, "u1", "u2")

	// Given u1 and u2 joined general
	f.handle("u1", event.JoinRoom{RoomID: "general"})
	f.handle("u2", event.JoinRoom{RoomID: "general"})
	req.Equal([]event.ServerEvent{event.RoomJoined{RoomID: "general", UserID: "u1"}}, f.sinks["u1"].Events())
	f.reset()

	f.store.EXPECT().
		StoreMessage(gomock.Any(), gomock.Any()).
		Return(domain.MessageRecord{ID: "m-1", CreatedAt: createdAt}, nil)

	// When u1 says hi
	f.handle("u1", event.SendMessage{Content: "hi", RoomID: "general"})

	// Then u2 receives the persisted message and u1 nothing
	events := f.sinks["u2"].OfType(event.ChatMessageType)
	req.Len(events, 1)
	msg := events[0].(event.ChatMessage)
	req.Equal("hi", msg.Content)
	req.Equal(domain.UserID("u1"), msg.SenderID)
	req.Equal("m-1", msg.ID)
	req.Equal(createdAt, msg.CreatedAt)
	req.Empty(f.sinks["u1"].Events())
}

func TestHub_Direct_Message_Reaches_Both_Sides(t *testing.T) {
	req := require.New(t)
	f := newHubFixture(t, ReplaceKeep)
	f.connect(t, "u1", "u2")

	f.store.EXPECT().
		StoreMessage(gomock.Any(), gomock.Any()).
		Return(domain.MessageRecord{ID: "m-2", CreatedAt: time.Now().UTC()}, nil)

	f.handle("u1", event.SendMessage{Content: "hey", RecipientID: "u2"})

	for _, userID := range []domain.UserID{"u1", "u2"} {
		events := f.sinks[userID].OfType(event.ChatMessageType)
		req.Len(events, 1, string(userID))
		req.Equal("hey", events[0].(event.ChatMessage).Content)
	}
}

func TestHub_Invalid_Target_Reported_To_Sender_Only(t *testing.T) {
	req := require.New(t)
	f := newHubFixture(t, ReplaceKeep)
	f.connect(t, "u1", "u2")
	f.handle("u2", event.JoinRoom{RoomID: "general"})
	f.reset()

	f.store.EXPECT().StoreMessage(gomock.Any(), gomock.Any()).Times(0)

	f.handle("u1", event.SendMessage{Content: "hi", RoomID: "general", RecipientID: "u2"})

	req.Equal([]event.ServerEvent{event.NewError(errors.Wrap(errors.ErrInvalidTarget, "both room_id and recipient_id are set"))},
		f.sinks["u1"].Events())
	req.Empty(f.sinks["u2"].Events())
}

func TestHub_Storage_Failure_Aborts_Fan_Out(t *testing.T) {
	req := require.New(t)
	f := newHubFixture(t, ReplaceKeep)
	f.connect(t, "u1", "u2")
	f.handle("u1", event.JoinRoom{RoomID: "general"})
	f.handle("u2", event.JoinRoom{RoomID: "general"})
	f.reset()

	f.store.EXPECT().
		StoreMessage(gomock.Any(), gomock.Any()).
		Return(domain.MessageRecord{}, context.DeadlineExceeded)

	f.handle("u1", event.SendMessage{Content: "hi", RoomID: "general"})

	errs := f.sinks["u1"].OfType(event.ErrorType)
	req.Len(errs, 1)
	req.Equal(errors.StorageFailure, errs[0].(event.Error).Kind)
	req.Empty(f.sinks["u2"].Events())
}

func TestHub_Reaction_Delta_Reaches_Room(t *testing.T) {
	req := require.New(t)
	f := newHubFixture(t, ReplaceKeep)
	f.connect(t, "u1", "u2")
	f.handle("u1", event.JoinRoom{RoomID: "general"})
	f.handle("u2", event.JoinRoom{RoomID: "general"})
	f.reset()

	f.store.EXPECT().MessageByID(gomock.Any(), "m-1").Return(domain.PersistedMessage{
		Message:       domain.Message{SenderID: "u1", Target: domain.RoomTarget("general"), Content: "hi"},
		MessageRecord: domain.MessageRecord{ID: "m-1"},
	}, nil)
	f.store.EXPECT().ToggleReaction(gomock.Any(), domain.Reaction{MessageID: "m-1", UserID: "u2", Emoji: "👍"}, true).Return(nil)
	f.store.EXPECT().ListReactions(gomock.Any(), "m-1").Return([]domain.Reaction{{MessageID: "m-1", UserID: "u2", Emoji: "👍"}}, nil)

	f.handle("u2", event.AddReaction{MessageID: "m-1", Emoji: "👍"})

	want := event.ReactionDelta{MessageID: "m-1", Emoji: "👍", Action: domain.ReactionAdded, Actor: "u2", Count: 1}
	req.Equal([]event.ServerEvent{want}, f.sinks["u1"].Events())
	req.Equal([]event.ServerEvent{want}, f.sinks["u2"].Events())
}

func TestHub_Call_Offer_Reaches_Target_Only(t *testing.T) {
	req := require.New(t)
	f := newHubFixture(t, ReplaceKeep)
	f.connect(t, "u1", "u2")
	payload := json.RawMessage(`{"sdp":"v=0","type":"offer"}`)

	// Given u1 and u2 both joined call-42
	f.handle("u1", event.CallJoin{RoomID: "call-42", ParticipantID: "U1", DisplayName: "One"})
	f.handle("u2", event.CallJoin{RoomID: "call-42", ParticipantID: "U2", DisplayName: "Two"})
	req.Equal([]event.ServerEvent{event.CallParticipantJoined{RoomID: "call-42", ParticipantID: "U2", DisplayName: "Two"}},
		f.sinks["u1"].Events())
	req.Empty(f.sinks["u2"].Events())
	f.reset()

	// When u1 sends an offer to U2
	f.handle("u1", event.CallRelay{RoomID: "call-42", From: "U1", To: "U2", Kind: domain.SignalOffer, Payload: payload})

	// Then only u2 receives the untouched payload
	events := f.sinks["u2"].Events()
	req.Len(events, 1)
	req.Equal(event.CallOfferType, events[0].Type())
	req.JSONEq(string(payload), string(events[0].(event.CallSignal).Payload))
	req.Empty(f.sinks["u1"].Events())
}

func TestHub_Call_Signal_To_Absent_Participant_Is_Dropped(t *testing.T) {
	req := require.New(t)
	f := newHubFixture(t, ReplaceKeep)
	f.connect(t, "u1", "u2")

	// Given room A holds P1 only
	f.handle("u1", event.CallJoin{RoomID: "A", ParticipantID: "P1"})
	f.reset()

	// When P1 signals a participant that does not exist
	f.handle("u1", event.CallRelay{RoomID: "A", From: "P1", To: "P2", Kind: domain.SignalCandidate, Payload: json.RawMessage(`{}`)})

	// Then nobody receives anything, not even an error
	req.Empty(f.sinks["u1"].Events())
	req.Empty(f.sinks["u2"].Events())
}

func TestHub_Call_Leave_Of_Unknown_Participant_Is_Rejected(t *testing.T) {
	req := require.New(t)
	f := newHubFixture(t, ReplaceKeep)
	f.connect(t, "u1")

	f.handle("u1", event.CallLeave{RoomID: "call-42", ParticipantID: "p1"})

	errs := f.sinks["u1"].OfType(event.ErrorType)
	req.Len(errs, 1)
	req.Equal(errors.NotAMember, errs[0].(event.Error).Kind)
}

func TestHub_Disconnect_Cascades_Once(t *testing.T) {
	req := require.New(t)
	f := newHubFixture(t, ReplaceKeep)
	f.connect(t, "u1", "u2")

	// Given u1 is in two rooms and holds two call participants
	f.handle("u1", event.JoinRoom{RoomID: "general"})
	f.handle("u1", event.JoinRoom{RoomID: "random"})
	f.handle("u2", event.JoinRoom{RoomID: "general"})
	f.handle("u2", event.CallJoin{RoomID: "call-42", ParticipantID: "p2"})
	f.handle("u1", event.CallJoin{RoomID: "call-42", ParticipantID: "p1"})
	f.handle("u1", event.CallJoin{RoomID: "call-7", ParticipantID: "p3"})
	f.reset()

	// When u1 disconnects
	req.True(f.hub.Disconnect(context.Background(), f.conns["u1"]))

	// Then u1 is gone from every room and call room
	req.Empty(f.hub.membership.RoomsOf("u1"))
	req.Equal([]domain.UserID{"u2"}, f.hub.membership.MembersOf("general"))
	req.Equal([]domain.Participant{{RoomID: "call-42", ID: "p2", Owner: "u2"}}, f.hub.callRooms.Participants("call-42"))
	req.Equal(HubStats{Connections: 1, Rooms: 1, CallRooms: 1}, f.hub.Stats())

	// And u2 heard the departure and exactly one offline
	req.Equal([]event.ServerEvent{
		event.CallParticipantLeft{RoomID: "call-42", ParticipantID: "p1"},
		event.PresenceChanged{UserID: "u1", Status: domain.Offline},
	}, f.sinks["u2"].Events())
	req.True(f.sinks["u1"].IsClosed())

	// When the read loop reports the same close again
	req.False(f.hub.Disconnect(context.Background(), f.conns["u1"]))
	req.Len(f.sinks["u2"].OfType(event.PresenceChangedType), 1)
}

func TestHub_Lost_Connection_Is_Reaped_During_Broadcast(t *testing.T) {
	req := require.New(t)
	f := newHubFixture(t, ReplaceKeep)
	f.connect(t, "u1", "u2", "u3")
	for _, userID := range []domain.UserID{"u1", "u2", "u3"} {
		f.handle(userID, event.JoinRoom{RoomID: "general"})
	}
	f.reset()

	// Given u2 stopped reading
	f.sinks["u2"].Break()
	f.store.EXPECT().StoreMessage(gomock.Any(), gomock.Any()).Return(domain.MessageRecord{ID: "m-1"}, nil)

	// When u1 posts
	f.handle("u1", event.SendMessage{Content: "hi", RoomID: "general"})

	// Then u3 still got the message, u2 was closed and u1 sees no error
	req.Len(f.sinks["u3"].OfType(event.ChatMessageType), 1)
	req.False(f.hub.IsOnline("u2"))
	req.Empty(f.hub.membership.RoomsOf("u2"))
	req.Empty(f.sinks["u1"].OfType(event.ErrorType))
	req.Equal([]event.ServerEvent{event.PresenceChanged{UserID: "u2", Status: domain.Offline}}, f.sinks["u1"].Events())
}

func TestHub_Replace_Policy(t *testing.T) {
	t.Run("keep leaves the superseded channel open", func(t *testing.T) {
		req := require.New(t)
		f := newHubFixture(t, ReplaceKeep)
		f.connect(t, "u1", "u2")
		old := f.conns["u1"]
		f.handle("u1", event.JoinRoom{RoomID: "general"})

		// When u1 connects from somewhere else
		sink := &recordingSink{}
		conn, err := f.hub.Connect(context.Background(), "u1", sink)
		req.NoError(err)

		// Then no presence change is announced and rooms start empty
		req.False(f.sinks["u1"].IsClosed())
		req.Empty(f.sinks["u2"].OfType(event.PresenceChangedType))
		req.Empty(f.hub.membership.RoomsOf("u1"))

		// And closing the old channel does not take u1 offline
		req.False(f.hub.Disconnect(context.Background(), old))
		req.True(f.hub.IsOnline("u1"))
		req.Empty(f.sinks["u2"].OfType(event.PresenceChangedType))

		// Events now go to the newest channel
		f.hub.Notify(context.Background(), "u1", "digest", json.RawMessage(`{"unread":3}`))
		req.Len(sink.OfType(event.NotificationType), 1)
		req.Equal(conn.ID.String(), sink.OfType(event.ConnectionAckType)[0].(event.ConnectionAck).ConnectionID)
	})

	t.Run("close shuts the superseded channel", func(t *testing.T) {
		req := require.New(t)
		f := newHubFixture(t, ReplaceClose)
		f.connect(t, "u1")

		_, err := f.hub.Connect(context.Background(), "u1", &recordingSink{})

		req.NoError(err)
		req.True(f.sinks["u1"].IsClosed())
		req.True(f.hub.IsOnline("u1"))
	})
}

func TestHub_Ping_Pong(t *testing.T) {
	req := require.New(t)
	f := newHubFixture(t, ReplaceKeep)
	f.connect(t, "u1")

	f.handle("u1", event.Ping{})

	req.Len(f.sinks["u1"].OfType(event.PongType), 1)
}

func TestHub_Typing_Reaches_Room_Except_Typist(t *testing.T) {
	req := require.New(t)
	f := newHubFixture(t, ReplaceKeep)
	f.connect(t, "u1", "u2")
	f.handle("u1", event.JoinRoom{RoomID: "general"})
	f.handle("u2", event.JoinRoom{RoomID: "general"})
	f.reset()

	f.handle("u1", event.TypingStart{RoomID: "general"})
	f.handle("u1", event.TypingStop{RoomID: "general"})

	req.Equal([]event.ServerEvent{
		event.Typing{UserID: "u1", RoomID: "general", Active: true},
		event.Typing{UserID: "u1", RoomID: "general", Active: false},
	}, f.sinks["u2"].Events())
	req.Empty(f.sinks["u1"].Events())
}

func TestHub_Leave_Room_Is_Idempotent(t *testing.T) {
	req := require.New(t)
	f := newHubFixture(t, ReplaceKeep)
	f.connect(t, "u1")

	f.handle("u1", event.LeaveRoom{RoomID: "general"})

	req.Equal([]event.ServerEvent{event.RoomLeft{RoomID: "general", UserID: "u1"}}, f.sinks["u1"].Events())
}

func TestHub_Shutdown_Closes_Everything(t *testing.T) {
	req := require.New(t)
	f := newHubFixture(t, ReplaceKeep)
	f.connect(t, "u1", "u2")
	req.True(f.hub.Serving())

	f.hub.Shutdown(context.Background())

	req.False(f.hub.Serving())
	req.Empty(f.hub.Online())
	req.True(f.sinks["u1"].IsClosed())
	req.True(f.sinks["u2"].IsClosed())
}

func TestHub_Notify_Reaches_One_Identity(t *testing.T) {
	req := require.New(t)
	f := newHubFixture(t, ReplaceKeep)
	f.connect(t, "u1", "u2")

	// When a collaborator notifies u1
	delivered := f.hub.Notify(context.Background(), "u1", "friend-request", json.RawMessage(`{"from":"u3"}`))

	// Then only u1 gets it, and an offline identity is skipped
	req.True(delivered)
	req.Equal([]event.ServerEvent{event.Notification{Kind: "friend-request", Payload: json.RawMessage(`{"from":"u3"}`)}}, f.sinks["u1"].Events())
	req.Empty(f.sinks["u2"].Events())
	req.False(f.hub.Notify(context.Background(), "u9", "friend-request", nil))
}

func TestHub_Stats(t *testing.T) {
	req := require.New(t)
	f := newHubFixture(t, ReplaceKeep)
	f.connect(t, "u1", "u2")

	f.handle("u1", event.JoinRoom{RoomID: "general"})
	f.handle("u2", event.JoinRoom{RoomID: "general"})
	f.handle("u2", event.JoinRoom{RoomID: "random"})
	f.handle("u1", event.CallJoin{RoomID: "call-42", ParticipantID: "p1"})

	req.Equal(HubStats{Connections: 2, Rooms: 2, CallRooms: 1}, f.hub.Stats())
}
