package ws

import (
	"chat-relay/auth"
	"chat-relay/domain"
	"chat-relay/domain/event"
	"chat-relay/observability"
	"chat-relay/repositories"
	"chat-relay/runtime"
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/gorilla/websocket"
	"github.com/mama165/sdk-go/logs"
	"github.com/stretchr/testify/require"
)

const secret = "test-secret"

type frame struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data"`
}

type testRelay struct {
	url string
	hub *runtime.Hub
}

func newTestRelay(t *testing.T) *testRelay {
	log := logs.GetLoggerFromLevel(slog.LevelDebug)
	db, err := badger.Open(badger.DefaultOptions(t.TempDir()).WithLoggingLevel(badger.ERROR))
	require.NoError(t, err)

	users := repositories.NewUserRepository(db)
	require.NoError(t, users.SaveDisplayName(context.Background(), "u1", "Alice"))
	hub := runtime.NewHub(log, repositories.NewMessageRepository(db, log), users, runtime.HubConfig{
		StoreTimeout:     time.Second,
		MaxContentLength: 100,
	})
	server := NewServer(log, Config{
		MaxFrameSize:   4096,
		SendBufferSize: 16,
		WriteTimeout:   time.Second,
		PingInterval:   time.Second,
		PongTimeout:    2 * time.Second,
	}, hub, auth.NewJWTAuthenticator(secret), observability.NewMonitoringManager(log))

	httpServer := httptest.NewServer(server.Handler())
	t.Cleanup(func() {
		hub.Shutdown(context.Background())
		httpServer.Close()
		_ = db.Close()
	})
	return &testRelay{url: "ws" + strings.TrimPrefix(httpServer.URL, "http") + "/ws", hub: hub}
}

func (r *testRelay) dial(t *testing.T, userID string) *websocket.Conn {
	token, err := auth.GenerateToken([]byte(secret), domain.UserID(userID), nil, time.Hour)
	require.NoError(t, err)

	header := http.Header{}
	header.Set("Authorization", "Bearer "+token)
	conn, _, err := websocket.DefaultDialer.Dial(r.url, header)
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })

	ack := readUntil(t, conn, event.ConnectionAckType)
	require.Contains(t, string(ack.Data), `"user_id":"`+userID+`"`)
	return conn
}

func send(t *testing.T, conn *websocket.Conn, raw string) {
	require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte(raw)))
}

// readUntil skips frames until one of the wanted type shows up.
func readUntil(t *testing.T, conn *websocket.Conn, eventType string) frame {
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	for {
		_, raw, err := conn.ReadMessage()
		require.NoError(t, err, "waiting for %s", eventType)
		var f frame
		require.NoError(t, json.Unmarshal(raw, &f))
		if f.Type == eventType {
			return f
		}
	}
}

func TestServer_Refuses_Unauthenticated_Handshake(t *testing.T) {
	req := require.New(t)
	relay := newTestRelay(t)

	_, resp, err := websocket.DefaultDialer.Dial(relay.url, nil)
	req.Error(err)
	req.Equal(http.StatusUnauthorized, resp.StatusCode)

	_, resp, err = websocket.DefaultDialer.Dial(relay.url+"?token=forged", nil)
	req.Error(err)
	req.Equal(http.StatusUnauthorized, resp.StatusCode)
}

func TestServer_Accepts_Query_Token(t *testing.T) {
	req := require.New(t)
	relay := newTestRelay(t)
	token, err := auth.GenerateToken([]byte(secret), "u9", nil, time.Hour)
	req.NoError(err)

	conn, _, err := websocket.DefaultDialer.Dial(relay.url+"?token="+token, nil)
	req.NoError(err)
	defer conn.Close()

	readUntil(t, conn, event.ConnectionAckType)
	req.True(relay.hub.IsOnline("u9"))
}

func TestServer_Room_Message_End_To_End(t *testing.T) {
	req := require.New(t)
	relay := newTestRelay(t)
	u1 := relay.dial(t, "u1")
	u2 := relay.dial(t, "u2")

	send(t, u1, `{"type":"join-room","data":{"room_id":"general"}}`)
	readUntil(t, u1, event.RoomJoinedType)
	send(t, u2, `{"type":"join-room","data":{"room_id":"general"}}`)
	readUntil(t, u2, event.RoomJoinedType)

	// When u1 says hi
	send(t, u1, `{"type":"send-message","data":{"content":"hi","room_id":"general"}}`)

	// Then u2 gets the persisted message with the stored display name
	got := readUntil(t, u2, event.ChatMessageType)
	var msg event.ChatMessage
	req.NoError(json.Unmarshal(got.Data, &msg))
	req.Equal("hi", msg.Content)
	req.Equal("u1", string(msg.SenderID))
	req.Equal("Alice", msg.SenderName)
	req.NotEmpty(msg.ID)
	req.False(msg.CreatedAt.IsZero())

	// And when u2 reacts, everyone in the room sees the count
	send(t, u2, `{"type":"add-reaction","data":{"message_id":"`+msg.ID+`","emoji":"🔥"}}`)
	delta := readUntil(t, u1, event.ReactionDeltaType)
	req.JSONEq(`{"message_id":"`+msg.ID+`","emoji":"🔥","action":"added","actor":"u2","count":1}`, string(delta.Data))
}

func TestServer_Malformed_Frame_Is_Reported(t *testing.T) {
	req := require.New(t)
	relay := newTestRelay(t)
	u1 := relay.dial(t, "u1")

	send(t, u1, `{"type":"dance"}`)

	got := readUntil(t, u1, event.ErrorType)
	req.Contains(string(got.Data), `"kind":"MalformedFrame"`)

	// The connection survives a bad frame
	send(t, u1, `{"type":"ping"}`)
	readUntil(t, u1, event.PongType)
}

func TestServer_Close_Announces_Offline(t *testing.T) {
	req := require.New(t)
	relay := newTestRelay(t)
	u1 := relay.dial(t, "u1")
	u2 := relay.dial(t, "u2")

	req.NoError(u2.Close())

	got := readUntil(t, u1, event.PresenceChangedType)
	req.JSONEq(`{"user_id":"u2","status":"online"}`, string(got.Data))
	got = readUntil(t, u1, event.PresenceChangedType)
	req.JSONEq(`{"user_id":"u2","status":"offline"}`, string(got.Data))
	req.Eventually(func() bool { return !relay.hub.IsOnline("u2") }, time.Second, 10*time.Millisecond)
}
