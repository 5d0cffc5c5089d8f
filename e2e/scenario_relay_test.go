package e2e

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/suite"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
)

type testRelaySuite struct {
	BaseRelaySuite
}

func TestRelaySuite(t *testing.T) {
	suite.Run(t, &testRelaySuite{})
}

func (s *testRelaySuite) TestHealth() {
	s.WithHealth("Relay reports serving", func(ctx context.Context, client healthpb.HealthClient) {
		resp, err := client.Check(ctx, &healthpb.HealthCheckRequest{})
		s.Require().NoError(err)
		s.Require().Equal(healthpb.HealthCheckResponse_SERVING, resp.GetStatus())
	})
}

func (s *testRelaySuite) TestRoomConversation() {
	// Unique identities so that reruns against the same relay do not collide
	alice := s.Dial("Alice connects", "alice-"+uuid.NewString())
	bob := s.Dial("Bob connects", "bob-"+uuid.NewString())
	room := "e2e-" + uuid.NewString()

	var messageID string

	s.Run("Step 1: both join the room", func() {
		alice.Send("join-room", map[string]string{"room_id": room})
		alice.Expect("room-joined")
		bob.Send("join-room", map[string]string{"room_id": room})
		bob.Expect("room-joined")
	})

	s.Run("Step 2: a message reaches the other member", func() {
		alice.Send("send-message", map[string]string{"room_id": room, "content": "hello bob"})
		got := bob.Expect("chat-message")

		var msg struct {
			ID       string `json:"id"`
			SenderID string `json:"sender_id"`
			Content  string `json:"content"`
		}
		s.Require().NoError(json.Unmarshal(got.Data, &msg))
		s.Require().Equal(alice.UserID, msg.SenderID)
		s.Require().Equal("hello bob", msg.Content)
		s.Require().NotEmpty(msg.ID)
		messageID = msg.ID
	})

	s.Run("Step 3: a reaction is counted for the whole room", func() {
		bob.Send("add-reaction", map[string]string{"message_id": messageID, "emoji": "👋"})
		for _, c := range []*Client{alice, bob} {
			got := c.Expect("reaction-delta")
			s.Require().JSONEq(`{"message_id":"`+messageID+`","emoji":"👋","action":"added","actor":"`+bob.UserID+`","count":1}`, string(got.Data))
		}
	})

	s.Run("Step 4: leaving announces offline", func() {
		bob.Close()
		got := alice.Expect("presence-changed")
		s.Require().Contains(string(got.Data), `"status":"offline"`)
	})
}

func (s *testRelaySuite) TestCallSignaling() {
	caller := s.Dial("Caller connects", "caller-"+uuid.NewString())
	callee := s.Dial("Callee connects", "callee-"+uuid.NewString())
	room := "call-" + uuid.NewString()

	caller.Send("call-join", map[string]string{"room_id": room, "participant_id": "p-caller", "display_name": "Caller"})
	callee.Send("call-join", map[string]string{"room_id": room, "participant_id": "p-callee", "display_name": "Callee"})
	caller.Expect("call-participant-joined")

	caller.Send("call-relay", map[string]any{
		"room_id": room, "from": "p-caller", "to": "p-callee", "kind": "offer",
		"payload": map[string]string{"sdp": "v=0"},
	})
	got := callee.Expect("call-offer")
	s.Require().JSONEq(`{"room_id":"`+room+`","from":"p-caller","to":"p-callee","payload":{"sdp":"v=0"}}`, string(got.Data))

	callee.Send("call-leave", map[string]string{"room_id": room, "participant_id": "p-callee"})
	caller.Expect("call-participant-left")
}
