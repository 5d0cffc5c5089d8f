package e2e

import (
	"chat-relay/auth"
	"chat-relay/domain"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/gookit/color"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/suite"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/encoding/protojson"
	"google.golang.org/protobuf/proto"
)

const readTimeout = 5 * time.Second

type Frame struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data"`
}

type BaseRelaySuite struct {
	suite.Suite
	Config Config
}

// SetupSuite loads the environment configuration before running tests
func (s *BaseRelaySuite) SetupSuite() {
	var err error
	s.Config, err = LoadConfig()
	s.Require().NoError(err)
	if s.Config.RelayAddr == "" {
		s.T().Skip("RELAY_ADDR not set, no relay to talk to")
	}
}

func (s *BaseRelaySuite) header(t *testing.T, name string) {
	header := fmt.Sprintf("  ====== %s ======", name)
	if s.Config.Colours {
		header = color.New(color.BgBlack, color.FgGreen).Render(header)
	}
	t.Log(header)
}

// Client is one authenticated websocket peer.
type Client struct {
	suite  *BaseRelaySuite
	UserID string
	conn   *websocket.Conn
}

// Dial opens an authenticated connection and consumes the acknowledgement.
func (s *BaseRelaySuite) Dial(name, userID string) *Client {
	t := s.T()
	s.header(t, name)

	token, err := auth.GenerateToken([]byte(s.Config.JWTSecret), domain.UserID(userID), nil, time.Hour)
	s.Require().NoError(err)

	u := url.URL{Scheme: "ws", Host: s.Config.RelayAddr, Path: "/ws"}
	header := http.Header{}
	header.Set("Authorization", "Bearer "+token)
	conn, _, err := websocket.DefaultDialer.Dial(u.String(), header)
	s.Require().NoError(err, "Failed to connect to relay at "+u.String())
	t.Cleanup(func() { _ = conn.Close() })

	client := &Client{suite: s, UserID: userID, conn: conn}
	client.Expect("connection-ack")
	return client
}

func (c *Client) Send(eventType string, data any) {
	payload, err := json.Marshal(map[string]any{"type": eventType, "data": data})
	c.suite.Require().NoError(err)
	c.suite.logFrame(c.UserID, "->", payload)
	c.suite.Require().NoError(c.conn.WriteMessage(websocket.TextMessage, payload))
}

// Expect skips frames until one of the wanted type shows up.
func (c *Client) Expect(eventType string) Frame {
	c.suite.Require().NoError(c.conn.SetReadDeadline(time.Now().Add(readTimeout)))
	for {
		_, raw, err := c.conn.ReadMessage()
		c.suite.Require().NoError(err, "%s waiting for %s", c.UserID, eventType)
		c.suite.logFrame(c.UserID, "<-", raw)
		var f Frame
		c.suite.Require().NoError(json.Unmarshal(raw, &f))
		if f.Type == eventType {
			return f
		}
	}
}

func (c *Client) Close() {
	_ = c.conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), time.Now().Add(time.Second))
	_ = c.conn.Close()
}

func (s *BaseRelaySuite) logFrame(userID, direction string, raw []byte) {
	if s.Config.DebugJSON {
		s.T().Logf("%s %s %s", userID, direction, strings.TrimSpace(string(raw)))
	}
}

// WithHealth provides a gRPC health client with logging, colors, and JSON debugging
func (s *BaseRelaySuite) WithHealth(name string, fn func(ctx context.Context, client healthpb.HealthClient)) {
	t := s.T()
	if s.Config.HealthAddr == "" {
		t.Skip("HEALTH_ADDR not set")
	}
	s.header(t, name)

	marshaler := protojson.MarshalOptions{
		UseProtoNames:   true,
		Multiline:       true,
		EmitUnpopulated: true,
	}

	conn, err := grpc.NewClient(s.Config.HealthAddr,
		grpc.WithTransportCredentials(insecure.NewCredentials()),
		grpc.WithUnaryInterceptor(func(ctx context.Context, method string, req, reply interface{}, cc *grpc.ClientConn, invoker grpc.UnaryInvoker, opts ...grpc.CallOption) error {
			start := time.Now()
			err := invoker(ctx, method, req, reply, cc, opts...)

			logBuilder := strings.Builder{}
			fmt.Fprintf(&logBuilder, "GRPC %s [%s] in %v", method, status.Code(err), time.Since(start))

			// Log full JSON request/response bodies if E2E_DEBUG_JSON is enabled
			if s.Config.DebugJSON {
				fmt.Fprintln(&logBuilder, "\nREQUEST:")
				fmt.Fprintln(&logBuilder, marshaler.Format(req.(proto.Message)))
				if err != nil {
					fmt.Fprintln(&logBuilder, "ERROR:", err)
				} else {
					fmt.Fprintln(&logBuilder, "RESPONSE:")
					fmt.Fprintln(&logBuilder, marshaler.Format(reply.(proto.Message)))
				}
			}
			t.Log(logBuilder.String())
			return err
		}),
	)
	s.Require().NoError(err, "Failed to connect to gRPC server at "+s.Config.HealthAddr)
	defer conn.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	fn(ctx, healthpb.NewHealthClient(conn))
}
