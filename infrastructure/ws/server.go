package ws

import (
	"chat-relay/auth"
	"chat-relay/codec"
	"chat-relay/contract"
	"chat-relay/observability"
	"chat-relay/runtime"
	"chat-relay/sink"
	"context"
	"encoding/json"
	stderrors "errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
)

const shutdownTimeout = 5 * time.Second

type Config struct {
	Address        string
	MaxFrameSize   int64
	SendBufferSize int
	WriteTimeout   time.Duration
	// PingInterval and PongTimeout at zero disable the liveness pings:
	// dead peers are then only found on the next failed send.
	PingInterval time.Duration
	PongTimeout  time.Duration
}

// Server accepts authenticated websocket connections and feeds their frames to the hub.
type Server struct {
	log           *slog.Logger
	cfg           Config
	hub           *runtime.Hub
	authenticator contract.IAuthenticator
	codec         *codec.Codec
	monitoring    *observability.MonitoringManager
	upgrader      websocket.Upgrader
}

func NewServer(log *slog.Logger, cfg Config, hub *runtime.Hub, authenticator contract.IAuthenticator,
	monitoring *observability.MonitoringManager) *Server {
	return &Server{
		log:           log,
		cfg:           cfg,
		hub:           hub,
		authenticator: authenticator,
		codec:         codec.New(),
		monitoring:    monitoring,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
			// Browsers connect from the web app origin; the bearer token is the gate
			CheckOrigin: func(r *http.Request) bool { return true },
		},
	}
}

func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/ws", s.serveWS)
	mux.HandleFunc("/stats", s.serveStats)
	return mux
}

// Run serves until ctx is canceled. Upgraded connections are not tracked by
// http.Server, the hub shutdown closes them.
func (s *Server) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.cfg.Address,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	errChan := make(chan error, 1)
	go func() {
		s.log.Info("Starting websocket server", "address", s.cfg.Address, "at", time.Now().UTC())
		errChan <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	case err := <-errChan:
		if stderrors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
}

func (s *Server) serveWS(w http.ResponseWriter, r *http.Request) {
	token := auth.BearerToken(r.Header.Get("Authorization"))
	if token == "" {
		token = r.URL.Query().Get("token")
	}
	userID, err := s.authenticator.Authenticate(r.Context(), token)
	if err != nil {
		s.log.Debug("Handshake refused", "remote", r.RemoteAddr, "error", err)
		http.Error(w, http.StatusText(http.StatusUnauthorized), http.StatusUnauthorized)
		return
	}
	if !s.hub.Serving() {
		http.Error(w, http.StatusText(http.StatusServiceUnavailable), http.StatusServiceUnavailable)
		return
	}

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// The upgrader already answered the client
		s.log.Debug("Upgrade failed", "user_id", userID, "error", err)
		return
	}
	if s.cfg.MaxFrameSize > 0 {
		conn.SetReadLimit(s.cfg.MaxFrameSize)
	}

	ctx := r.Context()
	out := sink.NewWebSocketSink(s.log, conn, s.codec, sink.Config{
		BufferSize:   s.cfg.SendBufferSize,
		WriteTimeout: s.cfg.WriteTimeout,
		PingInterval: s.cfg.PingInterval,
	})
	writerDone := make(chan struct{})
	go func() {
		defer close(writerDone)
		if err := out.Run(ctx); err != nil {
			s.log.Debug("Writer stopped", "user_id", userID, "error", err)
		}
	}()

	hubConn, err := s.hub.Connect(ctx, userID, out)
	if err != nil {
		s.log.Warn("Connection not established", "user_id", userID, "error", err)
		_ = out.Close()
		<-writerDone
		return
	}
	s.monitoring.IncrConnectionsOpened()

	s.readLoop(ctx, conn, hubConn)

	s.hub.Disconnect(ctx, hubConn)
	s.monitoring.IncrConnectionsClosed()
	<-writerDone
}

// readLoop handles frames one at a time, which keeps per connection ordering.
func (s *Server) readLoop(ctx context.Context, conn *websocket.Conn, hubConn *runtime.Connection) {
	s.extendDeadline(conn)
	if s.cfg.PongTimeout > 0 {
		conn.SetPongHandler(func(string) error {
			s.extendDeadline(conn)
			return nil
		})
	}

	for {
		_, frame, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				s.log.Debug("Read failed", "user_id", hubConn.UserID, "error", err)
			}
			return
		}
		s.extendDeadline(conn)
		s.monitoring.IncrFramesReceived()

		e, err := s.codec.Decode(frame)
		if err != nil {
			s.monitoring.IncrFramesRejected()
			s.hub.Reject(ctx, hubConn, err)
			continue
		}
		s.hub.Handle(ctx, hubConn, e)
	}
}

func (s *Server) extendDeadline(conn *websocket.Conn) {
	if s.cfg.PongTimeout > 0 {
		_ = conn.SetReadDeadline(time.Now().Add(s.cfg.PongTimeout))
	}
}

func (s *Server) serveStats(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(s.monitoring.GetLatest()); err != nil {
		s.log.Warn("Stats not written", "error", err)
	}
}
