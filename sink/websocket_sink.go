package sink

import (
	"chat-relay/domain/event"
	"chat-relay/errors"
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

// FrameWriter is the write half of a websocket connection.
type FrameWriter interface {
	WriteMessage(messageType int, data []byte) error
	WriteControl(messageType int, data []byte, deadline time.Time) error
	SetWriteDeadline(t time.Time) error
	Close() error
}

type Encoder interface {
	Encode(e event.ServerEvent) ([]byte, error)
}

type Config struct {
	BufferSize   int
	WriteTimeout time.Duration
	PingInterval time.Duration
}

// WebSocketSink queues encoded events for a single writer goroutine.
// Consume never blocks: a full queue means the peer is not reading anymore.
type WebSocketSink struct {
	log       *slog.Logger
	conn      FrameWriter
	encoder   Encoder
	cfg       Config
	queue     chan []byte
	done      chan struct{}
	closeOnce sync.Once
}

func NewWebSocketSink(log *slog.Logger, conn FrameWriter, encoder Encoder, cfg Config) *WebSocketSink {
	if cfg.BufferSize <= 0 {
		cfg.BufferSize = 1
	}
	return &WebSocketSink{
		log:     log,
		conn:    conn,
		encoder: encoder,
		cfg:     cfg,
		queue:   make(chan []byte, cfg.BufferSize),
		done:    make(chan struct{}),
	}
}

func (s *WebSocketSink) Consume(_ context.Context, e event.ServerEvent) error {
	select {
	case <-s.done:
		return errors.Wrap(errors.ErrConnectionLost, "sink closed")
	default:
	}

	frame, err := s.encoder.Encode(e)
	if err != nil {
		// Not the peer's fault, keep the connection
		s.log.Error("Event not encodable, dropped", "type", e.Type(), "error", err)
		return nil
	}

	select {
	case s.queue <- frame:
		return nil
	case <-s.done:
		return errors.Wrap(errors.ErrConnectionLost, "sink closed")
	default:
		return errors.Wrap(errors.ErrConnectionLost, "send queue full")
	}
}

// Close is idempotent. The writer flushes what is queued, says goodbye and closes the socket.
func (s *WebSocketSink) Close() error {
	s.closeOnce.Do(func() { close(s.done) })
	return nil
}

// Run is the writer pump. It owns every write to the socket.
func (s *WebSocketSink) Run(ctx context.Context) error {
	var ping <-chan time.Time
	if s.cfg.PingInterval > 0 {
		ticker := time.NewTicker(s.cfg.PingInterval)
		defer ticker.Stop()
		ping = ticker.C
	}
	defer func() {
		_ = s.Close()
		_ = s.conn.Close()
	}()

	for {
		select {
		case <-ctx.Done():
			s.goodbye(websocket.CloseGoingAway)
			return nil
		case <-s.done:
			s.flush()
			s.goodbye(websocket.CloseNormalClosure)
			return nil
		case frame := <-s.queue:
			if err := s.write(frame); err != nil {
				return errors.Wrap(errors.ErrConnectionLost, err.Error())
			}
		case <-ping:
			if err := s.conn.WriteControl(websocket.PingMessage, nil, s.deadline()); err != nil {
				return errors.Wrap(errors.ErrConnectionLost, err.Error())
			}
		}
	}
}

func (s *WebSocketSink) write(frame []byte) error {
	if err := s.conn.SetWriteDeadline(s.deadline()); err != nil {
		return err
	}
	return s.conn.WriteMessage(websocket.TextMessage, frame)
}

func (s *WebSocketSink) flush() {
	for {
		select {
		case frame := <-s.queue:
			if err := s.write(frame); err != nil {
				return
			}
		default:
			return
		}
	}
}

func (s *WebSocketSink) goodbye(code int) {
	msg := websocket.FormatCloseMessage(code, "")
	_ = s.conn.WriteControl(websocket.CloseMessage, msg, s.deadline())
}

func (s *WebSocketSink) deadline() time.Time {
	if s.cfg.WriteTimeout <= 0 {
		return time.Time{}
	}
	return time.Now().Add(s.cfg.WriteTimeout)
}
