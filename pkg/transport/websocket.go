package transport

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/h2events/go-sdk/pkg/core/events"
)

// DefaultWriteTimeout bounds a single websocket write when the context has
// no deadline.
const DefaultWriteTimeout = 10 * time.Second

// ErrSinkClosed is returned by a WebSocketSink after Close.
var ErrSinkClosed = errors.New("websocket sink closed")

// WebSocketSink is a Consumer that writes every batch to a websocket
// connection as a JSON envelope in a text message.
type WebSocketSink struct {
	conn         *websocket.Conn
	writeTimeout time.Duration

	mu     sync.Mutex
	closed bool
}

// SinkOption configures a WebSocketSink
type SinkOption func(*WebSocketSink)

// WithWriteTimeout sets the write deadline used when the context has none
func WithWriteTimeout(d time.Duration) SinkOption {
	return func(s *WebSocketSink) {
		if d > 0 {
			s.writeTimeout = d
		}
	}
}

// NewWebSocketSink wraps an established connection.
func NewWebSocketSink(conn *websocket.Conn, options ...SinkOption) *WebSocketSink {
	s := &WebSocketSink{conn: conn, writeTimeout: DefaultWriteTimeout}
	for _, opt := range options {
		opt(s)
	}
	return s
}

// HandleBatch encodes and writes one batch. Writes are serialised.
func (s *WebSocketSink) HandleBatch(ctx context.Context, batch *events.Batch) error {
	data, err := EncodeBatch(batch)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return ErrSinkClosed
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	deadline, ok := ctx.Deadline()
	if !ok {
		deadline = time.Now().Add(s.writeTimeout)
	}
	if err := s.conn.SetWriteDeadline(deadline); err != nil {
		return fmt.Errorf("set write deadline: %w", err)
	}
	if err := s.conn.WriteMessage(websocket.TextMessage, data); err != nil {
		return fmt.Errorf("write batch %s: %w", batch.ID(), err)
	}
	return nil
}

// Close sends a normal closure message and closes the connection.
func (s *WebSocketSink) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil
	}
	s.closed = true

	msg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "")
	_ = s.conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(time.Second))
	return s.conn.Close()
}

// ReadBatch reads the next message from conn and decodes it as a batch.
func ReadBatch(conn *websocket.Conn) (*events.Batch, error) {
	messageType, data, err := conn.ReadMessage()
	if err != nil {
		return nil, err
	}
	switch messageType {
	case websocket.TextMessage:
		return DecodeBatch(data)
	case websocket.BinaryMessage:
		return DecodeBatchProto(data)
	default:
		return nil, fmt.Errorf("unexpected websocket message type %d", messageType)
	}
}
