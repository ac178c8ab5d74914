package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/h2events/go-sdk/pkg/core"
	"github.com/h2events/go-sdk/pkg/core/events"
	"github.com/h2events/go-sdk/pkg/transport"
	"github.com/sirupsen/logrus"
	"google.golang.org/grpc"
)

// Defaults applied to zero Config fields.
const (
	DefaultPath       = "/events"
	DefaultBufferSize = 64
	InfoPath          = "/info"
)

// Server is an inspector that serves tracked batches to websocket and gRPC
// subscribers. It is itself a transport.Consumer: producers hand it
// batches, and every connected subscriber receives each batch as an
// envelope.
type Server struct {
	config   Config
	logger   logrus.FieldLogger
	tracker  *events.Tracker
	upgrader websocket.Upgrader

	mu          sync.Mutex
	subscribers map[*subscriber]struct{}
	httpServer  *http.Server
	grpcServer  *grpc.Server
	shutdown    bool
}

// Config contains configuration options for the server.
type Config struct {
	// Address is the listen address (e.g., "127.0.0.1:8642")
	Address string

	// GRPCAddress is the listen address of the gRPC endpoint used by
	// ListenAndServeGRPC
	GRPCAddress string

	// Path is the websocket endpoint
	Path string

	// BufferSize is the number of batches queued per subscriber. A
	// subscriber whose queue is full is disconnected.
	BufferSize int
}

// Option configures a Server
type Option func(*Server)

// WithLogger sets the logger
func WithLogger(logger logrus.FieldLogger) Option {
	return func(s *Server) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithTracker makes the server track every batch before broadcasting it.
// Batches the tracker refuses are not broadcast, and its summary is served
// on /info.
func WithTracker(tracker *events.Tracker) Option {
	return func(s *Server) {
		s.tracker = tracker
	}
}

// New creates a new inspector server with the specified configuration.
func New(config Config, options ...Option) (*Server, error) {
	if config.Path == "" {
		config.Path = DefaultPath
	}
	if config.BufferSize == 0 {
		config.BufferSize = DefaultBufferSize
	}
	if !strings.HasPrefix(config.Path, "/") || config.Path == InfoPath {
		return nil, &core.ConfigError{
			Field: "Path",
			Value: config.Path,
			Err:   errors.New("path must be absolute and must not be " + InfoPath),
		}
	}
	if config.GRPCAddress != "" && config.GRPCAddress == config.Address && !strings.HasSuffix(config.Address, ":0") {
		return nil, &core.ConfigError{
			Field: "GRPCAddress",
			Value: config.GRPCAddress,
			Err:   errors.New("gRPC address must differ from the websocket address"),
		}
	}
	if config.BufferSize < 0 {
		return nil, &core.ConfigError{
			Field: "BufferSize",
			Value: config.BufferSize,
			Err:   errors.New("buffer size cannot be negative"),
		}
	}

	s := &Server{
		config:      config,
		logger:      logrus.StandardLogger(),
		subscribers: make(map[*subscriber]struct{}),
	}
	for _, opt := range options {
		opt(s)
	}
	return s, nil
}

// Handler returns the HTTP handler serving the websocket endpoint and /info.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc(s.config.Path, s.handleSubscribe)
	mux.HandleFunc(InfoPath, s.handleInfo)
	return mux
}

// HandleBatch tracks batch, when a tracker is set, and queues it for every
// subscriber.
func (s *Server) HandleBatch(ctx context.Context, batch *events.Batch) error {
	if s.tracker != nil {
		if err := s.tracker.HandleBatch(ctx, batch); err != nil {
			return err
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	for sub := range s.subscribers {
		select {
		case sub.queue <- batch:
		default:
			s.logger.WithField("subscriber", sub.id).Warn("subscriber too slow, disconnecting")
			sub.close()
			delete(s.subscribers, sub)
		}
	}
	return nil
}

// Subscribers returns the number of connected subscribers.
func (s *Server) Subscribers() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.subscribers)
}

// ListenAndServe starts the server and listens for incoming connections.
// It returns nil after Shutdown.
func (s *Server) ListenAndServe() error {
	srv := &http.Server{
		Addr:              s.config.Address,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	s.mu.Lock()
	if s.shutdown {
		s.mu.Unlock()
		return nil
	}
	s.httpServer = srv
	s.mu.Unlock()

	s.logger.WithFields(logrus.Fields{
		"address": s.config.Address,
		"path":    s.config.Path,
	}).Info("inspector listening")

	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("listen on %s: %w", s.config.Address, err)
	}
	return nil
}

// Shutdown disconnects every subscriber and gracefully shuts down the HTTP
// and gRPC servers. ListenAndServe and ServeGRPC calls made afterwards
// return immediately.
func (s *Server) Shutdown(ctx context.Context) error {
	s.mu.Lock()
	s.shutdown = true
	for sub := range s.subscribers {
		sub.graceful.Store(true)
		sub.close()
		delete(s.subscribers, sub)
	}
	srv := s.httpServer
	gs := s.grpcServer
	s.mu.Unlock()

	var err error
	if gs != nil {
		err = stopGRPC(ctx, gs)
	}
	if srv != nil {
		err = errors.Join(err, srv.Shutdown(ctx))
	}
	return err
}

func (s *Server) handleSubscribe(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade has already replied to the client
		s.logger.WithError(err).Debug("websocket upgrade failed")
		return
	}

	sub, ok := s.subscribe()
	if !ok {
		_ = transport.NewWebSocketSink(conn).Close()
		return
	}
	log := s.logger.WithFields(logrus.Fields{
		"subscriber":  sub.id,
		"remote_addr": r.RemoteAddr,
	})
	log.Info("subscriber connected")
	defer func() {
		s.unsubscribe(sub)
		log.Info("subscriber disconnected")
	}()

	// Subscribers never send data; reading surfaces their close.
	go func() {
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				sub.close()
				return
			}
		}
	}()

	sink := transport.NewWebSocketSink(conn)
	defer sink.Close()
	sub.pump(sink, log)
}

// subscribe registers a new subscriber. It reports false after Shutdown.
func (s *Server) subscribe() (*subscriber, bool) {
	sub := &subscriber{
		id:    uuid.NewString(),
		queue: make(chan *events.Batch, s.config.BufferSize),
		done:  make(chan struct{}),
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.shutdown {
		return nil, false
	}
	s.subscribers[sub] = struct{}{}
	return sub, true
}

func (s *Server) unsubscribe(sub *subscriber) {
	s.mu.Lock()
	delete(s.subscribers, sub)
	s.mu.Unlock()
}

func (s *Server) handleInfo(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	if s.tracker == nil {
		http.Error(w, "no tracker configured", http.StatusNotFound)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(s.tracker.Info()); err != nil {
		s.logger.WithError(err).Warn("encode info")
	}
}

// pump hands queued batches to sink until the subscriber is closed. After a
// graceful close the batches still queued are written first, so a shutdown
// delivers everything accepted before it.
func (sub *subscriber) pump(sink transport.Consumer, log logrus.FieldLogger) {
	for {
		select {
		case <-sub.done:
			if sub.graceful.Load() {
				sub.flush(sink, log)
			}
			return
		case batch := <-sub.queue:
			if err := sink.HandleBatch(context.Background(), batch); err != nil {
				log.WithError(err).Warn("write failed")
				return
			}
		}
	}
}

func (sub *subscriber) flush(sink transport.Consumer, log logrus.FieldLogger) {
	for {
		select {
		case batch := <-sub.queue:
			if err := sink.HandleBatch(context.Background(), batch); err != nil {
				log.WithError(err).Debug("flush failed")
				return
			}
		default:
			return
		}
	}
}

type subscriber struct {
	id    string
	queue chan *events.Batch
	done  chan struct{}
	once  sync.Once

	// graceful is set before done is closed when queued batches should
	// still be written.
	graceful atomic.Bool
}

func (s *subscriber) close() {
	s.once.Do(func() { close(s.done) })
}
