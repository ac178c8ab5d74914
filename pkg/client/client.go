package client

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"path"
	"sync"

	"github.com/gorilla/websocket"
	"github.com/h2events/go-sdk/pkg/core"
	"github.com/h2events/go-sdk/pkg/core/events"
	"github.com/h2events/go-sdk/pkg/transport"
	"github.com/sirupsen/logrus"
)

// DefaultPath is the websocket endpoint used when Config.Path is empty.
const DefaultPath = "/events"

// Client subscribes to an inspector server.
type Client struct {
	// baseURL is the base URL of the inspector
	baseURL *url.URL
	path    string

	dialer     *websocket.Dialer
	httpClient *http.Client
	logger     logrus.FieldLogger

	mu     sync.Mutex
	conns  map[*websocket.Conn]struct{}
	closed bool
}

// Config contains configuration options for the client.
type Config struct {
	// BaseURL is the base URL of the inspector, with an http, https, ws
	// or wss scheme
	BaseURL string

	// Path is the websocket endpoint, relative to BaseURL
	Path string
}

// Option configures a Client
type Option func(*Client)

// WithLogger sets the logger
func WithLogger(logger logrus.FieldLogger) Option {
	return func(c *Client) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// WithDialer sets the websocket dialer
func WithDialer(dialer *websocket.Dialer) Option {
	return func(c *Client) {
		if dialer != nil {
			c.dialer = dialer
		}
	}
}

// WithHTTPClient sets the HTTP client used by Info
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		if hc != nil {
			c.httpClient = hc
		}
	}
}

// New creates a new client with the specified configuration.
func New(config Config, options ...Option) (*Client, error) {
	if config.BaseURL == "" {
		return nil, &core.ConfigError{
			Field: "BaseURL",
			Value: config.BaseURL,
			Err:   errors.New("base URL cannot be empty"),
		}
	}

	baseURL, err := url.Parse(config.BaseURL)
	if err != nil {
		return nil, &core.ConfigError{
			Field: "BaseURL",
			Value: config.BaseURL,
			Err:   fmt.Errorf("invalid base URL: %w", err),
		}
	}
	switch baseURL.Scheme {
	case "http", "https", "ws", "wss":
	default:
		return nil, &core.ConfigError{
			Field: "BaseURL",
			Value: config.BaseURL,
			Err:   fmt.Errorf("unsupported scheme %q", baseURL.Scheme),
		}
	}

	p := config.Path
	if p == "" {
		p = DefaultPath
	}

	c := &Client{
		baseURL:    baseURL,
		path:       p,
		dialer:     websocket.DefaultDialer,
		httpClient: http.DefaultClient,
		logger:     logrus.StandardLogger(),
		conns:      make(map[*websocket.Conn]struct{}),
	}
	for _, opt := range options {
		opt(c)
	}
	return c, nil
}

// endpoint resolves p against the base URL using scheme.
func (c *Client) endpoint(scheme, p string) string {
	u := *c.baseURL
	u.Scheme = scheme
	u.Path = path.Join("/", c.baseURL.Path, p)
	return u.String()
}

func (c *Client) websocketURL() string {
	switch c.baseURL.Scheme {
	case "https", "wss":
		return c.endpoint("wss", c.path)
	default:
		return c.endpoint("ws", c.path)
	}
}

func (c *Client) httpURL(p string) string {
	switch c.baseURL.Scheme {
	case "https", "wss":
		return c.endpoint("https", p)
	default:
		return c.endpoint("http", p)
	}
}

func (c *Client) dial(ctx context.Context) (*websocket.Conn, error) {
	c.mu.Lock()
	closed := c.closed
	c.mu.Unlock()
	if closed {
		return nil, errors.New("client closed")
	}

	target := c.websocketURL()
	conn, _, err := c.dialer.DialContext(ctx, target, nil)
	if err != nil {
		return nil, fmt.Errorf("dial %s: %w", target, err)
	}

	c.mu.Lock()
	c.conns[conn] = struct{}{}
	c.mu.Unlock()
	c.logger.WithField("url", target).Debug("subscribed")
	return conn, nil
}

func (c *Client) release(conn *websocket.Conn) {
	c.mu.Lock()
	delete(c.conns, conn)
	c.mu.Unlock()
	conn.Close()
}

// Subscribe connects to the inspector and hands every received batch to
// consumer until the server closes the connection, ctx is done, or the
// consumer fails. A normal closure by the server returns nil.
func (c *Client) Subscribe(ctx context.Context, consumer transport.Consumer) error {
	conn, err := c.dial(ctx)
	if err != nil {
		return err
	}
	defer c.release(conn)

	stop := context.AfterFunc(ctx, func() { conn.Close() })
	defer stop()

	for {
		batch, err := transport.ReadBatch(conn)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				return nil
			}
			return fmt.Errorf("read batch: %w", err)
		}
		if err := consumer.HandleBatch(ctx, batch); err != nil {
			return fmt.Errorf("handle batch %s: %w", batch.ID(), err)
		}
	}
}

// Stream opens a subscription and delivers batches on the returned
// channel, which is closed when the subscription ends.
func (c *Client) Stream(ctx context.Context) (<-chan *events.Batch, error) {
	conn, err := c.dial(ctx)
	if err != nil {
		return nil, err
	}

	out := make(chan *events.Batch)
	go func() {
		defer close(out)
		defer c.release(conn)
		stop := context.AfterFunc(ctx, func() { conn.Close() })
		defer stop()

		for {
			batch, err := transport.ReadBatch(conn)
			if err != nil {
				if ctx.Err() == nil && !websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
					c.logger.WithError(err).Warn("stream ended")
				}
				return
			}
			select {
			case out <- batch:
			case <-ctx.Done():
				return
			}
		}
	}()
	return out, nil
}

// Info fetches the tracker summary of the inspector.
func (c *Client) Info(ctx context.Context) (*events.TrackerInfo, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.httpURL("/info"), nil)
	if err != nil {
		return nil, err
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch info: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("fetch info: unexpected status %s", resp.Status)
	}
	var info events.TrackerInfo
	if err := json.NewDecoder(resp.Body).Decode(&info); err != nil {
		return nil, fmt.Errorf("decode info: %w", err)
	}
	return &info, nil
}

// Close closes the client and every open subscription.
func (c *Client) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closed = true
	for conn := range c.conns {
		conn.Close()
		delete(c.conns, conn)
	}
	return nil
}
