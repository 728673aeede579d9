package obs

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/andreykaipov/goobs"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

var (
	// ErrMaxReconnectsExceeded is returned when the maximum number of reconnect attempts is exceeded.
	ErrMaxReconnectsExceeded = errors.New("max reconnects exceeded")

	// ErrNotConnected is returned by requests issued while no session is identified,
	// and by requests still in flight when the connection drops.
	ErrNotConnected = errors.New("obs: not connected")

	// ErrAuthFailed is returned when OBS rejects the password.
	ErrAuthFailed = errors.New("obs: authentication failed")

	errEventStreamClosed = errors.New("obs: event stream closed")
)

// closeAuthenticationFailed is the close code OBS sends when Identify auth is wrong.
const closeAuthenticationFailed = 4009

// disconnectGrace is how long a failed request waits for a pending disconnect
// to be noticed, so a dropped connection reports ErrNotConnected.
const disconnectGrace = 100 * time.Millisecond

// RequestError is returned when OBS fails a request.
type RequestError struct {
	RequestType string
	Err         error
}

func (e *RequestError) Error() string {
	return fmt.Sprintf("obs: %s failed: %v", e.RequestType, e.Err)
}

func (e *RequestError) Unwrap() error {
	return e.Err
}

// Config contains connection and reconnection settings for a Session.
type Config struct {
	Address          string
	Password         string
	RequestTimeout   time.Duration // 0 = no per-request timeout
	HandshakeTimeout time.Duration
	KeepAlive        time.Duration // Liveness probe interval, 0 = disabled

	MinBackoff    time.Duration // Minimum backoff between reconnects
	MaxBackoff    time.Duration // Maximum backoff between reconnects
	Multiplier    float64       // Backoff multiplier
	MaxReconnects int           // Max reconnect attempts, 0 = infinite

	EventBuffer int
}

// DefaultConfig returns sensible defaults for a local OBS instance.
func DefaultConfig() Config {
	return Config{
		Address:          "localhost:4455",
		RequestTimeout:   10 * time.Second,
		HandshakeTimeout: 10 * time.Second,
		KeepAlive:        5 * time.Second,
		MinBackoff:       1 * time.Second,
		MaxBackoff:       2 * time.Minute,
		Multiplier:       2.0,
		MaxReconnects:    0, // infinite
		EventBuffer:      64,
	}
}

// Session maintains a goobs client, issues requests and publishes decoded
// events on the Events channel.
type Session struct {
	config Config
	events chan Event
	logger zerolog.Logger

	mu     sync.Mutex
	client *goobs.Client
	lost   chan struct{} // closed when client's connection drops

	connected atomic.Bool
}

// NewSession creates a session. Nothing is dialed until Run is called.
func NewSession(config Config) *Session {
	if config.EventBuffer <= 0 {
		config.EventBuffer = 64
	}
	if config.HandshakeTimeout <= 0 {
		config.HandshakeTimeout = 10 * time.Second
	}
	if config.Multiplier < 1 {
		config.Multiplier = 1
	}
	return &Session{
		config: config,
		events: make(chan Event, config.EventBuffer),
		logger: log.With().Str("component", "goobs").Logger().Level(zerolog.DebugLevel),
	}
}

// Events returns the channel events are published on.
// It is closed when Run returns.
func (s *Session) Events() <-chan Event {
	return s.events
}

// Connected reports whether the session is currently identified.
func (s *Session) Connected() bool {
	return s.connected.Load()
}

// URL returns the websocket URL derived from the configured address.
func (s *Session) URL() string {
	return "ws://" + s.host()
}

// host strips whitespace and a ws:// prefix; goobs adds the scheme itself.
func (s *Session) host() string {
	return strings.TrimPrefix(strings.TrimSpace(s.config.Address), "ws://")
}

// Run connects to OBS and keeps the session alive with automatic reconnection.
// Returns ErrMaxReconnectsExceeded if max reconnects is exceeded, nil on context cancellation.
func (s *Session) Run(ctx context.Context) error {
	defer close(s.events)

	retryCount := 0
	currentBackoff := s.config.MinBackoff

	for {
		select {
		case <-ctx.Done():
			return nil
		default:
		}

		identified, err := s.connect(ctx)
		if ctx.Err() != nil {
			return nil
		}

		// Reset retry count and backoff once a session was established
		if identified {
			retryCount = 0
			currentBackoff = s.config.MinBackoff
		}

		retryCount++

		// Check if we exceeded max reconnects
		if s.config.MaxReconnects > 0 && retryCount > s.config.MaxReconnects {
			log.Error().
				Err(err).
				Int("max_reconnects", s.config.MaxReconnects).
				Msg("OBS session: max reconnects exceeded, terminating")
			return ErrMaxReconnectsExceeded
		}

		log.Warn().
			Err(err).
			Dur("backoff", currentBackoff).
			Int("retry", retryCount).
			Int("max_reconnects", s.config.MaxReconnects).
			Msg("OBS session disconnected, reconnecting")

		select {
		case <-ctx.Done():
			return nil
		case <-time.After(currentBackoff):
		}

		// Calculate next backoff with multiplier, capped at max
		nextBackoff := time.Duration(float64(currentBackoff) * s.config.Multiplier)
		if nextBackoff > s.config.MaxBackoff {
			nextBackoff = s.config.MaxBackoff
		}
		currentBackoff = nextBackoff
	}
}

// connect identifies with OBS and pumps events until the connection drops.
// The returned bool reports whether identification succeeded.
func (s *Session) connect(ctx context.Context) (bool, error) {
	client, err := s.dial(ctx)
	if err != nil {
		return false, err
	}

	lost := make(chan struct{})
	s.mu.Lock()
	s.client = client
	s.lost = lost
	s.mu.Unlock()
	s.connected.Store(true)
	defer s.disconnect(client, lost)

	log.Info().Str("address", s.URL()).Msg("Connected to OBS")

	return true, s.watch(ctx, client)
}

type dialResult struct {
	client *goobs.Client
	err    error
}

// dial runs the goobs handshake, bounded by ctx and HandshakeTimeout.
func (s *Session) dial(ctx context.Context) (*goobs.Client, error) {
	res := make(chan dialResult, 1)
	go func() {
		client, err := goobs.New(s.host(),
			goobs.WithPassword(s.config.Password),
			goobs.WithEventSubscriptions(Subscriptions),
			goobs.WithLogger(&s.logger),
		)
		res <- dialResult{client: client, err: err}
	}()

	timer := time.NewTimer(s.config.HandshakeTimeout)
	defer timer.Stop()

	select {
	case r := <-res:
		if r.err != nil {
			return nil, classifyDialError(s.URL(), r.err)
		}
		return r.client, nil
	case <-ctx.Done():
		go abandon(res)
		return nil, ctx.Err()
	case <-timer.C:
		go abandon(res)
		return nil, fmt.Errorf("connect %s: handshake timed out after %s", s.URL(), s.config.HandshakeTimeout)
	}
}

// abandon disconnects a client whose handshake finished after we stopped waiting.
func abandon(res <-chan dialResult) {
	if r := <-res; r.client != nil {
		r.client.Disconnect()
	}
}

func classifyDialError(url string, err error) error {
	var closeErr *websocket.CloseError
	if errors.As(err, &closeErr) && closeErr.Code == closeAuthenticationFailed {
		return ErrAuthFailed
	}
	return fmt.Errorf("connect %s: %w", url, err)
}

// watch publishes events and probes liveness until the connection drops or ctx ends.
func (s *Session) watch(ctx context.Context, client *goobs.Client) error {
	var probe <-chan time.Time
	if s.config.KeepAlive > 0 {
		ticker := time.NewTicker(s.config.KeepAlive)
		defer ticker.Stop()
		probe = ticker.C
	}

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case raw, ok := <-client.IncomingEvents:
			if !ok {
				return errEventStreamClosed
			}
			if ev, ok := decodeEvent(raw); ok {
				s.publish(ev)
			}

		case <-probe:
			pctx, cancel := context.WithTimeout(ctx, s.config.KeepAlive)
			err := await(pctx, func() error {
				_, err := client.General.GetVersion()
				return err
			})
			cancel()
			if err != nil {
				return fmt.Errorf("keepalive: %w", err)
			}
		}
	}
}

// publish queues an event without blocking the event pump.
// Request responses must keep flowing while the consumer is busy.
func (s *Session) publish(ev Event) {
	select {
	case s.events <- ev:
	default:
		log.Warn().Str("event", EventName(ev)).Msg("OBS event queue full, dropping event")
	}
}

// disconnect drops the client and fails all in-flight requests.
func (s *Session) disconnect(client *goobs.Client, lost chan struct{}) {
	s.connected.Store(false)

	s.mu.Lock()
	s.client = nil
	s.lost = nil
	s.mu.Unlock()

	close(lost)
	if err := client.Disconnect(); err != nil {
		log.Debug().Err(err).Msg("OBS disconnect")
	}
}

// call runs one goobs request against the current client.
func (s *Session) call(ctx context.Context, requestType string, fn func(c *goobs.Client) error) error {
	s.mu.Lock()
	client, lost := s.client, s.lost
	s.mu.Unlock()
	if client == nil {
		return ErrNotConnected
	}

	if s.config.RequestTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.config.RequestTimeout)
		defer cancel()
	}

	log.Trace().Str("request", requestType).Msg("OBS request")

	errc := make(chan error, 1)
	go func() { errc <- fn(client) }()

	select {
	case <-ctx.Done():
		return fmt.Errorf("%s: %w", requestType, ctx.Err())
	case <-lost:
		return ErrNotConnected
	case err := <-errc:
		if err == nil {
			return nil
		}
		// goobs may fail the request before the event pump sees the drop
		select {
		case <-lost:
			return ErrNotConnected
		case <-time.After(disconnectGrace):
		}
		return &RequestError{RequestType: requestType, Err: err}
	}
}

// await runs fn and returns its error, or ctx's error if ctx ends first.
func await(ctx context.Context, fn func() error) error {
	errc := make(chan error, 1)
	go func() { errc <- fn() }()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case err := <-errc:
		return err
	}
}
