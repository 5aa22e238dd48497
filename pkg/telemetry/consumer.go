// Package telemetry consumes live match snapshots over WebSocket and
// keeps the match store current.
package telemetry

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"github.com/jsales362-jpg/betsignal/pkg/match"
)

// State represents the feed connection state.
type State int32

const (
	StateDisconnected State = iota
	StateConnecting
	StateConnected
	StateReconnecting
	StateClosed
)

func (s State) String() string {
	switch s {
	case StateDisconnected:
		return "disconnected"
	case StateConnecting:
		return "connecting"
	case StateConnected:
		return "connected"
	case StateReconnecting:
		return "reconnecting"
	case StateClosed:
		return "closed"
	default:
		return "unknown"
	}
}

// Config holds telemetry feed configuration.
type Config struct {
	// URL is the telemetry WebSocket endpoint.
	URL string

	// Reconnect settings
	ReconnectMinDelay time.Duration
	ReconnectMaxDelay time.Duration

	// Heartbeat and read deadline
	HeartbeatInterval time.Duration
	HeartbeatTimeout  time.Duration
	ReadTimeout       time.Duration
}

// DefaultConfig returns a config with sensible defaults.
func DefaultConfig(url string) Config {
	return Config{
		URL:               url,
		ReconnectMinDelay: 1 * time.Second,
		ReconnectMaxDelay: 30 * time.Second,
		HeartbeatInterval: 30 * time.Second,
		HeartbeatTimeout:  10 * time.Second,
		ReadTimeout:       60 * time.Second,
	}
}

// envelope is the wire frame the telemetry feed sends.
type envelope struct {
	Type    string           `json:"type"`
	Match   *match.Snapshot  `json:"match,omitempty"`
	Matches []match.Snapshot `json:"matches,omitempty"`
	MatchID string           `json:"matchId,omitempty"`
}

const (
	frameSnapshot = "snapshot" // full-state replace
	frameUpdate   = "update"   // single match upsert
	frameRemove   = "remove"   // match dropped by the provider
)

// Consumer maintains the telemetry connection and applies incoming
// frames to the match store.
type Consumer struct {
	config  Config
	matches *match.Store
	log     zerolog.Logger

	conn   *websocket.Conn
	connMu sync.RWMutex
	state  int32 // atomic State

	closeCh   chan struct{}
	closeOnce sync.Once

	// reconnectAttempts is touched by both Connect and the reconnect
	// goroutine, so it is accessed atomically like state.
	reconnectAttempts int32

	// OnOnline is invoked on connect (true) and disconnect (false).
	OnOnline func(online bool)
	// OnApply is invoked after each frame is applied to the store.
	OnApply func()
}

// NewConsumer creates a telemetry consumer feeding the given store.
func NewConsumer(config Config, matches *match.Store, log zerolog.Logger) *Consumer {
	return &Consumer{
		config:  config,
		matches: matches,
		log:     log,
		closeCh: make(chan struct{}),
	}
}

// Connect dials the telemetry endpoint and starts the read loop.
func (c *Consumer) Connect(ctx context.Context) error {
	if c.getState() == StateClosed {
		return errors.New("consumer is closed")
	}

	c.setState(StateConnecting)

	dialer := websocket.Dialer{}
	conn, _, err := dialer.DialContext(ctx, c.config.URL, nil)
	if err != nil {
		c.setState(StateDisconnected)
		return fmt.Errorf("telemetry dial failed: %w", err)
	}

	c.connMu.Lock()
	c.conn = conn
	c.connMu.Unlock()

	c.setState(StateConnected)
	atomic.StoreInt32(&c.reconnectAttempts, 0)
	c.log.Info().Str("url", c.config.URL).Msg("telemetry connected")

	if c.OnOnline != nil {
		c.OnOnline(true)
	}

	go c.readLoop()
	if c.config.HeartbeatInterval > 0 {
		go c.heartbeatLoop()
	}

	return nil
}

// Close shuts the consumer down permanently.
func (c *Consumer) Close() error {
	c.closeOnce.Do(func() {
		c.setState(StateClosed)
		close(c.closeCh)

		c.connMu.Lock()
		if c.conn != nil {
			c.conn.Close()
		}
		c.connMu.Unlock()
	})
	return nil
}

// State returns the current connection state.
func (c *Consumer) State() State {
	return c.getState()
}

// IsConnected returns true if the feed is live.
func (c *Consumer) IsConnected() bool {
	return c.getState() == StateConnected
}

func (c *Consumer) getState() State {
	return State(atomic.LoadInt32(&c.state))
}

func (c *Consumer) setState(s State) {
	atomic.StoreInt32(&c.state, int32(s))
}

func (c *Consumer) readLoop() {
	defer func() {
		if c.getState() != StateClosed {
			c.handleDisconnect()
		}
	}()

	for {
		select {
		case <-c.closeCh:
			return
		default:
		}

		c.connMu.RLock()
		conn := c.conn
		c.connMu.RUnlock()

		if conn == nil {
			return
		}

		if c.config.ReadTimeout > 0 {
			conn.SetReadDeadline(time.Now().Add(c.config.ReadTimeout))
		}

		_, data, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				return
			}
			c.log.Warn().Err(err).Msg("telemetry read failed")
			return
		}

		c.Apply(data)
	}
}

// Apply decodes one telemetry frame and updates the match store.
// Malformed frames are logged and dropped.
func (c *Consumer) Apply(data []byte) {
	var env envelope
	if err := json.Unmarshal(data, &env); err != nil {
		c.log.Warn().Err(err).Msg("telemetry frame decode failed")
		return
	}

	switch env.Type {
	case frameSnapshot:
		c.applySnapshot(env.Matches)
	case frameUpdate:
		if env.Match == nil {
			c.log.Warn().Msg("telemetry update frame without match")
			return
		}
		c.matches.Upsert(*env.Match)
	case frameRemove:
		if env.MatchID == "" {
			return
		}
		c.matches.Remove(env.MatchID)
	default:
		c.log.Debug().Str("type", env.Type).Msg("ignoring unknown telemetry frame")
		return
	}

	if c.OnApply != nil {
		c.OnApply()
	}
}

// applySnapshot replaces the tracked set with the frame contents.
// Matches missing from the frame are dropped.
func (c *Consumer) applySnapshot(snapshots []match.Snapshot) {
	seen := make(map[string]bool, len(snapshots))
	for _, snap := range snapshots {
		c.matches.Upsert(snap)
		seen[snap.ID] = true
	}

	for _, existing := range c.matches.List() {
		if !seen[existing.ID] {
			c.matches.Remove(existing.ID)
		}
	}
}

func (c *Consumer) heartbeatLoop() {
	ticker := time.NewTicker(c.config.HeartbeatInterval)
	defer ticker.Stop()

	for {
		select {
		case <-c.closeCh:
			return
		case <-ticker.C:
			if c.getState() != StateConnected {
				continue
			}

			c.connMu.RLock()
			conn := c.conn
			c.connMu.RUnlock()

			if conn == nil {
				continue
			}

			deadline := time.Now().Add(c.config.HeartbeatTimeout)
			if err := conn.WriteControl(websocket.PingMessage, nil, deadline); err != nil {
				c.log.Warn().Err(err).Msg("telemetry heartbeat failed")
			}
		}
	}
}

func (c *Consumer) handleDisconnect() {
	c.setState(StateDisconnected)
	c.log.Warn().Msg("telemetry disconnected")

	if c.OnOnline != nil {
		c.OnOnline(false)
	}

	go c.reconnect()
}

func (c *Consumer) reconnect() {
	c.setState(StateReconnecting)

	for {
		if c.getState() == StateClosed {
			return
		}

		attempt := atomic.AddInt32(&c.reconnectAttempts, 1)

		delay := c.config.ReconnectMinDelay * time.Duration(1<<uint(attempt-1))
		if delay > c.config.ReconnectMaxDelay || delay <= 0 {
			delay = c.config.ReconnectMaxDelay
		}

		select {
		case <-c.closeCh:
			return
		case <-time.After(delay):
		}

		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		err := c.Connect(ctx)
		cancel()

		if err == nil {
			return
		}

		c.log.Warn().
			Err(err).
			Int32("attempt", attempt).
			Msg("telemetry reconnect failed")
	}
}
