package feed

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"

	"github.com/bitmex-tools/feedrelay/internal/model"
	"github.com/bitmex-tools/feedrelay/internal/signer"
)

// Conn is one upstream feed connection for one account.
type Conn struct {
	cfg     Config
	cred    model.AccountCredential
	pub     Publisher
	release ReleaseFunc
	logger  *slog.Logger

	state atomic.Int32
	done  chan struct{}
}

// New creates a feed connection. It does not dial until Start.
func New(cfg Config, cred model.AccountCredential, pub Publisher, release ReleaseFunc, logger *slog.Logger) *Conn {
	if logger == nil {
		logger = slog.Default()
	}
	return &Conn{
		cfg:     cfg,
		cred:    cred,
		pub:     pub,
		release: release,
		logger:  logger.With("account", cred.Name),
		done:    make(chan struct{}),
	}
}

// Account returns the account this feed serves.
func (c *Conn) Account() string { return c.cred.Name }

// State returns the current lifecycle state.
func (c *Conn) State() State { return State(c.state.Load()) }

// Done is closed once the feed has fully terminated.
func (c *Conn) Done() <-chan struct{} { return c.done }

func (c *Conn) setState(s State) { c.state.Store(int32(s)) }

// Start runs the connect/stream/reconnect loop in its own goroutine.
func (c *Conn) Start(ctx context.Context) {
	go c.run(ctx)
}

// run drives the state machine:
//
//	Connecting → Streaming → (on drop) Reconnecting → Streaming | Stopped
//
// Stopped is reached only when the owner releases the feed at a
// reconnect decision point; a healthy connection with subscribers is
// never voluntarily closed.
func (c *Conn) run(ctx context.Context) {
	defer close(c.done)
	defer c.setState(StateStopped)

	attempt := 0
	for {
		if ctx.Err() != nil {
			return
		}

		// Interest is checked before any credentials are signed, so a
		// released feed never computes headers it will not use.
		if c.release() {
			c.logger.Info("no subscribers remain, stopping feed")
			return
		}

		if attempt == 0 {
			c.setState(StateConnecting)
		} else {
			c.setState(StateReconnecting)
		}
		attempt++

		ws, err := c.dial(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			c.logger.Warn("upstream dial failed", "error", err, "attempt", attempt)
			select {
			case <-ctx.Done():
				return
			case <-time.After(c.cfg.RetryDelay):
			}
			continue
		}

		c.setState(StateStreaming)
		c.logger.Info("upstream feed streaming", "url", c.cfg.URL)

		c.stream(ctx, ws)
		ws.Close()

		if ctx.Err() != nil {
			return
		}
		c.logger.Warn("upstream connection lost")

		select {
		case <-ctx.Done():
			return
		case <-time.After(c.cfg.RetryDelay):
		}
	}
}

// dial opens the upstream connection with freshly signed auth headers.
// The expiry is recomputed on every attempt, never reused.
func (c *Conn) dial(ctx context.Context) (*websocket.Conn, error) {
	headers, err := signer.WebSocketHeaders(c.cred, c.cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("build auth headers: %w", err)
	}

	dialer := websocket.Dialer{
		HandshakeTimeout: c.cfg.HandshakeTimeout,
	}

	ws, _, err := dialer.DialContext(ctx, c.cfg.URL, headers)
	if err != nil {
		return nil, err
	}
	return ws, nil
}

// stream reads upstream messages until the connection drops or ctx is
// canceled. Each inbound message is followed by a pacing delay to
// throttle fan-out against upstream bursts.
func (c *Conn) stream(ctx context.Context, ws *websocket.Conn) {
	stop := make(chan struct{})
	defer close(stop)
	go func() {
		select {
		case <-ctx.Done():
			ws.Close()
		case <-stop:
		}
	}()

	for {
		_, raw, err := ws.ReadMessage()
		if err != nil {
			return
		}

		c.handleMessage(raw)

		select {
		case <-ctx.Done():
			return
		case <-time.After(c.cfg.PacingDelay):
		}
	}
}

// handleMessage normalizes one raw upstream message and publishes the
// resulting ticks. A decode failure is reported to subscribers as a
// non-fatal notification and streaming continues.
func (c *Conn) handleMessage(raw []byte) {
	ticks, err := Normalize(raw, c.cred.Name)
	if err != nil {
		c.logger.Warn("undecodable upstream message", "error", err)
		frame, merr := json.Marshal(errorFrame{
			Status: 400,
			Error:  fmt.Sprintf("Failed to decode upstream data. Message: %s. Err: %v", raw, err),
		})
		if merr != nil {
			return
		}
		c.pub.Publish(c.cred.Name, frame)
		return
	}

	for _, tick := range ticks {
		frame, merr := json.Marshal(tick)
		if merr != nil {
			c.logger.Warn("failed to encode tick", "error", merr)
			continue
		}
		c.pub.Publish(c.cred.Name, frame)
	}
}
