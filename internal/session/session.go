package session

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/bitmex-tools/feedrelay/internal/registry"
)

// Control verbs accepted from clients.
const (
	ActionSubscribe   = "subscribe"
	ActionUnsubscribe = "unsubscribe"
)

// Config holds per-session settings.
type Config struct {
	SendBufferSize int           // Outbound frame buffer
	WriteTimeout   time.Duration // Write deadline per frame
}

// Session is one connected client. It implements hub.Recipient.
type Session struct {
	id     string
	conn   *websocket.Conn
	reg    *registry.Registry
	cfg    Config
	logger *slog.Logger

	send chan []byte
	done chan struct{}

	// subs is the set of accounts this client currently holds. Only the
	// session's own read loop touches it, so it needs no lock.
	subs map[string]struct{}
}

func newSession(conn *websocket.Conn, reg *registry.Registry, cfg Config, logger *slog.Logger) *Session {
	id := uuid.NewString()
	return &Session{
		id:     id,
		conn:   conn,
		reg:    reg,
		cfg:    cfg,
		logger: logger.With("client", id),
		send:   make(chan []byte, cfg.SendBufferSize),
		done:   make(chan struct{}),
		subs:   make(map[string]struct{}),
	}
}

// ID uniquely identifies this session for fan-out membership.
func (s *Session) ID() string { return s.id }

// Send enqueues a frame for delivery to the client without blocking.
// Returns false if the session is gone or its buffer is full.
func (s *Session) Send(frame []byte) bool {
	select {
	case <-s.done:
		return false
	default:
	}
	select {
	case s.send <- frame:
		return true
	default:
		return false
	}
}

// run reads control messages until the client disconnects, then runs
// the full teardown sequence regardless of how the transport ended.
func (s *Session) run(ctx context.Context) {
	go s.writeLoop()
	defer s.teardown()

	for {
		_, raw, err := s.conn.ReadMessage()
		if err != nil {
			return
		}
		s.handleControl(ctx, raw)
	}
}

// writeLoop serializes all writes to the client connection.
func (s *Session) writeLoop() {
	for {
		select {
		case <-s.done:
			return
		case frame := <-s.send:
			s.conn.SetWriteDeadline(time.Now().Add(s.cfg.WriteTimeout))
			if err := s.conn.WriteMessage(websocket.TextMessage, frame); err != nil {
				s.logger.Debug("client write failed", "error", err)
				s.conn.Close()
				return
			}
		}
	}
}

// teardown unsubscribes the client from every account it still holds.
// Skipping any of these would leak one unit of interest forever.
func (s *Session) teardown() {
	close(s.done)
	for accountName := range s.subs {
		s.reg.Unsubscribe(accountName, s)
	}
	s.subs = make(map[string]struct{})
	s.conn.Close()
	s.logger.Info("session closed")
}

// handleControl validates one inbound control message and dispatches
// it. Every failure is reported to this client only; nothing here
// closes the connection or mutates subscription state.
func (s *Session) handleControl(ctx context.Context, raw []byte) {
	var data map[string]any
	if err := json.Unmarshal(raw, &data); err != nil {
		s.sendError(fmt.Sprintf("Failed to decode incoming data: %v", err))
		return
	}

	action := data["action"]
	accountVal := data["account"]
	if isMissing(action) || isMissing(accountVal) {
		s.sendError(fmt.Sprintf("Got unknown data format: %s", raw))
		return
	}

	accountName, ok := accountVal.(string)
	if !ok {
		s.sendError(fmt.Sprintf("Account '%v' does not exist", accountVal))
		return
	}
	exists, err := s.reg.Exists(ctx, accountName)
	if err != nil {
		s.logger.Error("account lookup failed", "account", accountName, "error", err)
		s.sendError(fmt.Sprintf("Failed to validate account '%s'", accountName))
		return
	}
	if !exists {
		s.sendError(fmt.Sprintf("Account '%s' does not exist", accountName))
		return
	}

	verb, ok := action.(string)
	if !ok || (verb != ActionSubscribe && verb != ActionUnsubscribe) {
		s.sendError(fmt.Sprintf("Got unknown action command: '%v'. Available commands are: [%s %s]",
			action, ActionSubscribe, ActionUnsubscribe))
		return
	}

	switch verb {
	case ActionSubscribe:
		already, err := s.reg.Subscribe(ctx, accountName, s)
		if err != nil {
			s.logger.Error("subscribe failed", "account", accountName, "error", err)
			s.sendError(fmt.Sprintf("Failed to subscribe to account '%s'", accountName))
			return
		}
		if !already {
			s.subs[accountName] = struct{}{}
		}
		s.sendAck(ActionSubscribe, accountName, !already)

	case ActionUnsubscribe:
		was := s.reg.Unsubscribe(accountName, s)
		if was {
			delete(s.subs, accountName)
		}
		s.sendAck(ActionUnsubscribe, accountName, was)
	}
}

// isMissing mirrors the control-message contract: absent fields and
// empty strings are both treated as not provided.
func isMissing(v any) bool {
	return v == nil || v == ""
}

func (s *Session) sendAck(verb, accountName string, success bool) {
	frame, err := json.Marshal(map[string]any{
		"success": success,
		verb:      "instrument",
		"account": accountName,
	})
	if err != nil {
		return
	}
	s.Send(frame)
}

func (s *Session) sendError(msg string) {
	frame, err := json.Marshal(map[string]any{
		"status": 400,
		"error":  msg,
	})
	if err != nil {
		return
	}
	s.Send(frame)
}
