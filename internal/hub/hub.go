package hub

import (
	"log/slog"
	"sync"
)

// Recipient receives JSON-encoded frames for accounts it is registered
// under. Send must not block; a recipient that cannot keep up drops the
// frame and returns false.
type Recipient interface {
	// ID uniquely identifies the recipient across its lifetime.
	ID() string

	// Send enqueues one frame for delivery. Returns false if dropped.
	Send(frame []byte) bool
}

// Mirror observes every published frame regardless of account
// membership. Mirror must not block.
type Mirror interface {
	Mirror(account string, frame []byte)
}

// Hub delivers published frames to every recipient registered for the
// frame's account. Registration holds no ownership over the recipient;
// session lifecycle stays with the session layer.
type Hub struct {
	logger *slog.Logger

	mu      sync.RWMutex
	members map[string]map[string]Recipient // account → recipient ID → recipient
	mirrors []Mirror
}

// New creates an empty hub.
func New(logger *slog.Logger) *Hub {
	if logger == nil {
		logger = slog.Default()
	}
	return &Hub{
		logger:  logger,
		members: make(map[string]map[string]Recipient),
	}
}

// Register adds a recipient to an account's delivery set. Registering
// an already-registered recipient is a no-op.
func (h *Hub) Register(account string, r Recipient) {
	h.mu.Lock()
	defer h.mu.Unlock()

	set, ok := h.members[account]
	if !ok {
		set = make(map[string]Recipient)
		h.members[account] = set
	}
	set[r.ID()] = r
}

// Deregister removes a recipient from an account's delivery set.
// Deregistering an absent recipient is a no-op. A publish that starts
// after Deregister returns will not deliver to the recipient.
func (h *Hub) Deregister(account string, r Recipient) {
	h.mu.Lock()
	defer h.mu.Unlock()

	set, ok := h.members[account]
	if !ok {
		return
	}
	delete(set, r.ID())
	if len(set) == 0 {
		delete(h.members, account)
	}
}

// AddMirror attaches a sink that observes every published frame.
func (h *Hub) AddMirror(m Mirror) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.mirrors = append(h.mirrors, m)
}

// Publish delivers a frame to every recipient currently registered for
// the account. Returns the number of recipients that accepted it.
func (h *Hub) Publish(account string, frame []byte) int {
	h.mu.RLock()
	set := h.members[account]
	recipients := make([]Recipient, 0, len(set))
	for _, r := range set {
		recipients = append(recipients, r)
	}
	mirrors := h.mirrors
	h.mu.RUnlock()

	delivered := 0
	for _, r := range recipients {
		if r.Send(frame) {
			delivered++
		} else {
			h.logger.Warn("dropped frame for slow client",
				"account", account,
				"client", r.ID(),
			)
		}
	}

	for _, m := range mirrors {
		m.Mirror(account, frame)
	}

	return delivered
}

// Subscribers returns the current delivery-set size for an account.
func (h *Hub) Subscribers(account string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.members[account])
}
