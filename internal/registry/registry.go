package registry

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/bitmex-tools/feedrelay/internal/account"
	"github.com/bitmex-tools/feedrelay/internal/feed"
	"github.com/bitmex-tools/feedrelay/internal/hub"
	"github.com/bitmex-tools/feedrelay/internal/model"
)

// Feed is the handle the registry keeps for one upstream connection.
type Feed interface {
	Start(ctx context.Context)
	State() feed.State
	Done() <-chan struct{}
}

// FeedFactory creates a feed for an account. The release function must
// be consulted by the feed at every reconnect decision point.
type FeedFactory func(cred model.AccountCredential, release feed.ReleaseFunc) Feed

// Stats summarizes current registry state.
type Stats struct {
	Accounts      int // Accounts with an interest entry
	Subscriptions int // Total client subscriptions across accounts
	LiveFeeds     int // Interest entries holding a feed handle
}

// entry is the interest bookkeeping for one account. The feed handle is
// present while subscribers exist, or while a connection is draining
// after the last subscriber left.
type entry struct {
	clients map[string]struct{}
	feed    Feed
}

// Registry is the shared subscription state. One instance is
// constructed at process start and passed to every session; there is no
// package-level singleton.
type Registry struct {
	accounts account.Store
	hub      *hub.Hub
	newFeed  FeedFactory
	logger   *slog.Logger

	ctx context.Context // Root context for feed lifetimes

	mu      sync.Mutex
	entries map[string]*entry
}

// New creates a registry whose feeds connect with the given upstream
// settings and publish into h.
func New(cfg feed.Config, store account.Store, h *hub.Hub, logger *slog.Logger) *Registry {
	if logger == nil {
		logger = slog.Default()
	}
	r := &Registry{
		accounts: store,
		hub:      h,
		logger:   logger,
		ctx:      context.Background(),
		entries:  make(map[string]*entry),
	}
	r.newFeed = func(cred model.AccountCredential, release feed.ReleaseFunc) Feed {
		return feed.New(cfg, cred, h, release, logger)
	}
	return r
}

// Start records the root context that bounds every feed's lifetime.
// Canceling it shuts down all upstream connections.
func (r *Registry) Start(ctx context.Context) error {
	r.ctx = ctx
	return nil
}

// Exists reports whether an account name is an allowed subscription
// target.
func (r *Registry) Exists(ctx context.Context, name string) (bool, error) {
	return r.accounts.Exists(ctx, name)
}

// Subscribe records a client's interest in an account. If the client is
// already subscribed it reports alreadySubscribed and changes nothing.
// The first subscriber for an account starts an upstream feed.
func (r *Registry) Subscribe(ctx context.Context, accountName string, client hub.Recipient) (alreadySubscribed bool, err error) {
	// Credential lookup is I/O; keep it outside the entry lock.
	cred, err := r.accounts.Find(ctx, accountName)
	if err != nil {
		return false, fmt.Errorf("find account %q: %w", accountName, err)
	}

	r.mu.Lock()
	e := r.entries[accountName]
	if e == nil {
		e = &entry{clients: make(map[string]struct{})}
		r.entries[accountName] = e
	}
	if _, ok := e.clients[client.ID()]; ok {
		r.mu.Unlock()
		return true, nil
	}
	e.clients[client.ID()] = struct{}{}

	var started Feed
	if e.feed == nil || e.feed.State() == feed.StateStopped {
		var f Feed
		f = r.newFeed(cred, func() bool {
			return r.releaseFeed(accountName, f)
		})
		e.feed = f
		started = f
	}
	subscribers := len(e.clients)
	r.mu.Unlock()

	r.hub.Register(accountName, client)
	if started != nil {
		started.Start(r.ctx)
		r.logger.Info("started upstream feed",
			"account", accountName,
			"subscribers", subscribers,
		)
	}
	return false, nil
}

// Unsubscribe removes a client's interest in an account. If the client
// was not subscribed it reports wasSubscribed=false and changes
// nothing. The feed is not canceled here; it observes zero interest on
// its own schedule, avoiding a race between stop and in-flight ticks.
func (r *Registry) Unsubscribe(accountName string, client hub.Recipient) (wasSubscribed bool) {
	r.mu.Lock()
	e := r.entries[accountName]
	if e == nil {
		r.mu.Unlock()
		return false
	}
	if _, ok := e.clients[client.ID()]; !ok {
		r.mu.Unlock()
		return false
	}
	delete(e.clients, client.ID())
	remaining := len(e.clients)
	if remaining == 0 && e.feed == nil {
		delete(r.entries, accountName)
	}
	r.mu.Unlock()

	r.hub.Deregister(accountName, client)
	r.logger.Info("client unsubscribed",
		"account", accountName,
		"client", client.ID(),
		"subscribers", remaining,
	)
	return true
}

// releaseFeed decides whether a feed should terminate. It returns true
// only when the account has no subscribers, in which case the handle is
// dropped and the interest entry removed. Holding the entry lock for
// both the decision and the handle swap is what guarantees at most one
// live feed per account: a concurrent subscribe either sees the handle
// still present and reuses it, or sees it gone and starts a new one.
func (r *Registry) releaseFeed(accountName string, f Feed) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	e := r.entries[accountName]
	if e == nil || e.feed != f {
		// Entry already reaped or handle superseded; this feed must go.
		return true
	}
	if len(e.clients) > 0 {
		return false
	}
	e.feed = nil
	delete(r.entries, accountName)
	return true
}

// Subscribers returns the current interest count for an account.
func (r *Registry) Subscribers(accountName string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	e := r.entries[accountName]
	if e == nil {
		return 0
	}
	return len(e.clients)
}

// FeedState returns the lifecycle state of an account's feed, if any.
func (r *Registry) FeedState(accountName string) (feed.State, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	e := r.entries[accountName]
	if e == nil || e.feed == nil {
		return 0, false
	}
	return e.feed.State(), true
}

// Stats returns a snapshot of registry state.
func (r *Registry) Stats() Stats {
	r.mu.Lock()
	defer r.mu.Unlock()

	s := Stats{Accounts: len(r.entries)}
	for _, e := range r.entries {
		s.Subscriptions += len(e.clients)
		if e.feed != nil {
			s.LiveFeeds++
		}
	}
	return s
}
