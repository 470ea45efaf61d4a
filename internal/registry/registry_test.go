package registry

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/bitmex-tools/feedrelay/internal/account"
	"github.com/bitmex-tools/feedrelay/internal/feed"
	"github.com/bitmex-tools/feedrelay/internal/hub"
	"github.com/bitmex-tools/feedrelay/internal/model"
)

// fakeFeed stands in for an upstream connection. It never dials; tests
// drive its lifecycle through the release function the factory gets.
type fakeFeed struct {
	mu      sync.Mutex
	cred    model.AccountCredential
	release feed.ReleaseFunc
	state   feed.State
	started bool
	done    chan struct{}
}

func (f *fakeFeed) Start(ctx context.Context) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.started = true
	f.state = feed.StateStreaming
}

func (f *fakeFeed) State() feed.State {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.state
}

func (f *fakeFeed) Done() <-chan struct{} { return f.done }

// tryRelease simulates the feed hitting a reconnect decision point.
func (f *fakeFeed) tryRelease() bool {
	if f.release() {
		f.mu.Lock()
		f.state = feed.StateStopped
		f.mu.Unlock()
		close(f.done)
		return true
	}
	return false
}

type clientStub struct {
	id string

	mu     sync.Mutex
	frames [][]byte
}

func (c *clientStub) ID() string { return c.id }

func (c *clientStub) Send(frame []byte) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.frames = append(c.frames, frame)
	return true
}

func (c *clientStub) frameCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.frames)
}

// testRegistry wires a registry with an in-memory credential store and
// a feed factory that records every created fake feed.
func testRegistry(t *testing.T, accounts ...string) (*Registry, *hub.Hub, func() []*fakeFeed) {
	t.Helper()

	store := account.NewMemStore()
	for _, name := range accounts {
		store.Add(model.AccountCredential{Name: name, APIKey: "k", APISecret: "s"})
	}

	h := hub.New(nil)
	r := New(feed.Config{}, store, h, nil)

	var mu sync.Mutex
	var feeds []*fakeFeed
	r.newFeed = func(cred model.AccountCredential, release feed.ReleaseFunc) Feed {
		f := &fakeFeed{cred: cred, release: release, done: make(chan struct{})}
		mu.Lock()
		feeds = append(feeds, f)
		mu.Unlock()
		return f
	}

	if err := r.Start(context.Background()); err != nil {
		t.Fatalf("Start failed: %v", err)
	}

	return r, h, func() []*fakeFeed {
		mu.Lock()
		defer mu.Unlock()
		out := make([]*fakeFeed, len(feeds))
		copy(out, feeds)
		return out
	}
}

func TestRegistry_FirstSubscribeStartsFeed(t *testing.T) {
	r, _, feeds := testRegistry(t, "acct1")
	ctx := context.Background()

	already, err := r.Subscribe(ctx, "acct1", &clientStub{id: "c1"})
	if err != nil {
		t.Fatalf("Subscribe failed: %v", err)
	}
	if already {
		t.Error("first subscribe reported alreadySubscribed")
	}

	created := feeds()
	if len(created) != 1 {
		t.Fatalf("created %d feeds, want 1", len(created))
	}
	if !created[0].started {
		t.Error("feed was not started")
	}
	if created[0].cred.Name != "acct1" {
		t.Errorf("feed credential = %q, want acct1", created[0].cred.Name)
	}
}

func TestRegistry_SecondClientSharesFeed(t *testing.T) {
	r, _, feeds := testRegistry(t, "acct1")
	ctx := context.Background()

	r.Subscribe(ctx, "acct1", &clientStub{id: "c1"})
	r.Subscribe(ctx, "acct1", &clientStub{id: "c2"})

	if n := len(feeds()); n != 1 {
		t.Errorf("created %d feeds for one account, want 1", n)
	}
	if got := r.Subscribers("acct1"); got != 2 {
		t.Errorf("Subscribers = %d, want 2", got)
	}
}

func TestRegistry_DuplicateSubscribeIdempotent(t *testing.T) {
	r, _, feeds := testRegistry(t, "acct1")
	ctx := context.Background()
	c := &clientStub{id: "c1"}

	r.Subscribe(ctx, "acct1", c)
	already, err := r.Subscribe(ctx, "acct1", c)
	if err != nil {
		t.Fatalf("Subscribe failed: %v", err)
	}
	if !already {
		t.Error("duplicate subscribe did not report alreadySubscribed")
	}
	if got := r.Subscribers("acct1"); got != 1 {
		t.Errorf("Subscribers = %d after duplicate subscribe, want 1", got)
	}
	if n := len(feeds()); n != 1 {
		t.Errorf("created %d feeds, want 1", n)
	}
}

func TestRegistry_SubscribeUnknownAccount(t *testing.T) {
	r, _, feeds := testRegistry(t) // no accounts
	ctx := context.Background()

	_, err := r.Subscribe(ctx, "ghost", &clientStub{id: "c1"})
	if !errors.Is(err, account.ErrNotFound) {
		t.Errorf("Subscribe error = %v, want ErrNotFound", err)
	}
	if n := len(feeds()); n != 0 {
		t.Errorf("created %d feeds for unknown account, want 0", n)
	}
}

func TestRegistry_UnsubscribeNeverSubscribed(t *testing.T) {
	r, _, _ := testRegistry(t, "acct1")

	was := r.Unsubscribe("acct1", &clientStub{id: "c1"})
	if was {
		t.Error("Unsubscribe reported wasSubscribed for unknown client")
	}
	if got := r.Subscribers("acct1"); got != 0 {
		t.Errorf("Subscribers = %d, want 0 (no underflow)", got)
	}
}

func TestRegistry_FeedSurvivesWhileSubscribersRemain(t *testing.T) {
	r, h, feeds := testRegistry(t, "acct1")
	ctx := context.Background()

	c1 := &clientStub{id: "c1"}
	c2 := &clientStub{id: "c2"}
	r.Subscribe(ctx, "acct1", c1)
	r.Subscribe(ctx, "acct1", c2)

	r.Unsubscribe("acct1", c1)

	f := feeds()[0]
	if f.tryRelease() {
		t.Error("feed released while a subscriber remains")
	}

	// The remaining client still receives publishes; the departed one
	// does not.
	h.Publish("acct1", []byte(`{}`))
	if c2.frameCount() != 1 {
		t.Errorf("remaining client got %d frames, want 1", c2.frameCount())
	}
	if c1.frameCount() != 0 {
		t.Errorf("departed client got %d frames, want 0", c1.frameCount())
	}
}

func TestRegistry_LastUnsubscribeReleasesFeed(t *testing.T) {
	r, _, feeds := testRegistry(t, "acct1")
	ctx := context.Background()
	c := &clientStub{id: "c1"}

	r.Subscribe(ctx, "acct1", c)
	r.Unsubscribe("acct1", c)

	f := feeds()[0]
	if !f.tryRelease() {
		t.Fatal("feed not released after last unsubscribe")
	}
	if f.State() != feed.StateStopped {
		t.Errorf("feed state = %v, want stopped", f.State())
	}

	// Entry is gone once the handle is dropped.
	if got := r.Stats().Accounts; got != 0 {
		t.Errorf("Stats().Accounts = %d, want 0", got)
	}

	// A fresh subscribe starts a new feed rather than reviving the old.
	r.Subscribe(ctx, "acct1", c)
	if n := len(feeds()); n != 2 {
		t.Errorf("created %d feeds total, want 2", n)
	}
}

func TestRegistry_ResubscribeDuringDrainReusesLiveFeed(t *testing.T) {
	r, _, feeds := testRegistry(t, "acct1")
	ctx := context.Background()
	c := &clientStub{id: "c1"}

	r.Subscribe(ctx, "acct1", c)
	r.Unsubscribe("acct1", c)

	// Interest returns before the feed hits a reconnect decision point:
	// the still-live handle is reused, and release now refuses.
	r.Subscribe(ctx, "acct1", c)

	if n := len(feeds()); n != 1 {
		t.Fatalf("created %d feeds, want 1", n)
	}
	if feeds()[0].tryRelease() {
		t.Error("feed released despite renewed interest")
	}
}

func TestRegistry_ConcurrentSubscribeBurstOneFeed(t *testing.T) {
	r, _, feeds := testRegistry(t, "acct1")
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := 0; i < 32; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			c := &clientStub{id: fmt.Sprintf("c%d", i)}
			if _, err := r.Subscribe(ctx, "acct1", c); err != nil {
				t.Errorf("Subscribe failed: %v", err)
			}
		}(i)
	}
	wg.Wait()

	if n := len(feeds()); n != 1 {
		t.Errorf("concurrent burst created %d feeds, want 1", n)
	}
	if got := r.Subscribers("acct1"); got != 32 {
		t.Errorf("Subscribers = %d, want 32", got)
	}
}

func TestRegistry_Exists(t *testing.T) {
	r, _, _ := testRegistry(t, "acct1")
	ctx := context.Background()

	ok, err := r.Exists(ctx, "acct1")
	if err != nil || !ok {
		t.Errorf("Exists(acct1) = %v, %v; want true, nil", ok, err)
	}
	ok, err = r.Exists(ctx, "ghost")
	if err != nil || ok {
		t.Errorf("Exists(ghost) = %v, %v; want false, nil", ok, err)
	}
}

func TestRegistry_Stats(t *testing.T) {
	r, _, _ := testRegistry(t, "acct1", "acct2")
	ctx := context.Background()

	r.Subscribe(ctx, "acct1", &clientStub{id: "c1"})
	r.Subscribe(ctx, "acct1", &clientStub{id: "c2"})
	r.Subscribe(ctx, "acct2", &clientStub{id: "c3"})

	s := r.Stats()
	if s.Accounts != 2 {
		t.Errorf("Accounts = %d, want 2", s.Accounts)
	}
	if s.Subscriptions != 3 {
		t.Errorf("Subscriptions = %d, want 3", s.Subscriptions)
	}
	if s.LiveFeeds != 2 {
		t.Errorf("LiveFeeds = %d, want 2", s.LiveFeeds)
	}
}
