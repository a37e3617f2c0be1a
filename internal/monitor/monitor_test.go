package monitor

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/protein-tracker/stock-bot/internal/models"
	"github.com/protein-tracker/stock-bot/internal/notifier"
)

type fakeFetcher struct {
	mu       sync.Mutex
	products []models.Product
	err      error
	delay    time.Duration
	calls    int
}

func (f *fakeFetcher) Fetch(ctx context.Context) ([]models.Product, error) {
	f.mu.Lock()
	f.calls++
	f.mu.Unlock()
	if f.delay > 0 {
		select {
		case <-time.After(f.delay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	return f.products, f.err
}

func (f *fakeFetcher) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

type fakeStore struct {
	mu             sync.Mutex
	baseline       map[string]models.ProductState
	subscribers    map[string][]int64
	upserts        int
	baselineWrites int
	notified       []models.Delivery
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		baseline:    make(map[string]models.ProductState),
		subscribers: make(map[string][]int64),
	}
}

func (s *fakeStore) Baseline(ctx context.Context) (map[string]models.ProductState, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make(map[string]models.ProductState, len(s.baseline))
	for id, st := range s.baseline {
		out[id] = st
	}
	return out, nil
}

func (s *fakeStore) UpdateBaseline(ctx context.Context, productID string, inStock bool, observedAt time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.baseline[productID] = models.ProductState{ProductID: productID, InStock: inStock, UpdatedAt: observedAt}
	s.baselineWrites++
	return nil
}

func (s *fakeStore) UpsertProduct(ctx context.Context, p models.Product) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.upserts++
	return nil
}

func (s *fakeStore) Subscribers(ctx context.Context, productID string) ([]int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.subscribers[productID], nil
}

func (s *fakeStore) MarkNotified(ctx context.Context, chatID int64, productID string, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.notified = append(s.notified, models.Delivery{ChatID: chatID, ProductID: productID})
	return nil
}

type fakeSender struct {
	mu      sync.Mutex
	sent    []int64
	failFor map[int64]error
}

func (f *fakeSender) Send(chatID int64, text string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err, ok := f.failFor[chatID]; ok {
		return err
	}
	f.sent = append(f.sent, chatID)
	return nil
}

func alwaysActive() Schedule {
	return NewSchedule(time.Minute, time.Minute, 0, 0, 0, 0, "UTC")
}

func product(id string, available bool) models.Product {
	return models.Product{ID: id, Name: "Product " + id, Price: 250, Available: available, LastChecked: time.Now()}
}

func TestTickSkipsWhileCycleRunning(t *testing.T) {
	fetcher := &fakeFetcher{
		products: []models.Product{product("p1", true)},
		delay:    300 * time.Millisecond,
	}
	store := newFakeStore()
	dispatcher := notifier.NewDispatcher(&fakeSender{}, 1, 0)

	m := New(fetcher, store, dispatcher, nil, alwaysActive(), 5*time.Second)

	m.tick(true)
	time.Sleep(50 * time.Millisecond)
	m.tick(true) // fires while the first cycle is still fetching
	m.tick(true)
	m.Stop()

	if got := fetcher.callCount(); got != 1 {
		t.Fatalf("expected exactly one fetch, got %d", got)
	}
}

func TestFetchFailureAbortsCycleWithoutMutation(t *testing.T) {
	fetcher := &fakeFetcher{err: errors.New("upstream down")}
	store := newFakeStore()
	store.baseline["p1"] = models.ProductState{ProductID: "p1", InStock: false}
	dispatcher := notifier.NewDispatcher(&fakeSender{}, 1, 0)

	m := New(fetcher, store, dispatcher, nil, alwaysActive(), time.Second)
	m.RunCycle(context.Background(), true)

	if store.baselineWrites != 0 || store.upserts != 0 {
		t.Fatalf("expected no state mutation on fetch failure, got %d baseline writes, %d upserts",
			store.baselineWrites, store.upserts)
	}
}

func TestBaselinePersistedWhenAllSendsFail(t *testing.T) {
	fetcher := &fakeFetcher{products: []models.Product{product("p1", true)}}
	store := newFakeStore()
	store.baseline["p1"] = models.ProductState{ProductID: "p1", InStock: false}
	store.subscribers["p1"] = []int64{1, 2}

	sender := &fakeSender{failFor: map[int64]error{
		1: errors.New("bot blocked"),
		2: errors.New("chat deleted"),
	}}
	dispatcher := notifier.NewDispatcher(sender, 2, 0)

	m := New(fetcher, store, dispatcher, nil, alwaysActive(), time.Second)
	m.RunCycle(context.Background(), true)

	if !store.baseline["p1"].InStock {
		t.Fatalf("expected baseline updated despite delivery failures")
	}
	if len(store.notified) != 0 {
		t.Fatalf("expected no delivery marks, got %v", store.notified)
	}
}

func TestSubscribeThenTransitionNotifiesSubscriber(t *testing.T) {
	fetcher := &fakeFetcher{products: []models.Product{product("p1", true)}}
	store := newFakeStore()
	store.baseline["p1"] = models.ProductState{ProductID: "p1", InStock: false}
	store.subscribers["p1"] = []int64{1}

	sender := &fakeSender{}
	dispatcher := notifier.NewDispatcher(sender, 1, 0)

	m := New(fetcher, store, dispatcher, nil, alwaysActive(), time.Second)
	m.RunCycle(context.Background(), true)

	if len(sender.sent) != 1 || sender.sent[0] != 1 {
		t.Fatalf("expected a send to chat 1, got %v", sender.sent)
	}
	if len(store.notified) != 1 || store.notified[0].ChatID != 1 || store.notified[0].ProductID != "p1" {
		t.Fatalf("expected chat 1 marked notified for p1, got %v", store.notified)
	}
}

func TestColdStartSeedsBaselineWithoutSends(t *testing.T) {
	fetcher := &fakeFetcher{products: []models.Product{product("p1", true), product("p2", false)}}
	store := newFakeStore()
	store.subscribers["p1"] = []int64{1}

	sender := &fakeSender{}
	dispatcher := notifier.NewDispatcher(sender, 1, 0)

	m := New(fetcher, store, dispatcher, nil, alwaysActive(), time.Second)
	m.RunCycle(context.Background(), true)

	if len(sender.sent) != 0 {
		t.Fatalf("expected no sends on cold start, got %v", sender.sent)
	}
	if len(store.baseline) != 2 {
		t.Fatalf("expected baseline seeded with 2 products, got %d", len(store.baseline))
	}
}

func TestDowntimeSkipsCycleUnlessForced(t *testing.T) {
	fetcher := &fakeFetcher{products: []models.Product{product("p1", true)}}
	store := newFakeStore()
	dispatcher := notifier.NewDispatcher(&fakeSender{}, 1, 0)

	allDay := NewSchedule(time.Minute, time.Minute, 0, 0, 0, 24, "UTC")
	m := New(fetcher, store, dispatcher, nil, allDay, time.Second)

	m.RunCycle(context.Background(), false)
	if got := fetcher.callCount(); got != 0 {
		t.Fatalf("expected downtime to skip the fetch, got %d calls", got)
	}

	m.RunCycle(context.Background(), true)
	if got := fetcher.callCount(); got != 1 {
		t.Fatalf("expected forced cycle to fetch, got %d calls", got)
	}
}

type countingPublisher struct {
	mu     sync.Mutex
	events []models.StockEvent
}

func (p *countingPublisher) Publish(events []models.StockEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, events...)
	return nil
}

func TestTransitionsReachEventStream(t *testing.T) {
	fetcher := &fakeFetcher{products: []models.Product{product("p1", true), product("p2", false)}}
	store := newFakeStore()
	store.baseline["p1"] = models.ProductState{ProductID: "p1", InStock: false}
	store.baseline["p2"] = models.ProductState{ProductID: "p2", InStock: true}

	publisher := &countingPublisher{}
	dispatcher := notifier.NewDispatcher(&fakeSender{}, 1, 0)

	m := New(fetcher, store, dispatcher, publisher, alwaysActive(), time.Second)
	m.RunCycle(context.Background(), true)

	if len(publisher.events) != 2 {
		t.Fatalf("expected both transitions published, got %d", len(publisher.events))
	}
	if publisher.events[0].ProductID != "p1" || !publisher.events[0].InStock {
		t.Fatalf("unexpected first event: %+v", publisher.events[0])
	}
	if publisher.events[1].ProductID != "p2" || publisher.events[1].InStock {
		t.Fatalf("unexpected second event: %+v", publisher.events[1])
	}
}
