// Package monitor drives the periodic check-diff-notify cycle.
package monitor

import (
	"context"
	"log"
	"sync"
	"sync/atomic"
	"time"

	"github.com/protein-tracker/stock-bot/internal/models"
)

// Fetcher retrieves the current snapshot of tracked products
type Fetcher interface {
	Fetch(ctx context.Context) ([]models.Product, error)
}

// Store is the persistence collaborator the cycle reads and writes.
// Every operation is an idempotent upsert, so a re-run cycle is harmless.
type Store interface {
	Baseline(ctx context.Context) (map[string]models.ProductState, error)
	UpdateBaseline(ctx context.Context, productID string, inStock bool, observedAt time.Time) error
	UpsertProduct(ctx context.Context, p models.Product) error
	Subscribers(ctx context.Context, productID string) ([]int64, error)
	MarkNotified(ctx context.Context, chatID int64, productID string, at time.Time) error
}

// Dispatcher fans transition events out to subscribers
type Dispatcher interface {
	Dispatch(ctx context.Context, events []models.TransitionEvent, products map[string]models.Product,
		subscribersOf func(ctx context.Context, productID string) ([]int64, error)) models.DispatchReport
}

// EventPublisher publishes transition events for downstream consumers
type EventPublisher interface {
	Publish(events []models.StockEvent) error
}

// Monitor runs the poll cycle: Fetching, Diffing, Dispatching, Persisting.
// At most one cycle runs at a time; a tick that fires while a cycle is
// still running is skipped.
type Monitor struct {
	fetcher    Fetcher
	store      Store
	dispatcher Dispatcher
	publisher  EventPublisher // may be nil
	schedule   Schedule

	initialDelay time.Duration
	drainTimeout time.Duration

	running     atomic.Bool
	wg          sync.WaitGroup
	loopCancel  context.CancelFunc
	cycleCtx    context.Context
	cycleCancel context.CancelFunc
}

func New(fetcher Fetcher, store Store, dispatcher Dispatcher, publisher EventPublisher, schedule Schedule, drainTimeout time.Duration) *Monitor {
	cycleCtx, cycleCancel := context.WithCancel(context.Background())
	return &Monitor{
		fetcher:      fetcher,
		store:        store,
		dispatcher:   dispatcher,
		publisher:    publisher,
		schedule:     schedule,
		initialDelay: 10 * time.Second,
		drainTimeout: drainTimeout,
		cycleCtx:     cycleCtx,
		cycleCancel:  cycleCancel,
	}
}

// Start begins the poll loop. The first check runs shortly after startup
// regardless of downtime, then the schedule takes over.
func (m *Monitor) Start() {
	ctx, cancel := context.WithCancel(context.Background())
	m.loopCancel = cancel

	log.Printf("Starting stock monitor (peak %v / normal %v)", m.schedule.Peak, m.schedule.Normal)

	m.wg.Add(1)
	go func() {
		defer m.wg.Done()

		timer := time.NewTimer(m.initialDelay)
		defer timer.Stop()
		force := true

		for {
			select {
			case <-ctx.Done():
				return
			case <-timer.C:
				m.tick(force)
				force = false
				next := m.schedule.Interval(time.Now())
				log.Printf("Next stock check in %v", next)
				timer.Reset(next)
			}
		}
	}()
}

// tick starts a cycle unless the previous one is still running
func (m *Monitor) tick(force bool) {
	if !m.running.CompareAndSwap(false, true) {
		log.Println("Previous stock check still running, skipping this tick")
		return
	}

	m.wg.Add(1)
	go func() {
		defer m.wg.Done()
		defer m.running.Store(false)
		m.RunCycle(m.cycleCtx, force)
	}()
}

// Stop halts the loop and drains the in-flight cycle. The cycle's sends
// and baseline writes get drainTimeout to finish before they are cut off.
func (m *Monitor) Stop() {
	if m.loopCancel != nil {
		m.loopCancel()
	}

	done := make(chan struct{})
	go func() {
		m.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		log.Println("Stock monitor stopped")
	case <-time.After(m.drainTimeout):
		log.Println("Stock monitor drain timed out, aborting in-flight cycle")
		m.cycleCancel()
		<-done
	}
}

// RunCycle executes one full check-diff-notify-persist cycle
func (m *Monitor) RunCycle(ctx context.Context, force bool) {
	if m.schedule.InDowntime(time.Now()) && !force {
		log.Println("Skipping stock check during downtime hours")
		return
	}

	// Fetching: an upstream failure aborts the cycle with no mutation
	products, err := m.fetcher.Fetch(ctx)
	if err != nil {
		log.Printf("Stock check failed: %v", err)
		return
	}
	if len(products) == 0 {
		log.Println("No products returned from upstream, skipping cycle")
		return
	}
	log.Printf("Fetched %d products from upstream", len(products))

	snapshot := make(models.Snapshot, len(products))
	byID := make(map[string]models.Product, len(products))
	for _, p := range products {
		snapshot[p.ID] = models.Availability{InStock: p.Available, Price: p.Price, ObservedAt: p.LastChecked}
		byID[p.ID] = p
	}

	// Diffing
	baseline, err := m.store.Baseline(ctx)
	if err != nil {
		log.Printf("Failed to load baseline, skipping cycle: %v", err)
		return
	}
	events, discovered := Diff(snapshot, baseline)
	if len(discovered) > 0 {
		log.Printf("Discovered %d new products", len(discovered))
	}

	// Dispatching: per-recipient failures are recorded, never fatal
	var report models.DispatchReport
	if len(events) > 0 {
		m.publishEvents(events, byID)
		report = m.dispatcher.Dispatch(ctx, events, byID, m.store.Subscribers)
		log.Printf("Dispatch complete: %d events, %d sends, %d failed",
			report.EventsProcessed, report.SendsAttempted, report.SendsFailed)
		for _, f := range report.Failures {
			log.Printf("Failed to notify chat %d about %s: %s", f.ChatID, f.ProductID, f.Reason)
		}
	}

	// Persisting: the observed state is saved regardless of delivery
	// outcome, so delivery failures never stall the baseline
	for _, p := range products {
		if err := m.store.UpsertProduct(ctx, p); err != nil {
			log.Printf("Failed to upsert product %s: %v", p.ID, err)
		}
		if err := m.store.UpdateBaseline(ctx, p.ID, p.Available, p.LastChecked); err != nil {
			log.Printf("Failed to persist baseline for %s: %v", p.ID, err)
		}
	}
	now := time.Now()
	for _, d := range report.Delivered {
		if err := m.store.MarkNotified(ctx, d.ChatID, d.ProductID, now); err != nil {
			log.Printf("Failed to mark chat %d notified for %s: %v", d.ChatID, d.ProductID, err)
		}
	}

	log.Println("Stock check completed")
}

// publishEvents forwards transitions to the event stream, best effort
func (m *Monitor) publishEvents(events []models.TransitionEvent, byID map[string]models.Product) {
	if m.publisher == nil {
		return
	}

	stockEvents := make([]models.StockEvent, 0, len(events))
	for _, ev := range events {
		p := byID[ev.ProductID]
		stockEvents = append(stockEvents, models.StockEvent{
			ProductID:   ev.ProductID,
			ProductName: p.Name,
			Price:       p.Price,
			SKU:         p.SKU,
			Alias:       p.Alias,
			InStock:     ev.Current,
			WasInStock:  ev.Previous,
			OccurredAt:  ev.OccurredAt,
		})
	}

	if err := m.publisher.Publish(stockEvents); err != nil {
		log.Printf("Failed to publish stock events: %v", err)
	}
}
