package models

import "time"

// Product represents one tracked shop product
type Product struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	Category    string    `json:"category"`
	Variant     string    `json:"variant"`
	Price       int       `json:"price"`
	SKU         string    `json:"sku"`
	Alias       string    `json:"alias"`
	Available   bool      `json:"available"`
	LastChecked time.Time `json:"last_checked"`
}

// Subscription links a Telegram chat to a product it wants restock alerts for
type Subscription struct {
	ID             int        `json:"id"`
	ChatID         int64      `json:"chat_id"`
	ProductID      string     `json:"product_id"`
	SubscribedAt   time.Time  `json:"subscribed_at"`
	Active         bool       `json:"active"`
	LastNotifiedAt *time.Time `json:"last_notified_at,omitempty"`
}

// ProductState is the persisted last-known availability for one product.
// It is the comparison baseline for the next poll cycle.
type ProductState struct {
	ProductID string    `json:"product_id"`
	InStock   bool      `json:"in_stock"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Availability is one product's freshly observed reading within a cycle
type Availability struct {
	InStock    bool
	Price      int
	ObservedAt time.Time
}

// Snapshot maps product id to the availability observed this cycle.
// Products the upstream omitted are simply absent.
type Snapshot map[string]Availability

// TransitionEvent records a change in a product's availability between
// the persisted baseline and the current snapshot
type TransitionEvent struct {
	ProductID  string    `json:"product_id"`
	Previous   bool      `json:"previous"`
	Current    bool      `json:"current"`
	OccurredAt time.Time `json:"occurred_at"`
}

// StockEvent is the Kafka message schema for a detected transition
type StockEvent struct {
	ProductID   string    `json:"product_id"`
	ProductName string    `json:"product_name"`
	Price       int       `json:"price"`
	SKU         string    `json:"sku"`
	Alias       string    `json:"alias"`
	InStock     bool      `json:"in_stock"`
	WasInStock  bool      `json:"was_in_stock"`
	OccurredAt  time.Time `json:"occurred_at"`
}

// Delivery identifies one successful notification send
type Delivery struct {
	ChatID    int64  `json:"chat_id"`
	ProductID string `json:"product_id"`
}

// SendFailure records one failed notification send
type SendFailure struct {
	ChatID    int64  `json:"chat_id"`
	ProductID string `json:"product_id"`
	Reason    string `json:"reason"`
}

// DispatchReport aggregates the outcome of one dispatch cycle
type DispatchReport struct {
	EventsProcessed int           `json:"events_processed"`
	SendsAttempted  int           `json:"sends_attempted"`
	SendsFailed     int           `json:"sends_failed"`
	Delivered       []Delivery    `json:"delivered,omitempty"`
	Failures        []SendFailure `json:"failures,omitempty"`
}
