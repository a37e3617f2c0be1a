package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
	_ "github.com/lib/pq"

	"github.com/protein-tracker/stock-bot/internal/models"
)

const subscriberCacheTTL = 5 * time.Minute

// SubscriptionRepository persists users, products and subscriptions in
// Postgres, with a Redis cache in front of the per-product subscriber sets
type SubscriptionRepository struct {
	db    *sql.DB
	redis *redis.Client
}

func NewSubscriptionRepository(db *sql.DB, redisClient *redis.Client) *SubscriptionRepository {
	return &SubscriptionRepository{
		db:    db,
		redis: redisClient,
	}
}

// EnsureSchema creates the tables and indexes if they do not exist.
// It never drops or rewrites existing tables, so subscription history
// survives upgrades.
func (r *SubscriptionRepository) EnsureSchema(ctx context.Context) error {
	statements := []string{
		`CREATE TABLE IF NOT EXISTS users (
			chat_id BIGINT PRIMARY KEY,
			first_seen TIMESTAMPTZ NOT NULL DEFAULT now()
		)`,
		`CREATE TABLE IF NOT EXISTS products (
			id TEXT PRIMARY KEY,
			name TEXT NOT NULL DEFAULT '',
			category TEXT NOT NULL DEFAULT '',
			variant TEXT NOT NULL DEFAULT '',
			price INTEGER NOT NULL DEFAULT 0,
			sku TEXT NOT NULL DEFAULT '',
			alias TEXT NOT NULL DEFAULT '',
			available BOOLEAN NOT NULL DEFAULT FALSE,
			last_checked TIMESTAMPTZ
		)`,
		`CREATE TABLE IF NOT EXISTS subscriptions (
			id SERIAL PRIMARY KEY,
			chat_id BIGINT NOT NULL REFERENCES users(chat_id),
			product_id TEXT NOT NULL REFERENCES products(id),
			subscribed_at TIMESTAMPTZ NOT NULL DEFAULT now(),
			active BOOLEAN NOT NULL DEFAULT TRUE,
			last_notified_at TIMESTAMPTZ,
			UNIQUE (chat_id, product_id)
		)`,
		`CREATE INDEX IF NOT EXISTS idx_subscriptions_product ON subscriptions (product_id) WHERE active`,
	}

	for _, stmt := range statements {
		if _, err := r.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("failed to ensure schema: %w", err)
		}
	}
	return nil
}

// EnsureUser registers a chat on first contact
func (r *SubscriptionRepository) EnsureUser(ctx context.Context, chatID int64) error {
	query := `
		INSERT INTO users (chat_id)
		VALUES ($1)
		ON CONFLICT (chat_id) DO NOTHING
	`
	if _, err := r.db.ExecContext(ctx, query, chatID); err != nil {
		return fmt.Errorf("failed to ensure user: %w", err)
	}
	return nil
}

// ToggleSubscription flips a chat's subscription to a product and returns
// whether the chat is subscribed afterwards. Unsubscribing deactivates the
// row rather than deleting it.
func (r *SubscriptionRepository) ToggleSubscription(ctx context.Context, chatID int64, productID string) (bool, error) {
	query := `
		INSERT INTO subscriptions (chat_id, product_id, active)
		VALUES ($1, $2, TRUE)
		ON CONFLICT (chat_id, product_id)
		DO UPDATE SET active = NOT subscriptions.active,
		              subscribed_at = CASE WHEN subscriptions.active THEN subscriptions.subscribed_at ELSE now() END
		RETURNING active
	`

	var active bool
	if err := r.db.QueryRowContext(ctx, query, chatID, productID).Scan(&active); err != nil {
		return false, fmt.Errorf("failed to toggle subscription: %w", err)
	}

	r.invalidateSubscriberCache(ctx, productID)
	return active, nil
}

// Subscribers returns the chat ids subscribed to a product, from cache
// when possible
func (r *SubscriptionRepository) Subscribers(ctx context.Context, productID string) ([]int64, error) {
	cacheKey := "subscribers:" + productID
	if cached, err := r.redis.Get(ctx, cacheKey).Result(); err == nil {
		var chatIDs []int64
		if err := json.Unmarshal([]byte(cached), &chatIDs); err == nil {
			return chatIDs, nil
		}
	}

	query := `
		SELECT chat_id
		FROM subscriptions
		WHERE product_id = $1 AND active
		ORDER BY chat_id
	`

	rows, err := r.db.QueryContext(ctx, query, productID)
	if err != nil {
		return nil, fmt.Errorf("failed to query subscribers: %w", err)
	}
	defer rows.Close()

	var chatIDs []int64
	for rows.Next() {
		var chatID int64
		if err := rows.Scan(&chatID); err != nil {
			return nil, fmt.Errorf("failed to scan subscriber: %w", err)
		}
		chatIDs = append(chatIDs, chatID)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read subscribers: %w", err)
	}

	if data, err := json.Marshal(chatIDs); err == nil {
		r.redis.Set(ctx, cacheKey, data, subscriberCacheTTL)
	}

	return chatIDs, nil
}

// SubscriptionsFor returns a chat's active subscriptions joined with the
// current product details
func (r *SubscriptionRepository) SubscriptionsFor(ctx context.Context, chatID int64) ([]models.Subscription, map[string]models.Product, error) {
	query := `
		SELECT s.id, s.chat_id, s.product_id, s.subscribed_at, s.last_notified_at,
		       p.name, p.category, p.variant, p.price, p.sku, p.alias, p.available, COALESCE(p.last_checked, 'epoch')
		FROM subscriptions s
		JOIN products p ON p.id = s.product_id
		WHERE s.chat_id = $1 AND s.active
		ORDER BY p.name
	`

	rows, err := r.db.QueryContext(ctx, query, chatID)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to query subscriptions: %w", err)
	}
	defer rows.Close()

	var subs []models.Subscription
	products := make(map[string]models.Product)
	for rows.Next() {
		var s models.Subscription
		var p models.Product
		s.Active = true
		if err := rows.Scan(
			&s.ID, &s.ChatID, &s.ProductID, &s.SubscribedAt, &s.LastNotifiedAt,
			&p.Name, &p.Category, &p.Variant, &p.Price, &p.SKU, &p.Alias, &p.Available, &p.LastChecked,
		); err != nil {
			return nil, nil, fmt.Errorf("failed to scan subscription: %w", err)
		}
		p.ID = s.ProductID
		subs = append(subs, s)
		products[p.ID] = p
	}
	if err := rows.Err(); err != nil {
		return nil, nil, fmt.Errorf("failed to read subscriptions: %w", err)
	}

	return subs, products, nil
}

// AllProducts returns every known product ordered by name
func (r *SubscriptionRepository) AllProducts(ctx context.Context) ([]models.Product, error) {
	query := `
		SELECT id, name, category, variant, price, sku, alias, available, COALESCE(last_checked, 'epoch')
		FROM products
		ORDER BY name
	`

	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to query products: %w", err)
	}
	defer rows.Close()

	var products []models.Product
	for rows.Next() {
		var p models.Product
		if err := rows.Scan(&p.ID, &p.Name, &p.Category, &p.Variant, &p.Price, &p.SKU, &p.Alias, &p.Available, &p.LastChecked); err != nil {
			return nil, fmt.Errorf("failed to scan product: %w", err)
		}
		products = append(products, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read products: %w", err)
	}

	return products, nil
}

// UpsertProduct refreshes a product's catalog details. Availability is
// owned by UpdateBaseline and is not touched here.
func (r *SubscriptionRepository) UpsertProduct(ctx context.Context, p models.Product) error {
	query := `
		INSERT INTO products (id, name, category, variant, price, sku, alias)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (id)
		DO UPDATE SET name = $2, category = $3, variant = $4, price = $5, sku = $6, alias = $7
	`

	if _, err := r.db.ExecContext(ctx, query, p.ID, p.Name, p.Category, p.Variant, p.Price, p.SKU, p.Alias); err != nil {
		return fmt.Errorf("failed to upsert product %s: %w", p.ID, err)
	}
	return nil
}

// Baseline returns the last-known availability per product. Products that
// have never been observed (no last_checked) are absent, so their first
// observation seeds the baseline without emitting events.
func (r *SubscriptionRepository) Baseline(ctx context.Context) (map[string]models.ProductState, error) {
	query := `
		SELECT id, available, last_checked
		FROM products
		WHERE last_checked IS NOT NULL
	`

	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to query baseline: %w", err)
	}
	defer rows.Close()

	baseline := make(map[string]models.ProductState)
	for rows.Next() {
		var s models.ProductState
		if err := rows.Scan(&s.ProductID, &s.InStock, &s.UpdatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan baseline: %w", err)
		}
		baseline[s.ProductID] = s
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read baseline: %w", err)
	}

	return baseline, nil
}

// UpdateBaseline records a product's observed availability. The upsert is
// idempotent: re-running a cycle with the same snapshot is harmless.
func (r *SubscriptionRepository) UpdateBaseline(ctx context.Context, productID string, inStock bool, observedAt time.Time) error {
	query := `
		INSERT INTO products (id, available, last_checked)
		VALUES ($1, $2, $3)
		ON CONFLICT (id)
		DO UPDATE SET available = $2, last_checked = $3
	`

	if _, err := r.db.ExecContext(ctx, query, productID, inStock, observedAt); err != nil {
		return fmt.Errorf("failed to update baseline for %s: %w", productID, err)
	}
	return nil
}

// MarkNotified stamps a subscription after a successful restock send
func (r *SubscriptionRepository) MarkNotified(ctx context.Context, chatID int64, productID string, at time.Time) error {
	query := `
		UPDATE subscriptions
		SET last_notified_at = $3
		WHERE chat_id = $1 AND product_id = $2
	`

	if _, err := r.db.ExecContext(ctx, query, chatID, productID, at); err != nil {
		return fmt.Errorf("failed to mark notified: %w", err)
	}
	return nil
}

// invalidateSubscriberCache drops the cached subscriber set for a product
func (r *SubscriptionRepository) invalidateSubscriberCache(ctx context.Context, productID string) {
	r.redis.Del(ctx, "subscribers:"+productID)
}
