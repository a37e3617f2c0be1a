// Package stockapi fetches product availability from the shop's JSON API.
package stockapi

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/http/cookiejar"
	"sync"
	"time"

	"github.com/tidwall/gjson"

	"github.com/protein-tracker/stock-bot/internal/catalog"
	"github.com/protein-tracker/stock-bot/internal/models"
)

// UpstreamError signals a failed or malformed availability fetch.
// A cycle that sees one must be aborted without mutating any state.
type UpstreamError struct {
	Op     string
	Status int
	Err    error
}

func (e *UpstreamError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("upstream %s: %v", e.Op, e.Err)
	}
	return fmt.Sprintf("upstream %s: status %d", e.Op, e.Status)
}

func (e *UpstreamError) Unwrap() error { return e.Err }

// Client talks to the shop API. The shop requires a session cookie obtained
// from the storefront and validated by setting a store preference; the
// cookie is refreshed once when a fetch comes back non-2xx.
//
// The client is shared between the poll loop and the command handlers,
// so the session state is guarded by a mutex and only one goroutine
// refreshes the cookie at a time.
type Client struct {
	httpClient     *http.Client
	productsURL    string
	homepageURL    string
	preferencesURL string
	storeRegion    string

	mu         sync.Mutex
	hasSession bool
}

// NewClient creates a client for the shop at baseURL, scoped to storeRegion
func NewClient(baseURL, storeRegion string) *Client {
	jar, _ := cookiejar.New(nil)
	return &Client{
		httpClient: &http.Client{
			Jar:     jar,
			Timeout: 30 * time.Second,
		},
		productsURL:    baseURL + "/api/1/entity/ms.products?fields[name]=1&fields[alias]=1&fields[sku]=1&fields[price]=1&fields[available]=1&filters[0][field]=categories&filters[0][value][0]=" + catalog.TrackedCollection + "&filters[0][operator]=in&limit=100&start=0",
		homepageURL:    baseURL + "/en/",
		preferencesURL: baseURL + "/entity/ms.settings/_/setPreferences",
		storeRegion:    storeRegion,
	}
}

// RefreshSession obtains a fresh session cookie and validates it by
// setting the store preference
func (c *Client) RefreshSession(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.refreshSessionLocked(ctx)
}

// ensureSession bootstraps the session once; callers that lose the race
// find hasSession already set and return immediately
func (c *Client) ensureSession(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.hasSession {
		return nil
	}
	return c.refreshSessionLocked(ctx)
}

func (c *Client) refreshSessionLocked(ctx context.Context) error {
	log.Println("Refreshing shop API session cookie...")

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.homepageURL, nil)
	if err != nil {
		return &UpstreamError{Op: "session", Err: err}
	}
	setHeaders(req)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return &UpstreamError{Op: "session", Err: err}
	}
	io.Copy(io.Discard, resp.Body)
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return &UpstreamError{Op: "session", Status: resp.StatusCode}
	}

	payload := fmt.Sprintf(`{"data":{"store":%q}}`, c.storeRegion)
	req, err = http.NewRequestWithContext(ctx, http.MethodPut, c.preferencesURL, bytes.NewReader([]byte(payload)))
	if err != nil {
		return &UpstreamError{Op: "preferences", Err: err}
	}
	setHeaders(req)

	resp, err = c.httpClient.Do(req)
	if err != nil {
		return &UpstreamError{Op: "preferences", Err: err}
	}
	io.Copy(io.Discard, resp.Body)
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return &UpstreamError{Op: "preferences", Status: resp.StatusCode}
	}

	c.hasSession = true
	log.Println("Shop API session cookie validated")
	return nil
}

// Fetch retrieves the tracked products with their current availability.
// Products the upstream omits, or returns without an id or availability
// field, are excluded from the result rather than reported out of stock.
func (c *Client) Fetch(ctx context.Context) ([]models.Product, error) {
	if err := c.ensureSession(ctx); err != nil {
		return nil, err
	}

	body, status, err := c.get(ctx)
	if err != nil {
		return nil, &UpstreamError{Op: "fetch", Err: err}
	}

	// An expired session comes back non-2xx; refresh the cookie once and retry
	if status != http.StatusOK {
		if err := c.RefreshSession(ctx); err != nil {
			return nil, err
		}
		body, status, err = c.get(ctx)
		if err != nil {
			return nil, &UpstreamError{Op: "fetch", Err: err}
		}
		if status != http.StatusOK {
			return nil, &UpstreamError{Op: "fetch", Status: status}
		}
	}

	return parseProducts(body)
}

func (c *Client) get(ctx context.Context) ([]byte, int, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.productsURL, nil)
	if err != nil {
		return nil, 0, err
	}
	setHeaders(req)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, 0, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, 0, err
	}
	return body, resp.StatusCode, nil
}

// parseProducts extracts products from the upstream payload
func parseProducts(body []byte) ([]models.Product, error) {
	data := gjson.GetBytes(body, "data")
	if !data.Exists() || !data.IsArray() {
		return nil, &UpstreamError{Op: "parse", Err: fmt.Errorf("payload has no data array")}
	}

	now := time.Now()
	var products []models.Product
	skipped := 0

	data.ForEach(func(_, entry gjson.Result) bool {
		id := entry.Get("_id").String()
		avail := entry.Get("available")
		if id == "" || !avail.Exists() {
			// Incomplete entry: treat as unknown for this cycle
			skipped++
			return true
		}

		name := entry.Get("name").String()
		category, variant := catalog.Classify(name)

		products = append(products, models.Product{
			ID:          id,
			Name:        name,
			Category:    category,
			Variant:     variant,
			Price:       int(entry.Get("price").Int()),
			SKU:         entry.Get("sku").String(),
			Alias:       entry.Get("alias").String(),
			Available:   avail.Int() == 1,
			LastChecked: now,
		})
		return true
	})

	if skipped > 0 {
		log.Printf("Skipped %d incomplete product entries from upstream", skipped)
	}

	return products, nil
}

func setHeaders(req *http.Request) {
	req.Header.Set("Accept", "application/json, text/plain, */*")
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Frontend", "1")
	req.Header.Set("Referer", req.URL.Scheme+"://"+req.URL.Host+"/")
	req.Header.Set("User-Agent", "Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/135.0.0.0 Safari/537.36")
}
