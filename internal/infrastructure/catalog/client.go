package catalog

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/strdr1/telegram-bot-api-sub001/internal/domain"
	"golang.org/x/time/rate"
)

// maxPages bounds pagination in case the source keeps reporting hasMore.
const maxPages = 500

// ClientConfig holds connection settings for the catalog source
type ClientConfig struct {
	BaseURL       string
	APIKey        string
	PointID       int
	Timeout       time.Duration
	RatePerSecond float64
	Burst         int
	MaxRetries    int
	PageSize      int
}

// Client handles communication with the POS catalog API
type Client struct {
	httpClient  *http.Client
	apiKey      string
	baseURL     string
	pointID     int
	pageSize    int
	maxRetries  int
	rateLimiter *rate.Limiter
	backoff     func(attempt int) time.Duration
	images      *ImageFetcher
	debug       bool

	mu    sync.RWMutex
	known map[domain.ID]string
}

// NewClient creates a new catalog API client
func NewClient(cfg ClientConfig) *Client {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	perSecond := cfg.RatePerSecond
	if perSecond <= 0 {
		perSecond = 5
	}
	burst := cfg.Burst
	if burst <= 0 {
		burst = 10
	}
	retries := cfg.MaxRetries
	if retries <= 0 {
		retries = 3
	}
	pageSize := cfg.PageSize
	if pageSize <= 0 {
		pageSize = 200
	}

	return &Client{
		httpClient: &http.Client{
			Timeout: timeout,
		},
		apiKey:      cfg.APIKey,
		baseURL:     strings.TrimRight(cfg.BaseURL, "/"),
		pointID:     cfg.PointID,
		pageSize:    pageSize,
		maxRetries:  retries,
		rateLimiter: rate.NewLimiter(rate.Limit(perSecond), burst),
		backoff:     exponentialBackoff,
		known:       make(map[domain.ID]string),
	}
}

// SetDebug toggles verbose request logging
func (c *Client) SetDebug(debug bool) {
	c.debug = debug
}

// SetImageFetcher enables best-effort image downloads after each menu fetch
func (c *Client) SetImageFetcher(f *ImageFetcher) {
	c.images = f
}

// exponentialBackoff returns 500ms, 1s, 2s, ... for attempts 1, 2, 3, ...
func exponentialBackoff(attempt int) time.Duration {
	if attempt < 1 {
		attempt = 1
	}
	return time.Duration(500*(1<<(attempt-1))) * time.Millisecond
}

// KnownPriceLists returns the menus seen in the last successful enumeration
func (c *Client) KnownPriceLists() []domain.PriceList {
	c.mu.RLock()
	defer c.mu.RUnlock()

	lists := make([]domain.PriceList, 0, len(c.known))
	for id, name := range c.known {
		lists = append(lists, domain.PriceList{ID: id, Name: name})
	}
	return lists
}

// ListPriceLists enumerates the menus available at the configured point
func (c *Client) ListPriceLists(ctx context.Context) ([]domain.PriceList, error) {
	params := url.Values{}
	params.Set("pointId", strconv.Itoa(c.pointID))

	var resp struct {
		PriceLists []domain.PriceList `json:"priceLists"`
	}
	if err := c.getJSON(ctx, "/price-list", params, &resp); err != nil {
		return nil, err
	}

	c.mu.Lock()
	for _, pl := range resp.PriceLists {
		if pl.ID != "" {
			c.known[pl.ID] = pl.Name
		}
	}
	c.mu.Unlock()

	log.Printf("[SOURCE] Enumerated %d price lists for point %d", len(resp.PriceLists), c.pointID)
	return resp.PriceLists, nil
}

// FetchMenu downloads every record of one price list and rebuilds its category tree
func (c *Client) FetchMenu(ctx context.Context, list domain.PriceList, knownIDs []domain.ID) (*domain.Menu, error) {
	if list.Name == "" {
		c.mu.RLock()
		list.Name = c.known[list.ID]
		c.mu.RUnlock()
	}

	var records []Record
	for page := 0; page < maxPages; page++ {
		params := url.Values{}
		params.Set("pointId", strconv.Itoa(c.pointID))
		params.Set("priceListId", list.ID.String())
		params.Set("page", strconv.Itoa(page))
		params.Set("pageSize", strconv.Itoa(c.pageSize))

		var resp struct {
			Nomenclatures []json.RawMessage `json:"nomenclatures"`
			Outcome       struct {
				HasMore bool `json:"hasMore"`
			} `json:"outcome"`
		}
		if err := c.getJSON(ctx, "/nomenclature/list", params, &resp); err != nil {
			return nil, fmt.Errorf("menu %s page %d: %w", list.ID, page, err)
		}

		for _, raw := range resp.Nomenclatures {
			rec, err := ParseRecord(raw)
			if err != nil {
				log.Printf("[SOURCE] Skipping record in menu %s: %v", list.ID, err)
				continue
			}
			records = append(records, rec)
		}

		if !resp.Outcome.HasMore || len(resp.Nomenclatures) == 0 {
			break
		}
	}

	menu, problems := BuildMenu(list, records, knownIDs, c.baseURL)
	for _, p := range problems {
		log.Printf("[SOURCE] Menu %s: %v", list.ID, p)
	}

	if c.images != nil {
		c.images.Download(ctx, menu)
	}

	log.Printf("[SOURCE] Menu %s (%s): %d categories, %d items",
		list.ID, list.Name, menu.Categories.Len(), menu.ItemCount())
	return menu, nil
}

// getJSON performs a GET with rate limiting and retries, decoding the body into out
func (c *Client) getJSON(ctx context.Context, path string, params url.Values, out interface{}) error {
	reqURL := fmt.Sprintf("%s%s?%s", c.baseURL, path, params.Encode())

	var lastErr error
	for attempt := 1; attempt <= c.maxRetries; attempt++ {
		if err := c.rateLimiter.Wait(ctx); err != nil {
			return fmt.Errorf("%w: rate limiter: %v", domain.ErrSourceUnavailable, err)
		}

		body, status, err := c.doRequest(ctx, reqURL)
		if err != nil {
			if c.debug {
				log.Printf("[SOURCE] Request error (attempt %d): %v", attempt, err)
			}
			lastErr = err
			if !c.sleep(ctx, attempt) {
				return fmt.Errorf("%w: %v", domain.ErrSourceUnavailable, ctx.Err())
			}
			continue
		}

		if status == http.StatusNotFound {
			return fmt.Errorf("%w: %s returned 404", domain.ErrSourceUnavailable, path)
		}
		if status != http.StatusOK {
			if c.debug {
				log.Printf("[SOURCE] API error (attempt %d) - Status: %d, Body: %s", attempt, status, truncate(body, 200))
			}
			lastErr = fmt.Errorf("%w: status %d", domain.ErrSourceUnavailable, status)
			if status >= 400 && status < 500 && status != http.StatusTooManyRequests {
				return lastErr
			}
			if !c.sleep(ctx, attempt) {
				return fmt.Errorf("%w: %v", domain.ErrSourceUnavailable, ctx.Err())
			}
			continue
		}

		if err := json.Unmarshal(body, out); err != nil {
			return fmt.Errorf("%w: decode %s: %v", domain.ErrSourceUnavailable, path, err)
		}
		return nil
	}

	log.Printf("[SOURCE] All retries failed for %s", path)
	return lastErr
}

// doRequest executes an HTTP GET request with proper headers and error handling
func (c *Client) doRequest(ctx context.Context, reqURL string) ([]byte, int, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("User-Agent", "MenuBot/1.0")
	req.Header.Set("Accept", "application/json")
	if c.apiKey != "" {
		req.Header.Set("X-API-Key", c.apiKey)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, 0, fmt.Errorf("%w: %v", domain.ErrSourceUnavailable, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, 0, fmt.Errorf("%w: read body: %v", domain.ErrSourceUnavailable, err)
	}
	return body, resp.StatusCode, nil
}

// sleep waits for the backoff of the given attempt; false if the context ended first
func (c *Client) sleep(ctx context.Context, attempt int) bool {
	if attempt >= c.maxRetries {
		return ctx.Err() == nil
	}
	timer := time.NewTimer(c.backoff(attempt))
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}

func truncate(b []byte, n int) string {
	if len(b) <= n {
		return string(b)
	}
	return string(b[:n]) + "..."
}

// IsUnavailable reports whether err means the source could not be reached
func IsUnavailable(err error) bool {
	return errors.Is(err, domain.ErrSourceUnavailable)
}
