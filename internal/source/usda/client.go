// Package usda implements the source.Source contract against the USDA
// FoodData Central search API.
package usda

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"sync/atomic"
	"time"

	"foodaggregator/internal/aggregator"
	"foodaggregator/internal/source"
)

const pageSize = 200

// Client is a thin wrapper over net/http: it knows how to build and
// decode one page request. Retry, backoff, and rate limiting are the
// supervisor's job, not the client's.
type Client struct {
	httpClient *http.Client
	baseURL    string
	apiKey     string

	// totalPages is learned from the first successful fetch and read by
	// every worker goroutine afterward; 0 means not yet known.
	totalPages atomic.Int64
}

// NewClient builds a Client against baseURL (e.g.
// "https://api.nal.usda.gov/fdc/v1") using apiKey for every request.
func NewClient(baseURL, apiKey string) *Client {
	return &Client{
		httpClient: &http.Client{Timeout: 30 * time.Second},
		baseURL:    baseURL,
		apiKey:     apiKey,
	}
}

func (c *Client) Name() string { return "usda" }

// IsFinished reports whether page is past the last known page. Before
// the first fetch completes, totalPages is 0 and every page looks
// unfinished, which is correct: the caller must fetch page 1 to learn
// the bound.
func (c *Client) IsFinished(page int) bool {
	total := c.totalPages.Load()
	return total > 0 && int64(page) > total
}

// TotalPages reports the page count learned from the first successful
// fetch, or 0 if none has completed yet. Callers use this to size a
// worker pool to the remaining work.
func (c *Client) TotalPages() int {
	return int(c.totalPages.Load())
}

func (c *Client) Fetch(ctx context.Context, page int) (source.Page, error) {
	req, err := c.buildRequest(ctx, page)
	if err != nil {
		return source.Page{}, aggregator.Malformed(page, fmt.Errorf("build request: %w", err))
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return source.Page{}, aggregator.Transient(page, fmt.Errorf("do request: %w", err))
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= http.StatusInternalServerError {
		return source.Page{}, aggregator.Transient(page, fmt.Errorf("upstream status %d", resp.StatusCode))
	}
	if resp.StatusCode != http.StatusOK {
		return source.Page{}, aggregator.Malformed(page, fmt.Errorf("upstream status %d", resp.StatusCode))
	}

	var parsed searchResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return source.Page{}, aggregator.Malformed(page, fmt.Errorf("decode response: %w", err))
	}

	c.totalPages.CompareAndSwap(0, int64(parsed.TotalPages))

	entries := make([]source.Entry, 0, len(parsed.Foods))
	for _, f := range parsed.Foods {
		nutrients := make([]source.EntryNutrient, 0, len(f.FoodNutrients))
		for _, n := range f.FoodNutrients {
			nutrients = append(nutrients, source.EntryNutrient{
				NutrientName: n.NutrientName,
				UnitName:     n.UnitName,
				Value:        n.value(),
			})
		}
		entries = append(entries, source.Entry{
			ExternalID:   strconv.Itoa(f.FdcID),
			Name:         f.Description,
			FnddsCode:    f.foodCode(),
			CategoryCode: f.foodCategoryID(),
			CategoryName: f.FoodCategory,
			Nutrients:    nutrients,
		})
	}

	return source.Page{Number: page, Entries: entries}, nil
}

func (c *Client) buildRequest(ctx context.Context, page int) (*http.Request, error) {
	u, err := url.Parse(c.baseURL + "/foods/search")
	if err != nil {
		return nil, err
	}
	q := u.Query()
	q.Set("api_key", c.apiKey)
	q.Set("pageNumber", strconv.Itoa(page))
	q.Set("pageSize", strconv.Itoa(pageSize))
	u.RawQuery = q.Encode()

	return http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
}
