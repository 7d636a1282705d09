package tushare

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/wuwenjia6498/fishbowl-monitor/internal/domain/radar"
	"github.com/wuwenjia6498/fishbowl-monitor/internal/pkg/config"
)

const defaultTimeout = 30 * time.Second

// endpointByCategory maps instrument categories to tushare api_name values.
// Categories mirror the monitor_config taxonomy.
var endpointByCategory = map[string]string{
	"broad":    "index_daily",
	"industry": "index_daily",
	"fund":     "fund_daily",
	"global":   "index_global",
	"metal":    "sge_daily",
}

// Client tushare pro JSON API client.
// Safe for concurrent use; calls are serialized by the rate limiter.
type Client struct {
	httpClient *http.Client
	token      string
	baseURL    string
	rateWait   time.Duration
	fetchDays  int

	mu       sync.Mutex
	lastCall time.Time
}

// NewClient creates the client from config
func NewClient(cfg *config.Config) *Client {
	return &Client{
		httpClient: &http.Client{
			Timeout: cfg.Tushare.Timeout,
		},
		token:     cfg.Tushare.Token,
		baseURL:   cfg.Tushare.BaseURL,
		rateWait:  cfg.Tushare.RateWait,
		fetchDays: cfg.ETL.FetchDays,
	}
}

// request is the tushare pro request envelope
type request struct {
	APIName string            `json:"api_name"`
	Token   string            `json:"token"`
	Params  map[string]string `json:"params"`
	Fields  string            `json:"fields,omitempty"`
}

// response is the tushare pro response envelope
type response struct {
	Code int             `json:"code"`
	Msg  string          `json:"msg"`
	Data radar.RawSeries `json:"data"`
}

// FetchSeries fetches the provider-native daily series for one instrument.
// The endpoint is chosen by category; unknown categories fall back to
// index_daily.
func (c *Client) FetchSeries(ctx context.Context, symbol, category string) (*radar.RawSeries, error) {
	apiName, ok := endpointByCategory[category]
	if !ok {
		log.Debug().
			Str("symbol", symbol).
			Str("category", category).
			Msg("Unknown category, falling back to index_daily")
		apiName = "index_daily"
	}

	now := time.Now()
	params := map[string]string{
		"ts_code":    symbol,
		"start_date": now.AddDate(0, 0, -c.fetchDays).Format("20060102"),
		"end_date":   now.Format("20060102"),
	}

	return c.call(ctx, apiName, params)
}

// call performs one rate-limited API round trip
func (c *Client) call(ctx context.Context, apiName string, params map[string]string) (*radar.RawSeries, error) {
	c.throttle(ctx)

	body, err := json.Marshal(request{
		APIName: apiName,
		Token:   c.token,
		Params:  params,
	})
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, "POST", c.baseURL, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("do request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("tushare HTTP %d", resp.StatusCode)
	}

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}

	var envelope response
	if err := json.Unmarshal(raw, &envelope); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}

	if envelope.Code != 0 {
		return nil, fmt.Errorf("tushare error %d: %s", envelope.Code, envelope.Msg)
	}

	log.Debug().
		Str("api_name", apiName).
		Int("rows", len(envelope.Data.Items)).
		Msg("Fetched series")

	return &envelope.Data, nil
}

// throttle enforces the minimum interval between calls.
// The provider caps free tokens at a few requests per second.
func (c *Client) throttle(ctx context.Context) {
	c.mu.Lock()
	wait := c.rateWait - time.Since(c.lastCall)
	c.lastCall = time.Now().Add(wait)
	c.mu.Unlock()

	if wait <= 0 {
		return
	}
	select {
	case <-time.After(wait):
	case <-ctx.Done():
	}
}
