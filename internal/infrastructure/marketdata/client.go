package marketdata

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/sony/gobreaker"
	"github.com/vitos/fib_confluence/internal/domain"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

const (
	DefaultBaseURL = "https://api.bybit.com"
	DefaultWSURL   = "wss://stream.bybit.com/v5/public/linear"
)

// intervalCodes maps the dashboard timeframes onto the kline API's interval
// parameter.
var intervalCodes = map[domain.Timeframe]string{
	"1M": "M", "1W": "W", "1D": "D",
	"4H": "240", "1H": "60",
	"15m": "15", "5m": "5", "3m": "3", "1m": "1",
}

type cacheKey struct {
	symbol string
	tf     domain.Timeframe
}

// Client fetches OHLC bars over REST with a live price stream over WS.
// Live fetches are paced by a token bucket and guarded by a circuit
// breaker; on any failure (429, network, open breaker) the client degrades
// to the in-memory cache, then to the persisted snapshot store, and only
// errors when no bars exist anywhere.
type Client struct {
	baseURL string
	wsURL   string
	client  *http.Client
	limiter *rate.Limiter
	breaker *gobreaker.CircuitBreaker
	store   domain.SnapshotRepository
	logger  *zap.Logger

	mu        sync.Mutex
	cache     map[cacheKey][]domain.Candle
	wsConn    *websocket.Conn
	callbacks []func(symbol string, price float64)
}

func NewClient(baseURL, wsURL string, store domain.SnapshotRepository, logger *zap.Logger) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	if wsURL == "" {
		wsURL = DefaultWSURL
	}
	breaker := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:    "marketdata",
		Timeout: 30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 5
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Warn("market data breaker state change",
				zap.String("from", from.String()), zap.String("to", to.String()))
		},
	})
	return &Client{
		baseURL: baseURL,
		wsURL:   wsURL,
		client:  &http.Client{Timeout: 10 * time.Second},
		limiter: rate.NewLimiter(rate.Limit(5), 10),
		breaker: breaker,
		store:   store,
		logger:  logger,
		cache:   make(map[cacheKey][]domain.Candle),
	}
}

// GetCandles returns up to periods bars for the symbol and timeframe,
// oldest first. Live failures fall back to the last-known-good data; this
// boundary never reports a transient error upward while any bars exist.
func (c *Client) GetCandles(ctx context.Context, symbol string, tf domain.Timeframe, periods int) ([]domain.Candle, error) {
	candles, err := c.fetchLive(ctx, symbol, tf, periods)
	if err == nil {
		key := cacheKey{symbol, tf}
		c.mu.Lock()
		c.cache[key] = candles
		c.mu.Unlock()
		if c.store != nil {
			if saveErr := c.store.SaveSnapshot(ctx, symbol, tf, candles); saveErr != nil {
				c.logger.Warn("snapshot save failed", zap.String("symbol", symbol), zap.Error(saveErr))
			}
		}
		return candles, nil
	}

	c.logger.Warn("live kline fetch failed, falling back to cache",
		zap.String("symbol", symbol), zap.String("timeframe", string(tf)), zap.Error(err))

	c.mu.Lock()
	cached, ok := c.cache[cacheKey{symbol, tf}]
	c.mu.Unlock()
	if ok && len(cached) > 0 {
		return cached, nil
	}

	if c.store != nil {
		snapshot, loadErr := c.store.LoadSnapshot(ctx, symbol, tf)
		if loadErr == nil && len(snapshot) > 0 {
			return snapshot, nil
		}
	}

	return nil, fmt.Errorf("no market data for %s %s: %w", symbol, tf, err)
}

func (c *Client) fetchLive(ctx context.Context, symbol string, tf domain.Timeframe, periods int) ([]domain.Candle, error) {
	interval, ok := intervalCodes[tf]
	if !ok {
		return nil, fmt.Errorf("unknown timeframe %q", tf)
	}
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	result, err := c.breaker.Execute(func() (interface{}, error) {
		return c.requestKlines(ctx, symbol, interval, periods)
	})
	if err != nil {
		return nil, err
	}
	return result.([]domain.Candle), nil
}

func (c *Client) requestKlines(ctx context.Context, symbol, interval string, limit int) ([]domain.Candle, error) {
	path := fmt.Sprintf("/v5/market/kline?category=linear&symbol=%s&interval=%s&limit=%d", symbol, interval, limit)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return nil, err
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode == http.StatusTooManyRequests {
		return nil, fmt.Errorf("rate limited")
	}
	if resp.StatusCode >= 400 {
		return nil, fmt.Errorf("kline API error: %s", string(body))
	}

	var result struct {
		RetCode int `json:"retCode"`
		Result  struct {
			List [][]string `json:"list"`
		} `json:"result"`
	}
	if err := json.Unmarshal(body, &result); err != nil {
		return nil, err
	}
	if result.RetCode != 0 {
		return nil, fmt.Errorf("kline error code: %d", result.RetCode)
	}

	var candles []domain.Candle
	for _, raw := range result.Result.List {
		// Format: [startTime, open, high, low, close, volume, turnover]
		if len(raw) < 6 {
			continue
		}
		ts, _ := strconv.ParseInt(raw[0], 10, 64)
		open, _ := strconv.ParseFloat(raw[1], 64)
		high, _ := strconv.ParseFloat(raw[2], 64)
		low, _ := strconv.ParseFloat(raw[3], 64)
		closePrice, _ := strconv.ParseFloat(raw[4], 64)
		volume, _ := strconv.ParseFloat(raw[5], 64)

		candles = append(candles, domain.Candle{
			Time:   ts,
			Open:   open,
			High:   high,
			Low:    low,
			Close:  closePrice,
			Volume: volume,
		})
	}

	// The API returns newest first; the engine wants chronological order.
	for i, j := 0, len(candles)-1; i < j; i, j = i+1, j-1 {
		candles[i], candles[j] = candles[j], candles[i]
	}
	return candles, nil
}

// InvalidateSymbol drops all cached bars for a symbol so a symbol switch
// never leaks stale timeframe data from the previous instrument.
func (c *Client) InvalidateSymbol(symbol string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for key := range c.cache {
		if key.symbol == symbol {
			delete(c.cache, key)
		}
	}
}

// OnPriceUpdate registers a callback for WS ticker prices.
func (c *Client) OnPriceUpdate(callback func(symbol string, price float64)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.callbacks = append(c.callbacks, callback)
}

// Subscribe opens the WS connection if needed and subscribes to the
// symbols' ticker topics.
func (c *Client) Subscribe(symbols []string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.wsConn == nil {
		conn, _, err := websocket.DefaultDialer.Dial(c.wsURL, nil)
		if err != nil {
			return err
		}
		c.wsConn = conn
		go c.readLoop(conn)
	}

	if len(symbols) == 0 {
		return nil
	}
	args := make([]interface{}, len(symbols))
	for i, s := range symbols {
		args[i] = "tickers." + s
	}
	return c.wsConn.WriteJSON(map[string]interface{}{
		"op":   "subscribe",
		"args": args,
	})
}

func (c *Client) readLoop(conn *websocket.Conn) {
	defer func() {
		conn.Close()
		c.mu.Lock()
		if c.wsConn == conn {
			c.wsConn = nil
		}
		c.mu.Unlock()
	}()

	for {
		_, message, err := conn.ReadMessage()
		if err != nil {
			c.logger.Warn("ws read error", zap.Error(err))
			return
		}

		var event struct {
			Topic string `json:"topic"`
			Data  struct {
				Symbol    string `json:"symbol"`
				LastPrice string `json:"lastPrice"`
			} `json:"data"`
		}
		if err := json.Unmarshal(message, &event); err != nil {
			continue
		}
		if !strings.HasPrefix(event.Topic, "tickers.") || event.Data.LastPrice == "" {
			continue
		}
		price, err := strconv.ParseFloat(event.Data.LastPrice, 64)
		if err != nil {
			continue
		}

		c.mu.Lock()
		callbacks := make([]func(string, float64), len(c.callbacks))
		copy(callbacks, c.callbacks)
		c.mu.Unlock()

		for _, cb := range callbacks {
			cb(event.Data.Symbol, price)
		}
	}
}

// Close shuts the WS connection down.
func (c *Client) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.wsConn != nil {
		err := c.wsConn.Close()
		c.wsConn = nil
		return err
	}
	return nil
}
