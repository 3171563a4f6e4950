package analysisapi

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/vitos/fib_confluence/internal/domain"
)

// Client talks to the remote analysis API: one pivot-detection endpoint and
// four Fibonacci calculation endpoints. It implements the same
// domain.AnalysisService contract as the local engine.
type Client struct {
	baseURL string
	client  *http.Client
}

func NewClient(baseURL string) *Client {
	return &Client{
		baseURL: baseURL,
		client:  &http.Client{Timeout: 10 * time.Second},
	}
}

func (c *Client) post(ctx context.Context, path string, payload interface{}, out interface{}) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewBuffer(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return err
	}
	if resp.StatusCode >= 400 {
		return fmt.Errorf("analysis API error: %s", string(respBody))
	}
	return json.Unmarshal(respBody, out)
}

func (c *Client) DetectPivots(ctx context.Context, candles []domain.Candle, lookback, count int) (*domain.PivotResult, error) {
	payload := map[string]interface{}{
		"candles":  candles,
		"lookback": lookback,
		"count":    count,
	}
	var result domain.PivotResult
	if err := c.post(ctx, "/api/pivots", payload, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// fibResponse carries the ratio tables on the wire: keys are the ratio
// multiplied by 1000, serialized as strings inside the JSON object.
type fibResponse struct {
	Levels map[string]float64 `json:"levels"`
}

func (r *fibResponse) toTable() (map[int]float64, error) {
	out := make(map[int]float64, len(r.Levels))
	for key, price := range r.Levels {
		k, err := strconv.Atoi(key)
		if err != nil {
			return nil, fmt.Errorf("bad ratio key %q: %w", key, err)
		}
		out[k] = price
	}
	return out, nil
}

func (c *Client) fibCall(ctx context.Context, path string, payload map[string]interface{}) (map[int]float64, error) {
	var resp fibResponse
	if err := c.post(ctx, path, payload, &resp); err != nil {
		return nil, err
	}
	return resp.toTable()
}

func (c *Client) Retracement(ctx context.Context, high, low float64, direction string) (map[int]float64, error) {
	return c.fibCall(ctx, "/api/fibonacci/retracement", map[string]interface{}{
		"high": high, "low": low, "direction": direction,
	})
}

func (c *Client) Extension(ctx context.Context, high, low float64, direction string) (map[int]float64, error) {
	return c.fibCall(ctx, "/api/fibonacci/extension", map[string]interface{}{
		"high": high, "low": low, "direction": direction,
	})
}

func (c *Client) Expansion(ctx context.Context, start, end float64) (map[int]float64, error) {
	return c.fibCall(ctx, "/api/fibonacci/expansion", map[string]interface{}{
		"start": start, "end": end,
	})
}

func (c *Client) Projection(ctx context.Context, a, b, cPoint float64, direction string) (map[int]float64, error) {
	return c.fibCall(ctx, "/api/fibonacci/projection", map[string]interface{}{
		"point_a": a, "point_b": b, "point_c": cPoint, "direction": direction,
	})
}
