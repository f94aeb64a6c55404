package submission

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/dmehra2102/medsupply-orders/pkg/apperr"
	"github.com/dmehra2102/medsupply-orders/pkg/orderapi"
	"github.com/dmehra2102/medsupply-orders/pkg/tracing"
)

const (
	DefaultSubmitTimeout = 10 * time.Second
	probeTimeout         = 3 * time.Second
	maxResponseBytes     = 1 << 20
)

// Result is the classified outcome of one submission attempt.
type Result struct {
	Outcome    Outcome
	StatusCode int
	Order      *orderapi.Order
	Replayed   bool
	Err        error
}

type Client struct {
	log     *slog.Logger
	baseURL string
	http    *http.Client
	timeout time.Duration
}

func NewClient(log *slog.Logger, baseURL string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = DefaultSubmitTimeout
	}
	return &Client{
		log:     log,
		baseURL: baseURL,
		http:    &http.Client{Transport: tracing.Transport(nil)},
		timeout: timeout,
	}
}

// Submit posts one order under the client's per-attempt budget. The key travels
// both as a header and inside the payload.
func (c *Client) Submit(ctx context.Context, key string, req orderapi.CreateOrderRequest) Result {
	req.IdempotencyKey = key
	body, err := json.Marshal(req)
	if err != nil {
		return Result{Outcome: OutcomeRejected, Err: fmt.Errorf("encode order: %w", err)}
	}

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+orderapi.OrdersPath, bytes.NewReader(body))
	if err != nil {
		return Result{Outcome: OutcomeRejected, Err: fmt.Errorf("build request: %w", err)}
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set(orderapi.IdempotencyKeyHeader, key)

	resp, err := c.http.Do(httpReq)
	if err != nil {
		c.log.Warn("order submission failed", "key", key, "err", err)
		return Result{Outcome: Classify(0, err), Err: apperr.Transient("submit order", err)}
	}
	defer resp.Body.Close()
	raw, readErr := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))

	res := Result{Outcome: Classify(resp.StatusCode, nil), StatusCode: resp.StatusCode}
	switch res.Outcome {
	case OutcomeSubmitted:
		res.Replayed = resp.Header.Get(orderapi.ReplayedHeader) == "true"
		var o orderapi.Order
		if readErr == nil && json.Unmarshal(raw, &o) == nil {
			res.Order = &o
		}
	case OutcomeRejected:
		res.Err = &RejectedError{StatusCode: resp.StatusCode, Message: errorMessage(raw)}
	default:
		res.Err = apperr.Transient("submit order", fmt.Errorf("server responded %d: %s", resp.StatusCode, errorMessage(raw)))
	}
	c.log.Debug("order submission", "key", key, "status", resp.StatusCode, "outcome", res.Outcome)
	return res
}

func (c *Client) Products(ctx context.Context) ([]orderapi.Product, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()
	var out []orderapi.Product
	if err := c.getJSON(ctx, orderapi.ProductsPath, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// Health probes the order service with a short budget.
func (c *Client) Health(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, probeTimeout)
	defer cancel()
	return c.getJSON(ctx, orderapi.HealthPath, nil)
}

func (c *Client) getJSON(ctx context.Context, path string, v any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return err
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return apperr.Transient("GET "+path, err)
	}
	defer resp.Body.Close()
	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return apperr.Transient("GET "+path, err)
	}
	if resp.StatusCode != http.StatusOK {
		err := fmt.Errorf("GET %s: %d %s", path, resp.StatusCode, errorMessage(raw))
		if Classify(resp.StatusCode, nil) == OutcomeRetryable {
			return apperr.Transient("GET "+path, err)
		}
		return err
	}
	if v == nil {
		return nil
	}
	if err := json.Unmarshal(raw, v); err != nil {
		return fmt.Errorf("decode %s: %w", path, err)
	}
	return nil
}

func errorMessage(raw []byte) string {
	var e orderapi.ErrorResponse
	if json.Unmarshal(raw, &e) == nil && e.Error != "" {
		return e.Error
	}
	if len(raw) > 200 {
		raw = raw[:200]
	}
	return string(bytes.TrimSpace(raw))
}
