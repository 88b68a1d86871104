package reserve

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/shopspring/decimal"
)

// SweepRequest asks the custody service to move the funds sitting on a
// one-off deposit address into treasury control.
type SweepRequest struct {
	PaymentID       uint64          `json:"payment_id"`
	DerivationIndex int             `json:"derivation_index"`
	FromAddress     string          `json:"from_address"`
	MinUsdtUnits    decimal.Decimal `json:"min_usdt_units"`
}

// SweepResponse is the custody service's record of the executed sweep.
// FundingTxHash/FundedAt are present only when the service had to fund the
// deposit address with gas first.
type SweepResponse struct {
	SweepTxHash   string     `json:"sweep_tx_hash"`
	FundingTxHash string     `json:"funding_tx_hash,omitempty"`
	SweptAt       time.Time  `json:"swept_at"`
	FundedAt      *time.Time `json:"funded_at,omitempty"`
}

// Client is the JSON-over-HTTP client for the reserve/custody service.
// Every call carries the configured timeout; a timed-out call is a sweep
// failure for the caller, never left hanging.
type Client struct {
	httpClient *http.Client
	baseURL    string
	apiKey     string
}

type Config struct {
	BaseURL string
	APIKey  string
	Timeout time.Duration
}

func NewClient(cfg Config) *Client {
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 30 * time.Second
	}

	return &Client{
		httpClient: &http.Client{Timeout: timeout},
		baseURL:    cfg.BaseURL,
		apiKey:     cfg.APIKey,
	}
}

// Sweep executes POST /sweep. Any transport error or non-2xx status is
// returned as an error; the caller treats all of them as retryable.
func (c *Client) Sweep(ctx context.Context, req *SweepRequest) (*SweepResponse, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal sweep request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/sweep", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to create sweep request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		httpReq.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("sweep call failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("sweep call returned status %d: %s", resp.StatusCode, snippet)
	}

	var out SweepResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("failed to decode sweep response: %w", err)
	}
	if out.SweepTxHash == "" {
		return nil, fmt.Errorf("sweep response missing sweep_tx_hash")
	}

	return &out, nil
}

// Health executes GET /health.
func (c *Client) Health(ctx context.Context) error {
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/health", nil)
	if err != nil {
		return err
	}

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return fmt.Errorf("reserve health check failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("reserve health check returned status %d", resp.StatusCode)
	}
	return nil
}
