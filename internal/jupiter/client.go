package jupiter

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

type Client struct {
	BaseURL string
	APIKey  string
	HTTP    *http.Client
}

func NewClient(baseURL, apiKey string) *Client {
	baseURL = strings.TrimRight(strings.TrimSpace(baseURL), "/")
	if baseURL == "" {
		baseURL = "https://api.jup.ag/swap/v1"
	}
	return &Client{
		BaseURL: baseURL,
		APIKey:  strings.TrimSpace(apiKey),
		HTTP: &http.Client{
			Timeout: 12 * time.Second,
		},
	}
}

type HTTPError struct {
	StatusCode int
	Body       []byte
}

func (e *HTTPError) Error() string {
	b := strings.TrimSpace(string(e.Body))
	if b == "" {
		return fmt.Sprintf("jupiter http %d", e.StatusCode)
	}
	return fmt.Sprintf("jupiter http %d: %s", e.StatusCode, b)
}

// Quote asks for the best route between two mints. Only the fields the
// settlement flow needs are exposed on QuoteRequest.
func (c *Client) Quote(ctx context.Context, req QuoteRequest) (*QuoteResponse, error) {
	if strings.TrimSpace(req.InputMint) == "" {
		return nil, fmt.Errorf("inputMint is required")
	}
	if strings.TrimSpace(req.OutputMint) == "" {
		return nil, fmt.Errorf("outputMint is required")
	}
	if strings.TrimSpace(req.Amount) == "" {
		return nil, fmt.Errorf("amount is required")
	}

	q := url.Values{}
	q.Set("inputMint", req.InputMint)
	q.Set("outputMint", req.OutputMint)
	q.Set("amount", req.Amount)
	q.Set("swapMode", "ExactIn")
	q.Set("slippageBps", fmt.Sprintf("%d", req.SlippageBps))
	if req.OnlyDirectRoutes {
		q.Set("onlyDirectRoutes", "true")
	}
	if req.MaxAccounts > 0 {
		q.Set("maxAccounts", fmt.Sprintf("%d", req.MaxAccounts))
	}

	var out QuoteResponse
	if err := c.do(ctx, http.MethodGet, "/quote?"+q.Encode(), nil, &out); err != nil {
		return nil, fmt.Errorf("jupiter quote: %w", err)
	}
	return &out, nil
}

// SwapInstructions turns a quote into the individual instructions of the
// swap so callers can assemble their own transaction around them.
func (c *Client) SwapInstructions(ctx context.Context, req SwapInstructionsRequest) (*SwapInstructionsResponse, error) {
	if req.QuoteResponse == nil {
		return nil, fmt.Errorf("quoteResponse is required")
	}
	if strings.TrimSpace(req.UserPublicKey) == "" {
		return nil, fmt.Errorf("userPublicKey is required")
	}

	var out SwapInstructionsResponse
	if err := c.do(ctx, http.MethodPost, "/swap-instructions", req, &out); err != nil {
		return nil, fmt.Errorf("jupiter swap-instructions: %w", err)
	}
	if out.Error != "" {
		return nil, fmt.Errorf("jupiter swap-instructions: %s", out.Error)
	}
	return &out, nil
}

func (c *Client) do(ctx context.Context, method, path string, body any, out any) error {
	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			return err
		}
		reader = bytes.NewReader(raw)
	}

	httpReq, err := http.NewRequestWithContext(ctx, method, c.BaseURL+path, reader)
	if err != nil {
		return err
	}
	httpReq.Header.Set("accept", "application/json")
	if body != nil {
		httpReq.Header.Set("content-type", "application/json")
	}
	if c.APIKey != "" {
		httpReq.Header.Set("x-api-key", c.APIKey)
	}

	res, err := c.HTTP.Do(httpReq)
	if err != nil {
		return err
	}
	defer res.Body.Close()

	respBody, _ := io.ReadAll(res.Body)
	if res.StatusCode < 200 || res.StatusCode >= 300 {
		return &HTTPError{StatusCode: res.StatusCode, Body: respBody}
	}

	if err := json.Unmarshal(respBody, out); err != nil {
		return fmt.Errorf("failed to decode jupiter response: %w", err)
	}
	return nil
}
