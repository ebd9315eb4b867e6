package quote

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// IntentsClient talks to an HTTP intents aggregator that returns signed-off
// execution payloads for cross-chain and same-chain routes.
type IntentsClient struct {
	BaseURL string
	APIKey  string
	HTTP    *http.Client
}

func NewIntentsClient(baseURL, apiKey string) *IntentsClient {
	return &IntentsClient{
		BaseURL: strings.TrimRight(strings.TrimSpace(baseURL), "/"),
		APIKey:  strings.TrimSpace(apiKey),
		HTTP: &http.Client{
			Timeout: 15 * time.Second,
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
		return fmt.Sprintf("intents http %d", e.StatusCode)
	}
	return fmt.Sprintf("intents http %d: %s", e.StatusCode, b)
}

func (c *IntentsClient) Name() string { return "intents" }

type intentsResponse struct {
	Result *Response `json:"result"`
	Error  string    `json:"error,omitempty"`
}

func (c *IntentsClient) FetchQuote(ctx context.Context, req Request) (*Response, error) {
	if c.BaseURL == "" {
		return nil, fmt.Errorf("intents base url is not configured")
	}
	if strings.TrimSpace(req.AmountIn) == "" {
		return nil, fmt.Errorf("amountIn is required")
	}

	raw, err := json.Marshal(req)
	if err != nil {
		return nil, err
	}
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.BaseURL+"/quote", bytes.NewReader(raw))
	if err != nil {
		return nil, err
	}
	httpReq.Header.Set("accept", "application/json")
	httpReq.Header.Set("content-type", "application/json")
	if c.APIKey != "" {
		httpReq.Header.Set("x-api-key", c.APIKey)
	}

	res, err := c.HTTP.Do(httpReq)
	if err != nil {
		return nil, err
	}
	defer res.Body.Close()

	body, _ := io.ReadAll(res.Body)
	if res.StatusCode < 200 || res.StatusCode >= 300 {
		return nil, &HTTPError{StatusCode: res.StatusCode, Body: body}
	}

	var out intentsResponse
	if err := json.Unmarshal(body, &out); err != nil {
		return nil, fmt.Errorf("failed to decode intents quote response: %w", err)
	}
	if out.Error != "" {
		return nil, fmt.Errorf("intents: %s", out.Error)
	}
	if out.Result == nil {
		return nil, fmt.Errorf("intents: empty quote")
	}
	return out.Result, nil
}
