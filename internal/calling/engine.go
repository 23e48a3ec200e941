package calling

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"callpilot/internal/config"
)

// Engine starts an outbound interview call.
type Engine interface {
	InitiateCall(ctx context.Context, req CallRequest) error
}

// EngineError is a non-2xx answer from the calling engine.
type EngineError struct {
	Code int
	Body string
}

func (e *EngineError) Error() string {
	return fmt.Sprintf("calling engine returned %d: %s", e.Code, e.Body)
}

type EngineClient struct {
	baseURL string
	http    *http.Client
	timeout time.Duration
}

func NewEngineClient(cfg config.CallingConfig, client *http.Client) *EngineClient {
	if client == nil {
		client = &http.Client{}
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &EngineClient{baseURL: strings.TrimRight(cfg.BaseURL, "/"), http: client, timeout: timeout}
}

func (c *EngineClient) InitiateCall(ctx context.Context, req CallRequest) error {
	body, err := json.Marshal(req)
	if err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/initiate-call", bytes.NewReader(body))
	if err != nil {
		return err
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(httpReq)
	if err != nil {
		return fmt.Errorf("initiate call: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		b, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return &EngineError{Code: resp.StatusCode, Body: string(b)}
	}
	_, _ = io.Copy(io.Discard, resp.Body)
	return nil
}
