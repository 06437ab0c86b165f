package provider

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/waplink/waplink/internal/apperr"
	"github.com/waplink/waplink/internal/config"
)

// engineClient is the HTTP plumbing shared by the Evolution and Codechat
// gateways. Instance management calls (create, connect, state) go through
// the long-timeout client because pairing can take a while; everything
// else uses the short detail client, gated by the rate limiter.
type engineClient struct {
	baseURL     string
	globalToken string
	connect     *http.Client
	detail      *http.Client
	limiter     *Limiter
}

func newEngineClient(cfg config.ProviderConfig) engineClient {
	return engineClient{
		baseURL:     strings.TrimRight(cfg.BaseURL, "/"),
		globalToken: cfg.GlobalToken,
		connect:     &http.Client{Timeout: cfg.ConnectTimeout},
		detail:      &http.Client{Timeout: cfg.DetailTimeout},
		limiter:     NewLimiter(cfg.RequestsPerMinute),
	}
}

// do executes one request and decodes the JSON response into out (when
// out is non-nil). bearer is the per-instance token; empty means the call
// only needs the engine-wide apikey header.
func (c *engineClient) do(ctx context.Context, httpc *http.Client, method, path, bearer string, body, out any) error {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.globalToken != "" {
		req.Header.Set("apikey", c.globalToken)
	}
	if bearer != "" {
		req.Header.Set("Authorization", "Bearer "+bearer)
	}

	resp, err := httpc.Do(req)
	if err != nil {
		return apperr.Upstream(fmt.Sprintf("%s %s", method, path), err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return apperr.Upstream(
			fmt.Sprintf("%s %s: status %d", method, path, resp.StatusCode),
			fmt.Errorf("%s", strings.TrimSpace(string(snippet))),
		)
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return apperr.Upstream(fmt.Sprintf("%s %s: decode response", method, path), err)
	}
	return nil
}

// waitDetail blocks on the outbound rate limiter before a detail call.
func (c *engineClient) waitDetail(ctx context.Context) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return apperr.Upstream("rate limiter wait", err)
	}
	return nil
}
