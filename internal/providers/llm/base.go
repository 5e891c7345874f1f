package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"time"

	"github.com/sandevgo/tuskrelay/internal/core"
)

type baseProvider struct {
	name    string
	client  *http.Client
	baseURL string
	apiKey  string
	model   string
}

func newBaseProvider(name, baseURL, apiKey, model string) baseProvider {
	return baseProvider{
		name: name,
		client: &http.Client{
			Timeout: 120 * time.Second,
		},
		baseURL: baseURL,
		apiKey:  apiKey,
		model:   model,
	}
}

func (b *baseProvider) Name() string {
	return b.name
}

func (b *baseProvider) Model() string {
	return b.model
}

// doRequest sends a JSON request. Transport failures come back as *core.BackendError.
func (b *baseProvider) doRequest(ctx context.Context, method, path string, body any, headers map[string]string) (*http.Response, error) {
	var bodyReader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("marshal: %w", err)
		}
		bodyReader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, b.baseURL+path, bodyReader)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}

	for k, v := range headers {
		req.Header.Set(k, v)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", core.RelayUserAgent)

	resp, err := b.client.Do(req)
	if err != nil {
		return nil, b.fail(ctx, 0, fmt.Errorf("request: %w", err))
	}
	return resp, nil
}

// readBody drains the response and turns non-2xx statuses into *core.BackendError.
func (b *baseProvider) readBody(ctx context.Context, resp *http.Response) ([]byte, error) {
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, b.fail(ctx, 0, fmt.Errorf("read body: %w", err))
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, b.fail(ctx, resp.StatusCode, fmt.Errorf("%s", truncateBody(data)))
	}
	return data, nil
}

func (b *baseProvider) fail(ctx context.Context, status int, err error) error {
	return &core.BackendError{
		Provider:   b.name,
		StatusCode: status,
		Timeout:    isTimeout(ctx, err),
		Err:        err,
	}
}

func isTimeout(ctx context.Context, err error) bool {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}

func truncateBody(data []byte) string {
	const max = 512
	if len(data) > max {
		return string(data[:max]) + "..."
	}
	return string(data)
}
