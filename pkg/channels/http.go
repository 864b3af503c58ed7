package channels

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/loopreach-ai/loopreach-engine/pkg/apperrors"
	"github.com/loopreach-ai/loopreach-engine/pkg/kv"
)

const maxProviderResponse = 256 << 10 // 256 KiB

// providerClient posts JSON to a provider endpoint with a bounded
// timeout. 5xx and network failures are transient; 4xx is a hard
// rejection of the payload.
type providerClient struct {
	endpoint string
	apiKey   string
	client   *http.Client
}

func newProviderClient(endpoint, apiKey string, timeout time.Duration) *providerClient {
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	return &providerClient{
		endpoint: endpoint,
		apiKey:   apiKey,
		client:   &http.Client{Timeout: timeout},
	}
}

func (p *providerClient) post(ctx context.Context, body map[string]any) (kv.Map, error) {
	data, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("marshal provider request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.endpoint, bytes.NewReader(data))
	if err != nil {
		return nil, apperrors.NewConfiguration("invalid provider endpoint %q: %v", p.endpoint, err)
	}
	req.Header.Set("Content-Type", "application/json")
	if p.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+p.apiKey)
	}

	resp, err := p.client.Do(req)
	if err != nil {
		return nil, apperrors.Transient(fmt.Errorf("call provider: %w", err))
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxProviderResponse))
	if err != nil {
		return nil, apperrors.Transient(fmt.Errorf("read provider response: %w", err))
	}

	if resp.StatusCode >= 500 {
		return nil, apperrors.Transient(fmt.Errorf("provider returned %d: %s", resp.StatusCode, raw))
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, apperrors.Permanent(fmt.Errorf("provider rejected request with %d: %s", resp.StatusCode, raw))
	}

	result := kv.New()
	if len(raw) > 0 {
		var parsed map[string]any
		if err := json.Unmarshal(raw, &parsed); err == nil {
			result = kv.FromAny(parsed)
		}
	}
	return result, nil
}
