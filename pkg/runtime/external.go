package runtime

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/loopreach-ai/loopreach-engine/pkg/apperrors"
	"github.com/loopreach-ai/loopreach-engine/pkg/models"
)

const (
	defaultExternalTimeout = 30 * time.Second
	maxExternalResponse    = 1 << 20 // 1 MiB
)

// ExternalHTTPRuntime POSTs the invocation input to an agent-owned
// endpoint and decodes the returned Output. Network failures and 5xx
// responses are transient; a missing endpoint or a 4xx response fails
// the invocation permanently.
type ExternalHTTPRuntime struct {
	client *http.Client
	logger *zap.Logger
}

// NewExternalHTTPRuntime creates an ExternalHTTPRuntime with a bounded
// request timeout.
func NewExternalHTTPRuntime(timeout time.Duration, logger *zap.Logger) *ExternalHTTPRuntime {
	if timeout <= 0 {
		timeout = defaultExternalTimeout
	}
	return &ExternalHTTPRuntime{
		client: &http.Client{Timeout: timeout},
		logger: logger,
	}
}

var _ Runtime = (*ExternalHTTPRuntime)(nil)

func (r *ExternalHTTPRuntime) Execute(ctx context.Context, agent *models.Agent, input *Input) (*Output, error) {
	endpoint := agent.Config.GetString("endpoint")
	if endpoint == "" {
		return nil, apperrors.NewConfiguration("agent %s has no endpoint configured", agent.ID)
	}

	input = input.WithConfig(agent.Config)

	body, err := json.Marshal(input)
	if err != nil {
		return nil, fmt.Errorf("marshal runtime input: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, apperrors.NewConfiguration("invalid endpoint %q: %v", endpoint, err)
	}
	req.Header.Set("Content-Type", "application/json")

	start := time.Now()
	resp, err := r.client.Do(req)
	if err != nil {
		return nil, apperrors.Transient(fmt.Errorf("call agent endpoint: %w", err))
	}
	defer resp.Body.Close()

	r.logger.Debug("External agent responded",
		zap.String("agent_id", agent.ID.String()),
		zap.Int("status", resp.StatusCode),
		zap.Duration("duration", time.Since(start)))

	if resp.StatusCode >= 500 {
		return nil, apperrors.Transient(fmt.Errorf("agent endpoint returned %d", resp.StatusCode))
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("agent endpoint returned %d", resp.StatusCode)
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxExternalResponse))
	if err != nil {
		return nil, apperrors.Transient(fmt.Errorf("read agent response: %w", err))
	}

	var out Output
	if err := json.Unmarshal(data, &out); err != nil {
		return nil, fmt.Errorf("decode agent response: %w", err)
	}

	return &out, nil
}
