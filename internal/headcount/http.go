package headcount

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/ashureev/rollcall/internal/domain"
)

const maxReplyBytes = 64 << 10

// HTTPOracle posts the image to a counting function as
// {"imageData": "<base64 jpeg>"}.
type HTTPOracle struct {
	url    string
	client *http.Client
}

// NewHTTPOracle creates an oracle for the given endpoint. A nil client uses
// one with the given timeout.
func NewHTTPOracle(url string, client *http.Client, timeout time.Duration) *HTTPOracle {
	if client == nil {
		client = &http.Client{Timeout: timeout}
	}
	return &HTTPOracle{url: url, client: client}
}

type estimateRequest struct {
	ImageData string `json:"imageData"`
}

// Estimate sends one request and normalizes the reply.
func (o *HTTPOracle) Estimate(ctx context.Context, jpeg []byte) (int, error) {
	body, err := json.Marshal(estimateRequest{ImageData: base64.StdEncoding.EncodeToString(jpeg)})
	if err != nil {
		return 0, fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, o.url, bytes.NewReader(body))
	if err != nil {
		return 0, fmt.Errorf("%w: build request: %v", domain.ErrOracleUnavailable, err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := o.client.Do(req)
	if err != nil {
		return 0, callError(ctx, err)
	}
	defer resp.Body.Close()

	reply, err := io.ReadAll(io.LimitReader(resp.Body, maxReplyBytes))
	if err != nil {
		return 0, callError(ctx, fmt.Errorf("read reply: %w", err))
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		slog.Warn("Headcount oracle returned non-success status", "status", resp.StatusCode)
		return 0, fmt.Errorf("%w: status %d", domain.ErrOracleUnavailable, resp.StatusCode)
	}

	return ParseCount(reply)
}
