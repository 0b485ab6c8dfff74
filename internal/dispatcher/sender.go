package dispatcher

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/hooklinehq/hookline/internal/model"
	"github.com/hooklinehq/hookline/internal/signature"
)

// maxResponseBody caps how much of a subscriber's response is kept for
// diagnostics.
const maxResponseBody = 1024

// Result holds the outcome of a single delivery attempt.
type Result struct {
	StatusCode int
	Body       string
	Err        string // transport-level error, empty when a response was received
	Duration   time.Duration
}

// Success reports whether the attempt received any 2xx response.
func (r Result) Success() bool {
	return r.StatusCode/100 == 2
}

// Sender performs the outbound HTTP POST for one delivery attempt.
type Sender interface {
	Send(ctx context.Context, sub model.WebhookSubscription, evt model.WebhookEvent) Result
}

type HTTPSender struct {
	client *http.Client
}

func NewHTTPSender(timeout time.Duration) *HTTPSender {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &HTTPSender{client: &http.Client{Timeout: timeout}}
}

var _ Sender = (*HTTPSender)(nil)

// outboundBody is the wire shape subscribers receive.
type outboundBody struct {
	EventID   string          `json:"event_id"`
	EventType string          `json:"event_type"`
	Timestamp string          `json:"timestamp"`
	SourceApp string          `json:"source_app"`
	Data      json.RawMessage `json:"data"`
}

// Send posts the event to the subscription endpoint. The body is canonicalized
// (RFC 8785) before signing and the canonical bytes are what goes on the wire,
// so receivers verify the digest over the raw request body. The delivery header
// carries a fresh correlation id per attempt; retry bookkeeping is keyed by the
// (subscription, event) pair, not by this id.
func (s *HTTPSender) Send(ctx context.Context, sub model.WebhookSubscription, evt model.WebhookEvent) Result {
	data := evt.Payload
	if len(data) == 0 {
		data = json.RawMessage(`{}`)
	}

	raw, err := json.Marshal(outboundBody{
		EventID:   evt.ID,
		EventType: evt.EventType,
		Timestamp: evt.CreatedAt.UTC().Format(time.RFC3339),
		SourceApp: evt.SourceApp,
		Data:      data,
	})
	if err != nil {
		return Result{Err: fmt.Sprintf("marshal body: %v", err)}
	}

	body, err := signature.Canonicalize(raw)
	if err != nil {
		return Result{Err: fmt.Sprintf("canonicalize body: %v", err)}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, sub.EndpointURL, bytes.NewReader(body))
	if err != nil {
		return Result{Err: fmt.Sprintf("build request: %v", err)}
	}

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", "Hookline-Webhooks/1.0")
	req.Header.Set("X-Hookline-Signature", signature.Sign(body, sub.Secret))
	req.Header.Set("X-Hookline-Event", evt.EventType)
	req.Header.Set("X-Hookline-Delivery", uuid.NewString())

	start := time.Now()
	res, err := s.client.Do(req)
	elapsed := time.Since(start)

	if err != nil {
		return Result{Err: err.Error(), Duration: elapsed}
	}
	defer res.Body.Close()

	respBody, _ := io.ReadAll(io.LimitReader(res.Body, maxResponseBody))

	return Result{
		StatusCode: res.StatusCode,
		Body:       string(respBody),
		Duration:   elapsed,
	}
}
