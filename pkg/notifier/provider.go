package notifier

import (
	"context"
	"net/http"
	"time"

	"warehouse-notify/internal/domain"
)

// SendOptions is the uniform input for one channel delivery attempt.
type SendOptions struct {
	UserID    string
	Recipient string
	Subject   string
	Body      string
	Type      string
	Metadata  map[string]interface{}
}

// Result is the uniform outcome. Transport failures land in Error; providers
// never return Go errors for them and never retry internally.
type Result struct {
	Success   bool
	MessageID string
	Error     string
}

func failure(err error) Result {
	return Result{Error: err.Error()}
}

// Provider wraps exactly one external transport behind a uniform send
// contract. Implementations are stateless per call.
type Provider interface {
	Channel() domain.Channel
	Send(ctx context.Context, opts SendOptions) Result
}

func newHTTPClient() *http.Client {
	return &http.Client{Timeout: 10 * time.Second}
}
