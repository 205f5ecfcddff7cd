package notifier

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"warehouse-notify/internal/domain"
)

type PushConfig struct {
	GatewayURL string
	ServerKey  string
}

// PushProvider posts to the platform push gateway. Recipient is the device
// registration token.
type PushProvider struct {
	cfg    PushConfig
	client *http.Client
	logger *zap.Logger
}

func NewPushProvider(cfg PushConfig, logger *zap.Logger) (*PushProvider, error) {
	if cfg.GatewayURL == "" || cfg.ServerKey == "" {
		return nil, fmt.Errorf("push provider: PUSH_GATEWAY_URL and PUSH_SERVER_KEY are required")
	}
	return &PushProvider{cfg: cfg, client: newHTTPClient(), logger: logger}, nil
}

func (p *PushProvider) Channel() domain.Channel { return domain.ChannelPush }

func (p *PushProvider) Send(ctx context.Context, opts SendOptions) Result {
	start := time.Now()
	messageID := uuid.NewString()

	payload := map[string]interface{}{
		"to": opts.Recipient,
		"notification": map[string]string{
			"title": opts.Subject,
			"body":  opts.Body,
		},
		"data": opts.Metadata,
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return failure(fmt.Errorf("failed to marshal push payload: %w", err))
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.cfg.GatewayURL, bytes.NewBuffer(body))
	if err != nil {
		return failure(fmt.Errorf("failed to create push request: %w", err))
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "key="+p.cfg.ServerKey)

	resp, err := p.client.Do(req)
	if err != nil {
		p.logger.Error("push send failed",
			zap.String("user_id", opts.UserID),
			zap.Error(err))
		return failure(fmt.Errorf("http error: %w", err))
	}
	defer resp.Body.Close()

	respBody, _ := io.ReadAll(resp.Body)
	if resp.StatusCode != http.StatusOK {
		p.logger.Error("push send rejected",
			zap.String("user_id", opts.UserID),
			zap.Int("status", resp.StatusCode),
			zap.ByteString("response", respBody))
		return failure(fmt.Errorf("push gateway error: %s", string(respBody)))
	}

	p.logger.Info("push sent",
		zap.String("message_id", messageID),
		zap.String("user_id", opts.UserID),
		zap.Duration("duration", time.Since(start)))
	return Result{Success: true, MessageID: messageID}
}
