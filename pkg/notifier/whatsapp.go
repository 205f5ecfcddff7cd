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

type WhatsAppConfig struct {
	BaseURL string
	Token   string
	Sender  string
}

// WhatsAppProvider posts JSON sends to the WhatsApp gateway's REST API.
type WhatsAppProvider struct {
	cfg    WhatsAppConfig
	client *http.Client
	logger *zap.Logger
}

func NewWhatsAppProvider(cfg WhatsAppConfig, logger *zap.Logger) (*WhatsAppProvider, error) {
	if cfg.BaseURL == "" || cfg.Token == "" || cfg.Sender == "" {
		return nil, fmt.Errorf("whatsapp provider: WA_BASE_URL, WA_TOKEN and WA_SENDER are required")
	}
	return &WhatsAppProvider{cfg: cfg, client: newHTTPClient(), logger: logger}, nil
}

func (p *WhatsAppProvider) Channel() domain.Channel { return domain.ChannelWhatsApp }

func (p *WhatsAppProvider) Send(ctx context.Context, opts SendOptions) Result {
	start := time.Now()
	messageID := uuid.NewString()

	payload := map[string]interface{}{
		"messageType": "text",
		"requestType": "POST",
		"token":       p.cfg.Token,
		"from":        p.cfg.Sender,
		"to":          opts.Recipient,
		"text":        opts.Body,
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return failure(fmt.Errorf("failed to marshal whatsapp payload: %w", err))
	}

	apiURL := fmt.Sprintf("%s/api/qr/rest/send_message", p.cfg.BaseURL)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, apiURL, bytes.NewBuffer(body))
	if err != nil {
		return failure(fmt.Errorf("failed to create whatsapp request: %w", err))
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := p.client.Do(req)
	if err != nil {
		p.logger.Error("whatsapp send failed",
			zap.String("recipient", opts.Recipient),
			zap.Error(err))
		return failure(fmt.Errorf("http error: %w", err))
	}
	defer resp.Body.Close()

	respBody, _ := io.ReadAll(resp.Body)
	if resp.StatusCode != http.StatusOK {
		p.logger.Error("whatsapp send rejected",
			zap.String("recipient", opts.Recipient),
			zap.Int("status", resp.StatusCode),
			zap.ByteString("response", respBody))
		return failure(fmt.Errorf("whatsapp api error: %s", string(respBody)))
	}

	p.logger.Info("whatsapp sent",
		zap.String("message_id", messageID),
		zap.String("recipient", opts.Recipient),
		zap.Duration("duration", time.Since(start)))
	return Result{Success: true, MessageID: messageID}
}
