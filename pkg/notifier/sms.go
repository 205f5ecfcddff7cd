package notifier

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"warehouse-notify/internal/domain"
)

type SMSConfig struct {
	BaseURL  string
	APIKey   string
	UserID   string
	Password string
	SenderID string
}

// SMSProvider posts form-encoded sends to the SMS gateway's quick-send API.
type SMSProvider struct {
	cfg    SMSConfig
	client *http.Client
	logger *zap.Logger
}

func NewSMSProvider(cfg SMSConfig, logger *zap.Logger) (*SMSProvider, error) {
	if cfg.BaseURL == "" || (cfg.APIKey == "" && cfg.UserID == "") {
		return nil, fmt.Errorf("sms provider: SMS_BASE_URL and either SMS_API_KEY or SMS_USER_ID are required")
	}
	return &SMSProvider{cfg: cfg, client: newHTTPClient(), logger: logger}, nil
}

func (p *SMSProvider) Channel() domain.Channel { return domain.ChannelSMS }

func (p *SMSProvider) Send(ctx context.Context, opts SendOptions) Result {
	start := time.Now()
	messageID := uuid.NewString()

	form := url.Values{}
	form.Set("userid", p.cfg.UserID)
	form.Set("password", p.cfg.Password)
	form.Set("senderid", p.cfg.SenderID)
	form.Set("sendMethod", "quick")
	form.Set("msgType", "text")
	form.Set("msg", opts.Body)
	form.Set("mobile", opts.Recipient)
	form.Set("duplicatecheck", "true")
	form.Set("output", "json")

	apiURL := strings.TrimRight(p.cfg.BaseURL, "/") + "/SMSApi/send"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, apiURL, strings.NewReader(form.Encode()))
	if err != nil {
		return failure(fmt.Errorf("failed to create request: %w", err))
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	if p.cfg.APIKey != "" {
		req.Header.Set("apikey", p.cfg.APIKey)
	}

	resp, err := p.client.Do(req)
	if err != nil {
		p.logger.Error("sms send failed",
			zap.String("recipient", opts.Recipient),
			zap.Error(err))
		return failure(fmt.Errorf("http error: %w", err))
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(resp.Body)
	if resp.StatusCode != http.StatusOK {
		p.logger.Error("sms send rejected",
			zap.String("recipient", opts.Recipient),
			zap.Int("status", resp.StatusCode),
			zap.ByteString("response", body))
		return failure(fmt.Errorf("sms api error: %s", string(body)))
	}

	p.logger.Info("sms sent",
		zap.String("message_id", messageID),
		zap.String("recipient", opts.Recipient),
		zap.Duration("duration", time.Since(start)))
	return Result{Success: true, MessageID: messageID}
}
