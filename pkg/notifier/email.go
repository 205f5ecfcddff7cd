package notifier

import (
	"context"
	"crypto/tls"
	"fmt"
	"net/smtp"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"warehouse-notify/internal/domain"
)

type EmailConfig struct {
	Host     string
	Port     string
	Username string
	Password string
	From     string
}

// EmailProvider delivers over SMTP with implicit TLS (port 465 style).
type EmailProvider struct {
	cfg    EmailConfig
	logger *zap.Logger
}

func NewEmailProvider(cfg EmailConfig, logger *zap.Logger) (*EmailProvider, error) {
	if cfg.Host == "" || cfg.Username == "" || cfg.Password == "" {
		return nil, fmt.Errorf("email provider: SMTP_HOST, SMTP_USER and SMTP_PASS are required")
	}
	if cfg.Port == "" {
		cfg.Port = "465"
	}
	if cfg.From == "" {
		cfg.From = cfg.Username
	}
	return &EmailProvider{cfg: cfg, logger: logger}, nil
}

func (p *EmailProvider) Channel() domain.Channel { return domain.ChannelEmail }

func (p *EmailProvider) Send(ctx context.Context, opts SendOptions) Result {
	start := time.Now()
	messageID := uuid.NewString()

	msg := []byte(
		fmt.Sprintf("From: %s\r\n", p.cfg.From) +
			fmt.Sprintf("To: %s\r\n", opts.Recipient) +
			fmt.Sprintf("Subject: %s\r\n", opts.Subject) +
			fmt.Sprintf("Message-ID: <%s@%s>\r\n", messageID, p.cfg.Host) +
			"MIME-Version: 1.0\r\n" + // required for HTML
			"Content-Type: text/html; charset=\"utf-8\"\r\n" +
			"\r\n" +
			opts.Body,
	)

	if err := p.deliver(opts.Recipient, msg); err != nil {
		p.logger.Error("email send failed",
			zap.String("message_id", messageID),
			zap.String("recipient", opts.Recipient),
			zap.String("type", opts.Type),
			zap.Duration("duration", time.Since(start)),
			zap.Error(err))
		return failure(err)
	}

	p.logger.Info("email sent",
		zap.String("message_id", messageID),
		zap.String("recipient", opts.Recipient),
		zap.String("type", opts.Type),
		zap.Duration("duration", time.Since(start)))
	return Result{Success: true, MessageID: messageID}
}

func (p *EmailProvider) deliver(to string, msg []byte) error {
	serverAddr := p.cfg.Host + ":" + p.cfg.Port

	conn, err := tls.Dial("tcp", serverAddr, &tls.Config{ServerName: p.cfg.Host})
	if err != nil {
		return err
	}
	defer conn.Close()

	client, err := smtp.NewClient(conn, p.cfg.Host)
	if err != nil {
		return err
	}
	defer client.Quit()

	auth := smtp.PlainAuth("", p.cfg.Username, p.cfg.Password, p.cfg.Host)
	if err := client.Auth(auth); err != nil {
		return err
	}
	if err := client.Mail(p.cfg.From); err != nil {
		return err
	}
	if err := client.Rcpt(to); err != nil {
		return err
	}

	w, err := client.Data()
	if err != nil {
		return err
	}
	if _, err := w.Write(msg); err != nil {
		return err
	}
	return w.Close()
}
