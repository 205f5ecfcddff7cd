package usecase

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"warehouse-notify/internal/domain"
	"warehouse-notify/internal/repository"
	"warehouse-notify/pkg/id"
	"warehouse-notify/pkg/notifier"
	"warehouse-notify/pkg/template"
	"warehouse-notify/pkg/xerrors"
)

// contact is the per-dispatch view of where each channel can reach the user,
// preference overrides first, base profile second.
type contact struct {
	email     string
	phone     string
	whatsapp  string
	pushToken string
	name      string
}

// DispatchUsecase turns one logical notification into per-channel delivery
// attempts with preference filtering and delivery-status bookkeeping.
type DispatchUsecase struct {
	repo      repository.Repository
	providers map[domain.Channel]notifier.Provider
	tmpl      *template.Service
	sf        *id.Snowflake
}

// NewDispatchUsecase wires the dispatcher. providers holds only the channels
// whose credentials were present; tmpl may be nil to skip template rendering.
func NewDispatchUsecase(
	repo repository.Repository,
	providers map[domain.Channel]notifier.Provider,
	tmpl *template.Service,
	sf *id.Snowflake,
) *DispatchUsecase {
	return &DispatchUsecase{
		repo:      repo,
		providers: providers,
		tmpl:      tmpl,
		sf:        sf,
	}
}

// Send is the dispatcher's single entry point. The returned error covers only
// malformed requests and preference-store failures; channel-level transport
// failures land in the result, never in the error.
func (uc *DispatchUsecase) Send(ctx context.Context, req domain.SendRequest) (domain.NotificationResult, error) {
	if req.UserID == "" || req.Type == "" {
		return domain.NotificationResult{}, fmt.Errorf("%w: user id and type required", xerrors.ErrInvalidInput)
	}

	// 1. Preferences; absence means defaults, not an error.
	prefs, err := uc.repo.GetPreferences(ctx, req.UserID)
	if errors.Is(err, xerrors.ErrNotFound) {
		prefs = domain.DefaultPreferences(req.UserID)
	} else if err != nil {
		return domain.NotificationResult{}, fmt.Errorf("load preferences: %w", err)
	}

	// 2. Filter requested channels by global flag and per-type override.
	enabled := filterChannels(prefs, req.Type, req.Channels)
	if len(enabled) == 0 {
		return domain.NotificationResult{
			Success: false,
			Error:   xerrors.ErrNoEnabledChannels.Error(),
		}, nil
	}

	// 3. Contact data, preferences over profile.
	ct := uc.resolveContact(ctx, req.UserID, prefs)

	// 4. One channel-agnostic notification row tracks the whole dispatch.
	sentAt := time.Now().UTC()
	meta := map[string]interface{}{}
	for k, v := range req.Metadata {
		meta[k] = v
	}
	meta["channels_requested"] = channelNames(enabled)

	created, err := uc.repo.CreateNotification(ctx, &domain.Notification{
		RequestID: uc.sf.Generate(),
		UserID:    req.UserID,
		Type:      req.Type,
		Title:     req.Title,
		Message:   req.Message,
		SentAt:    &sentAt,
		Metadata:  meta,
	})
	var notificationID int64
	if err != nil {
		// Delivery still proceeds; only the bookkeeping row is lost.
		log.Printf("⚠️ [Dispatch] error creating notification row for user=%s: %v", req.UserID, err)
	} else {
		notificationID = created.ID
	}

	// 5. One delivery attempt per enabled channel, sequentially.
	results := make([]domain.ChannelResult, 0, len(enabled))
	for _, ch := range enabled {
		results = append(results, uc.sendOnChannel(ctx, ch, req, ct))
	}

	// 6. Any single channel success is overall success.
	var succeeded, failed []string
	for _, r := range results {
		if r.Success {
			succeeded = append(succeeded, string(r.Channel))
		} else {
			failed = append(failed, fmt.Sprintf("%s: %s", r.Channel, r.Error))
		}
	}

	result := domain.NotificationResult{
		Success:        len(succeeded) > 0,
		NotificationID: notificationID,
		Results:        results,
	}
	if len(failed) > 0 {
		result.Error = "some channels failed: " + strings.Join(failed, "; ")
	}

	if notificationID != 0 {
		if err := uc.repo.RecordDeliveryOutcome(ctx, notificationID, result.Success, time.Now().UTC(), result.Error, results); err != nil {
			log.Printf("⚠️ [Dispatch] error recording outcome for notification=%d: %v", notificationID, err)
		}
	}
	return result, nil
}

// SendBulk dispatches the same notification to each user independently; one
// user's failure never affects the others.
func (uc *DispatchUsecase) SendBulk(ctx context.Context, userIDs []string, req domain.SendRequest) []domain.NotificationResult {
	results := make([]domain.NotificationResult, 0, len(userIDs))
	for _, userID := range userIDs {
		r := req
		r.UserID = userID
		res, err := uc.Send(ctx, r)
		if err != nil {
			res = domain.NotificationResult{Success: false, Error: err.Error()}
		}
		results = append(results, res)
	}
	return results
}

func (uc *DispatchUsecase) sendOnChannel(ctx context.Context, ch domain.Channel, req domain.SendRequest, ct contact) domain.ChannelResult {
	provider, ok := uc.providers[ch]
	if !ok || provider == nil {
		return domain.ChannelResult{
			Channel: ch,
			Error:   fmt.Sprintf("%s provider not configured", ch),
		}
	}

	recipient := ct.recipientFor(ch)
	if recipient == "" {
		return domain.ChannelResult{
			Channel: ch,
			Error:   fmt.Sprintf("no %s recipient on file", ch),
		}
	}

	body := uc.renderBody(ch, req, ct)
	res := provider.Send(ctx, notifier.SendOptions{
		UserID:    req.UserID,
		Recipient: recipient,
		Subject:   req.Title,
		Body:      body,
		Type:      req.Type,
		Metadata:  req.Metadata,
	})
	return domain.ChannelResult{
		Channel:   ch,
		Success:   res.Success,
		MessageID: res.MessageID,
		Error:     res.Error,
	}
}

func (uc *DispatchUsecase) renderBody(ch domain.Channel, req domain.SendRequest, ct contact) string {
	if req.Template == "" || uc.tmpl == nil {
		return template.WrapPlain(ch, req.Message)
	}

	data := map[string]interface{}{
		"Title":    req.Title,
		"Message":  req.Message,
		"UserName": ct.name,
		"Year":     time.Now().Year(),
	}
	for k, v := range req.TemplateData {
		data[k] = v
	}

	rendered, err := uc.tmpl.Render(ch, req.Template, data)
	if err != nil {
		log.Printf("⚠️ [Dispatch] %s template %q render failed, falling back to plain text: %v", ch, req.Template, err)
		return template.WrapPlain(ch, req.Message)
	}
	return rendered
}

func (uc *DispatchUsecase) resolveContact(ctx context.Context, userID string, prefs *domain.NotificationPreferences) contact {
	ct := contact{
		email:    prefs.Email,
		phone:    prefs.Phone,
		whatsapp: prefs.WhatsAppNumber,
		name:     prefs.Name,
	}

	profile, err := uc.repo.GetProfile(ctx, userID)
	if err != nil {
		if !errors.Is(err, xerrors.ErrNotFound) {
			log.Printf("⚠️ [Dispatch] could not fetch profile for user=%s: %v", userID, err)
		}
		return ct
	}

	if ct.email == "" {
		ct.email = profile.Email
	}
	if ct.phone == "" {
		ct.phone = profile.Phone
	}
	if ct.whatsapp == "" {
		ct.whatsapp = profile.WhatsAppNumber
	}
	if ct.name == "" {
		ct.name = profile.Name
	}
	ct.pushToken = profile.PushToken
	return ct
}

func (c contact) recipientFor(ch domain.Channel) string {
	switch ch {
	case domain.ChannelEmail:
		return c.email
	case domain.ChannelSMS:
		return c.phone
	case domain.ChannelWhatsApp:
		if c.whatsapp != "" {
			return c.whatsapp
		}
		return c.phone
	case domain.ChannelPush:
		return c.pushToken
	}
	return ""
}

// filterChannels keeps the requested order, drops duplicates and unknown
// channels, and applies the global flag plus the per-type override when one
// exists for that channel.
func filterChannels(prefs *domain.NotificationPreferences, notifType string, requested []domain.Channel) []domain.Channel {
	seen := make(map[domain.Channel]struct{}, len(requested))
	var out []domain.Channel
	for _, ch := range requested {
		if !ch.Valid() {
			continue
		}
		if _, dup := seen[ch]; dup {
			continue
		}
		seen[ch] = struct{}{}

		if !prefs.ChannelEnabled(ch) {
			continue
		}
		if byType, ok := prefs.TypePreferences[notifType]; ok {
			if allowed, present := byType[ch]; present && !allowed {
				continue
			}
		}
		out = append(out, ch)
	}
	return out
}

func channelNames(channels []domain.Channel) []string {
	out := make([]string, len(channels))
	for i, ch := range channels {
		out[i] = string(ch)
	}
	return out
}
