package domain

import "time"

type Channel string

const (
	ChannelEmail    Channel = "email"
	ChannelSMS      Channel = "sms"
	ChannelPush     Channel = "push"
	ChannelWhatsApp Channel = "whatsapp"
)

var AllChannels = []Channel{ChannelEmail, ChannelSMS, ChannelPush, ChannelWhatsApp}

func (c Channel) Valid() bool {
	switch c {
	case ChannelEmail, ChannelSMS, ChannelPush, ChannelWhatsApp:
		return true
	}
	return false
}

type IntentStatus string

const (
	IntentPending    IntentStatus = "pending"
	IntentProcessing IntentStatus = "processing"
	IntentCompleted  IntentStatus = "completed"
	IntentFailed     IntentStatus = "failed"
)

// NotificationEvent is an intent row: "this business event should eventually
// produce a user notification". Only queue workers move Status.
type NotificationEvent struct {
	ID          int64                  `json:"id"`
	EventType   EventType              `json:"event_type"`
	EntityType  string                 `json:"entity_type"`
	EntityID    string                 `json:"entity_id"`
	Payload     map[string]interface{} `json:"payload"`
	Status      IntentStatus           `json:"status"`
	LastError   *string                `json:"last_error,omitempty"`
	CreatedAt   time.Time              `json:"created_at"`
	ProcessedAt *time.Time             `json:"processed_at,omitempty"`
}

// Notification is a per-user delivery record. Read is the only field end users
// may mutate. DeliveredAt and FailedAt are mutually exclusive and both
// post-date SentAt once set.
type Notification struct {
	ID           int64                  `json:"id"`
	RequestID    string                 `json:"request_id"`
	UserID       string                 `json:"user_id"`
	Type         string                 `json:"type"`
	Title        string                 `json:"title"`
	Message      string                 `json:"message"`
	Read         bool                   `json:"read"`
	VisibleInApp bool                   `json:"visible_in_app"`
	SentAt       *time.Time             `json:"sent_at,omitempty"`
	DeliveredAt  *time.Time             `json:"delivered_at,omitempty"`
	FailedAt     *time.Time             `json:"failed_at,omitempty"`
	ErrorMessage *string                `json:"error_message,omitempty"`
	Metadata     map[string]interface{} `json:"metadata,omitempty"`
	CreatedAt    time.Time              `json:"created_at"`
}

// NotificationPreferences is read-only to the dispatch path; absence means
// defaults, never an error. Contact fields override the base profile.
type NotificationPreferences struct {
	UserID          string                      `json:"user_id"`
	EmailEnabled    bool                        `json:"email_enabled"`
	SMSEnabled      bool                        `json:"sms_enabled"`
	PushEnabled     bool                        `json:"push_enabled"`
	WhatsAppEnabled bool                        `json:"whatsapp_enabled"`
	TypePreferences map[string]map[Channel]bool `json:"type_preferences,omitempty"`
	Email           string                      `json:"email,omitempty"`
	Phone           string                      `json:"phone,omitempty"`
	WhatsAppNumber  string                      `json:"whatsapp_number,omitempty"`
	Name            string                      `json:"name,omitempty"`
	UpdatedAt       time.Time                   `json:"updated_at"`
}

// DefaultPreferences applies when a user has never saved preferences:
// email and push on, sms and whatsapp off, no per-type overrides.
func DefaultPreferences(userID string) *NotificationPreferences {
	return &NotificationPreferences{
		UserID:       userID,
		EmailEnabled: true,
		PushEnabled:  true,
	}
}

func (p *NotificationPreferences) ChannelEnabled(ch Channel) bool {
	switch ch {
	case ChannelEmail:
		return p.EmailEnabled
	case ChannelSMS:
		return p.SMSEnabled
	case ChannelPush:
		return p.PushEnabled
	case ChannelWhatsApp:
		return p.WhatsAppEnabled
	}
	return false
}

// UserProfile is the base contact record; preference overrides win over it.
type UserProfile struct {
	ID             string `json:"id"`
	Email          string `json:"email"`
	Phone          string `json:"phone"`
	WhatsAppNumber string `json:"whatsapp_number"`
	PushToken      string `json:"push_token"`
	Name           string `json:"name"`
}

type EmailStatus string

const (
	EmailPending EmailStatus = "pending"
	EmailSent    EmailStatus = "sent"
	EmailFailed  EmailStatus = "failed"
	// EmailDead is terminal: the retry ceiling was hit, no further attempts.
	EmailDead EmailStatus = "dead"
)

type EmailQueueItem struct {
	ID        int64       `json:"id"`
	UserID    string      `json:"user_id,omitempty"`
	Recipient string      `json:"recipient"`
	Subject   string      `json:"subject"`
	Body      string      `json:"body"`
	Status    EmailStatus `json:"status"`
	Attempts  int         `json:"attempts"`
	LastError *string     `json:"last_error,omitempty"`
	CreatedAt time.Time   `json:"created_at"`
	SentAt    *time.Time  `json:"sent_at,omitempty"`
}

// ChannelResult is the per-channel outcome of one dispatch.
type ChannelResult struct {
	Channel   Channel `json:"channel"`
	Success   bool    `json:"success"`
	MessageID string  `json:"message_id,omitempty"`
	Error     string  `json:"error,omitempty"`
}

// NotificationResult aggregates a dispatch: Success is true iff at least one
// channel succeeded.
type NotificationResult struct {
	Success        bool            `json:"success"`
	NotificationID int64           `json:"notification_id,omitempty"`
	Results        []ChannelResult `json:"results,omitempty"`
	Error          string          `json:"error,omitempty"`
}

// SendRequest is the dispatcher's single entry point argument.
type SendRequest struct {
	UserID       string                 `json:"user_id"`
	Type         string                 `json:"type"`
	Channels     []Channel              `json:"channels"`
	Title        string                 `json:"title"`
	Message      string                 `json:"message"`
	Template     string                 `json:"template,omitempty"`
	TemplateData map[string]interface{} `json:"template_data,omitempty"`
	Metadata     map[string]interface{} `json:"metadata,omitempty"`
}
