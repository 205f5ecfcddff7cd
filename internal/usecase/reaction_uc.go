package usecase

import (
	"context"
	"fmt"
	"log"

	"warehouse-notify/internal/domain"
	"warehouse-notify/internal/eventbus"
	"warehouse-notify/internal/repository"
)

// occupancyAlertThreshold is the fill percentage at or above which the
// warehouse owner gets a direct notification.
const occupancyAlertThreshold = 90.0

// route describes how one business event turns into notification writes:
// which intent row to persist, and whether a direct per-user notification is
// warranted without waiting for the next worker tick.
type route struct {
	entityType   string
	entityKey    string
	recipientKey string // "" = intent only, no direct notification
	notifType    string
	title        string
	message      func(evt domain.DomainEvent) string
	condition    func(evt domain.DomainEvent) bool // nil = unconditional
}

func nameOrID(evt domain.DomainEvent, nameKey, idKey string) string {
	if v := evt.PayloadString(nameKey); v != "" {
		return v
	}
	return evt.PayloadString(idKey)
}

var routes = map[domain.EventType]route{
	domain.EventBookingRequested: {
		entityType:   "booking",
		entityKey:    "bookingId",
		recipientKey: "warehouseOwnerId",
		notifType:    "booking",
		title:        "New Booking Request",
		message: func(evt domain.DomainEvent) string {
			return fmt.Sprintf("You have a new booking request for warehouse %s.", nameOrID(evt, "warehouseName", "warehouseId"))
		},
	},
	domain.EventBookingApproved: {
		entityType:   "booking",
		entityKey:    "bookingId",
		recipientKey: "customerId",
		notifType:    "booking",
		title:        "Booking Approved",
		message: func(evt domain.DomainEvent) string {
			return fmt.Sprintf("Your booking at %s has been approved.", nameOrID(evt, "warehouseName", "warehouseId"))
		},
	},
	domain.EventBookingRejected: {
		entityType:   "booking",
		entityKey:    "bookingId",
		recipientKey: "customerId",
		notifType:    "booking",
		title:        "Booking Request Declined",
		message: func(evt domain.DomainEvent) string {
			return fmt.Sprintf("Your booking request at %s was declined.", nameOrID(evt, "warehouseName", "warehouseId"))
		},
	},
	domain.EventBookingModified: {
		entityType:   "booking",
		entityKey:    "bookingId",
		recipientKey: "customerId",
		notifType:    "booking",
		title:        "Booking Updated",
		message: func(evt domain.DomainEvent) string {
			return fmt.Sprintf("Booking %s has been updated.", evt.PayloadString("bookingId"))
		},
	},
	domain.EventProposalCreated: {
		entityType:   "proposal",
		entityKey:    "proposalId",
		recipientKey: "customerId",
		notifType:    "proposal",
		title:        "New Proposal Received",
		message: func(evt domain.DomainEvent) string {
			return fmt.Sprintf("You received a proposal from %s.", nameOrID(evt, "warehouseName", "warehouseId"))
		},
	},
	domain.EventProposalAccepted: {
		entityType:   "proposal",
		entityKey:    "proposalId",
		recipientKey: "warehouseOwnerId",
		notifType:    "proposal",
		title:        "Proposal Accepted",
		message: func(evt domain.DomainEvent) string {
			return fmt.Sprintf("Your proposal %s was accepted.", evt.PayloadString("proposalId"))
		},
	},
	domain.EventProposalRejected: {
		entityType:   "proposal",
		entityKey:    "proposalId",
		recipientKey: "warehouseOwnerId",
		notifType:    "proposal",
		title:        "Proposal Declined",
		message: func(evt domain.DomainEvent) string {
			return fmt.Sprintf("Your proposal %s was declined.", evt.PayloadString("proposalId"))
		},
	},
	domain.EventInvoiceGenerated: {
		entityType:   "invoice",
		entityKey:    "invoiceId",
		recipientKey: "customerId",
		notifType:    "invoice",
		title:        "New Invoice",
		message: func(evt domain.DomainEvent) string {
			return fmt.Sprintf("Invoice %s is ready for payment.", nameOrID(evt, "invoiceNumber", "invoiceId"))
		},
	},
	domain.EventInvoicePaid: {
		entityType:   "invoice",
		entityKey:    "invoiceId",
		recipientKey: "warehouseOwnerId",
		notifType:    "invoice",
		title:        "Invoice Paid",
		message: func(evt domain.DomainEvent) string {
			return fmt.Sprintf("Invoice %s has been paid.", nameOrID(evt, "invoiceNumber", "invoiceId"))
		},
	},
	domain.EventInvoiceOverdue: {
		entityType:   "invoice",
		entityKey:    "invoiceId",
		recipientKey: "customerId",
		notifType:    "invoice",
		title:        "Invoice Overdue",
		message: func(evt domain.DomainEvent) string {
			return fmt.Sprintf("Invoice %s is overdue. Please settle it to avoid service interruption.", nameOrID(evt, "invoiceNumber", "invoiceId"))
		},
	},
	domain.EventPaymentReceived: {
		entityType:   "payment",
		entityKey:    "paymentId",
		recipientKey: "customerId",
		notifType:    "payment",
		title:        "Payment Received",
		message: func(evt domain.DomainEvent) string {
			return fmt.Sprintf("We received your payment for invoice %s.", nameOrID(evt, "invoiceNumber", "invoiceId"))
		},
	},
	domain.EventOccupancyUpdated: {
		entityType:   "warehouse",
		entityKey:    "warehouseId",
		recipientKey: "warehouseOwnerId",
		notifType:    "warehouse",
		title:        "Warehouse Almost Full",
		message: func(evt domain.DomainEvent) string {
			rate, _ := evt.PayloadFloat("occupancyRate")
			return fmt.Sprintf("Warehouse %s is at %.0f%% occupancy.", nameOrID(evt, "warehouseName", "warehouseId"), rate)
		},
		condition: func(evt domain.DomainEvent) bool {
			rate, ok := evt.PayloadFloat("occupancyRate")
			return ok && rate >= occupancyAlertThreshold
		},
	},
	domain.EventTeamMemberInvited: {
		entityType:   "team",
		entityKey:    "teamId",
		recipientKey: "invitedUserId",
		notifType:    "team",
		title:        "Team Invitation",
		message: func(evt domain.DomainEvent) string {
			return fmt.Sprintf("You have been invited to join %s.", nameOrID(evt, "companyName", "teamId"))
		},
	},
	domain.EventTeamMemberJoined: {
		entityType:   "team",
		entityKey:    "teamId",
		recipientKey: "ownerId",
		notifType:    "team",
		title:        "New Team Member",
		message: func(evt domain.DomainEvent) string {
			return fmt.Sprintf("%s joined your team.", nameOrID(evt, "memberName", "memberId"))
		},
	},
}

// ReactionUsecase subscribes one handler per business event type. Each
// handler persists a pending intent row and, where the event has a clear
// single recipient, a direct in-app notification so that user sees it before
// the next worker tick.
type ReactionUsecase struct {
	repo repository.Repository
}

func NewReactionUsecase(repo repository.Repository) *ReactionUsecase {
	return &ReactionUsecase{repo: repo}
}

// Register subscribes every routed event type on the bus at priority 0.
func (uc *ReactionUsecase) Register(bus *eventbus.Bus) error {
	for eventType := range routes {
		if _, err := bus.On(eventType, uc.Handle, 0); err != nil {
			return fmt.Errorf("register reaction for %s: %w", eventType, err)
		}
	}
	return nil
}

// Handle persists the intent row and, when warranted, the direct
// notification. A persistence failure here surfaces through the bus's
// per-handler isolation; the queue worker owns retries.
func (uc *ReactionUsecase) Handle(ctx context.Context, evt domain.DomainEvent) error {
	r, ok := routes[evt.Type]
	if !ok {
		return nil
	}

	// Intent first, unconditionally, for audit completeness.
	if _, err := uc.repo.CreateIntent(ctx, &domain.NotificationEvent{
		EventType:  evt.Type,
		EntityType: r.entityType,
		EntityID:   evt.PayloadString(r.entityKey),
		Payload:    evt.Payload,
		Status:     domain.IntentPending,
	}); err != nil {
		return fmt.Errorf("persist intent for %s: %w", evt.Type, err)
	}

	if r.recipientKey == "" {
		return nil
	}
	if r.condition != nil && !r.condition(evt) {
		return nil
	}

	recipient := evt.PayloadString(r.recipientKey)
	if recipient == "" {
		log.Printf("⚠️ [Reactions] %s carries no %s, skipping direct notification", evt.Type, r.recipientKey)
		return nil
	}

	_, err := uc.repo.CreateNotification(ctx, &domain.Notification{
		RequestID: evt.ID,
		UserID:    recipient,
		Type:      r.notifType,
		Title:     r.title,
		Message:   r.message(evt),
		Metadata: map[string]interface{}{
			"event_id":   evt.ID,
			"event_type": string(evt.Type),
			"entity_id":  evt.PayloadString(r.entityKey),
			"direct":     true,
		},
	})
	if err != nil {
		return fmt.Errorf("persist direct notification for %s: %w", evt.Type, err)
	}
	return nil
}
