package domain

import "time"

type EventType string

const (
	EventBookingRequested EventType = "booking.requested"
	EventBookingApproved  EventType = "booking.approved"
	EventBookingRejected  EventType = "booking.rejected"
	EventBookingModified  EventType = "booking.modified"

	EventProposalCreated  EventType = "proposal.created"
	EventProposalAccepted EventType = "proposal.accepted"
	EventProposalRejected EventType = "proposal.rejected"

	EventInvoiceGenerated EventType = "invoice.generated"
	EventInvoicePaid      EventType = "invoice.paid"
	EventInvoiceOverdue   EventType = "invoice.overdue"

	EventPaymentReceived EventType = "payment.received"

	EventOccupancyUpdated EventType = "warehouse.occupancy_updated"

	EventTeamMemberInvited EventType = "team.member_invited"
	EventTeamMemberJoined  EventType = "team.member_joined"
)

// EventWildcard matches every event type on the event log's internal channel.
// The production bus only dispatches on exact types.
const EventWildcard EventType = "*"

var eventTypes = map[EventType]struct{}{
	EventBookingRequested:  {},
	EventBookingApproved:   {},
	EventBookingRejected:   {},
	EventBookingModified:   {},
	EventProposalCreated:   {},
	EventProposalAccepted:  {},
	EventProposalRejected:  {},
	EventInvoiceGenerated:  {},
	EventInvoicePaid:       {},
	EventInvoiceOverdue:    {},
	EventPaymentReceived:   {},
	EventOccupancyUpdated:  {},
	EventTeamMemberInvited: {},
	EventTeamMemberJoined:  {},
}

func (t EventType) Valid() bool {
	_, ok := eventTypes[t]
	return ok
}

func EventTypes() []EventType {
	out := make([]EventType, 0, len(eventTypes))
	for t := range eventTypes {
		out = append(out, t)
	}
	return out
}

type AggregateType string

const (
	AggregateBooking   AggregateType = "booking"
	AggregateProposal  AggregateType = "proposal"
	AggregateInvoice   AggregateType = "invoice"
	AggregatePayment   AggregateType = "payment"
	AggregateWarehouse AggregateType = "warehouse"
	AggregateTeam      AggregateType = "team"
	AggregateCompany   AggregateType = "company"
	AggregateUser      AggregateType = "user"
)

var aggregateTypes = map[AggregateType]struct{}{
	AggregateBooking:   {},
	AggregateProposal:  {},
	AggregateInvoice:   {},
	AggregatePayment:   {},
	AggregateWarehouse: {},
	AggregateTeam:      {},
	AggregateCompany:   {},
	AggregateUser:      {},
}

func (t AggregateType) Valid() bool {
	_, ok := aggregateTypes[t]
	return ok
}

// DomainEvent is an immutable fact about a business aggregate. ID, Version and
// OccurredAt are assigned by the event log at append time and never change.
type DomainEvent struct {
	ID            string                 `json:"id"`
	Type          EventType              `json:"type"`
	AggregateID   string                 `json:"aggregate_id"`
	AggregateType AggregateType          `json:"aggregate_type"`
	Version       int                    `json:"version"`
	Payload       map[string]interface{} `json:"payload"`
	Metadata      map[string]interface{} `json:"metadata,omitempty"`
	OccurredAt    time.Time              `json:"occurred_at"`
	CorrelationID string                 `json:"correlation_id,omitempty"`
	CausationID   string                 `json:"causation_id,omitempty"`
}

// PayloadString reads a string field out of the event payload, "" when absent.
func (e DomainEvent) PayloadString(key string) string {
	if e.Payload == nil {
		return ""
	}
	if v, ok := e.Payload[key].(string); ok {
		return v
	}
	return ""
}

// PayloadFloat reads a numeric field out of the event payload.
func (e DomainEvent) PayloadFloat(key string) (float64, bool) {
	if e.Payload == nil {
		return 0, false
	}
	switch v := e.Payload[key].(type) {
	case float64:
		return v, true
	case int:
		return float64(v), true
	case int64:
		return float64(v), true
	}
	return 0, false
}
