package enums

import "fmt"

// OutboxEventType enumerates the domain events emitted through the outbox.
type OutboxEventType string

const (
	EventRequestPosted      OutboxEventType = "request.posted"
	EventRequestClosed      OutboxEventType = "request.closed"
	EventHandshakeCreated   OutboxEventType = "handshake.created"
	EventTermsAccepted      OutboxEventType = "handshake.terms_accepted"
	EventHandshakeExecuting OutboxEventType = "handshake.executing"
	EventJobEnded           OutboxEventType = "handshake.job_ended"
	EventHandshakeAccepted  OutboxEventType = "handshake.accepted"
	EventDisputeOpened      OutboxEventType = "dispute.opened"
	EventDisputeVoting      OutboxEventType = "dispute.voting"
	EventDisputeResolved    OutboxEventType = "dispute.resolved"
	EventHandshakeExpired   OutboxEventType = "handshake.expired"
	EventDeadlinePassed     OutboxEventType = "handshake.deadline_passed"
)

var validOutboxEventTypes = []OutboxEventType{
	EventRequestPosted,
	EventRequestClosed,
	EventHandshakeCreated,
	EventTermsAccepted,
	EventHandshakeExecuting,
	EventJobEnded,
	EventHandshakeAccepted,
	EventDisputeOpened,
	EventDisputeVoting,
	EventDisputeResolved,
	EventHandshakeExpired,
	EventDeadlinePassed,
}

// IsValid reports whether the value is a known OutboxEventType.
func (t OutboxEventType) IsValid() bool {
	for _, candidate := range validOutboxEventTypes {
		if candidate == t {
			return true
		}
	}
	return false
}

// OutboxAggregateType names the aggregate a domain event belongs to.
type OutboxAggregateType string

const (
	AggregateRequest   OutboxAggregateType = "request"
	AggregateHandshake OutboxAggregateType = "handshake"
	AggregateDispute   OutboxAggregateType = "dispute"
)

// IsValid reports whether the value is a known OutboxAggregateType.
func (t OutboxAggregateType) IsValid() bool {
	switch t {
	case AggregateRequest, AggregateHandshake, AggregateDispute:
		return true
	}
	return false
}

// ParseOutboxEventType converts raw input into an OutboxEventType.
func ParseOutboxEventType(value string) (OutboxEventType, error) {
	for _, candidate := range validOutboxEventTypes {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid outbox event type %q", value)
}
