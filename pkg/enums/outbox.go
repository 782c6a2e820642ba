package enums

import "fmt"

// OutboxAggregateType names the entity an outbox event belongs to.
type OutboxAggregateType string

const (
	AggregatePayment OutboxAggregateType = "payment"
	AggregateOrder   OutboxAggregateType = "order"
)

func (a OutboxAggregateType) IsValid() bool {
	return a == AggregatePayment || a == AggregateOrder
}

// ParseOutboxAggregateType converts raw input into OutboxAggregateType.
func ParseOutboxAggregateType(value string) (OutboxAggregateType, error) {
	if a := OutboxAggregateType(value); a.IsValid() {
		return a, nil
	}
	return "", fmt.Errorf("invalid aggregate type %q", value)
}

// OutboxEventType names a settlement domain event.
type OutboxEventType string

const (
	EventPaymentSettled     OutboxEventType = "payment_settled"
	EventPaymentFailed      OutboxEventType = "payment_failed"
	EventOrderCreated       OutboxEventType = "order_created"
	EventOrderDelivered     OutboxEventType = "order_delivered"
	EventOrderCancelled     OutboxEventType = "order_cancelled"
	EventOrderAutoCompleted OutboxEventType = "order_auto_completed"
)

// eventAggregates fixes which aggregate every event type is emitted for.
var eventAggregates = map[OutboxEventType]OutboxAggregateType{
	EventPaymentSettled:     AggregatePayment,
	EventPaymentFailed:      AggregatePayment,
	EventOrderCreated:       AggregateOrder,
	EventOrderDelivered:     AggregateOrder,
	EventOrderCancelled:     AggregateOrder,
	EventOrderAutoCompleted: AggregateOrder,
}

func (e OutboxEventType) IsValid() bool {
	_, ok := eventAggregates[e]
	return ok
}

// Aggregate returns the aggregate type e belongs to, or "" when e is unknown.
func (e OutboxEventType) Aggregate() OutboxAggregateType {
	return eventAggregates[e]
}

// ParseOutboxEventType converts raw input into OutboxEventType.
func ParseOutboxEventType(value string) (OutboxEventType, error) {
	if e := OutboxEventType(value); e.IsValid() {
		return e, nil
	}
	return "", fmt.Errorf("invalid event type %q", value)
}
