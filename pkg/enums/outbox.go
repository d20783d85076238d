package enums

// OutboxAggregateType is the aggregate_type_enum column of outbox_events.
type OutboxAggregateType string

const (
	AggregateOrder    OutboxAggregateType = "order"
	AggregateCartItem OutboxAggregateType = "cart_item"
	AggregateReview   OutboxAggregateType = "review"
)

var aggregateTypes = []OutboxAggregateType{AggregateOrder, AggregateCartItem, AggregateReview}

func (a OutboxAggregateType) IsValid() bool {
	_, err := ParseOutboxAggregateType(string(a))
	return err == nil
}

func ParseOutboxAggregateType(raw string) (OutboxAggregateType, error) {
	return parse(aggregateTypes, "aggregate type", raw)
}

// OutboxEventType is the event_type_enum column of outbox_events and the
// event_type message attribute.
type OutboxEventType string

const (
	EventOrderCreated        OutboxEventType = "order_created"
	EventOrderDelivered      OutboxEventType = "order_delivered"
	EventOrderCanceled       OutboxEventType = "order_canceled"
	EventOrderOTPRegenerated OutboxEventType = "order_otp_regenerated"
	EventBargainProposed     OutboxEventType = "bargain_proposed"
	EventBargainResponded    OutboxEventType = "bargain_responded"
	EventReviewSubmitted     OutboxEventType = "review_submitted"
)

var outboxEventTypes = []OutboxEventType{
	EventOrderCreated,
	EventOrderDelivered,
	EventOrderCanceled,
	EventOrderOTPRegenerated,
	EventBargainProposed,
	EventBargainResponded,
	EventReviewSubmitted,
}

func (e OutboxEventType) IsValid() bool {
	_, err := ParseOutboxEventType(string(e))
	return err == nil
}

func ParseOutboxEventType(raw string) (OutboxEventType, error) {
	return parse(outboxEventTypes, "event type", raw)
}

// OutboxDLQErrorReason says why the relay parked a row in outbox_dlq.
type OutboxDLQErrorReason string

const (
	OutboxDLQReasonMaxAttempts  OutboxDLQErrorReason = "max_attempts"
	OutboxDLQReasonNonRetryable OutboxDLQErrorReason = "non_retryable"
)

func (r OutboxDLQErrorReason) IsValid() bool {
	return r == OutboxDLQReasonMaxAttempts || r == OutboxDLQReasonNonRetryable
}
