package enums

// OutboxEventType names a notification event queued through the outbox.
type OutboxEventType string

const (
	OutboxEventOrderConfirmation   OutboxEventType = "order.confirmation"
	OutboxEventOrderPaymentFailed  OutboxEventType = "order.payment_failed"
	OutboxEventOrderStaffAlert     OutboxEventType = "order.staff_alert"
	OutboxEventCaptureStuckWarning OutboxEventType = "capture.stuck_warning"
)

// OutboxAggregateType names the entity an outbox event belongs to.
type OutboxAggregateType string

const (
	OutboxAggregateOrder OutboxAggregateType = "order"
)
