package enums

// OutboxDLQErrorReason records why the publisher gave up on an outbox row.
// Values match the CHECK constraint on outbox_dlq.error_reason.
type OutboxDLQErrorReason string

const (
	// every retry failed
	OutboxDLQReasonMaxAttempts OutboxDLQErrorReason = "max_attempts"
	// the row can never publish, e.g. unknown type or undecodable payload
	OutboxDLQReasonNonRetryable OutboxDLQErrorReason = "non_retryable"
)

func (r OutboxDLQErrorReason) IsValid() bool {
	switch r {
	case OutboxDLQReasonMaxAttempts, OutboxDLQReasonNonRetryable:
		return true
	}
	return false
}
