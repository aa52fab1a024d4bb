package appointment

import (
	"context"
	"database/sql"
	"time"
)

// Repository defines the operations the reminder engine needs from the
// appointment store. All Mark* writes are conditional on the row still
// being 'pending': the returned bool is false when another run already
// claimed the appointment (zero rows affected), which callers must treat
// as "handled elsewhere", not as an error.
type Repository interface {
	// ListPendingInWindow returns pending appointments whose start time
	// falls in the half-open interval [start, end), with the owning client
	// embedded, ordered ascending by start time.
	ListPendingInWindow(ctx context.Context, start, end time.Time) ([]*Appointment, error)

	// MarkSent records a successful WhatsApp send: status 'sent', channel
	// 'whatsapp', provider and provider-assigned message id, sent-at
	// timestamp, error cleared.
	MarkSent(ctx context.Context, id, provider string, messageID sql.NullString, sentAt time.Time) (bool, error)

	// MarkSkipped records an ineligible appointment: status 'skipped',
	// channel 'calendar_only', sent-at cleared, error set to the reason.
	MarkSkipped(ctx context.Context, id string, reason SkipReason) (bool, error)

	// MarkSendFailed records a failed send attempt: status stays 'pending'
	// so the next run retries, channel 'whatsapp', provider recorded,
	// message id cleared, error set to the failure reason.
	MarkSendFailed(ctx context.Context, id, provider, reason string) (bool, error)
}
