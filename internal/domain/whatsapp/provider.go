package whatsapp

import (
	"context"
	"time"
)

// Known provider ids. Selection is a process-wide configuration value,
// never a per-appointment property.
const (
	SimulatedProviderID = "simulated"
	MetaProviderID      = "meta"
)

// Message carries the template parameters for a reminder message.
type Message struct {
	ClientName string
	StartTime  time.Time
	StudioName string
}

// SendResult reports a successful delivery attempt. MessageID is empty
// when the backend does not assign one.
type SendResult struct {
	Provider  string
	MessageID string
}

// Provider is the pluggable backend that transmits a WhatsApp reminder.
// This keeps the reminder engine decoupled from the concrete messaging
// API, the same way the repository interface decouples it from Postgres.
type Provider interface {
	// ID identifies the backend ("simulated" or "meta").
	ID() string

	// Send delivers a reminder to the given E.164 number. A non-nil error
	// means the attempt failed; err.Error() is the failure reason recorded
	// on the appointment.
	Send(ctx context.Context, toE164 string, msg Message) (*SendResult, error)
}
