package appointment

import (
	"database/sql"
	"time"
)

// ReminderStatus is the per-appointment reminder lifecycle state.
// An appointment is created as 'pending' and goes back to 'pending'
// whenever its schedule is edited (enforced by a DB trigger, see the
// migration in internal/infra/database).
type ReminderStatus string

const (
	ReminderPending ReminderStatus = "pending"
	ReminderSent    ReminderStatus = "sent"
	ReminderSkipped ReminderStatus = "skipped"
)

// Channel is the notification channel chosen by a reminder run.
type Channel string

const (
	// ChannelWhatsApp is the rich channel, requiring phone + consent.
	ChannelWhatsApp Channel = "whatsapp"
	// ChannelCalendarOnly is the fallback when WhatsApp cannot be used.
	ChannelCalendarOnly Channel = "calendar_only"
)

// Client represents a studio client.
type Client struct {
	ID              string
	Name            string
	Phone           sql.NullString // E.164, optional
	ConsentWhatsApp bool
}

// Appointment represents a booked appointment. Only the reminder-related
// fields are mutated by this service; everything else is owned by the
// dashboard.
type Appointment struct {
	ID             string
	StartTime      time.Time
	EndTime        time.Time
	ReminderStatus ReminderStatus

	// Client is the single owning client, resolved by the repository at
	// query time. Exactly one client per appointment.
	Client Client
}
