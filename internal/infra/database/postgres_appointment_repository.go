package database

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"studio_reminder_service/internal/domain/appointment"
)

type PostgresAppointmentRepository struct {
	db *sql.DB
}

func NewPostgresAppointmentRepository(db *sql.DB) *PostgresAppointmentRepository {
	return &PostgresAppointmentRepository{db: db}
}

// ListPendingInWindow fetches pending appointments with start_time in
// [start, end), each with its single owning client embedded. Ordered by
// start time so the run report is deterministic and human-reviewable.
func (r *PostgresAppointmentRepository) ListPendingInWindow(ctx context.Context, start, end time.Time) ([]*appointment.Appointment, error) {
	query := `SELECT a.id, a.start_time, a.end_time, a.reminder_status,
	                 c.id, c.name, c.phone, c.consent_whatsapp
	          FROM appointments a
	          JOIN clients c ON c.id = a.client_id
	          WHERE a.reminder_status = $1
	            AND a.start_time >= $2
	            AND a.start_time < $3
	          ORDER BY a.start_time ASC`

	rows, err := r.db.QueryContext(ctx, query, appointment.ReminderPending, start, end)
	if err != nil {
		return nil, fmt.Errorf("error querying pending appointments in window: %w", err)
	}
	defer rows.Close()

	appts := make([]*appointment.Appointment, 0)
	for rows.Next() {
		a := appointment.Appointment{}
		if err := rows.Scan(
			&a.ID, &a.StartTime, &a.EndTime, &a.ReminderStatus,
			&a.Client.ID, &a.Client.Name, &a.Client.Phone, &a.Client.ConsentWhatsApp,
		); err != nil {
			return nil, fmt.Errorf("error scanning appointment row: %w", err)
		}
		appts = append(appts, &a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating appointment rows: %w", err)
	}
	return appts, nil
}

// MarkSent moves an appointment to 'sent'. The WHERE clause doubles as a
// compare-and-swap on the current status: zero rows affected means another
// run claimed the row first.
func (r *PostgresAppointmentRepository) MarkSent(ctx context.Context, id, provider string, messageID sql.NullString, sentAt time.Time) (bool, error) {
	query := `UPDATE appointments
	          SET reminder_status = $1,
	              reminder_channel = $2,
	              reminder_provider = $3,
	              reminder_message_id = $4,
	              reminder_sent_at = $5,
	              reminder_error = NULL
	          WHERE id = $6 AND reminder_status = $7`
	res, err := r.db.ExecContext(ctx, query,
		appointment.ReminderSent, appointment.ChannelWhatsApp, provider, messageID, sentAt,
		id, appointment.ReminderPending)
	if err != nil {
		return false, fmt.Errorf("error marking appointment %s as sent: %w", id, err)
	}
	return claimedRows(res)
}

// MarkSkipped moves an ineligible appointment to 'skipped' with the fallback
// channel. Provider and message id are left untouched: no attempt was made.
func (r *PostgresAppointmentRepository) MarkSkipped(ctx context.Context, id string, reason appointment.SkipReason) (bool, error) {
	query := `UPDATE appointments
	          SET reminder_status = $1,
	              reminder_channel = $2,
	              reminder_sent_at = NULL,
	              reminder_error = $3
	          WHERE id = $4 AND reminder_status = $5`
	res, err := r.db.ExecContext(ctx, query,
		appointment.ReminderSkipped, appointment.ChannelCalendarOnly, string(reason),
		id, appointment.ReminderPending)
	if err != nil {
		return false, fmt.Errorf("error marking appointment %s as skipped: %w", id, err)
	}
	return claimedRows(res)
}

// MarkSendFailed records a failed attempt while keeping the row 'pending',
// so the next hourly run with the same window picks it up again.
func (r *PostgresAppointmentRepository) MarkSendFailed(ctx context.Context, id, provider, reason string) (bool, error) {
	query := `UPDATE appointments
	          SET reminder_channel = $1,
	              reminder_provider = $2,
	              reminder_message_id = NULL,
	              reminder_error = $3
	          WHERE id = $4 AND reminder_status = $5`
	res, err := r.db.ExecContext(ctx, query,
		appointment.ChannelWhatsApp, provider, reason,
		id, appointment.ReminderPending)
	if err != nil {
		return false, fmt.Errorf("error recording send failure for appointment %s: %w", id, err)
	}
	return claimedRows(res)
}

func claimedRows(res sql.Result) (bool, error) {
	rows, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("error reading rows affected: %w", err)
	}
	return rows > 0, nil
}
