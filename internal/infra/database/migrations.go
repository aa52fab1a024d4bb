package database

import (
	"database/sql"
	"fmt"
)

const schemaSQL = `
CREATE TABLE IF NOT EXISTS clients (
	id UUID PRIMARY KEY,
	name TEXT NOT NULL,
	phone TEXT,
	consent_whatsapp BOOLEAN NOT NULL DEFAULT FALSE,
	created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
	updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
);

CREATE TABLE IF NOT EXISTS appointments (
	id UUID PRIMARY KEY,
	client_id UUID NOT NULL REFERENCES clients(id),
	start_time TIMESTAMPTZ NOT NULL,
	end_time TIMESTAMPTZ NOT NULL,
	reminder_status VARCHAR(16) NOT NULL DEFAULT 'pending',
	reminder_channel VARCHAR(16),
	reminder_provider VARCHAR(16),
	reminder_message_id TEXT,
	reminder_sent_at TIMESTAMPTZ,
	reminder_error TEXT,
	created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
	updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
	CONSTRAINT appointments_time_order CHECK (end_time > start_time)
);

CREATE INDEX IF NOT EXISTS idx_appointments_reminder_window
	ON appointments (reminder_status, start_time);

-- Any edit to an appointment's schedule or client puts the reminder back to
-- 'pending' and clears the previous attempt's metadata. The reminder engine
-- relies on this: only rows explicitly reset to 'pending' are candidates.
CREATE OR REPLACE FUNCTION reset_reminder_on_edit() RETURNS trigger AS $$
BEGIN
	IF NEW.start_time IS DISTINCT FROM OLD.start_time
		OR NEW.end_time IS DISTINCT FROM OLD.end_time
		OR NEW.client_id IS DISTINCT FROM OLD.client_id THEN
		NEW.reminder_status := 'pending';
		NEW.reminder_channel := NULL;
		NEW.reminder_provider := NULL;
		NEW.reminder_message_id := NULL;
		NEW.reminder_sent_at := NULL;
		NEW.reminder_error := NULL;
	END IF;
	NEW.updated_at := NOW();
	RETURN NEW;
END;
$$ LANGUAGE plpgsql;

DROP TRIGGER IF EXISTS appointments_reset_reminder ON appointments;
CREATE TRIGGER appointments_reset_reminder
	BEFORE UPDATE ON appointments
	FOR EACH ROW EXECUTE FUNCTION reset_reminder_on_edit();
`

// Migrate applies the schema. Idempotent, runs at startup.
func Migrate(db *sql.DB) error {
	if _, err := db.Exec(schemaSQL); err != nil {
		return fmt.Errorf("failed to apply schema migration: %w", err)
	}
	return nil
}
