package app

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"studio_reminder_service/internal/domain/appointment"
	"studio_reminder_service/internal/domain/whatsapp"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

// Action describes what a run did (or tried to do) for one appointment.
type Action string

const (
	ActionSend          Action = "SEND"
	ActionSimulatedSend Action = "SIMULATED_SEND"
	ActionSkipped       Action = "SKIPPED"
)

// errAlreadyClaimed marks items whose conditional update affected zero rows:
// a concurrent run moved the appointment out of 'pending' first.
const errAlreadyClaimed = "already_claimed"

// ItemResult is the outcome for a single candidate appointment.
type ItemResult struct {
	AppointmentID   string              `json:"appointment_id"`
	StartTime       time.Time           `json:"start_time"`
	ClientName      string              `json:"client_name"`
	ClientPhone     *string             `json:"client_phone"`
	ConsentWhatsApp bool                `json:"consent_whatsapp"`
	Action          Action              `json:"action"`
	Channel         appointment.Channel `json:"channel"`
	Reason          *string             `json:"reason"`
	OK              bool                `json:"ok"`
	Error           *string             `json:"error"`
}

// WindowReport exposes the run window in both UTC and the reference zone.
type WindowReport struct {
	StartUTC   time.Time `json:"start_utc"`
	EndUTC     time.Time `json:"end_utc"`
	StartLocal time.Time `json:"start_local"`
	EndLocal   time.Time `json:"end_local"`
}

// RunResult is the aggregate report of one reminder run.
type RunResult struct {
	OK      bool         `json:"ok"`
	RunID   string       `json:"run_id"`
	TZ      string       `json:"tz"`
	Now     time.Time    `json:"now"`
	Window  WindowReport `json:"window"`
	Count   int          `json:"count"`
	Results []ItemResult `json:"results"`
}

// ReminderRunner is the operation the scheduler and the HTTP trigger invoke.
type ReminderRunner interface {
	Run(ctx context.Context, now time.Time) (*RunResult, error)
}

// ReminderService orchestrates a reminder run: compute the window, fetch
// pending candidates, and process each one sequentially. Per-item failures
// are absorbed into the report; only window-query preconditions fail the
// run as a whole.
type ReminderService struct {
	repo       appointment.Repository
	provider   whatsapp.Provider
	logger     *logrus.Logger
	zone       *time.Location
	leadTime   time.Duration
	studioName string
}

func NewReminderService(
	repo appointment.Repository,
	provider whatsapp.Provider,
	logger *logrus.Logger,
	zone *time.Location,
	leadTime time.Duration,
	studioName string,
) *ReminderService {
	return &ReminderService{
		repo:       repo,
		provider:   provider,
		logger:     logger,
		zone:       zone,
		leadTime:   leadTime,
		studioName: studioName,
	}
}

// Run executes one reminder batch. It returns an error only when the
// candidate query fails; everything after that point is recorded per item.
func (s *ReminderService) Run(ctx context.Context, now time.Time) (*RunResult, error) {
	runID := uuid.NewString()
	window := ComputeWindow(now, s.leadTime, s.zone)

	s.logger.Infof("Reminder run %s: window [%s, %s) in %s (provider: %s)",
		runID, window.Start.Format(time.RFC3339), window.End.Format(time.RFC3339), s.zone, s.provider.ID())

	candidates, err := s.repo.ListPendingInWindow(ctx, window.Start.UTC(), window.End.UTC())
	if err != nil {
		s.logger.Errorf("Reminder run %s: candidate query failed: %v", runID, err)
		return nil, fmt.Errorf("failed to list pending appointments: %w", err)
	}
	s.logger.Infof("Reminder run %s: %d pending appointment(s) in window", runID, len(candidates))

	results := make([]ItemResult, 0, len(candidates))
	for _, a := range candidates {
		results = append(results, s.processCandidate(ctx, runID, a, now))
	}

	return &RunResult{
		OK:    true,
		RunID: runID,
		TZ:    s.zone.String(),
		Now:   now.In(s.zone),
		Window: WindowReport{
			StartUTC:   window.Start.UTC(),
			EndUTC:     window.End.UTC(),
			StartLocal: window.Start,
			EndLocal:   window.End,
		},
		Count:   len(results),
		Results: results,
	}, nil
}

// processCandidate applies exactly one state transition to a candidate and
// reports the outcome. No error escapes this method: a failure in any step
// lands in the item's OK/Error fields so sibling candidates are unaffected.
func (s *ReminderService) processCandidate(ctx context.Context, runID string, a *appointment.Appointment, now time.Time) ItemResult {
	item := ItemResult{
		AppointmentID:   a.ID,
		StartTime:       a.StartTime,
		ClientName:      a.Client.Name,
		ConsentWhatsApp: a.Client.ConsentWhatsApp,
		OK:              true,
	}
	if a.Client.Phone.Valid {
		phone := a.Client.Phone.String
		item.ClientPhone = &phone
	}

	elig := appointment.ResolveEligibility(a.Client)
	if !elig.Eligible {
		return s.skipCandidate(ctx, runID, a, elig.Reason, item)
	}

	result, sendErr := s.provider.Send(ctx, a.Client.Phone.String, whatsapp.Message{
		ClientName: a.Client.Name,
		StartTime:  a.StartTime,
		StudioName: s.studioName,
	})
	if sendErr != nil {
		return s.recordSendFailure(ctx, runID, a, sendErr, item)
	}

	item.Action = ActionSend
	if result.Provider == whatsapp.SimulatedProviderID {
		item.Action = ActionSimulatedSend
	}
	item.Channel = appointment.ChannelWhatsApp

	messageID := sql.NullString{String: result.MessageID, Valid: result.MessageID != ""}
	claimed, err := s.repo.MarkSent(ctx, a.ID, result.Provider, messageID, now)
	if err != nil {
		s.logger.Errorf("Reminder run %s: sent via %s but failed to persist appointment %s: %v", runID, result.Provider, a.ID, err)
		item.OK = false
		msg := err.Error()
		item.Error = &msg
		return item
	}
	if !claimed {
		s.logger.Warnf("Reminder run %s: appointment %s was already claimed by a concurrent run", runID, a.ID)
		msg := errAlreadyClaimed
		item.Error = &msg
		return item
	}

	s.logger.Infof("Reminder run %s: reminder sent for appointment %s (client: %s, provider: %s)", runID, a.ID, a.Client.Name, result.Provider)
	return item
}

func (s *ReminderService) skipCandidate(ctx context.Context, runID string, a *appointment.Appointment, reason appointment.SkipReason, item ItemResult) ItemResult {
	item.Action = ActionSkipped
	item.Channel = appointment.ChannelCalendarOnly
	reasonStr := string(reason)
	item.Reason = &reasonStr

	claimed, err := s.repo.MarkSkipped(ctx, a.ID, reason)
	if err != nil {
		s.logger.Errorf("Reminder run %s: failed to persist skip for appointment %s: %v", runID, a.ID, err)
		item.OK = false
		msg := err.Error()
		item.Error = &msg
		return item
	}
	if !claimed {
		s.logger.Warnf("Reminder run %s: appointment %s was already claimed by a concurrent run", runID, a.ID)
		msg := errAlreadyClaimed
		item.Error = &msg
		return item
	}

	s.logger.Infof("Reminder run %s: appointment %s skipped (client: %s, reason: %s)", runID, a.ID, a.Client.Name, reason)
	return item
}

// recordSendFailure keeps the appointment 'pending' so the next run retries
// it, and records the failure reason on both the row and the report item.
func (s *ReminderService) recordSendFailure(ctx context.Context, runID string, a *appointment.Appointment, sendErr error, item ItemResult) ItemResult {
	s.logger.Errorf("Reminder run %s: send failed for appointment %s via %s: %v", runID, a.ID, s.provider.ID(), sendErr)

	item.Action = ActionSend
	item.Channel = appointment.ChannelWhatsApp
	item.OK = false
	msg := sendErr.Error()
	item.Error = &msg

	claimed, err := s.repo.MarkSendFailed(ctx, a.ID, s.provider.ID(), sendErr.Error())
	if err != nil {
		s.logger.Errorf("Reminder run %s: failed to persist send failure for appointment %s: %v", runID, a.ID, err)
		msg := fmt.Sprintf("%s; %s", sendErr.Error(), err.Error())
		item.Error = &msg
		return item
	}
	if !claimed {
		s.logger.Warnf("Reminder run %s: appointment %s was already claimed by a concurrent run", runID, a.ID)
	}
	return item
}
