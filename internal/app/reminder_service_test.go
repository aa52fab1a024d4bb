package app

import (
	"context"
	"database/sql"
	"errors"
	"io"
	"testing"
	"time"

	"studio_reminder_service/internal/domain/appointment"
	"studio_reminder_service/internal/domain/whatsapp"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeRepo is an in-memory appointment.Repository that mimics the
// conditional-update semantics of the Postgres implementation.
type fakeRepo struct {
	appts []*appointment.Appointment

	listErr     error
	markErr     map[string]error // appointment id -> injected write error
	denyClaim   map[string]bool  // appointment id -> simulate concurrent claim
	lastStart   time.Time
	lastEnd     time.Time
	sentRecords map[string]sentRecord
	failReasons map[string]string
	skipReasons map[string]appointment.SkipReason
}

type sentRecord struct {
	provider  string
	messageID sql.NullString
	sentAt    time.Time
}

func newFakeRepo(appts ...*appointment.Appointment) *fakeRepo {
	return &fakeRepo{
		appts:       appts,
		markErr:     make(map[string]error),
		denyClaim:   make(map[string]bool),
		sentRecords: make(map[string]sentRecord),
		failReasons: make(map[string]string),
		skipReasons: make(map[string]appointment.SkipReason),
	}
}

func (r *fakeRepo) ListPendingInWindow(_ context.Context, start, end time.Time) ([]*appointment.Appointment, error) {
	if r.listErr != nil {
		return nil, r.listErr
	}
	r.lastStart, r.lastEnd = start, end
	out := make([]*appointment.Appointment, 0)
	for _, a := range r.appts {
		if a.ReminderStatus != appointment.ReminderPending {
			continue
		}
		if a.StartTime.Before(start) || !a.StartTime.Before(end) {
			continue
		}
		out = append(out, a)
	}
	return out, nil
}

func (r *fakeRepo) find(id string) *appointment.Appointment {
	for _, a := range r.appts {
		if a.ID == id {
			return a
		}
	}
	return nil
}

func (r *fakeRepo) claim(id string) (bool, error) {
	if err := r.markErr[id]; err != nil {
		return false, err
	}
	if r.denyClaim[id] {
		return false, nil
	}
	return true, nil
}

func (r *fakeRepo) MarkSent(_ context.Context, id, provider string, messageID sql.NullString, sentAt time.Time) (bool, error) {
	ok, err := r.claim(id)
	if !ok || err != nil {
		return ok, err
	}
	r.find(id).ReminderStatus = appointment.ReminderSent
	r.sentRecords[id] = sentRecord{provider: provider, messageID: messageID, sentAt: sentAt}
	return true, nil
}

func (r *fakeRepo) MarkSkipped(_ context.Context, id string, reason appointment.SkipReason) (bool, error) {
	ok, err := r.claim(id)
	if !ok || err != nil {
		return ok, err
	}
	r.find(id).ReminderStatus = appointment.ReminderSkipped
	r.skipReasons[id] = reason
	return true, nil
}

func (r *fakeRepo) MarkSendFailed(_ context.Context, id, _, reason string) (bool, error) {
	ok, err := r.claim(id)
	if !ok || err != nil {
		return ok, err
	}
	// Status stays pending: the appointment remains a candidate.
	r.failReasons[id] = reason
	return true, nil
}

type fakeProvider struct {
	id      string
	err     error
	sentTo  []string
	lastMsg whatsapp.Message
}

func (p *fakeProvider) ID() string { return p.id }

func (p *fakeProvider) Send(_ context.Context, toE164 string, msg whatsapp.Message) (*whatsapp.SendResult, error) {
	if p.err != nil {
		return nil, p.err
	}
	p.sentTo = append(p.sentTo, toE164)
	p.lastMsg = msg
	return &whatsapp.SendResult{Provider: p.id, MessageID: p.id}, nil
}

func quietLogger() *logrus.Logger {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return l
}

func testClient(phone string, consent bool) appointment.Client {
	c := appointment.Client{ID: "client-" + phone, Name: "Ana García", ConsentWhatsApp: consent}
	if phone != "" {
		c.Phone = sql.NullString{String: phone, Valid: true}
	}
	return c
}

func pendingAppointment(id string, start time.Time, client appointment.Client) *appointment.Appointment {
	return &appointment.Appointment{
		ID:             id,
		StartTime:      start,
		EndTime:        start.Add(time.Hour),
		ReminderStatus: appointment.ReminderPending,
		Client:         client,
	}
}

func newTestService(repo appointment.Repository, provider whatsapp.Provider) *ReminderService {
	return NewReminderService(repo, provider, quietLogger(), time.UTC, 48*time.Hour, "Ink Masters")
}

// now is 10:23, so the candidate window is [+48h 10:00, +48h 11:00).
var testNow = time.Date(2025, 6, 10, 10, 23, 0, 0, time.UTC)

func inWindowStart() time.Time {
	return time.Date(2025, 6, 12, 10, 30, 0, 0, time.UTC)
}

func TestRun_EligibleClientGetsSimulatedSend(t *testing.T) {
	appt := pendingAppointment("a1", inWindowStart(), testClient("+34600111222", true))
	repo := newFakeRepo(appt)
	provider := &fakeProvider{id: whatsapp.SimulatedProviderID}
	svc := newTestService(repo, provider)

	result, err := svc.Run(context.Background(), testNow)
	require.NoError(t, err)
	require.Equal(t, 1, result.Count)

	item := result.Results[0]
	assert.Equal(t, ActionSimulatedSend, item.Action)
	assert.Equal(t, appointment.ChannelWhatsApp, item.Channel)
	assert.True(t, item.OK)
	assert.Nil(t, item.Error)
	assert.Nil(t, item.Reason)
	require.NotNil(t, item.ClientPhone)
	assert.Equal(t, "+34600111222", *item.ClientPhone)

	assert.Equal(t, appointment.ReminderSent, appt.ReminderStatus)
	rec := repo.sentRecords["a1"]
	assert.Equal(t, "simulated", rec.provider)
	assert.Equal(t, "simulated", rec.messageID.String)
	assert.True(t, rec.sentAt.Equal(testNow))

	require.Len(t, provider.sentTo, 1)
	assert.Equal(t, "Ink Masters", provider.lastMsg.StudioName)
	assert.Equal(t, "Ana García", provider.lastMsg.ClientName)
}

func TestRun_MissingPhoneIsSkipped(t *testing.T) {
	appt := pendingAppointment("a1", inWindowStart(), testClient("", true))
	repo := newFakeRepo(appt)
	provider := &fakeProvider{id: whatsapp.SimulatedProviderID}
	svc := newTestService(repo, provider)

	result, err := svc.Run(context.Background(), testNow)
	require.NoError(t, err)
	require.Equal(t, 1, result.Count)

	item := result.Results[0]
	assert.Equal(t, ActionSkipped, item.Action)
	assert.Equal(t, appointment.ChannelCalendarOnly, item.Channel)
	require.NotNil(t, item.Reason)
	assert.Equal(t, string(appointment.ReasonMissingPhone), *item.Reason)
	assert.True(t, item.OK)

	assert.Equal(t, appointment.ReminderSkipped, appt.ReminderStatus)
	assert.Equal(t, appointment.ReasonMissingPhone, repo.skipReasons["a1"])
	assert.Empty(t, provider.sentTo, "provider must not be called for ineligible clients")
}

func TestRun_NoConsentIsSkipped(t *testing.T) {
	appt := pendingAppointment("a1", inWindowStart(), testClient("+34600111222", false))
	repo := newFakeRepo(appt)
	svc := newTestService(repo, &fakeProvider{id: whatsapp.SimulatedProviderID})

	result, err := svc.Run(context.Background(), testNow)
	require.NoError(t, err)

	item := result.Results[0]
	assert.Equal(t, ActionSkipped, item.Action)
	require.NotNil(t, item.Reason)
	assert.Equal(t, string(appointment.ReasonNoConsent), *item.Reason)
	assert.Equal(t, appointment.ReminderSkipped, appt.ReminderStatus)
}

func TestRun_MisconfiguredProviderKeepsAppointmentPending(t *testing.T) {
	appt := pendingAppointment("a1", inWindowStart(), testClient("+34600111222", true))
	repo := newFakeRepo(appt)
	provider := &fakeProvider{id: whatsapp.MetaProviderID, err: errors.New("missing_configuration")}
	svc := newTestService(repo, provider)

	result, err := svc.Run(context.Background(), testNow)
	require.NoError(t, err, "a per-item provider failure must not fail the run")

	item := result.Results[0]
	assert.Equal(t, ActionSend, item.Action)
	assert.Equal(t, appointment.ChannelWhatsApp, item.Channel)
	assert.False(t, item.OK)
	require.NotNil(t, item.Error)
	assert.Equal(t, "missing_configuration", *item.Error)

	assert.Equal(t, appointment.ReminderPending, appt.ReminderStatus)
	assert.Equal(t, "missing_configuration", repo.failReasons["a1"])
}

func TestRun_FailedSendIsRetriedByNextRun(t *testing.T) {
	appt := pendingAppointment("a1", inWindowStart(), testClient("+34600111222", true))
	repo := newFakeRepo(appt)
	provider := &fakeProvider{id: whatsapp.MetaProviderID, err: errors.New("send_failed")}
	svc := newTestService(repo, provider)

	_, err := svc.Run(context.Background(), testNow)
	require.NoError(t, err)
	assert.Equal(t, appointment.ReminderPending, appt.ReminderStatus)

	// Same window inputs, provider recovered: the appointment reappears.
	provider.err = nil
	result, err := svc.Run(context.Background(), testNow)
	require.NoError(t, err)
	require.Equal(t, 1, result.Count)
	assert.True(t, result.Results[0].OK)
	assert.Equal(t, appointment.ReminderSent, appt.ReminderStatus)
}

func TestRun_SecondRunFindsNoCandidates(t *testing.T) {
	appts := []*appointment.Appointment{
		pendingAppointment("a1", inWindowStart(), testClient("+34600111222", true)),
		pendingAppointment("a2", inWindowStart().Add(10*time.Minute), testClient("", false)),
	}
	repo := newFakeRepo(appts...)
	svc := newTestService(repo, &fakeProvider{id: whatsapp.SimulatedProviderID})

	first, err := svc.Run(context.Background(), testNow)
	require.NoError(t, err)
	assert.Equal(t, 2, first.Count)

	second, err := svc.Run(context.Background(), testNow)
	require.NoError(t, err)
	assert.Equal(t, 0, second.Count, "sent/skipped appointments must not be reprocessed")
}

func TestRun_PerItemPersistenceFailureDoesNotStopBatch(t *testing.T) {
	eligible := pendingAppointment("a1", inWindowStart(), testClient("+34600111222", true))
	ineligible := pendingAppointment("a2", inWindowStart().Add(10*time.Minute), testClient("", true))
	repo := newFakeRepo(eligible, ineligible)
	repo.markErr["a2"] = errors.New("connection reset by peer")
	svc := newTestService(repo, &fakeProvider{id: whatsapp.SimulatedProviderID})

	result, err := svc.Run(context.Background(), testNow)
	require.NoError(t, err)
	require.Equal(t, 2, result.Count)

	// Ascending start-time order is preserved in the report.
	assert.Equal(t, "a1", result.Results[0].AppointmentID)
	assert.Equal(t, "a2", result.Results[1].AppointmentID)

	assert.True(t, result.Results[0].OK)
	assert.Equal(t, appointment.ReminderSent, eligible.ReminderStatus)

	assert.False(t, result.Results[1].OK)
	require.NotNil(t, result.Results[1].Error)
	assert.Contains(t, *result.Results[1].Error, "connection reset")
}

func TestRun_AlreadyClaimedByConcurrentRun(t *testing.T) {
	appt := pendingAppointment("a1", inWindowStart(), testClient("+34600111222", true))
	repo := newFakeRepo(appt)
	repo.denyClaim["a1"] = true
	svc := newTestService(repo, &fakeProvider{id: whatsapp.SimulatedProviderID})

	result, err := svc.Run(context.Background(), testNow)
	require.NoError(t, err)

	item := result.Results[0]
	assert.True(t, item.OK, "a concurrently claimed row is not a failure")
	require.NotNil(t, item.Error)
	assert.Equal(t, "already_claimed", *item.Error)
}

func TestRun_RepositoryReadErrorAbortsRun(t *testing.T) {
	repo := newFakeRepo()
	repo.listErr = errors.New("pq: connection refused")
	svc := newTestService(repo, &fakeProvider{id: whatsapp.SimulatedProviderID})

	result, err := svc.Run(context.Background(), testNow)
	require.Error(t, err)
	assert.Nil(t, result)
	assert.Contains(t, err.Error(), "connection refused")
}

func TestRun_ReportCarriesWindowBounds(t *testing.T) {
	repo := newFakeRepo()
	svc := newTestService(repo, &fakeProvider{id: whatsapp.SimulatedProviderID})

	result, err := svc.Run(context.Background(), testNow)
	require.NoError(t, err)

	expected := ComputeWindow(testNow, 48*time.Hour, time.UTC)
	assert.True(t, result.Window.StartUTC.Equal(expected.Start.UTC()))
	assert.True(t, result.Window.EndUTC.Equal(expected.End.UTC()))
	assert.Equal(t, "UTC", result.TZ)
	assert.NotEmpty(t, result.RunID)
	assert.True(t, result.OK)

	// The repository was queried with the same UTC bounds.
	assert.True(t, repo.lastStart.Equal(expected.Start.UTC()))
	assert.True(t, repo.lastEnd.Equal(expected.End.UTC()))
}
