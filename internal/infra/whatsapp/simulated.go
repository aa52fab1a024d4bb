package whatsapp

import (
	"context"

	domain "studio_reminder_service/internal/domain/whatsapp"

	"github.com/sirupsen/logrus"
)

// SimulatedProvider always succeeds without touching the network. Used for
// development and demos, and whenever no real backend is configured.
type SimulatedProvider struct {
	logger *logrus.Logger
}

func NewSimulatedProvider(logger *logrus.Logger) *SimulatedProvider {
	return &SimulatedProvider{logger: logger}
}

func (p *SimulatedProvider) ID() string {
	return domain.SimulatedProviderID
}

func (p *SimulatedProvider) Send(_ context.Context, toE164 string, msg domain.Message) (*domain.SendResult, error) {
	p.logger.Infof("Simulated WhatsApp send to %s (client: %s, appointment at %s)",
		toE164, msg.ClientName, msg.StartTime.Format("2006-01-02 15:04"))
	return &domain.SendResult{
		Provider:  domain.SimulatedProviderID,
		MessageID: "simulated",
	}, nil
}
