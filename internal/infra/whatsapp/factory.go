package whatsapp

import (
	domain "studio_reminder_service/internal/domain/whatsapp"
	"studio_reminder_service/internal/infra/config"

	"github.com/sirupsen/logrus"
)

// NewProvider selects the backend once, from configuration, at wiring time.
// A "meta" selection without credentials still yields the Meta provider: it
// fails closed on every send rather than masking the misconfiguration with
// the simulated backend.
func NewProvider(cfg *config.AppConfig, logger *logrus.Logger) domain.Provider {
	if cfg.WhatsAppProvider == "meta" {
		return NewMetaProvider(MetaConfig{
			PhoneNumberID: cfg.WhatsAppPhoneNumberID,
			AccessToken:   cfg.WhatsAppAccessToken,
			APIVersion:    cfg.WhatsAppAPIVersion,
			TemplateName:  cfg.WhatsAppTemplateName,
			LanguageCode:  cfg.WhatsAppLanguageCode,
		}, logger)
	}
	return NewSimulatedProvider(logger)
}
