package whatsapp

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	domain "studio_reminder_service/internal/domain/whatsapp"

	"github.com/sirupsen/logrus"
)

// ErrMissingConfiguration is returned by the Meta provider when it was
// selected but credentials are absent. The provider fails closed instead of
// silently falling back to the simulated backend: a misconfigured selection
// must be visible as a per-appointment failure.
var ErrMissingConfiguration = errors.New("missing_configuration")

const defaultSendTimeout = 10 * time.Second

// MetaConfig configures the WhatsApp Cloud API backend.
type MetaConfig struct {
	PhoneNumberID string
	AccessToken   string
	APIVersion    string // e.g. "v20.0"
	TemplateName  string // e.g. "appointment_reminder_24h"
	LanguageCode  string // e.g. "es"
	BaseURL       string // defaults to the Graph API; overridable in tests
}

// MetaProvider sends template messages through the Meta Graph API.
type MetaProvider struct {
	cfg        MetaConfig
	httpClient *http.Client
	logger     *logrus.Logger
}

func NewMetaProvider(cfg MetaConfig, logger *logrus.Logger) *MetaProvider {
	if cfg.APIVersion == "" {
		cfg.APIVersion = "v20.0"
	}
	if cfg.TemplateName == "" {
		cfg.TemplateName = "appointment_reminder_24h"
	}
	if cfg.LanguageCode == "" {
		cfg.LanguageCode = "es"
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = "https://graph.facebook.com"
	}
	return &MetaProvider{
		cfg:        cfg,
		httpClient: &http.Client{Timeout: defaultSendTimeout},
		logger:     logger,
	}
}

func (p *MetaProvider) ID() string {
	return domain.MetaProviderID
}

type metaTemplateParam struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

type metaTemplateComponent struct {
	Type       string              `json:"type"`
	Parameters []metaTemplateParam `json:"parameters"`
}

type metaSendRequest struct {
	MessagingProduct string `json:"messaging_product"`
	To               string `json:"to"`
	Type             string `json:"type"`
	Template         struct {
		Name     string `json:"name"`
		Language struct {
			Code string `json:"code"`
		} `json:"language"`
		Components []metaTemplateComponent `json:"components"`
	} `json:"template"`
}

type metaSendResponse struct {
	Messages []struct {
		ID string `json:"id"`
	} `json:"messages"`
	Error *struct {
		Message string `json:"message"`
	} `json:"error"`
}

// Send posts a template message to the Graph API. Any non-success HTTP
// outcome or malformed response is translated into an error carrying the
// upstream message, or "send_failed" when none is available.
func (p *MetaProvider) Send(ctx context.Context, toE164 string, msg domain.Message) (*domain.SendResult, error) {
	if p.cfg.PhoneNumberID == "" || p.cfg.AccessToken == "" {
		return nil, ErrMissingConfiguration
	}

	clientName := msg.ClientName
	if clientName == "" {
		clientName = "cliente"
	}
	studioName := msg.StudioName
	if studioName == "" {
		studioName = "tu estudio"
	}

	reqBody := metaSendRequest{
		MessagingProduct: "whatsapp",
		To:               normalizeRecipient(toE164),
		Type:             "template",
	}
	reqBody.Template.Name = p.cfg.TemplateName
	reqBody.Template.Language.Code = p.cfg.LanguageCode
	reqBody.Template.Components = []metaTemplateComponent{{
		Type: "body",
		Parameters: []metaTemplateParam{
			{Type: "text", Text: clientName},
			{Type: "text", Text: msg.StartTime.Format(time.RFC3339)},
			{Type: "text", Text: studioName},
		},
	}}

	payload, err := json.Marshal(reqBody)
	if err != nil {
		return nil, fmt.Errorf("failed to encode send request: %w", err)
	}

	url := fmt.Sprintf("%s/%s/%s/messages", p.cfg.BaseURL, p.cfg.APIVersion, p.cfg.PhoneNumberID)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("failed to build send request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+p.cfg.AccessToken)
	req.Header.Set("Content-Type", "application/json")

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("whatsapp send request failed: %w", err)
	}
	defer resp.Body.Close()

	var body metaSendResponse
	decodeErr := json.NewDecoder(resp.Body).Decode(&body)

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		reason := "send_failed"
		if decodeErr == nil && body.Error != nil && body.Error.Message != "" {
			reason = body.Error.Message
		}
		p.logger.Errorf("WhatsApp Cloud API returned status %d: %s", resp.StatusCode, reason)
		return nil, errors.New(reason)
	}
	if decodeErr != nil {
		return nil, errors.New("send_failed")
	}

	result := &domain.SendResult{Provider: domain.MetaProviderID}
	if len(body.Messages) > 0 {
		result.MessageID = body.Messages[0].ID
	}
	return result, nil
}

// normalizeRecipient strips an optional "whatsapp:" prefix and all
// whitespace from a phone number before handing it to the API.
func normalizeRecipient(to string) string {
	to = strings.TrimPrefix(to, "whatsapp:")
	return strings.Join(strings.Fields(to), "")
}
