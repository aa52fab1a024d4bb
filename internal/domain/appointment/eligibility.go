package appointment

import "strings"

// SkipReason explains why the rich channel could not be used for a client.
type SkipReason string

const (
	ReasonMissingPhone SkipReason = "missing_phone"
	ReasonNoConsent    SkipReason = "no_consent_whatsapp"
)

// Eligibility is the result of the rich-channel eligibility check.
// Reason is empty when Eligible is true.
type Eligibility struct {
	Eligible bool
	Reason   SkipReason
}

// ResolveEligibility decides whether a client may be contacted over WhatsApp.
// A missing phone wins over missing consent when both checks fail; the
// outcome is ineligible either way, only the reported reason differs.
func ResolveEligibility(c Client) Eligibility {
	if !c.Phone.Valid || strings.TrimSpace(c.Phone.String) == "" {
		return Eligibility{Reason: ReasonMissingPhone}
	}
	if !c.ConsentWhatsApp {
		return Eligibility{Reason: ReasonNoConsent}
	}
	return Eligibility{Eligible: true}
}
