// Package mconfig resolves per-merchant integration configuration: endpoint,
// retry budget, integration service mode and security credentials, keyed by
// (merchant slug, journey).
package mconfig

import (
	"context"
	"time"

	"midas/internal/model"
	"midas/lib/security"
)

// Merchant is one merchant's configuration for one journey.
type Merchant struct {
	Slug           string          `json:"slug"`
	MerchantURL    string          `json:"merchant_url"`
	CallbackURL    string          `json:"callback_url"`
	RetryLimit     int             `json:"retry_limit"`
	TimeoutSeconds int             `json:"timeout"`
	CooldownSecs   int             `json:"cooldown"`
	Integration    string          `json:"integration_service"`
	Security       security.Config `json:"security_credentials"`
	// AuditJourneys scopes which journeys are audited for this merchant.
	// Empty means all.
	AuditJourneys []string `json:"audit_journeys"`
}

const (
	defaultTimeout  = 10 * time.Second
	defaultCooldown = time.Hour
)

func (m Merchant) Timeout() time.Duration {
	if m.TimeoutSeconds <= 0 {
		return defaultTimeout
	}
	return time.Duration(m.TimeoutSeconds) * time.Second
}

func (m Merchant) Cooldown() time.Duration {
	if m.CooldownSecs <= 0 {
		return defaultCooldown
	}
	return time.Duration(m.CooldownSecs) * time.Second
}

func (m Merchant) Mode() model.Mode {
	mode, err := model.ParseMode(m.Integration)
	if err != nil {
		return model.ModeSync
	}
	return mode
}

// Journeys parses AuditJourneys, silently skipping unknown names.
func (m Merchant) Journeys() []model.Journey {
	var out []model.Journey
	for _, name := range m.AuditJourneys {
		journey, err := model.ParseJourney(name)
		if err != nil {
			continue
		}
		out = append(out, journey)
	}
	return out
}

// Provider is how the core obtains merchant configuration. Failures surface
// as configuration or service-connection errors.
type Provider interface {
	Merchant(ctx context.Context, slug string, journey model.Journey) (Merchant, error)
}
