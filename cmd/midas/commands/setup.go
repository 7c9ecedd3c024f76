package commands

import (
	"context"

	"midas/internal/agent"
	"midas/internal/agents"
	"midas/internal/alert"
	"midas/internal/audit"
	"midas/internal/join"
	"midas/internal/mconfig"
	"midas/internal/model"
	"midas/internal/outbound"
	"midas/lib/backoff"
	configlibsql "midas/lib/configutil/libsql"
	"midas/lib/security"
	"midas/lib/telemetry"

	"github.com/go-resty/resty/v2"
	"github.com/redis/go-redis/v9"
)

type Config struct {
	// ConfigDir holds per-merchant json5 configuration. ConfigService, when
	// set, takes precedence and is queried instead.
	ConfigDir     string              `json:"config_dir"`
	ConfigService string              `json:"config_service"`
	Redis         string              `json:"redis"`
	TokenDB       configlibsql.Struct `json:"token_db"`
	AuditURL      string              `json:"audit_url"`
	Channel       string              `json:"channel"`
	ConsentURL    string              `json:"consent_url"`
	StatusURL     string              `json:"status_url"`
	Port          int                 `json:"port"`
	Alert         alert.Options       `json:"alert"`
}

func (cfg Config) provider() mconfig.Provider {
	if cfg.ConfigService != "" {
		return mconfig.NewHTTPProvider(cfg.ConfigService, nil)
	}
	return mconfig.NewFileProvider(cfg.ConfigDir)
}

func (cfg Config) gate() backoff.Gate {
	if cfg.Redis == "" {
		return backoff.NewGate(backoff.NewMemoryStore())
	}
	client := redis.NewClient(&redis.Options{Addr: cfg.Redis})
	return backoff.NewGate(backoff.NewRedisStore(client))
}

func (cfg Config) tokenCache() (security.TokenCache, func(), error) {
	if cfg.TokenDB.File == "" && cfg.TokenDB.Url == "" {
		return security.NewMemoryTokenCache(), func() {}, nil
	}
	db, err := cfg.TokenDB.OpenDB(security.Schema)
	if err != nil {
		return nil, nil, err
	}
	return security.NewSqliteTokenCache(db), func() { db.Close() }, nil
}

func (cfg Config) hooks() outbound.Hooks {
	if len(cfg.Alert.Recipients) == 0 {
		return outbound.Hooks{}
	}
	mailer := alert.NewMailer(cfg.Alert)
	return outbound.Hooks{OnCooldownActivated: mailer.CooldownActivated}
}

// buildAgent wires a merchant agent from the configuration. The returned
// cleanup closes the token database when one was opened.
func buildAgent(ctx context.Context, cfg Config, slug, accountID string, journey model.Journey) (agent.Agent, func(), error) {
	merchant, err := cfg.provider().Merchant(ctx, slug, journey)
	if err != nil {
		return nil, nil, err
	}

	cache, cleanup, err := cfg.tokenCache()
	if err != nil {
		return nil, nil, err
	}

	negotiator, err := security.New(merchant.Security, security.Deps{
		Cache:    cache,
		RecordID: outbound.RecordID(accountID),
	})
	if err != nil {
		cleanup()
		return nil, nil, err
	}

	client := resty.New()
	telemetry.InstrumentResty(client, "midas/outbound")
	pipeline := outbound.NewPipeline(cfg.gate(), client, cfg.hooks())

	a, err := agents.New(slug, agent.API{
		AccountID:  accountID,
		Merchant:   merchant,
		Pipeline:   pipeline,
		Negotiator: negotiator,
		Coordinator: join.NewCoordinator(
			pipeline,
			join.NewHTTPConsentSink(cfg.ConsentURL, nil),
			join.NewHTTPStatusPublisher(cfg.StatusURL, nil),
		),
		Audit: audit.NewLogger(audit.Options{
			CollectorURL: cfg.AuditURL,
			Channel:      cfg.Channel,
			PlanSlug:     slug,
			Mode:         merchant.Mode(),
			Journeys:     merchant.Journeys(),
		}),
	})
	if err != nil {
		cleanup()
		return nil, nil, err
	}
	return a, cleanup, nil
}
