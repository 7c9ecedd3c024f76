// Package backoff tracks per-merchant cooldown state. Once a merchant is
// placed on cooldown no outbound attempt is made for it by any caller until
// the cooldown expires; expiry is the only way off cooldown.
package backoff

import (
	"context"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
)

var tracer = otel.Tracer("midas/lib/backoff")

// Store is the shared cooldown state. Implementations must be safe under
// concurrent read/write; last-writer-wins on Activate is acceptable.
type Store interface {
	// Exists reports whether the key is currently set.
	Exists(ctx context.Context, key string) (bool, error)
	// SetWithExpiry sets the key for the given duration.
	SetWithExpiry(ctx context.Context, key string, d time.Duration) error
}

type Gate struct {
	store Store
}

func NewGate(store Store) Gate {
	return Gate{store: store}
}

// OnCooldown reports whether the merchant is currently suppressed. An
// unreachable store fails open: it must never itself become an outage
// amplifier, so errors are logged as warnings and traffic is allowed.
func (g Gate) OnCooldown(ctx context.Context, merchant string) bool {
	ctx, span := tracer.Start(ctx, "gate:OnCooldown")
	defer span.End()
	span.SetAttributes(attribute.KeyValue{
		Key:   "merchant",
		Value: attribute.StringValue(merchant),
	})

	active, err := g.store.Exists(ctx, cooldownKey(merchant))
	if err != nil {
		slog.WarnContext(
			ctx, "cooldown store unreachable, failing open",
			"merchant", merchant,
			"err", err,
		)
		return false
	}
	return active
}

// Activate places the merchant on cooldown for the given duration. Store
// failures are logged, never surfaced: the caller is already handling a
// merchant failure and must not trip over bookkeeping.
func (g Gate) Activate(ctx context.Context, merchant string, d time.Duration) {
	ctx, span := tracer.Start(ctx, "gate:Activate")
	defer span.End()

	err := g.store.SetWithExpiry(ctx, cooldownKey(merchant), d)
	if err != nil {
		slog.WarnContext(
			ctx, "failed to activate cooldown",
			"merchant", merchant,
			"err", err,
		)
		return
	}
	slog.InfoContext(
		ctx, "merchant placed on cooldown",
		"merchant", merchant,
		"duration", d.String(),
	)
}

func cooldownKey(merchant string) string {
	return "backoff:" + merchant
}
