package outbound

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"midas/internal/audit"
	"midas/internal/mconfig"
	"midas/internal/model"
	"midas/internal/status"
	"midas/lib/backoff"
	"midas/lib/security"
	"midas/lib/telemetry"

	"github.com/go-resty/resty/v2"
	"github.com/mazen160/go-random"
	"github.com/stretchr/testify/require"
)

// recordingNegotiator wraps the open scheme and records the refresh flags
// passed to each encode.
type recordingNegotiator struct {
	security.Negotiator
	refreshes []bool
}

func (r *recordingNegotiator) Encode(ctx context.Context, payload map[string]any, opts security.EncodeOptions) (security.Encoded, error) {
	r.refreshes = append(r.refreshes, opts.ForceRefresh)
	return r.Negotiator.Encode(ctx, payload, opts)
}

type fixture struct {
	pipeline   Pipeline
	gate       backoff.Gate
	audit      *audit.Logger
	negotiator *recordingNegotiator
	merchant   mconfig.Merchant
	cooldowns  []string
}

func setup(t *testing.T, merchantURL string) *fixture {
	cleanup := telemetry.SetupForTesting(t, "test:internal/outbound")
	t.Cleanup(cleanup)

	f := &fixture{}
	f.gate = backoff.NewGate(backoff.NewMemoryStore())

	// collector that always accepts
	collector := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	t.Cleanup(collector.Close)
	f.audit = audit.NewLogger(audit.Options{
		CollectorURL: collector.URL,
		Channel:      "bink",
		PlanSlug:     "iceland-bonus-card",
		Mode:         model.ModeSync,
	})

	open, err := security.New(security.Config{}, security.Deps{})
	require.NoError(t, err)
	f.negotiator = &recordingNegotiator{Negotiator: open}

	f.merchant = mconfig.Merchant{
		Slug:         "iceland-bonus-card",
		MerchantURL:  merchantURL,
		RetryLimit:   2,
		CooldownSecs: 60,
	}
	f.pipeline = NewPipeline(f.gate, resty.New(), Hooks{
		OnCooldownActivated: func(ctx context.Context, merchant string, lastErr error) {
			f.cooldowns = append(f.cooldowns, merchant)
		},
	})
	return f
}

func (f *fixture) request() Request {
	return Request{
		Envelope:   NewEnvelope("account-1", model.JourneyLink),
		Payload:    map[string]any{"card_number": "634004"},
		Merchant:   f.merchant,
		Negotiator: f.negotiator,
		Audit:      f.audit,
	}
}

func auditPairs(entries []audit.Entry) (requests, responses []audit.Entry) {
	for _, entry := range entries {
		switch entry.AuditLogType {
		case audit.LogTypeRequest:
			requests = append(requests, entry)
		case audit.LogTypeResponse:
			responses = append(responses, entry)
		}
	}
	return requests, responses
}

func TestRetryBoundOnUnauthorized(t *testing.T) {
	var hits atomic.Int64
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		w.WriteHeader(http.StatusUnauthorized)
	}))
	t.Cleanup(server.Close)

	f := setup(t, server.URL)
	_, err := f.pipeline.Do(context.Background(), f.request())

	require.Error(t, err)
	require.True(t, errors.Is(err, status.NewError(status.KindValidation)))

	// exactly retry_limit + 1 attempts
	require.Equal(t, int64(3), hits.Load())
	// first attempt without refresh, every retry with a forced refresh
	require.Equal(t, []bool{false, true, true}, f.negotiator.refreshes)
	// cooldown activated afterwards
	require.True(t, f.gate.OnCooldown(context.Background(), "iceland-bonus-card"))
	require.Equal(t, []string{"iceland-bonus-card"}, f.cooldowns)
}

func TestCooldownShortCircuit(t *testing.T) {
	var hits atomic.Int64
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
	}))
	t.Cleanup(server.Close)

	f := setup(t, server.URL)
	ctx := context.Background()
	f.gate.Activate(ctx, "iceland-bonus-card", time.Minute)

	_, err := f.pipeline.Do(ctx, f.request())
	require.True(t, errors.Is(err, status.NewError(status.KindNotSent)))
	require.Equal(t, int64(0), hits.Load())
}

func TestTransientThenSuccess(t *testing.T) {
	var hits atomic.Int64
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if hits.Add(1) == 1 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `{"balance": 4.2}`)
	}))
	t.Cleanup(server.Close)

	f := setup(t, server.URL)
	result, err := f.pipeline.Do(context.Background(), f.request())
	require.NoError(t, err)
	require.Equal(t, 200, result.StatusCode)
	require.Equal(t, 4.2, result.Payload["balance"])
	require.Equal(t, int64(2), hits.Load())
	require.False(t, f.gate.OnCooldown(context.Background(), "iceland-bonus-card"))
}

func TestAcceptedCountsAsSuccess(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusAccepted)
	}))
	t.Cleanup(server.Close)

	f := setup(t, server.URL)
	result, err := f.pipeline.Do(context.Background(), f.request())
	require.NoError(t, err)
	require.Equal(t, 202, result.StatusCode)
}

func TestUnknownStatusAnnotated(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	}))
	t.Cleanup(server.Close)

	f := setup(t, server.URL)
	_, err := f.pipeline.Do(context.Background(), f.request())
	require.True(t, errors.Is(err, status.NewError(status.KindUnknown)))
	require.Contains(t, err.Error(), "418")
	// unknown statuses are retried until the budget runs out
	require.True(t, f.gate.OnCooldown(context.Background(), "iceland-bonus-card"))
}

func TestAuditPairingAcrossRetries(t *testing.T) {
	var hits atomic.Int64
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch hits.Add(1) {
		case 1:
			w.WriteHeader(http.StatusUnauthorized)
		case 2:
			w.WriteHeader(http.StatusServiceUnavailable)
		default:
			fmt.Fprint(w, `{}`)
		}
	}))
	t.Cleanup(server.Close)

	var delivered struct {
		AuditLogs []audit.Entry `json:"audit_logs"`
	}
	collector := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, json.NewDecoder(r.Body).Decode(&delivered))
	}))
	t.Cleanup(collector.Close)

	f := setup(t, server.URL)
	f.audit = audit.NewLogger(audit.Options{
		CollectorURL: collector.URL,
		Channel:      "bink",
		PlanSlug:     "iceland-bonus-card",
		Mode:         model.ModeSync,
	})
	req := f.request()
	_, err := f.pipeline.Do(context.Background(), req)
	require.NoError(t, err)

	// every attempt pairs one REQUEST with one RESPONSE, all sharing the
	// operation's identifiers
	requests, responses := auditPairs(delivered.AuditLogs)
	require.Len(t, requests, 3)
	require.Len(t, responses, 3)
	for i := range requests {
		require.Equal(t, req.Envelope.MessageID, requests[i].MessageID)
		require.Equal(t, req.Envelope.RecordID, requests[i].RecordID)
		require.Equal(t, requests[i].MessageID, responses[i].MessageID)
		require.Equal(t, requests[i].RecordID, responses[i].RecordID)
	}
	require.Equal(t, 0, f.audit.Pending())
}

func TestEnvelopeIdentifiers(t *testing.T) {
	accountID, err := random.String(16)
	require.NoError(t, err)

	a := NewEnvelope(accountID, model.JourneyJoin)
	b := NewEnvelope(accountID, model.JourneyJoin)

	require.NotEqual(t, a.MessageID, b.MessageID)
	require.Equal(t, a.RecordID, b.RecordID)
	require.Equal(t, RecordID(accountID), a.RecordID)
	require.Len(t, a.RecordID, 20)
}
