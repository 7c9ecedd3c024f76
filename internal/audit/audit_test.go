package audit

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"midas/internal/model"
	"midas/lib/telemetry"

	"github.com/stretchr/testify/require"
)

type collector struct {
	server  *httptest.Server
	fail    atomic.Bool
	batches [][]Entry
}

func newCollector(t *testing.T) *collector {
	c := &collector{}
	c.server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if c.fail.Load() {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		var body struct {
			AuditLogs []Entry `json:"audit_logs"`
		}
		err := json.NewDecoder(r.Body).Decode(&body)
		if err != nil {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		c.batches = append(c.batches, body.AuditLogs)
	}))
	t.Cleanup(c.server.Close)
	return c
}

func setup(t *testing.T, journeys ...model.Journey) (*Logger, *collector) {
	cleanup := telemetry.SetupForTesting(t, "test:internal/audit")
	t.Cleanup(cleanup)

	c := newCollector(t)
	logger := NewLogger(Options{
		CollectorURL: c.server.URL,
		Channel:      "bink",
		PlanSlug:     "iceland-bonus-card",
		Mode:         model.ModeSync,
		Journeys:     journeys,
	})
	return logger, c
}

func TestRequestResponsePairing(t *testing.T) {
	logger, c := setup(t)
	ctx := context.Background()

	logger.AddRequest(ctx, model.JourneyJoin, "msg-1", "rec-1", map[string]any{"a": "b"})
	logger.AddResponse(ctx, model.JourneyJoin, "msg-1", "rec-1", 200, map[string]any{"ok": true})
	require.NoError(t, logger.Send(ctx))

	require.Len(t, c.batches, 1)
	batch := c.batches[0]
	require.Len(t, batch, 2)

	requests := map[string]Entry{}
	responses := map[string]Entry{}
	for _, entry := range batch {
		key := entry.MessageID + "|" + entry.RecordID
		switch entry.AuditLogType {
		case LogTypeRequest:
			requests[key] = entry
		case LogTypeResponse:
			responses[key] = entry
		}
	}
	require.Len(t, requests, 1)
	require.Len(t, responses, 1)
	for key := range requests {
		_, paired := responses[key]
		require.True(t, paired, "request %s has no response", key)
	}

	response := responses["msg-1|rec-1"]
	require.NotNil(t, response.StatusCode)
	require.Equal(t, 200, *response.StatusCode)
	require.Equal(t, "SYNC", response.IntegrationService)
	require.Equal(t, "iceland-bonus-card", response.MembershipPlanSlug)
}

func TestBufferRetainedOnFlushFailure(t *testing.T) {
	logger, c := setup(t)
	ctx := context.Background()

	logger.AddRequest(ctx, model.JourneyJoin, "msg-1", "rec-1", map[string]any{})
	c.fail.Store(true)
	require.Error(t, logger.Send(ctx))
	require.Equal(t, 1, logger.Pending())

	// next flush delivers the same batch: at-least-once
	c.fail.Store(false)
	require.NoError(t, logger.Send(ctx))
	require.Equal(t, 0, logger.Pending())
	require.Len(t, c.batches, 1)
	require.Equal(t, "msg-1", c.batches[0][0].MessageID)
}

func TestJourneyScoping(t *testing.T) {
	logger, _ := setup(t, model.JourneyJoin)
	ctx := context.Background()

	logger.AddRequest(ctx, model.JourneyLink, "msg-1", "rec-1", map[string]any{})
	require.Equal(t, 0, logger.Pending())

	logger.AddRequest(ctx, model.JourneyJoin, "msg-2", "rec-1", map[string]any{})
	require.Equal(t, 1, logger.Pending())
}

func TestEntriesAreSanitized(t *testing.T) {
	logger, _ := setup(t)
	ctx := context.Background()

	payload := map[string]any{"password": "hunter2"}
	logger.AddRequest(ctx, model.JourneyJoin, "msg-1", "rec-1", payload)

	entries := logger.Entries()
	require.Equal(t, RedactedMarker, entries[0].Payload["password"])
	// the caller's payload is untouched
	require.Equal(t, "hunter2", payload["password"])
}

func TestSendEmptyBufferIsNoop(t *testing.T) {
	logger, c := setup(t)
	require.NoError(t, logger.Send(context.Background()))
	require.Empty(t, c.batches)
}
