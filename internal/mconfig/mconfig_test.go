package mconfig

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"midas/internal/model"
	"midas/internal/status"

	"github.com/stretchr/testify/require"
)

const icelandConfig = `{
	JOIN: {
		merchant_url: "https://api.iceland.example/join",
		callback_url: "https://midas.example/callback/iceland-bonus-card",
		retry_limit: 2,
		timeout: 5,
		integration_service: "ASYNC",
		security_credentials: {
			outbound: {
				type: "oauth",
				credentials: [
					{credential_type: "url", value: "https://token.iceland.example"},
					{credential_type: "payload", value: "{}"},
				],
			},
		},
	},
	VALIDATE: {
		merchant_url: "https://api.iceland.example/link",
		retry_limit: 4,
		integration_service: "SYNC",
	},
}`

func setupDir(t *testing.T) string {
	dir := t.TempDir()
	err := os.WriteFile(filepath.Join(dir, "iceland-bonus-card.json5"), []byte(icelandConfig), 0600)
	require.NoError(t, err)
	return dir
}

func TestFileProvider(t *testing.T) {
	provider := NewFileProvider(setupDir(t))
	ctx := context.Background()

	merchant, err := provider.Merchant(ctx, "iceland-bonus-card", model.JourneyJoin)
	require.NoError(t, err)
	require.Equal(t, "iceland-bonus-card", merchant.Slug)
	require.Equal(t, "https://api.iceland.example/join", merchant.MerchantURL)
	require.Equal(t, 2, merchant.RetryLimit)
	require.Equal(t, 5*time.Second, merchant.Timeout())
	require.Equal(t, model.ModeAsync, merchant.Mode())
	require.Equal(t, "oauth", merchant.Security.Outbound.Scheme)

	merchant, err = provider.Merchant(ctx, "iceland-bonus-card", model.JourneyLink)
	require.NoError(t, err)
	require.Equal(t, model.ModeSync, merchant.Mode())
	require.Equal(t, 4, merchant.RetryLimit)
}

func TestFileProviderDefaults(t *testing.T) {
	provider := NewFileProvider(setupDir(t))

	merchant, err := provider.Merchant(context.Background(), "iceland-bonus-card", model.JourneyLink)
	require.NoError(t, err)
	require.Equal(t, defaultTimeout, merchant.Timeout())
	require.Equal(t, defaultCooldown, merchant.Cooldown())
}

func TestFileProviderUnknownSlugSuggestion(t *testing.T) {
	provider := NewFileProvider(setupDir(t))

	_, err := provider.Merchant(context.Background(), "iceland-bonus-crad", model.JourneyJoin)
	require.True(t, errors.Is(err, status.NewError(status.KindConfiguration)))
	require.Contains(t, err.Error(), "did you mean iceland-bonus-card?")
}

func TestFileProviderMissingJourney(t *testing.T) {
	provider := NewFileProvider(setupDir(t))

	_, err := provider.Merchant(context.Background(), "iceland-bonus-card", model.JourneyUpdate)
	require.True(t, errors.Is(err, status.NewError(status.KindConfiguration)))
}

func TestAuditJourneyParsing(t *testing.T) {
	merchant := Merchant{AuditJourneys: []string{"JOIN", "LINK", "bogus"}}
	require.Equal(t, []model.Journey{model.JourneyJoin, model.JourneyLink}, merchant.Journeys())

	require.Nil(t, Merchant{}.Journeys())
}

func TestHTTPProvider(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "squaremeal", r.URL.Query().Get("merchant_id"))
		require.Equal(t, "JOIN", r.URL.Query().Get("handler_type"))
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `{"merchant_url": "https://sm.example/join", "retry_limit": 3, "integration_service": "SYNC"}`)
	}))
	t.Cleanup(server.Close)

	provider := NewHTTPProvider(server.URL, nil)
	merchant, err := provider.Merchant(context.Background(), "squaremeal", model.JourneyJoin)
	require.NoError(t, err)
	require.Equal(t, "squaremeal", merchant.Slug)
	require.Equal(t, 3, merchant.RetryLimit)
}

func TestHTTPProviderLookupFailure(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	t.Cleanup(server.Close)

	provider := NewHTTPProvider(server.URL, nil)
	_, err := provider.Merchant(context.Background(), "nope", model.JourneyJoin)
	require.True(t, errors.Is(err, status.NewError(status.KindConfiguration)))
}
