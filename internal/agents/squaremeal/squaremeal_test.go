package squaremeal

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"midas/internal/agent"
	"midas/internal/mconfig"
	"midas/internal/status"
	"midas/lib/telemetry"

	"github.com/stretchr/testify/require"
)

const loginPage = `<html><body>
<form method="post" action="/login">
	<input type="hidden" name="_token" value="csrf-123">
	<input type="email" name="email">
	<input type="password" name="password">
</form>
</body></html>`

const accountPage = `<html><body><h1>Welcome back</h1></body></html>`

const rewardsPage = `<html><body>
<div class="rewards-balance"><span class="rewards-balance__points">1,250</span></div>
<table class="rewards-history"><tbody>
	<tr><td>14/02/2026</td><td>Dinner at Quaglino's</td><td>250</td></tr>
	<tr><td>03/01/2026</td><td>Sunday lunch</td><td>1,000</td></tr>
</tbody></table>
</body></html>`

func newSite(t *testing.T, password string) *httptest.Server {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /login", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, loginPage)
	})
	mux.HandleFunc("POST /login", func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseForm())
		require.Equal(t, "csrf-123", r.FormValue("_token"))
		if r.FormValue("password") != password {
			fmt.Fprint(w, loginPage)
			return
		}
		http.SetCookie(w, &http.Cookie{Name: "sm_session", Value: "sess-1"})
		fmt.Fprint(w, accountPage)
	})
	mux.HandleFunc("GET /account/rewards", func(w http.ResponseWriter, r *http.Request) {
		cookie, err := r.Cookie("sm_session")
		if err != nil || cookie.Value != "sess-1" {
			fmt.Fprint(w, loginPage)
			return
		}
		fmt.Fprint(w, rewardsPage)
	})
	server := httptest.NewServer(mux)
	t.Cleanup(server.Close)
	return server
}

func setup(t *testing.T, siteURL string) *Agent {
	cleanup := telemetry.SetupForTesting(t, "test:internal/agents/squaremeal")
	t.Cleanup(cleanup)

	a, err := New(agent.API{
		AccountID: "account-1",
		Merchant: mconfig.Merchant{
			Slug:        Slug,
			MerchantURL: siteURL,
		},
	})
	require.NoError(t, err)
	return a
}

func TestLoginAndBalance(t *testing.T) {
	site := newSite(t, "hunter2")
	a := setup(t, site.URL)
	ctx := context.Background()

	session, err := a.Login(ctx, map[string]any{
		"email":    "jane@example.com",
		"password": "hunter2",
	})
	require.NoError(t, err)

	balance, err := a.Balance(ctx, session)
	require.NoError(t, err)
	require.Equal(t, 1250.0, balance.Points)
	require.Len(t, balance.Transactions, 2)
	require.Equal(t, "Dinner at Quaglino's", balance.Transactions[0].Description)
	require.Equal(t, 250.0, balance.Transactions[0].Points)
	require.Equal(t, time.Date(2026, 2, 14, 0, 0, 0, 0, time.UTC), balance.Transactions[0].Date)
}

func TestLoginRejected(t *testing.T) {
	site := newSite(t, "hunter2")
	a := setup(t, site.URL)

	_, err := a.Login(context.Background(), map[string]any{
		"email":    "jane@example.com",
		"password": "wrong",
	})
	require.True(t, errors.Is(err, status.NewError(status.KindLoginFailed)))
}

func TestParsePoints(t *testing.T) {
	points, err := parsePoints(" 1,250 ")
	require.NoError(t, err)
	require.Equal(t, 1250.0, points)

	_, err = parsePoints("")
	require.Error(t, err)
}
