// Package squaremeal integrates the SquareMeal rewards scheme by scraping
// its member site: form login, balance and transaction extraction from the
// account page. Joins go through the standard outbound pipeline.
package squaremeal

import (
	"bytes"
	"context"
	"net/http/cookiejar"
	"strconv"
	"strings"
	"time"

	"midas/internal/agent"
	"midas/internal/status"
	"midas/lib/telemetry"

	cloudflarebp "github.com/DaRealFreak/cloudflare-bp-go"
	"github.com/PuerkitoBio/goquery"
	"github.com/go-resty/resty/v2"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/codes"
)

var tracer = otel.Tracer("midas/internal/agents/squaremeal")

const Slug = "squaremeal"

var Errors = status.ErrorMap{
	status.KindAccountAlreadyExists: {"EMAIL_TAKEN"},
	status.KindValidation:           {"INVALID_EMAIL"},
}

type Agent struct {
	agent.API
	client *resty.Client
}

func New(base agent.API) (*Agent, error) {
	base.Errors = Errors

	client := resty.New()
	client.SetBaseURL(base.Merchant.MerchantURL)
	jar, err := cookiejar.New(nil)
	if err != nil {
		return nil, err
	}
	client.SetCookieJar(jar)
	client.GetClient().Transport = cloudflarebp.AddCloudFlareByPass(client.GetClient().Transport)
	client.SetHeader("user-agent", "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/123.0.0.0 Safari/537.36")
	client.SetTimeout(time.Second * 30)
	telemetry.InstrumentResty(client, "agents/squaremeal")

	return &Agent{API: base, client: client}, nil
}

func (a *Agent) Login(ctx context.Context, credentials map[string]any) (agent.Session, error) {
	ctx, span := tracer.Start(ctx, "squaremeal:Login")
	defer span.End()

	res, err := a.client.R().
		SetContext(ctx).
		Get("/login")
	if err != nil {
		span.SetStatus(codes.Error, "failed to fetch login page")
		return agent.Session{}, status.Wrap(status.KindEndSiteDown, err)
	}
	doc, err := goquery.NewDocumentFromReader(bytes.NewBuffer(res.Body()))
	if err != nil {
		span.SetStatus(codes.Error, "failed to parse login page")
		return agent.Session{}, status.Wrap(status.KindEndSiteDown, err)
	}

	csrf := doc.Find("input[name=_token]").AttrOr("value", "")
	if csrf == "" {
		return agent.Session{}, status.Errorf(
			status.KindEndSiteDown,
			"login page carried no csrf token",
		)
	}

	email, _ := credentials["email"].(string)
	password, _ := credentials["password"].(string)
	res, err = a.client.R().
		SetContext(ctx).
		SetFormData(map[string]string{
			"_token":   csrf,
			"email":    email,
			"password": password,
		}).
		Post("/login")
	if err != nil {
		span.SetStatus(codes.Error, "login request failed")
		return agent.Session{}, status.Wrap(status.KindEndSiteDown, err)
	}

	doc, err = goquery.NewDocumentFromReader(bytes.NewBuffer(res.Body()))
	if err != nil {
		return agent.Session{}, status.Wrap(status.KindEndSiteDown, err)
	}
	// the login form coming back means the credentials were rejected
	if doc.Find("input[name=_token]").Length() > 0 {
		span.SetStatus(codes.Error, "credentials rejected")
		return agent.Session{}, status.Errorf(status.KindLoginFailed, "login form rejected credentials")
	}

	return agent.Session{
		Cookies:     res.Cookies(),
		Credentials: credentials,
	}, nil
}

func (a *Agent) Balance(ctx context.Context, session agent.Session) (agent.Balance, error) {
	ctx, span := tracer.Start(ctx, "squaremeal:Balance")
	defer span.End()

	res, err := a.client.R().
		SetContext(ctx).
		SetCookies(session.Cookies).
		Get("/account/rewards")
	if err != nil {
		span.SetStatus(codes.Error, "failed to fetch rewards page")
		return agent.Balance{}, status.Wrap(status.KindEndSiteDown, err)
	}
	doc, err := goquery.NewDocumentFromReader(bytes.NewBuffer(res.Body()))
	if err != nil {
		return agent.Balance{}, status.Wrap(status.KindEndSiteDown, err)
	}

	points, err := parsePoints(doc.Find(".rewards-balance__points").First().Text())
	if err != nil {
		span.SetStatus(codes.Error, "balance element missing or malformed")
		return agent.Balance{}, status.Wrap(status.KindUnknown, err)
	}

	balance := agent.Balance{Points: points, Currency: "GBP"}
	doc.Find(".rewards-history tbody tr").Each(func(_ int, row *goquery.Selection) {
		cells := row.Find("td")
		if cells.Length() < 3 {
			return
		}
		date, err := time.Parse("02/01/2006", strings.TrimSpace(cells.Eq(0).Text()))
		if err != nil {
			return
		}
		value, err := parsePoints(cells.Eq(2).Text())
		if err != nil {
			return
		}
		balance.Transactions = append(balance.Transactions, agent.Transaction{
			Date:        date,
			Description: strings.TrimSpace(cells.Eq(1).Text()),
			Points:      value,
		})
	})
	return balance, nil
}

func (a *Agent) Join(ctx context.Context, req agent.JoinRequest) (agent.JoinResult, error) {
	return a.StartJoin(ctx, req, nil)
}

func parsePoints(text string) (float64, error) {
	cleaned := strings.TrimSpace(strings.ReplaceAll(text, ",", ""))
	cleaned = strings.TrimSuffix(cleaned, " points")
	return strconv.ParseFloat(cleaned, 64)
}
