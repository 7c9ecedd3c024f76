package security

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"midas/internal/status"

	"github.com/go-resty/resty/v2"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/codes"
)

var tracer = otel.Tracer("midas/lib/security")

// tokenLifetime is how long a negotiated bearer token is considered valid.
// Within this window encodes reuse the cached token without a network
// round-trip.
const tokenLifetime = time.Hour

// test seam
var now = time.Now

// oAuth exchanges stored client credentials for a bearer token at the
// merchant's token endpoint and attaches it as an Authorization header.
type oAuth struct {
	tokenURL string
	request  map[string]any
	prefix   string
	scope    string

	client   *resty.Client
	cache    TokenCache
	cacheKey string
}

func newOAuth(cfg Config, deps Deps) (*oAuth, error) {
	tokenURL, err := cfg.Outbound.credential("url")
	if err != nil {
		return nil, err
	}
	rawRequest, err := cfg.Outbound.credential("payload")
	if err != nil {
		return nil, err
	}
	var request map[string]any
	err = json.Unmarshal([]byte(rawRequest), &request)
	if err != nil {
		return nil, status.Errorf(
			status.KindConfiguration,
			"oauth token request payload is not valid json: %s", err.Error(),
		)
	}

	prefix, err := cfg.Outbound.credential("prefix")
	if err != nil {
		prefix = "Bearer"
	}
	scope, _ := cfg.Outbound.credential("scope")

	client := deps.Client
	if client == nil {
		client = resty.New().SetTimeout(time.Second * 10)
	}
	cache := deps.Cache
	if cache == nil {
		cache = NewMemoryTokenCache()
	}

	return &oAuth{
		tokenURL: tokenURL,
		request:  request,
		prefix:   prefix,
		scope:    scope,
		client:   client,
		cache:    cache,
		cacheKey: fmt.Sprintf("%s:%s", deps.RecordID, scope),
	}, nil
}

func (o *oAuth) Encode(ctx context.Context, payload map[string]any, opts EncodeOptions) (Encoded, error) {
	token, err := o.token(ctx, opts.ForceRefresh)
	if err != nil {
		return Encoded{}, err
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return Encoded{}, status.Wrap(status.KindValidation, err)
	}
	return Encoded{
		Body: body,
		Headers: map[string]string{
			"Content-Type":  "application/json",
			"Authorization": fmt.Sprintf("%s %s", o.prefix, token),
		},
	}, nil
}

func (o *oAuth) Decode(ctx context.Context, headers http.Header, body []byte) (map[string]any, error) {
	return decodeJSONBody(body)
}

func (o *oAuth) token(ctx context.Context, forceRefresh bool) (string, error) {
	if !forceRefresh {
		cached, err := o.cache.Get(ctx, o.cacheKey)
		if err == nil && now().Sub(cached.Timestamp) < tokenLifetime {
			return cached.Token, nil
		}
		if err != nil && !errors.Is(err, ErrTokenNotFound) {
			slog.WarnContext(ctx, "failed to read oauth token cache", "key", o.cacheKey, "err", err)
		}
	}

	token, err := o.exchange(ctx)
	if err != nil {
		return "", err
	}

	err = o.cache.Set(ctx, o.cacheKey, CachedToken{Token: token, Timestamp: now()})
	if err != nil {
		slog.WarnContext(ctx, "failed to cache oauth token", "key", o.cacheKey, "err", err)
	}
	return token, nil
}

func (o *oAuth) exchange(ctx context.Context) (string, error) {
	ctx, span := tracer.Start(ctx, "oauth:exchange")
	defer span.End()

	res, err := o.client.R().
		SetContext(ctx).
		SetHeader("Content-Type", "application/json").
		SetBody(o.request).
		Post(o.tokenURL)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "token endpoint unreachable")
		return "", status.Wrap(status.KindServiceConnection, err)
	}
	if res.StatusCode() < 200 || res.StatusCode() > 299 {
		err := status.Errorf(
			status.KindServiceConnection,
			"token endpoint answered %d", res.StatusCode(),
		)
		span.RecordError(err)
		span.SetStatus(codes.Error, "token endpoint rejected exchange")
		return "", err
	}

	var response struct {
		AccessToken string `json:"access_token"`
	}
	err = json.Unmarshal(res.Body(), &response)
	if err != nil {
		return "", status.Wrap(status.KindConfiguration, err)
	}
	if response.AccessToken == "" {
		return "", status.Errorf(
			status.KindConfiguration,
			"token endpoint response carried no access_token",
		)
	}
	return response.AccessToken, nil
}
