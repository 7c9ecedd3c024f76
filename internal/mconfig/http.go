package mconfig

import (
	"context"
	"encoding/json"
	"time"

	"midas/internal/model"
	"midas/internal/status"

	"github.com/go-resty/resty/v2"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

var tracer = otel.Tracer("midas/internal/mconfig")

// HTTPProvider queries a central configuration service for merchant
// configuration. The service owns credential storage; this client only ever
// sees the resolved values.
type HTTPProvider struct {
	client  *resty.Client
	baseURL string
}

func NewHTTPProvider(baseURL string, client *resty.Client) HTTPProvider {
	if client == nil {
		client = resty.New().SetTimeout(time.Second * 10)
	}
	return HTTPProvider{client: client, baseURL: baseURL}
}

func (p HTTPProvider) Merchant(ctx context.Context, slug string, journey model.Journey) (Merchant, error) {
	ctx, span := tracer.Start(ctx, "provider:Merchant")
	defer span.End()
	span.SetAttributes(
		attribute.KeyValue{Key: "slug", Value: attribute.StringValue(slug)},
		attribute.KeyValue{Key: "journey", Value: attribute.StringValue(journey.String())},
	)

	res, err := p.client.R().
		SetContext(ctx).
		SetQueryParam("merchant_id", slug).
		SetQueryParam("handler_type", journey.String()).
		Get(p.baseURL + "/configuration")
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "configuration service unreachable")
		return Merchant{}, status.Wrap(status.KindServiceConnection, err)
	}
	if res.StatusCode() != 200 {
		err := status.Errorf(
			status.KindConfiguration,
			"configuration service answered %d for %s/%s",
			res.StatusCode(), slug, journey.String(),
		)
		span.RecordError(err)
		span.SetStatus(codes.Error, "configuration lookup failed")
		return Merchant{}, err
	}

	var merchant Merchant
	err = json.Unmarshal(res.Body(), &merchant)
	if err != nil {
		return Merchant{}, status.Wrap(status.KindConfiguration, err)
	}
	merchant.Slug = slug
	return merchant, nil
}
