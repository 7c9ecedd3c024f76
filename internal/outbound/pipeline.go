// Package outbound drives requests to merchant APIs through the security
// negotiator and the backoff gate, classifies outcomes into the normalized
// error taxonomy, and retries on authorization failure with a forced
// credential refresh. Every attempt is audited before and after the network
// call.
package outbound

import (
	"context"
	"log/slog"

	"midas/internal/audit"
	"midas/internal/mconfig"
	"midas/internal/status"
	"midas/lib/backoff"
	"midas/lib/security"

	"github.com/go-resty/resty/v2"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

var tracer = otel.Tracer("midas/internal/outbound")

// Hooks are the explicit observer seams of the pipeline. All fields are
// optional.
type Hooks struct {
	// OnCooldownActivated fires after a merchant exhausts its retry budget
	// and is placed on cooldown.
	OnCooldownActivated func(ctx context.Context, merchant string, lastErr error)
}

type Pipeline struct {
	gate   backoff.Gate
	client *resty.Client
	hooks  Hooks
}

func NewPipeline(gate backoff.Gate, client *resty.Client, hooks Hooks) Pipeline {
	if client == nil {
		client = resty.New()
	}
	return Pipeline{gate: gate, client: client, hooks: hooks}
}

// Request is one logical operation to drive to completion.
type Request struct {
	Envelope   Envelope
	Payload    map[string]any
	Merchant   mconfig.Merchant
	Negotiator security.Negotiator
	Audit      *audit.Logger
}

// Result is the normalized successful outcome.
type Result struct {
	StatusCode int
	Payload    map[string]any
}

const defaultRetryLimit = 2

// Do runs the bounded retry loop. Authorization retries and transient-error
// retries share one budget; exhausting it activates the merchant's cooldown
// and returns the last classified error.
func (p Pipeline) Do(ctx context.Context, req Request) (Result, error) {
	ctx, span := tracer.Start(ctx, "pipeline:Do")
	defer span.End()
	span.SetAttributes(
		attribute.KeyValue{Key: "merchant", Value: attribute.StringValue(req.Merchant.Slug)},
		attribute.KeyValue{Key: "journey", Value: attribute.StringValue(req.Envelope.Journey.String())},
		attribute.KeyValue{Key: "message_uid", Value: attribute.StringValue(req.Envelope.MessageID)},
	)

	defer func() {
		err := req.Audit.Send(ctx)
		if err != nil {
			slog.WarnContext(
				ctx, "failed to flush audit batch, retained for next flush",
				"merchant", req.Merchant.Slug,
				"err", err,
			)
		}
	}()

	retryLimit := req.Merchant.RetryLimit
	if retryLimit <= 0 {
		retryLimit = defaultRetryLimit
	}

	var lastErr error
	forceRefresh := false

	for attempt := 0; attempt <= retryLimit; attempt++ {
		if p.gate.OnCooldown(ctx, req.Merchant.Slug) {
			err := status.Errorf(
				status.KindNotSent,
				"merchant %s is on cooldown", req.Merchant.Slug,
			)
			span.SetStatus(codes.Error, "short-circuited by cooldown")
			return Result{}, err
		}

		result, err := p.attempt(ctx, req, forceRefresh)
		if err == nil {
			return result, nil
		}

		switch status.KindOf(err) {
		case status.KindUnauthorised:
			// consume one attempt and re-negotiate credentials
			lastErr = status.Wrap(status.KindValidation, err)
			forceRefresh = true
		case status.KindNotSent, status.KindEndSiteDown, status.KindServiceConnection, status.KindUnknown:
			lastErr = err
		default:
			// configuration, validation and merchant-domain errors are
			// not retried
			span.RecordError(err)
			span.SetStatus(codes.Error, "fatal error")
			return Result{}, err
		}

		slog.WarnContext(
			ctx, "merchant attempt failed",
			"merchant", req.Merchant.Slug,
			"attempt", attempt,
			"retry_limit", retryLimit,
			"err", lastErr,
		)
	}

	p.gate.Activate(ctx, req.Merchant.Slug, req.Merchant.Cooldown())
	if p.hooks.OnCooldownActivated != nil {
		p.hooks.OnCooldownActivated(ctx, req.Merchant.Slug, lastErr)
	}
	span.RecordError(lastErr)
	span.SetStatus(codes.Error, "retry budget exhausted")
	return Result{}, lastErr
}

func (p Pipeline) attempt(ctx context.Context, req Request, forceRefresh bool) (Result, error) {
	encoded, err := req.Negotiator.Encode(ctx, req.Payload, security.EncodeOptions{
		ForceRefresh: forceRefresh,
	})
	if err != nil {
		return Result{}, err
	}

	req.Audit.AddRequest(
		ctx, req.Envelope.Journey,
		req.Envelope.MessageID, req.Envelope.RecordID,
		req.Payload,
	)

	callCtx, cancel := context.WithTimeout(ctx, req.Merchant.Timeout())
	defer cancel()

	res, err := p.client.R().
		SetContext(callCtx).
		SetHeaders(encoded.Headers).
		SetBody(encoded.Body).
		Post(req.Merchant.MerchantURL)
	if err != nil {
		req.Audit.AddResponse(
			ctx, req.Envelope.Journey,
			req.Envelope.MessageID, req.Envelope.RecordID,
			0, map[string]any{"error": err.Error()},
		)
		return Result{}, status.Wrap(status.KindEndSiteDown, err)
	}

	return p.classify(ctx, req, res)
}

func (p Pipeline) classify(ctx context.Context, req Request, res *resty.Response) (Result, error) {
	statusCode := res.StatusCode()

	switch {
	case statusCode == 200 || statusCode == 202:
		payload, err := req.Negotiator.Decode(ctx, res.Header(), res.Body())
		if err != nil {
			req.Audit.AddResponse(
				ctx, req.Envelope.Journey,
				req.Envelope.MessageID, req.Envelope.RecordID,
				statusCode, map[string]any{"error": err.Error()},
			)
			return Result{}, err
		}
		req.Audit.AddResponse(
			ctx, req.Envelope.Journey,
			req.Envelope.MessageID, req.Envelope.RecordID,
			statusCode, payload,
		)
		return Result{StatusCode: statusCode, Payload: payload}, nil

	case statusCode == 401:
		req.Audit.AddResponse(
			ctx, req.Envelope.Journey,
			req.Envelope.MessageID, req.Envelope.RecordID,
			statusCode, map[string]any{"body": res.String()},
		)
		return Result{}, status.Errorf(
			status.KindUnauthorised,
			"merchant %s answered unauthorized", req.Merchant.Slug,
		)

	case statusCode == 503 || statusCode == 504 || statusCode == 408:
		req.Audit.AddResponse(
			ctx, req.Envelope.Journey,
			req.Envelope.MessageID, req.Envelope.RecordID,
			statusCode, map[string]any{"body": res.String()},
		)
		return Result{}, status.Errorf(
			status.KindNotSent,
			"merchant %s answered %d", req.Merchant.Slug, statusCode,
		)

	default:
		req.Audit.AddResponse(
			ctx, req.Envelope.Journey,
			req.Envelope.MessageID, req.Envelope.RecordID,
			statusCode, map[string]any{"body": res.String()},
		)
		return Result{}, status.Errorf(
			status.KindUnknown,
			"merchant %s answered %d", req.Merchant.Slug, statusCode,
		)
	}
}
