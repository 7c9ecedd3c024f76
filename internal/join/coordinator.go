// Package join governs the three ways a registration request can complete:
// synchronous success, synchronous failure, or an asynchronous merchant
// callback. Whatever happens, exactly one terminal consent-confirmation
// (SUCCESS or FAILED) is issued per logical join attempt.
package join

import (
	"context"
	"log/slog"
	"net/http"

	"midas/internal/audit"
	"midas/internal/mconfig"
	"midas/internal/model"
	"midas/internal/outbound"
	"midas/internal/status"
	"midas/lib/security"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

var tracer = otel.Tracer("midas/internal/join")

// accountActive is the published account status for a completed join.
const accountActive = 1

// identifierKeys are the response fields merged back into the caller's
// credential set after a successful join.
var identifierKeys = []string{"card_number", "barcode", "merchant_identifier"}

type Coordinator struct {
	pipeline  outbound.Pipeline
	consents  ConsentSink
	publisher StatusPublisher
}

func NewCoordinator(pipeline outbound.Pipeline, consents ConsentSink, publisher StatusPublisher) Coordinator {
	return Coordinator{pipeline: pipeline, consents: consents, publisher: publisher}
}

// Request is one logical join attempt.
type Request struct {
	Envelope    outbound.Envelope
	Credentials map[string]any
	Consents    []map[string]any
	Merchant    mconfig.Merchant
	Negotiator  security.Negotiator
	Audit       *audit.Logger
	// Errors maps this merchant's error codes onto the normalized taxonomy.
	Errors status.ErrorMap
	// Process is an optional merchant-specific hook run on the join response
	// after classification. Identifiers it returns are merged into the
	// credential set alongside the standard ones.
	Process func(payload map[string]any) (map[string]any, error)
}

type Result struct {
	State State
	// Identifiers holds the merchant-assigned identifiers extracted from the
	// response, already merged into the request's credential set.
	Identifiers map[string]any
	Payload     map[string]any
}

// Callback is the merchant's out-of-band asynchronous join result, delivered
// by whatever transport the callback listener runs.
type Callback struct {
	Headers http.Header
	Body    []byte
}

// confirmation issues at most one consent report per join attempt.
type confirmation struct {
	sink     ConsentSink
	consents []map[string]any
	done     bool
}

func (c *confirmation) report(ctx context.Context, outcome Outcome) {
	if c.done && outcome != OutcomePending {
		return
	}
	if outcome != OutcomePending {
		c.done = true
	}
	err := c.sink.Confirm(ctx, c.consents, outcome)
	if err != nil {
		slog.WarnContext(
			ctx, "consent confirmation failed",
			"outcome", string(outcome),
			"err", err,
		)
	}
}

// Join drives a join attempt to its terminal state, or to AWAITING_CALLBACK
// for asynchronous merchants.
func (c Coordinator) Join(ctx context.Context, req Request) (Result, error) {
	ctx, span := tracer.Start(ctx, "join:Join")
	defer span.End()
	span.SetAttributes(
		attribute.KeyValue{Key: "merchant", Value: attribute.StringValue(req.Merchant.Slug)},
		attribute.KeyValue{Key: "mode", Value: attribute.StringValue(req.Merchant.Mode().String())},
	)

	confirm := &confirmation{sink: c.consents, consents: req.Consents}

	payload := req.Credentials
	if req.Merchant.Mode() == model.ModeAsync && req.Merchant.CallbackURL != "" {
		payload = make(map[string]any, len(req.Credentials)+1)
		for key, value := range req.Credentials {
			payload[key] = value
		}
		payload["callback_url"] = req.Merchant.CallbackURL
	}

	result, err := c.pipeline.Do(ctx, outbound.Request{
		Envelope:   req.Envelope,
		Payload:    payload,
		Merchant:   req.Merchant,
		Negotiator: req.Negotiator,
		Audit:      req.Audit,
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "outbound join failed")
		confirm.report(ctx, OutcomeFailed)
		c.publish(ctx, req, status.KindOf(err).Code())
		return Result{State: StateFailed}, err
	}

	if req.Merchant.Mode() == model.ModeAsync {
		// only an acceptance; the terminal transition happens when the
		// merchant calls back
		confirm.report(ctx, OutcomePending)
		return Result{State: StateAwaitingCallback}, nil
	}

	return c.complete(ctx, req, confirm, result.Payload)
}

// HandleCallback finishes an asynchronous join. It runs the same
// classification and identifier extraction as the synchronous path, after
// verifying the callback against the merchant's inbound security scheme.
func (c Coordinator) HandleCallback(ctx context.Context, req Request, cb Callback) (Result, error) {
	ctx, span := tracer.Start(ctx, "join:HandleCallback")
	defer span.End()
	span.SetAttributes(
		attribute.KeyValue{Key: "merchant", Value: attribute.StringValue(req.Merchant.Slug)},
		attribute.KeyValue{Key: "record_uid", Value: attribute.StringValue(req.Envelope.RecordID)},
	)

	confirm := &confirmation{sink: c.consents, consents: req.Consents}

	payload, err := req.Negotiator.Decode(ctx, cb.Headers, cb.Body)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "callback rejected")
		confirm.report(ctx, OutcomeFailed)
		c.publish(ctx, req, status.KindOf(err).Code())
		return Result{State: StateFailed}, err
	}

	return c.complete(ctx, req, confirm, payload)
}

// complete processes a join response terminally. A panic or error partway
// through still reports FAILED, exactly once.
func (c Coordinator) complete(ctx context.Context, req Request, confirm *confirmation, payload map[string]any) (res Result, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = status.Errorf(status.KindJoinError, "join processing panicked: %v", r)
		}
		if err != nil {
			confirm.report(ctx, OutcomeFailed)
			c.publish(ctx, req, status.KindOf(err).Code())
			res = Result{State: StateFailed}
		}
	}()

	err = merchantError(payload, req.Errors)
	if err != nil {
		return Result{}, err
	}

	identifiers := extractIdentifiers(payload)
	if req.Process != nil {
		extra, perr := req.Process(payload)
		if perr != nil {
			return Result{}, perr
		}
		for key, value := range extra {
			identifiers[key] = value
		}
	}
	for key, value := range identifiers {
		req.Credentials[key] = value
	}

	confirm.report(ctx, OutcomeSuccess)
	c.publish(ctx, req, accountActive)
	return Result{
		State:       StateSuccess,
		Identifiers: identifiers,
		Payload:     payload,
	}, nil
}

func (c Coordinator) publish(ctx context.Context, req Request, code int) {
	update := statusUpdate(req.Envelope.RecordID, req.Envelope.MessageID, req.Envelope.Journey, code)
	err := c.publisher.Publish(ctx, update)
	if err != nil {
		slog.WarnContext(
			ctx, "account status publication failed",
			"merchant", req.Merchant.Slug,
			"record_uid", req.Envelope.RecordID,
			"status", code,
			"err", err,
		)
	}
}

// merchantError classifies in-band merchant errors of the shape
// {"errors": [{"code": "..."}]}. A payload without them is a success.
func merchantError(payload map[string]any, emap status.ErrorMap) error {
	raw, ok := payload["errors"]
	if !ok {
		return nil
	}
	items, ok := raw.([]any)
	if !ok || len(items) == 0 {
		return nil
	}
	first, ok := items[0].(map[string]any)
	if !ok {
		return status.Errorf(status.KindUnknown, "malformed merchant error list")
	}
	code, _ := first["code"].(string)
	return emap.ClassifyError(code)
}

func extractIdentifiers(payload map[string]any) map[string]any {
	identifiers := map[string]any{}
	for _, key := range identifierKeys {
		if value, ok := payload[key]; ok {
			identifiers[key] = value
		}
	}
	return identifiers
}
