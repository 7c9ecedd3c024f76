package agent

import (
	"context"

	"midas/internal/audit"
	"midas/internal/join"
	"midas/internal/mconfig"
	"midas/internal/model"
	"midas/internal/outbound"
	"midas/internal/status"
	"midas/lib/security"
)

// API is the shared base for agents that drive a merchant HTTP API through
// the outbound pipeline. Merchant packages embed it and supply their error
// map and response processing.
type API struct {
	AccountID   string
	Merchant    mconfig.Merchant
	Pipeline    outbound.Pipeline
	Coordinator join.Coordinator
	Negotiator  security.Negotiator
	Audit       *audit.Logger
	Errors      status.ErrorMap
}

// Call drives one request through the pipeline under a fresh envelope.
func (a API) Call(ctx context.Context, journey model.Journey, payload map[string]any) (outbound.Result, error) {
	return a.Pipeline.Do(ctx, outbound.Request{
		Envelope:   outbound.NewEnvelope(a.AccountID, journey),
		Payload:    payload,
		Merchant:   a.Merchant,
		Negotiator: a.Negotiator,
		Audit:      a.Audit,
	})
}

// StartJoin hands a join attempt to the coordinator. The process hook is the
// merchant's response post-processing; nil keeps the default identifier
// extraction.
func (a API) StartJoin(ctx context.Context, req JoinRequest, process func(map[string]any) (map[string]any, error)) (JoinResult, error) {
	result, err := a.Coordinator.Join(ctx, join.Request{
		Envelope:    outbound.NewEnvelope(a.AccountID, model.JourneyJoin),
		Credentials: req.Credentials,
		Consents:    req.Consents,
		Merchant:    a.Merchant,
		Negotiator:  a.Negotiator,
		Audit:       a.Audit,
		Errors:      a.Errors,
		Process:     process,
	})
	if err != nil {
		return JoinResult{}, err
	}
	return JoinResult{
		Pending:     result.State == join.StateAwaitingCallback,
		Identifiers: result.Identifiers,
	}, nil
}
