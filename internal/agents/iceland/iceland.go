// Package iceland integrates the Iceland Bonus Card scheme. It is a pure API
// agent: OAuth outbound, asynchronous join completed by a merchant callback.
package iceland

import (
	"context"

	"midas/internal/agent"
	"midas/internal/model"
	"midas/internal/status"
	"midas/lib/security"
)

const Slug = "iceland-bonus-card"

// Errors maps Iceland's error codes onto the normalized taxonomy.
var Errors = status.ErrorMap{
	status.KindAccountAlreadyExists: {"ALREADY_PROCESSED", "ACCOUNT_ALREADY_EXISTS"},
	status.KindCardNumberError:      {"CARD_NUMBER_INVALID"},
	status.KindLinkLimitExceeded:    {"LINK_LIMIT_EXCEEDED"},
	status.KindNoSuchRecord:         {"NO_SUCH_RECORD"},
	status.KindGeneralError:         {"GENERAL_ERROR"},
	status.KindValidation:           {"VALIDATION"},
}

type Agent struct {
	agent.API
}

func New(base agent.API) *Agent {
	base.Errors = Errors
	return &Agent{API: base}
}

// Login negotiates credentials up front so a bad configuration surfaces
// before any balance call. The session carries the negotiated headers and
// the caller's credential set.
func (a *Agent) Login(ctx context.Context, credentials map[string]any) (agent.Session, error) {
	encoded, err := a.Negotiator.Encode(ctx, nil, security.EncodeOptions{})
	if err != nil {
		return agent.Session{}, err
	}
	return agent.Session{
		Headers:     encoded.Headers,
		Credentials: credentials,
	}, nil
}

func (a *Agent) Balance(ctx context.Context, session agent.Session) (agent.Balance, error) {
	result, err := a.Call(ctx, model.JourneyLink, map[string]any{
		"card_number": session.Credentials["card_number"],
	})
	if err != nil {
		return agent.Balance{}, err
	}

	balance, _ := result.Payload["balance"].(float64)
	value, _ := result.Payload["bonus_balance"].(float64)
	return agent.Balance{
		Points:   balance,
		Value:    value,
		Currency: "GBP",
	}, nil
}

func (a *Agent) Join(ctx context.Context, req agent.JoinRequest) (agent.JoinResult, error) {
	return a.StartJoin(ctx, req, nil)
}
