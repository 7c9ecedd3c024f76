// Package agents holds the closed table of merchant integrations. Adding a
// merchant means adding a case to New.
package agents

import (
	"midas/internal/agent"
	"midas/internal/agents/iceland"
	"midas/internal/agents/squaremeal"
	"midas/internal/status"
)

func New(slug string, base agent.API) (agent.Agent, error) {
	switch slug {
	case iceland.Slug:
		return iceland.New(base), nil
	case squaremeal.Slug:
		return squaremeal.New(base)
	}
	return nil, status.Errorf(
		status.KindConfiguration,
		"no agent registered for merchant %q", slug,
	)
}

// ErrorMapFor returns the merchant's error map for callers that classify
// responses outside an agent, like the async callback handler.
func ErrorMapFor(slug string) status.ErrorMap {
	switch slug {
	case iceland.Slug:
		return iceland.Errors
	case squaremeal.Slug:
		return squaremeal.Errors
	}
	return nil
}
