// Package security implements the pluggable signing/authentication schemes
// used to talk to merchant APIs. A Negotiator transforms an outbound payload
// into a signed/authenticated request and transforms an inbound response back
// into a verified payload.
//
// The scheme set is closed: open_auth, oauth and rsa, selected by a lookup in
// New. Adding a scheme means adding a case there.
package security

import (
	"context"
	"net/http"
	"strings"

	"midas/internal/status"

	"github.com/go-resty/resty/v2"
)

// Credential is one stored credential item inside a scheme annotation.
type Credential struct {
	Type       string `json:"credential_type"`
	StorageKey string `json:"storage_key"`
	Value      string `json:"value"`
}

// Annotation names a security scheme and the credentials it needs.
type Annotation struct {
	Scheme      string       `json:"type"`
	Credentials []Credential `json:"credentials"`
}

// Config carries the outbound (request signing) and inbound (response
// verification) sides of a merchant's security configuration.
type Config struct {
	Outbound Annotation `json:"outbound"`
	Inbound  Annotation `json:"inbound"`
}

// credential returns the value of the first credential of the given type, or
// a configuration error naming the missing type. A present-but-empty value is
// also a configuration error, never a silently empty credential.
func (a Annotation) credential(credentialType string) (string, error) {
	for _, c := range a.Credentials {
		if c.Type == credentialType {
			if c.Value == "" {
				return "", status.Errorf(
					status.KindConfiguration,
					"security credential %q is empty", credentialType,
				)
			}
			return c.Value, nil
		}
	}
	return "", status.Errorf(
		status.KindConfiguration,
		"security credential %q is missing", credentialType,
	)
}

// Encoded is a payload ready to go on the wire.
type Encoded struct {
	Body    []byte
	Headers map[string]string
}

type EncodeOptions struct {
	// ForceRefresh makes token-negotiating schemes bypass their cache,
	// typically after the merchant answered 401.
	ForceRefresh bool
}

type Negotiator interface {
	Encode(ctx context.Context, payload map[string]any, opts EncodeOptions) (Encoded, error)
	Decode(ctx context.Context, headers http.Header, body []byte) (map[string]any, error)
}

// Deps carries the collaborators a scheme may need. Client is used for token
// exchanges; Cache stores negotiated tokens keyed per record and scope.
type Deps struct {
	Client   *resty.Client
	Cache    TokenCache
	RecordID string
}

// New selects the Negotiator for the outbound scheme named in cfg. An empty
// scheme means open_auth.
func New(cfg Config, deps Deps) (Negotiator, error) {
	switch strings.ToLower(cfg.Outbound.Scheme) {
	case "", "open_auth":
		return openAuth{}, nil
	case "oauth":
		return newOAuth(cfg, deps)
	case "rsa":
		return newRSA(cfg)
	}
	return nil, status.Errorf(
		status.KindConfiguration,
		"unknown security scheme %q", cfg.Outbound.Scheme,
	)
}
