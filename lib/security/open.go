package security

import (
	"context"
	"encoding/json"
	"net/http"

	"midas/internal/status"
)

// openAuth is the no-op scheme for merchants without request security. The
// payload is serialized as-is and responses are parsed without verification.
type openAuth struct{}

func (openAuth) Encode(ctx context.Context, payload map[string]any, opts EncodeOptions) (Encoded, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return Encoded{}, status.Wrap(status.KindValidation, err)
	}
	return Encoded{
		Body:    body,
		Headers: map[string]string{"Content-Type": "application/json"},
	}, nil
}

func (openAuth) Decode(ctx context.Context, headers http.Header, body []byte) (map[string]any, error) {
	return decodeJSONBody(body)
}

func decodeJSONBody(body []byte) (map[string]any, error) {
	if len(body) == 0 {
		return map[string]any{}, nil
	}
	var payload map[string]any
	err := json.Unmarshal(body, &payload)
	if err != nil {
		return nil, status.Wrap(status.KindValidation, err)
	}
	return payload, nil
}
