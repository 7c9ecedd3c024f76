package join

import (
	"context"
	"fmt"
	"time"

	"midas/internal/model"

	"github.com/go-resty/resty/v2"
)

// ConsentSink receives consent-confirmation reports. Downstream retry and
// confirmation bookkeeping is its problem, not ours.
type ConsentSink interface {
	Confirm(ctx context.Context, consents []map[string]any, outcome Outcome) error
}

// StatusUpdate is one fire-and-forget account status publication.
type StatusUpdate struct {
	RecordID  string         `json:"record_uid"`
	Status    int            `json:"status"`
	MessageID string         `json:"message_uid"`
	UserInfo  map[string]any `json:"user_info,omitempty"`
	Journey   string         `json:"journey"`
}

// StatusPublisher pushes account status changes to the upstream account
// service.
type StatusPublisher interface {
	Publish(ctx context.Context, update StatusUpdate) error
}

// HTTPConsentSink posts consent confirmations to the consent service.
type HTTPConsentSink struct {
	client *resty.Client
	url    string
}

func NewHTTPConsentSink(url string, client *resty.Client) HTTPConsentSink {
	if client == nil {
		client = resty.New().SetTimeout(time.Second * 10)
	}
	return HTTPConsentSink{client: client, url: url}
}

func (s HTTPConsentSink) Confirm(ctx context.Context, consents []map[string]any, outcome Outcome) error {
	res, err := s.client.R().
		SetContext(ctx).
		SetHeader("Content-Type", "application/json").
		SetBody(map[string]any{
			"consents_data": consents,
			"status":        string(outcome),
		}).
		Post(s.url)
	if err != nil {
		return err
	}
	if res.StatusCode() < 200 || res.StatusCode() > 299 {
		return fmt.Errorf("consent sink answered %d", res.StatusCode())
	}
	return nil
}

// HTTPStatusPublisher posts status updates to the account service.
type HTTPStatusPublisher struct {
	client *resty.Client
	url    string
}

func NewHTTPStatusPublisher(url string, client *resty.Client) HTTPStatusPublisher {
	if client == nil {
		client = resty.New().SetTimeout(time.Second * 10)
	}
	return HTTPStatusPublisher{client: client, url: url}
}

func (p HTTPStatusPublisher) Publish(ctx context.Context, update StatusUpdate) error {
	res, err := p.client.R().
		SetContext(ctx).
		SetHeader("Content-Type", "application/json").
		SetBody(update).
		Post(p.url)
	if err != nil {
		return err
	}
	if res.StatusCode() < 200 || res.StatusCode() > 299 {
		return fmt.Errorf("status publisher answered %d", res.StatusCode())
	}
	return nil
}

func statusUpdate(recordID, messageID string, journey model.Journey, code int) StatusUpdate {
	return StatusUpdate{
		RecordID:  recordID,
		Status:    code,
		MessageID: messageID,
		Journey:   journey.String(),
	}
}
