// Package audit records every merchant interaction as structured log
// entries and ships them in batches to the central audit collector. Delivery
// is at-least-once: a failed flush leaves the batch buffered for the next
// attempt, and downstream consumers deduplicate by
// (message id, record id, audit log type).
package audit

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"midas/internal/model"

	"github.com/go-resty/resty/v2"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

var tracer = otel.Tracer("midas/internal/audit")

type LogType string

const (
	LogTypeRequest  LogType = "REQUEST"
	LogTypeResponse LogType = "RESPONSE"
)

// Entry is one immutable audit record. Request and response entries sharing
// the same message and record identifiers are correlatable downstream.
type Entry struct {
	AuditLogType       LogType        `json:"audit_log_type"`
	Channel            string         `json:"channel"`
	MembershipPlanSlug string         `json:"membership_plan_slug"`
	HandlerType        string         `json:"handler_type"`
	MessageID          string         `json:"message_uid"`
	RecordID           string         `json:"record_uid"`
	Timestamp          int64          `json:"timestamp"`
	IntegrationService string         `json:"integration_service"`
	Payload            map[string]any `json:"payload"`
	StatusCode         *int           `json:"status_code,omitempty"`
}

type Options struct {
	CollectorURL string
	Client       *resty.Client
	Channel      string
	PlanSlug     string
	Mode         model.Mode
	// Journeys scopes which handler types are audited. Empty means all.
	Journeys []model.Journey
}

type Logger struct {
	mu      sync.Mutex
	entries []Entry

	collectorURL string
	client       *resty.Client
	channel      string
	planSlug     string
	mode         model.Mode
	journeys     map[model.Journey]bool
}

func NewLogger(opts Options) *Logger {
	client := opts.Client
	if client == nil {
		client = resty.New().SetTimeout(time.Second * 10)
	}

	var journeys map[model.Journey]bool
	if len(opts.Journeys) > 0 {
		journeys = map[model.Journey]bool{}
		for _, j := range opts.Journeys {
			journeys[j] = true
		}
	}

	return &Logger{
		collectorURL: opts.CollectorURL,
		client:       client,
		channel:      opts.Channel,
		planSlug:     opts.PlanSlug,
		mode:         opts.Mode,
		journeys:     journeys,
	}
}

func (l *Logger) enabled(journey model.Journey) bool {
	return l.journeys == nil || l.journeys[journey]
}

// AddRequest buffers a REQUEST entry. Must be called before the network call
// it describes is made.
func (l *Logger) AddRequest(ctx context.Context, journey model.Journey, messageID, recordID string, payload map[string]any) {
	l.add(ctx, Entry{
		AuditLogType: LogTypeRequest,
		HandlerType:  journey.String(),
		MessageID:    messageID,
		RecordID:     recordID,
		Payload:      Sanitize(payload),
	}, journey)
}

// AddResponse buffers a RESPONSE entry referencing the same message/record
// identifiers as its request, so consumers can always pair them.
func (l *Logger) AddResponse(ctx context.Context, journey model.Journey, messageID, recordID string, statusCode int, payload map[string]any) {
	l.add(ctx, Entry{
		AuditLogType: LogTypeResponse,
		HandlerType:  journey.String(),
		MessageID:    messageID,
		RecordID:     recordID,
		Payload:      Sanitize(payload),
		StatusCode:   &statusCode,
	}, journey)
}

func (l *Logger) add(ctx context.Context, entry Entry, journey model.Journey) {
	if !l.enabled(journey) {
		slog.DebugContext(
			ctx, "audit disabled for journey, dropping entry",
			"journey", journey.String(),
			"type", string(entry.AuditLogType),
		)
		return
	}

	entry.Channel = l.channel
	entry.MembershipPlanSlug = l.planSlug
	entry.IntegrationService = l.mode.String()
	entry.Timestamp = time.Now().Unix()

	l.mu.Lock()
	l.entries = append(l.entries, entry)
	l.mu.Unlock()
}

// Pending reports how many entries are buffered.
func (l *Logger) Pending() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.entries)
}

// Entries returns a snapshot of the buffered entries.
func (l *Logger) Entries() []Entry {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]Entry, len(l.entries))
	copy(out, l.entries)
	return out
}

// Send flushes the whole buffer as a single call to the collector. On
// failure the buffer is retained so a later flush can retry; duplicates are
// possible and expected downstream.
func (l *Logger) Send(ctx context.Context) error {
	ctx, span := tracer.Start(ctx, "audit:Send")
	defer span.End()

	l.mu.Lock()
	batch := make([]Entry, len(l.entries))
	copy(batch, l.entries)
	l.mu.Unlock()

	if len(batch) == 0 {
		return nil
	}
	span.SetAttributes(attribute.KeyValue{
		Key:   "batch_size",
		Value: attribute.IntValue(len(batch)),
	})

	res, err := l.client.R().
		SetContext(ctx).
		SetHeader("Content-Type", "application/json").
		SetBody(map[string]any{"audit_logs": batch}).
		Post(l.collectorURL)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "audit collector unreachable")
		return err
	}
	if res.StatusCode() < 200 || res.StatusCode() > 299 {
		err := fmt.Errorf("audit collector answered %d", res.StatusCode())
		span.RecordError(err)
		span.SetStatus(codes.Error, "audit collector rejected batch")
		return err
	}

	// only drop what was in this batch; entries added concurrently stay
	l.mu.Lock()
	l.entries = l.entries[len(batch):]
	l.mu.Unlock()
	return nil
}
