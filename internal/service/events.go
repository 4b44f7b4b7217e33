package service

import (
	"context"
	"encoding/json"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/nats-io/nats.go"
	"github.com/rs/zerolog"
)

// DomainEvent is the envelope published to the message broker when the
// submission lifecycle or reconciliation engine changes state.
type DomainEvent struct {
	Source     string                 `json:"source"`
	Kind       string                 `json:"kind"`
	EntityType string                 `json:"entity_type"`
	EntityID   string                 `json:"entity_id"`
	Payload    map[string]interface{} `json:"payload,omitempty"`
	OccurredAt time.Time              `json:"occurred_at"`
}

// Event kinds emitted by the services in this package.
const (
	EventReportIngested         = "report.ingested"
	EventReportAutoConfirmed    = "report.auto_confirmed"
	EventReportManualConfirmed  = "report.manually_confirmed"
	EventReportRejected         = "report.rejected"
	EventSubmissionGraded       = "submission.graded"
	EventSubmissionAttemptAdded = "submission.attempt_added"
)

// EventPublisher emits domain events. Publish failures must never fail the
// operation that triggered them.
type EventPublisher interface {
	Publish(ctx context.Context, event DomainEvent) error
}

type natsPublisher struct {
	conn        *nats.Conn
	subjectBase string
	nodeID      string
	logger      zerolog.Logger
}

// NewNATSPublisher builds an EventPublisher on top of a NATS connection.
// A nil connection yields a publisher that drops events silently, so the
// broker stays optional in development.
func NewNATSPublisher(conn *nats.Conn, subjectBase string, logger zerolog.Logger) EventPublisher {
	base := strings.TrimSuffix(subjectBase, ".")
	if base == "" {
		base = "classboard"
	}

	return &natsPublisher{
		conn:        conn,
		subjectBase: base,
		nodeID:      uuid.NewString(),
		logger:      logger.With().Str("component", "event_publisher").Logger(),
	}
}

func (p *natsPublisher) Publish(_ context.Context, event DomainEvent) error {
	if p.conn == nil {
		return nil
	}

	event.Source = p.nodeID
	if event.OccurredAt.IsZero() {
		event.OccurredAt = time.Now().UTC()
	}

	payload, err := json.Marshal(event)
	if err != nil {
		return err
	}

	subject := p.subjectBase + "." + event.Kind
	if err := p.conn.Publish(subject, payload); err != nil {
		p.logger.Warn().Err(err).Str("subject", subject).Msg("failed to publish domain event")
		return err
	}

	return nil
}
