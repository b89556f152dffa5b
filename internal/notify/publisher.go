// Package notify publishes staging pipeline events to moderators.
package notify

import (
	"context"
	"encoding/json"
	"strconv"
	"time"

	"landreg-workers/internal/common/aws"
	apperrors "landreg-workers/internal/common/errors"
	"landreg-workers/internal/common/logger"
	"landreg-workers/internal/models"
)

const (
	EventBatchIngested  = "batch.ingested"
	EventRecordPromoted = "record.promoted"
	EventRecordRejected = "record.rejected"
)

// Event is one pipeline notification.
type Event struct {
	Type         string                 `json:"type"`
	EntityType   models.EntityType      `json:"entityType,omitempty"`
	StagingID    string                 `json:"stagingId,omitempty"`
	BatchID      string                 `json:"batchId,omitempty"`
	District     int                    `json:"district"`
	ProductionID int64                  `json:"productionId,omitempty"`
	Actor        string                 `json:"actor,omitempty"`
	OccurredAt   time.Time              `json:"occurredAt"`
	Detail       map[string]interface{} `json:"detail,omitempty"`
}

// Publisher delivers events. Callers treat failures as non-fatal.
type Publisher interface {
	Publish(ctx context.Context, event Event) error
}

type NoopPublisher struct{}

func (NoopPublisher) Publish(context.Context, Event) error { return nil }

// MessagePublisher is satisfied by the SNS client.
type MessagePublisher interface {
	PublishMessage(ctx context.Context, subject, message string, attributes map[string]string) (string, error)
}

var _ MessagePublisher = (*aws.SNSClient)(nil)

// SNSPublisher sends events as JSON messages with eventType and district
// attributes for subscription filtering.
type SNSPublisher struct {
	client MessagePublisher
	logger logger.Logger
}

func NewSNSPublisher(client MessagePublisher, log logger.Logger) *SNSPublisher {
	return &SNSPublisher{
		client: client,
		logger: log.WithFields(map[string]interface{}{"component": "notify"}),
	}
}

func (p *SNSPublisher) Publish(ctx context.Context, event Event) error {
	if event.OccurredAt.IsZero() {
		event.OccurredAt = time.Now().UTC()
	}
	body, err := json.Marshal(event)
	if err != nil {
		return apperrors.NewNotificationSendFailedError(event.Type, err)
	}

	id, err := p.client.PublishMessage(ctx, "staging "+event.Type, string(body), map[string]string{
		"eventType": event.Type,
		"district":  strconv.Itoa(event.District),
	})
	if err != nil {
		return apperrors.NewNotificationSendFailedError(event.Type, err)
	}

	p.logger.Debug("event published", map[string]interface{}{
		"eventType": event.Type,
		"messageId": id,
	})
	return nil
}

// Deliver publishes event and logs a failure instead of returning it.
func Deliver(ctx context.Context, p Publisher, log logger.Logger, event Event) {
	if p == nil {
		return
	}
	if err := p.Publish(ctx, event); err != nil {
		log.Warn("notification not delivered", map[string]interface{}{
			"eventType": event.Type,
			"error":     err,
		})
	}
}
