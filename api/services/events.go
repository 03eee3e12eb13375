package services

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"geodirectory/pkg/metrics"
	embeddednats "geodirectory/pkg/services/embedded-nats"
	"geodirectory/pkg/shared"
)

// eventPublisher pushes mutation events onto the bus. Publishing is
// best-effort: the write has already committed, so a bus failure is logged
// and dropped rather than surfaced to the caller.
type eventPublisher struct {
	nats *embeddednats.EmbeddedNATS
	log  *zap.Logger
}

func (p *eventPublisher) publish(entity string, entityID int64, action string, data interface{}) {
	if p.nats == nil || p.nats.JetStream() == nil {
		return
	}

	event := shared.Event{
		ID:        uuid.New().String(),
		Type:      action,
		Subject:   shared.EntityEventSubject(entity, action),
		Entity:    entity,
		EntityID:  entityID,
		Data:      data,
		Timestamp: time.Now().UTC(),
		Source:    "directory-api",
	}

	buf, err := json.Marshal(event)
	if err != nil {
		p.log.Error("failed to marshal event", zap.String("entity", entity), zap.Error(err))
		return
	}

	msgID := fmt.Sprintf("%s-%d-%s-%d", entity, entityID, action, time.Now().UnixNano())

	if err := p.nats.PublishWithDedup(event.Subject, buf, msgID); err != nil {
		p.log.Error("failed to publish event",
			zap.String("subject", event.Subject), zap.Error(err))
		return
	}

	metrics.EventsPublishedTotal.WithLabelValues(entity, action).Inc()
	p.log.Debug("published event",
		zap.String("subject", event.Subject),
		zap.Int64("entity_id", entityID))
}
