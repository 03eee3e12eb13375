package workers

import (
	"context"
	"encoding/json"
	"time"

	"github.com/nats-io/nats.go"
	"go.uber.org/zap"

	"geodirectory/db"
	"geodirectory/pkg/metrics"
	"geodirectory/pkg/shared"
)

// AuditWorker consumes directory mutation events and persists them to the
// audit_log table. The event id is unique there, so redelivered messages
// land as no-ops.
type AuditWorker struct {
	*BaseWorker
	db *db.Service
}

func NewAuditWorker(nc *nats.Conn, js nats.JetStreamContext, database *db.Service, log *zap.Logger) *AuditWorker {
	return &AuditWorker{
		BaseWorker: NewBaseWorker(
			"AuditWorker",
			nc,
			js,
			shared.StreamEvents,
			shared.ConsumerAuditWriter,
			shared.SubjectEventsAll,
			log,
		),
		db: database,
	}
}

func (w *AuditWorker) Start(ctx context.Context) error {
	return w.processMessages(ctx, func(msg *nats.Msg) {
		var event shared.Event
		if err := json.Unmarshal(msg.Data, &event); err != nil {
			w.log.Warn("discarding malformed event",
				zap.String("subject", msg.Subject), zap.Error(err))
			return
		}

		payload, err := json.Marshal(event.Data)
		if err != nil {
			payload = []byte("{}")
		}

		_, err = w.db.ExecContext(ctx,
			`INSERT INTO audit_log (event_id, entity_type, entity_id, action, payload, created_at)
			 VALUES (?, ?, ?, ?, ?, ?) ON CONFLICT (event_id) DO NOTHING`,
			event.ID, event.Entity, event.EntityID, event.Type, string(payload),
			event.Timestamp.UTC().Format(time.RFC3339),
		)
		if err != nil {
			w.log.Error("failed to persist audit record",
				zap.String("event_id", event.ID), zap.Error(err))
			return
		}

		metrics.AuditWritesTotal.Inc()
		w.log.Debug("audit record written",
			zap.String("event_id", event.ID),
			zap.String("entity", event.Entity),
			zap.Int64("entity_id", event.EntityID),
			zap.String("action", event.Type))
	})
}
