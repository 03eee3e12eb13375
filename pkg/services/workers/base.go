package workers

import (
	"context"
	"time"

	"github.com/nats-io/nats.go"
	"go.uber.org/zap"
)

type Worker interface {
	Start(ctx context.Context) error
	Stop() error
	Name() string
}

type BaseWorker struct {
	name     string
	nc       *nats.Conn
	js       nats.JetStreamContext
	sub      *nats.Subscription
	consumer string
	stream   string
	subject  string
	log      *zap.Logger
}

func NewBaseWorker(name string, nc *nats.Conn, js nats.JetStreamContext, stream, consumer, subject string, log *zap.Logger) *BaseWorker {
	return &BaseWorker{
		name:     name,
		nc:       nc,
		js:       js,
		consumer: consumer,
		stream:   stream,
		subject:  subject,
		log:      log,
	}
}

func (w *BaseWorker) Name() string {
	return w.name
}

func (w *BaseWorker) Stop() error {
	if w.sub != nil {
		return w.sub.Drain()
	}
	return nil
}

func (w *BaseWorker) processMessages(ctx context.Context, handler func(*nats.Msg)) error {
	sub, err := w.js.PullSubscribe(w.subject, "",
		nats.Durable(w.consumer),
		nats.ManualAck(),
		nats.AckExplicit(),
		nats.DeliverAll(),
		nats.Bind(w.stream, w.consumer),
	)
	if err != nil {
		return err
	}
	w.sub = sub

	w.log.Info("worker started",
		zap.String("worker", w.name),
		zap.String("stream", w.stream),
		zap.String("consumer", w.consumer))

	for {
		select {
		case <-ctx.Done():
			w.log.Info("worker stopping", zap.String("worker", w.name))
			return ctx.Err()
		default:
			msgs, err := sub.Fetch(10, nats.MaxWait(2*time.Second))
			if err != nil && err != nats.ErrTimeout {
				w.log.Error("error fetching messages", zap.String("worker", w.name), zap.Error(err))
				continue
			}

			for _, msg := range msgs {
				handler(msg)
				if err := msg.Ack(); err != nil {
					w.log.Error("error acknowledging message", zap.String("worker", w.name), zap.Error(err))
				}
			}
		}
	}
}
