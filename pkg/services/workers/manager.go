package workers

import (
	"context"
	"fmt"
	"sync"

	"github.com/nats-io/nats.go"
	"go.uber.org/zap"

	"geodirectory/db"
	embeddednats "geodirectory/pkg/services/embedded-nats"
)

type Manager struct {
	workers []Worker
	nc      *nats.Conn
	js      nats.JetStreamContext
	wg      sync.WaitGroup
	ctx     context.Context
	cancel  context.CancelFunc
	log     *zap.Logger
}

func NewManager(natsClient *embeddednats.EmbeddedNATS, database *db.Service, log *zap.Logger) (*Manager, error) {
	nc := natsClient.Connection()
	if nc == nil {
		return nil, fmt.Errorf("NATS connection not initialized")
	}

	js := natsClient.JetStream()
	if js == nil {
		return nil, fmt.Errorf("JetStream not initialized")
	}

	ctx, cancel := context.WithCancel(context.Background())

	return &Manager{
		nc:     nc,
		js:     js,
		ctx:    ctx,
		cancel: cancel,
		log:    log,
		workers: []Worker{
			NewAuditWorker(nc, js, database, log),
		},
	}, nil
}

func (m *Manager) Start() error {
	for _, worker := range m.workers {
		m.wg.Add(1)
		go func(w Worker) {
			defer m.wg.Done()

			m.log.Info("starting worker", zap.String("worker", w.Name()))
			if err := w.Start(m.ctx); err != nil && err != context.Canceled {
				m.log.Error("worker error", zap.String("worker", w.Name()), zap.Error(err))
			}
			m.log.Info("worker stopped", zap.String("worker", w.Name()))
		}(worker)
	}

	m.log.Info("workers started", zap.Int("count", len(m.workers)))
	return nil
}

func (m *Manager) Stop() error {
	m.cancel()

	for _, worker := range m.workers {
		if err := worker.Stop(); err != nil {
			m.log.Error("error stopping worker", zap.String("worker", worker.Name()), zap.Error(err))
		}
	}

	m.wg.Wait()
	m.log.Info("all workers stopped")
	return nil
}
