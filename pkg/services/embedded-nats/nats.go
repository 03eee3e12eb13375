package embeddednats

import (
	"context"
	"fmt"
	"time"

	"github.com/nats-io/nats-server/v2/server"
	"github.com/nats-io/nats.go"
	"go.uber.org/zap"

	"geodirectory/pkg/shared"
)

type Config struct {
	Port            int
	DataDir         string
	MaxMemory       int64
	MaxFileStore    int64
	JetStreamDomain string
}

type EmbeddedNATS struct {
	server *server.Server
	nc     *nats.Conn
	js     nats.JetStreamContext
	config *Config
	log    *zap.Logger
}

func DefaultConfig() *Config {
	return &Config{
		Port:            4222,
		DataDir:         "./data/nats",
		MaxMemory:       256 * 1024 * 1024,      // 256MB
		MaxFileStore:    2 * 1024 * 1024 * 1024, // 2GB
		JetStreamDomain: "directory",
	}
}

func New(cfg *Config, log *zap.Logger) (*EmbeddedNATS, error) {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &EmbeddedNATS{config: cfg, log: log}, nil
}

func (en *EmbeddedNATS) Start() error {
	opts := &server.Options{
		Port:      en.config.Port,
		JetStream: true,
		StoreDir:  en.config.DataDir,
	}
	opts.JetStreamMaxMemory = en.config.MaxMemory
	opts.JetStreamMaxStore = en.config.MaxFileStore
	if en.config.JetStreamDomain != "" {
		opts.JetStreamDomain = en.config.JetStreamDomain
	}

	ns, err := server.NewServer(opts)
	if err != nil {
		return fmt.Errorf("failed to create NATS server: %w", err)
	}

	go ns.Start()

	if !ns.ReadyForConnections(10 * time.Second) {
		return fmt.Errorf("NATS server not ready for connections")
	}

	en.server = ns

	if err := en.connect(); err != nil {
		return fmt.Errorf("failed to connect to embedded NATS: %w", err)
	}

	en.log.Info("embedded NATS server started", zap.Int("port", en.config.Port))
	return nil
}

func (en *EmbeddedNATS) connect() error {
	url := fmt.Sprintf("nats://localhost:%d", en.config.Port)

	nc, err := nats.Connect(url,
		nats.ReconnectWait(2*time.Second),
		nats.MaxReconnects(-1),
		nats.ErrorHandler(func(_ *nats.Conn, _ *nats.Subscription, err error) {
			en.log.Error("NATS error", zap.Error(err))
		}),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			if err != nil {
				en.log.Warn("NATS disconnected", zap.Error(err))
			}
		}),
		nats.ReconnectHandler(func(_ *nats.Conn) {
			en.log.Info("NATS reconnected")
		}),
	)
	if err != nil {
		return fmt.Errorf("failed to connect to NATS: %w", err)
	}

	js, err := nc.JetStream()
	if err != nil {
		nc.Close()
		return fmt.Errorf("failed to create JetStream context: %w", err)
	}

	en.nc = nc
	en.js = js
	return nil
}

// CreateDirectoryStream ensures the single event stream this service uses.
// Mutation events are consumed exactly once by the audit worker, so the
// stream runs with work-queue retention.
func (en *EmbeddedNATS) CreateDirectoryStream() error {
	if en.js == nil {
		return fmt.Errorf("JetStream not initialized")
	}

	config := &nats.StreamConfig{
		Name:       shared.StreamEvents,
		Subjects:   []string{shared.SubjectEventsAll},
		Retention:  nats.WorkQueuePolicy,
		MaxMsgs:    50000,
		MaxBytes:   128 * 1024 * 1024, // 128MB
		MaxAge:     24 * time.Hour,
		MaxMsgSize: 256 * 1024, // 256KB
		Replicas:   1,
		Duplicates: 2 * time.Minute,
		Discard:    nats.DiscardOld,
	}

	if _, err := en.js.StreamInfo(config.Name); err == nil {
		if _, err := en.js.UpdateStream(config); err != nil {
			return fmt.Errorf("failed to update stream %s: %w", config.Name, err)
		}
		en.log.Info("updated existing stream", zap.String("stream", config.Name))
		return nil
	}

	if _, err := en.js.AddStream(config); err != nil {
		return fmt.Errorf("failed to add stream %s: %w", config.Name, err)
	}
	en.log.Info("created stream", zap.String("stream", config.Name),
		zap.Strings("subjects", config.Subjects))
	return nil
}

func (en *EmbeddedNATS) CreateDurableConsumer(streamName, consumerName, filterSubject string) error {
	config := &nats.ConsumerConfig{
		Durable:       consumerName,
		FilterSubject: filterSubject,
		AckPolicy:     nats.AckExplicitPolicy,
		AckWait:       30 * time.Second,
		MaxDeliver:    3,
		MaxAckPending: 1000,
		DeliverPolicy: nats.DeliverAllPolicy,
		ReplayPolicy:  nats.ReplayInstantPolicy,
	}

	if _, err := en.js.ConsumerInfo(streamName, consumerName); err == nil {
		en.log.Info("durable consumer already exists",
			zap.String("consumer", consumerName), zap.String("stream", streamName))
		return nil
	}

	if _, err := en.js.AddConsumer(streamName, config); err != nil {
		return fmt.Errorf("failed to create consumer %s: %w", consumerName, err)
	}

	en.log.Info("created durable consumer",
		zap.String("consumer", consumerName), zap.String("stream", streamName))
	return nil
}

// PublishWithDedup publishes with a JetStream message id so redelivered
// publishes inside the duplicate window collapse to one message.
func (en *EmbeddedNATS) PublishWithDedup(subject string, data []byte, msgID string) error {
	msg := nats.NewMsg(subject)
	msg.Data = data
	msg.Header.Set("Nats-Msg-Id", msgID)

	if _, err := en.js.PublishMsg(msg); err != nil {
		return fmt.Errorf("failed to publish message: %w", err)
	}
	return nil
}

func (en *EmbeddedNATS) Connection() *nats.Conn {
	return en.nc
}

func (en *EmbeddedNATS) JetStream() nats.JetStreamContext {
	return en.js
}

func (en *EmbeddedNATS) Shutdown(ctx context.Context) error {
	if en.nc != nil {
		en.nc.Close()
	}
	if en.server != nil {
		en.server.Shutdown()
		en.server.WaitForShutdown()
	}
	return nil
}

func (en *EmbeddedNATS) HealthCheck() error {
	if en == nil {
		return fmt.Errorf("NATS not configured")
	}
	if en.nc == nil {
		return fmt.Errorf("NATS connection not initialized")
	}
	if !en.nc.IsConnected() {
		return fmt.Errorf("NATS not connected")
	}
	if en.server != nil && !en.server.Running() {
		return fmt.Errorf("NATS server not running")
	}
	return nil
}
