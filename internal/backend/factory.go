package backend

import (
	"errors"
	"fmt"

	"salvadanaio/internal/amqp"
	"salvadanaio/internal/log"
	"salvadanaio/internal/store"
	"salvadanaio/internal/store/memory"
	"salvadanaio/internal/store/sqlite"
)

// Backend is the opened store plus the optional repair queue client.
type Backend struct {
	Store store.Store
	// Queue is nil when AMQP is not configured or unreachable at startup.
	Queue *amqp.Client
}

// Close releases the queue connection and the store.
func (b *Backend) Close() error {
	var errs []error
	if b.Queue != nil {
		errs = append(errs, b.Queue.Close())
	}
	if b.Store != nil {
		errs = append(errs, b.Store.Close())
	}
	return errors.Join(errs...)
}

// Factory opens backends from configuration.
type Factory struct {
	logger *log.Logger
	// requireQueue turns a failed AMQP connection into an error instead of
	// a warning.
	requireQueue bool

	openSQLite func(path string) (store.Store, error)
	dialQueue  func(url, exchange, queue string) (*amqp.Client, error)
}

type FactoryOption func(*Factory)

// RequireQueue makes Open fail when the AMQP client cannot be created.
func RequireQueue() FactoryOption {
	return func(f *Factory) { f.requireQueue = true }
}

func NewFactory(logger *log.Logger, opts ...FactoryOption) *Factory {
	if logger == nil {
		logger = log.New(log.DefaultConfig())
	}
	f := &Factory{
		logger: logger.WithComponent(log.ComponentStorage),
		openSQLite: func(path string) (store.Store, error) {
			return sqlite.NewRepository(path)
		},
		dialQueue: amqp.NewClient,
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// Open creates the store for cfg.Type and, when cfg.AMQPURL is set, the
// repair queue client.
func (f *Factory) Open(cfg Config) (*Backend, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	b := &Backend{}
	switch cfg.Type {
	case SQLiteBackend:
		st, err := f.openSQLite(cfg.SQLiteDBPath)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize SQLite repository: %w", err)
		}
		b.Store = st
		f.logger.Info("Initialized SQLite backend", "db_path", cfg.SQLiteDBPath)
	case MemoryBackend:
		b.Store = memory.New()
		f.logger.Info("Initialized memory backend")
	default:
		return nil, fmt.Errorf("unsupported backend type: %s", cfg.Type)
	}

	if cfg.AMQPURL == "" {
		if f.requireQueue {
			b.Close()
			return nil, fmt.Errorf("AMQP URL is required")
		}
		f.logger.Info("AMQP disabled - sync repairs will only be logged")
		return b, nil
	}

	client, err := f.dialQueue(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue)
	if err != nil {
		if f.requireQueue {
			b.Close()
			return nil, fmt.Errorf("failed to initialize AMQP client: %w", err)
		}
		f.logger.Warn("Failed to initialize AMQP client, continuing without repair queue",
			log.FieldError, err.Error())
		return b, nil
	}
	b.Queue = client
	f.logger.Info("Initialized AMQP client",
		"exchange", cfg.AMQPExchange,
		"queue", cfg.AMQPQueue)
	return b, nil
}
