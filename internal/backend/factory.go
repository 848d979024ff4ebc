package backend

import (
	"context"
	"errors"
	"fmt"

	"minhasfinancas/internal/amqp"
	"minhasfinancas/internal/credentials"
	"minhasfinancas/internal/log"
	"minhasfinancas/internal/services"
	"minhasfinancas/internal/storage"
	"minhasfinancas/internal/storage/memory"
	"minhasfinancas/internal/storage/postgres"
)

// DefaultFactory implements the Factory interface
type DefaultFactory struct {
	logger *log.Logger
}

// NewFactory creates a new backend factory
func NewFactory(logger *log.Logger) Factory {
	if logger == nil {
		logger = log.Default()
	}
	return &DefaultFactory{
		logger: logger.WithComponent(log.ComponentBackend),
	}
}

// CreateBackend opens the repository, connects the optional event publisher
// and builds the services on top of them.
func (f *DefaultFactory) CreateBackend(ctx context.Context, config Config) (*BackendResult, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}

	verifier, err := credentials.New(config.PasswordScheme)
	if err != nil {
		return nil, err
	}

	repo, err := f.openRepository(ctx, config)
	if err != nil {
		return nil, err
	}

	amqpClient := f.connectAMQP(config)

	// A nil *amqp.Client must not reach the service as a non-nil interface.
	var publisher services.EventPublisher
	if amqpClient != nil {
		publisher = amqpClient
	}

	cleanup := func() error {
		var errs []error
		if amqpClient != nil {
			if err := amqpClient.Close(); err != nil {
				errs = append(errs, fmt.Errorf("close amqp client: %w", err))
			}
		}
		if err := repo.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close repository: %w", err))
		}
		return errors.Join(errs...)
	}

	f.logger.Info("Initialized backend",
		"type", config.Type.String(),
		"password_scheme", config.PasswordScheme,
		"amqp_enabled", amqpClient != nil)

	return &BackendResult{
		Repository: repo,
		Entries:    services.NewEntryService(repo, publisher),
		Users:      services.NewUserService(repo, verifier),
		Cleanup:    cleanup,
	}, nil
}

// OpenRepository opens only the storage layer, for tools that do not need
// the services or the broker.
func OpenRepository(ctx context.Context, config Config) (storage.Repository, error) {
	f := &DefaultFactory{logger: log.Default().WithComponent(log.ComponentBackend)}
	if err := config.Validate(); err != nil {
		return nil, err
	}
	return f.openRepository(ctx, config)
}

func (f *DefaultFactory) openRepository(ctx context.Context, config Config) (storage.Repository, error) {
	switch config.Type {
	case SQLiteBackend:
		repo, err := storage.NewSQLiteRepository(config.SQLiteDBPath)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize SQLite repository: %w", err)
		}
		f.logger.Info("Initialized SQLite repository", "db_path", config.SQLiteDBPath)
		return repo, nil
	case PostgresBackend:
		repo, err := postgres.NewRepository(ctx, config.DatabaseURL)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize PostgreSQL repository: %w", err)
		}
		f.logger.Info("Initialized PostgreSQL repository")
		return repo, nil
	case MemoryBackend:
		f.logger.Warn("Using in-memory repository, data is lost on exit")
		return memory.NewStore(), nil
	default:
		return nil, fmt.Errorf("unsupported backend type: %s", config.Type)
	}
}

// connectAMQP returns nil when AMQP is disabled or unreachable. The API
// keeps serving without the spreadsheet mirror in that case.
func (f *DefaultFactory) connectAMQP(config Config) *amqp.Client {
	if config.AMQPURL == "" {
		return nil
	}
	client, err := amqp.NewClient(config.AMQPURL, config.AMQPExchange, config.AMQPQueue)
	if err != nil {
		f.logger.Warn("Failed to initialize AMQP client, continuing without sync", log.FieldError, err)
		return nil
	}
	f.logger.Info("Initialized AMQP client",
		"exchange", config.AMQPExchange,
		"queue", config.AMQPQueue)
	return client
}
