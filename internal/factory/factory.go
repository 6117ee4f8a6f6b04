package factory

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"users-service/internal/bucketing"
	"users-service/internal/client"
	"users-service/internal/config"
	"users-service/internal/events"
	"users-service/internal/hashing"
	"users-service/internal/notification"
	"users-service/internal/port"
	redisrepo "users-service/internal/repository/redis"
	"users-service/internal/repository/relational"
	"users-service/internal/service"
	"users-service/internal/signature"
	"users-service/internal/tokens"
	"users-service/internal/util"
)

const healthCheckTimeout = 5 * time.Second

// Factory manages the lifecycle of all application dependencies
type Factory struct {
	config *config.Config
	logger *zap.Logger

	// Clients
	redisClient   *client.RedisClient
	sqlClient     *client.SQLClient
	kafkaProducer *client.KafkaProducer

	// Managers
	hasher           *hashing.Hasher
	tokenCodec       *tokens.Codec
	signatures       *signature.Verifier
	bucketingManager *bucketing.BucketingManager

	store          *relational.Store
	serviceFactory *service.ServiceFactory

	closeOnce sync.Once
}

// NewFactory connects every client, applies migrations and builds the
// managers. Redis and the database are required; Kafka is optional outside
// production.
func NewFactory(cfg *config.Config, logger *zap.Logger) (*Factory, error) {
	f := &Factory{
		config: cfg,
		logger: logger,
	}

	if err := f.initializeClients(); err != nil {
		f.Close()
		return nil, fmt.Errorf("failed to initialize clients: %w", err)
	}

	f.initializeManagers()

	logger.Info("Factory initialized successfully",
		util.String("environment", cfg.Environment),
		util.String("database_driver", cfg.Database.Driver),
		util.Bool("kafka_enabled", f.kafkaProducer != nil),
		util.Bool("tls_enabled", cfg.Server.EnableTLS),
	)
	return f, nil
}

// initializeClients initializes all external service clients with health checks
func (f *Factory) initializeClients() error {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	redisClient, err := client.NewRedisClient(f.config.Redis)
	if err != nil {
		return fmt.Errorf("redis: %w", err)
	}
	f.redisClient = redisClient

	sqlClient, err := client.NewSQLClient(f.config.Database)
	if err != nil {
		return fmt.Errorf("database: %w", err)
	}
	f.sqlClient = sqlClient
	if err := sqlClient.HealthCheck(ctx); err != nil {
		return fmt.Errorf("database health check: %w", err)
	}

	f.store = relational.NewStore(sqlClient)
	if err := f.store.Migrate(ctx); err != nil {
		return fmt.Errorf("database migrations: %w", err)
	}

	if !f.config.Kafka.Enabled {
		f.logger.Warn("Kafka disabled - user events will not be published")
		return nil
	}

	f.bucketingManager = bucketing.NewBucketingManager()
	producer, err := client.NewKafkaProducer(f.config.Kafka, f.bucketingManager)
	if err == nil {
		err = producer.HealthCheck(ctx)
		if err != nil {
			_ = producer.Close()
		}
	}
	if err != nil {
		if f.config.IsProduction() {
			return fmt.Errorf("kafka: %w", err)
		}
		f.logger.Warn("Kafka producer initialization failed - proceeding without Kafka", util.ErrorField(err))
		return nil
	}
	f.kafkaProducer = producer
	return nil
}

func (f *Factory) initializeManagers() {
	sec := f.config.Security
	f.hasher = hashing.NewHasher(sec.BcryptCost, sec.PasswordPepper)
	f.tokenCodec = tokens.NewCodec(sec.SecretKey, sec.AccessTokenTTL, sec.RefreshTokenTTL)
	f.signatures = signature.NewVerifier(sec.FilesSignatureSecret)
}

func (f *Factory) notifier() port.NotificationSender {
	production := f.config.IsProduction()
	phone := notification.NewPhoneSender(f.logger, production)

	var email port.NotificationSender
	if f.config.SMTP.Host != "" {
		email = notification.NewSMTPEmailSender(f.config.SMTP)
	} else {
		f.logger.Warn("SMTP is not configured - email codes go to the log")
		email = notification.NewPhoneSender(f.logger, production)
	}
	return notification.NewDispatcher(email, phone)
}

func (f *Factory) publisher() port.UserEventPublisher {
	if f.kafkaProducer == nil {
		return events.NopPublisher{}
	}
	return events.NewKafkaPublisher(f.kafkaProducer, f.config.Kafka.UsersTopic)
}

// Dependencies assembles the service collaborators. Every store is wrapped
// with call logging.
func (f *Factory) Dependencies() service.Dependencies {
	verification := f.config.Verification
	files := relational.NewFileRepository(f.store, f.config.Avatar.ServiceURL)
	users := relational.NewUserRepository(f.store, files)

	return service.Dependencies{
		Users:           port.LogUsersStore(users, f.logger),
		Files:           port.LogFilesStore(files, f.logger),
		Codes:           port.LogCodeStore(redisrepo.NewCodeCache(f.redisClient, verification.CodeTTL(), verification.AttemptsCount), f.logger),
		AuthSessions:    port.LogAuthSessionStore(redisrepo.NewAuthSessionCache(f.redisClient, verification.AuthSessionTTL()), f.logger),
		RefreshSessions: port.LogRefreshSessionStore(redisrepo.NewSessionCache(f.redisClient), f.logger),
		SendLimiter:     port.LogSendRateLimiter(redisrepo.NewRateLimitCache(f.redisClient, verification.SendLimit, verification.SendWindow), f.logger),
		Tokens:          f.tokenCodec,
		Hasher:          f.hasher,
		Signatures:      f.signatures,
		Tx:              f.store,
		Notifier:        port.LogNotificationSender(f.notifier(), f.logger),
		Events:          port.LogUserEventPublisher(f.publisher(), f.logger),
		Logger:          f.logger,
	}
}

func (f *Factory) ServiceFactory() *service.ServiceFactory {
	if f.serviceFactory == nil {
		f.serviceFactory = service.NewServiceFactory(f.Dependencies())
	}
	return f.serviceFactory
}

// HealthCheck probes every client in parallel. The map has one entry per
// component; a nil value means healthy.
func (f *Factory) HealthCheck(ctx context.Context) map[string]error {
	ctx, cancel := context.WithTimeout(ctx, healthCheckTimeout)
	defer cancel()

	checks := map[string]func(context.Context) error{}
	if f.redisClient != nil {
		checks["redis"] = f.redisClient.HealthCheck
	}
	if f.sqlClient != nil {
		checks["database"] = f.sqlClient.HealthCheck
	}
	if f.kafkaProducer != nil {
		checks["kafka"] = f.kafkaProducer.HealthCheck
	}

	var mu sync.Mutex
	results := make(map[string]error, len(checks))
	g, gctx := errgroup.WithContext(ctx)
	for name, check := range checks {
		g.Go(func() error {
			err := check(gctx)
			mu.Lock()
			results[name] = err
			mu.Unlock()
			return nil
		})
	}
	_ = g.Wait()

	if f.redisClient == nil {
		results["redis"] = errors.New("redis client not initialized")
	}
	if f.sqlClient == nil {
		results["database"] = errors.New("database client not initialized")
	}
	return results
}

func (f *Factory) IsHealthy(ctx context.Context) bool {
	for _, err := range f.HealthCheck(ctx) {
		if err != nil {
			return false
		}
	}
	return true
}

func (f *Factory) Close() error {
	f.closeOnce.Do(func() {
		f.logger.Info("Shutting down factory...")

		if f.kafkaProducer != nil {
			if err := f.kafkaProducer.Close(); err != nil {
				f.logger.Error("Failed to close Kafka producer", util.ErrorField(err))
			}
		}

		if f.sqlClient != nil {
			if err := f.sqlClient.Close(); err != nil {
				f.logger.Error("Failed to close SQL client", util.ErrorField(err))
			}
		}

		if f.redisClient != nil {
			if err := f.redisClient.Close(); err != nil {
				f.logger.Error("Failed to close Redis client", util.ErrorField(err))
			}
		}

		f.logger.Info("Factory shutdown completed")
	})
	return nil
}

func (f *Factory) Config() *config.Config {
	return f.config
}
