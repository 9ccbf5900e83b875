// Package bootstrap wires configuration, infrastructure and services into a
// single dependency container shared by the server and the admin CLI.
package bootstrap

import (
	"coachshare/backend/internal/api"
	"coachshare/backend/internal/config"
	"coachshare/backend/internal/logger"
	"coachshare/backend/internal/mail"
	"coachshare/backend/internal/notify"
	"coachshare/backend/internal/repository"
	"coachshare/backend/internal/repository/memory"
	mongorepo "coachshare/backend/internal/repository/mongo"
	"coachshare/backend/internal/service"
	"coachshare/backend/internal/storage"
	"context"
	"fmt"
	"time"

	"github.com/samber/do"
	"go.mongodb.org/mongo-driver/mongo"
	"go.uber.org/zap"
)

const indexTimeout = time.Minute

// Store bundles the repositories of the configured database driver.
type Store struct {
	Users         repository.UserRepository
	Regimens      repository.RegimenRepository
	WorkoutLogs   repository.WorkoutLogRepository
	Notifications repository.NotificationRepository

	client *mongo.Client
}

// Shutdown disconnects from MongoDB. It is a no-op for the memory driver.
func (s *Store) Shutdown() error {
	if s.client == nil {
		return nil
	}
	return mongorepo.DisconnectDB(s.client)
}

func newStore(cfg *config.Config, log *zap.Logger) (*Store, error) {
	switch cfg.Database.Driver {
	case "memory":
		log.Warn("using in-memory store; data is lost on exit")
		mem := memory.NewStore()
		return &Store{
			Users:         mem.Users(),
			Regimens:      mem.Regimens(),
			WorkoutLogs:   mem.WorkoutLogs(),
			Notifications: mem.Notifications(),
		}, nil
	case "mongo", "":
		client, err := mongorepo.ConnectDB(cfg.Database.URI)
		if err != nil {
			return nil, fmt.Errorf("connect mongodb: %w", err)
		}
		db := client.Database(cfg.Database.Name)

		ctx, cancel := context.WithTimeout(context.Background(), indexTimeout)
		defer cancel()
		if err := mongorepo.EnsureIndexes(ctx, db); err != nil {
			log.Warn("ensure indexes", zap.Error(err))
		}
		log.Info("database connection established", zap.String("database", cfg.Database.Name))

		return &Store{
			Users:         mongorepo.NewMongoUserRepository(db),
			Regimens:      mongorepo.NewMongoRegimenRepository(db),
			WorkoutLogs:   mongorepo.NewMongoWorkoutLogRepository(db),
			Notifications: mongorepo.NewMongoNotificationRepository(db),
			client:        client,
		}, nil
	default:
		return nil, fmt.Errorf("unknown database driver %q", cfg.Database.Driver)
	}
}

// BuildContainer registers every provider. Nothing is constructed until it is
// first invoked, so the CLI only connects to what its command needs.
func BuildContainer(configPath string) *do.Injector {
	inj := do.New()

	// config
	do.Provide(inj, func(i *do.Injector) (*config.Config, error) {
		cfg, err := config.LoadConfig(configPath)
		if err != nil {
			return nil, err
		}
		return &cfg, nil
	})

	// logger
	do.Provide(inj, func(i *do.Injector) (*zap.Logger, error) {
		cfg := do.MustInvoke[*config.Config](i)
		return logger.New(cfg.Log.Level)
	})

	// store
	do.Provide(inj, func(i *do.Injector) (*Store, error) {
		cfg := do.MustInvoke[*config.Config](i)
		log := do.MustInvoke[*zap.Logger](i)
		return newStore(cfg, log)
	})

	// Redis push channel
	do.Provide(inj, func(i *do.Injector) (notify.Pusher, error) {
		cfg := do.MustInvoke[*config.Config](i)
		log := do.MustInvoke[*zap.Logger](i)
		if cfg.Redis.Addr == "" {
			log.Info("redis not configured, real-time push disabled")
			return notify.NewNopPusher(), nil
		}
		rdb, err := notify.NewRedisClient(context.Background(), cfg.Redis)
		if err != nil {
			return nil, err
		}
		return notify.NewRedisPusher(rdb), nil
	})

	// RabbitMQ mail queue
	do.Provide(inj, func(i *do.Injector) (mail.Mailer, error) {
		cfg := do.MustInvoke[*config.Config](i)
		log := do.MustInvoke[*zap.Logger](i)
		if cfg.RabbitMQ.URL == "" {
			log.Info("rabbitmq not configured, mail jobs are only logged")
			return mail.NewLogMailer(log), nil
		}
		return mail.NewAMQPMailer(cfg.RabbitMQ, log)
	})

	// S3 report archive
	do.Provide(inj, func(i *do.Injector) (storage.FileStorage, error) {
		cfg := do.MustInvoke[*config.Config](i)
		log := do.MustInvoke[*zap.Logger](i)
		if cfg.S3.BucketName == "" {
			log.Info("s3 not configured, reconciliation reports are not archived")
			return nil, nil
		}
		return storage.NewS3Storage(context.Background(), cfg.S3, log)
	})

	provideServices(inj)

	return inj
}

func provideServices(inj *do.Injector) {
	do.Provide(inj, func(i *do.Injector) (service.NotificationService, error) {
		store := do.MustInvoke[*Store](i)
		return service.NewNotificationService(
			store.Notifications,
			do.MustInvoke[notify.Pusher](i),
			do.MustInvoke[*zap.Logger](i),
		), nil
	})

	do.Provide(inj, func(i *do.Injector) (service.RelationshipService, error) {
		store := do.MustInvoke[*Store](i)
		return service.NewRelationshipService(store.Users, store.Regimens, do.MustInvoke[*zap.Logger](i)), nil
	})

	do.Provide(inj, func(i *do.Injector) (service.AuthService, error) {
		cfg := do.MustInvoke[*config.Config](i)
		store := do.MustInvoke[*Store](i)
		if cfg.JWT.Secret == "" {
			return nil, fmt.Errorf("jwt.secret is required")
		}
		return service.NewAuthService(
			store.Users,
			do.MustInvoke[service.RelationshipService](i),
			do.MustInvoke[mail.Mailer](i),
			do.MustInvoke[service.NotificationService](i),
			cfg.JWT.Secret,
			cfg.JWT.Expiration,
			cfg.Server.PublicURL,
			do.MustInvoke[*zap.Logger](i),
		), nil
	})

	do.Provide(inj, func(i *do.Injector) (service.RegimenService, error) {
		store := do.MustInvoke[*Store](i)
		return service.NewRegimenService(
			store.Regimens,
			store.WorkoutLogs,
			do.MustInvoke[service.RelationshipService](i),
			do.MustInvoke[service.NotificationService](i),
			do.MustInvoke[*zap.Logger](i),
		), nil
	})

	do.Provide(inj, func(i *do.Injector) (service.WorkoutLogService, error) {
		store := do.MustInvoke[*Store](i)
		return service.NewWorkoutLogService(
			store.WorkoutLogs,
			store.Regimens,
			store.Users,
			do.MustInvoke[service.NotificationService](i),
			do.MustInvoke[*zap.Logger](i),
		), nil
	})

	do.Provide(inj, func(i *do.Injector) (service.UserService, error) {
		store := do.MustInvoke[*Store](i)
		return service.NewUserService(
			store.Users,
			store.Regimens,
			store.WorkoutLogs,
			store.Notifications,
			do.MustInvoke[service.RelationshipService](i),
			do.MustInvoke[service.RegimenService](i),
			do.MustInvoke[service.NotificationService](i),
			do.MustInvoke[*zap.Logger](i),
		), nil
	})

	do.Provide(inj, func(i *do.Injector) (service.AchievementService, error) {
		store := do.MustInvoke[*Store](i)
		return service.NewAchievementService(store.WorkoutLogs, store.Users), nil
	})

	do.Provide(inj, func(i *do.Injector) (service.ReconcileService, error) {
		store := do.MustInvoke[*Store](i)
		return service.NewReconcileService(
			store.Users,
			store.Regimens,
			store.WorkoutLogs,
			do.MustInvoke[storage.FileStorage](i),
			do.MustInvoke[*zap.Logger](i),
		), nil
	})

	do.Provide(inj, func(i *do.Injector) (api.Services, error) {
		return api.Services{
			Auth:          do.MustInvoke[service.AuthService](i),
			Users:         do.MustInvoke[service.UserService](i),
			Regimens:      do.MustInvoke[service.RegimenService](i),
			WorkoutLogs:   do.MustInvoke[service.WorkoutLogService](i),
			Notifications: do.MustInvoke[service.NotificationService](i),
			Achievements:  do.MustInvoke[service.AchievementService](i),
			Reconcile:     do.MustInvoke[service.ReconcileService](i),
		}, nil
	})
}
