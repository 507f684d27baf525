package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	httptransport "github.com/spec-kit/support-desk/internal/api/http"
	"github.com/spec-kit/support-desk/internal/api/http/handlers"
	"github.com/spec-kit/support-desk/internal/auth"
	"github.com/spec-kit/support-desk/internal/config"
	"github.com/spec-kit/support-desk/internal/events"
	"github.com/spec-kit/support-desk/internal/observability"
	"github.com/spec-kit/support-desk/internal/persistence"
	"github.com/spec-kit/support-desk/internal/policy"
	"github.com/spec-kit/support-desk/internal/ratelimit"
	"github.com/spec-kit/support-desk/internal/realtime"
	"github.com/spec-kit/support-desk/internal/repository"
	"github.com/spec-kit/support-desk/internal/service"
	"github.com/spec-kit/support-desk/internal/storage"
	"github.com/spec-kit/support-desk/internal/worker"
)

type repositories struct {
	users    repository.UserRepository
	tickets  repository.TicketRepository
	comments repository.CommentRepository
	chats    repository.ChatRepository
	history  repository.TicketHistoryRepository
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logger, err := observability.NewLogger(cfg.Logger)
	if err != nil {
		log.Fatalf("failed to init logger: %v", err)
	}
	defer logger.Sync() //nolint:errcheck

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	metrics := observability.NewMetrics("support_desk")
	probes := map[string]handlers.Pinger{}

	var repos repositories
	switch cfg.Repository.Driver {
	case "postgres":
		if cfg.Postgres.DSN == "" {
			logger.Fatal("POSTGRES_DSN is required for the postgres repository driver")
		}
		pg, err := persistence.NewPostgres(ctx, cfg.Postgres, logger)
		if err != nil {
			logger.Fatal("failed to connect postgres", zap.Error(err))
		}
		defer pg.Close()
		probes["postgres"] = pg

		if cfg.Postgres.RunMigrations {
			if err := persistence.RunMigrations(ctx, pg.PoolHandle(), cfg.Postgres.MigrationsDir, logger); err != nil {
				logger.Fatal("failed to run migrations", zap.Error(err))
			}
		}

		pool := pg.PoolHandle()
		repos = repositories{
			users:    repository.NewUserRepository(pool),
			tickets:  repository.NewTicketRepository(pool),
			comments: repository.NewCommentRepository(pool),
			chats:    repository.NewChatRepository(pool),
			history:  repository.NewTicketHistoryRepository(pool),
		}
	default:
		logger.Warn("using in-memory repositories; data is lost on restart")
		store := repository.NewMemoryStore()
		repos = repositories{
			users:    store.Users(),
			tickets:  store.Tickets(),
			comments: store.Comments(),
			chats:    store.Chats(),
			history:  store.History(),
		}
	}

	var redis *persistence.Redis
	if cfg.Realtime.Driver == "redis" || cfg.Auth.RevocationDriver == "redis" {
		redis = persistence.NewRedis(ctx, cfg.Redis, logger)
		defer redis.Close()
		probes["redis"] = redis
	}

	var revocations auth.RevocationStore = auth.NewMemoryRevocationStore()
	if cfg.Auth.RevocationDriver == "redis" {
		revocations = auth.NewRedisRevocationStore(redis.Client)
	}

	disk, storageRoot, err := newDisk(*cfg)
	if err != nil {
		logger.Fatal("failed to init attachment storage", zap.Error(err))
	}
	attachments := storage.NewAttachmentStore(disk, cfg.Storage.MaxUploadBytes)

	dispatcher := events.NewAsyncDispatcher(logger, metrics, events.AsyncOptions{
		QueueSize: cfg.Realtime.QueueSize,
		Workers:   cfg.Realtime.Workers,
	})

	hub := realtime.NewHub(cfg.Realtime.SocketBuffer, metrics)
	var broadcaster realtime.Broadcaster = realtime.NewLocalBroadcaster(hub)
	var relay worker.Relay
	if cfg.Realtime.Driver == "redis" {
		redisBroadcaster := realtime.NewRedisBroadcaster(redis.Client, hub, logger)
		broadcaster = redisBroadcaster
		relay = redisBroadcaster
	}

	gate := policy.NewTicketGate()
	authService := service.NewAuthService(*cfg, service.AuthDependencies{
		UserRepo:    repos.users,
		Revocations: revocations,
		Logger:      logger,
	})
	if cfg.Auth.AdminEmail != "" && cfg.Auth.AdminPassword != "" {
		if _, err := authService.EnsureAdmin(ctx, cfg.Auth.AdminName, cfg.Auth.AdminEmail, cfg.Auth.AdminPassword); err != nil {
			logger.Fatal("failed to seed admin", zap.Error(err))
		}
	}

	ticketService := service.NewTicketService(service.TicketDependencies{
		TicketRepo:  repos.tickets,
		CommentRepo: repos.comments,
		ChatRepo:    repos.chats,
		HistoryRepo: repos.history,
		Attachments: attachments,
		Gate:        gate,
		Dispatcher:  dispatcher,
		Logger:      logger,
	})
	messageDeps := service.MessageDependencies{
		TicketRepo:  repos.tickets,
		CommentRepo: repos.comments,
		ChatRepo:    repos.chats,
		Gate:        gate,
		Dispatcher:  dispatcher,
		Logger:      logger,
	}
	commentService := service.NewCommentService(messageDeps)
	chatService := service.NewChatService(messageDeps)
	notificationService := service.NewNotificationService(dispatcher, repos.users, logger, cfg.Notification)

	workers := worker.Start(ctx, worker.Options{
		Dispatcher:    dispatcher,
		Notifications: notificationService,
		Broadcaster:   broadcaster,
		Relay:         relay,
		Logger:        logger,
	})

	authMiddleware := auth.NewAuthMiddleware(authService.TokenManager(), repos.users, revocations)

	app := fiber.New(fiber.Config{
		AppName:      cfg.App.Name,
		BodyLimit:    int(cfg.Storage.MaxUploadBytes) + 1<<20,
		ErrorHandler: httptransport.ErrorHandler(logger),
	})
	httptransport.RegisterMiddlewares(app, logger, metrics, httptransport.MiddlewareConfig{
		Timeout:     cfg.App.RequestTimeout(),
		CORSOrigins: cfg.App.CORSOrigins,
	})

	httptransport.RegisterRoutes(app, httptransport.RouteConfig{
		Health:         handlers.NewHealthHandler(cfg.App.Name, cfg.App.Version, probes),
		Users:          handlers.NewUsersHandler(authService),
		Tickets:        handlers.NewTicketsHandler(ticketService),
		Comments:       handlers.NewCommentsHandler(commentService),
		Chats:          handlers.NewChatsHandler(chatService),
		Realtime:       handlers.NewRealtimeHandler(hub, realtime.NewChannelAuthorizer(repos.tickets, gate), cfg.Realtime.WriteTimeout(), logger),
		AuthMiddleware: authMiddleware,
		Metrics:        metrics,
		AuthLimiter:    ratelimit.NewPool(cfg.RateLimit.AuthRPS, cfg.RateLimit.AuthBurst),
		ChatLimiter:    ratelimit.NewPool(cfg.RateLimit.ChatRPS, cfg.RateLimit.ChatBurst),
		StorageRoot:    storageRoot,
	})

	go func() {
		if err := app.Listen(cfg.App.Addr()); err != nil {
			logger.Fatal("fiber listen", zap.Error(err))
		}
	}()

	waitForShutdown(logger)

	if err := app.Shutdown(); err != nil {
		logger.Warn("http shutdown", zap.Error(err))
	}
	cancel()
	dispatcher.Close()
	workers.Wait()
}

// newDisk builds the configured attachment disk. The returned root is non-empty for local disks.
func newDisk(cfg config.Config) (storage.Disk, string, error) {
	if cfg.Storage.Driver == "s3" {
		disk, err := storage.NewS3Disk(storage.S3Options{
			Bucket:        cfg.Storage.S3Bucket,
			Region:        cfg.Storage.S3Region,
			Endpoint:      cfg.Storage.S3Endpoint,
			PublicBaseURL: cfg.Storage.PublicBaseURL,
		})
		return disk, "", err
	}
	disk, err := storage.NewLocalDisk(cfg.Storage.Root, cfg.AttachmentBaseURL())
	if err != nil {
		return nil, "", err
	}
	return disk, disk.Root(), nil
}

func waitForShutdown(logger *zap.Logger) {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	sig := <-sigCh
	logger.Info("shutting down", zap.String("signal", sig.String()))
}
