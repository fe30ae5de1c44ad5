package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"cloud.google.com/go/firestore"
	fbapp "firebase.google.com/go/v4"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"google.golang.org/api/option"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"tradehub/internal/adapter/api"
	"tradehub/internal/adapter/api/handler"
	apimiddleware "tradehub/internal/adapter/api/middleware"
	"tradehub/internal/adapter/api/router"
	"tradehub/internal/adapter/repository"
	domainrepo "tradehub/internal/domain/repository"
	"tradehub/internal/domain/service"
	"tradehub/internal/infrastructure/firebase"
	"tradehub/internal/infrastructure/followup"
	"tradehub/internal/infrastructure/kafka"
	"tradehub/internal/infrastructure/ratelimit"
	"tradehub/internal/infrastructure/redis"
	"tradehub/internal/infrastructure/storage"
	"tradehub/internal/infrastructure/websocket"
	"tradehub/internal/usecase"
	"tradehub/pkg/config"
	"tradehub/pkg/logger"
)

type stores struct {
	orders   domainrepo.OrderRepository
	chats    domainrepo.ChatRepository
	listings domainrepo.ListingRepository
	users    domainrepo.UserRepository
}

func credentials(cfg *config.Config) []option.ClientOption {
	if cfg.FirebaseServiceAccount != "" {
		log.Printf("Using Firebase service account from environment variable")
		return []option.ClientOption{option.WithCredentialsJSON([]byte(cfg.FirebaseServiceAccount))}
	}
	if cfg.FirebaseAccountPath != "" {
		if _, err := os.Stat(cfg.FirebaseAccountPath); os.IsNotExist(err) {
			log.Fatalf("Service account file does not exist: %s", cfg.FirebaseAccountPath)
		}
		log.Printf("Using Firebase service account from file: %s", cfg.FirebaseAccountPath)
		return []option.ClientOption{option.WithCredentialsFile(cfg.FirebaseAccountPath)}
	}
	log.Printf("Using application default credentials")
	return nil
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	checks := map[string]handler.HealthCheck{}

	var (
		repos    stores
		verifier apimiddleware.TokenVerifier
		images   service.ImageStore
	)

	if cfg.StoreDriver == "memory" {
		logger.Warn("STORE_DRIVER=memory: data is kept in process and dev tokens are accepted")
		repos = stores{
			orders:   repository.NewMemoryOrderRepository(),
			chats:    repository.NewMemoryChatRepository(),
			listings: repository.NewMemoryListingRepository(),
			users:    repository.NewMemoryUserRepository(),
		}
		verifier = firebase.DevTokenVerifier{}
		images = storage.NewMemoryImageStore("http://localhost:" + cfg.ServerPort + "/images")
	} else {
		opts := credentials(cfg)

		firebaseApp, err := fbapp.NewApp(ctx, &fbapp.Config{ProjectID: cfg.FirebaseProject}, opts...)
		if err != nil {
			log.Fatalf("Failed to initialize Firebase: %v", err)
		}

		authClient, err := firebaseApp.Auth(ctx)
		if err != nil {
			log.Fatalf("Failed to initialize Firebase Auth: %v", err)
		}
		verifier = firebase.NewFirebaseAuthClient(authClient)

		firestoreClient, err := firestore.NewClient(ctx, cfg.FirebaseProject, opts...)
		if err != nil {
			log.Fatalf("Failed to create Firestore client: %v", err)
		}
		defer firestoreClient.Close()

		repos = stores{
			orders:   repository.NewFirestoreOrderRepository(firestoreClient),
			chats:    repository.NewFirestoreChatRepository(firestoreClient),
			listings: repository.NewFirestoreListingRepository(firestoreClient),
			users:    repository.NewFirestoreUserRepository(firestoreClient),
		}
		checks["firestore"] = func(ctx context.Context) error {
			_, err := firestoreClient.Collection("health").Doc("ping").Get(ctx)
			if status.Code(err) == codes.NotFound {
				return nil
			}
			return err
		}

		storageClient, err := storage.NewCloudStorageClient(ctx, cfg.StorageBucket, opts...)
		if err != nil {
			log.Fatalf("Failed to initialize Cloud Storage: %v", err)
		}
		defer storageClient.Close()
		images = storageClient
	}

	wsManager := websocket.NewManager()
	wsManager.Start(ctx)

	var notifier service.Notifier = wsManager
	if cfg.RedisURL != "" {
		redisClient, err := redis.Connect(ctx, cfg.RedisURL)
		if err != nil {
			log.Fatalf("Failed to connect to Redis: %v", err)
		}
		defer redisClient.Close()

		bridge := redis.NewBridge(redisClient, cfg.RedisChannel, wsManager, cfg.WSSendBuffer)
		bridge.Run(ctx)
		notifier = bridge
		checks["redis"] = func(ctx context.Context) error {
			return redisClient.Ping(ctx).Err()
		}
		logger.Info("Fan-out bridged over Redis channel %s", cfg.RedisChannel)
	}

	var reporter service.RemediationReporter = followup.LogReporter{}
	if len(cfg.KafkaBrokers) > 0 {
		publisher, err := kafka.NewRemediationPublisher(cfg.KafkaBrokers, cfg.KafkaRemediationTopic)
		if err != nil {
			log.Fatalf("Failed to initialize Kafka publisher: %v", err)
		}
		defer publisher.Close()
		reporter = publisher
		logger.Info("Failed follow-ups are published to Kafka topic %s", cfg.KafkaRemediationTopic)
	}

	runner := followup.NewRunner(followup.Options{
		Workers:     cfg.FollowUpWorkers,
		MaxAttempts: cfg.FollowUpMaxAttempts,
		Backoff:     cfg.FollowUpBackoff,
	}, reporter)

	orderUseCase := usecase.NewOrderUseCase(repos.orders, repos.listings, repos.users, notifier, runner, nil)
	chatUseCase := usecase.NewChatUseCase(repos.chats, repos.listings, images, notifier)
	listingUseCase := usecase.NewListingUseCase(repos.listings, repos.users, images)

	handler.Setup(orderUseCase, chatUseCase, listingUseCase)
	handler.SetupHealthHandler(checks)

	limiter := ratelimit.NewRateLimiter(cfg.RateLimitPerMinute)
	limiter.StartCleanupRoutine(ctx.Done())

	e := echo.New()
	e.HideBanner = true

	e.Use(middleware.Logger())
	e.Use(middleware.Recover())
	e.Use(middleware.CORS())

	e.Validator = api.NewValidator()

	authMiddleware := apimiddleware.NewAuthMiddleware(verifier)
	adminMiddleware := apimiddleware.NewAdminMiddleware(repos.users)

	router.Setup(e, authMiddleware, adminMiddleware, limiter)
	router.SetupWebSocketRouter(e, handler.NewWebSocketHandler(wsManager, authMiddleware, cfg.WSSendBuffer))

	go func() {
		log.Printf("Starting server on port %s...", cfg.ServerPort)
		if err := e.Start(":" + cfg.ServerPort); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Server stopped: %v", err)
		}
	}()

	<-ctx.Done()
	logger.Info("Shutting down...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	if err := e.Shutdown(shutdownCtx); err != nil {
		logger.Error("HTTP shutdown: %v", err)
	}
	if err := runner.Stop(shutdownCtx); err != nil {
		logger.Error("Follow-up runner shutdown: %v", err)
	}
}
