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
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"go.mongodb.org/mongo-driver/mongo"
	mongooptions "go.mongodb.org/mongo-driver/mongo/options"
	"google.golang.org/api/option"

	fbapp "firebase.google.com/go/v4"

	"kowa/internal/adapter/api"
	"kowa/internal/adapter/api/handler"
	apimiddleware "kowa/internal/adapter/api/middleware"
	"kowa/internal/adapter/api/router"
	"kowa/internal/adapter/repository"
	domainrepo "kowa/internal/domain/repository"
	"kowa/internal/infrastructure/events"
	"kowa/internal/infrastructure/firebase"
	"kowa/internal/infrastructure/jwtauth"
	"kowa/internal/infrastructure/presence"
	"kowa/internal/infrastructure/ratelimit"
	"kowa/internal/infrastructure/storage"
	"kowa/internal/infrastructure/websocket"
	"kowa/internal/usecase"
	"kowa/pkg/config"
	"kowa/pkg/logger"
)

type stores struct {
	conversations domainrepo.ConversationRepository
	messages      domainrepo.MessageRepository
	users         domainrepo.UserDirectory
	listings      domainrepo.ListingProvider
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	if err := logger.Init(cfg.Environment); err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	defer logger.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var closers []func()
	defer func() {
		for i := len(closers) - 1; i >= 0; i-- {
			closers[i]()
		}
	}()

	var googleOpts []option.ClientOption
	if cfg.FirebaseServiceAccountJSON != "" {
		logger.Info("Using Firebase service account from environment variable")
		googleOpts = append(googleOpts, option.WithCredentialsJSON([]byte(cfg.FirebaseServiceAccountJSON)))
	} else if cfg.FirebaseServiceAccountPath != "" {
		if _, err := os.Stat(cfg.FirebaseServiceAccountPath); os.IsNotExist(err) {
			logger.Fatal("Service account file does not exist: %s", cfg.FirebaseServiceAccountPath)
		}
		logger.Info("Using Firebase service account from file: %s", cfg.FirebaseServiceAccountPath)
		googleOpts = append(googleOpts, option.WithCredentialsFile(cfg.FirebaseServiceAccountPath))
	}

	var st stores
	switch cfg.StoreDriver {
	case "firestore":
		firestoreClient, err := firestore.NewClient(ctx, cfg.FirebaseProject, googleOpts...)
		if err != nil {
			logger.Fatal("Failed to create Firestore client: %v", err)
		}
		closers = append(closers, func() { firestoreClient.Close() })

		st = stores{
			conversations: repository.NewFirestoreConversationRepository(firestoreClient),
			messages:      repository.NewFirestoreMessageRepository(firestoreClient),
			users:         repository.NewFirestoreUserRepository(firestoreClient),
			listings:      repository.NewFirestoreProductRepository(firestoreClient),
		}

	case "mongo":
		connectCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
		mongoClient, err := mongo.Connect(connectCtx, mongooptions.Client().ApplyURI(cfg.MongoURI))
		cancel()
		if err != nil {
			logger.Fatal("Failed to connect to MongoDB: %v", err)
		}
		closers = append(closers, func() {
			disconnectCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			mongoClient.Disconnect(disconnectCtx)
		})

		db := mongoClient.Database(cfg.MongoDatabase)
		conversations, err := repository.NewMongoConversationRepository(ctx, db)
		if err != nil {
			logger.Fatal("Failed to prepare conversations collection: %v", err)
		}
		messages, err := repository.NewMongoMessageRepository(ctx, db)
		if err != nil {
			logger.Fatal("Failed to prepare messages collection: %v", err)
		}
		directory := repository.NewMongoDirectory(db)
		st = stores{conversations: conversations, messages: messages, users: directory, listings: directory}

	case "memory":
		logger.Warn("Using in-memory store, data is lost on restart")
		directory := repository.NewMemoryDirectory()
		st = stores{
			conversations: repository.NewMemoryConversationRepository(),
			messages:      repository.NewMemoryMessageRepository(),
			users:         directory,
			listings:      directory,
		}
	}

	var identity usecase.IdentityProvider
	switch cfg.AuthProvider {
	case "firebase":
		firebaseApp, err := fbapp.NewApp(ctx, &fbapp.Config{ProjectID: cfg.FirebaseProject}, googleOpts...)
		if err != nil {
			logger.Fatal("Failed to initialize Firebase: %v", err)
		}
		authClient, err := firebaseApp.Auth(ctx)
		if err != nil {
			logger.Fatal("Failed to initialize Firebase Auth: %v", err)
		}
		identity = firebase.NewFirebaseAuthClient(authClient, st.users)
	case "jwt":
		jwtProvider := jwtauth.NewProvider(cfg.JWTSecret, st.users)
		handler.SetupDevTokenHandler(jwtProvider, st.users)
		identity = jwtProvider
	}

	var media usecase.MediaStore
	switch cfg.MediaDriver {
	case "gcs":
		if cfg.StorageBucket == "" {
			logger.Warn("STORAGE_BUCKET is not set, voice messages are disabled")
			break
		}
		gcs, err := storage.NewCloudStorageClient(ctx, cfg.StorageBucket, googleOpts...)
		if err != nil {
			logger.Fatal("Failed to initialize Cloud Storage: %v", err)
		}
		closers = append(closers, func() { gcs.Close() })
		media = gcs
	case "s3":
		if cfg.S3Bucket == "" {
			logger.Warn("S3_BUCKET is not set, voice messages are disabled")
			break
		}
		s3Client, err := storage.NewS3Client(ctx, cfg.S3Region, cfg.S3Bucket)
		if err != nil {
			logger.Fatal("Failed to initialize S3: %v", err)
		}
		media = s3Client
	}

	var presenceStore usecase.PresenceStore = presence.NewMemoryStore()
	if cfg.RedisAddr != "" {
		redisClient, err := presence.NewRedisClient(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
		if err != nil {
			logger.Fatal("Failed to connect to Redis: %v", err)
		}
		closers = append(closers, func() { redisClient.Close() })
		presenceStore = presence.NewRedisStore(redisClient, "presence")
	}

	var publisher usecase.EventPublisher
	if len(cfg.KafkaBrokers) > 0 {
		kafkaPublisher := events.NewKafkaPublisher(cfg.KafkaBrokers, cfg.KafkaTopic)
		closers = append(closers, func() { kafkaPublisher.Close() })
		publisher = kafkaPublisher
	}

	limiter := ratelimit.NewRateLimiter()
	stopCleanup := make(chan struct{})
	limiter.StartCleanupRoutine(stopCleanup)
	closers = append(closers, func() { close(stopCleanup) })

	wsManager := websocket.NewManager(websocket.NewRegistry(), cfg.OperationTimeout)
	wsManager.SetPresenceStore(presenceStore)
	wsManager.SetRateLimiter(limiter)

	conversationUseCase := usecase.NewConversationUseCase(st.conversations, st.messages, st.users, st.listings, wsManager)
	conversationUseCase.SetPresenceStore(presenceStore)
	conversationUseCase.SetEventPublisher(publisher)

	messageUseCase := usecase.NewMessageUseCase(st.conversations, st.messages, st.users, st.listings, wsManager, media, limiter)
	messageUseCase.SetEventPublisher(publisher)

	wsManager.SetServices(conversationUseCase, messageUseCase)

	handler.Setup(conversationUseCase, messageUseCase)
	handler.SetupHealthHandler(wsManager.Registry())

	e := echo.New()
	e.HideBanner = true

	e.Use(middleware.Logger())
	e.Use(middleware.Recover())
	e.Use(middleware.CORS())

	e.Validator = api.NewValidator()

	authMiddleware := apimiddleware.NewAuthMiddleware(identity)
	wsHandler := handler.NewWebSocketHandler(wsManager, identity, cfg.WSAllowedOrigins)

	router.Setup(e, authMiddleware, limiter, wsHandler)
	router.SetupDevRouter(e, cfg.IsDevelopment())

	go func() {
		logger.Info("Starting server on port %s...", cfg.ServerPort)
		if err := e.Start(":" + cfg.ServerPort); err != nil && err != http.ErrServerClosed {
			logger.Fatal("Server stopped: %v", err)
		}
	}()

	<-ctx.Done()
	logger.Info("Shutting down...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		logger.Error("Graceful shutdown failed: %v", err)
	}
}
