package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	api "lexhub-backend/cmd/api"
	authdomain "lexhub-backend/internal/auth/domain"
	authRepo "lexhub-backend/internal/auth/repository"
	authUsecase "lexhub-backend/internal/auth/usecase"
	conndomain "lexhub-backend/internal/connection/domain"
	connRepo "lexhub-backend/internal/connection/repository"
	connUsecase "lexhub-backend/internal/connection/usecase"
	docdomain "lexhub-backend/internal/document/domain"
	docRepo "lexhub-backend/internal/document/repository"
	docUsecase "lexhub-backend/internal/document/usecase"
	"lexhub-backend/internal/notification"
	"lexhub-backend/pkg/ai"
	"lexhub-backend/pkg/chroma"
	"lexhub-backend/pkg/config"
	"lexhub-backend/pkg/database"
	"lexhub-backend/pkg/drive"
	"lexhub-backend/pkg/fcm"
	"lexhub-backend/pkg/gmail"
	"lexhub-backend/pkg/googleauth"
	"lexhub-backend/pkg/retry"
)

func main() {
	// Load configuration
	cfg := config.Load()

	// Initialize database
	db, err := database.NewPostgresConnection(cfg)
	if err != nil {
		log.Fatal("Failed to connect to database:", err)
	}

	// Auto-migrate database schemas
	if err := db.AutoMigrate(
		&authdomain.User{},
		&authdomain.RefreshToken{},
		&authdomain.DeviceToken{},
		&conndomain.Connection{},
		&conndomain.SyncItem{},
		&docdomain.Document{},
		&docdomain.ProcessedEmail{},
	); err != nil {
		log.Fatal("Failed to migrate database:", err)
	}

	// Initialize repositories (dependency injection)
	userRepository := authRepo.NewUserRepository(db)
	deviceTokenRepository := authRepo.NewDeviceTokenRepository(db)
	connectionRepository := connRepo.NewConnectionRepository(db)
	syncItemRepository := connRepo.NewSyncItemRepository(db)
	documentRepository := docRepo.NewDocumentRepository(db)
	emailRepository := docRepo.NewEmailRepository(db)

	// Google services
	oauthService := googleauth.NewService(cfg.GoogleClientID, cfg.GoogleClientSecret, cfg.GoogleRedirectURI)
	driveService := drive.NewService(oauthService, retry.Default)
	gmailService := gmail.NewService(oauthService, retry.Default)
	tokenVault := connUsecase.NewTokenVault(connectionRepository, oauthService, cfg.TokenEncryptionKey)

	// AI term extraction (optional, ingestion works without it)
	var extractor ai.TermExtractor
	extractorInstance, err := ai.NewTermExtractor(ai.Config{
		Provider:      ai.ProviderType(cfg.AIProvider),
		GeminiAPIKey:  cfg.GeminiAPIKey,
		OllamaBaseURL: cfg.OllamaBaseURL,
		OllamaModel:   cfg.OllamaModel,
	})
	if err != nil {
		log.Printf("[WARN] Failed to initialize AI service (term extraction disabled): %v", err)
	} else {
		extractor = extractorInstance
		log.Printf("AI service initialized with provider: %s", cfg.AIProvider)
	}

	// Chroma vector store (optional, semantic search disabled without it)
	var indexer docUsecase.Indexer
	if cfg.ChromaAPIKey != "" {
		chromaClient, err := chroma.NewClient(cfg)
		if err != nil {
			log.Printf("[WARN] Failed to initialize Chroma client (semantic search disabled): %v", err)
		} else {
			indexer = chromaClient
		}
	} else {
		log.Println("[WARN] CHROMA_API_KEY not set, semantic search disabled")
	}

	// Ingestion and reconciliation
	ingestor := docUsecase.NewIngestor(documentRepository, emailRepository, driveService, gmailService, extractor, indexer)
	listers := map[conndomain.Provider]conndomain.RemoteLister{
		conndomain.ProviderGoogleDrive: driveService,
		conndomain.ProviderGmail:       gmailService,
	}
	reconciler := connUsecase.NewReconciler(connectionRepository, syncItemRepository, tokenVault, listers, ingestor, cfg.SyncConcurrency, cfg.MaxSyncAttempts)

	// Initialize use cases (dependency injection)
	authUsecaseInstance := authUsecase.NewAuthUsecase(userRepository, cfg)
	connectionUsecaseInstance := connUsecase.NewConnectionUsecase(connectionRepository, syncItemRepository, tokenVault, oauthService, reconciler, cfg.JWTSecret)
	documentUsecaseInstance := docUsecase.NewDocumentUsecase(documentRepository, emailRepository, indexer)

	// Gmail push notifications via Pub/Sub, plus FCM on sync completion.
	// Only started when a project ID is configured.
	notifCtx, stopNotif := context.WithCancel(context.Background())
	defer stopNotif()
	if cfg.GoogleProjectID != "" {
		// Accept full resource names like projects/p/topics/t
		topicName := cfg.GooglePubSubTopic
		if parts := strings.Split(topicName, "/"); len(parts) > 1 {
			topicName = parts[len(parts)-1]
		}
		if topicName == "" {
			topicName = "gmail-updates"
		}

		var fcmClient *fcm.Client
		if cfg.FirebaseCredentials != "" {
			fcmClient, err = fcm.NewClient(cfg.FirebaseCredentials)
			if err != nil {
				log.Printf("[WARN] Failed to initialize FCM client (push notifications disabled): %v", err)
			}
		}

		notifService, err := notification.NewService(cfg.GoogleProjectID, topicName, connectionRepository, deviceTokenRepository, fcmClient, reconciler, cfg.GoogleCredentials)
		if err != nil {
			log.Printf("[ERROR] Failed to initialize notification service: %v", err)
		} else {
			reconciler.SetFinishedHook(notifService.SyncFinished)
			go notifService.Start(notifCtx)
		}
	} else {
		log.Println("[WARN] GOOGLE_PROJECT_ID not configured, notification service disabled")
	}

	// HTTP server
	handler := api.NewHandler(authUsecaseInstance, connectionUsecaseInstance, documentUsecaseInstance, deviceTokenRepository, cfg)
	srv := &http.Server{
		Addr:    ":" + cfg.Port,
		Handler: handler.Engine(),
	}

	go func() {
		log.Printf("Server starting on port %s", cfg.Port)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal("Failed to start server:", err)
		}
	}()

	// Graceful shutdown on SIGINT/SIGTERM
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Println("Shutting down server...")

	stopNotif()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Printf("Server forced to shutdown: %v", err)
	}
	database.Close(db)
	log.Println("Server exited")
}
