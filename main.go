package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	_ "github.com/lib/pq"

	"github.com/stickerbin/server/api"
	"github.com/stickerbin/server/datastore"
	"github.com/stickerbin/server/mail"
	"github.com/stickerbin/server/processing"
	rh "github.com/stickerbin/server/route-handlers"
)

const (
	defaultPort         = "8080"
	defaultDatabaseURL  = "user=postgres password=password dbname=stickerbin host=localhost port=5432 sslmode=disable"
	defaultSendGridFrom = "noreply@stickerbin.dev"
	defaultSendGridName = "Stickerbin"
	dbPingTimeout       = 5 * time.Second
	migrationTimeout    = 30 * time.Second
	shutdownTimeout     = 15 * time.Second
	dbMaxOpenConns      = 25
	dbMaxIdleConns      = 25
	dbConnMaxLifetime   = 5 * time.Minute
)

type config struct {
	port              string
	databaseURL       string
	secretKey         string
	sendGridAPIKey    string
	sendGridFromEmail string
	sendGridFromName  string
}

func main() {
	cfg := loadConfig()

	db, err := setupDatabase(cfg.databaseURL)
	if err != nil {
		log.Fatalf("Database setup failed: %v", err)
	}
	defer db.Close()

	migrateCtx, cancelMigrate := context.WithTimeout(context.Background(), migrationTimeout)
	defer cancelMigrate()
	if err := datastore.RunMigrations(migrateCtx, db); err != nil {
		log.Fatalf("Database migration failed: %v", err)
	}

	userRepo := datastore.NewUserRepository(db)
	passcodeRepo := datastore.NewPasscodeRepository(db)
	attemptRepo := datastore.NewResetAttemptRepository(db)
	imageRepo := datastore.NewImageRepository(db)
	groupRepo := datastore.NewGroupRepository(db)
	tagRepo := datastore.NewTagRepository(db)

	sender := mail.NewSendGridSender(cfg.sendGridAPIKey, cfg.sendGridFromEmail, cfg.sendGridFromName)
	resetProcessor := processing.NewPasswordResetProcessor(userRepo, passcodeRepo, attemptRepo, sender)

	secret := []byte(cfg.secretKey)
	userHandler := rh.NewUserHandler(userRepo, resetProcessor, secret)
	imageHandler := rh.NewImageHandler(imageRepo, groupRepo)
	groupHandler := rh.NewGroupHandler(groupRepo, imageRepo)
	tagHandler := rh.NewTagHandler(tagRepo, imageRepo)
	exportHandler := rh.NewExportHandler(imageRepo)

	router := api.SetupRoutes(
		secret,
		userHandler,
		imageHandler,
		groupHandler,
		tagHandler,
		exportHandler,
	)

	startServer(cfg.port, router)
}

func loadConfig() config {
	// .env is optional; real deployments set the environment directly.
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, reading configuration from the environment")
	}

	port := os.Getenv("PORT")
	if port == "" {
		port = defaultPort
	}

	dbURL := os.Getenv("DB_CONNECTION_STRING")
	if dbURL == "" {
		dbURL = defaultDatabaseURL
		log.Println("WARNING: DB_CONNECTION_STRING not set, using default local connection string.")
	}

	secretKey := os.Getenv("SECRET_KEY")
	if secretKey == "" {
		log.Fatal("SECRET_KEY must be set; session tokens cannot be signed without it.")
	}

	sendGridAPIKey := os.Getenv("SENDGRID_API_KEY")
	if sendGridAPIKey == "" {
		log.Println("WARNING: SENDGRID_API_KEY not set. Passcode emails will fail at runtime.")
	}

	sendGridFrom := os.Getenv("SENDGRID_FROM_EMAIL")
	if sendGridFrom == "" {
		sendGridFrom = defaultSendGridFrom
	}

	sendGridName := os.Getenv("SENDGRID_FROM_NAME")
	if sendGridName == "" {
		sendGridName = defaultSendGridName
	}

	return config{
		port:              port,
		databaseURL:       dbURL,
		secretKey:         secretKey,
		sendGridAPIKey:    sendGridAPIKey,
		sendGridFromEmail: sendGridFrom,
		sendGridFromName:  sendGridName,
	}
}

func setupDatabase(connStr string) (*sql.DB, error) {
	db, err := sql.Open("postgres", connStr)
	if err != nil {
		return nil, fmt.Errorf("failed to open database connection: %w", err)
	}

	db.SetMaxOpenConns(dbMaxOpenConns)
	db.SetMaxIdleConns(dbMaxIdleConns)
	db.SetConnMaxLifetime(dbConnMaxLifetime)

	ctx, cancel := context.WithTimeout(context.Background(), dbPingTimeout)
	defer cancel()

	if err = db.PingContext(ctx); err != nil {
		db.Close() // Close unusable connection pool
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	log.Println("Database connection successful")
	return db, nil
}

func startServer(port string, router http.Handler) {
	server := &http.Server{
		Addr:    ":" + port,
		Handler: router,
	}

	shutdownSignal := make(chan os.Signal, 1)
	signal.Notify(shutdownSignal, os.Interrupt, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		log.Printf("Server starting on port %s", port)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("Server error: %v", err)
		}
	}()

	<-shutdownSignal // Block until signal received
	log.Println("Shutdown signal received, initiating graceful shutdown...")

	shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancelShutdown()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Printf("Graceful shutdown failed: %v", err)
	}

	log.Println("Server gracefully stopped")
}
