package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/Tharoon321/go-rentals/blob"
	"github.com/Tharoon321/go-rentals/cache"
	"github.com/Tharoon321/go-rentals/config"
	"github.com/Tharoon321/go-rentals/controllers"
	"github.com/Tharoon321/go-rentals/mail"
	"github.com/Tharoon321/go-rentals/repository"
	"github.com/Tharoon321/go-rentals/routes"
	"github.com/Tharoon321/go-rentals/utils"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, "fatal:", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	logger, err := config.NewLogger(cfg.Log)
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}
	defer logger.Sync() //nolint:errcheck
	log := logger.Sugar()

	if !cfg.Log.Dev {
		gin.SetMode(gin.ReleaseMode)
	}

	ctx := context.Background()

	// Connect to MongoDB
	client, db, err := config.ConnectDB(ctx, cfg.MongoURI, cfg.MongoDB)
	if err != nil {
		return err
	}
	defer func() {
		dctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := client.Disconnect(dctx); err != nil {
			log.Errorw("error disconnecting MongoDB", "error", err)
		} else {
			log.Info("MongoDB disconnected")
		}
	}()

	users := repository.NewUserRepository(db)
	listings := repository.NewListingRepository(db)
	if err := users.EnsureIndexes(ctx); err != nil {
		return err
	}
	if err := listings.EnsureIndexes(ctx); err != nil {
		return err
	}

	store, err := newCache(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer store.Close()

	notifier, err := newNotifier(cfg, log)
	if err != nil {
		return err
	}

	blobs, err := newBlobStore(ctx, cfg)
	if err != nil {
		return err
	}

	tokens := utils.NewTokenManager(cfg.JWTSecret, cfg.JWTTTL)

	handlers := controllers.New(controllers.Deps{
		Users:    users,
		Listings: listings,
		Cache:    store,
		Mailer:   mail.WithMetrics(notifier),
		Blobs:    blobs,
		Tokens:   tokens,
		Logger:   log,
	}, controllers.Options{
		OTPTTL:                  cfg.OTPTTL,
		EnforceListingOwnership: cfg.EnforceListingOwnership,
	})

	router := routes.Setup(routes.Config{
		Handlers: handlers,
		Tokens:   tokens,
		Revoked:  store,
		Blobs:    blobs,
		Ping: func(ctx context.Context) error {
			return client.Ping(ctx, nil)
		},
		AllowedOrigins: cfg.AllowedOrigins,
		MaxUploadBytes: cfg.MaxUploadBytes,
		Logger:         log,
	})

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	// Start server in a goroutine for graceful shutdown
	errCh := make(chan error, 1)
	go func() {
		log.Infow("server started", "addr", srv.Addr, "blobs", cfg.BlobBackend)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	// Wait for interrupt (Ctrl+C)
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	select {
	case sig := <-quit:
		log.Infow("shutting down server", "signal", sig.String())
	case err := <-errCh:
		return fmt.Errorf("server error: %w", err)
	}

	// Graceful shutdown with timeout
	sctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(sctx); err != nil {
		log.Errorw("server forced to shutdown", "error", err)
	}

	log.Info("server exited properly")
	return nil
}

func newCache(ctx context.Context, cfg *config.Config, log *zap.SugaredLogger) (cache.Store, error) {
	if cfg.RedisURL == "" {
		log.Warn("REDIS_URL not set, OTPs and revoked tokens are kept in process memory")
		return cache.NewMemoryStore(), nil
	}
	return cache.NewRedisStore(ctx, cfg.RedisURL, "rentals:")
}

func newNotifier(cfg *config.Config, log *zap.SugaredLogger) (mail.Notifier, error) {
	if !cfg.SMTPConfigured() {
		log.Warn("SMTP not configured, outgoing mail is only logged")
		return mail.NewLogNotifier(log), nil
	}
	return mail.NewSMTPNotifier(mail.SMTPConfig{
		Host: cfg.SMTPHost,
		Port: cfg.SMTPPort,
		User: cfg.SMTPUser,
		Pass: cfg.SMTPPass,
		From: cfg.MailFrom,
	})
}

func newBlobStore(ctx context.Context, cfg *config.Config) (blob.Store, error) {
	if cfg.BlobBackend == "s3" {
		return blob.NewS3Store(ctx, blob.S3Config{
			Bucket:       cfg.S3Bucket,
			Region:       cfg.S3Region,
			BaseEndpoint: cfg.S3BaseEndpoint,
			AccessKey:    cfg.S3AccessKey,
			SecretKey:    cfg.S3SecretKey,
		})
	}
	return blob.NewDiskStore(cfg.UploadDir)
}
