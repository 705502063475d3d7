package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gorilla/csrf"
	"github.com/gorilla/sessions"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"voalzira/internal/api"
	"voalzira/internal/backend"
	"voalzira/internal/config"
	"voalzira/internal/media"
	"voalzira/internal/storefront"
	"voalzira/internal/webhook"
)

func main() {
	logger := newLogger()
	defer func() { _ = logger.Sync() }()

	cfg, err := config.Load(logger)
	if err != nil {
		logger.Fatal("load config", zap.Error(err))
	}

	ctx := context.Background()

	var store backend.Backend
	if cfg.DevMode && cfg.DB.DSN == "" {
		logger.Info("DEV_MODE=true: running without a database (seeded in-memory store)")
		store = backend.NewSeededMemoryStore()
		if cfg.ProfileID == "" {
			cfg.ProfileID = backend.DevProfileID
		}
	} else {
		sqlStore, err := backend.Open(ctx, cfg.DB.Driver, cfg.DB.DSN, cfg.DB.CAPath, logger)
		if err != nil {
			logger.Fatal("open database", zap.String("driver", cfg.DB.Driver), zap.Error(err))
		}
		defer sqlStore.Close()
		store = sqlStore
	}

	var uploader media.Uploader = media.PlaceholderUploader{}
	if cfg.CloudinaryURL != "" {
		cld, err := media.NewCloudinaryUploader(cfg.CloudinaryURL, logger)
		if err != nil {
			logger.Fatal("init cloudinary", zap.Error(err))
		}
		uploader = cld
	} else {
		logger.Info("CLOUDINARY_URL not set, product images use placeholders")
	}

	if cfg.Admin.PasswordHash == "" {
		hash, err := bcrypt.GenerateFromPassword([]byte("admin"), bcrypt.DefaultCost)
		if err != nil {
			logger.Fatal("hash dev admin password", zap.Error(err))
		}
		cfg.Admin.PasswordHash = string(hash)
		logger.Warn("ADMIN_PASSWORD_HASH not set, admin login is admin/admin", zap.String("username", cfg.Admin.Username))
	}

	notifier := webhook.New(cfg.Webhook.URL, cfg.Webhook.Timeout, logger)
	sf, err := storefront.New(cfg, store, uploader, notifier, logger)
	if err != nil {
		logger.Fatal("init storefront", zap.Error(err))
	}
	loadCtx, cancelLoad := context.WithTimeout(ctx, 30*time.Second)
	if err := sf.Load(loadCtx); err != nil {
		// Keep serving: the API answers 503 until the data is available.
		logger.Error("initial catalog load failed", zap.Error(err))
	}
	cancelLoad()

	cookies := sessions.NewCookieStore(cfg.Session.KeyBytes)
	cookies.Options.HttpOnly = true
	cookies.Options.Secure = cfg.Session.CookieSecure
	cookies.Options.SameSite = http.SameSiteLaxMode
	cookies.Options.Path = "/"
	if cfg.Session.CookieDomain != "" {
		cookies.Options.Domain = cfg.Session.CookieDomain
	}

	protect := csrf.Protect(
		cfg.Session.CSRFKeyBytes,
		csrf.Secure(cfg.Session.CookieSecure),
		csrf.Path("/"),
		csrf.TrustedOrigins([]string{"localhost:" + cfg.Port, "127.0.0.1:" + cfg.Port, "localhost", "127.0.0.1"}),
	)

	sm := storefront.NewSessionManager(sf,
		storefront.WithIdleTimeout(cfg.Session.IdleTimeout),
		storefront.WithMaxSessions(cfg.Session.MaxSessions),
	)
	h := api.NewHandler(sf, sm, cookies, cfg.Admin, logger)
	server := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           api.NewRouter(h, protect, api.CSRFToken),
		ReadHeaderTimeout: 10 * time.Second,
	}

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		logger.Info("server listening", zap.String("addr", server.Addr), zap.Bool("dev_mode", cfg.DevMode))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("server failed", zap.Error(err))
		}
	}()

	<-stop
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown failed", zap.Error(err))
	}
	notifier.Wait()
	logger.Info("server exited")
}

// newLogger builds the production logger, or a development one when
// DEV_MODE is set. It runs before configuration is read.
func newLogger() *zap.Logger {
	var (
		logger *zap.Logger
		err    error
	)
	if v := os.Getenv("DEV_MODE"); v == "1" || v == "true" {
		logger, err = zap.NewDevelopment()
	} else {
		logger, err = zap.NewProduction()
	}
	if err != nil {
		return zap.NewNop()
	}
	return logger
}
