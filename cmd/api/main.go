package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"crm-platform/internal/audit"
	"crm-platform/internal/auth"
	"crm-platform/internal/config"
	"crm-platform/internal/httpapi"
	"crm-platform/internal/leads"
	"crm-platform/internal/provider"
	"crm-platform/internal/reporting"
	"crm-platform/internal/sessions"
	"crm-platform/pkg/logger"
	"crm-platform/pkg/utils"

	"github.com/gin-gonic/gin"
	_ "github.com/jackc/pgx/v5/stdlib"
)

func main() {
	// Root context that cancels on shutdown
	rootCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load()
	if err != nil {
		slog.Error("config load failed", "err", err)
		os.Exit(1)
	}

	log := logger.New(cfg.App.Env)
	slog.SetDefault(log)

	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}

	authManager, err := auth.NewManager(cfg.Auth)
	if err != nil {
		log.Error("auth init failed", "err", err)
		os.Exit(1)
	}

	db, err := utils.OpenPostgres(rootCtx, "pgx", cfg.PostgresDSN(), utils.PostgresPoolConfig{})
	if err != nil {
		log.Error("postgres init failed", "err", err)
		os.Exit(1)
	}
	defer db.Close()

	rdb, err := utils.OpenRedis(rootCtx, utils.RedisConfig{Addr: cfg.RedisAddr()})
	if err != nil {
		log.Error("redis init failed", "err", err)
		os.Exit(1)
	}
	defer rdb.Close()

	// Persistence
	store := sessions.NewPostgresStore(db)
	teams := sessions.NewPostgresTeamDirectory(db)
	audits := audit.NewService(audit.NewPostgresRepo(db))
	resolver := leads.NewResolver(leads.NewPostgresRepo(db), log)

	// Provider clients
	voice := provider.NewVoiceClient(provider.VoiceConfig{
		BaseURL:           cfg.Voice.BaseURL,
		APIKey:            cfg.Voice.APIKey,
		StatusCallbackURL: cfg.Voice.StatusCallbackURL,
		DefaultRegion:     cfg.Voice.DefaultRegion,
	})
	messaging := provider.NewMessagingClient(provider.MessagingConfig{
		BaseURL:           cfg.Messaging.BaseURL,
		AccountSID:        cfg.Messaging.AccountSID,
		AuthToken:         cfg.Messaging.AuthToken,
		StatusCallbackURL: cfg.Messaging.StatusCallbackURL,
		DefaultRegion:     cfg.Messaging.DefaultRegion,
	})

	// Engine
	initiator := sessions.NewInitiator(store, map[sessions.Kind]sessions.Adapter{
		sessions.KindCall:    voice,
		sessions.KindMessage: messaging,
	}, audits, rdb, log, sessions.InitiatorConfig{
		PlaceTimeout: cfg.Engine.PlaceTimeout,
		Origins: map[sessions.Kind]string{
			sessions.KindCall:    cfg.Engine.CallOriginNumber,
			sessions.KindMessage: cfg.Engine.MessageOriginNumber,
		},
		MaxInFlightPerOwner: cfg.Engine.MaxInFlightPerOwner,
	})
	ingestor := sessions.NewIngestor(store, resolver, audits, rdb, log, sessions.IngestorConfig{})

	// Gin router
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(logger.Middleware(log))

	registerRoutes(r, routeDeps{
		authMW: auth.RequireAccessToken(authManager),
		api: httpapi.Handlers{
			Auth:      authManager,
			Initiator: initiator,
			Store:     store,
			Teams:     teams,
			Reports:   reporting.NewService(store),
		},
		webhooks: provider.WebhookHandlers{Ingest: ingestor},
		health: func(ctx context.Context) error {
			return utils.PingPostgres(ctx, db, 2*time.Second)
		},
	})

	srv := &http.Server{
		Addr:              cfg.HTTPAddr(),
		Handler:           r,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	go func() {
		log.Info("api listening", "addr", srv.Addr, "env", cfg.App.Env)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("http server failed", "err", err)
			stop()
		}
	}()

	<-rootCtx.Done()
	log.Info("shutdown initiated")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 20*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("http shutdown failed", "err", err)
	}

	_ = logger.ShutdownFlush(shutdownCtx, 2*time.Second)
}
