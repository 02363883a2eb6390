// Kadak Adda - tea shop site server
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

	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/sync/errgroup"

	"github.com/cogniqyatendra-del/TeaWebsiteClean/internal/api"
	"github.com/cogniqyatendra-del/TeaWebsiteClean/internal/chat"
	"github.com/cogniqyatendra-del/TeaWebsiteClean/internal/config"
	"github.com/cogniqyatendra-del/TeaWebsiteClean/internal/feedback"
	"github.com/cogniqyatendra-del/TeaWebsiteClean/internal/identity"
	"github.com/cogniqyatendra-del/TeaWebsiteClean/internal/inventory"
	"github.com/cogniqyatendra-del/TeaWebsiteClean/internal/middleware"
	"github.com/cogniqyatendra-del/TeaWebsiteClean/internal/probe"
	"github.com/cogniqyatendra-del/TeaWebsiteClean/internal/store"
	"github.com/cogniqyatendra-del/TeaWebsiteClean/internal/ui"
	"github.com/cogniqyatendra-del/TeaWebsiteClean/web"
)

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	if err := godotenv.Load(); err != nil {
		slog.Info("No .env file found, using environment variables")
	}

	cfg, err := config.Load()
	if err != nil {
		slog.Error("Failed to load configuration", "error", err)
		os.Exit(1)
	}

	site, err := config.LoadSite(cfg.SiteConfigPath)
	if err != nil {
		slog.Error("Failed to load site content", "error", err)
		os.Exit(1)
	}

	slog.Info("Starting server",
		"port", cfg.Port,
		"dev", cfg.IsDevelopment(),
		"store", cfg.StoreDriver,
		"chat_mode", cfg.Chat.Mode,
		"features", cfg.Features,
	)

	// Initialize dependencies.
	repo, err := store.Open(cfg.StoreDriver, cfg.DBPath)
	if err != nil {
		slog.Error("Failed to initialize store", "error", err)
		os.Exit(1)
	}
	defer func() {
		if closeErr := repo.Close(); closeErr != nil {
			slog.Error("Failed to close repository", "error", closeErr)
		}
	}()

	if err := repo.Ping(context.Background()); err != nil {
		slog.Error("Store health check failed", "error", err)
		os.Exit(1)
	}
	slog.Info("Store connected", "path", cfg.DBPath)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	baseHandler := api.NewHandler(repo, site, cfg)

	// Setup router.
	r := chi.NewRouter()

	// Global middleware.
	r.Use(chiMiddleware.RequestID)
	r.Use(chiMiddleware.RealIP)
	r.Use(chiMiddleware.Logger)
	r.Use(chiMiddleware.Recoverer)
	r.Use(chiMiddleware.Heartbeat("/health"))
	r.Use(middleware.Metrics)
	r.Use(middleware.CORS(allowedOrigins(cfg)))
	r.Use(identity.Middleware(repo, cfg.IsDevelopment()))

	// Public routes.
	baseHandler.RegisterHealth(r)
	baseHandler.RegisterSite(r)
	r.Handle("/metrics", promhttp.Handler())

	if cfg.Features.Chat {
		chatHandler := newChatHandler(ctx, cfg, site, repo, logger)
		defer chatHandler.Close()

		chatHandler.RegisterRoutes(r)
		wsHandler := chat.NewWebSocketHandler(chatHandler, chat.NewConnRegistry(), cfg.FrontendURL, cfg.IsDevelopment())
		r.Get("/ws/chat", wsHandler.ServeHTTP)
	}

	if cfg.Features.Inventory {
		api.NewInventoryHandler(baseHandler, inventory.NewTracker(repo, site.InventorySeed)).RegisterRoutes(r)
	}

	if cfg.Features.Feedback {
		collector := feedback.NewCollector(repo, feedback.Keywords{
			Positive: site.Sentiment.Positive,
			Neutral:  site.Sentiment.Neutral,
		})
		api.NewFeedbackHandler(baseHandler, collector).RegisterRoutes(r)
	}

	uiSessions := ui.NewSessionManager(ui.Settings{
		DesktopBreakpoint: site.Nav.DesktopBreakpoint,
		RevealThreshold:   site.Reveal.Threshold,
		TakeawayItems:     site.Takeaway.Items,
		UnitPrice:         site.Takeaway.UnitPrice,
		Takeaway:          cfg.Features.Takeaway,
	}, ui.NewDispatcher())
	api.NewUIHandler(baseHandler, uiSessions).RegisterRoutes(r)

	// Serve embedded frontend (SPA catch-all).
	r.Handle("/*", web.SPAHandler())

	srv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      r,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 0, // WebSocket chat streams state events
		IdleTimeout:  120 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		slog.Info("Server listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		slog.Info("Shutting down gracefully...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	g.Go(func() error {
		runUITTLWorker(gctx, uiSessions, cfg.SessionTTL)
		return nil
	})

	if cfg.GRPCAddr != "" {
		g.Go(func() error {
			return probe.NewServer(repo, 0, logger).ListenAndServe(gctx, cfg.GRPCAddr)
		})
	}

	if err := g.Wait(); err != nil {
		slog.Error("Server stopped with error", "error", err)
		os.Exit(1)
	}

	slog.Info("Server stopped successfully")
}

func newChatHandler(ctx context.Context, cfg *config.Config, site *config.Site, repo store.Repository, logger *slog.Logger) *chat.Handler {
	var backend chat.Backend
	if cfg.Chat.Mode == config.ChatModeDirect {
		backend = chat.NewDirectBackend(cfg.Chat.APIBaseURL, cfg.Chat.RequestTimeout)
	} else {
		backend = chat.NewProxiedBackend(cfg.Chat.WorkerURL, cfg.Chat.ProjectID, cfg.Chat.RequestTimeout)
	}

	orch := chat.NewOrchestrator(backend, chat.Policy{
		Models:            cfg.Chat.Models,
		RetryCeiling:      cfg.Chat.RetryCeiling,
		RetryBaseDelay:    cfg.Chat.RetryBaseDelay,
		HistoryLimit:      cfg.Chat.HistoryLimit,
		SystemInstruction: site.SystemInstruction,
		ThinkingText:      site.ThinkingText,
		Generation: chat.GenerationConfig{
			Temperature:     cfg.Chat.Temperature,
			TopP:            cfg.Chat.TopP,
			TopK:            cfg.Chat.TopK,
			MaxOutputTokens: cfg.Chat.MaxOutputTokens,
		},
	}, logger)

	sessions := chat.NewSessionManager(site.Greeting)
	sessions.StartTTLWorker(ctx, cfg.SessionTTL)
	slog.Info("Chat TTL worker started", "session_ttl", cfg.SessionTTL)

	conversationLogger, err := chat.NewConversationLogger(chat.ConversationLogConfig{
		Enabled:   cfg.ConversationLog.Enabled,
		Dir:       cfg.ConversationLog.Dir,
		QueueSize: cfg.ConversationLog.QueueSize,
	}, logger)
	if err != nil {
		slog.Error("Failed to initialize conversation logger", "error", err)
		os.Exit(1)
	}

	return chat.NewHandler(
		orch,
		sessions,
		chat.NewRateLimiter(cfg.RateLimit.RequestsPerWindow, cfg.RateLimit.WindowDuration),
		repo,
		conversationLogger,
		chat.HandlerConfig{
			Mode:           cfg.Chat.Mode,
			DefaultAPIKey:  cfg.Chat.APIKey,
			QuickQuestions: site.QuickQuestions,
		},
	)
}

// runUITTLWorker drops page chrome state for tabs idle longer than ttl.
func runUITTLWorker(ctx context.Context, sessions *ui.SessionManager, ttl time.Duration) {
	ticker := time.NewTicker(min(5*time.Minute, ttl))
	defer ticker.Stop()
	for {
		select {
		case now := <-ticker.C:
			if n := sessions.EvictIdle(now, ttl); n > 0 {
				slog.Info("UI TTL worker evicted idle sessions", "count", n)
			}
		case <-ctx.Done():
			return
		}
	}
}

func allowedOrigins(cfg *config.Config) []string {
	if cfg.FrontendURL == "" {
		return []string{"*"}
	}
	return []string{cfg.FrontendURL}
}
