// Package main provides the entry point for the warden server.
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/codeGROOVE-dev/gsm"
	"github.com/gorilla/mux"
	_ "github.com/joho/godotenv/autoload"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/sync/errgroup"

	"github.com/codeGROOVE-dev/warden/internal/audit"
	"github.com/codeGROOVE-dev/warden/internal/bot"
	"github.com/codeGROOVE-dev/warden/internal/config"
	"github.com/codeGROOVE-dev/warden/internal/discord"
	"github.com/codeGROOVE-dev/warden/internal/markers"
	"github.com/codeGROOVE-dev/warden/internal/notify"
	"github.com/codeGROOVE-dev/warden/internal/platform"
	"github.com/codeGROOVE-dev/warden/internal/state"
)

const (
	serverReadTimeout  = 15 * time.Second
	serverWriteTimeout = 15 * time.Second
	defaultPort        = "9119"
)

func main() {
	// Setup structured logging
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	ctx, cancel := context.WithCancel(context.Background())

	// Handle graceful shutdown
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		slog.Warn("shutdown signal received", "signal", sig.String())
		cancel()
	}()

	exitCode := run(ctx, cancel)
	cancel() // Ensure cleanup before exit
	os.Exit(exitCode)
}

func run(ctx context.Context, cancel context.CancelFunc) int {
	cfg, err := loadConfig(ctx)
	if err != nil {
		slog.Error("failed to load configuration", "error", err)
		return 1
	}

	slog.Info("configuration loaded",
		"has_discord_bot_token", cfg.DiscordBotToken != "",
		"protected_user_id", cfg.ProtectedUserID,
		"store", cfg.StoreBackend,
		"settings_path", cfg.SettingsPath)

	settings, err := config.Load(ctx, cfg.SettingsPath)
	if err != nil {
		slog.Error("failed to load settings", "error", err)
		return 1
	}

	store, err := newStore(ctx, cfg.StoreBackend)
	if err != nil {
		slog.Error("failed to create state store", "error", err)
		return 1
	}
	defer func() {
		if err := store.Close(); err != nil {
			slog.Warn("failed to close store", "error", err)
		}
	}()

	client, err := discord.New(cfg.DiscordBotToken, slog.Default())
	if err != nil {
		slog.Error("failed to create Discord client", "error", err)
		return 1
	}

	stateMgr := state.NewManager(state.ManagerConfig{
		Store:         store,
		Logger:        slog.Default(),
		Template:      settings.Template(),
		MaxLogEntries: settings.MaxLogEntries,
	})
	notifyMgr := notify.New(client, cfg.ProtectedUserID, slog.Default())
	engine := bot.NewEngine(bot.EngineConfig{
		Platform:    client,
		State:       stateMgr,
		Markers:     markers.New(settings.MarkerWindow, 0),
		Audit:       audit.New(client, slog.Default(), audit.WithBotID(client.BotUserID)),
		Alerts:      notifyMgr,
		Logger:      slog.Default(),
		BotID:       client.BotUserID,
		Connected:   client.Connected,
		ProtectedID: cfg.ProtectedUserID,
	})

	eg, ctx := errgroup.WithContext(ctx)

	client.Subscribe(func(n platform.Notification) {
		engine.Dispatch(ctx, n)
	})
	slash := discord.NewSlashCommandHandler(client.Session(), engine, cfg.ProtectedUserID, slog.Default())
	slash.SetupHandler()

	if err := client.Open(); err != nil {
		slog.Error("failed to connect to Discord", "error", err)
		return 1
	}
	defer func() {
		if err := client.Close(); err != nil {
			slog.Warn("failed to close Discord session", "error", err)
		}
	}()
	slog.Info("connected to Discord", "bot_id", client.BotUserID())

	router := newRouter(client, notifyMgr)
	port := cfg.Port
	if port == "" {
		port = defaultPort
	}
	server := &http.Server{
		Addr:         ":" + port,
		Handler:      router,
		ReadTimeout:  serverReadTimeout,
		WriteTimeout: serverWriteTimeout,
		IdleTimeout:  120 * time.Second,
	}

	// HTTP server
	eg.Go(func() error {
		slog.Info("starting server", "port", port)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	eg.Go(func() error {
		<-ctx.Done()
		slog.Info("shutting down HTTP server")
		// Fast shutdown for quick handoff during deployments (250ms)
		shutdownCtx, shutdownCancel := context.WithTimeout(context.WithoutCancel(ctx), 250*time.Millisecond)
		defer shutdownCancel()
		return server.Shutdown(shutdownCtx)
	})

	// Alert delivery
	eg.Go(func() error {
		notifyMgr.Start(ctx)
		<-ctx.Done()
		notifyMgr.Stop()
		return nil
	})

	// Protection engine
	eg.Go(func() error {
		return engine.Run(ctx)
	})

	if err := eg.Wait(); err != nil && !errors.Is(err, context.Canceled) && !errors.Is(err, http.ErrServerClosed) {
		slog.Error("server error", "error", err)
		cancel()
		return 1
	}

	slog.Info("shutdown complete")
	return 0
}

func newStore(ctx context.Context, backend string) (state.Store, error) {
	switch backend {
	case config.StoreMemory:
		slog.Warn("using in-memory state store; protection state is lost on restart")
		return state.NewMemoryStore(), nil
	case config.StoreCloudRun:
		return state.NewFidoStore(ctx)
	default:
		return nil, fmt.Errorf("unknown store backend %q", backend)
	}
}

func loadConfig(ctx context.Context) (config.ServerConfig, error) {
	// Environment variables take precedence, then Secret Manager
	getSecret := func(name string) string {
		if v := os.Getenv(name); v != "" {
			slog.Debug("using environment variable", "name", name)
			return v
		}

		value, err := gsm.Fetch(ctx, name)
		if err != nil {
			slog.Debug("secret not found in Secret Manager", "name", name, "error", err)
			return ""
		}
		if value != "" {
			slog.Info("loaded secret from Secret Manager", "name", name)
		}
		return value
	}

	cfg := config.ServerConfig{
		DiscordBotToken: getSecret("DISCORD_BOT_TOKEN"),
		ProtectedUserID: os.Getenv("PROTECTED_USER_ID"),
		SettingsPath:    os.Getenv("WARDEN_SETTINGS"),
		StoreBackend:    getEnv("STORE", config.StoreCloudRun),
		Port:            getEnv("PORT", defaultPort),
	}
	return cfg, cfg.Validate()
}

func getEnv(key, defaultValue string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultValue
}

type connectionChecker interface {
	Connected() bool
}

type pendingCounter interface {
	Pending() int
}

func newRouter(conn connectionChecker, alerts pendingCounter) *mux.Router {
	router := mux.NewRouter()
	router.Use(securityHeadersMiddleware)

	router.HandleFunc("/", healthHandler).Methods("GET")
	router.HandleFunc("/health", healthHandler).Methods("GET")
	router.HandleFunc("/healthz", makeHealthzHandler(conn, alerts)).Methods("GET")
	router.Handle("/metrics", promhttp.Handler()).Methods("GET")
	return router
}

func healthHandler(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain")
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write([]byte("ok\n")); err != nil {
		slog.Debug("health write error", "error", err)
	}
}

// makeHealthzHandler reports unavailable while the gateway session is down.
func makeHealthzHandler(conn connectionChecker, alerts pendingCounter) http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/plain")
		if !conn.Connected() {
			w.WriteHeader(http.StatusServiceUnavailable)
			if _, err := fmt.Fprintln(w, "discord disconnected"); err != nil {
				slog.Debug("healthz write error", "error", err)
			}
			return
		}
		w.WriteHeader(http.StatusOK)
		if _, err := fmt.Fprintf(w, "ok - %d pending alerts\n", alerts.Pending()); err != nil {
			slog.Debug("healthz write error", "error", err)
		}
	}
}

func securityHeadersMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Content-Type-Options", "nosniff")
		w.Header().Set("X-Frame-Options", "DENY")
		w.Header().Set("X-XSS-Protection", "1; mode=block")
		w.Header().Set("Strict-Transport-Security", "max-age=31536000; includeSubDomains")
		w.Header().Set("Content-Security-Policy", "default-src 'none'")
		next.ServeHTTP(w, r)
	})
}
