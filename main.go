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

	"github.com/joho/godotenv"

	"faint-memory-server/api"
	"faint-memory-server/auth"
	"faint-memory-server/config"
	"faint-memory-server/loghandler"
	"faint-memory-server/storage"
	"faint-memory-server/ws"
)

func main() {
	envErr := godotenv.Load()

	cfg := config.Load()
	slog.SetDefault(slog.New(loghandler.NewCompactHandler(os.Stdout, loghandler.ParseLevel(cfg.LogLevel))))
	if envErr != nil {
		slog.Info("no .env file found, using environment variables", "tag", "main")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	store, err := openStore(ctx, cfg)
	if err != nil {
		slog.Error("storage unavailable", "tag", "main", "err", err)
		os.Exit(1)
	}
	defer store.Close()

	cache, err := storage.NewBundleCache(ctx, cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB, cfg.BundleCacheTTL())
	if err != nil {
		slog.Warn("bundle cache disabled", "tag", "main", "err", err)
		cache = nil
	}
	defer cache.Close()

	tokens, err := auth.NewAdminTokens(cfg.AdminSessionSecret, cfg.AdminSessionTTL())
	if err != nil {
		slog.Error("admin tokens", "tag", "main", "err", err)
		os.Exit(1)
	}
	if cfg.AdminSessionSecret == "" {
		slog.Warn("ADMIN_SESSION_SECRET not set, admin sessions end on restart", "tag", "main")
	}
	if cfg.AdminPassword == "" {
		slog.Warn("ADMIN_PASSWORD not set, admin login is disabled", "tag", "main")
	}

	jwks, err := auth.NewJWKSValidator(cfg.AuthJWKSURL)
	if err != nil {
		slog.Warn("JWKS bearer auth disabled", "tag", "main", "err", err)
		jwks = nil
	}

	hub := ws.NewHub(store, cache)
	go hub.Run(ctx)

	mux := http.NewServeMux()
	api.NewHandler(cfg, store, cache, tokens, jwks).Register(mux)
	mux.HandleFunc("/ws", hub.ServeWS)

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.HTTPPort),
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		srv.Shutdown(shutdownCtx)
	}()

	slog.Info("Faint Memory server listening", "tag", "main", "addr", srv.Addr, "cache", cache != nil, "jwks", jwks != nil)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		slog.Error("server stopped", "tag", "main", "err", err)
		os.Exit(1)
	}
}

// openStore connects to Postgres when DATABASE_URL is set and falls back to an
// in-memory store otherwise. An empty store is filled from the seed file.
func openStore(ctx context.Context, cfg *config.Config) (storage.DataStore, error) {
	var store storage.DataStore
	pg, err := storage.NewStore(ctx, cfg.DatabaseURL)
	switch {
	case err != nil:
		return nil, err
	case pg == nil:
		slog.Warn("DATABASE_URL not set, using in-memory store", "tag", "main")
		store = storage.NewMemoryStore()
	default:
		store = pg
	}

	existing, err := store.LoadRules(ctx)
	if err != nil {
		store.Close()
		return nil, err
	}
	if len(existing) > 0 {
		return store, nil
	}

	seed, err := storage.LoadSeed(cfg.SeedFile)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			slog.Warn("store is empty and no seed file found", "tag", "main", "path", cfg.SeedFile)
			return store, nil
		}
		store.Close()
		return nil, err
	}
	if err := storage.Seed(ctx, store, seed); err != nil {
		store.Close()
		return nil, err
	}
	slog.Info("store seeded", "tag", "main", "path", cfg.SeedFile,
		"rules", len(seed.Rules), "combatants", len(seed.Combatants), "cards", len(seed.Cards))
	return store, nil
}
