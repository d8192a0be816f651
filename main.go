package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog/log"

	"github.com/robalobadob/colorgame/internal/color"
	"github.com/robalobadob/colorgame/internal/config"
	"github.com/robalobadob/colorgame/internal/httpserver"
	"github.com/robalobadob/colorgame/internal/logging"
	"github.com/robalobadob/colorgame/internal/session"
	"github.com/robalobadob/colorgame/internal/store"
)

func main() {
	_ = godotenv.Load()

	configPath := flag.String("config", os.Getenv("CONFIG_FILE"), "optional YAML config file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	logging.Setup(cfg.LogLevel, cfg.LogFormat, os.Stderr)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load config")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	st, err := openStore(ctx, cfg.StoreDSN)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to open store")
	}
	defer st.Close()

	tokens, err := session.NewTokens(cfg.SessionSecret, cfg.TokenTTL, nil)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to init tokens")
	}

	clock := clockwork.NewRealClock()
	sessions := session.NewManager(ctx, st, session.Options{
		Rules:      cfg.Rules,
		TTL:        cfg.SessionTTL,
		Clock:      clock,
		NewSampler: samplerFactory(cfg.Seed),
	})
	defer sessions.Close()
	go sessions.Run(ctx, cfg.ReapInterval)

	srv, err := httpserver.New(cfg, sessions, tokens)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to build server")
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			log.Error().Err(err).Msg("shutdown")
		}
	}()

	log.Info().
		Str("port", cfg.Port).
		Str("env", cfg.Env).
		Bool("persistent", cfg.StoreDSN != "").
		Msg("starting colorgame server")
	if err := srv.Start(":" + cfg.Port); err != nil {
		log.Fatal().Err(err).Msg("server exited")
	}
	log.Info().Msg("server stopped")
}

func openStore(ctx context.Context, dsn string) (store.Store, error) {
	if dsn == "" {
		return store.NewMemoryStore(), nil
	}
	return store.OpenSQLite(ctx, dsn)
}

// samplerFactory returns crypto-seeded samplers, or, for a non-zero seed, a
// reproducible sequence: the n-th session gets seed+n.
func samplerFactory(seed uint64) func() *color.Sampler {
	if seed == 0 {
		return color.NewRandomSampler
	}
	var n atomic.Uint64
	return func() *color.Sampler {
		return color.NewSeededSampler(seed + n.Add(1) - 1)
	}
}
