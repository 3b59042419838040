package main

import (
	"context"
	"net/http"
	"time"

	"github.com/rs/zerolog/log"

	"gemdrop/internal/config"
	"gemdrop/internal/ledger"
	"gemdrop/internal/logging"
	"gemdrop/internal/security"
	"gemdrop/internal/session"
	"gemdrop/internal/store"
	httptransport "gemdrop/internal/transport/http"
	"gemdrop/internal/ws"
)

func main() {
	cfg, err := config.LoadApp()
	if err != nil {
		panic(err)
	}
	logging.Init(cfg.Log)

	st, err := store.New(cfg.Server.PostgresDSN)
	if err != nil {
		log.Fatal().Err(err).Msg("store init failed")
	}
	defer st.Close()
	if err := st.Ping(context.Background()); err != nil {
		log.Fatal().Err(err).Msg("db ping failed")
	}
	if err := st.EnsureDefaultLevels(context.Background()); err != nil {
		log.Fatal().Err(err).Msg("ensure default levels failed")
	}

	var difficulty session.DifficultyStore = st
	if cfg.Server.RedisURL != "" {
		cached, err := store.NewCachedDifficulty(st, cfg.Server.RedisURL)
		if err != nil {
			log.Warn().Err(err).Msg("redis unavailable, difficulty cache disabled")
		} else {
			defer cached.Close()
			difficulty = cached
			log.Info().Msg("difficulty cache enabled")
		}
	}

	sink := security.New(cfg.Server, st)
	defer sink.Close()

	mgr := session.NewManager(cfg.Engine, session.Deps{
		Auth:       st,
		Levels:     st,
		Persist:    st,
		Difficulty: difficulty,
		Wallet:     ledger.New(st),
		Security:   sink,
	})
	gateway := ws.NewServer(mgr, cfg.Engine)
	router := httptransport.NewRouter(st, mgr, gateway)

	server := &http.Server{
		Addr:              cfg.Server.HTTPAddr,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
		IdleTimeout:       120 * time.Second,
	}
	log.Info().Str("addr", cfg.Server.HTTPAddr).Msg("http listening")
	log.Fatal().Err(server.ListenAndServe()).Msg("server stopped")
}
