package main

import (
	"context"
	"errors"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"sync/atomic"
	"syscall"
	"time"

	"go.uber.org/zap"

	"offsetdb/internal/api"
	"offsetdb/internal/config"
	"offsetdb/internal/engine"
	"offsetdb/internal/logging"
	"offsetdb/internal/metrics"
	"offsetdb/internal/query"
	"offsetdb/internal/tpch"
)

func main() {
	v := config.NewViper()
	configFile := flag.String("config", "", "optional config file (yaml, toml or json)")
	flag.Parse()
	if *configFile != "" {
		v.SetConfigFile(*configFile)
		if err := v.ReadInConfig(); err != nil {
			panic(err)
		}
	}
	cfg, err := config.Load(v)
	if err != nil {
		panic(err)
	}
	log, err := logging.New(cfg.LogLevel, cfg.Development)
	if err != nil {
		panic(err)
	}
	defer log.Sync()

	m := metrics.New()

	// The API is live immediately and answers 503 until the data is loaded.
	h := api.NewHandler(log)
	e := api.NewServer(h, log, m, cfg.RateLimit)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var executor atomic.Pointer[query.Executor]
	go func() {
		log.Info("background import started", zap.String("dir", cfg.DataDir))
		t0 := time.Now()

		db := engine.NewDatabase()
		if err := tpch.Import(ctx, cfg.DataDir, db, tpch.Options{Log: log, Metrics: m}); err != nil {
			log.Error("import failed", zap.Error(err))
			return
		}
		ex, err := query.NewExecutor(db, cfg, log, m)
		if err != nil {
			log.Error("creating executor failed", zap.Error(err))
			return
		}
		executor.Store(ex)
		h.SetData(db, ex)

		log.Info("background import complete, API is fully ready", zap.Duration("elapsed", time.Since(t0)))
	}()

	go func() {
		log.Info("server ready (data loading in background)", zap.String("addr", cfg.ListenAddr))
		if err := e.Start(cfg.ListenAddr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal("server stopped", zap.Error(err))
		}
	}()

	<-ctx.Done()
	shutdown, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := e.Shutdown(shutdown); err != nil {
		log.Error("shutdown failed", zap.Error(err))
	}
	if ex := executor.Load(); ex != nil {
		ex.Close()
	}
}
