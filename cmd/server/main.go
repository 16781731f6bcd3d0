package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gorilla/mux"

	"github.com/Unidata/awips2-hazards-sub017/internal/api"
	"github.com/Unidata/awips2-hazards-sub017/internal/areasource"
	"github.com/Unidata/awips2-hazards-sub017/internal/auth"
	"github.com/Unidata/awips2-hazards-sub017/internal/config"
	"github.com/Unidata/awips2-hazards-sub017/internal/db"
	"github.com/Unidata/awips2-hazards-sub017/internal/display"
	"github.com/Unidata/awips2-hazards-sub017/internal/engine"
	"github.com/Unidata/awips2-hazards-sub017/internal/hazard"
	mw "github.com/Unidata/awips2-hazards-sub017/internal/middleware"
	"github.com/Unidata/awips2-hazards-sub017/internal/notify"
	"github.com/Unidata/awips2-hazards-sub017/internal/symbols"
)

func main() {
	hashPassword := flag.String("hash-password", "", "print a bcrypt hash for OPERATOR_PASSWORD_HASH and exit")
	sample := flag.Bool("sample", false, "draw the built-in sample events at startup")
	flag.Parse()

	if *hashPassword != "" {
		hash, err := auth.HashPassword(*hashPassword)
		if err != nil {
			fmt.Fprintln(os.Stderr, err)
			os.Exit(1)
		}
		fmt.Println(hash)
		return
	}

	cfg, err := config.Load()
	if err != nil {
		slog.Error("load config", "error", err)
		os.Exit(1)
	}

	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: cfg.Level()})))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Overlays come from PostGIS when configured, then from GeoJSON files.
	var loaders areasource.Fallback
	if cfg.DatabaseURL != "" {
		pool, err := db.NewPool(ctx, cfg.DatabaseURL)
		if err != nil {
			slog.Error("connect to database", "error", err)
			os.Exit(1)
		}
		defer pool.Close()
		loaders = append(loaders, areasource.PGLoader{Pool: pool, Schema: cfg.AreaSchema})
	}
	loaders = append(loaders, areasource.FileLoader{Dir: cfg.AreaDir})
	areas := areasource.NewCache(loaders)

	var prewarm []areasource.Key
	for _, raw := range cfg.PrewarmAreas() {
		key, err := areasource.ParseKey(raw)
		if err != nil {
			slog.Warn("skipping overlay prewarm", "overlay", raw, "error", err)
			continue
		}
		prewarm = append(prewarm, key)
	}
	areas.Prewarm(ctx, prewarm...)

	library := symbols.NewLibrary(cfg.SymbolDir, slog.Default())
	go library.Prewarm(ctx)

	resolver, err := engine.LoadResolver(cfg.PaletteFile)
	if err != nil {
		slog.Error("load palette", "error", err, "path", cfg.PaletteFile)
		os.Exit(1)
	}

	authService := auth.NewService(cfg.OperatorHash, cfg.JWTSecret)
	authHandler := auth.NewHandler(authService)
	if !authService.Enabled() {
		slog.Warn("no operator password configured, API is open")
	}

	var displayHandler *api.Handler
	hub := notify.NewHub(func(c *notify.Client, msg *notify.Message) {
		displayHandler.Inbound(c, msg)
	}, slog.Default())
	go hub.Run(ctx)

	sinks := notify.Multi{hub}
	var kafkaSink *notify.KafkaSink
	if brokers := cfg.Brokers(); len(brokers) > 0 {
		kafkaSink = notify.NewKafkaSink(brokers, cfg.KafkaTopic, slog.Default())
		sinks = append(sinks, kafkaSink)
		slog.Info("publishing notifications to kafka", "brokers", brokers, "topic", cfg.KafkaTopic)
	}

	queue := engine.NewQueue()
	go func() {
		if err := queue.Run(ctx); err != nil && ctx.Err() == nil {
			slog.Error("engine queue stopped", "error", err)
		}
	}()

	service := api.NewService(api.Options{
		Queue:               queue,
		Displays:            display.NewRegistry(),
		Shells:              hub,
		Sink:                sinks,
		Resolver:            resolver,
		Areas:               areas,
		Patterns:            library,
		Logger:              slog.Default(),
		SelectionDistancePx: cfg.SelectionDistancePx,
		SlopPx:              cfg.SlopPx,
		HandleBarRadiusPx:   cfg.HandleBarRadiusPx,
	})
	displayHandler = api.NewHandler(service, hub, cfg.Origins())
	symbolHandler := symbols.NewHandler(library)

	if *sample {
		if _, err := service.DrawEvents(ctx, hazard.SampleEvents(time.Now())); err != nil {
			slog.Warn("draw sample events", "error", err)
		}
	}

	r := mux.NewRouter()

	r.Use(mw.Recovery)
	r.Use(mw.Logger)
	r.Use(mw.CORS(cfg.Origins()))

	r.HandleFunc("/auth/login", authHandler.Login).Methods("POST")

	r.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"status":"ok"}`))
	}).Methods("GET")

	r.PathPrefix("/symbols/").Handler(symbolHandler.Serve()).Methods("GET")

	apiRouter := r.PathPrefix("/api").Subrouter()
	apiRouter.Use(authService.AuthMiddleware)
	apiRouter.HandleFunc("/me", authHandler.Me).Methods("GET")
	apiRouter.HandleFunc("/symbols", symbolHandler.List).Methods("GET")
	apiRouter.HandleFunc("/symbols", symbolHandler.Upload).Methods("POST", "OPTIONS")
	displayHandler.Routes(apiRouter)

	ws := r.PathPrefix("/ws").Subrouter()
	ws.Use(authService.AuthMiddleware)
	ws.HandleFunc("/display/{displayId}", displayHandler.WebSocket)

	addr := fmt.Sprintf(":%d", cfg.Port)
	srv := &http.Server{
		Addr:         addr,
		Handler:      r,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 120 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	stopped := make(chan struct{})
	go func() {
		defer close(stopped)

		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
		<-sigCh

		slog.Info("shutting down server")

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer shutdownCancel()
		srv.Shutdown(shutdownCtx)
		cancel()

		if kafkaSink != nil {
			if err := kafkaSink.Close(); err != nil {
				slog.Error("close kafka writer", "error", err)
			}
		}
	}()

	slog.Info("server starting", "addr", addr)
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		slog.Error("server error", "error", err)
		os.Exit(1)
	}
	<-stopped
}
