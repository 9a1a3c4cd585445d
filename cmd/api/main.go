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
	_ "time/tzdata"

	"github.com/ariefcatur/go-pos-terminal/internal/auth"
	"github.com/ariefcatur/go-pos-terminal/internal/bootstrap"
	"github.com/ariefcatur/go-pos-terminal/internal/clock"
	"github.com/ariefcatur/go-pos-terminal/internal/config"
	"github.com/ariefcatur/go-pos-terminal/internal/httpx"
	kafkax "github.com/ariefcatur/go-pos-terminal/internal/kafka"
	"github.com/ariefcatur/go-pos-terminal/internal/metrics"
	"github.com/ariefcatur/go-pos-terminal/internal/pos"
	"github.com/ariefcatur/go-pos-terminal/internal/salesfeed"
	"github.com/ariefcatur/go-pos-terminal/internal/seed"
	"github.com/google/uuid"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/sync/errgroup"
)

func main() {
	_ = godotenv.Load()

	cfg := config.Load()
	logger := bootstrap.NewLogger(cfg)
	if err := run(cfg, logger); err != nil {
		logger.Error("terminal exited", slog.String("error", err.Error()))
		os.Exit(1)
	}
}

func run(cfg config.Config, logger *slog.Logger) error {
	if err := cfg.Validate(); err != nil {
		return err
	}
	loc, err := cfg.Location()
	if err != nil {
		return err
	}
	data, err := seed.Load(cfg.SeedFile)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Store
	store, err := bootstrap.OpenStore(ctx, cfg)
	if err != nil {
		return err
	}
	defer store.Close()

	// Engine
	engine, err := pos.Open(ctx, store,
		pos.WithLogger(logger),
		pos.WithSeed(data.Catalog),
		pos.WithLease(cfg.TerminalID+"/"+uuid.NewString(), cfg.LeaseTTL),
	)
	if err != nil {
		return err
	}
	defer func() {
		ctx2, cancel2 := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel2()
		if err := engine.Close(ctx2); err != nil {
			logger.Warn("release lease", slog.String("error", err.Error()))
		}
	}()

	// Metrics
	m := metrics.New(prometheus.DefaultRegisterer)
	defer m.Attach(engine)()

	// Sales feed, only when brokers are configured
	var producers []*kafkax.Producer
	prodCtx, cancelProd := context.WithCancel(context.Background())
	defer func() {
		for _, p := range producers {
			p.Close()
		}
		cancelProd()
		for _, p := range producers {
			p.WaitClosed()
		}
	}()
	if len(cfg.KafkaBrokers) > 0 {
		committed := kafkax.NewProducer(cfg.KafkaBrokers, cfg.SalesTopicCommitted, 1024, logger)
		deleted := kafkax.NewProducer(cfg.KafkaBrokers, cfg.SalesTopicDeleted, 1024, logger)
		committed.Start(prodCtx)
		deleted.Start(prodCtx)
		producers = append(producers, committed, deleted)

		feed := salesfeed.New(committed, deleted, cfg.ServiceName, logger)
		defer feed.Attach(engine)()
	} else {
		logger.Info("KAFKA_BROKERS not set; sales feed disabled")
	}

	// HTTP
	router := httpx.NewRouter(promhttp.Handler())
	h := &httpx.POSHandler{
		Engine:   engine,
		Gate:     auth.NewGate(cfg.AdminSecret),
		Profile:  data.Profile,
		Location: loc,
		Clock:    clock.NewSystem(),
		Logger:   logger,
	}
	h.Register(router)
	srv := &http.Server{Addr: cfg.HTTPAddr, Handler: router, ReadHeaderTimeout: 10 * time.Second}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info("HTTP listening", slog.String("addr", cfg.HTTPAddr), slog.String("store", cfg.StoreDriver))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		logger.Info("shutting down...")
		ctx2, cancel2 := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel2()
		return srv.Shutdown(ctx2)
	})
	return g.Wait()
}
