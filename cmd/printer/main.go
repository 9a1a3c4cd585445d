package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	_ "time/tzdata"

	"github.com/ariefcatur/go-pos-terminal/internal/bootstrap"
	"github.com/ariefcatur/go-pos-terminal/internal/config"
	kafkax "github.com/ariefcatur/go-pos-terminal/internal/kafka"
	"github.com/ariefcatur/go-pos-terminal/internal/printer"
	"github.com/ariefcatur/go-pos-terminal/internal/redisx"
	"github.com/ariefcatur/go-pos-terminal/internal/seed"
	"github.com/joho/godotenv"
)

func main() {
	_ = godotenv.Load()
	cfg := config.Load()
	logger := bootstrap.NewLogger(cfg)

	if len(cfg.KafkaBrokers) == 0 {
		logger.Error("KAFKA_BROKERS must be set for the printer station")
		os.Exit(1)
	}
	loc, err := cfg.Location()
	if err != nil {
		logger.Error("config", slog.String("error", err.Error()))
		os.Exit(1)
	}
	data, err := seed.Load(cfg.SeedFile)
	if err != nil {
		logger.Error("seed", slog.String("error", err.Error()))
		os.Exit(1)
	}
	if cfg.PrinterSpoolDir != "" {
		if err := os.MkdirAll(cfg.PrinterSpoolDir, 0o755); err != nil {
			logger.Error("spool dir", slog.String("error", err.Error()))
			os.Exit(1)
		}
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Redis
	rdb := redisx.New(cfg.RedisAddr)
	defer rdb.Close()

	station := &printer.Station{
		Redis:       rdb,
		Profile:     data.Profile,
		ServiceName: cfg.ServiceName + "-printer",
		Location:    loc,
		Logger:      logger,
		SpoolDir:    cfg.PrinterSpoolDir,
	}

	// Consumer
	cons := kafkax.NewConsumer(cfg.KafkaBrokers, cfg.PrinterGroup, cfg.SalesTopicCommitted, cfg.PrinterWorkers, logger)
	done := make(chan struct{})
	go func() {
		defer close(done)
		logger.Info("printer consumer started",
			slog.String("group", cfg.PrinterGroup),
			slog.String("topic", cfg.SalesTopicCommitted),
			slog.Int("workers", cfg.PrinterWorkers))
		if err := cons.Start(ctx, station.HandleSaleCommitted); err != nil {
			logger.Error("consumer exit", slog.String("error", err.Error()))
			cancel()
		}
	}()

	// graceful shutdown
	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	select {
	case <-sig:
	case <-ctx.Done():
	}
	logger.Info("shutting down printer...")
	cancel()
	<-done
}
