package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/redis/go-redis/v9"

	"marketflow/internal/aggregator"
	"marketflow/internal/bus"
	"marketflow/internal/cart"
	"marketflow/internal/events"
	"marketflow/internal/infra/config"
	"marketflow/internal/infra/obs"
	"marketflow/internal/order"
	"marketflow/internal/payment"
	"marketflow/internal/product"
	"marketflow/internal/shipment"
	"marketflow/internal/stock"
	"marketflow/internal/storage"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load()
	if err != nil {
		logger := obs.NewLogger("dev")
		logger.Error("config load failed", "error", err)
		os.Exit(1)
	}
	logger := obs.NewLogger(cfg.Env)

	sink, closeSink := buildSink(cfg, logger)
	defer closeSink()

	if cfg.StorageMode == "memory" {
		runMemory(ctx, cfg, logger, sink)
		return
	}
	runPostgres(ctx, cfg, logger, sink)
}

// buildSink assembles the mark sink from configuration: Redis streams and a
// Kafka mirror when configured, the logger otherwise.
func buildSink(cfg config.Config, logger *slog.Logger) (aggregator.Sink, func()) {
	var sinks aggregator.Tee
	closers := []func(){}
	if cfg.RedisAddr != "" {
		client := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
		sinks = append(sinks, aggregator.NewRedisSink(client))
		closers = append(closers, func() { _ = client.Close() })
	}
	if len(cfg.KafkaBrokers) > 0 {
		kafka, err := aggregator.NewKafkaSink(cfg.KafkaBrokers, cfg.KafkaTopic)
		if err != nil {
			logger.Error("kafka sink init failed", "error", err)
			os.Exit(1)
		}
		sinks = append(sinks, kafka)
		closers = append(closers, func() { _ = kafka.Close() })
	}
	if len(sinks) == 0 {
		sinks = append(sinks, aggregator.LogSink{Log: logger})
	}
	return sinks, func() {
		for _, c := range closers {
			c()
		}
	}
}

func runPostgres(ctx context.Context, cfg config.Config, logger *slog.Logger, sink aggregator.Sink) {
	db, err := storage.Open(ctx, cfg.PostgresDSN)
	if err != nil {
		logger.Error("postgres init failed", "error", err)
		os.Exit(1)
	}
	defer db.Close()

	pub := bus.NewPgPublisher(db)
	d := bus.NewDispatcher(logger)

	product.NewService(product.NewPostgresRepository(db), db, pub, logger).Register(d)
	cart.NewService(cart.NewPostgresRepository(db), cart.NewPostgresReplicaRepository(db), db, pub, logger).Register(d)
	stock.NewService(stock.NewPostgresRepository(db), db, pub, logger).Register(d)
	order.NewService(order.NewPostgresRepository(db), db, pub, logger).Register(d)
	payment.NewService(payment.NewPostgresRepository(db), db, pub, payment.ApprovingProvider{}, logger).Register(d)
	shipmentSvc := shipment.NewService(shipment.NewPostgresRepository(db), db, pub, logger)
	shipmentSvc.Register(d)
	aggregator.New(sink, logger).Register(d)

	relay := bus.NewRelay(pub, events.Routes(), logger)

	waitDispatch := bus.StartListeners(ctx, cfg.PostgresDSN, d.Topics(), d, logger,
		cfg.ListenBackoff, cfg.ListenBackoffMax)
	waitRelay := bus.StartListeners(ctx, cfg.PostgresDSN, relay.Topics(), relay, logger,
		cfg.ListenBackoff, cfg.ListenBackoffMax)

	go shipment.NewSweeper(shipmentSvc, cfg.SweepInterval, logger).Run(ctx)

	logger.Info("marketflow started", "env", cfg.Env, "storage", cfg.StorageMode,
		"topics", len(d.Topics()))
	waitDispatch()
	waitRelay()
	logger.Info("marketflow stopped")
}

func runMemory(ctx context.Context, cfg config.Config, logger *slog.Logger, sink aggregator.Sink) {
	runner := storage.NewMemoryRunner()
	mb := bus.NewMemoryBus(events.Routes(), logger)
	d := bus.NewDispatcher(logger)

	product.NewService(product.NewMemoryRepository(), runner, mb, logger).Register(d)
	cart.NewService(cart.NewMemoryRepository(), cart.NewMemoryReplicaRepository(), runner, mb, logger).Register(d)
	stock.NewService(stock.NewMemoryRepository(), runner, mb, logger).Register(d)
	order.NewService(order.NewMemoryRepository(), runner, mb, logger).Register(d)
	payment.NewService(payment.NewMemoryRepository(), runner, mb, payment.ApprovingProvider{}, logger).Register(d)
	shipmentSvc := shipment.NewService(shipment.NewMemoryRepository(), runner, mb, logger)
	shipmentSvc.Register(d)
	aggregator.New(sink, logger).Register(d)

	mb.Attach(d)
	go shipment.NewSweeper(shipmentSvc, cfg.SweepInterval, logger).Run(ctx)

	logger.Info("marketflow started", "env", cfg.Env, "storage", cfg.StorageMode,
		"topics", len(d.Topics()))
	mb.Run(ctx)
	logger.Info("marketflow stopped")
}
