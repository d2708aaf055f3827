package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/vikram-desai/retrieva/internal/indexer/consumer"
	"github.com/vikram-desai/retrieva/internal/indexer/rpcserver"
	"github.com/vikram-desai/retrieva/internal/indexer/shard"
	"github.com/vikram-desai/retrieva/internal/retrieval/docstore"
	"github.com/vikram-desai/retrieva/pkg/config"
	"github.com/vikram-desai/retrieva/pkg/grpc"
	"github.com/vikram-desai/retrieva/pkg/kafka"
	"github.com/vikram-desai/retrieva/pkg/logger"
	"github.com/vikram-desai/retrieva/pkg/postgres"
)

const numShards = 8

func main() {
	configPath := flag.String("config", "configs/development.yaml", "path to config file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	logger.Setup(cfg.Logging.Level, cfg.Logging.Format)
	slog.Info("starting indexer service", "num_shards", numShards)

	pgClient, err := postgres.New(cfg.Postgres)
	if err != nil {
		slog.Error("failed to connect to postgres", "error", err)
		os.Exit(1)
	}
	defer pgClient.Close()

	store := docstore.Wrap(pgClient)
	if err := store.EnsureSchema(context.Background()); err != nil {
		slog.Error("failed to ensure docstore schema", "error", err)
		os.Exit(1)
	}

	router, err := shard.NewRouter(cfg.Indexer, numShards, store)
	if err != nil {
		slog.Error("failed to create shard router", "error", err)
		os.Exit(1)
	}
	defer router.Close()
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	for shardID, engine := range router.GetAllEngines() {
		engine.StartFlushLoop(ctx)
		slog.Info("flush loop started", "shard_id", shardID)
	}

	rpcServer := grpc.NewServer()
	rpcserver.Register(rpcServer, router)
	rpcAddr := fmt.Sprintf(":%d", cfg.Retrieval.BackendPort)
	go func() {
		if err := rpcServer.Serve(rpcAddr); err != nil {
			slog.Error("rpc server error", "error", err)
		}
	}()
	defer rpcServer.Stop()
	slog.Info("backend rpc server listening", "addr", rpcAddr)

	handler := consumer.HandleMessageSharded(router, pgClient.DB)
	kafkaConsumer := kafka.NewConsumer(
		cfg.Kafka,
		cfg.Kafka.Topics.DocumentIngest,
		handler,
	)

	indexConsumer := consumer.New(kafkaConsumer)

	slog.Info("indexer service ready, consuming from kafka",
		"topic", cfg.Kafka.Topics.DocumentIngest,
		"group", cfg.Kafka.ConsumerGroup,
	)

	if err := indexConsumer.Start(ctx); err != nil {
		slog.Error("consumer error", "error", err)
	}

	slog.Info("flushing all shards before shutdown")
	if err := router.FlushAll(); err != nil {
		slog.Error("final flush failed", "error", err)
	}

	slog.Info("indexer service stopped")
}
