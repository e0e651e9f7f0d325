package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jmehdipour/hookrelay/internal/config"
	"github.com/jmehdipour/hookrelay/internal/db"
	httpSrv "github.com/jmehdipour/hookrelay/internal/http"
	"github.com/jmehdipour/hookrelay/internal/http/middleware"
	"github.com/jmehdipour/hookrelay/internal/kafka"
	"github.com/jmehdipour/hookrelay/internal/logger"
	"github.com/jmehdipour/hookrelay/internal/metrics"
	"github.com/jmehdipour/hookrelay/internal/receiver"
	"github.com/jmehdipour/hookrelay/internal/secret"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the webhook receiver",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load(cfgPath)
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}

		log, err := logger.Init(cfg.Log.Level, cfg.Log.Encoding)
		if err != nil {
			return fmt.Errorf("init logger: %w", err)
		}
		defer func() { _ = log.Sync() }()

		metrics.MustRegister(prometheus.DefaultRegisterer)

		redisClient, err := db.NewRedisClient(db.RedisOpts{
			Addr:        cfg.Redis.Addr,
			Password:    cfg.Redis.Password,
			DB:          cfg.Redis.DB,
			DialTimeout: cfg.Redis.DialTimeout,
		})
		if err != nil {
			return fmt.Errorf("redis connect: %w", err)
		}
		var limiter middleware.Counter
		if redisClient != nil {
			defer func() { _ = redisClient.Close() }()
			limiter = middleware.RedisCounter{Redis: redisClient}
		}

		secrets, err := secret.Open(cfg.Secrets, redisClient)
		if err != nil {
			return fmt.Errorf("secrets: %w", err)
		}

		pingCtx, cancelPing := context.WithTimeout(context.Background(), cfg.Kafka.WriteTimeout)
		err = kafka.Ping(pingCtx, cfg.Kafka.Brokers)
		cancelPing()
		if err != nil {
			return err
		}

		producer := kafka.NewProducer(kafka.ProducerConfig{
			Brokers:      cfg.Kafka.Brokers,
			Topic:        cfg.Kafka.Topic,
			WriteTimeout: cfg.Kafka.WriteTimeout,
			BatchBytes:   cfg.Kafka.BatchBytes,
		})
		defer func() { _ = producer.Close() }()

		recv := receiver.New(secrets, cfg.Secrets.WebhookSecret, producer, log)
		server, err := httpSrv.NewServer(cfg, recv, limiter, log)
		if err != nil {
			return err
		}

		errCh := make(chan error, 1)
		go func() {
			log.Info("starting http", zap.String("addr", cfg.HTTP.Addr), zap.String("topic", cfg.Kafka.Topic))
			errCh <- server.Start(cfg.HTTP.Addr)
		}()

		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

		select {
		case sig := <-sigCh:
			log.Info("signal received, shutting down", zap.String("signal", sig.String()))
		case err := <-errCh:
			if err != nil {
				log.Error("http server exited", zap.Error(err))
			}
		}

		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = server.Shutdown(ctx)

		return nil
	},
}
