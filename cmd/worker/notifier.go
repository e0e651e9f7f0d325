package worker

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jmehdipour/hookrelay/internal/chat"
	"github.com/jmehdipour/hookrelay/internal/config"
	"github.com/jmehdipour/hookrelay/internal/db"
	"github.com/jmehdipour/hookrelay/internal/kafka"
	"github.com/jmehdipour/hookrelay/internal/logger"
	"github.com/jmehdipour/hookrelay/internal/metrics"
	"github.com/jmehdipour/hookrelay/internal/notifier"
	"github.com/jmehdipour/hookrelay/internal/secret"
	"github.com/jmehdipour/hookrelay/internal/worker"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

func newNotifierCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "notifier",
		Short: "Start notifier worker (telegram | slack)",
	}
	cmd.AddCommand(&cobra.Command{
		Use:   chat.PlatformTelegram,
		Short: "Deliver queued events to a Telegram chat",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runNotifier(cmd, chat.PlatformTelegram)
		},
	})
	cmd.AddCommand(&cobra.Command{
		Use:   chat.PlatformSlack,
		Short: "Deliver queued events to a Slack incoming webhook",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runNotifier(cmd, chat.PlatformSlack)
		},
	})
	return cmd
}

// platformParts builds the chat client and endpoint for one platform.
func platformParts(cfg config.Config, platform string, secrets secret.Provider) (chat.Client, chat.Endpoint, string, error) {
	switch platform {
	case chat.PlatformTelegram:
		if _, err := chat.TelegramChatID(cfg.Telegram.ChatID); err != nil {
			return nil, nil, "", fmt.Errorf("telegram.chat_id: %w", err)
		}
		client := chat.NewHTTPClient(platform, chat.TelegramEncoder,
			cfg.Telegram.TimeoutMs, cfg.Telegram.Breaker.FailThreshold, cfg.Telegram.Breaker.OpenForMs)
		ep := chat.NewTelegramEndpoint(secrets, cfg.Secrets.TelegramToken, cfg.Telegram.APIBase)
		return client, ep, cfg.Telegram.ChatID, nil
	case chat.PlatformSlack:
		client := chat.NewHTTPClient(platform, chat.SlackEncoder,
			cfg.Slack.TimeoutMs, cfg.Slack.Breaker.FailThreshold, cfg.Slack.Breaker.OpenForMs)
		ep := chat.NewSlackEndpoint(secrets, cfg.Secrets.SlackURL)
		return client, ep, "", nil
	default:
		return nil, nil, "", fmt.Errorf("unknown platform %q", platform)
	}
}

// notifierConfig maps the notifier section onto notifier.Config.
func notifierConfig(cfg config.NotifierConfig, platform, destination string) (notifier.Config, error) {
	mode, ok := notifier.ParseMode(cfg.Mode)
	if !ok {
		return notifier.Config{}, fmt.Errorf("invalid notifier.mode %q", cfg.Mode)
	}
	text, ok := notifier.ParseTextSource(cfg.Text)
	if !ok {
		return notifier.Config{}, fmt.Errorf("invalid notifier.text %q", cfg.Text)
	}
	return notifier.Config{
		Platform:    platform,
		Destination: destination,
		Mode:        mode,
		Text:        text,
		Concurrency: cfg.Concurrency,
		Retry: chat.Retry{
			MaxAttempts: cfg.MaxAttempts,
			Backoff:     cfg.RetryBackoff,
		},
	}, nil
}

func runNotifier(cmd *cobra.Command, platform string) error {
	// 1) load config
	cfgPath, _ := cmd.Root().PersistentFlags().GetString("config")
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

	// 2) secrets (redis backend optional)
	redisClient, err := db.NewRedisClient(db.RedisOpts{
		Addr:        cfg.Redis.Addr,
		Password:    cfg.Redis.Password,
		DB:          cfg.Redis.DB,
		DialTimeout: cfg.Redis.DialTimeout,
	})
	if err != nil {
		return fmt.Errorf("redis connect: %w", err)
	}
	if redisClient != nil {
		defer func() { _ = redisClient.Close() }()
	}
	secrets, err := secret.Open(cfg.Secrets, redisClient)
	if err != nil {
		return fmt.Errorf("secrets: %w", err)
	}

	// 3) chat client → notifier
	client, endpoint, destination, err := platformParts(cfg, platform, secrets)
	if err != nil {
		return err
	}
	ncfg, err := notifierConfig(cfg.Notifier, platform, destination)
	if err != nil {
		return err
	}
	n := notifier.New(client, endpoint, ncfg, log)

	// 4) kafka consumer + producer (retries and dead letters)
	groupID := cfg.Kafka.GroupID
	if groupID == "" {
		groupID = "hookrelay-notifier"
	}
	groupID = groupID + "-" + platform

	consumer := kafka.NewConsumerFromConfig(kafka.Config{
		Brokers:        cfg.Kafka.Brokers,
		Topic:          cfg.Kafka.Topic,
		GroupID:        groupID,
		MinBytes:       cfg.Kafka.MinBytes,
		MaxBytes:       cfg.Kafka.MaxBytes,
		CommitInterval: time.Duration(cfg.Kafka.CommitInterval) * time.Millisecond,
	})
	defer consumer.Close()

	producer := kafka.NewProducer(kafka.ProducerConfig{
		Brokers:      cfg.Kafka.Brokers,
		Topic:        cfg.Kafka.Topic,
		WriteTimeout: cfg.Kafka.WriteTimeout,
		BatchBytes:   cfg.Kafka.BatchBytes,
	})
	defer func() { _ = producer.Close() }()

	w := worker.NewNotifierKafka(consumer, producer, n, cfg.Kafka.Topic, cfg.Kafka.DeadLetterTopic, log)

	// tune knobs
	if cfg.Notifier.BatchSize > 0 {
		w.BatchSize = cfg.Notifier.BatchSize
	}
	if cfg.Notifier.BatchWait > 0 {
		w.BatchWait = cfg.Notifier.BatchWait
	}
	if cfg.Notifier.MaxRedeliveries >= 0 {
		w.MaxRedeliveries = cfg.Notifier.MaxRedeliveries
	}

	// 5) graceful shutdown
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	log.Info("notifier started",
		zap.String("platform", platform),
		zap.String("topic", cfg.Kafka.Topic),
		zap.String("group", groupID),
		zap.String("mode", string(ncfg.Mode)),
		zap.Int("batch_size", w.BatchSize),
		zap.Duration("batch_wait", w.BatchWait))

	return w.Run(ctx)
}
