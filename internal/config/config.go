package config

import (
	"bytes"
	_ "embed"
	"fmt"
	"net"
	"strings"
	"time"

	"github.com/spf13/viper"
)

//go:embed defaults.yaml
var defaults []byte

// ---- Root ----

type Config struct {
	HTTP      HTTPConfig      `mapstructure:"http"`
	Log       LogConfig       `mapstructure:"log"`
	Kafka     KafkaConfig     `mapstructure:"kafka"`
	Redis     RedisConfig     `mapstructure:"redis"`
	RateLimit RateLimitConfig `mapstructure:"rate_limit"`
	Secrets   SecretsConfig   `mapstructure:"secrets"`
	Notifier  NotifierConfig  `mapstructure:"notifier"`
	Telegram  TelegramConfig  `mapstructure:"telegram"`
	Slack     SlackConfig     `mapstructure:"slack"`
}

// ---- Leaf structs ----

type HTTPConfig struct {
	Addr         string        `mapstructure:"addr"`
	MaxBodyBytes int64         `mapstructure:"max_body_bytes"`
	ReadTimeout  time.Duration `mapstructure:"read_timeout"`
	// CIDRs of reverse proxies whose X-Forwarded-For is trusted; empty = use the peer address
	TrustedProxies []string `mapstructure:"trusted_proxies"`
}

type LogConfig struct {
	Level    string `mapstructure:"level"`
	Encoding string `mapstructure:"encoding"` // json | console
}

type KafkaConfig struct {
	Brokers         []string      `mapstructure:"brokers"`
	Topic           string        `mapstructure:"topic"`
	DeadLetterTopic string        `mapstructure:"dead_letter_topic"`
	GroupID         string        `mapstructure:"group_id"`
	MinBytes        int           `mapstructure:"min_bytes"`
	MaxBytes        int           `mapstructure:"max_bytes"`
	BatchBytes      int64         `mapstructure:"batch_bytes"` // producer limit per message batch
	CommitInterval  int           `mapstructure:"commit_interval_ms"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout"`
}

type RedisConfig struct {
	Addr        string        `mapstructure:"addr"`
	Password    string        `mapstructure:"password"`
	DB          int           `mapstructure:"db"`
	DialTimeout time.Duration `mapstructure:"dial_timeout"`
}

type RateLimitConfig struct {
	RPS int `mapstructure:"rps"`
}

type SecretsConfig struct {
	Backend       string        `mapstructure:"backend"` // redis | env
	Region        string        `mapstructure:"region"`
	KeyPrefix     string        `mapstructure:"key_prefix"`
	Timeout       time.Duration `mapstructure:"timeout"`
	TTL           time.Duration `mapstructure:"ttl"` // 0 = keep for process lifetime
	WebhookSecret string        `mapstructure:"webhook_secret"`
	TelegramToken string        `mapstructure:"telegram_token"`
	SlackURL      string        `mapstructure:"slack_url"`
}

type NotifierConfig struct {
	BatchSize       int           `mapstructure:"batch_size"`
	BatchWait       time.Duration `mapstructure:"batch_wait"`
	Mode            string        `mapstructure:"mode"` // isolate | atomic
	Text            string        `mapstructure:"text"` // raw | envelope
	Concurrency     int           `mapstructure:"concurrency"`
	MaxAttempts     int           `mapstructure:"max_attempts"`
	RetryBackoff    time.Duration `mapstructure:"retry_backoff"`
	MaxRedeliveries int           `mapstructure:"max_redeliveries"`
}

type BreakerConfig struct {
	FailThreshold int `mapstructure:"fail_threshold" yaml:"fail_threshold"`
	OpenForMs     int `mapstructure:"open_for_ms"    yaml:"open_for_ms"`
}

type TelegramConfig struct {
	APIBase   string        `mapstructure:"api_base"`
	ChatID    string        `mapstructure:"chat_id"`
	TimeoutMs int           `mapstructure:"timeout_ms"`
	Breaker   BreakerConfig `mapstructure:"breaker"`
}

type SlackConfig struct {
	TimeoutMs int           `mapstructure:"timeout_ms"`
	Breaker   BreakerConfig `mapstructure:"breaker"`
}

// Load reads embedded defaults, merges user YAML (if provided), and applies env overrides (HOOKRELAY_*).
func Load(path string) (Config, error) {
	v := viper.New()

	// embedded defaults
	v.SetConfigType("yaml")
	if err := v.ReadConfig(bytes.NewReader(defaults)); err != nil {
		return Config{}, err
	}

	if path != "" {
		v.SetConfigFile(path)
		if err := v.MergeInConfig(); err != nil {
			return Config{}, err
		}
	}

	// env override (HOOKRELAY_KAFKA_TOPIC -> kafka.topic)
	v.SetEnvPrefix("HOOKRELAY")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, err
	}
	if err := cfg.validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// validate rejects settings where the HTTP layer accepts bodies the queue cannot carry.
func (c Config) validate() error {
	if c.Kafka.BatchBytes > 0 && c.HTTP.MaxBodyBytes > c.Kafka.BatchBytes {
		return fmt.Errorf("http.max_body_bytes (%d) exceeds kafka.batch_bytes (%d)",
			c.HTTP.MaxBodyBytes, c.Kafka.BatchBytes)
	}
	if c.Kafka.BatchBytes > 0 && c.Kafka.MaxBytes > 0 && int64(c.Kafka.MaxBytes) < c.Kafka.BatchBytes {
		return fmt.Errorf("kafka.max_bytes (%d) is below kafka.batch_bytes (%d)",
			c.Kafka.MaxBytes, c.Kafka.BatchBytes)
	}
	for _, cidr := range c.HTTP.TrustedProxies {
		if _, _, err := net.ParseCIDR(cidr); err != nil {
			return fmt.Errorf("http.trusted_proxies: %w", err)
		}
	}
	return nil
}
