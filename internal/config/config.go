package config

import (
	"encoding/base64"
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
)

const EnvPrefix = "ROAMCHAT_"

type Config struct {
	DatabaseDSN    string
	ServerAddr     string
	SigningKey     []byte
	AllowedOrigins []string

	Env      string
	LogLevel string

	Redis       RedisConfig
	Nats        NatsConfig
	Kafka       KafkaConfig
	ObjectStore ObjectStoreConfig
	Tracing     TracingConfig

	// MessageRate is the sustained number of messages a user may send per
	// second; zero disables the limit.
	MessageRate  float64
	MessageBurst int
}

type RedisConfig struct {
	Addr     string
	Password string
	Channel  string
}

type NatsConfig struct {
	URL     string
	Subject string
}

type KafkaConfig struct {
	Brokers []string
	Topic   string
}

type ObjectStoreConfig struct {
	Endpoint  string
	AccessKey string
	SecretKey string
	Bucket    string
	Region    string
	UseSSL    bool
}

type TracingConfig struct {
	Endpoint    string
	SampleRatio float64
	Insecure    bool
}

type Option func(*Config)

func WithLogging(env, level string) Option {
	return func(c *Config) {
		c.Env = env
		c.LogLevel = level
	}
}

func WithRedis(r RedisConfig) Option {
	return func(c *Config) { c.Redis = r }
}

func WithNats(n NatsConfig) Option {
	return func(c *Config) { c.Nats = n }
}

func WithKafka(k KafkaConfig) Option {
	return func(c *Config) { c.Kafka = k }
}

func WithObjectStore(o ObjectStoreConfig) Option {
	return func(c *Config) { c.ObjectStore = o }
}

func WithTracing(t TracingConfig) Option {
	return func(c *Config) { c.Tracing = t }
}

func WithMessageRate(perSecond float64, burst int) Option {
	return func(c *Config) {
		c.MessageRate = perSecond
		c.MessageBurst = burst
	}
}

func decodeSigningSecret(base64Secret string) ([]byte, error) {
	key, err := base64.StdEncoding.DecodeString(base64Secret)
	if err != nil {
		return nil, err
	}
	if len(key) == 0 {
		return nil, errors.New("empty signing secret")
	}

	return key, nil
}

func NewConfig(serverAddr, databaseDSN, base64Secret string, allowedOrigins []string, opts ...Option) (*Config, error) {
	if serverAddr == "" {
		return nil, fmt.Errorf("server address cannot be empty")
	}
	if databaseDSN == "" {
		return nil, fmt.Errorf("database DSN cannot be empty")
	}
	if base64Secret == "" {
		return nil, fmt.Errorf("signing secret cannot be empty")
	}

	signingKey, err := decodeSigningSecret(base64Secret)
	if err != nil {
		return nil, fmt.Errorf("decode signing secret: %w", err)
	}

	cfg := &Config{
		DatabaseDSN:    databaseDSN,
		ServerAddr:     serverAddr,
		SigningKey:     signingKey,
		AllowedOrigins: allowedOrigins,
	}
	for _, opt := range opts {
		opt(cfg)
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

func (c *Config) validate() error {
	if c.Redis.Addr != "" && c.Redis.Channel == "" {
		return fmt.Errorf("redis channel cannot be empty")
	}
	if c.Nats.URL != "" && c.Nats.Subject == "" {
		return fmt.Errorf("nats subject cannot be empty")
	}
	if c.Redis.Addr != "" && c.Nats.URL != "" {
		return fmt.Errorf("configure either a redis or a nats relay, not both")
	}
	if len(c.Kafka.Brokers) > 0 && c.Kafka.Topic == "" {
		return fmt.Errorf("kafka topic cannot be empty")
	}
	if c.ObjectStore.Endpoint != "" && c.ObjectStore.Bucket == "" {
		return fmt.Errorf("object store bucket cannot be empty")
	}
	if c.MessageRate < 0 || c.MessageBurst < 0 {
		return fmt.Errorf("message rate and burst cannot be negative")
	}
	if c.MessageRate > 0 && c.MessageBurst == 0 {
		return fmt.Errorf("message burst must be positive when a rate is set")
	}

	return nil
}

// EnvOr returns the value of ROAMCHAT_<name>, or def when it is unset.
func EnvOr(name, def string) string {
	if v, ok := os.LookupEnv(EnvPrefix + name); ok {
		return v
	}

	return def
}

func EnvBool(name string, def bool) bool {
	b, err := strconv.ParseBool(EnvOr(name, strconv.FormatBool(def)))
	if err != nil {
		return def
	}

	return b
}

func EnvFloat(name string, def float64) float64 {
	f, err := strconv.ParseFloat(EnvOr(name, ""), 64)
	if err != nil {
		return def
	}

	return f
}

func EnvInt(name string, def int) int {
	n, err := strconv.Atoi(EnvOr(name, ""))
	if err != nil {
		return def
	}

	return n
}

func EnvList(name string, def []string) []string {
	v := EnvOr(name, "")
	if v == "" {
		return def
	}

	var items []string
	for _, item := range strings.Split(v, ",") {
		if item = strings.TrimSpace(item); item != "" {
			items = append(items, item)
		}
	}

	return items
}
