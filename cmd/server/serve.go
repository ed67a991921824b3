package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/npezzotti/roamchat/internal/api"
	"github.com/npezzotti/roamchat/internal/chat"
	"github.com/npezzotti/roamchat/internal/config"
	"github.com/npezzotti/roamchat/internal/database"
	"github.com/npezzotti/roamchat/internal/fanout"
	"github.com/npezzotti/roamchat/internal/filestore"
	"github.com/npezzotti/roamchat/internal/logger"
	"github.com/npezzotti/roamchat/internal/server"
	"github.com/npezzotti/roamchat/internal/stats"
	"github.com/npezzotti/roamchat/internal/tracing"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
)

const shutdownTimeout = 10 * time.Second

type serveOptions struct {
	*rootOptions
	addr           string
	signingKey     string
	allowedOrigins []string
	migrate        bool

	redis       config.RedisConfig
	nats        config.NatsConfig
	kafka       config.KafkaConfig
	objectStore config.ObjectStoreConfig
	tracing     config.TracingConfig

	messageRate  float64
	messageBurst int
}

func newServeCommand(rootOpts *rootOptions) *cobra.Command {
	opts := &serveOptions{rootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP and websocket server",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd.Context(), opts)
		},
	}

	f := cmd.Flags()
	f.StringVar(&opts.addr, "addr", config.EnvOr("ADDR", "localhost:8000"), "server address")
	f.StringVar(&opts.signingKey, "signing-key", config.EnvOr("SIGNING_KEY", defaultSigningKey), "base64 encoded signing key")
	f.StringSliceVar(&opts.allowedOrigins, "allowed-origins", config.EnvList("ALLOWED_ORIGINS", nil), "comma-separated list of allowed origins for CORS")
	f.BoolVar(&opts.migrate, "migrate", config.EnvBool("MIGRATE", false), "apply schema migrations before serving")

	f.StringVar(&opts.redis.Addr, "redis-addr", config.EnvOr("REDIS_ADDR", ""), "redis address for cross-instance fan-out")
	f.StringVar(&opts.redis.Password, "redis-password", config.EnvOr("REDIS_PASSWORD", ""), "redis password")
	f.StringVar(&opts.redis.Channel, "redis-channel", config.EnvOr("REDIS_CHANNEL", "roamchat.events"), "redis pub/sub channel")
	f.StringVar(&opts.nats.URL, "nats-url", config.EnvOr("NATS_URL", ""), "nats url for cross-instance fan-out")
	f.StringVar(&opts.nats.Subject, "nats-subject", config.EnvOr("NATS_SUBJECT", "roamchat.events"), "nats subject")
	f.StringSliceVar(&opts.kafka.Brokers, "kafka-brokers", config.EnvList("KAFKA_BROKERS", nil), "kafka brokers receiving a copy of every chat event")
	f.StringVar(&opts.kafka.Topic, "kafka-topic", config.EnvOr("KAFKA_TOPIC", "roamchat.events"), "kafka topic")

	f.StringVar(&opts.objectStore.Endpoint, "s3-endpoint", config.EnvOr("S3_ENDPOINT", ""), "S3 compatible endpoint for attachments")
	f.StringVar(&opts.objectStore.AccessKey, "s3-access-key", config.EnvOr("S3_ACCESS_KEY", ""), "S3 access key")
	f.StringVar(&opts.objectStore.SecretKey, "s3-secret-key", config.EnvOr("S3_SECRET_KEY", ""), "S3 secret key")
	f.StringVar(&opts.objectStore.Bucket, "s3-bucket", config.EnvOr("S3_BUCKET", "roamchat"), "S3 bucket")
	f.StringVar(&opts.objectStore.Region, "s3-region", config.EnvOr("S3_REGION", ""), "S3 region")
	f.BoolVar(&opts.objectStore.UseSSL, "s3-ssl", config.EnvBool("S3_SSL", false), "use TLS for the S3 endpoint")

	f.StringVar(&opts.tracing.Endpoint, "otlp-endpoint", config.EnvOr("OTLP_ENDPOINT", ""), "OTLP/HTTP trace collector endpoint")
	f.BoolVar(&opts.tracing.Insecure, "otlp-insecure", config.EnvBool("OTLP_INSECURE", true), "send traces without TLS")
	f.Float64Var(&opts.tracing.SampleRatio, "trace-ratio", config.EnvFloat("TRACE_RATIO", 1), "fraction of root spans sampled")

	f.Float64Var(&opts.messageRate, "message-rate", config.EnvFloat("MESSAGE_RATE", 5), "messages per second a user may send, 0 disables the limit")
	f.IntVar(&opts.messageBurst, "message-burst", config.EnvInt("MESSAGE_BURST", 10), "message burst size")

	return cmd
}

func (o *serveOptions) config() (*config.Config, error) {
	return config.NewConfig(o.addr, o.dsn, o.signingKey, o.allowedOrigins,
		config.WithLogging(o.env, o.logLevel),
		config.WithRedis(o.redis),
		config.WithNats(o.nats),
		config.WithKafka(o.kafka),
		config.WithObjectStore(o.objectStore),
		config.WithTracing(o.tracing),
		config.WithMessageRate(o.messageRate, o.messageBurst),
	)
}

func runServe(ctx context.Context, opts *serveOptions) error {
	if ctx == nil {
		ctx = context.Background()
	}

	cfg, err := opts.config()
	if err != nil {
		return fmt.Errorf("config: %w", err)
	}

	log, err := logger.New(cfg.Env, cfg.LogLevel, os.Stderr)
	if err != nil {
		return err
	}

	shutdownTracing, err := tracing.Init(ctx, tracing.Config{
		Endpoint:    cfg.Tracing.Endpoint,
		ServiceName: "roamchat",
		Environment: cfg.Env,
		SampleRatio: cfg.Tracing.SampleRatio,
		Insecure:    cfg.Tracing.Insecure,
	})
	if err != nil {
		return fmt.Errorf("tracing: %w", err)
	}
	defer func() {
		if err := shutdownTracing(context.Background()); err != nil {
			log.Error().Err(err).Msg("tracing shutdown")
		}
	}()

	if opts.migrate && !strings.HasPrefix(cfg.DatabaseDSN, database.MemoryDSN) {
		if err := database.Migrate(cfg.DatabaseDSN, database.MigrateUp); err != nil {
			return err
		}
		log.Info().Msg("migrations applied")
	}

	db, closeDb, err := database.Open(cfg.DatabaseDSN)
	if err != nil {
		return fmt.Errorf("db open: %w", err)
	}
	defer func() {
		if err := closeDb(); err != nil {
			log.Error().Err(err).Msg("db close")
		}
	}()

	var files chat.FileStore
	if cfg.ObjectStore.Endpoint != "" {
		store, err := filestore.NewMinioStore(filestore.Config{
			Endpoint:  cfg.ObjectStore.Endpoint,
			AccessKey: cfg.ObjectStore.AccessKey,
			SecretKey: cfg.ObjectStore.SecretKey,
			UseSSL:    cfg.ObjectStore.UseSSL,
			Bucket:    cfg.ObjectStore.Bucket,
			Region:    cfg.ObjectStore.Region,
		})
		if err != nil {
			return fmt.Errorf("file store: %w", err)
		}
		if err := store.EnsureBucket(ctx); err != nil {
			return fmt.Errorf("file store: %w", err)
		}
		files = store
	}

	mux := http.NewServeMux()

	statsUpdater := stats.NewStatsUpdater(mux)
	statsUpdater.Run()
	defer statsUpdater.Stop()

	chatServer, err := server.NewChatServer(log, chat.NewMembers(db), statsUpdater)
	if err != nil {
		return fmt.Errorf("new chat server: %w", err)
	}

	relayCtx, cancelRelays := context.WithCancel(ctx)
	defer cancelRelays()

	pub, closers, err := newPublisher(relayCtx, log, cfg, chatServer)
	if err != nil {
		return err
	}
	defer func() {
		for _, c := range closers {
			if err := c.Close(); err != nil {
				log.Error().Err(err).Msg("close publisher")
			}
		}
	}()

	svc := chat.NewService(log, db, files, pub, statsUpdater)
	srv := api.NewChatApp(mux, log, chatServer, db, svc, statsUpdater, cfg)

	go chatServer.Run()

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Start()
	}()

	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigs:
		log.Info().Str("signal", sig.String()).Msg("received signal")
	case err := <-errCh:
		if err != nil {
			log.Error().Err(err).Msg("server")
		}
	}

	shutDownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutDownCtx); err != nil {
		return fmt.Errorf("HTTP server shutdown: %w", err)
	}

	cancelRelays()

	log.Info().Msg("shutting down chat server")
	if err := chatServer.Shutdown(shutDownCtx); err != nil {
		return fmt.Errorf("chat server shutdown: %w", err)
	}

	log.Info().Msg("shutdown complete")
	return nil
}

type relay interface {
	fanout.Publisher
	io.Closer
	Run(ctx context.Context) error
}

// newPublisher builds the event publisher: a cross-instance relay when Redis
// or NATS is configured, direct delivery to the local hub otherwise, plus an
// optional Kafka copy of every event.
func newPublisher(ctx context.Context, log zerolog.Logger, cfg *config.Config, sink fanout.Sink) (fanout.Publisher, []io.Closer, error) {
	var (
		pub     fanout.Publisher
		closers []io.Closer
		r       relay
		err     error
	)

	switch {
	case cfg.Redis.Addr != "":
		r, err = fanout.NewRedisBridge(log, cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.Channel, sink)
	case cfg.Nats.URL != "":
		r, err = fanout.NewNatsBridge(log, cfg.Nats.URL, cfg.Nats.Subject, sink)
	}
	if err != nil {
		return nil, nil, fmt.Errorf("fan-out relay: %w", err)
	}

	if r != nil {
		go func() {
			if err := r.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
				log.Error().Err(err).Msg("fan-out relay stopped")
			}
		}()
		pub = r
		closers = append(closers, r)
	} else {
		pub = fanout.NewDirect(sink)
	}

	if len(cfg.Kafka.Brokers) > 0 {
		k := fanout.NewKafkaSink(cfg.Kafka.Brokers, cfg.Kafka.Topic)
		pub = fanout.Multi{pub, k}
		closers = append(closers, k)
	}

	return pub, closers, nil
}
