package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNewConfig(t *testing.T) {
	var (
		addr = "localhost:8080"
		dsn  = "host=localhost user=postgres password=postgres dbname=postgres sslmode=disable"
		key  = "c29tZV9zZWNyZXQ="
		orig = []string{"http://localhost:3000"}
	)

	tcases := []struct {
		name string
		addr string
		dsn  string
		key  string
		orig []string
		opts []Option
		err  bool
	}{
		{
			name: "valid config",
			addr: addr,
			dsn:  dsn,
			key:  key,
			orig: orig,
		},
		{
			name: "valid config with every backend",
			addr: addr,
			dsn:  dsn,
			key:  key,
			orig: orig,
			opts: []Option{
				WithLogging("dev", "debug"),
				WithRedis(RedisConfig{Addr: "localhost:6379", Channel: "roamchat.events"}),
				WithTracing(TracingConfig{Endpoint: "localhost:4318", SampleRatio: 0.5}),
				WithKafka(KafkaConfig{Brokers: []string{"localhost:9092"}, Topic: "chat-events"}),
				WithObjectStore(ObjectStoreConfig{Endpoint: "localhost:9000", Bucket: "roamchat"}),
				WithMessageRate(5, 10),
			},
		},
		{
			name: "empty address",
			dsn:  dsn,
			key:  key,
			orig: orig,
			err:  true,
		},
		{
			name: "empty DSN",
			addr: addr,
			key:  key,
			orig: orig,
			err:  true,
		},
		{
			name: "empty signing key",
			addr: addr,
			dsn:  dsn,
			orig: orig,
			err:  true,
		},
		{
			name: "redis without channel",
			addr: addr,
			dsn:  dsn,
			key:  key,
			opts: []Option{WithRedis(RedisConfig{Addr: "localhost:6379"})},
			err:  true,
		},
		{
			name: "nats without subject",
			addr: addr,
			dsn:  dsn,
			key:  key,
			opts: []Option{WithNats(NatsConfig{URL: "nats://localhost:4222"})},
			err:  true,
		},
		{
			name: "redis and nats together",
			addr: addr,
			dsn:  dsn,
			key:  key,
			opts: []Option{
				WithRedis(RedisConfig{Addr: "localhost:6379", Channel: "roamchat.events"}),
				WithNats(NatsConfig{URL: "nats://localhost:4222", Subject: "roamchat.events"}),
			},
			err: true,
		},
		{
			name: "kafka without topic",
			addr: addr,
			dsn:  dsn,
			key:  key,
			opts: []Option{WithKafka(KafkaConfig{Brokers: []string{"localhost:9092"}})},
			err:  true,
		},
		{
			name: "object store without bucket",
			addr: addr,
			dsn:  dsn,
			key:  key,
			opts: []Option{WithObjectStore(ObjectStoreConfig{Endpoint: "localhost:9000"})},
			err:  true,
		},
		{
			name: "rate without burst",
			addr: addr,
			dsn:  dsn,
			key:  key,
			opts: []Option{WithMessageRate(5, 0)},
			err:  true,
		},
		{
			name: "negative rate",
			addr: addr,
			dsn:  dsn,
			key:  key,
			opts: []Option{WithMessageRate(-1, 1)},
			err:  true,
		},
	}

	for _, tc := range tcases {
		t.Run(tc.name, func(t *testing.T) {
			config, err := NewConfig(tc.addr, tc.dsn, tc.key, tc.orig, tc.opts...)
			if tc.err {
				assert.Error(t, err, "expected error for config: %s", tc.name)
				return
			}
			assert.NoError(t, err, "expected no error for config: %s", tc.name)

			assert.Equal(t, tc.addr, config.ServerAddr, "expected server address to match")
			assert.Equal(t, tc.dsn, config.DatabaseDSN, "expected database DSN to match")
			assert.Equal(t, tc.orig, config.AllowedOrigins, "expected allowed origins to match")
			assert.NotEmpty(t, config.SigningKey, "expected signing key to be decoded and not empty")
		})
	}
}

func Test_decodeSigningKey(t *testing.T) {
	tcases := []struct {
		name         string
		base64Secret string
		expectedKey  []byte
		expectError  bool
	}{
		{
			name:         "valid base64 secret",
			base64Secret: "c29tZV9zZWNyZXQ=",
			expectedKey:  []byte("some_secret"),
			expectError:  false,
		},
		{
			name:         "invalid base64 secret",
			base64Secret: "invalid_base64",
			expectedKey:  nil,
			expectError:  true,
		},
		{
			name:         "empty base64 secret",
			base64Secret: "",
			expectedKey:  nil,
			expectError:  true,
		},
	}

	for _, tc := range tcases {
		t.Run(tc.name, func(t *testing.T) {
			key, err := decodeSigningSecret(tc.base64Secret)
			if tc.expectError {
				assert.Error(t, err, "expected error for base64 secret: %s", tc.base64Secret)
			} else {
				assert.NoError(t, err, "expected no error for base64 secret: %s", tc.base64Secret)
				assert.Equal(t, tc.expectedKey, key, "expected decoded key to match for base64 secret: %s", tc.base64Secret)
			}
		})
	}
}

func TestEnvHelpers(t *testing.T) {
	t.Setenv(EnvPrefix+"ADDR", ":9000")
	t.Setenv(EnvPrefix+"SSL", "true")
	t.Setenv(EnvPrefix+"RATIO", "0.5")
	t.Setenv(EnvPrefix+"BURST", "12")
	t.Setenv(EnvPrefix+"BROKERS", "a:9092, b:9092,,")
	t.Setenv(EnvPrefix+"BAD_INT", "many")

	assert.Equal(t, ":9000", EnvOr("ADDR", ":8000"))
	assert.Equal(t, "fallback", EnvOr("MISSING", "fallback"))
	assert.True(t, EnvBool("SSL", false))
	assert.True(t, EnvBool("MISSING", true))
	assert.Equal(t, 0.5, EnvFloat("RATIO", 1))
	assert.Equal(t, 1.0, EnvFloat("MISSING", 1))
	assert.Equal(t, 12, EnvInt("BURST", 1))
	assert.Equal(t, 3, EnvInt("BAD_INT", 3))
	assert.Equal(t, []string{"a:9092", "b:9092"}, EnvList("BROKERS", nil))
	assert.Equal(t, []string{"x"}, EnvList("MISSING", []string{"x"}))
}
