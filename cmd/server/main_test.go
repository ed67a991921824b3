package main

import (
	"bytes"
	"context"
	"testing"

	"github.com/npezzotti/roamchat/internal/config"
	"github.com/npezzotti/roamchat/internal/fanout"
	"github.com/npezzotti/roamchat/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type nopSink struct{}

func (nopSink) Deliver(fanout.Event) {}

func TestRootCommand(t *testing.T) {
	cmd := newRootCommand()

	names := make([]string, 0, len(cmd.Commands()))
	for _, c := range cmd.Commands() {
		names = append(names, c.Name())
	}
	assert.Contains(t, names, "serve")
	assert.Contains(t, names, "migrate")
}

func TestMigrateCommandArgs(t *testing.T) {
	tcases := []struct {
		name string
		args []string
		err  string
	}{
		{
			name: "missing direction",
			args: []string{"migrate"},
			err:  "accepts 1 arg(s)",
		},
		{
			name: "unknown direction",
			args: []string{"migrate", "sideways"},
			err:  "invalid argument",
		},
		{
			name: "memory store",
			args: []string{"--dsn", "memory://", "migrate", "up"},
			err:  "PostgreSQL only",
		},
	}

	for _, tc := range tcases {
		t.Run(tc.name, func(t *testing.T) {
			cmd := newRootCommand()
			cmd.SetArgs(tc.args)
			cmd.SetOut(&bytes.Buffer{})
			cmd.SetErr(&bytes.Buffer{})

			err := cmd.Execute()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tc.err)
		})
	}
}

func TestServeOptionsConfig(t *testing.T) {
	t.Setenv(config.EnvPrefix+"ADDR", ":9090")
	t.Setenv(config.EnvPrefix+"ALLOWED_ORIGINS", "http://a.test,http://b.test")

	root := newRootCommand()
	serve, _, err := root.Find([]string{"serve"})
	require.NoError(t, err)
	require.NoError(t, serve.ParseFlags([]string{"--message-rate", "2"}))

	opts := &serveOptions{rootOptions: &rootOptions{dsn: "memory://", env: "test"}}
	opts.addr, _ = serve.Flags().GetString("addr")
	opts.signingKey, _ = serve.Flags().GetString("signing-key")
	opts.allowedOrigins, _ = serve.Flags().GetStringSlice("allowed-origins")
	opts.messageRate, _ = serve.Flags().GetFloat64("message-rate")
	opts.messageBurst, _ = serve.Flags().GetInt("message-burst")

	cfg, err := opts.config()
	require.NoError(t, err)
	assert.Equal(t, ":9090", cfg.ServerAddr)
	assert.Equal(t, []string{"http://a.test", "http://b.test"}, cfg.AllowedOrigins)
	assert.Equal(t, 2.0, cfg.MessageRate)
	assert.Equal(t, 10, cfg.MessageBurst)
	assert.Equal(t, "test", cfg.Env)
}

func TestNewPublisherDirect(t *testing.T) {
	cfg := &config.Config{}

	pub, closers, err := newPublisher(context.Background(), testutil.TestLogger(t), cfg, nopSink{})
	require.NoError(t, err)
	assert.Empty(t, closers)
	assert.IsType(t, &fanout.Direct{}, pub)

	cfg.Kafka = config.KafkaConfig{Brokers: []string{"localhost:9092"}, Topic: "chat-events"}
	pub, closers, err = newPublisher(context.Background(), testutil.TestLogger(t), cfg, nopSink{})
	require.NoError(t, err)
	require.Len(t, closers, 1)
	assert.IsType(t, fanout.Multi{}, pub)
	assert.NoError(t, closers[0].Close())
}
