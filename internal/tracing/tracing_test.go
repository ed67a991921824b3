package tracing

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInitWithoutEndpoint(t *testing.T) {
	shutdown, err := Init(context.Background(), Config{ServiceName: "roamchat"})
	require.NoError(t, err)
	assert.NoError(t, shutdown(context.Background()))
}

func TestInitWithEndpoint(t *testing.T) {
	shutdown, err := Init(context.Background(), Config{
		Endpoint:    "localhost:4318",
		ServiceName: "roamchat",
		Insecure:    true,
	})
	require.NoError(t, err)
	assert.NotNil(t, shutdown)
}

func TestSampleRatio(t *testing.T) {
	tcases := []struct {
		in   float64
		want float64
	}{
		{0, 1},
		{-0.5, 1},
		{1.5, 1},
		{0.25, 0.25},
		{1, 1},
	}

	for _, tc := range tcases {
		assert.Equal(t, tc.want, sampleRatio(tc.in), "sampleRatio(%v)", tc.in)
	}
}
