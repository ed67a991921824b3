package testutil

import (
	"testing"

	"github.com/rs/zerolog"
)

// TestLogger writes log output through t so it is shown only for failing or
// verbose tests.
func TestLogger(t *testing.T) zerolog.Logger {
	return zerolog.New(zerolog.NewTestWriter(t)).With().Timestamp().Logger()
}
