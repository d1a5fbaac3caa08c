package logger

import (
	"bytes"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewJSON(t *testing.T) {
	t.Cleanup(func() { zerolog.SetGlobalLevel(zerolog.TraceLevel) })

	var buf bytes.Buffer
	l, err := newWithWriter(&buf, "WARN", "json")
	require.NoError(t, err)

	l.Info().Msg("dropped")
	l.Warn().Str("provider", "groq").Msg("kept")

	assert.NotContains(t, buf.String(), "dropped")
	assert.Contains(t, buf.String(), `"provider":"groq"`)
}

func TestNewRejectsBadInput(t *testing.T) {
	t.Cleanup(func() { zerolog.SetGlobalLevel(zerolog.TraceLevel) })

	_, err := newWithWriter(&bytes.Buffer{}, "loud", "json")
	assert.Error(t, err)

	_, err = newWithWriter(&bytes.Buffer{}, "info", "xml")
	assert.Error(t, err)
}
