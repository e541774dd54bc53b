package logger

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLevelFromString(t *testing.T) {
	t.Parallel()

	tests := []struct {
		input string
		want  Level
	}{
		{"debug", DebugLevel},
		{"DEBUG", DebugLevel},
		{"info", InfoLevel},
		{"error", ErrorLevel},
		{"", InfoLevel},
		{"unknown", InfoLevel},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			assert.Equal(t, tt.want, LevelFromString(tt.input))
		})
	}
}

func TestNew(t *testing.T) {
	t.Parallel()

	for _, level := range []Level{DebugLevel, InfoLevel, ErrorLevel} {
		l, err := New(level, true)
		require.NoError(t, err)
		assert.NotNil(t, l)

		l, err = New(level, false)
		require.NoError(t, err)
		assert.NotNil(t, l)
	}
}

func TestWithFieldReturnsNewLogger(t *testing.T) {
	t.Parallel()

	base := NewTestLogger()
	derived := base.WithField("run_id", "run-1")

	assert.NotSame(t, base, derived)

	derived = base.WithFields(map[string]interface{}{"a": 1, "b": 2})
	assert.NotSame(t, base, derived)
}

func TestGlobalLogger(t *testing.T) {
	original := GetLogger()
	defer SetLogger(original)

	replacement := NewNop()
	SetLogger(replacement)
	assert.Same(t, replacement, GetLogger())
}

func TestNewFromEnv(t *testing.T) {
	t.Setenv("SCRIBE_LOG_LEVEL", "debug")
	t.Setenv("SCRIBE_LOG_FORMAT", "json")

	l, err := NewFromEnv()
	require.NoError(t, err)
	assert.NotNil(t, l)
}
