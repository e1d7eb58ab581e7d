package executor

import (
	"context"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestShell_Success(t *testing.T) {
	sh := NewShell(5*time.Second, zerolog.Nop())

	res, err := sh.Run(context.Background(), "echo hello; echo oops >&2")
	require.NoError(t, err)
	assert.Equal(t, 0, res.ExitCode)
	assert.False(t, res.Failed())
	assert.Equal(t, "hello\n", res.Stdout)
	assert.Equal(t, "oops\n", res.Stderr)
}

func TestShell_NonZeroExitIsNotAnError(t *testing.T) {
	sh := NewShell(5*time.Second, zerolog.Nop())

	res, err := sh.Run(context.Background(), "exit 3")
	require.NoError(t, err)
	assert.Equal(t, 3, res.ExitCode)
	assert.True(t, res.Failed())
}

func TestShell_Timeout(t *testing.T) {
	sh := NewShell(100*time.Millisecond, zerolog.Nop())

	res, err := sh.Run(context.Background(), "sleep 5")
	assert.ErrorIs(t, err, ErrTimeout)
	assert.True(t, res.Failed())
	assert.Less(t, res.Duration, 5*time.Second)
}
