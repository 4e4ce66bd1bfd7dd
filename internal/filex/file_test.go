package filex

import (
	"os"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestWriteTemp_RoundTripAndCleanup(t *testing.T) {
	data := []byte("staged bytes")

	path, cleanup, err := WriteTemp("asset-*.jpg", data)
	require.NoError(t, err)

	got, err := os.ReadFile(path)
	require.NoError(t, err)
	require.Equal(t, data, got)

	cleanup()
	_, err = os.Stat(path)
	require.True(t, os.IsNotExist(err))

	// Cleanup must be safe to call twice.
	cleanup()
}
