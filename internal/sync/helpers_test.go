package sync

import (
	"bytes"
	"image"
	"image/color"
	"image/jpeg"
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/nadavital/cauldron/internal/assets"
	"github.com/nadavital/cauldron/internal/cloudstore"
	"github.com/nadavital/cauldron/internal/logging"
)

func testLogger() logging.Logger {
	return logging.NewSlogLogger(slog.New(slog.NewJSONHandler(io.Discard, nil)))
}

type testEnv struct {
	container *cloudstore.MemoryContainer
	assets    *assets.MemoryStore
	mgr       *Manager
}

func newTestEnv(t *testing.T, backendID string) *testEnv {
	t.Helper()
	container := cloudstore.NewMemoryContainer(backendID)
	store := assets.NewMemoryStore()
	return &testEnv{
		container: container,
		assets:    store,
		mgr:       NewManager(container, testLogger()),
	}
}

func (e *testEnv) privateDB(t *testing.T) *cloudstore.MemoryDatabase {
	t.Helper()
	db, err := e.container.PrivateDatabase()
	require.NoError(t, err)
	return db.(*cloudstore.MemoryDatabase)
}

func (e *testEnv) publicDB(t *testing.T) *cloudstore.MemoryDatabase {
	t.Helper()
	db, err := e.container.PublicDatabase()
	require.NoError(t, err)
	return db.(*cloudstore.MemoryDatabase)
}

// testJPEG renders a solid-color JPEG of the given dimensions.
func testJPEG(t *testing.T, w, h int) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, color.RGBA{R: uint8(x % 256), G: uint8(y % 256), B: 100, A: 255})
		}
	}
	var buf bytes.Buffer
	require.NoError(t, jpeg.Encode(&buf, img, nil))
	return buf.Bytes()
}
