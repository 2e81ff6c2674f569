package download

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nate11235813/SonifiedLLMKit/internal/catalog"
	kiterrors "github.com/nate11235813/SonifiedLLMKit/internal/errors"
)

func digestOf(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}

// modelServer serves payload and honors Range requests.
func modelServer(t *testing.T, payload []byte, requests *atomic.Int64) *httptest.Server {
	t.Helper()
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if requests != nil {
			requests.Add(1)
		}
		rangeHeader := r.Header.Get("Range")
		if rangeHeader == "" {
			w.WriteHeader(http.StatusOK)
			_, _ = w.Write(payload)
			return
		}
		offsetStr := strings.TrimSuffix(strings.TrimPrefix(rangeHeader, "bytes="), "-")
		offset, err := strconv.ParseInt(offsetStr, 10, 64)
		require.NoError(t, err)
		w.Header().Set("Content-Range", fmt.Sprintf("bytes %d-%d/%d", offset, len(payload)-1, len(payload)))
		w.WriteHeader(http.StatusPartialContent)
		_, _ = w.Write(payload[offset:])
	}))
	t.Cleanup(server.Close)
	return server
}

func TestManager_FetchDownloadsAndVerifies(t *testing.T) {
	payload := []byte("model weights go here")
	server := modelServer(t, payload, nil)

	dir := t.TempDir()
	mgr := NewManager(dir)
	model := catalog.Model{Name: "tiny", URL: server.URL, SHA256: digestOf(payload)}

	path, err := mgr.Fetch(context.Background(), model)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "tiny"), path)

	got, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, payload, got)

	// Nothing transient left behind.
	_, err = os.Stat(path + partSuffix)
	assert.True(t, os.IsNotExist(err))
}

func TestManager_FetchIsACacheHit(t *testing.T) {
	payload := []byte("cached payload")
	var requests atomic.Int64
	server := modelServer(t, payload, &requests)

	mgr := NewManager(t.TempDir())
	model := catalog.Model{Name: "tiny", URL: server.URL}

	_, err := mgr.Fetch(context.Background(), model)
	require.NoError(t, err)
	_, err = mgr.Fetch(context.Background(), model)
	require.NoError(t, err)

	assert.Equal(t, int64(1), requests.Load())
}

func TestManager_FetchResumesFromPartFile(t *testing.T) {
	payload := []byte("0123456789abcdef")
	server := modelServer(t, payload, nil)

	dir := t.TempDir()
	mgr := NewManager(dir)
	model := catalog.Model{Name: "tiny", URL: server.URL, SHA256: digestOf(payload)}

	// Simulate an interrupted transfer.
	require.NoError(t, os.WriteFile(filepath.Join(dir, "tiny"+partSuffix), payload[:7], 0o644))

	path, err := mgr.Fetch(context.Background(), model)
	require.NoError(t, err)

	got, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, payload, got)
}

func TestManager_ChecksumMismatchFails(t *testing.T) {
	server := modelServer(t, []byte("tampered bytes"), nil)

	dir := t.TempDir()
	mgr := NewManager(dir)
	model := catalog.Model{Name: "tiny", URL: server.URL, SHA256: digestOf([]byte("expected bytes"))}

	_, err := mgr.Fetch(context.Background(), model)
	require.Error(t, err)
	assert.True(t, errors.Is(err, kiterrors.ErrChecksum))

	// The poisoned part file must not survive to seed a resume.
	_, err = os.Stat(filepath.Join(dir, "tiny"+partSuffix))
	assert.True(t, os.IsNotExist(err))
	_, err = os.Stat(filepath.Join(dir, "tiny"))
	assert.True(t, os.IsNotExist(err))
}

func TestManager_ServerErrorFails(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "nope", http.StatusForbidden)
	}))
	t.Cleanup(server.Close)

	mgr := NewManager(t.TempDir())
	_, err := mgr.Fetch(context.Background(), catalog.Model{Name: "tiny", URL: server.URL})
	require.Error(t, err)
}
