package download

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/gofrs/flock"
	"github.com/natefinch/atomic"

	"github.com/nate11235813/SonifiedLLMKit/internal/catalog"
	kiterrors "github.com/nate11235813/SonifiedLLMKit/internal/errors"
)

const (
	partSuffix = ".part"
	lockSuffix = ".lock"
)

// Manager fetches model files into a local cache directory. Downloads are
// resumable: an interrupted transfer leaves a part file that the next
// attempt continues with a Range request. Completed files are promoted
// into place atomically, so a model file either exists whole or not at
// all. A lock file serializes downloads of the same model across
// processes.
type Manager struct {
	dir    string
	client *http.Client
}

func NewManager(dir string) *Manager {
	return &Manager{
		dir:    dir,
		client: &http.Client{Timeout: 0},
	}
}

// Path returns where a model lives (or would live) in the cache.
func (m *Manager) Path(model catalog.Model) string {
	return filepath.Join(m.dir, model.Name)
}

// Fetch ensures the model file is present and verified, downloading or
// resuming as needed, and returns its path. A cache hit refreshes the
// file's modification time so eviction sees it as recently used.
func (m *Manager) Fetch(ctx context.Context, model catalog.Model) (string, error) {
	if err := os.MkdirAll(m.dir, 0o755); err != nil {
		return "", fmt.Errorf("create cache dir: %w", err)
	}
	dest := m.Path(model)

	if _, err := os.Stat(dest); err == nil {
		now := time.Now()
		_ = os.Chtimes(dest, now, now)
		return dest, nil
	}

	lock := flock.New(dest + lockSuffix)
	locked, err := lock.TryLockContext(ctx, 250*time.Millisecond)
	if err != nil {
		return "", fmt.Errorf("acquire download lock: %w", err)
	}
	if !locked {
		return "", fmt.Errorf("download lock for %q unavailable", model.Name)
	}
	defer func() {
		_ = lock.Unlock()
		_ = os.Remove(dest + lockSuffix)
	}()

	// Another process may have finished while we waited on the lock.
	if _, err := os.Stat(dest); err == nil {
		return dest, nil
	}

	if err := m.download(ctx, model, dest); err != nil {
		return "", err
	}
	return dest, nil
}

func (m *Manager) download(ctx context.Context, model catalog.Model, dest string) error {
	part := dest + partSuffix

	var offset int64
	if info, err := os.Stat(part); err == nil {
		offset = info.Size()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, model.URL, nil)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	if offset > 0 {
		req.Header.Set("Range", fmt.Sprintf("bytes=%d-", offset))
	}

	resp, err := m.client.Do(req)
	if err != nil {
		return fmt.Errorf("fetch %q: %w", model.Name, err)
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK:
		// Server ignored the range; start over.
		offset = 0
	case http.StatusPartialContent:
		slog.Info("Resuming download", "model", model.Name, "offset", offset)
	default:
		return fmt.Errorf("fetch %q: unexpected status %s", model.Name, resp.Status)
	}

	flags := os.O_CREATE | os.O_WRONLY
	if offset > 0 {
		flags |= os.O_APPEND
	} else {
		flags |= os.O_TRUNC
	}
	out, err := os.OpenFile(part, flags, 0o644)
	if err != nil {
		return fmt.Errorf("open part file: %w", err)
	}

	if _, err := io.Copy(out, resp.Body); err != nil {
		out.Close()
		// Keep the part file; the next attempt resumes from it.
		return fmt.Errorf("download %q: %w", model.Name, err)
	}
	if err := out.Close(); err != nil {
		return fmt.Errorf("close part file: %w", err)
	}

	if model.SHA256 != "" {
		sum, err := fileSHA256(part)
		if err != nil {
			return err
		}
		if !strings.EqualFold(sum, model.SHA256) {
			_ = os.Remove(part)
			return fmt.Errorf("model %q digest %s != %s: %w", model.Name, sum, model.SHA256, kiterrors.ErrChecksum)
		}
	}

	if err := atomic.ReplaceFile(part, dest); err != nil {
		return fmt.Errorf("promote %q: %w", model.Name, err)
	}
	slog.Info("Model downloaded", "model", model.Name, "path", dest)
	return nil
}

func fileSHA256(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", fmt.Errorf("open for digest: %w", err)
	}
	defer f.Close()

	h := sha256.New()
	if _, err := io.Copy(h, f); err != nil {
		return "", fmt.Errorf("digest: %w", err)
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}
