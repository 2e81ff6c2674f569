package download

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// EvictUntilUnder deletes least-recently-used completed model files until
// the cache directory fits limitBytes, returning the number of bytes
// freed. Part files and lock files are never evicted: an in-progress
// download must keep its resume state.
func EvictUntilUnder(dir string, limitBytes int64) (int64, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return 0, nil
		}
		return 0, fmt.Errorf("read cache dir: %w", err)
	}

	type cached struct {
		path string
		size int64
		used int64
	}

	var files []cached
	var total int64
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		name := entry.Name()
		if strings.HasSuffix(name, partSuffix) || strings.HasSuffix(name, lockSuffix) {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			continue
		}
		files = append(files, cached{
			path: filepath.Join(dir, name),
			size: info.Size(),
			used: info.ModTime().UnixNano(),
		})
		total += info.Size()
	}

	sort.Slice(files, func(i, j int) bool { return files[i].used < files[j].used })

	var freed int64
	for _, f := range files {
		if total <= limitBytes {
			break
		}
		if err := os.Remove(f.path); err != nil {
			return freed, fmt.Errorf("evict %q: %w", f.path, err)
		}
		slog.Info("Evicted cached model", "path", f.path, "size", f.size)
		total -= f.size
		freed += f.size
	}
	return freed, nil
}
