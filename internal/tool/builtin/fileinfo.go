package builtin

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/nate11235813/SonifiedLLMKit/internal/pathutil"
	toolcore "github.com/nate11235813/SonifiedLLMKit/internal/tool"
)

func init() {
	toolcore.RegisterBuiltin("fileinfo", func(options toolcore.BuiltinOptions) (toolcore.Tool, error) {
		root := strings.TrimSpace(options.FileRoot)
		if root == "" {
			root = "."
		}
		abs, err := filepath.Abs(root)
		if err != nil {
			return nil, fmt.Errorf("resolve file root: %w", err)
		}
		return &FileInfoTool{root: abs}, nil
	})
}

// FileInfoTool reports metadata for a file under a fixed root directory.
// Paths that resolve outside the root, including through symlinks, come
// back as error-shaped results.
type FileInfoTool struct {
	root string
}

func (t *FileInfoTool) Name() string {
	return "fileinfo"
}

func (t *FileInfoTool) Description() string {
	return "Inspect size, type and modification time of a file under the configured root."
}

func (t *FileInfoTool) Schema() map[string]interface{} {
	return map[string]interface{}{
		"type": "object",
		"properties": map[string]interface{}{
			"path": map[string]interface{}{
				"type":        "string",
				"description": "Path relative to the tool root",
			},
		},
		"required":             []string{"path"},
		"additionalProperties": false,
	}
}

func (t *FileInfoTool) Invoke(args map[string]interface{}) (*toolcore.Result, error) {
	rel, _ := args["path"].(string)
	rel = strings.TrimSpace(rel)
	if rel == "" {
		return nil, fmt.Errorf("empty path")
	}

	candidate := rel
	if !filepath.IsAbs(candidate) {
		candidate = filepath.Join(t.root, candidate)
	}
	candidate = filepath.Clean(candidate)

	inside, err := pathutil.Within(t.root, candidate)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return toolcore.ErrorResult(t.Name(), "error: file not found", "not_found", rel), nil
		}
		return toolcore.ErrorResult(t.Name(), "error: path not resolvable", "bad_path", err.Error()), nil
	}
	if !inside {
		return toolcore.ErrorResult(t.Name(), "error: path escapes tool root", "path_escape", rel), nil
	}

	info, err := os.Stat(candidate)
	if err != nil {
		if os.IsNotExist(err) {
			return toolcore.ErrorResult(t.Name(), "error: file not found", "not_found", rel), nil
		}
		return toolcore.ErrorResult(t.Name(), "error: stat failed", "stat_failed", err.Error()), nil
	}

	kind := "file"
	if info.IsDir() {
		kind = "directory"
	}
	content := fmt.Sprintf("%s: %s, %d bytes, modified %s",
		rel, kind, info.Size(), info.ModTime().UTC().Format(time.RFC3339))

	return toolcore.NewResult(t.Name(), content, map[string]interface{}{
		"size":     info.Size(),
		"is_dir":   info.IsDir(),
		"mode":     info.Mode().String(),
		"modified": info.ModTime().UTC().Format(time.RFC3339),
	}), nil
}
