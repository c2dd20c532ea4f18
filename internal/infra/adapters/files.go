// Package adapters holds the in-tree implementations of the retrieval
// capability contract. External backends (lab LIS, PACS) implement the
// same interface out of tree.
package adapters

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"credbroker/internal/domain"
)

// FilesAdapter serves secrets from files under a fixed root directory.
// Every retrieval resolves symlinks and ".." segments before comparing
// against the root; anything escaping it fails with ErrPathDenied.
type FilesAdapter struct {
	root   string
	logger *slog.Logger
}

func NewFilesAdapter(logger *slog.Logger) *FilesAdapter {
	if logger == nil {
		logger = slog.Default()
	}
	return &FilesAdapter{logger: logger}
}

// Connect fixes the root directory. Credentials are unused; a files
// backend authenticates by filesystem permissions.
func (a *FilesAdapter) Connect(_ context.Context, target string, _ domain.AdapterCredentials) error {
	info, err := os.Stat(target)
	if err != nil {
		return fmt.Errorf("%w: root %q: %v", domain.ErrConnection, target, err)
	}
	if !info.IsDir() {
		return fmt.Errorf("%w: root %q is not a directory", domain.ErrConnection, target)
	}
	resolved, err := filepath.EvalSymlinks(target)
	if err != nil {
		return fmt.Errorf("%w: resolving root %q: %v", domain.ErrConnection, target, err)
	}
	a.root = resolved
	return nil
}

func (a *FilesAdapter) Retrieve(_ context.Context, path string) ([]byte, error) {
	if a.root == "" {
		return nil, fmt.Errorf("%w: files adapter not connected", domain.ErrConnection)
	}
	if filepath.IsAbs(path) {
		a.logger.Warn("rejected absolute adapter path", "path", path)
		return nil, fmt.Errorf("%w: absolute path %q", domain.ErrPathDenied, path)
	}

	joined := filepath.Join(a.root, filepath.Clean(path))
	rel, err := filepath.Rel(a.root, joined)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		a.logger.Warn("rejected traversal attempt", "path", path)
		return nil, fmt.Errorf("%w: path %q escapes adapter root", domain.ErrPathDenied, path)
	}

	// The lexical check above cannot see symlinks; resolve the real
	// location and compare again.
	resolved, err := filepath.EvalSymlinks(joined)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: %s", domain.ErrSecretNotFound, path)
		}
		return nil, fmt.Errorf("%w: resolving %q: %v", domain.ErrRetrieval, path, err)
	}
	if resolved != a.root && !strings.HasPrefix(resolved, a.root+string(filepath.Separator)) {
		a.logger.Warn("rejected symlink escape", "path", path, "resolved", resolved)
		return nil, fmt.Errorf("%w: path %q escapes adapter root", domain.ErrPathDenied, path)
	}

	data, err := os.ReadFile(resolved)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: %s", domain.ErrSecretNotFound, path)
		}
		return nil, fmt.Errorf("%w: reading %q: %v", domain.ErrRetrieval, path, err)
	}
	return data, nil
}

func (a *FilesAdapter) CreateEphemeralAccount(context.Context, time.Duration, string) (domain.AdapterCredentials, error) {
	return domain.AdapterCredentials{}, fmt.Errorf("%w: files adapter has no accounts", domain.ErrNotImplemented)
}

func (a *FilesAdapter) Cleanup() error {
	a.root = ""
	return nil
}
