// Package scratch owns the temporary expansion area for one
// artifact-processing cycle: a uniquely named work directory, the disk-image
// mount point inside it, and the guarantee that everything is torn down
// (mounts first) no matter how processing ended.
package scratch

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"

	"github.com/gofrs/flock"
	"github.com/google/uuid"

	"packmule/internal/artifact"
	"packmule/internal/command"
	"packmule/internal/logging"
)

// Workspace is the scratch area for a single artifact. It is exclusively
// owned by the in-flight processing cycle; a file lock on the base directory
// prevents two runs from sharing one.
type Workspace struct {
	root   string
	lock   *flock.Flock
	run    command.Runner
	logger *slog.Logger

	mu       sync.Mutex
	mounted  bool
	released bool
}

// Acquire claims the scratch base directory and creates a unique work
// directory under it. It fails when another packmule run holds the lock.
func Acquire(baseDir string, run command.Runner, logger *slog.Logger) (*Workspace, error) {
	if baseDir == "" {
		baseDir = filepath.Join(os.TempDir(), "packmule")
	}
	if logger == nil {
		logger = logging.NewNop()
	}
	if err := os.MkdirAll(baseDir, 0o755); err != nil {
		return nil, fmt.Errorf("create scratch base %q: %w", baseDir, err)
	}

	lock := flock.New(filepath.Join(baseDir, "packmule.lock"))
	locked, err := lock.TryLock()
	if err != nil {
		return nil, fmt.Errorf("lock scratch base %q: %w", baseDir, err)
	}
	if !locked {
		return nil, fmt.Errorf("scratch base %q is in use by another packmule run", baseDir)
	}

	root := filepath.Join(baseDir, "work-"+uuid.NewString())
	if err := os.MkdirAll(root, 0o755); err != nil {
		_ = lock.Unlock()
		return nil, fmt.Errorf("create work directory %q: %w", root, err)
	}

	return &Workspace{root: root, lock: lock, run: run, logger: logger}, nil
}

// Root returns the work directory for this cycle.
func (w *Workspace) Root() string {
	return w.root
}

// MountPoint returns the path disk images are attached at. The directory is
// created by hdiutil on attach.
func (w *Workspace) MountPoint() string {
	return filepath.Join(w.root, "volume")
}

// PackageDir returns the destination for flat-package expansion. The path
// must not exist before expansion; pkgutil creates it.
func (w *Workspace) PackageDir() string {
	return filepath.Join(w.root, "expanded")
}

// RegisterMount records that a disk image was attached at MountPoint so
// Release knows to detach it.
func (w *Workspace) RegisterMount() {
	w.mu.Lock()
	w.mounted = true
	w.mu.Unlock()
}

// Release tears the workspace down: detach any registered mount, then
// remove the work directory. It is idempotent. If removal fails it forces
// an unmount and retries exactly once before reporting CleanupFailure,
// which callers treat as non-fatal.
func (w *Workspace) Release(ctx context.Context) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.released {
		return nil
	}
	w.released = true
	defer func() {
		if err := w.lock.Unlock(); err != nil {
			w.logger.Warn("failed to release scratch lock", "error", err)
		}
	}()

	if w.mounted {
		w.detach(ctx)
		w.mounted = false
	}

	if err := os.RemoveAll(w.root); err != nil {
		w.logger.Error("failed to remove scratch directory; forcing unmount and retrying once",
			"scratch", w.root, "error", err)
		w.detach(ctx)
		if err := os.RemoveAll(w.root); err != nil {
			return artifact.Wrap(artifact.ErrCleanupFailure, filepath.Base(w.root), "release", "", err)
		}
	}
	return nil
}

func (w *Workspace) detach(ctx context.Context) {
	if w.run == nil {
		return
	}
	if out, err := w.run.Run(ctx, "hdiutil", "detach", w.MountPoint(), "-force"); err != nil {
		w.logger.Warn("hdiutil detach failed", "mount", w.MountPoint(), "output", out, "error", err)
	}
}
