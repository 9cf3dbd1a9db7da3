// Package expand unpacks installer containers into the scratch workspace,
// exposing a uniform filesystem view regardless of container kind.
//
// Disk images are attached read-only and interpreted by three strategies in
// order: an Applications symlink or alias marks a drag-and-drop application
// image whose mount root is the bundle source; otherwise a flat package
// nested in the image wins (the largest one when several exist) and is
// copied out for re-entry; otherwise a bare application bundle leaves the
// mount root as the search root. Flat packages are fully expanded with
// pkgutil.
package expand

import (
	"context"
	"errors"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"packmule/internal/artifact"
	"packmule/internal/command"
	"packmule/internal/fileutil"
	"packmule/internal/logging"
	"packmule/internal/scratch"
)

// Result reports where identity metadata should be searched.
type Result struct {
	// Root is the filesystem root holding the expanded contents. Unset when
	// ReentryPath is set.
	Root string
	// ReentryPath is non-empty when a package was found nested inside an
	// image and copied out; the caller restarts identity extraction against
	// this path as if it were the original artifact.
	ReentryPath string
}

// Expander unpacks artifacts using platform tools via command.Runner.
type Expander struct {
	run    command.Runner
	logger *slog.Logger
}

// New constructs an Expander. The logger may be nil.
func New(run command.Runner, logger *slog.Logger) *Expander {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Expander{run: run, logger: logger}
}

// Expand unpacks the artifact into the workspace. For images that carry a
// nested package, the package is copied to durableDir so the image can be
// torn down before the package is processed.
func (e *Expander) Expand(ctx context.Context, art artifact.Artifact, ws *scratch.Workspace, durableDir string) (Result, error) {
	switch art.Kind {
	case artifact.KindImage:
		return e.expandImage(ctx, art, ws, durableDir)
	case artifact.KindPackage:
		return e.expandPackage(ctx, art, ws)
	default:
		return Result{}, artifact.Wrap(artifact.ErrUnsupportedContainer, art.Basename(), "expand", string(art.Kind), nil)
	}
}

func (e *Expander) expandPackage(ctx context.Context, art artifact.Artifact, ws *scratch.Workspace) (Result, error) {
	dst := ws.PackageDir()
	if _, err := os.Stat(dst); err == nil {
		// Already expanded during this cycle (resumed lookup).
		return Result{Root: dst}, nil
	}
	if out, err := e.run.Run(ctx, "pkgutil", "--expand-full", art.Path, dst); err != nil {
		return Result{}, artifact.Wrap(artifact.ErrExpansionFailure, art.Basename(), "expand package", out, err)
	}
	return Result{Root: dst}, nil
}

func (e *Expander) expandImage(ctx context.Context, art artifact.Artifact, ws *scratch.Workspace, durableDir string) (Result, error) {
	if err := e.attach(ctx, art, ws.MountPoint()); err != nil {
		return Result{}, err
	}
	ws.RegisterMount()
	mount := ws.MountPoint()

	if e.hasApplicationsLink(ctx, mount) {
		e.logger.Debug("image contains Applications link; treating mount root as bundle source", "artifact", art.Basename())
		return Result{Root: mount}, nil
	}

	packages, err := findPackages(mount)
	if err != nil {
		return Result{}, artifact.Wrap(artifact.ErrExpansionFailure, art.Basename(), "scan image", "", err)
	}
	if len(packages) > 0 {
		chosen := packages[0]
		if len(packages) > 1 {
			e.logger.Warn("found multiple packages within image; using largest as source",
				"artifact", art.Basename(), "count", len(packages))
			chosen = largestEntry(packages)
		}
		copied, err := e.copyOut(chosen, durableDir)
		if err != nil {
			return Result{}, artifact.Wrap(artifact.ErrExpansionFailure, art.Basename(), "copy nested package", "", err)
		}
		e.logger.Debug("copied nested package for re-entry", "package", filepath.Base(copied))
		return Result{ReentryPath: copied}, nil
	}

	// A bare application bundle, or nothing at all; in the latter case the
	// metadata locator reports the absence.
	return Result{Root: mount}, nil
}

func (e *Expander) attach(ctx context.Context, art artifact.Artifact, mountPoint string) error {
	out, err := e.runAttach(ctx, art.Path, mountPoint)
	if err == nil {
		return nil
	}

	// The same image may already be attached from an earlier run. Find its
	// device in the mount table, force-detach it, and retry once.
	if device := e.findAttachedDevice(ctx, art.Path); device != "" {
		e.logger.Debug("located existing mount for image; detaching", "device", device)
		if _, detachErr := e.run.Run(ctx, "hdiutil", "detach", device, "-force"); detachErr == nil {
			if _, retryErr := e.runAttach(ctx, art.Path, mountPoint); retryErr == nil {
				return nil
			}
		}
	}
	return artifact.Wrap(artifact.ErrMountFailure, art.Basename(), "attach", out, err)
}

func (e *Expander) runAttach(ctx context.Context, path, mountPoint string) (string, error) {
	return e.run.Run(ctx, "hdiutil", "attach", path,
		"-mountpoint", mountPoint, "-readonly", "-nobrowse", "-noverify", "-noautoopen")
}

func (e *Expander) findAttachedDevice(ctx context.Context, imagePath string) string {
	out, err := e.run.Run(ctx, "hdiutil", "info")
	if err != nil {
		return ""
	}
	seen := false
	for _, line := range strings.Split(out, "\n") {
		if strings.Contains(line, imagePath) {
			seen = true
			continue
		}
		if seen && strings.Contains(line, "/dev/disk") {
			fields := strings.Fields(line)
			if len(fields) > 0 {
				return fields[0]
			}
		}
	}
	return ""
}

// aliasBookmarkPattern matches the bookmark payload of a Finder alias
// pointing at /Applications.
var aliasBookmarkPattern = regexp.MustCompile(`book.*mark.*Applications`)

// hasApplicationsLink reports whether the mount carries a symlink or Finder
// alias resolving to the system Applications folder, the marker of a
// drag-and-drop application image.
func (e *Expander) hasApplicationsLink(ctx context.Context, mount string) bool {
	found := false
	_ = filepath.WalkDir(mount, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return nil
		}
		if d.Name() == "Applications" && d.Type()&fs.ModeSymlink != 0 {
			if target, err := os.Readlink(path); err == nil && strings.Contains(target, "Applications") {
				found = true
				return fs.SkipAll
			}
		}
		return nil
	})
	if found {
		return true
	}

	// No symlink; check top-level files for a Finder alias. Aliases do not
	// expose their target through the filesystem, so probe the file kind and
	// scan the bookmark data.
	entries, err := os.ReadDir(mount)
	if err != nil {
		return false
	}
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		path := filepath.Join(mount, entry.Name())
		kind, err := e.run.Run(ctx, "file", "-b", path)
		if err != nil || !strings.Contains(kind, "Alias") {
			continue
		}
		data, err := os.ReadFile(path)
		if err != nil {
			continue
		}
		if aliasBookmarkPattern.Match(data) {
			e.logger.Debug("found alias pointing to Applications", "alias", entry.Name())
			return true
		}
	}
	return false
}

func findPackages(root string) ([]string, error) {
	var packages []string
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return nil
			}
			return err
		}
		ext := strings.ToLower(filepath.Ext(path))
		if ext == ".pkg" || ext == ".mpkg" {
			packages = append(packages, path)
			if d.IsDir() {
				return fs.SkipDir
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return packages, nil
}

// largestEntry picks the file whose containing directory holds the most
// bytes, the proxy for the most complete payload.
func largestEntry(paths []string) string {
	best := paths[0]
	var bestSize int64 = -1
	for _, path := range paths {
		size, err := fileutil.DirSize(filepath.Dir(path))
		if err != nil {
			continue
		}
		if size > bestSize {
			best = path
			bestSize = size
		}
	}
	return best
}

func (e *Expander) copyOut(src, durableDir string) (string, error) {
	if err := os.MkdirAll(durableDir, 0o755); err != nil {
		return "", err
	}
	dst := filepath.Join(durableDir, filepath.Base(src))
	if err := fileutil.CopyFile(src, dst); err != nil {
		return "", err
	}
	return dst, nil
}
