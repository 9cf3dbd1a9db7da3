// Package probe detects the container kind of an installer artifact and
// queries the name the container reports for itself. All platform tools are
// reached through command.Runner so tests can inject fakes.
package probe

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"howett.net/plist"

	"packmule/internal/artifact"
	"packmule/internal/command"
	"packmule/internal/logging"
)

// Prober answers container-kind and install-name questions about a path.
type Prober struct {
	run    command.Runner
	logger *slog.Logger
}

// New constructs a Prober. The logger may be nil.
func New(run command.Runner, logger *slog.Logger) *Prober {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Prober{run: run, logger: logger}
}

// Detect determines whether path is a disk image or a flat package, probing
// in that order; the first successful metadata query wins. Anything else is
// an unsupported container, reported with the file's probed type.
func (p *Prober) Detect(ctx context.Context, path string) (artifact.Kind, error) {
	if _, err := p.run.Run(ctx, "hdiutil", "imageinfo", "-format", path); err == nil {
		return artifact.KindImage, nil
	}
	if _, err := p.run.Run(ctx, "installer", "-pkginfo", "-pkg", path); err == nil {
		return artifact.KindPackage, nil
	}
	probedType, _ := p.run.Run(ctx, "file", "--mime-type", "-b", path)
	return "", artifact.Wrap(artifact.ErrUnsupportedContainer, path, "detect",
		fmt.Sprintf("not a package or disk image (probed type %q)", probedType), nil)
}

// InstallName returns the container's self-reported name: the volume name
// for images, the installer title for packages. A missing name is not an
// error; callers fall back to deriving a name from the filename.
func (p *Prober) InstallName(ctx context.Context, art artifact.Artifact) (string, error) {
	switch art.Kind {
	case artifact.KindImage:
		return p.imageVolumeName(ctx, art)
	case artifact.KindPackage:
		return p.packageTitle(ctx, art)
	default:
		return "", artifact.Wrap(artifact.ErrUnsupportedContainer, art.Basename(), "install name", string(art.Kind), nil)
	}
}

type diskImageInfo struct {
	Partitions []diskImagePartition `plist:"Partitions"`
}

type diskImagePartition struct {
	VolumeName string `plist:"volume-name"`
}

func (p *Prober) imageVolumeName(ctx context.Context, art artifact.Artifact) (string, error) {
	out, err := p.run.Run(ctx, "diskutil", "image", "info", "-plist", art.Path)
	if err != nil {
		p.logger.Warn("could not read disk image info; a pending EULA may be blocking the mount",
			"artifact", art.Basename(), "error", err)
		return "", nil
	}
	var info diskImageInfo
	if _, err := plist.Unmarshal([]byte(out), &info); err != nil {
		return "", fmt.Errorf("parse disk image info for %s: %w", art.Basename(), err)
	}
	for _, part := range info.Partitions {
		if part.VolumeName == "" || strings.Contains(part.VolumeName, "N/A") {
			continue
		}
		return part.VolumeName, nil
	}
	return "", nil
}

func (p *Prober) packageTitle(ctx context.Context, art artifact.Artifact) (string, error) {
	out, err := p.run.Run(ctx, "installer", "-pkginfo", "-pkg", art.Path)
	if err != nil {
		return "", nil
	}
	lines := strings.Split(out, "\n")
	if len(lines) == 0 {
		return "", nil
	}
	return strings.TrimSpace(lines[0]), nil
}
