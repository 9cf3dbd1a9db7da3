// Package brew sources installer artifacts from Homebrew, downloading a
// cask and reporting the local path of the fetched file.
package brew

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"packmule/internal/command"
	"packmule/internal/logging"
)

// Fetch downloads the named cask without installing it and returns the
// local path of the downloaded artifact.
func Fetch(ctx context.Context, run command.Runner, name string, logger *slog.Logger) (string, error) {
	if logger == nil {
		logger = logging.NewNop()
	}
	logger.Info("fetching cask", "cask", name)

	out, err := run.Run(ctx, "brew", "fetch", name, "-s")
	if err != nil {
		return "", fmt.Errorf("brew fetch %q failed (run 'brew search --cask %s' to validate the cask name): %w",
			name, name, err)
	}

	for _, line := range strings.Split(out, "\n") {
		if !strings.Contains(strings.ToLower(line), "downloaded") {
			continue
		}
		parts := strings.Split(line, ": ")
		path := strings.TrimSpace(parts[len(parts)-1])
		logger.Info("downloaded cask", "cask", name, "path", path)
		return path, nil
	}
	return "", fmt.Errorf("brew fetch %q reported no downloaded file", name)
}
