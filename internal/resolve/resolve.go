// Package resolve drives one artifact through the full identity pipeline:
// container detection, install-name derivation, expansion, and metadata
// extraction, including the re-entry loop for a package discovered inside a
// disk image.
package resolve

import (
	"context"
	"log/slog"

	"packmule/internal/artifact"
	"packmule/internal/command"
	"packmule/internal/expand"
	"packmule/internal/logging"
	"packmule/internal/metadata"
	"packmule/internal/naming"
	"packmule/internal/probe"
	"packmule/internal/scratch"
)

// Options controls a resolution pass.
type Options struct {
	// QueryOnly surfaces the identifier without requiring a full identity
	// record; used to consult the package map before the main pass.
	QueryOnly bool
	// KnownIdentifier steers manifest disambiguation toward mapped
	// identifiers. Nil when no mapping is configured.
	KnownIdentifier func(id string) bool
}

// Resolution is the finished identity for one artifact.
type Resolution struct {
	Artifact    artifact.Artifact
	Identity    artifact.IdentityRecord
	// DerivedName is the cleaned product name from the container's
	// self-reported name or, failing that, the filename.
	DerivedName string
	// CopiedPath is set when a package nested in an image was copied out;
	// the copy, not the original image, is the source for later uploads and
	// should be removed by the caller when done.
	CopiedPath string
}

// Resolver wires the pipeline components together. One Resolver processes
// one artifact at a time; the scratch workspace is exclusively owned for
// the duration of each Resolve call.
type Resolver struct {
	run         command.Runner
	prober      *probe.Prober
	expander    *expand.Expander
	locator     *metadata.Locator
	scratchBase string
	durableDir  string
	logger      *slog.Logger
}

// New constructs a Resolver. scratchBase hosts the per-run workspace;
// durableDir receives packages copied out of images so they outlive the
// scratch teardown.
func New(run command.Runner, scratchBase, durableDir string, logger *slog.Logger) *Resolver {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Resolver{
		run:         run,
		prober:      probe.New(run, logger),
		expander:    expand.New(run, logger),
		locator:     metadata.New(logger),
		scratchBase: scratchBase,
		durableDir:  durableDir,
		logger:      logger,
	}
}

// A nested package triggers at most one restart: image to package. A second
// level of nesting means the artifact is malformed.
const maxPasses = 2

// Resolve expands the artifact at path and extracts its identity record.
// The scratch workspace is torn down before returning on every path;
// cleanup failures are logged and do not fail the resolution.
func (r *Resolver) Resolve(ctx context.Context, path string, opts Options) (Resolution, error) {
	var res Resolution
	for pass := 0; pass < maxPasses; pass++ {
		kind, err := r.prober.Detect(ctx, path)
		if err != nil {
			return Resolution{}, err
		}
		art := artifact.Artifact{Path: path, Kind: kind}

		installName, err := r.prober.InstallName(ctx, art)
		if err != nil {
			return Resolution{}, err
		}
		art.InstallName = installName

		raw := installName
		if raw == "" {
			raw = art.Basename()
		}
		res.Artifact = art
		res.DerivedName = naming.Normalize(raw)
		r.logger.Debug("derived product name", "artifact", art.Basename(), "name", res.DerivedName)

		result, record, err := r.expandAndLocate(ctx, art, opts)
		if err != nil {
			return Resolution{}, err
		}
		if result.ReentryPath != "" {
			r.logger.Info("found package inside image; restarting identity extraction",
				"image", art.Basename(), "package", result.ReentryPath)
			res.CopiedPath = result.ReentryPath
			path = result.ReentryPath
			continue
		}

		res.Identity = record
		return res, nil
	}
	return Resolution{}, artifact.Wrap(artifact.ErrExpansionFailure, res.Artifact.Basename(),
		"resolve", "nested containers exceeded the re-entry limit", nil)
}

// expandAndLocate runs one expansion pass inside its own scratch workspace.
func (r *Resolver) expandAndLocate(ctx context.Context, art artifact.Artifact, opts Options) (expand.Result, artifact.IdentityRecord, error) {
	ws, err := scratch.Acquire(r.scratchBase, r.run, r.logger)
	if err != nil {
		return expand.Result{}, artifact.IdentityRecord{}, err
	}
	defer func() {
		if err := ws.Release(ctx); err != nil {
			r.logger.Warn("scratch cleanup failed", "error", err)
		}
	}()

	result, err := r.expander.Expand(ctx, art, ws, r.durableDir)
	if err != nil {
		return expand.Result{}, artifact.IdentityRecord{}, err
	}
	if result.ReentryPath != "" {
		return result, artifact.IdentityRecord{}, nil
	}

	record, err := r.locator.Locate(result.Root, metadata.Options{
		QueryOnly:       opts.QueryOnly,
		KnownIdentifier: opts.KnownIdentifier,
	})
	if err != nil {
		return expand.Result{}, artifact.IdentityRecord{}, err
	}
	return result, record, nil
}
