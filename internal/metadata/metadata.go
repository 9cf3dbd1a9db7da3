// Package metadata walks an expanded artifact tree to find identity-bearing
// metadata files, disambiguates among multiple candidates, and extracts a
// normalized identity record.
//
// Two sources are tried in priority order: application bundle Info.plist
// files, then flat-package manifests (PackageInfo, optionally steered by a
// top-level Distribution manifest). Bundle metadata absence is recoverable
// and triggers the manifest fallback; an incomplete record from either
// source is fatal for the artifact.
package metadata

import (
	"encoding/xml"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"howett.net/plist"

	"packmule/internal/artifact"
	"packmule/internal/fileutil"
	"packmule/internal/logging"
)

// Options controls a single locate pass.
type Options struct {
	// QueryOnly surfaces the identifier cheaply without requiring a version,
	// supporting the two-phase flow where identity is probed before the full
	// extraction pass.
	QueryOnly bool
	// KnownIdentifier reports whether a package identifier appears in the
	// configured identifier-to-name mapping. Nil when no mapping is
	// configured.
	KnownIdentifier func(id string) bool
}

// Locator extracts identity records from expanded artifact trees.
type Locator struct {
	logger *slog.Logger
}

// New constructs a Locator. The logger may be nil.
func New(logger *slog.Logger) *Locator {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Locator{logger: logger}
}

// Locate searches root for identity metadata. Bundle metadata wins when
// present; its absence falls back to package manifests. The returned record
// always carries an identifier; the version may be empty only in query-only
// mode.
func (l *Locator) Locate(root string, opts Options) (artifact.IdentityRecord, error) {
	record, err := l.locateBundle(root, opts)
	if err == nil {
		return record, nil
	}
	if !errors.Is(err, artifact.ErrNoIdentityMetadata) {
		return artifact.IdentityRecord{}, err
	}
	l.logger.Warn("no application metadata found; attempting manifest lookup", "root", root)
	return l.locateManifest(root, opts)
}

// auxiliarySubtrees are bundle substructures that carry their own Info.plist
// but never describe the core application.
var auxiliarySubtrees = map[string]bool{
	"Extensions":    true,
	"Frameworks":    true,
	"Helpers":       true,
	"Library":       true,
	"MacOS":         true,
	"PlugIns":       true,
	"Resources":     true,
	"SharedSupport": true,
	"opt":           true,
	"bin":           true,
}

type bundleInfo struct {
	Identifier  string `plist:"CFBundleIdentifier"`
	Version     string `plist:"CFBundleShortVersionString"`
	DisplayName string `plist:"CFBundleDisplayName"`
	Name        string `plist:"CFBundleName"`
}

func (l *Locator) locateBundle(root string, opts Options) (artifact.IdentityRecord, error) {
	candidates, err := findBundlePlists(root)
	if err != nil {
		return artifact.IdentityRecord{}, fmt.Errorf("search %q for application metadata: %w", root, err)
	}
	if len(candidates) == 0 {
		return artifact.IdentityRecord{}, artifact.Wrap(artifact.ErrNoIdentityMetadata,
			filepath.Base(root), "locate bundle metadata", "no application metadata file found", nil)
	}

	chosen := candidates[0]
	if len(candidates) > 1 {
		l.logger.Debug("found multiple application metadata candidates", "count", len(candidates))
		chosen = largestEntry(candidates)
	}
	l.logger.Debug("selected application metadata", "plist", chosen)

	data, err := os.ReadFile(chosen)
	if err != nil {
		return artifact.IdentityRecord{}, fmt.Errorf("read %q: %w", chosen, err)
	}
	var info bundleInfo
	if _, err := plist.Unmarshal(data, &info); err != nil {
		return artifact.IdentityRecord{}, fmt.Errorf("parse %q: %w", chosen, err)
	}

	if info.Identifier == "" {
		return artifact.IdentityRecord{}, artifact.Wrap(artifact.ErrIncompleteIdentity,
			filepath.Base(root), "locate bundle metadata", "CFBundleIdentifier missing from "+chosen, nil)
	}
	if info.Version == "" && !opts.QueryOnly {
		return artifact.IdentityRecord{}, artifact.Wrap(artifact.ErrIncompleteIdentity,
			filepath.Base(root), "locate bundle metadata", "CFBundleShortVersionString missing from "+chosen, nil)
	}

	return artifact.IdentityRecord{
		Identifier:  info.Identifier,
		Version:     info.Version,
		DisplayName: applicationName(chosen, info),
	}, nil
}

// applicationName derives the .app bundle name. The directory holding
// Contents could be named Payload inside a package, so the path-derived name
// is only trusted when it carries the bundle suffix; otherwise the display
// name and then the internal name are synthesized into one.
func applicationName(plistPath string, info bundleInfo) string {
	bundleDir := filepath.Base(filepath.Dir(filepath.Dir(plistPath)))
	switch {
	case strings.HasSuffix(bundleDir, ".app"):
		return bundleDir
	case info.DisplayName != "":
		return info.DisplayName + ".app"
	case info.Name != "":
		return info.Name + ".app"
	default:
		return ""
	}
}

func findBundlePlists(root string) ([]string, error) {
	var candidates []string
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return nil
			}
			return err
		}
		if d.IsDir() || d.Name() != "Info.plist" {
			return nil
		}
		if filepath.Base(filepath.Dir(path)) != "Contents" {
			return nil
		}
		rel, err := filepath.Rel(root, path)
		if err != nil {
			return nil
		}
		parts := strings.Split(rel, string(filepath.Separator))
		for _, part := range parts[:len(parts)-1] {
			if auxiliarySubtrees[part] {
				return nil
			}
		}
		candidates = append(candidates, path)
		return nil
	})
	return candidates, err
}

// largestEntry picks the file whose containing directory holds the most
// bytes.
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

type packageInfoXML struct {
	Identifier string `xml:"identifier,attr"`
	Version    string `xml:"version,attr"`
}

type distributionXML struct {
	Product struct {
		ID      string `xml:"id,attr"`
		Version string `xml:"version,attr"`
	} `xml:"product"`
}

func (l *Locator) locateManifest(root string, opts Options) (artifact.IdentityRecord, error) {
	packageInfos, distributions, err := findManifests(root)
	if err != nil {
		return artifact.IdentityRecord{}, fmt.Errorf("search %q for package manifests: %w", root, err)
	}
	if len(packageInfos) == 0 {
		return artifact.IdentityRecord{}, artifact.Wrap(artifact.ErrNoIdentityMetadata,
			filepath.Base(root), "locate package manifest", "no package manifest found", nil)
	}

	if len(packageInfos) > 1 {
		// An identifier known to the configured mapping wins outright when it
		// also carries a version.
		if opts.KnownIdentifier != nil {
			for _, info := range packageInfos {
				id, version, err := parsePackageInfo(info)
				if err != nil {
					continue
				}
				if id != "" && version != "" && opts.KnownIdentifier(id) {
					l.logger.Debug("matched package manifest from identifier mapping", "identifier", id)
					return artifact.IdentityRecord{Identifier: id, Version: version}, nil
				}
			}
		}
		// Next preference: the manifest whose version matches the product
		// version declared by a top-level Distribution manifest. Manifests
		// are ordered largest first, so the largest matching one wins.
		if len(distributions) > 0 {
			distID, distVersion, err := parseDistribution(distributions[0])
			if err == nil && distVersion != "" {
				l.logger.Debug("found distribution manifest", "identifier", distID, "version", distVersion)
				for _, info := range packageInfos {
					id, version, err := parsePackageInfo(info)
					if err != nil {
						continue
					}
					if id != "" && version == distVersion {
						l.logger.Debug("matched package manifest to distribution version", "identifier", id)
						return artifact.IdentityRecord{Identifier: id, Version: version}, nil
					}
				}
			}
		}
	}

	chosen := packageInfos[0]
	l.logger.Debug("selected package manifest", "manifest", chosen)
	id, version, err := parsePackageInfo(chosen)
	if err != nil {
		return artifact.IdentityRecord{}, fmt.Errorf("parse %q: %w", chosen, err)
	}
	if id == "" {
		return artifact.IdentityRecord{}, artifact.Wrap(artifact.ErrIncompleteIdentity,
			filepath.Base(root), "locate package manifest", "identifier missing from "+chosen, nil)
	}
	if version == "" && !opts.QueryOnly {
		return artifact.IdentityRecord{}, artifact.Wrap(artifact.ErrIncompleteIdentity,
			filepath.Base(root), "locate package manifest", "version missing from "+chosen, nil)
	}
	return artifact.IdentityRecord{Identifier: id, Version: version}, nil
}

// findManifests returns PackageInfo paths sorted by containing-directory
// size, largest first, plus any Distribution manifests in walk order.
func findManifests(root string) (packageInfos, distributions []string, err error) {
	err = filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return nil
			}
			return err
		}
		if d.IsDir() {
			return nil
		}
		switch d.Name() {
		case "PackageInfo":
			packageInfos = append(packageInfos, path)
		case "Distribution":
			distributions = append(distributions, path)
		}
		return nil
	})
	if err != nil {
		return nil, nil, err
	}

	sizes := make(map[string]int64, len(packageInfos))
	for _, path := range packageInfos {
		size, err := fileutil.DirSize(filepath.Dir(path))
		if err != nil {
			size = -1
		}
		sizes[path] = size
	}
	sort.SliceStable(packageInfos, func(i, j int) bool {
		return sizes[packageInfos[i]] > sizes[packageInfos[j]]
	})
	return packageInfos, distributions, nil
}

func parsePackageInfo(path string) (id, version string, err error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", "", err
	}
	var parsed packageInfoXML
	if err := xml.Unmarshal(data, &parsed); err != nil {
		return "", "", err
	}
	return parsed.Identifier, parsed.Version, nil
}

func parseDistribution(path string) (id, version string, err error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", "", err
	}
	var parsed distributionXML
	if err := xml.Unmarshal(data, &parsed); err != nil {
		return "", "", err
	}
	return parsed.Product.ID, parsed.Product.Version, nil
}
