package artifact

import (
	"path/filepath"
	"strings"
)

// Kind identifies the container format of an installer artifact.
type Kind string

const (
	// KindPackage is a flat installer package (.pkg/.mpkg).
	KindPackage Kind = "package"
	// KindImage is a mountable disk image (.dmg).
	KindImage Kind = "image"
)

// Artifact describes a single installer file being processed.
type Artifact struct {
	// Path is the absolute location of the installer on disk.
	Path string
	// Kind is the detected container format.
	Kind Kind
	// InstallName is the raw name reported by the container itself: the
	// volume name for images, the installer title for packages. Empty when
	// the container does not report one.
	InstallName string
}

// Basename returns the file name without its directory.
func (a Artifact) Basename() string {
	return filepath.Base(a.Path)
}

// IdentityRecord is the resolved identity of an artifact.
type IdentityRecord struct {
	// Identifier is the bundle identifier or package identifier.
	Identifier string
	// Version is the short version string or package version.
	Version string
	// DisplayName is the best-effort application name, usually carrying the
	// .app suffix. May be empty.
	DisplayName string
}

// Valid reports whether the record carries both required fields.
func (r IdentityRecord) Valid() bool {
	return strings.TrimSpace(r.Identifier) != "" && strings.TrimSpace(r.Version) != ""
}
