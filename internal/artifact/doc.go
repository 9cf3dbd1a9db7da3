// Package artifact defines the core data model for installer identity
// resolution: the artifact under inspection, the identity record extracted
// from it, and the error taxonomy shared by the probe, expansion, metadata,
// and matching layers.
package artifact
