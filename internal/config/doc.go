// Package config loads, normalizes, and validates packmule configuration.
//
// It supplies repository defaults, expands user paths (including tilde
// shortcuts), reads TOML files, and honours environment fallbacks such as
// CATALOG_API_URL. The Config type centralizes every knob the CLI needs, so
// scratch/durable directories, catalog credentials, and matcher thresholds
// are discovered in one pass.
//
// Always obtain settings through this package so downstream code receives
// sanitized paths, canonical enforcement values, and clear validation
// errors.
package config
