// Package catalog talks to the remote software catalog: listing tracked
// custom app entries, presigning and performing artifact uploads, and
// creating or updating entries.
package catalog

import (
	"net/url"
	"strings"
)

// Entry is one tracked software title in the remote catalog. The matcher
// treats a fetched list as an immutable snapshot for the duration of one
// resolution.
type Entry struct {
	ID                    string `json:"id"`
	Name                  string `json:"name"`
	FileKey               string `json:"file_key"`
	InstallType           string `json:"install_type"`
	InstallEnforcement    string `json:"install_enforcement"`
	ShowInSelfService     bool   `json:"show_in_self_service"`
	SelfServiceCategoryID string `json:"self_service_category_id"`
	SHA256                string `json:"sha256"`
	CreatedAt             string `json:"created_at"`
	UpdatedAt             string `json:"updated_at"`
	FileUpdated           string `json:"file_updated"`
}

// Category is one Self Service category known to the tenant.
type Category struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// UploadTicket is the presigned form returned by the catalog for a direct
// artifact upload.
type UploadTicket struct {
	Name     string            `json:"name"`
	PostURL  string            `json:"post_url"`
	PostData map[string]string `json:"post_data"`
	FileKey  string            `json:"file_key"`
}

// CreateRequest is the body for a new catalog entry.
type CreateRequest struct {
	Name                  string `json:"name"`
	FileKey               string `json:"file_key"`
	InstallType           string `json:"install_type"`
	InstallEnforcement    string `json:"install_enforcement"`
	ShowInSelfService     bool   `json:"show_in_self_service,omitempty"`
	SelfServiceCategoryID string `json:"self_service_category_id,omitempty"`
	AuditScript           string `json:"audit_script,omitempty"`
}

// UpdateRequest is the body for patching an existing entry. Only the new
// file key is mandatory.
type UpdateRequest struct {
	FileKey     string `json:"file_key"`
	AuditScript string `json:"audit_script,omitempty"`
}

// EnsureHTTPS rewrites a URL to carry an https scheme, treating a bare host
// or an http scheme as misconfiguration rather than an error.
func EnsureHTTPS(raw string) string {
	parsed, err := url.Parse(raw)
	if err != nil {
		return raw
	}
	if parsed.Scheme == "" || parsed.Scheme == "http" {
		if parsed.Host == "" {
			// A bare host parses as a path.
			trimmed := strings.TrimPrefix(raw, "http://")
			return "https://" + trimmed
		}
		parsed.Scheme = "https"
		return parsed.String()
	}
	return raw
}
