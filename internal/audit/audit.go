// Package audit customizes the enforcement audit script shipped alongside
// uploads: resolved identity values are substituted into the script's
// variable assignments before upload, and the pristine copy is restored
// afterwards.
package audit

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"packmule/internal/fileutil"
)

// Values are substituted into the audit script's variable assignments.
// Empty fields leave the script's existing assignment untouched.
type Values struct {
	AppName        string
	BundleID       string
	PackageID      string
	MinimumVersion string
	// DelayDays postpones enforcement; zero keeps the script's default.
	DelayDays int
}

// backupSuffix marks the pristine copy created before customization.
const backupSuffix = ".bak"

// Customize rewrites the audit script in place with the given values,
// creating a backup first. Call Restore once the upload is done.
func Customize(path string, values Values) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read audit script %q: %w", path, err)
	}
	if err := fileutil.CopyFile(path, path+backupSuffix); err != nil {
		return fmt.Errorf("back up audit script %q: %w", path, err)
	}

	timestamp := strconv.FormatInt(time.Now().Unix(), 10)
	lines := strings.Split(string(data), "\n")
	for i, line := range lines {
		switch {
		case strings.Contains(line, "APP_NAME=") && values.AppName != "":
			lines[i] = fmt.Sprintf("APP_NAME=%q", values.AppName)
		case strings.Contains(line, "BUNDLE_ID=") && values.BundleID != "":
			lines[i] = fmt.Sprintf("BUNDLE_ID=%q", values.BundleID)
		case strings.Contains(line, "PKG_ID=") && values.PackageID != "":
			lines[i] = fmt.Sprintf("PKG_ID=%q", values.PackageID)
		case strings.Contains(line, "MINIMUM_ENFORCED_VERSION=") && values.MinimumVersion != "":
			lines[i] = fmt.Sprintf("MINIMUM_ENFORCED_VERSION=%q", values.MinimumVersion)
		case strings.Contains(line, "CREATION_TIMESTAMP="):
			lines[i] = fmt.Sprintf("CREATION_TIMESTAMP=%q", timestamp)
		case strings.Contains(line, "DAYS_UNTIL_ENFORCEMENT=") && values.DelayDays > 0:
			lines[i] = fmt.Sprintf("DAYS_UNTIL_ENFORCEMENT=%d", values.DelayDays)
		}
	}

	if err := os.WriteFile(path, []byte(strings.Join(lines, "\n")), 0o755); err != nil {
		return fmt.Errorf("write audit script %q: %w", path, err)
	}
	return nil
}

// Restore replaces the customized script with the pristine backup.
func Restore(path string) error {
	if err := os.Rename(path+backupSuffix, path); err != nil {
		return fmt.Errorf("restore audit script %q: %w", path, err)
	}
	return nil
}
