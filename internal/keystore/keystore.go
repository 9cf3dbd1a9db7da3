// Package keystore retrieves named secrets from the enabled stores: the
// process environment first, then the login keychain.
package keystore

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"packmule/internal/command"
	"packmule/internal/logging"
)

// account scopes keychain items to this tool.
const account = "packmule"

// Store resolves secret names against the enabled backends.
type Store struct {
	environment bool
	keychain    bool
	run         command.Runner
	logger      *slog.Logger
}

// New constructs a Store. At least one backend should be enabled or every
// lookup will fail.
func New(environment, keychain bool, run command.Runner, logger *slog.Logger) *Store {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Store{environment: environment, keychain: keychain, run: run, logger: logger}
}

// Retrieve returns the secret stored under name. The environment is
// consulted first (by the exact name, then its uppercase form), then the
// keychain.
func (s *Store) Retrieve(ctx context.Context, name string) (string, error) {
	if name == "" {
		return "", fmt.Errorf("secret name is required")
	}
	if s.environment {
		if value := fromEnv(name); value != "" {
			s.logger.Debug("resolved secret from environment", "name", name)
			return value, nil
		}
	}
	if s.keychain {
		value, err := s.fromKeychain(ctx, name)
		if err == nil && value != "" {
			s.logger.Debug("resolved secret from keychain", "name", name)
			return value, nil
		}
	}
	return "", fmt.Errorf("could not retrieve secret %q from any enabled keystore", name)
}

func fromEnv(name string) string {
	if value := os.Getenv(name); value != "" {
		return value
	}
	return os.Getenv(strings.ToUpper(name))
}

func (s *Store) fromKeychain(ctx context.Context, name string) (string, error) {
	out, err := s.run.Run(ctx, "security", "find-generic-password", "-w", "-s", name, "-a", account)
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(out), nil
}
