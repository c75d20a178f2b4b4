// Package keyring keeps the remote connection string in the OS keyring so
// it never has to appear in shell history or config files.
package keyring

import (
	"errors"
	"fmt"
	"strings"

	"github.com/zalando/go-keyring"

	"github.com/julianstephens/habitsync/internal/constants"
)

var (
	// ErrNotFound is returned when no credentials are found in the keyring
	ErrNotFound = errors.New("credentials not found in keyring")
	// ErrKeyringUnavailable is returned when the OS keyring is not available
	ErrKeyringUnavailable = errors.New("OS keyring is not available")
)

func account(profile string) string {
	if profile == "" {
		return constants.DefaultKeyringUser
	}
	return constants.DefaultKeyringUser + ":" + profile
}

// GetConnectionString returns the connection string stored for profile.
// An empty profile selects the default entry.
func GetConnectionString(profile string) (string, error) {
	connStr, err := keyring.Get(constants.AppName, account(profile))
	if err != nil {
		if errors.Is(err, keyring.ErrNotFound) {
			return "", ErrNotFound
		}
		return "", fmt.Errorf("%w: %v", ErrKeyringUnavailable, err)
	}
	return connStr, nil
}

func SetConnectionString(profile, connStr string) error {
	if strings.TrimSpace(connStr) == "" {
		return errors.New("connection string cannot be empty")
	}
	if err := keyring.Set(constants.AppName, account(profile), connStr); err != nil {
		return fmt.Errorf("failed to store credentials in keyring: %w", err)
	}
	return nil
}

func DeleteConnectionString(profile string) error {
	err := keyring.Delete(constants.AppName, account(profile))
	if err != nil {
		if errors.Is(err, keyring.ErrNotFound) {
			return ErrNotFound
		}
		return fmt.Errorf("failed to delete credentials from keyring: %w", err)
	}
	return nil
}

// ResolveConnectionString prefers an explicit value and falls back to the
// keyring. It returns "" without error when neither is set, which means the
// engine runs without a remote.
func ResolveConnectionString(explicit, profile string) (string, error) {
	if explicit != "" {
		return explicit, nil
	}
	connStr, err := GetConnectionString(profile)
	switch {
	case err == nil:
		return connStr, nil
	case errors.Is(err, ErrNotFound), errors.Is(err, ErrKeyringUnavailable):
		return "", nil
	default:
		return "", err
	}
}

// IsAvailable checks if the OS keyring is available on the current system.
func IsAvailable() bool {
	_, err := keyring.Get(constants.AppName, "test-availability")
	return err == nil || errors.Is(err, keyring.ErrNotFound)
}
