package store

import (
	"database/sql"
	"errors"
	"fmt"

	"github.com/Masterminds/semver/v3"
)

// FormatVersion is the schema format written by this package. Databases
// with a different major version are rejected by Migrate.
const FormatVersion = "1.0.0"

const formatConstraint = "^1.0.0"

// ErrIncompatibleFormat is returned by Migrate for a database written with
// an incompatible schema format.
var ErrIncompatibleFormat = errors.New("incompatible database format")

// GetMetadata returns the value stored under key, or "" if unset.
func (s *Store) GetMetadata(key string) (string, error) {
	var value string
	err := s.db.QueryRow("SELECT value FROM metadata WHERE key = ?", key).Scan(&value)
	if err == sql.ErrNoRows {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("get metadata %q: %w", key, err)
	}
	return value, nil
}

// SetMetadata stores value under key, replacing any previous value.
func (s *Store) SetMetadata(key, value string) error {
	_, err := s.db.Exec(
		"INSERT INTO metadata (key, value) VALUES (?, ?) ON CONFLICT(key) DO UPDATE SET value = excluded.value",
		key, value,
	)
	if err != nil {
		return fmt.Errorf("set metadata %q: %w", key, err)
	}
	return nil
}

// checkFormat stamps a fresh database with FormatVersion and verifies an
// existing one satisfies formatConstraint.
func (s *Store) checkFormat() error {
	stored, err := s.GetMetadata("format_version")
	if err != nil {
		return err
	}
	if stored == "" {
		return s.SetMetadata("format_version", FormatVersion)
	}
	return CompatibleFormat(stored)
}

// CompatibleFormat reports, as an error wrapping ErrIncompatibleFormat,
// whether version can be read by this package.
func CompatibleFormat(version string) error {
	v, err := semver.NewVersion(version)
	if err != nil {
		return fmt.Errorf("%w: unparsable version %q", ErrIncompatibleFormat, version)
	}
	c, err := semver.NewConstraint(formatConstraint)
	if err != nil {
		return err
	}
	if !c.Check(v) {
		return fmt.Errorf("%w: database has %s, want %s", ErrIncompatibleFormat, version, formatConstraint)
	}
	return nil
}
