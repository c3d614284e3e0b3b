package credentials

import (
	"os"
	"path/filepath"

	homedir "github.com/mitchellh/go-homedir"
	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"

	"github.com/telltales/telltales-cli/logging"
)

const (
	configSubdir = ".config/telltales"
	configFile   = "credentials.yaml"
)

// DefaultPath returns ~/.config/telltales/credentials.yaml.
func DefaultPath() (string, error) {
	home, err := homedir.Dir()
	if err != nil {
		return "", errors.Wrap(err, "unable to locate the home directory")
	}
	return filepath.Join(home, configSubdir, configFile), nil
}

// Store reads and writes credentials in a single YAML file.
type Store struct {
	path string
}

// NewStore returns a store for path; a leading "~" is expanded. An empty path
// selects DefaultPath.
func NewStore(path string) (*Store, error) {
	if path == "" {
		p, err := DefaultPath()
		if err != nil {
			return nil, err
		}
		return &Store{path: p}, nil
	}

	expanded, err := homedir.Expand(path)
	if err != nil {
		return nil, errors.Wrapf(err, "expanding credentials path %s", path)
	}
	return &Store{path: expanded}, nil
}

// Path is the location of the credentials file.
func (s *Store) Path() string {
	return s.path
}

// Load reads the credentials file. The boolean is false when the file does not exist.
func (s *Store) Load() (Credentials, bool, error) {
	var creds Credentials

	data, err := os.ReadFile(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			return creds, false, nil
		}
		return creds, false, errors.Wrapf(err, "failed to read configuration file %s", s.path)
	}

	if err := yaml.Unmarshal(data, &creds); err != nil {
		return creds, false, errors.Wrapf(err, "failed to parse configuration file %s", s.path)
	}

	logging.Logger(nil).Debugf("loaded credentials from %s: %s", s.path, creds)
	return creds, true, nil
}

// Save writes creds atomically (temp file + rename) while holding the file lock.
func (s *Store) Save(creds Credentials) error {
	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return errors.Wrapf(err, "failed to create configuration directory %s", dir)
	}

	data, err := yaml.Marshal(creds)
	if err != nil {
		return errors.Wrap(err, "failed to serialize configuration")
	}

	lock, err := acquireFileLock(s.path)
	if err != nil {
		return errors.Wrap(err, "failed to acquire lock")
	}
	defer func() {
		if releaseErr := lock.release(); releaseErr != nil {
			logging.Logger(nil).WithError(releaseErr).Warn("failed to release credentials lock")
		}
	}()

	tempFile := s.path + ".tmp"
	if err := os.WriteFile(tempFile, data, 0o600); err != nil {
		return errors.Wrapf(err, "failed to write configuration file %s", tempFile)
	}

	if err := os.Rename(tempFile, s.path); err != nil {
		if removeErr := os.Remove(tempFile); removeErr != nil {
			return errors.Wrapf(err, "failed to rename temp file (cleanup also failed: %v)", removeErr)
		}
		return errors.Wrapf(err, "failed to write configuration file %s", s.path)
	}

	logging.Logger(nil).Debugf("saved credentials to %s", s.path)
	return nil
}
