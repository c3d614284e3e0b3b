package credentials

import (
	"fmt"
	"os"
	"time"

	"github.com/pkg/errors"
)

const (
	lockRetries    = 50
	lockRetryDelay = 100 * time.Millisecond
	lockStaleAfter = 30 * time.Second
)

type fileLock struct {
	lockFile *os.File
	lockPath string
}

// acquireFileLock takes an exclusive lock on filePath through a sibling
// ".lock" file, so concurrent telltales processes do not interleave writes.
func acquireFileLock(filePath string) (*fileLock, error) {
	lockPath := filePath + ".lock"

	for i := 0; i < lockRetries; i++ {
		lockFile, err := os.OpenFile(lockPath, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o600)
		if err == nil {
			// PID helps when someone has to clean up by hand.
			fmt.Fprintf(lockFile, "%d", os.Getpid())
			return &fileLock{
				lockFile: lockFile,
				lockPath: lockPath,
			}, nil
		}

		if !os.IsExist(err) {
			return nil, errors.Wrap(err, "failed to acquire file lock")
		}

		if info, statErr := os.Stat(lockPath); statErr == nil &&
			time.Since(info.ModTime()) > lockStaleAfter {
			if remErr := os.Remove(lockPath); remErr != nil && !os.IsNotExist(remErr) {
				return nil, errors.Wrapf(remErr, "failed to remove stale lock file %s", lockPath)
			}
			continue
		}

		time.Sleep(lockRetryDelay)
	}

	return nil, errors.Errorf(
		"timeout waiting for file lock after %v",
		time.Duration(lockRetries)*lockRetryDelay,
	)
}

func (fl *fileLock) release() error {
	if fl.lockFile != nil {
		fl.lockFile.Close()
	}
	return os.Remove(fl.lockPath)
}
