package fsx

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"
)

var ErrLockTimeout = errors.New("ledger lock timeout")

// fileLock is an O_EXCL sidecar lock shared by every process appending to
// the same ledger. Locks older than staleAfter are reclaimed.
type fileLock struct {
	path       string
	timeout    time.Duration
	retry      time.Duration
	staleAfter time.Duration
}

func newFileLock(target string) fileLock {
	return fileLock{
		path:       target + ".lock",
		timeout:    30 * time.Second,
		retry:      10 * time.Millisecond,
		staleAfter: 2 * time.Minute,
	}
}

func (lock fileLock) do(fn func() error) error {
	deadline := time.Now().Add(lock.timeout)
	for {
		// #nosec G304 -- lock path is derived from a validated ledger path.
		handle, err := os.OpenFile(lock.path, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o600)
		if err == nil {
			_ = handle.Close()
			defer func() {
				_ = os.Remove(lock.path)
			}()
			return fn()
		}
		if !lock.held(err) {
			return fmt.Errorf("acquire ledger lock: %w", err)
		}
		if lock.stale(time.Now()) {
			_ = os.Remove(lock.path)
			continue
		}
		if time.Now().After(deadline) {
			return fmt.Errorf("%w: %s", ErrLockTimeout, lock.path)
		}
		time.Sleep(lock.retry)
	}
}

func (lock fileLock) held(acquireErr error) bool {
	if os.IsExist(acquireErr) {
		return true
	}
	if !os.IsPermission(acquireErr) {
		return false
	}
	_, statErr := os.Stat(lock.path)
	return statErr == nil
}

func (lock fileLock) stale(now time.Time) bool {
	info, err := os.Stat(lock.path)
	if err != nil {
		return false
	}
	return now.Sub(info.ModTime()) > lock.staleAfter
}

// AppendJSONLine encodes record as one compact JSON line and appends it to a
// JSONL ledger under a cross-process lock. The file is fsynced before return.
func AppendJSONLine(path string, record any, mode os.FileMode) error {
	line, err := json.Marshal(record)
	if err != nil {
		return fmt.Errorf("encode ledger record: %w", err)
	}
	return AppendLineLocked(path, line, mode)
}

// AppendLineLocked appends line plus a trailing newline. line must not
// contain a newline of its own.
func AppendLineLocked(path string, line []byte, mode os.FileMode) error {
	cleanPath, err := ledgerPath(path)
	if err != nil {
		return err
	}
	if strings.ContainsRune(string(line), '\n') {
		return fmt.Errorf("ledger record must be a single line")
	}
	parent := filepath.Dir(cleanPath)
	if err := os.MkdirAll(parent, 0o750); err != nil {
		return fmt.Errorf("create ledger directory: %w", err)
	}
	payload := make([]byte, 0, len(line)+1)
	payload = append(payload, line...)
	payload = append(payload, '\n')

	err = newFileLock(cleanPath).do(func() error {
		// #nosec G304 -- ledger path is validated local relative or absolute.
		file, openErr := os.OpenFile(cleanPath, os.O_CREATE|os.O_APPEND|os.O_WRONLY, mode)
		if openErr != nil {
			return fmt.Errorf("open ledger: %w", openErr)
		}
		defer func() {
			_ = file.Close()
		}()
		if _, writeErr := file.Write(payload); writeErr != nil {
			return fmt.Errorf("append ledger record: %w", writeErr)
		}
		return file.Sync()
	})
	if err != nil {
		return err
	}
	syncDirectory(parent)
	return nil
}

// ledgerPath accepts local relative paths and absolute paths; relative paths
// that climb out of the working directory are rejected.
func ledgerPath(path string) (string, error) {
	cleanPath := filepath.Clean(path)
	if filepath.IsLocal(cleanPath) || filepath.IsAbs(cleanPath) {
		return cleanPath, nil
	}
	return "", fmt.Errorf("ledger path must be local relative or absolute: %s", path)
}
