package resolve

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"regexp"
	"strings"
	"time"
)

const (
	UnknownCommit          = "unknown-commit"
	DefaultRevisionTimeout = 2 * time.Second
)

var (
	ErrNotCheckout     = errors.New("repository has no version control metadata")
	ErrInvalidRevision = errors.New("revision query returned an invalid id")
	revisionPattern    = regexp.MustCompile(`^[0-9a-f]{40}([0-9a-f]{24})?$`)
)

// CommandRunner runs a read-only command in dir and returns its stdout.
type CommandRunner func(ctx context.Context, dir string, name string, args ...string) ([]byte, error)

type Revision struct {
	ID       string
	Resolved bool
	Err      error
}

type RevisionResolver struct {
	Timeout time.Duration
	Run     CommandRunner
}

// Resolve returns the current revision of root or the UnknownCommit sentinel.
func (resolver RevisionResolver) Resolve(ctx context.Context, root string) Revision {
	if ctx == nil {
		ctx = context.Background()
	}
	if _, err := os.Stat(filepath.Join(root, ".git")); err != nil {
		return unknownRevision(ErrNotCheckout)
	}
	timeout := resolver.Timeout
	if timeout <= 0 {
		timeout = DefaultRevisionTimeout
	}
	run := resolver.Run
	if run == nil {
		run = runCommand
	}

	queryCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	output, err := run(queryCtx, root, "git", "-C", root, "rev-parse", "HEAD")
	if queryCtx.Err() != nil {
		return unknownRevision(fmt.Errorf("revision query: %w", queryCtx.Err()))
	}
	if err != nil {
		return unknownRevision(fmt.Errorf("revision query: %w", err))
	}
	id := strings.ToLower(strings.TrimSpace(string(output)))
	if !revisionPattern.MatchString(id) {
		return unknownRevision(ErrInvalidRevision)
	}
	return Revision{ID: id, Resolved: true}
}

func unknownRevision(err error) Revision {
	return Revision{ID: UnknownCommit, Err: err}
}

func runCommand(ctx context.Context, dir string, name string, args ...string) ([]byte, error) {
	// #nosec G204 -- fixed read-only git query; arguments are not user controlled beyond the repository root.
	command := exec.CommandContext(ctx, name, args...)
	command.Dir = dir
	command.Env = append(os.Environ(), "GIT_OPTIONAL_LOCKS=0")
	output, err := command.Output()
	if err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			return nil, fmt.Errorf("%w: %s", err, strings.TrimSpace(string(exitErr.Stderr)))
		}
		return nil, err
	}
	return output, nil
}
