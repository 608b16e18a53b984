package organizer

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"syscall"

	"engram/internal/fileutil"
)

// atomicMove renames src to dst, creating dst's parent directory on demand.
// When src and dst are on different devices, rename fails with EXDEV and the
// move falls back to copy-then-delete. On any failure
// the source file is left untouched.
func atomicMove(src, dst string) error {
	if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return fmt.Errorf("create destination directory: %w", err)
	}
	if err := os.Rename(src, dst); err == nil {
		return nil
	} else if !isCrossDevice(err) {
		return err
	}
	if err := fileutil.CopyFileVerified(src, dst); err != nil {
		return fmt.Errorf("copy across devices: %w", err)
	}
	if err := os.Remove(src); err != nil {
		return fmt.Errorf("remove source after cross-device copy: %w", err)
	}
	return nil
}

func isCrossDevice(err error) bool {
	var linkErr *os.LinkError
	return errors.As(err, &linkErr) && errors.Is(linkErr.Err, syscall.EXDEV)
}

// resolveDestination applies a conflict resolution policy against an
// already-occupied destination path.
// It never touches the filesystem beyond checking existence.
type conflictOutcome struct {
	// Path is the final destination to move into, empty when the title
	// should be skipped or sent to review instead.
	Path string
	// Skip marks the title COMPLETED with skipped=true, leaving the
	// existing file untouched.
	Skip bool
	// Review marks the title REVIEW with Path recorded as the candidate
	// destination the user will confirm or redirect.
	Review bool
}

func resolveDestination(dst string, policy string) (conflictOutcome, error) {
	if _, err := os.Stat(dst); errors.Is(err, os.ErrNotExist) {
		return conflictOutcome{Path: dst}, nil
	} else if err != nil {
		return conflictOutcome{}, fmt.Errorf("stat destination: %w", err)
	}

	switch policy {
	case "overwrite":
		return conflictOutcome{Path: dst}, nil
	case "skip":
		return conflictOutcome{Skip: true}, nil
	case "ask":
		return conflictOutcome{Review: true, Path: dst}, nil
	case "rename", "":
		candidate, err := firstFreeName(dst)
		if err != nil {
			return conflictOutcome{}, err
		}
		return conflictOutcome{Path: candidate}, nil
	default:
		return conflictOutcome{}, fmt.Errorf("unknown conflict resolution policy %q", policy)
	}
}

// firstFreeName finds the first "name (N).ext" variant of dst that doesn't
// already exist on disk.
func firstFreeName(dst string) (string, error) {
	for attempt := 2; attempt < 1000; attempt++ {
		candidate := renamedCandidate(dst, attempt)
		if _, err := os.Stat(candidate); errors.Is(err, os.ErrNotExist) {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("could not find a free renamed destination for %q", dst)
}
