// Package filex provides small filesystem helpers for staging asset bytes.
package filex

import (
	"fmt"
	"os"
)

// WriteTemp stages data in a scoped temporary file and returns its path
// plus a cleanup func. Cleanup is safe to call unconditionally, including
// after failures.
func WriteTemp(pattern string, data []byte) (string, func(), error) {
	f, err := os.CreateTemp("", pattern)
	if err != nil {
		return "", nil, fmt.Errorf("create temp: %w", err)
	}
	path := f.Name()
	cleanup := func() { _ = os.Remove(path) }

	if _, err := f.Write(data); err != nil {
		f.Close()
		cleanup()
		return "", nil, fmt.Errorf("write temp: %w", err)
	}
	if err := f.Close(); err != nil {
		cleanup()
		return "", nil, fmt.Errorf("close temp: %w", err)
	}
	return path, cleanup, nil
}
