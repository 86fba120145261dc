//go:build !linux

package instance

import (
	"os"
	"path/filepath"
)

// Only Linux has an abstract socket namespace, so fall back to a lock file.
func acquire(name string) (Lock, error) {
	l, err := AcquireFile(filepath.Join(os.TempDir(), "svcloop."+name+".lock"))
	if err != nil {
		return nil, err
	}
	return l, nil
}
