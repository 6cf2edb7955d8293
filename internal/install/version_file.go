// SPDX-License-Identifier: MPL-2.0

package install

import (
	"bufio"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/relaunch/relaunch/internal/manifest"
)

// ErrVersionFile indicates the installed version record could not be read or written.
var ErrVersionFile = errors.New("installed version record")

// VersionFile is the single-line record of the installed version.
type VersionFile struct {
	Path string
}

// Read returns the recorded version. A missing file, or one whose first line
// is blank, reports present == false.
func (v VersionFile) Read() (tag manifest.VersionTag, present bool, err error) {
	f, err := os.Open(v.Path)
	if errors.Is(err, fs.ErrNotExist) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("%w: %w", ErrVersionFile, err)
	}
	defer func() { _ = f.Close() }() // read-only file handle

	sc := bufio.NewScanner(f)
	if !sc.Scan() {
		if err := sc.Err(); err != nil {
			return "", false, fmt.Errorf("%w: reading %s: %w", ErrVersionFile, v.Path, err)
		}
		return "", false, nil
	}

	line := strings.TrimSpace(sc.Text())
	if line == "" {
		return "", false, nil
	}
	return manifest.VersionTag(line), true, nil
}

// Write replaces the record with tag. The new content is written to a
// temporary file in the same directory and renamed into place.
func (v VersionFile) Write(tag manifest.VersionTag) (err error) {
	dir := filepath.Dir(v.Path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("%w: %w", ErrVersionFile, err)
	}

	tmp, err := os.CreateTemp(dir, ".version-*")
	if err != nil {
		return fmt.Errorf("%w: %w", ErrVersionFile, err)
	}
	defer func() {
		if err != nil {
			_ = os.Remove(tmp.Name())
		}
	}()

	if _, err = tmp.WriteString(tag.String() + "\n"); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("%w: writing %s: %w", ErrVersionFile, tmp.Name(), err)
	}
	if err = tmp.Close(); err != nil {
		return fmt.Errorf("%w: %w", ErrVersionFile, err)
	}
	if err = os.Chmod(tmp.Name(), 0o644); err != nil {
		return fmt.Errorf("%w: %w", ErrVersionFile, err)
	}
	if err = os.Rename(tmp.Name(), v.Path); err != nil {
		return fmt.Errorf("%w: replacing %s: %w", ErrVersionFile, v.Path, err)
	}
	return nil
}
