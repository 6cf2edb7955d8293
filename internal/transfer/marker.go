// SPDX-License-Identifier: MPL-2.0

package transfer

import (
	"bufio"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"

	"github.com/hashicorp/go-multierror"

	"github.com/relaunch/relaunch/internal/manifest"
)

const (
	partialSuffix = ".part"
	markerSuffix  = ".part.version"
)

type (
	// Marker is the sidecar file pinning a partial artifact to a version.
	Marker struct {
		Path string
	}

	// Pending describes resumable state left on disk by an earlier attempt.
	Pending struct {
		Version manifest.VersionTag
		Bytes   int64
	}
)

// PartialPath returns the path bytes are appended to while downloading dest.
func PartialPath(dest string) string { return dest + partialSuffix }

// MarkerPath returns the path of the marker belonging to dest's partial file.
func MarkerPath(dest string) string { return dest + markerSuffix }

// Read returns the recorded version. A missing marker reports ok == false
// with a nil error.
func (m Marker) Read() (tag manifest.VersionTag, ok bool, err error) {
	f, err := os.Open(m.Path)
	if errors.Is(err, fs.ErrNotExist) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	defer func() { _ = f.Close() }() // read-only file handle

	sc := bufio.NewScanner(f)
	if !sc.Scan() {
		if err := sc.Err(); err != nil {
			return "", false, err
		}
		return "", true, nil
	}
	return manifest.VersionTag(strings.TrimSpace(sc.Text())), true, nil
}

// Write records tag as a single line.
func (m Marker) Write(tag manifest.VersionTag) error {
	return os.WriteFile(m.Path, []byte(tag.String()+"\n"), 0o644)
}

// Remove deletes the marker. A missing marker is not an error.
func (m Marker) Remove() error {
	return removeIfExists(m.Path)
}

// Inspect reports the resumable state for dest, if any.
func Inspect(dest string) (Pending, bool, error) {
	tag, ok, err := Marker{Path: MarkerPath(dest)}.Read()
	if err != nil {
		return Pending{}, false, fmt.Errorf("reading marker: %w", err)
	}
	if !ok {
		return Pending{}, false, nil
	}
	p := Pending{Version: tag}
	if info, err := os.Stat(PartialPath(dest)); err == nil {
		p.Bytes = info.Size()
	}
	return p, true, nil
}

// Discard removes the partial file and marker for dest. Every removal is
// attempted; failures are aggregated.
func Discard(dest string) error {
	var result *multierror.Error
	for _, p := range []string{PartialPath(dest), MarkerPath(dest)} {
		if err := removeIfExists(p); err != nil {
			result = multierror.Append(result, ioFailure("remove", p, err))
		}
	}
	return result.ErrorOrNil()
}

func removeIfExists(path string) error {
	if err := os.Remove(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return err
	}
	return nil
}
