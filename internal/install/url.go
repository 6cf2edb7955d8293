// SPDX-License-Identifier: MPL-2.0

package install

import (
	"runtime"
	"strings"

	"github.com/relaunch/relaunch/internal/manifest"
)

// ArtifactURL fills the %version, %os and %arch placeholders of template.
// A template without placeholders is returned unchanged, which suits
// sources that always serve the latest artifact from a fixed location.
func ArtifactURL(template string, tag manifest.VersionTag) string {
	return strings.NewReplacer(
		"%version", tag.String(),
		"%os", runtime.GOOS,
		"%arch", runtime.GOARCH,
	).Replace(template)
}
