// SPDX-License-Identifier: MPL-2.0

package issue

import (
	"github.com/charmbracelet/glamour"
	"golang.org/x/exp/maps"
	"golang.org/x/exp/slices"
)

type Id int

const (
	ManifestUnreachableId Id = iota + 1
	CheckTimedOutId
	ManifestMalformedId
	DownloadFailedId
	DownloadInterruptedId
	ConfigLoadFailedId
	VersionFileId
	RelaunchFailedId
	PermissionDeniedId
)

type MarkdownMsg string

type HttpLink string

type Renderer interface {
	Render(in string, stylePath string) (string, error)
}

type Issue struct {
	id       Id          // ID used to lookup the issue
	slug     string      // stable name used by 'relaunch explain'
	mdMsg    MarkdownMsg // Markdown text that will be rendered
	docLinks []HttpLink
	extLinks []HttpLink // external links that might be useful for the user
}

func (i *Issue) Id() Id {
	return i.id
}

func (i *Issue) Slug() string {
	return i.slug
}

func (i *Issue) MarkdownMsg() MarkdownMsg {
	return i.mdMsg
}

func (i *Issue) DocLinks() []HttpLink {
	return slices.Clone(i.docLinks)
}

func (i *Issue) ExtLinks() []HttpLink {
	return slices.Clone(i.extLinks)
}

func (i *Issue) Render(stylePath string) (string, error) {
	extraMd := ""
	if len(i.docLinks) > 0 || len(i.extLinks) > 0 {
		extraMd += "\n\n"
		extraMd += "## See also: "
		for _, link := range i.docLinks {
			extraMd += "- [" + string(link) + "]"
		}
		for _, link := range i.extLinks {
			extraMd += "- [" + string(link) + "]"
		}
	}
	return render(string(i.mdMsg)+extraMd, stylePath)
}

var (
	render = glamour.Render

	manifestUnreachableIssue = &Issue{
		id:   ManifestUnreachableId,
		slug: "unreachable",
		mdMsg: `
# Update server not reachable!

The version manifest could not be downloaded, so we could not tell whether
a newer version exists.

## Things you can try:
- Check your network connection and proxy settings
- Verify the manifest URL in your configuration:
~~~
$ relaunch config show
~~~
- Retry the check with more attempts:
~~~
$ RELAUNCH_CHECK_RETRIES=3 relaunch check
~~~`,
		extLinks: []HttpLink{"https://developer.mozilla.org/en-US/docs/Web/HTTP/Status"},
	}

	checkTimedOutIssue = &Issue{
		id:   CheckTimedOutId,
		slug: "timeout",
		mdMsg: `
# Update check timed out!

The update server did not answer within the allowed time. Each retry waits
longer than the previous one.

## Things you can try:
- Retry; the next attempt gets a longer timeout
- Raise the base interval:
~~~cue
check: base_interval: "15s"
~~~
- Start the installed version without updating:
~~~
$ relaunch run --skip-check
~~~`,
	}

	manifestMalformedIssue = &Issue{
		id:   ManifestMalformedId,
		slug: "malformed",
		mdMsg: `
# Version manifest is malformed!

The manifest was downloaded but does not contain a valid version block.
A valid manifest contains a ` + "`[version]`" + ` block:

~~~
[version]
2.4.1
2.4.0
2.3.9
[/version]
~~~

## Things you can try:
- Make sure manifest_url points to the raw file, not an HTML page around it
- Ask the publisher to fix the manifest; retrying will not help`,
	}

	downloadFailedIssue = &Issue{
		id:   DownloadFailedId,
		slug: "download",
		mdMsg: `
# Download failed!

The new version could not be downloaded completely. The bytes received so far
are kept and the next attempt resumes where this one stopped.

## Things you can try:
- Run the update again to resume:
~~~
$ relaunch run
~~~
- Check the artifact URL template (%version, %os and %arch are substituted)
- Discard the partial download and start over:
~~~
$ relaunch clean
~~~`,
	}

	downloadInterruptedIssue = &Issue{
		id:   DownloadInterruptedId,
		slug: "interrupted",
		mdMsg: `
# Download interrupted!

The download was cancelled. The partial file and its version marker were
kept, so the next run for the same version resumes instead of starting over.

## Things you can try:
- Resume the update:
~~~
$ relaunch run
~~~
- Inspect what is pending:
~~~
$ relaunch status
~~~`,
	}

	configLoadFailedIssue = &Issue{
		id:   ConfigLoadFailedId,
		slug: "config",
		mdMsg: `
# Failed to load configuration!

The configuration file could not be loaded or did not match the schema.

## Things you can try:
- Check the CUE syntax of your config file
- Create a fresh default configuration:
~~~
$ relaunch config init
~~~
- Remember that RELAUNCH_* environment variables override the file`,
	}

	versionFileIssue = &Issue{
		id:   VersionFileId,
		slug: "version-file",
		mdMsg: `
# Installed version record unavailable!

The file recording the installed version could not be read or written.

## Things you can try:
- Check that the install directory exists and is writable
- Delete the record to force a fresh install on the next run`,
	}

	relaunchFailedIssue = &Issue{
		id:   RelaunchFailedId,
		slug: "relaunch",
		mdMsg: `
# Failed to start the updated program!

The update was installed but the relaunch command could not be started.

## Things you can try:
- Verify relaunch.command in your configuration; $ARTIFACT expands to the
  installed file
- Make sure the program named by the command is on your PATH`,
	}

	permissionDeniedIssue = &Issue{
		id:   PermissionDeniedId,
		slug: "permission",
		mdMsg: `
# Permission denied!

Relaunch was not allowed to write into the install directory.

## Things you can try:
- Check the permissions of the install directory
- Point install.dir at a directory you own`,
	}

	issues = map[Id]*Issue{
		manifestUnreachableIssue.Id(): manifestUnreachableIssue,
		checkTimedOutIssue.Id():       checkTimedOutIssue,
		manifestMalformedIssue.Id():   manifestMalformedIssue,
		downloadFailedIssue.Id():      downloadFailedIssue,
		downloadInterruptedIssue.Id(): downloadInterruptedIssue,
		configLoadFailedIssue.Id():    configLoadFailedIssue,
		versionFileIssue.Id():         versionFileIssue,
		relaunchFailedIssue.Id():      relaunchFailedIssue,
		permissionDeniedIssue.Id():    permissionDeniedIssue,
	}
)

// Values returns every issue ordered by Id.
func Values() []*Issue {
	ids := make([]Id, 0, len(issues))
	for _, id := range maps.Keys(issues) {
		ids = append(ids, id)
	}
	slices.Sort(ids)

	out := make([]*Issue, 0, len(ids))
	for _, id := range ids {
		out = append(out, issues[id])
	}
	return out
}

func Get(id Id) *Issue {
	return issues[id]
}

// Lookup finds an issue by its slug.
func Lookup(slug string) *Issue {
	for _, i := range issues {
		if i.slug == slug {
			return i
		}
	}
	return nil
}
