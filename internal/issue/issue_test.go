// SPDX-License-Identifier: MPL-2.0

package issue

import (
	"strings"
	"testing"
)

func allIds() []Id {
	return []Id{
		ManifestUnreachableId,
		CheckTimedOutId,
		ManifestMalformedId,
		DownloadFailedId,
		DownloadInterruptedId,
		ConfigLoadFailedId,
		VersionFileId,
		RelaunchFailedId,
		PermissionDeniedId,
	}
}

func TestId_Constants(t *testing.T) {
	seen := make(map[Id]bool)
	for _, id := range allIds() {
		if seen[id] {
			t.Errorf("duplicate ID: %d", id)
		}
		seen[id] = true
	}

	// Verify IDs start at 1 (iota + 1)
	if ManifestUnreachableId != 1 {
		t.Errorf("ManifestUnreachableId = %d, want 1", ManifestUnreachableId)
	}
}

func TestIssue_Id(t *testing.T) {
	issue := Get(ManifestUnreachableId)
	if issue == nil {
		t.Fatal("Get(ManifestUnreachableId) returned nil")
	}

	if issue.Id() != ManifestUnreachableId {
		t.Errorf("issue.Id() = %d, want %d", issue.Id(), ManifestUnreachableId)
	}
}

func TestIssue_ExtLinks(t *testing.T) {
	issue := Get(ManifestUnreachableId)
	if issue == nil {
		t.Fatal("Get(ManifestUnreachableId) returned nil")
	}

	links := issue.ExtLinks()
	if len(links) == 0 {
		t.Fatal("expected external links")
	}

	// Modifying the returned slice should not affect the original
	original := links[0]
	links[0] = "modified"
	if issue.ExtLinks()[0] != original {
		t.Error("ExtLinks() should return a clone")
	}
}

func TestIssue_Render(t *testing.T) {
	originalRender := render
	defer func() { render = originalRender }()

	render = func(in string, stylePath string) (string, error) {
		return in, nil
	}

	rendered, err := Get(ManifestMalformedId).Render("")
	if err != nil {
		t.Fatalf("Render() returned error: %v", err)
	}

	if !strings.Contains(rendered, "[version]") {
		t.Error("Render() output should show the expected manifest block")
	}
	if strings.Contains(rendered, "See also") {
		t.Error("issue without links should not render 'See also'")
	}

	rendered, err = Get(ManifestUnreachableId).Render("")
	if err != nil {
		t.Fatalf("Render() returned error: %v", err)
	}
	if !strings.Contains(rendered, "See also") {
		t.Error("issue with links should render 'See also'")
	}
}

func TestIssue_Render_Glamour(t *testing.T) {
	rendered, err := Get(CheckTimedOutId).Render("notty")
	if err != nil {
		t.Fatalf("Render() returned error: %v", err)
	}
	if !strings.Contains(rendered, "Update check timed out") {
		t.Errorf("rendered output missing heading:\n%s", rendered)
	}
}

func TestGet(t *testing.T) {
	tests := []struct {
		id       Id
		wantNil  bool
		contains string
	}{
		{ManifestUnreachableId, false, "Update server not reachable"},
		{CheckTimedOutId, false, "Update check timed out"},
		{ManifestMalformedId, false, "Version manifest is malformed"},
		{DownloadFailedId, false, "Download failed"},
		{DownloadInterruptedId, false, "Download interrupted"},
		{ConfigLoadFailedId, false, "Failed to load configuration"},
		{VersionFileId, false, "Installed version record unavailable"},
		{RelaunchFailedId, false, "Failed to start the updated program"},
		{PermissionDeniedId, false, "Permission denied"},
		{Id(9999), true, "unknown"},
	}

	for _, tt := range tests {
		t.Run(tt.contains, func(t *testing.T) {
			issue := Get(tt.id)

			if tt.wantNil {
				if issue != nil {
					t.Errorf("Get(%d) should return nil", tt.id)
				}
				return
			}

			if issue == nil {
				t.Fatalf("Get(%d) returned nil", tt.id)
			}

			if !strings.Contains(string(issue.MarkdownMsg()), tt.contains) {
				t.Errorf("Get(%d).MarkdownMsg() should contain '%s'", tt.id, tt.contains)
			}
		})
	}
}

func TestValues(t *testing.T) {
	issues := Values()

	if len(issues) != len(allIds()) {
		t.Fatalf("Values() returned %d issues, want %d", len(issues), len(allIds()))
	}

	for i, issue := range issues {
		if issue.Id() != Id(i+1) {
			t.Errorf("Values()[%d].Id() = %d, want ordered ids", i, issue.Id())
		}
	}
}

func TestLookup(t *testing.T) {
	seen := make(map[string]bool)
	for _, issue := range Values() {
		if issue.Slug() == "" {
			t.Errorf("issue %d has no slug", issue.Id())
			continue
		}
		if seen[issue.Slug()] {
			t.Errorf("duplicate slug %q", issue.Slug())
		}
		seen[issue.Slug()] = true

		if got := Lookup(issue.Slug()); got != issue {
			t.Errorf("Lookup(%q) returned %v", issue.Slug(), got)
		}
	}

	if Lookup("nope") != nil {
		t.Error("Lookup of unknown slug should return nil")
	}
}

func TestAllIssuesHaveContent(t *testing.T) {
	for _, issue := range Values() {
		if issue.MarkdownMsg() == "" {
			t.Errorf("Issue %d has empty MarkdownMsg", issue.Id())
		}
	}
}
