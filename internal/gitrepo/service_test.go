package gitrepo

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
)

func TestArticleHistoryLifecycle(t *testing.T) {
	tempDir := t.TempDir()
	svc := New(tempDir)

	first, err := svc.Commit("article-1", Revision{Title: "VPN", Content: "# Setup\n\nInstall the client."}, "Avery Admin", "Create article")
	if err != nil {
		t.Fatalf("Commit() error = %v", err)
	}
	if len(first.Hash) != 7 || first.Author != "Avery Admin" || first.Message != "Create article" {
		t.Fatalf("unexpected first commit: %+v", first)
	}
	if _, err := os.Stat(filepath.Join(tempDir, "article-1", contentFile)); err != nil {
		t.Fatalf("expected %s in worktree: %v", contentFile, err)
	}

	second, err := svc.Commit("article-1", Revision{Title: "VPN", Content: "# Setup\n\nInstall the client, then log in."}, "Blake", "")
	if err != nil {
		t.Fatalf("Commit() error = %v", err)
	}
	if second.Hash == first.Hash || second.Message != "Update VPN" {
		t.Fatalf("unexpected second commit: %+v", second)
	}

	history, err := svc.History("article-1", 0)
	if err != nil {
		t.Fatalf("History() error = %v", err)
	}
	if len(history) != 2 || history[0].Hash != second.Hash || history[1].Hash != first.Hash {
		t.Fatalf("expected newest-first history, got %+v", history)
	}

	limited, err := svc.History("article-1", 1)
	if err != nil || len(limited) != 1 {
		t.Fatalf("expected one entry with limit, got %+v, %v", limited, err)
	}

	old, commit, err := svc.RevisionAt("article-1", first.Hash)
	if err != nil {
		t.Fatalf("RevisionAt() error = %v", err)
	}
	if old.Content != "# Setup\n\nInstall the client." || commit.Hash != first.Hash {
		t.Fatalf("unexpected revision: %+v %+v", old, commit)
	}
}

func TestCommitUnchangedContentReturnsHead(t *testing.T) {
	svc := New(t.TempDir())
	rev := Revision{Title: "Same", Content: "body"}

	first, err := svc.Commit("article-2", rev, "Avery", "Create")
	if err != nil {
		t.Fatalf("Commit() error = %v", err)
	}
	again, err := svc.Commit("article-2", rev, "Avery", "Save again")
	if err != nil {
		t.Fatalf("Commit() error = %v", err)
	}
	if again.Hash != first.Hash {
		t.Fatalf("expected head %s to be reused, got %s", first.Hash, again.Hash)
	}
	history, _ := svc.History("article-2", 0)
	if len(history) != 1 {
		t.Fatalf("expected a single revision, got %d", len(history))
	}
}

func TestMissingArticleAndRevision(t *testing.T) {
	svc := New(t.TempDir())

	history, err := svc.History("never-saved", 10)
	if err != nil || len(history) != 0 {
		t.Fatalf("expected empty history, got %+v, %v", history, err)
	}
	if _, _, err := svc.RevisionAt("never-saved", "abcdef1"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound for missing repo, got %v", err)
	}

	if _, err := svc.Commit("article-3", Revision{Title: "T", Content: "C"}, "Avery", "Create"); err != nil {
		t.Fatalf("Commit() error = %v", err)
	}
	for _, hash := range []string{"zzzzzzz", "", "ab", strings.Repeat("0", 40)} {
		if _, _, err := svc.RevisionAt("article-3", hash); !errors.Is(err, ErrNotFound) {
			t.Fatalf("RevisionAt(%q) expected ErrNotFound, got %v", hash, err)
		}
	}
}

func TestRejectsPathLikeIDs(t *testing.T) {
	svc := New(t.TempDir())
	for _, id := range []string{"", "..", "../escape", `a\b`} {
		if _, err := svc.Commit(id, Revision{Title: "x"}, "Avery", "x"); err == nil {
			t.Fatalf("Commit(%q) expected an error", id)
		}
	}
}

func TestRemove(t *testing.T) {
	tempDir := t.TempDir()
	svc := New(tempDir)
	if _, err := svc.Commit("article-4", Revision{Title: "T", Content: "C"}, "Avery", "Create"); err != nil {
		t.Fatalf("Commit() error = %v", err)
	}
	if err := svc.Remove("article-4"); err != nil {
		t.Fatalf("Remove() error = %v", err)
	}
	if _, err := os.Stat(filepath.Join(tempDir, "article-4")); !os.IsNotExist(err) {
		t.Fatalf("expected repo directory to be gone, got %v", err)
	}
	if err := svc.Remove("article-4"); err != nil {
		t.Fatalf("second Remove() error = %v", err)
	}
}

func TestConcurrentCommitsSameArticle(t *testing.T) {
	svc := New(t.TempDir())
	if _, err := svc.Commit("article-5", Revision{Title: "Doc", Content: "v0"}, "Avery", "Create"); err != nil {
		t.Fatalf("Commit() error = %v", err)
	}

	const writers = 12
	var wg sync.WaitGroup
	errCh := make(chan error, writers)
	for i := 0; i < writers; i++ {
		wg.Add(1)
		go func(idx int) {
			defer wg.Done()
			rev := Revision{Title: "Doc", Content: fmt.Sprintf("v%02d", idx+1)}
			if _, err := svc.Commit("article-5", rev, "Avery", fmt.Sprintf("Commit %02d", idx)); err != nil {
				errCh <- err
			}
		}(i)
	}
	wg.Wait()
	close(errCh)
	for err := range errCh {
		t.Fatalf("concurrent Commit() error = %v", err)
	}

	history, err := svc.History("article-5", 100)
	if err != nil {
		t.Fatalf("History() error = %v", err)
	}
	if len(history) != writers+1 {
		t.Fatalf("expected %d revisions, got %d", writers+1, len(history))
	}
}

func TestSanitizeEmail(t *testing.T) {
	cases := map[string]string{
		"Avery Admin": "avery.admin",
		"-":           "staff",
		"Ёжик":        "staff",
		"a_b":         "a.b",
	}
	for input, want := range cases {
		if got := sanitizeEmail(input); got != want {
			t.Errorf("sanitizeEmail(%q) = %q, want %q", input, got, want)
		}
	}
}
