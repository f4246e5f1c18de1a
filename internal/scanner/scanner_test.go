package scanner

import (
	"context"
	"os"
	"path/filepath"
	"sort"
	"testing"

	"github.com/hyperjump/kensaku/internal/extract"
	"github.com/hyperjump/kensaku/internal/models"
	"github.com/hyperjump/kensaku/pkg/searcherr"
)

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}
}

func corpusPaths(c models.Corpus) []string {
	out := make([]string, len(c))
	for i, it := range c {
		out[i] = it.Path
	}
	return out
}

func equalStrings(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func TestScan_nestedAndHidden(t *testing.T) {
	root := t.TempDir()
	writeFile(t, filepath.Join(root, "a.txt"), "alpha")
	writeFile(t, filepath.Join(root, ".hidden"), "secret")
	writeFile(t, filepath.Join(root, "sub", "b.txt"), "beta")
	writeFile(t, filepath.Join(root, "sub", "deeper", "c.md"), "gamma")
	writeFile(t, filepath.Join(root, ".git", "x"), "object")
	writeFile(t, filepath.Join(root, "sub", ".cache", "y"), "cached")

	res, err := New().Scan(context.Background(), root)
	if err != nil {
		t.Fatalf("Scan: %v", err)
	}
	want := []string{
		filepath.Join(root, "a.txt"),
		filepath.Join(root, "sub", "b.txt"),
		filepath.Join(root, "sub", "deeper", "c.md"),
	}
	if got := corpusPaths(res.Corpus); !equalStrings(got, want) {
		t.Errorf("paths = %v, want %v", got, want)
	}
	if res.Corpus[0].Content != "alpha" || res.Corpus[2].Content != "gamma" {
		t.Errorf("unexpected contents: %+v", res.Corpus)
	}
	for _, it := range res.Corpus {
		if it.Embedded() {
			t.Errorf("%s should not carry an embedding after scan", it.Path)
		}
	}
	if len(res.Skipped) != 0 {
		t.Errorf("hidden entries are not diagnostics, got %+v", res.Skipped)
	}
}

func TestScan_sortedByPath(t *testing.T) {
	root := t.TempDir()
	for _, name := range []string{"z.txt", "a-c.txt", "m.txt", filepath.Join("a", "b.txt"), "B.txt"} {
		writeFile(t, filepath.Join(root, name), name)
	}
	res, err := New().Scan(context.Background(), root)
	if err != nil {
		t.Fatal(err)
	}
	got := corpusPaths(res.Corpus)
	if !sort.StringsAreSorted(got) {
		t.Errorf("corpus not sorted by path: %v", got)
	}
	if len(got) != 5 {
		t.Errorf("want 5 files, got %d", len(got))
	}
}

func TestScan_rootNotDirectory(t *testing.T) {
	dir := t.TempDir()
	file := filepath.Join(dir, "file.txt")
	writeFile(t, file, "content")

	for _, root := range []string{file, filepath.Join(dir, "missing")} {
		res, err := New().Scan(context.Background(), root)
		if err != nil {
			t.Fatalf("Scan(%s): %v", root, err)
		}
		if len(res.Corpus) != 0 || len(res.Skipped) != 0 {
			t.Errorf("Scan(%s) should be empty, got %+v", root, res)
		}
	}
}

func TestScan_emptyDirectory(t *testing.T) {
	res, err := New().Scan(context.Background(), t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	if res.Corpus == nil || len(res.Corpus) != 0 {
		t.Errorf("empty dir should give an empty, non-nil corpus: %#v", res.Corpus)
	}
}

func TestScan_skipsUndecodable(t *testing.T) {
	root := t.TempDir()
	writeFile(t, filepath.Join(root, "good.txt"), "fine")
	writeFile(t, filepath.Join(root, "bad.bin"), "\xff\xfe\x00garbage")
	writeFile(t, filepath.Join(root, "latin1.txt"), "caf\xe9")

	res, err := New().Scan(context.Background(), root)
	if err != nil {
		t.Fatal(err)
	}
	if got := corpusPaths(res.Corpus); !equalStrings(got, []string{filepath.Join(root, "good.txt")}) {
		t.Errorf("paths = %v", got)
	}
	if len(res.Skipped) != 2 {
		t.Fatalf("want 2 diagnostics, got %+v", res.Skipped)
	}
	for _, d := range res.Skipped {
		if d.Reason != ReasonUndecodable {
			t.Errorf("%s: reason = %q", d.Path, d.Reason)
		}
		if !searcherr.HasCode(d.Err, searcherr.CodeScanDecodeInvalid) {
			t.Errorf("%s: code = %q", d.Path, searcherr.CodeOf(d.Err))
		}
	}
}

func TestScan_skipsUnreadable(t *testing.T) {
	if os.Geteuid() == 0 {
		t.Skip("root can read files regardless of permissions")
	}
	root := t.TempDir()
	writeFile(t, filepath.Join(root, "open.txt"), "ok")
	locked := filepath.Join(root, "locked.txt")
	writeFile(t, locked, "no")
	if err := os.Chmod(locked, 0); err != nil {
		t.Fatal(err)
	}

	res, err := New().Scan(context.Background(), root)
	if err != nil {
		t.Fatal(err)
	}
	if len(res.Corpus) != 1 || len(res.Skipped) != 1 {
		t.Fatalf("corpus=%v skipped=%+v", corpusPaths(res.Corpus), res.Skipped)
	}
	if res.Skipped[0].Reason != ReasonUnreadable || !searcherr.HasCode(res.Skipped[0].Err, searcherr.CodeScanIOFailure) {
		t.Errorf("unexpected diagnostic: %+v", res.Skipped[0])
	}
}

func TestScan_fileRemovedBeforeRead(t *testing.T) {
	root := t.TempDir()
	writeFile(t, filepath.Join(root, "a.txt"), "stays")
	gone := filepath.Join(root, "b.txt")
	writeFile(t, gone, "vanishes")
	writeFile(t, filepath.Join(root, "c.txt"), "stays too")

	s := New(WithWorkers(4))
	s.readBytes = func(path string) ([]byte, error) {
		if path == gone {
			if err := os.Remove(path); err != nil {
				return nil, err
			}
		}
		return os.ReadFile(path)
	}
	res, err := s.Scan(context.Background(), root)
	if err != nil {
		t.Fatal(err)
	}
	want := []string{filepath.Join(root, "a.txt"), filepath.Join(root, "c.txt")}
	if got := corpusPaths(res.Corpus); !equalStrings(got, want) {
		t.Errorf("paths = %v, want %v", got, want)
	}
	if len(res.Skipped) != 1 {
		t.Fatalf("skipped = %+v", res.Skipped)
	}
	d := res.Skipped[0]
	if d.Path != gone || d.Reason != ReasonUnreadable || !searcherr.HasCode(d.Err, searcherr.CodeScanIOFailure) {
		t.Errorf("unexpected diagnostic: %+v", d)
	}
}

func TestScan_symlinkCycle(t *testing.T) {
	root := t.TempDir()
	writeFile(t, filepath.Join(root, "sub", "f.txt"), "inside")
	if err := os.Symlink(root, filepath.Join(root, "sub", "loop")); err != nil {
		t.Skipf("symlinks unsupported: %v", err)
	}

	res, err := New().Scan(context.Background(), root)
	if err != nil {
		t.Fatal(err)
	}
	if got := corpusPaths(res.Corpus); !equalStrings(got, []string{filepath.Join(root, "sub", "f.txt")}) {
		t.Errorf("paths = %v", got)
	}
	if len(res.Skipped) != 1 || res.Skipped[0].Reason != ReasonSymlinkCycle {
		t.Errorf("want one cycle diagnostic, got %+v", res.Skipped)
	}
}

func TestScan_followsSymlinkedFile(t *testing.T) {
	root := t.TempDir()
	outside := t.TempDir()
	writeFile(t, filepath.Join(outside, "real.txt"), "linked")
	if err := os.Symlink(filepath.Join(outside, "real.txt"), filepath.Join(root, "link.txt")); err != nil {
		t.Skipf("symlinks unsupported: %v", err)
	}
	if err := os.Symlink(filepath.Join(outside, "gone.txt"), filepath.Join(root, "broken.txt")); err != nil {
		t.Fatal(err)
	}

	res, err := New().Scan(context.Background(), root)
	if err != nil {
		t.Fatal(err)
	}
	if len(res.Corpus) != 1 || res.Corpus[0].Content != "linked" {
		t.Errorf("corpus = %+v", res.Corpus)
	}
	if len(res.Skipped) != 1 || res.Skipped[0].Reason != ReasonUnreadable {
		t.Errorf("broken link should be a diagnostic: %+v", res.Skipped)
	}
}

func TestScan_parallelMatchesSequential(t *testing.T) {
	root := t.TempDir()
	for i := 0; i < 40; i++ {
		writeFile(t, filepath.Join(root, string(rune('a'+i%7)), filepath.Base(t.Name())+string(rune('A'+i))+".txt"), "file body")
	}
	seq, err := New(WithWorkers(1)).Scan(context.Background(), root)
	if err != nil {
		t.Fatal(err)
	}
	par, err := New(WithWorkers(8)).Scan(context.Background(), root)
	if err != nil {
		t.Fatal(err)
	}
	if !equalStrings(corpusPaths(seq.Corpus), corpusPaths(par.Corpus)) {
		t.Error("parallel scan order differs from sequential scan")
	}
	if len(par.Corpus) != 40 {
		t.Errorf("want 40 files, got %d", len(par.Corpus))
	}
}

func TestScan_cancelledContext(t *testing.T) {
	root := t.TempDir()
	writeFile(t, filepath.Join(root, "a.txt"), "a")
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := New().Scan(ctx, root); err == nil {
		t.Error("expected context error")
	}
}

func TestScan_withDocumentExtractor(t *testing.T) {
	root := t.TempDir()
	writeFile(t, filepath.Join(root, "notes.txt"), "plain notes")
	writeFile(t, filepath.Join(root, "broken.pdf"), "%PDF-not really")

	res, err := New(WithExtractor(extract.NewExtractor(true))).Scan(context.Background(), root)
	if err != nil {
		t.Fatal(err)
	}
	if len(res.Corpus) != 1 || res.Corpus[0].Content != "plain notes" {
		t.Errorf("corpus = %+v", res.Corpus)
	}
	if len(res.Skipped) != 1 || res.Skipped[0].Reason != ReasonUndecodable {
		t.Errorf("broken pdf should be undecodable: %+v", res.Skipped)
	}
}

func TestIsHidden(t *testing.T) {
	for name, want := range map[string]bool{".git": true, ".": true, "a.txt": false, "dir": false} {
		if IsHidden(name) != want {
			t.Errorf("IsHidden(%q) = %v", name, !want)
		}
	}
}
