package scanner

import (
	"context"
	"os"
	"path/filepath"
	"strings"

	"github.com/hyperjump/kensaku/internal/models"
	"github.com/hyperjump/kensaku/pkg/searcherr"
)

// walker collects file paths depth-first. Directories are identified by their
// resolved real path so a symlink loop is entered at most once.
type walker struct {
	visited map[string]bool
	files   []string
	skipped []models.ScanDiagnostic
}

func (w *walker) walk(ctx context.Context, dir string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	real, err := filepath.EvalSymlinks(dir)
	if err != nil {
		w.skip(dir, ReasonUnreadable, searcherr.Wrap(err, searcherr.CodeScanIOFailure, "resolve directory", searcherr.FieldPath(dir)))
		return nil
	}
	if w.visited[real] {
		w.skip(dir, ReasonSymlinkCycle, searcherr.New(searcherr.CodeScanIOFailure, "directory already visited",
			searcherr.FieldPath(dir), searcherr.Field("real_path", real)))
		return nil
	}
	w.visited[real] = true

	entries, err := os.ReadDir(dir)
	if err != nil {
		w.skip(dir, ReasonUnreadable, searcherr.Wrap(err, searcherr.CodeScanIOFailure, "read directory", searcherr.FieldPath(dir)))
		return nil
	}
	for _, entry := range entries {
		if IsHidden(entry.Name()) {
			continue
		}
		path := filepath.Join(dir, entry.Name())
		mode := entry.Type()
		if mode&os.ModeSymlink != 0 {
			info, err := os.Stat(path)
			if err != nil {
				w.skip(path, ReasonUnreadable, searcherr.Wrap(err, searcherr.CodeScanIOFailure, "resolve symlink", searcherr.FieldPath(path)))
				continue
			}
			mode = info.Mode().Type()
		}
		switch {
		case mode.IsDir():
			if err := w.walk(ctx, path); err != nil {
				return err
			}
		case mode.IsRegular():
			w.files = append(w.files, path)
		default:
			w.skip(path, ReasonNotRegular, searcherr.New(searcherr.CodeScanIOFailure, "not a regular file", searcherr.FieldPath(path)))
		}
	}
	return nil
}

func (w *walker) skip(path, reason string, err error) {
	w.skipped = append(w.skipped, models.ScanDiagnostic{Path: path, Reason: reason, Err: err})
}

// IsHidden reports whether a file or directory name is excluded from scans.
func IsHidden(name string) bool {
	return strings.HasPrefix(name, ".")
}
