// Package scanner walks a directory tree and loads every readable text file into a corpus.
package scanner

import (
	"context"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/hyperjump/kensaku/internal/extract"
	"github.com/hyperjump/kensaku/internal/models"
	"github.com/hyperjump/kensaku/pkg/searcherr"
	"github.com/hyperjump/kensaku/pkg/utils"
	"github.com/panjf2000/ants/v2"
	"go.uber.org/zap"
)

// Skip reasons recorded in diagnostics.
const (
	ReasonUnreadable   = "unreadable"
	ReasonUndecodable  = "undecodable"
	ReasonSymlinkCycle = "symlink cycle"
	ReasonNotRegular   = "not a regular file"
)

// Result is the outcome of a scan: the corpus sorted by path plus every skipped entry.
type Result struct {
	Corpus  models.Corpus
	Skipped []models.ScanDiagnostic
}

// Scanner traverses directory trees. It is safe for concurrent use.
type Scanner struct {
	extractor *extract.Extractor
	workers   int
	logger    *zap.Logger
	readBytes func(string) ([]byte, error)
}

// Option configures a Scanner.
type Option func(*Scanner)

// WithLogger sets the logger that receives a warning per skipped file.
func WithLogger(l *zap.Logger) Option {
	return func(s *Scanner) { s.logger = l }
}

// WithWorkers sets how many files are read in parallel. Values below 2 read sequentially.
func WithWorkers(n int) Option {
	return func(s *Scanner) { s.workers = n }
}

// WithExtractor replaces the default plain-text extractor.
func WithExtractor(e *extract.Extractor) Option {
	return func(s *Scanner) { s.extractor = e }
}

// New returns a Scanner that decodes files as plain UTF-8 text unless configured otherwise.
func New(opts ...Option) *Scanner {
	s := &Scanner{
		extractor: extract.NewExtractor(false),
		workers:   1,
		readBytes: os.ReadFile,
	}
	for _, opt := range opts {
		opt(s)
	}
	s.logger = utils.OrNop(s.logger)
	return s
}

// Scan loads every file under root whose path has no dot-prefixed component.
// A root that is missing or not a directory yields an empty result. Files that
// cannot be read or decoded are skipped and reported in Result.Skipped; only
// context cancellation aborts the scan.
func (s *Scanner) Scan(ctx context.Context, root string) (*Result, error) {
	res := &Result{Corpus: models.Corpus{}}

	info, err := os.Stat(root)
	if err != nil || !info.IsDir() {
		s.logger.Debug("scan root is not a directory", zap.String("root", root))
		return res, nil
	}

	w := &walker{visited: map[string]bool{}}
	if err := w.walk(ctx, root); err != nil {
		return nil, err
	}
	res.Skipped = append(res.Skipped, w.skipped...)

	items, skipped, err := s.readAll(ctx, w.files)
	if err != nil {
		return nil, err
	}
	res.Skipped = append(res.Skipped, skipped...)
	res.Corpus = items

	sort.SliceStable(res.Corpus, func(i, j int) bool {
		return res.Corpus[i].Path < res.Corpus[j].Path
	})
	for _, d := range res.Skipped {
		s.logger.Warn("skipping file",
			zap.String("path", d.Path),
			zap.String("reason", d.Reason),
			zap.Error(d.Err))
	}
	s.logger.Debug("scan complete",
		zap.String("root", root),
		zap.Int("files", len(res.Corpus)),
		zap.Int("skipped", len(res.Skipped)))
	return res, nil
}

// readAll reads and decodes files, in parallel when configured. Output keeps input order.
func (s *Scanner) readAll(ctx context.Context, files []string) (models.Corpus, []models.ScanDiagnostic, error) {
	type outcome struct {
		item models.CorpusItem
		diag *models.ScanDiagnostic
	}
	out := make([]outcome, len(files))
	read := func(i int) {
		item, diag := s.readFile(files[i])
		out[i] = outcome{item: item, diag: diag}
	}

	if s.workers < 2 || len(files) < 2 {
		for i := range files {
			if err := ctx.Err(); err != nil {
				return nil, nil, err
			}
			read(i)
		}
	} else {
		pool, err := ants.NewPool(s.workers)
		if err != nil {
			return nil, nil, err
		}
		defer pool.Release()

		var wg sync.WaitGroup
		for i := range files {
			if err := ctx.Err(); err != nil {
				wg.Wait()
				return nil, nil, err
			}
			i := i
			wg.Add(1)
			if err := pool.Submit(func() {
				defer wg.Done()
				read(i)
			}); err != nil {
				wg.Done()
				read(i)
			}
		}
		wg.Wait()
		if err := ctx.Err(); err != nil {
			return nil, nil, err
		}
	}

	items := make(models.Corpus, 0, len(files))
	var skipped []models.ScanDiagnostic
	for _, o := range out {
		if o.diag != nil {
			skipped = append(skipped, *o.diag)
			continue
		}
		items = append(items, o.item)
	}
	return items, skipped, nil
}

func (s *Scanner) readFile(path string) (models.CorpusItem, *models.ScanDiagnostic) {
	content, err := s.readBytes(path)
	if err != nil {
		return models.CorpusItem{}, &models.ScanDiagnostic{
			Path:   path,
			Reason: ReasonUnreadable,
			Err:    searcherr.Wrap(err, searcherr.CodeScanIOFailure, "read file", searcherr.FieldPath(path)),
		}
	}
	text, err := s.extractor.ExtractBytes(content, strings.ToLower(filepath.Ext(path)))
	if err != nil {
		return models.CorpusItem{}, &models.ScanDiagnostic{Path: path, Reason: ReasonUndecodable, Err: err}
	}
	return models.CorpusItem{Path: path, Content: text}, nil
}
