// Package cli renders search results and cache listings for the terminal.
package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"strconv"

	"github.com/hyperjump/kensaku/internal/models"
	"github.com/hyperjump/kensaku/pkg/utils"
)

// OutputFormat is the format for result output.
type OutputFormat string

const (
	// OutputPlain prints one path per line (default).
	OutputPlain OutputFormat = "plain"
	// OutputJSON prints an indented JSON array.
	OutputJSON OutputFormat = "json"
)

// entryPreviewLen bounds the text shown per cache entry.
const entryPreviewLen = 60

// Options controls how results are written.
type Options struct {
	ShowScore bool
	Format    OutputFormat
}

// ParseFormat returns the output format named by s. Empty means plain.
func ParseFormat(s string) (OutputFormat, error) {
	switch OutputFormat(s) {
	case "", OutputPlain:
		return OutputPlain, nil
	case OutputJSON:
		return OutputJSON, nil
	default:
		return "", fmt.Errorf("unknown output format %q (want plain or json)", s)
	}
}

// WriteResults writes ranked results to w in rank order. Plain output is one
// path per line, followed by a tab and the score when opts.ShowScore is set.
func WriteResults(w io.Writer, results []*models.SearchResult, opts Options) error {
	if opts.Format == OutputJSON {
		if results == nil {
			results = []*models.SearchResult{}
		}
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(results)
	}
	for _, r := range results {
		line := r.Path
		if opts.ShowScore {
			line += "\t" + strconv.FormatFloat(r.Score, 'f', -1, 64)
		}
		if _, err := fmt.Fprintln(w, line); err != nil {
			return err
		}
	}
	return nil
}

// WriteEntries lists cache entries as key, tab, then a one-line preview of the text.
func WriteEntries(w io.Writer, entries []models.CacheEntry, format OutputFormat) error {
	if format == OutputJSON {
		type entry struct {
			Key  string `json:"key"`
			Text string `json:"text"`
			Dim  int    `json:"dimensions"`
		}
		out := make([]entry, len(entries))
		for i, e := range entries {
			out[i] = entry{Key: e.Key, Text: e.Text, Dim: len(e.Embedding)}
		}
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(out)
	}
	for _, e := range entries {
		preview := utils.Truncate(utils.SingleLine(e.Text), entryPreviewLen)
		if _, err := fmt.Fprintf(w, "%s\t%s\n", e.Key, preview); err != nil {
			return err
		}
	}
	return nil
}

// WriteStats prints cache statistics as aligned key/value lines.
func WriteStats(w io.Writer, backend, location string, entries int64, diskBytes int64) {
	fmt.Fprintf(w, "backend:  %s\n", backend)
	if location != "" {
		fmt.Fprintf(w, "location: %s\n", location)
	}
	fmt.Fprintf(w, "entries:  %d\n", entries)
	if diskBytes > 0 {
		fmt.Fprintf(w, "disk:     %s\n", FormatBytes(diskBytes))
	}
}

// FormatBytes renders n using binary units.
func FormatBytes(n int64) string {
	const unit = 1024
	if n < unit {
		return fmt.Sprintf("%d B", n)
	}
	div, exp := int64(unit), 0
	for m := n / unit; m >= unit; m /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %ciB", float64(n)/float64(div), "KMGTPE"[exp])
}
