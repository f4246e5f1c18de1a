package search

import (
	"path/filepath"

	"github.com/hyperjump/kensaku/internal/models"
)

// ProcessQuery validates the query and cleans its path.
func ProcessQuery(query *models.SearchQuery) error {
	if err := query.Validate(); err != nil {
		return err
	}
	if query.Path != "" {
		query.Path = filepath.Clean(query.Path)
	}
	return nil
}
