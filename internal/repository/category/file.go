package category

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/kailas-cloud/catalogsearch/internal/domain"
	"github.com/kailas-cloud/catalogsearch/internal/domain/category"
)

// fileNode mirrors one row of the JSON dump; name and slug may be null.
type fileNode struct {
	ID       int64   `json:"id"`
	Name     *string `json:"name"`
	Slug     *string `json:"slug"`
	ParentID *int64  `json:"parent_id"`
}

// FileSource reads categories from a JSON array of {id, name, slug, parent_id}.
type FileSource struct {
	path string
}

// NewFile creates a file-backed category source.
func NewFile(path string) *FileSource {
	return &FileSource{path: path}
}

// Load parses the dump. A missing file wraps domain.ErrCategoriesUnavailable.
func (s *FileSource) Load(_ context.Context) ([]category.Node, error) {
	data, err := os.ReadFile(filepath.Clean(s.path))
	if errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("%w: no category file at %s", domain.ErrCategoriesUnavailable, s.path)
	}
	if err != nil {
		return nil, fmt.Errorf("read categories: %w", err)
	}

	var raw []fileNode
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("parse categories: %w", err)
	}

	nodes := make([]category.Node, len(raw))
	for i, r := range raw {
		nodes[i] = category.Node{
			ID:       r.ID,
			Name:     deref(r.Name),
			Slug:     deref(r.Slug),
			ParentID: r.ParentID,
		}
	}
	return nodes, nil
}
