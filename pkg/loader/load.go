package loader

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/graphview-io/graphview/pkg/model"
)

// Load reads a graph from path, selecting the source by extension:
// .jsonl is parsed as tagged JSONL, .db/.sqlite/.sqlite3 as a SQLite
// database.
func Load(path string) (model.Graph, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".jsonl":
		return LoadGraphFromFile(path)
	case ".db", ".sqlite", ".sqlite3":
		r, err := NewSQLiteReader(path)
		if err != nil {
			return model.Graph{}, err
		}
		defer r.Close()
		return r.LoadGraph()
	default:
		return model.Graph{}, fmt.Errorf("unsupported graph file %s: expected .jsonl or .sqlite", path)
	}
}
