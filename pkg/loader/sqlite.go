package loader

import (
	"database/sql"
	"fmt"

	_ "modernc.org/sqlite"

	"github.com/graphview-io/graphview/pkg/metrics"
	"github.com/graphview-io/graphview/pkg/model"
)

// SQLiteReader provides read access to a graph SQLite database. Expected
// schema: a nodes table (id, x, y, z, mass, importance, pinned) and an
// edges table (source, target, weight). Missing columns fall back to a
// minimal query.
type SQLiteReader struct {
	db *sql.DB
}

// NewSQLiteReader opens a SQLite database for reading.
func NewSQLiteReader(path string) (*SQLiteReader, error) {
	// Read-only with pragmas tuned for bulk reads.
	dsn := fmt.Sprintf("file:%s?mode=ro&_busy_timeout=5000", path)
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("cannot open database: %w", err)
	}

	pragmas := []string{
		"PRAGMA cache_size = -64000",
		"PRAGMA temp_store = MEMORY",
	}
	for _, pragma := range pragmas {
		// Non-fatal on older schema files.
		db.Exec(pragma)
	}

	return &SQLiteReader{db: db}, nil
}

// Close closes the database connection.
func (r *SQLiteReader) Close() error {
	if r.db != nil {
		return r.db.Close()
	}
	return nil
}

// LoadGraph reads the full node and edge sets.
func (r *SQLiteReader) LoadGraph() (model.Graph, error) {
	defer metrics.Timer(metrics.GraphLoad)()

	nodes, err := r.loadNodes()
	if err != nil {
		return model.Graph{}, err
	}
	edges, err := r.loadEdges()
	if err != nil {
		return model.Graph{}, err
	}

	g := model.Graph{Nodes: nodes, Edges: edges}
	DefaultImportance(&g)
	return g, nil
}

func (r *SQLiteReader) loadNodes() ([]model.Node, error) {
	query := `
		SELECT id, x, y, z, mass, importance, pinned
		FROM nodes
		ORDER BY id
	`

	rows, err := r.db.Query(query)
	if err != nil {
		return r.loadNodesSimple()
	}
	defer rows.Close()

	var nodes []model.Node
	for rows.Next() {
		var n model.Node
		var z, mass, importance sql.NullFloat64
		var pinned sql.NullBool

		if err := rows.Scan(&n.ID, &n.X, &n.Y, &z, &mass, &importance, &pinned); err != nil {
			continue
		}
		if z.Valid {
			n.Z = z.Float64
		}
		if mass.Valid {
			n.Mass = mass.Float64
		}
		if importance.Valid {
			n.Importance = importance.Float64
		}
		if pinned.Valid {
			n.Pinned = pinned.Bool
		}
		if err := n.Validate(); err != nil {
			continue
		}
		nodes = append(nodes, n)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating nodes: %w", err)
	}
	return nodes, nil
}

// loadNodesSimple is a fallback for databases with fewer columns.
func (r *SQLiteReader) loadNodesSimple() ([]model.Node, error) {
	rows, err := r.db.Query(`SELECT id, x, y FROM nodes ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("query failed: %w", err)
	}
	defer rows.Close()

	var nodes []model.Node
	for rows.Next() {
		var n model.Node
		if err := rows.Scan(&n.ID, &n.X, &n.Y); err != nil {
			continue
		}
		if err := n.Validate(); err != nil {
			continue
		}
		nodes = append(nodes, n)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating nodes: %w", err)
	}
	return nodes, nil
}

func (r *SQLiteReader) loadEdges() ([]model.Edge, error) {
	rows, err := r.db.Query(`SELECT source, target, weight FROM edges`)
	if err != nil {
		return nil, fmt.Errorf("query failed: %w", err)
	}
	defer rows.Close()

	var edges []model.Edge
	for rows.Next() {
		var e model.Edge
		var weight sql.NullFloat64
		if err := rows.Scan(&e.Source, &e.Target, &weight); err != nil {
			continue
		}
		if weight.Valid {
			e.Weight = weight.Float64
		}
		if err := e.Validate(); err != nil {
			continue
		}
		edges = append(edges, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating edges: %w", err)
	}
	return edges, nil
}

// CountNodes returns the node count without loading the full set.
func (r *SQLiteReader) CountNodes() (int, error) {
	var count int
	err := r.db.QueryRow("SELECT COUNT(*) FROM nodes").Scan(&count)
	if err != nil {
		return 0, err
	}
	return count, nil
}
