// Package loader reads graph data into model.Graph values. Two sources are
// supported: JSONL files with tagged node/edge records, and SQLite
// databases with nodes/edges tables. Loaders are tolerant by default:
// malformed records are skipped with a warning rather than failing the
// whole load.
package loader

import (
	"bufio"
	"bytes"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	json "github.com/goccy/go-json"

	"github.com/graphview-io/graphview/pkg/metrics"
	"github.com/graphview-io/graphview/pkg/model"
)

// DataDirEnvVar overrides the default graph data directory.
const DataDirEnvVar = "GRAPHVIEW_DATA_DIR"

// PreferredJSONLNames defines the priority order for locating graph files.
var PreferredJSONLNames = []string{"graph.jsonl", "nodes.jsonl"}

// DefaultMaxBufferSize is the largest line the scanner accepts (10MB).
const DefaultMaxBufferSize = 1024 * 1024 * 10

// record is one tagged JSONL line. Node and edge fields share the struct;
// the Type tag decides which half is meaningful.
type record struct {
	Type string `json:"type"`

	// node fields
	ID         string  `json:"id"`
	X          float64 `json:"x"`
	Y          float64 `json:"y"`
	Z          float64 `json:"z"`
	Mass       float64 `json:"mass"`
	Importance float64 `json:"importance"`
	Pinned     bool    `json:"pinned"`

	// edge fields
	Source string  `json:"source"`
	Target string  `json:"target"`
	Weight float64 `json:"weight"`
}

// ParseOptions configures graph parsing.
type ParseOptions struct {
	// WarningHandler is called with warning messages (e.g. malformed JSON).
	// If nil, warnings are printed to os.Stderr.
	WarningHandler func(string)

	// BufferSize sets the maximum line size in bytes. Longer lines are
	// skipped with a warning. If 0, DefaultMaxBufferSize is used.
	BufferSize int

	// SkipImportance disables the degree-based importance defaulting pass.
	SkipImportance bool
}

// FindJSONLPath locates the graph JSONL file in the given directory,
// preferring the canonical names and skipping backup artifacts.
func FindJSONLPath(dir string) (string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return "", fmt.Errorf("failed to read data directory: %w", err)
	}

	var candidates []string
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		name := e.Name()
		if !strings.HasSuffix(name, ".jsonl") {
			continue
		}
		if strings.Contains(name, ".backup") || strings.Contains(name, ".orig") {
			continue
		}
		candidates = append(candidates, name)
	}

	if len(candidates) == 0 {
		return "", fmt.Errorf("no graph JSONL file found in %s", dir)
	}

	for _, preferred := range PreferredJSONLNames {
		for _, name := range candidates {
			if name == preferred {
				path := filepath.Join(dir, name)
				if info, err := os.Stat(path); err == nil && info.Size() > 0 {
					return path, nil
				}
			}
		}
	}

	for _, name := range candidates {
		path := filepath.Join(dir, name)
		if info, err := os.Stat(path); err == nil && info.Size() > 0 {
			return path, nil
		}
	}

	return filepath.Join(dir, candidates[0]), nil
}

// LoadGraphFromFile reads a tagged JSONL file into a graph.
func LoadGraphFromFile(path string) (model.Graph, error) {
	return LoadGraphFromFileWithOptions(path, ParseOptions{})
}

// LoadGraphFromFileWithOptions reads a JSONL file with custom options.
func LoadGraphFromFileWithOptions(path string, opts ParseOptions) (model.Graph, error) {
	defer metrics.Timer(metrics.GraphLoad)()

	if _, err := os.Stat(path); os.IsNotExist(err) {
		return model.Graph{}, fmt.Errorf("no graph data found at %s", path)
	}

	file, err := os.Open(path)
	if err != nil {
		return model.Graph{}, fmt.Errorf("failed to open graph file: %w", err)
	}
	defer file.Close()

	return ParseGraphWithOptions(file, opts)
}

// ParseGraph parses tagged JSONL content from a reader.
// Handles UTF-8 BOM stripping, oversized lines, and validation.
func ParseGraph(r io.Reader) (model.Graph, error) {
	return ParseGraphWithOptions(r, ParseOptions{})
}

// ParseGraphWithOptions parses tagged JSONL content with custom options.
func ParseGraphWithOptions(r io.Reader, opts ParseOptions) (model.Graph, error) {
	var g model.Graph

	maxCapacity := opts.BufferSize
	if maxCapacity <= 0 {
		maxCapacity = DefaultMaxBufferSize
	}

	reader := bufio.NewReaderSize(r, maxCapacity)

	warn := opts.WarningHandler
	if warn == nil {
		warn = func(msg string) {
			fmt.Fprintf(os.Stderr, "Warning: %s\n", msg)
		}
	}

	seen := make(map[string]struct{})

	lineNum := 0
	for {
		lineNum++
		line, isPrefix, err := reader.ReadLine()
		if err != nil {
			if err == io.EOF {
				break
			}
			return model.Graph{}, fmt.Errorf("error reading graph stream at line %d: %w", lineNum, err)
		}

		if isPrefix {
			warn(fmt.Sprintf("skipping line %d: line too long (exceeds %d bytes)", lineNum, maxCapacity))
			for isPrefix {
				_, isPrefix, err = reader.ReadLine()
				if err != nil && err != io.EOF {
					return model.Graph{}, fmt.Errorf("error skipping long line at line %d: %w", lineNum, err)
				}
				if err == io.EOF {
					break
				}
			}
			continue
		}

		if len(line) == 0 {
			continue
		}

		if lineNum == 1 {
			line = stripBOM(line)
		}

		var rec record
		if err := json.Unmarshal(line, &rec); err != nil {
			warn(fmt.Sprintf("skipping malformed JSON on line %d: %v", lineNum, err))
			continue
		}

		switch strings.ToLower(strings.TrimSpace(rec.Type)) {
		case "node":
			n := model.Node{
				ID:         rec.ID,
				X:          rec.X,
				Y:          rec.Y,
				Z:          rec.Z,
				Mass:       rec.Mass,
				Importance: rec.Importance,
				Pinned:     rec.Pinned,
			}
			if err := n.Validate(); err != nil {
				warn(fmt.Sprintf("skipping invalid node on line %d: %v", lineNum, err))
				continue
			}
			if _, dup := seen[n.ID]; dup {
				warn(fmt.Sprintf("skipping duplicate node %q on line %d", n.ID, lineNum))
				continue
			}
			seen[n.ID] = struct{}{}
			g.Nodes = append(g.Nodes, n)

		case "edge":
			e := model.Edge{Source: rec.Source, Target: rec.Target, Weight: rec.Weight}
			if err := e.Validate(); err != nil {
				warn(fmt.Sprintf("skipping invalid edge on line %d: %v", lineNum, err))
				continue
			}
			g.Edges = append(g.Edges, e)

		default:
			warn(fmt.Sprintf("skipping line %d: unknown record type %q", lineNum, rec.Type))
		}
	}

	if !opts.SkipImportance {
		DefaultImportance(&g)
	}

	return g, nil
}

// stripBOM removes the UTF-8 Byte Order Mark if present.
func stripBOM(b []byte) []byte {
	if bytes.HasPrefix(b, []byte{0xEF, 0xBB, 0xBF}) {
		return b[3:]
	}
	return b
}
