package render

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	exportv1 "github.com/spatialplot/globeviz/internal/render/export/v1"
)

// SnapshotWriter persists versioned scene snapshots as JSON documents,
// one file per pass, named by selection and pass time.
type SnapshotWriter struct {
	dir    string
	logger *slog.Logger
}

// NewSnapshotWriter creates a writer targeting dir, creating it if needed.
func NewSnapshotWriter(dir string, logger *slog.Logger) (*SnapshotWriter, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("error creating snapshot directory: %w", err)
	}
	return &SnapshotWriter{dir: dir, logger: logger}, nil
}

// Write builds the v1 snapshot for the scene and writes it to disk,
// returning the file path.
func (w *SnapshotWriter) Write(data *exportv1.SceneData) (string, error) {
	snap := exportv1.Build(data)

	name := fmt.Sprintf("scene_%s_%d_%s.json",
		snap.Metric, snap.Year, data.Time.UTC().Format("20060102_150405"))
	name = strings.ReplaceAll(name, " ", "_")
	path := filepath.Join(w.dir, name)

	doc, err := json.MarshalIndent(snap, "", "  ")
	if err != nil {
		return "", fmt.Errorf("error marshaling snapshot: %w", err)
	}
	if err := os.WriteFile(path, doc, 0644); err != nil {
		return "", fmt.Errorf("error writing snapshot file: %w", err)
	}

	w.logger.Debug("Wrote scene snapshot", "path", path, "markers", len(snap.Markers))
	return path, nil
}
