package store

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"centrist/internal/pipeline"
)

// FileSink writes each run's terminal artifact to summary.txt and the
// full run envelope under runs/<id>.json. summary.txt always holds the
// latest run, which is the hand-off point for the operator.
type FileSink struct {
	Dir string
}

func NewFileSink(dir string) *FileSink {
	if dir == "" {
		dir = "."
	}
	return &FileSink{Dir: dir}
}

func (f *FileSink) Save(_ context.Context, run pipeline.Run) error {
	if err := os.MkdirAll(filepath.Join(f.Dir, "runs"), 0o755); err != nil {
		return fmt.Errorf("creating output dir: %w", err)
	}

	if err := os.WriteFile(filepath.Join(f.Dir, "summary.txt"), []byte(run.Summary), 0o644); err != nil {
		return fmt.Errorf("writing summary: %w", err)
	}

	envelope, err := json.MarshalIndent(run, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal run: %w", err)
	}
	if err := os.WriteFile(filepath.Join(f.Dir, "runs", run.ID+".json"), envelope, 0o644); err != nil {
		return fmt.Errorf("writing run envelope: %w", err)
	}
	return nil
}
