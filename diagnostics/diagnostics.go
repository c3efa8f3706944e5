// Package diagnostics writes postmortem artifacts (full-page screenshot and raw
// markup) to well-known file stems, and defines the fatal error raised when a
// configuration stage cannot converge.
package diagnostics

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"hicv-scanner/utils"
)

// Source is the part of a browser session that can be captured.
type Source interface {
	Screenshot(ctx context.Context) ([]byte, error)
	Content(ctx context.Context) (string, error)
}

// Snapshotter persists artifacts for a failure point and returns the stem path
// it wrote to. Implementations never fail: capture problems are logged.
type Snapshotter interface {
	Capture(ctx context.Context, stem string) string
	Dump(ctx context.Context, stem, markup string) string
}

// Recorder writes <dir>/<stem>.png and <dir>/<stem>.html.
type Recorder struct {
	dir     string
	src     Source
	logger  *utils.Logger
	timeout time.Duration
}

// NewRecorder creates the output directory if needed.
func NewRecorder(dir string, src Source, logger *utils.Logger) *Recorder {
	if dir == "" {
		dir = "."
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		logger.Warn("Cannot create debug directory %s: %v", dir, err)
	}
	return &Recorder{dir: dir, src: src, logger: logger, timeout: 15 * time.Second}
}

// Capture saves a full-page screenshot and the page markup under stem.
func (r *Recorder) Capture(ctx context.Context, stem string) string {
	base := filepath.Join(r.dir, stem)
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	if png, err := r.src.Screenshot(ctx); err != nil {
		r.logger.Warn("Screenshot for %s failed: %v", stem, err)
	} else {
		r.write(base+".png", png)
	}
	if html, err := r.src.Content(ctx); err != nil {
		r.logger.Warn("Markup dump for %s failed: %v", stem, err)
	} else {
		r.write(base+".html", []byte(html))
	}
	r.logger.Info("Saved diagnostic snapshot %s.(png|html)", base)
	return base
}

// Dump saves already-captured markup (e.g. one overlay's outerHTML) under stem.
func (r *Recorder) Dump(ctx context.Context, stem, markup string) string {
	base := filepath.Join(r.dir, stem)
	r.write(base+".html", []byte(markup))
	r.logger.Info("Saved markup dump %s.html", base)
	return base
}

func (r *Recorder) write(path string, data []byte) {
	if err := os.WriteFile(path, data, 0644); err != nil {
		r.logger.Warn("Failed to write %s: %v", path, err)
	}
}

// Nop discards every snapshot.
type Nop struct{}

func (Nop) Capture(ctx context.Context, stem string) string { return stem }

func (Nop) Dump(ctx context.Context, stem, markup string) string { return stem }

// StageError aborts a run. Artifact is the snapshot stem written for it.
type StageError struct {
	Stage    string
	Artifact string
	Err      error
}

func (e *StageError) Error() string {
	if e.Artifact == "" {
		return fmt.Sprintf("%s: %v", e.Stage, e.Err)
	}
	return fmt.Sprintf("%s: %v (see %s)", e.Stage, e.Err, e.Artifact)
}

func (e *StageError) Unwrap() error { return e.Err }

// Fatal builds a StageError.
func Fatal(stage, artifact string, err error) error {
	return &StageError{Stage: stage, Artifact: artifact, Err: err}
}
