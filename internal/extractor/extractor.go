// Package extractor converts captured media into plain text plus
// extractor-specific metadata. Extractors are stateless and know nothing
// about jobs, notes, or users: they either return text or fail with an
// *ExtractionError, nothing else.
package extractor

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
)

// Result is the output of a successful extraction.
type Result struct {
	Text     string
	Metadata map[string]any
}

// Extractor converts one media reference (file path or URL) into text.
type Extractor interface {
	Extract(ctx context.Context, ref string) (*Result, error)
}

// ExtractionError reports unreadable, corrupt, or unsupported input.
type ExtractionError struct {
	Kind   string // audio, image, document, link
	Reason string
	Err    error
}

func (e *ExtractionError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s extraction failed: %s: %v", e.Kind, e.Reason, e.Err)
	}
	return fmt.Sprintf("%s extraction failed: %s", e.Kind, e.Reason)
}

func (e *ExtractionError) Unwrap() error {
	return e.Err
}

func extractionErr(kind, reason string, err error) *ExtractionError {
	return &ExtractionError{Kind: kind, Reason: reason, Err: err}
}

// commandResult is an internal process execution response.
type commandResult struct {
	Stdout   string
	Stderr   string
	ExitCode int
}

// commandRunner abstracts process execution so extractor tests can fake
// the ffmpeg/whisper/tesseract binaries.
type commandRunner interface {
	Run(ctx context.Context, name string, args ...string) (commandResult, error)
}

// execRunner executes commands via os/exec.
type execRunner struct{}

func (r execRunner) Run(ctx context.Context, name string, args ...string) (commandResult, error) {
	cmd := exec.CommandContext(ctx, name, args...)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	err := cmd.Run()
	result := commandResult{
		Stdout: stdout.String(),
		Stderr: stderr.String(),
	}
	if err != nil {
		result.ExitCode = -1
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			result.ExitCode = exitErr.ExitCode()
		}
		return result, err
	}
	return result, nil
}
