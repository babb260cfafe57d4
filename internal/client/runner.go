package client

import (
	"context"
	"errors"
	"fmt"
	"image"
	"log/slog"

	"github.com/zombor/quicktotal/internal/api"
	"github.com/zombor/quicktotal/internal/ledger"
)

// Outcome is what happened to one submitted file. Exactly one of Result and
// Err is set.
type Outcome struct {
	Index  int
	File   string
	Result *api.DocumentResult
	Err    error
}

// Label is the heading the document is shown under, e.g. "Document #2"
func (o Outcome) Label() string {
	return fmt.Sprintf("Document #%d", o.Index)
}

// Runner submits files one at a time, waiting for each response before
// sending the next
type Runner struct {
	client     *Client
	minQuality int
	crop       *image.Rectangle

	// Progress, if set, is called after each file with the number of files
	// finished so far
	Progress func(done, total int, o Outcome)
}

// NewRunner creates a runner. Files scoring below minQuality in the
// pre-flight check are not submitted; 0 skips the check.
func NewRunner(c *Client, minQuality int) *Runner {
	return &Runner{client: c, minQuality: minQuality}
}

// SetCrop sends the same native crop bounds with every file
func (r *Runner) SetCrop(rect *image.Rectangle) {
	r.crop = rect
}

// Run processes files in order. A failure is recorded on that file's
// outcome and the loop moves on to the next one; nothing is retried.
func (r *Runner) Run(ctx context.Context, files []PendingFile) []Outcome {
	outcomes := make([]Outcome, 0, len(files))
	for i, f := range files {
		o := r.runOne(ctx, i+1, f)
		if o.Err != nil {
			slog.Warn("Document failed", "index", o.Index, "file", o.File, "error", o.Err)
		}
		outcomes = append(outcomes, o)
		if r.Progress != nil {
			r.Progress(i+1, len(files), o)
		}
	}
	return outcomes
}

func (r *Runner) runOne(ctx context.Context, index int, f PendingFile) Outcome {
	o := Outcome{Index: index, File: f.Name}

	if r.minQuality > 0 {
		score, err := r.quality(ctx, f)
		if err != nil {
			o.Err = fmt.Errorf("quality check: %w", err)
			return o
		}
		if score < r.minQuality {
			o.Err = fmt.Errorf("image quality too low (score %d of 100)", score)
			return o
		}
	}

	result, err := r.client.Calculate(ctx, f, index, r.crop)
	if err != nil {
		o.Err = err
		return o
	}
	if result.Error != "" {
		o.Err = errors.New(result.Error)
		return o
	}
	o.Result = result
	return o
}

func (r *Runner) quality(ctx context.Context, f PendingFile) (int, error) {
	if f.Quality != nil {
		return *f.Quality, nil
	}
	return r.client.Analyze(ctx, f)
}

// Documents turns the successful outcomes into ledger documents, labelled
// by their position in the batch
func Documents(outcomes []Outcome) []ledger.Document {
	docs := make([]ledger.Document, 0, len(outcomes))
	for _, o := range outcomes {
		if o.Result == nil {
			continue
		}
		docs = append(docs, o.Result.Document(o.Label()))
	}
	return docs
}
