package client

import (
	"errors"
	"fmt"
	"image"
	"time"

	"github.com/zombor/quicktotal/internal/geometry"
	"github.com/zombor/quicktotal/internal/imaging"
)

var ErrNoFile = errors.New("pending file not found")

// PendingFile is an image waiting to be submitted
type PendingFile struct {
	Name        string
	ContentType string
	Content     []byte
	// Quality is the score from a pre-flight check, nil until one has run
	Quality    *int
	PreviewURL string
}

// Queue is the ordered list of files waiting for submission. It is not
// safe for concurrent use.
type Queue struct {
	files []PendingFile
	now   func() time.Time
}

// NewQueue creates an empty queue
func NewQueue() *Queue {
	return &Queue{now: time.Now}
}

// Add appends files to the end of the queue
func (q *Queue) Add(files ...PendingFile) {
	q.files = append(q.files, files...)
}

// Files returns a copy of the queued files in submission order
func (q *Queue) Files() []PendingFile {
	return append([]PendingFile(nil), q.files...)
}

// Len returns the number of queued files
func (q *Queue) Len() int {
	return len(q.files)
}

// Label is the count shown above the queue, e.g. "1 Document Ready"
func (q *Queue) Label() string {
	if len(q.files) == 1 {
		return "1 Document Ready"
	}
	return fmt.Sprintf("%d Documents Ready", len(q.files))
}

// Remove deletes the file at index
func (q *Queue) Remove(index int) error {
	if err := q.check(index); err != nil {
		return err
	}
	q.files = append(q.files[:index], q.files[index+1:]...)
	return nil
}

// Move takes the file at from and reinserts it at to, shifting the files
// in between. This is what a drag-and-drop reorder does.
func (q *Queue) Move(from, to int) error {
	if err := q.check(from); err != nil {
		return err
	}
	if err := q.check(to); err != nil {
		return err
	}
	f := q.files[from]
	q.files = append(q.files[:from], q.files[from+1:]...)
	q.files = append(q.files[:to], append([]PendingFile{f}, q.files[to:]...)...)
	return nil
}

// Replace swaps the file at index for f
func (q *Queue) Replace(index int, f PendingFile) error {
	if err := q.check(index); err != nil {
		return err
	}
	q.files[index] = f
	return nil
}

// Reset empties the queue
func (q *Queue) Reset() {
	q.files = nil
}

// ApplyCrop maps a selection drawn on the preview to native pixels and
// replaces the file at index with the cropped JPEG. A selection smaller than
// geometry.MinSelectionSpan on either axis leaves the file untouched and
// returns false.
func (q *Queue) ApplyCrop(index int, sel geometry.Selection, scale geometry.Scale) (bool, error) {
	if err := q.check(index); err != nil {
		return false, err
	}
	rect, ok := geometry.MapToNative(sel, scale)
	if !ok {
		return false, nil
	}
	return true, q.CropNative(index, rect)
}

// CropNative replaces the file at index with the part inside rect, which is
// already in native pixels
func (q *Queue) CropNative(index int, rect image.Rectangle) error {
	if err := q.check(index); err != nil {
		return err
	}
	f := q.files[index]
	data, err := imaging.CropJPEG(f.Content, imaging.NormalizeContentType(f.ContentType, f.Name), rect)
	if err != nil {
		return fmt.Errorf("cropping %s: %w", f.Name, err)
	}
	q.files[index] = PendingFile{
		Name:        fmt.Sprintf("cropped_part_%d.jpg", q.now().UnixMilli()),
		ContentType: "image/jpeg",
		Content:     data,
	}
	return nil
}

func (q *Queue) check(index int) error {
	if index < 0 || index >= len(q.files) {
		return fmt.Errorf("file %d: %w", index, ErrNoFile)
	}
	return nil
}
