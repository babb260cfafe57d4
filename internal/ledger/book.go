package ledger

import (
	"errors"
	"fmt"
	"strings"
)

var (
	ErrNoDocument = errors.New("document not found")
	ErrNoItem     = errors.New("line item not found")
)

// Guesser picks a category for an item from its name
type Guesser interface {
	Guess(name string) string
}

// Book is an editable set of documents. Every mutation recomputes the
// totals from scratch. A Book is not safe for concurrent use; it belongs to
// whichever goroutine drives the editing session.
type Book struct {
	currency Currency
	guesser  Guesser
	docs     []Document
	totals   Totals
}

// NewBook creates an empty Book. guesser may be nil, in which case blank
// categories fall back to DefaultCategory.
func NewBook(currency Currency, guesser Guesser) *Book {
	b := &Book{currency: currency, guesser: guesser}
	b.recalculate()
	return b
}

// Totals returns the totals as of the last mutation
func (b *Book) Totals() Totals {
	return b.totals
}

// Documents returns a copy of the documents in the book
func (b *Book) Documents() []Document {
	out := make([]Document, len(b.docs))
	for i, d := range b.docs {
		d.Items = append([]LineItem(nil), d.Items...)
		out[i] = d
	}
	return out
}

// AddDocument appends a document, filling in blank categories
func (b *Book) AddDocument(doc Document) Totals {
	items := make([]LineItem, len(doc.Items))
	for i, item := range doc.Items {
		items[i] = b.prepare(item)
	}
	doc.Items = items
	b.docs = append(b.docs, doc)
	return b.recalculate()
}

// RemoveDocument drops the document at index
func (b *Book) RemoveDocument(index int) (Totals, error) {
	if index < 0 || index >= len(b.docs) {
		return b.totals, fmt.Errorf("removing document %d: %w", index, ErrNoDocument)
	}
	b.docs = append(b.docs[:index], b.docs[index+1:]...)
	return b.recalculate(), nil
}

// AddItem appends a manually entered item to a document
func (b *Book) AddItem(doc int, item LineItem) (Totals, error) {
	if doc < 0 || doc >= len(b.docs) {
		return b.totals, fmt.Errorf("adding item to document %d: %w", doc, ErrNoDocument)
	}
	b.docs[doc].Items = append(b.docs[doc].Items, b.prepare(item))
	return b.recalculate(), nil
}

// EditItem replaces the item at the given position
func (b *Book) EditItem(doc, index int, item LineItem) (Totals, error) {
	if err := b.check(doc, index); err != nil {
		return b.totals, fmt.Errorf("editing item: %w", err)
	}
	b.docs[doc].Items[index] = b.prepare(item)
	return b.recalculate(), nil
}

// DeleteItem removes the item at the given position
func (b *Book) DeleteItem(doc, index int) (Totals, error) {
	if err := b.check(doc, index); err != nil {
		return b.totals, fmt.Errorf("deleting item: %w", err)
	}
	items := b.docs[doc].Items
	b.docs[doc].Items = append(items[:index], items[index+1:]...)
	return b.recalculate(), nil
}

// MoveItem moves an item within a document from one position to another.
// Totals do not change but are returned for symmetry with the other edits.
func (b *Book) MoveItem(doc, from, to int) (Totals, error) {
	if err := b.check(doc, from); err != nil {
		return b.totals, fmt.Errorf("moving item: %w", err)
	}
	if err := b.check(doc, to); err != nil {
		return b.totals, fmt.Errorf("moving item: %w", err)
	}
	items := b.docs[doc].Items
	item := items[from]
	items = append(items[:from], items[from+1:]...)
	items = append(items[:to], append([]LineItem{item}, items[to:]...)...)
	b.docs[doc].Items = items
	return b.recalculate(), nil
}

func (b *Book) check(doc, index int) error {
	if doc < 0 || doc >= len(b.docs) {
		return fmt.Errorf("document %d: %w", doc, ErrNoDocument)
	}
	if index < 0 || index >= len(b.docs[doc].Items) {
		return fmt.Errorf("document %d item %d: %w", doc, index, ErrNoItem)
	}
	return nil
}

// prepare guesses a category for blank entries and normalizes the result
func (b *Book) prepare(item LineItem) LineItem {
	if strings.TrimSpace(item.Category) == "" && b.guesser != nil {
		item.Category = b.guesser.Guess(item.Name)
	}
	item.Category = NormalizeCategory(item.Category)
	return item
}

func (b *Book) recalculate() Totals {
	b.totals = Recalculate(b.docs, b.currency)
	return b.totals
}
