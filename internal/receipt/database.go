package receipt

import (
	"encoding/json"
	"fmt"
	"sort"
	"time"

	"go.etcd.io/bbolt"
)

const (
	documentBucketName = "documents"
	trainingBucketName = "training"
)

// DB defines the interface for database operations
type DB interface {
	// SaveDocument saves an extracted document to the history
	SaveDocument(doc *Document) error

	// GetDocument retrieves a document by ID
	GetDocument(id string) (*Document, error)

	// ListDocuments returns all documents, oldest first
	ListDocuments() ([]*Document, error)

	// DeleteDocument removes a document from the history
	DeleteDocument(id string) error

	// SaveSample saves a training sample
	SaveSample(sample *TrainingSample) error

	// ListSamples returns all training samples, oldest first
	ListSamples() ([]*TrainingSample, error)

	// Close closes the database connection
	Close() error
}

// BoltDB implements the DB interface using BoltDB
type BoltDB struct {
	db *bbolt.DB
}

// NewBoltDB creates a new BoltDB instance
func NewBoltDB(path string) (*BoltDB, error) {
	db, err := bbolt.Open(path, 0600, &bbolt.Options{Timeout: 1 * time.Second})
	if err != nil {
		return nil, fmt.Errorf("opening boltdb: %w", err)
	}

	// Create buckets if they don't exist
	err = db.Update(func(tx *bbolt.Tx) error {
		if _, err := tx.CreateBucketIfNotExists([]byte(documentBucketName)); err != nil {
			return err
		}
		if _, err := tx.CreateBucketIfNotExists([]byte(trainingBucketName)); err != nil {
			return err
		}
		return nil
	})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("creating buckets: %w", err)
	}

	return &BoltDB{db: db}, nil
}

// SaveDocument saves an extracted document to the history
func (b *BoltDB) SaveDocument(doc *Document) error {
	return b.db.Update(func(tx *bbolt.Tx) error {
		bucket := tx.Bucket([]byte(documentBucketName))
		data, err := json.Marshal(doc)
		if err != nil {
			return fmt.Errorf("marshaling document: %w", err)
		}
		return bucket.Put([]byte(doc.ID), data)
	})
}

// GetDocument retrieves a document by ID
func (b *BoltDB) GetDocument(id string) (*Document, error) {
	var doc *Document
	err := b.db.View(func(tx *bbolt.Tx) error {
		bucket := tx.Bucket([]byte(documentBucketName))
		data := bucket.Get([]byte(id))
		if data == nil {
			return fmt.Errorf("document not found: %s", id)
		}
		return json.Unmarshal(data, &doc)
	})
	if err != nil {
		return nil, err
	}
	return doc, nil
}

// ListDocuments returns all documents ordered by creation time
func (b *BoltDB) ListDocuments() ([]*Document, error) {
	docs := make([]*Document, 0)
	err := b.db.View(func(tx *bbolt.Tx) error {
		bucket := tx.Bucket([]byte(documentBucketName))
		return bucket.ForEach(func(k, v []byte) error {
			var doc Document
			if err := json.Unmarshal(v, &doc); err != nil {
				return fmt.Errorf("unmarshaling document: %w", err)
			}
			docs = append(docs, &doc)
			return nil
		})
	})
	if err != nil {
		return nil, err
	}
	sort.SliceStable(docs, func(i, j int) bool {
		return docs[i].CreatedAt.Before(docs[j].CreatedAt)
	})
	return docs, nil
}

// DeleteDocument removes a document from the history
func (b *BoltDB) DeleteDocument(id string) error {
	return b.db.Update(func(tx *bbolt.Tx) error {
		bucket := tx.Bucket([]byte(documentBucketName))
		if bucket.Get([]byte(id)) == nil {
			return fmt.Errorf("document not found: %s", id)
		}
		return bucket.Delete([]byte(id))
	})
}

// SaveSample saves a training sample
func (b *BoltDB) SaveSample(sample *TrainingSample) error {
	return b.db.Update(func(tx *bbolt.Tx) error {
		bucket := tx.Bucket([]byte(trainingBucketName))
		data, err := json.Marshal(sample)
		if err != nil {
			return fmt.Errorf("marshaling training sample: %w", err)
		}
		return bucket.Put([]byte(sample.ID), data)
	})
}

// ListSamples returns all training samples ordered by creation time
func (b *BoltDB) ListSamples() ([]*TrainingSample, error) {
	samples := make([]*TrainingSample, 0)
	err := b.db.View(func(tx *bbolt.Tx) error {
		bucket := tx.Bucket([]byte(trainingBucketName))
		return bucket.ForEach(func(k, v []byte) error {
			var sample TrainingSample
			if err := json.Unmarshal(v, &sample); err != nil {
				return fmt.Errorf("unmarshaling training sample: %w", err)
			}
			samples = append(samples, &sample)
			return nil
		})
	})
	if err != nil {
		return nil, err
	}
	sort.SliceStable(samples, func(i, j int) bool {
		return samples[i].CreatedAt.Before(samples[j].CreatedAt)
	})
	return samples, nil
}

// Close closes the database connection
func (b *BoltDB) Close() error {
	return b.db.Close()
}

