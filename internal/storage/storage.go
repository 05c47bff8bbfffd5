// Package storage persists the trainer's artifacts: the fitted forest, the
// feature schema and the training metadata, in a single BoltDB file.
//
// The trainer writes every artifact in one transaction so a reader never
// sees a forest paired with another run's schema.
package storage

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"autovaluate/internal/features"
	"autovaluate/internal/ml"

	"go.etcd.io/bbolt"
)

const (
	modelBucket  = "model"  // gob-encoded forest
	schemaBucket = "schema" // JSON feature schema
	metaBucket   = "meta"   // JSON training metadata, current and history
)

var (
	currentKey    = []byte("current")
	historyPrefix = []byte("run_")
)

// ErrArtifactsMissing is returned when the artifact file or one of its
// entries does not exist.
var ErrArtifactsMissing = errors.New("model artifacts missing")

// Metadata describes one training run.
type Metadata struct {
	TrainedAt      time.Time              `json:"trained_at"`
	DatasetPath    string                 `json:"dataset_path"`
	ReferencePath  string                 `json:"reference_path"`
	Rows           int                    `json:"rows"`
	Skipped        int                    `json:"skipped"`
	ReferenceRows  int                    `json:"reference_rows"`
	Features       int                    `json:"features"`
	Trees          int                    `json:"trees"`
	Seed           int64                  `json:"seed"`
	MaxDepth       int                    `json:"max_depth"`
	MinSamplesLeaf int                    `json:"min_samples_leaf"`
	Fit            ml.FitMetrics          `json:"fit"`
	TopFeatures    []ml.FeatureImportance `json:"top_features"`
	Elapsed        time.Duration          `json:"elapsed_ns"`
}

// Artifacts is the bundle written by the trainer and read by the server.
type Artifacts struct {
	Forest *ml.Forest
	Schema features.Schema
	Meta   Metadata
}

// Store wraps the artifact database.
type Store struct {
	db *bbolt.DB
}

// Open opens (creating if needed) the artifact file for writing.
func Open(path string) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("failed to create artifact directory: %w", err)
	}

	db, err := bbolt.Open(path, 0o600, &bbolt.Options{Timeout: 1 * time.Second})
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	err = db.Update(func(tx *bbolt.Tx) error {
		for _, name := range []string{modelBucket, schemaBucket, metaBucket} {
			if _, err := tx.CreateBucketIfNotExists([]byte(name)); err != nil {
				return fmt.Errorf("create %s bucket: %w", name, err)
			}
		}
		return nil
	})
	if err != nil {
		db.Close()
		return nil, err
	}

	return &Store{db: db}, nil
}

// OpenReadOnly opens an existing artifact file. A missing file yields
// ErrArtifactsMissing.
func OpenReadOnly(path string) (*Store, error) {
	if _, err := os.Stat(path); err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%s: %w", path, ErrArtifactsMissing)
		}
		return nil, fmt.Errorf("stat artifact file: %w", err)
	}

	db, err := bbolt.Open(path, 0o600, &bbolt.Options{Timeout: 1 * time.Second, ReadOnly: true})
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	return &Store{db: db}, nil
}

// Close closes the database connection gracefully.
func (s *Store) Close() error {
	if s.db != nil {
		err := s.db.Close()
		s.db = nil
		return err
	}
	return nil
}

// SaveArtifacts replaces the stored forest, schema and current metadata,
// and appends the metadata to the run history.
func (s *Store) SaveArtifacts(a Artifacts) error {
	if a.Forest == nil {
		return errors.New("no forest to save")
	}
	if a.Schema.Len() != a.Forest.Features {
		return fmt.Errorf("%w: schema has %d columns, forest expects %d", ml.ErrFeatureMismatch, a.Schema.Len(), a.Forest.Features)
	}

	model, err := a.Forest.MarshalBinary()
	if err != nil {
		return err
	}
	schema, err := json.Marshal(a.Schema)
	if err != nil {
		return fmt.Errorf("marshal schema: %w", err)
	}
	meta, err := json.Marshal(a.Meta)
	if err != nil {
		return fmt.Errorf("marshal metadata: %w", err)
	}

	return s.db.Update(func(tx *bbolt.Tx) error {
		if err := tx.Bucket([]byte(modelBucket)).Put(currentKey, model); err != nil {
			return fmt.Errorf("store forest: %w", err)
		}
		if err := tx.Bucket([]byte(schemaBucket)).Put(currentKey, schema); err != nil {
			return fmt.Errorf("store schema: %w", err)
		}
		mb := tx.Bucket([]byte(metaBucket))
		if err := mb.Put(currentKey, meta); err != nil {
			return fmt.Errorf("store metadata: %w", err)
		}
		return mb.Put(historyKey(a.Meta.TrainedAt), meta)
	})
}

// LoadArtifacts reads the current forest, schema and metadata.
func (s *Store) LoadArtifacts() (*Artifacts, error) {
	var a Artifacts

	err := s.db.View(func(tx *bbolt.Tx) error {
		model, err := get(tx, modelBucket)
		if err != nil {
			return err
		}
		schema, err := get(tx, schemaBucket)
		if err != nil {
			return err
		}
		meta, err := get(tx, metaBucket)
		if err != nil {
			return err
		}

		a.Forest = &ml.Forest{}
		if err := a.Forest.UnmarshalBinary(model); err != nil {
			return err
		}
		if err := json.Unmarshal(schema, &a.Schema); err != nil {
			return fmt.Errorf("unmarshal schema: %w", err)
		}
		if err := json.Unmarshal(meta, &a.Meta); err != nil {
			return fmt.Errorf("unmarshal metadata: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	if a.Schema.Len() != a.Forest.Features {
		return nil, fmt.Errorf("%w: schema has %d columns, forest expects %d", ml.ErrFeatureMismatch, a.Schema.Len(), a.Forest.Features)
	}
	return &a, nil
}

// History returns metadata for every recorded run trained within
// [start, end], oldest first.
func (s *Store) History(start, end time.Time) ([]Metadata, error) {
	var runs []Metadata

	err := s.db.View(func(tx *bbolt.Tx) error {
		b := tx.Bucket([]byte(metaBucket))
		if b == nil {
			return ErrArtifactsMissing
		}
		c := b.Cursor()
		endKey := historyKey(end)

		for k, v := c.Seek(historyKey(start)); k != nil && bytes.Compare(k, endKey) <= 0; k, v = c.Next() {
			if !bytes.HasPrefix(k, historyPrefix) {
				continue
			}
			var m Metadata
			if err := json.Unmarshal(v, &m); err != nil {
				continue // Skip malformed records
			}
			runs = append(runs, m)
		}
		return nil
	})

	return runs, err
}

func get(tx *bbolt.Tx, bucket string) ([]byte, error) {
	b := tx.Bucket([]byte(bucket))
	if b == nil {
		return nil, fmt.Errorf("bucket %s: %w", bucket, ErrArtifactsMissing)
	}
	v := b.Get(currentKey)
	if v == nil {
		return nil, fmt.Errorf("bucket %s: %w", bucket, ErrArtifactsMissing)
	}
	return append([]byte(nil), v...), nil
}

// historyKey sorts lexically in time order for non-negative Unix times.
func historyKey(t time.Time) []byte {
	return []byte(fmt.Sprintf("%s%020d", historyPrefix, t.UnixNano()))
}
