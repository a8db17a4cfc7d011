package catalog

import (
	"context"
	"errors"
	"fmt"
	"time"

	json "github.com/goccy/go-json"
	"go.etcd.io/bbolt"
	"go.uber.org/zap"

	"github.com/goliatone/go-formembed/pkg/form"
)

const boltBucketForms = "forms" // key: record id -> Record JSON

// Bolt is a Catalog persisted to a local bbolt file.
type Bolt struct {
	db   *bbolt.DB
	opts options
}

var _ Catalog = (*Bolt)(nil)

// OpenBolt opens (creating if needed) the catalog file at path and inserts
// any seed records that are not already stored.
func OpenBolt(path string, opts ...Option) (*Bolt, error) {
	cfg := defaultOptions()
	for _, opt := range opts {
		if opt != nil {
			opt(&cfg)
		}
	}

	db, err := bbolt.Open(path, 0o600, &bbolt.Options{Timeout: time.Second})
	if err != nil {
		return nil, fmt.Errorf("catalog: open %s: %w", path, err)
	}

	if err := db.Update(func(tx *bbolt.Tx) error {
		bucket, err := tx.CreateBucketIfNotExists([]byte(boltBucketForms))
		if err != nil {
			return err
		}
		for _, record := range cfg.seed {
			if err := record.Validate(); err != nil {
				return fmt.Errorf("seed %q: %w", record.ID, err)
			}
			if bucket.Get([]byte(record.ID)) != nil {
				continue
			}
			if err := putRecord(bucket, record); err != nil {
				return err
			}
		}
		return nil
	}); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("catalog: initialise %s: %w", path, err)
	}

	cfg.logger.Debug("bolt catalog opened", zap.String("path", path))
	return &Bolt{db: db, opts: cfg}, nil
}

// Close releases the underlying file.
func (b *Bolt) Close() error {
	return b.db.Close()
}

// ListForms returns every record, most recently modified first.
func (b *Bolt) ListForms(ctx context.Context) ([]form.Record, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	var out []form.Record
	err := b.db.View(func(tx *bbolt.Tx) error {
		return tx.Bucket([]byte(boltBucketForms)).ForEach(func(_, data []byte) error {
			record, err := decodeRecord(data)
			if err != nil {
				return err
			}
			out = append(out, record)
			return nil
		})
	})
	if err != nil {
		return nil, fmt.Errorf("catalog: list: %w", err)
	}
	sortRecords(out)
	return out, nil
}

// GetForm returns the record with id.
func (b *Bolt) GetForm(ctx context.Context, id string) (form.Record, error) {
	if err := ctx.Err(); err != nil {
		return form.Record{}, err
	}
	var record form.Record
	err := b.db.View(func(tx *bbolt.Tx) error {
		data := tx.Bucket([]byte(boltBucketForms)).Get([]byte(id))
		if data == nil {
			return fmt.Errorf("%w: %q", ErrNotFound, id)
		}
		var err error
		record, err = decodeRecord(data)
		return err
	})
	if err != nil {
		return form.Record{}, err
	}
	return record, nil
}

// CreateForm inserts a new record stamped with the current time.
func (b *Bolt) CreateForm(ctx context.Context, record form.Record) (form.Record, error) {
	if err := ctx.Err(); err != nil {
		return form.Record{}, err
	}
	if err := record.Validate(); err != nil {
		return form.Record{}, fmt.Errorf("catalog: create: %w", err)
	}
	stored := record.Clone()
	stored.LastModified = b.opts.clock().UTC()

	err := b.db.Update(func(tx *bbolt.Tx) error {
		bucket := tx.Bucket([]byte(boltBucketForms))
		if bucket.Get([]byte(stored.ID)) != nil {
			return fmt.Errorf("%w: %q", ErrDuplicate, stored.ID)
		}
		return putRecord(bucket, stored)
	})
	if err != nil {
		return form.Record{}, wrapWrite("create", err)
	}
	b.opts.logger.Info("form created", zap.String("form", stored.ID))
	return stored, nil
}

// UpdateForm replaces an existing record. Path is pinned to the stored value.
func (b *Bolt) UpdateForm(ctx context.Context, record form.Record) (form.Record, error) {
	if err := ctx.Err(); err != nil {
		return form.Record{}, err
	}
	if err := record.Validate(); err != nil {
		return form.Record{}, fmt.Errorf("catalog: update: %w", err)
	}
	stored := record.Clone()
	stored.LastModified = b.opts.clock().UTC()

	err := b.db.Update(func(tx *bbolt.Tx) error {
		bucket := tx.Bucket([]byte(boltBucketForms))
		data := bucket.Get([]byte(stored.ID))
		if data == nil {
			return fmt.Errorf("%w: %q", ErrNotFound, stored.ID)
		}
		current, err := decodeRecord(data)
		if err != nil {
			return err
		}
		stored.Path = current.Path
		return putRecord(bucket, stored)
	})
	if err != nil {
		return form.Record{}, wrapWrite("update", err)
	}
	b.opts.logger.Info("form updated", zap.String("form", stored.ID))
	return stored, nil
}

func putRecord(bucket *bbolt.Bucket, record form.Record) error {
	data, err := json.Marshal(record)
	if err != nil {
		return fmt.Errorf("encode %q: %w", record.ID, err)
	}
	return bucket.Put([]byte(record.ID), data)
}

func decodeRecord(data []byte) (form.Record, error) {
	var record form.Record
	if err := json.Unmarshal(data, &record); err != nil {
		return form.Record{}, fmt.Errorf("decode record: %w", err)
	}
	return record, nil
}

func wrapWrite(op string, err error) error {
	if errors.Is(err, ErrNotFound) || errors.Is(err, ErrDuplicate) {
		return err
	}
	return fmt.Errorf("catalog: %s: %w", op, err)
}
