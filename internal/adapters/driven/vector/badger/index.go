// Package badger provides a persistent local vector index on BadgerDB.
package badger

import (
	"context"
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"os"

	"github.com/dgraph-io/badger/v4"
	"github.com/dgraph-io/badger/v4/options"

	"github.com/custodia-labs/ragline/internal/adapters/driven/vector"
	"github.com/custodia-labs/ragline/internal/core/domain"
	"github.com/custodia-labs/ragline/internal/core/ports/driven"
	"github.com/custodia-labs/ragline/internal/logger"
)

// Ensure Index implements the interface.
var _ driven.VectorIndex = (*Index)(nil)

const (
	vectorPrefix    = "vec/"
	dimensionPrefix = "dim/"

	// deleteBatch bounds keys removed per transaction.
	deleteBatch = 1000
)

// Index stores vectors and payloads in BadgerDB and searches by brute-force
// cosine similarity within one tenant prefix.
type Index struct {
	db *badger.DB
}

// Open opens or creates the index at dir. An empty dir opens an in-memory
// database.
func Open(dir string) (*Index, error) {
	var opts badger.Options
	if dir == "" {
		opts = badger.DefaultOptions("").WithInMemory(true)
	} else {
		if err := os.MkdirAll(dir, 0o700); err != nil {
			return nil, fmt.Errorf("creating vector directory: %w", err)
		}
		opts = badger.DefaultOptions(dir)
	}
	opts.Logger = logger.Badger{}
	opts.Compression = options.None

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("%w: opening badger: %w", domain.ErrIndexUnavailable, err)
	}
	return &Index{db: db}, nil
}

// EnsureCollection verifies the database is open.
func (i *Index) EnsureCollection(ctx context.Context) error {
	return i.TestConnection(ctx)
}

// TestConnection fails once the database is closed.
func (i *Index) TestConnection(_ context.Context) error {
	if i.db.IsClosed() {
		return domain.ErrIndexUnavailable
	}
	return nil
}

// Upsert writes the vector and payload under id in the tenant's keyspace.
func (i *Index) Upsert(
	_ context.Context, id string, vec []float32, payload domain.VectorPayload, tenantID string,
) (string, error) {
	if i.db.IsClosed() {
		return "", domain.ErrIndexUnavailable
	}
	payload.TenantID = tenantID
	payload.Dimensions = len(vec)

	value, err := json.Marshal(domain.VectorRecord{ID: id, Vector: vec, Payload: payload})
	if err != nil {
		return "", fmt.Errorf("encoding vector %s: %w", id, err)
	}

	err = i.db.Update(func(txn *badger.Txn) error {
		dimKey := []byte(dimensionPrefix + vector.PartitionKey(tenantID, payload.EmbeddingModel))
		want, err := readDimension(txn, dimKey)
		if err != nil {
			return err
		}
		if err := vector.CheckDimensions(want, len(vec)); err != nil {
			return err
		}
		if want == 0 {
			buf := make([]byte, 4)
			binary.BigEndian.PutUint32(buf, uint32(len(vec)))
			if err := txn.Set(dimKey, buf); err != nil {
				return err
			}
		}
		return txn.Set(vectorKey(tenantID, id), value)
	})
	if err != nil {
		return "", wrapClosed(err)
	}
	return id, nil
}

// Search scans the tenant's vectors and returns the topK most similar.
func (i *Index) Search(
	_ context.Context, vec []float32, topK int, tenantID string, filter domain.VectorFilter,
) ([]domain.VectorHit, error) {
	hits := make([]domain.VectorHit, 0)
	if i.db.IsClosed() {
		return hits, nil
	}

	err := i.scan(tenantID, func(_ []byte, rec *domain.VectorRecord) error {
		if len(rec.Vector) != len(vec) || !filter.Matches(rec.Payload) {
			return nil
		}
		hits = append(hits, domain.VectorHit{
			ID:      rec.ID,
			Score:   vector.Cosine(vec, rec.Vector),
			Payload: rec.Payload,
		})
		return nil
	})
	if err != nil {
		logger.Warn("badger search: %v", err)
		return []domain.VectorHit{}, nil
	}
	return vector.Rank(hits, topK), nil
}

// Delete removes id from whichever tenant holds it.
func (i *Index) Delete(_ context.Context, id string) error {
	var keys [][]byte
	err := i.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = false
		opts.Prefix = []byte(vectorPrefix)
		it := txn.NewIterator(opts)
		defer it.Close()

		suffix := "/" + id
		for it.Rewind(); it.Valid(); it.Next() {
			key := it.Item().KeyCopy(nil)
			if len(key) >= len(suffix) && string(key[len(key)-len(suffix):]) == suffix {
				keys = append(keys, key)
			}
		}
		return nil
	})
	if err != nil {
		return wrapClosed(err)
	}
	return i.deleteKeys(keys)
}

// DeleteByFilter removes the tenant's vectors whose payload matches filter.
func (i *Index) DeleteByFilter(_ context.Context, tenantID string, filter domain.VectorFilter) error {
	var keys [][]byte
	err := i.scan(tenantID, func(key []byte, rec *domain.VectorRecord) error {
		if filter.Matches(rec.Payload) {
			keys = append(keys, key)
		}
		return nil
	})
	if err != nil {
		return wrapClosed(err)
	}
	logger.Debug("badger: deleting %d vectors in %s", len(keys), tenantID)
	return i.deleteKeys(keys)
}

// Close closes the database.
func (i *Index) Close() error {
	return i.db.Close()
}

func (i *Index) scan(tenantID string, fn func(key []byte, rec *domain.VectorRecord) error) error {
	return i.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = []byte(vectorPrefix + tenantID + "/")
		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Rewind(); it.Valid(); it.Next() {
			item := it.Item()
			var rec domain.VectorRecord
			if err := item.Value(func(val []byte) error {
				return json.Unmarshal(val, &rec)
			}); err != nil {
				return fmt.Errorf("decoding %s: %w", item.Key(), err)
			}
			if err := fn(item.KeyCopy(nil), &rec); err != nil {
				return err
			}
		}
		return nil
	})
}

func (i *Index) deleteKeys(keys [][]byte) error {
	for start := 0; start < len(keys); start += deleteBatch {
		end := min(start+deleteBatch, len(keys))
		err := i.db.Update(func(txn *badger.Txn) error {
			for _, k := range keys[start:end] {
				if err := txn.Delete(k); err != nil {
					return err
				}
			}
			return nil
		})
		if err != nil {
			return wrapClosed(err)
		}
	}
	return nil
}

func readDimension(txn *badger.Txn, key []byte) (int, error) {
	item, err := txn.Get(key)
	if errors.Is(err, badger.ErrKeyNotFound) {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	var dim int
	err = item.Value(func(val []byte) error {
		if len(val) != 4 {
			return fmt.Errorf("corrupt dimension record %s", key)
		}
		dim = int(binary.BigEndian.Uint32(val))
		return nil
	})
	return dim, err
}

func vectorKey(tenantID, id string) []byte {
	return []byte(vectorPrefix + tenantID + "/" + id)
}

func wrapClosed(err error) error {
	if errors.Is(err, badger.ErrDBClosed) {
		return fmt.Errorf("%w: %w", domain.ErrIndexUnavailable, err)
	}
	return err
}
