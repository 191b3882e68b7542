package kvstore

import (
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/pkg/errors"
	bolt "go.etcd.io/bbolt"
)

// ErrQuotaExceeded is returned by Set when the write would grow a bucket past its quota
var ErrQuotaExceeded = errors.New("storage quota exceeded")

// KV is a string keyed byte store. Get returns nil, nil for a missing key.
type KV interface {
	Get(key string) ([]byte, error)
	Set(key string, value []byte) error
	Delete(key string) error
}

// Open opens (or creates) the bbolt database file at path
func Open(path string) (*bolt.DB, error) {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, errors.Wrap(err, "create kv directory")
		}
	}
	db, err := bolt.Open(path, 0o600, &bolt.Options{Timeout: 3 * time.Second})
	if err != nil {
		return nil, errors.Wrapf(err, "open kv file %s", path)
	}
	return db, nil
}

// BoltKV stores keys in one bbolt bucket. A quota <= 0 disables the size check.
type BoltKV struct {
	db     *bolt.DB
	bucket []byte
	quota  int64
}

func NewBoltKV(db *bolt.DB, bucket string, quota int64) (*BoltKV, error) {
	err := db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists([]byte(bucket))
		return err
	})
	if err != nil {
		return nil, errors.Wrapf(err, "create bucket %s", bucket)
	}
	return &BoltKV{db: db, bucket: []byte(bucket), quota: quota}, nil
}

func (s *BoltKV) Get(key string) ([]byte, error) {
	var out []byte
	err := s.db.View(func(tx *bolt.Tx) error {
		v := tx.Bucket(s.bucket).Get([]byte(key))
		if v != nil {
			out = append([]byte(nil), v...)
		}
		return nil
	})
	return out, err
}

func (s *BoltKV) Set(key string, value []byte) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(s.bucket)
		if s.quota > 0 {
			var used int64
			_ = b.ForEach(func(k, v []byte) error {
				if string(k) != key {
					used += int64(len(k) + len(v))
				}
				return nil
			})
			if used+int64(len(key)+len(value)) > s.quota {
				return ErrQuotaExceeded
			}
		}
		return b.Put([]byte(key), value)
	})
}

func (s *BoltKV) Delete(key string) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(s.bucket).Delete([]byte(key))
	})
}

// MemoryKV is an in-process KV with the same quota semantics as BoltKV
type MemoryKV struct {
	mu    sync.RWMutex
	data  map[string][]byte
	quota int64
}

func NewMemoryKV(quota int64) *MemoryKV {
	return &MemoryKV{data: make(map[string][]byte), quota: quota}
}

func (m *MemoryKV) Get(key string) ([]byte, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	v, ok := m.data[key]
	if !ok {
		return nil, nil
	}
	return append([]byte(nil), v...), nil
}

func (m *MemoryKV) Set(key string, value []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.quota > 0 {
		var used int64
		for k, v := range m.data {
			if k != key {
				used += int64(len(k) + len(v))
			}
		}
		if used+int64(len(key)+len(value)) > m.quota {
			return ErrQuotaExceeded
		}
	}
	m.data[key] = append([]byte(nil), value...)
	return nil
}

func (m *MemoryKV) Delete(key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.data, key)
	return nil
}
