package catalog

import (
	"strings"
	"sync"

	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/amanice/storefront/internal/domain"
	"github.com/amanice/storefront/internal/kvstore"
)

const (
	KeyProducts        = "products"
	KeyDeletedProducts = "deletedProducts"
	imageKeyPrefix     = "image:"
)

// OverrideStore is the local fallback store: admin products written while the
// remote store was unreachable, the tombstone list and inline image blobs.
//
// Each collection is rewritten whole on every change. When the backing KV is
// out of quota the new value is kept in memory and ErrStorageQuota is returned.
type OverrideStore struct {
	kv      kvstore.KV
	mu      sync.Mutex
	pending map[string][]byte
}

func NewOverrideStore(kv kvstore.KV) *OverrideStore {
	return &OverrideStore{kv: kv, pending: make(map[string][]byte)}
}

func (s *OverrideStore) read(key string) ([]byte, error) {
	if v, ok := s.pending[key]; ok {
		return v, nil
	}
	return s.kv.Get(key)
}

func (s *OverrideStore) write(key string, v interface{}) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	err = s.kv.Set(key, data)
	if errors.Is(err, kvstore.ErrQuotaExceeded) {
		s.pending[key] = data
		return errors.Wrapf(ErrStorageQuota, "write %s", key)
	}
	if err != nil {
		return errors.Wrapf(err, "write %s", key)
	}
	delete(s.pending, key)
	return nil
}

// loadProducts must be called with mu held. Malformed data yields an empty list and ErrIntegrity.
func (s *OverrideStore) loadProducts() ([]domain.Product, error) {
	data, err := s.read(KeyProducts)
	if err != nil || len(data) == 0 {
		return []domain.Product{}, err
	}
	var items []domain.Product
	if err := json.Unmarshal(data, &items); err != nil {
		return []domain.Product{}, errors.Wrap(ErrIntegrity, err.Error())
	}
	for i := range items {
		items[i].Normalize()
		items[i].IsDefault = false
	}
	return items, nil
}

func (s *OverrideStore) loadTombstones() ([]string, error) {
	data, err := s.read(KeyDeletedProducts)
	if err != nil || len(data) == 0 {
		return []string{}, err
	}
	var raw []interface{}
	if err := json.Unmarshal(data, &raw); err != nil {
		return []string{}, errors.Wrap(ErrIntegrity, err.Error())
	}
	ids := make([]string, 0, len(raw))
	for _, v := range raw {
		ids = append(ids, toID(v))
	}
	return ids, nil
}

// Products returns the locally stored admin products
func (s *OverrideStore) Products() ([]domain.Product, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.loadProducts()
}

// Tombstones returns the ids of deleted catalog products
func (s *OverrideStore) Tombstones() (Tombstones, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	ids, err := s.loadTombstones()
	return NewTombstones(ids...), err
}

// AppendProduct adds a product to the local collection
func (s *OverrideStore) AppendProduct(p domain.Product) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	items, err := s.loadProducts()
	if err != nil && !errors.Is(err, ErrIntegrity) {
		return err
	}
	logIntegrity(err)
	p.IsDefault = false
	return s.write(KeyProducts, append(items, p))
}

// UpdateProduct applies fn to the local product whose id or originalId equals id
func (s *OverrideStore) UpdateProduct(id string, fn func(p *domain.Product)) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	items, err := s.loadProducts()
	if err != nil && !errors.Is(err, ErrIntegrity) {
		return false, err
	}
	logIntegrity(err)
	for i := range items {
		if items[i].ID == id || (items[i].OriginalID != "" && items[i].OriginalID == id) {
			fn(&items[i])
			items[i].Normalize()
			return true, s.write(KeyProducts, items)
		}
	}
	return false, nil
}

// RemoveProduct drops the local products whose id or originalId equals id
func (s *OverrideStore) RemoveProduct(id string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	items, err := s.loadProducts()
	if err != nil && !errors.Is(err, ErrIntegrity) {
		return false, err
	}
	logIntegrity(err)
	kept := items[:0]
	for _, p := range items {
		if p.ID != id && p.OriginalID != id {
			kept = append(kept, p)
		}
	}
	if len(kept) == len(items) {
		return false, nil
	}
	return true, s.write(KeyProducts, kept)
}

// AddTombstone records a deleted catalog product id. Adding an existing id is a no-op.
func (s *OverrideStore) AddTombstone(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	ids, err := s.loadTombstones()
	if err != nil && !errors.Is(err, ErrIntegrity) {
		return err
	}
	logIntegrity(err)
	for _, v := range ids {
		if v == id {
			return nil
		}
	}
	return s.write(KeyDeletedProducts, append(ids, id))
}

// PutImage keeps a data URL under image:<name>
func (s *OverrideStore) PutImage(name, dataURL string) error {
	if !strings.HasPrefix(dataURL, "data:") {
		return validationErr("Image must be a data URL")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.write(imageKeyPrefix+name, dataURL)
}

// GetImage returns the stored data URL for name
func (s *OverrideStore) GetImage(name string) (string, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	data, err := s.read(imageKeyPrefix + name)
	if err != nil || len(data) == 0 {
		return "", false, err
	}
	var v string
	if err := json.Unmarshal(data, &v); err != nil {
		return "", false, errors.Wrap(ErrIntegrity, err.Error())
	}
	return v, true, nil
}

func logIntegrity(err error) {
	if err != nil {
		zap.L().Warn("local override data is malformed, starting from empty",
			zap.String("namespace", "catalog"), zap.Error(err))
	}
}
