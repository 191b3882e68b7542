package catalog

import (
	"context"
	"net/http"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/guonaihong/gout"
	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/amanice/storefront/internal/domain"
)

type catalogDocument struct {
	Products []domain.Product `json:"products"`
}

// CatalogSource is the read-only list of built-in products. A successful load
// is kept for the life of the process; a failed load is retried on the next call.
type CatalogSource struct {
	location string
	timeout  time.Duration

	mu       sync.Mutex
	loaded   bool
	products []domain.Product
}

// NewCatalogSource reads from a file path or an http(s) URL
func NewCatalogSource(location string, timeout time.Duration) *CatalogSource {
	return &CatalogSource{location: location, timeout: timeout}
}

// NewStaticCatalog wraps an in-memory product list
func NewStaticCatalog(products []domain.Product) *CatalogSource {
	s := &CatalogSource{loaded: true}
	s.products = prepareCatalog(products)
	return s
}

// Load returns a copy of the catalog products. On failure it returns an empty list and the error.
func (s *CatalogSource) Load(ctx context.Context) ([]domain.Product, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.loaded {
		data, err := s.read(ctx)
		if err != nil {
			return []domain.Product{}, err
		}
		var doc catalogDocument
		if err := json.Unmarshal(data, &doc); err != nil {
			return []domain.Product{}, errors.Wrapf(err, "parse catalog %s", s.location)
		}
		s.products = prepareCatalog(doc.Products)
		s.loaded = true
	}
	out := make([]domain.Product, len(s.products))
	copy(out, s.products)
	return out, nil
}

// Has reports whether id belongs to a loaded catalog product
func (s *CatalogSource) Has(ctx context.Context, id string) bool {
	_, ok := s.Find(ctx, id)
	return ok
}

// Find returns the catalog product with the given id
func (s *CatalogSource) Find(ctx context.Context, id string) (domain.Product, bool) {
	products, _ := s.Load(ctx)
	for _, p := range products {
		if p.ID == id {
			return p, true
		}
	}
	return domain.Product{}, false
}

func (s *CatalogSource) read(ctx context.Context) ([]byte, error) {
	if s.location == "" {
		return nil, errors.New("catalog source is not configured")
	}
	if !strings.HasPrefix(s.location, "http://") && !strings.HasPrefix(s.location, "https://") {
		data, err := os.ReadFile(s.location)
		return data, errors.Wrapf(err, "read catalog %s", s.location)
	}
	if s.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}
	var body []byte
	var code int
	err := gout.GET(s.location).WithContext(ctx).BindBody(&body).Code(&code).Do()
	if err != nil {
		return nil, &FetchError{Source: s.location, Err: err}
	}
	if code < http.StatusOK || code >= http.StatusMultipleChoices {
		return nil, &FetchError{Source: s.location, Status: code}
	}
	return body, nil
}

// prepareCatalog normalizes the products and keeps the first of duplicate ids
func prepareCatalog(products []domain.Product) []domain.Product {
	out := make([]domain.Product, 0, len(products))
	seen := make(map[string]struct{}, len(products))
	for _, p := range products {
		p.Normalize()
		if _, dup := seen[p.ID]; dup {
			zap.L().Warn("duplicate catalog product id", zap.String("namespace", "catalog"),
				zap.String("id", p.ID))
			continue
		}
		seen[p.ID] = struct{}{}
		p.IsDefault = true
		out = append(out, p)
	}
	return out
}
