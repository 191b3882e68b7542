package catalog

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/guonaihong/gout"
	"github.com/pkg/errors"
	"github.com/spf13/cast"
	"gorm.io/gorm"

	"github.com/amanice/storefront/internal/domain"
	"github.com/amanice/storefront/pkg/common"
)

// RemoteStore is the authoritative store of admin-entered products.
// List reports failures as a *FetchError so callers can fall back explicitly.
type RemoteStore interface {
	List(ctx context.Context) ([]domain.Product, *FetchError)
	Create(ctx context.Context, p domain.Product) (string, error)
	Update(ctx context.Context, id string, patch ProductPatch) error
	Delete(ctx context.Context, id string) error
}

// GormRemoteStore keeps admin products in the products table
type GormRemoteStore struct {
	db *gorm.DB
}

func NewGormRemoteStore(db *gorm.DB) *GormRemoteStore {
	return &GormRemoteStore{db: db}
}

func (s *GormRemoteStore) List(ctx context.Context) ([]domain.Product, *FetchError) {
	var records []domain.ProductRecord
	if err := s.db.WithContext(ctx).Order("created_at DESC").Order("id DESC").Find(&records).Error; err != nil {
		return nil, &FetchError{Source: "database", Err: err}
	}
	products := make([]domain.Product, 0, len(records))
	for _, r := range records {
		products = append(products, r.ToProduct())
	}
	return products, nil
}

func (s *GormRemoteStore) Create(ctx context.Context, p domain.Product) (string, error) {
	p.Normalize()
	if err := ValidateNew(p); err != nil {
		return "", err
	}
	record := domain.NewProductRecord(p)
	if !p.DateAdded.IsZero() {
		record.CreatedAt = p.DateAdded.Time
	}
	if err := s.db.WithContext(ctx).Create(&record).Error; err != nil {
		return "", &FetchError{Source: "database", Err: err}
	}
	return cast.ToString(record.ID), nil
}

func (s *GormRemoteStore) find(ctx context.Context, id string) (*domain.ProductRecord, error) {
	rid, err := cast.ToInt64E(strings.TrimSpace(id))
	if err != nil || rid <= 0 {
		return nil, ErrNotFound
	}
	var record domain.ProductRecord
	err = s.db.WithContext(ctx).Where("id = ?", rid).First(&record).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, &FetchError{Source: "database", Err: err}
	}
	return &record, nil
}

func (s *GormRemoteStore) Update(ctx context.Context, id string, patch ProductPatch) error {
	if patch.Empty() {
		return validationErr("No fields to update")
	}
	if err := patch.Validate(); err != nil {
		return err
	}
	record, err := s.find(ctx, id)
	if err != nil {
		return err
	}
	p := record.ToProduct()
	patch.Apply(&p)
	updated := domain.NewProductRecord(p)
	updated.ID = record.ID
	updated.CreatedAt = record.CreatedAt
	if err := s.db.WithContext(ctx).Save(&updated).Error; err != nil {
		return &FetchError{Source: "database", Err: err}
	}
	return nil
}

func (s *GormRemoteStore) Delete(ctx context.Context, id string) error {
	record, err := s.find(ctx, id)
	if err != nil {
		return err
	}
	if err := s.db.WithContext(ctx).Delete(record).Error; err != nil {
		return &FetchError{Source: "database", Err: err}
	}
	return nil
}

// HTTPRemoteStore talks to the admin endpoints of another storefront instance
type HTTPRemoteStore struct {
	baseURL string
	timeout time.Duration
}

func NewHTTPRemoteStore(baseURL string, timeout time.Duration) *HTTPRemoteStore {
	return &HTTPRemoteStore{baseURL: strings.TrimRight(baseURL, "/"), timeout: timeout}
}

type statusEnvelope struct {
	Status  string      `json:"status"`
	Message string      `json:"message"`
	ID      interface{} `json:"id"`
}

func (s *HTTPRemoteStore) context(ctx context.Context) (context.Context, context.CancelFunc) {
	if s.timeout > 0 {
		return context.WithTimeout(ctx, s.timeout)
	}
	return context.WithCancel(ctx)
}

func (s *HTTPRemoteStore) List(ctx context.Context) ([]domain.Product, *FetchError) {
	ctx, cancel := s.context(ctx)
	defer cancel()
	url := s.baseURL + "/admin/getProducts"
	var body []byte
	var code int
	if err := gout.GET(url).WithContext(ctx).BindBody(&body).Code(&code).Do(); err != nil {
		return nil, &FetchError{Source: url, Err: err}
	}
	if code < http.StatusOK || code >= http.StatusMultipleChoices {
		return nil, &FetchError{Source: url, Status: code}
	}
	var products []domain.Product
	if err := json.Unmarshal(body, &products); err != nil {
		return nil, &FetchError{Source: url, Err: err}
	}
	for i := range products {
		products[i].Normalize()
	}
	return products, nil
}

func (s *HTTPRemoteStore) post(ctx context.Context, path string, payload interface{}) (*statusEnvelope, error) {
	ctx, cancel := s.context(ctx)
	defer cancel()
	url := s.baseURL + path
	var body []byte
	var code int
	err := gout.POST(url).WithContext(ctx).SetJSON(payload).BindBody(&body).Code(&code).Do()
	if err != nil {
		return nil, &FetchError{Source: url, Err: err}
	}
	var env statusEnvelope
	_ = json.Unmarshal(body, &env)
	switch {
	case code == http.StatusBadRequest:
		return nil, validationErr("%s", common.IfEmptyStr(env.Message, "Invalid request"))
	case code == http.StatusNotFound:
		return nil, ErrNotFound
	case code < http.StatusOK || code >= http.StatusMultipleChoices:
		return nil, &FetchError{Source: url, Status: code}
	case env.Status != "success":
		return nil, &FetchError{Source: url, Err: errors.New(common.IfEmptyStr(env.Message, "unexpected response"))}
	}
	return &env, nil
}

func (s *HTTPRemoteStore) Create(ctx context.Context, p domain.Product) (string, error) {
	p.Normalize()
	if err := ValidateNew(p); err != nil {
		return "", err
	}
	env, err := s.post(ctx, "/admin/saveProduct", p)
	if err != nil {
		return "", err
	}
	return toID(env.ID), nil
}

func (s *HTTPRemoteStore) Update(ctx context.Context, id string, patch ProductPatch) error {
	if patch.Empty() {
		return validationErr("No fields to update")
	}
	if err := patch.Validate(); err != nil {
		return err
	}
	body := map[string]interface{}{}
	data, err := json.Marshal(patch)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(data, &body); err != nil {
		return err
	}
	body["id"] = id
	_, err = s.post(ctx, "/admin/updateProduct", body)
	return err
}

func (s *HTTPRemoteStore) Delete(ctx context.Context, id string) error {
	_, err := s.post(ctx, "/admin/deleteProduct", map[string]string{"id": id})
	return err
}
