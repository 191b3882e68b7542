package catalog

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/asaskevich/EventBus"
	"github.com/pkg/errors"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"github.com/amanice/storefront/internal/domain"
	"github.com/amanice/storefront/pkg/common"
	"github.com/amanice/storefront/pkg/metrics"
)

// TopicCatalogUpdated is published on the event bus after every successful write
const TopicCatalogUpdated = "catalog:updated"

// Engine owns the three product sources and produces the merged view.
//
// Every Refresh recomputes the merge from scratch. Concurrent refreshes share
// one fetch, and a refresh never replaces a snapshot built after it started.
type Engine struct {
	catalog *CatalogSource
	remote  RemoteStore
	local   *OverrideStore
	bus     EventBus.Bus
	timeout time.Duration

	group singleflight.Group
	gen   uint64

	mu       sync.RWMutex
	snapshot []domain.Product
	applied  uint64
	// shadow mirrors the last remote listing plus the writes made since
	shadow   []domain.Product
	edits    []shadowEdit
	editSeq  uint64
	fallback bool
}

// shadowEdit is a write applied to the shadow copy. A refresh whose fetch
// started before the edit replays it on the fetched listing.
type shadowEdit struct {
	seq   uint64
	apply func([]domain.Product) []domain.Product
}

// NewEngine bus may be nil
func NewEngine(catalog *CatalogSource, remote RemoteStore, local *OverrideStore, bus EventBus.Bus) *Engine {
	return &Engine{catalog: catalog, remote: remote, local: local, bus: bus, timeout: 10 * time.Second}
}

// SetRemoteTimeout bounds the shared remote fetch of a refresh
func (e *Engine) SetRemoteTimeout(d time.Duration) {
	if d > 0 {
		e.timeout = d
	}
}

// Refresh fetches the remote products, falling back to the local override
// store when the fetch fails, and returns the merged view. It never fails.
// The fetch is shared and runs detached from ctx; when ctx ends first the
// current snapshot is returned.
func (e *Engine) Refresh(ctx context.Context) []domain.Product {
	ch := e.group.DoChan("refresh", func() (interface{}, error) {
		fctx, cancel := context.WithTimeout(context.Background(), e.timeout)
		defer cancel()
		return e.refresh(fctx), nil
	})
	select {
	case res := <-ch:
		return cloneProducts(res.Val.([]domain.Product))
	case <-ctx.Done():
		e.mu.RLock()
		defer e.mu.RUnlock()
		return cloneProducts(e.snapshot)
	}
}

func (e *Engine) refresh(ctx context.Context) []domain.Product {
	gen := atomic.AddUint64(&e.gen, 1)
	e.mu.RLock()
	since := e.editSeq
	e.mu.RUnlock()

	catalog := e.catalogProducts(ctx)
	remote, ferr := e.remote.List(ctx)
	if ferr != nil {
		metrics.Inc("catalog_remote_fallback")
		zap.L().Warn("remote store unavailable, using local overrides",
			zap.String("namespace", "catalog"), zap.Error(ferr))
	}
	overrides := Compose(remote, ferr, e.localProducts)
	tombstones := e.tombstones()

	e.mu.Lock()
	if ferr == nil {
		// writes made while the listing was in flight
		overrides = cloneProducts(remote)
		kept := make([]shadowEdit, 0, len(e.edits))
		for _, ed := range e.edits {
			if ed.seq > since {
				overrides = ed.apply(overrides)
				kept = append(kept, ed)
			}
		}
		if gen > e.applied {
			e.edits = kept
		}
	}
	merged := Merge(catalog, overrides, tombstones)
	if gen > e.applied {
		e.applied = gen
		e.snapshot = merged
		e.fallback = ferr != nil
		if ferr == nil {
			e.shadow = overrides
		}
	}
	e.mu.Unlock()

	metrics.Inc("catalog_refresh")
	metrics.SetGauge("catalog_products", int64(len(merged)))
	return merged
}

// rebuild recomputes the snapshot from the shadow copy without a remote fetch
func (e *Engine) rebuild(ctx context.Context) {
	gen := atomic.AddUint64(&e.gen, 1)
	catalog := e.catalogProducts(ctx)
	e.mu.RLock()
	fallback, overrides := e.fallback, cloneProducts(e.shadow)
	e.mu.RUnlock()
	if fallback {
		overrides = e.localProducts()
	}
	merged := Merge(catalog, overrides, e.tombstones())
	e.mu.Lock()
	if gen > e.applied {
		e.applied = gen
		e.snapshot = merged
	}
	e.mu.Unlock()
}

// editShadow applies fn to the shadow copy and records it for in-flight refreshes
func (e *Engine) editShadow(fn func([]domain.Product) []domain.Product) {
	e.mu.Lock()
	e.editSeq++
	e.shadow = fn(e.shadow)
	e.edits = append(e.edits, shadowEdit{seq: e.editSeq, apply: fn})
	e.mu.Unlock()
}

// Snapshot returns the last merged view, refreshing first if there is none
func (e *Engine) Snapshot(ctx context.Context) []domain.Product {
	e.mu.RLock()
	snap := e.snapshot
	e.mu.RUnlock()
	if snap == nil {
		return e.Refresh(ctx)
	}
	return cloneProducts(snap)
}

// UsingFallback reports whether the last refresh read the local override store
func (e *Engine) UsingFallback() bool {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.fallback
}

// Get returns the merged product with the given id. A product derived from
// a catalog product is also found by the catalog id.
func (e *Engine) Get(ctx context.Context, id string) (domain.Product, error) {
	products := e.Snapshot(ctx)
	for _, p := range products {
		if p.ID == id {
			return p, nil
		}
	}
	for _, p := range products {
		if p.OriginalID == id {
			return p, nil
		}
	}
	return domain.Product{}, errors.Wrapf(ErrNotFound, "product %s", id)
}

func prepare(p domain.Product) (domain.Product, error) {
	p.Normalize()
	if err := ValidateNew(p); err != nil {
		return p, err
	}
	if p.IsDefault && p.ID != "" {
		p.OriginalID = p.ID
	}
	if p.DateAdded.IsZero() {
		p.DateAdded = domain.NewTimestamp(time.Now())
	}
	return p, nil
}

// Save creates an admin product. When the remote store is unreachable the
// product is kept in the local override store under an admin- id.
func (e *Engine) Save(ctx context.Context, p domain.Product) (domain.Product, error) {
	p, err := prepare(p)
	if err != nil {
		return p, err
	}
	saved, err := e.saveRemote(ctx, p)
	if errors.Is(err, ErrTransport) {
		zap.L().Warn("remote save failed, storing product locally",
			zap.String("namespace", "catalog"), zap.Error(err))
		return e.saveLocal(ctx, p)
	}
	return saved, err
}

func (e *Engine) saveRemote(ctx context.Context, p domain.Product) (domain.Product, error) {
	id, err := e.remote.Create(ctx, p)
	if err != nil {
		return p, err
	}
	p.ID = id
	p.IsDefault = false
	created := p
	e.editShadow(func(products []domain.Product) []domain.Product {
		out := []domain.Product{created}
		for _, v := range products {
			if v.ID != created.ID {
				out = append(out, v)
			}
		}
		return out
	})
	if p.OriginalID != "" {
		if terr := e.localWrite(e.local.AddTombstone(p.OriginalID)); terr != nil {
			return p, terr
		}
	}
	e.written(ctx, "save", p.ID)
	return p, nil
}

func (e *Engine) saveLocal(ctx context.Context, p domain.Product) (domain.Product, error) {
	p.ID = "admin-" + common.UUID()
	p.IsDefault = false
	if err := e.localWrite(e.local.AppendProduct(p)); err != nil {
		return p, err
	}
	metrics.Inc("catalog_local_writes")
	e.rebuild(ctx)
	return p, nil
}

// Update applies a partial update. Editing a catalog product stores an edited
// copy that replaces it in the merged view. The local override store is only
// written when the remote store is unreachable.
func (e *Engine) Update(ctx context.Context, id string, patch ProductPatch) error {
	if patch.Empty() {
		return validationErr("No fields to update")
	}
	if err := patch.Validate(); err != nil {
		return err
	}
	if !e.inShadow(id) {
		if sp, ok := e.shadowReplacing(id); ok {
			id = sp.ID
		}
	}
	if cp, ok := e.catalog.Find(ctx, id); ok && !e.inShadow(id) {
		return e.updateCatalogProduct(ctx, cp, patch)
	}

	err := e.remote.Update(ctx, id, patch)
	if err == nil {
		e.editShadow(func(products []domain.Product) []domain.Product {
			for i := range products {
				if products[i].ID == id {
					patch.Apply(&products[i])
				}
			}
			return products
		})
		e.written(ctx, "update", id)
		return nil
	}
	if !errors.Is(err, ErrTransport) && !(errors.Is(err, ErrNotFound) && e.UsingFallback()) {
		return err
	}

	found, lerr := e.local.UpdateProduct(id, patch.Apply)
	if lerr = e.localWrite(lerr); lerr != nil {
		return lerr
	}
	if !found && errors.Is(err, ErrTransport) {
		if sp, ok := e.shadowProduct(id); ok {
			patch.Apply(&sp)
			if lerr := e.localWrite(e.local.AppendProduct(sp)); lerr != nil {
				return lerr
			}
			found = true
		}
	}
	if !found {
		return errors.Wrapf(ErrNotFound, "product %s", id)
	}
	metrics.Inc("catalog_local_writes")
	e.rebuild(ctx)
	return nil
}

// updateCatalogProduct writes an edited copy of a catalog product: a remote
// row while the remote store is up, otherwise a local override.
func (e *Engine) updateCatalogProduct(ctx context.Context, cp domain.Product, patch ProductPatch) error {
	edited := cp
	patch.Apply(&edited)
	edited.IsDefault = true
	edited, err := prepare(edited)
	if err != nil {
		return err
	}
	if !e.UsingFallback() {
		_, err := e.saveRemote(ctx, edited)
		if !errors.Is(err, ErrTransport) {
			return err
		}
		zap.L().Warn("remote save failed, storing edit locally",
			zap.String("namespace", "catalog"), zap.Error(err))
	}

	found, err := e.local.UpdateProduct(cp.ID, patch.Apply)
	if err = e.localWrite(err); err != nil {
		return err
	}
	if found {
		metrics.Inc("catalog_local_writes")
		e.rebuild(ctx)
		return nil
	}
	_, err = e.saveLocal(ctx, edited)
	return err
}

// Delete removes a product. Catalog products, and remote products deleted
// while the remote store is unreachable, are tombstoned. Deleting a catalog
// id also deletes the copy that replaced it.
func (e *Engine) Delete(ctx context.Context, id string, isDefault bool) error {
	if !e.inShadow(id) {
		if sp, ok := e.shadowReplacing(id); ok {
			if err := e.Delete(ctx, sp.ID, false); err != nil {
				return err
			}
			return e.tombstone(ctx, id)
		}
	}
	if isDefault || (e.catalog.Has(ctx, id) && !e.inShadow(id)) {
		return e.tombstone(ctx, id)
	}

	err := e.remote.Delete(ctx, id)
	if err == nil {
		e.editShadow(func(products []domain.Product) []domain.Product {
			kept := make([]domain.Product, 0, len(products))
			for _, p := range products {
				if p.ID != id {
					kept = append(kept, p)
				}
			}
			return kept
		})
		e.written(ctx, "delete", id)
		return nil
	}
	if !errors.Is(err, ErrTransport) && !errors.Is(err, ErrNotFound) {
		return err
	}

	removed, lerr := e.local.RemoveProduct(id)
	if lerr = e.localWrite(lerr); lerr != nil {
		return lerr
	}
	if !removed {
		if !errors.Is(err, ErrTransport) {
			return errors.Wrapf(ErrNotFound, "product %s", id)
		}
		if lerr := e.localWrite(e.local.AddTombstone(id)); lerr != nil {
			return lerr
		}
	}
	metrics.Inc("catalog_local_writes")
	e.rebuild(ctx)
	return nil
}

// tombstone hides catalog product id and drops local copies derived from it
func (e *Engine) tombstone(ctx context.Context, id string) error {
	if err := e.localWrite(e.local.AddTombstone(id)); err != nil {
		return err
	}
	if _, err := e.local.RemoveProduct(id); e.localWrite(err) != nil {
		return err
	}
	e.written(ctx, "delete", id)
	return nil
}

func (e *Engine) written(ctx context.Context, action, id string) {
	metrics.Inc("catalog_writes")
	e.rebuild(ctx)
	zap.L().Info("catalog updated", zap.String("namespace", "catalog"),
		zap.String("action", action), zap.String("id", id))
	if e.bus != nil {
		e.bus.Publish(TopicCatalogUpdated, action, id)
	}
}

// localWrite swallows quota failures; the value stays in memory
func (e *Engine) localWrite(err error) error {
	if errors.Is(err, ErrStorageQuota) {
		zap.L().Warn("local override storage is full, change kept in memory only",
			zap.String("namespace", "catalog"), zap.Error(err))
		return nil
	}
	return err
}

func (e *Engine) inShadow(id string) bool {
	_, ok := e.shadowProduct(id)
	return ok
}

func (e *Engine) shadowProduct(id string) (domain.Product, bool) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	for _, p := range e.shadow {
		if p.ID == id {
			return p, true
		}
	}
	return domain.Product{}, false
}

// shadowReplacing finds the remote row that replaced catalog product id
func (e *Engine) shadowReplacing(id string) (domain.Product, bool) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	for _, p := range e.shadow {
		if p.OriginalID == id {
			return p, true
		}
	}
	return domain.Product{}, false
}

func (e *Engine) catalogProducts(ctx context.Context) []domain.Product {
	products, err := e.catalog.Load(ctx)
	if err != nil {
		zap.L().Warn("catalog source unavailable", zap.String("namespace", "catalog"), zap.Error(err))
	}
	return products
}

func (e *Engine) localProducts() []domain.Product {
	products, err := e.local.Products()
	if err != nil {
		zap.L().Warn("read local overrides failed", zap.String("namespace", "catalog"), zap.Error(err))
		return []domain.Product{}
	}
	return products
}

func (e *Engine) tombstones() Tombstones {
	t, err := e.local.Tombstones()
	if err != nil {
		zap.L().Warn("read tombstones failed", zap.String("namespace", "catalog"), zap.Error(err))
		return NewTombstones()
	}
	return t
}

func cloneProducts(products []domain.Product) []domain.Product {
	if products == nil {
		return []domain.Product{}
	}
	out := make([]domain.Product, len(products))
	copy(out, products)
	return out
}
