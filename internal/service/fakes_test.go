package service

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"voucher-storefront/internal/model"
)

// memProductStore is an in-memory ProductStore. The hook fields, when
// set, run before the real operation and can fail it.
type memProductStore struct {
	mu       sync.Mutex
	products map[string]model.Product
	writes   int

	listErr   error
	onInsert  func(p model.Product) error
	onUpdate  func(p model.Product) error
	insertAll func(products []model.Product) error
}

func newMemProductStore(products ...model.Product) *memProductStore {
	s := &memProductStore{products: map[string]model.Product{}}
	for _, p := range products {
		s.products[p.ID] = p
	}
	return s
}

func (s *memProductStore) ListAll(ctx context.Context) ([]model.Product, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listErr != nil {
		return nil, s.listErr
	}
	out := make([]model.Product, 0, len(s.products))
	for _, p := range s.products {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (s *memProductStore) ListActiveByType(ctx context.Context, t model.ProductType) ([]model.Product, error) {
	all, err := s.ListAll(ctx)
	if err != nil {
		return nil, err
	}
	out := []model.Product{}
	for _, p := range all {
		if p.Type == t && p.Active {
			out = append(out, p)
		}
	}
	return out, nil
}

func (s *memProductStore) Get(ctx context.Context, id string) (*model.Product, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.products[id]
	if !ok {
		return nil, nil
	}
	return &p, nil
}

func (s *memProductStore) Count(ctx context.Context) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listErr != nil {
		return 0, s.listErr
	}
	return len(s.products), nil
}

func (s *memProductStore) Insert(ctx context.Context, p model.Product) error {
	if s.onInsert != nil {
		if err := s.onInsert(p); err != nil {
			return err
		}
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.products[p.ID]; ok {
		return fmt.Errorf("duplicate product %s", p.ID)
	}
	s.products[p.ID] = p
	s.writes++
	return nil
}

func (s *memProductStore) InsertAll(ctx context.Context, products []model.Product) error {
	if s.insertAll != nil {
		if err := s.insertAll(products); err != nil {
			return err
		}
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, p := range products {
		s.products[p.ID] = p
		s.writes++
	}
	return nil
}

func (s *memProductStore) Update(ctx context.Context, p model.Product) error {
	if s.onUpdate != nil {
		if err := s.onUpdate(p); err != nil {
			return err
		}
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.products[p.ID]; !ok {
		return fmt.Errorf("product %s not found", p.ID)
	}
	p.Active = true
	s.products[p.ID] = p
	s.writes++
	return nil
}

func (s *memProductStore) get(id string) (model.Product, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.products[id]
	return p, ok
}

func (s *memProductStore) writeCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.writes
}

// catalogFunc adapts a function to CatalogSource
type catalogFunc func(ctx context.Context) ([]model.CatalogItem, error)

func (f catalogFunc) FetchCatalog(ctx context.Context) ([]model.CatalogItem, error) {
	return f(ctx)
}

func staticCatalog(items ...model.CatalogItem) catalogFunc {
	return func(ctx context.Context) ([]model.CatalogItem, error) {
		return items, nil
	}
}

// recordingNotifier keeps every notice it is given
type recordingNotifier struct {
	mu    sync.Mutex
	texts []string
	err   error
}

func (n *recordingNotifier) Notify(ctx context.Context, text string) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.texts = append(n.texts, text)
	return n.err
}

func (n *recordingNotifier) sent() []string {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]string(nil), n.texts...)
}
