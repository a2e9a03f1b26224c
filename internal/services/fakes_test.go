package services

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"gawangliliw/sellerhub/internal/cache"
	"gawangliliw/sellerhub/internal/models"
	"gawangliliw/sellerhub/internal/storage"
	"gawangliliw/sellerhub/internal/utils"
)

type memObject struct {
	data        []byte
	contentType string
}

// memFiles is an in-memory IFileStore.
type memFiles struct {
	mu      sync.Mutex
	objects map[string]memObject
}

func newMemFiles() *memFiles {
	return &memFiles{objects: map[string]memObject{}}
}

func (m *memFiles) Upload(_ context.Context, key string, body []byte, contentType string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.objects[key] = memObject{data: append([]byte(nil), body...), contentType: contentType}
	return nil
}

func (m *memFiles) Download(_ context.Context, key string) ([]byte, string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	obj, ok := m.objects[key]
	if !ok {
		return nil, "", storage.ErrObjectNotFound
	}
	return obj.data, obj.contentType, nil
}

func (m *memFiles) ResolveURL(_ context.Context, key string) (string, error) {
	return storage.PublicURL("https://files.test", key), nil
}

func (m *memFiles) GeneratePresignedPutURL(_ context.Context, key, _ string) (string, error) {
	return "https://upload.test/" + key, nil
}

func (m *memFiles) keys() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]string, 0, len(m.objects))
	for k := range m.objects {
		out = append(out, k)
	}
	return out
}

// memCache is an in-memory ViewCache that ignores TTLs.
type memCache struct {
	mu     sync.Mutex
	values map[string][]byte
}

func newMemCache() *memCache {
	return &memCache{values: map[string][]byte{}}
}

func (c *memCache) GetJSON(_ context.Context, key string, dest interface{}) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	v, ok := c.values[key]
	if !ok {
		return cache.ErrMiss
	}
	return json.Unmarshal(v, dest)
}

func (c *memCache) SetJSON(_ context.Context, key string, value interface{}, _ time.Duration) error {
	data, err := json.Marshal(value)
	if err != nil {
		return err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.values[key] = data
	return nil
}

func (c *memCache) Delete(_ context.Context, keys ...string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, k := range keys {
		delete(c.values, k)
	}
	return nil
}

// stubOrders serves a fixed order list; methods the tests never reach
// fall through to the nil embedded interface.
type stubOrders struct {
	IOrderService
	orders []models.Order
	calls  int
}

func (s *stubOrders) SalesBetween(_ context.Context, _ utils.SixID, from, to time.Time) ([]models.Order, error) {
	s.calls++
	out := []models.Order{}
	for _, o := range s.orders {
		if o.Status.IsSale() && !o.CreatedAt.Before(from) && o.CreatedAt.Before(to) {
			out = append(out, o)
		}
	}
	return out, nil
}

type stubSellers struct {
	ISellerService
	seller *models.Seller
}

func (s *stubSellers) GetProfile(_ context.Context, _ utils.SixID) (*models.Seller, error) {
	if s.seller == nil {
		return nil, ErrNotFound
	}
	return s.seller, nil
}
