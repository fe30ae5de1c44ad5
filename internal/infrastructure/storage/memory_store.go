package storage

import (
	"context"
	"fmt"
	"sync"
	"time"

	"tradehub/internal/domain/service"
)

// MemoryImageStore keeps uploads in process. Used with STORE_DRIVER=memory.
type MemoryImageStore struct {
	mu      sync.RWMutex
	baseURL string
	objects map[string][]byte
}

func NewMemoryImageStore(baseURL string) *MemoryImageStore {
	return &MemoryImageStore{baseURL: baseURL, objects: make(map[string][]byte)}
}

func (s *MemoryImageStore) UploadImage(_ context.Context, data []byte, contentType, folder string) (*service.StoredImage, error) {
	if err := ValidateImage(data, contentType); err != nil {
		return nil, err
	}
	name, err := ObjectName(folder, contentType, time.Now())
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	s.objects[name] = append([]byte(nil), data...)
	s.mu.Unlock()

	return &service.StoredImage{URL: fmt.Sprintf("%s/%s", s.baseURL, name), PublicID: name}, nil
}

func (s *MemoryImageStore) DeleteImage(_ context.Context, publicID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.objects[publicID]; !ok {
		return fmt.Errorf("image %s not found", publicID)
	}
	delete(s.objects, publicID)
	return nil
}

func (s *MemoryImageStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.objects)
}
