package memory

import (
	"context"
	"sort"
	"sync"

	"dental-mentor-service/internal/domain"
)

// DocumentStore keeps uploaded documents in memory (no-Postgres mode).
type DocumentStore struct {
	mu   sync.RWMutex
	docs map[string]storedDocument
}

type storedDocument struct {
	meta domain.Document
	data []byte
}

func NewDocumentStore() *DocumentStore {
	return &DocumentStore{docs: make(map[string]storedDocument)}
}

func (s *DocumentStore) Save(_ context.Context, doc domain.Document, data []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	buf := make([]byte, len(data))
	copy(buf, data)
	s.docs[doc.ID] = storedDocument{meta: doc, data: buf}
	return nil
}

func (s *DocumentStore) List(_ context.Context, ownerID string) ([]domain.Document, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []domain.Document
	for _, stored := range s.docs {
		if stored.meta.OwnerID == ownerID {
			out = append(out, stored.meta)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (s *DocumentStore) Get(_ context.Context, id string) (domain.Document, []byte, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	stored, ok := s.docs[id]
	if !ok {
		return domain.Document{}, nil, domain.ErrDocumentNotFound
	}
	return stored.meta, stored.data, nil
}

func (s *DocumentStore) Delete(_ context.Context, id, ownerID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	stored, ok := s.docs[id]
	if !ok {
		return domain.ErrDocumentNotFound
	}
	if stored.meta.OwnerID != ownerID {
		return domain.ErrNotOwner
	}
	delete(s.docs, id)
	return nil
}
