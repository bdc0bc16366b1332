package memory

import (
	"context"
	"encoding/json"
	"sort"
	"sync"

	"github.com/fastygo/taskboard/domain"
	"github.com/fastygo/taskboard/repository"
)

// DocumentStore keeps documents in process memory. It backs tests and the
// STORE_DRIVER=memory development mode.
type DocumentStore struct {
	mu   sync.RWMutex
	data map[string]map[string]json.RawMessage
}

// NewDocumentStore returns an empty in-memory store.
func NewDocumentStore() *DocumentStore {
	return &DocumentStore{data: make(map[string]map[string]json.RawMessage)}
}

func (s *DocumentStore) Load(ctx context.Context, collection, id string) (json.RawMessage, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	doc, ok := s.data[collection][id]
	if !ok {
		return nil, domain.ErrDocumentNotFound
	}
	return append(json.RawMessage(nil), doc...), nil
}

func (s *DocumentStore) Save(ctx context.Context, collection, id string, patch json.RawMessage, merge bool) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if id == "" || len(patch) == 0 {
		return domain.ErrInvalidPayload
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	docs, ok := s.data[collection]
	if !ok {
		docs = make(map[string]json.RawMessage)
		s.data[collection] = docs
	}

	var base json.RawMessage
	if merge {
		base = docs[id]
	}
	next, err := repository.MergeDocuments(base, patch)
	if err != nil {
		return domain.WrapError(domain.ErrCodeInvalid, "invalid document", err)
	}
	docs[id] = next
	return nil
}

func (s *DocumentStore) List(ctx context.Context, collection string) ([]repository.Document, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	docs := make([]repository.Document, 0, len(s.data[collection]))
	for id, data := range s.data[collection] {
		docs = append(docs, repository.Document{ID: id, Data: append(json.RawMessage(nil), data...)})
	}
	sort.Slice(docs, func(i, j int) bool { return docs[i].ID < docs[j].ID })
	return docs, nil
}

// Ping satisfies the health monitor probe.
func (s *DocumentStore) Ping(ctx context.Context) error {
	return ctx.Err()
}

var _ repository.DocumentStore = (*DocumentStore)(nil)
