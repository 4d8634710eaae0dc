package store

import (
	"bytes"
	"context"
	"sync"

	"github.com/WilliamsPJ19/africa-map-tracker/internal/registration/models"
)

// InMemory keeps the encoded document in process memory. It behaves like a
// single browser storage slot: nil means "no document", anything else is
// decoded on read.
type InMemory struct {
	mu   sync.RWMutex
	blob []byte
	opts options
}

// NewInMemory creates an empty in-memory store.
func NewInMemory(opts ...Option) *InMemory {
	return &InMemory{opts: applyOptions(opts)}
}

// NewInMemoryFromBlob creates a store whose slot already holds raw.
func NewInMemoryFromBlob(raw []byte, opts ...Option) *InMemory {
	s := NewInMemory(opts...)
	if raw != nil {
		s.blob = bytes.Clone(raw)
	}
	return s
}

func (s *InMemory) Load(ctx context.Context) (models.Document, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.opts.decodeOrEmpty(ctx, s.blob, "memory"), nil
}

func (s *InMemory) List(ctx context.Context) ([]models.Registration, error) {
	doc, err := s.Load(ctx)
	if err != nil {
		return nil, err
	}
	return doc.Registrations, nil
}

func (s *InMemory) Append(ctx context.Context, reg models.Registration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	doc := s.opts.decodeOrEmpty(ctx, s.blob, "memory")
	doc.Registrations = append(doc.Registrations, reg)
	raw, err := EncodeDocument(doc)
	if err != nil {
		return err
	}
	s.blob = raw
	return nil
}

func (s *InMemory) Initialize(_ context.Context, seed models.Document) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.blob != nil {
		return false, nil
	}
	raw, err := EncodeDocument(seed)
	if err != nil {
		return false, err
	}
	s.blob = raw
	return true, nil
}

// Blob returns a copy of the raw stored value, nil when absent.
func (s *InMemory) Blob() []byte {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return bytes.Clone(s.blob)
}
