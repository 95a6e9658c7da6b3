package mocks

import (
	"context"
	"sync"
	"time"

	"github.com/custodia-labs/docfield-core/internal/core/domain"
)

// MockDocumentStore is a mock implementation of DocumentStore for testing
type MockDocumentStore struct {
	mu        sync.RWMutex
	documents map[string]*domain.Document
	fields    map[string][]domain.FieldRecord

	// Custom behavior hooks (optional)
	GetFn                  func(id string) (*domain.Document, error)
	CreateFn               func(doc *domain.Document) error
	TransitionProcessingFn func(id string, staleAfter time.Duration) error
	CommitResultFn         func(id string, outcome domain.ProcessOutcome) error

	// CommitCalls records every CommitResult invocation in order.
	CommitCalls []domain.ProcessOutcome
}

// NewMockDocumentStore creates a new MockDocumentStore
func NewMockDocumentStore() *MockDocumentStore {
	return &MockDocumentStore{
		documents: make(map[string]*domain.Document),
		fields:    make(map[string][]domain.FieldRecord),
	}
}

// Put seeds a document directly, bypassing transition rules.
func (m *MockDocumentStore) Put(doc *domain.Document) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.documents[doc.ID] = doc
}

func (m *MockDocumentStore) Get(ctx context.Context, id string) (*domain.Document, error) {
	if m.GetFn != nil {
		return m.GetFn(id)
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	doc, ok := m.documents[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	cp := *doc
	return &cp, nil
}

func (m *MockDocumentStore) Create(ctx context.Context, doc *domain.Document) error {
	if m.CreateFn != nil {
		return m.CreateFn(doc)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.documents[doc.ID]; ok {
		return nil
	}
	cp := *doc
	if cp.Status == "" {
		cp.Status = domain.StatusReceived
	}
	now := time.Now()
	cp.CreatedAt = now
	cp.UpdatedAt = now
	m.documents[doc.ID] = &cp
	return nil
}

func (m *MockDocumentStore) TransitionProcessing(ctx context.Context, id string, staleAfter time.Duration) error {
	if m.TransitionProcessingFn != nil {
		return m.TransitionProcessingFn(id, staleAfter)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	doc, ok := m.documents[id]
	if !ok {
		return domain.ErrNotFound
	}
	if doc.Status == domain.StatusProcessing {
		if time.Since(doc.UpdatedAt) < staleAfter {
			return domain.ErrInvalidTransition
		}
	} else if !doc.Status.CanTransition(domain.StatusProcessing) {
		return domain.ErrInvalidTransition
	}
	doc.Status = domain.StatusProcessing
	doc.UpdatedAt = time.Now()
	return nil
}

func (m *MockDocumentStore) CommitResult(ctx context.Context, id string, outcome domain.ProcessOutcome) error {
	if m.CommitResultFn != nil {
		return m.CommitResultFn(id, outcome)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.CommitCalls = append(m.CommitCalls, outcome)
	doc, ok := m.documents[id]
	if !ok {
		return domain.ErrNotFound
	}
	doc.Status = outcome.Status
	doc.Pages = outcome.Pages
	doc.ErrorMessage = outcome.ErrorMessage
	doc.ModelVersion = outcome.ModelVersion
	pt := outcome.ProcessingTime
	doc.ProcessingTime = &pt
	doc.UpdatedAt = time.Now()
	m.fields[id] = append([]domain.FieldRecord(nil), outcome.Fields...)
	return nil
}

func (m *MockDocumentStore) GetFields(ctx context.Context, documentID string) ([]domain.FieldRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return append([]domain.FieldRecord(nil), m.fields[documentID]...), nil
}

func (m *MockDocumentStore) Ping(ctx context.Context) error {
	return nil
}
