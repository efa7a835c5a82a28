package service

import (
	"context"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/stretchr/testify/mock"

	"github.com/evidentry/evidentry/internal/domain"
	"github.com/evidentry/evidentry/internal/storage"
)

// MockDecisionRepository is a mock implementation of DecisionRepositoryInterface
type MockDecisionRepository struct {
	mock.Mock
}

func (m *MockDecisionRepository) Upsert(ctx context.Context, d *domain.Decision) (bool, error) {
	args := m.Called(ctx, d)
	return args.Bool(0), args.Error(1)
}

func (m *MockDecisionRepository) ReplaceContext(ctx context.Context, refID int64, tenant string, docIDs, chunkIDs []string) error {
	args := m.Called(ctx, refID, tenant, docIDs, chunkIDs)
	return args.Error(0)
}

func (m *MockDecisionRepository) GetByDecisionID(ctx context.Context, tenant, decisionID string) (*domain.Decision, error) {
	args := m.Called(ctx, tenant, decisionID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Decision), args.Error(1)
}

func (m *MockDecisionRepository) Query(ctx context.Context, f *domain.DecisionFilter) ([]*domain.Decision, int64, error) {
	args := m.Called(ctx, f)
	if args.Get(0) == nil {
		return nil, args.Get(1).(int64), args.Error(2)
	}
	return args.Get(0).([]*domain.Decision), args.Get(1).(int64), args.Error(2)
}

// MockDocumentRepository is a mock implementation of DocumentRepositoryInterface
type MockDocumentRepository struct {
	mock.Mock
}

func (m *MockDocumentRepository) Create(ctx context.Context, d *domain.Document) error {
	args := m.Called(ctx, d)
	return args.Error(0)
}

func (m *MockDocumentRepository) GetByID(ctx context.Context, tenant, docID string) (*domain.Document, error) {
	args := m.Called(ctx, tenant, docID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Document), args.Error(1)
}

func (m *MockDocumentRepository) GetByIDs(ctx context.Context, tenant string, docIDs []string) ([]*domain.Document, error) {
	args := m.Called(ctx, tenant, docIDs)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*domain.Document), args.Error(1)
}

func (m *MockDocumentRepository) ListByTenant(ctx context.Context, tenant string, offset, limit int) ([]*domain.Document, int64, error) {
	args := m.Called(ctx, tenant, offset, limit)
	if args.Get(0) == nil {
		return nil, args.Get(1).(int64), args.Error(2)
	}
	return args.Get(0).([]*domain.Document), args.Get(1).(int64), args.Error(2)
}

func (m *MockDocumentRepository) ReplaceChunks(ctx context.Context, tenant, docID string, chunks []domain.Chunk) error {
	args := m.Called(ctx, tenant, docID, chunks)
	return args.Error(0)
}

func (m *MockDocumentRepository) GetChunksByIDs(ctx context.Context, tenant string, chunkIDs []string) ([]*domain.Chunk, error) {
	args := m.Called(ctx, tenant, chunkIDs)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*domain.Chunk), args.Error(1)
}

// MockArtifactRepository is a mock implementation of ArtifactRepositoryInterface
type MockArtifactRepository struct {
	mock.Mock
}

func (m *MockArtifactRepository) Create(ctx context.Context, a *domain.AuditArtifact) error {
	args := m.Called(ctx, a)
	return args.Error(0)
}

func (m *MockArtifactRepository) GetByArtifactID(ctx context.Context, tenant, artifactID string) (*domain.AuditArtifact, error) {
	args := m.Called(ctx, tenant, artifactID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.AuditArtifact), args.Error(1)
}

func (m *MockArtifactRepository) GetByLocation(ctx context.Context, tenant, location string) (*domain.AuditArtifact, error) {
	args := m.Called(ctx, tenant, location)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.AuditArtifact), args.Error(1)
}

func (m *MockArtifactRepository) List(ctx context.Context, f domain.ArtifactFilter) ([]*domain.AuditArtifact, int64, error) {
	args := m.Called(ctx, f)
	if args.Get(0) == nil {
		return nil, args.Get(1).(int64), args.Error(2)
	}
	return args.Get(0).([]*domain.AuditArtifact), args.Get(1).(int64), args.Error(2)
}

func (m *MockArtifactRepository) ListActive(ctx context.Context, tenant, artifactType string) ([]*domain.AuditArtifact, error) {
	args := m.Called(ctx, tenant, artifactType)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*domain.AuditArtifact), args.Error(1)
}

func (m *MockArtifactRepository) MarkDeleted(ctx context.Context, tenant, artifactID, deletedBy, reason, jobID string, deletedAt time.Time) error {
	args := m.Called(ctx, tenant, artifactID, deletedBy, reason, jobID, deletedAt)
	return args.Error(0)
}

// MockPolicyRepository is a mock implementation of PolicyRepositoryInterface
type MockPolicyRepository struct {
	mock.Mock
}

func (m *MockPolicyRepository) Upsert(ctx context.Context, p *domain.RetentionPolicy) (bool, error) {
	args := m.Called(ctx, p)
	return args.Bool(0), args.Error(1)
}

func (m *MockPolicyRepository) Get(ctx context.Context, tenant, artifactType string) (*domain.RetentionPolicy, error) {
	args := m.Called(ctx, tenant, artifactType)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.RetentionPolicy), args.Error(1)
}

func (m *MockPolicyRepository) ListByTenant(ctx context.Context, tenant string) ([]*domain.RetentionPolicy, error) {
	args := m.Called(ctx, tenant)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*domain.RetentionPolicy), args.Error(1)
}

func (m *MockPolicyRepository) Delete(ctx context.Context, tenant, artifactType string) error {
	args := m.Called(ctx, tenant, artifactType)
	return args.Error(0)
}

// MockHoldRepository is a mock implementation of HoldRepositoryInterface
type MockHoldRepository struct {
	mock.Mock
}

func (m *MockHoldRepository) Create(ctx context.Context, h *domain.LegalHold) error {
	args := m.Called(ctx, h)
	return args.Error(0)
}

func (m *MockHoldRepository) GetByHoldID(ctx context.Context, tenant, holdID string) (*domain.LegalHold, error) {
	args := m.Called(ctx, tenant, holdID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.LegalHold), args.Error(1)
}

func (m *MockHoldRepository) ListByTenant(ctx context.Context, tenant string, activeOnly bool) ([]*domain.LegalHold, error) {
	args := m.Called(ctx, tenant, activeOnly)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*domain.LegalHold), args.Error(1)
}

func (m *MockHoldRepository) ListActive(ctx context.Context) ([]*domain.LegalHold, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*domain.LegalHold), args.Error(1)
}

func (m *MockHoldRepository) Release(ctx context.Context, tenant, holdID string, releasedAt time.Time) (*domain.LegalHold, error) {
	args := m.Called(ctx, tenant, holdID, releasedAt)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.LegalHold), args.Error(1)
}

// MockTenantRepository is a mock implementation of TenantRepositoryInterface
type MockTenantRepository struct {
	mock.Mock
}

func (m *MockTenantRepository) Create(ctx context.Context, t *domain.Tenant) error {
	args := m.Called(ctx, t)
	return args.Error(0)
}

func (m *MockTenantRepository) GetByID(ctx context.Context, id string) (*domain.Tenant, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Tenant), args.Error(1)
}

func (m *MockTenantRepository) List(ctx context.Context) ([]*domain.Tenant, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*domain.Tenant), args.Error(1)
}

// MockAPIKeyRepository is a mock implementation of APIKeyRepositoryInterface
type MockAPIKeyRepository struct {
	mock.Mock
}

func (m *MockAPIKeyRepository) Create(ctx context.Context, k *domain.APIKey) error {
	args := m.Called(ctx, k)
	return args.Error(0)
}

func (m *MockAPIKeyRepository) GetByHash(ctx context.Context, keyHash string) (*domain.APIKey, error) {
	args := m.Called(ctx, keyHash)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.APIKey), args.Error(1)
}

func (m *MockAPIKeyRepository) ListByTenant(ctx context.Context, tenantID string) ([]*domain.APIKey, error) {
	args := m.Called(ctx, tenantID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*domain.APIKey), args.Error(1)
}

func (m *MockAPIKeyRepository) Revoke(ctx context.Context, id string, revokedAt time.Time) error {
	args := m.Called(ctx, id, revokedAt)
	return args.Error(0)
}

// MockUUIDGenerator returns a fixed sequence of ids
type MockUUIDGenerator struct {
	callCount int
	uuids     []string
}

func NewMockUUIDGenerator(uuids ...string) *MockUUIDGenerator {
	return &MockUUIDGenerator{uuids: uuids}
}

func (m *MockUUIDGenerator) NewString() string {
	if m.callCount < len(m.uuids) {
		id := m.uuids[m.callCount]
		m.callCount++
		return id
	}
	m.callCount++
	return "uuid-" + strconv.Itoa(m.callCount)
}

// fakeTxRunner runs the transaction function directly against the given
// repositories.
type fakeTxRunner struct {
	decisions DecisionRepositoryInterface
	documents DocumentRepositoryInterface
	artifacts ArtifactRepositoryInterface
}

func (f *fakeTxRunner) WithTx(ctx context.Context, fn func(repos TxRepositories) error) error {
	return fn(f)
}

func (f *fakeTxRunner) Decisions() DecisionRepositoryInterface { return f.decisions }
func (f *fakeTxRunner) Documents() DocumentRepositoryInterface { return f.documents }
func (f *fakeTxRunner) Artifacts() ArtifactRepositoryInterface { return f.artifacts }

// memObject is one stored object in the in-memory store.
type memObject struct {
	body       []byte
	generation string
}

// memObjectStore is an in-memory write-once ObjectStore.
type memObjectStore struct {
	mu      sync.Mutex
	bucket  string
	objects map[string]*memObject
	nextGen int
}

func newMemObjectStore() *memObjectStore {
	return &memObjectStore{bucket: "test-artifacts", objects: map[string]*memObject{}}
}

func (s *memObjectStore) PutIfAbsent(ctx context.Context, key string, body []byte, contentType string) (*storage.StoredObject, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.objects[key]; exists {
		return nil, domain.ErrArtifactAlreadyExists
	}
	s.nextGen++
	gen := "gen-" + strconv.Itoa(s.nextGen)
	s.objects[key] = &memObject{body: append([]byte(nil), body...), generation: gen}
	return &storage.StoredObject{
		Location:      s.Location(key),
		Generation:    &gen,
		ContentLength: int64(len(body)),
		ContentType:   contentType,
	}, nil
}

func (s *memObjectStore) Get(ctx context.Context, key string) ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	obj, ok := s.objects[key]
	if !ok {
		return nil, domain.ErrObjectNotFound
	}
	return append([]byte(nil), obj.body...), nil
}

func (s *memObjectStore) DeleteIfGeneration(ctx context.Context, key string, generation *string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	obj, ok := s.objects[key]
	if !ok {
		return nil
	}
	if generation != nil && obj.generation != *generation {
		return domain.ErrGenerationConflict
	}
	delete(s.objects, key)
	return nil
}

func (s *memObjectStore) GenerateDownloadURL(ctx context.Context, key string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.objects[key]; !ok {
		return "", domain.ErrObjectNotFound
	}
	return fmt.Sprintf("https://%s.test.invalid/%s?X-Amz-Signature=stub", s.bucket, key), nil
}

func (s *memObjectStore) Location(key string) string {
	return fmt.Sprintf("s3://%s/%s", s.bucket, key)
}

func (s *memObjectStore) Key(location string) (string, error) {
	prefix := "s3://" + s.bucket + "/"
	if len(location) <= len(prefix) || location[:len(prefix)] != prefix {
		return "", domain.ErrInvalidObjectLocation
	}
	return location[len(prefix):], nil
}

// tamper overwrites stored bytes in place, bypassing write-once.
func (s *memObjectStore) tamper(key string, body []byte) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if obj, ok := s.objects[key]; ok {
		obj.body = append([]byte(nil), body...)
	}
}
