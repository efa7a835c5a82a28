package service

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"strings"
	"time"

	"github.com/evidentry/evidentry/internal/domain"
)

const apiKeyPrefix = "evd_"

type TenantRepositoryInterface interface {
	Create(ctx context.Context, t *domain.Tenant) error
	GetByID(ctx context.Context, id string) (*domain.Tenant, error)
	List(ctx context.Context) ([]*domain.Tenant, error)
}

type APIKeyRepositoryInterface interface {
	Create(ctx context.Context, key *domain.APIKey) error
	GetByHash(ctx context.Context, hash string) (*domain.APIKey, error)
	ListByTenant(ctx context.Context, tenantID string) ([]*domain.APIKey, error)
	Revoke(ctx context.Context, id string, revokedAt time.Time) error
}

// AuthService manages tenants and API keys and resolves bearer tokens to
// principals.
type AuthService struct {
	tenantRepo TenantRepositoryInterface
	keyRepo    APIKeyRepositoryInterface
	uuidGen    UUIDGenerator
}

func NewAuthService(tenantRepo TenantRepositoryInterface, keyRepo APIKeyRepositoryInterface, uuidGen UUIDGenerator) *AuthService {
	return &AuthService{
		tenantRepo: tenantRepo,
		keyRepo:    keyRepo,
		uuidGen:    uuidGen,
	}
}

func (s *AuthService) CreateTenant(ctx context.Context, id, name string) (*domain.Tenant, error) {
	if id == "" {
		id = s.uuidGen.NewString()
	}
	tenant := &domain.Tenant{
		ID:        id,
		Name:      name,
		CreatedAt: time.Now().UTC(),
	}
	if err := domain.ValidateTenant(tenant); err != nil {
		return nil, err
	}
	if err := s.tenantRepo.Create(ctx, tenant); err != nil {
		return nil, err
	}
	return tenant, nil
}

func (s *AuthService) GetTenant(ctx context.Context, id string) (*domain.Tenant, error) {
	return s.tenantRepo.GetByID(ctx, id)
}

func (s *AuthService) ListTenants(ctx context.Context) ([]*domain.Tenant, error) {
	return s.tenantRepo.List(ctx)
}

// CreateAPIKey mints a key bound to (tenant, subject) and returns the token.
// The token is shown once; only its hash is stored.
func (s *AuthService) CreateAPIKey(ctx context.Context, tenantID, name, subject string) (string, *domain.APIKey, error) {
	if tenantID == "" {
		return "", nil, domain.NewDomainError(domain.ErrCodeValidation, "tenant ID is required")
	}
	if name == "" {
		return "", nil, domain.NewDomainError(domain.ErrCodeValidation, "API key name is required")
	}
	if subject == "" {
		subject = name
	}

	if _, err := s.tenantRepo.GetByID(ctx, tenantID); err != nil {
		return "", nil, err
	}

	token, err := generateAPIToken()
	if err != nil {
		return "", nil, domain.NewDomainErrorWithCause(domain.ErrCodeInternalError, "failed to generate API key", err)
	}

	key := &domain.APIKey{
		ID:        s.uuidGen.NewString(),
		TenantID:  tenantID,
		Name:      name,
		Subject:   subject,
		KeyHash:   hashToken(token),
		CreatedAt: time.Now().UTC(),
		RevokedAt: nil,
	}
	if err := s.keyRepo.Create(ctx, key); err != nil {
		return "", nil, err
	}
	return token, key, nil
}

// ResolvePrincipal validates a bearer token and returns the principal it
// authenticates. Revoked or unknown keys fail with ErrInvalidAPIKey class
// errors, never with a hint about which part was wrong.
func (s *AuthService) ResolvePrincipal(ctx context.Context, token string) (*domain.Principal, error) {
	if !IsValidAPIToken(token) {
		return nil, domain.ErrInvalidAPIKey
	}

	key, err := s.keyRepo.GetByHash(ctx, hashToken(token))
	if err != nil {
		if errors.Is(err, domain.ErrAPIKeyNotFound) {
			return nil, domain.ErrInvalidAPIKey
		}
		return nil, err
	}
	if key.Revoked() {
		return nil, domain.ErrAPIKeyRevoked
	}

	return &domain.Principal{Tenant: key.TenantID, Subject: key.Subject}, nil
}

func (s *AuthService) ListAPIKeys(ctx context.Context, tenantID string) ([]*domain.APIKey, error) {
	if tenantID == "" {
		return nil, domain.NewDomainError(domain.ErrCodeValidation, "tenant ID is required")
	}
	return s.keyRepo.ListByTenant(ctx, tenantID)
}

func (s *AuthService) RevokeAPIKey(ctx context.Context, keyID string) error {
	if keyID == "" {
		return domain.NewDomainError(domain.ErrCodeValidation, "API key ID is required")
	}
	return s.keyRepo.Revoke(ctx, keyID, time.Now().UTC())
}

func generateAPIToken() (string, error) {
	bytes := make([]byte, 32)
	if _, err := rand.Read(bytes); err != nil {
		return "", err
	}
	return apiKeyPrefix + hex.EncodeToString(bytes), nil
}

func hashToken(token string) string {
	h := sha256.Sum256([]byte(token))
	return hex.EncodeToString(h[:])
}

func IsValidAPIToken(token string) bool {
	if !strings.HasPrefix(token, apiKeyPrefix) {
		return false
	}
	hexPart := token[len(apiKeyPrefix):]
	if len(hexPart) != 64 {
		return false
	}
	for _, c := range hexPart {
		if !((c >= '0' && c <= '9') || (c >= 'a' && c <= 'f') || (c >= 'A' && c <= 'F')) {
			return false
		}
	}
	return true
}
