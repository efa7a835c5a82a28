//go:build e2e

package e2e

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"net"
	"net/http"
	"sync"
	"testing"
	"time"

	"github.com/evidentry/evidentry/internal/api/handlers"
	"github.com/evidentry/evidentry/internal/repository"
	"github.com/evidentry/evidentry/internal/server"
	"github.com/evidentry/evidentry/internal/service"
	"github.com/evidentry/evidentry/internal/signing"
	"github.com/evidentry/evidentry/internal/storage"
	"github.com/evidentry/evidentry/internal/testutil"
	"github.com/jackc/pgx/v5/pgxpool"
)

const (
	e2eOperatorKey   = "e2e-operator-secret"
	e2eSigningKeyID  = "e2e-k1"
	e2eSigningSecret = "e2e-signing-secret"
)

// E2ETestEnv holds all resources needed for E2E tests
type E2ETestEnv struct {
	T           *testing.T
	Ctx         context.Context
	PostgresC   *testutil.PostgresContainer
	RustFSC     *testutil.RustFSContainer
	Pool        *pgxpool.Pool
	ServerURL   string
	S3Client    *storage.S3Client
	AuthSvc     *service.AuthService
	TenantID    string
	APIKeyToken string
	HTTPClient  *http.Client
}

var (
	envOnce   sync.Once
	sharedEnv *E2ETestEnv
)

// SetupE2EEnv returns the shared test environment, starting the containers
// and the server on first use. Containers are reaped by testcontainers when
// the test process exits. Each call truncates the database so every test
// starts from a clean ledger; stored S3 objects survive between tests, which
// is why each test uses its own decision IDs.
func SetupE2EEnv(t *testing.T) *E2ETestEnv {
	envOnce.Do(func() { sharedEnv = newE2EEnv(t) })
	if sharedEnv == nil {
		t.Fatal("e2e environment failed to start")
	}
	sharedEnv.T = t
	if err := testutil.TruncateAll(sharedEnv.Ctx, sharedEnv.Pool); err != nil {
		t.Fatalf("failed to reset database: %v", err)
	}
	sharedEnv.TenantID = ""
	sharedEnv.APIKeyToken = ""
	return sharedEnv
}

func newE2EEnv(t *testing.T) *E2ETestEnv {
	ctx := context.Background()

	pgC := testutil.NewPostgresContainer(ctx, t)
	s3C := testutil.NewRustFSContainer(ctx, t)

	pool := testutil.NewTestPool(ctx, t, pgC, "../../migrations")

	s3Client, err := storage.NewS3Client(ctx, storage.S3ClientConfig{
		Endpoint:        s3C.Endpoint(),
		Region:          "us-east-1",
		AccessKeyID:     "rustfsadmin",
		SecretAccessKey: "rustfsadmin",
		Bucket:          "test-artifacts",
		UsePathStyle:    true,
	})
	if err != nil {
		t.Fatalf("failed to create S3 client: %v", err)
	}
	if err := s3Client.EnsureBucket(ctx); err != nil {
		t.Fatalf("failed to create bucket: %v", err)
	}

	port, err := getFreePort()
	if err != nil {
		t.Fatalf("failed to get free port: %v", err)
	}

	serverURL, authSvc := startServer(t, pool, s3Client, port)

	return &E2ETestEnv{
		T:          t,
		Ctx:        ctx,
		PostgresC:  pgC,
		RustFSC:    s3C,
		Pool:       pool,
		ServerURL:  serverURL,
		S3Client:   s3Client,
		AuthSvc:    authSvc,
		HTTPClient: &http.Client{Timeout: 30 * time.Second},
	}
}

// Bootstrap creates a tenant and API key. Tenant and key management sit
// behind operator-gated routes, so the first credentials are minted the way
// the admin CLI does it: directly against the service.
func (e *E2ETestEnv) Bootstrap(tenantID string) {
	if _, err := e.AuthSvc.CreateTenant(e.Ctx, tenantID, tenantID+" test tenant"); err != nil {
		e.T.Fatalf("failed to create tenant: %v", err)
	}
	token, _, err := e.AuthSvc.CreateAPIKey(e.Ctx, tenantID, "e2e-key", "e2e@"+tenantID)
	if err != nil {
		e.T.Fatalf("failed to create API key: %v", err)
	}
	e.TenantID = tenantID
	e.APIKeyToken = token
}

// BackdateArtifact rewrites an artifact's index timestamp so retention
// windows can be exercised without waiting.
func (e *E2ETestEnv) BackdateArtifact(objectLocation string, age time.Duration) {
	tag, err := e.Pool.Exec(e.Ctx,
		"UPDATE audit_artifacts SET created_at = NOW() - $1::interval WHERE object_location = $2",
		fmt.Sprintf("%d seconds", int(age.Seconds())), objectLocation)
	if err != nil {
		e.T.Fatalf("failed to backdate artifact: %v", err)
	}
	if tag.RowsAffected() != 1 {
		e.T.Fatalf("expected to backdate 1 artifact, got %d", tag.RowsAffected())
	}
}

// APIResponse represents a standard API response
type APIResponse struct {
	Data  json.RawMessage `json:"data"`
	Error string          `json:"error,omitempty"`
}

// Get performs an authenticated GET request
func (e *E2ETestEnv) Get(path string) (*APIResponse, error) {
	return e.doRequest("GET", path, nil, false)
}

// Post performs an authenticated POST request
func (e *E2ETestEnv) Post(path string, body interface{}) (*APIResponse, error) {
	return e.doRequest("POST", path, body, false)
}

// PostOperator performs a POST request with the operator credential attached
func (e *E2ETestEnv) PostOperator(path string, body interface{}) (*APIResponse, error) {
	return e.doRequest("POST", path, body, true)
}

// PutOperator performs a PUT request with the operator credential attached
func (e *E2ETestEnv) PutOperator(path string, body interface{}) (*APIResponse, error) {
	return e.doRequest("PUT", path, body, true)
}

// DeleteOperator performs a DELETE request with the operator credential attached
func (e *E2ETestEnv) DeleteOperator(path string) (*APIResponse, error) {
	return e.doRequest("DELETE", path, nil, true)
}

func (e *E2ETestEnv) doRequest(method, path string, body interface{}, operator bool) (*APIResponse, error) {
	url := e.ServerURL + path

	var reqBody io.Reader
	if body != nil {
		jsonData, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal body: %w", err)
		}
		reqBody = bytes.NewReader(jsonData)
	}

	req, err := http.NewRequest(method, url, reqBody)
	if err != nil {
		return nil, err
	}

	req.Header.Set("Authorization", "Bearer "+e.APIKeyToken)
	req.Header.Set("Content-Type", "application/json")
	if operator {
		req.Header.Set("x-operator-key", e2eOperatorKey)
	}

	resp, err := e.HTTPClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}

	if resp.StatusCode == http.StatusNoContent {
		return &APIResponse{}, nil
	}

	var apiResp APIResponse
	if err := json.Unmarshal(respBody, &apiResp); err != nil {
		if resp.StatusCode >= 400 {
			return nil, fmt.Errorf("HTTP %d: %s", resp.StatusCode, string(respBody))
		}
		return nil, err
	}

	if resp.StatusCode >= 400 {
		return nil, fmt.Errorf("HTTP %d: %s", resp.StatusCode, apiResp.Error)
	}

	return &apiResp, nil
}

// TamperObject replaces the stored bytes at the location. The store is
// write-once, so the object is removed first and rewritten with the
// altered body.
func (e *E2ETestEnv) TamperObject(objectLocation string, replace func([]byte) []byte) {
	key, err := e.S3Client.Key(objectLocation)
	if err != nil {
		e.T.Fatalf("failed to resolve object key: %v", err)
	}
	raw, err := e.S3Client.Get(e.Ctx, key)
	if err != nil {
		e.T.Fatalf("failed to read object: %v", err)
	}
	if err := e.S3Client.DeleteIfGeneration(e.Ctx, key, nil); err != nil {
		e.T.Fatalf("failed to delete object: %v", err)
	}
	if _, err := e.S3Client.PutIfAbsent(e.Ctx, key, replace(raw), "application/json"); err != nil {
		e.T.Fatalf("failed to rewrite object: %v", err)
	}
}

// SHA256Sum calculates SHA256 hash of data
func SHA256Sum(data []byte) string {
	hash := sha256.Sum256(data)
	return hex.EncodeToString(hash[:])
}

// startServer starts the HTTP server with the full handler set
func startServer(t *testing.T, pool *pgxpool.Pool, s3Client *storage.S3Client, port int) (string, *service.AuthService) {
	decisionRepo := repository.NewDecisionRepository(pool)
	docRepo := repository.NewDocumentRepository(pool)
	policyRepo := repository.NewPolicyRepository(pool)
	holdRepo := repository.NewHoldRepository(pool)
	artifactRepo := repository.NewArtifactRepository(pool)
	tenantRepo := repository.NewTenantRepository(pool)
	apiKeyRepo := repository.NewAPIKeyRepository(pool)
	txRunner := repository.NewTxRunner(pool)

	ring, err := signing.ParseRing(e2eSigningKeyID+"="+e2eSigningSecret, e2eSigningKeyID)
	if err != nil {
		t.Fatalf("failed to parse signing ring: %v", err)
	}

	uuidGen := &service.DefaultUUIDGenerator{}
	decisionSvc := service.NewDecisionService(txRunner, decisionRepo, docRepo)
	documentSvc := service.NewDocumentService(docRepo)
	reportSvc := service.NewReportService(decisionRepo, docRepo, policyRepo, artifactRepo, s3Client, ring)
	policySvc := service.NewPolicyService(policyRepo)
	holdSvc := service.NewHoldService(holdRepo, uuidGen)
	retentionSvc := service.NewRetentionService(artifactRepo, policyRepo, holdRepo, tenantRepo, s3Client)
	authSvc := service.NewAuthService(tenantRepo, apiKeyRepo, uuidGen)

	cfg := server.RouterConfig{
		AuthValidator:    authSvc,
		OperatorKey:      e2eOperatorKey,
		DecisionHandler:  handlers.NewDecisionHandler(decisionSvc),
		ReportHandler:    handlers.NewReportHandler(reportSvc),
		DocumentHandler:  handlers.NewDocumentHandler(documentSvc),
		PolicyHandler:    handlers.NewPolicyHandler(policySvc),
		HoldHandler:      handlers.NewHoldHandler(holdSvc),
		RetentionHandler: handlers.NewRetentionHandler(retentionSvc),
		AuthHandler:      handlers.NewAuthHandler(authSvc),
	}

	router := server.NewRouter(cfg)
	srv := &http.Server{
		Addr:    fmt.Sprintf(":%d", port),
		Handler: router,
	}

	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			t.Logf("server error: %v", err)
		}
	}()

	serverURL := fmt.Sprintf("http://localhost:%d", port)
	waitForServer(t, serverURL, 10*time.Second)

	return serverURL, authSvc
}

func waitForServer(t *testing.T, url string, timeout time.Duration) {
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		resp, err := http.Get(url + "/health")
		if err == nil {
			resp.Body.Close()
			if resp.StatusCode == http.StatusOK {
				return
			}
		}
		time.Sleep(100 * time.Millisecond)
	}
	t.Fatalf("server did not start within %v", timeout)
}

func getFreePort() (int, error) {
	addr, err := net.ResolveTCPAddr("tcp", "localhost:0")
	if err != nil {
		return 0, err
	}

	l, err := net.ListenTCP("tcp", addr)
	if err != nil {
		return 0, err
	}
	defer l.Close()
	return l.Addr().(*net.TCPAddr).Port, nil
}
