package jobs

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"

	"github.com/evidentry/evidentry/internal/service"
)

type MockSweeper struct {
	mock.Mock
	mu    sync.Mutex
	calls int
}

func (m *MockSweeper) Sweep(ctx context.Context) error {
	m.mu.Lock()
	m.calls++
	m.mu.Unlock()
	args := m.Called(ctx)
	return args.Error(0)
}

func (m *MockSweeper) callCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls
}

func TestWorker_SweepsOnInterval(t *testing.T) {
	sweeper := new(MockSweeper)
	sweeper.On("Sweep", mock.Anything).Return(nil)

	worker := NewWorker(sweeper, 10*time.Millisecond)
	go worker.Start(context.Background())

	time.Sleep(55 * time.Millisecond)
	worker.Stop()

	assert.GreaterOrEqual(t, sweeper.callCount(), 2)
}

func TestWorker_ContinuesAfterSweepError(t *testing.T) {
	sweeper := new(MockSweeper)
	sweeper.On("Sweep", mock.Anything).Return(errors.New("scan failed"))

	worker := NewWorker(sweeper, 10*time.Millisecond)
	go worker.Start(context.Background())

	time.Sleep(55 * time.Millisecond)
	worker.Stop()

	assert.GreaterOrEqual(t, sweeper.callCount(), 2)
}

func TestWorker_StopsOnContextCancel(t *testing.T) {
	sweeper := new(MockSweeper)
	sweeper.On("Sweep", mock.Anything).Return(nil).Maybe()

	ctx, cancel := context.WithCancel(context.Background())
	worker := NewWorker(sweeper, 10*time.Millisecond)

	done := make(chan struct{})
	go func() {
		worker.Start(ctx)
		close(done)
	}()

	cancel()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("worker did not stop after context cancellation")
	}
}

type MockEnforcer struct {
	mock.Mock
}

func (m *MockEnforcer) Enforce(ctx context.Context, input service.EnforceInput) (*service.EnforcementReport, error) {
	args := m.Called(ctx, input)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*service.EnforcementReport), args.Error(1)
}

func TestRetentionSweeper_RunsAllTenants(t *testing.T) {
	enforcer := new(MockEnforcer)
	enforcer.On("Enforce", mock.Anything, mock.MatchedBy(func(input service.EnforceInput) bool {
		return input.Tenant == "" && !input.DryRun && input.Reason == "scheduled_sweep"
	})).Return(&service.EnforcementReport{JobID: "job-1", Scanned: 4, Deleted: 2}, nil)

	sweeper := NewRetentionSweeper(enforcer, false)
	err := sweeper.Sweep(context.Background())

	assert.NoError(t, err)
	enforcer.AssertExpectations(t)
}

func TestRetentionSweeper_DryRun(t *testing.T) {
	enforcer := new(MockEnforcer)
	enforcer.On("Enforce", mock.Anything, mock.MatchedBy(func(input service.EnforceInput) bool {
		return input.DryRun
	})).Return(&service.EnforcementReport{JobID: "job-2", DryRun: true}, nil)

	sweeper := NewRetentionSweeper(enforcer, true)
	err := sweeper.Sweep(context.Background())

	assert.NoError(t, err)
	enforcer.AssertExpectations(t)
}

func TestRetentionSweeper_PropagatesError(t *testing.T) {
	enforcer := new(MockEnforcer)
	enforcer.On("Enforce", mock.Anything, mock.Anything).Return(nil, errors.New("db down"))

	sweeper := NewRetentionSweeper(enforcer, false)
	err := sweeper.Sweep(context.Background())

	assert.Error(t, err)
}
