package telemetry

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestInitWithoutDSN(t *testing.T) {
	shutdown, err := Init(Config{})
	assert.NoError(t, err)
	assert.NotPanics(t, shutdown)
}

func TestSpanWithoutInit(t *testing.T) {
	// Tracing is optional; spans must be safe no-ops when Sentry was
	// never initialized.
	ctx, span := StartSpan(context.Background(), "ReportService.StoreReport", SpanAttributes{
		Tenant:     "acme",
		DecisionID: "dec-1",
		Operation:  "store_report",
	})
	assert.NotNil(t, ctx)

	err := errors.New("boom")
	assert.NotPanics(t, func() { span.Finish(&err) })

	_, child := StartSpan(ctx, "child", SpanAttributes{})
	assert.NotPanics(t, func() { child.Finish(nil) })
}
