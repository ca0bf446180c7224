package health

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestChecker_Report(t *testing.T) {
	c := NewChecker(nil, "test")
	c.AddReadinessCheck("store", func(context.Context) error { return nil })

	report := c.Report(context.Background())
	assert.Equal(t, StatusHealthy, report.Status)
	require.Len(t, report.Checks, 1)
	assert.Equal(t, "store", report.Checks[0].Name)

	c.AddReadinessCheck("gmail", func(context.Context) error { return errors.New("token revoked") })

	report = c.Report(context.Background())
	assert.Equal(t, StatusUnhealthy, report.Status)
	require.Len(t, report.Checks, 2)
	assert.Equal(t, "gmail", report.Checks[0].Name)
	assert.Equal(t, "token revoked", report.Checks[0].Message)
}

func TestChecker_Endpoints(t *testing.T) {
	c := NewChecker(nil, "test")
	c.AddReadinessCheck("redis", func(context.Context) error { return errors.New("down") })

	rec := httptest.NewRecorder()
	c.LiveHandler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health/live", nil))
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = httptest.NewRecorder()
	c.ReadyHandler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health/ready", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}
