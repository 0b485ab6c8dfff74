package http

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/hooklinehq/hookline/internal/model"
	"github.com/hooklinehq/hookline/internal/repository"
	echo "github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeCHDeliveries struct {
	gotStatus model.DeliveryStatus
}

func (f *fakeCHDeliveries) ListByTenant(_ context.Context, _, _ string, status model.DeliveryStatus, _, _ int) ([]model.WebhookDelivery, error) {
	f.gotStatus = status
	return nil, nil
}

var _ repository.CHDeliveriesRepository = (*fakeCHDeliveries)(nil)

func reportRequest(t *testing.T, h echo.HandlerFunc, query string) *httptest.ResponseRecorder {
	t.Helper()
	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/v1/reports/deliveries"+query, nil)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)
	c.Set("tenant_id", "t1")
	require.NoError(t, h(c))
	return rec
}

func TestReportDeliveriesRejectsInvalidStatus(t *testing.T) {
	repo := &fakeCHDeliveries{}
	h := reportDeliveriesHandler(repo)

	rec := reportRequest(t, h, "?status=bogus")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Empty(t, repo.gotStatus)
}

func TestReportDeliveriesPassesValidStatus(t *testing.T) {
	repo := &fakeCHDeliveries{}
	h := reportDeliveriesHandler(repo)

	rec := reportRequest(t, h, "?status=retrying")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, model.DeliveryRetrying, repo.gotStatus)

	rec = reportRequest(t, h, "")
	assert.Equal(t, http.StatusOK, rec.Code)
}
