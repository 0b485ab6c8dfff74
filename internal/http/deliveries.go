package http

import (
	"net/http"

	"github.com/hooklinehq/hookline/internal/http/middleware"
	"github.com/hooklinehq/hookline/internal/model"
	"github.com/hooklinehq/hookline/internal/repository"
	echo "github.com/labstack/echo/v4"
	"github.com/labstack/gommon/log"
)

func listDeliveriesHandler(deliveries repository.DeliveriesRepository) echo.HandlerFunc {
	return func(c echo.Context) error {
		tenantID, ok := middleware.TenantIDFromCtx(c)
		if !ok {
			return c.JSON(http.StatusUnauthorized, map[string]string{"error": "unauthorized"})
		}

		status := model.DeliveryStatus(c.QueryParam("status"))
		if status != "" && !status.Valid() {
			return c.JSON(http.StatusBadRequest, map[string]string{"error": "invalid status"})
		}

		limit, offset := pagination(c)

		rows, err := deliveries.List(c.Request().Context(), tenantID, c.QueryParam("subscription_id"), status, limit, offset)
		if err != nil {
			log.Errorf("list deliveries failed: %v", err)

			return c.JSON(http.StatusInternalServerError, map[string]string{"error": "db error"})
		}
		if rows == nil {
			rows = []model.WebhookDelivery{}
		}

		return c.JSON(http.StatusOK, map[string]any{"deliveries": rows})
	}
}

func getDeliveryHandler(deliveries repository.DeliveriesRepository) echo.HandlerFunc {
	return func(c echo.Context) error {
		tenantID, ok := middleware.TenantIDFromCtx(c)
		if !ok {
			return c.JSON(http.StatusUnauthorized, map[string]string{"error": "unauthorized"})
		}

		d, err := deliveries.GetByID(c.Request().Context(), c.Param("id"))
		if err != nil {
			log.Errorf("get delivery failed: %v", err)

			return c.JSON(http.StatusInternalServerError, map[string]string{"error": "db error"})
		}
		if d == nil || d.TenantID != tenantID {
			return c.JSON(http.StatusNotFound, map[string]string{"error": "not found"})
		}

		return c.JSON(http.StatusOK, d)
	}
}
