package http

import (
	"net/http"
	"strings"

	"github.com/hooklinehq/hookline/internal/http/middleware"
	"github.com/hooklinehq/hookline/internal/model"
	"github.com/hooklinehq/hookline/internal/repository"
	echo "github.com/labstack/echo/v4"
)

func reportDeliveriesHandler(chRepo repository.CHDeliveriesRepository) echo.HandlerFunc {
	return func(c echo.Context) error {
		tenantID, ok := middleware.TenantIDFromCtx(c)
		if !ok {
			return c.JSON(http.StatusUnauthorized, map[string]string{"error": "unauthorized"})
		}

		var st model.DeliveryStatus
		if raw := strings.TrimSpace(c.QueryParam("status")); raw != "" {
			st = model.DeliveryStatus(raw)
			if !st.Valid() {
				return c.JSON(http.StatusBadRequest, map[string]string{"error": "invalid status"})
			}
		}

		limit, offset := pagination(c)

		rows, err := chRepo.ListByTenant(
			c.Request().Context(),
			tenantID,
			c.QueryParam("subscription_id"),
			st,
			limit,
			offset,
		)
		if err != nil {
			c.Logger().Errorf("clickhouse list failed: %v", err)

			return c.JSON(http.StatusInternalServerError, map[string]string{"error": "query failed"})
		}

		return c.JSON(http.StatusOK, map[string]any{
			"limit":   limit,
			"offset":  offset,
			"count":   len(rows),
			"results": rows,
		})
	}
}
