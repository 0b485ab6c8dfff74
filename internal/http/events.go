package http

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/hooklinehq/hookline/internal/http/middleware"
	"github.com/hooklinehq/hookline/internal/model"
	"github.com/hooklinehq/hookline/internal/service/intake"
	echo "github.com/labstack/echo/v4"
	"github.com/labstack/gommon/log"
)

type emitReq struct {
	EventType string          `json:"event_type"`
	SourceApp string          `json:"source_app"`
	UserID    *string         `json:"user_id"`
	Payload   json.RawMessage `json:"payload"`
	Metadata  model.JSONMap   `json:"metadata"`
}

func emitEventHandler(intakeSvc *intake.Service) echo.HandlerFunc {
	return func(c echo.Context) error {
		var req emitReq
		if err := c.Bind(&req); err != nil {
			return c.JSON(http.StatusBadRequest, map[string]string{"error": "bad request"})
		}

		req.EventType = strings.TrimSpace(req.EventType)
		req.SourceApp = strings.TrimSpace(req.SourceApp)
		if req.EventType == "" || req.SourceApp == "" {
			return c.JSON(http.StatusBadRequest, map[string]string{"error": "event_type and source_app are required"})
		}

		tenantID, ok := middleware.TenantIDFromCtx(c)
		if !ok {
			return c.JSON(http.StatusUnauthorized, map[string]string{"error": "unauthorized"})
		}

		evt, err := intakeSvc.Emit(c.Request().Context(), intake.EmitInput{
			EventType: req.EventType,
			SourceApp: req.SourceApp,
			TenantID:  tenantID,
			UserID:    req.UserID,
			Payload:   req.Payload,
			Metadata:  req.Metadata,
		})
		if err != nil {
			if errors.Is(err, intake.ErrInvalidEventType) || errors.Is(err, intake.ErrInvalidPayload) {
				return c.JSON(http.StatusBadRequest, map[string]string{"error": err.Error()})
			}

			log.Errorf("emit failed: %v", err)

			return c.JSON(http.StatusInternalServerError, map[string]string{"error": "db error"})
		}

		// Dispatch is asynchronous from here on; the caller only learns the
		// durable identifier.
		return c.JSON(http.StatusAccepted, map[string]any{
			"accepted":   true,
			"event_id":   evt.ID,
			"event_type": evt.EventType,
		})
	}
}
