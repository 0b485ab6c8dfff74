package http

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/hooklinehq/hookline/internal/http/middleware"
	"github.com/hooklinehq/hookline/internal/model"
	"github.com/hooklinehq/hookline/internal/service/registry"
	echo "github.com/labstack/echo/v4"
	"github.com/labstack/gommon/log"
)

type createSubReq struct {
	AppID       string             `json:"app_id"`
	Name        string             `json:"name"`
	EventTypes  []string           `json:"event_types"`
	EndpointURL string             `json:"endpoint_url"`
	RetryConfig *model.RetryConfig `json:"retry_config"`
	Filters     map[string]any     `json:"filters"`
}

type updateSubReq struct {
	Name        *string            `json:"name"`
	EventTypes  []string           `json:"event_types"`
	EndpointURL *string            `json:"endpoint_url"`
	RetryConfig *model.RetryConfig `json:"retry_config"`
	Filters     map[string]any     `json:"filters"`
	Status      *string            `json:"status"`
}

func createSubscriptionHandler(reg *registry.Service) echo.HandlerFunc {
	return func(c echo.Context) error {
		var req createSubReq
		if err := c.Bind(&req); err != nil {
			return c.JSON(http.StatusBadRequest, map[string]string{"error": "bad request"})
		}

		tenantID, ok := middleware.TenantIDFromCtx(c)
		if !ok {
			return c.JSON(http.StatusUnauthorized, map[string]string{"error": "unauthorized"})
		}

		sub, err := reg.Create(c.Request().Context(), tenantID, registry.CreateInput{
			AppID:       req.AppID,
			Name:        req.Name,
			EventTypes:  req.EventTypes,
			EndpointURL: req.EndpointURL,
			RetryConfig: req.RetryConfig,
			Filters:     req.Filters,
		})
		if err != nil {
			var verr *registry.ValidationError
			if errors.As(err, &verr) {
				return c.JSON(http.StatusBadRequest, map[string]string{"error": verr.Error()})
			}

			log.Errorf("create subscription failed: %v", err)

			return c.JSON(http.StatusInternalServerError, map[string]string{"error": "db error"})
		}

		// The only response that ever carries the signing secret.
		return c.JSON(http.StatusCreated, sub)
	}
}

func getSubscriptionHandler(reg *registry.Service) echo.HandlerFunc {
	return func(c echo.Context) error {
		tenantID, ok := middleware.TenantIDFromCtx(c)
		if !ok {
			return c.JSON(http.StatusUnauthorized, map[string]string{"error": "unauthorized"})
		}

		sub, err := reg.Get(c.Request().Context(), tenantID, c.Param("id"))
		if err != nil {
			if errors.Is(err, registry.ErrNotFound) {
				return c.JSON(http.StatusNotFound, map[string]string{"error": "not found"})
			}

			log.Errorf("get subscription failed: %v", err)

			return c.JSON(http.StatusInternalServerError, map[string]string{"error": "db error"})
		}

		return c.JSON(http.StatusOK, sub)
	}
}

func listSubscriptionsHandler(reg *registry.Service) echo.HandlerFunc {
	return func(c echo.Context) error {
		tenantID, ok := middleware.TenantIDFromCtx(c)
		if !ok {
			return c.JSON(http.StatusUnauthorized, map[string]string{"error": "unauthorized"})
		}

		limit, offset := pagination(c)

		subs, err := reg.List(c.Request().Context(), tenantID, limit, offset)
		if err != nil {
			log.Errorf("list subscriptions failed: %v", err)

			return c.JSON(http.StatusInternalServerError, map[string]string{"error": "db error"})
		}
		if subs == nil {
			subs = []model.WebhookSubscription{}
		}

		return c.JSON(http.StatusOK, map[string]any{"subscriptions": subs})
	}
}

func updateSubscriptionHandler(reg *registry.Service) echo.HandlerFunc {
	return func(c echo.Context) error {
		var req updateSubReq
		if err := c.Bind(&req); err != nil {
			return c.JSON(http.StatusBadRequest, map[string]string{"error": "bad request"})
		}

		tenantID, ok := middleware.TenantIDFromCtx(c)
		if !ok {
			return c.JSON(http.StatusUnauthorized, map[string]string{"error": "unauthorized"})
		}

		in := registry.UpdateInput{
			Name:        req.Name,
			EventTypes:  req.EventTypes,
			EndpointURL: req.EndpointURL,
			RetryConfig: req.RetryConfig,
			Filters:     req.Filters,
		}
		if req.Status != nil {
			st := model.SubscriptionStatus(*req.Status)
			in.Status = &st
		}

		sub, err := reg.Update(c.Request().Context(), tenantID, c.Param("id"), in)
		if err != nil {
			var verr *registry.ValidationError
			if errors.As(err, &verr) {
				return c.JSON(http.StatusBadRequest, map[string]string{"error": verr.Error()})
			}
			if errors.Is(err, registry.ErrNotFound) {
				return c.JSON(http.StatusNotFound, map[string]string{"error": "not found"})
			}

			log.Errorf("update subscription failed: %v", err)

			return c.JSON(http.StatusInternalServerError, map[string]string{"error": "db error"})
		}

		return c.JSON(http.StatusOK, sub)
	}
}

func deleteSubscriptionHandler(reg *registry.Service) echo.HandlerFunc {
	return func(c echo.Context) error {
		tenantID, ok := middleware.TenantIDFromCtx(c)
		if !ok {
			return c.JSON(http.StatusUnauthorized, map[string]string{"error": "unauthorized"})
		}

		if err := reg.Delete(c.Request().Context(), tenantID, c.Param("id")); err != nil {
			log.Errorf("delete subscription failed: %v", err)

			return c.JSON(http.StatusInternalServerError, map[string]string{"error": "db error"})
		}

		return c.NoContent(http.StatusNoContent)
	}
}

func activateSubscriptionHandler(reg *registry.Service) echo.HandlerFunc {
	return func(c echo.Context) error {
		tenantID, ok := middleware.TenantIDFromCtx(c)
		if !ok {
			return c.JSON(http.StatusUnauthorized, map[string]string{"error": "unauthorized"})
		}

		if err := reg.Activate(c.Request().Context(), tenantID, c.Param("id")); err != nil {
			if errors.Is(err, registry.ErrNotFound) {
				return c.JSON(http.StatusNotFound, map[string]string{"error": "not found"})
			}

			log.Errorf("activate subscription failed: %v", err)

			return c.JSON(http.StatusInternalServerError, map[string]string{"error": "db error"})
		}

		return c.JSON(http.StatusOK, map[string]string{"status": string(model.SubscriptionActive)})
	}
}

func pagination(c echo.Context) (limit, offset int) {
	limit = 50
	if v, err := strconv.Atoi(c.QueryParam("limit")); err == nil && v > 0 && v <= 200 {
		limit = v
	}
	if v, err := strconv.Atoi(c.QueryParam("offset")); err == nil && v >= 0 {
		offset = v
	}
	return limit, offset
}
