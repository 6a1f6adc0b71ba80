package http

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"permit-service/internal/http/middleware"
	"permit-service/internal/model"
	"permit-service/internal/service"
)

// purchasePermit is public; a bearer token, when present, links the permit
// and the vehicle to the caller.
func (h *Handler) purchasePermit(c *gin.Context) {
	var input service.PurchaseInput
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, errorResponse(err.Error()))
		return
	}
	input.PaymentMethod = model.PaymentMethod(strings.ToUpper(strings.TrimSpace(string(input.PaymentMethod))))

	var actingUserID *uuid.UUID
	if principal, ok := middleware.MustPrincipal(c); ok {
		actingUserID = &principal.UserID
	}

	permit, err := h.permits.Purchase(c.Request.Context(), input, actingUserID)
	if err != nil {
		h.handleError(c, err)
		return
	}

	c.JSON(http.StatusCreated, successResponse(permit))
}

func (h *Handler) activePermit(c *gin.Context) {
	plate := strings.TrimSpace(c.Query("plate"))
	if plate == "" {
		c.JSON(http.StatusBadRequest, errorResponse("plate is required"))
		return
	}
	at, err := parseTimeQuery(c, "at")
	if err != nil {
		c.JSON(http.StatusBadRequest, errorResponse(err.Error()))
		return
	}
	when := time.Now()
	if at != nil {
		when = *at
	}

	permit, err := h.ledger.ActiveByPlate(c.Request.Context(), plate, when)
	if errors.Is(err, service.ErrNotFound) {
		c.JSON(http.StatusOK, successResponse(gin.H{"active": false, "permit": nil}))
		return
	}
	if err != nil {
		h.handleError(c, err)
		return
	}

	c.JSON(http.StatusOK, successResponse(gin.H{"active": true, "permit": permit}))
}

func (h *Handler) permitByCode(c *gin.Context) {
	permit, err := h.ledger.GetByCode(c.Request.Context(), c.Param("code"))
	if err != nil {
		h.handleError(c, err)
		return
	}
	c.JSON(http.StatusOK, successResponse(permit))
}

func (h *Handler) myPermits(c *gin.Context) {
	principal, ok := middleware.MustPrincipal(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, errorResponse("principal missing"))
		return
	}

	limit, offset := parsePage(c)
	permits, err := h.ledger.HistoryByUser(c.Request.Context(), principal.UserID, limit, offset)
	if err != nil {
		h.handleError(c, err)
		return
	}

	c.JSON(http.StatusOK, successResponse(gin.H{"items": permits}))
}

func (h *Handler) myVehicles(c *gin.Context) {
	principal, ok := middleware.MustPrincipal(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, errorResponse("principal missing"))
		return
	}

	vehicles, err := h.vehicles.ListByUser(c.Request.Context(), principal.UserID)
	if err != nil {
		h.handleError(c, err)
		return
	}

	c.JSON(http.StatusOK, successResponse(gin.H{"items": vehicles}))
}

func (h *Handler) updateVehicle(c *gin.Context) {
	principal, ok := middleware.MustPrincipal(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, errorResponse("principal missing"))
		return
	}

	var input service.VehicleDetailsInput
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, errorResponse(err.Error()))
		return
	}

	vehicle, err := h.vehicles.UpdateDetails(c.Request.Context(), principal, c.Param("plate"), input)
	if err != nil {
		h.handleError(c, err)
		return
	}

	c.JSON(http.StatusOK, successResponse(vehicle))
}

func (h *Handler) updatePermitStatus(c *gin.Context) {
	principal, ok := middleware.MustPrincipal(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, errorResponse("principal missing"))
		return
	}

	id, err := parseUUIDParam(c, "id")
	if err != nil {
		c.JSON(http.StatusBadRequest, errorResponse(err.Error()))
		return
	}

	var req statusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, errorResponse(err.Error()))
		return
	}

	target := model.PaymentStatus(strings.ToUpper(strings.TrimSpace(req.Status)))
	permit, err := h.ledger.SetStatus(c.Request.Context(), id, target, req.Note, &principal.UserID)
	if err != nil {
		h.handleError(c, err)
		return
	}

	c.JSON(http.StatusOK, successResponse(permit))
}
