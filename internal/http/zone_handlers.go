package http

import (
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"permit-service/internal/http/middleware"
	"permit-service/internal/service"
)

// listZones shows active zones with their current price. Pricing managers may
// ask for inactive ones too.
func (h *Handler) listZones(c *gin.Context) {
	activeOnly := true
	if principal, ok := middleware.MustPrincipal(c); ok && principal.CanManagePricing() {
		activeOnly = !strings.EqualFold(strings.TrimSpace(c.Query("includeInactive")), "true")
	}

	zones, err := h.zones.ListWithCurrentPrice(c.Request.Context(), activeOnly)
	if err != nil {
		h.handleError(c, err)
		return
	}

	c.JSON(http.StatusOK, successResponse(gin.H{"items": zones}))
}

func (h *Handler) createZone(c *gin.Context) {
	var input service.ZoneInput
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, errorResponse(err.Error()))
		return
	}

	zone, err := h.zones.Create(c.Request.Context(), input)
	if err != nil {
		h.handleError(c, err)
		return
	}

	c.JSON(http.StatusCreated, successResponse(zone))
}

func (h *Handler) updateZone(c *gin.Context) {
	id, err := parseZoneID(c)
	if err != nil {
		c.JSON(http.StatusBadRequest, errorResponse(err.Error()))
		return
	}

	var input service.ZoneInput
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, errorResponse(err.Error()))
		return
	}

	zone, err := h.zones.Update(c.Request.Context(), id, input)
	if err != nil {
		h.handleError(c, err)
		return
	}

	c.JSON(http.StatusOK, successResponse(zone))
}

func (h *Handler) priceHistory(c *gin.Context) {
	id, err := parseZoneID(c)
	if err != nil {
		c.JSON(http.StatusBadRequest, errorResponse(err.Error()))
		return
	}

	configs, err := h.pricing.History(c.Request.Context(), id)
	if err != nil {
		h.handleError(c, err)
		return
	}

	c.JSON(http.StatusOK, successResponse(gin.H{"items": configs}))
}

func (h *Handler) currentPrice(c *gin.Context) {
	id, err := parseZoneID(c)
	if err != nil {
		c.JSON(http.StatusBadRequest, errorResponse(err.Error()))
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

	cfg, err := h.pricing.GetCurrent(c.Request.Context(), id, when)
	if err != nil {
		h.handleError(c, err)
		return
	}

	c.JSON(http.StatusOK, successResponse(cfg))
}

func (h *Handler) createPriceConfig(c *gin.Context) {
	principal, ok := middleware.MustPrincipal(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, errorResponse("principal missing"))
		return
	}

	id, err := parseZoneID(c)
	if err != nil {
		c.JSON(http.StatusBadRequest, errorResponse(err.Error()))
		return
	}

	var input service.PriceConfigInput
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, errorResponse(err.Error()))
		return
	}

	cfg, err := h.pricing.Create(c.Request.Context(), id, input, &principal.UserID)
	if err != nil {
		h.handleError(c, err)
		return
	}

	c.JSON(http.StatusCreated, successResponse(cfg))
}

func (h *Handler) updatePriceConfig(c *gin.Context) {
	id, err := parseUUIDParam(c, "id")
	if err != nil {
		c.JSON(http.StatusBadRequest, errorResponse(err.Error()))
		return
	}

	var input service.PriceConfigInput
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, errorResponse(err.Error()))
		return
	}

	cfg, err := h.pricing.Update(c.Request.Context(), id, input)
	if err != nil {
		h.handleError(c, err)
		return
	}

	c.JSON(http.StatusOK, successResponse(cfg))
}

func (h *Handler) deletePriceConfig(c *gin.Context) {
	id, err := parseUUIDParam(c, "id")
	if err != nil {
		c.JSON(http.StatusBadRequest, errorResponse(err.Error()))
		return
	}

	if err := h.pricing.Delete(c.Request.Context(), id); err != nil {
		h.handleError(c, err)
		return
	}

	c.Status(http.StatusNoContent)
}
