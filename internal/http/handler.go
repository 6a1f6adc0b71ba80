package http

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"permit-service/internal/service"
)

type Handler struct {
	zones    *service.ZoneService
	pricing  *service.PricingService
	ledger   *service.LedgerService
	permits  *service.PermitService
	vehicles *service.VehicleService
	fiscal   *service.FiscalService
	log      zerolog.Logger
}

func NewHandler(
	zones *service.ZoneService,
	pricing *service.PricingService,
	ledger *service.LedgerService,
	permits *service.PermitService,
	vehicles *service.VehicleService,
	fiscal *service.FiscalService,
	log zerolog.Logger,
) *Handler {
	return &Handler{
		zones:    zones,
		pricing:  pricing,
		ledger:   ledger,
		permits:  permits,
		vehicles: vehicles,
		fiscal:   fiscal,
		log:      log,
	}
}

func (h *Handler) handleError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, service.ErrPermissionDenied):
		c.JSON(http.StatusForbidden, errorResponse(err.Error()))
	case errors.Is(err, service.ErrInvalidPlate),
		errors.Is(err, service.ErrInvalidDuration),
		errors.Is(err, service.ErrInvalidPrices),
		errors.Is(err, service.ErrInvalidInput):
		c.JSON(http.StatusBadRequest, errorResponse(err.Error()))
	case errors.Is(err, service.ErrNotFound),
		errors.Is(err, service.ErrNoPriceConfig):
		c.JSON(http.StatusNotFound, errorResponse(err.Error()))
	case errors.Is(err, service.ErrOverlappingPeriod),
		errors.Is(err, service.ErrCannotDeleteCurrent),
		errors.Is(err, service.ErrInvalidStatusTransition),
		errors.Is(err, service.ErrZoneInactive),
		errors.Is(err, service.ErrPriceConfigInUse):
		c.JSON(http.StatusConflict, errorResponse(err.Error()))
	default:
		h.log.Error().Err(err).Str("path", c.FullPath()).Msg("handler error")
		c.JSON(http.StatusInternalServerError, errorResponse("internal error"))
	}
}

func parseUUIDParam(c *gin.Context, name string) (uuid.UUID, error) {
	id, err := uuid.Parse(strings.TrimSpace(c.Param(name)))
	if err != nil {
		return uuid.Nil, fmt.Errorf("invalid %s", name)
	}
	return id, nil
}

func parseZoneID(c *gin.Context) (int64, error) {
	id, err := strconv.ParseInt(strings.TrimSpace(c.Param("id")), 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("invalid zone id")
	}
	return id, nil
}

// parseTimeQuery returns nil when the parameter is absent.
func parseTimeQuery(c *gin.Context, name string) (*time.Time, error) {
	raw := strings.TrimSpace(c.Query(name))
	if raw == "" {
		return nil, nil
	}
	ts, err := time.Parse(time.RFC3339, raw)
	if err != nil {
		return nil, fmt.Errorf("invalid %s: expected RFC3339", name)
	}
	return &ts, nil
}

func parsePage(c *gin.Context) (limit, offset int) {
	if v, err := strconv.Atoi(strings.TrimSpace(c.Query("limit"))); err == nil {
		limit = v
	}
	if v, err := strconv.Atoi(strings.TrimSpace(c.Query("offset"))); err == nil {
		offset = v
	}
	return limit, offset
}

func splitCSV(value string) []string {
	parts := strings.Split(value, ",")
	out := make([]string, 0, len(parts))
	for _, part := range parts {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		out = append(out, part)
	}
	return out
}

type statusRequest struct {
	Status string `json:"status" binding:"required"`
	Note   string `json:"note"`
}

type responseEnvelope struct {
	Data interface{} `json:"data"`
}

func successResponse(data interface{}) responseEnvelope {
	return responseEnvelope{Data: data}
}

func errorResponse(msg string) gin.H {
	return gin.H{"error": msg}
}
