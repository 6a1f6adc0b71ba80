package http

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"permit-service/internal/http/middleware"
	"permit-service/internal/model"
	"permit-service/internal/service"
)

func (h *Handler) verifyPlate(c *gin.Context) {
	principal, ok := middleware.MustPrincipal(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, errorResponse("principal missing"))
		return
	}

	var input service.VerifyInput
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, errorResponse(err.Error()))
		return
	}

	outcome, err := h.fiscal.Verify(c.Request.Context(), principal.UserID, input)
	if err != nil {
		h.handleError(c, err)
		return
	}

	c.JSON(http.StatusOK, successResponse(outcome))
}

func (h *Handler) registerInfringement(c *gin.Context) {
	principal, ok := middleware.MustPrincipal(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, errorResponse("principal missing"))
		return
	}

	var input service.InfringementInput
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, errorResponse(err.Error()))
		return
	}
	input.Type = model.InfringementType(strings.ToUpper(strings.TrimSpace(string(input.Type))))

	infringement, err := h.fiscal.RegisterInfringement(c.Request.Context(), principal.UserID, input)
	if err != nil {
		h.handleError(c, err)
		return
	}

	c.JSON(http.StatusCreated, successResponse(infringement))
}

func (h *Handler) listInfringements(c *gin.Context) {
	principal, ok := middleware.MustPrincipal(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, errorResponse("principal missing"))
		return
	}

	opts, err := parseInfringementQuery(c)
	if err != nil {
		c.JSON(http.StatusBadRequest, errorResponse(err.Error()))
		return
	}

	records, err := h.fiscal.ListInfringements(c.Request.Context(), principal, opts)
	if err != nil {
		h.handleError(c, err)
		return
	}

	c.JSON(http.StatusOK, successResponse(gin.H{"items": records}))
}

func (h *Handler) getInfringement(c *gin.Context) {
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

	record, err := h.fiscal.GetInfringement(c.Request.Context(), principal, id)
	if err != nil {
		h.handleError(c, err)
		return
	}

	c.JSON(http.StatusOK, successResponse(record))
}

func (h *Handler) updateInfringementStatus(c *gin.Context) {
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

	target := model.InfringementStatus(strings.ToUpper(strings.TrimSpace(req.Status)))
	record, err := h.fiscal.UpdateInfringementStatus(c.Request.Context(), principal, id, target, req.Note)
	if err != nil {
		h.handleError(c, err)
		return
	}

	c.JSON(http.StatusOK, successResponse(record))
}

func (h *Handler) listActions(c *gin.Context) {
	principal, ok := middleware.MustPrincipal(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, errorResponse("principal missing"))
		return
	}

	opts, err := parseActionQuery(c)
	if err != nil {
		c.JSON(http.StatusBadRequest, errorResponse(err.Error()))
		return
	}

	actions, err := h.fiscal.ListActions(c.Request.Context(), principal, opts)
	if err != nil {
		h.handleError(c, err)
		return
	}

	c.JSON(http.StatusOK, successResponse(gin.H{"items": actions}))
}

func (h *Handler) recordPatrol(c *gin.Context) {
	principal, ok := middleware.MustPrincipal(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, errorResponse("principal missing"))
		return
	}

	var input service.PatrolInput
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, errorResponse(err.Error()))
		return
	}

	action, err := h.fiscal.RecordPatrol(c.Request.Context(), principal.UserID, input)
	if err != nil {
		h.handleError(c, err)
		return
	}

	c.JSON(http.StatusCreated, successResponse(action))
}

func parseInfringementQuery(c *gin.Context) (service.InfringementListOptions, error) {
	var opts service.InfringementListOptions

	for _, val := range splitCSV(c.Query("status")) {
		opts.Statuses = append(opts.Statuses, model.InfringementStatus(strings.ToUpper(val)))
	}
	for _, val := range splitCSV(c.Query("type")) {
		opts.Types = append(opts.Types, model.InfringementType(strings.ToUpper(val)))
	}
	opts.Plate = strings.TrimSpace(c.Query("plate"))

	var err error
	if opts.DateFrom, err = parseTimeQuery(c, "dateFrom"); err != nil {
		return opts, err
	}
	if opts.DateTo, err = parseTimeQuery(c, "dateTo"); err != nil {
		return opts, err
	}
	opts.Limit, opts.Offset = parsePage(c)
	return opts, nil
}

func parseActionQuery(c *gin.Context) (service.ActionListOptions, error) {
	var opts service.ActionListOptions

	for _, val := range splitCSV(c.Query("actionType")) {
		opts.ActionTypes = append(opts.ActionTypes, model.FiscalActionType(strings.ToUpper(val)))
	}
	opts.Plate = strings.TrimSpace(c.Query("plate"))

	var err error
	if opts.DateFrom, err = parseTimeQuery(c, "dateFrom"); err != nil {
		return opts, err
	}
	if opts.DateTo, err = parseTimeQuery(c, "dateTo"); err != nil {
		return opts, err
	}
	opts.Limit, opts.Offset = parsePage(c)
	return opts, nil
}
