// Package handler exposes the posting core over HTTP
package handler

import (
	"context"
	"errors"
	"net/http"

	"github.com/erp/posting/internal/domain/shared"
	"github.com/erp/posting/internal/infrastructure/logger"
	"github.com/erp/posting/internal/interfaces/http/dto"
	"github.com/erp/posting/internal/interfaces/http/middleware"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// BaseHandler provides common handler utilities
type BaseHandler struct{}

// Success sends a 200 response
func (h *BaseHandler) Success(c *gin.Context, data any) {
	c.JSON(http.StatusOK, dto.NewSuccessResponse(data))
}

// SuccessWithMeta sends a 200 response with pagination meta
func (h *BaseHandler) SuccessWithMeta(c *gin.Context, data any, total int64, page, pageSize int) {
	c.JSON(http.StatusOK, dto.NewSuccessResponseWithMeta(data, total, page, pageSize))
}

// Created sends a 201 response
func (h *BaseHandler) Created(c *gin.Context, data any) {
	c.JSON(http.StatusCreated, dto.NewSuccessResponse(data))
}

// NoContent sends a 204 response
func (h *BaseHandler) NoContent(c *gin.Context) {
	c.Status(http.StatusNoContent)
}

// Error sends an error response and records the code for metrics and
// tracing
func (h *BaseHandler) Error(c *gin.Context, status int, code, message string) {
	c.Set(middleware.ErrorCodeKey, code)
	c.AbortWithStatusJSON(status, dto.NewErrorResponseWithRequestID(code, message, middleware.GetRequestID(c)))
}

// BadRequest sends a 400 response
func (h *BaseHandler) BadRequest(c *gin.Context, message string) {
	h.Error(c, http.StatusBadRequest, dto.ErrCodeBadRequest, message)
}

// HandleError maps err to its status. Domain errors keep their code and
// message; a deadline becomes POSTING_TIMEOUT; anything else is a 500
// whose details stay in the log. LEDGER_DRIFT and other 5xx are logged at
// error, business rejections at debug.
func (h *BaseHandler) HandleError(c *gin.Context, err error) {
	if err == nil {
		return
	}
	log := logger.GetGinLogger(c)

	var de *shared.DomainError
	switch {
	case errors.As(err, &de):
		status := dto.GetHTTPStatus(de.Code)
		if status >= http.StatusInternalServerError {
			log.Error("Request failed", zap.String("code", de.Code), zap.Error(err))
		} else {
			log.Debug("Request rejected", zap.String("code", de.Code), zap.String("message", de.Message))
		}
		h.Error(c, status, de.Code, de.Message)
	case errors.Is(err, context.DeadlineExceeded):
		log.Warn("Request deadline exceeded", zap.Error(err))
		h.Error(c, http.StatusGatewayTimeout, shared.ErrPostingTimeout.Code, shared.ErrPostingTimeout.Message)
	default:
		log.Error("Unexpected error", zap.Error(err))
		h.Error(c, http.StatusInternalServerError, dto.ErrCodeInternal, "An unexpected error occurred")
	}
}

// bindJSON binds the body into req, answering 400 on failure
func (h *BaseHandler) bindJSON(c *gin.Context, req any) bool {
	if err := c.ShouldBindJSON(req); err != nil {
		c.Set(middleware.ErrorCodeKey, dto.ErrCodeValidation)
		middleware.HandleValidationError(c, err)
		return false
	}
	return true
}

// bindOptionalJSON binds a body that may be empty
func (h *BaseHandler) bindOptionalJSON(c *gin.Context, req any) bool {
	if c.Request.ContentLength == 0 {
		return true
	}
	return h.bindJSON(c, req)
}

// bindQuery binds query parameters into req
func (h *BaseHandler) bindQuery(c *gin.Context, req any) bool {
	if err := c.ShouldBindQuery(req); err != nil {
		c.Set(middleware.ErrorCodeKey, dto.ErrCodeValidation)
		middleware.HandleValidationError(c, err)
		return false
	}
	return true
}

// pathID parses the :id path parameter
func (h *BaseHandler) pathID(c *gin.Context) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		h.BadRequest(c, "Invalid id: must be a UUID")
		return uuid.Nil, false
	}
	return id, true
}

// queryUUID parses an optional UUID query parameter
func (h *BaseHandler) queryUUID(c *gin.Context, name string) (*uuid.UUID, bool) {
	raw := c.Query(name)
	if raw == "" {
		return nil, true
	}
	id, err := uuid.Parse(raw)
	if err != nil {
		h.BadRequest(c, "Invalid "+name+": must be a UUID")
		return nil, false
	}
	return &id, true
}

// requireQueryUUID parses a mandatory UUID query parameter
func (h *BaseHandler) requireQueryUUID(c *gin.Context, name string) (uuid.UUID, bool) {
	id, ok := h.queryUUID(c, name)
	if !ok {
		return uuid.Nil, false
	}
	if id == nil {
		h.BadRequest(c, name+" is required")
		return uuid.Nil, false
	}
	return *id, true
}
