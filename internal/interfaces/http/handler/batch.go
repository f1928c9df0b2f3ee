package handler

import (
	"context"

	inventoryapp "github.com/erp/posting/internal/application/inventory"
	"github.com/erp/posting/internal/interfaces/http/router"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// BatchHandler serves the batch registry
type BatchHandler struct {
	BaseHandler
	ledger *inventoryapp.StockLedger
}

// NewBatchHandler creates a BatchHandler
func NewBatchHandler(ledger *inventoryapp.StockLedger) *BatchHandler {
	return &BatchHandler{ledger: ledger}
}

// Routes returns the batch routes
func (h *BatchHandler) Routes() *router.DomainGroup {
	return router.NewDomainGroup("batches", "/batches").
		POST("", h.Register).
		GET("/:id", h.Get).
		POST("/:id/block", h.transition(h.ledger.BlockBatch)).
		POST("/:id/expire", h.transition(h.ledger.ExpireBatch)).
		POST("/:id/consume", h.transition(h.ledger.ConsumeBatch)).
		POST("/:id/deactivate", h.transition(h.ledger.DeactivateBatch))
}

// Register godoc
// @ID           registerBatch
// @Summary      Register a batch of a material
// @Tags         batches
// @Accept       json
// @Produce      json
// @Param        request body inventoryapp.RegisterBatchRequest true "Batch"
// @Success      201 {object} dto.Response{data=inventoryapp.BatchResponse}
// @Failure      409 {object} dto.Response
// @Router       /batches [post]
func (h *BatchHandler) Register(c *gin.Context) {
	var req inventoryapp.RegisterBatchRequest
	if !h.bindJSON(c, &req) {
		return
	}
	batch, err := h.ledger.RegisterBatch(c.Request.Context(), req)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Created(c, batch)
}

// Get godoc
// @ID           getBatch
// @Summary      Get a batch
// @Tags         batches
// @Produce      json
// @Param        id path string true "Batch ID" format(uuid)
// @Success      200 {object} dto.Response{data=inventoryapp.BatchResponse}
// @Failure      404 {object} dto.Response
// @Router       /batches/{id} [get]
func (h *BatchHandler) Get(c *gin.Context) {
	id, ok := h.pathID(c)
	if !ok {
		return
	}
	batch, err := h.ledger.Batch(c.Request.Context(), id)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, batch)
}

// transition serves the status changes of a batch. Blocked, expired and
// consumed batches refuse issues with BATCH_NOT_AVAILABLE.
//
// @ID           changeBatchStatus
// @Summary      Block, expire, consume or deactivate a batch
// @Tags         batches
// @Produce      json
// @Param        id path string true "Batch ID" format(uuid)
// @Param        action path string true "Transition" Enums(block, expire, consume, deactivate)
// @Success      200 {object} dto.Response{data=inventoryapp.BatchResponse}
// @Failure      404 {object} dto.Response
// @Failure      422 {object} dto.Response
// @Router       /batches/{id}/{action} [post]
func (h *BatchHandler) transition(fn func(context.Context, uuid.UUID) (*inventoryapp.BatchResponse, error)) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := h.pathID(c)
		if !ok {
			return
		}
		batch, err := fn(c.Request.Context(), id)
		if err != nil {
			h.HandleError(c, err)
			return
		}
		h.Success(c, batch)
	}
}
