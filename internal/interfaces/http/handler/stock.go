package handler

import (
	"strconv"
	"time"

	inventoryapp "github.com/erp/posting/internal/application/inventory"
	"github.com/erp/posting/internal/interfaces/http/dto"
	"github.com/erp/posting/internal/interfaces/http/router"
	"github.com/gin-gonic/gin"
)

// StockHandler serves the stock ledger
type StockHandler struct {
	BaseHandler
	ledger *inventoryapp.StockLedger
}

// NewStockHandler creates a StockHandler
func NewStockHandler(ledger *inventoryapp.StockLedger) *StockHandler {
	return &StockHandler{ledger: ledger}
}

// TransferDateRequest optionally dates the completion or cancellation of a
// transfer in transit
type TransferDateRequest struct {
	Date *time.Time `json:"date"`
}

// Routes returns the stock routes
func (h *StockHandler) Routes() *router.DomainGroup {
	return router.NewDomainGroup("stock", "/stock").
		POST("/receive", h.Receive).
		POST("/opening-balance", h.OpeningBalance).
		POST("/issue", h.Issue).
		POST("/transfer", h.Transfer).
		POST("/transfers/:id/complete", h.CompleteTransfer).
		POST("/transfers/:id/cancel", h.CancelTransfer).
		POST("/adjust", h.Adjust).
		POST("/block", h.Block).
		POST("/holds/:id/release", h.Release).
		GET("/levels", h.ListLevels).
		GET("/level", h.Level).
		GET("/movements", h.Movements).
		GET("/verify", h.Verify).
		POST("/reconcile", h.Reconcile)
}

// Receive godoc
// @ID           receiveStock
// @Summary      Receive stock at a cost
// @Description  Moves the weighted average cost; batch stock names an existing batch or registers one
// @Tags         stock
// @Accept       json
// @Produce      json
// @Param        request body inventoryapp.ReceiveRequest true "Receipt"
// @Success      200 {object} dto.Response{data=inventoryapp.OperationResponse}
// @Failure      400 {object} dto.Response
// @Failure      409 {object} dto.Response
// @Failure      422 {object} dto.Response
// @Router       /stock/receive [post]
func (h *StockHandler) Receive(c *gin.Context) {
	var req inventoryapp.ReceiveRequest
	if !h.bindJSON(c, &req) {
		return
	}
	h.respond(c)(h.ledger.Receive(c.Request.Context(), req))
}

// OpeningBalance godoc
// @ID           openStockBalance
// @Summary      Book the initial balance of an empty stock key
// @Tags         stock
// @Accept       json
// @Produce      json
// @Param        request body inventoryapp.ReceiveRequest true "Opening balance"
// @Success      200 {object} dto.Response{data=inventoryapp.OperationResponse}
// @Failure      422 {object} dto.Response
// @Router       /stock/opening-balance [post]
func (h *StockHandler) OpeningBalance(c *gin.Context) {
	var req inventoryapp.ReceiveRequest
	if !h.bindJSON(c, &req) {
		return
	}
	h.respond(c)(h.ledger.OpenBalance(c.Request.Context(), req))
}

// Issue godoc
// @ID           issueStock
// @Summary      Issue stock at the current average cost
// @Tags         stock
// @Accept       json
// @Produce      json
// @Param        request body inventoryapp.IssueRequest true "Issue"
// @Success      200 {object} dto.Response{data=inventoryapp.OperationResponse}
// @Failure      422 {object} dto.Response "INSUFFICIENT_STOCK"
// @Router       /stock/issue [post]
func (h *StockHandler) Issue(c *gin.Context) {
	var req inventoryapp.IssueRequest
	if !h.bindJSON(c, &req) {
		return
	}
	h.respond(c)(h.ledger.Issue(c.Request.Context(), req))
}

// Transfer godoc
// @ID           transferStock
// @Summary      Move stock between warehouses at the source average cost
// @Description  With in_transit the destination leg waits for /stock/transfers/{id}/complete
// @Tags         stock
// @Accept       json
// @Produce      json
// @Param        request body inventoryapp.TransferRequest true "Transfer"
// @Success      200 {object} dto.Response{data=inventoryapp.OperationResponse}
// @Failure      422 {object} dto.Response
// @Router       /stock/transfer [post]
func (h *StockHandler) Transfer(c *gin.Context) {
	var req inventoryapp.TransferRequest
	if !h.bindJSON(c, &req) {
		return
	}
	h.respond(c)(h.ledger.Transfer(c.Request.Context(), req))
}

// CompleteTransfer godoc
// @ID           completeStockTransfer
// @Summary      Receive a transfer in transit at its destination
// @Tags         stock
// @Accept       json
// @Produce      json
// @Param        id path string true "Issue movement ID" format(uuid)
// @Param        request body TransferDateRequest false "Date"
// @Success      200 {object} dto.Response{data=inventoryapp.OperationResponse}
// @Failure      422 {object} dto.Response
// @Router       /stock/transfers/{id}/complete [post]
func (h *StockHandler) CompleteTransfer(c *gin.Context) {
	id, ok := h.pathID(c)
	if !ok {
		return
	}
	var req TransferDateRequest
	if !h.bindOptionalJSON(c, &req) {
		return
	}
	h.respond(c)(h.ledger.CompleteTransfer(c.Request.Context(), id, req.Date))
}

// CancelTransfer godoc
// @ID           cancelStockTransfer
// @Summary      Return a transfer in transit to its source
// @Tags         stock
// @Accept       json
// @Produce      json
// @Param        id path string true "Issue movement ID" format(uuid)
// @Param        request body TransferDateRequest false "Date"
// @Success      200 {object} dto.Response{data=inventoryapp.OperationResponse}
// @Failure      422 {object} dto.Response
// @Router       /stock/transfers/{id}/cancel [post]
func (h *StockHandler) CancelTransfer(c *gin.Context) {
	id, ok := h.pathID(c)
	if !ok {
		return
	}
	var req TransferDateRequest
	if !h.bindOptionalJSON(c, &req) {
		return
	}
	h.respond(c)(h.ledger.CancelTransfer(c.Request.Context(), id, req.Date))
}

// Adjust godoc
// @ID           adjustStock
// @Summary      Book a count result or a signed delta
// @Tags         stock
// @Accept       json
// @Produce      json
// @Param        request body inventoryapp.AdjustRequest true "Adjustment"
// @Success      200 {object} dto.Response{data=inventoryapp.OperationResponse}
// @Failure      400 {object} dto.Response
// @Failure      422 {object} dto.Response
// @Router       /stock/adjust [post]
func (h *StockHandler) Adjust(c *gin.Context) {
	var req inventoryapp.AdjustRequest
	if !h.bindJSON(c, &req) {
		return
	}
	h.respond(c)(h.ledger.Adjust(c.Request.Context(), req))
}

// Block godoc
// @ID           blockStock
// @Summary      Hold available stock
// @Tags         stock
// @Accept       json
// @Produce      json
// @Param        request body inventoryapp.BlockRequest true "Hold"
// @Success      200 {object} dto.Response{data=inventoryapp.OperationResponse}
// @Failure      422 {object} dto.Response
// @Router       /stock/block [post]
func (h *StockHandler) Block(c *gin.Context) {
	var req inventoryapp.BlockRequest
	if !h.bindJSON(c, &req) {
		return
	}
	h.respond(c)(h.ledger.Block(c.Request.Context(), req))
}

// Release godoc
// @ID           releaseStockHold
// @Summary      Release a hold
// @Tags         stock
// @Produce      json
// @Param        id path string true "Hold ID" format(uuid)
// @Success      200 {object} dto.Response{data=inventoryapp.OperationResponse}
// @Failure      404 {object} dto.Response
// @Failure      422 {object} dto.Response
// @Router       /stock/holds/{id}/release [post]
func (h *StockHandler) Release(c *gin.Context) {
	id, ok := h.pathID(c)
	if !ok {
		return
	}
	h.respond(c)(h.ledger.Release(c.Request.Context(), id))
}

// ListLevels godoc
// @ID           listStockLevels
// @Summary      List stock levels
// @Tags         stock
// @Produce      json
// @Param        material_id query string false "Material ID" format(uuid)
// @Param        warehouse_id query string false "Warehouse ID" format(uuid)
// @Param        frozen_only query boolean false "Only levels frozen by drift"
// @Param        page query int false "Page" default(1)
// @Param        page_size query int false "Page size" default(20) maximum(100)
// @Success      200 {object} dto.Response{data=[]inventoryapp.StockLevelResponse}
// @Router       /stock/levels [get]
func (h *StockHandler) ListLevels(c *gin.Context) {
	var page dto.PageRequest
	if !h.bindQuery(c, &page) {
		return
	}
	page = page.Normalize()
	filter := inventoryapp.LevelListFilter{Page: page.Page, PageSize: page.PageSize}
	var ok bool
	if filter.MaterialID, ok = h.queryUUID(c, "material_id"); !ok {
		return
	}
	if filter.WarehouseID, ok = h.queryUUID(c, "warehouse_id"); !ok {
		return
	}
	filter.FrozenOnly, _ = strconv.ParseBool(c.Query("frozen_only"))

	levels, err := h.ledger.ListLevels(c.Request.Context(), filter)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, levels)
}

// Level godoc
// @ID           getStockLevel
// @Summary      Get the level of one stock key
// @Tags         stock
// @Produce      json
// @Param        material_id query string true "Material ID" format(uuid)
// @Param        warehouse_id query string true "Warehouse ID" format(uuid)
// @Param        batch_id query string false "Batch ID" format(uuid)
// @Success      200 {object} dto.Response{data=inventoryapp.StockLevelResponse}
// @Failure      404 {object} dto.Response
// @Router       /stock/level [get]
func (h *StockHandler) Level(c *gin.Context) {
	key, ok := h.stockKey(c)
	if !ok {
		return
	}
	level, err := h.ledger.Level(c.Request.Context(), key)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, level)
}

// Movements godoc
// @ID           listStockMovements
// @Summary      List the movements of one stock key, newest first
// @Tags         stock
// @Produce      json
// @Param        material_id query string true "Material ID" format(uuid)
// @Param        warehouse_id query string true "Warehouse ID" format(uuid)
// @Param        batch_id query string false "Batch ID" format(uuid)
// @Param        limit query int false "Maximum movements" default(100)
// @Success      200 {object} dto.Response{data=[]inventoryapp.MovementResponse}
// @Router       /stock/movements [get]
func (h *StockHandler) Movements(c *gin.Context) {
	key, ok := h.stockKey(c)
	if !ok {
		return
	}
	limit := 100
	if raw := c.Query("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 || n > 1000 {
			h.BadRequest(c, "limit must be between 1 and 1000")
			return
		}
		limit = n
	}
	movements, err := h.ledger.Movements(c.Request.Context(), key, limit)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, movements)
}

// Verify godoc
// @ID           verifyStockKey
// @Summary      Compare a level with the sum of its movements
// @Tags         stock
// @Produce      json
// @Param        material_id query string true "Material ID" format(uuid)
// @Param        warehouse_id query string true "Warehouse ID" format(uuid)
// @Param        batch_id query string false "Batch ID" format(uuid)
// @Success      200 {object} dto.Response{data=inventoryapp.VerifyResponse}
// @Router       /stock/verify [get]
func (h *StockHandler) Verify(c *gin.Context) {
	key, ok := h.stockKey(c)
	if !ok {
		return
	}
	report, err := h.ledger.Verify(c.Request.Context(), key)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, report)
}

// Reconcile godoc
// @ID           reconcileStockKey
// @Summary      Rebuild a frozen level from its movements and unfreeze it
// @Tags         stock
// @Accept       json
// @Produce      json
// @Param        request body inventoryapp.ReconcileRequest true "Reconciliation"
// @Success      200 {object} dto.Response{data=inventoryapp.StockLevelResponse}
// @Failure      422 {object} dto.Response
// @Router       /stock/reconcile [post]
func (h *StockHandler) Reconcile(c *gin.Context) {
	var req inventoryapp.ReconcileRequest
	if !h.bindJSON(c, &req) {
		return
	}
	level, err := h.ledger.Reconcile(c.Request.Context(), req)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, level)
}

// respond writes the result of a stock operation
func (h *StockHandler) respond(c *gin.Context) func(*inventoryapp.OperationResponse, error) {
	return func(resp *inventoryapp.OperationResponse, err error) {
		if err != nil {
			h.HandleError(c, err)
			return
		}
		h.Success(c, resp)
	}
}

// stockKey reads a stock key from the query string
func (h *StockHandler) stockKey(c *gin.Context) (inventoryapp.StockKeyInput, bool) {
	var key inventoryapp.StockKeyInput
	var ok bool
	if key.MaterialID, ok = h.requireQueryUUID(c, "material_id"); !ok {
		return key, false
	}
	if key.WarehouseID, ok = h.requireQueryUUID(c, "warehouse_id"); !ok {
		return key, false
	}
	if key.BatchID, ok = h.queryUUID(c, "batch_id"); !ok {
		return key, false
	}
	return key, true
}
