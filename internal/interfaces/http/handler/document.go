package handler

import (
	postingapp "github.com/erp/posting/internal/application/posting"
	"github.com/erp/posting/internal/interfaces/http/dto"
	"github.com/erp/posting/internal/interfaces/http/router"
	"github.com/gin-gonic/gin"
)

// DocumentHandler serves business documents and their posting lifecycle
type DocumentHandler struct {
	BaseHandler
	orchestrator *postingapp.Orchestrator
}

// NewDocumentHandler creates a DocumentHandler
func NewDocumentHandler(orchestrator *postingapp.Orchestrator) *DocumentHandler {
	return &DocumentHandler{orchestrator: orchestrator}
}

// Routes returns the document routes
func (h *DocumentHandler) Routes() *router.DomainGroup {
	return router.NewDomainGroup("documents", "/documents").
		POST("", h.Create).
		GET("", h.List).
		GET("/:id", h.Get).
		DELETE("/:id", h.Delete).
		POST("/:id/post", h.Post).
		POST("/:id/cancel", h.Cancel).
		POST("/:id/payments", h.RegisterPayment)
}

// Create godoc
// @ID           createDocument
// @Summary      Create a draft business document
// @Tags         documents
// @Accept       json
// @Produce      json
// @Param        request body postingapp.CreateDocumentRequest true "Document"
// @Success      201 {object} dto.Response{data=postingapp.DocumentResponse}
// @Failure      400 {object} dto.Response
// @Router       /documents [post]
func (h *DocumentHandler) Create(c *gin.Context) {
	var req postingapp.CreateDocumentRequest
	if !h.bindJSON(c, &req) {
		return
	}
	doc, err := h.orchestrator.CreateDraft(c.Request.Context(), req)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Created(c, doc)
}

// List godoc
// @ID           listDocuments
// @Summary      List documents
// @Tags         documents
// @Produce      json
// @Param        type query string false "Document type"
// @Param        status query string false "Status" Enums(DRAFT, POSTED, CANCELLED, PAID)
// @Param        page query int false "Page" default(1)
// @Param        page_size query int false "Page size" default(20) maximum(100)
// @Param        sort_by query string false "Sort column" default(created_at)
// @Param        sort_order query string false "Sort direction" Enums(asc, desc)
// @Success      200 {object} dto.Response{data=[]postingapp.DocumentResponse}
// @Failure      400 {object} dto.Response
// @Router       /documents [get]
func (h *DocumentHandler) List(c *gin.Context) {
	var filter postingapp.DocumentListFilter
	if !h.bindQuery(c, &filter) {
		return
	}
	page := dto.PageRequest{Page: filter.Page, PageSize: filter.PageSize}.Normalize()
	filter.Page, filter.PageSize = page.Page, page.PageSize

	docs, total, err := h.orchestrator.List(c.Request.Context(), filter)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.SuccessWithMeta(c, docs, total, filter.Page, filter.PageSize)
}

// Get godoc
// @ID           getDocument
// @Summary      Get a document with its lines
// @Tags         documents
// @Produce      json
// @Param        id path string true "Document ID" format(uuid)
// @Success      200 {object} dto.Response{data=postingapp.DocumentResponse}
// @Failure      404 {object} dto.Response
// @Router       /documents/{id} [get]
func (h *DocumentHandler) Get(c *gin.Context) {
	id, ok := h.pathID(c)
	if !ok {
		return
	}
	doc, err := h.orchestrator.Document(c.Request.Context(), id)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, doc)
}

// Delete godoc
// @ID           deleteDocument
// @Summary      Delete a draft nothing was booked for
// @Tags         documents
// @Param        id path string true "Document ID" format(uuid)
// @Success      204
// @Failure      404 {object} dto.Response
// @Failure      422 {object} dto.Response
// @Router       /documents/{id} [delete]
func (h *DocumentHandler) Delete(c *gin.Context) {
	id, ok := h.pathID(c)
	if !ok {
		return
	}
	if err := h.orchestrator.Delete(c.Request.Context(), id); err != nil {
		h.HandleError(c, err)
		return
	}
	h.NoContent(c)
}

// Post godoc
// @ID           postDocument
// @Summary      Post a draft document
// @Description  Books stock, taxes and the journal entry atomically. Posting an already posted document returns its current state.
// @Tags         documents
// @Produce      json
// @Param        id path string true "Document ID" format(uuid)
// @Success      200 {object} dto.Response{data=postingapp.PostingResult}
// @Failure      409 {object} dto.Response "LOCK_TIMEOUT or CONCURRENCY_CONFLICT"
// @Failure      422 {object} dto.Response "INSUFFICIENT_STOCK, NO_TAX_RULE_FOUND, UNBALANCED_ENTRY"
// @Failure      500 {object} dto.Response "LEDGER_DRIFT"
// @Failure      504 {object} dto.Response "POSTING_TIMEOUT"
// @Router       /documents/{id}/post [post]
func (h *DocumentHandler) Post(c *gin.Context) {
	id, ok := h.pathID(c)
	if !ok {
		return
	}
	res, err := h.orchestrator.Post(c.Request.Context(), id)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, res)
}

// Cancel godoc
// @ID           cancelDocument
// @Summary      Cancel a posted document
// @Description  Compensates stock movements and reverses the journal entry
// @Tags         documents
// @Accept       json
// @Produce      json
// @Param        id path string true "Document ID" format(uuid)
// @Param        request body postingapp.CancelRequest true "Reason"
// @Success      200 {object} dto.Response{data=postingapp.PostingResult}
// @Failure      422 {object} dto.Response
// @Router       /documents/{id}/cancel [post]
func (h *DocumentHandler) Cancel(c *gin.Context) {
	id, ok := h.pathID(c)
	if !ok {
		return
	}
	var req postingapp.CancelRequest
	if !h.bindJSON(c, &req) {
		return
	}
	res, err := h.orchestrator.Cancel(c.Request.Context(), id, req)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, res)
}

// RegisterPayment godoc
// @ID           registerDocumentPayment
// @Summary      Settle a posted invoice and clear it against the payment
// @Tags         documents
// @Accept       json
// @Produce      json
// @Param        id path string true "Document ID" format(uuid)
// @Param        request body postingapp.PaymentRequest false "Payment"
// @Success      200 {object} dto.Response{data=postingapp.PostingResult}
// @Failure      422 {object} dto.Response
// @Router       /documents/{id}/payments [post]
func (h *DocumentHandler) RegisterPayment(c *gin.Context) {
	id, ok := h.pathID(c)
	if !ok {
		return
	}
	var req postingapp.PaymentRequest
	if !h.bindOptionalJSON(c, &req) {
		return
	}
	res, err := h.orchestrator.RegisterPayment(c.Request.Context(), id, req)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, res)
}
