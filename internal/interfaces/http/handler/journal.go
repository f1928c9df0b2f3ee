package handler

import (
	journalapp "github.com/erp/posting/internal/application/journal"
	"github.com/erp/posting/internal/interfaces/http/router"
	"github.com/gin-gonic/gin"
)

// JournalHandler serves manual journal entries and clearings
type JournalHandler struct {
	BaseHandler
	engine *journalapp.JournalEngine
}

// NewJournalHandler creates a JournalHandler
func NewJournalHandler(engine *journalapp.JournalEngine) *JournalHandler {
	return &JournalHandler{engine: engine}
}

// Routes returns the journal routes
func (h *JournalHandler) Routes() *router.DomainGroup {
	g := router.NewDomainGroup("journal", "/journal")
	g.Group("journal-entries", "/entries").
		POST("", h.CreateEntry).
		GET("/:id", h.GetEntry).
		POST("/:id/post", h.PostEntry).
		POST("/:id/reverse", h.ReverseEntry)
	g.POST("/clearings", h.Clear).
		GET("/open-items", h.OpenItems)
	return g
}

// CreateEntry godoc
// @ID           createJournalEntry
// @Summary      Create a draft journal entry
// @Tags         journal
// @Accept       json
// @Produce      json
// @Param        request body journalapp.CreateEntryRequest true "Entry"
// @Success      201 {object} dto.Response{data=journalapp.EntryResponse}
// @Failure      400 {object} dto.Response
// @Failure      404 {object} dto.Response "ACCOUNT_NOT_FOUND"
// @Failure      422 {object} dto.Response "UNBALANCED_ENTRY or ACCOUNT_NOT_POSTABLE"
// @Router       /journal/entries [post]
func (h *JournalHandler) CreateEntry(c *gin.Context) {
	var req journalapp.CreateEntryRequest
	if !h.bindJSON(c, &req) {
		return
	}
	entry, err := h.engine.CreateEntry(c.Request.Context(), req)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Created(c, entry)
}

// GetEntry godoc
// @ID           getJournalEntry
// @Summary      Get a journal entry with its lines
// @Tags         journal
// @Produce      json
// @Param        id path string true "Entry ID" format(uuid)
// @Success      200 {object} dto.Response{data=journalapp.EntryResponse}
// @Failure      404 {object} dto.Response
// @Router       /journal/entries/{id} [get]
func (h *JournalHandler) GetEntry(c *gin.Context) {
	id, ok := h.pathID(c)
	if !ok {
		return
	}
	entry, err := h.engine.Entry(c.Request.Context(), id)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, entry)
}

// PostEntry godoc
// @ID           postJournalEntry
// @Summary      Post a draft entry
// @Tags         journal
// @Produce      json
// @Param        id path string true "Entry ID" format(uuid)
// @Success      200 {object} dto.Response{data=journalapp.EntryResponse}
// @Failure      422 {object} dto.Response
// @Router       /journal/entries/{id}/post [post]
func (h *JournalHandler) PostEntry(c *gin.Context) {
	id, ok := h.pathID(c)
	if !ok {
		return
	}
	entry, err := h.engine.Post(c.Request.Context(), id)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, entry)
}

// ReverseEntry godoc
// @ID           reverseJournalEntry
// @Summary      Reverse a posted entry with a mirrored entry
// @Tags         journal
// @Accept       json
// @Produce      json
// @Param        id path string true "Entry ID" format(uuid)
// @Param        request body journalapp.ReverseRequest false "Reason and date"
// @Success      200 {object} dto.Response{data=journalapp.EntryResponse}
// @Failure      422 {object} dto.Response
// @Router       /journal/entries/{id}/reverse [post]
func (h *JournalHandler) ReverseEntry(c *gin.Context) {
	id, ok := h.pathID(c)
	if !ok {
		return
	}
	var req journalapp.ReverseRequest
	if !h.bindOptionalJSON(c, &req) {
		return
	}
	entry, err := h.engine.Reverse(c.Request.Context(), id, req)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, entry)
}

// Clear godoc
// @ID           clearJournalLines
// @Summary      Clear open lines of one account and partner against each other
// @Tags         journal
// @Accept       json
// @Produce      json
// @Param        request body journalapp.ClearRequest true "Lines"
// @Success      201 {object} dto.Response{data=journalapp.ClearingResponse}
// @Failure      422 {object} dto.Response "CLEARING_MISMATCH"
// @Router       /journal/clearings [post]
func (h *JournalHandler) Clear(c *gin.Context) {
	var req journalapp.ClearRequest
	if !h.bindJSON(c, &req) {
		return
	}
	clearing, err := h.engine.Clear(c.Request.Context(), req)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Created(c, clearing)
}

// OpenItems godoc
// @ID           listOpenItems
// @Summary      List uncleared lines of an account and partner
// @Tags         journal
// @Produce      json
// @Param        account_id query string true "Account ID" format(uuid)
// @Param        partner_id query string true "Partner ID" format(uuid)
// @Success      200 {object} dto.Response{data=[]journalapp.LineResponse}
// @Router       /journal/open-items [get]
func (h *JournalHandler) OpenItems(c *gin.Context) {
	accountID, ok := h.requireQueryUUID(c, "account_id")
	if !ok {
		return
	}
	partnerID, ok := h.requireQueryUUID(c, "partner_id")
	if !ok {
		return
	}
	lines, err := h.engine.OpenItems(c.Request.Context(), accountID, partnerID)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, lines)
}
