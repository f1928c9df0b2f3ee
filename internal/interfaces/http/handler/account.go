package handler

import (
	accountapp "github.com/erp/posting/internal/application/account"
	"github.com/erp/posting/internal/interfaces/http/router"
	"github.com/gin-gonic/gin"
)

// AccountHandler serves the chart of accounts
type AccountHandler struct {
	BaseHandler
	chart *accountapp.ChartService
}

// NewAccountHandler creates an AccountHandler
func NewAccountHandler(chart *accountapp.ChartService) *AccountHandler {
	return &AccountHandler{chart: chart}
}

// Routes returns the account routes
func (h *AccountHandler) Routes() *router.DomainGroup {
	return router.NewDomainGroup("accounts", "/accounts").
		GET("", h.List).
		POST("", h.Create).
		GET("/:id", h.Get).
		POST("/:id/deactivate", h.Deactivate)
}

// List godoc
// @ID           listAccounts
// @Summary      List the chart of accounts
// @Tags         accounts
// @Produce      json
// @Success      200 {object} dto.Response{data=[]accountapp.AccountResponse}
// @Router       /accounts [get]
func (h *AccountHandler) List(c *gin.Context) {
	accounts, err := h.chart.ListAccounts(c.Request.Context())
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, accounts)
}

// Create godoc
// @ID           createAccount
// @Summary      Add an account under a parent
// @Tags         accounts
// @Accept       json
// @Produce      json
// @Param        request body accountapp.CreateAccountRequest true "Account"
// @Success      201 {object} dto.Response{data=accountapp.AccountResponse}
// @Failure      400 {object} dto.Response
// @Failure      404 {object} dto.Response
// @Failure      409 {object} dto.Response
// @Router       /accounts [post]
func (h *AccountHandler) Create(c *gin.Context) {
	var req accountapp.CreateAccountRequest
	if !h.bindJSON(c, &req) {
		return
	}
	account, err := h.chart.AddAccount(c.Request.Context(), req)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Created(c, account)
}

// Get godoc
// @ID           getAccount
// @Summary      Get an account
// @Tags         accounts
// @Produce      json
// @Param        id path string true "Account ID" format(uuid)
// @Success      200 {object} dto.Response{data=accountapp.AccountResponse}
// @Failure      404 {object} dto.Response
// @Router       /accounts/{id} [get]
func (h *AccountHandler) Get(c *gin.Context) {
	id, ok := h.pathID(c)
	if !ok {
		return
	}
	account, err := h.chart.GetAccount(c.Request.Context(), id)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, account)
}

// Deactivate godoc
// @ID           deactivateAccount
// @Summary      Deactivate a leaf account
// @Tags         accounts
// @Produce      json
// @Param        id path string true "Account ID" format(uuid)
// @Success      200 {object} dto.Response{data=accountapp.AccountResponse}
// @Failure      404 {object} dto.Response
// @Failure      422 {object} dto.Response
// @Router       /accounts/{id}/deactivate [post]
func (h *AccountHandler) Deactivate(c *gin.Context) {
	id, ok := h.pathID(c)
	if !ok {
		return
	}
	account, err := h.chart.DeactivateAccount(c.Request.Context(), id)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, account)
}
