package handler

import (
	taxapp "github.com/erp/posting/internal/application/tax"
	"github.com/erp/posting/internal/interfaces/http/router"
	"github.com/gin-gonic/gin"
)

// TaxHandler serves tax rules, resolution and computation
type TaxHandler struct {
	BaseHandler
	taxes *taxapp.TaxService
}

// NewTaxHandler creates a TaxHandler
func NewTaxHandler(taxes *taxapp.TaxService) *TaxHandler {
	return &TaxHandler{taxes: taxes}
}

// Routes returns the tax routes
func (h *TaxHandler) Routes() *router.DomainGroup {
	g := router.NewDomainGroup("tax", "/tax").
		POST("/resolve", h.Resolve).
		POST("/apply", h.Apply)
	g.Group("tax-rules", "/rules").
		GET("", h.ListRules).
		POST("", h.CreateRule).
		POST("/:id/deactivate", h.DeactivateRule)
	return g
}

// ListRules godoc
// @ID           listTaxRules
// @Summary      List tax rules
// @Tags         tax
// @Produce      json
// @Success      200 {object} dto.Response{data=[]taxapp.RuleResponse}
// @Router       /tax/rules [get]
func (h *TaxHandler) ListRules(c *gin.Context) {
	rules, err := h.taxes.ListRules(c.Request.Context())
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, rules)
}

// CreateRule godoc
// @ID           createTaxRule
// @Summary      Create a tax rule
// @Description  The resolver snapshot is refreshed so the rule applies to the next posting
// @Tags         tax
// @Accept       json
// @Produce      json
// @Param        request body taxapp.CreateRuleRequest true "Rule"
// @Success      201 {object} dto.Response{data=taxapp.RuleResponse}
// @Failure      400 {object} dto.Response
// @Router       /tax/rules [post]
func (h *TaxHandler) CreateRule(c *gin.Context) {
	var req taxapp.CreateRuleRequest
	if !h.bindJSON(c, &req) {
		return
	}
	rule, err := h.taxes.CreateRule(c.Request.Context(), req)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Created(c, rule)
}

// DeactivateRule godoc
// @ID           deactivateTaxRule
// @Summary      Deactivate a tax rule
// @Tags         tax
// @Produce      json
// @Param        id path string true "Rule ID" format(uuid)
// @Success      200 {object} dto.Response{data=taxapp.RuleResponse}
// @Failure      404 {object} dto.Response
// @Router       /tax/rules/{id}/deactivate [post]
func (h *TaxHandler) DeactivateRule(c *gin.Context) {
	id, ok := h.pathID(c)
	if !ok {
		return
	}
	rule, err := h.taxes.DeactivateRule(c.Request.Context(), id)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, rule)
}

// Resolve godoc
// @ID           resolveTax
// @Summary      Resolve the tax rule of an operation
// @Tags         tax
// @Accept       json
// @Produce      json
// @Param        request body taxapp.ResolveRequest true "Operation"
// @Success      200 {object} dto.Response{data=taxapp.TaxRuleResponse}
// @Failure      422 {object} dto.Response "NO_TAX_RULE_FOUND or AMBIGUOUS_TAX_RULE"
// @Router       /tax/resolve [post]
func (h *TaxHandler) Resolve(c *gin.Context) {
	var req taxapp.ResolveRequest
	if !h.bindJSON(c, &req) {
		return
	}
	res, err := h.taxes.ResolveRequest(c.Request.Context(), req)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, res)
}

// Apply godoc
// @ID           applyTax
// @Summary      Compute ICMS, IPI, PIS and COFINS on a base
// @Tags         tax
// @Accept       json
// @Produce      json
// @Param        request body taxapp.ApplyRequest true "Base and resolved rule"
// @Success      200 {object} dto.Response{data=taxapp.TaxAmountsResponse}
// @Failure      400 {object} dto.Response
// @Router       /tax/apply [post]
func (h *TaxHandler) Apply(c *gin.Context) {
	var req taxapp.ApplyRequest
	if !h.bindJSON(c, &req) {
		return
	}
	if req.Base.IsNegative() {
		h.BadRequest(c, "base must not be negative")
		return
	}
	h.Success(c, taxapp.ToTaxAmountsResponse(h.taxes.Apply(req.Base, req.Result.Result())))
}
