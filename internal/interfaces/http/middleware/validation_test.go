package middleware

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/erp/posting/internal/interfaces/http/dto"
	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type issueBody struct {
	Reference string          `json:"reference" binding:"required,max=5"`
	Quantity  decimal.Decimal `json:"quantity" binding:"gt=0"`
	UnitCost  decimal.Decimal `json:"unit_cost" binding:"gte=0"`
}

func bindRouter() *gin.Engine {
	SetupValidator()
	r := gin.New()
	r.POST("/x", func(c *gin.Context) {
		var body issueBody
		if err := c.ShouldBindJSON(&body); err != nil {
			HandleValidationError(c, err)
			return
		}
		c.Status(http.StatusOK)
	})
	return r
}

func post(r *gin.Engine, body string) (*httptest.ResponseRecorder, dto.Response) {
	req := httptest.NewRequest(http.MethodPost, "/x", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	var resp dto.Response
	_ = json.Unmarshal(w.Body.Bytes(), &resp)
	return w, resp
}

func TestValidation_FieldErrorsUseJSONNames(t *testing.T) {
	w, resp := post(bindRouter(), `{"reference":"TOO-LONG","quantity":"0","unit_cost":"-1"}`)

	require.Equal(t, http.StatusBadRequest, w.Code)
	require.NotNil(t, resp.Error)
	assert.Equal(t, dto.ErrCodeValidation, resp.Error.Code)

	fields := map[string]string{}
	for _, d := range resp.Error.Details {
		fields[d.Field] = d.Message
	}
	assert.Equal(t, "Must be at most 5 characters", fields["reference"])
	assert.Equal(t, "Must be greater than 0", fields["quantity"])
	assert.Equal(t, "Must be greater than or equal to 0", fields["unit_cost"])
}

func TestValidation_Valid(t *testing.T) {
	w, _ := post(bindRouter(), `{"reference":"PO-1","quantity":"2.5","unit_cost":"0"}`)
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestValidation_MalformedJSON(t *testing.T) {
	w, resp := post(bindRouter(), `{"reference":`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, dto.ErrCodeBadRequest, resp.Error.Code)
}
