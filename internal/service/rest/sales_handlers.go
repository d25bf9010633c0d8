package rest

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/vladislavdragonenkov/salescore/internal/service/sales"
)

const maxCustomerSalesLimit = 500

type cancelSaleRequest struct {
	Reason string `json:"reason"`
}

func (h *Handler) createSale(c *gin.Context) {
	var req sales.CreateSaleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "body", err.Error())
		return
	}
	result, err := h.sales.CreateSale(c.Request.Context(), req)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.Set(createdSaleKey, result.Sale.ID)
	c.Header("Location", salePath(result.Sale.ID))
	c.JSON(http.StatusCreated, fromSaleResult(result))
}

func salePath(id string) string {
	return "/api/v1/sales/" + id
}

func (h *Handler) getSale(c *gin.Context) {
	result, err := h.sales.GetSale(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, fromSaleResult(result))
}

func (h *Handler) updateSale(c *gin.Context) {
	var req sales.UpdateSaleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "body", err.Error())
		return
	}
	result, err := h.sales.UpdateSale(c.Request.Context(), c.Param("id"), req)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, fromSaleResult(result))
}

func (h *Handler) completeSale(c *gin.Context) {
	result, err := h.sales.CompleteSale(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, fromSaleResult(result))
}

func (h *Handler) cancelSale(c *gin.Context) {
	var req cancelSaleRequest
	// Тело необязательно: пустой запрос означает отмену без причины.
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			badRequest(c, "body", err.Error())
			return
		}
	}
	result, err := h.sales.CancelSale(c.Request.Context(), c.Param("id"), req.Reason)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, fromSaleResult(result))
}

func (h *Handler) listCustomerSales(c *gin.Context) {
	limit := 0
	if raw := c.Query("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 || n > maxCustomerSalesLimit {
			badRequest(c, "limit", "must be an integer between 0 and "+strconv.Itoa(maxCustomerSalesLimit))
			return
		}
		limit = n
	}
	list, err := h.sales.ListCustomerSales(c.Request.Context(), c.Param("id"), limit)
	if err != nil {
		h.fail(c, err)
		return
	}
	items := make([]saleResponse, 0, len(list))
	for _, sale := range list {
		items = append(items, toSaleResponse(sale, nil))
	}
	c.JSON(http.StatusOK, gin.H{"customer_id": c.Param("id"), "sales": items})
}
