package rest

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/vladislavdragonenkov/salescore/internal/service/catalog"
)

// bind декодирует JSON-тело; при ошибке сам отвечает 400.
func bind[T any](c *gin.Context) (T, bool) {
	var in T
	if err := c.ShouldBindJSON(&in); err != nil {
		badRequest(c, "body", err.Error())
		return in, false
	}
	return in, true
}

func (h *Handler) createCustomer(c *gin.Context) {
	in, ok := bind[catalog.CustomerInput](c)
	if !ok {
		return
	}
	customer, err := h.catalog.CreateCustomer(c.Request.Context(), in)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, toCustomerResponse(customer))
}

func (h *Handler) getCustomer(c *gin.Context) {
	customer, err := h.catalog.GetCustomer(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, toCustomerResponse(customer))
}

func (h *Handler) createCategory(c *gin.Context) {
	in, ok := bind[catalog.CategoryInput](c)
	if !ok {
		return
	}
	category, err := h.catalog.CreateCategory(c.Request.Context(), in)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"id": category.ID, "name": category.Name, "created_at": category.CreatedAt})
}

func (h *Handler) createSupplier(c *gin.Context) {
	in, ok := bind[catalog.SupplierInput](c)
	if !ok {
		return
	}
	supplier, err := h.catalog.CreateSupplier(c.Request.Context(), in)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{
		"id":         supplier.ID,
		"name":       supplier.Name,
		"contact":    supplier.Contact,
		"created_at": supplier.CreatedAt,
	})
}

func (h *Handler) createProduct(c *gin.Context) {
	in, ok := bind[catalog.ProductInput](c)
	if !ok {
		return
	}
	product, err := h.catalog.CreateProduct(c.Request.Context(), in)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, toProductResponse(product))
}

func (h *Handler) getProduct(c *gin.Context) {
	product, err := h.catalog.GetProduct(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, toProductResponse(product))
}

func (h *Handler) createPromotion(c *gin.Context) {
	in, ok := bind[catalog.PromotionInput](c)
	if !ok {
		return
	}
	promotion, err := h.catalog.CreatePromotion(c.Request.Context(), in)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, toPromotionResponse(promotion))
}

func (h *Handler) createPurchaseOrder(c *gin.Context) {
	in, ok := bind[catalog.PurchaseOrderInput](c)
	if !ok {
		return
	}
	order, err := h.catalog.CreatePurchaseOrder(c.Request.Context(), in)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, toPurchaseOrderResponse(order))
}

func (h *Handler) createReturn(c *gin.Context) {
	in, ok := bind[catalog.ReturnInput](c)
	if !ok {
		return
	}
	ret, err := h.catalog.CreateReturn(c.Request.Context(), in)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, toReturnResponse(ret))
}

func (h *Handler) getReturn(c *gin.Context) {
	ret, err := h.catalog.GetReturn(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, toReturnResponse(ret))
}

func (h *Handler) cancelReturn(c *gin.Context) {
	ret, err := h.catalog.CancelReturn(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, toReturnResponse(ret))
}
