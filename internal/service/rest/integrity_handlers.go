package rest

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/vladislavdragonenkov/salescore/internal/domain"
	"github.com/vladislavdragonenkov/salescore/internal/service/integrity"
)

func (h *Handler) deleteEntity(entity domain.EntityType) gin.HandlerFunc {
	return func(c *gin.Context) {
		force := false
		if raw := c.Query("force"); raw != "" {
			parsed, err := strconv.ParseBool(raw)
			if err != nil {
				badRequest(c, "force", "must be a boolean")
				return
			}
			force = parsed
		}

		result, err := h.guard.Delete(c.Request.Context(), integrity.DeleteRequest{
			EntityType: entity,
			EntityID:   c.Param("id"),
			Force:      force,
		})
		if err != nil {
			h.fail(c, err)
			return
		}
		c.JSON(http.StatusOK, result)
	}
}

func (h *Handler) deactivateProduct(c *gin.Context) {
	product, err := h.catalog.DeactivateProduct(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, toProductResponse(product))
}
