package api

import (
	"net/http"

	"inventory-ledger/internal/service"

	"github.com/gin-gonic/gin"
)

type createWarehouseRequest struct {
	Name string `json:"name"`
}

type restockRequest struct {
	Quantity int `json:"quantity"`
}

func (h *Handler) createWarehouse(c *gin.Context) {
	var req createWarehouseRequest
	if !bindJSON(c, &req) {
		return
	}

	w, err := h.catalogService.CreateWarehouse(c.Request.Context(), principal(c), req.Name)
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, w)
}

func (h *Handler) createProduct(c *gin.Context) {
	var req service.CreateProductRequest
	if !bindJSON(c, &req) {
		return
	}

	p, err := h.catalogService.CreateProduct(c.Request.Context(), principal(c), &req)
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, p)
}

func (h *Handler) listProducts(c *gin.Context) {
	products, err := h.catalogService.ListProducts(c.Request.Context(), principal(c))
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"products": products})
}

func (h *Handler) getProduct(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}

	p, err := h.catalogService.GetProduct(c.Request.Context(), principal(c), id)
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, p)
}

func (h *Handler) restockProduct(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	var req restockRequest
	if !bindJSON(c, &req) {
		return
	}

	p, err := h.catalogService.Restock(c.Request.Context(), principal(c), id, req.Quantity)
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, p)
}

func (h *Handler) archiveProduct(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}

	p, err := h.catalogService.Archive(c.Request.Context(), principal(c), id)
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, p)
}
