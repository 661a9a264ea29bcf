package api

import (
	"net/http"

	"inventory-ledger/internal/models"
	"inventory-ledger/internal/service"

	"github.com/gin-gonic/gin"
)

type commentRequest struct {
	Body string `json:"body"`
}

// cartResponse pairs a cart with its computed totals
type cartResponse struct {
	Cart   *models.Cart   `json:"cart"`
	Totals service.Totals `json:"totals"`
}

func newCartResponse(cart *models.Cart) cartResponse {
	return cartResponse{Cart: cart, Totals: service.CalculateTotals(cart)}
}

func (h *Handler) createCart(c *gin.Context) {
	cart, err := h.cartService.CreateCart(c.Request.Context(), principal(c))
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, newCartResponse(cart))
}

func (h *Handler) listCarts(c *gin.Context) {
	carts, err := h.cartService.ListCarts(c.Request.Context(), principal(c))
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"carts": carts})
}

func (h *Handler) getCart(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}

	cart, err := h.cartService.GetCart(c.Request.Context(), principal(c), id)
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, newCartResponse(cart))
}

func (h *Handler) cancelCart(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}

	if err := h.cartService.CancelCart(c.Request.Context(), principal(c), id); err != nil {
		h.writeError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *Handler) addCartItem(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	var req service.AddItemRequest
	if !bindJSON(c, &req) {
		return
	}

	cart, err := h.cartService.AddItem(c.Request.Context(), principal(c), id, &req)
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, newCartResponse(cart))
}

func (h *Handler) removeCartItem(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	itemID, ok := pathID(c, "itemID")
	if !ok {
		return
	}

	cart, err := h.cartService.RemoveItem(c.Request.Context(), principal(c), id, itemID)
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, newCartResponse(cart))
}

func (h *Handler) addCartComment(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	var req commentRequest
	if !bindJSON(c, &req) {
		return
	}

	comment, err := h.cartService.AddComment(c.Request.Context(), principal(c), id, req.Body)
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, comment)
}

// commitCart turns the cart into a sale; low_stock lists products that fell
// under the threshold.
func (h *Handler) commitCart(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}

	result, err := h.ledgerService.Commit(c.Request.Context(), principal(c), id)
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, result)
}
