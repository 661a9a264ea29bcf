package api

import (
	"net/http"
	"strconv"

	"inventory-ledger/internal/models"
	"inventory-ledger/internal/store"

	"github.com/gin-gonic/gin"
)

type returnRequest struct {
	Quantity int `json:"quantity"`
}

// queryInt reads an optional integer query parameter; malformed values fall
// back to zero so the service default applies.
func queryInt(c *gin.Context, name string) int {
	n, err := strconv.Atoi(c.Query(name))
	if err != nil {
		return 0
	}
	return n
}

func (h *Handler) listSales(c *gin.Context) {
	sales, err := h.ledgerService.ListSales(c.Request.Context(), principal(c), queryInt(c, "limit"))
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"sales": sales})
}

func (h *Handler) getSale(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}

	sale, err := h.ledgerService.GetSale(c.Request.Context(), principal(c), id)
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, sale)
}

func (h *Handler) returnItem(c *gin.Context) {
	saleID, ok := pathID(c, "id")
	if !ok {
		return
	}
	itemID, ok := pathID(c, "itemID")
	if !ok {
		return
	}
	var req returnRequest
	if !bindJSON(c, &req) {
		return
	}

	ret, err := h.ledgerService.ReturnItem(c.Request.Context(), principal(c), saleID, itemID, req.Quantity)
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, ret)
}

func (h *Handler) listReturns(c *gin.Context) {
	saleID, ok := pathID(c, "id")
	if !ok {
		return
	}

	returns, err := h.ledgerService.ListReturns(c.Request.Context(), principal(c), saleID)
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"returns": returns})
}

func (h *Handler) addSaleComment(c *gin.Context) {
	saleID, ok := pathID(c, "id")
	if !ok {
		return
	}
	var req commentRequest
	if !bindJSON(c, &req) {
		return
	}

	comment, err := h.ledgerService.AddSaleComment(c.Request.Context(), principal(c), saleID, req.Body)
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, comment)
}

// drainNotices hands back pending low-stock notices; each is returned once
func (h *Handler) drainNotices(c *gin.Context) {
	if h.notices == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{
			"error": "Notice box not configured",
		})
		return
	}

	notices, err := h.notices.DrainNotices(c.Request.Context(), principal(c))
	if err != nil {
		h.writeError(c, err)
		return
	}
	if notices == nil {
		notices = []models.LowStockNotice{}
	}
	c.JSON(http.StatusOK, gin.H{"notices": notices})
}

// listLogs shows the caller's own audit trail, newest first
func (h *Handler) listLogs(c *gin.Context) {
	owner := principal(c)
	filter := store.LogFilter{
		ActionType:  c.Query("action"),
		PrincipalID: &owner,
		Limit:       queryInt(c, "limit"),
	}

	entries, err := h.auditService.ListLogEntries(c.Request.Context(), filter)
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"logs": entries})
}
