package api

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"fleetops-backend/internal/model"
	"fleetops-backend/internal/mw"
	"fleetops-backend/internal/store"
)

// ListQuotations handles GET /api/quotations. An optional "reference"
// query narrows to one comparison.
func (h *Handler) ListQuotations(c *gin.Context) {
	quotations, err := h.store.ListQuotations(c.Request.Context(), c.Query("reference"))
	if err != nil {
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "Failed to retrieve quotations"})
		return
	}
	c.JSON(http.StatusOK, quotations)
}

type createQuotationRequest struct {
	Reference string  `json:"reference" binding:"required"`
	Vendor    string  `json:"vendor" binding:"required"`
	Item      string  `json:"item" binding:"required"`
	Amount    float64 `json:"amount" binding:"required"`
}

// CreateQuotation handles POST /api/quotations.
func (h *Handler) CreateQuotation(c *gin.Context) {
	var req createQuotationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	q := model.Quotation{
		Reference: req.Reference,
		Vendor:    req.Vendor,
		Item:      req.Item,
		Amount:    req.Amount,
		Status:    model.QuotationDraft,
	}
	if err := h.store.CreateQuotation(c.Request.Context(), &q); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusCreated, q)
}

// ApproveQuotation handles POST /api/quotations/{quotation_id}/approve:
// draft to approved.
func (h *Handler) ApproveQuotation(c *gin.Context) {
	h.advanceQuotation(c, model.QuotationDraft, model.QuotationApproved)
}

// LockQuotation handles POST /api/quotations/{quotation_id}/lock: approved
// to locked, freezing the comparison.
func (h *Handler) LockQuotation(c *gin.Context) {
	h.advanceQuotation(c, model.QuotationApproved, model.QuotationLocked)
}

func (h *Handler) advanceQuotation(c *gin.Context, expected, next string) {
	actor := mw.CurrentUser(c)
	if actor == nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "No identity supplied"})
		return
	}

	id, err := strconv.ParseInt(c.Param("quotation_id"), 10, 64)
	if err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "Invalid quotation ID"})
		return
	}

	q, err := h.store.UpdateQuotationStatus(c.Request.Context(), id, expected, next, actor.ID)
	if err != nil {
		if errors.Is(err, store.ErrQuotationStale) {
			c.JSON(http.StatusConflict, gin.H{"error": "Quotation is not in the required status"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, q)
}
