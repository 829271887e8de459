package api

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"fleetops-backend/internal/model"
	"fleetops-backend/internal/mw"
	"fleetops-backend/internal/workflow"
)

type createTransferRequest struct {
	MachineType  string     `json:"machine_type" binding:"required"`
	Purpose      string     `json:"purpose"`
	DurationDays *int       `json:"duration_days"`
	RequiredBy   *time.Time `json:"required_by"`
	Notes        string     `json:"notes"`
}

// CreateTransfer handles POST /api/transfers.
func (h *Handler) CreateTransfer(c *gin.Context) {
	actor := mw.CurrentUser(c)
	if actor == nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "No identity supplied"})
		return
	}

	var req createTransferRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	created, err := h.executor.Create(c.Request.Context(), actor, workflow.CreateInput{
		MachineType:  req.MachineType,
		Purpose:      req.Purpose,
		DurationDays: req.DurationDays,
		RequiredBy:   req.RequiredBy,
		Notes:        req.Notes,
	})
	if err != nil {
		writeWorkflowError(c, err)
		return
	}
	c.JSON(http.StatusCreated, created)
}

// ListTransfers handles GET /api/transfers.
func (h *Handler) ListTransfers(c *gin.Context) {
	requests, err := h.store.ListTransferRequests(c.Request.Context())
	if err != nil {
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "Failed to retrieve transfer requests"})
		return
	}
	c.JSON(http.StatusOK, requests)
}

// GetTransfer handles GET /api/transfers/{transfer_id}, including the
// ordered history timeline.
func (h *Handler) GetTransfer(c *gin.Context) {
	id, ok := transferID(c)
	if !ok {
		return
	}

	request, err := h.store.GetTransferRequest(c.Request.Context(), id)
	if err != nil {
		writeWorkflowError(c, err)
		return
	}
	c.JSON(http.StatusOK, request)
}

// GetTransferActions handles GET /api/transfers/{transfer_id}/actions: the
// action, if any, the current actor may perform.
func (h *Handler) GetTransferActions(c *gin.Context) {
	id, ok := transferID(c)
	if !ok {
		return
	}

	request, err := h.store.GetTransferRequest(c.Request.Context(), id)
	if err != nil {
		writeWorkflowError(c, err)
		return
	}

	actions := []workflow.Action{}
	if actor := mw.CurrentUser(c); actor != nil {
		if action, available := workflow.AvailableAction(actor, request); available {
			actions = append(actions, action)
		}
	}
	c.JSON(http.StatusOK, gin.H{
		"status":       request.Status,
		"status_label": request.Status.Label(),
		"actions":      actions,
	})
}

// GetCandidateMachines handles GET /api/transfers/{transfer_id}/candidate-machines.
func (h *Handler) GetCandidateMachines(c *gin.Context) {
	id, ok := transferID(c)
	if !ok {
		return
	}

	machines, err := h.executor.CandidateMachines(c.Request.Context(), id)
	if err != nil {
		writeWorkflowError(c, err)
		return
	}
	c.JSON(http.StatusOK, machines)
}

type reviewRequest struct {
	Approve bool   `json:"approve"`
	Notes   string `json:"notes"`
}

// PMApproval handles POST /api/transfers/{transfer_id}/pm-approval.
func (h *Handler) PMApproval(c *gin.Context) {
	h.review(c, func(actor *model.User, id int64, req reviewRequest) (*model.TransferRequest, error) {
		if req.Approve {
			return h.executor.ApprovePM(c.Request.Context(), actor, id, req.Notes)
		}
		return h.executor.RejectPM(c.Request.Context(), actor, id, req.Notes)
	})
}

type assignSourceRequest struct {
	SourceSiteID int64 `json:"source_site_id" binding:"required"`
}

// AssignSourceSite handles POST /api/transfers/{transfer_id}/source-site.
func (h *Handler) AssignSourceSite(c *gin.Context) {
	actor := mw.CurrentUser(c)
	if actor == nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "No identity supplied"})
		return
	}
	id, ok := transferID(c)
	if !ok {
		return
	}

	var req assignSourceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	updated, err := h.executor.AssignSourceSite(c.Request.Context(), actor, id, req.SourceSiteID)
	if err != nil {
		writeWorkflowError(c, err)
		return
	}
	c.JSON(http.StatusOK, updated)
}

type sourceReviewRequest struct {
	Approve   bool   `json:"approve"`
	MachineID *int64 `json:"machine_id"`
	Notes     string `json:"notes"`
}

// SourceApproval handles POST /api/transfers/{transfer_id}/source-approval.
func (h *Handler) SourceApproval(c *gin.Context) {
	actor := mw.CurrentUser(c)
	if actor == nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "No identity supplied"})
		return
	}
	id, ok := transferID(c)
	if !ok {
		return
	}

	var req sourceReviewRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	var (
		updated *model.TransferRequest
		err     error
	)
	if req.Approve {
		updated, err = h.executor.ApproveSourcePM(c.Request.Context(), actor, id, req.MachineID, req.Notes)
	} else {
		updated, err = h.executor.RejectSourcePM(c.Request.Context(), actor, id, req.Notes)
	}
	if err != nil {
		writeWorkflowError(c, err)
		return
	}
	c.JSON(http.StatusOK, updated)
}

type notesRequest struct {
	Notes string `json:"notes"`
}

// MarkInTransit handles POST /api/transfers/{transfer_id}/transit.
func (h *Handler) MarkInTransit(c *gin.Context) {
	h.notesOnly(c, h.executor.MarkInTransit)
}

// ConfirmReceipt handles POST /api/transfers/{transfer_id}/receipt.
func (h *Handler) ConfirmReceipt(c *gin.Context) {
	h.notesOnly(c, h.executor.ConfirmReceipt)
}

// --- shared plumbing ---

func transferID(c *gin.Context) (int64, bool) {
	id, err := strconv.ParseInt(c.Param("transfer_id"), 10, 64)
	if err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "Invalid transfer ID"})
		return 0, false
	}
	return id, true
}

func (h *Handler) review(c *gin.Context, do func(actor *model.User, id int64, req reviewRequest) (*model.TransferRequest, error)) {
	actor := mw.CurrentUser(c)
	if actor == nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "No identity supplied"})
		return
	}
	id, ok := transferID(c)
	if !ok {
		return
	}

	var req reviewRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	updated, err := do(actor, id, req)
	if err != nil {
		writeWorkflowError(c, err)
		return
	}
	c.JSON(http.StatusOK, updated)
}

func (h *Handler) notesOnly(c *gin.Context, do func(ctx context.Context, actor *model.User, id int64, notes string) (*model.TransferRequest, error)) {
	actor := mw.CurrentUser(c)
	if actor == nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "No identity supplied"})
		return
	}
	id, ok := transferID(c)
	if !ok {
		return
	}

	var req notesRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	updated, err := do(c.Request.Context(), actor, id, req.Notes)
	if err != nil {
		writeWorkflowError(c, err)
		return
	}
	c.JSON(http.StatusOK, updated)
}

// writeWorkflowError maps executor errors onto HTTP statuses: validation
// failures are 400, policy denials 403, missing requests 404, stale
// preconditions 409, anything else 500.
func writeWorkflowError(c *gin.Context, err error) {
	var precondition *workflow.PreconditionFailedError
	var validation *workflow.ValidationError
	switch {
	case errors.Is(err, workflow.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "Transfer request not found"})
	case errors.Is(err, workflow.ErrActorNotAllowed):
		c.JSON(http.StatusForbidden, gin.H{"error": "Action not available to this user"})
	case errors.As(err, &precondition):
		c.JSON(http.StatusConflict, gin.H{
			"error":    "Transfer request status changed; refresh and try again",
			"expected": precondition.Expected,
			"actual":   precondition.Actual,
		})
	case errors.As(err, &validation):
		c.JSON(http.StatusBadRequest, gin.H{"error": validation.Reason})
	default:
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
	}
}
