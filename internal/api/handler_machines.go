package api

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"fleetops-backend/internal/model"
	"fleetops-backend/internal/mw"
)

// ListMachines handles GET /api/machines. An optional "type" query narrows
// to one machine type.
func (h *Handler) ListMachines(c *gin.Context) {
	q := h.store.DB().WithContext(c.Request.Context()).Order("asset_code")
	if machineType := c.Query("type"); machineType != "" {
		q = q.Where("machine_type = ?", machineType)
	}
	var machines []model.Machine
	if err := q.Find(&machines).Error; err != nil {
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "Failed to retrieve machines"})
		return
	}
	c.JSON(http.StatusOK, machines)
}

// GetMachine handles GET /api/machines/{machine_id}.
func (h *Handler) GetMachine(c *gin.Context) {
	id, err := strconv.ParseInt(c.Param("machine_id"), 10, 64)
	if err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "Invalid machine ID"})
		return
	}

	machine, err := h.store.GetMachine(c.Request.Context(), id)
	if err != nil {
		c.AbortWithStatusJSON(http.StatusNotFound, gin.H{"error": "Machine not found"})
		return
	}
	c.JSON(http.StatusOK, machine)
}

type createMachineRequest struct {
	SiteID       int64   `json:"site_id" binding:"required"`
	Name         string  `json:"name" binding:"required"`
	MachineType  string  `json:"machine_type" binding:"required"`
	AssetCode    string  `json:"asset_code" binding:"required"`
	Manufacturer string  `json:"manufacturer"`
	ModelName    string  `json:"model"`
	EngineHours  float64 `json:"engine_hours"`
}

// CreateMachine handles POST /api/machines, the manual machine record form
// (machines also arrive via the telematics sync).
func (h *Handler) CreateMachine(c *gin.Context) {
	var req createMachineRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if _, err := h.store.GetSite(c.Request.Context(), req.SiteID); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Unknown site"})
		return
	}

	machine := model.Machine{
		SiteID:       req.SiteID,
		Name:         req.Name,
		MachineType:  req.MachineType,
		AssetCode:    req.AssetCode,
		Manufacturer: req.Manufacturer,
		ModelName:    req.ModelName,
		EngineHours:  req.EngineHours,
		Status:       "unknown",
	}
	if err := h.store.DB().WithContext(c.Request.Context()).Create(&machine).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusCreated, machine)
}

// ListMaintenanceLogs handles GET /api/machines/{machine_id}/maintenance.
func (h *Handler) ListMaintenanceLogs(c *gin.Context) {
	id, err := strconv.ParseInt(c.Param("machine_id"), 10, 64)
	if err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "Invalid machine ID"})
		return
	}

	var logs []model.MaintenanceLog
	if err := h.store.DB().WithContext(c.Request.Context()).
		Where("machine_id = ?", id).
		Order("performed_at DESC").
		Find(&logs).Error; err != nil {
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "Failed to retrieve maintenance logs"})
		return
	}
	c.JSON(http.StatusOK, logs)
}

type createMaintenanceLogRequest struct {
	PerformedAt time.Time `json:"performed_at" binding:"required"`
	Kind        string    `json:"kind" binding:"required"`
	Description string    `json:"description"`
	Cost        float64   `json:"cost"`
	PerformedBy string    `json:"performed_by"`
}

// CreateMaintenanceLog handles POST /api/machines/{machine_id}/maintenance.
func (h *Handler) CreateMaintenanceLog(c *gin.Context) {
	id, err := strconv.ParseInt(c.Param("machine_id"), 10, 64)
	if err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "Invalid machine ID"})
		return
	}

	var req createMaintenanceLogRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if _, err := h.store.GetMachine(c.Request.Context(), id); err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Machine not found"})
		return
	}

	entry := model.MaintenanceLog{
		MachineID:   id,
		PerformedAt: req.PerformedAt,
		Kind:        req.Kind,
		Description: req.Description,
		Cost:        req.Cost,
		PerformedBy: req.PerformedBy,
	}
	if err := h.store.DB().WithContext(c.Request.Context()).Create(&entry).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusCreated, entry)
}

// GetCurrentUser handles GET /api/users/me, echoing the resolved actor.
func (h *Handler) GetCurrentUser(c *gin.Context) {
	user := mw.CurrentUser(c)
	if user == nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "No identity supplied"})
		return
	}
	c.JSON(http.StatusOK, user)
}
