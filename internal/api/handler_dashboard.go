package api

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"fleetops-backend/internal/model"
)

// DashboardSummary is the aggregate view backing the console landing page.
type DashboardSummary struct {
	TotalMachines     int64            `json:"totalMachines"`
	TotalSites        int64            `json:"totalSites"`
	TransfersByStatus map[string]int64 `json:"transfersByStatus"`
	OpenTransfers     int64            `json:"openTransfers"`
}

// GetDashboardSummary handles GET /api/dashboard/summary.
func (h *Handler) GetDashboardSummary(c *gin.Context) {
	db := h.store.DB().WithContext(c.Request.Context())

	summary := DashboardSummary{TransfersByStatus: make(map[string]int64)}
	if err := db.Model(&model.Machine{}).Count(&summary.TotalMachines).Error; err != nil {
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "Failed to aggregate machines"})
		return
	}
	if err := db.Model(&model.Site{}).Count(&summary.TotalSites).Error; err != nil {
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "Failed to aggregate sites"})
		return
	}

	type statusRow struct {
		Status string
		Total  int64
	}
	var rows []statusRow
	if err := db.Model(&model.TransferRequest{}).
		Select("status as status, COUNT(*) as total").
		Group("status").
		Scan(&rows).Error; err != nil {
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "Failed to aggregate transfers"})
		return
	}
	for _, row := range rows {
		summary.TransfersByStatus[row.Status] = row.Total
		if !model.Status(row.Status).IsTerminal() {
			summary.OpenTransfers += row.Total
		}
	}

	c.JSON(http.StatusOK, summary)
}
