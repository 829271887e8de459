package api

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"fleetops-backend/internal/model"
)

// SiteResponse represents the API response for a single site.
type SiteResponse struct {
	ID            int64  `json:"id"`
	Code          string `json:"code"`
	Name          string `json:"name"`
	Region        string `json:"region"`
	TotalMachines int64  `json:"totalMachines"`
}

// GetSites handles the GET /api/sites request.
func GetSites(db *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		var sites []model.Site
		if err := db.Find(&sites).Error; err != nil {
			c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "Failed to retrieve sites"})
			return
		}

		// One aggregate pass for per-site machine counts.
		type AggRow struct {
			SiteID        int64
			TotalMachines int64
		}
		var aggs []AggRow
		if err := db.
			Model(&model.Machine{}).
			Select("site_id as site_id, COUNT(*) as total_machines").
			Group("site_id").
			Scan(&aggs).Error; err != nil {
			c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "Failed to aggregate machines"})
			return
		}

		aggMap := make(map[int64]AggRow, len(aggs))
		for _, a := range aggs {
			aggMap[a.SiteID] = a
		}

		responses := make([]SiteResponse, 0, len(sites))
		for _, site := range sites {
			a := aggMap[site.ID]
			responses = append(responses, SiteResponse{
				ID: site.ID, Code: site.Code, Name: site.Name, Region: site.Region,
				TotalMachines: a.TotalMachines,
			})
		}
		c.JSON(http.StatusOK, responses)
	}
}

// siteMachineResponse is the flattened inventory row for one machine.
type siteMachineResponse struct {
	model.Machine
	SiteName   string `json:"siteName"`
	LastSynced string `json:"lastSynced,omitempty"`
}

// GetSiteMachines handles the GET /api/sites/{site_id}/machines request,
// the site inventory view.
func GetSiteMachines(db *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		siteID, err := strconv.ParseInt(c.Param("site_id"), 10, 64)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "Invalid site ID"})
			return
		}

		var machines []model.Machine
		if err := db.Preload("Site").Where("site_id = ?", siteID).Find(&machines).Error; err != nil {
			c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "Failed to retrieve machines"})
			return
		}

		machineIDs := make([]int64, len(machines))
		for i, m := range machines {
			machineIDs[i] = m.ID
		}

		// Latest usage snapshot per machine.
		var snapshots []model.MachineUsage
		if len(machineIDs) > 0 {
			db.Where("machine_id IN ?", machineIDs).Order("observed_at DESC").Find(&snapshots)
		}
		latest := make(map[int64]model.MachineUsage, len(machines))
		for _, snap := range snapshots {
			if _, seen := latest[snap.MachineID]; !seen {
				latest[snap.MachineID] = snap
			}
		}

		response := make([]siteMachineResponse, 0, len(machines))
		for _, machine := range machines {
			row := siteMachineResponse{Machine: machine, SiteName: machine.Site.Name}
			if snap, ok := latest[machine.ID]; ok {
				row.LastSynced = snap.ObservedAt.UTC().Format("2006-01-02T15:04:05Z07:00")
			}
			response = append(response, row)
		}
		c.JSON(http.StatusOK, response)
	}
}
