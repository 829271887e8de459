package internal

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"fleetops-backend/config"
	"fleetops-backend/internal/model"
	"fleetops-backend/internal/store"
	"fleetops-backend/internal/telematics"
)

// TestTelematicsSyncLifecycle drives two sync cycles against a mock feed
// server and verifies sites, machines, and usage snapshots end to end.
func TestTelematicsSyncLifecycle(t *testing.T) {
	// --- Test Setup ---

	// 1. Setup an in-memory SQLite database for testing.
	testDB, err := gorm.Open(sqlite.Open("file::memory:?cache=shared"), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	require.NoError(t, err)
	sqlDB, _ := testDB.DB()
	defer sqlDB.Close()

	err = testDB.AutoMigrate(&model.Site{}, &model.Machine{}, &model.MachineUsage{})
	require.NoError(t, err)

	// 2. Create a mock configuration.
	mockConfig := &config.Config{
		Telematics: config.TelematicsConfig{
			StateActiveValues: []int{1},
			StateIdleValues:   []int{2},
			StateDownValues:   []int{3},
			Request: config.TelematicsRequest{
				PageSize: 10,
			},
			Timezone: "UTC",
		},
	}

	// 3. Mock server returning a different feed on each cycle.
	lastSeen := time.Now().UTC().Format("2006-01-02 15:04:05")
	feeds := [][]store.FeedItem{
		{
			{ID: 501, Name: "Excavator 1", AssetCode: "EXC-SV01-001", Manufacturer: "Komatsu", Model: "PC210", State: 1, EngineHours: 100, LastSeen: &lastSeen},
			{ID: 502, Name: "Crane 1", AssetCode: "CRN-NR02-001", Manufacturer: "Liebherr", Model: "LTM 1050", State: 2, EngineHours: 350.5, LastSeen: &lastSeen},
		},
		{
			{ID: 501, Name: "Excavator 1", AssetCode: "EXC-SV01-001", Manufacturer: "Komatsu", Model: "PC210", State: 3, EngineHours: 104.5, LastSeen: &lastSeen},
			{ID: 502, Name: "Crane 1", AssetCode: "CRN-NR02-001", Manufacturer: "Liebherr", Model: "LTM 1050", State: 2, EngineHours: 350.5, LastSeen: &lastSeen},
		},
	}
	var cycle int
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		items := feeds[cycle]
		if cycle < len(feeds)-1 {
			cycle++
		}

		var response telematics.FeedResponse
		response.Data.Page = 1
		response.Data.PageSize = 10
		response.Data.Total = len(items)
		response.Data.Items = items

		w.Header().Set("Content-Type", "application/json")
		assert.NoError(t, json.NewEncoder(w).Encode(response))
	}))
	defer server.Close()
	mockConfig.Telematics.Request.URL = server.URL

	// 4. Instantiate the store and sync service.
	gormStore := store.NewGormStore(testDB)
	syncService := telematics.NewService(mockConfig, gormStore)

	// --- Cycle 1: Fleet discovered ---
	t.Run("Cycle 1: Sites And Machines Created", func(t *testing.T) {
		syncService.SyncOnce(context.Background())

		var sites []model.Site
		require.NoError(t, testDB.Order("code").Find(&sites).Error)
		require.Len(t, sites, 2)
		assert.Equal(t, "NR02", sites[0].Code)
		assert.Equal(t, "SV01", sites[1].Code)

		var excavator model.Machine
		require.NoError(t, testDB.First(&excavator, 501).Error)
		assert.Equal(t, "Excavator", excavator.MachineType)
		assert.Equal(t, "EXC-SV01-001", excavator.AssetCode)
		assert.Equal(t, sites[1].ID, excavator.SiteID)
		assert.Equal(t, string(store.StateTypeActive), excavator.Status)
		assert.Equal(t, 100.0, excavator.EngineHours)

		var crane model.Machine
		require.NoError(t, testDB.First(&crane, 502).Error)
		assert.Equal(t, "Crane", crane.MachineType)
		assert.Equal(t, string(store.StateTypeIdle), crane.Status)

		// One snapshot per machine on first observation.
		var snapshotCount int64
		testDB.Model(&model.MachineUsage{}).Count(&snapshotCount)
		assert.Equal(t, int64(2), snapshotCount)
	})

	// --- Cycle 2: One machine goes down ---
	t.Run("Cycle 2: State Change Recorded", func(t *testing.T) {
		syncService.SyncOnce(context.Background())

		var excavator model.Machine
		require.NoError(t, testDB.First(&excavator, 501).Error)
		assert.Equal(t, string(store.StateTypeDown), excavator.Status)
		assert.Equal(t, 104.5, excavator.EngineHours)

		// Only the changed machine gained a snapshot; the idle crane with
		// unchanged hours did not.
		var snapshots []model.MachineUsage
		require.NoError(t, testDB.Where("machine_id = ?", 501).Order("id").Find(&snapshots).Error)
		require.Len(t, snapshots, 2)
		assert.Equal(t, 3, snapshots[1].StateCode)
		assert.Equal(t, string(store.StateTypeDown), snapshots[1].Status)

		var craneSnapshots int64
		testDB.Model(&model.MachineUsage{}).Where("machine_id = ?", 502).Count(&craneSnapshots)
		assert.Equal(t, int64(1), craneSnapshots)

		// No duplicate sites or machines after a re-sync.
		var siteCount, machineCount int64
		testDB.Model(&model.Site{}).Count(&siteCount)
		testDB.Model(&model.Machine{}).Count(&machineCount)
		assert.Equal(t, int64(2), siteCount)
		assert.Equal(t, int64(2), machineCount)
	})
}
