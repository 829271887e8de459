package store

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	appdb "fleetops-backend/internal/db"
	"fleetops-backend/internal/model"
	"fleetops-backend/internal/workflow"
)

// A helper function to create an in-memory database with the full schema.
func newTestDB(t *testing.T) *gorm.DB {
	db, err := gorm.Open(sqlite.Open("file::memory:?cache=shared"), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	require.NoError(t, err)

	err = db.AutoMigrate(appdb.Models()...)
	require.NoError(t, err)

	t.Cleanup(func() {
		sqlDB, _ := db.DB()
		sqlDB.Close()
	})
	return db
}

func seedTransfer(t *testing.T, s Store, status model.Status) *model.TransferRequest {
	t.Helper()
	req := &model.TransferRequest{
		RequestingSiteID: 10,
		MachineType:      "excavator",
		Status:           status,
		Purpose:          "foundation work",
		CreatedAt:        time.Now().UTC(),
		UpdatedAt:        time.Now().UTC(),
	}
	event := &model.TransferEvent{
		Status:    status,
		ActorID:   1,
		ActorName: "Priya",
		Notes:     "Transfer request created",
		CreatedAt: time.Now().UTC(),
	}
	require.NoError(t, s.CreateTransferRequest(context.Background(), req, event))
	return req
}

func TestGormStore_CreateAndGetTransferRequest(t *testing.T) {
	db := newTestDB(t)
	s := NewGormStore(db)
	ctx := context.Background()

	req := seedTransfer(t, s, model.StatusPendingPM)
	require.NotZero(t, req.ID)

	got, err := s.GetTransferRequest(ctx, req.ID)
	require.NoError(t, err)
	assert.Equal(t, model.StatusPendingPM, got.Status)
	assert.Equal(t, int64(10), got.RequestingSiteID)
	require.Len(t, got.History, 1)
	assert.Equal(t, req.ID, got.History[0].TransferRequestID)
	assert.Equal(t, "Transfer request created", got.History[0].Notes)

	t.Run("unknown id maps to the workflow sentinel", func(t *testing.T) {
		_, err := s.GetTransferRequest(ctx, 9999)
		assert.ErrorIs(t, err, workflow.ErrNotFound)
	})
}

func TestGormStore_CommitTransition(t *testing.T) {
	db := newTestDB(t)
	s := NewGormStore(db)
	ctx := context.Background()

	req := seedTransfer(t, s, model.StatusPendingPM)

	sourceSiteID := int64(20)
	req.Status = model.StatusPendingMechanical
	req.SourceSiteID = &sourceSiteID
	req.UpdatedAt = time.Now().UTC()
	event := &model.TransferEvent{
		Status:    model.StatusPendingMechanical,
		ActorID:   1,
		ActorName: "Priya",
		Notes:     "Approved by PM",
		CreatedAt: time.Now().UTC(),
	}
	err := s.CommitTransition(ctx, req, model.StatusPendingPM, event)
	require.NoError(t, err)

	got, err := s.GetTransferRequest(ctx, req.ID)
	require.NoError(t, err)
	assert.Equal(t, model.StatusPendingMechanical, got.Status)
	require.NotNil(t, got.SourceSiteID)
	assert.Equal(t, sourceSiteID, *got.SourceSiteID)
	require.Len(t, got.History, 2)
	assert.Equal(t, "Approved by PM", got.History[1].Notes)
}

func TestGormStore_CommitTransitionStale(t *testing.T) {
	db := newTestDB(t)
	s := NewGormStore(db)
	ctx := context.Background()

	// The stored request was rejected after the caller read it.
	req := seedTransfer(t, s, model.StatusRejected)

	attempt := *req
	attempt.Status = model.StatusPendingMechanical
	event := &model.TransferEvent{
		Status:    model.StatusPendingMechanical,
		ActorID:   1,
		Notes:     "Approved by PM",
		CreatedAt: time.Now().UTC(),
	}
	err := s.CommitTransition(ctx, &attempt, model.StatusPendingPM, event)
	assert.ErrorIs(t, err, workflow.ErrStaleStatus)

	// The losing write changed nothing: status intact, no event appended.
	got, err := s.GetTransferRequest(ctx, req.ID)
	require.NoError(t, err)
	assert.Equal(t, model.StatusRejected, got.Status)
	assert.Len(t, got.History, 1)
}

func TestGormStore_HistoryOrdering(t *testing.T) {
	db := newTestDB(t)
	s := NewGormStore(db)
	ctx := context.Background()

	req := seedTransfer(t, s, model.StatusPendingPM)

	steps := []model.Status{model.StatusPendingMechanical, model.StatusAwaitingSourcePM, model.StatusApproved}
	expected := model.StatusPendingPM
	for _, next := range steps {
		req.Status = next
		err := s.CommitTransition(ctx, req, expected, &model.TransferEvent{
			Status:    next,
			ActorID:   1,
			Notes:     string(next),
			CreatedAt: time.Now().UTC(),
		})
		require.NoError(t, err)
		expected = next
	}

	got, err := s.GetTransferRequest(ctx, req.ID)
	require.NoError(t, err)
	require.Len(t, got.History, 4)
	want := []model.Status{model.StatusPendingPM, model.StatusPendingMechanical, model.StatusAwaitingSourcePM, model.StatusApproved}
	for i, e := range got.History {
		assert.Equal(t, want[i], e.Status, "history entry %d out of order", i)
	}
}

func TestGormStore_ListMachinesAtSite(t *testing.T) {
	db := newTestDB(t)
	s := NewGormStore(db)
	ctx := context.Background()

	require.NoError(t, db.Create(&model.Site{ID: 20, Code: "SV", Name: "South Valley"}).Error)
	machines := []model.Machine{
		{ID: 501, SiteID: 20, Name: "Excavator 1", MachineType: "Excavator", AssetCode: "EXC-SV01-001"},
		{ID: 502, SiteID: 20, Name: "Crane 1", MachineType: "Crane", AssetCode: "CRN-SV01-001"},
		{ID: 601, SiteID: 10, Name: "Excavator elsewhere", MachineType: "Excavator", AssetCode: "EXC-NR01-001"},
	}
	require.NoError(t, db.Create(&machines).Error)

	t.Run("filters by site and type", func(t *testing.T) {
		got, err := s.ListMachinesAtSite(ctx, 20, "Excavator")
		require.NoError(t, err)
		require.Len(t, got, 1)
		assert.Equal(t, int64(501), got[0].ID)
	})

	t.Run("empty type matches all machines at the site", func(t *testing.T) {
		got, err := s.ListMachinesAtSite(ctx, 20, "")
		require.NoError(t, err)
		assert.Len(t, got, 2)
	})
}

func TestGormStore_UpdateQuotationStatus(t *testing.T) {
	db := newTestDB(t)
	s := NewGormStore(db)
	ctx := context.Background()

	q := &model.Quotation{Reference: "CMP-2026-001", Vendor: "HeavyLift", Item: "50t crane rental", Amount: 125000, Status: model.QuotationDraft}
	require.NoError(t, s.CreateQuotation(ctx, q))

	got, err := s.UpdateQuotationStatus(ctx, q.ID, model.QuotationDraft, model.QuotationApproved, 42)
	require.NoError(t, err)
	assert.Equal(t, model.QuotationApproved, got.Status)
	require.NotNil(t, got.DecidedBy)
	assert.Equal(t, int64(42), *got.DecidedBy)
	assert.NotNil(t, got.DecidedAt)

	t.Run("wrong expected status loses", func(t *testing.T) {
		_, err := s.UpdateQuotationStatus(ctx, q.ID, model.QuotationDraft, model.QuotationApproved, 42)
		assert.ErrorIs(t, err, ErrQuotationStale)
	})
}

func TestGormStore_UpsertSitesAndMachines(t *testing.T) {
	db := newTestDB(t)
	s := NewGormStore(db)
	ctx := context.Background()

	items := []FeedItem{
		{ID: 501, Name: "Excavator 1", AssetCode: "EXC-SV01-001", Manufacturer: "Komatsu", Model: "PC210", State: 1},
		{ID: 502, Name: "Crane 1", AssetCode: "CRN-SV01-001", Manufacturer: "Liebherr", Model: "LTM 1050", State: 2},
		{ID: 503, Name: "Bad unit", AssetCode: "garbage", State: 1}, // unparseable, skipped
	}
	require.NoError(t, s.UpsertSitesAndMachines(ctx, items))

	var sites []model.Site
	require.NoError(t, db.Find(&sites).Error)
	require.Len(t, sites, 1)
	assert.Equal(t, "SV01", sites[0].Code)

	var machines []model.Machine
	require.NoError(t, db.Order("id").Find(&machines).Error)
	require.Len(t, machines, 2)
	assert.Equal(t, "Excavator", machines[0].MachineType)
	assert.Equal(t, "Crane", machines[1].MachineType)
	assert.Equal(t, sites[0].ID, machines[0].SiteID)

	t.Run("second sync with changed metadata updates in place", func(t *testing.T) {
		items[0].Name = "Excavator 1 (renamed)"
		require.NoError(t, s.UpsertSitesAndMachines(ctx, items))

		var m model.Machine
		require.NoError(t, db.First(&m, 501).Error)
		assert.Equal(t, "Excavator 1 (renamed)", m.Name)

		var count int64
		db.Model(&model.Machine{}).Count(&count)
		assert.Equal(t, int64(2), count)
	})
}

func TestGormStore_RecordUsage(t *testing.T) {
	db := newTestDB(t)
	s := NewGormStore(db)
	ctx := context.Background()
	now := time.Now().UTC()

	getStateType := func(state int) UnitStateType {
		switch state {
		case 1:
			return StateTypeActive
		case 2:
			return StateTypeIdle
		}
		return StateTypeUnknown
	}

	require.NoError(t, db.Create(&model.Site{ID: 20, Code: "SV01", Name: "SV01"}).Error)
	require.NoError(t, db.Create(&model.Machine{
		ID: 501, SiteID: 20, Name: "Excavator 1", MachineType: "Excavator",
		AssetCode: "EXC-SV01-001", Status: string(StateTypeIdle), EngineHours: 100,
	}).Error)

	items := []FeedItem{
		{ID: 501, State: 1, EngineHours: 104.5},
		{ID: 999, State: 1, EngineHours: 50}, // unknown unit, ignored
	}
	require.NoError(t, s.RecordUsage(ctx, now, items, getStateType))

	var snapshots []model.MachineUsage
	require.NoError(t, db.Find(&snapshots).Error)
	require.Len(t, snapshots, 1)
	assert.Equal(t, int64(501), snapshots[0].MachineID)
	assert.Equal(t, string(StateTypeActive), snapshots[0].Status)
	assert.Equal(t, 104.5, snapshots[0].EngineHours)

	var m model.Machine
	require.NoError(t, db.First(&m, 501).Error)
	assert.Equal(t, string(StateTypeActive), m.Status)
	assert.Equal(t, 104.5, m.EngineHours)

	t.Run("unchanged state appends nothing", func(t *testing.T) {
		require.NoError(t, s.RecordUsage(ctx, now.Add(time.Minute), items, getStateType))

		var count int64
		db.Model(&model.MachineUsage{}).Count(&count)
		assert.Equal(t, int64(1), count)
	})
}
