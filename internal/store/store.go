package store

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"fleetops-backend/internal/model"
	"fleetops-backend/internal/parse"
	"fleetops-backend/internal/workflow"
)

// Store defines the interface for all database operations.
type Store interface {
	DB() *gorm.DB

	// Transfer workflow (implements workflow.Store).
	CreateTransferRequest(ctx context.Context, req *model.TransferRequest, event *model.TransferEvent) error
	GetTransferRequest(ctx context.Context, id int64) (*model.TransferRequest, error)
	ListTransferRequests(ctx context.Context) ([]model.TransferRequest, error)
	CommitTransition(ctx context.Context, req *model.TransferRequest, expected model.Status, event *model.TransferEvent) error

	// Reference data.
	GetSite(ctx context.Context, id int64) (*model.Site, error)
	ListSites(ctx context.Context) ([]model.Site, error)
	GetMachine(ctx context.Context, id int64) (*model.Machine, error)
	ListMachinesAtSite(ctx context.Context, siteID int64, machineType string) ([]model.Machine, error)
	GetUser(ctx context.Context, id int64) (*model.User, error)

	// Procurement quotations.
	CreateQuotation(ctx context.Context, q *model.Quotation) error
	ListQuotations(ctx context.Context, reference string) ([]model.Quotation, error)
	UpdateQuotationStatus(ctx context.Context, id int64, expected, next string, decidedBy int64) (*model.Quotation, error)

	// Telematics sync.
	UpsertSitesAndMachines(ctx context.Context, items []FeedItem) error
	RecordUsage(ctx context.Context, now time.Time, items []FeedItem, getStateType func(int) UnitStateType) error
}

// ErrQuotationStale is returned when a quotation status update loses a race
// or targets the wrong current status.
var ErrQuotationStale = errors.New("quotation status changed concurrently")

// gormStore implements the Store interface using GORM.
type gormStore struct {
	db *gorm.DB
}

// NewGormStore creates a new GORM-backed store.
func NewGormStore(db *gorm.DB) Store {
	return &gormStore{db: db}
}

func (s *gormStore) DB() *gorm.DB {
	return s.db
}

// --- Transfer workflow ---

// CreateTransferRequest inserts the request and its initial history entry
// in one transaction.
func (s *gormStore) CreateTransferRequest(ctx context.Context, req *model.TransferRequest, event *model.TransferEvent) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(req).Error; err != nil {
			return fmt.Errorf("failed to create transfer request: %w", err)
		}
		event.TransferRequestID = req.ID
		if err := tx.Create(event).Error; err != nil {
			return fmt.Errorf("failed to create initial history entry: %w", err)
		}
		return nil
	})
}

func (s *gormStore) GetTransferRequest(ctx context.Context, id int64) (*model.TransferRequest, error) {
	var req model.TransferRequest
	err := s.db.WithContext(ctx).
		Preload("History", func(db *gorm.DB) *gorm.DB {
			return db.Order("transfer_events.id ASC")
		}).
		First(&req, id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, workflow.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load transfer request %d: %w", id, err)
	}
	return &req, nil
}

func (s *gormStore) ListTransferRequests(ctx context.Context) ([]model.TransferRequest, error) {
	var reqs []model.TransferRequest
	if err := s.db.WithContext(ctx).Order("created_at DESC").Find(&reqs).Error; err != nil {
		return nil, fmt.Errorf("failed to list transfer requests: %w", err)
	}
	return reqs, nil
}

// CommitTransition replaces the request's mutable fields and appends the
// history event atomically. The update is guarded by the expected status;
// a concurrent transition that got there first yields ErrStaleStatus and
// leaves both the request and its history untouched.
func (s *gormStore) CommitTransition(ctx context.Context, req *model.TransferRequest, expected model.Status, event *model.TransferEvent) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Model(&model.TransferRequest{}).
			Where("id = ? AND status = ?", req.ID, expected).
			Updates(map[string]any{
				"status":         req.Status,
				"source_site_id": req.SourceSiteID,
				"machine_id":     req.MachineID,
				"updated_at":     req.UpdatedAt,
			})
		if res.Error != nil {
			return fmt.Errorf("failed to update transfer request %d: %w", req.ID, res.Error)
		}
		if res.RowsAffected == 0 {
			return workflow.ErrStaleStatus
		}
		event.TransferRequestID = req.ID
		if err := tx.Create(event).Error; err != nil {
			return fmt.Errorf("failed to append history entry for request %d: %w", req.ID, err)
		}
		return nil
	})
}

// --- Reference data ---

func (s *gormStore) GetSite(ctx context.Context, id int64) (*model.Site, error) {
	var site model.Site
	if err := s.db.WithContext(ctx).First(&site, id).Error; err != nil {
		return nil, fmt.Errorf("failed to load site %d: %w", id, err)
	}
	return &site, nil
}

func (s *gormStore) ListSites(ctx context.Context) ([]model.Site, error) {
	var sites []model.Site
	if err := s.db.WithContext(ctx).Order("name").Find(&sites).Error; err != nil {
		return nil, fmt.Errorf("failed to list sites: %w", err)
	}
	return sites, nil
}

func (s *gormStore) GetMachine(ctx context.Context, id int64) (*model.Machine, error) {
	var machine model.Machine
	if err := s.db.WithContext(ctx).First(&machine, id).Error; err != nil {
		return nil, fmt.Errorf("failed to load machine %d: %w", id, err)
	}
	return &machine, nil
}

// ListMachinesAtSite filters to machines at the given site, narrowed to
// the machine type when one is given.
func (s *gormStore) ListMachinesAtSite(ctx context.Context, siteID int64, machineType string) ([]model.Machine, error) {
	q := s.db.WithContext(ctx).Where("site_id = ?", siteID)
	if machineType != "" {
		q = q.Where("machine_type = ?", machineType)
	}
	var machines []model.Machine
	if err := q.Order("asset_code").Find(&machines).Error; err != nil {
		return nil, fmt.Errorf("failed to list machines at site %d: %w", siteID, err)
	}
	return machines, nil
}

func (s *gormStore) GetUser(ctx context.Context, id int64) (*model.User, error) {
	var user model.User
	if err := s.db.WithContext(ctx).First(&user, id).Error; err != nil {
		return nil, fmt.Errorf("failed to load user %d: %w", id, err)
	}
	return &user, nil
}

// --- Procurement quotations ---

func (s *gormStore) CreateQuotation(ctx context.Context, q *model.Quotation) error {
	if err := s.db.WithContext(ctx).Create(q).Error; err != nil {
		return fmt.Errorf("failed to create quotation: %w", err)
	}
	return nil
}

func (s *gormStore) ListQuotations(ctx context.Context, reference string) ([]model.Quotation, error) {
	q := s.db.WithContext(ctx).Order("reference, amount")
	if reference != "" {
		q = q.Where("reference = ?", reference)
	}
	var quotations []model.Quotation
	if err := q.Find(&quotations).Error; err != nil {
		return nil, fmt.Errorf("failed to list quotations: %w", err)
	}
	return quotations, nil
}

// UpdateQuotationStatus advances a quotation with the same guarded update
// the transfer workflow uses.
func (s *gormStore) UpdateQuotationStatus(ctx context.Context, id int64, expected, next string, decidedBy int64) (*model.Quotation, error) {
	now := time.Now().UTC()
	res := s.db.WithContext(ctx).Model(&model.Quotation{}).
		Where("id = ? AND status = ?", id, expected).
		Updates(map[string]any{
			"status":     next,
			"decided_by": decidedBy,
			"decided_at": now,
			"updated_at": now,
		})
	if res.Error != nil {
		return nil, fmt.Errorf("failed to update quotation %d: %w", id, res.Error)
	}
	if res.RowsAffected == 0 {
		return nil, ErrQuotationStale
	}
	var q model.Quotation
	if err := s.db.WithContext(ctx).First(&q, id).Error; err != nil {
		return nil, fmt.Errorf("failed to reload quotation %d: %w", id, err)
	}
	return &q, nil
}

// --- Telematics sync ---

// UpsertSitesAndMachines handles the database updates for site and machine
// metadata coming from the telematics feed.
func (s *gormStore) UpsertSitesAndMachines(ctx context.Context, items []FeedItem) error {
	existingMachines, err := s.fetchAllMachines(ctx)
	if err != nil {
		log.Printf("Warning: could not pre-fetch machines: %v", err)
		existingMachines = make(map[int64]model.Machine)
	}

	// Phase 1: Process and save sites
	siteMap, err := s.processAndSaveSites(ctx, items)
	if err != nil {
		return fmt.Errorf("failed to process sites: %w", err)
	}

	// Phase 2: Build machine slice for upserting
	var machinesToUpsert []model.Machine
	for _, item := range items {
		parsedCode, err := parse.ParseAssetCode(item.AssetCode)
		if err != nil {
			log.Printf("Error parsing asset code for unit %d (%s): %v", item.ID, item.AssetCode, err)
			continue
		}

		site, ok := siteMap[parsedCode.Yard]
		if !ok {
			log.Printf("Error: could not find yard %q in map after upserting. Skipping unit %d.", parsedCode.Yard, item.ID)
			continue
		}

		machine, needsUpsert := prepareMachine(item, parsedCode, existingMachines, site.ID)
		if needsUpsert {
			machinesToUpsert = append(machinesToUpsert, machine)
		}
	}

	if len(machinesToUpsert) > 0 {
		log.Printf("Batch upserting %d machines...", len(machinesToUpsert))
		return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
			return batchUpsertMachines(tx, machinesToUpsert)
		})
	}
	return nil
}

// RecordUsage appends a usage snapshot for every unit whose reported state
// changed and keeps the machine's status and engine hours current.
func (s *gormStore) RecordUsage(ctx context.Context, now time.Time, items []FeedItem, getStateType func(int) UnitStateType) error {
	machines, err := s.fetchAllMachines(ctx)
	if err != nil {
		return fmt.Errorf("failed to fetch machines: %w", err)
	}

	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for _, item := range items {
			machine, exists := machines[item.ID]
			if !exists {
				continue
			}

			status := string(getStateType(item.State))
			if machine.Status == status && machine.EngineHours == item.EngineHours {
				continue
			}

			snapshot := model.MachineUsage{
				MachineID:   item.ID,
				ObservedAt:  now,
				StateCode:   item.State,
				Status:      status,
				EngineHours: item.EngineHours,
			}
			if err := tx.Create(&snapshot).Error; err != nil {
				return fmt.Errorf("failed to record usage for machine %d: %w", item.ID, err)
			}
			if err := tx.Model(&model.Machine{}).Where("id = ?", item.ID).
				Updates(map[string]any{
					"status":       status,
					"engine_hours": item.EngineHours,
					"updated_at":   now,
				}).Error; err != nil {
				return fmt.Errorf("failed to update machine %d: %w", item.ID, err)
			}
		}
		return nil
	})
}

// --- Helpers ---

func (s *gormStore) fetchAllMachines(ctx context.Context) (map[int64]model.Machine, error) {
	var machines []model.Machine
	if err := s.db.WithContext(ctx).Find(&machines).Error; err != nil {
		return nil, err
	}
	machineMap := make(map[int64]model.Machine, len(machines))
	for _, m := range machines {
		machineMap[m.ID] = m
	}
	return machineMap, nil
}

func (s *gormStore) processAndSaveSites(ctx context.Context, items []FeedItem) (map[string]model.Site, error) {
	sitesToUpsert := make(map[string]model.Site)
	for _, item := range items {
		parsedCode, err := parse.ParseAssetCode(item.AssetCode)
		if err != nil {
			continue
		}
		if _, exists := sitesToUpsert[parsedCode.Yard]; !exists {
			sitesToUpsert[parsedCode.Yard] = model.Site{Code: parsedCode.Yard, Name: parsedCode.Yard}
		}
	}

	if len(sitesToUpsert) == 0 {
		return make(map[string]model.Site), nil
	}

	var siteList []model.Site
	for _, site := range sitesToUpsert {
		siteList = append(siteList, site)
	}

	log.Printf("Batch upserting %d sites...", len(siteList))
	if err := s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "code"}},
		DoUpdates: clause.AssignmentColumns([]string{"code"}),
	}).Create(&siteList).Error; err != nil {
		return nil, fmt.Errorf("batch upsert sites failed: %w", err)
	}

	var allSites []model.Site
	if err := s.db.WithContext(ctx).Find(&allSites).Error; err != nil {
		return nil, fmt.Errorf("failed to retrieve sites after upsert: %w", err)
	}

	siteMap := make(map[string]model.Site, len(allSites))
	for _, site := range allSites {
		siteMap[site.Code] = site
	}
	return siteMap, nil
}

func prepareMachine(item FeedItem, parsedCode parse.ParsedCode, existingMachines map[int64]model.Machine, siteID int64) (model.Machine, bool) {
	newMachine := model.Machine{
		ID:           item.ID,
		SiteID:       siteID,
		Name:         item.Name,
		MachineType:  parse.TypeLabel(parsedCode.TypeCode),
		AssetCode:    item.AssetCode,
		Manufacturer: item.Manufacturer,
		ModelName:    item.Model,
	}

	if oldMachine, exists := existingMachines[newMachine.ID]; exists {
		if oldMachine.Name == newMachine.Name &&
			oldMachine.MachineType == newMachine.MachineType &&
			oldMachine.AssetCode == newMachine.AssetCode &&
			oldMachine.Manufacturer == newMachine.Manufacturer &&
			oldMachine.ModelName == newMachine.ModelName {
			return newMachine, false
		}
	}
	return newMachine, true
}

func batchUpsertMachines(tx *gorm.DB, machines []model.Machine) error {
	return tx.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "id"}},
		DoUpdates: clause.AssignmentColumns([]string{"site_id", "name", "machine_type", "asset_code", "manufacturer", "model_name", "updated_at"}),
	}).Create(&machines).Error
}
