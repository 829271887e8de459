package api

import (
	"time"

	"github.com/SherClockHolmes/webpush-go"
	"github.com/gin-gonic/gin"
	"github.com/patrickmn/go-cache"
	"golang.org/x/time/rate"

	"fleetops-backend/config"
	"fleetops-backend/internal/mw"
	"fleetops-backend/internal/store"
	"fleetops-backend/internal/workflow"
)

// NewRouter creates and configures a new Gin router.
func NewRouter(s store.Store, executor *workflow.Executor, cfg *config.ServerConfig, webpushOptions *webpush.Options) *gin.Engine {
	r := gin.Default()

	db := s.DB()
	handler := NewHandler(s, executor, webpushOptions)

	rateLimiter := mw.RateLimiter(rate.Limit(cfg.RateLimitPerSec), cfg.RateLimitBurst, cfg.RequestIPHeader)

	cacheTTL := time.Duration(cfg.CacheTTLSeconds) * time.Second
	cacheStore := cache.New(cacheTTL, 2*cacheTTL)
	caching := mw.Cache(cacheStore, cacheTTL)

	// API group
	api := r.Group("/api")
	api.Use(rateLimiter, mw.Identity(s))
	{
		// Reference data. Responses do not vary per actor, so they are cached.
		api.GET("/sites", caching, GetSites(db))
		api.GET("/sites/:site_id/machines", caching, GetSiteMachines(db))
		api.GET("/machines", caching, handler.ListMachines)
		api.GET("/machines/:machine_id", handler.GetMachine)
		api.POST("/machines", handler.CreateMachine)
		api.GET("/machines/:machine_id/maintenance", handler.ListMaintenanceLogs)
		api.POST("/machines/:machine_id/maintenance", handler.CreateMaintenanceLog)

		api.GET("/users/me", handler.GetCurrentUser)

		// Transfer workflow.
		api.POST("/transfers", handler.CreateTransfer)
		api.GET("/transfers", handler.ListTransfers)
		api.GET("/transfers/:transfer_id", handler.GetTransfer)
		api.GET("/transfers/:transfer_id/actions", handler.GetTransferActions)
		api.GET("/transfers/:transfer_id/candidate-machines", handler.GetCandidateMachines)
		api.POST("/transfers/:transfer_id/pm-approval", handler.PMApproval)
		api.POST("/transfers/:transfer_id/source-site", handler.AssignSourceSite)
		api.POST("/transfers/:transfer_id/source-approval", handler.SourceApproval)
		api.POST("/transfers/:transfer_id/transit", handler.MarkInTransit)
		api.POST("/transfers/:transfer_id/receipt", handler.ConfirmReceipt)

		// Procurement quotations.
		api.GET("/quotations", handler.ListQuotations)
		api.POST("/quotations", handler.CreateQuotation)
		api.POST("/quotations/:quotation_id/approve", handler.ApproveQuotation)
		api.POST("/quotations/:quotation_id/lock", handler.LockQuotation)

		api.GET("/dashboard/summary", handler.GetDashboardSummary)

		// Push subscriptions.
		api.GET("/subscriptions", handler.GetSubscription)
		api.PUT("/subscriptions", handler.PutSubscription)
		api.DELETE("/subscriptions", handler.DeleteSubscription)
		api.GET("/vapid_public_key", handler.GetVAPIDPublicKey)
	}

	return r
}
