package api

import (
	"github.com/SherClockHolmes/webpush-go"

	"fleetops-backend/internal/store"
	"fleetops-backend/internal/workflow"
)

// Handler holds shared dependencies for API handlers.
type Handler struct {
	store    store.Store
	executor *workflow.Executor
	webpush  *webpush.Options
}

// NewHandler creates a new API handler.
func NewHandler(s store.Store, executor *workflow.Executor, webpushOptions *webpush.Options) *Handler {
	return &Handler{
		store:    s,
		executor: executor,
		webpush:  webpushOptions,
	}
}
