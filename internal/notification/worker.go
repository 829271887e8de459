package notification

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/http"

	"github.com/SherClockHolmes/webpush-go"
	"gorm.io/gorm"

	"fleetops-backend/internal/model"
)

// NotificationSender defines the interface for sending a web push notification.
type NotificationSender interface {
	Send(payload []byte, sub *webpush.Subscription, options *webpush.Options) (*http.Response, error)
}

// WebPushSender is a real implementation of NotificationSender using the webpush library.
type WebPushSender struct{}

// Send sends a notification using the webpush library.
func (s *WebPushSender) Send(payload []byte, sub *webpush.Subscription, options *webpush.Options) (*http.Response, error) {
	return webpush.SendNotification(payload, sub, options)
}

// transferUpdate is the push payload for one transfer transition.
type transferUpdate struct {
	TransferID int64  `json:"transfer_id"`
	Status     string `json:"status"`
	Message    string `json:"message"`
}

// WorkerPool manages a pool of workers sending push notifications for
// transfer transitions. It satisfies the executor's Notifier interface.
type WorkerPool struct {
	size    int
	jobs    chan int64
	db      *gorm.DB
	webpush *webpush.Options
	sender  NotificationSender
}

// NewWorkerPool creates a new worker pool.
func NewWorkerPool(size int, db *gorm.DB, webpushOptions *webpush.Options) *WorkerPool {
	return &WorkerPool{
		size:    size,
		jobs:    make(chan int64, size), // Buffered channel
		db:      db,
		webpush: webpushOptions,
		sender:  &WebPushSender{}, // Use the real sender by default
	}
}

// Start launches the worker goroutines.
func (wp *WorkerPool) Start(ctx context.Context) {
	for i := 0; i < wp.size; i++ {
		go wp.worker(ctx, i)
	}
}

// worker is the actual worker goroutine.
func (wp *WorkerPool) worker(ctx context.Context, id int) {
	log.Printf("Notification worker %d started", id)
	for {
		select {
		case transferID := <-wp.jobs:
			log.Printf("Worker %d processing transfer %d", id, transferID)
			wp.sendNotificationsForTransfer(ctx, transferID)
		case <-ctx.Done():
			log.Printf("Notification worker %d shutting down", id)
			return
		}
	}
}

// Dispatch sends a job to the worker pool.
func (wp *WorkerPool) Dispatch(transferID int64) {
	wp.jobs <- transferID
}

// Jobs returns the jobs channel for testing.
func (wp *WorkerPool) Jobs() chan int64 {
	return wp.jobs
}

// sendNotificationsForTransfer notifies every subscription covering the
// requesting or source site of the transfer.
func (wp *WorkerPool) sendNotificationsForTransfer(ctx context.Context, transferID int64) {
	var request model.TransferRequest
	if err := wp.db.WithContext(ctx).First(&request, transferID).Error; err != nil {
		log.Printf("Error fetching transfer %d: %v", transferID, err)
		return
	}

	siteIDs := []int64{request.RequestingSiteID}
	if request.SourceSiteID != nil {
		siteIDs = append(siteIDs, *request.SourceSiteID)
	}

	var subscriptions []model.PushSubscription
	err := wp.db.WithContext(ctx).
		Joins("JOIN subscription_site_mapping ssm ON ssm.push_subscription_endpoint = push_subscriptions.endpoint").
		Where("ssm.site_id IN ?", siteIDs).
		Distinct().
		Find(&subscriptions).Error
	if err != nil {
		log.Printf("Error fetching subscriptions for transfer %d: %v", transferID, err)
		return
	}

	if len(subscriptions) == 0 {
		return
	}

	log.Printf("Sending %d notifications for transfer %d", len(subscriptions), transferID)

	update := transferUpdate{
		TransferID: request.ID,
		Status:     string(request.Status),
		Message:    fmt.Sprintf("Transfer request #%d (%s) is now %s", request.ID, request.MachineType, request.Status.Label()),
	}
	payload, err := json.Marshal(update)
	if err != nil {
		log.Printf("Error marshaling payload for transfer %d: %v", transferID, err)
		return
	}

	for _, sub := range subscriptions {
		wp.sendNotification(ctx, sub, payload)
	}
}

// sendNotification sends a single web push notification.
func (wp *WorkerPool) sendNotification(ctx context.Context, sub model.PushSubscription, payload []byte) {
	wpSub := &webpush.Subscription{
		Endpoint: sub.Endpoint,
		Keys: webpush.Keys{
			P256dh: sub.P256DH,
			Auth:   sub.Auth,
		},
	}

	resp, err := wp.sender.Send(payload, wpSub, wp.webpush)
	if err != nil {
		log.Printf("Error sending notification to %s: %v", sub.Endpoint, err)
		return
	}
	defer resp.Body.Close()

	// Handle expired subscriptions
	if resp.StatusCode == http.StatusGone {
		log.Printf("Subscription for endpoint %s is expired. Deleting.", sub.Endpoint)
		if err := wp.db.WithContext(ctx).Delete(&sub).Error; err != nil {
			log.Printf("Failed to delete expired subscription %s: %v", sub.Endpoint, err)
		}
	}
}
