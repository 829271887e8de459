package notification

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"sync"
	"testing"
	"time"

	"github.com/SherClockHolmes/webpush-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"fleetops-backend/internal/model"
)

// mockSender is a mock implementation of the NotificationSender interface.
type mockSender struct {
	SendFunc func(payload []byte, sub *webpush.Subscription, options *webpush.Options) (*http.Response, error)
}

// Send calls the mock SendFunc.
func (m *mockSender) Send(payload []byte, sub *webpush.Subscription, options *webpush.Options) (*http.Response, error) {
	return m.SendFunc(payload, sub, options)
}

// A helper function to create an in-memory database with the schema the
// worker touches.
func newTestDB(t *testing.T) *gorm.DB {
	db, err := gorm.Open(sqlite.Open("file::memory:?cache=shared"), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	require.NoError(t, err)

	err = db.AutoMigrate(&model.Site{}, &model.TransferRequest{}, &model.PushSubscription{})
	require.NoError(t, err)

	t.Cleanup(func() {
		sqlDB, _ := db.DB()
		sqlDB.Close()
	})
	return db
}

func subscribe(t *testing.T, db *gorm.DB, endpoint string, siteIDs ...int64) {
	t.Helper()
	sub := model.PushSubscription{Endpoint: endpoint, P256DH: "p256dh", Auth: "auth"}
	for _, id := range siteIDs {
		sub.Sites = append(sub.Sites, &model.Site{ID: id})
	}
	require.NoError(t, db.Create(&sub).Error)
}

func TestWorkerPool_Dispatch(t *testing.T) {
	db := newTestDB(t)
	wp := NewWorkerPool(1, db, &webpush.Options{})

	// Dispatch a job
	wp.Dispatch(123)

	// Check if the job is in the channel
	select {
	case job := <-wp.Jobs():
		assert.Equal(t, int64(123), job)
	case <-time.After(1 * time.Second):
		t.Fatal("timed out waiting for job to be dispatched")
	}
}

func TestWorkerPool_SendsToSubscribedSites(t *testing.T) {
	db := newTestDB(t)
	wp := NewWorkerPool(1, db, &webpush.Options{})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	wp.Start(ctx)

	require.NoError(t, db.Create(&model.Site{ID: 10, Code: "NR", Name: "North Ridge"}).Error)
	require.NoError(t, db.Create(&model.Site{ID: 20, Code: "SV", Name: "South Valley"}).Error)
	require.NoError(t, db.Create(&model.Site{ID: 30, Code: "EB", Name: "East Bend"}).Error)

	sourceSiteID := int64(20)
	req := model.TransferRequest{
		RequestingSiteID: 10,
		SourceSiteID:     &sourceSiteID,
		MachineType:      "excavator",
		Status:           model.StatusApproved,
	}
	require.NoError(t, db.Create(&req).Error)

	// One subscription per site. Only the requesting and source sites get
	// notified.
	subscribe(t, db, "https://example.com/requesting", 10)
	subscribe(t, db, "https://example.com/source", 20)
	subscribe(t, db, "https://example.com/unrelated", 30)

	var mu sync.Mutex
	var endpoints []string
	var wg sync.WaitGroup
	wg.Add(2)
	wp.sender = &mockSender{
		SendFunc: func(payload []byte, sub *webpush.Subscription, options *webpush.Options) (*http.Response, error) {
			var update transferUpdate
			assert.NoError(t, json.Unmarshal(payload, &update))
			assert.Equal(t, req.ID, update.TransferID)
			assert.Equal(t, string(model.StatusApproved), update.Status)
			assert.Contains(t, update.Message, "excavator")
			assert.Contains(t, update.Message, "Approved")

			mu.Lock()
			endpoints = append(endpoints, sub.Endpoint)
			mu.Unlock()
			wg.Done()
			return &http.Response{
				StatusCode: http.StatusCreated,
				Body:       io.NopCloser(bytes.NewBufferString("")),
			}, nil
		},
	}

	wp.Dispatch(req.ID)
	wg.Wait()

	assert.ElementsMatch(t, []string{"https://example.com/requesting", "https://example.com/source"}, endpoints)
}

func TestWorkerPool_DeletesExpiredSubscription(t *testing.T) {
	db := newTestDB(t)
	wp := NewWorkerPool(1, db, &webpush.Options{})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	wp.Start(ctx)

	require.NoError(t, db.Create(&model.Site{ID: 10, Code: "NR", Name: "North Ridge"}).Error)
	req := model.TransferRequest{
		RequestingSiteID: 10,
		MachineType:      "crane",
		Status:           model.StatusPendingMechanical,
	}
	require.NoError(t, db.Create(&req).Error)
	subscribe(t, db, "https://example.com/expired", 10)

	var wg sync.WaitGroup
	wg.Add(1)
	wp.sender = &mockSender{
		SendFunc: func(payload []byte, sub *webpush.Subscription, options *webpush.Options) (*http.Response, error) {
			defer wg.Done()
			return &http.Response{
				StatusCode: http.StatusGone,
				Body:       io.NopCloser(bytes.NewBufferString("")),
			}, nil
		},
	}

	wp.Dispatch(req.ID)
	wg.Wait()

	// The deletion happens right after Send returns; give the worker a
	// moment to finish.
	assert.Eventually(t, func() bool {
		var count int64
		db.Model(&model.PushSubscription{}).Count(&count)
		return count == 0
	}, time.Second, 10*time.Millisecond)
}

func TestWorkerPool_NoSubscribersNoSend(t *testing.T) {
	db := newTestDB(t)
	wp := NewWorkerPool(1, db, &webpush.Options{})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	wp.Start(ctx)

	require.NoError(t, db.Create(&model.Site{ID: 10, Code: "NR", Name: "North Ridge"}).Error)
	req := model.TransferRequest{RequestingSiteID: 10, MachineType: "dozer", Status: model.StatusPendingPM}
	require.NoError(t, db.Create(&req).Error)

	sent := false
	wp.sender = &mockSender{
		SendFunc: func(payload []byte, sub *webpush.Subscription, options *webpush.Options) (*http.Response, error) {
			sent = true
			return &http.Response{StatusCode: http.StatusCreated, Body: io.NopCloser(bytes.NewBufferString(""))}, nil
		},
	}

	wp.Dispatch(req.ID)
	time.Sleep(100 * time.Millisecond)
	assert.False(t, sent)
}
