package telematics

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/url"
	"time"

	"fleetops-backend/config"
	"fleetops-backend/internal/store"
)

// Service orchestrates the periodic fleet feed sync: it pulls the machine
// inventory and usage state from the telematics provider and delegates
// persistence to the store.
type Service struct {
	cfg    *config.Config
	store  store.Store
	client *http.Client
}

// NewService creates and initializes a new telematics sync service.
func NewService(cfg *config.Config, s store.Store) *Service {
	var transport http.RoundTripper = &http.Transport{}
	if cfg.Telematics.HTTPProxy != "" {
		proxyURL, err := url.Parse(cfg.Telematics.HTTPProxy)
		if err != nil {
			log.Printf("Warning: Invalid proxy URL %q: %v. Sync will not use a proxy.", cfg.Telematics.HTTPProxy, err)
		} else {
			transport = &http.Transport{Proxy: http.ProxyURL(proxyURL)}
		}
	}

	return &Service{
		cfg:   cfg,
		store: s,
		client: &http.Client{
			Transport: transport,
			Timeout:   30 * time.Second,
		},
	}
}

// getStateType classifies the provider's raw state code.
func (s *Service) getStateType(stateCode int) store.UnitStateType {
	for _, activeVal := range s.cfg.Telematics.StateActiveValues {
		if stateCode == activeVal {
			return store.StateTypeActive
		}
	}
	for _, idleVal := range s.cfg.Telematics.StateIdleValues {
		if stateCode == idleVal {
			return store.StateTypeIdle
		}
	}
	for _, downVal := range s.cfg.Telematics.StateDownValues {
		if stateCode == downVal {
			return store.StateTypeDown
		}
	}
	return store.StateTypeUnknown
}

// Run starts the sync process in a loop.
func (s *Service) Run(ctx context.Context) {
	if !s.cfg.Telematics.Enabled {
		log.Println("Telematics sync is disabled. Not starting.")
		return
	}
	log.Println("Starting telematics sync service...")

	s.SyncOnce(ctx)

	timer := time.NewTimer(s.cfg.Telematics.Interval)
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			log.Println("Telematics sync service shutting down.")
			return
		case <-timer.C:
			s.SyncOnce(ctx)
			timer.Reset(s.cfg.Telematics.Interval)
		}
	}
}

// SyncOnce performs a single round of feed fetching and calls the store to
// persist changes.
func (s *Service) SyncOnce(ctx context.Context) {
	log.Println("Executing sync cycle...")
	now := time.Now().UTC()

	// Step 1: Fetch all units from the provider
	var allItems []store.FeedItem
	total := 1
	pageSize := s.cfg.Telematics.Request.PageSize
	var fetchErr error
	for page := 1; (page-1)*pageSize < total; page++ {
		resp, err := s.fetchPage(ctx, page)
		if err != nil {
			log.Printf("Error fetching page %d: %v", page, err)
			fetchErr = err
			break
		}
		if resp.Data.Total == 0 || len(resp.Data.Items) == 0 {
			break
		}
		total = resp.Data.Total
		allItems = append(allItems, resp.Data.Items...)
		log.Printf("Fetched page %d/%d, total units so far: %d", page, (total/pageSize)+1, len(allItems))
	}

	// If the fetch failed outright, abort rather than syncing partial state.
	if fetchErr != nil && len(allItems) == 0 {
		log.Println("Sync cycle aborted due to fetch error with no units retrieved.")
		return
	}

	for i := range allItems {
		parsedTime, err := s.parseTimestamp(allItems[i].LastSeen)
		if err != nil {
			log.Printf("Warning: could not parse lastSeen for unit %d: %v", allItems[i].ID, err)
			continue
		}
		allItems[i].LastSeenParsed = parsedTime
	}

	if len(allItems) == 0 {
		log.Println("Sync cycle finished: no units to process.")
		return
	}

	// Step 2: Delegate site and machine metadata to the store layer
	if err := s.store.UpsertSitesAndMachines(ctx, allItems); err != nil {
		log.Printf("Error processing sites and machines: %v", err)
		return
	}

	// Step 3: Delegate usage snapshots to the store layer
	if err := s.store.RecordUsage(ctx, now, allItems, s.getStateType); err != nil {
		log.Printf("Error recording usage snapshots: %v", err)
	}

	log.Println("Sync cycle finished.")
}

// parseTimestamp converts the provider's timestamp string into a
// time.Time, respecting the configured timezone.
func (s *Service) parseTimestamp(tsStr *string) (*time.Time, error) {
	if tsStr == nil || *tsStr == "" {
		return nil, nil
	}

	loc, err := time.LoadLocation(s.cfg.Telematics.Timezone)
	if err != nil {
		return nil, fmt.Errorf("failed to load timezone %q: %w", s.cfg.Telematics.Timezone, err)
	}

	layout := "2006-01-02 15:04:05" // The layout of the timestamp from the provider
	parsedTime, err := time.ParseInLocation(layout, *tsStr, loc)
	if err != nil {
		return nil, fmt.Errorf("failed to parse timestamp %q: %w", *tsStr, err)
	}

	return &parsedTime, nil
}

// fetchPage fetches a single page of unit data from the provider.
func (s *Service) fetchPage(ctx context.Context, page int) (*FeedResponse, error) {
	payload := make(map[string]any)
	for k, v := range s.cfg.Telematics.Request.Payload {
		payload[k] = v
	}
	payload["page"] = page

	jsonBody, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.cfg.Telematics.Request.URL, bytes.NewBuffer(jsonBody))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	for key, value := range s.cfg.Telematics.Request.Headers {
		req.Header.Set(key, value)
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("http request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("received non-200 status code: %d", resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response body: %w", err)
	}

	var feedResp FeedResponse
	if err := json.Unmarshal(body, &feedResp); err != nil {
		return nil, fmt.Errorf("failed to unmarshal feed response: %w", err)
	}

	if feedResp.Code != 0 {
		return nil, fmt.Errorf("provider returned non-zero application code: %d", feedResp.Code)
	}

	return &feedResp, nil
}
