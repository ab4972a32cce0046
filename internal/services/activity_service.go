package services

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"log"
	"math"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/bigyanadk07/BuyMeATea/internal/models"
	"github.com/bigyanadk07/BuyMeATea/internal/repositories"
	"github.com/bigyanadk07/BuyMeATea/pkg/rabbitmq"
)

// RequestContext carries the request metadata recorded with every activity.
type RequestContext struct {
	IPAddress string
	UserAgent string
}

// ActivityEntry is the formatted listing shape returned to clients.
type ActivityEntry struct {
	ID          string    `json:"id"`
	Action      string    `json:"action"`
	Description string    `json:"description"`
	Timestamp   time.Time `json:"timestamp"`
	DeviceInfo  struct {
		IPAddress string `json:"ipAddress"`
		UserAgent string `json:"userAgent"`
	} `json:"deviceInfo"`
	Details string `json:"details,omitempty"`
}

// Pagination describes a listing page.
type Pagination struct {
	Total      int64 `json:"total"`
	Page       int   `json:"page"`
	Limit      int   `json:"limit"`
	TotalPages int   `json:"totalPages"`
}

// ActivityService records and queries the account activity log. Recording is
// an explicit non-blocking side-effect channel: Log enqueues and returns
// immediately, a background worker persists each event and, when a RabbitMQ
// client is configured, publishes it to the activity queue. Both are
// best-effort; failures are logged and never propagated to the operation
// being annotated.
type ActivityService struct {
	repo      repositories.ActivityRepository
	mqClient  *rabbitmq.Client
	events    chan models.Activity
	done      chan struct{}
	closeOnce sync.Once
}

// NewActivityService creates the service and starts its worker goroutine.
func NewActivityService(repo repositories.ActivityRepository, mqClient *rabbitmq.Client) *ActivityService {
	s := &ActivityService{
		repo:     repo,
		mqClient: mqClient,
		events:   make(chan models.Activity, 256),
		done:     make(chan struct{}),
	}
	go s.run()
	return s
}

func (s *ActivityService) run() {
	defer close(s.done)
	for event := range s.events {
		if err := s.repo.Create(&event); err != nil {
			log.Printf("Warning: failed to record %s activity for user %s: %v", event.ActionType, event.UserID, err)
			continue
		}
		if s.mqClient != nil {
			body, err := json.Marshal(event)
			if err != nil {
				log.Printf("Warning: failed to marshal activity event: %v", err)
				continue
			}
			if err := s.mqClient.PublishActivity(body); err != nil {
				log.Printf("Warning: failed to publish activity event for user %s: %v", event.UserID, err)
			}
		}
	}
}

// Log enqueues an activity event without blocking. When the buffer is full
// the event is dropped with a server-side log line; the audit trail is
// best-effort, not a consistency guarantee.
func (s *ActivityService) Log(userID, actionType string, reqCtx RequestContext, details string) {
	event := models.Activity{
		ID:         uuid.New().String(),
		UserID:     userID,
		ActionType: actionType,
		IPAddress:  reqCtx.IPAddress,
		UserAgent:  reqCtx.UserAgent,
		Details:    details,
		CreatedAt:  time.Now(),
	}

	select {
	case s.events <- event:
	default:
		log.Printf("Warning: activity buffer full, dropping %s event for user %s", actionType, userID)
	}
}

// Close stops accepting events and drains the buffer.
func (s *ActivityService) Close() {
	s.closeOnce.Do(func() {
		close(s.events)
	})
	<-s.done
}

// List returns a formatted page of activities plus pagination metadata.
func (s *ActivityService) List(filter repositories.ActivityFilter) ([]ActivityEntry, *Pagination, error) {
	if filter.Page < 1 {
		filter.Page = 1
	}
	if filter.Limit < 1 {
		filter.Limit = 10
	}

	activities, total, err := s.repo.List(filter)
	if err != nil {
		return nil, nil, err
	}

	entries := make([]ActivityEntry, 0, len(activities))
	for _, a := range activities {
		entry := ActivityEntry{
			ID:          a.ID,
			Action:      a.ActionType,
			Description: models.ActionDescription(a.ActionType),
			Timestamp:   a.CreatedAt,
			Details:     a.Details,
		}
		entry.DeviceInfo.IPAddress = a.IPAddress
		entry.DeviceInfo.UserAgent = a.UserAgent
		entries = append(entries, entry)
	}

	pagination := &Pagination{
		Total:      total,
		Page:       filter.Page,
		Limit:      filter.Limit,
		TotalPages: int(math.Ceil(float64(total) / float64(filter.Limit))),
	}
	return entries, pagination, nil
}

// Clear deletes one user's entire activity history and reports the count.
func (s *ActivityService) Clear(userID string) (int64, error) {
	return s.repo.ClearForUser(userID)
}

// ExportCSV renders the full filtered history as CSV, paging through the
// repository in batches.
func (s *ActivityService) ExportCSV(filter repositories.ActivityFilter) ([]byte, error) {
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)

	if err := w.Write([]string{"timestamp", "action", "description", "ip_address", "user_agent", "details"}); err != nil {
		return nil, err
	}

	filter.Page = 1
	filter.Limit = 500
	for {
		activities, _, err := s.repo.List(filter)
		if err != nil {
			return nil, err
		}
		for _, a := range activities {
			record := []string{
				a.CreatedAt.Format(time.RFC3339),
				a.ActionType,
				models.ActionDescription(a.ActionType),
				a.IPAddress,
				a.UserAgent,
				a.Details,
			}
			if err := w.Write(record); err != nil {
				return nil, err
			}
		}
		if len(activities) < filter.Limit {
			break
		}
		filter.Page++
	}

	w.Flush()
	if err := w.Error(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
