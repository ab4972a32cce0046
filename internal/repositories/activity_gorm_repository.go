package repositories

import (
	"fmt"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/bigyanadk07/BuyMeATea/internal/models"
)

// GORMActivityRepository is a GORM implementation of ActivityRepository.
type GORMActivityRepository struct {
	db *gorm.DB
}

// NewGORMActivityRepository creates a new instance of GORMActivityRepository.
func NewGORMActivityRepository(db *gorm.DB) *GORMActivityRepository {
	return &GORMActivityRepository{
		db: db,
	}
}

// Create appends a new activity record.
func (r *GORMActivityRepository) Create(activity *models.Activity) error {
	if activity.ID == "" {
		activity.ID = uuid.New().String()
	}
	if err := r.db.Create(activity).Error; err != nil {
		return fmt.Errorf("failed to create activity: %w", err)
	}
	return nil
}

// List returns a page of activities newest-first plus the total match count.
func (r *GORMActivityRepository) List(filter ActivityFilter) ([]models.Activity, int64, error) {
	page := filter.Page
	if page < 1 {
		page = 1
	}
	limit := filter.Limit
	if limit < 1 {
		limit = 10
	}

	q := r.db.Model(&models.Activity{}).Where("user_id = ?", filter.UserID)
	if filter.Type != "" && filter.Type != "all" {
		q = q.Where("action_type = ?", filter.Type)
	}
	if filter.StartDate != nil {
		q = q.Where("created_at >= ?", *filter.StartDate)
	}
	if filter.EndDate != nil {
		q = q.Where("created_at <= ?", *filter.EndDate)
	}

	var total int64
	if err := q.Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("failed to count activities: %w", err)
	}

	var activities []models.Activity
	err := q.Order("created_at desc").
		Offset((page - 1) * limit).
		Limit(limit).
		Find(&activities).Error
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list activities: %w", err)
	}
	return activities, total, nil
}

// ClearForUser bulk-deletes one user's activity history.
func (r *GORMActivityRepository) ClearForUser(userID string) (int64, error) {
	res := r.db.Delete(&models.Activity{}, "user_id = ?", userID)
	if res.Error != nil {
		return 0, fmt.Errorf("failed to clear activities for user %s: %w", userID, res.Error)
	}
	return res.RowsAffected, nil
}
