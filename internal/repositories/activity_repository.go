package repositories

import (
	"time"

	"github.com/bigyanadk07/BuyMeATea/internal/models"
)

// ActivityFilter narrows an activity listing. UserID is mandatory; the other
// fields are optional.
type ActivityFilter struct {
	UserID    string
	Type      string
	StartDate *time.Time
	EndDate   *time.Time
	Page      int
	Limit     int
}

// ActivityRepository defines the interface for activity log data access.
// Activities are append-only: there is no update operation.
type ActivityRepository interface {
	Create(activity *models.Activity) error
	// List returns a page of activities newest-first plus the total count of
	// records matching the filter.
	List(filter ActivityFilter) ([]models.Activity, int64, error)
	// ClearForUser bulk-deletes one user's history and reports how many
	// records were removed.
	ClearForUser(userID string) (int64, error)
}
