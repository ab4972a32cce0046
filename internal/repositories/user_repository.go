package repositories

import "github.com/bigyanadk07/BuyMeATea/internal/models"

// UserRepository defines the interface for user data access.
type UserRepository interface {
	Create(user *models.User) error
	GetByID(id string) (*models.User, error)
	GetByEmail(email string) (*models.User, error)
	GetByUsername(username string) (*models.User, error)
	GetByResetToken(tokenHash string) (*models.User, error)
	Update(user *models.User) error
	// List returns a name-sorted page of users plus the total count.
	List(page, limit int) ([]models.User, int64, error)
	Delete(id string) error
}
