package repositories

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/bigyanadk07/BuyMeATea/internal/models"
)

// GORMPaymentRepository is a GORM implementation of PaymentRepository.
type GORMPaymentRepository struct {
	db *gorm.DB
}

// NewGORMPaymentRepository creates a new instance of GORMPaymentRepository.
func NewGORMPaymentRepository(db *gorm.DB) *GORMPaymentRepository {
	return &GORMPaymentRepository{
		db: db,
	}
}

// Create persists a new payment record.
func (r *GORMPaymentRepository) Create(payment *models.Payment) error {
	if payment.ID == "" {
		payment.ID = uuid.New().String()
	}
	if err := r.db.Create(payment).Error; err != nil {
		return fmt.Errorf("failed to create payment: %w", err)
	}
	return nil
}

// GetByProductID retrieves a payment by its client-visible order id.
func (r *GORMPaymentRepository) GetByProductID(productID string) (*models.Payment, error) {
	var payment models.Payment
	if err := r.db.First(&payment, "product_id = ?", productID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("payment with product ID %s not found: %w", productID, ErrNotFound)
		}
		return nil, fmt.Errorf("failed to get payment by product ID %s: %w", productID, err)
	}
	return &payment, nil
}

// Complete moves an INITIATED payment to COMPLETED and credits the creator's
// tea counter inside a single transaction. The payment row is locked for the
// duration so concurrent verification calls serialize and only the first one
// wins.
func (r *GORMPaymentRepository) Complete(productID, transactionID string, teas int) (*models.Payment, error) {
	var payment models.Payment
	err := r.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			First(&payment, "product_id = ?", productID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return fmt.Errorf("payment with product ID %s not found: %w", productID, ErrNotFound)
			}
			return fmt.Errorf("failed to lock payment %s: %w", productID, err)
		}

		if payment.Terminal() {
			return ErrPaymentFinalized
		}

		now := time.Now()
		payment.Status = models.PaymentCompleted
		payment.TransactionID = transactionID
		payment.VerifiedAt = &now
		if err := tx.Save(&payment).Error; err != nil {
			return fmt.Errorf("failed to complete payment %s: %w", productID, err)
		}

		if payment.UserID != "" && teas > 0 {
			res := tx.Model(&models.User{}).
				Where("id = ?", payment.UserID).
				UpdateColumn("total_teas", gorm.Expr("total_teas + ?", teas))
			if res.Error != nil {
				return fmt.Errorf("failed to credit teas to user %s: %w", payment.UserID, res.Error)
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &payment, nil
}

// MarkVerificationFailed moves an INITIATED payment to VERIFICATION_FAILED
// under the same lock discipline as Complete.
func (r *GORMPaymentRepository) MarkVerificationFailed(productID string) (*models.Payment, error) {
	var payment models.Payment
	err := r.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			First(&payment, "product_id = ?", productID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return fmt.Errorf("payment with product ID %s not found: %w", productID, ErrNotFound)
			}
			return fmt.Errorf("failed to lock payment %s: %w", productID, err)
		}

		if payment.Terminal() {
			return ErrPaymentFinalized
		}

		payment.Status = models.PaymentVerificationFailed
		if err := tx.Save(&payment).Error; err != nil {
			return fmt.Errorf("failed to mark payment %s as verification failed: %w", productID, err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &payment, nil
}

// DetachUser clears the creator reference from a deleted account's payments.
func (r *GORMPaymentRepository) DetachUser(userID string) error {
	err := r.db.Model(&models.Payment{}).
		Where("user_id = ?", userID).
		UpdateColumn("user_id", "").Error
	if err != nil {
		return fmt.Errorf("failed to detach payments for user %s: %w", userID, err)
	}
	return nil
}
