package repositories

import (
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/bigyanadk07/BuyMeATea/internal/models"
)

// MockPaymentRepository is an in-memory implementation of PaymentRepository.
// The status transitions are guarded by a mutex the same way the GORM
// implementation guards them with a row lock, so concurrency tests exercise
// the same at-most-once semantics.
type MockPaymentRepository struct {
	payments map[string]models.Payment
	// Credited records teas credited per creator, keyed by user ID.
	Credited map[string]int
	mu       sync.Mutex
}

// NewMockPaymentRepository creates a new instance of MockPaymentRepository.
func NewMockPaymentRepository() *MockPaymentRepository {
	return &MockPaymentRepository{
		payments: make(map[string]models.Payment),
		Credited: make(map[string]int),
	}
}

// Create persists a new payment record.
func (r *MockPaymentRepository) Create(payment *models.Payment) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if payment.ID == "" {
		payment.ID = uuid.New().String()
	}
	payment.CreatedAt = time.Now()
	payment.UpdatedAt = time.Now()
	r.payments[payment.ProductID] = *payment
	return nil
}

// GetByProductID retrieves a payment by its client-visible order id.
func (r *MockPaymentRepository) GetByProductID(productID string) (*models.Payment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	payment, ok := r.payments[productID]
	if !ok {
		return nil, fmt.Errorf("payment with product ID %s not found: %w", productID, ErrNotFound)
	}
	return &payment, nil
}

// Complete conditionally moves an INITIATED payment to COMPLETED.
func (r *MockPaymentRepository) Complete(productID, transactionID string, teas int) (*models.Payment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	payment, ok := r.payments[productID]
	if !ok {
		return nil, fmt.Errorf("payment with product ID %s not found: %w", productID, ErrNotFound)
	}
	if payment.Terminal() {
		return nil, ErrPaymentFinalized
	}

	now := time.Now()
	payment.Status = models.PaymentCompleted
	payment.TransactionID = transactionID
	payment.VerifiedAt = &now
	payment.UpdatedAt = now
	r.payments[productID] = payment

	if payment.UserID != "" && teas > 0 {
		r.Credited[payment.UserID] += teas
	}
	return &payment, nil
}

// MarkVerificationFailed conditionally moves an INITIATED payment to
// VERIFICATION_FAILED.
func (r *MockPaymentRepository) MarkVerificationFailed(productID string) (*models.Payment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	payment, ok := r.payments[productID]
	if !ok {
		return nil, fmt.Errorf("payment with product ID %s not found: %w", productID, ErrNotFound)
	}
	if payment.Terminal() {
		return nil, ErrPaymentFinalized
	}

	payment.Status = models.PaymentVerificationFailed
	payment.UpdatedAt = time.Now()
	r.payments[productID] = payment
	return &payment, nil
}

// DetachUser clears the creator reference from a deleted account's payments.
func (r *MockPaymentRepository) DetachUser(userID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	for pid, payment := range r.payments {
		if payment.UserID == userID {
			payment.UserID = ""
			r.payments[pid] = payment
		}
	}
	return nil
}
