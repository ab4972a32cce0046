package models

import "time"

// Payment statuses. A payment is created as INITIATED and moves to exactly
// one terminal status when the gateway verification callback is processed.
const (
	PaymentInitiated          = "INITIATED"
	PaymentCompleted          = "COMPLETED"
	PaymentFailed             = "FAILED"
	PaymentVerificationFailed = "VERIFICATION_FAILED"
)

// Payment correlates a local tip order with the gateway's hosted payment
// page. ProductID is the client-visible order id embedded in the success
// callback URL; TransactionID is the gateway's reference id, set on
// completion.
type Payment struct {
	ID            string     `json:"id" gorm:"primaryKey;type:varchar(36)"`
	ProductID     string     `json:"productId" gorm:"uniqueIndex;type:varchar(50)"`
	UserID        string     `json:"userId,omitempty" gorm:"type:varchar(36);index"`
	SupporterID   string     `json:"supporterId,omitempty" gorm:"type:varchar(36)"`
	Amount        float64    `json:"amount"`
	TotalAmount   float64    `json:"totalAmount"`
	Status        string     `json:"status" gorm:"type:varchar(30)"`
	TransactionID string     `json:"transactionId,omitempty" gorm:"type:varchar(100)"`
	Description   string     `json:"description" gorm:"type:varchar(255)"`
	VerifiedAt    *time.Time `json:"verifiedAt,omitempty"`
	CreatedAt     time.Time  `json:"createdAt"`
	UpdatedAt     time.Time  `json:"updatedAt"`
}

// Terminal reports whether the payment has reached a final status. No
// transition out of a terminal status is allowed.
func (p *Payment) Terminal() bool {
	return p.Status != PaymentInitiated
}
