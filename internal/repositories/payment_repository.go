package repositories

import "github.com/bigyanadk07/BuyMeATea/internal/models"

// PaymentRepository defines the interface for payment data access. The
// transition methods are conditional on the record still being INITIATED so
// at most one terminal transition is ever observable, even under concurrent
// verification calls.
type PaymentRepository interface {
	Create(payment *models.Payment) error
	GetByProductID(productID string) (*models.Payment, error)
	// Complete atomically moves an INITIATED payment to COMPLETED, records
	// the gateway reference id, and credits the receiving creator's tea
	// counter in the same transaction. Returns ErrPaymentFinalized if the
	// record is already terminal.
	Complete(productID, transactionID string, teas int) (*models.Payment, error)
	// MarkVerificationFailed moves an INITIATED payment to
	// VERIFICATION_FAILED. Returns ErrPaymentFinalized if already terminal.
	MarkVerificationFailed(productID string) (*models.Payment, error)
	// DetachUser clears the creator reference from payments belonging to a
	// deleted account. Records themselves survive as the money ledger.
	DetachUser(userID string) error
}
