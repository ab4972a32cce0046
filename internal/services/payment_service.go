package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/sethvargo/go-retry"

	"github.com/bigyanadk07/BuyMeATea/internal/models"
	"github.com/bigyanadk07/BuyMeATea/internal/repositories"
	"github.com/bigyanadk07/BuyMeATea/pkg/esewa"
)

var (
	// ErrInvalidAmount is returned when initiation is attempted below the
	// minimum tip threshold.
	ErrInvalidAmount = errors.New("valid amount is required")
	// ErrAmountMismatch is returned when the amount presented for
	// verification does not match the initiated record.
	ErrAmountMismatch = errors.New("amount does not match the initiated payment")
	// ErrVerificationDenied is returned when the gateway definitively denies
	// the transaction.
	ErrVerificationDenied = errors.New("payment verification failed")
)

// PaymentGateway is the server-to-server verification surface of the hosted
// payment provider. Implemented by pkg/esewa.
type PaymentGateway interface {
	VerifyPayment(ctx context.Context, productID string, amount float64, refID string) (bool, error)
	MerchantCode() string
}

// InitiationResponse is the full parameter set the hosted payment form
// requires. The charge breakdown fields default to zero; tips carry no
// service, tax or delivery component.
type InitiationResponse struct {
	Amount         float64 `json:"amount"`
	TotalAmount    float64 `json:"totalAmount"`
	ProductID      string  `json:"productId"`
	MerchantID     string  `json:"merchantId"`
	SuccessURL     string  `json:"successUrl"`
	FailureURL     string  `json:"failureUrl"`
	ServiceCharge  float64 `json:"serviceCharge"`
	TaxAmount      float64 `json:"taxAmount"`
	DeliveryCharge float64 `json:"deliveryCharge"`
}

// PaymentService handles tip initiation and gateway verification.
type PaymentService struct {
	paymentRepo  repositories.PaymentRepository
	userRepo     repositories.UserRepository
	gateway      PaymentGateway
	activity     *ActivityService
	appBaseURL   string
	teaUnitPrice float64
	minAmount    float64
}

// NewPaymentService creates a new PaymentService. activity may be nil, which
// skips the tea-received audit entry.
func NewPaymentService(paymentRepo repositories.PaymentRepository, userRepo repositories.UserRepository,
	gateway PaymentGateway, activity *ActivityService, appBaseURL string, teaUnitPrice, minAmount float64) *PaymentService {
	return &PaymentService{
		paymentRepo:  paymentRepo,
		userRepo:     userRepo,
		gateway:      gateway,
		activity:     activity,
		appBaseURL:   appBaseURL,
		teaUnitPrice: teaUnitPrice,
		minAmount:    minAmount,
	}
}

// Initiate validates the tip amount, persists an INITIATED record under a
// fresh order id and returns the hosted-form parameter set. creatorID names
// the creator receiving the tip and may be empty; supporterID is the
// authenticated supporter, if any.
func (s *PaymentService) Initiate(creatorID, supporterID string, amount float64) (*InitiationResponse, error) {
	if amount < s.minAmount {
		return nil, fmt.Errorf("%w (minimum %v)", ErrInvalidAmount, s.minAmount)
	}
	if creatorID != "" {
		if _, err := s.userRepo.GetByID(creatorID); err != nil {
			return nil, err
		}
	}

	productID := "TEA-" + uuid.New().String()
	totalAmount := amount // service/delivery/tax charges default to zero

	payment := &models.Payment{
		ProductID:   productID,
		UserID:      creatorID,
		SupporterID: supporterID,
		Amount:      amount,
		TotalAmount: totalAmount,
		Status:      models.PaymentInitiated,
		Description: "Buy Me a Tea Donation",
	}
	if err := s.paymentRepo.Create(payment); err != nil {
		return nil, fmt.Errorf("failed to create payment record: %w", err)
	}

	return &InitiationResponse{
		Amount:      amount,
		TotalAmount: totalAmount,
		ProductID:   productID,
		MerchantID:  s.gateway.MerchantCode(),
		SuccessURL:  fmt.Sprintf("%s/payment/success?oid=%s", s.appBaseURL, productID),
		FailureURL:  s.appBaseURL + "/payment/failure",
	}, nil
}

// Verify re-submits the order id, amount and gateway reference to the
// gateway's verification endpoint and applies exactly one terminal status
// transition:
//
//   - any record already terminal yields repositories.ErrPaymentFinalized and
//     no state change, so replayed verification calls are rejected;
//   - a tampered amount marks the record VERIFICATION_FAILED, never COMPLETED;
//   - a definitive gateway denial marks it VERIFICATION_FAILED with no retry;
//   - transient gateway failures are retried with bounded backoff and, if
//     still failing, leave the record INITIATED so a later call can succeed.
//
// On completion the creator's tea counter is credited in the same database
// transaction as the status transition.
func (s *PaymentService) Verify(ctx context.Context, productID string, amount float64, refID string) (*models.Payment, error) {
	payment, err := s.paymentRepo.GetByProductID(productID)
	if err != nil {
		return nil, err
	}
	if payment.Terminal() {
		return payment, repositories.ErrPaymentFinalized
	}

	if payment.Amount != amount {
		failed, err := s.paymentRepo.MarkVerificationFailed(productID)
		if err != nil {
			return nil, err
		}
		return failed, ErrAmountMismatch
	}

	var confirmed bool
	backoff := retry.WithMaxRetries(3, retry.NewExponential(200*time.Millisecond))
	err = retry.Do(ctx, backoff, func(ctx context.Context) error {
		ok, verr := s.gateway.VerifyPayment(ctx, productID, amount, refID)
		if verr != nil {
			if esewa.IsTransient(verr) {
				return retry.RetryableError(verr)
			}
			return verr
		}
		confirmed = ok
		return nil
	})
	if err != nil {
		// Record stays INITIATED; the caller may verify again later.
		return nil, fmt.Errorf("verification call failed: %w", err)
	}

	if !confirmed {
		failed, err := s.paymentRepo.MarkVerificationFailed(productID)
		if err != nil {
			return nil, err
		}
		return failed, ErrVerificationDenied
	}

	teas := 0
	if s.teaUnitPrice > 0 {
		teas = int(payment.TotalAmount / s.teaUnitPrice)
	}

	completed, err := s.paymentRepo.Complete(productID, refID, teas)
	if err != nil {
		return nil, err
	}

	if completed.UserID != "" && s.activity != nil {
		s.activity.Log(completed.UserID, models.ActionTeaReceived, RequestContext{},
			fmt.Sprintf("received %d tea(s), order %s", teas, productID))
	}
	return completed, nil
}
