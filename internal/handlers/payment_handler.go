package handlers

import (
	"bytes"
	"errors"
	"log"
	"strconv"

	"github.com/gofiber/fiber/v2"

	"github.com/bigyanadk07/BuyMeATea/internal/repositories"
	"github.com/bigyanadk07/BuyMeATea/internal/services"
	"github.com/bigyanadk07/BuyMeATea/pkg/esewa"
)

// PaymentHandler handles HTTP requests for tip payments.
type PaymentHandler struct {
	paymentService *services.PaymentService
}

// NewPaymentHandler creates a new PaymentHandler.
func NewPaymentHandler(paymentService *services.PaymentService) *PaymentHandler {
	return &PaymentHandler{
		paymentService: paymentService,
	}
}

// RegisterRoutes registers the payment routes with the Fiber app. Initiation
// accepts anonymous supporters, so it sits behind the optional-auth
// middleware rather than the required one.
func (h *PaymentHandler) RegisterRoutes(router fiber.Router, authOptional fiber.Handler) {
	paymentRoutes := router.Group("/payments")
	paymentRoutes.Post("/initiate", authOptional, h.HandleInitiate)
	paymentRoutes.Post("/verify", h.HandleVerify)
}

// flexFloat unmarshals a JSON number that may arrive as a quoted string; the
// gateway redirect hands the client query-string values, which some clients
// forward verbatim.
type flexFloat float64

func (f *flexFloat) UnmarshalJSON(data []byte) error {
	data = bytes.Trim(data, `"`)
	if len(data) == 0 || string(data) == "null" {
		*f = 0
		return nil
	}
	v, err := strconv.ParseFloat(string(data), 64)
	if err != nil {
		return err
	}
	*f = flexFloat(v)
	return nil
}

// InitiateRequest represents the request body for payment initiation.
type InitiateRequest struct {
	Amount  flexFloat `json:"amount"`
	Creator string    `json:"creator"` // user id of the creator receiving the tip, optional
}

// HandleInitiate creates an INITIATED payment record and returns the
// parameter set the hosted payment form needs.
func (h *PaymentHandler) HandleInitiate(c *fiber.Ctx) error {
	var req InitiateRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"message": "Invalid request body",
			"error":   err.Error(),
		})
	}

	resp, err := h.paymentService.Initiate(req.Creator, currentUserID(c), float64(req.Amount))
	if err != nil {
		if errors.Is(err, services.ErrInvalidAmount) {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
				"message": "Valid amount is required (minimum 10)",
			})
		}
		if errors.Is(err, repositories.ErrNotFound) {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
				"message": "Creator not found",
			})
		}
		log.Printf("Payment initiation error: %v", err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"message": "Failed to initiate payment",
		})
	}

	return c.JSON(resp)
}

// VerifyRequest represents the request body for payment verification,
// echoing the query parameters the gateway redirect carried.
type VerifyRequest struct {
	OID   string    `json:"oid"`
	Amt   flexFloat `json:"amt"`
	RefID string    `json:"refId"`
}

// HandleVerify re-validates a returning payment with the gateway and applies
// the status transition.
func (h *PaymentHandler) HandleVerify(c *fiber.Ctx) error {
	var req VerifyRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"message": "Invalid request body",
			"error":   err.Error(),
		})
	}
	if req.OID == "" || req.Amt == 0 || req.RefID == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"message": "Missing required parameters",
		})
	}

	payment, err := h.paymentService.Verify(c.Context(), req.OID, float64(req.Amt), req.RefID)
	if err != nil {
		switch {
		case errors.Is(err, repositories.ErrNotFound):
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
				"success": false,
				"message": "Payment not found",
			})
		case errors.Is(err, repositories.ErrPaymentFinalized):
			resp := fiber.Map{
				"success": false,
				"message": "Payment already processed",
			}
			if payment != nil {
				resp["status"] = payment.Status
			}
			return c.Status(fiber.StatusConflict).JSON(resp)
		case errors.Is(err, services.ErrAmountMismatch), errors.Is(err, services.ErrVerificationDenied):
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
				"success": false,
				"message": "Payment verification failed",
			})
		case esewa.IsTransient(err):
			// Detail stays server-side; the record is still INITIATED and a
			// later verify may succeed.
			log.Printf("Payment verification error for %s: %v", req.OID, err)
			return c.Status(fiber.StatusBadGateway).JSON(fiber.Map{
				"success": false,
				"message": "Failed to verify payment",
			})
		default:
			log.Printf("Payment verification error for %s: %v", req.OID, err)
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
				"success": false,
				"message": "Failed to verify payment",
			})
		}
	}

	return c.JSON(fiber.Map{
		"success": true,
		"message": "Payment verified successfully",
		"payment": payment,
	})
}
