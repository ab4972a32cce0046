// Package esewa is a thin client for the eSewa legacy epay API. The hosted
// payment page is driven entirely by the browser; the only server-to-server
// call is the transaction verification POST, which answers with a small XML
// document.
package esewa

import (
	"context"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"
)

// ErrGatewayUnavailable marks failures that are worth retrying: the gateway
// could not be reached or answered with something other than a well-formed
// verification verdict. A definitive "not verified" reply is not an error.
var ErrGatewayUnavailable = errors.New("payment gateway unavailable")

// IsTransient reports whether a verification error may succeed on retry.
func IsTransient(err error) bool {
	return errors.Is(err, ErrGatewayUnavailable)
}

// Config holds eSewa connection details.
type Config struct {
	// MerchantCode is the scd field of the epay API.
	MerchantCode string
	// BaseURL selects sandbox (https://uat.esewa.com.np) or production
	// (https://esewa.com.np).
	BaseURL string
}

// Client talks to the eSewa verification endpoint.
type Client struct {
	merchantCode string
	verifyURL    string
	httpClient   *http.Client
}

// NewClient creates a new eSewa client.
func NewClient(cfg Config) *Client {
	return &Client{
		merchantCode: cfg.MerchantCode,
		verifyURL:    strings.TrimRight(cfg.BaseURL, "/") + "/epay/transrec",
		httpClient:   &http.Client{Timeout: 10 * time.Second},
	}
}

// MerchantCode returns the configured merchant id for use in the hosted-form
// parameter set.
func (c *Client) MerchantCode() string {
	return c.merchantCode
}

// verifyResponse mirrors the XML document the epay API answers with:
//
//	<response><response_code>Success</response_code></response>
type verifyResponse struct {
	XMLName      xml.Name `xml:"response"`
	ResponseCode string   `xml:"response_code"`
}

// VerifyPayment re-submits the order id, amount and gateway reference id to
// the verification endpoint. It returns (true, nil) when the gateway confirms
// the payment, (false, nil) when the gateway definitively denies it, and a
// non-nil error (transient, see IsTransient) for everything else.
func (c *Client) VerifyPayment(ctx context.Context, productID string, amount float64, refID string) (bool, error) {
	form := url.Values{
		"amt": {FormatAmount(amount)},
		"scd": {c.merchantCode},
		"rid": {refID},
		"pid": {productID},
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.verifyURL, strings.NewReader(form.Encode()))
	if err != nil {
		return false, fmt.Errorf("failed to build verification request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return false, fmt.Errorf("%w: %v", ErrGatewayUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return false, fmt.Errorf("%w: unexpected status %d", ErrGatewayUnavailable, resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<16))
	if err != nil {
		return false, fmt.Errorf("%w: reading response: %v", ErrGatewayUnavailable, err)
	}

	var parsed verifyResponse
	if err := xml.Unmarshal(body, &parsed); err != nil {
		return false, fmt.Errorf("%w: malformed response: %v", ErrGatewayUnavailable, err)
	}

	return strings.EqualFold(strings.TrimSpace(parsed.ResponseCode), "Success"), nil
}

// FormatAmount renders an amount the way the epay API expects it, without a
// trailing ".0" for whole-unit values.
func FormatAmount(amount float64) string {
	return strconv.FormatFloat(amount, 'f', -1, 64)
}
