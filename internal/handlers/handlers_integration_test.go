package handlers_test

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/bigyanadk07/BuyMeATea/internal/handlers"
	"github.com/bigyanadk07/BuyMeATea/internal/middleware"
	"github.com/bigyanadk07/BuyMeATea/internal/models"
	"github.com/bigyanadk07/BuyMeATea/internal/repositories"
	"github.com/bigyanadk07/BuyMeATea/internal/services"
	"github.com/bigyanadk07/BuyMeATea/pkg/esewa"
)

const testJWTSecret = "test_jwt_secret"

// setupApp builds the full stack against a named in-memory SQLite database.
// esewaURL points the gateway client at a test server; empty is fine for
// tests that never verify a payment.
func setupApp(t *testing.T, dbName, esewaURL string) *fiber.App {
	t.Helper()

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", dbName)
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	assert.NoError(t, err)
	assert.NoError(t, db.AutoMigrate(&models.User{}, &models.Activity{}, &models.Payment{}))

	userRepo := repositories.NewGORMUserRepository(db)
	activityRepo := repositories.NewGORMActivityRepository(db)
	paymentRepo := repositories.NewGORMPaymentRepository(db)

	activityService := services.NewActivityService(activityRepo, nil)
	t.Cleanup(activityService.Close)

	authService := services.NewAuthService(userRepo, activityRepo, paymentRepo, testJWTSecret, time.Hour)
	profileService := services.NewProfileService(userRepo, nil)
	gateway := esewa.NewClient(esewa.Config{MerchantCode: "EPAYTEST", BaseURL: esewaURL})
	paymentService := services.NewPaymentService(paymentRepo, userRepo, gateway, activityService,
		"http://localhost:3000", 10, 10)

	app := fiber.New()
	apiV1 := app.Group("/api/v1")

	authRequired := middleware.AuthRequired(authService)
	authOptional := middleware.AuthOptional(authService)

	handlers.NewAuthHandler(authService, activityService).RegisterRoutes(apiV1, authRequired)
	handlers.NewProfileHandler(profileService, activityService).RegisterRoutes(apiV1, authRequired)
	handlers.NewActivityHandler(activityService).RegisterRoutes(apiV1, authRequired)
	handlers.NewPaymentHandler(paymentService).RegisterRoutes(apiV1, authOptional)

	return app
}

// TestMain runs setup and teardown for all tests
func TestMain(m *testing.M) {
	// Suppress logging during tests for cleaner output
	log.SetOutput(io.Discard)
	code := m.Run()
	os.Exit(code)
}

func postJSON(t *testing.T, app *fiber.App, path, token string, body interface{}) *http.Response {
	t.Helper()
	return requestJSON(t, app, http.MethodPost, path, token, body)
}

func requestJSON(t *testing.T, app *fiber.App, method, path, token string, body interface{}) *http.Response {
	t.Helper()
	var reader io.Reader
	if body != nil {
		jsonBody, err := json.Marshal(body)
		assert.NoError(t, err)
		reader = bytes.NewReader(jsonBody)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := app.Test(req, -1)
	assert.NoError(t, err)
	return resp
}

func decodeBody(t *testing.T, resp *http.Response) map[string]interface{} {
	t.Helper()
	defer resp.Body.Close()
	var out map[string]interface{}
	assert.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	return out
}

// registerUser registers an account and returns its token and username slug.
func registerUser(t *testing.T, app *fiber.App, name, email string) (string, string) {
	t.Helper()
	resp := postJSON(t, app, "/api/v1/auth/register", "", map[string]string{
		"name":     name,
		"email":    email,
		"password": "password123",
	})
	assert.Equal(t, http.StatusCreated, resp.StatusCode)
	body := decodeBody(t, resp)
	token, _ := body["token"].(string)
	assert.NotEmpty(t, token)
	user, _ := body["user"].(map[string]interface{})
	username, _ := user["username"].(string)
	return token, username
}

// countActivitiesOfType lists the account's history filtered to one action
// type and returns how many entries came back.
func countActivitiesOfType(t *testing.T, app *fiber.App, token, actionType string) int {
	t.Helper()
	resp := requestJSON(t, app, http.MethodGet, "/api/v1/activities/?type="+actionType, token, nil)
	if resp.StatusCode != http.StatusOK {
		resp.Body.Close()
		return -1
	}
	body := decodeBody(t, resp)
	data, _ := body["data"].([]interface{})
	return len(data)
}

func TestAuthRegisterAndLogin(t *testing.T) {
	app := setupApp(t, "auth_flow", "")

	token, username := registerUser(t, app, "Asha Creator", "asha@example.com")
	assert.Equal(t, "asha-creator", username)

	// Duplicate email is rejected with a conflict, whatever the name.
	resp := postJSON(t, app, "/api/v1/auth/register", "", map[string]string{
		"name":     "Someone Else",
		"email":    "asha@example.com",
		"password": "password456",
	})
	assert.Equal(t, http.StatusConflict, resp.StatusCode)
	resp.Body.Close()

	// Login with the right password.
	resp = postJSON(t, app, "/api/v1/auth/login", "", map[string]string{
		"email":    "asha@example.com",
		"password": "password123",
	})
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	body := decodeBody(t, resp)
	assert.NotEmpty(t, body["token"])

	// Two wrong-password attempts in a row both get the same generic 401;
	// there is no lockout and no hint about the email.
	for i := 0; i < 2; i++ {
		resp = postJSON(t, app, "/api/v1/auth/login", "", map[string]string{
			"email":    "asha@example.com",
			"password": "wrongpassword",
		})
		assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
		body = decodeBody(t, resp)
		assert.Equal(t, "Invalid credentials", body["message"])
	}

	// The issued token works against /auth/me.
	resp = requestJSON(t, app, http.MethodGet, "/api/v1/auth/me", token, nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	body = decodeBody(t, resp)
	user, _ := body["user"].(map[string]interface{})
	assert.Equal(t, "asha@example.com", user["email"])
	// The password hash never leaves the server.
	_, leaked := user["password"]
	assert.False(t, leaked)
}

func TestAuthProtectedRoutesRequireToken(t *testing.T) {
	app := setupApp(t, "auth_protected", "")

	for _, route := range []struct {
		method string
		path   string
	}{
		{http.MethodGet, "/api/v1/auth/me"},
		{http.MethodGet, "/api/v1/profile/"},
		{http.MethodGet, "/api/v1/activities/"},
		{http.MethodDelete, "/api/v1/activities/clear"},
	} {
		resp := requestJSON(t, app, route.method, route.path, "", nil)
		assert.Equal(t, http.StatusUnauthorized, resp.StatusCode, route.path)
		resp.Body.Close()
	}
}

func TestPasswordChangeAndReset(t *testing.T) {
	app := setupApp(t, "auth_password", "")

	token, _ := registerUser(t, app, "Password User", "pw@example.com")

	// Change password with the wrong current one.
	resp := requestJSON(t, app, http.MethodPut, "/api/v1/auth/change-password", token, map[string]string{
		"currentPassword": "notmypassword",
		"newPassword":     "password456",
	})
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	resp.Body.Close()

	// And with the right one.
	resp = requestJSON(t, app, http.MethodPut, "/api/v1/auth/change-password", token, map[string]string{
		"currentPassword": "password123",
		"newPassword":     "password456",
	})
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	resp.Body.Close()

	resp = postJSON(t, app, "/api/v1/auth/login", "", map[string]string{
		"email":    "pw@example.com",
		"password": "password456",
	})
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	resp.Body.Close()

	// Forgot-password issues a token that resets the account once.
	resp = postJSON(t, app, "/api/v1/auth/forgot-password", "", map[string]string{
		"email": "pw@example.com",
	})
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	body := decodeBody(t, resp)
	resetToken, _ := body["resetToken"].(string)
	assert.NotEmpty(t, resetToken)

	// The request is a public route; the history entry must still land on
	// the account matched by email.
	assert.Eventually(t, func() bool {
		return countActivitiesOfType(t, app, token, models.ActionPasswordResetRequest) == 1
	}, 2*time.Second, 20*time.Millisecond)

	resp = postJSON(t, app, "/api/v1/auth/reset-password/"+resetToken, "", map[string]string{
		"password": "password789",
	})
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	resp.Body.Close()

	// The token is consumed; replaying it fails.
	resp = postJSON(t, app, "/api/v1/auth/reset-password/"+resetToken, "", map[string]string{
		"password": "password000",
	})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	resp.Body.Close()

	resp = postJSON(t, app, "/api/v1/auth/login", "", map[string]string{
		"email":    "pw@example.com",
		"password": "password789",
	})
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	resp.Body.Close()
}

func TestProfileEndpoints(t *testing.T) {
	app := setupApp(t, "profile_flow", "")

	token, username := registerUser(t, app, "Profile User", "profile@example.com")

	// Bio of exactly 250 characters is accepted over HTTP.
	bio := strings.Repeat("a", 250)
	resp := requestJSON(t, app, http.MethodPut, "/api/v1/profile/update-bio", token, map[string]string{"bio": bio})
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	body := decodeBody(t, resp)
	user, _ := body["user"].(map[string]interface{})
	assert.Equal(t, bio, user["bio"])

	// 251 characters is not.
	resp = requestJSON(t, app, http.MethodPut, "/api/v1/profile/update-bio", token, map[string]string{
		"bio": strings.Repeat("a", 251),
	})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	resp.Body.Close()

	// Both legacy social payload shapes land in the same canonical set, the
	// "social" shape winning where they overlap.
	resp = requestJSON(t, app, http.MethodPut, "/api/v1/profile/update-social", token, map[string]interface{}{
		"links":  map[string]string{"instagram": "https://instagram.com/from-links", "youtube": "https://youtube.com/@links"},
		"social": map[string]string{"instagram": "https://instagram.com/from-social"},
	})
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	body = decodeBody(t, resp)
	user, _ = body["user"].(map[string]interface{})
	social, _ := user["social"].(map[string]interface{})
	assert.Equal(t, "https://instagram.com/from-social", social["instagram"])
	assert.Equal(t, "https://youtube.com/@links", social["youtube"])

	// The public creator page is reachable without a token and hides
	// account internals.
	resp = requestJSON(t, app, http.MethodGet, "/api/v1/profile/creator/"+username, "", nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	view := decodeBody(t, resp)
	assert.Equal(t, "Profile User", view["name"])
	assert.Equal(t, bio, view["bio"])
	_, hasEmail := view["email"]
	assert.False(t, hasEmail)
	_, hasID := view["id"]
	assert.False(t, hasID)

	// Unknown creator slug.
	resp = requestJSON(t, app, http.MethodGet, "/api/v1/profile/creator/nobody-here", "", nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	resp.Body.Close()

	// Public listing includes the creator.
	resp = requestJSON(t, app, http.MethodGet, "/api/v1/profile/all", "", nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	body = decodeBody(t, resp)
	creators, _ := body["creators"].([]interface{})
	assert.Len(t, creators, 1)

	// No picture has been uploaded yet.
	resp = requestJSON(t, app, http.MethodGet, "/api/v1/profile/profile-pic", token, nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	resp.Body.Close()

	// Uploads are rejected while no object store is configured.
	req := httptest.NewRequest(http.MethodDelete, "/api/v1/profile/delete-profile-pic", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	resp, err := app.Test(req, -1)
	assert.NoError(t, err)
	assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)
	resp.Body.Close()
}

func TestPaymentFlow(t *testing.T) {
	gatewayServer := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("<response><response_code>Success</response_code></response>"))
	}))
	defer gatewayServer.Close()

	app := setupApp(t, "payment_flow", gatewayServer.URL)

	creatorToken, creatorUsername := registerUser(t, app, "Tea Creator", "creator@example.com")

	// The creator's own id, for addressing the tip.
	resp := requestJSON(t, app, http.MethodGet, "/api/v1/auth/me", creatorToken, nil)
	body := decodeBody(t, resp)
	creator, _ := body["user"].(map[string]interface{})
	creatorID, _ := creator["id"].(string)
	assert.NotEmpty(t, creatorID)

	// An anonymous supporter initiates a 100 rupee tip. Amounts may arrive
	// as strings; the redirect hands clients query-string values.
	resp = postJSON(t, app, "/api/v1/payments/initiate", "", map[string]interface{}{
		"amount":  "100",
		"creator": creatorID,
	})
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	initResp := decodeBody(t, resp)
	productID, _ := initResp["productId"].(string)
	assert.True(t, strings.HasPrefix(productID, "TEA-"))
	assert.Equal(t, "EPAYTEST", initResp["merchantId"])
	assert.Equal(t, float64(100), initResp["totalAmount"])
	assert.Contains(t, initResp["successUrl"], "oid="+productID)

	// Below the minimum.
	resp = postJSON(t, app, "/api/v1/payments/initiate", "", map[string]interface{}{"amount": 5})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	resp.Body.Close()

	// Verification completes the payment.
	resp = postJSON(t, app, "/api/v1/payments/verify", "", map[string]interface{}{
		"oid":   productID,
		"amt":   100,
		"refId": "REF-001",
	})
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	body = decodeBody(t, resp)
	assert.Equal(t, true, body["success"])
	payment, _ := body["payment"].(map[string]interface{})
	assert.Equal(t, models.PaymentCompleted, payment["status"])
	assert.Equal(t, "REF-001", payment["transactionId"])

	// Replaying the callback is rejected and changes nothing.
	resp = postJSON(t, app, "/api/v1/payments/verify", "", map[string]interface{}{
		"oid":   productID,
		"amt":   100,
		"refId": "REF-002",
	})
	assert.Equal(t, http.StatusConflict, resp.StatusCode)
	body = decodeBody(t, resp)
	assert.Equal(t, models.PaymentCompleted, body["status"])

	// The creator's tea counter reflects exactly one credit: 100 rupees at
	// 10 per tea.
	resp = requestJSON(t, app, http.MethodGet, "/api/v1/profile/creator/"+creatorUsername, "", nil)
	view := decodeBody(t, resp)
	assert.Equal(t, float64(10), view["totalTeas"])

	// A tampered amount can never complete a payment.
	resp = postJSON(t, app, "/api/v1/payments/initiate", "", map[string]interface{}{
		"amount":  200,
		"creator": creatorID,
	})
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	initResp = decodeBody(t, resp)
	tamperedID, _ := initResp["productId"].(string)

	resp = postJSON(t, app, "/api/v1/payments/verify", "", map[string]interface{}{
		"oid":   tamperedID,
		"amt":   999,
		"refId": "REF-003",
	})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	resp.Body.Close()

	// Even the honest amount cannot resurrect it afterwards.
	resp = postJSON(t, app, "/api/v1/payments/verify", "", map[string]interface{}{
		"oid":   tamperedID,
		"amt":   200,
		"refId": "REF-003",
	})
	assert.Equal(t, http.StatusConflict, resp.StatusCode)
	resp.Body.Close()

	// Unknown order id.
	resp = postJSON(t, app, "/api/v1/payments/verify", "", map[string]interface{}{
		"oid":   "TEA-does-not-exist",
		"amt":   100,
		"refId": "REF-004",
	})
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	resp.Body.Close()
}

func TestActivityEndpoints(t *testing.T) {
	app := setupApp(t, "activity_flow", "")

	token, _ := registerUser(t, app, "Activity User", "activity@example.com")

	// Registration and a login land in the history; recording is
	// asynchronous, so poll.
	resp := postJSON(t, app, "/api/v1/auth/login", "", map[string]string{
		"email":    "activity@example.com",
		"password": "password123",
	})
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	resp.Body.Close()

	countActivities := func() int {
		resp := requestJSON(t, app, http.MethodGet, "/api/v1/activities/", token, nil)
		if resp.StatusCode != http.StatusOK {
			resp.Body.Close()
			return -1
		}
		body := decodeBody(t, resp)
		data, _ := body["data"].([]interface{})
		return len(data)
	}
	assert.Eventually(t, func() bool { return countActivities() == 2 }, 2*time.Second, 20*time.Millisecond)

	// Type filtering.
	resp = requestJSON(t, app, http.MethodGet, "/api/v1/activities/?type="+models.ActionLogin, token, nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	body := decodeBody(t, resp)
	data, _ := body["data"].([]interface{})
	assert.Len(t, data, 1)
	entry, _ := data[0].(map[string]interface{})
	assert.Equal(t, models.ActionLogin, entry["action"])
	assert.NotEmpty(t, entry["description"])

	// CSV export.
	resp = requestJSON(t, app, http.MethodGet, "/api/v1/activities/export", token, nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "text/csv", resp.Header.Get(fiber.HeaderContentType))
	assert.Contains(t, resp.Header.Get(fiber.HeaderContentDisposition), "activity-history.csv")
	csvBody, err := io.ReadAll(resp.Body)
	resp.Body.Close()
	assert.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(string(csvBody)), "\n")
	assert.Len(t, lines, 3)
	assert.Equal(t, "timestamp,action,description,ip_address,user_agent,details", lines[0])

	// Clearing reports the removed count and empties the listing.
	resp = requestJSON(t, app, http.MethodDelete, "/api/v1/activities/clear", token, nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	body = decodeBody(t, resp)
	assert.Equal(t, float64(2), body["count"])
	assert.Equal(t, 0, countActivities())
}

func TestDeleteAccount(t *testing.T) {
	app := setupApp(t, "delete_flow", "")

	token, username := registerUser(t, app, "Leaving User", "leaving@example.com")

	// Wrong password blocks deletion.
	resp := requestJSON(t, app, http.MethodDelete, "/api/v1/auth/delete-account", token, map[string]string{
		"password": "wrongpassword",
	})
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	resp.Body.Close()

	// Wait for the registration entry so the worker has demonstrably
	// drained, then confirm the rejected attempt left no deletion record.
	assert.Eventually(t, func() bool {
		return countActivitiesOfType(t, app, token, models.ActionAccountCreated) == 1
	}, 2*time.Second, 20*time.Millisecond)
	assert.Equal(t, 0, countActivitiesOfType(t, app, token, models.ActionAccountDeleted))

	resp = requestJSON(t, app, http.MethodDelete, "/api/v1/auth/delete-account", token, map[string]string{
		"password": "password123",
	})
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	resp.Body.Close()

	// The account and its public page are gone.
	resp = postJSON(t, app, "/api/v1/auth/login", "", map[string]string{
		"email":    "leaving@example.com",
		"password": "password123",
	})
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	resp.Body.Close()

	resp = requestJSON(t, app, http.MethodGet, "/api/v1/profile/creator/"+username, "", nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	resp.Body.Close()
}
