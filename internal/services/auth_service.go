package services

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/dgrijalva/jwt-go"
	"golang.org/x/crypto/bcrypt"

	"github.com/bigyanadk07/BuyMeATea/internal/models"
	"github.com/bigyanadk07/BuyMeATea/internal/repositories"
)

var (
	// ErrInvalidCredentials covers bad email/password combinations and wrong
	// current passwords. Deliberately generic so callers cannot probe which
	// part was wrong.
	ErrInvalidCredentials = errors.New("invalid credentials")
	// ErrEmailTaken is returned on registration with an email that already
	// has an account.
	ErrEmailTaken = errors.New("email already registered")
	// ErrResetTokenInvalid covers unknown, consumed and expired reset tokens.
	ErrResetTokenInvalid = errors.New("invalid or expired reset token")
)

const resetTokenTTL = 10 * time.Minute

// AuthService handles registration, login, token issuance/verification and
// the password lifecycle.
type AuthService struct {
	userRepo     repositories.UserRepository
	activityRepo repositories.ActivityRepository
	paymentRepo  repositories.PaymentRepository
	jwtSecret    []byte
	tokenDurat   time.Duration
}

// NewAuthService creates a new AuthService.
func NewAuthService(userRepo repositories.UserRepository, activityRepo repositories.ActivityRepository,
	paymentRepo repositories.PaymentRepository, jwtSecret string, tokenDuration time.Duration) *AuthService {
	if tokenDuration <= 0 {
		tokenDuration = 24 * time.Hour
	}
	return &AuthService{
		userRepo:     userRepo,
		activityRepo: activityRepo,
		paymentRepo:  paymentRepo,
		jwtSecret:    []byte(jwtSecret),
		tokenDurat:   tokenDuration,
	}
}

// Register creates a new account, hashes the password, derives a unique
// username slug and returns a signed token. A duplicate email yields
// ErrEmailTaken and no second record.
func (s *AuthService) Register(user *models.User) (string, error) {
	if existing, err := s.userRepo.GetByEmail(user.Email); err == nil && existing != nil {
		return "", fmt.Errorf("%w: %s", ErrEmailTaken, user.Email)
	}

	hashedPassword, err := bcrypt.GenerateFromPassword([]byte(user.Password), bcrypt.DefaultCost)
	if err != nil {
		return "", fmt.Errorf("failed to hash password: %w", err)
	}
	user.Password = string(hashedPassword)

	if user.Role == "" {
		user.Role = models.RoleUser
	}
	if user.Username == "" {
		user.Username = s.ensureUniqueUsername(slugify(user.Name))
	}

	if err := s.userRepo.Create(user); err != nil {
		return "", fmt.Errorf("failed to register user: %w", err)
	}
	return s.GenerateToken(user)
}

// ensureUniqueUsername resolves slug collisions by suffixing a random token.
func (s *AuthService) ensureUniqueUsername(slug string) string {
	if slug == "" {
		slug = "creator"
	}
	if existing, err := s.userRepo.GetByUsername(slug); err == nil && existing != nil {
		slug = slug + "-" + randomHex(3)
	}
	return slug
}

// Login authenticates a user by email and returns a signed token.
func (s *AuthService) Login(email, password string) (string, *models.User, error) {
	user, err := s.userRepo.GetByEmail(email)
	if err != nil {
		return "", nil, ErrInvalidCredentials
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.Password), []byte(password)); err != nil {
		return "", nil, ErrInvalidCredentials
	}

	token, err := s.GenerateToken(user)
	if err != nil {
		return "", nil, err
	}
	return token, user, nil
}

// GenerateToken signs a JWT carrying the user id, username and expiry.
func (s *AuthService) GenerateToken(user *models.User) (string, error) {
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"user_id":  user.ID,
		"username": user.Username,
		"exp":      time.Now().Add(s.tokenDurat).Unix(),
		"iat":      time.Now().Unix(),
	})

	tokenString, err := token.SignedString(s.jwtSecret)
	if err != nil {
		return "", fmt.Errorf("failed to generate token: %w", err)
	}
	return tokenString, nil
}

// ValidateToken parses and validates a JWT token, returning the claims if valid.
func (s *AuthService) ValidateToken(tokenString string) (jwt.MapClaims, error) {
	token, err := jwt.Parse(tokenString, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return s.jwtSecret, nil
	})
	if err != nil {
		return nil, fmt.Errorf("invalid token: %w", err)
	}

	if claims, ok := token.Claims.(jwt.MapClaims); ok && token.Valid {
		return claims, nil
	}
	return nil, fmt.Errorf("invalid token")
}

// GetUser loads a user by id.
func (s *AuthService) GetUser(id string) (*models.User, error) {
	return s.userRepo.GetByID(id)
}

// ChangePassword verifies the current password before storing a new hash.
func (s *AuthService) ChangePassword(userID, currentPassword, newPassword string) error {
	user, err := s.userRepo.GetByID(userID)
	if err != nil {
		return err
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.Password), []byte(currentPassword)); err != nil {
		return ErrInvalidCredentials
	}

	hashedPassword, err := bcrypt.GenerateFromPassword([]byte(newPassword), bcrypt.DefaultCost)
	if err != nil {
		return fmt.Errorf("failed to hash password: %w", err)
	}
	user.Password = string(hashedPassword)
	return s.userRepo.Update(user)
}

// ForgotPassword issues a single-use reset token valid for ten minutes. Only
// a hash of the token is stored; the raw token and the matched user are
// handed to the caller for delivery and audit logging.
func (s *AuthService) ForgotPassword(email string) (string, *models.User, error) {
	user, err := s.userRepo.GetByEmail(email)
	if err != nil {
		return "", nil, err
	}

	resetToken := randomHex(20)
	expiry := time.Now().Add(resetTokenTTL)
	user.ResetPasswordToken = hashToken(resetToken)
	user.ResetPasswordExpire = &expiry
	if err := s.userRepo.Update(user); err != nil {
		return "", nil, fmt.Errorf("failed to store reset token: %w", err)
	}
	return resetToken, user, nil
}

// ResetPassword consumes a reset token and stores the new password hash.
func (s *AuthService) ResetPassword(token, newPassword string) (*models.User, error) {
	user, err := s.userRepo.GetByResetToken(hashToken(token))
	if err != nil {
		return nil, ErrResetTokenInvalid
	}
	if user.ResetPasswordExpire == nil || time.Now().After(*user.ResetPasswordExpire) {
		return nil, ErrResetTokenInvalid
	}

	hashedPassword, err := bcrypt.GenerateFromPassword([]byte(newPassword), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}
	user.Password = string(hashedPassword)
	user.ResetPasswordToken = ""
	user.ResetPasswordExpire = nil
	if err := s.userRepo.Update(user); err != nil {
		return nil, fmt.Errorf("failed to reset password: %w", err)
	}
	return user, nil
}

// DeleteAccount removes a user after verifying their password, clears their
// activity history and detaches their payments. Payment records themselves
// survive as the money ledger.
func (s *AuthService) DeleteAccount(userID, password string) error {
	user, err := s.userRepo.GetByID(userID)
	if err != nil {
		return err
	}
	if password != "" {
		if err := bcrypt.CompareHashAndPassword([]byte(user.Password), []byte(password)); err != nil {
			return ErrInvalidCredentials
		}
	}

	if _, err := s.activityRepo.ClearForUser(userID); err != nil {
		log.Printf("Warning: failed to clear activity history for user %s: %v", userID, err)
	}
	if err := s.paymentRepo.DetachUser(userID); err != nil {
		log.Printf("Warning: failed to detach payments for user %s: %v", userID, err)
	}
	return s.userRepo.Delete(userID)
}

// slugify lowercases a display name and collapses it into a URL-safe
// username slug.
func slugify(name string) string {
	var b strings.Builder
	lastDash := true
	for _, r := range strings.ToLower(strings.TrimSpace(name)) {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			b.WriteRune(r)
			lastDash = false
		case r == ' ' || r == '-' || r == '_' || r == '.':
			if !lastDash {
				b.WriteByte('-')
				lastDash = true
			}
		}
	}
	return strings.Trim(b.String(), "-")
}

func randomHex(n int) string {
	buf := make([]byte, n)
	if _, err := rand.Read(buf); err != nil {
		// crypto/rand failing means the platform RNG is broken; nothing
		// sensible to do but crash early.
		panic(fmt.Sprintf("crypto/rand unavailable: %v", err))
	}
	return hex.EncodeToString(buf)
}

func hashToken(token string) string {
	sum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(sum[:])
}
