package services

import (
	"crypto/rand"
	"errors"
	"fmt"
	"log"
	"math/big"
	"net/url"
	"strconv"
	"strings"
	"time"

	"bisik/internal/apperrors"
	"bisik/internal/email"
	"bisik/internal/models"
	"bisik/internal/repositories"

	"github.com/dgrijalva/jwt-go"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
)

// codeTTL is the single absolute-expiry computation for verification codes:
// a code is valid strictly before issue time + 1 hour.
const codeTTL = time.Hour

// AccountService handles registration, email verification and sign-in.
type AccountService struct {
	userRepo   repositories.UserRepository
	mailer     email.Sender
	jwtSecret  []byte
	tokenDurat time.Duration // Duration for which JWT is valid
}

// NewAccountService creates a new AccountService.
func NewAccountService(userRepo repositories.UserRepository, mailer email.Sender, jwtSecret string) *AccountService {
	return &AccountService{
		userRepo:   userRepo,
		mailer:     mailer,
		jwtSecret:  []byte(jwtSecret),
		tokenDurat: 24 * time.Hour, // Token valid for 24 hours
	}
}

// generateVerifyCode returns a uniformly random 6-digit code in
// [100000, 999999], formatted as a string. Stored and compared as a string
// with exact equality, never re-parsed as a number.
func generateVerifyCode() (string, error) {
	n, err := rand.Int(rand.Reader, big.NewInt(900000))
	if err != nil {
		return "", fmt.Errorf("failed to generate verification code: %w", err)
	}
	return strconv.Itoa(int(n.Int64()) + 100000), nil
}

// Register creates a new unverified account, or refreshes an abandoned one,
// and emails the verification code. A verified holder of the username or the
// email blocks registration; an unverified registration with the same email
// gets its password, code and expiry overwritten so the signup can be
// recovered.
func (s *AccountService) Register(username, emailAddr, password string) error {
	username = strings.TrimSpace(username)
	emailAddr = strings.TrimSpace(emailAddr)

	// A verified holder of the username blocks before anything is written.
	if _, err := s.userRepo.GetVerifiedByUsername(username); err == nil {
		return fmt.Errorf("username '%s': %w", username, apperrors.ErrUsernameTaken)
	} else if !errors.Is(err, apperrors.ErrNotFound) {
		return fmt.Errorf("failed to check username '%s': %w", username, err)
	}

	code, err := generateVerifyCode()
	if err != nil {
		return err
	}
	expiry := time.Now().Add(codeTTL)

	hashedPassword, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return fmt.Errorf("failed to hash password: %w", err)
	}

	existing, err := s.userRepo.GetByEmail(emailAddr)
	switch {
	case err == nil && existing.IsVerified:
		return fmt.Errorf("email '%s': %w", emailAddr, apperrors.ErrEmailTaken)
	case err == nil:
		// Abandoned signup: overwrite credentials and reissue the code.
		if err := s.userRepo.RefreshCredentials(existing.ID, string(hashedPassword), code, expiry); err != nil {
			return fmt.Errorf("failed to refresh registration: %w", err)
		}
	case errors.Is(err, apperrors.ErrNotFound):
		user := &models.User{
			ID:                  uuid.New().String(),
			Username:            username,
			Email:               emailAddr,
			Password:            string(hashedPassword),
			VerifyCode:          code,
			VerifyCodeExpiry:    expiry,
			IsVerified:          false,
			IsAcceptingMessages: true,
		}
		if err := s.userRepo.Create(user); err != nil {
			return fmt.Errorf("failed to register user: %w", err)
		}
	default:
		return fmt.Errorf("failed to look up email '%s': %w", emailAddr, err)
	}

	if err := s.mailer.SendVerificationEmail(email.VerificationEmail{
		To:       emailAddr,
		Username: username,
		Code:     code,
	}); err != nil {
		// The email collaborator contract: a send failure is a visible
		// registration failure, not something to swallow.
		return fmt.Errorf("%w: %v", apperrors.ErrDependency, err)
	}
	return nil
}

// CheckUsernameAvailable reports whether a candidate username is free. Only
// a verified holder blocks availability; the comparison is exact.
func (s *AccountService) CheckUsernameAvailable(username string) (bool, error) {
	username = strings.TrimSpace(username)
	_, err := s.userRepo.GetVerifiedByUsername(username)
	if err == nil {
		return false, nil
	}
	if errors.Is(err, apperrors.ErrNotFound) {
		return true, nil
	}
	return false, fmt.Errorf("failed to check username '%s': %w", username, err)
}

// VerifyCode consumes a submitted verification code. The code matches on
// exact string equality and must be submitted strictly before its expiry.
// When the code is both wrong and expired, the expired reason wins. Once
// verified, a user never becomes unverified again; re-verifying with a
// still-valid code succeeds silently.
//
// Until one signup verifies, several unverified accounts may hold the same
// username, each with its own code, so the code is matched against every
// holder rather than an arbitrary one.
func (s *AccountService) VerifyCode(username, code string) error {
	// Usernames arrive URL-encoded from the verify link.
	if decoded, err := url.QueryUnescape(username); err == nil {
		username = decoded
	}

	holders, err := s.userRepo.ListByUsername(username)
	if err != nil {
		return fmt.Errorf("failed to load user for verification: %w", err)
	}
	if len(holders) == 0 {
		return fmt.Errorf("user with username %s: %w", username, apperrors.ErrNotFound)
	}

	now := time.Now()
	anyExpired := false
	for i := range holders {
		holder := &holders[i]
		if !now.Before(holder.VerifyCodeExpiry) {
			anyExpired = true
			continue
		}
		if holder.VerifyCode != code {
			continue
		}
		if holder.IsVerified {
			return nil
		}
		// Another holder may have claimed the username while this signup
		// was still pending.
		if _, err := s.userRepo.GetVerifiedByUsername(username); err == nil {
			return fmt.Errorf("username '%s': %w", username, apperrors.ErrUsernameTaken)
		} else if !errors.Is(err, apperrors.ErrNotFound) {
			return fmt.Errorf("failed to check username '%s': %w", username, err)
		}
		if err := s.userRepo.MarkVerified(holder.ID); err != nil {
			return fmt.Errorf("failed to mark user verified: %w", err)
		}
		return nil
	}
	if anyExpired {
		return apperrors.ErrCodeExpired
	}
	return apperrors.ErrCodeInvalid
}

// ResendCode reissues a fresh verification code and emails it.
func (s *AccountService) ResendCode(username string) error {
	user, err := s.userRepo.GetByUsername(strings.TrimSpace(username))
	if err != nil {
		return fmt.Errorf("failed to load user for code resend: %w", err)
	}

	code, err := generateVerifyCode()
	if err != nil {
		return err
	}
	if err := s.userRepo.RefreshVerifyCode(user.ID, code, time.Now().Add(codeTTL)); err != nil {
		return fmt.Errorf("failed to update verification code: %w", err)
	}

	if err := s.mailer.SendVerificationEmail(email.VerificationEmail{
		To:       user.Email,
		Username: user.Username,
		Code:     code,
	}); err != nil {
		return fmt.Errorf("%w: %v", apperrors.ErrDependency, err)
	}
	return nil
}

// SignIn authenticates a verified user by username or email and returns a
// JWT token. Failures are reported uniformly so callers cannot discover
// which accounts exist.
func (s *AccountService) SignIn(identifier, password string) (string, error) {
	user, err := s.userRepo.GetByUsername(identifier)
	if err != nil {
		user, err = s.userRepo.GetByEmail(identifier)
	}
	if err != nil {
		return "", fmt.Errorf("invalid credentials: %w", apperrors.ErrUnauthorized)
	}
	if !user.IsVerified {
		return "", fmt.Errorf("invalid credentials: %w", apperrors.ErrUnauthorized)
	}

	// Compare the provided password with the hashed password
	if err := bcrypt.CompareHashAndPassword([]byte(user.Password), []byte(password)); err != nil {
		return "", fmt.Errorf("invalid credentials: %w", apperrors.ErrUnauthorized)
	}

	// Generate JWT token
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"user_id":  user.ID,
		"username": user.Username,
		"exp":      time.Now().Add(s.tokenDurat).Unix(), // Token expiration time
		"iat":      time.Now().Unix(),                   // Issued at time
	})

	tokenString, err := token.SignedString(s.jwtSecret)
	if err != nil {
		return "", fmt.Errorf("failed to generate token: %w", err)
	}

	return tokenString, nil
}

// ValidateToken parses and validates a JWT token, returning the claims if valid.
func (s *AccountService) ValidateToken(tokenString string) (jwt.MapClaims, error) {
	token, err := jwt.Parse(tokenString, func(token *jwt.Token) (interface{}, error) {
		// Validate the alg is what we expect:
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return s.jwtSecret, nil
	})

	if err != nil {
		log.Printf("Token validation error: %v", err)
		return nil, fmt.Errorf("invalid token: %w", err)
	}

	if claims, ok := token.Claims.(jwt.MapClaims); ok && token.Valid {
		return claims, nil
	}

	return nil, fmt.Errorf("invalid token")
}
