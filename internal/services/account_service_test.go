package services_test

import (
	"fmt"
	"io"
	"log"
	"os"
	"regexp"
	"testing"
	"time"

	"bisik/internal/apperrors"
	"bisik/internal/email"
	"bisik/internal/models"
	"bisik/internal/services"

	"github.com/dgrijalva/jwt-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"golang.org/x/crypto/bcrypt"
)

// MockUserRepository is a mock implementation of repositories.UserRepository
type MockUserRepository struct {
	mock.Mock
}

func (m *MockUserRepository) Create(user *models.User) error {
	args := m.Called(user)
	return args.Error(0)
}

func (m *MockUserRepository) GetByUsername(username string) (*models.User, error) {
	args := m.Called(username)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.User), args.Error(1)
}

func (m *MockUserRepository) ListByUsername(username string) ([]models.User, error) {
	args := m.Called(username)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.User), args.Error(1)
}

func (m *MockUserRepository) GetByEmail(emailAddr string) (*models.User, error) {
	args := m.Called(emailAddr)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.User), args.Error(1)
}

func (m *MockUserRepository) GetByID(id string) (*models.User, error) {
	args := m.Called(id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.User), args.Error(1)
}

func (m *MockUserRepository) GetVerifiedByUsername(username string) (*models.User, error) {
	args := m.Called(username)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.User), args.Error(1)
}

func (m *MockUserRepository) RefreshCredentials(id, passwordHash, verifyCode string, expiry time.Time) error {
	args := m.Called(id, passwordHash, verifyCode, expiry)
	return args.Error(0)
}

func (m *MockUserRepository) RefreshVerifyCode(id, verifyCode string, expiry time.Time) error {
	args := m.Called(id, verifyCode, expiry)
	return args.Error(0)
}

func (m *MockUserRepository) MarkVerified(id string) error {
	args := m.Called(id)
	return args.Error(0)
}

func (m *MockUserRepository) SetAcceptingMessages(id string, accepting bool) error {
	args := m.Called(id, accepting)
	return args.Error(0)
}

// MockMailer is a mock implementation of email.Sender
type MockMailer struct {
	mock.Mock
}

func (m *MockMailer) SendVerificationEmail(mail email.VerificationEmail) error {
	args := m.Called(mail)
	return args.Error(0)
}

var notFoundErr = fmt.Errorf("test: %w", apperrors.ErrNotFound)

var sixDigits = regexp.MustCompile(`^[1-9][0-9]{5}$`)

// TestMain is used to setup test environment
func TestMain(m *testing.M) {
	// Suppress logging during tests for cleaner output
	log.SetOutput(io.Discard)
	code := m.Run()
	os.Exit(code)
}

func TestAccountService_Register_NewUser(t *testing.T) {
	mockRepo := new(MockUserRepository)
	mockMailer := new(MockMailer)
	accountService := services.NewAccountService(mockRepo, mockMailer, "test_jwt_secret")

	mockRepo.On("GetVerifiedByUsername", "alice").Return(nil, notFoundErr).Once()
	mockRepo.On("GetByEmail", "alice@example.com").Return(nil, notFoundErr).Once()

	var created *models.User
	mockRepo.On("Create", mock.AnythingOfType("*models.User")).Run(func(args mock.Arguments) {
		created = args.Get(0).(*models.User)
	}).Return(nil).Once()

	var sent email.VerificationEmail
	mockMailer.On("SendVerificationEmail", mock.AnythingOfType("email.VerificationEmail")).Run(func(args mock.Arguments) {
		sent = args.Get(0).(email.VerificationEmail)
	}).Return(nil).Once()

	err := accountService.Register("alice", "alice@example.com", "password123")
	assert.NoError(t, err)
	mockRepo.AssertExpectations(t)
	mockMailer.AssertExpectations(t)

	// New accounts start unverified with the gate open and a fresh 6-digit
	// code expiring an hour out.
	assert.False(t, created.IsVerified)
	assert.True(t, created.IsAcceptingMessages)
	assert.Regexp(t, sixDigits, created.VerifyCode)
	assert.WithinDuration(t, time.Now().Add(time.Hour), created.VerifyCodeExpiry, 5*time.Second)

	// The stored password is a bcrypt hash of the submitted one.
	assert.NoError(t, bcrypt.CompareHashAndPassword([]byte(created.Password), []byte("password123")))

	// The emailed code is the stored code.
	assert.Equal(t, created.VerifyCode, sent.Code)
	assert.Equal(t, "alice@example.com", sent.To)
}

func TestAccountService_Register_VerifiedUsernameTaken(t *testing.T) {
	mockRepo := new(MockUserRepository)
	mockMailer := new(MockMailer)
	accountService := services.NewAccountService(mockRepo, mockMailer, "test_jwt_secret")

	mockRepo.On("GetVerifiedByUsername", "alice").Return(&models.User{ID: "1", Username: "alice", IsVerified: true}, nil).Once()

	err := accountService.Register("alice", "new@example.com", "password123")
	assert.Error(t, err)
	assert.ErrorIs(t, err, apperrors.ErrUsernameTaken)
	mockRepo.AssertExpectations(t)
	mockRepo.AssertNotCalled(t, "Create", mock.Anything)
	mockMailer.AssertNotCalled(t, "SendVerificationEmail", mock.Anything)
}

func TestAccountService_Register_UnverifiedEmailRefreshed(t *testing.T) {
	mockRepo := new(MockUserRepository)
	mockMailer := new(MockMailer)
	accountService := services.NewAccountService(mockRepo, mockMailer, "test_jwt_secret")

	existing := &models.User{ID: "user-1", Username: "alice", Email: "alice@example.com", IsVerified: false}
	mockRepo.On("GetVerifiedByUsername", "alice").Return(nil, notFoundErr).Once()
	mockRepo.On("GetByEmail", "alice@example.com").Return(existing, nil).Once()
	mockRepo.On("RefreshCredentials", "user-1", mock.AnythingOfType("string"), mock.MatchedBy(func(code string) bool {
		return sixDigits.MatchString(code)
	}), mock.AnythingOfType("time.Time")).Return(nil).Once()
	mockMailer.On("SendVerificationEmail", mock.AnythingOfType("email.VerificationEmail")).Return(nil).Once()

	err := accountService.Register("alice", "alice@example.com", "newpassword")
	assert.NoError(t, err)
	mockRepo.AssertExpectations(t)
	mockRepo.AssertNotCalled(t, "Create", mock.Anything)
	mockMailer.AssertExpectations(t)
}

func TestAccountService_Register_VerifiedEmailTaken(t *testing.T) {
	mockRepo := new(MockUserRepository)
	mockMailer := new(MockMailer)
	accountService := services.NewAccountService(mockRepo, mockMailer, "test_jwt_secret")

	existing := &models.User{ID: "user-1", Username: "alice", Email: "alice@example.com", IsVerified: true}
	mockRepo.On("GetVerifiedByUsername", "alice2").Return(nil, notFoundErr).Once()
	mockRepo.On("GetByEmail", "alice@example.com").Return(existing, nil).Once()

	err := accountService.Register("alice2", "alice@example.com", "password123")
	assert.Error(t, err)
	assert.ErrorIs(t, err, apperrors.ErrEmailTaken)
	mockRepo.AssertExpectations(t)
	mockMailer.AssertNotCalled(t, "SendVerificationEmail", mock.Anything)
}

func TestAccountService_Register_EmailFailurePropagates(t *testing.T) {
	mockRepo := new(MockUserRepository)
	mockMailer := new(MockMailer)
	accountService := services.NewAccountService(mockRepo, mockMailer, "test_jwt_secret")

	mockRepo.On("GetVerifiedByUsername", "alice").Return(nil, notFoundErr).Once()
	mockRepo.On("GetByEmail", "alice@example.com").Return(nil, notFoundErr).Once()
	mockRepo.On("Create", mock.AnythingOfType("*models.User")).Return(nil).Once()
	mockMailer.On("SendVerificationEmail", mock.AnythingOfType("email.VerificationEmail")).Return(fmt.Errorf("smtp down")).Once()

	err := accountService.Register("alice", "alice@example.com", "password123")
	assert.Error(t, err)
	assert.ErrorIs(t, err, apperrors.ErrDependency)
	mockRepo.AssertExpectations(t)
	mockMailer.AssertExpectations(t)
}

func TestAccountService_CheckUsernameAvailable(t *testing.T) {
	mockRepo := new(MockUserRepository)
	mockMailer := new(MockMailer)
	accountService := services.NewAccountService(mockRepo, mockMailer, "test_jwt_secret")

	// A verified holder blocks availability.
	mockRepo.On("GetVerifiedByUsername", "alice").Return(&models.User{ID: "1", Username: "alice", IsVerified: true}, nil).Once()
	available, err := accountService.CheckUsernameAvailable("alice")
	assert.NoError(t, err)
	assert.False(t, available)

	// An unverified holder does not: the repository lookup only sees
	// verified users, so the oracle reports available.
	mockRepo.On("GetVerifiedByUsername", "bob").Return(nil, notFoundErr).Once()
	available, err = accountService.CheckUsernameAvailable("bob")
	assert.NoError(t, err)
	assert.True(t, available)
	mockRepo.AssertExpectations(t)
}

func TestAccountService_VerifyCode(t *testing.T) {
	mockRepo := new(MockUserRepository)
	mockMailer := new(MockMailer)
	accountService := services.NewAccountService(mockRepo, mockMailer, "test_jwt_secret")

	holders := func(code string, expiry time.Time, verified bool) []models.User {
		return []models.User{{
			ID:               "user-1",
			Username:         "alice",
			VerifyCode:       code,
			VerifyCodeExpiry: expiry,
			IsVerified:       verified,
		}}
	}

	// Valid code, not expired: user becomes verified.
	mockRepo.On("ListByUsername", "alice").Return(holders("123456", time.Now().Add(30*time.Minute), false), nil).Once()
	mockRepo.On("GetVerifiedByUsername", "alice").Return(nil, notFoundErr).Once()
	mockRepo.On("MarkVerified", "user-1").Return(nil).Once()
	err := accountService.VerifyCode("alice", "123456")
	assert.NoError(t, err)
	mockRepo.AssertExpectations(t)

	// Correct code but expired: expired, never success.
	mockRepo.On("ListByUsername", "alice").Return(holders("123456", time.Now().Add(-time.Minute), false), nil).Once()
	err = accountService.VerifyCode("alice", "123456")
	assert.ErrorIs(t, err, apperrors.ErrCodeExpired)

	// Wrong code, not expired: invalid.
	mockRepo.On("ListByUsername", "alice").Return(holders("123456", time.Now().Add(30*time.Minute), false), nil).Once()
	err = accountService.VerifyCode("alice", "654321")
	assert.ErrorIs(t, err, apperrors.ErrCodeInvalid)

	// Wrong code and expired: the expired reason wins.
	mockRepo.On("ListByUsername", "alice").Return(holders("123456", time.Now().Add(-time.Minute), false), nil).Once()
	err = accountService.VerifyCode("alice", "654321")
	assert.ErrorIs(t, err, apperrors.ErrCodeExpired)

	// Unknown user.
	mockRepo.On("ListByUsername", "ghost").Return([]models.User{}, nil).Once()
	err = accountService.VerifyCode("ghost", "123456")
	assert.ErrorIs(t, err, apperrors.ErrNotFound)
	mockRepo.AssertExpectations(t)
}

func TestAccountService_VerifyCode_CollidingUnverifiedHolders(t *testing.T) {
	mockRepo := new(MockUserRepository)
	mockMailer := new(MockMailer)
	accountService := services.NewAccountService(mockRepo, mockMailer, "test_jwt_secret")

	// Two unverified signups hold the same username, each with its own code.
	// Whichever code is submitted must verify its own holder, regardless of
	// how the storage layer orders the rows.
	first := models.User{ID: "user-a", Username: "dup", VerifyCode: "111111", VerifyCodeExpiry: time.Now().Add(30 * time.Minute)}
	second := models.User{ID: "user-b", Username: "dup", VerifyCode: "222222", VerifyCodeExpiry: time.Now().Add(30 * time.Minute)}

	mockRepo.On("ListByUsername", "dup").Return([]models.User{first, second}, nil).Once()
	mockRepo.On("GetVerifiedByUsername", "dup").Return(nil, notFoundErr).Once()
	mockRepo.On("MarkVerified", "user-b").Return(nil).Once()
	err := accountService.VerifyCode("dup", "222222")
	assert.NoError(t, err)
	mockRepo.AssertExpectations(t)
	mockRepo.AssertNotCalled(t, "MarkVerified", "user-a")

	// Once the second holder verified, the first holder's still-valid code
	// cannot claim the username anymore.
	verifiedSecond := second
	verifiedSecond.IsVerified = true
	mockRepo.On("ListByUsername", "dup").Return([]models.User{first, verifiedSecond}, nil).Once()
	mockRepo.On("GetVerifiedByUsername", "dup").Return(&verifiedSecond, nil).Once()
	err = accountService.VerifyCode("dup", "111111")
	assert.ErrorIs(t, err, apperrors.ErrUsernameTaken)
	mockRepo.AssertExpectations(t)
	mockRepo.AssertNotCalled(t, "MarkVerified", "user-a")

	// A code belonging to neither holder is still invalid.
	mockRepo.On("ListByUsername", "dup").Return([]models.User{first, second}, nil).Once()
	err = accountService.VerifyCode("dup", "999999")
	assert.ErrorIs(t, err, apperrors.ErrCodeInvalid)
	mockRepo.AssertExpectations(t)
}

func TestAccountService_VerifyCode_DecodesUsername(t *testing.T) {
	mockRepo := new(MockUserRepository)
	mockMailer := new(MockMailer)
	accountService := services.NewAccountService(mockRepo, mockMailer, "test_jwt_secret")

	// The verify link URL-encodes the username; "ali%5Fce" is "ali_ce".
	mockRepo.On("ListByUsername", "ali_ce").Return([]models.User{{
		ID:               "user-2",
		Username:         "ali_ce",
		VerifyCode:       "111222",
		VerifyCodeExpiry: time.Now().Add(time.Hour),
	}}, nil).Once()
	mockRepo.On("GetVerifiedByUsername", "ali_ce").Return(nil, notFoundErr).Once()
	mockRepo.On("MarkVerified", "user-2").Return(nil).Once()

	err := accountService.VerifyCode("ali%5Fce", "111222")
	assert.NoError(t, err)
	mockRepo.AssertExpectations(t)
}

func TestAccountService_VerifyCode_ReverifyStillSucceeds(t *testing.T) {
	mockRepo := new(MockUserRepository)
	mockMailer := new(MockMailer)
	accountService := services.NewAccountService(mockRepo, mockMailer, "test_jwt_secret")

	// Verified is terminal; re-submitting a still-valid code is a silent
	// success, not an error.
	mockRepo.On("ListByUsername", "alice").Return([]models.User{{
		ID:               "user-1",
		Username:         "alice",
		VerifyCode:       "123456",
		VerifyCodeExpiry: time.Now().Add(30 * time.Minute),
		IsVerified:       true,
	}}, nil).Once()

	err := accountService.VerifyCode("alice", "123456")
	assert.NoError(t, err)
	mockRepo.AssertExpectations(t)
	mockRepo.AssertNotCalled(t, "MarkVerified", "user-1")
}

func TestAccountService_ResendCode(t *testing.T) {
	mockRepo := new(MockUserRepository)
	mockMailer := new(MockMailer)
	accountService := services.NewAccountService(mockRepo, mockMailer, "test_jwt_secret")

	user := &models.User{ID: "user-1", Username: "alice", Email: "alice@example.com"}
	mockRepo.On("GetByUsername", "alice").Return(user, nil).Once()
	mockRepo.On("RefreshVerifyCode", "user-1", mock.MatchedBy(func(code string) bool {
		return sixDigits.MatchString(code)
	}), mock.MatchedBy(func(expiry time.Time) bool {
		return time.Until(expiry) > 55*time.Minute && time.Until(expiry) <= time.Hour
	})).Return(nil).Once()
	mockMailer.On("SendVerificationEmail", mock.AnythingOfType("email.VerificationEmail")).Return(nil).Once()

	err := accountService.ResendCode("alice")
	assert.NoError(t, err)
	mockRepo.AssertExpectations(t)
	mockMailer.AssertExpectations(t)

	// Unknown user fails before any code is issued.
	mockRepo.On("GetByUsername", "ghost").Return(nil, notFoundErr).Once()
	err = accountService.ResendCode("ghost")
	assert.ErrorIs(t, err, apperrors.ErrNotFound)
	mockRepo.AssertNotCalled(t, "RefreshVerifyCode", "ghost", mock.Anything, mock.Anything)
}

func TestAccountService_SignIn(t *testing.T) {
	mockRepo := new(MockUserRepository)
	mockMailer := new(MockMailer)
	accountService := services.NewAccountService(mockRepo, mockMailer, "test_jwt_secret")

	hashedPassword, _ := bcrypt.GenerateFromPassword([]byte("password123"), bcrypt.DefaultCost)
	user := &models.User{
		ID:         "user-123",
		Username:   "alice",
		Email:      "alice@example.com",
		Password:   string(hashedPassword),
		IsVerified: true,
	}

	// Successful sign-in by username.
	mockRepo.On("GetByUsername", "alice").Return(user, nil).Once()
	token, err := accountService.SignIn("alice", "password123")
	assert.NoError(t, err)
	assert.NotEmpty(t, token)

	parsedToken, err := jwt.Parse(token, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return []byte("test_jwt_secret"), nil
	})
	assert.NoError(t, err)
	claims, ok := parsedToken.Claims.(jwt.MapClaims)
	assert.True(t, ok)
	assert.Equal(t, user.ID, claims["user_id"])
	assert.Equal(t, user.Username, claims["username"])

	// Sign-in by email falls back to the email lookup.
	mockRepo.On("GetByUsername", "alice@example.com").Return(nil, notFoundErr).Once()
	mockRepo.On("GetByEmail", "alice@example.com").Return(user, nil).Once()
	token, err = accountService.SignIn("alice@example.com", "password123")
	assert.NoError(t, err)
	assert.NotEmpty(t, token)

	// Wrong password.
	mockRepo.On("GetByUsername", "alice").Return(user, nil).Once()
	_, err = accountService.SignIn("alice", "wrongpassword")
	assert.ErrorIs(t, err, apperrors.ErrUnauthorized)

	// Unverified accounts cannot sign in.
	unverified := &models.User{ID: "user-2", Username: "bob", Password: string(hashedPassword), IsVerified: false}
	mockRepo.On("GetByUsername", "bob").Return(unverified, nil).Once()
	_, err = accountService.SignIn("bob", "password123")
	assert.ErrorIs(t, err, apperrors.ErrUnauthorized)

	// Unknown identifier.
	mockRepo.On("GetByUsername", "ghost").Return(nil, notFoundErr).Once()
	mockRepo.On("GetByEmail", "ghost").Return(nil, notFoundErr).Once()
	_, err = accountService.SignIn("ghost", "password123")
	assert.ErrorIs(t, err, apperrors.ErrUnauthorized)
	mockRepo.AssertExpectations(t)
}

func TestAccountService_ValidateToken(t *testing.T) {
	mockRepo := new(MockUserRepository)
	mockMailer := new(MockMailer)
	accountService := services.NewAccountService(mockRepo, mockMailer, "test_jwt_secret")

	// Generate a valid token
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"user_id":  "user-123",
		"username": "alice",
		"exp":      jwt.TimeFunc().Add(time.Hour).Unix(),
	})
	validTokenString, _ := token.SignedString([]byte("test_jwt_secret"))

	claims, err := accountService.ValidateToken(validTokenString)
	assert.NoError(t, err)
	assert.NotNil(t, claims)
	assert.Equal(t, "user-123", claims["user_id"])
	assert.Equal(t, "alice", claims["username"])

	// Garbage token.
	_, err = accountService.ValidateToken("invalid.token.string")
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "invalid token")

	// Expired token.
	expiredToken := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"user_id":  "user-123",
		"username": "alice",
		"exp":      jwt.TimeFunc().Add(-time.Hour).Unix(),
	})
	expiredTokenString, _ := expiredToken.SignedString([]byte("test_jwt_secret"))
	_, err = accountService.ValidateToken(expiredTokenString)
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "invalid token")
}
