package handlers

import (
	"errors"
	"fmt"
	"log"
	"regexp"

	"bisik/internal/apperrors"
	"bisik/internal/services"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
)

var usernamePattern = regexp.MustCompile(`^[a-zA-Z0-9_]+$`)

// newValidator builds the shared validator with the custom username rule:
// 2-20 characters, letters, digits and underscore only.
func newValidator() *validator.Validate {
	v := validator.New()
	_ = v.RegisterValidation("username", func(fl validator.FieldLevel) bool {
		return usernamePattern.MatchString(fl.Field().String())
	})
	return v
}

// validationErrorMap turns validator errors into the field map the API
// returns on 400s.
func validationErrorMap(err error) map[string]string {
	errorMessages := make(map[string]string)
	var validationErrors validator.ValidationErrors
	if errors.As(err, &validationErrors) {
		for _, e := range validationErrors {
			errorMessages[e.Field()] = fmt.Sprintf("Field '%s' failed on the '%s' tag", e.Field(), e.Tag())
		}
	}
	return errorMessages
}

// AccountHandler handles HTTP requests for registration, verification and
// sign-in.
type AccountHandler struct {
	accountService *services.AccountService
	validate       *validator.Validate
}

// NewAccountHandler creates a new AccountHandler.
func NewAccountHandler(accountService *services.AccountService) *AccountHandler {
	return &AccountHandler{
		accountService: accountService,
		validate:       newValidator(),
	}
}

// RegisterRoutes registers the account routes with the Fiber app. All of
// these are public: they run before a session exists.
func (h *AccountHandler) RegisterRoutes(router fiber.Router) {
	authRoutes := router.Group("/auth")
	authRoutes.Post("/sign-up", h.HandleSignUp)
	authRoutes.Post("/sign-in", h.HandleSignIn)
	authRoutes.Post("/verify-code", h.HandleVerifyCode)
	authRoutes.Post("/resend-code", h.HandleResendCode)
	authRoutes.Get("/check-username", h.HandleCheckUsername)
}

// SignUpRequest represents the request body for registration.
type SignUpRequest struct {
	Username string `json:"username" validate:"required,min=2,max=20,username"`
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required,min=6,max=20"`
}

// HandleSignUp handles new user registration and mails the verification code.
func (h *AccountHandler) HandleSignUp(c *fiber.Ctx) error {
	var req SignUpRequest
	if err := c.BodyParser(&req); err != nil {
		log.Printf("Error parsing sign-up request body: %v", err)
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"message": "Invalid request body",
			"error":   err.Error(),
		})
	}

	if err := h.validate.Struct(req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"message": "Validation failed",
			"errors":  validationErrorMap(err),
		})
	}

	if err := h.accountService.Register(req.Username, req.Email, req.Password); err != nil {
		log.Printf("Error registering user: %v", err)
		switch {
		case errors.Is(err, apperrors.ErrUsernameTaken):
			return c.Status(fiber.StatusConflict).JSON(fiber.Map{
				"message": "username already taken",
			})
		case errors.Is(err, apperrors.ErrEmailTaken):
			return c.Status(fiber.StatusConflict).JSON(fiber.Map{
				"message": "email already taken",
			})
		case errors.Is(err, apperrors.ErrDependency):
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
				"message": "Could not send verification email",
			})
		}
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"message": "Could not register user",
		})
	}

	return c.Status(fiber.StatusCreated).JSON(fiber.Map{
		"message": "Registration successful, please verify your email",
	})
}

// SignInRequest represents the request body for sign-in. The identifier may
// be a username or an email address.
type SignInRequest struct {
	Identifier string `json:"identifier" validate:"required"`
	Password   string `json:"password" validate:"required"`
}

// HandleSignIn authenticates a verified user and issues a JWT token.
func (h *AccountHandler) HandleSignIn(c *fiber.Ctx) error {
	var req SignInRequest
	if err := c.BodyParser(&req); err != nil {
		log.Printf("Error parsing sign-in request body: %v", err)
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"message": "Invalid request body",
			"error":   err.Error(),
		})
	}

	if err := h.validate.Struct(req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"message": "Validation failed",
			"errors":  validationErrorMap(err),
		})
	}

	token, err := h.accountService.SignIn(req.Identifier, req.Password)
	if err != nil {
		log.Printf("Error during sign-in for %s: %v", req.Identifier, err)
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
			"message": "Authentication failed",
		})
	}

	return c.JSON(fiber.Map{
		"message": "Sign-in successful",
		"token":   token,
	})
}

// VerifyCodeRequest represents the request body for code verification.
type VerifyCodeRequest struct {
	Username string `json:"username" validate:"required"`
	Code     string `json:"code" validate:"required,len=6,numeric"`
}

// HandleVerifyCode consumes a verification code and flips the account to
// verified.
func (h *AccountHandler) HandleVerifyCode(c *fiber.Ctx) error {
	var req VerifyCodeRequest
	if err := c.BodyParser(&req); err != nil {
		log.Printf("Error parsing verify-code request body: %v", err)
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"message": "Invalid request body",
			"error":   err.Error(),
		})
	}

	if err := h.validate.Struct(req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"message": "Validation failed",
			"errors":  validationErrorMap(err),
		})
	}

	if err := h.accountService.VerifyCode(req.Username, req.Code); err != nil {
		switch {
		case errors.Is(err, apperrors.ErrNotFound):
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
				"message": "user not found",
			})
		case errors.Is(err, apperrors.ErrCodeExpired):
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
				"message": "code is expired",
			})
		case errors.Is(err, apperrors.ErrCodeInvalid):
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
				"message": "code is invalid",
			})
		case errors.Is(err, apperrors.ErrUsernameTaken):
			return c.Status(fiber.StatusConflict).JSON(fiber.Map{
				"message": "username already taken",
			})
		}
		log.Printf("Error verifying user %s: %v", req.Username, err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"message": "Could not verify account",
		})
	}

	return c.JSON(fiber.Map{
		"message": "account verified successfully",
	})
}

// ResendCodeRequest represents the request body for a code resend.
type ResendCodeRequest struct {
	Username string `json:"username" validate:"required"`
}

// HandleResendCode reissues a verification code and mails it.
func (h *AccountHandler) HandleResendCode(c *fiber.Ctx) error {
	var req ResendCodeRequest
	if err := c.BodyParser(&req); err != nil {
		log.Printf("Error parsing resend-code request body: %v", err)
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"message": "Invalid request body",
			"error":   err.Error(),
		})
	}

	if err := h.validate.Struct(req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"message": "Validation failed",
			"errors":  validationErrorMap(err),
		})
	}

	if err := h.accountService.ResendCode(req.Username); err != nil {
		log.Printf("Error resending code for %s: %v", req.Username, err)
		switch {
		case errors.Is(err, apperrors.ErrNotFound):
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
				"message": "user not found",
			})
		case errors.Is(err, apperrors.ErrDependency):
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
				"message": "Could not send verification email",
			})
		}
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"message": "Could not resend verification code",
		})
	}

	return c.JSON(fiber.Map{
		"message": "new verification code sent",
	})
}

// checkUsernameQuery carries the query parameter through validation.
type checkUsernameQuery struct {
	Username string `validate:"required,min=2,max=20,username"`
}

// HandleCheckUsername answers whether a candidate username is available.
// Format failures are validation errors; a taken name is a successful
// response with available=false.
func (h *AccountHandler) HandleCheckUsername(c *fiber.Ctx) error {
	query := checkUsernameQuery{Username: c.Query("username")}
	if err := h.validate.Struct(query); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"message": "username must be 2-20 characters of letters, digits or underscore",
			"errors":  validationErrorMap(err),
		})
	}

	available, err := h.accountService.CheckUsernameAvailable(query.Username)
	if err != nil {
		log.Printf("Error checking username %s: %v", query.Username, err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"message": "Could not check username",
		})
	}

	message := "username is available"
	if !available {
		message = "username already taken"
	}
	return c.JSON(fiber.Map{
		"message":   message,
		"available": available,
	})
}
