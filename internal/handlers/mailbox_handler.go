package handlers

import (
	"errors"
	"log"

	"bisik/internal/apperrors"
	"bisik/internal/services"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
)

// MailboxHandler handles HTTP requests for anonymous message delivery and
// the authenticated owner's mailbox, acceptance gate and activity feed.
type MailboxHandler struct {
	mailboxService  *services.MailboxService
	activityService *services.ActivityService
	validate        *validator.Validate
}

// NewMailboxHandler creates a new MailboxHandler.
func NewMailboxHandler(mailboxService *services.MailboxService, activityService *services.ActivityService) *MailboxHandler {
	return &MailboxHandler{
		mailboxService:  mailboxService,
		activityService: activityService,
		validate:        newValidator(),
	}
}

// RegisterPublicRoutes registers the unauthenticated send endpoint. Sending
// is anonymous by design, so it must stay outside the auth middleware.
func (h *MailboxHandler) RegisterPublicRoutes(router fiber.Router) {
	router.Post("/messages/send", h.HandleSendMessage)
}

// RegisterProtectedRoutes registers the owner-side endpoints; the router is
// expected to carry the JWT middleware.
func (h *MailboxHandler) RegisterProtectedRoutes(router fiber.Router) {
	router.Get("/messages", h.HandleListMessages)
	router.Get("/messages/count", h.HandleWeeklyCount)
	router.Delete("/messages/:id", h.HandleDeleteMessage)
	router.Get("/accept-messages", h.HandleGetAcceptMessages)
	router.Post("/accept-messages", h.HandleSetAcceptMessages)
	router.Get("/activity", h.HandleListActivity)
}

// currentUserID pulls the authenticated user's ID out of the JWT claims the
// middleware stored on the context.
func currentUserID(c *fiber.Ctx) (string, bool) {
	userID, ok := c.Locals("user_id").(string)
	return userID, ok && userID != ""
}

// SendMessageRequest represents the request body for an anonymous send.
type SendMessageRequest struct {
	Username string `json:"username" validate:"required"`
	Content  string `json:"content" validate:"required,min=10,max=500"`
}

// HandleSendMessage deposits an anonymous message if the recipient's gate is
// open. Content length is validated before any storage access.
func (h *MailboxHandler) HandleSendMessage(c *fiber.Ctx) error {
	var req SendMessageRequest
	if err := c.BodyParser(&req); err != nil {
		log.Printf("Error parsing send-message request body: %v", err)
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

	if err := h.mailboxService.Send(req.Username, req.Content); err != nil {
		switch {
		case errors.Is(err, apperrors.ErrValidation):
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
				"message": "message content must be 10-500 characters",
			})
		case errors.Is(err, apperrors.ErrNotFound):
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
				"message": "user not found",
			})
		case errors.Is(err, apperrors.ErrNotAccepting):
			return c.Status(fiber.StatusForbidden).JSON(fiber.Map{
				"message": "user is not accepting messages",
			})
		}
		log.Printf("Error sending message to %s: %v", req.Username, err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"message": "Could not send message",
		})
	}

	return c.Status(fiber.StatusCreated).JSON(fiber.Map{
		"message": "message sent successfully",
	})
}

// HandleListMessages returns the owner's messages, newest first.
func (h *MailboxHandler) HandleListMessages(c *fiber.Ctx) error {
	userID, ok := currentUserID(c)
	if !ok {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
			"message": "unauthorized",
		})
	}

	messages, err := h.mailboxService.List(userID)
	if err != nil {
		log.Printf("Error listing messages for user %s: %v", userID, err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"message": "Could not retrieve messages",
		})
	}

	return c.JSON(fiber.Map{
		"message":  "messages fetched successfully",
		"messages": messages,
	})
}

// HandleWeeklyCount returns the number of messages received in the last
// seven days.
func (h *MailboxHandler) HandleWeeklyCount(c *fiber.Ctx) error {
	userID, ok := currentUserID(c)
	if !ok {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
			"message": "unauthorized",
		})
	}

	count, err := h.mailboxService.WeeklyCount(userID)
	if err != nil {
		log.Printf("Error counting messages for user %s: %v", userID, err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"message": "Could not count messages",
		})
	}

	return c.JSON(fiber.Map{
		"message": "message count fetched successfully",
		"count":   count,
	})
}

// HandleDeleteMessage removes one message from the owner's mailbox.
func (h *MailboxHandler) HandleDeleteMessage(c *fiber.Ctx) error {
	userID, ok := currentUserID(c)
	if !ok {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
			"message": "unauthorized",
		})
	}

	messageID := c.Params("id")
	if err := h.mailboxService.Delete(userID, messageID); err != nil {
		if errors.Is(err, apperrors.ErrNotFound) {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
				"message": "message not found or already deleted",
			})
		}
		log.Printf("Error deleting message %s for user %s: %v", messageID, userID, err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"message": "Could not delete message",
		})
	}

	return c.JSON(fiber.Map{
		"message": "message deleted successfully",
	})
}

// HandleGetAcceptMessages reports the owner's acceptance gate state.
func (h *MailboxHandler) HandleGetAcceptMessages(c *fiber.Ctx) error {
	userID, ok := currentUserID(c)
	if !ok {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
			"message": "unauthorized",
		})
	}

	accepting, err := h.mailboxService.GetAcceptingMessages(userID)
	if err != nil {
		if errors.Is(err, apperrors.ErrNotFound) {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
				"message": "user not found",
			})
		}
		log.Printf("Error fetching acceptance status for user %s: %v", userID, err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"message": "Could not fetch acceptance status",
		})
	}

	return c.JSON(fiber.Map{
		"message":               "acceptance status fetched successfully",
		"is_accepting_messages": accepting,
	})
}

// SetAcceptMessagesRequest represents the request body for a gate toggle.
type SetAcceptMessagesRequest struct {
	AcceptMessages *bool `json:"accept_messages" validate:"required"`
}

// HandleSetAcceptMessages toggles the owner's acceptance gate.
func (h *MailboxHandler) HandleSetAcceptMessages(c *fiber.Ctx) error {
	userID, ok := currentUserID(c)
	if !ok {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
			"message": "unauthorized",
		})
	}

	var req SetAcceptMessagesRequest
	if err := c.BodyParser(&req); err != nil {
		log.Printf("Error parsing accept-messages request body: %v", err)
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

	accepting, err := h.mailboxService.SetAcceptingMessages(userID, *req.AcceptMessages)
	if err != nil {
		if errors.Is(err, apperrors.ErrNotFound) {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
				"message": "user not found",
			})
		}
		log.Printf("Error updating acceptance status for user %s: %v", userID, err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"message": "Could not update acceptance status",
		})
	}

	return c.JSON(fiber.Map{
		"message":               "acceptance status updated successfully",
		"is_accepting_messages": accepting,
	})
}

// HandleListActivity returns the owner's activity entries in append order.
func (h *MailboxHandler) HandleListActivity(c *fiber.Ctx) error {
	userID, ok := currentUserID(c)
	if !ok {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
			"message": "unauthorized",
		})
	}

	activity, err := h.activityService.List(userID)
	if err != nil {
		log.Printf("Error listing activity for user %s: %v", userID, err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"message": "Could not retrieve activity",
		})
	}

	if len(activity) == 0 {
		return c.JSON(fiber.Map{
			"message":  "no activity yet",
			"activity": []string{},
		})
	}
	return c.JSON(fiber.Map{
		"message":  "activities fetched successfully",
		"activity": activity,
	})
}
