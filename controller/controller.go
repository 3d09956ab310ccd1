package controller

import (
	"errors"
	"time"

	"github.com/gofiber/fiber/v2"

	"chat-service/apierror"
	"chat-service/logger"
	"chat-service/service"
	"chat-service/uploads"
)

type Options struct {
	MaxAttachments int
	SecureCookies  bool
	AccessExpire   time.Duration
	RefreshExpire  time.Duration
}

// Controller holds the HTTP handlers of the REST API.
type Controller struct {
	auth     *service.AuthService
	chats    *service.ChatService
	messages *service.MessageService
	files    *uploads.Local
	opts     Options
}

func New(
	auth *service.AuthService,
	chats *service.ChatService,
	messages *service.MessageService,
	files *uploads.Local,
	opts Options,
) *Controller {
	if opts.MaxAttachments <= 0 {
		opts.MaxAttachments = 5
	}
	return &Controller{
		auth:     auth,
		chats:    chats,
		messages: messages,
		files:    files,
		opts:     opts,
	}
}

// Response writes the success envelope.
func Response(c *fiber.Ctx, status int, data any, message string) error {
	return c.Status(status).JSON(fiber.Map{
		"statusCode": status,
		"data":       data,
		"message":    message,
		"success":    status < fiber.StatusBadRequest,
	})
}

// ErrorHandler converts any handler error into the error envelope.
func ErrorHandler(c *fiber.Ctx, err error) error {
	status := fiber.StatusInternalServerError
	message := "Internal server error"

	var apiErr *apierror.Error
	var fiberErr *fiber.Error
	switch {
	case errors.As(err, &apiErr):
		status, message = apiErr.StatusCode, apiErr.Message
	case errors.As(err, &fiberErr):
		status, message = fiberErr.Code, fiberErr.Message
	}

	if status >= fiber.StatusInternalServerError {
		logger.FromContext(c.UserContext()).ErrorContext(c.UserContext(), "request failed",
			"method", c.Method(),
			"path", c.Path(),
			"status", status,
			"err", err,
		)
	}

	return c.Status(status).JSON(fiber.Map{
		"statusCode": status,
		"message":    message,
		"success":    false,
		"errors":     []any{},
	})
}
