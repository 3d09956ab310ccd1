package middleware

import (
	"github.com/gofiber/fiber/v2"

	"chat-service/apierror"
	"chat-service/logger"
)

type Enforcer interface {
	Enforce(rvals ...interface{}) (bool, error)
}

// RBAC checks the current user's role against the path and method.
func RBAC(e Enforcer) fiber.Handler {
	return func(c *fiber.Ctx) error {
		user, err := User(c)
		if err != nil {
			return err
		}

		accepted, err := e.Enforce(user.Role, c.Path(), c.Method())
		if err != nil {
			logger.FromContext(c.UserContext()).ErrorContext(c.UserContext(), "rbac - enforce failed", "err", err)
			return apierror.Internal("Internal server error")
		}
		if !accepted {
			return apierror.Forbidden("You are not allowed to perform this action")
		}
		return c.Next()
	}
}
