package middleware

import (
	"context"

	"github.com/gofiber/fiber/v2"

	"chat-service/apierror"
	"chat-service/model"
)

type UserResolver interface {
	CurrentUser(ctx context.Context, userID string) (*model.User, error)
}

// CurrentUser resolves the token subject and stores the user in c.Locals.
func CurrentUser(users UserResolver) fiber.Handler {
	return func(c *fiber.Ctx) error {
		meta, err := TokenMetadata(c)
		if err != nil {
			return err
		}
		user, err := users.CurrentUser(c.UserContext(), meta.Id)
		if err != nil {
			return err
		}
		c.Locals(LocalUser, user)
		return c.Next()
	}
}

// User returns the user stored by CurrentUser.
func User(c *fiber.Ctx) (*model.User, error) {
	user, ok := c.Locals(LocalUser).(*model.User)
	if !ok || user == nil {
		return nil, apierror.Unauthorized("Unauthorized request")
	}
	return user, nil
}
