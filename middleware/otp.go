package middleware

import (
	"github.com/gofiber/fiber/v2"

	"chat-service/apierror"
)

// OTP rejects tokens still waiting for the second factor.
func OTP() fiber.Handler {
	return func(c *fiber.Ctx) error {
		meta, err := TokenMetadata(c)
		if err != nil {
			return err
		}
		if meta.Otp {
			return apierror.Unauthorized("2FA required")
		}
		return c.Next()
	}
}
