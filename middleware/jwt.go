package middleware

import (
	"strings"

	jwtware "github.com/gofiber/contrib/jwt"
	"github.com/gofiber/fiber/v2"
	"github.com/golang-jwt/jwt/v5"

	"chat-service/apierror"
	"chat-service/utils"
)

const (
	LocalToken = "user"
	LocalUser  = "currentUser"
)

// JWT verifies the access token from the accessToken cookie or the
// Authorization header and stores it in c.Locals("user").
func JWT(accessKey []byte) fiber.Handler {
	return jwtware.New(jwtware.Config{
		SigningKey: jwtware.SigningKey{
			JWTAlg: "HS512",
			Key:    accessKey,
		},
		ContextKey:  LocalToken,
		TokenLookup: "cookie:accessToken,header:Authorization",
		AuthScheme:  "Bearer",
		ErrorHandler: func(c *fiber.Ctx, err error) error {
			if strings.Contains(strings.ToLower(err.Error()), "missing or malformed") {
				return apierror.Unauthorized("Unauthorized request")
			}
			return apierror.Unauthorized("Invalid or expired access token")
		},
	})
}

// TokenMetadata reads the claims of the verified token.
func TokenMetadata(c *fiber.Ctx) (*utils.TokenMetadata, error) {
	token, ok := c.Locals(LocalToken).(*jwt.Token)
	if !ok {
		return nil, apierror.Unauthorized("Unauthorized request")
	}
	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return nil, apierror.Unauthorized("Invalid access token")
	}
	meta, err := utils.MetadataFromClaims(claims)
	if err != nil {
		return nil, apierror.Unauthorized("Invalid access token")
	}
	return meta, nil
}
