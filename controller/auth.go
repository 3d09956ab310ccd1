package controller

import (
	"time"

	"github.com/gofiber/fiber/v2"

	"chat-service/apierror"
	"chat-service/middleware"
	"chat-service/utils"
)

const (
	accessTokenCookie  = "accessToken"
	refreshTokenCookie = "refreshToken"
)

type AuthRegisterInput struct {
	Email    string `json:"email"`
	Username string `json:"username"`
	Password string `json:"password"`
}

type AuthLoginInput struct {
	Username string `json:"username"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

type AuthRefreshTokenInput struct {
	RefreshToken string `json:"refreshToken"`
}

type AuthOtpSecretInput struct {
	Password string `json:"password"`
}

type AuthOtpVerifyInput struct {
	Token string `json:"token"`
}

type AuthOtpValidateInput struct {
	Token string `json:"token"`
}

type AuthOtpDisableInput struct {
	Password string `json:"password"`
	Token    string `json:"token"`
}

func parseBody(c *fiber.Ctx, out any) error {
	if len(c.Body()) == 0 {
		return nil
	}
	if err := c.BodyParser(out); err != nil {
		return apierror.BadRequest("Review your input")
	}
	return nil
}

func (h *Controller) setTokenCookies(c *fiber.Ctx, tokens *utils.Tokens) {
	now := time.Now()
	c.Cookie(&fiber.Cookie{
		Name:     accessTokenCookie,
		Value:    tokens.Access,
		Path:     "/",
		Expires:  now.Add(h.opts.AccessExpire),
		HTTPOnly: true,
		Secure:   h.opts.SecureCookies,
	})
	c.Cookie(&fiber.Cookie{
		Name:     refreshTokenCookie,
		Value:    tokens.Refresh,
		Path:     "/",
		Expires:  now.Add(h.opts.RefreshExpire),
		HTTPOnly: true,
		Secure:   h.opts.SecureCookies,
	})
}

func (h *Controller) AuthRegister(c *fiber.Ctx) error {
	input := new(AuthRegisterInput)
	if err := parseBody(c, input); err != nil {
		return err
	}

	user, err := h.auth.Register(c.UserContext(), input.Email, input.Username, input.Password)
	if err != nil {
		return err
	}
	return Response(c, fiber.StatusCreated, fiber.Map{"user": user}, "User registered successfully")
}

func (h *Controller) AuthLogin(c *fiber.Ctx) error {
	input := new(AuthLoginInput)
	if err := parseBody(c, input); err != nil {
		return err
	}

	result, err := h.auth.Login(c.UserContext(), input.Username, input.Email, input.Password)
	if err != nil {
		return err
	}

	h.setTokenCookies(c, result.Tokens)
	return Response(c, fiber.StatusOK, fiber.Map{
		"user":         result.User,
		"accessToken":  result.Tokens.Access,
		"refreshToken": result.Tokens.Refresh,
		"twoFactor":    result.TwoFactor,
	}, "User logged in successfully")
}

func (h *Controller) AuthRefreshToken(c *fiber.Ctx) error {
	token := c.Cookies(refreshTokenCookie)
	if token == "" {
		input := new(AuthRefreshTokenInput)
		if err := parseBody(c, input); err != nil {
			return err
		}
		token = input.RefreshToken
	}

	tokens, err := h.auth.RefreshToken(c.UserContext(), token)
	if err != nil {
		return err
	}

	h.setTokenCookies(c, tokens)
	return Response(c, fiber.StatusOK, fiber.Map{
		"accessToken":  tokens.Access,
		"refreshToken": tokens.Refresh,
	}, "Access token refreshed")
}

func (h *Controller) AuthLogout(c *fiber.Ctx) error {
	user, err := middleware.User(c)
	if err != nil {
		return err
	}
	if err := h.auth.Logout(c.UserContext(), user.ID); err != nil {
		return err
	}

	c.ClearCookie(accessTokenCookie, refreshTokenCookie)
	return Response(c, fiber.StatusOK, fiber.Map{}, "User logged out successfully")
}

func (h *Controller) AuthOtpSecret(c *fiber.Ctx) error {
	input := new(AuthOtpSecretInput)
	if err := parseBody(c, input); err != nil {
		return err
	}
	user, err := middleware.User(c)
	if err != nil {
		return err
	}

	secret, url, err := h.auth.OtpSecret(c.UserContext(), user.ID, input.Password)
	if err != nil {
		return err
	}
	return Response(c, fiber.StatusOK, fiber.Map{
		"secret": secret,
		"url":    url,
	}, "2FA secret generated")
}

func (h *Controller) AuthOtpVerify(c *fiber.Ctx) error {
	input := new(AuthOtpVerifyInput)
	if err := parseBody(c, input); err != nil {
		return err
	}
	user, err := middleware.User(c)
	if err != nil {
		return err
	}

	if err := h.auth.OtpVerify(c.UserContext(), user.ID, input.Token); err != nil {
		return err
	}
	return Response(c, fiber.StatusOK, nil, "2FA enabled")
}

func (h *Controller) AuthOtpValidate(c *fiber.Ctx) error {
	input := new(AuthOtpValidateInput)
	if err := parseBody(c, input); err != nil {
		return err
	}
	user, err := middleware.User(c)
	if err != nil {
		return err
	}

	tokens, err := h.auth.OtpValidate(c.UserContext(), user.ID, input.Token)
	if err != nil {
		return err
	}

	h.setTokenCookies(c, tokens)
	return Response(c, fiber.StatusOK, fiber.Map{
		"accessToken":  tokens.Access,
		"refreshToken": tokens.Refresh,
	}, "2FA validated")
}

func (h *Controller) AuthOtpDisable(c *fiber.Ctx) error {
	input := new(AuthOtpDisableInput)
	if err := parseBody(c, input); err != nil {
		return err
	}
	user, err := middleware.User(c)
	if err != nil {
		return err
	}

	if err := h.auth.OtpDisable(c.UserContext(), user.ID, input.Password, input.Token); err != nil {
		return err
	}
	return Response(c, fiber.StatusOK, nil, "2FA disabled")
}
