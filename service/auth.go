package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strings"

	"github.com/pquerna/otp/totp"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/crypto/bcrypt"

	"chat-service/apierror"
	"chat-service/model"
	"chat-service/utils"
)

var passwordCost = bcrypt.DefaultCost

type LoginResult struct {
	User      *model.User
	Tokens    *utils.Tokens
	TwoFactor bool
}

type AuthService struct {
	users  UserStore
	tokens TokenStore
	jwt    *utils.TokenManager
	files  FileRemover
	issuer string
	log    *slog.Logger
}

func NewAuthService(
	log *slog.Logger,
	users UserStore,
	tokens TokenStore,
	jwt *utils.TokenManager,
	files FileRemover,
	otpIssuer string,
) *AuthService {
	return &AuthService{
		log:    log,
		users:  users,
		tokens: tokens,
		jwt:    jwt,
		files:  files,
		issuer: otpIssuer,
	}
}

func (s *AuthService) issueTokens(ctx context.Context, userID string, otpPending bool) (*utils.Tokens, error) {
	tokens, err := s.jwt.GenerateTokens(userID, otpPending)
	if err != nil {
		return nil, apierror.Internal("Something went wrong while generating tokens")
	}
	if err := s.tokens.SetRefreshToken(ctx, userID, tokens.Refresh); err != nil {
		s.log.ErrorContext(ctx, "auth - issue tokens - store refresh token failed", "user_id", userID, "err", err)
		return nil, apierror.Internal("Something went wrong while generating tokens")
	}
	return tokens, nil
}

// Register creates a user with a hashed password.
func (s *AuthService) Register(ctx context.Context, email, username, password string) (*model.User, error) {
	ctx, span := tracer.Start(ctx, "AuthService.Register")
	defer span.End()

	email = strings.ToLower(strings.TrimSpace(email))
	username = strings.ToLower(strings.TrimSpace(username))
	if email == "" || username == "" || password == "" {
		return nil, fail(span, apierror.BadRequest("All fields are required"))
	}

	if _, err := s.users.FindUserByLogin(ctx, username, email); err == nil {
		return nil, fail(span, apierror.Conflict("User with email or username already exists"))
	} else if !errors.Is(err, model.ErrNotFound) {
		return nil, fail(span, err)
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), passwordCost)
	if err != nil {
		return nil, fail(span, apierror.Internal("Something went wrong while registering the user"))
	}

	user := &model.User{
		Email:           email,
		Username:        username,
		Password:        string(hash),
		Role:            model.RoleUser,
		IsEmailVerified: true,
	}
	if err := s.users.CreateUser(ctx, user); err != nil {
		s.log.ErrorContext(ctx, "auth - register - create user failed", "username", username, "err", err)
		return nil, fail(span, apierror.Internal("Something went wrong while registering the user"))
	}

	span.SetAttributes(attribute.String("user_id", user.ID))
	s.log.InfoContext(ctx, "auth - register - success", "user_id", user.ID)
	return user, nil
}

// Login checks the password and issues a token pair. Users with two-factor
// enabled receive tokens that only the 2FA validation accepts.
func (s *AuthService) Login(ctx context.Context, username, email, password string) (*LoginResult, error) {
	ctx, span := tracer.Start(ctx, "AuthService.Login")
	defer span.End()

	username = strings.ToLower(strings.TrimSpace(username))
	email = strings.ToLower(strings.TrimSpace(email))
	if username == "" && email == "" {
		return nil, fail(span, apierror.BadRequest("Username or email is required"))
	}
	if password == "" {
		return nil, fail(span, apierror.BadRequest("Password is required"))
	}

	user, err := s.users.FindUserByLogin(ctx, username, email)
	if errors.Is(err, model.ErrNotFound) {
		return nil, fail(span, apierror.NotFound("User does not exist"))
	}
	if err != nil {
		return nil, fail(span, err)
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.Password), []byte(password)); err != nil {
		return nil, fail(span, apierror.Unauthorized("Invalid credentials"))
	}

	tokens, err := s.issueTokens(ctx, user.ID, user.OtpEnabled)
	if err != nil {
		return nil, fail(span, err)
	}

	s.log.InfoContext(ctx, "auth - login - success", "user_id", user.ID, "2fa", user.OtpEnabled)
	return &LoginResult{User: user, Tokens: tokens, TwoFactor: user.OtpEnabled}, nil
}

// RefreshToken rotates the token pair. The presented token must be the stored one.
func (s *AuthService) RefreshToken(ctx context.Context, refreshToken string) (*utils.Tokens, error) {
	ctx, span := tracer.Start(ctx, "AuthService.RefreshToken")
	defer span.End()

	if refreshToken == "" {
		return nil, fail(span, apierror.Unauthorized("Unauthorized request"))
	}

	claims, err := s.jwt.CheckAndExtractTokenMetadata(refreshToken, utils.RefreshToken)
	if err != nil {
		return nil, fail(span, apierror.Unauthorized("Invalid refresh token"))
	}

	if _, err := s.users.FindUserByID(ctx, claims.Id); err != nil {
		return nil, fail(span, apierror.Unauthorized("Invalid refresh token"))
	}

	stored, err := s.tokens.GetRefreshToken(ctx, claims.Id)
	if err != nil || stored != refreshToken {
		return nil, fail(span, apierror.Unauthorized("Refresh token is expired or used"))
	}

	tokens, err := s.issueTokens(ctx, claims.Id, claims.Otp)
	if err != nil {
		return nil, fail(span, err)
	}
	return tokens, nil
}

// Logout invalidates the stored refresh token.
func (s *AuthService) Logout(ctx context.Context, userID string) error {
	ctx, span := tracer.Start(ctx, "AuthService.Logout", trace.WithAttributes(
		attribute.String("user_id", userID),
	))
	defer span.End()

	if err := s.tokens.DeleteRefreshToken(ctx, userID); err != nil {
		s.log.ErrorContext(ctx, "auth - logout - delete refresh token failed", "user_id", userID, "err", err)
		return fail(span, apierror.Internal("Internal server error"))
	}
	s.log.InfoContext(ctx, "auth - logout - success", "user_id", userID)
	return nil
}

// Authenticate verifies an access token and resolves its subject. Tokens still
// waiting for the second factor are rejected.
func (s *AuthService) Authenticate(ctx context.Context, token string) (*model.User, error) {
	ctx, span := tracer.Start(ctx, "AuthService.Authenticate")
	defer span.End()

	if token == "" {
		return nil, fail(span, apierror.Unauthorized("Unauthorized handshake, token missing"))
	}

	claims, err := s.jwt.CheckAndExtractTokenMetadata(token, utils.AccessToken)
	if err != nil {
		return nil, fail(span, apierror.Unauthorized("Unauthorized handshake, token invalid"))
	}
	if claims.Otp {
		return nil, fail(span, apierror.Unauthorized("2FA required"))
	}
	span.SetAttributes(attribute.String("user_id", claims.Id))

	user, err := s.CurrentUser(ctx, claims.Id)
	if err != nil {
		return nil, fail(span, err)
	}
	return user, nil
}

// CurrentUser resolves a token subject to a user.
func (s *AuthService) CurrentUser(ctx context.Context, userID string) (*model.User, error) {
	user, err := s.users.FindUserByID(ctx, userID)
	if errors.Is(err, model.ErrNotFound) {
		return nil, apierror.Unauthorized("Invalid access token")
	}
	if err != nil {
		return nil, err
	}
	return user, nil
}

func (s *AuthService) checkPassword(ctx context.Context, userID, password string) (*model.User, error) {
	user, err := s.users.FindUserByID(ctx, userID)
	if errors.Is(err, model.ErrNotFound) {
		return nil, apierror.NotFound("User not found")
	}
	if err != nil {
		return nil, err
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.Password), []byte(password)); err != nil {
		return nil, apierror.BadRequest("Invalid password")
	}
	return user, nil
}

// ChangePassword replaces the password after checking the old one.
func (s *AuthService) ChangePassword(ctx context.Context, userID, oldPassword, newPassword string) error {
	ctx, span := tracer.Start(ctx, "AuthService.ChangePassword", trace.WithAttributes(
		attribute.String("user_id", userID),
	))
	defer span.End()

	if oldPassword == "" || newPassword == "" {
		return fail(span, apierror.BadRequest("Old password and new password are required"))
	}

	if _, err := s.checkPassword(ctx, userID, oldPassword); err != nil {
		if apierror.StatusOf(err) == http.StatusBadRequest {
			return fail(span, apierror.BadRequest("Invalid old password"))
		}
		return fail(span, err)
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(newPassword), passwordCost)
	if err != nil {
		return fail(span, apierror.Internal("Internal server error"))
	}
	if _, err := s.users.UpdateUser(ctx, userID, map[string]any{"password": string(hash)}); err != nil {
		return fail(span, err)
	}

	s.log.InfoContext(ctx, "auth - change password - success", "user_id", userID)
	return nil
}

// UpdateAvatar stores the new avatar and removes the previous file.
func (s *AuthService) UpdateAvatar(ctx context.Context, userID string, avatar model.Avatar) (*model.User, error) {
	ctx, span := tracer.Start(ctx, "AuthService.UpdateAvatar", trace.WithAttributes(
		attribute.String("user_id", userID),
	))
	defer span.End()

	previous, err := s.users.FindUserByID(ctx, userID)
	if errors.Is(err, model.ErrNotFound) {
		return nil, fail(span, apierror.NotFound("User not found"))
	}
	if err != nil {
		return nil, fail(span, err)
	}

	updated, err := s.users.UpdateUser(ctx, userID, map[string]any{
		"avatar_url":        avatar.URL,
		"avatar_local_path": avatar.LocalPath,
	})
	if err != nil {
		return nil, fail(span, err)
	}

	s.files.Remove(previous.Avatar.LocalPath)
	s.log.InfoContext(ctx, "auth - update avatar - success", "user_id", userID)
	return updated, nil
}

// OtpSecret returns the TOTP secret and provisioning URL after a password check.
func (s *AuthService) OtpSecret(ctx context.Context, userID, password string) (string, string, error) {
	ctx, span := tracer.Start(ctx, "AuthService.OtpSecret", trace.WithAttributes(
		attribute.String("user_id", userID),
	))
	defer span.End()

	user, err := s.checkPassword(ctx, userID, password)
	if err != nil {
		return "", "", fail(span, err)
	}

	secret := user.OtpSecret
	if secret == "" {
		key, err := totp.Generate(totp.GenerateOpts{
			Issuer:      s.issuer,
			AccountName: user.Email,
			SecretSize:  15,
		})
		if err != nil {
			return "", "", fail(span, apierror.Internal("Internal server error"))
		}
		secret = key.Secret()
		if _, err := s.users.UpdateUser(ctx, userID, map[string]any{"otp_secret": secret}); err != nil {
			return "", "", fail(span, err)
		}
	}

	link := fmt.Sprintf("otpauth://totp/%s:%s?algorithm=SHA1&digits=6&issuer=%s&period=30&secret=%s",
		url.PathEscape(s.issuer),
		url.PathEscape(user.Email),
		url.QueryEscape(s.issuer),
		secret,
	)
	return secret, link, nil
}

// OtpVerify enables two-factor once the user proves they hold the secret.
func (s *AuthService) OtpVerify(ctx context.Context, userID, code string) error {
	ctx, span := tracer.Start(ctx, "AuthService.OtpVerify", trace.WithAttributes(
		attribute.String("user_id", userID),
	))
	defer span.End()

	user, err := s.CurrentUser(ctx, userID)
	if err != nil {
		return fail(span, err)
	}
	if user.OtpEnabled {
		return fail(span, apierror.BadRequest("Verification has already been performed earlier"))
	}
	if user.OtpSecret == "" || !totp.Validate(code, user.OtpSecret) {
		return fail(span, apierror.BadRequest("Invalid token"))
	}
	if _, err := s.users.UpdateUser(ctx, userID, map[string]any{"otp_enabled": true}); err != nil {
		return fail(span, err)
	}
	s.log.InfoContext(ctx, "auth - 2fa verify - enabled", "user_id", userID)
	return nil
}

// OtpValidate exchanges a pending-2FA session for full tokens.
func (s *AuthService) OtpValidate(ctx context.Context, userID, code string) (*utils.Tokens, error) {
	ctx, span := tracer.Start(ctx, "AuthService.OtpValidate", trace.WithAttributes(
		attribute.String("user_id", userID),
	))
	defer span.End()

	user, err := s.CurrentUser(ctx, userID)
	if err != nil {
		return nil, fail(span, err)
	}
	if !user.OtpEnabled {
		return nil, fail(span, apierror.BadRequest("2FA has been disabled"))
	}
	if !totp.Validate(code, user.OtpSecret) {
		return nil, fail(span, apierror.Unauthorized("Invalid token"))
	}
	tokens, err := s.issueTokens(ctx, userID, false)
	if err != nil {
		return nil, fail(span, err)
	}
	return tokens, nil
}

// OtpDisable turns two-factor off after a password and code check.
func (s *AuthService) OtpDisable(ctx context.Context, userID, password, code string) error {
	ctx, span := tracer.Start(ctx, "AuthService.OtpDisable", trace.WithAttributes(
		attribute.String("user_id", userID),
	))
	defer span.End()

	user, err := s.checkPassword(ctx, userID, password)
	if err != nil {
		return fail(span, err)
	}
	if !user.OtpEnabled {
		return fail(span, apierror.BadRequest("2FA not enabled"))
	}
	if !totp.Validate(code, user.OtpSecret) {
		return fail(span, apierror.BadRequest("Invalid token"))
	}
	if _, err := s.users.UpdateUser(ctx, userID, map[string]any{"otp_enabled": false, "otp_secret": ""}); err != nil {
		return fail(span, err)
	}
	s.log.InfoContext(ctx, "auth - 2fa disable - success", "user_id", userID)
	return nil
}
