package router

import (
	"log/slog"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"

	"chat-service/controller"
	"chat-service/middleware"
)

type AppConfig struct {
	Name       string
	CorsOrigin string
	BodyLimit  int
}

// New creates the fiber app with the error envelope and the global middleware.
func New(cfg AppConfig, log *slog.Logger) *fiber.App {
	app := fiber.New(fiber.Config{
		DisableStartupMessage: true,
		StrictRouting:         true,
		AppName:               cfg.Name,
		BodyLimit:             cfg.BodyLimit,
		ErrorHandler:          controller.ErrorHandler,
	})

	app.Use(recover.New())
	app.Use(cors.New(cors.Config{
		AllowOrigins:     cfg.CorsOrigin,
		AllowCredentials: true,
	}))
	app.Use(middleware.Tracing(log))
	return app
}

type RestDeps struct {
	Controller *controller.Controller
	Users      middleware.UserResolver
	AccessKey  []byte
	Enforcer   middleware.Enforcer
	UploadDir  string
	UploadPath string
	// AccessLog enables the fiber access log on the API group.
	AccessLog bool
}

func Rest(app *fiber.App, deps RestDeps) {
	ctl := deps.Controller

	app.Static(deps.UploadPath, deps.UploadDir)

	var groupHandlers []fiber.Handler
	if deps.AccessLog {
		groupHandlers = append(groupHandlers, logger.New())
	}
	api := app.Group("/api/v1", groupHandlers...)

	jwt := middleware.JWT(deps.AccessKey)
	user := middleware.CurrentUser(deps.Users)
	rbac := middleware.RBAC(deps.Enforcer)
	secured := func(h fiber.Handler) []fiber.Handler {
		return []fiber.Handler{jwt, middleware.OTP(), user, rbac, h}
	}

	// Auth
	auth := api.Group("/auth")
	auth.Post("/register", ctl.AuthRegister)
	auth.Post("/login", ctl.AuthLogin)
	auth.Post("/refresh-token", ctl.AuthRefreshToken)
	auth.Post("/logout", secured(ctl.AuthLogout)...)
	auth.Get("/current-user", secured(ctl.UserCurrent)...)
	auth.Post("/change-password", secured(ctl.UserChangePassword)...)
	auth.Patch("/update-avatar", secured(ctl.UserUpdateAvatar)...)
	auth.Post("/2fa/secret", secured(ctl.AuthOtpSecret)...)
	auth.Post("/2fa/verify", secured(ctl.AuthOtpVerify)...)
	auth.Post("/2fa/validate", jwt, user, rbac, ctl.AuthOtpValidate)
	auth.Post("/2fa/disable", secured(ctl.AuthOtpDisable)...)

	// Chats
	chats := api.Group("/chats", jwt, middleware.OTP(), user, rbac)
	chats.Get("", ctl.ChatList)
	chats.Get("/users", ctl.ChatSearchUsers)
	chats.Post("/one-on-one/:receiverId", ctl.ChatDirect)
	chats.Post("/group", ctl.ChatGroupCreate)
	chats.Get("/group/:chatId", ctl.ChatGroupDetails)
	chats.Patch("/group/:chatId", ctl.ChatGroupRename)
	chats.Delete("/group/:chatId", ctl.ChatGroupDelete)
	chats.Post("/group/:chatId/:participantId", ctl.ChatGroupAddParticipant)
	chats.Delete("/group/:chatId/:participantId", ctl.ChatGroupRemoveParticipant)
	chats.Delete("/leave/group/:chatId", ctl.ChatGroupLeave)
	chats.Delete("/delete/one-on-one/:chatId", ctl.ChatDirectDelete)

	// Messages
	messages := api.Group("/messages", jwt, middleware.OTP(), user, rbac)
	messages.Get("/:chatId", ctl.MessageList)
	messages.Post("/:chatId", ctl.MessageSend)
	messages.Delete("/:chatId/:messageId", ctl.MessageDelete)
}
