package controller

import (
	"time"

	"github.com/gofiber/fiber/v2"

	"chat-service/apierror"
	"chat-service/middleware"
	"chat-service/model"
	"chat-service/uploads"
)

type UserChangePasswordInput struct {
	OldPassword string `json:"oldPassword"`
	NewPassword string `json:"newPassword"`
}

func (h *Controller) UserCurrent(c *fiber.Ctx) error {
	user, err := middleware.User(c)
	if err != nil {
		return err
	}
	return Response(c, fiber.StatusOK, user, "Current user fetched successfully")
}

func (h *Controller) UserChangePassword(c *fiber.Ctx) error {
	input := new(UserChangePasswordInput)
	if err := parseBody(c, input); err != nil {
		return err
	}
	user, err := middleware.User(c)
	if err != nil {
		return err
	}

	if err := h.auth.ChangePassword(c.UserContext(), user.ID, input.OldPassword, input.NewPassword); err != nil {
		return err
	}
	return Response(c, fiber.StatusOK, fiber.Map{}, "Password changed successfully")
}

func (h *Controller) UserUpdateAvatar(c *fiber.Ctx) error {
	user, err := middleware.User(c)
	if err != nil {
		return err
	}

	file, err := c.FormFile("avatar")
	if err != nil {
		return apierror.BadRequest("Avatar image is required")
	}

	name := uploads.FileName(file.Filename, time.Now())
	path := h.files.LocalPath(name)
	if err := c.SaveFile(file, path); err != nil {
		return err
	}

	updated, err := h.auth.UpdateAvatar(c.UserContext(), user.ID, model.Avatar{
		URL:       h.files.URL(c.Protocol(), c.Hostname(), name),
		LocalPath: path,
	})
	if err != nil {
		h.files.Remove(path)
		return err
	}
	return Response(c, fiber.StatusOK, updated, "Avatar updated successfully")
}
