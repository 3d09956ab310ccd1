package controller

import (
	"fmt"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"

	"chat-service/apierror"
	"chat-service/middleware"
	"chat-service/model"
	"chat-service/uploads"
)

type MessageSendInput struct {
	Content string `json:"content" form:"content"`
}

func (h *Controller) MessageList(c *fiber.Ctx) error {
	user, err := middleware.User(c)
	if err != nil {
		return err
	}
	messages, err := h.messages.ListMessages(c.UserContext(), user.ID, c.Params("chatId"))
	if err != nil {
		return err
	}
	return Response(c, fiber.StatusOK, messages, "Messages fetched successfully")
}

// saveAttachments stores the uploaded attachments. Non-multipart requests carry
// none. On failure the files saved so far are removed.
func (h *Controller) saveAttachments(c *fiber.Ctx) ([]model.Attachment, error) {
	if !strings.HasPrefix(c.Get(fiber.HeaderContentType), fiber.MIMEMultipartForm) {
		return nil, nil
	}
	form, err := c.MultipartForm()
	if err != nil {
		return nil, apierror.BadRequest("Invalid multipart form data")
	}
	files := form.File["attachments"]
	if len(files) > h.opts.MaxAttachments {
		return nil, apierror.BadRequest(fmt.Sprintf("Maximum %d attachments are allowed", h.opts.MaxAttachments))
	}

	attachments := make([]model.Attachment, 0, len(files))
	for _, file := range files {
		name := uploads.FileName(file.Filename, time.Now())
		path := h.files.LocalPath(name)
		if err := c.SaveFile(file, path); err != nil {
			for _, a := range attachments {
				h.files.Remove(a.LocalPath)
			}
			return nil, err
		}
		attachments = append(attachments, model.Attachment{
			URL:       h.files.URL(c.Protocol(), c.Hostname(), name),
			LocalPath: path,
		})
	}
	return attachments, nil
}

func (h *Controller) MessageSend(c *fiber.Ctx) error {
	user, err := middleware.User(c)
	if err != nil {
		return err
	}
	input := new(MessageSendInput)
	if err := parseBody(c, input); err != nil {
		return err
	}
	attachments, err := h.saveAttachments(c)
	if err != nil {
		return err
	}

	message, err := h.messages.PostMessage(c.UserContext(), user.ID, c.Params("chatId"), input.Content, attachments)
	if err != nil {
		paths := make([]string, 0, len(attachments))
		for _, a := range attachments {
			paths = append(paths, a.LocalPath)
		}
		h.files.Remove(paths...)
		return err
	}
	return Response(c, fiber.StatusCreated, message, "Message sent successfully")
}

func (h *Controller) MessageDelete(c *fiber.Ctx) error {
	user, err := middleware.User(c)
	if err != nil {
		return err
	}
	message, err := h.messages.DeleteMessage(c.UserContext(), user.ID, c.Params("chatId"), c.Params("messageId"))
	if err != nil {
		return err
	}
	return Response(c, fiber.StatusOK, message, "Message deleted successfully")
}
