package controller

import (
	"github.com/gofiber/fiber/v2"

	"chat-service/middleware"
)

type ChatGroupCreateInput struct {
	Name         string   `json:"name"`
	Participants []string `json:"participants"`
}

type ChatGroupRenameInput struct {
	Name string `json:"name"`
}

func (h *Controller) ChatList(c *fiber.Ctx) error {
	user, err := middleware.User(c)
	if err != nil {
		return err
	}
	chats, err := h.chats.ListChats(c.UserContext(), user.ID)
	if err != nil {
		return err
	}
	return Response(c, fiber.StatusOK, chats, "All chats fetched successfully")
}

func (h *Controller) ChatSearchUsers(c *fiber.Ctx) error {
	user, err := middleware.User(c)
	if err != nil {
		return err
	}
	users, err := h.chats.SearchAvailableUsers(c.UserContext(), user.ID)
	if err != nil {
		return err
	}
	return Response(c, fiber.StatusOK, users, "Users fetched successfully")
}

func (h *Controller) ChatDirect(c *fiber.Ctx) error {
	user, err := middleware.User(c)
	if err != nil {
		return err
	}
	chat, created, err := h.chats.FindOrCreateDirectChat(c.UserContext(), user.ID, c.Params("receiverId"))
	if err != nil {
		return err
	}
	if !created {
		return Response(c, fiber.StatusOK, chat, "Chat retrieved successfully")
	}
	return Response(c, fiber.StatusCreated, chat, "Chat retrieved successfully")
}

func (h *Controller) ChatGroupCreate(c *fiber.Ctx) error {
	input := new(ChatGroupCreateInput)
	if err := parseBody(c, input); err != nil {
		return err
	}
	user, err := middleware.User(c)
	if err != nil {
		return err
	}
	chat, err := h.chats.CreateGroup(c.UserContext(), user.ID, input.Name, input.Participants)
	if err != nil {
		return err
	}
	return Response(c, fiber.StatusCreated, chat, "Group chat created successfully")
}

func (h *Controller) ChatGroupDetails(c *fiber.Ctx) error {
	chat, err := h.chats.GroupDetails(c.UserContext(), c.Params("chatId"))
	if err != nil {
		return err
	}
	return Response(c, fiber.StatusOK, chat, "Group chat details fetched successfully")
}

func (h *Controller) ChatGroupRename(c *fiber.Ctx) error {
	input := new(ChatGroupRenameInput)
	if err := parseBody(c, input); err != nil {
		return err
	}
	user, err := middleware.User(c)
	if err != nil {
		return err
	}
	chat, err := h.chats.RenameGroup(c.UserContext(), user.ID, c.Params("chatId"), input.Name)
	if err != nil {
		return err
	}
	return Response(c, fiber.StatusOK, chat, "Group chat updated successfully")
}

func (h *Controller) ChatGroupDelete(c *fiber.Ctx) error {
	user, err := middleware.User(c)
	if err != nil {
		return err
	}
	if err := h.chats.DeleteGroup(c.UserContext(), user.ID, c.Params("chatId")); err != nil {
		return err
	}
	return Response(c, fiber.StatusOK, nil, "Group chat deleted successfully")
}

func (h *Controller) ChatGroupAddParticipant(c *fiber.Ctx) error {
	user, err := middleware.User(c)
	if err != nil {
		return err
	}
	chat, err := h.chats.AddParticipant(c.UserContext(), user.ID, c.Params("chatId"), c.Params("participantId"))
	if err != nil {
		return err
	}
	return Response(c, fiber.StatusOK, chat, "Participant added successfully")
}

func (h *Controller) ChatGroupRemoveParticipant(c *fiber.Ctx) error {
	user, err := middleware.User(c)
	if err != nil {
		return err
	}
	chat, err := h.chats.RemoveParticipant(c.UserContext(), user.ID, c.Params("chatId"), c.Params("participantId"))
	if err != nil {
		return err
	}
	return Response(c, fiber.StatusOK, chat, "Participant removed successfully")
}

func (h *Controller) ChatGroupLeave(c *fiber.Ctx) error {
	user, err := middleware.User(c)
	if err != nil {
		return err
	}
	chat, err := h.chats.LeaveGroup(c.UserContext(), user.ID, c.Params("chatId"))
	if err != nil {
		return err
	}
	return Response(c, fiber.StatusOK, chat, "Left group chat successfully")
}

func (h *Controller) ChatDirectDelete(c *fiber.Ctx) error {
	user, err := middleware.User(c)
	if err != nil {
		return err
	}
	if err := h.chats.DeleteDirectChat(c.UserContext(), user.ID, c.Params("chatId")); err != nil {
		return err
	}
	return Response(c, fiber.StatusOK, nil, "Chat deleted successfully")
}
