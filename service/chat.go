package service

import (
	"context"
	"errors"
	"log/slog"
	"strings"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"chat-service/apierror"
	"chat-service/model"
)

const minGroupSize = 3

type ChatService struct {
	users   UserStore
	chats   ChatStore
	emitter Emitter
	files   FileRemover
	log     *slog.Logger
}

func NewChatService(
	log *slog.Logger,
	users UserStore,
	chats ChatStore,
	emitter Emitter,
	files FileRemover,
) *ChatService {
	return &ChatService{
		log:     log,
		users:   users,
		chats:   chats,
		emitter: emitter,
		files:   files,
	}
}

// emitToOthers sends the event to every participant's self room except the excluded user.
func (s *ChatService) emitToOthers(ctx context.Context, participants []string, exclude, event string, payload any) {
	for _, id := range participants {
		if id == exclude {
			continue
		}
		s.emitter.Emit(ctx, id, event, payload)
	}
}

func (s *ChatService) payload(ctx context.Context, chatID string) (*model.ChatPayload, error) {
	payload, err := s.chats.ChatPayload(ctx, chatID)
	if err != nil {
		s.log.ErrorContext(ctx, "chat - build payload - failed", "chat_id", chatID, "err", err)
		return nil, apierror.Internal("Internal server error")
	}
	return payload, nil
}

func (s *ChatService) findGroup(ctx context.Context, chatID string) (*model.Chat, error) {
	chat, err := s.chats.FindGroupChat(ctx, chatID)
	if errors.Is(err, model.ErrNotFound) {
		return nil, apierror.NotFound("Group chat not found")
	}
	return chat, err
}

// SearchAvailableUsers lists every user except the requester.
func (s *ChatService) SearchAvailableUsers(ctx context.Context, requester string) ([]model.UserSummary, error) {
	users, err := s.users.SearchUsers(ctx, requester)
	if err != nil {
		return nil, err
	}
	if users == nil {
		users = []model.UserSummary{}
	}
	return users, nil
}

// FindOrCreateDirectChat returns the one-on-one chat between requester and peer,
// creating it when absent. created reports whether a new chat was made.
func (s *ChatService) FindOrCreateDirectChat(ctx context.Context, requester, peerID string) (*model.ChatPayload, bool, error) {
	ctx, span := tracer.Start(ctx, "ChatService.FindOrCreateDirectChat", trace.WithAttributes(
		attribute.String("user_id", requester),
		attribute.String("peer_id", peerID),
	))
	defer span.End()

	peer, err := s.users.FindUserByID(ctx, peerID)
	if errors.Is(err, model.ErrNotFound) {
		return nil, false, fail(span, apierror.NotFound("Receiver user not found"))
	}
	if err != nil {
		return nil, false, fail(span, err)
	}
	if peer.ID == requester {
		return nil, false, fail(span, apierror.BadRequest("Cannot chat with yourself"))
	}

	existing, err := s.chats.FindDirectChat(ctx, requester, peer.ID)
	switch {
	case err == nil:
		payload, err := s.payload(ctx, existing.ID)
		if err != nil {
			return nil, false, fail(span, err)
		}
		return payload, false, nil
	case !errors.Is(err, model.ErrNotFound):
		return nil, false, fail(span, err)
	}

	key := model.DirectKey(requester, peer.ID)
	chat, created, err := s.chats.CreateChat(ctx, &model.Chat{
		Name:      model.DirectChatName,
		AdminID:   requester,
		DirectKey: &key,
	}, []string{requester, peer.ID})
	if err != nil {
		s.log.ErrorContext(ctx, "chat - direct chat - create failed", "user_id", requester, "peer_id", peer.ID, "err", err)
		return nil, false, fail(span, err)
	}

	payload, err := s.payload(ctx, chat.ID)
	if err != nil {
		return nil, false, fail(span, err)
	}
	if !created {
		// Lost the race against a concurrent creator; the unique pair key kept one chat.
		return payload, false, nil
	}

	s.emitToOthers(ctx, payload.ParticipantIDs(), requester, model.EventNewChat, payload)
	s.log.InfoContext(ctx, "chat - direct chat - created", "chat_id", chat.ID, "user_id", requester, "peer_id", peer.ID)
	return payload, true, nil
}

// CreateGroup creates a named group with the requester as admin.
func (s *ChatService) CreateGroup(ctx context.Context, requester, name string, participantIDs []string) (*model.ChatPayload, error) {
	ctx, span := tracer.Start(ctx, "ChatService.CreateGroup", trace.WithAttributes(
		attribute.String("user_id", requester),
		attribute.Int("participants", len(participantIDs)),
	))
	defer span.End()

	name = strings.TrimSpace(name)
	if name == "" {
		return nil, fail(span, apierror.BadRequest("Group name is required"))
	}

	members := make([]string, 0, len(participantIDs)+1)
	seen := make(map[string]struct{}, len(participantIDs)+1)
	for _, id := range participantIDs {
		if id == requester {
			return nil, fail(span, apierror.BadRequest("User cannot add himself to group chat"))
		}
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		members = append(members, id)
	}
	members = append(members, requester)

	if len(members) < minGroupSize {
		return nil, fail(span, apierror.BadRequest("At least 3 participants are required to create a group chat"))
	}

	for _, id := range members[:len(members)-1] {
		if _, err := s.users.FindUserByID(ctx, id); err != nil {
			if errors.Is(err, model.ErrNotFound) {
				return nil, fail(span, apierror.BadRequest("Participant "+id+" does not exist"))
			}
			return nil, fail(span, err)
		}
	}

	chat, _, err := s.chats.CreateChat(ctx, &model.Chat{
		Name:        name,
		IsGroupChat: true,
		AdminID:     requester,
	}, members)
	if err != nil {
		s.log.ErrorContext(ctx, "chat - create group - failed", "user_id", requester, "err", err)
		return nil, fail(span, err)
	}

	payload, err := s.payload(ctx, chat.ID)
	if err != nil {
		return nil, fail(span, err)
	}

	s.emitToOthers(ctx, payload.ParticipantIDs(), requester, model.EventNewChat, payload)
	s.log.InfoContext(ctx, "chat - create group - success", "chat_id", chat.ID, "user_id", requester, "members", len(members))
	return payload, nil
}

// GroupDetails returns the resolved group chat.
func (s *ChatService) GroupDetails(ctx context.Context, chatID string) (*model.ChatPayload, error) {
	ctx, span := tracer.Start(ctx, "ChatService.GroupDetails", trace.WithAttributes(
		attribute.String("chat_id", chatID),
	))
	defer span.End()

	if _, err := s.findGroup(ctx, chatID); err != nil {
		return nil, fail(span, err)
	}
	payload, err := s.payload(ctx, chatID)
	if err != nil {
		return nil, fail(span, err)
	}
	return payload, nil
}

// RenameGroup changes the name of a group. Admin only.
func (s *ChatService) RenameGroup(ctx context.Context, requester, chatID, name string) (*model.ChatPayload, error) {
	ctx, span := tracer.Start(ctx, "ChatService.RenameGroup", trace.WithAttributes(
		attribute.String("user_id", requester),
		attribute.String("chat_id", chatID),
	))
	defer span.End()

	name = strings.TrimSpace(name)
	if name == "" {
		return nil, fail(span, apierror.BadRequest("Group name is required"))
	}

	chat, err := s.findGroup(ctx, chatID)
	if err != nil {
		return nil, fail(span, err)
	}
	if chat.AdminID != requester {
		return nil, fail(span, apierror.Forbidden("Only group admin can rename the group chat"))
	}

	if err := s.chats.UpdateChat(ctx, chatID, map[string]any{"name": name}); err != nil {
		return nil, fail(span, err)
	}

	payload, err := s.payload(ctx, chatID)
	if err != nil {
		return nil, fail(span, err)
	}

	s.emitToOthers(ctx, payload.ParticipantIDs(), "", model.EventUpdateGroupName, payload)
	s.log.InfoContext(ctx, "chat - rename group - success", "chat_id", chatID, "user_id", requester)
	return payload, nil
}

// AddParticipant adds a user to a group. Admin only; only the added user is notified.
func (s *ChatService) AddParticipant(ctx context.Context, requester, chatID, participantID string) (*model.ChatPayload, error) {
	ctx, span := tracer.Start(ctx, "ChatService.AddParticipant", trace.WithAttributes(
		attribute.String("user_id", requester),
		attribute.String("chat_id", chatID),
		attribute.String("participant_id", participantID),
	))
	defer span.End()

	if participantID == "" {
		return nil, fail(span, apierror.BadRequest("Participant ID is required"))
	}

	chat, err := s.findGroup(ctx, chatID)
	if err != nil {
		return nil, fail(span, err)
	}
	if chat.AdminID != requester {
		return nil, fail(span, apierror.Forbidden("Only group admin can add participants to the group chat"))
	}
	if chat.HasParticipant(participantID) {
		return nil, fail(span, apierror.BadRequest("User is already a participant of the group chat"))
	}
	if _, err := s.users.FindUserByID(ctx, participantID); err != nil {
		if errors.Is(err, model.ErrNotFound) {
			return nil, fail(span, apierror.NotFound("User not found"))
		}
		return nil, fail(span, err)
	}

	if err := s.chats.AddParticipant(ctx, chatID, participantID); err != nil {
		return nil, fail(span, err)
	}

	payload, err := s.payload(ctx, chatID)
	if err != nil {
		return nil, fail(span, err)
	}

	s.emitter.Emit(ctx, participantID, model.EventNewChat, payload)
	s.log.InfoContext(ctx, "chat - add participant - success", "chat_id", chatID, "participant_id", participantID)
	return payload, nil
}

// RemoveParticipant removes a user from a group. Admin only; only the removed user is notified.
func (s *ChatService) RemoveParticipant(ctx context.Context, requester, chatID, participantID string) (*model.ChatPayload, error) {
	ctx, span := tracer.Start(ctx, "ChatService.RemoveParticipant", trace.WithAttributes(
		attribute.String("user_id", requester),
		attribute.String("chat_id", chatID),
		attribute.String("participant_id", participantID),
	))
	defer span.End()

	if participantID == "" {
		return nil, fail(span, apierror.BadRequest("Participant ID is required"))
	}

	chat, err := s.findGroup(ctx, chatID)
	if err != nil {
		return nil, fail(span, err)
	}
	if chat.AdminID != requester {
		return nil, fail(span, apierror.Forbidden("Only group admin can remove participants from the group chat"))
	}
	if !chat.HasParticipant(participantID) {
		return nil, fail(span, apierror.BadRequest("User is not a participant of the group chat"))
	}

	if err := s.chats.RemoveParticipant(ctx, chatID, participantID); err != nil {
		return nil, fail(span, err)
	}

	payload, err := s.payload(ctx, chatID)
	if err != nil {
		return nil, fail(span, err)
	}

	s.emitter.Emit(ctx, participantID, model.EventLeaveChat, payload)
	s.log.InfoContext(ctx, "chat - remove participant - success", "chat_id", chatID, "participant_id", participantID)
	return payload, nil
}

// LeaveGroup removes the requester from a group. Only the requester's own room is notified.
func (s *ChatService) LeaveGroup(ctx context.Context, requester, chatID string) (*model.ChatPayload, error) {
	ctx, span := tracer.Start(ctx, "ChatService.LeaveGroup", trace.WithAttributes(
		attribute.String("user_id", requester),
		attribute.String("chat_id", chatID),
	))
	defer span.End()

	chat, err := s.findGroup(ctx, chatID)
	if err != nil {
		return nil, fail(span, err)
	}
	if !chat.HasParticipant(requester) {
		return nil, fail(span, apierror.BadRequest("User is not a participant of the group chat"))
	}

	if err := s.chats.RemoveParticipant(ctx, chatID, requester); err != nil {
		return nil, fail(span, err)
	}

	payload, err := s.payload(ctx, chatID)
	if err != nil {
		return nil, fail(span, err)
	}

	s.emitter.Emit(ctx, requester, model.EventLeaveChat, payload)
	s.log.InfoContext(ctx, "chat - leave group - success", "chat_id", chatID, "user_id", requester)
	return payload, nil
}

// DeleteGroup deletes a group with its messages and attachments. Admin only.
func (s *ChatService) DeleteGroup(ctx context.Context, requester, chatID string) error {
	ctx, span := tracer.Start(ctx, "ChatService.DeleteGroup", trace.WithAttributes(
		attribute.String("user_id", requester),
		attribute.String("chat_id", chatID),
	))
	defer span.End()

	chat, err := s.findGroup(ctx, chatID)
	if err != nil {
		return fail(span, err)
	}
	if chat.AdminID != requester {
		return fail(span, apierror.Forbidden("Only group admin can delete the group chat"))
	}

	payload, err := s.deleteChat(ctx, chat)
	if err != nil {
		return fail(span, err)
	}

	s.emitToOthers(ctx, chat.Participants, requester, model.EventLeaveChat, payload)
	s.log.InfoContext(ctx, "chat - delete group - success", "chat_id", chatID, "user_id", requester)
	return nil
}

// DeleteDirectChat deletes a one-on-one chat. Either participant may delete it.
func (s *ChatService) DeleteDirectChat(ctx context.Context, requester, chatID string) error {
	ctx, span := tracer.Start(ctx, "ChatService.DeleteDirectChat", trace.WithAttributes(
		attribute.String("user_id", requester),
		attribute.String("chat_id", chatID),
	))
	defer span.End()

	chat, err := s.chats.FindChatByID(ctx, chatID)
	if errors.Is(err, model.ErrNotFound) || (err == nil && chat.IsGroupChat) {
		return fail(span, apierror.NotFound("Chat not found"))
	}
	if err != nil {
		return fail(span, err)
	}
	if !chat.HasParticipant(requester) {
		return fail(span, apierror.Forbidden("You are not a participant of this chat"))
	}

	payload, err := s.deleteChat(ctx, chat)
	if err != nil {
		return fail(span, err)
	}

	s.emitToOthers(ctx, chat.Participants, requester, model.EventLeaveChat, payload)
	s.log.InfoContext(ctx, "chat - delete direct chat - success", "chat_id", chatID, "user_id", requester)
	return nil
}

// deleteChat resolves the payload for the notification, then removes the chat,
// its messages and their attachment files.
func (s *ChatService) deleteChat(ctx context.Context, chat *model.Chat) (*model.ChatPayload, error) {
	payload, err := s.payload(ctx, chat.ID)
	if err != nil {
		return nil, err
	}

	removed, err := s.chats.DeleteChat(ctx, chat.ID)
	if err != nil {
		s.log.ErrorContext(ctx, "chat - delete chat - failed", "chat_id", chat.ID, "err", err)
		return nil, err
	}

	var paths []string
	for _, m := range removed {
		for _, a := range m.Attachments {
			paths = append(paths, a.LocalPath)
		}
	}
	s.files.Remove(paths...)

	return payload, nil
}

// ListChats returns the requester's chats in the store's insertion order.
func (s *ChatService) ListChats(ctx context.Context, requester string) ([]model.ChatPayload, error) {
	ctx, span := tracer.Start(ctx, "ChatService.ListChats", trace.WithAttributes(
		attribute.String("user_id", requester),
	))
	defer span.End()

	chats, err := s.chats.ListChatPayloads(ctx, requester)
	if err != nil {
		return nil, fail(span, err)
	}
	if chats == nil {
		chats = []model.ChatPayload{}
	}
	span.SetAttributes(attribute.Int("chat_count", len(chats)))
	return chats, nil
}
