package router

import (
	"context"
	"errors"
	"log/slog"

	"chat-service/apierror"
	"chat-service/model"
	"chat-service/socketio"
)

type SocketAuthenticator interface {
	Authenticate(ctx context.Context, token string) (*model.User, error)
}

func Socket(hub *socketio.Hub, auth SocketAuthenticator, log *slog.Logger) {
	hub.OnConnection(func(client socketio.Client) {
		Connection(client, auth, log)
	})
}

// Connection authenticates a new socket and mounts the chat events on it.
// Unauthenticated sockets receive socketError and are disconnected.
func Connection(client socketio.Client, auth SocketAuthenticator, log *slog.Logger) {
	ctx := context.Background()

	user, err := auth.Authenticate(ctx, client.Token())
	if err != nil {
		message := "Socket connection error"
		var apiErr *apierror.Error
		if errors.As(err, &apiErr) {
			message = apiErr.Message
		}
		log.WarnContext(ctx, "socket - handshake rejected", "socket_id", client.ID(), "err", err)
		client.Emit(model.EventSocketError, message)
		client.Disconnect()
		return
	}

	client.Join(user.ID)
	client.Emit(model.EventConnected)
	log.InfoContext(ctx, "socket - user connected", "user_id", user.ID, "socket_id", client.ID())

	client.On(model.EventJoinChat, func(args ...any) {
		chatID, ok := stringArg(args)
		if !ok {
			return
		}
		log.DebugContext(ctx, "socket - user joined chat", "user_id", user.ID, "chat_id", chatID)
		client.Join(chatID)
	})

	client.On(model.EventTyping, func(args ...any) {
		if chatID, ok := stringArg(args); ok {
			client.Broadcast(chatID, model.EventTyping, chatID)
		}
	})

	client.On(model.EventStopTyping, func(args ...any) {
		if chatID, ok := stringArg(args); ok {
			client.Broadcast(chatID, model.EventStopTyping, chatID)
		}
	})

	client.On(model.EventDisconnect, func(...any) {
		log.InfoContext(ctx, "socket - user disconnected", "user_id", user.ID, "socket_id", client.ID())
		client.Leave(user.ID)
	})
}

func stringArg(args []any) (string, bool) {
	if len(args) == 0 {
		return "", false
	}
	s, ok := args[0].(string)
	return s, ok && s != ""
}
