package socketio

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	eiolog "github.com/zishang520/engine.io/v2/log"
	"github.com/zishang520/engine.io/v2/types"
	"github.com/zishang520/socket.io/v2/socket"

	"chat-service/config"
)

const AccessTokenCookie = "accessToken"

// Hub owns the socket.io server. Every user joins a room named after their id,
// so Emit(userID, ...) reaches all of that user's connections.
type Hub struct {
	server  *socket.Server
	options *socket.ServerOptions
	log     *slog.Logger
}

func Init(log *slog.Logger, cfg config.SocketSettings, corsOrigin string) *Hub {
	eiolog.DEBUG = cfg.Debug

	options := socket.DefaultServerOptions()
	options.SetServeClient(false)
	options.SetPingTimeout(cfg.PingTimeout)
	options.SetPingInterval(cfg.PingInterval)
	options.SetCors(&types.Cors{
		Origin:      corsOrigin,
		Credentials: true,
	})

	return &Hub{
		server:  socket.NewServer(nil, nil),
		options: options,
		log:     log,
	}
}

// Mount serves the socket.io transport on the fiber app.
func (h *Hub) Mount(app *fiber.App) {
	handler := adaptor.HTTPHandler(h.server.ServeHandler(h.options))
	app.Get("/socket.io/", handler)
	app.Post("/socket.io/", handler)
}

// OnConnection registers the handler run for every new socket.
func (h *Hub) OnConnection(handler func(Client)) {
	h.server.On("connection", func(clients ...any) {
		s, ok := clients[0].(*socket.Socket)
		if !ok {
			return
		}
		handler(&socketClient{socket: s})
	})
}

// Emit sends the event to every socket in room.
func (h *Hub) Emit(ctx context.Context, room, event string, payload any) {
	h.server.To(socket.Room(room)).Emit(event, payload)
	h.log.DebugContext(ctx, "socket - emit", "room", room, "event", event)
}

func (h *Hub) Close() {
	h.server.Close(nil)
}

// Client is one socket connection as seen by the event handlers.
type Client interface {
	ID() string
	// Token returns the access token from the handshake cookie, the auth
	// payload or the query string, in that order.
	Token() string
	Join(room string)
	Leave(room string)
	Emit(event string, args ...any)
	// Broadcast sends to everyone in room except this client.
	Broadcast(room, event string, args ...any)
	On(event string, handler func(args ...any))
	Disconnect()
}

type socketClient struct {
	socket *socket.Socket
}

func (c *socketClient) ID() string {
	return string(c.socket.Id())
}

func (c *socketClient) Token() string {
	req := c.socket.Conn().Request()

	if raw, ok := req.Headers().Get("Cookie"); ok {
		if token := CookieValue(raw, AccessTokenCookie); token != "" {
			return token
		}
	}

	var auth any = c.socket.Handshake().Auth
	if m, ok := auth.(map[string]any); ok {
		if token, ok := m[AccessTokenCookie].(string); ok && token != "" {
			return token
		}
	}

	if token, ok := req.Query().Get("token"); ok {
		return token
	}
	return ""
}

func (c *socketClient) Join(room string) {
	c.socket.Join(socket.Room(room))
}

func (c *socketClient) Leave(room string) {
	c.socket.Leave(socket.Room(room))
}

func (c *socketClient) Emit(event string, args ...any) {
	c.socket.Emit(event, args...)
}

func (c *socketClient) Broadcast(room, event string, args ...any) {
	c.socket.To(socket.Room(room)).Emit(event, args...)
}

func (c *socketClient) On(event string, handler func(args ...any)) {
	c.socket.On(event, func(args ...any) {
		handler(args...)
	})
}

func (c *socketClient) Disconnect() {
	c.socket.Disconnect(true)
}

// CookieValue extracts a named cookie from a raw Cookie header.
func CookieValue(header, name string) string {
	req := http.Request{Header: http.Header{"Cookie": {header}}}
	cookie, err := req.Cookie(name)
	if err != nil {
		return ""
	}
	return cookie.Value
}
