package client

import (
	"sync"
	"time"

	"chat-service/model"
)

const TypingIdle = 3000 * time.Millisecond

// Socket is the outbound half of the realtime connection.
type Socket interface {
	Emit(event string, args ...any)
}

// TypingNotifier emits typing once per idle-to-active transition and
// stopTyping after the idle window passes with no keystroke.
type TypingNotifier struct {
	socket Socket
	idle   time.Duration

	mu     sync.Mutex
	chatID string
	timer  *time.Timer
	// gen invalidates timers that fired after being replaced or stopped.
	gen uint64
}

func NewTypingNotifier(socket Socket, idle time.Duration) *TypingNotifier {
	if idle <= 0 {
		idle = TypingIdle
	}
	return &TypingNotifier{socket: socket, idle: idle}
}

// Keystroke records local input in the given chat.
func (n *TypingNotifier) Keystroke(chatID string) {
	n.mu.Lock()
	defer n.mu.Unlock()

	if n.timer != nil && n.chatID != chatID {
		n.stopLocked()
	}
	if n.timer == nil {
		n.chatID = chatID
		n.socket.Emit(model.EventTyping, chatID)
	} else {
		n.timer.Stop()
	}

	n.gen++
	gen := n.gen
	n.timer = time.AfterFunc(n.idle, func() {
		n.mu.Lock()
		defer n.mu.Unlock()
		if n.gen != gen {
			return
		}
		n.stopLocked()
	})
}

// Stop ends the active typing state right away, e.g. when the message is sent.
func (n *TypingNotifier) Stop() {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.stopLocked()
}

func (n *TypingNotifier) Typing() bool {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.timer != nil
}

func (n *TypingNotifier) stopLocked() {
	if n.timer == nil {
		return
	}
	n.timer.Stop()
	n.timer = nil
	n.gen++
	n.socket.Emit(model.EventStopTyping, n.chatID)
}
