package client

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"chat-service/model"
)

type emitted struct {
	event string
	args  []any
}

type recordingSocket struct {
	mu     sync.Mutex
	events []emitted
}

func (s *recordingSocket) Emit(event string, args ...any) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, emitted{event: event, args: args})
}

func (s *recordingSocket) names() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, 0, len(s.events))
	for _, e := range s.events {
		out = append(out, e.event)
	}
	return out
}

func TestTypingEmitsOncePerBurst(t *testing.T) {
	socket := &recordingSocket{}
	n := NewTypingNotifier(socket, 50*time.Millisecond)

	n.Keystroke("chat-1")
	n.Keystroke("chat-1")
	n.Keystroke("chat-1")
	assert.Equal(t, []string{model.EventTyping}, socket.names())
	assert.True(t, n.Typing())

	assert.Eventually(t, func() bool { return !n.Typing() }, time.Second, 10*time.Millisecond)
	assert.Equal(t, []string{model.EventTyping, model.EventStopTyping}, socket.names())
	assert.Equal(t, []any{"chat-1"}, socket.events[1].args)
}

func TestTypingTimerResetsOnKeystroke(t *testing.T) {
	socket := &recordingSocket{}
	n := NewTypingNotifier(socket, 200*time.Millisecond)

	n.Keystroke("chat-1")
	for i := 0; i < 4; i++ {
		time.Sleep(50 * time.Millisecond)
		n.Keystroke("chat-1")
	}
	assert.Equal(t, []string{model.EventTyping}, socket.names())

	assert.Eventually(t, func() bool { return !n.Typing() }, time.Second, 10*time.Millisecond)
	assert.Equal(t, []string{model.EventTyping, model.EventStopTyping}, socket.names())
}

func TestTypingStopIsImmediate(t *testing.T) {
	socket := &recordingSocket{}
	n := NewTypingNotifier(socket, time.Hour)

	n.Stop()
	assert.Empty(t, socket.names())

	n.Keystroke("chat-1")
	n.Stop()
	n.Stop()
	assert.Equal(t, []string{model.EventTyping, model.EventStopTyping}, socket.names())

	n.Keystroke("chat-1")
	assert.Equal(t, []string{model.EventTyping, model.EventStopTyping, model.EventTyping}, socket.names())
}

func TestTypingSwitchingChatStopsPrevious(t *testing.T) {
	socket := &recordingSocket{}
	n := NewTypingNotifier(socket, time.Hour)

	n.Keystroke("chat-1")
	n.Keystroke("chat-2")

	assert.Equal(t, []string{model.EventTyping, model.EventStopTyping, model.EventTyping}, socket.names())
	assert.Equal(t, []any{"chat-1"}, socket.events[1].args)
	assert.Equal(t, []any{"chat-2"}, socket.events[2].args)
	n.Stop()
}
