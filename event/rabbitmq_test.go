package event

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"chat-service/config"
)

var testLog = slog.New(slog.NewTextHandler(io.Discard, nil))

type fakePublisher struct {
	keys []string
	msgs []amqp.Publishing
	err  error
}

func (p *fakePublisher) PublishWithContext(_ context.Context, _, key string, _, _ bool, msg amqp.Publishing) error {
	p.keys = append(p.keys, key)
	p.msgs = append(p.msgs, msg)
	return p.err
}

func readLog(t *testing.T, path string) []LogData {
	t.Helper()
	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()

	var out []LogData
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		var d LogData
		require.NoError(t, json.Unmarshal(scanner.Bytes(), &d))
		out = append(out, d)
	}
	require.NoError(t, scanner.Err())
	return out
}

func TestBusPublishesAndLogs(t *testing.T) {
	outLog := filepath.Join(t.TempDir(), "log", "out.log")
	bus, err := RabbitMQConnect(testLog, config.RabbitMQSettings{
		Queue:     "chat-events",
		EventMode: "OUT",
		OutLog:    outLog,
	})
	require.NoError(t, err)
	pub := &fakePublisher{}
	bus.channel = pub

	bus.Emit(context.Background(), "user-1", "messageReceived", map[string]string{"content": "hi"})
	bus.Close()

	require.Len(t, pub.msgs, 1)
	assert.Equal(t, "chat-events", pub.keys[0])
	assert.Equal(t, "messageReceived", pub.msgs[0].Headers[RabbitMQActionHeader])

	var env struct {
		Room    string            `json:"room"`
		Event   string            `json:"event"`
		Payload map[string]string `json:"payload"`
	}
	require.NoError(t, json.Unmarshal(pub.msgs[0].Body, &env))
	assert.Equal(t, "user-1", env.Room)
	assert.Equal(t, "hi", env.Payload["content"])

	lines := readLog(t, outLog)
	require.Len(t, lines, 1)
	assert.Equal(t, "messageReceived", lines[0].Action)
	assert.Equal(t, string(pub.msgs[0].Body), lines[0].Data)
}

func TestBusSwallowsPublishErrors(t *testing.T) {
	bus, err := RabbitMQConnect(testLog, config.RabbitMQSettings{Queue: "chat-events", EventMode: ModeDisable})
	require.NoError(t, err)
	pub := &fakePublisher{err: errors.New("channel closed")}
	bus.channel = pub

	assert.NotPanics(t, func() {
		bus.Emit(context.Background(), "user-1", "newChat", nil)
		bus.Close()
	})
	assert.Len(t, pub.msgs, 1)
	assert.Nil(t, bus.outLog)
}

type blockingPublisher struct {
	release chan struct{}
	mu      sync.Mutex
	events  []string
}

func (p *blockingPublisher) PublishWithContext(_ context.Context, _, _ string, _, _ bool, msg amqp.Publishing) error {
	<-p.release
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, msg.Headers[RabbitMQActionHeader].(string))
	return nil
}

func TestBusEmitDoesNotWaitForBroker(t *testing.T) {
	bus, err := RabbitMQConnect(testLog, config.RabbitMQSettings{Queue: "chat-events", EventMode: ModeDisable})
	require.NoError(t, err)
	pub := &blockingPublisher{release: make(chan struct{})}
	bus.channel = pub

	returned := make(chan struct{})
	go func() {
		bus.Emit(context.Background(), "user-1", "newChat", nil)
		bus.Emit(context.Background(), "user-2", "messageReceived", nil)
		close(returned)
	}()

	select {
	case <-returned:
	case <-time.After(time.Second):
		t.Fatal("Emit blocked on the broker")
	}

	close(pub.release)
	bus.Close()
	assert.Equal(t, []string{"newChat", "messageReceived"}, pub.events)

	assert.NotPanics(t, func() {
		bus.Emit(context.Background(), "user-3", "newChat", nil)
	})
}

func TestBusDropsWhenQueueIsFull(t *testing.T) {
	bus, err := RabbitMQConnect(testLog, config.RabbitMQSettings{Queue: "chat-events", EventMode: ModeDisable})
	require.NoError(t, err)
	pub := &blockingPublisher{release: make(chan struct{})}
	bus.channel = pub

	// One event is held by the blocked worker and QueueSize more fill the buffer.
	for i := 0; i < QueueSize+10; i++ {
		bus.Emit(context.Background(), "user-1", "typing", nil)
	}

	close(pub.release)
	bus.Close()
	assert.LessOrEqual(t, len(pub.events), QueueSize+1)
	assert.GreaterOrEqual(t, len(pub.events), QueueSize)
}

type recorder struct{ rooms []string }

func (r *recorder) Emit(_ context.Context, room, _ string, _ any) {
	r.rooms = append(r.rooms, room)
}

func TestFanout(t *testing.T) {
	a, b := &recorder{}, &recorder{}
	Fanout{a, nil, b}.Emit(context.Background(), "room", "event", nil)
	assert.Equal(t, []string{"room"}, a.rooms)
	assert.Equal(t, []string{"room"}, b.rooms)
}
