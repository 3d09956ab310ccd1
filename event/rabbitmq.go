package event

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"

	"chat-service/config"
)

const (
	RabbitMQActionHeader = "x-action"

	ModeDisable = "DISABLE"
)

// Envelope is the body of every published event.
type Envelope struct {
	Room    string `json:"room"`
	Event   string `json:"event"`
	Payload any    `json:"payload"`
}

// LogData is one line of the outgoing event log.
type LogData struct {
	Time    int64  `json:"time"`
	Service string `json:"service"`
	Action  string `json:"action"`
	Data    string `json:"data"`
}

type publisher interface {
	PublishWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error
}

// QueueSize bounds the events waiting for publication. Emit drops events when
// the queue is full.
const QueueSize = 1024

type pending struct {
	ctx   context.Context
	room  string
	event string
	data  []byte
}

// Bus publishes realtime events to a RabbitMQ queue and appends them to the
// outgoing event log. A single worker drains the queue so Emit never blocks
// on the broker. Failures are logged and never returned to the caller.
type Bus struct {
	queue   string
	log     *slog.Logger
	conn    *amqp.Connection
	channel publisher

	sendMu  sync.RWMutex
	pending chan pending
	closed  bool
	done    sync.WaitGroup

	mu     sync.Mutex
	outLog *os.File
}

func newBus(log *slog.Logger, queue string) *Bus {
	b := &Bus{
		queue:   queue,
		log:     log,
		pending: make(chan pending, QueueSize),
	}
	b.done.Add(1)
	go b.run()
	return b
}

func (b *Bus) run() {
	defer b.done.Done()
	for p := range b.pending {
		b.publish(p)
	}
}

// RabbitMQConnect dials the broker and declares the event queue. An empty URL
// yields a bus that only writes the event log.
func RabbitMQConnect(log *slog.Logger, cfg config.RabbitMQSettings) (*Bus, error) {
	bus := newBus(log, cfg.Queue)

	if cfg.EventMode != ModeDisable {
		if err := os.MkdirAll(filepath.Dir(cfg.OutLog), 0o755); err != nil {
			bus.Close()
			return nil, fmt.Errorf("create event log dir: %w", err)
		}
		f, err := os.OpenFile(cfg.OutLog, os.O_APPEND|os.O_WRONLY|os.O_CREATE, 0o600)
		if err != nil {
			bus.Close()
			return nil, fmt.Errorf("open event log: %w", err)
		}
		bus.outLog = f
	}

	if cfg.URL == "" {
		log.Info("rabbitmq url not set, event publication disabled")
		return bus, nil
	}

	conn, err := amqp.Dial(cfg.URL)
	if err != nil {
		bus.Close()
		return nil, fmt.Errorf("connect rabbitmq: %w", err)
	}
	log.Info("connection opened to rabbitmq server")

	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		bus.Close()
		return nil, fmt.Errorf("open rabbitmq channel: %w", err)
	}

	if _, err := ch.QueueDeclare(
		cfg.Queue, // name
		true,      // durable
		false,     // delete when unused
		false,     // exclusive
		false,     // no-wait
		nil,       // arguments
	); err != nil {
		conn.Close()
		bus.Close()
		return nil, fmt.Errorf("declare rabbitmq queue %s: %w", cfg.Queue, err)
	}
	log.Info("success declare a rabbitmq queue", "queue", cfg.Queue)

	bus.conn = conn
	bus.channel = ch
	return bus, nil
}

// Emit queues the event addressed to room for publication. It satisfies the
// service emitter.
func (b *Bus) Emit(ctx context.Context, room, event string, payload any) {
	data, err := json.Marshal(Envelope{Room: room, Event: event, Payload: payload})
	if err != nil {
		b.log.ErrorContext(ctx, "event - marshal failed", "event", event, "err", err)
		return
	}

	b.sendMu.RLock()
	defer b.sendMu.RUnlock()
	if b.closed {
		b.log.WarnContext(ctx, "event - bus closed, dropped", "event", event, "room", room)
		return
	}
	select {
	case b.pending <- pending{ctx: context.WithoutCancel(ctx), room: room, event: event, data: data}:
	default:
		b.log.ErrorContext(ctx, "event - queue full, dropped", "event", event, "room", room)
	}
}

func (b *Bus) publish(p pending) {
	if b.channel != nil {
		pubCtx, cancel := context.WithTimeout(p.ctx, 5*time.Second)
		err := b.channel.PublishWithContext(
			pubCtx,
			"",      // exchange
			b.queue, // routing key
			false,   // mandatory
			false,   // immediate
			amqp.Publishing{
				DeliveryMode: amqp.Persistent,
				ContentType:  "application/json",
				Headers: amqp.Table{
					RabbitMQActionHeader: p.event,
				},
				Body: p.data,
			},
		)
		cancel()
		if err != nil {
			b.log.ErrorContext(p.ctx, "event - publish failed", "event", p.event, "room", p.room, "err", err)
		}
	}

	b.writeOutLog(p.ctx, LogData{
		Time:    time.Now().UnixMicro(),
		Service: b.queue,
		Action:  p.event,
		Data:    string(p.data),
	})
}

func (b *Bus) writeOutLog(ctx context.Context, data LogData) {
	if b.outLog == nil {
		return
	}
	line, err := json.Marshal(data)
	if err != nil {
		return
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	if _, err := b.outLog.Write(append(line, '\n')); err != nil {
		b.log.ErrorContext(ctx, "event - write out log failed", "err", err)
	}
}

// Close publishes the queued events, then closes the broker connection and the log.
func (b *Bus) Close() {
	b.sendMu.Lock()
	if !b.closed {
		b.closed = true
		close(b.pending)
	}
	b.sendMu.Unlock()
	b.done.Wait()

	if c, ok := b.channel.(*amqp.Channel); ok {
		c.Close()
	}
	if b.conn != nil {
		b.conn.Close()
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.outLog != nil {
		b.outLog.Close()
		b.outLog = nil
	}
}
