// Package notify holds the adapters behind service.Notifier.
package notify

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/pkordes/rideshare-booking/internal/domain"
)

// Message is the JSON body published for each notification.
type Message struct {
	UserID     string    `json:"user_id"`
	Title      string    `json:"title"`
	Body       string    `json:"body"`
	EntityKind string    `json:"entity_kind"`
	EntityID   string    `json:"entity_id"`
	SentAt     time.Time `json:"sent_at"`
}

// RoutingKey returns the topic routing key for notifications about ref.
func RoutingKey(ref domain.EntityRef) string {
	return "notification." + ref.Kind
}

var (
	// ErrQueueFull is returned by Notify when publishing has fallen too far behind.
	ErrQueueFull = errors.New("notification queue full")
	// ErrClosed is returned by Notify after Close.
	ErrClosed = errors.New("notifier closed")
)

// publisher is the part of *amqp.Channel the notifier needs.
type publisher interface {
	PublishWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error
}

// link is one open broker connection and its channel. connLost and chLost
// fire when the broker or the network closes either of them.
type link struct {
	pub      publisher
	close    func() error
	connLost <-chan *amqp.Error
	chLost   <-chan *amqp.Error
}

type dialer func() (link, error)

const (
	publishTimeout = 5 * time.Second
	maxBackoff     = 30 * time.Second
	queueSize      = 256
)

type outgoing struct {
	key string
	msg Message
}

// AMQPNotifier publishes notifications to a RabbitMQ topic exchange for a
// delivery service to pick up. Notify only enqueues; a background loop
// publishes, and another reconnects whenever the connection drops.
type AMQPNotifier struct {
	dial     dialer
	exchange string
	log      *slog.Logger
	now      func() time.Time
	backoff  time.Duration

	mu     sync.RWMutex
	cur    link // cur.pub is nil while reconnecting
	closed bool

	queue chan outgoing
	done  chan struct{}
	wg    sync.WaitGroup
}

// DialAMQP connects to url, retrying with backoff until attempts run out or
// ctx is done, and declares exchange as a durable topic exchange.
func DialAMQP(ctx context.Context, url, exchange string, attempts int, log *slog.Logger) (*AMQPNotifier, error) {
	n := newAMQPNotifier(func() (link, error) { return open(url, exchange) }, exchange, log)

	delay := n.backoff
	for attempt := 1; ; attempt++ {
		l, err := n.dial()
		if err == nil {
			log.Info("rabbitmq connected", slog.String("exchange", exchange), slog.Int("attempt", attempt))
			n.start(l)
			return n, nil
		}
		log.Warn("rabbitmq connection attempt failed",
			slog.Int("attempt", attempt),
			slog.Int("max_attempts", attempts),
			slog.String("error", err.Error()),
		)
		if attempt >= attempts {
			return nil, fmt.Errorf("notify.DialAMQP: after %d attempts: %w", attempt, err)
		}

		select {
		case <-ctx.Done():
			return nil, fmt.Errorf("notify.DialAMQP: %w", ctx.Err())
		case <-time.After(delay):
			delay = min(delay*3/2, maxBackoff)
		}
	}
}

func open(url, exchange string) (link, error) {
	conn, err := amqp.Dial(url)
	if err != nil {
		return link{}, fmt.Errorf("dial: %w", err)
	}
	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return link{}, fmt.Errorf("open channel: %w", err)
	}
	if err := ch.ExchangeDeclare(
		exchange,
		amqp.ExchangeTopic,
		true,  // durable
		false, // auto-deleted
		false, // internal
		false, // no-wait
		nil,
	); err != nil {
		_ = conn.Close()
		return link{}, fmt.Errorf("declare exchange %s: %w", exchange, err)
	}
	return link{
		pub:      ch,
		close:    conn.Close,
		connLost: conn.NotifyClose(make(chan *amqp.Error, 1)),
		chLost:   ch.NotifyClose(make(chan *amqp.Error, 1)),
	}, nil
}

func newAMQPNotifier(dial dialer, exchange string, log *slog.Logger) *AMQPNotifier {
	return &AMQPNotifier{
		dial:     dial,
		exchange: exchange,
		log:      log,
		now:      time.Now,
		backoff:  time.Second,
		queue:    make(chan outgoing, queueSize),
		done:     make(chan struct{}),
	}
}

// start installs the first link and runs the publish and watch loops.
func (n *AMQPNotifier) start(l link) {
	n.mu.Lock()
	n.cur = l
	n.mu.Unlock()

	n.wg.Add(2)
	go n.publishLoop()
	go n.watch()
}

// Notify queues one persistent message routed by the referenced entity kind
// and returns without waiting for the broker. ctx is not used for the
// publish, so a caller that goes away does not drop the message.
func (n *AMQPNotifier) Notify(_ context.Context, userID uuid.UUID, title, body string, ref domain.EntityRef) error {
	out := outgoing{
		key: RoutingKey(ref),
		msg: Message{
			UserID:     userID.String(),
			Title:      title,
			Body:       body,
			EntityKind: ref.Kind,
			EntityID:   ref.ID.String(),
			SentAt:     n.now().UTC(),
		},
	}

	n.mu.RLock()
	defer n.mu.RUnlock()
	if n.closed {
		return fmt.Errorf("notify.AMQPNotifier.Notify: %w", ErrClosed)
	}
	select {
	case n.queue <- out:
		return nil
	default:
		return fmt.Errorf("notify.AMQPNotifier.Notify: %s: %w", out.key, ErrQueueFull)
	}
}

func (n *AMQPNotifier) publishLoop() {
	defer n.wg.Done()
	for {
		select {
		case out := <-n.queue:
			n.publish(out)
		case <-n.done:
			for {
				select {
				case out := <-n.queue:
					n.publish(out)
				default:
					return
				}
			}
		}
	}
}

// publish sends one message under its own timeout and logs any failure.
func (n *AMQPNotifier) publish(out outgoing) {
	log := n.log.With(
		slog.String("routing_key", out.key),
		slog.String("user_id", out.msg.UserID),
		slog.String("entity_id", out.msg.EntityID),
	)

	n.mu.RLock()
	pub := n.cur.pub
	n.mu.RUnlock()
	if pub == nil {
		log.Warn("notification not published", slog.String("error", "rabbitmq not connected"))
		return
	}

	payload, err := json.Marshal(out.msg)
	if err != nil {
		log.Error("notification not published", slog.String("error", err.Error()))
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), publishTimeout)
	defer cancel()

	err = pub.PublishWithContext(ctx, n.exchange, out.key,
		false, // mandatory
		false, // immediate
		amqp.Publishing{
			ContentType:  "application/json",
			Body:         payload,
			DeliveryMode: amqp.Persistent,
			Timestamp:    out.msg.SentAt,
			MessageId:    uuid.NewString(),
		},
	)
	if err != nil {
		log.Warn("notification not published", slog.String("error", err.Error()))
		return
	}
	log.Debug("notification published")
}

// watch waits for the current link to drop and replaces it, until Close.
func (n *AMQPNotifier) watch() {
	defer n.wg.Done()
	for {
		n.mu.RLock()
		l := n.cur
		n.mu.RUnlock()

		var reason *amqp.Error
		select {
		case <-n.done:
			return
		case reason = <-l.connLost:
		case reason = <-l.chLost:
		}

		n.mu.Lock()
		if n.closed {
			n.mu.Unlock()
			return
		}
		n.cur = link{}
		n.mu.Unlock()
		if l.close != nil {
			_ = l.close()
		}

		msg := "connection closed"
		if reason != nil {
			msg = reason.Error()
		}
		n.log.Warn("rabbitmq connection lost, reconnecting", slog.String("reason", msg))

		if !n.reconnect() {
			return
		}
	}
}

// reconnect dials until it succeeds or Close is called, backing off 1.5x
// per attempt up to maxBackoff.
func (n *AMQPNotifier) reconnect() bool {
	delay := n.backoff
	for attempt := 1; ; attempt++ {
		l, err := n.dial()
		if err == nil {
			n.mu.Lock()
			if n.closed {
				n.mu.Unlock()
				_ = l.close()
				return false
			}
			n.cur = l
			n.mu.Unlock()
			n.log.Info("rabbitmq reconnected", slog.String("exchange", n.exchange), slog.Int("attempt", attempt))
			return true
		}
		n.log.Warn("rabbitmq reconnect attempt failed",
			slog.Int("attempt", attempt),
			slog.Duration("retry_in", delay),
			slog.String("error", err.Error()),
		)

		select {
		case <-n.done:
			return false
		case <-time.After(delay):
			delay = min(delay*3/2, maxBackoff)
		}
	}
}

// Close stops accepting notifications, publishes what is already queued and
// closes the broker connection.
func (n *AMQPNotifier) Close() error {
	n.mu.Lock()
	if n.closed {
		n.mu.Unlock()
		return nil
	}
	n.closed = true
	close(n.done)
	n.mu.Unlock()

	n.wg.Wait()

	n.mu.Lock()
	l := n.cur
	n.cur = link{}
	n.mu.Unlock()
	if l.close == nil {
		return nil
	}
	return l.close()
}
