package mail

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
	"go.uber.org/zap"
)

// TopicOutbound carries mail waiting for delivery
const TopicOutbound = "mail.outbound"

const sendTimeout = 30 * time.Second

// Message is the queued mail payload
type Message struct {
	To      string `json:"to"`
	Subject string `json:"subject"`
	Body    string `json:"body"`
}

// Queue publishes outbound mail for asynchronous delivery
type Queue struct {
	publisher message.Publisher
}

func NewQueue(publisher message.Publisher) *Queue {
	return &Queue{publisher: publisher}
}

// Enqueue hands msg to the dispatcher. It returns once the message is
// published, not once it is delivered.
func (q *Queue) Enqueue(ctx context.Context, msg Message) error {
	payload, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("failed to encode mail message: %w", err)
	}
	wm := message.NewMessage(watermill.NewUUID(), payload)
	wm.SetContext(ctx)
	if err := q.publisher.Publish(TopicOutbound, wm); err != nil {
		return fmt.Errorf("failed to publish mail message: %w", err)
	}
	return nil
}

// Dispatcher consumes TopicOutbound and delivers each message through a
// Mailer. Failed deliveries are logged and acked; there is no retry.
type Dispatcher struct {
	subscriber message.Subscriber
	mailer     Mailer
	log        *zap.Logger
	done       chan struct{}
}

func NewDispatcher(subscriber message.Subscriber, mailer Mailer, log *zap.Logger) *Dispatcher {
	return &Dispatcher{subscriber: subscriber, mailer: mailer, log: log.Named("mail")}
}

// Start subscribes to TopicOutbound and processes messages in the background
// until ctx is cancelled or the subscriber is closed.
func (d *Dispatcher) Start(ctx context.Context) error {
	messages, err := d.subscriber.Subscribe(ctx, TopicOutbound)
	if err != nil {
		return fmt.Errorf("failed to subscribe to %s: %w", TopicOutbound, err)
	}
	d.done = make(chan struct{})
	go func() {
		defer close(d.done)
		for msg := range messages {
			d.handle(msg)
		}
	}()
	return nil
}

// Wait blocks until the processing goroutine started by Start has exited
func (d *Dispatcher) Wait() {
	if d.done != nil {
		<-d.done
	}
}

func (d *Dispatcher) handle(wm *message.Message) {
	defer wm.Ack()

	var msg Message
	if err := json.Unmarshal(wm.Payload, &msg); err != nil {
		d.log.Error("dropping undecodable mail message", zap.String("message_uuid", wm.UUID), zap.Error(err))
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), sendTimeout)
	defer cancel()
	if err := d.mailer.Send(ctx, msg.To, msg.Subject, msg.Body); err != nil {
		d.log.Error("mail delivery failed", zap.String("to", msg.To), zap.String("subject", msg.Subject), zap.Error(err))
		return
	}
	d.log.Info("mail delivered", zap.String("to", msg.To), zap.String("subject", msg.Subject))
}
