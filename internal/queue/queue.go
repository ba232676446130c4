package queue

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
)

// Handler processes one message. A returned error asks for a retry.
type Handler func(payload []byte) error

// Queue interface
type Queue interface {
	Publish(ctx context.Context, topic string, payload []byte) error
	Subscribe(topic string, handler Handler) error
}

// InMemoryQueue delivers messages to in-process subscribers with retry.
// Used when no broker is configured and in tests.
type InMemoryQueue struct {
	mu       sync.Mutex
	handlers map[string][]Handler
	wg       sync.WaitGroup

	MaxRetries int
	Backoff    time.Duration
	Logger     logrus.FieldLogger
}

// NewInMemoryQueue creates a new queue
func NewInMemoryQueue(logger logrus.FieldLogger) *InMemoryQueue {
	return &InMemoryQueue{
		handlers:   make(map[string][]Handler),
		MaxRetries: 3,
		Backoff:    500 * time.Millisecond,
		Logger:     logger,
	}
}

// Publish sends a message to all subscribers
func (q *InMemoryQueue) Publish(ctx context.Context, topic string, payload []byte) error {
	q.mu.Lock()
	handlers := q.handlers[topic]
	q.mu.Unlock()

	if len(handlers) == 0 {
		return fmt.Errorf("no subscribers for topic %s", topic)
	}

	for _, handler := range handlers {
		q.wg.Add(1)
		go q.process(topic, handler, payload)
	}
	return nil
}

// process retries a failing handler with linear backoff, then drops the message.
func (q *InMemoryQueue) process(topic string, handler Handler, payload []byte) {
	defer q.wg.Done()
	log := q.Logger.WithField("topic", topic)

	for attempt := 1; ; attempt++ {
		err := handler(payload)
		if err == nil {
			return
		}
		if attempt > q.MaxRetries {
			log.WithError(err).WithField("attempts", attempt).Error("message permanently failed")
			return
		}
		log.WithError(err).WithField("attempt", attempt).Warn("message failed, retrying")
		time.Sleep(time.Duration(attempt) * q.Backoff)
	}
}

// Subscribe adds a handler for a topic
func (q *InMemoryQueue) Subscribe(topic string, handler Handler) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	q.handlers[topic] = append(q.handlers[topic], handler)
	return nil
}

// Wait blocks until every published message has been handled or dropped.
func (q *InMemoryQueue) Wait() {
	q.wg.Wait()
}
