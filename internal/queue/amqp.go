package queue

import (
	"context"
	"sync"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"github.com/streadway/amqp"
)

const retryHeader = "x-retry-count"

// AMQPQueue is a Queue over durable RabbitMQ queues, one per topic. Failed
// messages are republished with an incremented retry header and dropped
// after MaxRetries.
type AMQPQueue struct {
	conn *amqp.Connection

	mu  sync.Mutex
	pub *amqp.Channel

	MaxRetries int32
	Logger     logrus.FieldLogger
}

func DialAMQP(url string, logger logrus.FieldLogger) (*AMQPQueue, error) {
	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, errors.Wrap(err, "connect to rabbitmq")
	}
	pub, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, errors.Wrap(err, "open publish channel")
	}
	return &AMQPQueue{conn: conn, pub: pub, MaxRetries: 3, Logger: logger}, nil
}

func declare(ch *amqp.Channel, topic string) error {
	_, err := ch.QueueDeclare(
		topic,
		true,  // durable
		false, // delete when unused
		false, // exclusive
		false, // no-wait
		nil,
	)
	return errors.Wrapf(err, "declare queue %s", topic)
}

func (q *AMQPQueue) Publish(ctx context.Context, topic string, payload []byte) error {
	return q.publish(topic, payload, 0)
}

func (q *AMQPQueue) publish(topic string, payload []byte, retries int32) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	if err := declare(q.pub, topic); err != nil {
		return err
	}
	err := q.pub.Publish("", topic, false, false, amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		Headers:      amqp.Table{retryHeader: retries},
		Body:         payload,
	})
	return errors.Wrapf(err, "publish to %s", topic)
}

// Subscribe consumes topic on a dedicated channel with manual acks.
func (q *AMQPQueue) Subscribe(topic string, handler Handler) error {
	ch, err := q.conn.Channel()
	if err != nil {
		return errors.Wrap(err, "open consume channel")
	}
	if err := declare(ch, topic); err != nil {
		ch.Close()
		return err
	}
	msgs, err := ch.Consume(
		topic,
		"",
		false, // autoAck = false for reliability
		false,
		false,
		false,
		nil,
	)
	if err != nil {
		ch.Close()
		return errors.Wrapf(err, "consume %s", topic)
	}

	log := q.Logger.WithField("topic", topic)
	go func() {
		defer ch.Close()
		for d := range msgs {
			q.handle(log, topic, d, handler)
		}
		log.Info("consumer stopped")
	}()
	return nil
}

func (q *AMQPQueue) handle(log logrus.FieldLogger, topic string, d amqp.Delivery, handler Handler) {
	err := handler(d.Body)
	if err == nil {
		d.Ack(false)
		return
	}

	retries, _ := d.Headers[retryHeader].(int32)
	if retries < q.MaxRetries {
		if perr := q.publish(topic, d.Body, retries+1); perr != nil {
			log.WithError(perr).Error("failed to requeue message")
			d.Nack(false, true)
			return
		}
		log.WithError(err).WithField("retry", retries+1).Warn("message failed, requeued")
	} else {
		log.WithError(err).Error("message permanently failed")
	}
	d.Ack(false)
}

func (q *AMQPQueue) Close() error {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.pub.Close()
	return q.conn.Close()
}
