package rabbitmq

import (
	"sync"
	"time"

	"github.com/go-faster/errors"
	amqp "github.com/streadway/amqp"
	"go.uber.org/zap"
)

// Client holds the RabbitMQ connection and channel.
type Client struct {
	conn    *amqp.Connection
	channel *amqp.Channel
	cfg     Config
	logger  *zap.Logger
	mu      sync.Mutex // guards channel publishing
}

// Config holds RabbitMQ connection details and topology names.
type Config struct {
	URL        string
	Exchange   string // topic exchange, e.g. "orders"
	Queue      string // durable queue bound to the exchange
	BindingKey string // e.g. "order.*"
}

func (c *Config) setDefaults() {
	if c.Exchange == "" {
		c.Exchange = "orders"
	}
	if c.Queue == "" {
		c.Queue = "order_events"
	}
	if c.BindingKey == "" {
		c.BindingKey = "order.*"
	}
}

// NewClient connects to RabbitMQ, opens a channel and declares the exchange,
// the queue and the binding between them.
func NewClient(cfg Config, logger *zap.Logger) (*Client, error) {
	cfg.setDefaults()

	conn, err := amqp.Dial(cfg.URL)
	if err != nil {
		return nil, errors.Wrap(err, "connect to RabbitMQ")
	}

	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, errors.Wrap(err, "open channel")
	}

	if err := declareTopology(ch, cfg); err != nil {
		ch.Close()
		conn.Close()
		return nil, err
	}

	logger.Info("RabbitMQ client connected",
		zap.String("exchange", cfg.Exchange),
		zap.String("queue", cfg.Queue))

	return &Client{
		conn:    conn,
		channel: ch,
		cfg:     cfg,
		logger:  logger,
	}, nil
}

func declareTopology(ch *amqp.Channel, cfg Config) error {
	err := ch.ExchangeDeclare(
		cfg.Exchange, // name
		"topic",      // kind
		true,         // durable
		false,        // auto-deleted
		false,        // internal
		false,        // no-wait
		nil,          // arguments
	)
	if err != nil {
		return errors.Wrapf(err, "declare exchange %s", cfg.Exchange)
	}

	_, err = ch.QueueDeclare(
		cfg.Queue, // name
		true,      // durable
		false,     // delete when unused
		false,     // exclusive
		false,     // no-wait
		nil,       // arguments
	)
	if err != nil {
		return errors.Wrapf(err, "declare queue %s", cfg.Queue)
	}

	if err := ch.QueueBind(cfg.Queue, cfg.BindingKey, cfg.Exchange, false, nil); err != nil {
		return errors.Wrapf(err, "bind queue %s", cfg.Queue)
	}
	return nil
}

// Close closes the RabbitMQ channel and connection.
func (c *Client) Close() error {
	var errs []error
	if c.channel != nil {
		if err := c.channel.Close(); err != nil {
			errs = append(errs, errors.Wrap(err, "close channel"))
		}
	}
	if c.conn != nil {
		if err := c.conn.Close(); err != nil {
			errs = append(errs, errors.Wrap(err, "close connection"))
		}
	}
	if len(errs) > 0 {
		return errors.Errorf("close RabbitMQ client: %v", errs)
	}
	return nil
}

// Publish sends a persistent JSON message to exchange with routingKey.
func (c *Client) Publish(exchange, routingKey string, body []byte) error {
	if c.channel == nil {
		return errors.New("RabbitMQ channel is not available")
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	err := c.channel.Publish(
		exchange,   // exchange
		routingKey, // routing key
		false,      // mandatory
		false,      // immediate
		amqp.Publishing{
			ContentType:  "application/json",
			Body:         body,
			DeliveryMode: amqp.Persistent,
			Timestamp:    time.Now(),
		})
	if err != nil {
		return errors.Wrapf(err, "publish %s", routingKey)
	}

	c.logger.Debug("event published", zap.String("routing_key", routingKey), zap.Int("bytes", len(body)))
	return nil
}

// ConsumeOrderEvents registers a consumer on the configured queue and hands
// every delivery to handler in a separate goroutine. A nil error from handler
// acks the delivery; an error nacks it without requeueing so a poison message
// cannot loop forever. The goroutine ends when the channel is closed.
func (c *Client) ConsumeOrderEvents(handler func(msg amqp.Delivery) error) error {
	if c.channel == nil {
		return errors.New("RabbitMQ channel is not available for consumption")
	}

	msgs, err := c.channel.Consume(
		c.cfg.Queue, // queue
		"",          // consumer tag
		false,       // auto-ack
		false,       // exclusive
		false,       // no-local
		false,       // no-wait
		nil,         // args
	)
	if err != nil {
		return errors.Wrap(err, "register consumer")
	}

	c.logger.Info("waiting for order events", zap.String("queue", c.cfg.Queue))

	go func() {
		for msg := range msgs {
			if err := handler(msg); err != nil {
				c.logger.Error("process message", zap.Uint64("delivery_tag", msg.DeliveryTag), zap.Error(err))
				if nackErr := msg.Nack(false, false); nackErr != nil {
					c.logger.Error("nack message", zap.Uint64("delivery_tag", msg.DeliveryTag), zap.Error(nackErr))
				}
				continue
			}
			if ackErr := msg.Ack(false); ackErr != nil {
				c.logger.Error("ack message", zap.Uint64("delivery_tag", msg.DeliveryTag), zap.Error(ackErr))
			}
		}
	}()

	return nil
}
