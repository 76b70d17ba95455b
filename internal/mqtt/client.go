package mqtt

import (
	"encoding/json"
	"fmt"
	"sync"
	"time"

	paho "github.com/eclipse/paho.mqtt.golang"
	"github.com/sirupsen/logrus"
)

// Handler processes one message delivered on a subscribed topic
type Handler func(topic string, payload []byte)

// conn is the slice of the paho client the Client actually uses. Narrowed
// so tests can run against a fake broker connection.
type conn interface {
	Connect() paho.Token
	Disconnect(quiesce uint)
	Publish(topic string, qos byte, retained bool, payload interface{}) paho.Token
	Subscribe(topic string, qos byte, callback paho.MessageHandler) paho.Token
	IsConnected() bool
}

// Options holds MQTT client configuration
type Options struct {
	BrokerURL      string
	Username       string
	Password       string
	ClientID       string
	ConnectTimeout time.Duration
	ReconnectDelay time.Duration
	MaxReconnects  int
	Logger         *logrus.Entry
}

type registration struct {
	id      int
	handler Handler
}

// Client maintains one logical connection to the MQTT broker. Subscriptions
// are remembered by topic and replayed after every (re)connect. Reconnection
// after an unexpected close is handled here rather than by the paho
// auto-reconnect, so the retry budget and delay match the rest of the
// system's expectations.
type Client struct {
	opts Options
	dial func(c *Client) conn
	log  *logrus.Entry

	mu         sync.Mutex
	conn       conn
	connecting bool
	closed     bool
	attempts   int
	nextRegID  int
	regs       map[string][]registration
}

// NewClient creates a new MQTT client. It does not connect; call Connect
// during process startup and Disconnect during shutdown.
func NewClient(opts Options) *Client {
	if opts.ConnectTimeout <= 0 {
		opts.ConnectTimeout = 10 * time.Second
	}
	if opts.ReconnectDelay <= 0 {
		opts.ReconnectDelay = 5 * time.Second
	}
	if opts.MaxReconnects <= 0 {
		opts.MaxReconnects = 10
	}
	logger := opts.Logger
	if logger == nil {
		logger = logrus.NewEntry(logrus.StandardLogger())
	}

	return &Client{
		opts: opts,
		dial: defaultDial,
		log:  logger.WithField("component", "mqtt-client"),
		regs: make(map[string][]registration),
	}
}

func defaultDial(c *Client) conn {
	po := paho.NewClientOptions().
		AddBroker(c.opts.BrokerURL).
		SetClientID(c.opts.ClientID).
		SetUsername(c.opts.Username).
		SetPassword(c.opts.Password).
		SetConnectTimeout(c.opts.ConnectTimeout).
		SetAutoReconnect(false).
		SetOnConnectHandler(func(paho.Client) {
			c.resubscribe()
		}).
		SetConnectionLostHandler(func(_ paho.Client, err error) {
			c.handleConnectionLost(err)
		})
	return paho.NewClient(po)
}

// Connect establishes the broker connection. It is idempotent: calling it
// while connected, or while another connection attempt is in flight, is a
// no-op. It returns an error when no broker address is configured or the
// connection handshake fails.
func (c *Client) Connect() error {
	if c.opts.BrokerURL == "" {
		return fmt.Errorf("MQTT broker URL is not configured")
	}

	c.mu.Lock()
	if c.conn != nil && c.conn.IsConnected() {
		c.mu.Unlock()
		return nil
	}
	if c.connecting {
		c.mu.Unlock()
		return nil
	}
	c.connecting = true
	c.closed = false
	c.attempts = 0
	c.mu.Unlock()

	err := c.connectOnce()

	c.mu.Lock()
	c.connecting = false
	c.mu.Unlock()

	return err
}

// connectOnce dials the broker and waits for the handshake
func (c *Client) connectOnce() error {
	conn := c.dial(c)

	// Install the connection before the handshake completes so the
	// on-connect resubscribe callback can reach it.
	c.mu.Lock()
	c.conn = conn
	c.mu.Unlock()

	token := conn.Connect()
	if !token.WaitTimeout(c.opts.ConnectTimeout) {
		c.clearConn(conn)
		return fmt.Errorf("connect to %s timed out after %s", c.opts.BrokerURL, c.opts.ConnectTimeout)
	}
	if err := token.Error(); err != nil {
		c.clearConn(conn)
		return fmt.Errorf("failed to connect to %s: %w", c.opts.BrokerURL, err)
	}

	c.mu.Lock()
	c.attempts = 0
	c.mu.Unlock()

	c.log.Infof("Connected to MQTT broker at %s", c.opts.BrokerURL)
	return nil
}

func (c *Client) clearConn(conn conn) {
	c.mu.Lock()
	if c.conn == conn {
		c.conn = nil
	}
	c.mu.Unlock()
}

// handleConnectionLost retries the connection up to MaxReconnects times with
// a fixed delay. After exhausting the budget it logs a terminal failure and
// stops; the owning process keeps running in a degraded state.
func (c *Client) handleConnectionLost(cause error) {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.mu.Unlock()

	c.log.Warnf("MQTT connection lost: %v", cause)

	go func() {
		for {
			time.Sleep(c.opts.ReconnectDelay)

			c.mu.Lock()
			if c.closed || (c.conn != nil && c.conn.IsConnected()) {
				c.mu.Unlock()
				return
			}
			if c.connecting {
				// An explicit Connect owns the dial now.
				c.mu.Unlock()
				return
			}
			if c.attempts >= c.opts.MaxReconnects {
				c.mu.Unlock()
				c.log.Errorf("Max reconnection attempts (%d) reached, giving up", c.opts.MaxReconnects)
				return
			}
			c.attempts++
			attempt := c.attempts
			c.connecting = true
			c.mu.Unlock()

			c.log.Infof("Reconnecting to MQTT broker (%d/%d)...", attempt, c.opts.MaxReconnects)
			err := c.connectOnce()

			c.mu.Lock()
			c.connecting = false
			c.mu.Unlock()

			if err != nil {
				c.log.Warnf("Reconnection attempt %d failed: %v", attempt, err)
				continue
			}
			return
		}
	}()
}

// Registration identifies one handler registration and allows removing it
// without touching other handlers on the same topic.
type Registration struct {
	client *Client
	topic  string
	id     int
}

// Cancel removes the handler. The topic subscription itself stays active as
// long as other handlers remain registered for it.
func (r *Registration) Cancel() {
	if r == nil || r.client == nil {
		return
	}
	r.client.removeRegistration(r.topic, r.id)
	r.client = nil
}

func (c *Client) removeRegistration(topic string, id int) {
	c.mu.Lock()
	defer c.mu.Unlock()

	regs := c.regs[topic]
	for i, reg := range regs {
		if reg.id == id {
			c.regs[topic] = append(regs[:i], regs[i+1:]...)
			break
		}
	}
}

// Subscribe registers a handler for a topic. If the client is connected the
// broker subscription is issued immediately; either way the topic is
// remembered and replayed automatically on every (re)connect.
func (c *Client) Subscribe(topic string, handler Handler) (*Registration, error) {
	if handler == nil {
		return nil, fmt.Errorf("handler must not be nil")
	}

	c.mu.Lock()
	c.nextRegID++
	reg := registration{id: c.nextRegID, handler: handler}
	first := len(c.regs[topic]) == 0
	c.regs[topic] = append(c.regs[topic], reg)
	conn := c.conn
	c.mu.Unlock()

	if first && conn != nil && conn.IsConnected() {
		if err := c.subscribeTopic(conn, topic); err != nil {
			// The caller receives no Registration to cancel, so the entry
			// must not survive into the reconnect replay.
			c.removeRegistration(topic, reg.id)
			return nil, err
		}
	}

	return &Registration{client: c, topic: topic, id: reg.id}, nil
}

func (c *Client) subscribeTopic(conn conn, topic string) error {
	token := conn.Subscribe(topic, 0, func(_ paho.Client, msg paho.Message) {
		c.dispatch(msg.Topic(), msg.Payload())
	})
	if !token.WaitTimeout(c.opts.ConnectTimeout) {
		return fmt.Errorf("subscribe to %s timed out", topic)
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("failed to subscribe to %s: %w", topic, err)
	}
	c.log.Debugf("Subscribed to topic %s", topic)
	return nil
}

// dispatch fans an inbound message out to every handler registered for its
// topic. Handler panics must not take down the receive loop.
func (c *Client) dispatch(topic string, payload []byte) {
	c.mu.Lock()
	regs := make([]registration, len(c.regs[topic]))
	copy(regs, c.regs[topic])
	c.mu.Unlock()

	for _, reg := range regs {
		func() {
			defer func() {
				if r := recover(); r != nil {
					c.log.Errorf("Handler for topic %s panicked: %v", topic, r)
				}
			}()
			reg.handler(topic, payload)
		}()
	}
}

// resubscribe replays all remembered topics after a (re)connect
func (c *Client) resubscribe() {
	c.mu.Lock()
	conn := c.conn
	topics := make([]string, 0, len(c.regs))
	for topic, regs := range c.regs {
		if len(regs) > 0 {
			topics = append(topics, topic)
		}
	}
	c.mu.Unlock()

	if conn == nil {
		return
	}
	for _, topic := range topics {
		if err := c.subscribeTopic(conn, topic); err != nil {
			c.log.Errorf("Failed to resubscribe to %s: %v", topic, err)
		}
	}
}

// Publish serializes payload and sends it on topic. Strings and byte slices
// are sent as-is; anything else is JSON-encoded. It fails when the client is
// not currently connected.
func (c *Client) Publish(topic string, payload interface{}) error {
	c.mu.Lock()
	conn := c.conn
	c.mu.Unlock()

	if conn == nil || !conn.IsConnected() {
		return fmt.Errorf("not connected to MQTT broker")
	}

	var data []byte
	switch v := payload.(type) {
	case string:
		data = []byte(v)
	case []byte:
		data = v
	default:
		var err error
		data, err = json.Marshal(v)
		if err != nil {
			return fmt.Errorf("failed to marshal payload for %s: %w", topic, err)
		}
	}

	token := conn.Publish(topic, 0, false, data)
	if !token.WaitTimeout(c.opts.ConnectTimeout) {
		return fmt.Errorf("publish to %s timed out", topic)
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("failed to publish to %s: %w", topic, err)
	}
	return nil
}

// Disconnect closes the connection and stops any pending reconnection. The
// remembered topic list is kept, so a later explicit Connect resubscribes to
// everything that was registered before.
func (c *Client) Disconnect() {
	c.mu.Lock()
	conn := c.conn
	c.conn = nil
	c.closed = true
	c.mu.Unlock()

	if conn != nil {
		conn.Disconnect(250)
		c.log.Info("Disconnected from MQTT broker")
	}
}

// IsConnected reports whether the broker connection is currently up
func (c *Client) IsConnected() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.conn != nil && c.conn.IsConnected()
}
