//go:build !tinygo

// Package mqtt is the message-bus transport of the host build.
package mqtt

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	paho "github.com/eclipse/paho.mqtt.golang"
	"github.com/google/uuid"

	"ledmcu/proto"
)

var ErrTimeout = errors.New("mqtt: operation timed out")

type Options struct {
	Host         string
	Port         int
	ClientPrefix string
	Username     string
	Password     string

	KeepAlive      time.Duration
	ConnectTimeout time.Duration
	// OpTimeout bounds Subscribe and Publish.
	OpTimeout         time.Duration
	MaxReconnectDelay time.Duration
}

func DefaultOptions() Options {
	return Options{
		Host:              "localhost",
		Port:              1883,
		ClientPrefix:      "led-mcu",
		KeepAlive:         30 * time.Second,
		ConnectTimeout:    5 * time.Second,
		OpTimeout:         5 * time.Second,
		MaxReconnectDelay: 30 * time.Second,
	}
}

// Broker returns the broker URL.
func (o Options) Broker() string { return fmt.Sprintf("tcp://%s:%d", o.Host, o.Port) }

// ClientID returns "<prefix>-<first 8 hex digits of a random UUID>".
func ClientID(prefix string) string {
	id := uuid.New().String()[:8]
	if prefix == "" {
		return id
	}
	return prefix + "-" + id
}

type Kind uint8

const (
	KindConnected Kind = iota + 1
	KindDisconnected
	KindSubscribed
	KindReceived
)

// Event is one connection, subscription or message event.
type Event struct {
	Kind    Kind
	ID      uint16
	Topic   string
	Payload []byte
	Err     error
}

// String renders the event in its debug form. Received events have the
// shape the payload extractor parses.
func (e Event) String() string {
	switch e.Kind {
	case KindConnected:
		return "Connected"
	case KindDisconnected:
		if e.Err != nil {
			return fmt.Sprintf("Disconnected(%v)", e.Err)
		}
		return "Disconnected"
	case KindSubscribed:
		return fmt.Sprintf("Subscribed(%d)", e.ID)
	case KindReceived:
		return proto.WrapEvent(e.ID, e.Topic, e.Payload)
	default:
		return "Unknown"
	}
}

const eventBacklog = 64

// Client wraps a paho client and turns its callbacks into an ordered event stream.
type Client struct {
	c    paho.Client
	opts Options
	log  *slog.Logger

	events    chan Event
	closed    chan struct{}
	closeOnce sync.Once
	subs      atomic.Uint32
	overflow  atomic.Uint32
}

func newClient(opts Options, log *slog.Logger) *Client {
	if log == nil {
		log = slog.Default()
	}
	return &Client{
		opts:   opts,
		log:    log.With("component", "mqtt", "broker", opts.Broker()),
		events: make(chan Event, eventBacklog),
		closed: make(chan struct{}),
	}
}

// Dial connects to the broker. Reconnects after a lost connection are
// automatic and show up as Disconnected and Connected events.
func Dial(ctx context.Context, opts Options, log *slog.Logger) (*Client, error) {
	cl := newClient(opts, log)

	po := paho.NewClientOptions()
	po.AddBroker(opts.Broker())
	po.SetClientID(ClientID(opts.ClientPrefix))
	po.SetProtocolVersion(4) // 3.1.1
	po.SetKeepAlive(opts.KeepAlive)
	po.SetConnectTimeout(opts.ConnectTimeout)
	po.SetAutoReconnect(true)
	po.SetMaxReconnectInterval(opts.MaxReconnectDelay)
	po.SetOrderMatters(true)
	if opts.Username != "" {
		po.SetUsername(opts.Username)
		po.SetPassword(opts.Password)
	}
	po.SetOnConnectHandler(func(paho.Client) {
		cl.log.Info("connection established")
		cl.push(Event{Kind: KindConnected})
	})
	po.SetConnectionLostHandler(func(_ paho.Client, err error) {
		cl.log.Warn("connection lost, will auto-reconnect", "err", err)
		cl.push(Event{Kind: KindDisconnected, Err: err})
	})

	cl.c = paho.NewClient(po)
	cl.log.Info("connecting", "client_id", po.ClientID)
	if err := wait(ctx, cl.c.Connect(), opts.ConnectTimeout); err != nil {
		return nil, fmt.Errorf("mqtt: connect %s: %w", opts.Broker(), err)
	}
	return cl, nil
}

// Subscribe subscribes to topic at QoS 0.
func (c *Client) Subscribe(topic string) error {
	tok := c.c.Subscribe(topic, 0, c.onMessage)
	if err := wait(context.Background(), tok, c.opts.OpTimeout); err != nil {
		return fmt.Errorf("mqtt: subscribe %q: %w", topic, err)
	}
	c.push(Event{Kind: KindSubscribed, ID: uint16(c.subs.Add(1)), Topic: topic})
	return nil
}

func (c *Client) onMessage(_ paho.Client, m paho.Message) {
	c.push(Event{
		Kind:    KindReceived,
		ID:      m.MessageID(),
		Topic:   m.Topic(),
		Payload: m.Payload(),
	})
}

// Publish sends payload to topic at QoS 0.
func (c *Client) Publish(topic string, payload []byte) error {
	tok := c.c.Publish(topic, 0, false, payload)
	if err := wait(context.Background(), tok, c.opts.OpTimeout); err != nil {
		return fmt.Errorf("mqtt: publish %q: %w", topic, err)
	}
	return nil
}

// push hands an event to Next. Paho callbacks must not block for long, so a
// full backlog drops the event.
func (c *Client) push(ev Event) {
	select {
	case <-c.closed:
	case c.events <- ev:
	default:
		n := c.overflow.Add(1)
		c.log.Warn("event backlog full, dropping", "event", ev.String(), "dropped", n)
	}
}

// Next returns the next event in arrival order, or io.EOF after Close.
func (c *Client) Next(ctx context.Context) (Event, error) {
	select {
	case ev := <-c.events:
		return ev, nil
	case <-c.closed:
		return Event{}, io.EOF
	case <-ctx.Done():
		return Event{}, ctx.Err()
	}
}

// Overflow returns the number of events dropped on a full backlog.
func (c *Client) Overflow() uint32 { return c.overflow.Load() }

// Close disconnects and ends the event stream.
func (c *Client) Close() error {
	c.closeOnce.Do(func() {
		close(c.closed)
		if c.c != nil {
			c.c.Disconnect(250)
			c.log.Info("disconnected")
		}
	})
	return nil
}

func wait(ctx context.Context, tok paho.Token, timeout time.Duration) error {
	var expire <-chan time.Time
	if timeout > 0 {
		t := time.NewTimer(timeout)
		defer t.Stop()
		expire = t.C
	}
	select {
	case <-tok.Done():
		return tok.Error()
	case <-expire:
		return ErrTimeout
	case <-ctx.Done():
		return ctx.Err()
	}
}
