// Package sensor bridges goal sensors on an MQTT broker into trainer input
// events.
package sensor

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/sirupsen/logrus"

	"github.com/verte-zerg/kicktrain/internal/model"
)

// Kind is the type of a sensor event.
type Kind int

const (
	// KindShot is a ball detected in a known segment.
	KindShot Kind = iota
	// KindMiss is a shot that missed the goal.
	KindMiss
	// KindGoal is a goal in an unknown segment.
	KindGoal
)

func (k Kind) String() string {
	switch k {
	case KindShot:
		return "shot"
	case KindMiss:
		return "miss"
	case KindGoal:
		return "goal"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

// Event is one decoded sensor message.
type Event struct {
	Kind    Kind
	Segment model.Segment
}

// ErrEmptyMessage is returned for payloads that carry no event.
var ErrEmptyMessage = errors.New("sensor message has no event")

type message struct {
	Segment *int `json:"segment,omitempty"`
	Miss    bool `json:"miss,omitempty"`
	Goal    bool `json:"goal,omitempty"`
}

// Decode parses {"segment":n}, {"miss":true} or {"goal":true}.
func Decode(payload []byte) (Event, error) {
	var msg message
	if err := json.Unmarshal(payload, &msg); err != nil {
		return Event{}, fmt.Errorf("failed to decode sensor message: %w", err)
	}
	switch {
	case msg.Segment != nil:
		seg, err := model.ParseSegment(*msg.Segment)
		if err != nil {
			return Event{}, err
		}
		return Event{Kind: KindShot, Segment: seg}, nil
	case msg.Miss:
		return Event{Kind: KindMiss}, nil
	case msg.Goal:
		return Event{Kind: KindGoal}, nil
	default:
		return Event{}, ErrEmptyMessage
	}
}

// Encode is the inverse of Decode.
func Encode(ev Event) ([]byte, error) {
	var msg message
	switch ev.Kind {
	case KindShot:
		if !ev.Segment.Valid() {
			return nil, fmt.Errorf("invalid segment %d", ev.Segment)
		}
		seg := int(ev.Segment)
		msg.Segment = &seg
	case KindMiss:
		msg.Miss = true
	case KindGoal:
		msg.Goal = true
	default:
		return nil, fmt.Errorf("unknown event kind %s", ev.Kind)
	}
	return json.Marshal(msg)
}

// Options configures the MQTT connection.
type Options struct {
	Broker   string
	Topic    string
	ClientID string
	QoS      byte
	Timeout  time.Duration
}

// Bridge subscribes to sensor messages and delivers them on Events.
type Bridge struct {
	client mqtt.Client
	topic  string
	qos    byte
	events chan Event
}

func newBridge(topic string, qos byte) *Bridge {
	return &Bridge{topic: topic, qos: qos, events: make(chan Event, 16)}
}

// Connect dials the broker and subscribes to the sensor topic. The
// subscription is renewed after reconnects.
func Connect(opts Options) (*Bridge, error) {
	if opts.Timeout <= 0 {
		opts.Timeout = 5 * time.Second
	}
	b := newBridge(opts.Topic, opts.QoS)
	clientOpts := mqtt.NewClientOptions().
		AddBroker(opts.Broker).
		SetClientID(opts.ClientID).
		SetAutoReconnect(true).
		SetConnectTimeout(opts.Timeout).
		SetOnConnectHandler(b.subscribe).
		SetConnectionLostHandler(func(_ mqtt.Client, err error) {
			logrus.Warnf("sensor connection lost: %v", err)
		})
	b.client = mqtt.NewClient(clientOpts)
	token := b.client.Connect()
	if !token.WaitTimeout(opts.Timeout) {
		b.client.Disconnect(0)
		return nil, fmt.Errorf("failed to connect to sensor broker %s: timeout", opts.Broker)
	}
	if err := token.Error(); err != nil {
		return nil, fmt.Errorf("failed to connect to sensor broker %s: %w", opts.Broker, err)
	}
	logrus.WithFields(logrus.Fields{"broker": opts.Broker, "topic": opts.Topic}).Info("sensor bridge connected")
	return b, nil
}

func (b *Bridge) subscribe(c mqtt.Client) {
	token := c.Subscribe(b.topic, b.qos, b.handle)
	token.Wait()
	if err := token.Error(); err != nil {
		logrus.Warnf("failed to subscribe to %s: %v", b.topic, err)
	}
}

func (b *Bridge) handle(_ mqtt.Client, msg mqtt.Message) {
	ev, err := Decode(msg.Payload())
	if err != nil {
		logrus.WithField("topic", msg.Topic()).Warnf("ignoring sensor message: %v", err)
		return
	}
	select {
	case b.events <- ev:
	default:
		logrus.WithField("kind", ev.Kind).Warn("sensor queue full, dropping event")
	}
}

// Events returns the decoded event stream.
func (b *Bridge) Events() <-chan Event {
	return b.events
}

// Close disconnects from the broker.
func (b *Bridge) Close() {
	if b.client != nil {
		b.client.Disconnect(250)
	}
}

// Publish sends ev on topic. It is used to drive the trainer from scripts or
// to test a sensor setup.
func Publish(client mqtt.Client, topic string, ev Event) error {
	payload, err := Encode(ev)
	if err != nil {
		return err
	}
	token := client.Publish(topic, 0, false, payload)
	token.Wait()
	if err := token.Error(); err != nil {
		return fmt.Errorf("failed to publish sensor event: %w", err)
	}
	return nil
}

// Dial connects a publishing client.
func Dial(opts Options) (mqtt.Client, error) {
	if opts.Timeout <= 0 {
		opts.Timeout = 5 * time.Second
	}
	c := mqtt.NewClient(mqtt.NewClientOptions().AddBroker(opts.Broker).SetClientID(opts.ClientID))
	token := c.Connect()
	if !token.WaitTimeout(opts.Timeout) {
		c.Disconnect(0)
		return nil, fmt.Errorf("failed to connect to sensor broker %s: timeout", opts.Broker)
	}
	if err := token.Error(); err != nil {
		return nil, fmt.Errorf("failed to connect to sensor broker %s: %w", opts.Broker, err)
	}
	return c, nil
}
