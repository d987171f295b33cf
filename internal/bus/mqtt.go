// internal/bus/mqtt.go
//
// MQTT message-bus wrapper.
//
// Context
// -------
// Audit envelopes ride an MQTT broker.  Topics use one level per
// segment (`accounts/create`), so a consumer subscribes to a resource
// family with the `accounts/#` wildcard.  QoS 0 everywhere: the event
// pipeline is explicitly at-most-once, and a publish that the broker
// never sees is an accepted loss, not an error to retry.
//
// Notes
// -----
//   - AutoReconnect is on; subscriptions are re-established by paho on
//     reconnect because CleanSession is off for consumers with a stable
//     client id.
//   - Handler errors are logged and swallowed so one bad message never
//     stalls the subscription.

package bus

import (
	"fmt"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"go.uber.org/zap"
)

// Handler processes one received message.
type Handler func(topic string, payload []byte) error

// Bus is the publish/subscribe surface the event pipeline consumes.
type Bus interface {
	Publish(topic string, payload []byte) error
	Subscribe(topicPattern string, h Handler) error
	Close()
}

// MQTT implements Bus over an eclipse/paho client.
type MQTT struct {
	client mqtt.Client
}

// Options configures the broker connection.
type Options struct {
	Broker   string // e.g. "tcp://localhost:1883"
	ClientID string
	Username string
	Password string
}

// Connect dials the broker and blocks until the session is up or the
// dial fails.
func Connect(opts Options) (*MQTT, error) {
	o := mqtt.NewClientOptions()
	o.AddBroker(opts.Broker)
	o.SetClientID(opts.ClientID)
	if opts.Username != "" {
		o.SetUsername(opts.Username)
	}
	if opts.Password != "" {
		o.SetPassword(opts.Password)
	}
	o.SetAutoReconnect(true)
	o.SetCleanSession(false)
	o.SetConnectTimeout(10 * time.Second)

	client := mqtt.NewClient(o)
	if tok := client.Connect(); tok.Wait() && tok.Error() != nil {
		return nil, fmt.Errorf("connect to broker %s: %w", opts.Broker, tok.Error())
	}
	return &MQTT{client: client}, nil
}

// Publish sends one message at QoS 0 and reports the broker handoff
// result.  Callers in the request path wrap this fire-and-forget.
func (m *MQTT) Publish(topic string, payload []byte) error {
	tok := m.client.Publish(topic, 0, false, payload)
	tok.Wait()
	if err := tok.Error(); err != nil {
		return fmt.Errorf("publish to %s: %w", topic, err)
	}
	return nil
}

// Subscribe registers h for every message matching the pattern.  A
// handler error is logged, never propagated, so the subscription keeps
// draining.
func (m *MQTT) Subscribe(topicPattern string, h Handler) error {
	tok := m.client.Subscribe(topicPattern, 0, func(_ mqtt.Client, msg mqtt.Message) {
		if err := h(msg.Topic(), msg.Payload()); err != nil {
			zap.L().Warn("bus handler error",
				zap.String("topic", msg.Topic()),
				zap.Error(err))
		}
	})
	tok.Wait()
	if err := tok.Error(); err != nil {
		return fmt.Errorf("subscribe to %s: %w", topicPattern, err)
	}
	return nil
}

// Close disconnects with a short drain window.
func (m *MQTT) Close() {
	m.client.Disconnect(250) // ms
}
