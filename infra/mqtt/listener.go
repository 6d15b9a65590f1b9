// Package mqtt receives structured commands over MQTT and publishes the
// dispatcher's replies and run summaries.
package mqtt

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	paho "github.com/eclipse/paho.mqtt.golang"
	"github.com/google/uuid"

	"github.com/kilianp07/cargoplan/core/command"
	"github.com/kilianp07/cargoplan/core/events"
	"github.com/kilianp07/cargoplan/core/logger"
	"github.com/kilianp07/cargoplan/core/model"
	infralog "github.com/kilianp07/cargoplan/infra/logger"
	"github.com/kilianp07/cargoplan/internal/eventbus"
)

// Handler executes one command.
type Handler interface {
	Handle(ctx context.Context, cmd command.Command) command.Reply
}

type pahoClient interface {
	IsConnected() bool
	Connect() paho.Token
	Disconnect(quiesce uint)
	Publish(topic string, qos byte, retained bool, payload interface{}) paho.Token
	Subscribe(topic string, qos byte, callback paho.MessageHandler) paho.Token
	Unsubscribe(topics ...string) paho.Token
}

var newMQTTClient = func(opts *paho.ClientOptions) pahoClient {
	return paho.NewClient(opts)
}

// envelope is the wire form of an incoming command.
type envelope struct {
	command.Command
	CorrelationID string `json:"correlation_id,omitempty"`
	ReplyTo       string `json:"reply_to,omitempty"`
}

// ReplyMessage is published for every command received.
type ReplyMessage struct {
	CorrelationID string        `json:"correlation_id"`
	Action        string        `json:"action"`
	Text          string        `json:"text"`
	Result        *model.Result `json:"result,omitempty"`
	Error         string        `json:"error,omitempty"`
	Timestamp     int64         `json:"timestamp"`
}

// RunMessage is published on the event topic after each run.
type RunMessage struct {
	RunID     string   `json:"run_id"`
	Trigger   string   `json:"trigger"`
	Status    string   `json:"status"`
	Accepted  bool     `json:"accepted"`
	Objective float64  `json:"objective_value"`
	Flights   int      `json:"flights"`
	Changes   []string `json:"changes,omitempty"`
	Error     string   `json:"error,omitempty"`
}

// Listener subscribes to the command topic and answers on the reply topic.
type Listener struct {
	cfg     Config
	cli     pahoClient
	handler Handler
	log     logger.Logger
	backoff time.Duration
	timeout time.Duration

	mu     sync.Mutex
	closed bool
	wg     sync.WaitGroup
}

// NewListener connects to the broker and subscribes to the command topic.
// timeout bounds each command's handling.
func NewListener(cfg Config, h Handler, timeout time.Duration, log logger.Logger) (*Listener, error) {
	cfg.SetDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	opts, err := NewClientOptions(cfg)
	if err != nil {
		return nil, err
	}
	if log == nil {
		log = infralog.New("mqtt_listener")
	}
	l := &Listener{
		cfg:     cfg,
		handler: h,
		log:     log,
		backoff: time.Duration(cfg.BackoffMS) * time.Millisecond,
		timeout: timeout,
	}
	opts.OnConnect = func(c paho.Client) {
		l.log.Infof("MQTT connected, listening on %s", cfg.CommandTopic)
		if token := c.Subscribe(cfg.CommandTopic, cfg.qos("command"), l.onCommand); token.Wait() && token.Error() != nil {
			l.log.Errorf("subscribe error: %v", token.Error())
		}
	}
	opts.OnConnectionLost = func(_ paho.Client, err error) {
		l.log.Errorf("connection lost: %v", err)
	}
	opts.OnReconnecting = func(_ paho.Client, _ *paho.ClientOptions) {
		l.log.Warnf("reconnecting to MQTT broker")
	}
	c := newMQTTClient(opts)
	if token := c.Connect(); token.Wait() && token.Error() != nil {
		return nil, token.Error()
	}
	l.cli = c
	return l, nil
}

// NewClientOptions builds mqtt client options from Config.
func NewClientOptions(cfg Config) (*paho.ClientOptions, error) {
	opts := paho.NewClientOptions().AddBroker(cfg.Broker).SetClientID(cfg.ClientID)
	opts.AutoReconnect = true
	// Handlers publish replies and wait on the token.
	opts.SetOrderMatters(false)
	if cfg.AuthMethod == "username_password" || cfg.AuthMethod == "both" || cfg.AuthMethod == "" {
		if cfg.Username != "" {
			opts.SetUsername(cfg.Username)
		}
		if cfg.Password != "" {
			opts.SetPassword(cfg.Password)
		}
	}
	if cfg.UseTLS {
		tlsCfg, err := cfg.LoadTLSConfig()
		if err != nil {
			return nil, err
		}
		opts.SetTLSConfig(tlsCfg)
	}
	if cfg.LWTTopic != "" {
		opts.SetWill(cfg.LWTTopic, cfg.LWTPayload, cfg.LWTQoS, cfg.LWTRetain)
	}
	return opts, nil
}

// track registers one in-flight handler. It fails once Disconnect started.
func (l *Listener) track() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.closed {
		return false
	}
	l.wg.Add(1)
	return true
}

func (l *Listener) onCommand(_ paho.Client, msg paho.Message) {
	if !l.track() {
		l.log.Warnf("dropping command on %s: listener closed", msg.Topic())
		return
	}
	defer l.wg.Done()

	var env envelope
	reply := ReplyMessage{Timestamp: time.Now().UnixMilli()}
	cmd, err := command.Decode(msg.Payload())
	if err == nil {
		_ = json.Unmarshal(msg.Payload(), &env)
	}
	reply.CorrelationID = env.CorrelationID
	if reply.CorrelationID == "" {
		reply.CorrelationID = uuid.NewString()
	}
	if err != nil {
		l.log.Warnf("malformed command on %s: %v", msg.Topic(), err)
		reply.Action = command.ActionUnknown
		reply.Text = command.FallbackText
		reply.Error = err.Error()
	} else {
		ctx, cancel := l.context()
		r := l.handler.Handle(ctx, cmd)
		cancel()
		reply.Action, reply.Text, reply.Result, reply.Error = r.Action, r.Text, r.Result, r.Error
	}

	topic := l.cfg.ReplyTopic
	if env.ReplyTo != "" {
		topic = env.ReplyTo
	}
	payload, err := json.Marshal(reply)
	if err != nil {
		l.log.Errorf("encode reply: %v", err)
		return
	}
	if err := l.publish(topic, l.cfg.qos("reply"), payload); err != nil {
		l.log.Errorf("reply %s: %v", reply.CorrelationID, err)
	}
}

func (l *Listener) context() (context.Context, context.CancelFunc) {
	if l.timeout > 0 {
		return context.WithTimeout(context.Background(), l.timeout)
	}
	return context.WithCancel(context.Background())
}

// publish retries with exponential backoff.
func (l *Listener) publish(topic string, qos byte, payload []byte) error {
	var publishErr error
	for attempt := 0; attempt <= l.cfg.MaxRetries; attempt++ {
		token := l.cli.Publish(topic, qos, false, payload)
		token.Wait()
		publishErr = token.Error()
		if publishErr == nil {
			return nil
		}
		l.log.Errorf("publish attempt %d failed: %v", attempt+1, publishErr)
		if attempt < l.cfg.MaxRetries {
			time.Sleep(l.backoff * time.Duration(1<<attempt))
		}
	}
	return publishErr
}

// ForwardRuns publishes a RunMessage for every RunEvent seen on the bus until
// ctx is canceled. It does nothing without an event topic.
func (l *Listener) ForwardRuns(ctx context.Context, bus eventbus.EventBus) {
	if bus == nil || l.cfg.EventTopic == "" {
		return
	}
	if !l.track() {
		return
	}
	sub := bus.Subscribe()
	go func() {
		defer l.wg.Done()
		defer bus.Unsubscribe(sub)
		for {
			select {
			case <-ctx.Done():
				return
			case ev, ok := <-sub:
				if !ok {
					return
				}
				e, ok := ev.(events.RunEvent)
				if !ok {
					continue
				}
				m := RunMessage{
					RunID: e.RunID, Trigger: e.Trigger, Status: e.Status, Accepted: e.Accepted,
					Objective: e.Objective, Flights: e.Flights, Changes: e.Changes,
				}
				if e.Err != nil {
					m.Error = e.Err.Error()
				}
				payload, err := json.Marshal(m)
				if err != nil {
					continue
				}
				if err := l.publish(l.cfg.EventTopic, l.cfg.qos("event"), payload); err != nil {
					l.log.Errorf("run event %s: %v", e.RunID, err)
				}
			}
		}
	}()
}

// Disconnect stops accepting commands, waits for in-flight handlers and
// closes the MQTT connection.
func (l *Listener) Disconnect() {
	l.mu.Lock()
	l.closed = true
	l.mu.Unlock()
	if l.cli != nil && l.cli.IsConnected() {
		if token := l.cli.Unsubscribe(l.cfg.CommandTopic); token.Wait() && token.Error() != nil {
			l.log.Warnf("unsubscribe %s: %v", l.cfg.CommandTopic, token.Error())
		}
	}
	l.wg.Wait()
	if l.cli != nil && l.cli.IsConnected() {
		l.cli.Disconnect(250)
	}
}
