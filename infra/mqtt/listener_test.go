package mqtt

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kilianp07/cargoplan/core/command"
	"github.com/kilianp07/cargoplan/core/events"
	infralog "github.com/kilianp07/cargoplan/infra/logger"
	"github.com/kilianp07/cargoplan/internal/eventbus"
)

type recordingHandler struct {
	mu   sync.Mutex
	cmds []command.Command
}

func (h *recordingHandler) Handle(_ context.Context, cmd command.Command) command.Reply {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.cmds = append(h.cmds, cmd)
	return command.Reply{Action: cmd.Action, Text: "handled " + cmd.Action}
}

func newTestListener(t *testing.T, cfg Config, h Handler) (*Listener, *mockClient) {
	t.Helper()
	mc := &mockClient{}
	useMock(t, mc)
	if cfg.Broker == "" {
		cfg.Broker = "tcp://localhost:1883"
	}
	l, err := NewListener(cfg, h, time.Second, infralog.NopLogger{})
	require.NoError(t, err)
	return l, mc
}

func decodeReply(t *testing.T, p published) ReplyMessage {
	t.Helper()
	var r ReplyMessage
	require.NoError(t, json.Unmarshal(p.payload, &r))
	return r
}

func TestLoadTLSConfig(t *testing.T) {
	cert, key, ca := generateCert(t)
	cfg := Config{UseTLS: true, ClientCert: cert, ClientKey: key, CABundle: ca}
	tlsCfg, err := cfg.LoadTLSConfig()
	require.NoError(t, err)
	assert.NotEmpty(t, tlsCfg.Certificates)
	assert.NotNil(t, tlsCfg.RootCAs)

	_, err = Config{UseTLS: true}.LoadTLSConfig()
	assert.Error(t, err)
}

func TestNewClientOptionsAuth(t *testing.T) {
	opts, err := NewClientOptions(Config{Broker: "tcp://localhost:1883", ClientID: "id", Username: "u", Password: "p"})
	require.NoError(t, err)
	assert.Equal(t, "u", opts.Username)
	assert.Equal(t, "p", opts.Password)

	opts, err = NewClientOptions(Config{Broker: "tcp://localhost:1883", Username: "u", AuthMethod: "certificate"})
	require.NoError(t, err)
	assert.Empty(t, opts.Username)
}

func TestConfigDefaultsAndValidate(t *testing.T) {
	var cfg Config
	cfg.SetDefaults()
	assert.Equal(t, DefaultCommandTopic, cfg.CommandTopic)
	assert.Equal(t, DefaultReplyTopic, cfg.ReplyTopic)
	assert.Equal(t, 3, cfg.MaxRetries)
	assert.NoError(t, cfg.Validate())

	cfg.Enabled = true
	assert.Error(t, cfg.Validate())
	cfg.Broker = "tcp://b:1883"
	assert.NoError(t, cfg.Validate())
	cfg.QoS = map[string]byte{"reply": 3}
	assert.Error(t, cfg.Validate())
	cfg.QoS = nil
	cfg.AuthMethod = "kerberos"
	assert.Error(t, cfg.Validate())
}

func TestListenerSubscribesWithQoS(t *testing.T) {
	_, mc := newTestListener(t, Config{QoS: map[string]byte{"command": 1}}, &recordingHandler{})
	require.Len(t, mc.subscribed, 1)
	assert.Equal(t, DefaultCommandTopic, mc.subscribed[0].topic)
	assert.Equal(t, byte(1), mc.subscribed[0].qos)
}

func TestListenerConnectError(t *testing.T) {
	mc := &mockClient{connectErr: errors.New("refused")}
	useMock(t, mc)
	_, err := NewListener(Config{Broker: "tcp://localhost:1883"}, &recordingHandler{}, 0, nil)
	assert.Error(t, err)
}

func TestCommandRepliesWithCorrelation(t *testing.T) {
	h := &recordingHandler{}
	l, mc := newTestListener(t, Config{QoS: map[string]byte{"reply": 2}}, h)

	l.onCommand(nil, mockMessage{topic: DefaultCommandTopic, p: []byte(`{"action":"crew_unavailable","crew_id":" C02 ","correlation_id":"abc"}`)})

	require.Len(t, h.cmds, 1)
	assert.Equal(t, "C02", h.cmds[0].CrewID)
	out := mc.sent()
	require.Len(t, out, 1)
	assert.Equal(t, DefaultReplyTopic, out[0].topic)
	assert.Equal(t, byte(2), out[0].qos)
	r := decodeReply(t, out[0])
	assert.Equal(t, "abc", r.CorrelationID)
	assert.Equal(t, "handled crew_unavailable", r.Text)
}

func TestCommandReplyToOverridesTopic(t *testing.T) {
	l, mc := newTestListener(t, Config{}, &recordingHandler{})
	l.onCommand(nil, mockMessage{p: []byte(`{"action":"show_schedule","reply_to":"ops/desk1"}`)})
	out := mc.sent()
	require.Len(t, out, 1)
	assert.Equal(t, "ops/desk1", out[0].topic)
	assert.NotEmpty(t, decodeReply(t, out[0]).CorrelationID)
}

func TestMalformedCommandNeverReachesHandler(t *testing.T) {
	h := &recordingHandler{}
	l, mc := newTestListener(t, Config{}, h)
	l.onCommand(nil, mockMessage{p: []byte(`not json`)})
	assert.Empty(t, h.cmds)
	out := mc.sent()
	require.Len(t, out, 1)
	r := decodeReply(t, out[0])
	assert.Equal(t, command.ActionUnknown, r.Action)
	assert.Equal(t, command.FallbackText, r.Text)
	assert.NotEmpty(t, r.Error)
}

func TestReplyRetry(t *testing.T) {
	l, mc := newTestListener(t, Config{MaxRetries: 1, BackoffMS: 1}, &recordingHandler{})
	mc.publishErrs = []error{errors.New("net fail"), nil}
	l.onCommand(nil, mockMessage{p: []byte(`{"action":"show_schedule"}`)})
	assert.Len(t, mc.sent(), 2)
}

func TestLWTConfigured(t *testing.T) {
	l, mc := newTestListener(t, Config{LWTTopic: "lwt", LWTPayload: "bye", LWTQoS: 1}, &recordingHandler{})
	assert.True(t, mc.opts.WillEnabled)
	assert.Equal(t, "lwt", mc.opts.WillTopic)
	assert.Equal(t, "bye", string(mc.opts.WillPayload))
	l.Disconnect()
	assert.Empty(t, mc.sent())
}

func TestForwardRuns(t *testing.T) {
	l, mc := newTestListener(t, Config{EventTopic: "cargoplan/runs"}, &recordingHandler{})
	bus := eventbus.New()
	defer bus.Close()
	ctx, cancel := context.WithCancel(context.Background())

	l.ForwardRuns(ctx, bus)
	bus.Publish(events.MutationEvent{Entity: events.EntityCrew, ID: "C01"})
	bus.Publish(events.RunEvent{RunID: "r1", Trigger: "crew_availability", Status: "infeasible", Err: errors.New("no assignment")})

	require.Eventually(t, func() bool { return len(mc.sent()) == 1 }, time.Second, 5*time.Millisecond)
	cancel()
	l.Disconnect()

	p := mc.sent()[0]
	assert.Equal(t, "cargoplan/runs", p.topic)
	var m RunMessage
	require.NoError(t, json.Unmarshal(p.payload, &m))
	assert.Equal(t, "r1", m.RunID)
	assert.False(t, m.Accepted)
	assert.Equal(t, "no assignment", m.Error)
}

func TestDisconnectStopsCommandHandling(t *testing.T) {
	h := &recordingHandler{}
	l, mc := newTestListener(t, Config{}, h)
	handler := mc.subscribed[0].handler

	l.Disconnect()
	assert.Equal(t, []string{DefaultCommandTopic}, mc.unsubscribed)

	handler(nil, mockMessage{topic: DefaultCommandTopic, p: []byte(`{"action":"show_schedule"}`)})
	assert.Empty(t, h.cmds)
	assert.Empty(t, mc.sent())
}

func TestDisconnectWhileCommandsArrive(t *testing.T) {
	h := &recordingHandler{}
	l, mc := newTestListener(t, Config{}, h)
	handler := mc.subscribed[0].handler

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			handler(nil, mockMessage{topic: DefaultCommandTopic, p: []byte(`{"action":"show_schedule"}`)})
		}()
	}
	l.Disconnect()
	wg.Wait()

	h.mu.Lock()
	handled := len(h.cmds)
	h.mu.Unlock()
	assert.Equal(t, handled, len(mc.sent()), "every accepted command is answered")
}

func TestForwardRunsWithoutTopicIsNoop(t *testing.T) {
	l, mc := newTestListener(t, Config{}, &recordingHandler{})
	bus := eventbus.New()
	defer bus.Close()
	l.ForwardRuns(context.Background(), bus)
	bus.Publish(events.RunEvent{RunID: "r1"})
	time.Sleep(10 * time.Millisecond)
	assert.Empty(t, mc.sent())
}
