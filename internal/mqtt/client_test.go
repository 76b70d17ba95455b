package mqtt

import (
	"errors"
	"sync"
	"testing"
	"time"

	paho "github.com/eclipse/paho.mqtt.golang"
)

type fakeToken struct {
	err error
}

func (t *fakeToken) Wait() bool                     { return true }
func (t *fakeToken) WaitTimeout(time.Duration) bool { return true }
func (t *fakeToken) Error() error                   { return t.err }
func (t *fakeToken) Done() <-chan struct{} {
	ch := make(chan struct{})
	close(ch)
	return ch
}

type fakeConn struct {
	mu           sync.Mutex
	connected    bool
	connects     int
	subscribed   []string
	published    map[string][][]byte
	handlers     map[string]paho.MessageHandler
	onConnect    func()
	connectErr   error
	subscribeErr error
}

func newFakeConn() *fakeConn {
	return &fakeConn{
		published: make(map[string][][]byte),
		handlers:  make(map[string]paho.MessageHandler),
	}
}

func (f *fakeConn) Connect() paho.Token {
	f.mu.Lock()
	f.connects++
	if f.connectErr == nil {
		f.connected = true
	}
	onConnect := f.onConnect
	err := f.connectErr
	f.mu.Unlock()

	if err == nil && onConnect != nil {
		onConnect()
	}
	return &fakeToken{err: err}
}

func (f *fakeConn) Disconnect(quiesce uint) {
	f.mu.Lock()
	f.connected = false
	f.mu.Unlock()
}

func (f *fakeConn) Publish(topic string, qos byte, retained bool, payload interface{}) paho.Token {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.published[topic] = append(f.published[topic], payload.([]byte))
	return &fakeToken{}
}

func (f *fakeConn) Subscribe(topic string, qos byte, callback paho.MessageHandler) paho.Token {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.subscribeErr != nil {
		return &fakeToken{err: f.subscribeErr}
	}
	f.subscribed = append(f.subscribed, topic)
	f.handlers[topic] = callback
	return &fakeToken{}
}

func (f *fakeConn) IsConnected() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.connected
}

type fakeMessage struct {
	topic   string
	payload []byte
}

func (m *fakeMessage) Duplicate() bool   { return false }
func (m *fakeMessage) Qos() byte         { return 0 }
func (m *fakeMessage) Retained() bool    { return false }
func (m *fakeMessage) Topic() string     { return m.topic }
func (m *fakeMessage) MessageID() uint16 { return 0 }
func (m *fakeMessage) Payload() []byte   { return m.payload }
func (m *fakeMessage) Ack()              {}

// deliver simulates the broker pushing a message to a subscribed topic
func (f *fakeConn) deliver(topic string, payload []byte) {
	f.mu.Lock()
	handler := f.handlers[topic]
	f.mu.Unlock()
	if handler != nil {
		handler(nil, &fakeMessage{topic: topic, payload: payload})
	}
}

func newTestClient(fc *fakeConn) *Client {
	c := NewClient(Options{
		BrokerURL:      "tcp://fake:1883",
		ClientID:       "test",
		ConnectTimeout: time.Second,
		ReconnectDelay: time.Millisecond,
		MaxReconnects:  3,
	})
	c.dial = func(cl *Client) conn {
		fc.mu.Lock()
		fc.onConnect = cl.resubscribe
		fc.mu.Unlock()
		return fc
	}
	return c
}

func TestConnect_NoBrokerURL(t *testing.T) {
	c := NewClient(Options{})
	if err := c.Connect(); err == nil {
		t.Error("Expected error when broker URL is not configured")
	}
}

func TestConnect_Idempotent(t *testing.T) {
	fc := newFakeConn()
	c := newTestClient(fc)

	if err := c.Connect(); err != nil {
		t.Fatalf("Connect() failed: %v", err)
	}
	if err := c.Connect(); err != nil {
		t.Fatalf("Second Connect() failed: %v", err)
	}

	if fc.connects != 1 {
		t.Errorf("Expected exactly one broker connect, got %d", fc.connects)
	}
}

func TestConnect_NoDuplicateSubscriptions(t *testing.T) {
	fc := newFakeConn()
	c := newTestClient(fc)

	if _, err := c.Subscribe(TopicTasks, func(string, []byte) {}); err != nil {
		t.Fatalf("Subscribe() failed: %v", err)
	}

	if err := c.Connect(); err != nil {
		t.Fatalf("Connect() failed: %v", err)
	}
	if err := c.Connect(); err != nil {
		t.Fatalf("Second Connect() failed: %v", err)
	}

	if len(fc.subscribed) != 1 {
		t.Errorf("Expected exactly one broker subscription, got %v", fc.subscribed)
	}
}

func TestSubscribe_BeforeConnectIsReplayed(t *testing.T) {
	fc := newFakeConn()
	c := newTestClient(fc)

	received := make(chan []byte, 1)
	if _, err := c.Subscribe(TopicRobotStatus, func(_ string, payload []byte) {
		received <- payload
	}); err != nil {
		t.Fatalf("Subscribe() failed: %v", err)
	}

	if err := c.Connect(); err != nil {
		t.Fatalf("Connect() failed: %v", err)
	}

	fc.deliver(TopicRobotStatus, []byte(`{"id":"PB-001"}`))

	select {
	case payload := <-received:
		if string(payload) != `{"id":"PB-001"}` {
			t.Errorf("Unexpected payload: %s", payload)
		}
	default:
		t.Error("Handler was not invoked for delivered message")
	}
}

func TestSubscribe_MultipleHandlersSingleSubscription(t *testing.T) {
	fc := newFakeConn()
	c := newTestClient(fc)

	if err := c.Connect(); err != nil {
		t.Fatalf("Connect() failed: %v", err)
	}

	var got1, got2 int
	if _, err := c.Subscribe(TopicTasks, func(string, []byte) { got1++ }); err != nil {
		t.Fatalf("Subscribe() failed: %v", err)
	}
	if _, err := c.Subscribe(TopicTasks, func(string, []byte) { got2++ }); err != nil {
		t.Fatalf("Subscribe() failed: %v", err)
	}

	if len(fc.subscribed) != 1 {
		t.Errorf("Expected one broker subscription for two handlers, got %v", fc.subscribed)
	}

	fc.deliver(TopicTasks, []byte(`{}`))

	if got1 != 1 || got2 != 1 {
		t.Errorf("Expected both handlers invoked once, got %d and %d", got1, got2)
	}
}

func TestSubscribe_BrokerFailureRollsBackRegistration(t *testing.T) {
	fc := newFakeConn()
	c := newTestClient(fc)

	if err := c.Connect(); err != nil {
		t.Fatalf("Connect() failed: %v", err)
	}

	fc.mu.Lock()
	fc.subscribeErr = errors.New("subscribe refused")
	fc.mu.Unlock()

	var calls int
	if _, err := c.Subscribe(TopicTasks, func(string, []byte) { calls++ }); err == nil {
		t.Fatal("Expected Subscribe to fail when the broker refuses")
	}

	fc.mu.Lock()
	fc.subscribeErr = nil
	fc.mu.Unlock()

	// The failed handler left the caller with nothing to cancel, so a
	// reconnect replay must not resurrect it.
	c.resubscribe()
	fc.deliver(TopicTasks, []byte(`{}`))

	if calls != 0 {
		t.Errorf("Handler from a failed subscribe fired %d time(s)", calls)
	}
	if len(fc.subscribed) != 0 {
		t.Errorf("Failed topic must not be replayed, got %v", fc.subscribed)
	}
}

func TestRegistration_Cancel(t *testing.T) {
	fc := newFakeConn()
	c := newTestClient(fc)

	if err := c.Connect(); err != nil {
		t.Fatalf("Connect() failed: %v", err)
	}

	var calls int
	reg, err := c.Subscribe(TopicTasks, func(string, []byte) { calls++ })
	if err != nil {
		t.Fatalf("Subscribe() failed: %v", err)
	}

	fc.deliver(TopicTasks, []byte(`{}`))
	reg.Cancel()
	fc.deliver(TopicTasks, []byte(`{}`))

	if calls != 1 {
		t.Errorf("Expected handler invoked once after cancel, got %d", calls)
	}
}

func TestPublish_NotConnected(t *testing.T) {
	fc := newFakeConn()
	c := newTestClient(fc)

	if err := c.Publish(TopicRobotStatus, "payload"); err == nil {
		t.Error("Expected publish to fail when not connected")
	}
}

func TestPublish_SerializesStructs(t *testing.T) {
	fc := newFakeConn()
	c := newTestClient(fc)

	if err := c.Connect(); err != nil {
		t.Fatalf("Connect() failed: %v", err)
	}

	msg := PositionMessage{RobotID: "PB-001", Location: "B2"}
	if err := c.Publish(TopicRobotPosition, msg); err != nil {
		t.Fatalf("Publish() failed: %v", err)
	}

	payloads := fc.published[TopicRobotPosition]
	if len(payloads) != 1 {
		t.Fatalf("Expected one published message, got %d", len(payloads))
	}
	want := `{"robotId":"PB-001","location":"B2"}`
	if string(payloads[0]) != want {
		t.Errorf("Unexpected payload: %s", payloads[0])
	}
}

func TestDisconnect_KeepsRememberedTopics(t *testing.T) {
	fc := newFakeConn()
	c := newTestClient(fc)

	if _, err := c.Subscribe(TopicRobotStatus, func(string, []byte) {}); err != nil {
		t.Fatalf("Subscribe() failed: %v", err)
	}
	if err := c.Connect(); err != nil {
		t.Fatalf("Connect() failed: %v", err)
	}

	c.Disconnect()
	if c.IsConnected() {
		t.Error("Expected client to report disconnected")
	}

	// A later explicit Connect resubscribes to everything registered before
	if err := c.Connect(); err != nil {
		t.Fatalf("Reconnect failed: %v", err)
	}

	if len(fc.subscribed) != 2 {
		t.Errorf("Expected topic to be resubscribed after reconnect, got %v", fc.subscribed)
	}
}

func TestReconnect_DoesNotRaceExplicitConnect(t *testing.T) {
	fc := newFakeConn()
	c := newTestClient(fc)

	if err := c.Connect(); err != nil {
		t.Fatalf("Connect() failed: %v", err)
	}

	fc.mu.Lock()
	fc.connected = false
	fc.mu.Unlock()

	dialing := make(chan struct{})
	release := make(chan struct{})
	c.dial = func(cl *Client) conn {
		close(dialing)
		<-release
		fc.mu.Lock()
		fc.onConnect = cl.resubscribe
		fc.mu.Unlock()
		return fc
	}

	c.handleConnectionLost(errors.New("link down"))
	<-dialing

	// The reconnect attempt owns the dial; an explicit Connect while it is
	// in flight must not open a second connection.
	if err := c.Connect(); err != nil {
		t.Fatalf("Connect() during reconnect failed: %v", err)
	}
	close(release)

	deadline := time.Now().Add(time.Second)
	for !c.IsConnected() {
		if time.Now().After(deadline) {
			t.Fatal("Reconnect did not complete")
		}
		time.Sleep(time.Millisecond)
	}

	fc.mu.Lock()
	connects := fc.connects
	fc.mu.Unlock()
	if connects != 2 {
		t.Errorf("Expected a single reconnect dial, got %d connects in total", connects)
	}
}

func TestDispatch_HandlerPanicDoesNotCrash(t *testing.T) {
	fc := newFakeConn()
	c := newTestClient(fc)

	if err := c.Connect(); err != nil {
		t.Fatalf("Connect() failed: %v", err)
	}

	var calls int
	if _, err := c.Subscribe(TopicTasks, func(string, []byte) { panic("boom") }); err != nil {
		t.Fatalf("Subscribe() failed: %v", err)
	}
	if _, err := c.Subscribe(TopicTasks, func(string, []byte) { calls++ }); err != nil {
		t.Fatalf("Subscribe() failed: %v", err)
	}

	fc.deliver(TopicTasks, []byte(`not json`))

	if calls != 1 {
		t.Errorf("Expected second handler to run despite panic in first, got %d", calls)
	}
}
