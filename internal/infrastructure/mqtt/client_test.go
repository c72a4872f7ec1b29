package mqtt

import (
	"context"
	"errors"
	"net"
	"strings"
	"testing"
	"time"

	"github.com/nerrad567/mqtt2broadlink/internal/infrastructure/config"
)

// testConfig returns a valid MQTT configuration for testing.
func testConfig() config.MQTTConfig {
	return config.MQTTConfig{
		Host:            "127.0.0.1",
		Port:            1883,
		ClientID:        "m2b-test",
		QoS:             1,
		Prefix:          "m2b-test/",
		ConnectAttempts: 1,
		RetryInterval:   10 * time.Millisecond,
	}
}

// closedPort returns a local TCP port with nothing listening on it.
func closedPort(t *testing.T) int {
	t.Helper()
	l, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("Listen() error = %v", err)
	}
	port := l.Addr().(*net.TCPAddr).Port
	l.Close() //nolint:errcheck // Test cleanup
	return port
}

// =============================================================================
// Connection Tests
// =============================================================================

func TestConnect_BrokerRefused(t *testing.T) {
	cfg := testConfig()
	cfg.Port = closedPort(t)
	cfg.ConnectAttempts = 3

	logger := &mockLogger{}
	start := time.Now()
	_, err := Connect(context.Background(), cfg, logger)
	if !errors.Is(err, ErrConnectionFailed) {
		t.Fatalf("Connect() error = %v, want ErrConnectionFailed", err)
	}
	if elapsed := time.Since(start); elapsed < 2*cfg.RetryInterval {
		t.Errorf("Connect() returned after %v, want at least two retry intervals", elapsed)
	}

	logger.mu.Lock()
	defer logger.mu.Unlock()
	if len(logger.warns) != cfg.ConnectAttempts {
		t.Fatalf("warns = %v, want one per attempt", logger.warns)
	}
	for _, w := range logger.warns {
		if !strings.Contains(w, "MQTT connection attempt failed") {
			t.Errorf("warn = %q", w)
		}
	}
}

func TestConnect_CancelledDuringRetry(t *testing.T) {
	cfg := testConfig()
	cfg.Port = closedPort(t)
	cfg.ConnectAttempts = 100
	cfg.RetryInterval = time.Hour

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	_, err := Connect(ctx, cfg, nil)
	if !errors.Is(err, ErrConnectionFailed) || !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("Connect() error = %v, want ErrConnectionFailed wrapping DeadlineExceeded", err)
	}
}

func TestBuildClientOptions(t *testing.T) {
	cfg := testConfig()
	cfg.Username = "bridge"
	cfg.Password = "secret"
	cfg.TLS = true
	cfg.Port = 8883

	opts := buildClientOptions(cfg)

	if len(opts.Servers) != 1 || opts.Servers[0].String() != "ssl://127.0.0.1:8883" {
		t.Errorf("Servers = %v, want ssl://127.0.0.1:8883", opts.Servers)
	}
	if opts.Username != "bridge" || opts.Password != "secret" {
		t.Errorf("credentials = %q/%q", opts.Username, opts.Password)
	}
	if opts.TLSConfig == nil || opts.TLSConfig.MinVersion != tlsMinVersion {
		t.Error("TLS config not applied")
	}
	if !opts.AutoReconnect || opts.ConnectRetry {
		t.Errorf("AutoReconnect = %v, ConnectRetry = %v; want true, false", opts.AutoReconnect, opts.ConnectRetry)
	}
	if opts.ClientID != "m2b-test" {
		t.Errorf("ClientID = %q", opts.ClientID)
	}

	cfg.TLS = false
	cfg.Username = ""
	opts = buildClientOptions(cfg)
	if opts.Servers[0].String() != "tcp://127.0.0.1:8883" {
		t.Errorf("Servers = %v, want tcp://127.0.0.1:8883", opts.Servers)
	}
	if opts.Username != "" {
		t.Error("username set without credentials")
	}
}

func TestConfigureLWT(t *testing.T) {
	opts := buildClientOptions(testConfig())
	configureLWT(opts, NewTopics("m2b-test/"))

	if !opts.WillEnabled || opts.WillTopic != "m2b-test/status" {
		t.Errorf("will = %v %q", opts.WillEnabled, opts.WillTopic)
	}
	if string(opts.WillPayload) != StatusOffline || !opts.WillRetained {
		t.Errorf("will payload = %q retained=%v", opts.WillPayload, opts.WillRetained)
	}
}

// =============================================================================
// Disconnected Client Tests
// =============================================================================

func TestIsConnected_InitialState(t *testing.T) {
	client := &Client{}
	if client.IsConnected() {
		t.Error("IsConnected() = true for new client")
	}
}

func TestCloseNil(t *testing.T) {
	client := &Client{}
	if err := client.Close(); err != nil {
		t.Errorf("Close() on nil client error = %v", err)
	}
}

func TestHealthCheck_NotConnected(t *testing.T) {
	client := &Client{}
	if err := client.HealthCheck(context.Background()); !errors.Is(err, ErrNotConnected) {
		t.Errorf("HealthCheck() error = %v, want ErrNotConnected", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := client.HealthCheck(ctx); !errors.Is(err, context.Canceled) {
		t.Errorf("HealthCheck() error = %v, want context.Canceled", err)
	}
}

func TestPublish_Validation(t *testing.T) {
	client := &Client{subscriptions: make(map[string]subscription)}

	tests := []struct {
		name    string
		topic   string
		payload []byte
		qos     byte
		wantErr error
	}{
		{"empty topic", "", nil, 1, ErrInvalidTopic},
		{"wildcard topic", "m2b/device/+/send", nil, 1, ErrInvalidTopic},
		{"qos 3", "m2b/x", nil, 3, ErrInvalidQoS},
		{"too large", "m2b/x", make([]byte, maxPayloadSize+1), 1, ErrPublishFailed},
		{"not connected", "m2b/x", []byte("ok"), 1, ErrNotConnected},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := client.Publish(tt.topic, tt.payload, tt.qos, false); !errors.Is(err, tt.wantErr) {
				t.Errorf("Publish() error = %v, want %v", err, tt.wantErr)
			}
		})
	}
}

func TestPublishStatus_NotConnected(t *testing.T) {
	logger := &mockLogger{}
	client := &Client{topics: NewTopics("m2b-test/"), logger: logger}

	if err := client.publishStatus(StatusOnline); !errors.Is(err, ErrNotConnected) {
		t.Errorf("publishStatus() error = %v, want ErrNotConnected", err)
	}

	logger.mu.Lock()
	defer logger.mu.Unlock()
	if len(logger.warns) != 1 || !strings.Contains(logger.warns[0], "availability publish failed") {
		t.Errorf("warns = %v", logger.warns)
	}
}

func TestSubscribe_Validation(t *testing.T) {
	client := &Client{subscriptions: make(map[string]subscription)}
	noop := func(string, []byte) error { return nil }

	if err := client.Subscribe("", 1, noop); !errors.Is(err, ErrInvalidTopic) {
		t.Errorf("empty topic error = %v", err)
	}
	if err := client.Subscribe("a", 3, noop); !errors.Is(err, ErrInvalidQoS) {
		t.Errorf("qos error = %v", err)
	}
	if err := client.Subscribe("a", 1, nil); !errors.Is(err, ErrSubscribeFailed) {
		t.Errorf("nil handler error = %v", err)
	}
	if err := client.Subscribe("a", 1, noop); !errors.Is(err, ErrNotConnected) {
		t.Errorf("disconnected error = %v", err)
	}
	if err := client.SubscribeAll([]string{"a", "b"}, 1, noop); !errors.Is(err, ErrNotConnected) {
		t.Errorf("SubscribeAll() error = %v", err)
	}
	if client.SubscriptionCount() != 0 {
		t.Error("failed subscriptions must not be tracked")
	}
}

// =============================================================================
// Topic Tests
// =============================================================================

func TestTopicBuilders(t *testing.T) {
	topics := NewTopics("home/ir")

	tests := []struct {
		got  string
		want string
	}{
		{topics.Prefix(), "home/ir/"},
		{topics.DeviceAction("kitchen-ac", "send"), "home/ir/device/kitchen-ac/send"},
		{topics.CommandAction("power_on", "add_pronto"), "home/ir/command/power_on/add_pronto"},
		{topics.LogLevel(), "home/ir/log/level"},
		{topics.Status(), "home/ir/status"},
		{topics.AllDeviceActions(), "home/ir/device/+/+"},
		{topics.AllCommandActions(), "home/ir/command/+/+"},
		{Topics{}.LogLevel(), "m2b/log/level"},
		{NewTopics("").DeviceAction("a", "b"), "m2b/device/a/b"},
	}

	for i, tt := range tests {
		if tt.got != tt.want {
			t.Errorf("case %d: got %q, want %q", i, tt.got, tt.want)
		}
	}

	subs := topics.Subscriptions()
	if len(subs) != 3 {
		t.Fatalf("Subscriptions() = %v", subs)
	}
	for _, s := range subs {
		if s[:len("home/ir/")] != "home/ir/" {
			t.Errorf("subscription %q outside prefix", s)
		}
	}
}

func TestWrapHandler_RecoversPanic(t *testing.T) {
	client := &Client{}
	logger := &mockLogger{}
	client.SetLogger(logger)

	wrapped := client.wrapHandler(func(string, []byte) error { panic("boom") })
	wrapped(nil, fakeMessage{topic: "m2b/x"})

	wrapped = client.wrapHandler(func(string, []byte) error { return errors.New("bad") })
	wrapped(nil, fakeMessage{topic: "m2b/y"})

	logger.mu.Lock()
	defer logger.mu.Unlock()
	if len(logger.errors) != 1 || len(logger.warns) != 1 {
		t.Errorf("errors = %v, warns = %v", logger.errors, logger.warns)
	}
}
