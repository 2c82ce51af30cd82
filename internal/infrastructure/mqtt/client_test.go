package mqtt

import (
	"context"
	"errors"
	"net"
	"testing"
	"time"

	pahomqtt "github.com/eclipse/paho.mqtt.golang"

	"github.com/nerrad567/hashpipe-gateway/internal/infrastructure/config"
)

// testConfig returns an MQTT configuration for a local Mosquitto broker.
func testConfig() config.MQTTConfig {
	return config.MQTTConfig{
		Enabled: true,
		Broker: config.MQTTBrokerConfig{
			Host:     "127.0.0.1",
			Port:     1883,
			ClientID: "hpgateway-test",
		},
		QoS:         1,
		TopicPrefix: "hashpipe-test",
		Reconnect: config.MQTTReconnectConfig{
			InitialDelay: 1,
			MaxDelay:     5,
		},
	}
}

// skipIfNoBroker skips integration tests when no broker is listening.
func skipIfNoBroker(t *testing.T) {
	t.Helper()
	conn, err := net.DialTimeout("tcp", "127.0.0.1:1883", 500*time.Millisecond)
	if err != nil {
		t.Skip("MQTT broker not available at 127.0.0.1:1883")
	}
	conn.Close()
}

func TestTopics(t *testing.T) {
	tests := []struct {
		name     string
		got      string
		expected string
	}{
		{"status", Topics{Prefix: "hashpipe", Gateway: "px1"}.Status(3), "hashpipe/px1/3/status"},
		{"default prefix", Topics{Gateway: "px1"}.Status(0), "hashpipe/px1/0/status"},
		{"availability", Topics{Prefix: "hp", Gateway: "blpn48"}.Availability(), "hp/blpn48/availability"},
		{"all status", Topics{}.AllStatus(), "hashpipe/+/+/status"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.got != tt.expected {
				t.Errorf("got %q, want %q", tt.got, tt.expected)
			}
		})
	}
}

func TestBuildClientOptions(t *testing.T) {
	cfg := testConfig()
	cfg.Auth.Username = "gw"
	cfg.Auth.Password = "secret"

	opts := buildClientOptions(cfg, clientID(cfg, "px1"))
	configureLWT(opts, Topics{Prefix: "hashpipe", Gateway: "px1"})

	if len(opts.Servers) != 1 || opts.Servers[0].String() != "tcp://127.0.0.1:1883" {
		t.Errorf("Servers = %v", opts.Servers)
	}
	if opts.ClientID != "hpgateway-test-px1" {
		t.Errorf("ClientID = %q", opts.ClientID)
	}
	if opts.Username != "gw" || opts.Password != "secret" {
		t.Errorf("credentials not set")
	}
	if !opts.WillEnabled || opts.WillTopic != "hashpipe/px1/availability" || !opts.WillRetained {
		t.Errorf("LWT = %q retained=%v", opts.WillTopic, opts.WillRetained)
	}
	if string(opts.WillPayload) != availabilityOffline {
		t.Errorf("WillPayload = %q", opts.WillPayload)
	}
}

func TestClientIDDefault(t *testing.T) {
	cfg := testConfig()
	cfg.Broker.ClientID = ""
	if got := clientID(cfg, "px1"); got != "hpgateway-px1" {
		t.Errorf("clientID() = %q", got)
	}
}

func TestPublishValidation(t *testing.T) {
	c := &Client{}

	tests := []struct {
		name  string
		topic string
		qos   byte
		want  error
	}{
		{"empty topic", "", 0, ErrInvalidTopic},
		{"invalid qos", "a/b", 3, ErrInvalidQoS},
		{"disconnected", "a/b", 1, ErrNotConnected},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := c.Publish(tt.topic, []byte("{}"), tt.qos, false); !errors.Is(err, tt.want) {
				t.Errorf("Publish() error = %v, want %v", err, tt.want)
			}
		})
	}

	big := make([]byte, maxPayloadSize+1)
	if err := c.Publish("a/b", big, 0, false); !errors.Is(err, ErrPublishFailed) {
		t.Errorf("oversized Publish() error = %v", err)
	}
}

func TestCloseNil(t *testing.T) {
	var c *Client
	if err := c.Close(); err != nil {
		t.Errorf("Close() on nil client = %v", err)
	}
}

func TestConnectInvalidBroker(t *testing.T) {
	cfg := testConfig()
	cfg.Broker.Port = 1
	if _, err := Connect(cfg, "px1"); !errors.Is(err, ErrConnectionFailed) {
		t.Errorf("Connect() error = %v, want ErrConnectionFailed", err)
	}
}

func TestIntegration_RetainedStatus(t *testing.T) {
	skipIfNoBroker(t)

	cfg := testConfig()
	client, err := Connect(cfg, "itest")
	if err != nil {
		t.Fatalf("Connect() error = %v", err)
	}
	defer client.Close()

	if err := client.HealthCheck(context.Background()); err != nil {
		t.Fatalf("HealthCheck() error = %v", err)
	}

	topic := client.Topics().Status(0)
	if err := client.Publish(topic, []byte(`{"fields":{"A":1}}`), 1, true); err != nil {
		t.Fatalf("Publish() error = %v", err)
	}

	got := make(chan string, 1)
	opts := pahomqtt.NewClientOptions().AddBroker("tcp://127.0.0.1:1883").SetClientID("hpgateway-test-reader")
	reader := pahomqtt.NewClient(opts)
	if token := reader.Connect(); !token.WaitTimeout(5*time.Second) || token.Error() != nil {
		t.Fatalf("reader connect failed: %v", token.Error())
	}
	defer reader.Disconnect(100)

	reader.Subscribe(topic, 1, func(_ pahomqtt.Client, m pahomqtt.Message) {
		select {
		case got <- string(m.Payload()):
		default:
		}
	})

	select {
	case payload := <-got:
		if payload != `{"fields":{"A":1}}` {
			t.Errorf("retained payload = %q", payload)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("retained status not received")
	}
}
