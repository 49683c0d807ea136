package ingest

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
)

// Config holds the MQTT broker connection and topic layout.
type Config struct {
	BrokerURL     string `yaml:"brokerURL,omitempty" json:"brokerURL,omitempty"`
	ClientID      string `yaml:"clientID,omitempty" json:"clientID,omitempty"`
	Username      string `yaml:"username,omitempty" json:"username,omitempty"`
	Password      string `yaml:"password,omitempty" json:"-"`
	TopicPrefix   string `yaml:"topicPrefix,omitempty" json:"topicPrefix,omitempty"`
	AllowRetained bool   `yaml:"allowRetained,omitempty" json:"allowRetained,omitempty"`
}

// Enabled reports whether a broker is configured.
func (c Config) Enabled() bool { return strings.TrimSpace(c.BrokerURL) != "" }

// Client is a thin wrapper over a paho client.
type Client struct {
	client mqtt.Client
}

// Connect dials the broker and waits for the first connection. mqtt:// URLs
// are rewritten to tcp://.
func Connect(cfg Config, logger *slog.Logger) (*Client, error) {
	if logger == nil {
		logger = slog.Default()
	}
	url := strings.TrimSpace(cfg.BrokerURL)
	if url == "" {
		return nil, errors.New("mqtt broker URL is required")
	}
	if rest, ok := strings.CutPrefix(url, "mqtt://"); ok {
		url = "tcp://" + rest
	}

	opts := mqtt.NewClientOptions()
	opts.AddBroker(url)
	clientID := strings.TrimSpace(cfg.ClientID)
	if clientID == "" {
		clientID = "trashcan-ingest-" + time.Now().Format("150405.000")
	}
	opts.SetClientID(clientID)
	if cfg.Username != "" {
		opts.SetUsername(cfg.Username)
		opts.SetPassword(cfg.Password)
	}
	opts.SetAutoReconnect(true)
	opts.SetConnectRetry(true)
	opts.SetConnectRetryInterval(2 * time.Second)
	opts.SetKeepAlive(30 * time.Second)
	opts.SetPingTimeout(10 * time.Second)

	opts.OnConnectionLost = func(_ mqtt.Client, err error) {
		logger.Warn("mqtt connection lost", "error", err)
	}
	opts.OnConnect = func(_ mqtt.Client) {
		logger.Info("mqtt connected", "broker", url)
	}

	c := mqtt.NewClient(opts)
	tok := c.Connect()
	if ok := tok.WaitTimeout(15 * time.Second); !ok {
		c.Disconnect(0)
		return nil, fmt.Errorf("mqtt connect to %s timed out", url)
	}
	if err := tok.Error(); err != nil {
		return nil, fmt.Errorf("mqtt connect to %s: %w", url, err)
	}
	return &Client{client: c}, nil
}

// Subscribe registers handler for topic at QoS 1.
func (c *Client) Subscribe(topic string, handler func(Message)) error {
	tok := c.client.Subscribe(topic, 1, func(_ mqtt.Client, msg mqtt.Message) {
		handler(msg)
	})
	tok.Wait()
	return tok.Error()
}

// Close disconnects, allowing in-flight work one second to finish.
func (c *Client) Close() {
	if c == nil || c.client == nil {
		return
	}
	c.client.Disconnect(1000)
}
