// Package ingest lets devices register and report over MQTT. Messages on
// <prefix>/<deviceId>/register carry {"totalLevels": N} and messages on
// <prefix>/<deviceId>/report carry {"fillLevel": N}.
package ingest

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/dwsmith1983/trashcan/internal/metrics"
	"github.com/dwsmith1983/trashcan/internal/provider"
	"github.com/dwsmith1983/trashcan/pkg/types"
)

// DefaultTopicPrefix is used when Config.TopicPrefix is empty.
const DefaultTopicPrefix = "trashcan/devices"

// Message kinds, taken from the last topic segment.
const (
	KindRegister = "register"
	KindReport   = "report"
)

// ErrNotADeviceTopic is returned for topics outside the configured prefix.
var ErrNotADeviceTopic = errors.New("not a device topic")

// Message is the subset of an MQTT message the ingestor reads.
type Message interface {
	Topic() string
	Payload() []byte
	Retained() bool
}

// Subscriber is satisfied by *Client.
type Subscriber interface {
	Subscribe(topic string, handler func(Message)) error
}

// Ingestor turns device messages into storage operations.
type Ingestor struct {
	provider      provider.Provider
	prefix        string
	allowRetained bool
	logger        *slog.Logger
}

// New creates an Ingestor writing through prov.
func New(prov provider.Provider, cfg Config) *Ingestor {
	prefix := strings.Trim(cfg.TopicPrefix, "/")
	if prefix == "" {
		prefix = DefaultTopicPrefix
	}
	return &Ingestor{
		provider:      prov,
		prefix:        prefix,
		allowRetained: cfg.AllowRetained,
		logger:        slog.Default(),
	}
}

// SetLogger overrides the default logger.
func (i *Ingestor) SetLogger(l *slog.Logger) {
	if l != nil {
		i.logger = l
	}
}

// Topics returns the subscription filters for both message kinds.
func (i *Ingestor) Topics() []string {
	return []string{
		i.prefix + "/+/" + KindRegister,
		i.prefix + "/+/" + KindReport,
	}
}

// Run subscribes to the device topics and blocks until ctx is done.
// Messages are handled with ctx, so in-flight storage calls are cancelled
// on shutdown.
func (i *Ingestor) Run(ctx context.Context, sub Subscriber) error {
	for _, topic := range i.Topics() {
		if err := sub.Subscribe(topic, func(msg Message) { i.HandleMessage(ctx, msg) }); err != nil {
			return fmt.Errorf("subscribing to %s: %w", topic, err)
		}
		i.logger.Info("mqtt subscribed", "topic", topic)
	}
	<-ctx.Done()
	return nil
}

// HandleMessage validates one message and applies it. Failures are logged
// and counted, never returned: there is nobody to return them to.
func (i *Ingestor) HandleMessage(ctx context.Context, msg Message) {
	topic := msg.Topic()
	if msg.Retained() && !i.allowRetained {
		i.logger.Debug("mqtt ignoring retained message", "topic", topic)
		return
	}

	deviceID, kind, err := ParseTopic(i.prefix, topic)
	if err != nil {
		if !errors.Is(err, ErrNotADeviceTopic) {
			i.logger.Warn("mqtt topic rejected", "topic", topic, "error", err)
			metrics.IngestMessages.WithLabelValues("unknown", metrics.ResultInvalid).Inc()
		}
		return
	}

	switch kind {
	case KindRegister:
		var p struct {
			TotalLevels *int `json:"totalLevels"`
		}
		if err := decodePayload(msg.Payload(), &p); err != nil || p.TotalLevels == nil || *p.TotalLevels < 0 {
			i.reject(kind, topic, deviceID, types.MsgTotalLevelsInvalid)
			return
		}
		err = i.provider.Register(ctx, deviceID, *p.TotalLevels)
	case KindReport:
		var p struct {
			FillLevel *int `json:"fillLevel"`
		}
		if err := decodePayload(msg.Payload(), &p); err != nil || p.FillLevel == nil || *p.FillLevel < 0 {
			i.reject(kind, topic, deviceID, types.MsgFillLevelInvalid)
			return
		}
		err = i.provider.Report(ctx, deviceID, *p.FillLevel)
	}

	metrics.IngestMessages.WithLabelValues(kind, metrics.ResultOf(err)).Inc()
	if err != nil {
		var opErr *types.Error
		if errors.As(err, &opErr) {
			i.logger.Error(opErr.Message, "code", opErr.Code, "device", deviceID, "topic", topic, "error", opErr.Err)
			return
		}
		i.logger.Error("mqtt ingest failed", "device", deviceID, "topic", topic, "error", err)
		return
	}
	i.logger.Debug("mqtt message applied", "kind", kind, "device", deviceID)
}

func (i *Ingestor) reject(kind, topic, deviceID, reason string) {
	metrics.IngestMessages.WithLabelValues(kind, metrics.ResultInvalid).Inc()
	i.logger.Warn("mqtt payload rejected", "topic", topic, "device", deviceID, "reason", reason)
}

// ParseTopic splits <prefix>/<deviceId>/<kind>. Device ids are single topic
// levels.
func ParseTopic(prefix, topic string) (deviceID, kind string, err error) {
	rest, ok := strings.CutPrefix(topic, strings.Trim(prefix, "/")+"/")
	if !ok {
		return "", "", ErrNotADeviceTopic
	}
	deviceID, kind, ok = strings.Cut(rest, "/")
	if !ok || deviceID == "" {
		return "", "", fmt.Errorf("topic %q has no device id", topic)
	}
	if kind != KindRegister && kind != KindReport {
		return "", "", fmt.Errorf("topic %q has unknown kind %q", topic, kind)
	}
	return deviceID, kind, nil
}

func decodePayload(payload []byte, v any) error {
	if len(bytes.TrimSpace(payload)) == 0 {
		return errors.New("empty payload")
	}
	return json.Unmarshal(payload, v)
}
