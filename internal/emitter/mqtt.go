package emitter

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"

	mediaplayer "github.com/e7canasta/orion-media-player"
	"github.com/e7canasta/orion-media-player/internal/config"
)

const (
	publishTimeout = 2 * time.Second
	connectTimeout = 5 * time.Second
	eventQueueSize = 64
)

// ErrNotConnected is returned when publishing without a broker connection.
var ErrNotConnected = errors.New("emitter: mqtt not connected")

// Client is the part of mqtt.Client the emitter and the control plane use.
type Client interface {
	IsConnected() bool
	Publish(topic string, qos byte, retained bool, payload interface{}) mqtt.Token
	Subscribe(topic string, qos byte, callback mqtt.MessageHandler) mqtt.Token
	Unsubscribe(topics ...string) mqtt.Token
}

// MQTTEmitter publishes player events and periodic status to the broker.
type MQTTEmitter struct {
	cfg        *config.Config
	sessionID  string
	Client     Client // Exported for control plane
	mqttClient mqtt.Client

	events chan mediaplayer.Event

	mu        sync.RWMutex
	published map[string]uint64 // count per topic
	dropped   uint64
	errors    uint64
}

// NewMQTTEmitter creates an emitter for one player session.
func NewMQTTEmitter(cfg *config.Config, sessionID string) *MQTTEmitter {
	return &MQTTEmitter{
		cfg:       cfg,
		sessionID: sessionID,
		events:    make(chan mediaplayer.Event, eventQueueSize),
		published: make(map[string]uint64),
	}
}

// BrokerURL adds the tcp:// scheme when the configured broker has none.
func BrokerURL(broker string) string {
	if strings.Contains(broker, "://") {
		return broker
	}
	return "tcp://" + broker
}

// Connect establishes the connection to the MQTT broker
func (e *MQTTEmitter) Connect(ctx context.Context) error {
	broker := BrokerURL(e.cfg.MQTT.Broker)

	opts := mqtt.NewClientOptions()
	opts.AddBroker(broker)
	opts.SetClientID(e.cfg.MQTT.ClientID)
	opts.SetAutoReconnect(true)
	opts.SetConnectRetry(true)
	opts.SetConnectRetryInterval(2 * time.Second)
	opts.SetMaxReconnectInterval(30 * time.Second)

	opts.OnConnect = func(c mqtt.Client) {
		slog.Info("mediaplayer: mqtt connection established", "broker", broker, "client_id", e.cfg.MQTT.ClientID)
	}
	opts.OnConnectionLost = func(c mqtt.Client, err error) {
		slog.Warn("mediaplayer: mqtt connection lost, will auto-reconnect", "error", err, "broker", broker)
	}

	client := mqtt.NewClient(opts)

	slog.Info("mediaplayer: connecting to mqtt broker", "broker", broker)

	token := client.Connect()
	select {
	case <-token.Done():
	case <-time.After(connectTimeout):
		return fmt.Errorf("mqtt connection timeout")
	case <-ctx.Done():
		return ctx.Err()
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("mqtt connection failed: %w", err)
	}

	e.mqttClient = client
	e.Client = client
	return nil
}

// Observe is a player event observer. It never blocks: events beyond the queue
// capacity are dropped and counted.
func (e *MQTTEmitter) Observe(ev mediaplayer.Event) {
	select {
	case e.events <- ev:
	default:
		e.mu.Lock()
		e.dropped++
		e.mu.Unlock()
	}
}

// Run publishes queued events and, every interval, the status returned by stats.
// It returns when ctx is done, after draining queued events.
func (e *MQTTEmitter) Run(ctx context.Context, interval time.Duration, stats func() mediaplayer.Stats) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			e.drain()
			if stats != nil {
				e.logErr("status", e.PublishStatus(stats()))
			}
			return
		case ev := <-e.events:
			e.logErr("event", e.PublishEvent(ev))
		case <-ticker.C:
			if stats != nil {
				e.logErr("status", e.PublishStatus(stats()))
			}
		}
	}
}

func (e *MQTTEmitter) drain() {
	for {
		select {
		case ev := <-e.events:
			e.logErr("event", e.PublishEvent(ev))
		default:
			return
		}
	}
}

func (e *MQTTEmitter) logErr(kind string, err error) {
	if err != nil {
		slog.Warn("mediaplayer: mqtt publish failed", "kind", kind, "error", err)
	}
}

// PublishEvent publishes one player event to the events topic.
func (e *MQTTEmitter) PublishEvent(ev mediaplayer.Event) error {
	payload, err := EventPayload(e.cfg.InstanceID, e.sessionID, ev, time.Now())
	if err != nil {
		e.countError()
		return fmt.Errorf("failed to marshal event: %w", err)
	}
	return e.publish(e.cfg.MQTT.Topics.Events, e.cfg.MQTT.QoS["events"], payload)
}

// PublishStatus publishes a stats snapshot to the status topic.
func (e *MQTTEmitter) PublishStatus(st mediaplayer.Stats) error {
	payload, err := StatusPayload(e.cfg.InstanceID, st, time.Now())
	if err != nil {
		e.countError()
		return fmt.Errorf("failed to marshal status: %w", err)
	}
	return e.publish(e.cfg.MQTT.Topics.Status, e.cfg.MQTT.QoS["status"], payload)
}

func (e *MQTTEmitter) publish(topic string, qos byte, payload []byte) error {
	if e.Client == nil || !e.Client.IsConnected() {
		e.countError()
		return ErrNotConnected
	}

	token := e.Client.Publish(topic, qos, false, payload)
	if !token.WaitTimeout(publishTimeout) {
		e.countError()
		return fmt.Errorf("publish timeout")
	}
	if err := token.Error(); err != nil {
		e.countError()
		return fmt.Errorf("publish failed: %w", err)
	}

	e.mu.Lock()
	e.published[topic]++
	e.mu.Unlock()

	slog.Debug("mediaplayer: mqtt published", "topic", topic, "qos", qos, "size", len(payload))
	return nil
}

func (e *MQTTEmitter) countError() {
	e.mu.Lock()
	e.errors++
	e.mu.Unlock()
}

// Disconnect closes the MQTT connection
func (e *MQTTEmitter) Disconnect() {
	if e.mqttClient != nil && e.mqttClient.IsConnected() {
		e.mqttClient.Disconnect(250) // 250ms grace period
		slog.Info("mediaplayer: mqtt disconnected")
	}
}

// Stats returns emitter statistics
func (e *MQTTEmitter) Stats() Stats {
	e.mu.RLock()
	defer e.mu.RUnlock()

	published := make(map[string]uint64, len(e.published))
	for k, v := range e.published {
		published[k] = v
	}

	return Stats{
		Connected: e.Client != nil && e.Client.IsConnected(),
		Published: published,
		Dropped:   e.dropped,
		Errors:    e.errors,
	}
}

// Stats contains emitter statistics
type Stats struct {
	Connected bool
	Published map[string]uint64
	Dropped   uint64
	Errors    uint64
}

// EventMessage is the JSON payload published for each player event.
type EventMessage struct {
	InstanceID    string `json:"instance_id"`
	SessionID     string `json:"session_id"`
	Type          string `json:"type"`
	State         string `json:"state,omitempty"`
	Percent       *int   `json:"percent,omitempty"`
	Error         string `json:"error,omitempty"`
	ErrorCategory string `json:"error_category,omitempty"`
	Timestamp     string `json:"timestamp"`
}

// EventPayload encodes ev as an EventMessage.
func EventPayload(instanceID, sessionID string, ev mediaplayer.Event, now time.Time) ([]byte, error) {
	msg := EventMessage{
		InstanceID: instanceID,
		SessionID:  sessionID,
		Type:       ev.Type.String(),
		Timestamp:  now.UTC().Format(time.RFC3339Nano),
	}

	switch ev.Type {
	case mediaplayer.EventStateChanged, mediaplayer.EventError:
		msg.State = ev.State.String()
	case mediaplayer.EventBuffering:
		p := ev.Percent
		msg.Percent = &p
	}

	if ev.Err != nil {
		msg.Error = ev.Err.Error()
		var perr *mediaplayer.Error
		if errors.As(ev.Err, &perr) && perr.Kind == mediaplayer.KindPlayback {
			msg.ErrorCategory = perr.Category.String()
		}
	}

	return json.Marshal(msg)
}

// StatusPayload encodes a stats snapshot.
func StatusPayload(instanceID string, st mediaplayer.Stats, now time.Time) ([]byte, error) {
	data := StatsMap(st)
	data["instance_id"] = instanceID
	data["timestamp"] = now.UTC().Format(time.RFC3339Nano)
	return json.Marshal(data)
}

// StatsMap flattens a stats snapshot into the map used by status payloads and
// control-plane responses.
func StatsMap(st mediaplayer.Stats) map[string]interface{} {
	data := map[string]interface{}{
		"session_id":       st.SessionID,
		"state":            st.State.String(),
		"caps":             st.Format.String(),
		"volume":           st.Volume,
		"frames_delivered": st.FramesDelivered,
		"frames_skipped":   st.FramesSkipped,
		"frames_failed":    st.FramesFailed,
		"bytes_delivered":  st.BytesDelivered,
		"fps_mean":         st.FPSMean,
		"fps_stddev":       st.FPSStdDev,
		"fps_stable":       st.FPSStable,
		"uptime_s":         st.Uptime.Seconds(),
	}
	if st.Format.HasResolution() {
		data["width"] = st.Format.Width
		data["height"] = st.Format.Height
	}
	if !st.Format.Framerate.IsZero() {
		data["target_fps"] = st.Format.Framerate.Float()
	}
	if len(st.Errors) > 0 {
		data["errors"] = st.Errors
	}
	if st.LastError != "" {
		data["last_error"] = st.LastError
	}
	return data
}
