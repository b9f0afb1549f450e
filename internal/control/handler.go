package control

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"

	mediaplayer "github.com/e7canasta/orion-media-player"
	"github.com/e7canasta/orion-media-player/internal/config"
	"github.com/e7canasta/orion-media-player/internal/emitter"
)

// Command represents a control plane command
type Command struct {
	Command string                 `json:"command"`
	Params  map[string]interface{} `json:"params,omitempty"`
}

// Response represents a command response
type Response struct {
	CommandAck string                 `json:"command_ack"`
	Status     string                 `json:"status"`
	Data       map[string]interface{} `json:"data,omitempty"`
	Error      string                 `json:"error,omitempty"`
	Timestamp  string                 `json:"timestamp"`
}

// Player is the player surface driven by commands. *mediaplayer.Player implements it.
type Player interface {
	Play(urls []string) error
	Resume()
	Pause()
	Stop()
	Seek(seconds uint64)
	SetFPS(fps float64)
	SetResolution(width, height int)
	SetVolume(volume float64) error
	Stats() mediaplayer.Stats
}

// Handler handles control plane commands
type Handler struct {
	cfg      *config.Config
	client   emitter.Client
	player   Player
	commands chan Command

	// OnShutdown is called after the shutdown command has been acknowledged.
	OnShutdown func()

	mu      sync.Mutex
	stopped bool
	done    chan struct{}
}

// NewHandler creates a new control plane handler
func NewHandler(cfg *config.Config, client emitter.Client, player Player) *Handler {
	return &Handler{
		cfg:      cfg,
		client:   client,
		player:   player,
		commands: make(chan Command, 10),
		done:     make(chan struct{}),
	}
}

// ResponseTopic is where command responses are published.
func (h *Handler) ResponseTopic() string {
	return h.cfg.MQTT.Topics.Control + "/response"
}

// Start subscribes to the control topic and processes commands until ctx is done.
func (h *Handler) Start(ctx context.Context) error {
	topic := h.cfg.MQTT.Topics.Control
	qos := h.cfg.MQTT.QoS["control"]

	slog.Info("mediaplayer: subscribing to control plane", "topic", topic, "qos", qos)

	token := h.client.Subscribe(topic, qos, h.messageHandler)
	if !token.WaitTimeout(5 * time.Second) {
		return fmt.Errorf("control plane subscription timeout")
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("control plane subscription failed: %w", err)
	}

	go h.processCommands(ctx)
	return nil
}

// Stop unsubscribes and ends command processing. Messages the client still
// delivers afterwards are dropped. Idempotent.
func (h *Handler) Stop() {
	h.mu.Lock()
	if h.stopped {
		h.mu.Unlock()
		return
	}
	h.stopped = true
	close(h.done)
	h.mu.Unlock()

	if h.client != nil && h.client.IsConnected() {
		h.client.Unsubscribe(h.cfg.MQTT.Topics.Control).WaitTimeout(time.Second)
	}
	slog.Info("mediaplayer: control plane handler stopped")
}

func (h *Handler) messageHandler(_ mqtt.Client, msg mqtt.Message) {
	h.enqueue(msg.Payload())
}

// enqueue parses a payload and queues it; invalid JSON is answered immediately.
func (h *Handler) enqueue(payload []byte) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.stopped {
		slog.Debug("mediaplayer: control handler stopped, dropping message")
		return
	}

	var cmd Command
	if err := json.Unmarshal(payload, &cmd); err != nil {
		slog.Error("mediaplayer: failed to parse control command", "error", err)
		h.sendResponse(Response{CommandAck: "unknown", Status: "error", Error: "invalid JSON"})
		return
	}

	slog.Info("mediaplayer: control command received", "command", cmd.Command)

	select {
	case h.commands <- cmd:
	default:
		slog.Warn("mediaplayer: command queue full, dropping command", "command", cmd.Command)
	}
}

func (h *Handler) processCommands(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case <-h.done:
			return
		case cmd := <-h.commands:
			h.sendResponse(h.handleCommand(cmd))
			if cmd.Command == "shutdown" && h.OnShutdown != nil {
				h.OnShutdown()
			}
		}
	}
}

// handleCommand executes cmd against the player and builds the response.
func (h *Handler) handleCommand(cmd Command) Response {
	resp := Response{CommandAck: cmd.Command, Status: "success"}
	fail := func(format string, args ...interface{}) Response {
		resp.Status = "error"
		resp.Error = fmt.Sprintf(format, args...)
		return resp
	}

	switch cmd.Command {
	case "get_status":
		resp.Data = emitter.StatsMap(h.player.Stats())

	case "play":
		urls, err := stringList(cmd.Params["urls"])
		if err != nil {
			return fail("invalid 'urls' parameter: %v", err)
		}
		if err := h.player.Play(urls); err != nil {
			return fail("%v", err)
		}
		resp.Data = map[string]interface{}{"url": urls[0]}

	case "resume":
		h.player.Resume()

	case "pause":
		h.player.Pause()

	case "stop":
		h.player.Stop()

	case "seek":
		seconds, ok := cmd.Params["seconds"].(float64)
		if !ok || seconds < 0 {
			return fail("missing or invalid 'seconds' parameter (expected non-negative number)")
		}
		h.player.Seek(uint64(seconds))
		resp.Data = map[string]interface{}{"seconds": uint64(seconds)}

	case "set_fps":
		fps, ok := cmd.Params["fps"].(float64)
		if !ok {
			return fail("missing or invalid 'fps' parameter (expected number)")
		}
		h.player.SetFPS(fps)
		resp.Data = map[string]interface{}{"caps": h.player.Stats().Format.String()}

	case "set_resolution":
		w, okW := cmd.Params["width"].(float64)
		hgt, okH := cmd.Params["height"].(float64)
		if !okW || !okH {
			return fail("missing or invalid 'width'/'height' parameters (expected numbers)")
		}
		h.player.SetResolution(int(w), int(hgt))
		resp.Data = map[string]interface{}{"caps": h.player.Stats().Format.String()}

	case "set_volume":
		v, ok := cmd.Params["volume"].(float64)
		if !ok {
			return fail("missing or invalid 'volume' parameter (expected number)")
		}
		if err := h.player.SetVolume(v); err != nil {
			return fail("%v", err)
		}
		resp.Data = map[string]interface{}{"volume": v}

	case "shutdown":
		if h.OnShutdown == nil {
			return fail("shutdown not implemented")
		}
		slog.Warn("mediaplayer: shutdown command received via MQTT control plane")
		resp.Data = map[string]interface{}{"shutdown_initiated": true}

	default:
		return fail("unknown command: %s", cmd.Command)
	}

	return resp
}

func stringList(v interface{}) ([]string, error) {
	switch raw := v.(type) {
	case nil:
		return nil, nil
	case string:
		return []string{raw}, nil
	case []interface{}:
		out := make([]string, 0, len(raw))
		for i, item := range raw {
			s, ok := item.(string)
			if !ok {
				return nil, fmt.Errorf("urls[%d] is not a string", i)
			}
			out = append(out, s)
		}
		return out, nil
	default:
		return nil, fmt.Errorf("expected string or array of strings, got %T", v)
	}
}

// sendResponse publishes resp on the response topic
func (h *Handler) sendResponse(resp Response) {
	resp.Timestamp = time.Now().UTC().Format(time.RFC3339Nano)

	payload, err := json.Marshal(resp)
	if err != nil {
		slog.Error("mediaplayer: failed to marshal response", "error", err)
		return
	}

	topic := h.ResponseTopic()
	qos := h.cfg.MQTT.QoS["control"]

	token := h.client.Publish(topic, qos, false, payload)
	if !token.WaitTimeout(2 * time.Second) {
		slog.Error("mediaplayer: response publish timeout")
		return
	}
	if err := token.Error(); err != nil {
		slog.Error("mediaplayer: failed to publish response", "error", err)
		return
	}

	slog.Debug("mediaplayer: response sent", "command_ack", resp.CommandAck, "status", resp.Status)
}
