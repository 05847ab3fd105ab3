// ABOUTME: WebSocket transport for the conversation channel
// ABOUTME: Handles connection, setup handshake and inbound message routing
package channel

import (
	"fmt"
	"log"
	"net/url"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/parley-ai/parley-go/pkg/audio/codec"
)

const (
	// DefaultEndpoint is the Gemini Live websocket endpoint
	DefaultEndpoint = "wss://generativelanguage.googleapis.com/ws/google.ai.generativelanguage.v1beta.GenerativeService.BidiGenerateContent"

	// DefaultModel is the live conversation model
	DefaultModel = "models/gemini-2.0-flash-live-001"

	dialTimeout = 10 * time.Second
)

// Config holds channel connection settings
type Config struct {
	Endpoint string
	APIKey   string
	Model    string
}

// Callbacks receives channel lifecycle and message events. Every field
// is optional; nil callbacks are skipped.
type Callbacks struct {
	OnOpen    func()
	OnMessage func(Message)
	OnClose   func()
	OnError   func(error)
}

// Handle is an open conversation channel. Send and Close are the only
// operations the core invokes on it.
type Handle struct {
	conn *websocket.Conn
	cb   Callbacks

	mu        sync.Mutex
	connected bool
	opened    bool
	closing   bool
}

// Connect dials the remote agent and issues the session setup carrying
// the system prompt. The channel reports "open" through cb.OnOpen once
// the server acknowledges setup; inbound traffic then flows through
// cb.OnMessage until close.
func Connect(cfg Config, systemPrompt string, cb Callbacks) (*Handle, error) {
	endpoint := cfg.Endpoint
	if endpoint == "" {
		endpoint = DefaultEndpoint
	}
	model := cfg.Model
	if model == "" {
		model = DefaultModel
	}

	u, err := url.Parse(endpoint)
	if err != nil {
		return nil, &OpenError{Err: fmt.Errorf("invalid endpoint: %w", err)}
	}
	q := u.Query()
	q.Set("key", cfg.APIKey)
	u.RawQuery = q.Encode()

	dialer := websocket.Dialer{HandshakeTimeout: dialTimeout}
	conn, _, err := dialer.Dial(u.String(), nil)
	if err != nil {
		return nil, &OpenError{Err: fmt.Errorf("dial failed: %w", err)}
	}

	h := &Handle{
		conn:      conn,
		cb:        cb,
		connected: true,
	}

	if err := conn.WriteJSON(newSetupEnvelope(model, systemPrompt)); err != nil {
		h.Close()
		return nil, &OpenError{Err: fmt.Errorf("setup failed: %w", err)}
	}

	go h.readMessages()

	return h, nil
}

// Send transmits one encoded audio chunk. Failures are per-frame: the
// caller logs and drops, it never tears the session down.
func (h *Handle) Send(chunk codec.Chunk) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	if !h.connected {
		return &TransmitError{Err: fmt.Errorf("not connected")}
	}

	if err := h.conn.WriteJSON(newRealtimeInputEnvelope(chunk)); err != nil {
		return &TransmitError{Err: err}
	}
	return nil
}

// IsOpen reports whether the server has acknowledged setup and the
// connection is still live
func (h *Handle) IsOpen() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.connected && h.opened
}

// Close shuts the channel down. Safe to call multiple times.
func (h *Handle) Close() error {
	h.mu.Lock()
	if !h.connected {
		h.mu.Unlock()
		return nil
	}
	h.connected = false
	h.closing = true
	conn := h.conn
	h.mu.Unlock()

	// Best effort close frame; the read loop exits on the closed conn
	deadline := time.Now().Add(time.Second)
	_ = conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), deadline)

	return conn.Close()
}

// readMessages routes inbound wire messages until the connection dies
func (h *Handle) readMessages() {
	for {
		_, data, err := h.conn.ReadMessage()
		if err != nil {
			h.handleReadError(err)
			return
		}

		msg, setupComplete, perr := parseServerMessage(data)
		if perr != nil {
			log.Printf("channel: dropping unparseable message: %v", perr)
			continue
		}

		if setupComplete {
			h.mu.Lock()
			h.opened = true
			h.mu.Unlock()
			if h.cb.OnOpen != nil {
				h.cb.OnOpen()
			}
			continue
		}

		if h.cb.OnMessage != nil {
			h.cb.OnMessage(msg)
		}
	}
}

// handleReadError classifies the terminal read failure
func (h *Handle) handleReadError(err error) {
	h.mu.Lock()
	closing := h.closing
	h.connected = false
	h.mu.Unlock()

	if closing {
		// Locally initiated close; the caller already knows
		return
	}

	if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
		log.Printf("channel: closed by remote")
		if h.cb.OnClose != nil {
			h.cb.OnClose()
		}
		return
	}

	log.Printf("channel: read error: %v", err)
	if h.cb.OnError != nil {
		h.cb.OnError(&RuntimeError{Err: err})
	}
}
