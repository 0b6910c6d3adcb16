package live

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/pmanickam80/device-qa-inspection/internal/analysis"
	"github.com/pmanickam80/device-qa-inspection/internal/domain"
)

const (
	defaultMaxReconnects     = 3
	defaultReconnectInterval = 2 * time.Second
	defaultTemperature       = 0.4
	defaultTopP              = 0.95
	defaultTopK              = 40
)

var errHandshake = errors.New("live session handshake failed")

// wireConn abstracts the websocket connection so the session can be exercised
// against a scripted connection in tests. *websocket.Conn satisfies it.
type wireConn interface {
	WriteJSON(v any) error
	ReadMessage() (messageType int, p []byte, err error)
	Close() error
}

// Dialer opens a connection to the live service endpoint.
type Dialer func(ctx context.Context, endpoint string) (wireConn, error)

func websocketDialer(ctx context.Context, endpoint string) (wireConn, error) {
	conn, resp, err := websocket.DefaultDialer.DialContext(ctx, endpoint, nil)
	if err != nil {
		return nil, err
	}
	if resp != nil && resp.Body != nil {
		resp.Body.Close()
	}
	return conn, nil
}

// SessionConfig holds everything a live session needs to talk to the
// generative-vision service.
type SessionConfig struct {
	Endpoint    string // wss:// URL, API key included as a query parameter
	Model       string
	Instruction string // system instruction sent in the setup envelope

	Temperature float64
	TopP        float64
	TopK        int

	// Reconnect policy for unexpected closures. Zero values select the
	// defaults (3 attempts, 2s base interval, linear growth).
	MaxReconnects     int
	ReconnectInterval time.Duration
}

// Session owns exactly one connection to the live analysis service: socket
// lifecycle, the setup handshake, the in-flight turn buffer, and fan-out of
// status, raw text, and parsed reports to subscribers.
//
// Sessions are explicitly constructed and explicitly owned; the owner calls
// Disconnect when it is done.
type Session struct {
	cfg       SessionConfig
	dial      Dialer
	extractor *analysis.Extractor
	logger    *slog.Logger
	hub       *Hub

	mu     sync.Mutex
	status Status
	conn   wireConn
	turn   turnAccumulator
	policy *reconnectPolicy
	closed bool // explicit Disconnect: suppress reconnects
	gen    int  // connection generation, guards against stale readers
	timer  *time.Timer
}

// NewSession creates a session. It does not connect.
func NewSession(cfg SessionConfig, logger *slog.Logger) *Session {
	if logger == nil {
		logger = slog.Default()
	}
	return &Session{
		cfg:       cfg,
		dial:      websocketDialer,
		extractor: analysis.NewExtractor(logger),
		logger:    logger,
		hub:       NewHub(),
		status:    StatusDisconnected,
		policy:    newReconnectPolicy(cfg.MaxReconnects, cfg.ReconnectInterval),
	}
}

// OnStatus registers a callback for status transitions.
func (s *Session) OnStatus(fn func(Status)) Unsubscribe { return s.hub.OnStatus(fn) }

// OnText registers a callback for raw incremental model text.
func (s *Session) OnText(fn func(string)) Unsubscribe { return s.hub.OnText(fn) }

// OnReport registers a callback for parsed defect reports.
func (s *Session) OnReport(fn func(*domain.Report)) Unsubscribe { return s.hub.OnReport(fn) }

// Status returns the current connection status.
func (s *Session) Status() Status {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.status
}

func (s *Session) setStatus(st Status) {
	s.mu.Lock()
	changed := s.status != st
	s.status = st
	s.mu.Unlock()

	if changed {
		s.hub.publishStatus(st)
	}
}

// Connect opens the socket and performs the setup handshake. It is
// idempotent: connecting an already connected session returns immediately.
// A handshake failure transitions the session to StatusError and is returned
// to the caller.
func (s *Session) Connect(ctx context.Context) error {
	s.mu.Lock()
	if s.status == StatusConnected {
		s.mu.Unlock()
		return nil
	}
	s.closed = false
	s.mu.Unlock()

	s.setStatus(StatusConnecting)

	conn, err := s.dial(ctx, s.cfg.Endpoint)
	if err != nil {
		s.setStatus(StatusError)
		return fmt.Errorf("dial live service: %w", err)
	}

	if err := conn.WriteJSON(s.setupEnvelope()); err != nil {
		conn.Close()
		s.setStatus(StatusError)
		return fmt.Errorf("%w: %v", errHandshake, err)
	}

	s.mu.Lock()
	s.conn = conn
	s.gen++
	gen := s.gen
	s.policy.reset()
	s.mu.Unlock()

	s.setStatus(StatusConnected)
	s.logger.Info("live session connected", "model", s.cfg.Model)

	go s.readLoop(conn, gen)
	return nil
}

func (s *Session) setupEnvelope() setupEnvelope {
	temperature := s.cfg.Temperature
	if temperature == 0 {
		temperature = defaultTemperature
	}
	topP := s.cfg.TopP
	if topP == 0 {
		topP = defaultTopP
	}
	topK := s.cfg.TopK
	if topK == 0 {
		topK = defaultTopK
	}

	env := setupEnvelope{
		Setup: setupPayload{
			Model: s.cfg.Model,
			GenerationConfig: generationConfig{
				Temperature:        temperature,
				TopP:               topP,
				TopK:               topK,
				ResponseModalities: []string{"TEXT"},
			},
		},
	}
	if s.cfg.Instruction != "" {
		env.Setup.SystemInstruction = &content{
			Parts: []part{{Text: s.cfg.Instruction}},
		}
	}
	return env
}

// SendFrame sends one captured frame plus instruction text as a single
// complete turn. The turn buffer is reset first, so a previous turn that
// never signaled completion cannot contaminate this one. Sending while not
// connected is a no-op with a logged warning.
func (s *Session) SendFrame(imageBase64, mimeType, prompt string) error {
	s.mu.Lock()
	if s.status != StatusConnected || s.conn == nil {
		s.mu.Unlock()
		s.logger.Warn("dropping frame: session not connected", "status", s.status)
		return nil
	}
	s.turn.reset()
	conn := s.conn
	s.mu.Unlock()

	env := contentEnvelope{
		ClientContent: clientContent{
			Turns: []content{{
				Role: "user",
				Parts: []part{
					{InlineData: &inlineData{MimeType: mimeType, Data: imageBase64}},
					{Text: prompt},
				},
			}},
			TurnComplete: true,
		},
	}

	if err := conn.WriteJSON(env); err != nil {
		return fmt.Errorf("send frame: %w", err)
	}
	return nil
}

// Disconnect closes the socket and suppresses any further automatic
// reconnect attempts. Safe to call repeatedly.
func (s *Session) Disconnect() {
	s.mu.Lock()
	s.closed = true
	s.gen++
	if s.timer != nil {
		s.timer.Stop()
		s.timer = nil
	}
	if s.conn != nil {
		s.conn.Close()
		s.conn = nil
	}
	s.turn.reset()
	s.mu.Unlock()

	s.setStatus(StatusDisconnected)
}

// readLoop processes inbound frames sequentially until the connection drops.
// All buffering, extraction, and fan-out run to completion on this goroutine,
// so inbound ordering is preserved exactly as received.
func (s *Session) readLoop(conn wireConn, gen int) {
	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			s.handleClosed(gen, err)
			return
		}

		var env serverEnvelope
		if err := json.Unmarshal(data, &env); err != nil {
			s.logger.Debug("dropping undecodable frame", "error", err)
			continue
		}

		switch {
		case env.SetupComplete != nil:
			s.logger.Debug("setup acknowledged")

		case env.ServerContent != nil:
			s.handleContent(env.ServerContent)

		case env.Error != nil:
			s.logger.Warn("live service error", "code", env.Error.Code, "message", env.Error.Message)

		default:
			// Unrecognized shape: ignore.
		}
	}
}

func (s *Session) handleContent(sc *serverContent) {
	if sc.ModelTurn != nil {
		for _, p := range sc.ModelTurn.Parts {
			if p.Text == "" {
				continue
			}
			s.mu.Lock()
			s.turn.append(p.Text)
			s.mu.Unlock()
			// Live side channel, independent of final parsing.
			s.hub.publishText(p.Text)
		}
	}

	if sc.TurnComplete {
		s.mu.Lock()
		text := s.turn.flush()
		s.mu.Unlock()

		if report, ok := s.extractor.Extract(text); ok {
			s.hub.publishReport(report)
		}
	}
}

// handleClosed reacts to an unexpected connection loss. Explicit disconnects
// and stale reader generations are ignored.
func (s *Session) handleClosed(gen int, err error) {
	s.mu.Lock()
	if s.closed || gen != s.gen {
		s.mu.Unlock()
		return
	}
	s.conn = nil
	s.mu.Unlock()

	s.logger.Warn("live connection lost", "error", err)
	s.setStatus(StatusDisconnected)
	s.scheduleReconnect()
}

// scheduleReconnect consumes one reconnect attempt and arms the retry timer.
// When the budget is exhausted the session stays disconnected and the caller
// must reconnect explicitly.
func (s *Session) scheduleReconnect() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	delay, ok := s.policy.next()
	attempt := s.policy.attempt
	max := s.policy.maxAttempts
	if ok {
		gen := s.gen
		s.timer = time.AfterFunc(delay, func() { s.reconnect(gen, attempt) })
	}
	s.mu.Unlock()

	if !ok {
		s.logger.Warn("reconnect attempts exhausted", "max", max)
		s.setStatus(StatusDisconnected)
		return
	}
	s.logger.Info("scheduling reconnect", "attempt", attempt, "delay", delay)
}

// reconnect runs one timed reconnect attempt. Disconnect stops the timer,
// but a callback that has already fired still gets here; the generation
// check abandons it instead of resurrecting an explicitly closed session.
func (s *Session) reconnect(gen, attempt int) {
	s.mu.Lock()
	if s.closed || gen != s.gen {
		s.mu.Unlock()
		return
	}
	s.mu.Unlock()

	if err := s.Connect(context.Background()); err != nil {
		s.logger.Warn("reconnect failed", "attempt", attempt, "error", err)
		s.scheduleReconnect()
	}
}
