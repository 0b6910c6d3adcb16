package live

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/pmanickam80/device-qa-inspection/internal/domain"
)

// fakeConn is a scripted wire connection. Frames pushed with push are
// returned from ReadMessage; closing the connection makes ReadMessage fail
// like an unexpected socket closure.
type fakeConn struct {
	mu     sync.Mutex
	writes []string

	frames chan []byte
	done   chan struct{}
	once   sync.Once
}

func newFakeConn() *fakeConn {
	return &fakeConn{
		frames: make(chan []byte, 16),
		done:   make(chan struct{}),
	}
}

func (c *fakeConn) WriteJSON(v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	c.mu.Lock()
	c.writes = append(c.writes, string(data))
	c.mu.Unlock()
	return nil
}

func (c *fakeConn) ReadMessage() (int, []byte, error) {
	select {
	case data := <-c.frames:
		return websocket.TextMessage, data, nil
	case <-c.done:
		return 0, nil, errors.New("connection reset by peer")
	}
}

func (c *fakeConn) Close() error {
	c.once.Do(func() { close(c.done) })
	return nil
}

func (c *fakeConn) push(t *testing.T, frame string) {
	t.Helper()
	select {
	case c.frames <- []byte(frame):
	case <-time.After(time.Second):
		t.Fatal("fakeConn frame buffer full")
	}
}

func (c *fakeConn) written() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]string, len(c.writes))
	copy(out, c.writes)
	return out
}

// fakeDialer hands out scripted connections in order; dials past the script
// fail with a dial error.
type fakeDialer struct {
	mu    sync.Mutex
	conns []*fakeConn
	dials int
}

func (d *fakeDialer) dial(ctx context.Context, endpoint string) (wireConn, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.dials++
	if len(d.conns) == 0 {
		return nil, errors.New("dial tcp: connection refused")
	}
	conn := d.conns[0]
	d.conns = d.conns[1:]
	return conn, nil
}

func (d *fakeDialer) dialCount() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.dials
}

func newTestSession(d *fakeDialer) *Session {
	s := NewSession(SessionConfig{
		Endpoint:          "wss://example.test/live",
		Model:             "models/vision-live-2.0",
		Instruction:       "You are a device inspector.",
		MaxReconnects:     3,
		ReconnectInterval: time.Millisecond,
	}, nil)
	s.dial = d.dial
	return s
}

func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s", what)
}

// statusRecorder collects status transitions thread-safely.
type statusRecorder struct {
	mu     sync.Mutex
	states []Status
}

func (r *statusRecorder) record(s Status) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.states = append(r.states, s)
}

func (r *statusRecorder) snapshot() []Status {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Status, len(r.states))
	copy(out, r.states)
	return out
}

func TestSession_Connect_SendsSetupHandshake(t *testing.T) {
	conn := newFakeConn()
	dialer := &fakeDialer{conns: []*fakeConn{conn}}
	s := newTestSession(dialer)
	defer s.Disconnect()

	rec := &statusRecorder{}
	s.OnStatus(rec.record)

	if err := s.Connect(context.Background()); err != nil {
		t.Fatalf("Connect() error = %v", err)
	}

	if s.Status() != StatusConnected {
		t.Errorf("Status() = %q; want %q", s.Status(), StatusConnected)
	}

	writes := conn.written()
	if len(writes) != 1 {
		t.Fatalf("got %d writes; want 1 setup envelope", len(writes))
	}

	var env setupEnvelope
	if err := json.Unmarshal([]byte(writes[0]), &env); err != nil {
		t.Fatalf("setup envelope is not valid JSON: %v", err)
	}
	if env.Setup.Model != "models/vision-live-2.0" {
		t.Errorf("setup model = %q; want %q", env.Setup.Model, "models/vision-live-2.0")
	}
	if env.Setup.SystemInstruction == nil || len(env.Setup.SystemInstruction.Parts) == 0 {
		t.Fatal("setup envelope missing system instruction")
	}
	if got := env.Setup.GenerationConfig.ResponseModalities; len(got) != 1 || got[0] != "TEXT" {
		t.Errorf("response modalities = %v; want [TEXT]", got)
	}

	states := rec.snapshot()
	if len(states) != 2 || states[0] != StatusConnecting || states[1] != StatusConnected {
		t.Errorf("status transitions = %v; want [connecting connected]", states)
	}
}

func TestSession_Connect_Idempotent(t *testing.T) {
	dialer := &fakeDialer{conns: []*fakeConn{newFakeConn()}}
	s := newTestSession(dialer)
	defer s.Disconnect()

	if err := s.Connect(context.Background()); err != nil {
		t.Fatalf("Connect() error = %v", err)
	}
	if err := s.Connect(context.Background()); err != nil {
		t.Fatalf("second Connect() error = %v", err)
	}

	if dialer.dialCount() != 1 {
		t.Errorf("dials = %d; want 1", dialer.dialCount())
	}
}

func TestSession_Connect_DialFailure(t *testing.T) {
	dialer := &fakeDialer{} // no scripted conns: every dial fails
	s := newTestSession(dialer)

	err := s.Connect(context.Background())
	if err == nil {
		t.Fatal("Connect() error = nil; want dial error")
	}
	if s.Status() != StatusError {
		t.Errorf("Status() = %q; want %q", s.Status(), StatusError)
	}
}

func TestSession_SendFrame_WhileDisconnectedIsNoOp(t *testing.T) {
	s := newTestSession(&fakeDialer{})

	if err := s.SendFrame("aGVsbG8=", "image/jpeg", "inspect"); err != nil {
		t.Errorf("SendFrame() error = %v; want nil no-op", err)
	}
}

func TestSession_SendFrame_BuildsCompleteTurn(t *testing.T) {
	conn := newFakeConn()
	dialer := &fakeDialer{conns: []*fakeConn{conn}}
	s := newTestSession(dialer)
	defer s.Disconnect()

	if err := s.Connect(context.Background()); err != nil {
		t.Fatalf("Connect() error = %v", err)
	}
	if err := s.SendFrame("aGVsbG8=", "image/jpeg", "inspect this device"); err != nil {
		t.Fatalf("SendFrame() error = %v", err)
	}

	writes := conn.written()
	if len(writes) != 2 {
		t.Fatalf("got %d writes; want setup + content", len(writes))
	}

	var env contentEnvelope
	if err := json.Unmarshal([]byte(writes[1]), &env); err != nil {
		t.Fatalf("content envelope is not valid JSON: %v", err)
	}
	if !env.ClientContent.TurnComplete {
		t.Error("content envelope should mark the turn complete")
	}
	if len(env.ClientContent.Turns) != 1 {
		t.Fatalf("turns = %d; want 1", len(env.ClientContent.Turns))
	}
	parts := env.ClientContent.Turns[0].Parts
	if len(parts) != 2 {
		t.Fatalf("parts = %d; want image + text", len(parts))
	}
	if parts[0].InlineData == nil || parts[0].InlineData.MimeType != "image/jpeg" {
		t.Error("first part should carry the inline JPEG payload")
	}
	if parts[1].Text != "inspect this device" {
		t.Errorf("instruction text = %q; want %q", parts[1].Text, "inspect this device")
	}
}

const reportFixture = `{"device_type":"iPhone 12","condition_score":8,"overall_condition":"Good","defects":[],"recommendations":[],"timestamp":""}`

func contentFrame(text string, complete bool) string {
	b, _ := json.Marshal(map[string]any{
		"serverContent": map[string]any{
			"modelTurn":    map[string]any{"parts": []map[string]string{{"text": text}}},
			"turnComplete": complete,
		},
	})
	return string(b)
}

func TestSession_StreamedFragmentsAssembleIntoReport(t *testing.T) {
	conn := newFakeConn()
	dialer := &fakeDialer{conns: []*fakeConn{conn}}
	s := newTestSession(dialer)
	defer s.Disconnect()

	var textMu sync.Mutex
	var texts []string
	s.OnText(func(text string) {
		textMu.Lock()
		texts = append(texts, text)
		textMu.Unlock()
	})

	reports := make(chan *domain.Report, 1)
	s.OnReport(func(r *domain.Report) { reports <- r })

	if err := s.Connect(context.Background()); err != nil {
		t.Fatalf("Connect() error = %v", err)
	}

	// Split the JSON payload across three fragments; only correct in-order
	// concatenation yields something the extractor can decode.
	fenced := "```json\n" + reportFixture + "\n```"
	third := len(fenced) / 3
	fragments := []string{fenced[:third], fenced[third : 2*third], fenced[2*third:]}

	conn.push(t, `{"setupComplete":{}}`)
	conn.push(t, contentFrame(fragments[0], false))
	conn.push(t, contentFrame(fragments[1], false))
	conn.push(t, contentFrame(fragments[2], true))

	select {
	case r := <-reports:
		if r.DeviceType != "iPhone 12" {
			t.Errorf("DeviceType = %q; want %q", r.DeviceType, "iPhone 12")
		}
		if r.ConditionScore != 8 {
			t.Errorf("ConditionScore = %d; want 8", r.ConditionScore)
		}
		if r.Timestamp.IsZero() {
			t.Error("Timestamp should have been generated")
		}
	case <-time.After(2 * time.Second):
		t.Fatal("no report emitted")
	}

	textMu.Lock()
	defer textMu.Unlock()
	if len(texts) != 3 {
		t.Fatalf("raw text fragments = %d; want 3", len(texts))
	}
	for i, f := range fragments {
		if texts[i] != f {
			t.Errorf("fragment[%d] = %q; want %q", i, texts[i], f)
		}
	}
}

func TestSession_SendFrameClearsStaleTurnBuffer(t *testing.T) {
	conn := newFakeConn()
	dialer := &fakeDialer{conns: []*fakeConn{conn}}
	s := newTestSession(dialer)
	defer s.Disconnect()

	reports := make(chan *domain.Report, 1)
	s.OnReport(func(r *domain.Report) { reports <- r })

	if err := s.Connect(context.Background()); err != nil {
		t.Fatalf("Connect() error = %v", err)
	}

	// A fragment from a turn that never completes.
	conn.push(t, contentFrame(`{"device_`, false))
	waitFor(t, "stale fragment buffered", func() bool {
		s.mu.Lock()
		defer s.mu.Unlock()
		return s.turn.len() > 0
	})

	// A new request discards the stale buffer, so the next complete turn
	// decodes cleanly instead of being contaminated.
	if err := s.SendFrame("aGVsbG8=", "image/jpeg", "inspect"); err != nil {
		t.Fatalf("SendFrame() error = %v", err)
	}
	conn.push(t, contentFrame(reportFixture, true))

	select {
	case r := <-reports:
		if r.DeviceType != "iPhone 12" {
			t.Errorf("DeviceType = %q; want %q", r.DeviceType, "iPhone 12")
		}
	case <-time.After(2 * time.Second):
		t.Fatal("no report emitted; stale buffer leaked into the new turn")
	}
}

func TestSession_MalformedAndUnrecognizedFramesAreDropped(t *testing.T) {
	conn := newFakeConn()
	dialer := &fakeDialer{conns: []*fakeConn{conn}}
	s := newTestSession(dialer)
	defer s.Disconnect()

	reports := make(chan *domain.Report, 1)
	s.OnReport(func(r *domain.Report) { reports <- r })

	if err := s.Connect(context.Background()); err != nil {
		t.Fatalf("Connect() error = %v", err)
	}

	conn.push(t, `not json at all`)
	conn.push(t, `{"somethingElse":true}`)
	conn.push(t, `{"error":{"code":8,"message":"quota exceeded"}}`)
	conn.push(t, contentFrame(reportFixture, true))

	// The session must survive the garbage and still process the real turn.
	select {
	case r := <-reports:
		if r.DeviceType != "iPhone 12" {
			t.Errorf("DeviceType = %q; want %q", r.DeviceType, "iPhone 12")
		}
	case <-time.After(2 * time.Second):
		t.Fatal("no report emitted after malformed frames")
	}
}

func TestSession_ReconnectBudgetExhausts(t *testing.T) {
	conn := newFakeConn()
	// Only the first dial succeeds; every reconnect attempt fails.
	dialer := &fakeDialer{conns: []*fakeConn{conn}}
	s := newTestSession(dialer)
	defer s.Disconnect()

	if err := s.Connect(context.Background()); err != nil {
		t.Fatalf("Connect() error = %v", err)
	}

	// Simulate an unexpected socket closure.
	conn.Close()

	// Initial dial + 3 bounded reconnect attempts, then give up for good.
	waitFor(t, "reconnect attempts to exhaust", func() bool {
		return dialer.dialCount() == 4
	})
	waitFor(t, "terminal disconnected status", func() bool {
		return s.Status() == StatusDisconnected
	})

	// No further attempts are ever scheduled.
	time.Sleep(20 * time.Millisecond)
	if got := dialer.dialCount(); got != 4 {
		t.Errorf("dials = %d; want 4 (no retry past the ceiling)", got)
	}
}

func TestSession_SuccessfulReconnectResetsAttemptCounter(t *testing.T) {
	// Every dial succeeds; each connection is killed shortly after. With the
	// ceiling at 3, surviving more than 3 loss/reconnect cycles proves the
	// counter resets on every successful connection.
	conns := make([]*fakeConn, 6)
	for i := range conns {
		conns[i] = newFakeConn()
	}
	dialer := &fakeDialer{conns: conns}
	s := newTestSession(dialer)
	defer s.Disconnect()

	if err := s.Connect(context.Background()); err != nil {
		t.Fatalf("Connect() error = %v", err)
	}

	for i := 0; i < 5; i++ {
		conns[i].Close()
		wantDials := i + 2
		waitFor(t, fmt.Sprintf("reconnect #%d", i+1), func() bool {
			return dialer.dialCount() == wantDials && s.Status() == StatusConnected
		})

		s.mu.Lock()
		attempt := s.policy.attempt
		s.mu.Unlock()
		if attempt != 0 {
			t.Fatalf("attempt counter = %d after successful reconnect; want 0", attempt)
		}
	}
}

func TestSession_DisconnectAbandonsFiredReconnectAttempt(t *testing.T) {
	conn := newFakeConn()
	dialer := &fakeDialer{conns: []*fakeConn{conn, newFakeConn()}}
	s := newTestSession(dialer)

	if err := s.Connect(context.Background()); err != nil {
		t.Fatalf("Connect() error = %v", err)
	}

	s.mu.Lock()
	gen := s.gen
	s.mu.Unlock()

	s.Disconnect()

	// A reconnect callback that fired just before Disconnect stopped the
	// timer still runs; it must notice the closed session and give up rather
	// than re-dial.
	s.reconnect(gen, 1)

	if s.Status() != StatusDisconnected {
		t.Errorf("Status() = %q; want %q", s.Status(), StatusDisconnected)
	}
	if got := dialer.dialCount(); got != 1 {
		t.Errorf("dials = %d after disconnect; want 1", got)
	}
}

func TestSession_ExplicitDisconnectSuppressesReconnect(t *testing.T) {
	conn := newFakeConn()
	dialer := &fakeDialer{conns: []*fakeConn{conn, newFakeConn()}}
	s := newTestSession(dialer)

	if err := s.Connect(context.Background()); err != nil {
		t.Fatalf("Connect() error = %v", err)
	}

	s.Disconnect()

	if s.Status() != StatusDisconnected {
		t.Errorf("Status() = %q; want %q", s.Status(), StatusDisconnected)
	}

	time.Sleep(20 * time.Millisecond)
	if got := dialer.dialCount(); got != 1 {
		t.Errorf("dials = %d after explicit disconnect; want 1", got)
	}
}
