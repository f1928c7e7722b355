package server

import (
	"context"
	"encoding/binary"
	"encoding/json"
	"log/slog"
	"math"
	"net/http"
	"sync"

	"github.com/coder/websocket"

	"github.com/kouyulab/kouyu/pkg/audio"
	"github.com/kouyulab/kouyu/pkg/capture"
	"github.com/kouyulab/kouyu/pkg/provider/stt"
)

// The practice socket speaks a small mixed protocol: text frames carry JSON
// control messages, binary frames carry raw little-endian PCM16 mono audio at
// the sample rate announced in "start".
//
//	client → server: {"type":"start","expected":"你好","sample_rate":16000}
//	client → server: {"type":"stop"}
//	server → client: {"type":"silence"}
//	server → client: {"type":"result", ...scored attempt...}
//	server → client: {"type":"error","error":"..."}

type clientMessage struct {
	Type       string `json:"type"`
	Expected   string `json:"expected,omitempty"`
	SampleRate int    `json:"sample_rate,omitempty"`
}

type resultMessage struct {
	Type string `json:"type"`
	attemptResponse
}

type eventMessage struct {
	Type  string `json:"type"`
	Error string `json:"error,omitempty"`
}

type progressMessage struct {
	Type    string  `json:"type"`
	Status  string  `json:"status"`
	File    string  `json:"file,omitempty"`
	Percent float64 `json:"percent"`
}

// handlePractice runs one live practice connection. Each connection holds at
// most one recording session at a time; a second "start" before the first
// result is rejected the same way a double Start on a Recorder is.
func (s *Server) handlePractice(w http.ResponseWriter, r *http.Request) {
	conn, err := websocket.Accept(w, r, nil)
	if err != nil {
		slog.Warn("practice socket accept failed", "err", err)
		return
	}
	defer conn.Close(websocket.StatusInternalError, "connection teardown")

	// Binary audio frames can exceed the library default read limit.
	conn.SetReadLimit(1 << 20)

	s.metrics.ActiveSessions.Add(r.Context(), 1)
	defer s.metrics.ActiveSessions.Add(r.Context(), -1)

	p := &practiceConn{srv: s, conn: conn}

	// Surface model loading to the learner before the first attempt. Warm
	// returns immediately with a "done" event once the backend is hot.
	if s.cfg.Warmer != nil {
		go func() {
			err := s.cfg.Warmer.Warm(r.Context(), func(pr stt.Progress) {
				p.writeJSON(r.Context(), progressMessage{
					Type:    "progress",
					Status:  pr.Status,
					File:    pr.File,
					Percent: pr.Percent,
				})
			})
			if err != nil {
				slog.Debug("backend warm-up reported error", "err", err)
			}
		}()
	}

	p.run(r.Context())

	conn.Close(websocket.StatusNormalClosure, "session complete")
}

// practiceConn is the per-connection state of one practice socket.
type practiceConn struct {
	srv  *Server
	conn *websocket.Conn

	writeMu sync.Mutex

	mu       sync.Mutex
	expected string
	rate     int
	stream   *wsStream
	rec      *capture.Recorder
	finish   *sync.Once
}

// run drives the read loop until the client disconnects.
func (p *practiceConn) run(ctx context.Context) {
	defer p.abandon()

	for {
		typ, data, err := p.conn.Read(ctx)
		if err != nil {
			return
		}

		switch typ {
		case websocket.MessageText:
			var msg clientMessage
			if err := json.Unmarshal(data, &msg); err != nil {
				p.writeEvent(ctx, eventMessage{Type: "error", Error: "malformed control message"})
				continue
			}
			p.handleControl(ctx, msg)
		case websocket.MessageBinary:
			p.pushAudio(data)
		}
	}
}

func (p *practiceConn) handleControl(ctx context.Context, msg clientMessage) {
	switch msg.Type {
	case "start":
		if err := p.start(ctx, msg); err != nil {
			p.writeEvent(ctx, eventMessage{Type: "error", Error: err.Error()})
		}
	case "stop":
		p.finishSession(ctx, "stop")
	default:
		p.writeEvent(ctx, eventMessage{Type: "error", Error: "unknown message type"})
	}
}

// start opens a recording session fed by this connection's binary frames.
func (p *practiceConn) start(ctx context.Context, msg clientMessage) error {
	if msg.Expected == "" {
		return errExpectedRequired
	}
	rate := msg.SampleRate
	if rate == 0 {
		rate = audio.TargetSampleRate
	}
	if rate < 0 {
		return errBadSampleRate
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	if p.rec != nil && p.rec.IsRecording() {
		return capture.ErrAlreadyRecording
	}

	stream := newWSStream()
	rec := capture.NewRecorder(wsDevice{stream: stream})
	err := rec.Start(ctx, capture.SessionConfig{
		Silence: p.srv.cfg.Silence,
		OnSilence: func() {
			p.writeEvent(ctx, eventMessage{Type: "silence"})
			p.finishSession(ctx, "silence")
		},
	})
	if err != nil {
		return err
	}

	p.expected = msg.Expected
	p.rate = rate
	p.stream = stream
	p.rec = rec
	p.finish = &sync.Once{}
	return nil
}

// pushAudio feeds one binary frame into the live session. Frames arriving
// outside a session are dropped; the client may keep streaming briefly after
// a silence auto-stop.
func (p *practiceConn) pushAudio(frame []byte) {
	p.mu.Lock()
	stream := p.stream
	p.mu.Unlock()
	if stream != nil {
		stream.push(frame)
	}
}

// finishSession stops the recording, scores the captured audio, and sends the
// result. A concurrent stop and silence auto-stop finish exactly once.
func (p *practiceConn) finishSession(ctx context.Context, reason string) {
	p.mu.Lock()
	rec, stream := p.rec, p.stream
	expected, rate, once := p.expected, p.rate, p.finish
	p.mu.Unlock()

	if rec == nil {
		return
	}

	once.Do(func() {
		pcm, err := rec.Stop(ctx)
		if err != nil {
			slog.Warn("practice session stop failed", "reason", reason, "err", err)
		}

		p.mu.Lock()
		if p.stream == stream {
			p.stream = nil
		}
		p.mu.Unlock()

		var encoded []byte
		if len(pcm) > 0 {
			encoded = audio.EncodeWAV(pcm, rate, 1)
		}

		att, err := p.srv.orch.ScoreClip(ctx, encoded, expected)
		if err != nil {
			slog.Error("practice attempt scoring failed", "err", err)
			p.writeEvent(ctx, eventMessage{Type: "error", Error: "scoring failed"})
			return
		}
		p.writeResult(ctx, resultMessage{Type: "result", attemptResponse: newAttemptResponse(att)})
	})
}

// abandon tears down a session left live when the client disconnects.
func (p *practiceConn) abandon() {
	p.mu.Lock()
	rec := p.rec
	p.mu.Unlock()
	if rec != nil {
		rec.ForceStop()
	}
}

func (p *practiceConn) writeEvent(ctx context.Context, msg eventMessage) {
	p.writeJSON(ctx, msg)
}

func (p *practiceConn) writeResult(ctx context.Context, msg resultMessage) {
	p.writeJSON(ctx, msg)
}

func (p *practiceConn) writeJSON(ctx context.Context, v any) {
	data, err := json.Marshal(v)
	if err != nil {
		slog.Error("practice message marshal failed", "err", err)
		return
	}
	p.writeMu.Lock()
	defer p.writeMu.Unlock()
	if err := p.conn.Write(ctx, websocket.MessageText, data); err != nil {
		slog.Debug("practice message write failed", "err", err)
	}
}

var (
	errExpectedRequired = protocolError("start requires an expected phrase")
	errBadSampleRate    = protocolError("sample_rate must be positive")
)

// protocolError is a trivial error type for practice-protocol violations.
type protocolError string

func (e protocolError) Error() string { return string(e) }

// wsStream adapts the practice socket's binary frames to the capture.Stream
// interface, so the standard Recorder and silence detector drive the session.
// The volume level is derived from the most recent frame's RMS amplitude,
// scaled to the detector's 0-255 range.
type wsStream struct {
	mu     sync.Mutex
	chunks chan []byte
	level  int
	closed bool
}

func newWSStream() *wsStream {
	return &wsStream{chunks: make(chan []byte, 256)}
}

// push enqueues one audio frame and updates the level. Frames arriving after
// close, or while the accumulator is saturated, are dropped.
func (s *wsStream) push(frame []byte) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	s.level = pcmLevel(frame)
	select {
	case s.chunks <- frame:
	default:
		slog.Warn("practice stream saturated, dropping frame", "bytes", len(frame))
	}
}

func (s *wsStream) Chunks() <-chan []byte { return s.chunks }

func (s *wsStream) Level() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.level
}

func (s *wsStream) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	close(s.chunks)
	return nil
}

// wsDevice hands the connection's stream to a Recorder.
type wsDevice struct {
	stream *wsStream
}

func (d wsDevice) Acquire(_ context.Context) (capture.Stream, error) {
	return d.stream, nil
}

var (
	_ capture.Device = wsDevice{}
	_ capture.Stream = (*wsStream)(nil)
)

// pcmLevel computes the RMS amplitude of a little-endian PCM16 frame, scaled
// to 0-255. Truncated trailing bytes are ignored.
func pcmLevel(frame []byte) int {
	n := len(frame) / 2
	if n == 0 {
		return 0
	}
	var sum float64
	for i := 0; i < n; i++ {
		v := float64(int16(binary.LittleEndian.Uint16(frame[i*2:]))) / 32768
		sum += v * v
	}
	rms := math.Sqrt(sum / float64(n))
	level := int(math.Round(rms * 255))
	if level > 255 {
		level = 255
	}
	return level
}
