package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"sync"
	"time"

	"github.com/coder/websocket"

	"github.com/coldsoak/readback/internal/drill"
	"github.com/coldsoak/readback/pkg/provider/listen"
)

// writeTimeout bounds a single websocket write.
const writeTimeout = 10 * time.Second

// drillClientMsg is every message the browser can send on /ws/drill.
// Type selects the command; the other fields are populated per type.
type drillClientMsg struct {
	Type string `json:"type"`

	// start
	ScenarioID  string `json:"scenario_id,omitempty"`
	EmployeeID  string `json:"employee_id,omitempty"`
	ManualEntry bool   `json:"manual_entry,omitempty"`
	AutoAdvance *bool  `json:"auto_advance,omitempty"`

	// submit
	Text string `json:"text,omitempty"`

	// jump
	Index int `json:"index,omitempty"`

	// played — the browser finished playing a cue
	Cue string `json:"cue,omitempty"`

	// heard — the browser's recognizer resolved
	FinalText   string `json:"final_text,omitempty"`
	InterimText string `json:"interim_text,omitempty"`
	Ended       string `json:"ended,omitempty"`

	// clip — raw PCM for server-side transcription, base64 on the wire
	Clip []byte `json:"clip,omitempty"`
}

// drillServerMsg is every message the server sends on /ws/drill.
type drillServerMsg struct {
	Type string `json:"type"`

	// event
	Event *drill.Event `json:"event,omitempty"`

	// play
	Cue string `json:"cue,omitempty"`

	// listen
	MinMs     int64 `json:"min_ms,omitempty"`
	MaxMs     int64 `json:"max_ms,omitempty"`
	SilenceMs int64 `json:"silence_ms,omitempty"`

	// error
	Message string `json:"message,omitempty"`
}

// drillSession is one browser's live drill connection. It owns the runner
// and bridges its audio needs back over the socket: the runner's Player
// waits for the browser's "played" ack, its Listener waits for "heard" or
// a recorded clip.
type drillSession struct {
	server *Server
	conn   *websocket.Conn

	writeMu sync.Mutex

	mu       sync.Mutex
	runner   *drill.Runner
	playedCh chan struct{}
	heardCh  chan listen.Result
}

func (s *Server) handleDrillWS(w http.ResponseWriter, r *http.Request) {
	conn, err := websocket.Accept(w, r, nil)
	if err != nil {
		slog.Warn("drill websocket accept failed", "err", err)
		return
	}

	sess := &drillSession{server: s, conn: conn}
	sess.run(r.Context())
}

func (ds *drillSession) run(ctx context.Context) {
	defer func() {
		ds.mu.Lock()
		runner := ds.runner
		ds.mu.Unlock()
		if runner != nil {
			runner.Reset()
		}
		ds.conn.Close(websocket.StatusNormalClosure, "session over")
	}()

	for {
		_, data, err := ds.conn.Read(ctx)
		if err != nil {
			status := websocket.CloseStatus(err)
			if status == websocket.StatusNormalClosure || status == websocket.StatusGoingAway || ctx.Err() != nil {
				return
			}
			slog.Debug("drill websocket read ended", "err", err)
			return
		}

		var msg drillClientMsg
		if err := json.Unmarshal(data, &msg); err != nil {
			ds.sendError(ctx, "malformed message")
			continue
		}
		if err := ds.dispatch(ctx, msg); err != nil {
			ds.sendError(ctx, err.Error())
		}
	}
}

func (ds *drillSession) dispatch(ctx context.Context, msg drillClientMsg) error {
	switch msg.Type {
	case "start":
		return ds.start(ctx, msg)
	case "pause":
		return ds.withRunner(func(r *drill.Runner) error { return r.Pause() })
	case "submit":
		return ds.withRunner(func(r *drill.Runner) error { return r.Submit(msg.Text) })
	case "proceed":
		return ds.withRunner(func(r *drill.Runner) error { return r.Proceed() })
	case "jump":
		return ds.withRunner(func(r *drill.Runner) error { return r.Jump(msg.Index) })
	case "reset":
		return ds.withRunner(func(r *drill.Runner) error { r.Reset(); return nil })
	case "played":
		ds.deliverPlayed()
		return nil
	case "heard":
		ds.deliverHeard(listen.Result{
			FinalText:   msg.FinalText,
			InterimText: msg.InterimText,
			Ended:       endReason(msg.Ended),
		})
		return nil
	case "clip":
		ds.deliverClip(msg.Clip)
		return nil
	default:
		return fmt.Errorf("unknown command %q", msg.Type)
	}
}

// start loads the requested scenario and begins the run. Without a
// scenario_id it resumes the paused run instead.
func (ds *drillSession) start(ctx context.Context, msg drillClientMsg) error {
	runner := ds.ensureRunner(ctx, msg)

	if msg.ScenarioID == "" {
		return runner.Start()
	}

	scn, err := ds.server.cfg.Scenarios.Get(ctx, msg.ScenarioID)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("unknown scenario %q", msg.ScenarioID)
		}
		slog.Error("scenario load failed", "id", msg.ScenarioID, "err", err)
		return errors.New("scenario catalog unavailable")
	}

	runner.Reset()
	if err := runner.Load(scn); err != nil {
		return err
	}
	return runner.Start()
}

// ensureRunner creates the connection's runner on first use. Per-trainee
// knobs (employee id, manual entry, auto advance) are read from the first
// start message; later starts on the same connection reuse the runner.
func (ds *drillSession) ensureRunner(ctx context.Context, msg drillClientMsg) *drill.Runner {
	ds.mu.Lock()
	defer ds.mu.Unlock()

	if ds.runner != nil {
		return ds.runner
	}

	cfg := ds.server.drillTemplate()
	cfg.Player = &wsPlayer{session: ds}
	cfg.Listener = &wsListener{session: ds}
	if msg.EmployeeID != "" {
		cfg.EmployeeID = msg.EmployeeID
	}
	cfg.ManualEntry = cfg.ManualEntry || msg.ManualEntry
	if msg.AutoAdvance != nil {
		cfg.AutoAdvance = *msg.AutoAdvance
	}

	runner := drill.NewRunner(cfg)
	ds.runner = runner
	go ds.pumpEvents(ctx, runner)
	return runner
}

func (ds *drillSession) withRunner(fn func(*drill.Runner) error) error {
	ds.mu.Lock()
	runner := ds.runner
	ds.mu.Unlock()
	if runner == nil {
		return errors.New("no active session")
	}
	return fn(runner)
}

// pumpEvents forwards runner events to the browser until the runner's
// event channel or the connection goes away.
func (ds *drillSession) pumpEvents(ctx context.Context, runner *drill.Runner) {
	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-runner.Events():
			if !ok {
				return
			}
			ds.send(ctx, drillServerMsg{Type: "event", Event: &ev})
		}
	}
}

// deliverPlayed resolves a pending cue playback, if one is waiting.
func (ds *drillSession) deliverPlayed() {
	ds.mu.Lock()
	ch := ds.playedCh
	ds.playedCh = nil
	ds.mu.Unlock()
	if ch != nil {
		ch <- struct{}{}
	}
}

// deliverHeard resolves a pending listen, if one is waiting. An
// unsolicited heard message is dropped; the recognizer may resolve after
// the runner already moved on.
func (ds *drillSession) deliverHeard(res listen.Result) {
	ds.mu.Lock()
	ch := ds.heardCh
	ds.heardCh = nil
	ds.mu.Unlock()
	if ch != nil {
		ch <- res
	}
}

// deliverClip transcribes a recorded clip server-side and resolves the
// pending listen with the result. Without a transcriber the client is
// told to fall back to typed entry.
func (ds *drillSession) deliverClip(pcm []byte) {
	t := ds.server.cfg.Transcriber
	if t == nil {
		ds.deliverHeard(listen.Result{Ended: listen.EndUnsupported})
		return
	}

	text, err := t.Transcribe(pcm)
	if err != nil {
		slog.Warn("clip transcription failed", "bytes", len(pcm), "err", err)
		ds.deliverHeard(listen.Result{Ended: listen.EndError})
		return
	}
	ds.deliverHeard(listen.Result{FinalText: text, Ended: listen.EndFinal})
}

func (ds *drillSession) send(ctx context.Context, msg drillServerMsg) {
	data, err := json.Marshal(msg)
	if err != nil {
		slog.Warn("drill message marshal failed", "type", msg.Type, "err", err)
		return
	}

	wctx, cancel := context.WithTimeout(ctx, writeTimeout)
	defer cancel()

	ds.writeMu.Lock()
	defer ds.writeMu.Unlock()
	if err := ds.conn.Write(wctx, websocket.MessageText, data); err != nil {
		slog.Debug("drill websocket write failed", "type", msg.Type, "err", err)
	}
}

func (ds *drillSession) sendError(ctx context.Context, msg string) {
	ds.send(ctx, drillServerMsg{Type: "error", Message: msg})
}

// endReason maps the wire value to an [listen.EndReason], defaulting to
// final so a terse client still grades.
func endReason(raw string) listen.EndReason {
	switch r := listen.EndReason(raw); r {
	case listen.EndFinal, listen.EndInterim, listen.EndTimeout, listen.EndError, listen.EndUnsupported:
		return r
	case "":
		return listen.EndFinal
	default:
		return listen.EndError
	}
}

// wsPlayer asks the browser to play a Captain cue and waits for its ack.
type wsPlayer struct {
	session *drillSession
}

func (p *wsPlayer) Play(ctx context.Context, cue string) error {
	ds := p.session

	ch := make(chan struct{}, 1)
	ds.mu.Lock()
	ds.playedCh = ch
	ds.mu.Unlock()

	ds.send(ctx, drillServerMsg{Type: "play", Cue: cue})

	select {
	case <-ch:
		return nil
	case <-ctx.Done():
		ds.mu.Lock()
		if ds.playedCh == ch {
			ds.playedCh = nil
		}
		ds.mu.Unlock()
		return ctx.Err()
	}
}

func (p *wsPlayer) Stop() {
	ctx, cancel := context.WithTimeout(context.Background(), writeTimeout)
	defer cancel()
	p.session.send(ctx, drillServerMsg{Type: "stop_audio"})
}

// wsListener asks the browser to capture one spoken response and waits
// for the recognizer's resolution or an uploaded clip.
type wsListener struct {
	session *drillSession
}

func (l *wsListener) ListenOnce(ctx context.Context, opts listen.Options) (listen.Result, error) {
	ds := l.session

	ch := make(chan listen.Result, 1)
	ds.mu.Lock()
	ds.heardCh = ch
	ds.mu.Unlock()

	ds.send(ctx, drillServerMsg{
		Type:      "listen",
		MinMs:     opts.MinDuration.Milliseconds(),
		MaxMs:     opts.MaxDuration.Milliseconds(),
		SilenceMs: opts.SilenceCutoff.Milliseconds(),
	})

	select {
	case res := <-ch:
		return res, nil
	case <-ctx.Done():
		ds.mu.Lock()
		if ds.heardCh == ch {
			ds.heardCh = nil
		}
		ds.mu.Unlock()
		return listen.Result{}, ctx.Err()
	}
}
