package httpapi

import (
	"context"
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/coder/websocket"

	"github.com/coldsoak/readback/internal/drill"
	"github.com/coldsoak/readback/internal/scenario"
)

func dialWS(t *testing.T, ctx context.Context, httpURL, path string) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(httpURL, "http") + path
	conn, _, err := websocket.Dial(ctx, url, nil)
	if err != nil {
		t.Fatalf("dial %s: %v", path, err)
	}
	t.Cleanup(func() { conn.Close(websocket.StatusNormalClosure, "test over") })
	return conn
}

func sendJSON(t *testing.T, ctx context.Context, conn *websocket.Conn, v any) {
	t.Helper()
	data, err := json.Marshal(v)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if err := conn.Write(ctx, websocket.MessageText, data); err != nil {
		t.Fatalf("write: %v", err)
	}
}

// readDrillUntil decodes server messages until pred returns true, replying
// to bridge requests (play, listen) via reply along the way.
func readDrillUntil(t *testing.T, ctx context.Context, conn *websocket.Conn, reply func(drillServerMsg), pred func(drillServerMsg) bool) drillServerMsg {
	t.Helper()
	for {
		_, data, err := conn.Read(ctx)
		if err != nil {
			t.Fatalf("read: %v", err)
		}
		var msg drillServerMsg
		if err := json.Unmarshal(data, &msg); err != nil {
			t.Fatalf("unmarshal %q: %v", data, err)
		}
		if msg.Type == "error" {
			t.Fatalf("server error: %s", msg.Message)
		}
		if reply != nil {
			reply(msg)
		}
		if pred(msg) {
			return msg
		}
	}
}

func isEvent(kind drill.EventKind) func(drillServerMsg) bool {
	return func(msg drillServerMsg) bool {
		return msg.Type == "event" && msg.Event != nil && msg.Event.Kind == kind
	}
}

func drillTestConfig() drill.Config {
	return drill.Config{SettleDelay: time.Millisecond, AutoAdvance: true}
}

func TestDrillWSManualEntrySession(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	cfg := drillTestConfig()
	cfg.ManualEntry = true
	srv := newTestServer(t, Config{
		Scenarios: &memSource{scenarios: []*scenario.Scenario{testScenario(t)}},
		Drill:     cfg,
	})
	conn := dialWS(t, ctx, srv.URL, "/ws/drill")

	sendJSON(t, ctx, conn, drillClientMsg{Type: "start", ScenarioID: "pushback", EmployeeID: "emp-7"})

	var playedCue string
	replies := func(msg drillServerMsg) {
		switch {
		case msg.Type == "play":
			playedCue = msg.Cue
			sendJSON(t, ctx, conn, drillClientMsg{Type: "played", Cue: msg.Cue})
		case isEvent(drill.EventAwaitingEntry)(msg):
			sendJSON(t, ctx, conn, drillClientMsg{Type: "submit", Text: "holding short brakes set"})
		}
	}

	final := readDrillUntil(t, ctx, conn, replies, isEvent(drill.EventComplete))
	if playedCue != "captain-01" {
		t.Errorf("played cue = %q, want captain-01", playedCue)
	}
	if final.Event.Summary == nil {
		t.Fatal("complete event carries no summary")
	}
	if got := final.Event.Summary.ScorePct; got != 100 {
		t.Errorf("score = %v, want 100", got)
	}
	if got := final.Event.Summary.GradedTurns; got != 1 {
		t.Errorf("graded turns = %d, want 1", got)
	}
}

func TestDrillWSListenerBridge(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	srv := newTestServer(t, Config{
		Scenarios: &memSource{scenarios: []*scenario.Scenario{testScenario(t)}},
		Drill:     drillTestConfig(),
	})
	conn := dialWS(t, ctx, srv.URL, "/ws/drill")

	sendJSON(t, ctx, conn, drillClientMsg{Type: "start", ScenarioID: "pushback"})

	replies := func(msg drillServerMsg) {
		switch msg.Type {
		case "play":
			sendJSON(t, ctx, conn, drillClientMsg{Type: "played", Cue: msg.Cue})
		case "listen":
			sendJSON(t, ctx, conn, drillClientMsg{
				Type:      "heard",
				FinalText: "holding short brakes set",
				Ended:     "final",
			})
		}
	}

	result := readDrillUntil(t, ctx, conn, replies, isEvent(drill.EventTurnResult))
	if result.Event.Result == nil || !result.Event.Result.Pass {
		t.Fatalf("turn result = %+v, want a pass", result.Event.Result)
	}

	final := readDrillUntil(t, ctx, conn, replies, isEvent(drill.EventComplete))
	if got := final.Event.Summary.ScorePct; got != 100 {
		t.Errorf("score = %v, want 100", got)
	}
}

func TestDrillWSClipWithoutTranscriberFallsBackToTyping(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	srv := newTestServer(t, Config{
		Scenarios: &memSource{scenarios: []*scenario.Scenario{testScenario(t)}},
		Drill:     drillTestConfig(),
	})
	conn := dialWS(t, ctx, srv.URL, "/ws/drill")

	sendJSON(t, ctx, conn, drillClientMsg{Type: "start", ScenarioID: "pushback"})

	replies := func(msg drillServerMsg) {
		switch {
		case msg.Type == "play":
			sendJSON(t, ctx, conn, drillClientMsg{Type: "played", Cue: msg.Cue})
		case msg.Type == "listen":
			// No recognizer on this client; upload a clip instead. The
			// server has no transcriber, so typing is the fallback.
			sendJSON(t, ctx, conn, drillClientMsg{Type: "clip", Clip: []byte{0, 0, 0, 0}})
		case isEvent(drill.EventAwaitingEntry)(msg):
			sendJSON(t, ctx, conn, drillClientMsg{Type: "submit", Text: "holding short brakes set"})
		}
	}

	final := readDrillUntil(t, ctx, conn, replies, isEvent(drill.EventComplete))
	if got := final.Event.Summary.ScorePct; got != 100 {
		t.Errorf("score = %v, want 100", got)
	}
}

func TestDrillWSUnknownScenario(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	srv := newTestServer(t, Config{Scenarios: &memSource{}, Drill: drillTestConfig()})
	conn := dialWS(t, ctx, srv.URL, "/ws/drill")

	sendJSON(t, ctx, conn, drillClientMsg{Type: "start", ScenarioID: "nope"})

	_, data, err := conn.Read(ctx)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	var msg drillServerMsg
	if err := json.Unmarshal(data, &msg); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if msg.Type != "error" {
		t.Fatalf("message type = %q, want error", msg.Type)
	}
}
