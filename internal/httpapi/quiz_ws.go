package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sync"

	"github.com/coder/websocket"

	"github.com/coldsoak/readback/internal/quiz"
	"github.com/coldsoak/readback/internal/record"
)

// quizClientMsg is every message the browser can send on /ws/quiz.
type quizClientMsg struct {
	Type string `json:"type"`

	// start, best
	Mode string `json:"mode,omitempty"`

	// answer
	Text string `json:"text,omitempty"`
}

// quizServerMsg is every message the server sends on /ws/quiz.
type quizServerMsg struct {
	Type string `json:"type"`

	Prompt  string             `json:"prompt,omitempty"`
	Answer  *quiz.AnswerResult `json:"answer,omitempty"`
	Stats   *quiz.Stats        `json:"stats,omitempty"`
	Best    *record.QuizBest   `json:"best,omitempty"`
	HasBest bool               `json:"has_best,omitempty"`
	Message string             `json:"message,omitempty"`
}

// quizSession is one browser's live quiz connection. Unlike the drill
// socket there is no audio bridge; every exchange is request/response
// plus a stats push after each state change.
type quizSession struct {
	conn    *websocket.Conn
	round   *quiz.Round
	writeMu sync.Mutex
}

func (s *Server) handleQuizWS(w http.ResponseWriter, r *http.Request) {
	conn, err := websocket.Accept(w, r, nil)
	if err != nil {
		slog.Warn("quiz websocket accept failed", "err", err)
		return
	}

	sess := &quizSession{
		conn:  conn,
		round: quiz.NewRound(s.quizTemplate()),
	}
	sess.run(r.Context())
}

func (qs *quizSession) run(ctx context.Context) {
	defer func() {
		qs.round.Reset()
		qs.conn.Close(websocket.StatusNormalClosure, "session over")
	}()

	for {
		_, data, err := qs.conn.Read(ctx)
		if err != nil {
			return
		}

		var msg quizClientMsg
		if err := json.Unmarshal(data, &msg); err != nil {
			qs.sendError(ctx, "malformed message")
			continue
		}
		if err := qs.dispatch(ctx, msg); err != nil {
			qs.sendError(ctx, err.Error())
		}
	}
}

func (qs *quizSession) dispatch(ctx context.Context, msg quizClientMsg) error {
	switch msg.Type {
	case "start":
		mode := quiz.Mode(msg.Mode)
		if !mode.IsValid() {
			return fmt.Errorf("unknown quiz mode %q", msg.Mode)
		}
		if err := qs.round.Start(mode); err != nil {
			return err
		}
		qs.sendPrompt(ctx)
		qs.sendStats(ctx)
		return nil

	case "answer":
		res, err := qs.round.Answer(msg.Text)
		if errors.Is(err, quiz.ErrTimeUp) {
			qs.sendTimeUp(ctx)
			return nil
		}
		if err != nil {
			return err
		}
		qs.send(ctx, quizServerMsg{Type: "answer", Answer: &res})
		qs.sendStats(ctx)
		return nil

	case "pause":
		if err := qs.round.Pause(); err != nil {
			return err
		}
		qs.sendStats(ctx)
		return nil

	case "finish":
		if err := qs.round.Finish(); err != nil {
			return err
		}
		qs.sendStats(ctx)
		return nil

	case "reset":
		qs.round.Reset()
		qs.sendStats(ctx)
		return nil

	case "stats":
		qs.sendStats(ctx)
		return nil

	case "best":
		mode := quiz.Mode(msg.Mode)
		if !mode.IsValid() {
			return fmt.Errorf("unknown quiz mode %q", msg.Mode)
		}
		best, ok, err := qs.round.Best(ctx, mode)
		if err != nil {
			slog.Warn("quiz best lookup failed", "mode", mode, "err", err)
			return errors.New("personal best unavailable")
		}
		reply := quizServerMsg{Type: "best", HasBest: ok}
		if ok {
			reply.Best = &best
		}
		qs.send(ctx, reply)
		return nil

	default:
		return fmt.Errorf("unknown command %q", msg.Type)
	}
}

// sendTimeUp reports an expired round. The final stats ride along so the
// client can render the result screen from one message.
func (qs *quizSession) sendTimeUp(ctx context.Context) {
	stats := qs.round.Stats()
	qs.send(ctx, quizServerMsg{Type: "time_up", Stats: &stats})
}

func (qs *quizSession) sendPrompt(ctx context.Context) {
	if p, ok := qs.round.Current(); ok {
		qs.send(ctx, quizServerMsg{Type: "prompt", Prompt: p.Display})
	}
}

func (qs *quizSession) sendStats(ctx context.Context) {
	stats := qs.round.Stats()
	qs.send(ctx, quizServerMsg{Type: "stats", Stats: &stats})
}

func (qs *quizSession) send(ctx context.Context, msg quizServerMsg) {
	data, err := json.Marshal(msg)
	if err != nil {
		slog.Warn("quiz message marshal failed", "type", msg.Type, "err", err)
		return
	}

	wctx, cancel := context.WithTimeout(ctx, writeTimeout)
	defer cancel()

	qs.writeMu.Lock()
	defer qs.writeMu.Unlock()
	if err := qs.conn.Write(wctx, websocket.MessageText, data); err != nil {
		slog.Debug("quiz websocket write failed", "type", msg.Type, "err", err)
	}
}

func (qs *quizSession) sendError(ctx context.Context, msg string) {
	qs.send(ctx, quizServerMsg{Type: "error", Message: msg})
}
