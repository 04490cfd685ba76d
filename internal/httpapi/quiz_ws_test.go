package httpapi

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/coder/websocket"

	"github.com/coldsoak/readback/internal/phonetic"
	"github.com/coldsoak/readback/internal/quiz"
)

func readQuiz(t *testing.T, ctx context.Context, conn *websocket.Conn) quizServerMsg {
	t.Helper()
	_, data, err := conn.Read(ctx)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	var msg quizServerMsg
	if err := json.Unmarshal(data, &msg); err != nil {
		t.Fatalf("unmarshal %q: %v", data, err)
	}
	return msg
}

func readQuizType(t *testing.T, ctx context.Context, conn *websocket.Conn, typ string) quizServerMsg {
	t.Helper()
	for {
		msg := readQuiz(t, ctx, conn)
		if msg.Type == "error" && typ != "error" {
			t.Fatalf("server error: %s", msg.Message)
		}
		if msg.Type == typ {
			return msg
		}
	}
}

func TestQuizWSRound(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	srv := newTestServer(t, Config{Scenarios: &memSource{}, Quiz: quiz.Config{Duration: time.Minute}})
	conn := dialWS(t, ctx, srv.URL, "/ws/quiz")

	sendJSON(t, ctx, conn, quizClientMsg{Type: "start", Mode: "letters"})

	prompt := readQuizType(t, ctx, conn, "prompt")
	if len(prompt.Prompt) != 1 {
		t.Fatalf("letters prompt = %q, want a single character", prompt.Prompt)
	}
	stats := readQuizType(t, ctx, conn, "stats")
	if stats.Stats.Status != quiz.StatusRunning {
		t.Fatalf("status = %q, want running", stats.Stats.Status)
	}

	// Answer with the prompt's phonetic word; that must grade as correct.
	sendJSON(t, ctx, conn, quizClientMsg{Type: "answer", Text: phonetic.Expand(prompt.Prompt)})
	ans := readQuizType(t, ctx, conn, "answer")
	if !ans.Answer.Correct {
		t.Fatalf("answer %+v graded wrong for prompt %q", ans.Answer, prompt.Prompt)
	}
	if ans.Answer.Next.Display == "" {
		t.Error("no follow-up prompt after an answer")
	}

	// A junk answer breaks the streak but still advances.
	sendJSON(t, ctx, conn, quizClientMsg{Type: "answer", Text: "banana"})
	ans = readQuizType(t, ctx, conn, "answer")
	if ans.Answer.Correct {
		t.Fatal("junk answer graded correct")
	}

	stats = readQuizType(t, ctx, conn, "stats")
	if stats.Stats.Attempts != 2 || stats.Stats.Correct != 1 {
		t.Fatalf("stats = %+v, want 2 attempts 1 correct", stats.Stats)
	}
	if stats.Stats.BestStreak != 1 {
		t.Errorf("best streak = %d, want 1", stats.Stats.BestStreak)
	}
}

func TestQuizWSPause(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	srv := newTestServer(t, Config{Scenarios: &memSource{}, Quiz: quiz.Config{Duration: time.Minute}})
	conn := dialWS(t, ctx, srv.URL, "/ws/quiz")

	sendJSON(t, ctx, conn, quizClientMsg{Type: "start", Mode: "numbers"})
	readQuizType(t, ctx, conn, "stats")

	sendJSON(t, ctx, conn, quizClientMsg{Type: "pause"})
	stats := readQuizType(t, ctx, conn, "stats")
	if stats.Stats.Status != quiz.StatusPaused {
		t.Fatalf("status = %q, want paused", stats.Stats.Status)
	}

	// Answering while paused is an error.
	sendJSON(t, ctx, conn, quizClientMsg{Type: "answer", Text: "one"})
	if msg := readQuizType(t, ctx, conn, "error"); msg.Message == "" {
		t.Error("error reply carries no message")
	}
}

func TestQuizWSRejectsUnknownMode(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	srv := newTestServer(t, Config{Scenarios: &memSource{}, Quiz: quiz.Config{Duration: time.Minute}})
	conn := dialWS(t, ctx, srv.URL, "/ws/quiz")

	sendJSON(t, ctx, conn, quizClientMsg{Type: "start", Mode: "colors"})
	msg := readQuizType(t, ctx, conn, "error")
	if msg.Message == "" {
		t.Fatal("error reply carries no message")
	}
}
