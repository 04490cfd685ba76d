// Package httpapi exposes the trainer to the browser client.
//
// The surface has three parts:
//
//   - REST endpoints for the scenario catalog and the session history.
//   - Two websocket endpoints, /ws/drill and /ws/quiz, that each own one
//     live practice session per connection. The drill socket doubles as
//     the audio bridge: the browser plays Captain cues and captures
//     speech, the server drives the session.
//   - Operational endpoints: /healthz, /readyz, and /metrics.
package httpapi

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"strconv"
	"sync"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/coldsoak/readback/internal/drill"
	"github.com/coldsoak/readback/internal/health"
	"github.com/coldsoak/readback/internal/observe"
	"github.com/coldsoak/readback/internal/quiz"
	"github.com/coldsoak/readback/internal/record"
	"github.com/coldsoak/readback/internal/scenario"
	"github.com/coldsoak/readback/pkg/provider/listen/whisper"
)

// defaultSessionLimit caps /api/sessions when the client sends no limit.
const defaultSessionLimit = 20

// Config wires a [Server]. Scenarios is required; everything else is
// optional and degrades gracefully when nil.
type Config struct {
	// Scenarios serves the drill catalog.
	Scenarios scenario.Source

	// Sessions serves the training history. Nil disables /api/sessions.
	Sessions record.SessionLister

	// Health serves the probe endpoints. Nil disables them.
	Health *health.Handler

	// Metrics instruments requests and sessions.
	Metrics *observe.Metrics

	// Drill is the per-connection session template. Player and Listener
	// are ignored; each drill socket installs its own bridge.
	Drill drill.Config

	// Quiz is the per-connection round template.
	Quiz quiz.Config

	// Transcriber, when set, grades recorded clips server-side for
	// browsers without a speech recognizer. Nil means those clients fall
	// back to typed entry.
	Transcriber *whisper.Transcriber
}

// Server is the trainer's HTTP front. Safe for concurrent use.
type Server struct {
	cfg Config
	mux *http.ServeMux

	// tmplMu guards the session templates, which config hot reload may
	// swap while connections are being accepted.
	tmplMu   sync.RWMutex
	drillCfg drill.Config
	quizCfg  quiz.Config
}

// New builds the route table. The handler is ready to serve immediately.
func New(cfg Config) *Server {
	s := &Server{
		cfg:      cfg,
		mux:      http.NewServeMux(),
		drillCfg: cfg.Drill,
		quizCfg:  cfg.Quiz,
	}

	s.mux.HandleFunc("GET /api/scenarios", s.handleScenarioList)
	s.mux.HandleFunc("GET /api/scenarios/{id}", s.handleScenarioGet)
	if cfg.Sessions != nil {
		s.mux.HandleFunc("GET /api/sessions", s.handleSessionList)
	}
	s.mux.HandleFunc("GET /ws/drill", s.handleDrillWS)
	s.mux.HandleFunc("GET /ws/quiz", s.handleQuizWS)

	if cfg.Health != nil {
		cfg.Health.Register(s.mux)
	}
	s.mux.Handle("GET /metrics", promhttp.Handler())

	return s
}

// UpdateDrill swaps the drill session template. Running sessions keep
// their settings; new connections pick the template up.
func (s *Server) UpdateDrill(cfg drill.Config) {
	s.tmplMu.Lock()
	s.drillCfg = cfg
	s.tmplMu.Unlock()
}

// UpdateQuiz swaps the quiz round template for new connections.
func (s *Server) UpdateQuiz(cfg quiz.Config) {
	s.tmplMu.Lock()
	s.quizCfg = cfg
	s.tmplMu.Unlock()
}

func (s *Server) drillTemplate() drill.Config {
	s.tmplMu.RLock()
	defer s.tmplMu.RUnlock()
	return s.drillCfg
}

func (s *Server) quizTemplate() quiz.Config {
	s.tmplMu.RLock()
	defer s.tmplMu.RUnlock()
	return s.quizCfg
}

// Handler returns the fully assembled handler, request instrumentation
// included.
func (s *Server) Handler() http.Handler {
	var h http.Handler = s.mux
	if s.cfg.Metrics != nil {
		h = observe.Middleware(s.cfg.Metrics)(h)
	}
	return h
}

func (s *Server) handleScenarioList(w http.ResponseWriter, r *http.Request) {
	summaries, err := s.cfg.Scenarios.List(r.Context())
	if err != nil {
		slog.Error("scenario list failed", "err", err)
		writeError(w, http.StatusInternalServerError, "scenario catalog unavailable")
		return
	}
	writeJSON(w, http.StatusOK, summaries)
}

// scenarioDetail is the catalog entry plus the script the client renders.
// Grading material stays server-side.
type scenarioDetail struct {
	scenario.Summary
	Turns []turnDetail `json:"turns"`
}

type turnDetail struct {
	Role   scenario.Role `json:"role"`
	Text   string        `json:"text"`
	Cue    string        `json:"cue,omitempty"`
	Prompt string        `json:"prompt,omitempty"`
	Graded bool          `json:"graded"`
}

func (s *Server) handleScenarioGet(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	scn, err := s.cfg.Scenarios.Get(r.Context(), id)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			writeError(w, http.StatusNotFound, "unknown scenario")
			return
		}
		slog.Error("scenario get failed", "id", id, "err", err)
		writeError(w, http.StatusInternalServerError, "scenario catalog unavailable")
		return
	}

	detail := scenarioDetail{
		Summary: scn.Summarize(),
		Turns:   make([]turnDetail, 0, len(scn.Turns)),
	}
	for i := range scn.Turns {
		t := &scn.Turns[i]
		detail.Turns = append(detail.Turns, turnDetail{
			Role:   t.Role,
			Text:   t.DisplayLine(),
			Cue:    t.Cue,
			Prompt: t.Prompt,
			Graded: t.Graded(),
		})
	}
	writeJSON(w, http.StatusOK, detail)
}

func (s *Server) handleSessionList(w http.ResponseWriter, r *http.Request) {
	limit := defaultSessionLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 {
			writeError(w, http.StatusBadRequest, "limit must be a positive integer")
			return
		}
		limit = n
	}

	sessions, err := s.cfg.Sessions.RecentSessions(r.Context(), limit)
	if err != nil {
		slog.Error("session list failed", "err", err)
		writeError(w, http.StatusInternalServerError, "session history unavailable")
		return
	}
	if sessions == nil {
		sessions = []record.SessionRecord{}
	}
	writeJSON(w, http.StatusOK, sessions)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Warn("response encode failed", "err", err)
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
