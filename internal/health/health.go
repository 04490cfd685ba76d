// Package health provides the trainer's liveness and readiness handlers.
//
//   - /healthz — liveness probe; a process that can serve HTTP is alive.
//   - /readyz  — readiness probe; passes only when every registered
//     [Check] passes.
//
// Both respond with a JSON object carrying a top-level "status" ("ok" or
// "fail") and, for readiness, a "checks" map with a per-check verdict.
package health

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"time"
)

// checkTimeout bounds a single readiness check.
const checkTimeout = 5 * time.Second

// Check is a named readiness probe. Probe returns nil when the dependency
// is usable and an error describing the failure otherwise.
type Check struct {
	// Name labels the check in the JSON response ("store", "scenarios").
	Name string

	// Probe must respect context cancellation.
	Probe func(ctx context.Context) error
}

// Pinger is the slice of a storage backend the readiness probe needs.
// *postgres.Store satisfies it.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Store builds a check that pings a storage backend.
func Store(name string, p Pinger) Check {
	return Check{Name: name, Probe: p.Ping}
}

// Dir builds a check that verifies path exists and is a directory. Used
// for the scenario catalog, which operators mount or sync at deploy time.
func Dir(name, path string) Check {
	return Check{Name: name, Probe: func(context.Context) error {
		info, err := os.Stat(path)
		if err != nil {
			return err
		}
		if !info.IsDir() {
			return fmt.Errorf("%s is not a directory", path)
		}
		return nil
	}}
}

// File builds a check that verifies path exists and is a regular file.
// Used for the speech model the transcriber loads.
func File(name, path string) Check {
	return Check{Name: name, Probe: func(context.Context) error {
		info, err := os.Stat(path)
		if err != nil {
			return err
		}
		if info.IsDir() {
			return fmt.Errorf("%s is a directory, want a file", path)
		}
		return nil
	}}
}

type report struct {
	Status string            `json:"status"`
	Checks map[string]string `json:"checks,omitempty"`
}

// Handler serves the probe endpoints. Safe for concurrent use; the check
// list is fixed at construction.
type Handler struct {
	checks []Check
}

// New creates a [Handler] that evaluates the given checks, in order, on
// each /readyz request.
func New(checks ...Check) *Handler {
	c := make([]Check, len(checks))
	copy(c, checks)
	return &Handler{checks: c}
}

// Healthz always returns 200 OK.
func (h *Handler) Healthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, report{Status: "ok"})
}

// Readyz returns 200 only when every check passes. Each check runs under
// a [checkTimeout] deadline derived from the request context.
func (h *Handler) Readyz(w http.ResponseWriter, r *http.Request) {
	checks := make(map[string]string, len(h.checks))
	allOK := true

	for _, c := range h.checks {
		ctx, cancel := context.WithTimeout(r.Context(), checkTimeout)
		err := c.Probe(ctx)
		cancel()

		if err != nil {
			checks[c.Name] = "fail: " + err.Error()
			allOK = false
		} else {
			checks[c.Name] = "ok"
		}
	}

	res := report{Status: "ok", Checks: checks}
	status := http.StatusOK
	if !allOK {
		res.Status = "fail"
		status = http.StatusServiceUnavailable
	}
	writeJSON(w, status, res)
}

// Register adds the probe routes to mux.
func (h *Handler) Register(mux *http.ServeMux) {
	mux.HandleFunc("GET /healthz", h.Healthz)
	mux.HandleFunc("GET /readyz", h.Readyz)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		http.Error(w, `{"status":"error"}`, http.StatusInternalServerError)
	}
}
