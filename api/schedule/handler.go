// Package schedule exposes the current schedule, structured commands and run
// history over HTTP.
package schedule

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/kilianp07/cargoplan/core/command"
	"github.com/kilianp07/cargoplan/core/history"
	"github.com/kilianp07/cargoplan/core/model"
	"github.com/kilianp07/cargoplan/core/planerr"
	"github.com/kilianp07/cargoplan/core/planner"
	"github.com/kilianp07/cargoplan/core/reopt"
)

// maxCommandBytes bounds a POST /api/commands body.
const maxCommandBytes = 64 << 10

// Source returns the current schedule, optimizing on first use.
type Source interface {
	CurrentSchedule(ctx context.Context) (reopt.Outcome, error)
	State() reopt.State
}

// CommandHandler executes one structured command.
type CommandHandler interface {
	Handle(ctx context.Context, cmd command.Command) command.Reply
}

// scheduleResponse is the body of GET /api/schedule.
type scheduleResponse struct {
	RunID       string              `json:"run_id,omitempty"`
	State       string              `json:"state"`
	Status      string              `json:"status"`
	Result      model.Result        `json:"result"`
	Utilization planner.Utilization `json:"utilization"`
	Warning     string              `json:"warning,omitempty"`
	GeneratedAt time.Time           `json:"generated_at"`
}

// NewScheduleHandler serves GET /api/schedule.
func NewScheduleHandler(src Source, token string) http.Handler {
	return authorize(token, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}
		out, err := src.CurrentSchedule(r.Context())
		if !reopt.Usable(out, err) {
			http.Error(w, err.Error(), statusFor(err))
			return
		}
		res := out.Payload()
		resp := scheduleResponse{
			RunID:       out.RunID,
			State:       src.State().String(),
			Status:      command.StatusLabel(res),
			Result:      res,
			Utilization: out.Utilization,
			GeneratedAt: time.Now().UTC(),
		}
		if err != nil {
			resp.Warning = err.Error()
		}
		writeJSON(w, http.StatusOK, resp)
	}))
}

// NewCommandHandler serves POST /api/commands. The body is a JSON command;
// the response is the dispatcher's reply.
func NewCommandHandler(h CommandHandler, token string) http.Handler {
	return authorize(token, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}
		body, err := io.ReadAll(io.LimitReader(r.Body, maxCommandBytes))
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		cmd, err := command.Decode(body)
		if err != nil {
			writeJSON(w, http.StatusBadRequest, command.Reply{
				Action: command.ActionUnknown, Text: command.FallbackText, Error: err.Error(),
			})
			return
		}
		reply := h.Handle(r.Context(), cmd)
		code := http.StatusOK
		if !reply.OK() {
			code = statusFor(reply.Err)
		}
		writeJSON(w, code, reply)
	}))
}

// NewHistoryHandler serves GET /api/history with optional start, end (RFC3339),
// flight_id, status and limit filters.
func NewHistoryHandler(store history.Store, token string) http.Handler {
	return authorize(token, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}
		q := history.Query{
			FlightID: r.URL.Query().Get("flight_id"),
			Status:   r.URL.Query().Get("status"),
		}
		if s := r.URL.Query().Get("start"); s != "" {
			t, err := time.Parse(time.RFC3339, s)
			if err != nil {
				http.Error(w, "invalid start", http.StatusBadRequest)
				return
			}
			q.Start = t
		}
		if s := r.URL.Query().Get("end"); s != "" {
			t, err := time.Parse(time.RFC3339, s)
			if err != nil {
				http.Error(w, "invalid end", http.StatusBadRequest)
				return
			}
			q.End = t
		}
		if s := r.URL.Query().Get("limit"); s != "" {
			n, err := strconv.Atoi(s)
			if err != nil || n < 0 {
				http.Error(w, "invalid limit", http.StatusBadRequest)
				return
			}
			q.Limit = n
		}
		recs, err := store.Query(r.Context(), q)
		if err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		if recs == nil {
			recs = []history.Record{}
		}
		writeJSON(w, http.StatusOK, recs)
	}))
}

// NewHealthHandler serves GET /health.
func NewHealthHandler(src Source) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok", "state": src.State().String()})
	})
}

// Routes registers every handler on mux.
func Routes(mux *http.ServeMux, src Source, h CommandHandler, store history.Store, token string) {
	mux.Handle("/api/schedule", NewScheduleHandler(src, token))
	mux.Handle("/api/commands", NewCommandHandler(h, token))
	mux.Handle("/api/history", NewHistoryHandler(store, token))
	mux.Handle("/health", NewHealthHandler(src))
}

// authorize requires "Bearer <token>" when token is non-empty.
func authorize(token string, next http.Handler) http.Handler {
	if token == "" {
		return next
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer "+token {
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func statusFor(err error) int {
	switch {
	case err == nil:
		return http.StatusOK
	case planerr.IsKind(err, planerr.KindUnknownCommand), planerr.IsKind(err, planerr.KindUnknownEntity):
		return http.StatusBadRequest
	case planerr.IsKind(err, planerr.KindInfeasibleModel):
		return http.StatusUnprocessableEntity
	case planerr.IsKind(err, planerr.KindSolverTimeout):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}
