// Package httpapi is the synchronous boundary: it accepts message envelopes
// over HTTP and maps each dispatch outcome to its native response shape.
package httpapi

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"

	"stockflow/bus"
	errs "stockflow/errors"
	"stockflow/schema"
)

const maxBodyBytes = 1 << 20

type statsProvider func() map[string]uint64

type Server struct {
	log   *slog.Logger
	bus   *bus.Bus
	stats statsProvider
}

func New(log *slog.Logger, b *bus.Bus, stats func() map[string]uint64) *Server {
	return &Server{log: log, bus: b, stats: stats}
}

func (s *Server) Routes() *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /messages", s.handleMessages)
	mux.HandleFunc("GET /healthz", s.handleHealth)
	mux.HandleFunc("GET /stats", s.handleStats)
	return mux
}

func (s *Server) handleMessages(w http.ResponseWriter, r *http.Request) {
	raw, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "cannot read body"})
		return
	}

	env, err := schema.ParseEnvelope(raw)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
		return
	}

	out := s.bus.Dispatch(r.Context(), env.TypeName, env.Payload)
	s.writeOutcome(w, env, out)
}

// writeOutcome is the synchronous mapping of the outcome taxonomy: client
// errors for rejected and unprocessable messages, success for skips, server
// error only for internal failures.
func (s *Server) writeOutcome(w http.ResponseWriter, env schema.Envelope, out bus.Outcome) {
	logArgs := []any{"message_id", env.MessageID, "type", env.TypeName, "status", out.Status.String()}

	switch out.Status {
	case bus.StatusDispatched:
		s.log.Info("Message dispatched", logArgs...)
		writeJSON(w, http.StatusCreated, map[string]any{"status": "dispatched", "result": out.Result})

	case bus.StatusSkipped:
		s.log.Warn("Message skipped", append(logArgs, "reason", out.Reason)...)
		writeJSON(w, http.StatusOK, map[string]any{"status": "skipped", "reason": out.Reason})

	case bus.StatusRejected:
		s.log.Info("Message rejected", append(logArgs, "field_errors", out.FieldErrors)...)
		writeJSON(w, http.StatusBadRequest, map[string]any{"status": "rejected", "field_errors": out.FieldErrors})

	case bus.StatusUnprocessable:
		s.log.Error("Message unprocessable", append(logArgs, "kind", out.Kind, "detail", out.Detail)...)
		writeJSON(w, kindStatus(out.Kind), map[string]any{"status": "unprocessable", "kind": out.Kind, "detail": out.Detail})

	default:
		if errors.Is(out.Err, errs.ErrUnknownMessageType) {
			s.log.Info("Unknown message type", logArgs...)
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": out.Err.Error()})
			return
		}
		s.log.Error("Dispatch failed", append(logArgs, "error", out.Err)...)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal error"})
	}
}

func kindStatus(kind string) int {
	switch kind {
	case bus.KindNotFound:
		return http.StatusNotFound
	case bus.KindOutOfStock, bus.KindConflict:
		return http.StatusConflict
	default:
		return http.StatusUnprocessableEntity
	}
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	stats := map[string]uint64{}
	if s.stats != nil {
		stats = s.stats()
	}
	writeJSON(w, http.StatusOK, stats)
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}
