package api

import (
	"net/http"
	"strconv"

	"github.com/canny86/FilaCore/internal/history"
)

// handleListHistory returns recorded command executions, newest first.
//
// Query parameters: serial, command, limit (max 200), offset.
func (s *Server) handleListHistory(w http.ResponseWriter, r *http.Request) {
	if s.history == nil {
		writeError(w, http.StatusNotFound, ErrCodeNotFound, "command history is not enabled")
		return
	}

	q := r.URL.Query()
	filter := history.Filter{
		Serial:  q.Get("serial"),
		Command: q.Get("command"),
	}
	if v := q.Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			writeBadRequest(w, "limit must be an integer")
			return
		}
		filter.Limit = n
	}
	if v := q.Get("offset"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			writeBadRequest(w, "offset must be an integer")
			return
		}
		filter.Offset = n
	}

	res, err := s.history.List(r.Context(), filter)
	if err != nil {
		s.writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}
