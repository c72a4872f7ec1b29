package api

import (
	"net/http"
	"strconv"
	"time"

	"github.com/nerrad567/mqtt2broadlink/internal/journal"
	"github.com/nerrad567/mqtt2broadlink/internal/router"
)

// handleListJournal returns recent journal entries, newest first.
//
// Query parameters:
//   - handler: filter by handler name (send, learn, device-add, ...)
//   - subject: filter by device or command name
//   - result: filter by result (ok, timeout, rejected, failed, unrouted)
//   - since: RFC 3339 timestamp, entries started at or after
//   - limit: max results (default 50, max 500)
//   - offset: pagination offset
func (s *Server) handleListJournal(w http.ResponseWriter, r *http.Request) {
	if s.deps.Journal == nil {
		writeNotFound(w, "command journal not enabled")
		return
	}

	q := r.URL.Query()
	filter := journal.Filter{
		Handler: q.Get("handler"),
		Subject: q.Get("subject"),
		Result:  router.Result(q.Get("result")),
	}

	if v := q.Get("since"); v != "" {
		t, err := time.Parse(time.RFC3339, v)
		if err != nil {
			writeBadRequest(w, "since must be an RFC 3339 timestamp")
			return
		}
		filter.Since = t
	}
	if v := q.Get("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			filter.Limit = n
		}
	}
	if v := q.Get("offset"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			filter.Offset = n
		}
	}

	entries, err := s.deps.Journal.List(r.Context(), filter)
	if err != nil {
		s.logger.Error("failed to list journal entries", "error", err)
		writeInternalError(w, "failed to list journal entries")
		return
	}
	if entries == nil {
		entries = []journal.Entry{}
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"entries": entries,
		"count":   len(entries),
	})
}
