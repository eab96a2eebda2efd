/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package logbuffer

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
)

// Handler serves the buffered logs as JSON. Query parameters: level,
// component, search, since (RFC 3339), limit, desc.
func (b *Buffer) Handler() http.Handler {
	r := chi.NewRouter()

	r.Get("/logs", func(w http.ResponseWriter, req *http.Request) {
		params := QueryParams{
			Level:     req.URL.Query().Get("level"),
			Component: req.URL.Query().Get("component"),
			Search:    req.URL.Query().Get("search"),
		}
		if since := req.URL.Query().Get("since"); since != "" {
			t, err := time.Parse(time.RFC3339, since)
			if err != nil {
				http.Error(w, "invalid since timestamp", http.StatusBadRequest)
				return
			}
			params.Since = t
		}
		if limit := req.URL.Query().Get("limit"); limit != "" {
			n, err := strconv.Atoi(limit)
			if err != nil || n < 0 {
				http.Error(w, "invalid limit", http.StatusBadRequest)
				return
			}
			params.Limit = n
		}
		params.Descending = req.URL.Query().Get("desc") == "true"

		writeJSON(w, b.Query(params))
	})

	r.Get("/logs/stats", func(w http.ResponseWriter, req *http.Request) {
		writeJSON(w, b.Stats())
	})

	r.Get("/logs/components", func(w http.ResponseWriter, req *http.Request) {
		writeJSON(w, b.Components())
	})

	return r
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(v)
}
