package web

import (
	"fmt"
	"net/http"
	"strconv"

	"github.com/JonMunkholm/tablematch/internal/core"
	"github.com/JonMunkholm/tablematch/internal/history"
)

// StatusResponse is the JSON body of GET /api/status.
type StatusResponse struct {
	Comparisons    core.LimiterStatus `json:"comparisons"`
	HistoryEnabled bool               `json:"history_enabled"`
	MaxFileSize    int64              `json:"max_file_size"`
	SizeThreshold  int64              `json:"size_threshold"`
	SampleRows     int                `json:"sample_rows"`
	Mode           string             `json:"mode"`
}

// HistoryResponse is the JSON body of GET /api/history.
type HistoryResponse struct {
	Entries []history.Entry `json:"entries"`
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// handleStatus reports comparison capacity and the active settings.
func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	mode := core.ModeTolerant
	if s.cfg.Compare.ColumnAligned {
		mode = core.ModeColumnAligned
	}
	writeJSON(w, http.StatusOK, StatusResponse{
		Comparisons:    s.limiter.Status(),
		HistoryEnabled: s.history != nil,
		MaxFileSize:    s.cfg.Upload.MaxFileSize,
		SizeThreshold:  s.cfg.Compare.SizeThreshold,
		SampleRows:     s.cfg.Compare.SampleRows,
		Mode:           mode.String(),
	})
}

// handleHistory lists recent comparisons, newest first.
func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	limit := 0
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			s.respondError(w, r, fmt.Errorf("%w: limit: %w", errBadRequest, err), http.StatusBadRequest)
			return
		}
		limit = n
	}

	entries, err := s.history.Recent(r.Context(), limit)
	if err != nil {
		s.respondError(w, r, err, statusFor(err))
		return
	}
	writeJSON(w, http.StatusOK, HistoryResponse{Entries: entries})
}
