package server

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/acolita/hydra-sh/internal/audit"
	"github.com/acolita/hydra-sh/internal/history"
	"github.com/acolita/hydra-sh/internal/profiles"
	"github.com/acolita/hydra-sh/internal/ssh"
	"github.com/go-chi/chi/v5"
)

const maxBodySize = 1 << 20

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":  "ok",
		"clients": s.Clients(),
	})
}

func (s *Server) handleAllHistory(w http.ResponseWriter, r *http.Request) {
	all, err := s.history.All()
	if err != nil {
		s.logger.Error("load history", slog.String("error", err.Error()))
		writeError(w, http.StatusInternalServerError, "history unavailable")
		return
	}
	writeJSON(w, http.StatusOK, all)
}

func (s *Server) handleHostHistory(w http.ResponseWriter, r *http.Request) {
	host := chi.URLParam(r, "host")
	days, err := s.history.ByHost(host)
	if err != nil {
		s.logger.Error("load history", slog.String("host", host), slog.String("error", err.Error()))
		writeError(w, http.StatusInternalServerError, "history unavailable")
		return
	}
	writeJSON(w, http.StatusOK, days)
}

// filterFromQuery reads host, date, type (comma separated) and limit.
func filterFromQuery(r *http.Request) (history.Filter, error) {
	q := r.URL.Query()
	f := history.Filter{
		HostGlob: q.Get("host"),
		Date:     q.Get("date"),
	}
	if types := q.Get("type"); types != "" {
		f.Types = strings.Split(types, ",")
	}
	if limit := q.Get("limit"); limit != "" {
		n, err := strconv.Atoi(limit)
		if err != nil || n < 0 {
			return f, errors.New("limit must be a non-negative integer")
		}
		f.Limit = n
	}
	return f, f.Validate()
}

func (s *Server) handleSearchHistory(w http.ResponseWriter, r *http.Request) {
	f, err := filterFromQuery(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	entries, err := s.history.Search(f)
	if err != nil {
		s.logger.Error("search history", slog.String("error", err.Error()))
		writeError(w, http.StatusInternalServerError, "history unavailable")
		return
	}
	if entries == nil {
		entries = []history.Entry{}
	}
	writeJSON(w, http.StatusOK, entries)
}

func (s *Server) handleListConnections(w http.ResponseWriter, r *http.Request) {
	if s.profiles == nil {
		writeError(w, http.StatusServiceUnavailable, errNoProfiles.Error())
		return
	}
	list := s.profiles.List()
	out := make([]ssh.ConnectionConfig, 0, len(list))
	for _, p := range list {
		out = append(out, p.Redacted())
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleSaveConnection(w http.ResponseWriter, r *http.Request) {
	if s.profiles == nil {
		writeError(w, http.StatusServiceUnavailable, errNoProfiles.Error())
		return
	}
	var cfg ssh.ConnectionConfig
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodySize)).Decode(&cfg); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if err := cfg.Validate(); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	saved, err := s.profiles.Save(cfg)
	if errors.Is(err, profiles.ErrReadOnly) {
		writeError(w, http.StatusConflict, err.Error())
		return
	}
	if err != nil {
		s.logger.Error("save connection", slog.String("error", err.Error()))
		writeError(w, http.StatusInternalServerError, "failed to save connection")
		return
	}
	writeJSON(w, http.StatusCreated, saved.Redacted())
}

func (s *Server) handleDeleteConnection(w http.ResponseWriter, r *http.Request) {
	if s.profiles == nil {
		writeError(w, http.StatusServiceUnavailable, errNoProfiles.Error())
		return
	}
	err := s.profiles.Delete(chi.URLParam(r, "id"))
	if errors.Is(err, profiles.ErrReadOnly) {
		writeError(w, http.StatusConflict, err.Error())
		return
	}
	if err != nil {
		s.logger.Error("delete connection", slog.String("error", err.Error()))
		writeError(w, http.StatusInternalServerError, "failed to delete connection")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type auditRequest struct {
	Purpose  string   `json:"purpose"`
	Comment  string   `json:"comment"`
	HostGlob string   `json:"host_glob"`
	Date     string   `json:"date"`
	Types    []string `json:"types"`
	Limit    int      `json:"limit"`
}

type auditResponse struct {
	Answer  string `json:"answer"`
	Entries int    `json:"entries"`
}

func (s *Server) handleAudit(w http.ResponseWriter, r *http.Request) {
	if s.auditor == nil {
		writeError(w, http.StatusServiceUnavailable, "audit assistant is not configured")
		return
	}
	var body auditRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodySize)).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	f := history.Filter{HostGlob: body.HostGlob, Date: body.Date, Types: body.Types, Limit: body.Limit}
	if err := f.Validate(); err != nil {
		writeError(w, http.StatusBadRequest, "invalid host_glob: "+err.Error())
		return
	}
	entries, err := s.history.Search(f)
	if err != nil {
		s.logger.Error("search history", slog.String("error", err.Error()))
		writeError(w, http.StatusInternalServerError, "history unavailable")
		return
	}

	answer, err := s.auditor.Analyze(r.Context(), audit.Request{
		Purpose: body.Purpose,
		Comment: body.Comment,
		Entries: entries,
	})
	switch {
	case errors.Is(err, audit.ErrNoPurpose):
		writeError(w, http.StatusBadRequest, err.Error())
		return
	case err != nil:
		s.logger.Warn("audit failed", slog.String("error", err.Error()))
		writeError(w, http.StatusBadGateway, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, auditResponse{Answer: answer, Entries: len(entries)})
}
