package server

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/marketdata/internal/model"
	"github.com/sells-group/marketdata/internal/pipeline"
)

type lookupRequest struct {
	Address string `json:"address"`
	Refresh bool   `json:"refresh"`
}

type errorBody struct {
	Detail string `json:"detail"`
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleLookupGet(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	refresh := q.Get("refresh") == "1" || strings.EqualFold(q.Get("refresh"), "true")
	s.lookup(w, r, q.Get("address"), refresh)
}

func (s *Server) handleLookupPost(w http.ResponseWriter, r *http.Request) {
	var req lookupRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody{Detail: "invalid request body"})
		return
	}
	s.lookup(w, r, req.Address, req.Refresh)
}

func (s *Server) lookup(w http.ResponseWriter, r *http.Request, address string, refresh bool) {
	if strings.TrimSpace(address) == "" {
		writeJSON(w, http.StatusBadRequest, errorBody{Detail: "address is required"})
		return
	}

	var (
		record *model.MarketRecord
		err    error
	)
	if refresh {
		record, err = s.lookuper.Refresh(r.Context(), address)
	} else {
		record, err = s.lookuper.Lookup(r.Context(), address)
	}
	if err != nil {
		writeError(w, address, err)
		return
	}
	writeJSON(w, http.StatusOK, record)
}

func writeError(w http.ResponseWriter, address string, err error) {
	switch {
	case eris.Is(err, pipeline.ErrNotFound):
		writeJSON(w, http.StatusNotFound, errorBody{Detail: pipeline.ErrNotFound.Error()})
	case eris.Is(err, pipeline.ErrUnavailable):
		zap.L().Warn("server: upstream unavailable",
			zap.String("address", address),
			zap.Error(err),
		)
		writeJSON(w, http.StatusServiceUnavailable, errorBody{Detail: pipeline.ErrUnavailable.Error()})
	default:
		zap.L().Error("server: lookup failed",
			zap.String("address", address),
			zap.Error(err),
		)
		writeJSON(w, http.StatusInternalServerError, errorBody{Detail: "internal server error"})
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		zap.L().Warn("server: write response", zap.Error(err))
	}
}
