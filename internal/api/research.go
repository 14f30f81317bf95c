package api

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"

	"github.com/Keyring-Network/keyring-keywords/control-plane/internal/research"
)

// research runs the whole pipeline inside the request.
func (s *Server) research(w http.ResponseWriter, r *http.Request) {
	cfg, ok := s.decodeConfig(w, r)
	if !ok {
		return
	}
	result, err := s.pipelines(nil).Run(r.Context(), cfg)
	if err != nil {
		s.logger.Warn("research request failed", "error", err)
		writePipelineError(w, err)
		return
	}
	writeJSONStatus(w, result, http.StatusOK)
}

// decodeConfig reads a PipelineConfig body and fills the process defaults
// for an empty base URL, country and CPC band.
func (s *Server) decodeConfig(w http.ResponseWriter, r *http.Request) (research.PipelineConfig, bool) {
	var cfg research.PipelineConfig
	if r.Body == nil {
		writeError(w, "request body required", http.StatusBadRequest)
		return cfg, false
	}
	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(&cfg); err != nil {
		if errors.Is(err, io.EOF) {
			writeError(w, "request body required", http.StatusBadRequest)
		} else {
			writeError(w, "invalid request body: "+err.Error(), http.StatusBadRequest)
		}
		return cfg, false
	}
	if strings.TrimSpace(cfg.BaseURL) == "" {
		cfg.BaseURL = s.cfg.DataAPIURL
	}
	if strings.TrimSpace(cfg.CountryCode) == "" {
		cfg.CountryCode = s.cfg.DefaultCountry
	}
	if cfg.CPCRange.Min == 0 && cfg.CPCRange.Max == 0 {
		cfg.CPCRange = s.cfg.CPCRange()
	}
	return cfg, true
}
