package api

import (
	"net/http"

	"github.com/seenimoa/ibexai/internal/config"
)

// ConfigResponse is the non-secret part of the running configuration.
type ConfigResponse struct {
	LLMPrimary     string   `json:"llm_primary"`
	LLMModel       string   `json:"llm_model"`
	DataSource     string   `json:"data_source"`
	SnapshotTTLSec int      `json:"snapshot_ttl_sec"`
	NewsFeeds      []string `json:"news_feeds"`
	SessionBackend string   `json:"session_backend"`
	HistoryWindow  int      `json:"history_window"`
	EmailTransport string   `json:"email_transport"`
	LLMConfigured  bool     `json:"llm_configured"`
}

// handleGetConfig returns the running configuration without credentials.
func (s *Server) handleGetConfig(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, APIResponse{
		Success: true,
		Data: ConfigResponse{
			LLMPrimary:     s.cfg.LLM.Primary,
			LLMModel:       s.cfg.LLM.Model,
			DataSource:     s.app.Source.Name(),
			SnapshotTTLSec: s.cfg.Market.SnapshotTTLSec,
			NewsFeeds:      s.cfg.Market.NewsFeeds,
			SessionBackend: s.cfg.Session.Backend,
			HistoryWindow:  s.cfg.Session.HistoryWindow,
			EmailTransport: s.cfg.Email.Transport,
			LLMConfigured:  config.HasLLMCredential(s.cfg),
		},
	})
}

// handleGetConfigKeys returns the status of all sensitive API keys.
func (s *Server) handleGetConfigKeys(w http.ResponseWriter, r *http.Request) {
	keys := config.CheckAPIKeys(s.cfg)
	writeJSON(w, http.StatusOK, APIResponse{
		Success: true,
		Data:    keys,
	})
}
