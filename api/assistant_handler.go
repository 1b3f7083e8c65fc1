package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/google/uuid"

	"github.com/seenimoa/ibexai/internal/advisor"
	"github.com/seenimoa/ibexai/internal/app"
	"github.com/seenimoa/ibexai/internal/logging"
	"github.com/seenimoa/ibexai/internal/market"
	"github.com/seenimoa/ibexai/internal/notify"
	"github.com/seenimoa/ibexai/internal/portfolio"
	"github.com/seenimoa/ibexai/internal/report"
	"github.com/seenimoa/ibexai/internal/session"
	"github.com/seenimoa/ibexai/pkg/models"
	"github.com/seenimoa/ibexai/pkg/utils"
)

// Download names of the report.
const (
	ReportFilename     = "informe_inversion.md"
	ReportHTMLFilename = "informe_inversion.html"
)

type sessionKey struct{}

// sessionCookie attaches the session id to the request, issuing a new one
// when the cookie is missing or malformed.
func (s *Server) sessionCookie(next http.Handler) http.Handler {
	name := s.cfg.Session.CookieName
	if name == "" {
		name = defaultCookieName
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var id string
		if c, err := r.Cookie(name); err == nil {
			if parsed, err := uuid.Parse(c.Value); err == nil {
				id = parsed.String()
			}
		}
		if id == "" {
			id = uuid.NewString()
			http.SetCookie(w, &http.Cookie{
				Name:     name,
				Value:    id,
				Path:     "/",
				HttpOnly: true,
				SameSite: http.SameSiteLaxMode,
			})
		}
		ctx := context.WithValue(r.Context(), sessionKey{}, id)
		ctx = logging.WithLogger(ctx, logging.WithSession(s.logger, id))
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func sessionID(ctx context.Context) string {
	id, _ := ctx.Value(sessionKey{}).(string)
	return id
}

// ============================================================
// Assistant
// ============================================================

// AssistantResponse is returned by POST /api/v1/assistant.
type AssistantResponse struct {
	Reply     *advisor.Reply `json:"reply"`
	Status    session.Status `json:"status"`
	HasReport bool           `json:"has_report"`
}

// AssistantState is returned by GET /api/v1/assistant.
type AssistantState struct {
	Mode      models.Mode    `json:"mode"`
	Profile   string         `json:"profile"`
	Objective string         `json:"objective"`
	Extended  bool           `json:"extended"`
	Status    session.Status `json:"status"`
	HasReport bool           `json:"has_report"`
	History   []TurnView     `json:"history"`
}

// TurnView is a history entry with the assistant text rendered to HTML.
type TurnView struct {
	models.ConversationTurn
	HTML string `json:"html"`
}

// decodeAssistantRequest accepts a JSON body or the assistant form.
func decodeAssistantRequest(r *http.Request) (advisor.Request, error) {
	var req advisor.Request
	if strings.HasPrefix(r.Header.Get("Content-Type"), "application/json") {
		err := json.NewDecoder(r.Body).Decode(&req)
		return req, err
	}
	if err := r.ParseForm(); err != nil {
		return req, err
	}
	req.Mode = r.FormValue("mode")
	req.Text = r.FormValue("text")
	req.Profile = r.FormValue("profile")
	req.Objective = r.FormValue("objective")
	req.Extended = formBool(r.FormValue("extended"))
	return req, nil
}

func formBool(v string) bool {
	if v == "on" {
		return true
	}
	b, _ := strconv.ParseBool(v)
	return b
}

func (s *Server) handleAssistant(w http.ResponseWriter, r *http.Request) {
	req, err := decodeAssistantRequest(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	id := sessionID(r.Context())
	reply, err := s.app.Advisor.Handle(r.Context(), id, req)
	if err != nil {
		logger := logging.FromContext(r.Context())
		logger.Error().Err(err).Msg("assistant request failed")
		writeError(w, http.StatusInternalServerError, "session unavailable")
		return
	}
	s.app.Metrics.ObserveReply(string(reply.Mode), string(reply.Kind))

	st, err := s.app.Advisor.State(r.Context(), id)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "session unavailable")
		return
	}
	writeJSON(w, http.StatusOK, APIResponse{
		Success: true,
		Data: AssistantResponse{
			Reply:     reply,
			Status:    st.Status(),
			HasReport: st.HasReport(),
		},
	})
}

func (s *Server) handleAssistantState(w http.ResponseWriter, r *http.Request) {
	st, err := s.app.Advisor.State(r.Context(), sessionID(r.Context()))
	if err != nil {
		writeError(w, http.StatusInternalServerError, "session unavailable")
		return
	}
	history := make([]TurnView, len(st.History))
	for i, t := range st.History {
		history[i] = TurnView{ConversationTurn: t, HTML: s.app.Advisor.RenderHTML(t.Assistant)}
	}
	writeJSON(w, http.StatusOK, APIResponse{
		Success: true,
		Data: AssistantState{
			Mode:      st.Mode,
			Profile:   st.Profile,
			Objective: st.Objective,
			Extended:  st.Extended,
			Status:    st.Status(),
			HasReport: st.HasReport(),
			History:   history,
		},
	})
}

// ============================================================
// Report
// ============================================================

func (s *Server) handleReportDownload(w http.ResponseWriter, r *http.Request) {
	st, err := s.app.Advisor.State(r.Context(), sessionID(r.Context()))
	if err != nil {
		writeError(w, http.StatusInternalServerError, "session unavailable")
		return
	}
	if !st.HasReport() {
		writeError(w, http.StatusNotFound, "no report has been generated")
		return
	}

	if r.URL.Query().Get("format") == "html" {
		doc := report.Document{
			Profile:   st.Profile,
			Objective: st.Objective,
			Extended:  st.LastReportExtended,
			BodyHTML:  s.app.Advisor.RenderHTML(st.LastReport),
		}
		if snap := s.app.Market.Current(); snap != nil {
			doc.DataAt = snap.FetchedAt
			doc.Profitability = market.Profitability(snap)
		}
		html, err := report.GenerateHTML(doc)
		if err != nil {
			writeError(w, http.StatusInternalServerError, err.Error())
			return
		}
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		w.Header().Set("Content-Disposition", "attachment;filename="+ReportHTMLFilename)
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(html)) //nolint:errcheck
		return
	}

	w.Header().Set("Content-Type", "text/markdown; charset=utf-8")
	w.Header().Set("Content-Disposition", "attachment;filename="+ReportFilename)
	w.WriteHeader(http.StatusOK)
	w.Write([]byte(st.LastReport)) //nolint:errcheck
}

func (s *Server) handleReportClear(w http.ResponseWriter, r *http.Request) {
	if err := s.app.Advisor.ClearReport(r.Context(), sessionID(r.Context())); err != nil {
		writeError(w, http.StatusInternalServerError, "session unavailable")
		return
	}
	writeJSON(w, http.StatusOK, APIResponse{Success: true})
}

// ============================================================
// Portfolio
// ============================================================

// PortfolioResponse is the valued portfolio plus its prompt rendering.
type PortfolioResponse struct {
	portfolio.Result
	Text string `json:"text"`
}

func (s *Server) handleGetPortfolio(w http.ResponseWriter, r *http.Request) {
	res, err := s.app.Advisor.Portfolio(r.Context(), sessionID(r.Context()))
	if err != nil {
		writeError(w, http.StatusInternalServerError, "session unavailable")
		return
	}
	writeJSON(w, http.StatusOK, APIResponse{
		Success: true,
		Data:    PortfolioResponse{Result: res, Text: portfolio.Format(res)},
	})
}

// normalizePortfolio maps user tickers onto index symbols.
func normalizePortfolio(pf models.Portfolio) (models.Portfolio, error) {
	out := make(models.Portfolio, len(pf))
	for i, p := range pf {
		p.Symbol = utils.NormalizeTicker(p.Symbol)
		if _, ok := models.LookupInstrument(p.Symbol); !ok {
			return nil, errors.New("unknown IBEX35 symbol: " + p.Symbol)
		}
		out[i] = p
	}
	return out, nil
}

func (s *Server) handlePutPortfolio(w http.ResponseWriter, r *http.Request) {
	var pf models.Portfolio
	if err := json.NewDecoder(r.Body).Decode(&pf); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	pf, err := normalizePortfolio(pf)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	id := sessionID(r.Context())
	if err := s.app.Advisor.SetPortfolio(r.Context(), id, pf); err != nil {
		if errors.Is(err, models.ErrInvalidPosition) {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		writeError(w, http.StatusInternalServerError, "session unavailable")
		return
	}
	s.handleGetPortfolio(w, r)
}

// ============================================================
// Digest
// ============================================================

// DigestRequest is the body for POST /api/v1/digest. Empty fields fall back
// to the configured recipients and the session portfolio.
type DigestRequest struct {
	To        []string         `json:"to"`
	Portfolio models.Portfolio `json:"portfolio"`
}

func (s *Server) handleDigest(w http.ResponseWriter, r *http.Request) {
	var req DigestRequest
	if r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid request body")
			return
		}
	}
	to := req.To
	if len(to) == 0 {
		to = app.SplitRecipients(s.cfg.Email.To)
	}

	positions := req.Portfolio
	if len(positions) == 0 {
		st, err := s.app.Advisor.State(r.Context(), sessionID(r.Context()))
		if err != nil {
			writeError(w, http.StatusInternalServerError, "session unavailable")
			return
		}
		positions = st.Portfolio
	} else {
		var err error
		if positions, err = normalizePortfolio(positions); err == nil {
			err = positions.Validate()
		}
		if err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
	}

	err := s.app.Digest.Send(r.Context(), to, positions)
	switch {
	case errors.Is(err, notify.ErrEmptyPortfolio), errors.Is(err, notify.ErrNoRecipients):
		writeError(w, http.StatusBadRequest, err.Error())
		return
	case err != nil:
		logger := logging.FromContext(r.Context())
		logger.Error().Err(err).Msg("digest delivery failed")
		writeError(w, http.StatusBadGateway, "digest delivery failed")
		return
	}
	writeJSON(w, http.StatusOK, APIResponse{
		Success: true,
		Data:    map[string]interface{}{"sent": len(to)},
	})
}
