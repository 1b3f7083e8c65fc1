package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/seenimoa/ibexai/internal/advisor"
	"github.com/seenimoa/ibexai/internal/app"
	"github.com/seenimoa/ibexai/internal/config"
	"github.com/seenimoa/ibexai/internal/llm"
	"github.com/seenimoa/ibexai/internal/session"
	"github.com/seenimoa/ibexai/pkg/models"
)

// ════════════════════════════════════════════════════════════════════
// Test Helpers
// ════════════════════════════════════════════════════════════════════

// fakeSource serves a rising daily series for every symbol.
type fakeSource struct{}

func (fakeSource) Name() string { return "fake" }

func (fakeSource) CurrentPrice(context.Context, string) (decimal.NullDecimal, error) {
	return decimal.NewNullDecimal(decimal.NewFromInt(120)), nil
}

func (fakeSource) HistoricalSeries(_ context.Context, _ string, from, to time.Time) (models.Series, error) {
	var s models.Series
	for d, i := from, 0; !d.After(to); d, i = d.AddDate(0, 0, 1), i+1 {
		s = append(s, models.PricePoint{Date: d, Close: 100 + float64(i%40)*0.5})
	}
	return s, nil
}

func (fakeSource) Fundamentals(_ context.Context, symbol string) (*models.Fundamentals, error) {
	return &models.Fundamentals{
		Symbol:           symbol,
		Price:            decimal.NewNullDecimal(decimal.NewFromInt(120)),
		TrailingPE:       decimal.NewNullDecimal(decimal.NewFromInt(12)),
		PriceToBook:      decimal.NewNullDecimal(decimal.RequireFromString("1.2")),
		DividendYieldPct: decimal.NewNullDecimal(decimal.RequireFromString("4.25")),
		DividendRate:     decimal.NewNullDecimal(decimal.NewFromInt(5)),
		MarketCap:        decimal.NewNullDecimal(decimal.NewFromInt(50_000_000_000)),
	}, nil
}

type fakeLLM struct {
	mu    sync.Mutex
	calls int
	err   error
}

func (f *fakeLLM) Name() string               { return "fake" }
func (f *fakeLLM) Models() []string           { return nil }
func (f *fakeLLM) Ping(context.Context) error { return nil }

func (f *fakeLLM) Chat(context.Context, []llm.Message, *llm.ChatOptions) (*llm.Response, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	return &llm.Response{Content: "# Respuesta\n\nEl mercado sube."}, nil
}

func testServer(t *testing.T, provider llm.LLMProvider) *Server {
	t.Helper()
	cfg := &config.Config{}
	cfg.Email.To = "ana@example.com"
	cfg.Email.From = "IBEX35 IA <ia@example.com>"

	a, err := app.Assemble(cfg, zerolog.Nop(), fakeSource{}, provider, session.NewMemoryStore(time.Hour))
	require.NoError(t, err)
	return NewServer(a)
}

// client keeps the session cookie across requests.
type client struct {
	t      *testing.T
	srv    *Server
	cookie *http.Cookie
}

func newClient(t *testing.T, srv *Server) *client {
	return &client{t: t, srv: srv}
}

func (c *client) do(req *http.Request) *httptest.ResponseRecorder {
	c.t.Helper()
	if c.cookie != nil {
		req.AddCookie(c.cookie)
	}
	rec := httptest.NewRecorder()
	c.srv.Router().ServeHTTP(rec, req)
	for _, ck := range rec.Result().Cookies() {
		if ck.Name == defaultCookieName {
			c.cookie = ck
		}
	}
	return rec
}

func (c *client) json(method, path string, body interface{}) *httptest.ResponseRecorder {
	c.t.Helper()
	var payload string
	if body != nil {
		data, err := json.Marshal(body)
		require.NoError(c.t, err)
		payload = string(data)
	}
	req := httptest.NewRequest(method, path, strings.NewReader(payload))
	req.Header.Set("Content-Type", "application/json")
	return c.do(req)
}

func decodeResponse(t *testing.T, rec *httptest.ResponseRecorder) APIResponse {
	t.Helper()
	var resp APIResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	return resp
}

// decodeData re-decodes the envelope's data into out.
func decodeData(t *testing.T, rec *httptest.ResponseRecorder, out interface{}) {
	t.Helper()
	resp := decodeResponse(t, rec)
	require.True(t, resp.Success, resp.Error)
	data, err := json.Marshal(resp.Data)
	require.NoError(t, err)
	require.NoError(t, json.Unmarshal(data, out))
}

// ════════════════════════════════════════════════════════════════════
// Health, session cookie, metrics
// ════════════════════════════════════════════════════════════════════

func TestHealthEndpoint(t *testing.T) {
	srv := testServer(t, &fakeLLM{})
	rec := newClient(t, srv).json(http.MethodGet, "/health", nil)

	require.Equal(t, http.StatusOK, rec.Code)
	resp := decodeResponse(t, rec)
	assert.True(t, resp.Success)
	data := resp.Data.(map[string]interface{})
	assert.Equal(t, "ok", data["status"])
	assert.Equal(t, "fake", data["data_source"])
	assert.NotContains(t, data, "llm_providers")
}

func TestHealthEndpointPingsBackends(t *testing.T) {
	srv := testServer(t, &fakeLLM{})
	rec := newClient(t, srv).json(http.MethodGet, "/health?llm=1", nil)

	require.Equal(t, http.StatusOK, rec.Code)
	data := decodeResponse(t, rec).Data.(map[string]interface{})
	assert.Equal(t, map[string]interface{}{"fake": "ok"}, data["llm_providers"])
}

func TestSessionCookieIssuedOnceAndReused(t *testing.T) {
	srv := testServer(t, &fakeLLM{})
	c := newClient(t, srv)

	rec := c.json(http.MethodGet, "/api/v1/assistant", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	require.NotNil(t, c.cookie)
	assert.True(t, c.cookie.HttpOnly)
	first := c.cookie.Value

	rec = c.json(http.MethodGet, "/api/v1/assistant", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Empty(t, rec.Result().Cookies(), "a valid cookie must not be reissued")
	assert.Equal(t, first, c.cookie.Value)
}

func TestMalformedCookieIsReplaced(t *testing.T) {
	srv := testServer(t, &fakeLLM{})
	c := newClient(t, srv)
	c.cookie = &http.Cookie{Name: defaultCookieName, Value: "not-a-uuid"}

	c.json(http.MethodGet, "/api/v1/assistant", nil)
	assert.NotEqual(t, "not-a-uuid", c.cookie.Value)
}

func TestMetricsEndpointExposesHTTPMetrics(t *testing.T) {
	srv := testServer(t, &fakeLLM{})
	c := newClient(t, srv)
	c.json(http.MethodGet, "/health", nil)

	rec := c.json(http.MethodGet, "/metrics", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	body := rec.Body.String()
	assert.Contains(t, body, "ibexai_http_requests_total")
	assert.Contains(t, body, `route="/health"`)
}

// ════════════════════════════════════════════════════════════════════
// Assistant
// ════════════════════════════════════════════════════════════════════

func TestAssistantChatAppendsHistory(t *testing.T) {
	srv := testServer(t, &fakeLLM{})
	c := newClient(t, srv)

	rec := c.json(http.MethodPost, "/api/v1/assistant", advisor.Request{Mode: "conversacion", Text: "¿Cómo va SAN?"})
	require.Equal(t, http.StatusOK, rec.Code)
	var got AssistantResponse
	decodeData(t, rec, &got)
	assert.Equal(t, advisor.KindAnswer, got.Reply.Kind)
	assert.Contains(t, got.Reply.HTML, "<h1>Respuesta</h1>")
	assert.False(t, got.HasReport)

	var st AssistantState
	decodeData(t, c.json(http.MethodGet, "/api/v1/assistant", nil), &st)
	require.Len(t, st.History, 1)
	assert.Equal(t, "¿Cómo va SAN?", st.History[0].User)
	assert.Contains(t, st.History[0].HTML, "El mercado sube.")
}

func TestAssistantRateLimitedReply(t *testing.T) {
	srv := testServer(t, &fakeLLM{err: llm.ErrRateLimit})
	rec := newClient(t, srv).json(http.MethodPost, "/api/v1/assistant", advisor.Request{Text: "hola"})

	require.Equal(t, http.StatusOK, rec.Code)
	var got AssistantResponse
	decodeData(t, rec, &got)
	assert.Equal(t, advisor.KindRateLimited, got.Reply.Kind)
	assert.Equal(t, advisor.RateLimitedMessage, got.Reply.Markdown)
}

func TestAssistantFormAdvisorWithoutParams(t *testing.T) {
	p := &fakeLLM{}
	srv := testServer(t, p)
	c := newClient(t, srv)

	form := url.Values{"mode": {"asesor"}, "text": {"informe"}}
	req := httptest.NewRequest(http.MethodPost, "/api/v1/assistant", strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	rec := c.do(req)

	require.Equal(t, http.StatusOK, rec.Code)
	var got AssistantResponse
	decodeData(t, rec, &got)
	assert.Equal(t, advisor.KindInvalidInput, got.Reply.Kind)
	assert.Equal(t, advisor.InvalidInputMessage, got.Reply.Markdown)
	assert.Equal(t, session.StatusNoReport, got.Status)
	assert.Zero(t, p.calls)
}

func TestReportDownload(t *testing.T) {
	srv := testServer(t, &fakeLLM{})
	c := newClient(t, srv)

	rec := c.json(http.MethodGet, "/api/v1/report/download", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	form := url.Values{
		"mode":      {"asesor"},
		"text":      {"genera el informe"},
		"profile":   {"moderado"},
		"objective": {"dividendos"},
		"extended":  {"on"},
	}
	req := httptest.NewRequest(http.MethodPost, "/api/v1/assistant", strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	rec = c.do(req)
	require.Equal(t, http.StatusOK, rec.Code)
	var got AssistantResponse
	decodeData(t, rec, &got)
	require.Equal(t, advisor.KindReport, got.Reply.Kind)
	assert.Len(t, got.Reply.Stages, 5)
	assert.True(t, got.HasReport)

	rec = c.json(http.MethodGet, "/api/v1/report/download", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "attachment;filename=informe_inversion.md", rec.Header().Get("Content-Disposition"))
	assert.True(t, strings.HasPrefix(rec.Header().Get("Content-Type"), "text/markdown"))
	assert.Equal(t, got.Reply.Markdown, rec.Body.String())

	rec = c.json(http.MethodGet, "/api/v1/report/download?format=html", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "attachment;filename=informe_inversion.html", rec.Header().Get("Content-Disposition"))
	assert.Contains(t, rec.Body.String(), "<h1>Respuesta</h1>")
	assert.Contains(t, rec.Body.String(), "Moderado")
	assert.Contains(t, rec.Body.String(), "Anexo: rentabilidad por dividendo")

	rec = c.json(http.MethodDelete, "/api/v1/report", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	rec = c.json(http.MethodGet, "/api/v1/report/download", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestReportDownloadKeepsGeneratedKind(t *testing.T) {
	p := &fakeLLM{}
	srv := testServer(t, p)
	c := newClient(t, srv)

	rec := c.json(http.MethodPost, "/api/v1/assistant", advisor.Request{
		Mode: "asesor", Text: "informe", Profile: "Alto", Objective: "crecimiento",
	})
	require.Equal(t, http.StatusOK, rec.Code)

	// the extended run fails, so the basic report stays downloadable
	p.err = llm.ErrRateLimit
	rec = c.json(http.MethodPost, "/api/v1/assistant", advisor.Request{
		Mode: "asesor", Text: "informe", Extended: true,
	})
	require.Equal(t, http.StatusOK, rec.Code)
	var got AssistantResponse
	decodeData(t, rec, &got)
	require.Equal(t, advisor.KindRateLimited, got.Reply.Kind)
	require.True(t, got.HasReport)

	rec = c.json(http.MethodGet, "/api/v1/report/download?format=html", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "Básico")
	assert.NotContains(t, rec.Body.String(), "Extendido")
}

func TestReportsAreIsolatedPerSession(t *testing.T) {
	srv := testServer(t, &fakeLLM{})
	alice, bob := newClient(t, srv), newClient(t, srv)

	rec := alice.json(http.MethodPost, "/api/v1/assistant", advisor.Request{
		Mode: "asesor", Text: "informe", Profile: "Bajo", Objective: "preservar capital",
	})
	require.Equal(t, http.StatusOK, rec.Code)

	bob.json(http.MethodGet, "/api/v1/assistant", nil)
	assert.Equal(t, http.StatusOK, alice.json(http.MethodGet, "/api/v1/report/download", nil).Code)
	assert.Equal(t, http.StatusNotFound, bob.json(http.MethodGet, "/api/v1/report/download", nil).Code)
}

// ════════════════════════════════════════════════════════════════════
// Portfolio
// ════════════════════════════════════════════════════════════════════

func TestPortfolioReplaceAndValue(t *testing.T) {
	srv := testServer(t, &fakeLLM{})
	c := newClient(t, srv)

	body := `[{"symbol":"san","shares":10,"cost_basis":"100"},{"symbol":"BBVA.MC","shares":2,"cost_basis":null}]`
	req := httptest.NewRequest(http.MethodPut, "/api/v1/portfolio", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := c.do(req)
	require.Equal(t, http.StatusOK, rec.Code)

	var got PortfolioResponse
	decodeData(t, rec, &got)
	require.Len(t, got.Lines, 2)
	assert.Equal(t, "SAN.MC", got.Lines[0].Symbol)
	assert.Equal(t, 1, got.GainKnown)
	assert.Equal(t, 1, got.GainUnknown)
	assert.Contains(t, got.Text, "Ganancia total de la cartera")
}

func TestPortfolioRejectsInvalidPositions(t *testing.T) {
	srv := testServer(t, &fakeLLM{})
	c := newClient(t, srv)

	tests := []struct {
		name string
		body string
	}{
		{"unknown symbol", `[{"symbol":"AAPL","shares":1}]`},
		{"zero shares", `[{"symbol":"SAN","shares":0}]`},
		{"duplicate", `[{"symbol":"SAN","shares":1},{"symbol":"SAN.MC","shares":2}]`},
		{"not json", `{`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPut, "/api/v1/portfolio", strings.NewReader(tt.body))
			rec := c.do(req)
			assert.Equal(t, http.StatusBadRequest, rec.Code)
			assert.False(t, decodeResponse(t, rec).Success)
		})
	}
}

// ════════════════════════════════════════════════════════════════════
// Market data
// ════════════════════════════════════════════════════════════════════

func TestProfitabilityCoversUniverse(t *testing.T) {
	srv := testServer(t, &fakeLLM{})
	rec := newClient(t, srv).json(http.MethodGet, "/api/v1/profitability", nil)

	require.Equal(t, http.StatusOK, rec.Code)
	var got struct {
		Rows []map[string]interface{} `json:"rows"`
	}
	decodeData(t, rec, &got)
	assert.Len(t, got.Rows, len(models.IBEX35()))
}

func TestAnalysisEndpoint(t *testing.T) {
	srv := testServer(t, &fakeLLM{})
	c := newClient(t, srv)

	rec := c.json(http.MethodGet, "/api/v1/analysis/san", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var got struct {
		Instrument models.Instrument `json:"instrument"`
		Charts     map[string]string `json:"charts"`
		Valuation  struct {
			GrahamNumber float64 `json:"graham_number"`
			Verdict      string  `json:"verdict"`
		} `json:"valuation"`
	}
	decodeData(t, rec, &got)
	assert.Equal(t, "SAN.MC", got.Instrument.Symbol)
	assert.InDelta(t, 150, got.Valuation.GrahamNumber, 1e-6)
	assert.Equal(t, "Valoración razonable", got.Valuation.Verdict)
	for _, kind := range []string{"price", "rsi", "forecast"} {
		assert.Contains(t, got.Charts[kind], "<svg", kind)
	}

	rec = c.json(http.MethodGet, "/api/v1/analysis/SAN.MC/chart/rsi", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "image/svg+xml", rec.Header().Get("Content-Type"))

	assert.Equal(t, http.StatusNotFound, c.json(http.MethodGet, "/api/v1/analysis/SAN/chart/pie", nil).Code)
	assert.Equal(t, http.StatusNotFound, c.json(http.MethodGet, "/api/v1/analysis/AAPL", nil).Code)
}

// ════════════════════════════════════════════════════════════════════
// Digest
// ════════════════════════════════════════════════════════════════════

func TestDigestEndpoint(t *testing.T) {
	srv := testServer(t, &fakeLLM{})
	c := newClient(t, srv)

	rec := c.json(http.MethodPost, "/api/v1/digest", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code, "empty session portfolio")

	rec = c.json(http.MethodPost, "/api/v1/digest", DigestRequest{
		To:        []string{"a@example.com", "b@example.com"},
		Portfolio: models.Portfolio{{Symbol: "ITX", Shares: 3}},
	})
	require.Equal(t, http.StatusOK, rec.Code)
	var got map[string]int
	decodeData(t, rec, &got)
	assert.Equal(t, 2, got["sent"])
}

// ════════════════════════════════════════════════════════════════════
// Configuration and UI
// ════════════════════════════════════════════════════════════════════

func TestConfigEndpointsHideSecrets(t *testing.T) {
	srv := testServer(t, &fakeLLM{})
	srv.cfg.LLM.GroqKey = "gsk_secretsecretsecret"
	c := newClient(t, srv)

	rec := c.json(http.MethodGet, "/api/v1/config", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.NotContains(t, rec.Body.String(), "gsk_secretsecretsecret")

	rec = c.json(http.MethodGet, "/api/v1/config/keys", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.NotContains(t, rec.Body.String(), "gsk_secretsecretsecret")
}

func TestServesAssistantPage(t *testing.T) {
	srv := testServer(t, &fakeLLM{})
	c := newClient(t, srv)

	for _, path := range []string{"/", "/cualquier/ruta"} {
		rec := c.json(http.MethodGet, path, nil)
		require.Equal(t, http.StatusOK, rec.Code, path)
		assert.Contains(t, rec.Body.String(), "IBEX35 IA")
	}

	srv.SetServeUI(false)
	assert.Equal(t, http.StatusNotFound, c.json(http.MethodGet, "/", nil).Code)
}
