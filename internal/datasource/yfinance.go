package datasource

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/seenimoa/ibexai/internal/infra"
	"github.com/seenimoa/ibexai/pkg/models"
	"github.com/seenimoa/ibexai/pkg/utils"
)

// DefaultYahooBaseURL is the public Yahoo Finance API host.
const DefaultYahooBaseURL = "https://query1.finance.yahoo.com"

// YFinanceOptions configures the Yahoo Finance source.
type YFinanceOptions struct {
	BaseURL           string
	RequestsPerSecond float64
	Timeout           time.Duration
	CacheTTL          time.Duration
}

// YFinance implements MarketDataSource using the Yahoo Finance API.
type YFinance struct {
	baseURL string
	client  *http.Client
	cache   *infra.Cache
	limiter *infra.RateLimiter
}

// NewYFinance creates a new Yahoo Finance data source.
func NewYFinance(opts YFinanceOptions) *YFinance {
	if opts.BaseURL == "" {
		opts.BaseURL = DefaultYahooBaseURL
	}
	if opts.CacheTTL <= 0 {
		opts.CacheTTL = 5 * time.Minute
	}
	return &YFinance{
		baseURL: strings.TrimRight(opts.BaseURL, "/"),
		client:  infra.NewHTTPClient(opts.Timeout),
		cache:   infra.NewCache(opts.CacheTTL),
		limiter: infra.NewRateLimiter(opts.RequestsPerSecond),
	}
}

// Name returns the data source name.
func (y *YFinance) Name() string { return "Yahoo Finance" }

// --- Yahoo Finance API types ---

type yfChartResponse struct {
	Chart struct {
		Result []yfChartResult `json:"result"`
		Error  *yfError        `json:"error"`
	} `json:"chart"`
}

type yfChartResult struct {
	Meta       yfChartMeta  `json:"meta"`
	Timestamp  []int64      `json:"timestamp"`
	Indicators yfIndicators `json:"indicators"`
}

type yfChartMeta struct {
	Symbol             string   `json:"symbol"`
	Currency           string   `json:"currency"`
	RegularMarketPrice *float64 `json:"regularMarketPrice"`
}

type yfIndicators struct {
	Quote []yfQuoteSeries `json:"quote"`
}

type yfQuoteSeries struct {
	Close []*float64 `json:"close"`
}

type yfSummaryResponse struct {
	QuoteSummary struct {
		Result []yfSummaryResult `json:"result"`
		Error  *yfError          `json:"error"`
	} `json:"quoteSummary"`
}

type yfSummaryResult struct {
	Price struct {
		LongName           string   `json:"longName"`
		ShortName          string   `json:"shortName"`
		RegularMarketPrice yfFinVal `json:"regularMarketPrice"`
		MarketCap          yfFinVal `json:"marketCap"`
	} `json:"price"`
	SummaryDetail struct {
		DividendYield              yfFinVal `json:"dividendYield"`
		DividendRate               yfFinVal `json:"dividendRate"`
		TrailingAnnualDividendRate yfFinVal `json:"trailingAnnualDividendRate"`
		TrailingPE                 yfFinVal `json:"trailingPE"`
		Beta                       yfFinVal `json:"beta"`
		MarketCap                  yfFinVal `json:"marketCap"`
	} `json:"summaryDetail"`
	DefaultKeyStatistics struct {
		PriceToBook yfFinVal `json:"priceToBook"`
	} `json:"defaultKeyStatistics"`
	AssetProfile struct {
		Sector  string `json:"sector"`
		Country string `json:"country"`
	} `json:"assetProfile"`
}

// yfFinVal is Yahoo's {"raw":..,"fmt":..} number; an empty object means absent.
type yfFinVal struct {
	Raw *float64 `json:"raw"`
	Fmt string   `json:"fmt"`
}

func (v yfFinVal) null() decimal.NullDecimal {
	if v.Raw == nil {
		return decimal.NullDecimal{}
	}
	return decimal.NewNullDecimal(decimal.NewFromFloat(*v.Raw))
}

type yfError struct {
	Code        string `json:"code"`
	Description string `json:"description"`
}

// --- Public methods ---

// CurrentPrice returns the latest daily close from the chart API.
func (y *YFinance) CurrentPrice(ctx context.Context, symbol string) (decimal.NullDecimal, error) {
	sym := utils.NormalizeTicker(symbol)

	cacheKey := "price:" + sym
	if cached, ok := y.cache.Get(cacheKey); ok {
		return cached.(decimal.NullDecimal), nil
	}

	result, err := y.chart(ctx, sym, url.Values{"range": {"5d"}, "interval": {"1d"}})
	if err != nil {
		return decimal.NullDecimal{}, err
	}

	price := decimal.NullDecimal{}
	if series := parseYFSeries(result); len(series) > 0 {
		last, _ := series.Last()
		price = utils.Float(last)
	} else if result.Meta.RegularMarketPrice != nil {
		price = utils.Float(*result.Meta.RegularMarketPrice)
	}

	y.cache.Set(cacheKey, price)
	return price, nil
}

// HistoricalSeries returns daily closes from the chart API.
func (y *YFinance) HistoricalSeries(ctx context.Context, symbol string, from, to time.Time) (models.Series, error) {
	sym := utils.NormalizeTicker(symbol)

	cacheKey := fmt.Sprintf("hist:%s:%s:%s", sym, utils.FormatDate(from), utils.FormatDate(to))
	if cached, ok := y.cache.Get(cacheKey); ok {
		return cached.(models.Series), nil
	}

	result, err := y.chart(ctx, sym, url.Values{
		"period1":  {fmt.Sprint(from.Unix())},
		"period2":  {fmt.Sprint(to.Unix())},
		"interval": {"1d"},
	})
	if err != nil {
		return nil, err
	}

	series := parseYFSeries(result)
	y.cache.SetWithTTL(cacheKey, series, 15*time.Minute)
	return series, nil
}

// Fundamentals returns the named fundamental fields from the quoteSummary API.
func (y *YFinance) Fundamentals(ctx context.Context, symbol string) (*models.Fundamentals, error) {
	sym := utils.NormalizeTicker(symbol)

	cacheKey := "fund:" + sym
	if cached, ok := y.cache.Get(cacheKey); ok {
		return cached.(*models.Fundamentals), nil
	}

	if err := y.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	endpoint := fmt.Sprintf("%s/v10/finance/quoteSummary/%s?modules=%s",
		y.baseURL, url.PathEscape(sym), "price,summaryDetail,defaultKeyStatistics,assetProfile")
	data, err := infra.Get(ctx, y.client, endpoint, map[string]string{"Accept": "application/json"})
	if err != nil {
		return nil, fmt.Errorf("yfinance summary %s: %w", sym, err)
	}

	var resp yfSummaryResponse
	if err := json.Unmarshal(data, &resp); err != nil {
		return nil, fmt.Errorf("parse yfinance summary: %w", err)
	}
	if resp.QuoteSummary.Error != nil {
		return nil, fmt.Errorf("%w: %s", ErrUpstream, resp.QuoteSummary.Error.Description)
	}
	if len(resp.QuoteSummary.Result) == 0 {
		return nil, fmt.Errorf("%w: %s", ErrTickerNotFound, sym)
	}

	f := buildFundamentals(sym, resp.QuoteSummary.Result[0])
	y.cache.SetWithTTL(cacheKey, f, time.Hour)
	return f, nil
}

// --- Helpers ---

func (y *YFinance) chart(ctx context.Context, sym string, q url.Values) (yfChartResult, error) {
	if err := y.limiter.Wait(ctx); err != nil {
		return yfChartResult{}, err
	}

	endpoint := fmt.Sprintf("%s/v8/finance/chart/%s?%s", y.baseURL, url.PathEscape(sym), q.Encode())
	data, err := infra.Get(ctx, y.client, endpoint, map[string]string{"Accept": "application/json"})
	if err != nil {
		return yfChartResult{}, fmt.Errorf("yfinance chart %s: %w", sym, err)
	}

	var resp yfChartResponse
	if err := json.Unmarshal(data, &resp); err != nil {
		return yfChartResult{}, fmt.Errorf("parse yfinance chart: %w", err)
	}
	if resp.Chart.Error != nil {
		return yfChartResult{}, fmt.Errorf("%w: %s", ErrUpstream, resp.Chart.Error.Description)
	}
	if len(resp.Chart.Result) == 0 {
		return yfChartResult{}, fmt.Errorf("%w: %s", ErrTickerNotFound, sym)
	}
	return resp.Chart.Result[0], nil
}

// parseYFSeries keeps only days with a close; holidays come back as nulls.
func parseYFSeries(result yfChartResult) models.Series {
	if len(result.Indicators.Quote) == 0 {
		return nil
	}
	closes := result.Indicators.Quote[0].Close

	series := make(models.Series, 0, len(result.Timestamp))
	for i, ts := range result.Timestamp {
		if i >= len(closes) || closes[i] == nil {
			continue
		}
		series = append(series, models.PricePoint{
			Date:  time.Unix(ts, 0).In(utils.Madrid),
			Close: *closes[i],
		})
	}
	return series
}

func buildFundamentals(sym string, r yfSummaryResult) *models.Fundamentals {
	f := &models.Fundamentals{
		Symbol:      sym,
		LongName:    coalesce(r.Price.LongName, r.Price.ShortName),
		Sector:      r.AssetProfile.Sector,
		Country:     r.AssetProfile.Country,
		Price:       r.Price.RegularMarketPrice.null(),
		TrailingPE:  r.SummaryDetail.TrailingPE.null(),
		PriceToBook: r.DefaultKeyStatistics.PriceToBook.null(),
		Beta:        r.SummaryDetail.Beta.null(),
		MarketCap:   r.Price.MarketCap.null(),
	}
	if !f.MarketCap.Valid {
		f.MarketCap = r.SummaryDetail.MarketCap.null()
	}

	f.DividendRate = r.SummaryDetail.TrailingAnnualDividendRate.null()
	if !f.DividendRate.Valid || f.DividendRate.Decimal.IsZero() {
		if rate := r.SummaryDetail.DividendRate.null(); rate.Valid {
			f.DividendRate = rate
		}
	}

	// Yahoo has served the yield both as a ratio (0.0425) and as a percentage (4.25).
	if dy := r.SummaryDetail.DividendYield.null(); dy.Valid {
		if dy.Decimal.GreaterThan(decimal.NewFromInt(1)) {
			f.DividendYieldPct = dy
		} else {
			f.DividendYieldPct = decimal.NewNullDecimal(dy.Decimal.Mul(decimal.NewFromInt(100)))
		}
	}
	return f
}

func coalesce(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}
