package datasource

import (
	"context"
	"fmt"
	"net/url"
	"sort"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/mmcdole/gofeed"

	"github.com/seenimoa/ibexai/internal/infra"
	"github.com/seenimoa/ibexai/pkg/models"
)

// FeedSource is one RSS/Atom feed of market news.
type FeedSource struct {
	Name   string
	RSSURL string
}

// FeedSourcesFromURLs builds feed sources named after their host.
func FeedSourcesFromURLs(urls []string) []FeedSource {
	out := make([]FeedSource, 0, len(urls))
	for _, u := range urls {
		name := u
		if parsed, err := url.Parse(u); err == nil && parsed.Host != "" {
			name = parsed.Host
		}
		out = append(out, FeedSource{Name: name, RSSURL: u})
	}
	return out
}

// News fetches market headlines from configured feeds.
type News struct {
	sources []FeedSource
	cache   *infra.Cache
	limiter *infra.RateLimiter
	parser  *gofeed.Parser
}

// NewNews creates a news source over the given feeds.
func NewNews(sources []FeedSource) *News {
	return &News{
		sources: sources,
		cache:   infra.NewCache(10 * time.Minute),
		limiter: infra.NewRateLimiter(2), // conservative: 2 req/s
		parser:  gofeed.NewParser(),
	}
}

// Name returns the data source name.
func (n *News) Name() string { return "RSS News" }

// Headlines returns the newest headlines across all feeds.
// A failing feed is skipped; with no feeds the result is empty.
func (n *News) Headlines(ctx context.Context, limit int) ([]models.Headline, error) {
	cacheKey := fmt.Sprintf("news:%d", limit)
	if cached, ok := n.cache.Get(cacheKey); ok {
		return cached.([]models.Headline), nil
	}

	var all []models.Headline
	for _, src := range n.sources {
		items, err := n.fetchRSS(ctx, src)
		if err != nil {
			continue
		}
		all = append(all, items...)
	}

	sort.SliceStable(all, func(i, j int) bool {
		return all[i].Published.After(all[j].Published)
	})
	if limit > 0 && len(all) > limit {
		all = all[:limit]
	}

	n.cache.Set(cacheKey, all)
	return all, nil
}

func (n *News) fetchRSS(ctx context.Context, src FeedSource) ([]models.Headline, error) {
	if err := n.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	feed, err := n.parser.ParseURLWithContext(src.RSSURL, ctx)
	if err != nil {
		return nil, fmt.Errorf("parse RSS %s: %w", src.Name, err)
	}

	out := make([]models.Headline, 0, len(feed.Items))
	for _, item := range feed.Items {
		h := models.Headline{
			Title:   strings.TrimSpace(item.Title),
			Link:    item.Link,
			Summary: cleanHTML(item.Description),
		}
		if item.PublishedParsed != nil {
			h.Published = *item.PublishedParsed
		}
		out = append(out, h)
	}
	return out, nil
}

// cleanHTML strips HTML tags from a string using goquery.
func cleanHTML(s string) string {
	if s == "" {
		return ""
	}
	doc, err := goquery.NewDocumentFromReader(strings.NewReader("<body>" + s + "</body>"))
	if err != nil {
		return s
	}
	return strings.Join(strings.Fields(doc.Text()), " ")
}

// FormatHeadlines renders headlines as a markdown bullet list.
func FormatHeadlines(items []models.Headline) string {
	if len(items) == 0 {
		return "- (sin noticias disponibles)\n"
	}
	var b strings.Builder
	for _, h := range items {
		b.WriteString("- ")
		b.WriteString(h.Title)
		if h.Summary != "" {
			b.WriteString(": ")
			b.WriteString(truncate(h.Summary, 200))
		}
		b.WriteString("\n")
	}
	return b.String()
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n]) + "…"
}
