package crawl

import (
	"context"
	"encoding/xml"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"go.uber.org/zap"
)

// maxSitemapDepth caps sitemapindex recursion. Indices reference children,
// not parents, so cycles should not occur; the cap guards malformed input.
const maxSitemapDepth = 3

// SitemapResolver expands a site's sitemap.xml (and any sitemap indexes it
// references) into a flat set of normalized URLs. The sitemap is a soft
// dependency: every failure degrades to an empty result.
type SitemapResolver struct {
	fetcher Fetcher
	logger  *zap.Logger
}

// NewSitemapResolver constructs a SitemapResolver.
func NewSitemapResolver(fetcher Fetcher, logger *zap.Logger) *SitemapResolver {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &SitemapResolver{fetcher: fetcher, logger: logger}
}

type sitemapDocument struct {
	XMLName  xml.Name
	Sitemaps []sitemapLocation `xml:"sitemap"`
	URLs     []sitemapLocation `xml:"url"`
}

type sitemapLocation struct {
	Loc string `xml:"loc"`
}

// FetchSitemapURLs fetches {scheme}://{host}/sitemap.xml for the given base
// URL and returns every page URL it (recursively) lists.
func (r *SitemapResolver) FetchSitemapURLs(ctx context.Context, baseURL string) []string {
	parsed, err := url.Parse(NormalizeURL(baseURL))
	if err != nil || parsed.Host == "" {
		r.logger.Warn("cannot derive sitemap location", zap.String("base_url", baseURL))
		return nil
	}
	sitemapURL := fmt.Sprintf("%s://%s/sitemap.xml", parsed.Scheme, parsed.Host)
	return r.fetch(ctx, sitemapURL, 0)
}

func (r *SitemapResolver) fetch(ctx context.Context, sitemapURL string, depth int) []string {
	if depth >= maxSitemapDepth {
		r.logger.Warn("sitemap recursion depth exceeded", zap.String("url", sitemapURL))
		return nil
	}
	resp, err := r.fetcher.Get(ctx, sitemapURL)
	if err != nil {
		r.logger.Warn("sitemap fetch failed", zap.String("url", sitemapURL), zap.Error(err))
		return nil
	}
	if resp.StatusCode != http.StatusOK {
		r.logger.Debug("sitemap not available",
			zap.String("url", sitemapURL),
			zap.Int("status", resp.StatusCode),
		)
		return nil
	}
	return r.parse(ctx, sitemapURL, resp.Body, depth)
}

func (r *SitemapResolver) parse(ctx context.Context, sitemapURL string, body []byte, depth int) []string {
	var doc sitemapDocument
	if err := xml.Unmarshal(body, &doc); err != nil {
		r.logger.Warn("sitemap parse failed", zap.Error(err))
		return nil
	}

	var urls []string
	if doc.XMLName.Local == "sitemapindex" {
		for _, child := range doc.Sitemaps {
			loc := r.resolveLoc(sitemapURL, child.Loc)
			if loc == "" {
				continue
			}
			urls = append(urls, r.fetch(ctx, loc, depth+1)...)
		}
		return urls
	}
	for _, entry := range doc.URLs {
		loc := r.resolveLoc(sitemapURL, entry.Loc)
		if loc == "" {
			continue
		}
		urls = append(urls, loc)
	}
	return urls
}

// resolveLoc normalizes one <loc> entry. Relative locations resolve against
// the sitemap that listed them; a sitemap only covers its own host, so
// off-domain entries are dropped.
func (r *SitemapResolver) resolveLoc(sitemapURL, loc string) string {
	loc = strings.TrimSpace(loc)
	if loc == "" {
		return ""
	}
	resolved := NormalizeURL(loc)
	if strings.HasPrefix(loc, "/") {
		resolved = NormalizeLink(sitemapURL, loc)
	}
	if resolved == "" || !SameDomain(sitemapURL, resolved) {
		r.logger.Debug("dropping off-domain sitemap entry", zap.String("loc", loc))
		return ""
	}
	return resolved
}
