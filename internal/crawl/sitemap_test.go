package crawl_test

import (
	"context"
	"net/http"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/siteloom/llmstxt-worker/internal/crawl"
)

const urlsetXML = `<?xml version="1.0" encoding="UTF-8"?>
<urlset xmlns="http://www.sitemaps.org/schemas/sitemap/0.9">
	<url><loc>https://example.com/</loc></url>
	<url><loc>https://example.com/pricing</loc></url>
	<url><loc>example.com/docs</loc></url>
</urlset>`

func TestFetchSitemapURLsParsesURLSet(t *testing.T) {
	t.Parallel()

	fetcher := newFakeFetcher()
	fetcher.servePage("https://example.com/sitemap.xml", urlsetXML, nil)
	resolver := crawl.NewSitemapResolver(fetcher, nil)

	urls := resolver.FetchSitemapURLs(context.Background(), "example.com")
	require.Equal(t, []string{
		"https://example.com/",
		"https://example.com/pricing",
		"https://example.com/docs",
	}, urls)
}

func TestFetchSitemapURLsFollowsIndex(t *testing.T) {
	t.Parallel()

	index := `<?xml version="1.0" encoding="UTF-8"?>
<sitemapindex xmlns="http://www.sitemaps.org/schemas/sitemap/0.9">
	<sitemap><loc>https://example.com/sitemap-pages.xml</loc></sitemap>
	<sitemap><loc>https://example.com/sitemap-blog.xml</loc></sitemap>
</sitemapindex>`
	pages := `<urlset><url><loc>https://example.com/a</loc></url></urlset>`
	blog := `<urlset><url><loc>https://example.com/blog/1</loc></url></urlset>`

	fetcher := newFakeFetcher()
	fetcher.servePage("https://example.com/sitemap.xml", index, nil)
	fetcher.servePage("https://example.com/sitemap-pages.xml", pages, nil)
	fetcher.servePage("https://example.com/sitemap-blog.xml", blog, nil)
	resolver := crawl.NewSitemapResolver(fetcher, nil)

	urls := resolver.FetchSitemapURLs(context.Background(), "https://example.com")
	require.Equal(t, []string{"https://example.com/a", "https://example.com/blog/1"}, urls)
}

func TestFetchSitemapURLsResolvesRelativeAndDropsOffDomain(t *testing.T) {
	t.Parallel()

	sitemap := `<?xml version="1.0" encoding="UTF-8"?>
<urlset xmlns="http://www.sitemaps.org/schemas/sitemap/0.9">
	<url><loc>/relative/page</loc></url>
	<url><loc>https://other.com/elsewhere</loc></url>
	<url><loc>https://example.com/kept</loc></url>
</urlset>`

	fetcher := newFakeFetcher()
	fetcher.servePage("https://example.com/sitemap.xml", sitemap, nil)
	resolver := crawl.NewSitemapResolver(fetcher, nil)

	urls := resolver.FetchSitemapURLs(context.Background(), "example.com")
	require.Equal(t, []string{
		"https://example.com/relative/page",
		"https://example.com/kept",
	}, urls)
}

func TestFetchSitemapURLsSkipsOffDomainIndexEntries(t *testing.T) {
	t.Parallel()

	index := `<?xml version="1.0" encoding="UTF-8"?>
<sitemapindex xmlns="http://www.sitemaps.org/schemas/sitemap/0.9">
	<sitemap><loc>https://cdn.other.com/sitemap.xml</loc></sitemap>
	<sitemap><loc>https://example.com/sitemap-pages.xml</loc></sitemap>
</sitemapindex>`
	pages := `<urlset><url><loc>https://example.com/a</loc></url></urlset>`

	fetcher := newFakeFetcher()
	fetcher.servePage("https://example.com/sitemap.xml", index, nil)
	fetcher.servePage("https://example.com/sitemap-pages.xml", pages, nil)
	resolver := crawl.NewSitemapResolver(fetcher, nil)

	urls := resolver.FetchSitemapURLs(context.Background(), "https://example.com")
	require.Equal(t, []string{"https://example.com/a"}, urls)
	require.False(t, fetcher.gotGet("https://cdn.other.com/sitemap.xml"))
}

func TestFetchSitemapURLsDegradesToEmpty(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name  string
		setup func(f *fakeFetcher)
	}{
		{
			name:  "missing sitemap",
			setup: func(f *fakeFetcher) { f.serveStatus("https://example.com/sitemap.xml", http.StatusNotFound) },
		},
		{
			name:  "malformed xml",
			setup: func(f *fakeFetcher) { f.servePage("https://example.com/sitemap.xml", "<urlset><url>", nil) },
		},
		{
			name:  "server error",
			setup: func(f *fakeFetcher) { f.serveStatus("https://example.com/sitemap.xml", http.StatusInternalServerError) },
		},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			fetcher := newFakeFetcher()
			tc.setup(fetcher)
			resolver := crawl.NewSitemapResolver(fetcher, nil)
			require.Empty(t, resolver.FetchSitemapURLs(context.Background(), "example.com"))
		})
	}
}

func TestFetchSitemapURLsBadBaseURL(t *testing.T) {
	t.Parallel()

	resolver := crawl.NewSitemapResolver(newFakeFetcher(), nil)
	require.Empty(t, resolver.FetchSitemapURLs(context.Background(), ""))
}
