// Package generator renders crawl results into the llms.txt digest format.
package generator

import (
	"fmt"
	"net/url"
	"strings"

	"github.com/siteloom/llmstxt-worker/internal/crawl"
)

// Filename returns the artifact filename for a job.
func Filename(jobID string) string {
	return fmt.Sprintf("llms_%s.txt", jobID)
}

// Generate renders the crawled pages as an llms.txt document. It is a pure
// function of the crawl result: identical input always yields identical
// output.
func Generate(result crawl.CrawlResult) string {
	start := startPage(result)

	name := projectName(start, result.StartURL)
	description := projectDescription(start, result.StartURL)

	var b strings.Builder
	b.WriteString("# " + name + "\n\n")
	b.WriteString("> " + description + "\n\n")
	b.WriteString("## Pages\n\n")

	for _, page := range result.Pages {
		if page.URL == "" {
			continue
		}
		title := strings.TrimSpace(page.Title)
		if title == "" {
			title = page.URL
		}
		b.WriteString(fmt.Sprintf("- [%s](%s)", title, page.URL))
		if desc := strings.TrimSpace(page.Description); desc != "" {
			b.WriteString(": " + desc)
		}
		b.WriteString("\n")
	}
	return strings.TrimRight(b.String(), "\n")
}

// startPage picks the crawled page whose URL equals the start URL, falling
// back to the first crawled page.
func startPage(result crawl.CrawlResult) *crawl.CrawledPage {
	for i := range result.Pages {
		if result.Pages[i].URL == result.StartURL {
			return &result.Pages[i]
		}
	}
	if len(result.Pages) > 0 {
		return &result.Pages[0]
	}
	return nil
}

func projectName(start *crawl.CrawledPage, startURL string) string {
	if start != nil {
		if title := strings.TrimSpace(start.Title); title != "" {
			return title
		}
	}
	if startURL != "" {
		if u, err := url.Parse(startURL); err == nil && u.Host != "" {
			return u.Host
		}
		return startURL
	}
	return "Website"
}

func projectDescription(start *crawl.CrawledPage, startURL string) string {
	if start != nil {
		if desc := strings.TrimSpace(start.Description); desc != "" {
			return desc
		}
	}
	return fmt.Sprintf("Website content from %s", startURL)
}
