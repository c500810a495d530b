package crawl

import (
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

var whitespaceRuns = regexp.MustCompile(`\s+`)

// NormalizeContent reduces HTML to its visible text: script, style,
// noscript and iframe subtrees are dropped entirely and whitespace runs
// collapse to single spaces. Identical visible text always normalizes to
// the identical string regardless of surrounding markup, which is what
// keeps markup churn from registering as a content change.
func NormalizeContent(html string) string {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		// x/net/html tolerates almost anything; fall back to the raw text.
		return collapseWhitespace(html)
	}
	doc.Find("script, style, noscript, iframe").Remove()
	return collapseWhitespace(doc.Text())
}

func collapseWhitespace(s string) string {
	return strings.TrimSpace(whitespaceRuns.ReplaceAllString(s, " "))
}

// ExtractPageMeta pulls the title and meta description out of an HTML
// document. Both default to empty strings.
func ExtractPageMeta(html string) (title, description string) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return "", ""
	}
	title = strings.TrimSpace(doc.Find("title").First().Text())
	if content, ok := doc.Find(`meta[name="description"]`).First().Attr("content"); ok {
		description = strings.TrimSpace(content)
	}
	return title, description
}
