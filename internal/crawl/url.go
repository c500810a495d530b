package crawl

import (
	"net/url"
	"strings"
)

// NormalizeURL coerces a bare host string to an https URL so sitemap
// entries and seed URLs compare consistently with stored page URLs.
func NormalizeURL(raw string) string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return raw
	}
	if !strings.HasPrefix(raw, "http://") && !strings.HasPrefix(raw, "https://") {
		return "https://" + raw
	}
	return raw
}

// NormalizeLink joins a possibly relative link against base, strips the
// fragment, and rejects non-HTTP schemes. It is total: any rejection
// returns the empty string, never an error.
func NormalizeLink(base, link string) string {
	link = strings.TrimSpace(link)
	if link == "" {
		return ""
	}
	lower := strings.ToLower(link)
	if strings.HasPrefix(lower, "mailto:") ||
		strings.HasPrefix(lower, "tel:") ||
		strings.HasPrefix(lower, "javascript:") {
		return ""
	}
	baseURL, err := url.Parse(base)
	if err != nil {
		return ""
	}
	joined, err := baseURL.Parse(link)
	if err != nil {
		return ""
	}
	joined.Fragment = ""
	if joined.Scheme != "http" && joined.Scheme != "https" {
		return ""
	}
	return joined.String()
}

// SameDomain reports whether two URLs share a hostname, ignoring port
// and scheme.
func SameDomain(a, b string) bool {
	ua, err := url.Parse(a)
	if err != nil {
		return false
	}
	ub, err := url.Parse(b)
	if err != nil {
		return false
	}
	ha, hb := ua.Hostname(), ub.Hostname()
	if ha == "" || hb == "" {
		return false
	}
	return strings.EqualFold(ha, hb)
}

// urlPath returns the path component of a URL, defaulting to "/".
func urlPath(raw string) string {
	u, err := url.Parse(raw)
	if err != nil || u.Path == "" {
		return "/"
	}
	return u.Path
}

// pageInfoForURL builds the minimal record for a newly discovered URL.
func pageInfoForURL(raw string) PageInfo {
	normalized := NormalizeURL(raw)
	return PageInfo{
		URL:          normalized,
		Path:         urlPath(normalized),
		CanonicalURL: normalized,
		RenderMode:   RenderModeStatic,
		IsIndexable:  true,
		Metadata:     map[string]string{},
	}
}
