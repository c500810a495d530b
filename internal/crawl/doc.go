// Package crawl implements the incremental crawl pipeline: sitemap
// discovery, change detection against persisted page revisions, and
// revision persistence keyed by content hash.
package crawl
