package crawl

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// TotalURLsChecked counts URLs reconciled by the change detector.
	TotalURLsChecked = promauto.NewCounter(prometheus.CounterOpts{
		Name: "crawl_urls_checked_total",
		Help: "The total number of URLs reconciled against the page set.",
	})
	// TotalPagesChanged counts URLs classified as changed.
	TotalPagesChanged = promauto.NewCounter(prometheus.CounterOpts{
		Name: "crawl_pages_changed_total",
		Help: "The total number of pages classified as changed.",
	})
	// TotalPagesNew counts URLs classified as newly discovered.
	TotalPagesNew = promauto.NewCounter(prometheus.CounterOpts{
		Name: "crawl_pages_new_total",
		Help: "The total number of pages classified as new.",
	})
	// TotalPagesUnchanged counts URLs classified as unchanged.
	TotalPagesUnchanged = promauto.NewCounter(prometheus.CounterOpts{
		Name: "crawl_pages_unchanged_total",
		Help: "The total number of pages classified as unchanged.",
	})
	// TotalFetchErrors counts page fetches that failed or returned non-200.
	TotalFetchErrors = promauto.NewCounter(prometheus.CounterOpts{
		Name: "crawl_fetch_errors_total",
		Help: "The total number of failed page fetches.",
	})
	// TotalRevisionsCreated counts new revision rows written.
	TotalRevisionsCreated = promauto.NewCounter(prometheus.CounterOpts{
		Name: "crawl_revisions_created_total",
		Help: "The total number of page revisions created.",
	})
	// TotalRevisionsReused counts saves skipped because the hash matched.
	TotalRevisionsReused = promauto.NewCounter(prometheus.CounterOpts{
		Name: "crawl_revisions_reused_total",
		Help: "The total number of revision saves skipped by the hash guard.",
	})
)
